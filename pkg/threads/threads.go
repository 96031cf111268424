// Package threads tracks the mutator threads of the runtime and scans their
// roots: stack frame slots, the per-thread native handle area, and the code
// blobs pinned by compiled frames. Scans claim threads with a token so that
// cooperating workers share one pass without visiting a stack twice.
package threads

import (
	"sync"

	"go.uber.org/atomic"

	"github.com/grafana/cinder/pkg/codecache"
	"github.com/grafana/cinder/pkg/heap"
	"github.com/grafana/cinder/pkg/refstore"
)

// Frame is one activation record. Compiled frames additionally pin the blob
// holding their code.
type Frame struct {
	method string
	blob   *codecache.Blob
	refs   []atomic.Uint64
}

func NewFrame(method string, refs ...heap.Address) *Frame {
	return newFrame(method, nil, refs)
}

// NewCompiledFrame builds a frame executing inside blob. Scans that carry a
// blob visitor will surface the blob when they reach the frame.
func NewCompiledFrame(method string, blob *codecache.Blob, refs ...heap.Address) *Frame {
	return newFrame(method, blob, refs)
}

func newFrame(method string, blob *codecache.Blob, refs []heap.Address) *Frame {
	f := &Frame{method: method, blob: blob, refs: make([]atomic.Uint64, len(refs))}
	for i, r := range refs {
		f.refs[i].Store(uint64(r))
	}
	return f
}

func (f *Frame) Method() string        { return f.method }
func (f *Frame) Blob() *codecache.Blob { return f.blob }
func (f *Frame) NumRefs() int          { return len(f.refs) }

func (f *Frame) RefAt(i int) heap.Address     { return heap.Address(f.refs[i].Load()) }
func (f *Frame) SetRef(i int, a heap.Address) { f.refs[i].Store(uint64(a)) }

func (f *Frame) visitRefs(v heap.RefVisitor) {
	for i := range f.refs {
		val := heap.Address(f.refs[i].Load())
		slot := val
		v.VisitRef(&slot)
		if slot != val {
			f.refs[i].CompareAndSwap(uint64(val), uint64(slot))
		}
	}
}

// VMThread is one mutator thread. The frame stack is mutated only by the
// owning thread; root scans run while mutators are paused or claim the
// thread first.
type VMThread struct {
	name   string
	locals *refstore.Store

	mu     sync.Mutex
	frames []*Frame

	claimToken atomic.Uint64
}

func newThread(name string) *VMThread {
	return &VMThread{name: name, locals: refstore.NewStore("locals/" + name)}
}

func (t *VMThread) Name() string { return t.name }

// Locals is the thread's native handle area. Entries are strong roots for
// as long as the thread lives.
func (t *VMThread) Locals() *refstore.Store { return t.locals }

func (t *VMThread) PushFrame(f *Frame) {
	t.mu.Lock()
	t.frames = append(t.frames, f)
	t.mu.Unlock()
}

func (t *VMThread) PopFrame() *Frame {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.frames) == 0 {
		return nil
	}
	f := t.frames[len(t.frames)-1]
	t.frames = t.frames[:len(t.frames)-1]
	return f
}

func (t *VMThread) Depth() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.frames)
}

// claim marks the thread as scanned under token. A serial pass overwrites
// the mark unconditionally; parallel workers race through a CAS and exactly
// one of them wins.
func (t *VMThread) claim(token uint64, parallel bool) bool {
	if !parallel {
		t.claimToken.Store(token)
		return true
	}
	for {
		old := t.claimToken.Load()
		if old == token {
			return false
		}
		if t.claimToken.CompareAndSwap(old, token) {
			return true
		}
	}
}

// VisitRoots scans the thread: every frame slot from the top of the stack
// down, blobs pinned by compiled frames when bv is non-nil, and the local
// handle area.
func (t *VMThread) VisitRoots(v heap.RefVisitor, bv codecache.BlobVisitor) {
	t.mu.Lock()
	frames := append([]*Frame(nil), t.frames...)
	t.mu.Unlock()

	for i := len(frames) - 1; i >= 0; i-- {
		f := frames[i]
		f.visitRefs(v)
		if f.blob != nil && bv != nil {
			bv.VisitBlob(f.blob)
		}
	}
	t.locals.VisitRefs(v)
}
