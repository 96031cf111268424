// Package classloader tracks per-loader metadata and the graph connecting
// it. Every loader owns a handful of reference slots (the loader object
// itself and the class mirrors it created); the graph hands those slots to
// root walks. Walks claim loaders with a CAS tag so that cooperating workers
// visit each loader at most once per claim cycle.
package classloader

import (
	"sync"

	"go.uber.org/atomic"

	"github.com/grafana/cinder/pkg/heap"
	"github.com/grafana/cinder/pkg/util"
)

// ClaimTag selects the claiming discipline of a walk. Tags are bits: a
// loader already carrying every bit of the tag rejects the claim.
type ClaimTag uint32

const (
	// ClaimNone visits without claiming. Repeated walks see every loader.
	ClaimNone ClaimTag = 0

	ClaimFinalizable ClaimTag = 1 << iota
	ClaimStrong
)

// LoaderData is the metadata record of one class loader. The next pointer
// is immutable after the record is published to the graph.
type LoaderData struct {
	name      string
	keepAlive atomic.Bool
	claim     atomic.Uint32
	refs      []atomic.Uint64
	next      *LoaderData
}

func (d *LoaderData) Name() string { return d.name }

// KeepAlive reports whether the loader is pinned as a root, which is the
// case while class loading through it is in progress.
func (d *LoaderData) KeepAlive() bool     { return d.keepAlive.Load() }
func (d *LoaderData) SetKeepAlive(v bool) { d.keepAlive.Store(v) }

func (d *LoaderData) NumRefs() int                 { return len(d.refs) }
func (d *LoaderData) RefAt(i int) heap.Address     { return heap.Address(d.refs[i].Load()) }
func (d *LoaderData) SetRef(i int, a heap.Address) { d.refs[i].Store(uint64(a)) }

// TryClaim attempts to mark the loader with tag. It returns true when the
// caller won the claim (or the tag is ClaimNone, which never claims).
func (d *LoaderData) TryClaim(tag ClaimTag) bool {
	if tag == ClaimNone {
		return true
	}
	for {
		old := d.claim.Load()
		if ClaimTag(old)&tag == tag {
			return false
		}
		if d.claim.CompareAndSwap(old, old|uint32(tag)) {
			return true
		}
	}
}

func (d *LoaderData) clearClaim() { d.claim.Store(uint32(ClaimNone)) }

// VisitRefs applies v to each slot of the loader, publishing rewrites with
// a compare-and-swap so concurrent walkers never tear a slot.
func (d *LoaderData) VisitRefs(v heap.RefVisitor) {
	for i := range d.refs {
		val := heap.Address(d.refs[i].Load())
		slot := val
		v.VisitRef(&slot)
		if slot != val {
			d.refs[i].CompareAndSwap(uint64(val), uint64(slot))
		}
	}
}

// Graph is the prepend-only list of all loader records. Registration and
// unregistration require the exclusivity lock; traversal is lock-free and
// may run concurrently with registration.
type Graph struct {
	lock util.TrackedMutex

	mu   sync.Mutex
	head atomic.Pointer[LoaderData]
	size atomic.Int64
}

func NewGraph() *Graph { return &Graph{} }

// Lock acquires the graph exclusivity lock.
func (g *Graph) Lock() { g.lock.Lock() }

// Unlock releases the graph exclusivity lock.
func (g *Graph) Unlock() { g.lock.Unlock() }

// LockHeld reports whether some goroutine holds the exclusivity lock.
func (g *Graph) LockHeld() bool { return g.lock.Held() }

// Register publishes a new loader record holding the given reference slots.
// New loaders start keep-alive; they stay pinned until class loading
// through them settles.
func (g *Graph) Register(name string, refs ...heap.Address) *LoaderData {
	d := &LoaderData{name: name, refs: make([]atomic.Uint64, len(refs))}
	for i, r := range refs {
		d.refs[i].Store(uint64(r))
	}
	d.keepAlive.Store(true)

	g.mu.Lock()
	d.next = g.head.Load()
	g.head.Store(d)
	g.mu.Unlock()
	g.size.Inc()
	return d
}

func (g *Graph) Count() int { return int(g.size.Load()) }

// ForEach walks loader records newest first until fn returns false.
func (g *Graph) ForEach(fn func(d *LoaderData) bool) {
	for d := g.head.Load(); d != nil; d = d.next {
		if !fn(d) {
			return
		}
	}
}

// ClearClaims resets every loader's claim mark, opening the next claim
// cycle.
func (g *Graph) ClearClaims() {
	g.ForEach(func(d *LoaderData) bool {
		d.clearClaim()
		return true
	})
}

// VisitAll applies v to the slots of every loader the walk claims under
// tag.
func (g *Graph) VisitAll(tag ClaimTag, v heap.RefVisitor) {
	g.visit(tag, v, false)
}

// VisitRoots is the strong variant: only keep-alive loaders are visited,
// the rest are reachable solely through their class objects.
func (g *Graph) VisitRoots(tag ClaimTag, v heap.RefVisitor) {
	g.visit(tag, v, true)
}

func (g *Graph) visit(tag ClaimTag, v heap.RefVisitor, rootsOnly bool) {
	g.ForEach(func(d *LoaderData) bool {
		if rootsOnly && !d.KeepAlive() {
			return true
		}
		if d.TryClaim(tag) {
			d.VisitRefs(v)
		}
		return true
	})
}
