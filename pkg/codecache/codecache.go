// Package codecache models the runtime's store of compiled code. Each blob
// carries the heap references embedded in its instruction stream; those
// slots are GC roots and are walked either directly through the cache or
// through the compiled frames of running threads.
package codecache

import (
	"sync"

	"go.uber.org/atomic"

	"github.com/grafana/cinder/pkg/heap"
	"github.com/grafana/cinder/pkg/util"
)

// Blob is one compiled unit. Reference slots are atomic cells because a
// parallel root walk can reach the same blob through frames of different
// threads.
type Blob struct {
	name string
	base heap.Address
	size uint64
	refs []atomic.Uint64

	relocations atomic.Int64
}

func NewBlob(name string, base heap.Address, size uint64, refs ...heap.Address) *Blob {
	b := &Blob{name: name, base: base, size: size, refs: make([]atomic.Uint64, len(refs))}
	for i, r := range refs {
		b.refs[i].Store(uint64(r))
	}
	return b
}

func (b *Blob) Name() string       { return b.name }
func (b *Blob) Base() heap.Address { return b.base }
func (b *Blob) Size() uint64       { return b.size }

func (b *Blob) Contains(a heap.Address) bool {
	return a >= b.base && a < b.base+heap.Address(b.size)
}

func (b *Blob) NumRefs() int { return len(b.refs) }

func (b *Blob) RefAt(i int) heap.Address     { return heap.Address(b.refs[i].Load()) }
func (b *Blob) SetRef(i int, a heap.Address) { b.refs[i].Store(uint64(a)) }

// VisitRefs applies v to every embedded slot and reports whether any slot
// was rewritten. Updates race benignly with other visitors: the slot keeps
// one of the written values.
func (b *Blob) VisitRefs(v heap.RefVisitor) bool {
	changed := false
	for i := range b.refs {
		val := heap.Address(b.refs[i].Load())
		slot := val
		v.VisitRef(&slot)
		if slot != val {
			b.refs[i].CompareAndSwap(uint64(val), uint64(slot))
			changed = true
		}
	}
	return changed
}

// Relocations returns how many times the blob's embedded references were
// patched after a mutating walk.
func (b *Blob) Relocations() int { return int(b.relocations.Load()) }

func (b *Blob) fixRelocations() { b.relocations.Inc() }

// Cache holds every registered blob. The exclusivity lock serializes
// registration against walks that run outside a stop-the-world pause;
// walkers at a pause may iterate without it.
type Cache struct {
	lock util.TrackedMutex

	mu    sync.Mutex
	blobs []*Blob
}

func NewCache() *Cache { return &Cache{} }

// Lock acquires the cache exclusivity lock.
func (c *Cache) Lock() { c.lock.Lock() }

// Unlock releases the cache exclusivity lock.
func (c *Cache) Unlock() { c.lock.Unlock() }

// LockHeld reports whether some goroutine holds the exclusivity lock.
func (c *Cache) LockHeld() bool { return c.lock.Held() }

func (c *Cache) Add(b *Blob) {
	c.mu.Lock()
	c.blobs = append(c.blobs, b)
	c.mu.Unlock()
}

func (c *Cache) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.blobs)
}

// FindBlob returns the blob whose range contains a, or nil.
func (c *Cache) FindBlob(a heap.Address) *Blob {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, b := range c.blobs {
		if b.Contains(a) {
			return b
		}
	}
	return nil
}

// VisitBlobs applies bv to every registered blob.
func (c *Cache) VisitBlobs(bv BlobVisitor) {
	c.mu.Lock()
	blobs := append([]*Blob(nil), c.blobs...)
	c.mu.Unlock()
	for _, b := range blobs {
		bv.VisitBlob(b)
	}
}
