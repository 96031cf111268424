// Package refstore provides named storages of reference slots for roots that
// live outside thread stacks: native handles, VM-global references, and the
// weak tables processed by the weak-root engine. Slots are allocated in
// fixed-size blocks with an atomic occupancy mask, so a storage can be
// iterated while mutator threads keep inserting and releasing entries. That
// property is what the concurrent weak-root regime relies on; no global
// synchronization is required to walk a storage.
package refstore

import (
	"math/bits"
	"sync"

	"github.com/colega/zeropool"
	"go.uber.org/atomic"

	"github.com/grafana/cinder/pkg/heap"
)

const slotsPerBlock = 64

type block struct {
	slots [slotsPerBlock]atomic.Uint64
	used  atomic.Uint64
}

var blockSnapshots = zeropool.New(func() []*block { return make([]*block, 0, 8) })

// Store is a growable set of reference slots. Allocate and Release are
// serialized by the store lock; VisitRefs runs lock-free over a snapshot of
// the block list and tolerates concurrent mutation.
type Store struct {
	name string
	weak bool

	mu        sync.Mutex
	blocks    []*block
	allocHint int

	count atomic.Int64
}

func newStore(name string, weak bool) *Store {
	return &Store{name: name, weak: weak}
}

// NewStore creates a standalone strong storage that is not registered with
// any Set. Thread-local handle areas use this; they are reached through the
// owning thread, not through the storage set.
func NewStore(name string) *Store { return newStore(name, false) }

func (st *Store) Name() string { return st.name }

// Weak reports whether the store holds weak references, i.e. entries that do
// not keep their target alive on their own.
func (st *Store) Weak() bool { return st.weak }

// Count returns the number of live entries.
func (st *Store) Count() int { return int(st.count.Load()) }

// Handle designates one allocated slot. The holder uses it to read, update
// and eventually release the entry.
type Handle struct {
	store *Store
	block *block
	index int
}

// Store returns the storage the handle was allocated from.
func (h *Handle) Store() *Store { return h.store }

// Get atomically reads the referenced address.
func (h *Handle) Get() heap.Address { return heap.Address(h.block.slots[h.index].Load()) }

// Set atomically replaces the referenced address.
func (h *Handle) Set(a heap.Address) { h.block.slots[h.index].Store(uint64(a)) }

// Release returns the slot to the store. Releasing a slot twice is a
// programming error and panics.
func (h *Handle) Release() {
	st := h.store
	bit := uint64(1) << uint(h.index)
	st.mu.Lock()
	if h.block.used.Load()&bit == 0 {
		st.mu.Unlock()
		panic("refstore: double release of slot in store " + st.name)
	}
	h.block.used.Store(h.block.used.Load() &^ bit)
	st.mu.Unlock()
	st.count.Dec()
}

// Allocate reserves a slot holding ref. The slot value is published before
// the occupancy bit, so a concurrent VisitRefs never observes an
// uninitialized cell.
func (st *Store) Allocate(ref heap.Address) *Handle {
	st.mu.Lock()
	b, i := st.freeSlot()
	b.slots[i].Store(uint64(ref))
	b.used.Store(b.used.Load() | uint64(1)<<uint(i))
	st.mu.Unlock()
	st.count.Inc()
	return &Handle{store: st, block: b, index: i}
}

// freeSlot finds an unoccupied slot, growing the block list when every
// existing block is full. Caller holds st.mu.
func (st *Store) freeSlot() (*block, int) {
	for scanned := 0; scanned < len(st.blocks); scanned++ {
		if st.allocHint >= len(st.blocks) {
			st.allocHint = 0
		}
		b := st.blocks[st.allocHint]
		used := b.used.Load()
		if used != ^uint64(0) {
			return b, bits.TrailingZeros64(^used)
		}
		st.allocHint++
	}
	b := &block{}
	st.blocks = append(st.blocks, b)
	st.allocHint = len(st.blocks) - 1
	return b, 0
}

// VisitRefs applies v to every live entry. Entries inserted or released
// while the walk is in progress may or may not be seen; entries present for
// the whole walk are visited exactly once. A visitor that rewrites the slot
// has its update published unless the slot was concurrently released.
func (st *Store) VisitRefs(v heap.RefVisitor) {
	buf := blockSnapshots.Get()
	st.mu.Lock()
	buf = append(buf[:0], st.blocks...)
	st.mu.Unlock()

	for _, b := range buf {
		for m := b.used.Load(); m != 0; m &= m - 1 {
			i := bits.TrailingZeros64(m)
			val := heap.Address(b.slots[i].Load())
			slot := val
			v.VisitRef(&slot)
			if slot != val {
				b.slots[i].CompareAndSwap(uint64(val), uint64(slot))
			}
		}
	}
	blockSnapshots.Put(buf[:0])
}
