package weakproc

import (
	"sync"

	"github.com/grafana/cinder/pkg/heap"
)

// FinalizerQueue holds objects whose finalizers have not run yet. Entries
// are weak: a dead object is dropped from the queue instead of being
// resurrected.
type FinalizerQueue struct {
	mu      sync.Mutex
	pending []heap.Address
}

func NewFinalizerQueue() *FinalizerQueue { return &FinalizerQueue{} }

func (q *FinalizerQueue) Name() string { return "finalizer-queue" }

func (q *FinalizerQueue) Enqueue(a heap.Address) {
	q.mu.Lock()
	q.pending = append(q.pending, a)
	q.mu.Unlock()
}

func (q *FinalizerQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

func (q *FinalizerQueue) VisitWeakRefs(alive LivenessFilter, v heap.RefVisitor) {
	q.mu.Lock()
	defer q.mu.Unlock()
	kept := q.pending[:0]
	for _, a := range q.pending {
		if !alive.IsLive(a) {
			continue
		}
		v.VisitRef(&a)
		kept = append(kept, a)
	}
	q.pending = kept
}

// TagMap associates debugger tags with objects without keeping them alive.
// When a visitor relocates an object the entry is rehashed under the new
// address.
type TagMap struct {
	mu   sync.Mutex
	tags map[heap.Address]int64
}

func NewTagMap() *TagMap { return &TagMap{tags: make(map[heap.Address]int64)} }

func (m *TagMap) Name() string { return "debugger-tag-map" }

func (m *TagMap) SetTag(a heap.Address, tag int64) {
	m.mu.Lock()
	m.tags[a] = tag
	m.mu.Unlock()
}

func (m *TagMap) Tag(a heap.Address) (int64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tag, ok := m.tags[a]
	return tag, ok
}

func (m *TagMap) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tags)
}

func (m *TagMap) VisitWeakRefs(alive LivenessFilter, v heap.RefVisitor) {
	m.mu.Lock()
	defer m.mu.Unlock()
	moved := make(map[heap.Address]int64)
	for a, tag := range m.tags {
		if !alive.IsLive(a) {
			delete(m.tags, a)
			continue
		}
		slot := a
		v.VisitRef(&slot)
		if slot != a {
			delete(m.tags, a)
			moved[slot] = tag
		}
	}
	for a, tag := range moved {
		m.tags[a] = tag
	}
}
