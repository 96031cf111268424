package gcroots

import (
	"fmt"

	"github.com/grafana/cinder/pkg/heap"
)

// GCStateResetter snapshots the collector's phase state at construction and
// puts it back on Restore, making the enclosed scope transactionally
// neutral with respect to collector-visible state. Restore belongs in a
// defer so it runs on every exit path, panicking closures included.
type GCStateResetter struct {
	collector      Collector
	gcState        heap.GCState
	concurrentWeak bool
}

func NewGCStateResetter(c Collector) *GCStateResetter {
	return &GCStateResetter{
		collector:      c,
		gcState:        c.GCState(),
		concurrentWeak: c.ConcurrentWeakRootsInProgress(),
	}
}

// Restore writes both captured values back. The phase-state bitmask is
// re-read and checked against the snapshot; a mismatch means something
// inside the scope mutated collector state reentrantly, which is fatal.
func (r *GCStateResetter) Restore() {
	r.collector.SetGCState(r.gcState)
	if got := r.collector.GCState(); got != r.gcState {
		panic(fmt.Sprintf("gcroots: collector state not restored: have %q, want %q", got, r.gcState))
	}
	r.collector.SetConcurrentWeakRootsInProgress(r.concurrentWeak)
}
