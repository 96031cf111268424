package gcroots

import (
	"github.com/grafana/cinder/pkg/classloader"
	"github.com/grafana/cinder/pkg/codecache"
	"github.com/grafana/cinder/pkg/heap"
	"github.com/grafana/cinder/pkg/iter"
	"github.com/grafana/cinder/pkg/refstore"
	"github.com/grafana/cinder/pkg/weakproc"
)

// Collector is the slice of collector state the verifier snapshots,
// restores, and gates preconditions on. *heap.Heap satisfies it.
type Collector interface {
	GCState() heap.GCState
	SetGCState(s heap.GCState)
	ConcurrentWeakRootsInProgress() bool
	SetConcurrentWeakRootsInProgress(v bool)
	AtSafepoint() bool
}

// CodeCache walks compiled-code roots. Exclusivity is asserted by the
// verifier, not by the cache.
type CodeCache interface {
	LockHeld() bool
	VisitBlobs(bv codecache.BlobVisitor)
}

// ClassLoaderGraph walks loader metadata roots, either every loader or only
// the ones registered as GC roots.
type ClassLoaderGraph interface {
	LockHeld() bool
	VisitAll(tag classloader.ClaimTag, v heap.RefVisitor)
	VisitRoots(tag classloader.ClaimTag, v heap.RefVisitor)
}

// HandleArea is a flat set of strong reference slots. The native-interface
// handle table and the VM-global storage both satisfy it.
type HandleArea interface {
	VisitRefs(v heap.RefVisitor)
}

// WeakProcessor exposes the weak-root engine: the fixed serial phase list
// and the full stop-the-world walk.
type WeakProcessor interface {
	Phases() []weakproc.Phase
	VisitAll(alive weakproc.LivenessFilter, v heap.RefVisitor)
}

// WeakStorageSet enumerates the registered weak storages. Walking a storage
// from this iterator is safe with mutators running.
type WeakStorageSet interface {
	Weak() iter.Iterator[*refstore.Store]
}

// StringDedup reports whether deduplication is on and walks the table's
// canonical slots.
type StringDedup interface {
	Enabled() bool
	VisitRefs(v heap.RefVisitor)
}

// ThreadRegistry scans thread roots and owns the claim epoch the parallel
// scan deduplicates against.
type ThreadRegistry interface {
	AdvanceClaimToken() uint64
	VisitThreadRoots(parallel bool, v heap.RefVisitor, bv codecache.BlobVisitor)
}

// RootSources bundles every root-bearing collaborator of the runtime. All
// fields are required; the verifier does not tolerate absent subsystems.
type RootSources struct {
	CodeCache    CodeCache
	Loaders      ClassLoaderGraph
	Handles      HandleArea
	VMGlobal     HandleArea
	Weak         WeakProcessor
	WeakStorages WeakStorageSet
	Dedup        StringDedup
	Threads      ThreadRegistry
}

func (s *RootSources) validate() {
	switch {
	case s.CodeCache == nil:
		panic("gcroots: RootSources.CodeCache is nil")
	case s.Loaders == nil:
		panic("gcroots: RootSources.Loaders is nil")
	case s.Handles == nil:
		panic("gcroots: RootSources.Handles is nil")
	case s.VMGlobal == nil:
		panic("gcroots: RootSources.VMGlobal is nil")
	case s.Weak == nil:
		panic("gcroots: RootSources.Weak is nil")
	case s.WeakStorages == nil:
		panic("gcroots: RootSources.WeakStorages is nil")
	case s.Dedup == nil:
		panic("gcroots: RootSources.Dedup is nil")
	case s.Threads == nil:
		panic("gcroots: RootSources.Threads is nil")
	}
}
