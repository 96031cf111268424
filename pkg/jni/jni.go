// Package jni models the native-interface handle areas. Global refs pin
// their target for the lifetime of the handle and are strong roots; weak
// global refs go through weak-root processing and may be cleared when the
// target dies.
package jni

import (
	"github.com/grafana/cinder/pkg/heap"
	"github.com/grafana/cinder/pkg/refstore"
)

type Handles struct {
	global     *refstore.Store
	weakGlobal *refstore.Store
}

// NewHandles registers the two handle areas with the storage set. The weak
// area is registered weak, so weak-root walks pick it up without knowing
// about this package.
func NewHandles(set *refstore.Set) *Handles {
	return &Handles{
		global:     set.CreateStrong("jni-global"),
		weakGlobal: set.CreateWeak("jni-weak-global"),
	}
}

func (h *Handles) NewGlobalRef(a heap.Address) *refstore.Handle {
	return h.global.Allocate(a)
}

func (h *Handles) DeleteGlobalRef(ref *refstore.Handle) {
	if ref.Store() != h.global {
		panic("jni: handle is not a global ref")
	}
	ref.Release()
}

func (h *Handles) NewWeakGlobalRef(a heap.Address) *refstore.Handle {
	return h.weakGlobal.Allocate(a)
}

func (h *Handles) DeleteWeakGlobalRef(ref *refstore.Handle) {
	if ref.Store() != h.weakGlobal {
		panic("jni: handle is not a weak global ref")
	}
	ref.Release()
}

// Resolve reads through a handle. A cleared weak ref resolves to the null
// address.
func (h *Handles) Resolve(ref *refstore.Handle) heap.Address {
	return ref.Get()
}

// VisitRefs walks the strong handle area only. Weak globals are reached
// through weak-root processing, never through this walk.
func (h *Handles) VisitRefs(v heap.RefVisitor) {
	h.global.VisitRefs(v)
}

func (h *Handles) GlobalCount() int     { return h.global.Count() }
func (h *Handles) WeakGlobalCount() int { return h.weakGlobal.Count() }
