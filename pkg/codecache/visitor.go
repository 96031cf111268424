package codecache

import "github.com/grafana/cinder/pkg/heap"

// BlobVisitor is the callback contract for code-cache walks.
type BlobVisitor interface {
	VisitBlob(b *Blob)
}

type BlobVisitorFunc func(b *Blob)

func (f BlobVisitorFunc) VisitBlob(b *Blob) { f(b) }

// BlobRefVisitor lifts a reference visitor to blob granularity. With
// fixRelocations set, a blob whose slots were rewritten gets its embedded
// references patched afterwards; walks that only inspect the graph leave it
// unset.
type BlobRefVisitor struct {
	visitor        heap.RefVisitor
	fixRelocations bool
}

func NewBlobRefVisitor(v heap.RefVisitor, fixRelocations bool) *BlobRefVisitor {
	return &BlobRefVisitor{visitor: v, fixRelocations: fixRelocations}
}

func (bv *BlobRefVisitor) VisitBlob(b *Blob) {
	if b.VisitRefs(bv.visitor) && bv.fixRelocations {
		b.fixRelocations()
	}
}
