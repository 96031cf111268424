package codecache

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/grafana/cinder/pkg/heap"
)

func TestBlobRefs(t *testing.T) {
	b := NewBlob("nmethod compute", 0x7000, 256, 0x1000, 0x2000)
	require.Equal(t, 2, b.NumRefs())
	require.Equal(t, heap.Address(0x1000), b.RefAt(0))
	b.SetRef(0, 0x3000)
	require.Equal(t, heap.Address(0x3000), b.RefAt(0))
	require.True(t, b.Contains(0x7000))
	require.True(t, b.Contains(0x70FF))
	require.False(t, b.Contains(0x7100))
}

func TestBlobRefVisitor(t *testing.T) {
	rewrite := heap.RefVisitorFunc(func(slot *heap.Address) { *slot += 8 })
	inspect := heap.RefVisitorFunc(func(slot *heap.Address) {})

	b := NewBlob("nmethod compute", 0x7000, 256, 0x1000, 0x2000)
	NewBlobRefVisitor(inspect, false).VisitBlob(b)
	require.Equal(t, heap.Address(0x1000), b.RefAt(0))
	require.Equal(t, 0, b.Relocations())

	NewBlobRefVisitor(rewrite, false).VisitBlob(b)
	require.Equal(t, heap.Address(0x1008), b.RefAt(0))
	require.Equal(t, 0, b.Relocations())

	NewBlobRefVisitor(rewrite, true).VisitBlob(b)
	require.Equal(t, heap.Address(0x1010), b.RefAt(0))
	require.Equal(t, heap.Address(0x2010), b.RefAt(1))
	require.Equal(t, 1, b.Relocations())

	NewBlobRefVisitor(inspect, true).VisitBlob(b)
	require.Equal(t, 1, b.Relocations())
}

func TestCacheVisitBlobs(t *testing.T) {
	c := NewCache()
	c.Add(NewBlob("stub call", 0x7000, 64))
	c.Add(NewBlob("nmethod compute", 0x7100, 128, 0x1000))
	c.Add(NewBlob("nmethod render", 0x7200, 128, 0x2000))
	require.Equal(t, 3, c.Count())

	var names []string
	c.VisitBlobs(BlobVisitorFunc(func(b *Blob) { names = append(names, b.Name()) }))
	require.Equal(t, []string{"stub call", "nmethod compute", "nmethod render"}, names)
}

func TestCacheFindBlob(t *testing.T) {
	c := NewCache()
	b := NewBlob("nmethod compute", 0x7100, 128)
	c.Add(b)
	require.Same(t, b, c.FindBlob(0x7140))
	require.Nil(t, c.FindBlob(0x9000))
}

func TestCacheLockHeld(t *testing.T) {
	c := NewCache()
	require.False(t, c.LockHeld())
	c.Lock()
	require.True(t, c.LockHeld())
	c.Unlock()
	require.False(t, c.LockHeld())
}
