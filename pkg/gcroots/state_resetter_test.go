package gcroots

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/grafana/cinder/pkg/heap"
)

func TestResetterRestoresBothFields(t *testing.T) {
	c := &fakeCollector{state: heap.StateMarking, weakInProgress: true}
	r := NewGCStateResetter(c)

	c.SetGCState(heap.StateEvacuation | heap.StateHasForwarded)
	c.SetConcurrentWeakRootsInProgress(false)

	r.Restore()
	require.Equal(t, heap.StateMarking, c.state)
	require.True(t, c.weakInProgress)
}

func TestResetterRestoreIsIdempotent(t *testing.T) {
	c := &fakeCollector{state: heap.StateUpdateRefs}
	r := NewGCStateResetter(c)
	r.Restore()
	r.Restore()
	require.Equal(t, heap.StateUpdateRefs, c.state)
}

// A collector that silently drops the write-back means the scope leaked a
// reentrant mutation; that must be fatal, not logged.
func TestResetterPanicsWhenStateCannotBeRestored(t *testing.T) {
	c := &fakeCollector{state: heap.StateMarking}
	r := NewGCStateResetter(c)
	c.dropWrites = true
	c.state = heap.StateEvacuation
	require.Panics(t, func() { r.Restore() })
}
