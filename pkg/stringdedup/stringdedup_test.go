package stringdedup

import (
	"flag"
	"fmt"
	"testing"

	"github.com/cespare/xxhash/v2"
	"github.com/go-kit/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/grafana/cinder/pkg/heap"
)

func enabledTable(t *testing.T) *Table {
	t.Helper()
	return NewTable(Config{Enabled: true}, prometheus.NewRegistry(), log.NewNopLogger())
}

func TestConfigDefaults(t *testing.T) {
	var cfg Config
	fs := flag.NewFlagSet("test", flag.PanicOnError)
	cfg.RegisterFlags(fs)
	require.NoError(t, fs.Parse(nil))
	require.False(t, cfg.Enabled)
}

func TestDeduplicate(t *testing.T) {
	tab := enabledTable(t)
	first := tab.Deduplicate(0x1000, []byte("hello"))
	require.Equal(t, heap.Address(0x1000), first)

	again := tab.Deduplicate(0x2000, []byte("hello"))
	require.Equal(t, heap.Address(0x1000), again)

	other := tab.Deduplicate(0x3000, []byte("world"))
	require.Equal(t, heap.Address(0x3000), other)
	require.Equal(t, 2, tab.Count())
}

func TestDisabledTableIsInert(t *testing.T) {
	tab := NewTable(Config{}, prometheus.NewRegistry(), log.NewNopLogger())
	require.False(t, tab.Enabled())
	require.Equal(t, heap.Address(0x2000), tab.Deduplicate(0x2000, []byte("hello")))
	require.Zero(t, tab.Count())
}

func TestVisitRefsExactlyOnce(t *testing.T) {
	tab := enabledTable(t)
	for i := 0; i < 100; i++ {
		tab.Deduplicate(heap.Address(0x1000+8*i), []byte(fmt.Sprintf("payload-%d", i)))
	}
	seen := map[heap.Address]int{}
	tab.VisitRefs(heap.RefVisitorFunc(func(slot *heap.Address) {
		seen[*slot]++
	}))
	require.Len(t, seen, 100)
	for addr, n := range seen {
		require.Equalf(t, 1, n, "slot %#x visited %d times", addr, n)
	}
}

// Distinct payloads can land on one hash. Lookups and root walks must then
// traverse the whole bucket chain, not just its head.
func TestCollisionChains(t *testing.T) {
	tab := enabledTable(t)

	// Build the chain a collision would leave behind: the colliding entry
	// heads the bucket, the earlier one sits behind it.
	h := xxhash.Sum64([]byte("interned"))
	old := &entry{hash: h, payload: []byte("interned")}
	old.ref.Store(0x1000)
	head := &entry{hash: h, payload: []byte("collider"), next: old}
	head.ref.Store(0x2000)
	tab.entries.Put(h, head)
	require.Equal(t, 2, tab.Count())

	// Resolution walks past the bucket head to the matching payload.
	require.Equal(t, heap.Address(0x1000), tab.Deduplicate(0x3000, []byte("interned")))

	seen := map[heap.Address]int{}
	tab.VisitRefs(heap.RefVisitorFunc(func(slot *heap.Address) {
		seen[*slot]++
	}))
	require.Equal(t, map[heap.Address]int{0x1000: 1, 0x2000: 1}, seen)
}

func TestVisitorRelocatesCanonical(t *testing.T) {
	tab := enabledTable(t)
	tab.Deduplicate(0x1000, []byte("hello"))
	tab.VisitRefs(heap.RefVisitorFunc(func(slot *heap.Address) {
		*slot = 0x9000
	}))
	require.Equal(t, heap.Address(0x9000), tab.Deduplicate(0x2000, []byte("hello")))
}
