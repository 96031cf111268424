package classloader

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/grafana/cinder/pkg/heap"
)

func collectRefs(g *Graph, tag ClaimTag) []heap.Address {
	var got []heap.Address
	g.VisitAll(tag, heap.RefVisitorFunc(func(slot *heap.Address) {
		got = append(got, *slot)
	}))
	return got
}

func TestRegisterAndVisit(t *testing.T) {
	g := NewGraph()
	g.Register("boot", 0x1000)
	g.Register("platform", 0x2000)
	g.Register("app", 0x3000, 0x3008)
	require.Equal(t, 3, g.Count())

	// Newest first.
	require.Equal(t, []heap.Address{0x3000, 0x3008, 0x2000, 0x1000}, collectRefs(g, ClaimNone))
}

func TestForEachStopsEarly(t *testing.T) {
	g := NewGraph()
	g.Register("boot")
	g.Register("app")
	var seen []string
	g.ForEach(func(d *LoaderData) bool {
		seen = append(seen, d.Name())
		return false
	})
	require.Equal(t, []string{"app"}, seen)
}

func TestClaimNoneNeverClaims(t *testing.T) {
	g := NewGraph()
	g.Register("boot", 0x1000)
	require.Len(t, collectRefs(g, ClaimNone), 1)
	require.Len(t, collectRefs(g, ClaimNone), 1)
}

func TestClaimStrongVisitsOncePerCycle(t *testing.T) {
	g := NewGraph()
	g.Register("boot", 0x1000)
	g.Register("app", 0x2000)

	require.Len(t, collectRefs(g, ClaimStrong), 2)
	require.Empty(t, collectRefs(g, ClaimStrong))

	g.ClearClaims()
	require.Len(t, collectRefs(g, ClaimStrong), 2)
}

func TestClaimTagsAreIndependent(t *testing.T) {
	d := &LoaderData{}
	require.True(t, d.TryClaim(ClaimFinalizable))
	require.True(t, d.TryClaim(ClaimStrong))
	require.False(t, d.TryClaim(ClaimStrong))
	require.False(t, d.TryClaim(ClaimFinalizable|ClaimStrong))
}

func TestVisitRootsSkipsUnpinnedLoaders(t *testing.T) {
	g := NewGraph()
	g.Register("boot", 0x1000)
	app := g.Register("app", 0x2000)
	app.SetKeepAlive(false)

	var got []heap.Address
	g.VisitRoots(ClaimNone, heap.RefVisitorFunc(func(slot *heap.Address) {
		got = append(got, *slot)
	}))
	require.Equal(t, []heap.Address{0x1000}, got)
}

func TestVisitorRewrite(t *testing.T) {
	g := NewGraph()
	d := g.Register("app", 0x2000)
	g.VisitAll(ClaimNone, heap.RefVisitorFunc(func(slot *heap.Address) { *slot += 8 }))
	require.Equal(t, heap.Address(0x2008), d.RefAt(0))
}

// Cooperating workers walking with the same tag must partition the graph:
// every loader claimed by exactly one of them.
func TestParallelClaiming(t *testing.T) {
	g := NewGraph()
	for i := 0; i < 64; i++ {
		g.Register("loader", heap.Address(0x1000+8*i))
	}

	var mu sync.Mutex
	total := 0
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n := len(collectRefs(g, ClaimStrong))
			mu.Lock()
			total += n
			mu.Unlock()
		}()
	}
	wg.Wait()
	require.Equal(t, 64, total)
}

func TestLockHeld(t *testing.T) {
	g := NewGraph()
	require.False(t, g.LockHeld())
	g.Lock()
	require.True(t, g.LockHeld())
	g.Unlock()
	require.False(t, g.LockHeld())
}
