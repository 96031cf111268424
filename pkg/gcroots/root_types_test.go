package gcroots

import (
	"math/bits"
	"testing"

	"github.com/stretchr/testify/require"
)

func categories() []Types {
	out := make([]Types, 0, len(typeNames))
	for _, n := range typeNames {
		out = append(out, n.t)
	}
	return out
}

func TestCombineLaws(t *testing.T) {
	for _, a := range categories() {
		for _, b := range categories() {
			require.Equal(t, Combine(a, b), Combine(b, a))
			for _, c := range categories() {
				require.Equal(t, Combine(a, Combine(b, c)), Combine(Combine(a, b), c))
			}
		}
		require.Equal(t, a, Combine(a, a))
	}
	require.Equal(t, AllRoots, Combine(AllRoots, AllRoots))
}

func TestContainsExactSubset(t *testing.T) {
	for _, c := range categories() {
		require.Truef(t, AllRoots.Contains(c), "AllRoots misses %s", c)
	}

	scope := Combine(CodeCacheRoots, ThreadRoots)
	require.True(t, scope.Contains(CodeCacheRoots))
	require.True(t, scope.Contains(scope))
	require.False(t, scope.Contains(JNIHandleRoots))
	require.False(t, scope.Contains(Combine(CodeCacheRoots, JNIHandleRoots)))

	// The weak disciplines are distinct categories; holding the narrow pair
	// does not imply the stop-the-world category.
	require.False(t, WeakRoots.Contains(SerialWeakRoots))
	require.False(t, WeakRoots.Contains(ConcurrentWeakRoots))
	require.False(t, SerialWeakRoots.Contains(WeakRoots))
	require.False(t, Combine(SerialWeakRoots, ConcurrentWeakRoots).Contains(WeakRoots))
	require.True(t, Combine(WeakRoots, SerialWeakRoots).Contains(WeakRoots))
}

// The union of all defined categories must leave headroom in the mask, or
// the next category added silently wraps.
func TestCategoryUnionFitsMask(t *testing.T) {
	var union Types
	for _, c := range categories() {
		union = Combine(union, c)
	}
	require.Equal(t, AllRoots, union)
	require.LessOrEqual(t, bits.Len16(uint16(union)), 16)
	require.Less(t, uint16(union), ^uint16(0))
}

func TestTypesString(t *testing.T) {
	require.Equal(t, "none", Types(0).String())
	require.Equal(t, "threads", ThreadRoots.String())
	require.Equal(t, "weak", WeakRoots.String())
	require.Equal(t, "serial-weak|concurrent-weak", Combine(SerialWeakRoots, ConcurrentWeakRoots).String())
	require.Equal(t, "code-cache|jni", Combine(CodeCacheRoots, JNIHandleRoots).String())
	require.Equal(t,
		"serial|threads|code-cache|class-loader|weak|serial-weak|concurrent-weak|jni|string-dedup",
		AllRoots.String())
}
