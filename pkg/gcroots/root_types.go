package gcroots

import "strings"

// Types is a bitmask of root categories, one bit per category. A set is
// queried with exact-subset semantics: a multi-bit value built with Combine
// matches only when every one of its bits is present.
type Types uint16

const (
	SerialRoots Types = 1 << iota
	ThreadRoots
	CodeCacheRoots
	ClassLoaderDataRoots

	// WeakRoots selects the full stop-the-world weak walk. When a scope
	// carries it alongside the narrower weak disciplines it wins, which
	// keeps the three weak strategies mutually exclusive within one pass.
	WeakRoots
	SerialWeakRoots
	ConcurrentWeakRoots
	JNIHandleRoots
	StringDedupRoots

	AllRoots = SerialRoots | ThreadRoots | CodeCacheRoots | ClassLoaderDataRoots |
		WeakRoots | SerialWeakRoots | ConcurrentWeakRoots | JNIHandleRoots | StringDedupRoots
)

// Adding a category beyond the width of Types must fail the build, not
// corrupt the mask.
const _ Types = AllRoots + 1

// Combine unions two scopes.
func Combine(a, b Types) Types { return a | b }

// Contains reports whether every bit of sub is present in t.
func (t Types) Contains(sub Types) bool { return t&sub == sub }

var typeNames = []struct {
	t    Types
	name string
}{
	{SerialRoots, "serial"},
	{ThreadRoots, "threads"},
	{CodeCacheRoots, "code-cache"},
	{ClassLoaderDataRoots, "class-loader"},
	{WeakRoots, "weak"},
	{SerialWeakRoots, "serial-weak"},
	{ConcurrentWeakRoots, "concurrent-weak"},
	{JNIHandleRoots, "jni"},
	{StringDedupRoots, "string-dedup"},
}

func (t Types) String() string {
	if t == 0 {
		return "none"
	}
	parts := make([]string, 0, len(typeNames))
	for _, n := range typeNames {
		if t.Contains(n.t) {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}
