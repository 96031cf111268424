package heap

import "strings"

// GCState is the collector's global phase-state bitmask. Mutator barriers and
// root scans key their behavior off these bits, so the set visible at any
// point in time must describe the phase the collector is actually in.
type GCState uint32

const (
	// StateHasForwarded is set when the heap may hold forwarded objects.
	StateHasForwarded GCState = 1 << iota
	// StateMarking is set for the duration of concurrent marking.
	StateMarking
	// StateEvacuation is set while objects are being evacuated out of
	// collection-set regions.
	StateEvacuation
	// StateUpdateRefs is set while references to evacuated objects are
	// being rewritten.
	StateUpdateRefs
	// StateWeakRoots is set while weak roots are processed.
	StateWeakRoots
)

// StateStable is the quiescent state between cycles.
const StateStable GCState = 0

var stateNames = []struct {
	bit  GCState
	name string
}{
	{StateHasForwarded, "has-forwarded"},
	{StateMarking, "marking"},
	{StateEvacuation, "evacuation"},
	{StateUpdateRefs, "update-refs"},
	{StateWeakRoots, "weak-roots"},
}

func (s GCState) String() string {
	if s == StateStable {
		return "stable"
	}
	var parts []string
	for _, n := range stateNames {
		if s&n.bit != 0 {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}

// Has reports whether every bit of m is set in s.
func (s GCState) Has(m GCState) bool { return s&m == m }
