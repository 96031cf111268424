package heap

// RegionState describes how a region is currently used.
type RegionState uint8

const (
	RegionEmpty RegionState = iota
	RegionRegular
	RegionHumongousStart
	RegionHumongousCont
)

func (s RegionState) String() string {
	switch s {
	case RegionEmpty:
		return "empty"
	case RegionRegular:
		return "regular"
	case RegionHumongousStart:
		return "humongous-start"
	case RegionHumongousCont:
		return "humongous-cont"
	default:
		return "unknown"
	}
}

// Region is a fixed-size slice of the heap's address space. Allocation within
// a region is a bump of top; top and state are guarded by the heap's
// allocation lock.
type Region struct {
	index int
	base  Address
	size  uint64

	top   uint64
	state RegionState
}

func (r *Region) Index() int         { return r.index }
func (r *Region) Base() Address      { return r.base }
func (r *Region) Size() uint64       { return r.size }
func (r *Region) End() Address       { return r.base + Address(r.size) }
func (r *Region) State() RegionState { return r.state }

// Used reports the number of bytes allocated in the region.
func (r *Region) Used() uint64 { return r.top }

// Free reports the number of bytes still available for bump allocation.
func (r *Region) Free() uint64 { return r.size - r.top }
