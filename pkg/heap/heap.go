// Package heap models the collector-visible side of a concurrent,
// region-based garbage collector: the phase-state bitmask, the safepoint
// flag, and a region table with bump allocation. Root containers and the
// verification engine treat the Heap as the single handle to collector
// state; none of them reach for process-wide singletons.
package heap

import (
	"flag"
	"fmt"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/grafana/dskit/multierror"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/atomic"
)

// heapBase keeps object addresses away from small integers so that stray
// indices do not alias valid references in tests.
const heapBase Address = 0x_4000_0000

const allocAlignment = 8

// ErrOutOfMemory is returned when no region can satisfy an allocation.
var ErrOutOfMemory = errors.New("heap: out of memory")

type Config struct {
	Size       uint64 `yaml:"size_bytes"`
	RegionSize uint64 `yaml:"region_size_bytes"`
}

func (cfg *Config) RegisterFlags(f *flag.FlagSet) {
	f.Uint64Var(&cfg.Size, "heap.size-bytes", 64<<20, "Committed heap size in bytes.")
	f.Uint64Var(&cfg.RegionSize, "heap.region-size-bytes", 1<<20, "Region size in bytes. Must be a power of two.")
}

func (cfg *Config) Validate() error {
	errs := multierror.New()
	if cfg.RegionSize == 0 || cfg.RegionSize&(cfg.RegionSize-1) != 0 {
		errs.Add(fmt.Errorf("heap.region-size-bytes must be a power of two, got %d", cfg.RegionSize))
	}
	if cfg.RegionSize < 64<<10 {
		errs.Add(fmt.Errorf("heap.region-size-bytes must be at least 64KiB, got %d", cfg.RegionSize))
	}
	if cfg.Size == 0 || cfg.RegionSize == 0 || cfg.Size%cfg.RegionSize != 0 {
		errs.Add(fmt.Errorf("heap.size-bytes (%d) must be a multiple of the region size (%d)", cfg.Size, cfg.RegionSize))
	}
	return errs.Err()
}

// Heap is the collector instance. All cross-thread state (phase bitmask,
// safepoint, weak-root flag) is atomic; the region table and object map are
// guarded by the allocation lock.
type Heap struct {
	logger log.Logger
	cfg    Config

	regions []*Region

	allocMu     sync.Mutex
	objects     map[Address]*Object
	allocRegion int

	gcState        atomic.Uint32
	concurrentWeak atomic.Bool
	safepoint      atomic.Bool

	usedBytes   atomic.Uint64
	objectCount atomic.Int64
}

func New(cfg Config, reg prometheus.Registerer, logger log.Logger) (*Heap, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid heap config")
	}
	if logger == nil {
		logger = log.NewNopLogger()
	}
	n := int(cfg.Size / cfg.RegionSize)
	h := &Heap{
		logger:  logger,
		cfg:     cfg,
		regions: make([]*Region, n),
		objects: make(map[Address]*Object),
	}
	for i := 0; i < n; i++ {
		h.regions[i] = &Region{
			index: i,
			base:  heapBase + Address(uint64(i)*cfg.RegionSize),
			size:  cfg.RegionSize,
		}
	}
	if reg != nil {
		reg.MustRegister(newStatsCollector(h))
	}
	level.Info(logger).Log(
		"msg", "initialized heap",
		"size", humanize.IBytes(cfg.Size),
		"regions", n,
		"region_size", humanize.IBytes(cfg.RegionSize),
	)
	return h, nil
}

// GCState returns the current phase-state bitmask.
func (h *Heap) GCState() GCState { return GCState(h.gcState.Load()) }

// SetGCState replaces the phase-state bitmask wholesale. Used by the phase
// driver at phase boundaries and by the verification state guard on restore.
func (h *Heap) SetGCState(s GCState) {
	old := GCState(h.gcState.Swap(uint32(s)))
	if old != s {
		level.Debug(h.logger).Log("msg", "gc state", "from", old, "to", s)
	}
}

// SetStateBits sets or clears the given bits in the phase-state bitmask.
func (h *Heap) SetStateBits(bits GCState, on bool) {
	for {
		old := h.gcState.Load()
		var next uint32
		if on {
			next = old | uint32(bits)
		} else {
			next = old &^ uint32(bits)
		}
		if old == next || h.gcState.CompareAndSwap(old, next) {
			if old != next {
				level.Debug(h.logger).Log("msg", "gc state", "from", GCState(old), "to", GCState(next))
			}
			return
		}
	}
}

// ConcurrentWeakRootsInProgress reports whether a concurrent weak-root
// processing phase is underway. Tracked separately from the phase bitmask;
// the two are captured and restored independently by the verification guard.
func (h *Heap) ConcurrentWeakRootsInProgress() bool { return h.concurrentWeak.Load() }

func (h *Heap) SetConcurrentWeakRootsInProgress(v bool) { h.concurrentWeak.Store(v) }

// BeginSafepoint marks the world as stopped. The phase driver is responsible
// for actually parking mutator threads before calling this; the heap only
// tracks the flag that safepoint-gated operations assert on.
func (h *Heap) BeginSafepoint() {
	h.safepoint.Store(true)
	level.Debug(h.logger).Log("msg", "safepoint begin")
}

func (h *Heap) EndSafepoint() {
	h.safepoint.Store(false)
	level.Debug(h.logger).Log("msg", "safepoint end")
}

func (h *Heap) AtSafepoint() bool { return h.safepoint.Load() }

// Alloc carves an object with the given payload size and reference-slot
// count out of the region table. Objects larger than a region are laid out
// as a humongous run of contiguous regions.
func (h *Heap) Alloc(size uint64, numRefs int) (*Object, error) {
	if size == 0 {
		size = allocAlignment
	}
	size = (size + allocAlignment - 1) &^ (allocAlignment - 1)

	h.allocMu.Lock()
	defer h.allocMu.Unlock()

	var addr Address
	if size > h.cfg.RegionSize {
		a, err := h.allocHumongous(size)
		if err != nil {
			return nil, err
		}
		addr = a
	} else {
		a, err := h.allocRegular(size)
		if err != nil {
			return nil, err
		}
		addr = a
	}

	o := &Object{
		addr: addr,
		size: size,
		refs: make([]Address, numRefs),
		data: make([]byte, size),
	}
	h.objects[addr] = o
	h.usedBytes.Add(size)
	h.objectCount.Inc()
	return o, nil
}

func (h *Heap) allocRegular(size uint64) (Address, error) {
	for scanned := 0; scanned < len(h.regions); scanned++ {
		r := h.regions[h.allocRegion]
		if (r.state == RegionEmpty || r.state == RegionRegular) && r.Free() >= size {
			if r.state == RegionEmpty {
				r.state = RegionRegular
			}
			addr := r.base + Address(r.top)
			r.top += size
			return addr, nil
		}
		h.allocRegion = (h.allocRegion + 1) % len(h.regions)
	}
	return NullAddress, errors.Wrapf(ErrOutOfMemory, "no region with %d free bytes", size)
}

func (h *Heap) allocHumongous(size uint64) (Address, error) {
	needed := int((size + h.cfg.RegionSize - 1) / h.cfg.RegionSize)
	run := 0
	for i := 0; i < len(h.regions); i++ {
		if h.regions[i].state != RegionEmpty {
			run = 0
			continue
		}
		run++
		if run < needed {
			continue
		}
		first := i - needed + 1
		h.regions[first].state = RegionHumongousStart
		h.regions[first].top = h.cfg.RegionSize
		for j := first + 1; j <= i; j++ {
			h.regions[j].state = RegionHumongousCont
			h.regions[j].top = h.cfg.RegionSize
		}
		// The tail region only holds the remainder.
		h.regions[i].top = size - uint64(needed-1)*h.cfg.RegionSize
		return h.regions[first].base, nil
	}
	return NullAddress, errors.Wrapf(ErrOutOfMemory, "no run of %d empty regions", needed)
}

// ObjectAt resolves an address to the object allocated at it.
func (h *Heap) ObjectAt(a Address) (*Object, bool) {
	h.allocMu.Lock()
	defer h.allocMu.Unlock()
	o, ok := h.objects[a]
	return o, ok
}

// IsIn reports whether the address falls inside the committed heap range.
func (h *Heap) IsIn(a Address) bool {
	if len(h.regions) == 0 {
		return false
	}
	return a >= h.regions[0].base && a < h.regions[len(h.regions)-1].End()
}

func (h *Heap) NumRegions() int { return len(h.regions) }

// RegionFor returns the region containing the address.
func (h *Heap) RegionFor(a Address) (*Region, bool) {
	if !h.IsIn(a) {
		return nil, false
	}
	return h.regions[uint64(a-heapBase)/h.cfg.RegionSize], true
}

// UsedBytes reports the total allocated payload size.
func (h *Heap) UsedBytes() uint64 { return h.usedBytes.Load() }
