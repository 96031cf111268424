// Package weakproc drives weak-root processing. A weak entry does not keep
// its target alive: a walk consults a liveness filter and either forwards
// the live entry to the visitor or clears the dead one. The processor owns
// the fixed list of serial phases and reaches every weak storage through the
// storage set.
package weakproc

import (
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/grafana/cinder/pkg/heap"
	"github.com/grafana/cinder/pkg/refstore"
)

// LivenessFilter decides the fate of a weak entry.
type LivenessFilter interface {
	IsLive(a heap.Address) bool
}

type LivenessFilterFunc func(a heap.Address) bool

func (f LivenessFilterFunc) IsLive(a heap.Address) bool { return f(a) }

// AlwaysLive keeps every entry. Stop-the-world walks that only want to see
// the slots use it.
var AlwaysLive LivenessFilter = LivenessFilterFunc(func(heap.Address) bool { return true })

// Phase is one serial weak table. Serial phases do not support parallel
// workers; the caller runs them one after another.
type Phase interface {
	Name() string
	VisitWeakRefs(alive LivenessFilter, v heap.RefVisitor)
}

type Processor struct {
	logger log.Logger
	phases []Phase
	stores *refstore.Set
}

// NewProcessor wires the serial phases and the storage set together. The
// phase list is fixed for the lifetime of the processor.
func NewProcessor(stores *refstore.Set, phases []Phase, logger log.Logger) *Processor {
	return &Processor{logger: logger, phases: phases, stores: stores}
}

// Phases exposes the serial phase list in processing order.
func (p *Processor) Phases() []Phase { return p.phases }

// VisitSerial runs every serial phase under the given filter.
func (p *Processor) VisitSerial(alive LivenessFilter, v heap.RefVisitor) {
	for _, ph := range p.phases {
		ph.VisitWeakRefs(alive, v)
	}
}

// VisitStorages walks every weak storage, clearing entries the filter
// declares dead.
func (p *Processor) VisitStorages(alive LivenessFilter, v heap.RefVisitor) {
	it := p.stores.Weak()
	for it.Next() {
		st := it.At()
		cleared := 0
		st.VisitRefs(heap.RefVisitorFunc(func(slot *heap.Address) {
			if *slot == heap.NullAddress {
				return
			}
			if !alive.IsLive(*slot) {
				*slot = heap.NullAddress
				cleared++
				return
			}
			v.VisitRef(slot)
		}))
		if cleared > 0 {
			level.Debug(p.logger).Log("msg", "cleared dead weak entries", "store", st.Name(), "cleared", cleared)
		}
	}
	_ = it.Close()
}

// VisitAll runs the complete weak walk: serial phases first, storages
// after, mirroring processing order at a pause.
func (p *Processor) VisitAll(alive LivenessFilter, v heap.RefVisitor) {
	p.VisitSerial(alive, v)
	p.VisitStorages(alive, v)
}
