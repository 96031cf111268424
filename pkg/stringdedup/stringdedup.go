// Package stringdedup shares identical string payloads behind a single
// canonical array. The table keeps one reference slot per distinct payload;
// those slots are GC roots of their own category, but only while the feature
// is enabled.
package stringdedup

import (
	"flag"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/dolthub/swiss"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/atomic"

	"github.com/grafana/cinder/pkg/heap"
)

type Config struct {
	Enabled bool `yaml:"enabled"`
}

func (cfg *Config) RegisterFlags(f *flag.FlagSet) {
	f.BoolVar(&cfg.Enabled, "stringdedup.enabled", false, "Deduplicate identical string payloads behind a shared canonical array.")
}

type entry struct {
	hash    uint64
	payload []byte
	ref     atomic.Uint64
	next    *entry
}

// Table maps payload hashes to chains of canonical entries. Chains carry
// the rare hash collisions; payload equality picks the entry within a
// chain.
type Table struct {
	logger  log.Logger
	cfg     Config
	metrics *metrics

	mu      sync.Mutex
	entries *swiss.Map[uint64, *entry]
}

func NewTable(cfg Config, reg prometheus.Registerer, logger log.Logger) *Table {
	t := &Table{
		logger:  logger,
		cfg:     cfg,
		metrics: newMetrics(reg),
		entries: swiss.NewMap[uint64, *entry](64),
	}
	if cfg.Enabled {
		level.Info(logger).Log("msg", "string deduplication enabled")
	}
	return t
}

// Enabled reports whether deduplication is active. Root walks skip the
// table entirely when it is not.
func (t *Table) Enabled() bool { return t.cfg.Enabled }

// Count returns the number of canonical entries, collision chains included.
func (t *Table) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	t.entries.Iter(func(_ uint64, head *entry) bool {
		for e := head; e != nil; e = e.next {
			n++
		}
		return false
	})
	return n
}

// Deduplicate resolves addr's payload to its canonical array. The first
// occurrence of a payload becomes canonical; later occurrences are answered
// with the existing entry.
func (t *Table) Deduplicate(addr heap.Address, payload []byte) heap.Address {
	if !t.cfg.Enabled {
		return addr
	}
	t.metrics.requests.Inc()
	h := xxhash.Sum64(payload)

	t.mu.Lock()
	defer t.mu.Unlock()
	head, _ := t.entries.Get(h)
	for e := head; e != nil; e = e.next {
		if string(e.payload) == string(payload) {
			t.metrics.hits.Inc()
			return heap.Address(e.ref.Load())
		}
	}
	e := &entry{hash: h, payload: append([]byte(nil), payload...), next: head}
	e.ref.Store(uint64(addr))
	t.entries.Put(h, e)
	return addr
}

// VisitRefs applies v to the canonical slot of every entry exactly once,
// collision chains included.
func (t *Table) VisitRefs(v heap.RefVisitor) {
	t.mu.Lock()
	all := make([]*entry, 0, t.entries.Count())
	t.entries.Iter(func(_ uint64, head *entry) bool {
		for e := head; e != nil; e = e.next {
			all = append(all, e)
		}
		return false
	})
	t.mu.Unlock()

	for _, e := range all {
		val := heap.Address(e.ref.Load())
		slot := val
		v.VisitRef(&slot)
		if slot != val {
			e.ref.CompareAndSwap(uint64(val), uint64(slot))
		}
	}
}
