package stringdedup

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/grafana/cinder/pkg/util"
)

type metrics struct {
	requests prometheus.Counter
	hits     prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		requests: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cinder_gc_stringdedup_requests_total",
			Help: "Total payloads offered for deduplication.",
		}),
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cinder_gc_stringdedup_hits_total",
			Help: "Payloads resolved to an existing canonical array.",
		}),
	}
	if reg != nil {
		m.requests = util.RegisterOrGet(reg, m.requests)
		m.hits = util.RegisterOrGet(reg, m.hits)
	}
	return m
}
