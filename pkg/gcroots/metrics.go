package gcroots

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/grafana/cinder/pkg/util"
)

type metrics struct {
	passes       *prometheus.CounterVec
	passDuration *prometheus.HistogramVec
	refsVisited  *prometheus.CounterVec
}

// newMetrics runs once per verifier, which is once per pass; RegisterOrGet
// keeps the repeated registrations idempotent.
func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		passes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cinder_gc_root_verifier_passes_total",
			Help: "Verification passes started, by entry point.",
		}, []string{"mode"}),
		passDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cinder_gc_root_verifier_pass_duration_seconds",
			Help:    "Duration of verification passes, by entry point.",
			Buckets: prometheus.ExponentialBuckets(1e-5, 4, 8),
		}, []string{"mode"}),
		refsVisited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cinder_gc_root_verifier_refs_visited_total",
			Help: "References delivered to the verification visitor, by root category.",
		}, []string{"category"}),
	}
	if reg != nil {
		m.passes = util.RegisterOrGet(reg, m.passes)
		m.passDuration = util.RegisterOrGet(reg, m.passDuration)
		m.refsVisited = util.RegisterOrGet(reg, m.refsVisited)
	}
	return m
}
