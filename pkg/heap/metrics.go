package heap

import (
	"github.com/prometheus/client_golang/prometheus"
)

type statsCollector struct {
	heap *Heap

	regions   *prometheus.Desc
	usedBytes *prometheus.Desc
	objects   *prometheus.Desc
	gcState   *prometheus.Desc
}

const heapMetricsPrefix = "cinder_gc_heap_"

func newStatsCollector(h *Heap) *statsCollector {
	return &statsCollector{
		heap: h,

		regions: prometheus.NewDesc(
			heapMetricsPrefix+"regions",
			"The number of heap regions by state.",
			[]string{"state"}, nil,
		),

		usedBytes: prometheus.NewDesc(
			heapMetricsPrefix+"used_bytes",
			"The total number of allocated bytes.",
			nil, nil,
		),

		objects: prometheus.NewDesc(
			heapMetricsPrefix+"objects",
			"The total number of live allocated objects.",
			nil, nil,
		),

		gcState: prometheus.NewDesc(
			heapMetricsPrefix+"state",
			"The collector phase-state bitmask.",
			nil, nil,
		),
	}
}

func (c *statsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.regions
	ch <- c.usedBytes
	ch <- c.objects
	ch <- c.gcState
}

func (c *statsCollector) Collect(ch chan<- prometheus.Metric) {
	var perState [RegionHumongousCont + 1]int
	c.heap.allocMu.Lock()
	for _, r := range c.heap.regions {
		perState[r.state]++
	}
	c.heap.allocMu.Unlock()

	for s, n := range perState {
		ch <- prometheus.MustNewConstMetric(c.regions, prometheus.GaugeValue, float64(n), RegionState(s).String())
	}
	ch <- prometheus.MustNewConstMetric(c.usedBytes, prometheus.GaugeValue, float64(c.heap.UsedBytes()))
	ch <- prometheus.MustNewConstMetric(c.objects, prometheus.GaugeValue, float64(c.heap.objectCount.Load()))
	ch <- prometheus.MustNewConstMetric(c.gcState, prometheus.GaugeValue, float64(c.heap.gcState.Load()))
}
