package memo

import (
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// Metrics counts memo table traffic. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	registry  *prometheus.Registry
	hits      *prometheus.CounterVec
	misses    *prometheus.CounterVec
	evictions *prometheus.CounterVec
}

// NewMetrics creates counters under namespace on a private registry, so that
// several instances can coexist in one process and in tests.
func NewMetrics(namespace string) *Metrics {
	registry := prometheus.NewRegistry()

	hits := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "memo",
			Name:      "hits_total",
			Help:      "Total number of memo table hits",
		},
		[]string{"table"},
	)

	misses := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "memo",
			Name:      "misses_total",
			Help:      "Total number of memo table misses",
		},
		[]string{"table"},
	)

	evictions := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "memo",
			Name:      "evictions_total",
			Help:      "Total number of memo entries evicted or purged",
		},
		[]string{"table"},
	)

	registry.MustRegister(hits, misses, evictions)

	return &Metrics{
		registry:  registry,
		hits:      hits,
		misses:    misses,
		evictions: evictions,
	}
}

// Registry returns the registry holding the counters.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Snapshot returns hit and miss totals for table.
func (m *Metrics) Snapshot(table string) (hits, misses float64) {
	if m == nil {
		return 0, 0
	}
	return counterValue(m.hits.WithLabelValues(table)), counterValue(m.misses.WithLabelValues(table))
}

func (m *Metrics) hit(table string) {
	if m != nil {
		m.hits.WithLabelValues(table).Inc()
	}
}

func (m *Metrics) miss(table string) {
	if m != nil {
		m.misses.WithLabelValues(table).Inc()
	}
}

func (m *Metrics) evicted(table string) {
	if m != nil {
		m.evictions.WithLabelValues(table).Inc()
	}
}

func counterValue(c prometheus.Counter) float64 {
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		return 0
	}
	return m.GetCounter().GetValue()
}
