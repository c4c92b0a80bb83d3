// Package metrics exposes Prometheus counters for the core operations.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts operation outcomes. Registered once per process.
type Metrics struct {
	Operations *prometheus.CounterVec
}

// New registers the counters on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		Operations: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "olympus",
			Name:      "operations_total",
			Help:      "Core ledger operations by name and outcome.",
		}, []string{"operation", "outcome"}),
	}
}

// Observe records one operation outcome.
func (m *Metrics) Observe(operation string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.Operations.WithLabelValues(operation, outcome).Inc()
}
