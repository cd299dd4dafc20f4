package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for ownership resolution.
type Metrics struct {
	IntegrityFaults    prometheus.Counter
	ResolveAllDuration prometheus.Histogram
}

// New creates a Metrics instance with all resolver metrics registered.
func New() *Metrics {
	return &Metrics{
		IntegrityFaults: promauto.NewCounter(prometheus.CounterOpts{
			Name: "turf_ownership_integrity_faults_total",
			Help: "Territories found with both a direct active claim and an active metro-group claim",
		}),
		ResolveAllDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "turf_ownership_resolve_all_duration_seconds",
			Help:    "Duration of bulk territory status resolution (listing path)",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

// IncrementIntegrityFault records one detected dual-claim fault.
func (m *Metrics) IncrementIntegrityFault() {
	if m != nil {
		m.IntegrityFaults.Inc()
	}
}

// ObserveResolveAll records the duration of a bulk resolution pass.
func (m *Metrics) ObserveResolveAll(start time.Time) {
	if m != nil {
		m.ResolveAllDuration.Observe(time.Since(start).Seconds())
	}
}
