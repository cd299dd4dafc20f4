package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the lease manager.
type Metrics struct {
	Acquired  prometheus.Counter
	Conflicts prometheus.Counter
	Reaped    prometheus.Counter
}

// New creates a Metrics instance with all lease metrics registered.
func New() *Metrics {
	return &Metrics{
		Acquired: promauto.NewCounter(prometheus.CounterOpts{
			Name: "turf_leases_acquired_total",
			Help: "Checkout holds successfully acquired",
		}),
		Conflicts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "turf_lease_conflicts_total",
			Help: "Acquire attempts rejected because the territory was held or taken",
		}),
		Reaped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "turf_leases_reaped_total",
			Help: "Expired holds removed by reap passes",
		}),
	}
}

// IncrementAcquired records a successful hold.
func (m *Metrics) IncrementAcquired() {
	if m != nil {
		m.Acquired.Inc()
	}
}

// IncrementConflict records a lost acquire race.
func (m *Metrics) IncrementConflict() {
	if m != nil {
		m.Conflicts.Inc()
	}
}

// AddReaped records holds removed by one reap pass.
func (m *Metrics) AddReaped(n int) {
	if m != nil && n > 0 {
		m.Reaped.Add(float64(n))
	}
}
