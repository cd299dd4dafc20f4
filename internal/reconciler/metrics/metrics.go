package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for webhook reconciliation.
type Metrics struct {
	EventsApplied *prometheus.CounterVec
	Duplicates    prometheus.Counter
	Unmatched     prometheus.Counter
}

// New creates a Metrics instance with all reconciler metrics registered.
func New() *Metrics {
	return &Metrics{
		EventsApplied: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "turf_reconciler_events_applied_total",
			Help: "Billing events that changed ledger state, by event type",
		}, []string{"type"}),
		Duplicates: promauto.NewCounter(prometheus.CounterOpts{
			Name: "turf_reconciler_duplicate_events_total",
			Help: "Redelivered or out-of-order events acknowledged as no-ops",
		}),
		Unmatched: promauto.NewCounter(prometheus.CounterOpts{
			Name: "turf_reconciler_unmatched_events_total",
			Help: "Events referencing territories or subscriptions this engine does not know",
		}),
	}
}

// IncrementApplied records one state-changing event of the given type.
func (m *Metrics) IncrementApplied(eventType string) {
	if m != nil {
		m.EventsApplied.WithLabelValues(eventType).Inc()
	}
}

// IncrementDuplicate records a replayed event absorbed as a no-op.
func (m *Metrics) IncrementDuplicate() {
	if m != nil {
		m.Duplicates.Inc()
	}
}

// IncrementUnmatched records an event this engine had no state for.
func (m *Metrics) IncrementUnmatched() {
	if m != nil {
		m.Unmatched.Inc()
	}
}
