package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the pricing eligibility engine.
type Metrics struct {
	DiscountsRevoked prometheus.Counter
	BillingFailures  prometheus.Counter
}

// New creates a Metrics instance with all pricing metrics registered.
func New() *Metrics {
	return &Metrics{
		DiscountsRevoked: promauto.NewCounter(prometheus.CounterOpts{
			Name: "turf_pricing_discounts_revoked_total",
			Help: "Adjacency discounts reverted to standard pricing",
		}),
		BillingFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "turf_pricing_billing_failures_total",
			Help: "Price-change calls to the billing provider that failed after retries and need operator follow-up",
		}),
	}
}

// IncrementRevoked records one reverted discount.
func (m *Metrics) IncrementRevoked() {
	if m != nil {
		m.DiscountsRevoked.Inc()
	}
}

// IncrementBillingFailure records a price-change call that needs follow-up.
func (m *Metrics) IncrementBillingFailure() {
	if m != nil {
		m.BillingFailures.Inc()
	}
}
