package models

import (
	"time"

	"github.com/google/uuid"

	id "turf/pkg/domain"
)

// PendingPurchase bridges a guest checkout (payment before account) to the
// ownership it becomes once the buyer registers. Consumed exactly once: a
// nil ConsumedAt is the idempotency key for linking.
type PendingPurchase struct {
	ID              uuid.UUID
	Email           string
	TerritoryID     id.TerritoryID
	SubscriptionRef id.SubscriptionRef
	CustomerRef     string
	PriceTier       id.PriceTier
	CreatedAt       time.Time
	ConsumedAt      *time.Time
}

// Consumed reports whether the row has already been linked to an account.
func (p *PendingPurchase) Consumed() bool {
	return p.ConsumedAt != nil
}
