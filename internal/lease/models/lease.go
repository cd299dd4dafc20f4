package models

import (
	"time"

	id "turf/pkg/domain"
)

// Lease is a short-lived hold that reserves a territory while a checkout is
// in flight. It arbitrates between concurrent prospective buyers only; it is
// never proof of purchase, and it never blocks a territory that is already
// durably owned. Invariant: at most one unexpired lease per territory.
type Lease struct {
	ID          id.LeaseID
	TerritoryID id.TerritoryID
	PartyID     id.PartyID

	// CheckoutRef links the lease to the external checkout session once one
	// exists. Empty until the checkout is created.
	CheckoutRef string

	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired reports whether the lease's TTL has passed. Expired leases are
// ignored everywhere even before a reap pass deletes them.
func (l *Lease) Expired(now time.Time) bool {
	return !now.Before(l.ExpiresAt)
}
