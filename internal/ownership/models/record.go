package models

import (
	"time"

	id "turf/pkg/domain"
)

// Record is one durable, billing-backed claim on a territory. The ledger is
// append-only: rows transition active -> canceled exactly once and are never
// deleted or rewritten beyond that.
//
// Invariant: at most one active record per territory. A metro-group member
// covered by its parent's active record must have zero direct records; the
// resolver treats a simultaneous direct record as an integrity fault.
type Record struct {
	ID              id.OwnershipID
	TerritoryID     id.TerritoryID
	PartyID         id.PartyID
	SubscriptionRef id.SubscriptionRef
	PriceTier       id.PriceTier
	Status          id.OwnershipStatus
	StartedAt       time.Time
	EndedAt         *time.Time
}

// IsActive reports whether the claim currently holds.
func (r *Record) IsActive() bool {
	return r.Status == id.OwnershipActive
}

// NewActive builds an active record starting now. The caller supplies the
// subscription ref from the billing event; it is the reconciliation key.
func NewActive(territoryID id.TerritoryID, partyID id.PartyID, ref id.SubscriptionRef, tier id.PriceTier, now time.Time) *Record {
	return &Record{
		ID:              id.NewOwnershipID(),
		TerritoryID:     territoryID,
		PartyID:         partyID,
		SubscriptionRef: ref,
		PriceTier:       tier,
		Status:          id.OwnershipActive,
		StartedAt:       now,
	}
}
