// Package feed publishes ownership transitions for downstream consumers
// (lead routing reads it; that system is out of scope). Publishing is a
// post-commit side effect: a failed publish is logged, never propagated into
// the event that triggered it.
package feed

import (
	"context"
	"encoding/json"
	"time"

	id "turf/pkg/domain"
)

// ChangeKind says what happened to a claim.
type ChangeKind string

const (
	ChangeClaimed  ChangeKind = "claimed"
	ChangeCanceled ChangeKind = "canceled"
	ChangeLinked   ChangeKind = "linked"
	ChangeRepriced ChangeKind = "repriced"
)

// Change is one ownership transition.
type Change struct {
	Kind            ChangeKind
	TerritoryID     id.TerritoryID
	PartyID         id.PartyID
	SubscriptionRef id.SubscriptionRef
	PriceTier       id.PriceTier
	At              time.Time
}

// MarshalJSON emits the wire form consumed downstream.
func (c Change) MarshalJSON() ([]byte, error) {
	wire := struct {
		Kind            string    `json:"kind"`
		TerritoryID     string    `json:"territory_id"`
		PartyID         string    `json:"party_id,omitempty"`
		SubscriptionRef string    `json:"subscription_ref"`
		PriceTier       string    `json:"price_tier"`
		At              time.Time `json:"at"`
	}{
		Kind:            string(c.Kind),
		TerritoryID:     c.TerritoryID.String(),
		SubscriptionRef: c.SubscriptionRef.String(),
		PriceTier:       c.PriceTier.String(),
		At:              c.At,
	}
	if !c.PartyID.IsNil() {
		wire.PartyID = c.PartyID.String()
	}
	return json.Marshal(wire)
}

// Publisher delivers changes to whatever transport is configured.
type Publisher interface {
	Publish(ctx context.Context, c Change) error
	Close()
}
