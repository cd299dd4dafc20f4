// Package billing is the boundary to the external subscription provider.
// The provider's checkout and billing mechanics are out of scope; this
// package only exposes the three calls the engine needs and verifies the
// signatures on what the provider sends back.
package billing

import (
	"context"

	id "turf/pkg/domain"
)

// PartyContext carries who is buying what into checkout creation. PartyID is
// zero for guest purchases (payment before account).
type PartyContext struct {
	PartyID     id.PartyID
	Email       string
	TerritoryID id.TerritoryID
}

// Checkout is the provider-hosted payment session for one claim.
type Checkout struct {
	SessionRef string
	URL        string
}

// Provider is the consumed billing interface. Implementations must be safe
// for concurrent use.
type Provider interface {
	// CreateCheckout opens a hosted checkout for the given price.
	CreateCheckout(ctx context.Context, priceID string, pc PartyContext) (*Checkout, error)

	// CancelSubscription requests cancellation; the resulting state change
	// lands through the webhook path, never synchronously.
	CancelSubscription(ctx context.Context, ref id.SubscriptionRef) error

	// ChangeSubscriptionPrice moves a subscription to a new price effective
	// next billing cycle, no retroactive proration.
	ChangeSubscriptionPrice(ctx context.Context, ref id.SubscriptionRef, newPriceID string) error
}
