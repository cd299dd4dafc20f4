// Package events models inbound billing webhooks as a closed set of tagged
// variants. Required fields are validated here, at the boundary; the
// reconciler never touches the raw envelope.
package events

import (
	"encoding/json"
	"errors"
	"fmt"

	id "turf/pkg/domain"
)

// Type discriminates the webhook envelope.
type Type string

const (
	TypeCheckoutCompleted   Type = "checkout.completed"
	TypeSubscriptionUpdated Type = "subscription.updated"
	TypeSubscriptionDeleted Type = "subscription.deleted"
)

// ErrUnknownType marks event types this engine does not act on. Handlers
// acknowledge them (returning failure would only cause redelivery storms).
var ErrUnknownType = errors.New("unknown event type")

// Event is one validated billing event. EventID is the provider's delivery
// id; SubscriptionRef is the idempotency key every state lookup uses.
type Event interface {
	EventID() string
	Ref() id.SubscriptionRef
}

// CheckoutCompleted reports a finished payment. PartyID is zero for guest
// purchases (payment completed before an account existed).
type CheckoutCompleted struct {
	ID              string
	SubscriptionRef id.SubscriptionRef
	CustomerRef     string
	TerritoryID     id.TerritoryID
	PartyID         id.PartyID
	Email           string
	PriceID         string
}

func (e CheckoutCompleted) EventID() string         { return e.ID }
func (e CheckoutCompleted) Ref() id.SubscriptionRef { return e.SubscriptionRef }

// IsGuest reports whether the purchase completed without an account.
func (e CheckoutCompleted) IsGuest() bool { return e.PartyID.IsNil() }

// SubscriptionUpdated reports a provider-side status change.
type SubscriptionUpdated struct {
	ID              string
	SubscriptionRef id.SubscriptionRef
	Status          string
}

func (e SubscriptionUpdated) EventID() string         { return e.ID }
func (e SubscriptionUpdated) Ref() id.SubscriptionRef { return e.SubscriptionRef }

// SubscriptionDeleted reports a cancellation taking effect.
type SubscriptionDeleted struct {
	ID              string
	SubscriptionRef id.SubscriptionRef
}

func (e SubscriptionDeleted) EventID() string         { return e.ID }
func (e SubscriptionDeleted) Ref() id.SubscriptionRef { return e.SubscriptionRef }

// envelope is the provider's versioned JSON wrapper.
type envelope struct {
	ID   string          `json:"id"`
	Type Type            `json:"type"`
	Data json.RawMessage `json:"data"`
}

type checkoutData struct {
	Subscription  string `json:"subscription"`
	Customer      string `json:"customer"`
	CustomerEmail string `json:"customer_email"`
	PriceID       string `json:"price_id"`
	Metadata      struct {
		TerritoryID string `json:"territory_id"`
		PartyID     string `json:"party_id"`
	} `json:"metadata"`
}

type subscriptionData struct {
	Subscription string `json:"subscription"`
	Status       string `json:"status"`
}

// Parse decodes and validates a webhook body into one of the variants.
// Unknown types return ErrUnknownType wrapped with the offending type.
func Parse(body []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("malformed event envelope: %w", err)
	}
	if env.ID == "" {
		return nil, errors.New("event id is required")
	}

	switch env.Type {
	case TypeCheckoutCompleted:
		return parseCheckoutCompleted(env)
	case TypeSubscriptionUpdated:
		return parseSubscription(env, func(ref id.SubscriptionRef, d subscriptionData) Event {
			return SubscriptionUpdated{ID: env.ID, SubscriptionRef: ref, Status: d.Status}
		})
	case TypeSubscriptionDeleted:
		return parseSubscription(env, func(ref id.SubscriptionRef, d subscriptionData) Event {
			return SubscriptionDeleted{ID: env.ID, SubscriptionRef: ref}
		})
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
}

func parseCheckoutCompleted(env envelope) (Event, error) {
	var d checkoutData
	if err := json.Unmarshal(env.Data, &d); err != nil {
		return nil, fmt.Errorf("malformed checkout data: %w", err)
	}
	if d.Subscription == "" {
		return nil, errors.New("checkout event missing subscription ref")
	}
	if d.Metadata.TerritoryID == "" {
		return nil, errors.New("checkout event missing territory id")
	}
	territoryID, err := id.ParseTerritoryID(d.Metadata.TerritoryID)
	if err != nil {
		return nil, fmt.Errorf("invalid territory id in checkout metadata: %w", err)
	}

	ev := CheckoutCompleted{
		ID:              env.ID,
		SubscriptionRef: id.SubscriptionRef(d.Subscription),
		CustomerRef:     d.Customer,
		TerritoryID:     territoryID,
		Email:           d.CustomerEmail,
		PriceID:         d.PriceID,
	}
	if d.Metadata.PartyID != "" {
		partyID, err := id.ParsePartyID(d.Metadata.PartyID)
		if err != nil {
			return nil, fmt.Errorf("invalid party id in checkout metadata: %w", err)
		}
		ev.PartyID = partyID
	}
	if ev.IsGuest() && ev.Email == "" {
		return nil, errors.New("guest checkout event missing customer email")
	}
	return ev, nil
}

func parseSubscription(env envelope, build func(id.SubscriptionRef, subscriptionData) Event) (Event, error) {
	var d subscriptionData
	if err := json.Unmarshal(env.Data, &d); err != nil {
		return nil, fmt.Errorf("malformed subscription data: %w", err)
	}
	if d.Subscription == "" {
		return nil, errors.New("subscription event missing subscription ref")
	}
	return build(id.SubscriptionRef(d.Subscription), d), nil
}
