// Package service implements the buyer-facing claim commands. Beginning a
// claim only holds the territory and opens a checkout; the claim becomes
// durable when the provider's webhook lands. Cancellation is similarly
// delegated: this service asks the provider, the reconciler applies the
// resulting deletion event.
package service

import (
	"context"
	"errors"
	"log/slog"

	"turf/internal/billing"
	leasemodels "turf/internal/lease/models"
	ownershipmodels "turf/internal/ownership/models"
	id "turf/pkg/domain"
	dErrors "turf/pkg/domain-errors"
	"turf/pkg/platform/sentinel"
)

// Leases is the slice of the lease manager a claim needs.
type Leases interface {
	Acquire(ctx context.Context, territoryID id.TerritoryID, partyID id.PartyID) (*leasemodels.Lease, error)
	AttachCheckoutRef(ctx context.Context, territoryID id.TerritoryID, ref string) error
	Release(ctx context.Context, territoryID id.TerritoryID) error
}

// Pricing decides which price the checkout is opened at.
type Pricing interface {
	IsAdjacentEligible(ctx context.Context, partyID id.PartyID, candidateID id.TerritoryID) (bool, error)
}

// Ledger is the read-only slice of the ownership store cancellation needs.
type Ledger interface {
	FindBySubscriptionRef(ctx context.Context, ref id.SubscriptionRef) (*ownershipmodels.Record, error)
}

// Prices carries the provider's price catalog ids.
type Prices struct {
	StandardPriceID string
	DiscountPriceID string
}

// BeginResult is what the buyer needs to finish paying.
type BeginResult struct {
	Lease       *leasemodels.Lease
	CheckoutURL string
	PriceTier   id.PriceTier
}

// Service coordinates lease, pricing and billing for the command API.
type Service struct {
	leases   Leases
	pricing  Pricing
	ledger   Ledger
	provider billing.Provider
	prices   Prices
	logger   *slog.Logger
}

// New constructs the claims service.
func New(leases Leases, pricing Pricing, ledger Ledger, provider billing.Provider, prices Prices, logger *slog.Logger) *Service {
	return &Service{
		leases:   leases,
		pricing:  pricing,
		ledger:   ledger,
		provider: provider,
		prices:   prices,
		logger:   logger,
	}
}

// Begin holds the territory and opens a checkout at the price the party
// qualifies for. The lease is released again if checkout creation fails;
// otherwise it carries the checkout session ref until the webhook settles
// the claim or the TTL expires.
func (s *Service) Begin(ctx context.Context, territoryID id.TerritoryID, partyID id.PartyID, email string) (*BeginResult, error) {
	lease, err := s.leases.Acquire(ctx, territoryID, partyID)
	if err != nil {
		return nil, err
	}

	priceID := s.prices.StandardPriceID
	tier := id.TierStandard
	eligible, err := s.pricing.IsAdjacentEligible(ctx, partyID, territoryID)
	if err != nil {
		// Price selection must not lose the hold; fall back to standard.
		s.logger.Warn("discount eligibility check failed, using standard price",
			"territory_id", territoryID.String(),
			"party_id", partyID.String(),
			"error", err)
	} else if eligible {
		priceID = s.prices.DiscountPriceID
		tier = id.TierAdjacentDiscount
	}

	checkout, err := s.provider.CreateCheckout(ctx, priceID, billing.PartyContext{
		PartyID:     partyID,
		Email:       email,
		TerritoryID: territoryID,
	})
	if err != nil {
		if relErr := s.leases.Release(ctx, territoryID); relErr != nil && !errors.Is(relErr, sentinel.ErrNotFound) {
			s.logger.Error("failed to release lease after checkout failure",
				"territory_id", territoryID.String(), "error", relErr)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUpstream, "failed to create checkout")
	}

	if err := s.leases.AttachCheckoutRef(ctx, territoryID, checkout.SessionRef); err != nil {
		// The hold stands and the webhook keys on subscription ref, not the
		// session; losing the annotation only hurts debuggability.
		s.logger.Warn("failed to attach checkout ref to lease",
			"territory_id", territoryID.String(), "error", err)
	}

	s.logger.Info("claim started",
		"territory_id", territoryID.String(),
		"party_id", partyID.String(),
		"price_tier", tier.String())
	return &BeginResult{Lease: lease, CheckoutURL: checkout.URL, PriceTier: tier}, nil
}

// Cancel asks the provider to end the subscription behind an active claim.
// Only the owning party may cancel. The ledger does not change here; the
// provider's deletion webhook drives the actual state transition.
func (s *Service) Cancel(ctx context.Context, ref id.SubscriptionRef, requester id.PartyID) error {
	rec, err := s.ledger.FindBySubscriptionRef(ctx, ref)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "ownership not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load ownership")
	}
	if rec.PartyID != requester {
		return dErrors.New(dErrors.CodeNotFound, "ownership not found")
	}
	if !rec.IsActive() {
		return dErrors.New(dErrors.CodeConflict, "ownership already canceled")
	}

	if err := s.provider.CancelSubscription(ctx, ref); err != nil {
		return dErrors.Wrap(err, dErrors.CodeUpstream, "failed to cancel subscription")
	}
	s.logger.Info("cancellation requested",
		"territory_id", rec.TerritoryID.String(),
		"subscription_ref", ref.String())
	return nil
}
