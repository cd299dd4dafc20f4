package service

import (
	"context"
	"errors"
	"log/slog"

	"turf/internal/billing"
	catalogmodels "turf/internal/catalog/models"
	"turf/internal/feed"
	"turf/internal/ownership"
	"turf/internal/ownership/resolver"
	pricingmetrics "turf/internal/pricing/metrics"
	id "turf/pkg/domain"
	dErrors "turf/pkg/domain-errors"
	"turf/pkg/platform/sentinel"
	"turf/pkg/requestcontext"
)

// Catalog is the slice of the catalog the engine needs.
type Catalog interface {
	Get(ctx context.Context, territoryID id.TerritoryID) (*catalogmodels.Territory, error)
}

// Lister resolves the whole catalog for candidate listings.
type Lister interface {
	ResolveAll(ctx context.Context) ([]resolver.ResolvedTerritory, error)
}

// Service computes adjacency-discount eligibility and revokes discounts that
// no longer hold after a neighboring claim is canceled.
type Service struct {
	catalog  Catalog
	lister   Lister
	ledger   ownership.Store
	provider billing.Provider
	feed     feed.Publisher

	standardPriceID string

	logger  *slog.Logger
	metrics *pricingmetrics.Metrics
}

// New constructs the pricing engine. publisher and metrics may be nil in
// tests.
func New(catalog Catalog, lister Lister, ledger ownership.Store, provider billing.Provider, publisher feed.Publisher, standardPriceID string, logger *slog.Logger, metrics *pricingmetrics.Metrics) *Service {
	return &Service{
		catalog:         catalog,
		lister:          lister,
		ledger:          ledger,
		provider:        provider,
		feed:            publisher,
		standardPriceID: standardPriceID,
		logger:          logger,
		metrics:         metrics,
	}
}

// IsAdjacentEligible reports whether the candidate territory qualifies for
// the adjacency discount: it borders at least one territory the party
// currently owns and is not itself already owned by that party.
func (s *Service) IsAdjacentEligible(ctx context.Context, partyID id.PartyID, candidateID id.TerritoryID) (bool, error) {
	candidate, err := s.catalog.Get(ctx, candidateID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return false, dErrors.New(dErrors.CodeNotFound, "territory not found")
		}
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load territory")
	}

	owned, err := s.ledger.ActiveByParty(ctx, partyID)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load party ownerships")
	}
	for _, rec := range owned {
		if rec.TerritoryID == candidateID {
			return false, nil
		}
	}
	for _, rec := range owned {
		if candidate.IsAdjacentTo(rec.TerritoryID) {
			return true, nil
		}
	}
	return false, nil
}

// EligibleCandidates lists the available territories a party could buy at
// the adjacency discount right now.
func (s *Service) EligibleCandidates(ctx context.Context, partyID id.PartyID) ([]*catalogmodels.Territory, error) {
	owned, err := s.ledger.ActiveByParty(ctx, partyID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load party ownerships")
	}
	if len(owned) == 0 {
		return nil, nil
	}
	ownedSet := make(map[id.TerritoryID]bool, len(owned))
	for _, rec := range owned {
		ownedSet[rec.TerritoryID] = true
	}

	resolved, err := s.lister.ResolveAll(ctx)
	if err != nil {
		return nil, err
	}
	var out []*catalogmodels.Territory
	for _, rt := range resolved {
		if rt.Status != id.StatusAvailable || ownedSet[rt.Territory.ID] {
			continue
		}
		for _, adj := range rt.Territory.AdjacentIDs {
			if ownedSet[adj] {
				out = append(out, rt.Territory)
				break
			}
		}
	}
	return out, nil
}

// RevokeIfNoLongerEligible re-validates every remaining discount-tier claim
// the party holds. A discounted territory with no surviving active adjacent
// neighbor reverts to standard pricing: the ledger tag is updated first
// (local truth of eligibility), then the provider is told to change the
// subscription's price effective next cycle. A failed provider call is
// logged and counted for follow-up — it never rolls back the cancellation
// that triggered the sweep.
func (s *Service) RevokeIfNoLongerEligible(ctx context.Context, partyID id.PartyID) (int, error) {
	owned, err := s.ledger.ActiveByParty(ctx, partyID)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load party ownerships")
	}
	ownedSet := make(map[id.TerritoryID]bool, len(owned))
	for _, rec := range owned {
		ownedSet[rec.TerritoryID] = true
	}

	revoked := 0
	for _, rec := range owned {
		if rec.PriceTier != id.TierAdjacentDiscount {
			continue
		}
		t, err := s.catalog.Get(ctx, rec.TerritoryID)
		if err != nil {
			s.logger.Warn("discounted territory missing from catalog",
				"territory_id", rec.TerritoryID.String(), "error", err)
			continue
		}
		if s.hasOwnedNeighbor(t, ownedSet) {
			continue
		}

		if err := s.ledger.UpdatePriceTier(ctx, rec.SubscriptionRef, id.TierStandard); err != nil {
			s.logger.Error("failed to revert price tier",
				"subscription_ref", rec.SubscriptionRef.String(), "error", err)
			continue
		}
		revoked++
		s.metrics.IncrementRevoked()
		s.publish(ctx, feed.Change{
			Kind:            feed.ChangeRepriced,
			TerritoryID:     rec.TerritoryID,
			PartyID:         rec.PartyID,
			SubscriptionRef: rec.SubscriptionRef,
			PriceTier:       id.TierStandard,
			At:              requestcontext.Now(ctx),
		})

		if err := s.provider.ChangeSubscriptionPrice(ctx, rec.SubscriptionRef, s.standardPriceID); err != nil {
			// Local state already reflects eligibility; the remote price is
			// now stale until an operator (or retry job) reconciles it.
			s.metrics.IncrementBillingFailure()
			s.logger.Error("billing price change failed after revocation",
				"subscription_ref", rec.SubscriptionRef.String(),
				"territory_id", rec.TerritoryID.String(),
				"error", err)
		}
	}
	return revoked, nil
}

func (s *Service) publish(ctx context.Context, c feed.Change) {
	if s.feed == nil {
		return
	}
	if err := s.feed.Publish(ctx, c); err != nil {
		s.logger.Warn("failed to publish price change",
			"territory_id", c.TerritoryID.String(),
			"error", err)
	}
}

func (s *Service) hasOwnedNeighbor(t *catalogmodels.Territory, ownedSet map[id.TerritoryID]bool) bool {
	for _, adj := range t.AdjacentIDs {
		if adj != t.ID && ownedSet[adj] {
			return true
		}
	}
	return false
}
