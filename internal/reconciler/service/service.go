// Package service implements the event reconciler: the only writer of the
// ownership ledger. Billing webhooks arrive at least once and in any order;
// every handler is a convergent state transition keyed on subscription ref,
// so replays and reorderings land as no-ops.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	catalogmodels "turf/internal/catalog/models"
	"turf/internal/feed"
	ownershipmodels "turf/internal/ownership/models"
	"turf/internal/platform/tracing"
	"turf/internal/reconciler/events"
	reconcilermetrics "turf/internal/reconciler/metrics"
	"turf/internal/reconciler/models"
	id "turf/pkg/domain"
	dErrors "turf/pkg/domain-errors"
	"turf/pkg/platform/sentinel"
	"turf/pkg/requestcontext"
)

// Ledger is the slice of the ownership store the reconciler writes.
type Ledger interface {
	Create(ctx context.Context, r *ownershipmodels.Record) error
	FindBySubscriptionRef(ctx context.Context, ref id.SubscriptionRef) (*ownershipmodels.Record, error)
	MarkCanceled(ctx context.Context, ref id.SubscriptionRef, endedAt time.Time) (*ownershipmodels.Record, error)
	EnsureActive(ctx context.Context, ref id.SubscriptionRef) (*ownershipmodels.Record, error)
}

// PendingStore persists guest purchases until an account claims them.
type PendingStore interface {
	Create(ctx context.Context, p *models.PendingPurchase) error
	FindBySubscriptionRef(ctx context.Context, ref id.SubscriptionRef) (*models.PendingPurchase, error)
	UnconsumedByEmail(ctx context.Context, email string) ([]*models.PendingPurchase, error)
	MarkConsumed(ctx context.Context, pendingID uuid.UUID, when time.Time) error
}

// Catalog is the slice of the catalog the reconciler needs: territory
// lookups for metro-group cascades and listing-hint updates.
type Catalog interface {
	Get(ctx context.Context, territoryID id.TerritoryID) (*catalogmodels.Territory, error)
	MembersOf(ctx context.Context, metroGroupID id.TerritoryID) ([]*catalogmodels.Territory, error)
	UpdateStatusHint(ctx context.Context, ids []id.TerritoryID, status id.TerritoryStatus) error
}

// Leases releases checkout holds once the claim they protected is durable.
type Leases interface {
	Release(ctx context.Context, territoryID id.TerritoryID) error
}

// Pricing runs the discount revocation sweep after a cancellation.
type Pricing interface {
	RevokeIfNoLongerEligible(ctx context.Context, partyID id.PartyID) (int, error)
}

// PriceTable maps the provider's billed price ids back to tiers.
type PriceTable struct {
	StandardPriceID string
	DiscountPriceID string
}

// Tier returns the tier a price id was billed at. Unknown ids default to
// standard so an unrecognized catalog entry never blocks a paid claim.
func (t PriceTable) Tier(priceID string) id.PriceTier {
	if priceID == t.DiscountPriceID {
		return id.TierAdjacentDiscount
	}
	return id.TierStandard
}

// Service applies validated billing events to the ledger.
type Service struct {
	ledger  Ledger
	pending PendingStore
	catalog Catalog
	leases  Leases
	pricing Pricing
	feed    feed.Publisher
	prices  PriceTable

	logger  *slog.Logger
	metrics *reconcilermetrics.Metrics
	tracer  trace.Tracer
}

// New constructs the reconciler. metrics may be nil in tests.
func New(ledger Ledger, pending PendingStore, catalog Catalog, leases Leases, pricing Pricing, publisher feed.Publisher, prices PriceTable, logger *slog.Logger, metrics *reconcilermetrics.Metrics) *Service {
	return &Service{
		ledger:  ledger,
		pending: pending,
		catalog: catalog,
		leases:  leases,
		pricing: pricing,
		feed:    publisher,
		prices:  prices,
		logger:  logger,
		metrics: metrics,
		tracer:  tracing.Tracer("reconciler"),
	}
}

// Apply dispatches one validated event. A nil return means the event is
// fully absorbed and the provider may stop redelivering it; errors are
// reserved for transient failures where redelivery can succeed.
func (s *Service) Apply(ctx context.Context, ev events.Event) error {
	ctx, span := s.tracer.Start(ctx, "reconciler.Apply",
		trace.WithAttributes(
			attribute.String("event.id", ev.EventID()),
			attribute.String("subscription.ref", ev.Ref().String()),
		))
	defer span.End()

	switch e := ev.(type) {
	case events.CheckoutCompleted:
		return s.applyCheckoutCompleted(ctx, e)
	case events.SubscriptionUpdated:
		return s.applySubscriptionUpdated(ctx, e)
	case events.SubscriptionDeleted:
		return s.applySubscriptionDeleted(ctx, e)
	default:
		return fmt.Errorf("%w: %T", events.ErrUnknownType, ev)
	}
}

func (s *Service) applyCheckoutCompleted(ctx context.Context, e events.CheckoutCompleted) error {
	// A record under this ref, in any status, means the event already landed
	// once. A canceled record means the deletion arrived first; reviving the
	// claim from a stale checkout event would resurrect a dead subscription.
	if _, err := s.ledger.FindBySubscriptionRef(ctx, e.SubscriptionRef); err == nil {
		s.logger.Info("checkout event already reconciled",
			"event_id", e.ID, "subscription_ref", e.SubscriptionRef.String())
		s.metrics.IncrementDuplicate()
		return nil
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check ledger for subscription ref")
	}
	if _, err := s.pending.FindBySubscriptionRef(ctx, e.SubscriptionRef); err == nil {
		s.logger.Info("checkout event already held as pending purchase",
			"event_id", e.ID, "subscription_ref", e.SubscriptionRef.String())
		s.metrics.IncrementDuplicate()
		return nil
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check pending purchases")
	}

	territory, err := s.catalog.Get(ctx, e.TerritoryID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) || dErrors.HasCode(err, dErrors.CodeNotFound) {
			s.logger.Error("checkout completed for unknown territory",
				"event_id", e.ID,
				"territory_id", e.TerritoryID.String(),
				"subscription_ref", e.SubscriptionRef.String())
			s.metrics.IncrementUnmatched()
			return nil
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load territory")
	}

	now := requestcontext.Now(ctx)
	tier := s.prices.Tier(e.PriceID)

	if e.IsGuest() {
		return s.recordGuestPurchase(ctx, e, territory, tier, now)
	}

	rec := ownershipmodels.NewActive(e.TerritoryID, e.PartyID, e.SubscriptionRef, tier, now)
	if err := s.ledger.Create(ctx, rec); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			// Another active record holds this territory. The payment went
			// through for a territory someone else already owns; redelivery
			// cannot fix it, so acknowledge and surface for an operator.
			s.logger.Error("checkout completed for territory with existing active claim",
				"event_id", e.ID,
				"territory_id", e.TerritoryID.String(),
				"subscription_ref", e.SubscriptionRef.String())
			s.metrics.IncrementUnmatched()
			return nil
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create ownership record")
	}

	if err := s.leases.Release(ctx, e.TerritoryID); err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		s.logger.Warn("failed to release lease after claim",
			"territory_id", e.TerritoryID.String(), "error", err)
	}
	s.cascadeHints(ctx, territory, id.StatusTaken)

	s.metrics.IncrementApplied(string(events.TypeCheckoutCompleted))
	s.publish(ctx, feed.Change{
		Kind:            feed.ChangeClaimed,
		TerritoryID:     e.TerritoryID,
		PartyID:         e.PartyID,
		SubscriptionRef: e.SubscriptionRef,
		PriceTier:       tier,
		At:              now,
	})
	s.logger.Info("ownership claimed",
		"territory_id", e.TerritoryID.String(),
		"party_id", e.PartyID.String(),
		"subscription_ref", e.SubscriptionRef.String(),
		"price_tier", tier.String())
	return nil
}

// recordGuestPurchase parks a checkout that completed before an account
// existed. The territory still reads as taken immediately; guest checkouts
// carry no lease to release.
func (s *Service) recordGuestPurchase(ctx context.Context, e events.CheckoutCompleted, territory *catalogmodels.Territory, tier id.PriceTier, now time.Time) error {
	p := &models.PendingPurchase{
		ID:              uuid.New(),
		Email:           e.Email,
		TerritoryID:     e.TerritoryID,
		SubscriptionRef: e.SubscriptionRef,
		CustomerRef:     e.CustomerRef,
		PriceTier:       tier,
		CreatedAt:       now,
	}
	if err := s.pending.Create(ctx, p); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			s.metrics.IncrementDuplicate()
			return nil
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create pending purchase")
	}

	s.cascadeHints(ctx, territory, id.StatusTaken)

	s.metrics.IncrementApplied(string(events.TypeCheckoutCompleted))
	s.publish(ctx, feed.Change{
		Kind:            feed.ChangeClaimed,
		TerritoryID:     e.TerritoryID,
		SubscriptionRef: e.SubscriptionRef,
		PriceTier:       tier,
		At:              now,
	})
	s.logger.Info("guest purchase recorded",
		"territory_id", e.TerritoryID.String(),
		"subscription_ref", e.SubscriptionRef.String())
	return nil
}

func (s *Service) applySubscriptionUpdated(ctx context.Context, e events.SubscriptionUpdated) error {
	if e.Status != "active" {
		// Deletion handles the terminal transition. Intermediate provider
		// states (past_due, paused) are informational here.
		s.logger.Info("subscription status noted",
			"subscription_ref", e.SubscriptionRef.String(), "status", e.Status)
		return nil
	}

	rec, err := s.ledger.EnsureActive(ctx, e.SubscriptionRef)
	if err != nil {
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			s.logger.Warn("subscription update for unknown ref",
				"event_id", e.ID, "subscription_ref", e.SubscriptionRef.String())
			s.metrics.IncrementUnmatched()
			return nil
		case errors.Is(err, sentinel.ErrConflict):
			// The territory was re-sold after this subscription canceled;
			// two active claims must never coexist.
			s.logger.Error("cannot re-activate subscription, territory has another active claim",
				"event_id", e.ID, "subscription_ref", e.SubscriptionRef.String())
			s.metrics.IncrementUnmatched()
			return nil
		default:
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to ensure subscription active")
		}
	}

	s.metrics.IncrementApplied(string(events.TypeSubscriptionUpdated))
	s.logger.Info("subscription confirmed active",
		"subscription_ref", e.SubscriptionRef.String(),
		"territory_id", rec.TerritoryID.String())
	return nil
}

func (s *Service) applySubscriptionDeleted(ctx context.Context, e events.SubscriptionDeleted) error {
	now := requestcontext.Now(ctx)
	rec, err := s.ledger.MarkCanceled(ctx, e.SubscriptionRef, now)
	if err != nil {
		switch {
		case errors.Is(err, sentinel.ErrInvalidState):
			s.logger.Info("subscription already canceled",
				"event_id", e.ID, "subscription_ref", e.SubscriptionRef.String())
			s.metrics.IncrementDuplicate()
			return nil
		case errors.Is(err, sentinel.ErrNotFound):
			s.logger.Warn("deletion event for unknown subscription",
				"event_id", e.ID, "subscription_ref", e.SubscriptionRef.String())
			s.metrics.IncrementUnmatched()
			return nil
		default:
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to cancel ownership record")
		}
	}

	if territory, err := s.catalog.Get(ctx, rec.TerritoryID); err == nil {
		s.cascadeHints(ctx, territory, id.StatusAvailable)
	} else {
		s.logger.Warn("canceled territory missing from catalog",
			"territory_id", rec.TerritoryID.String(), "error", err)
	}

	// The party may have held a discount that only this territory justified.
	if revoked, err := s.pricing.RevokeIfNoLongerEligible(ctx, rec.PartyID); err != nil {
		s.logger.Error("discount revocation sweep failed",
			"party_id", rec.PartyID.String(), "error", err)
	} else if revoked > 0 {
		s.logger.Info("discounts revoked after cancellation",
			"party_id", rec.PartyID.String(), "count", revoked)
	}

	s.metrics.IncrementApplied(string(events.TypeSubscriptionDeleted))
	s.publish(ctx, feed.Change{
		Kind:            feed.ChangeCanceled,
		TerritoryID:     rec.TerritoryID,
		PartyID:         rec.PartyID,
		SubscriptionRef: rec.SubscriptionRef,
		PriceTier:       rec.PriceTier,
		At:              now,
	})
	s.logger.Info("ownership canceled",
		"territory_id", rec.TerritoryID.String(),
		"party_id", rec.PartyID.String(),
		"subscription_ref", rec.SubscriptionRef.String())
	return nil
}

// LinkPendingPurchases attaches every unconsumed guest purchase matching the
// email to the newly created account. Each row converges independently: a
// failed row is logged and skipped, and a concurrent linker racing on the
// same row loses either the ledger insert or the consume stamp, never both.
func (s *Service) LinkPendingPurchases(ctx context.Context, email string, partyID id.PartyID) (int, error) {
	rows, err := s.pending.UnconsumedByEmail(ctx, email)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load pending purchases")
	}

	now := requestcontext.Now(ctx)
	linked := 0
	for _, p := range rows {
		rec := ownershipmodels.NewActive(p.TerritoryID, partyID, p.SubscriptionRef, p.PriceTier, now)
		if err := s.ledger.Create(ctx, rec); err != nil && !s.refAlreadyLedgered(ctx, p.SubscriptionRef, err) {
			s.logger.Error("failed to create ownership from pending purchase",
				"pending_id", p.ID.String(),
				"subscription_ref", p.SubscriptionRef.String(),
				"error", err)
			continue
		}
		if err := s.pending.MarkConsumed(ctx, p.ID, now); err != nil {
			if errors.Is(err, sentinel.ErrAlreadyUsed) {
				continue
			}
			s.logger.Error("failed to consume pending purchase",
				"pending_id", p.ID.String(), "error", err)
			continue
		}
		linked++
		s.publish(ctx, feed.Change{
			Kind:            feed.ChangeLinked,
			TerritoryID:     p.TerritoryID,
			PartyID:         partyID,
			SubscriptionRef: p.SubscriptionRef,
			PriceTier:       p.PriceTier,
			At:              now,
		})
		s.logger.Info("pending purchase linked",
			"territory_id", p.TerritoryID.String(),
			"party_id", partyID.String(),
			"subscription_ref", p.SubscriptionRef.String())
	}
	return linked, nil
}

// refAlreadyLedgered reports whether a Create conflict means the row from a
// previous partially-completed linking run already exists for this ref, in
// which case the caller should proceed to the consume stamp.
func (s *Service) refAlreadyLedgered(ctx context.Context, ref id.SubscriptionRef, createErr error) bool {
	if !errors.Is(createErr, sentinel.ErrConflict) {
		return false
	}
	_, err := s.ledger.FindBySubscriptionRef(ctx, ref)
	return err == nil
}

// cascadeHints pushes the listing hint onto the territory and, for a metro
// group, onto every member. Hints are display-only; failures are logged and
// never fail the event.
func (s *Service) cascadeHints(ctx context.Context, territory *catalogmodels.Territory, status id.TerritoryStatus) {
	ids := []id.TerritoryID{territory.ID}
	if territory.IsMetroGroup {
		members, err := s.catalog.MembersOf(ctx, territory.ID)
		if err != nil {
			s.logger.Warn("failed to list metro group members for hint cascade",
				"metro_group_id", territory.ID.String(), "error", err)
		}
		for _, m := range members {
			ids = append(ids, m.ID)
			// A stale hold on a member cannot survive the parent being sold.
			if status == id.StatusTaken {
				if err := s.leases.Release(ctx, m.ID); err != nil && !errors.Is(err, sentinel.ErrNotFound) {
					s.logger.Warn("failed to release member lease during cascade",
						"territory_id", m.ID.String(), "error", err)
				}
			}
		}
	}
	if err := s.catalog.UpdateStatusHint(ctx, ids, status); err != nil {
		s.logger.Warn("failed to update status hints",
			"territory_id", territory.ID.String(), "error", err)
	}
}

func (s *Service) publish(ctx context.Context, c feed.Change) {
	if s.feed == nil {
		return
	}
	if err := s.feed.Publish(ctx, c); err != nil {
		s.logger.Warn("failed to publish ownership change",
			"kind", string(c.Kind),
			"territory_id", c.TerritoryID.String(),
			"error", err)
	}
}
