package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	catalogmodels "turf/internal/catalog/models"
	leasemetrics "turf/internal/lease/metrics"
	"turf/internal/lease/models"
	"turf/internal/ownership/resolver"
	id "turf/pkg/domain"
	dErrors "turf/pkg/domain-errors"
	"turf/pkg/platform/sentinel"
	"turf/pkg/requestcontext"
)

// DefaultTTL bounds an abandoned checkout: long enough to finish paying,
// short enough that a walked-away buyer frees the territory quickly.
const DefaultTTL = 10 * time.Minute

// Store is the lease persistence contract. Acquire must be a store-level
// atomic check-and-insert: of two concurrent calls for the same territory
// exactly one succeeds, the other gets sentinel.ErrConflict.
type Store interface {
	Acquire(ctx context.Context, l *models.Lease) error
	Get(ctx context.Context, territoryID id.TerritoryID) (*models.Lease, error)
	Release(ctx context.Context, territoryID id.TerritoryID) error
	SetCheckoutRef(ctx context.Context, territoryID id.TerritoryID, ref string) error
	Held(ctx context.Context, territoryID id.TerritoryID) (bool, error)
	HeldSet(ctx context.Context) (map[id.TerritoryID]bool, error)
	DeleteExpired(ctx context.Context) ([]id.TerritoryID, error)
}

// Resolver is the slice of the ownership resolver the lease manager needs.
type Resolver interface {
	ResolveTerritory(ctx context.Context, territoryID id.TerritoryID) (resolver.Resolution, error)
}

// Hints is the slice of the catalog the lease manager touches: listing-hint
// updates (best effort only; the resolver never reads the hint for
// correctness) and the full listing the reap sweep walks.
type Hints interface {
	UpdateStatusHint(ctx context.Context, ids []id.TerritoryID, status id.TerritoryStatus) error
	List(ctx context.Context) ([]*catalogmodels.Territory, error)
}

// Service is the lease manager: TTL-based holds that keep two buyers from
// starting checkout on the same territory. Holds are advisory for UX and
// race avoidance; final state always comes from the event reconciler.
type Service struct {
	store    Store
	resolver Resolver
	hints    Hints
	ttl      time.Duration
	logger   *slog.Logger
	metrics  *leasemetrics.Metrics
}

// Option configures the service.
type Option func(*Service)

// WithTTL overrides the default hold TTL.
func WithTTL(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.ttl = d
		}
	}
}

// WithMetrics attaches prometheus metrics.
func WithMetrics(m *leasemetrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// New constructs the lease manager.
func New(store Store, res Resolver, hints Hints, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{store: store, resolver: res, hints: hints, ttl: DefaultTTL, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Acquire reserves a territory for a checkout. It succeeds only if the
// territory currently resolves available and no unexpired lease exists; the
// store's compare-and-set closes the race between the two checks.
func (s *Service) Acquire(ctx context.Context, territoryID id.TerritoryID, partyID id.PartyID) (*models.Lease, error) {
	if partyID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "requesting party is required")
	}

	res, err := s.resolver.ResolveTerritory(ctx, territoryID)
	if err != nil {
		return nil, err
	}
	if res.Status != id.StatusAvailable {
		s.metrics.IncrementConflict()
		return nil, dErrors.New(dErrors.CodeConflict, "territory is not available")
	}

	now := requestcontext.Now(ctx)
	l := &models.Lease{
		ID:          id.NewLeaseID(),
		TerritoryID: territoryID,
		PartyID:     partyID,
		ExpiresAt:   now.Add(s.ttl),
		CreatedAt:   now,
	}
	if err := s.store.Acquire(ctx, l); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			s.metrics.IncrementConflict()
			return nil, dErrors.New(dErrors.CodeConflict, "territory is already held")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to acquire lease")
	}

	s.metrics.IncrementAcquired()
	if err := s.hints.UpdateStatusHint(ctx, []id.TerritoryID{territoryID}, id.StatusHeld); err != nil {
		s.logger.Warn("failed to update status hint after acquire",
			"territory_id", territoryID.String(), "error", err)
	}
	return l, nil
}

// AttachCheckoutRef links the external checkout session to the hold.
func (s *Service) AttachCheckoutRef(ctx context.Context, territoryID id.TerritoryID, ref string) error {
	if err := s.store.SetCheckoutRef(ctx, territoryID, ref); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "no active hold for territory")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to attach checkout ref")
	}
	return nil
}

// Release drops the hold explicitly (buyer backed out, or checkout
// completed and the reconciler consumed the lease).
func (s *Service) Release(ctx context.Context, territoryID id.TerritoryID) error {
	if err := s.store.Release(ctx, territoryID); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to release lease")
	}
	s.resetHintIfAvailable(ctx, territoryID)
	return nil
}

// Reap deletes expired leases and resets listing hints for territories whose
// hold lapsed without an ownership record appearing. Safe to run redundantly
// from multiple callers: the deletion predicate is expiry, not identity.
//
// The second phase sweeps held-hinted territories with no live lease. The
// Redis store expires keys itself and reports nothing from DeleteExpired, so
// the sweep is what repairs hints there.
func (s *Service) Reap(ctx context.Context) (int, error) {
	freed, err := s.store.DeleteExpired(ctx)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete expired leases")
	}
	for _, tid := range freed {
		s.resetHintIfAvailable(ctx, tid)
	}

	territories, err := s.hints.List(ctx)
	if err != nil {
		return len(freed), dErrors.Wrap(err, dErrors.CodeInternal, "failed to sweep status hints")
	}
	swept := 0
	for _, t := range territories {
		if t.StatusHint != id.StatusHeld {
			continue
		}
		held, err := s.store.Held(ctx, t.ID)
		if err != nil {
			s.logger.Warn("failed to check lease during reap",
				"territory_id", t.ID.String(), "error", err)
			continue
		}
		if !held && s.resetHintIfAvailable(ctx, t.ID) {
			swept++
		}
	}

	s.metrics.AddReaped(len(freed) + swept)
	return len(freed) + swept, nil
}

// Held exposes unexpired-lease checks to the resolver.
func (s *Service) Held(ctx context.Context, territoryID id.TerritoryID) (bool, error) {
	return s.store.Held(ctx, territoryID)
}

// HeldSet exposes the bulk variant for listing resolution.
func (s *Service) HeldSet(ctx context.Context) (map[id.TerritoryID]bool, error) {
	return s.store.HeldSet(ctx)
}

// Get returns the territory's unexpired lease.
func (s *Service) Get(ctx context.Context, territoryID id.TerritoryID) (*models.Lease, error) {
	l, err := s.store.Get(ctx, territoryID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "no active hold for territory")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load lease")
	}
	return l, nil
}

// resetHintIfAvailable recomputes the territory's status and, when it truly
// is available, repairs the listing hint and reports true. A hold that
// converted to an ownership record resolves taken; the hint is repaired to
// taken but the territory is not reported as freed.
func (s *Service) resetHintIfAvailable(ctx context.Context, territoryID id.TerritoryID) bool {
	res, err := s.resolver.ResolveTerritory(ctx, territoryID)
	if err != nil {
		s.logger.Warn("failed to resolve territory after lease removal",
			"territory_id", territoryID.String(), "error", err)
		return false
	}
	if res.Status == id.StatusHeld {
		return false
	}
	if err := s.hints.UpdateStatusHint(ctx, []id.TerritoryID{territoryID}, res.Status); err != nil {
		s.logger.Warn("failed to reset status hint",
			"territory_id", territoryID.String(), "error", err)
		return false
	}
	return res.Status == id.StatusAvailable
}
