package resolver

import (
	"context"
	"errors"
	"log/slog"
	"time"

	catalogmodels "turf/internal/catalog/models"
	"turf/internal/ownership"
	ownershipmetrics "turf/internal/ownership/metrics"
	"turf/internal/ownership/models"
	id "turf/pkg/domain"
	dErrors "turf/pkg/domain-errors"
	"turf/pkg/platform/sentinel"
)

// Catalog is the slice of the catalog the resolver needs.
type Catalog interface {
	Get(ctx context.Context, territoryID id.TerritoryID) (*catalogmodels.Territory, error)
	List(ctx context.Context) ([]*catalogmodels.Territory, error)
}

// LeaseChecker answers whether an unexpired lease holds a territory. Expired
// leases must be invisible here even before a reap pass runs.
type LeaseChecker interface {
	Held(ctx context.Context, territoryID id.TerritoryID) (bool, error)
	HeldSet(ctx context.Context) (map[id.TerritoryID]bool, error)
}

// Resolution is the computed effective state of one territory.
type Resolution struct {
	Status  id.TerritoryStatus
	OwnerID *id.PartyID
}

// ResolvedTerritory pairs a catalog row with its computed state for listings.
type ResolvedTerritory struct {
	Territory *catalogmodels.Territory
	Resolution
}

// Service computes effective ownership. Precedence: a metro-group's own
// record; then the parent metro-group's active record (which wins over any
// direct record — a simultaneous direct record is an integrity fault, logged
// and counted, never silently deleted); then the territory's own record;
// then an unexpired lease; then available.
type Service struct {
	catalog Catalog
	ledger  ownership.Store
	leases  LeaseChecker
	logger  *slog.Logger
	metrics *ownershipmetrics.Metrics
}

// New constructs the resolver. metrics may be nil in tests.
func New(catalog Catalog, ledger ownership.Store, leases LeaseChecker, logger *slog.Logger, metrics *ownershipmetrics.Metrics) *Service {
	return &Service{catalog: catalog, ledger: ledger, leases: leases, logger: logger, metrics: metrics}
}

// ResolveStatus computes the effective status and owner of one territory.
func (s *Service) ResolveStatus(ctx context.Context, t *catalogmodels.Territory) (Resolution, error) {
	if t.IsMetroGroup {
		rec, err := s.directActive(ctx, t.ID)
		if err != nil {
			return Resolution{}, err
		}
		if rec != nil {
			return taken(rec.PartyID), nil
		}
		return Resolution{Status: id.StatusAvailable}, nil
	}

	if t.HasParent() {
		parentRec, err := s.directActive(ctx, *t.MetroGroupID)
		if err != nil {
			return Resolution{}, err
		}
		if parentRec != nil {
			// The metro-group claim covers this member. A direct record in
			// this state is a data-integrity fault: surface it, prefer the
			// metro-group claim, and leave the data for investigation.
			direct, derr := s.directActive(ctx, t.ID)
			switch {
			case derr != nil:
				s.logger.Warn("failed to check member for dual ownership",
					"territory_id", t.ID.String(), "error", derr)
			case direct != nil:
				s.metrics.IncrementIntegrityFault()
				s.logger.Warn("territory has both direct and metro-group active ownership",
					"territory_id", t.ID.String(),
					"metro_group_id", t.MetroGroupID.String(),
					"direct_subscription_ref", direct.SubscriptionRef.String())
			}
			return taken(parentRec.PartyID), nil
		}
	}

	rec, err := s.directActive(ctx, t.ID)
	if err != nil {
		return Resolution{}, err
	}
	if rec != nil {
		return taken(rec.PartyID), nil
	}

	held, err := s.leases.Held(ctx, t.ID)
	if err != nil {
		return Resolution{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check lease")
	}
	if held {
		return Resolution{Status: id.StatusHeld}, nil
	}
	return Resolution{Status: id.StatusAvailable}, nil
}

// ResolveTerritory is ResolveStatus for callers that only have the id.
func (s *Service) ResolveTerritory(ctx context.Context, territoryID id.TerritoryID) (Resolution, error) {
	t, err := s.catalog.Get(ctx, territoryID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return Resolution{}, dErrors.New(dErrors.CodeNotFound, "territory not found")
		}
		return Resolution{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load territory")
	}
	return s.ResolveStatus(ctx, t)
}

// ResolveOwner returns the effective owner, nil when unowned.
func (s *Service) ResolveOwner(ctx context.Context, territoryID id.TerritoryID) (*id.PartyID, error) {
	res, err := s.ResolveTerritory(ctx, territoryID)
	if err != nil {
		return nil, err
	}
	return res.OwnerID, nil
}

// ResolveAll computes the status of every territory in one pass: active
// records and held leases are each loaded once, then membership is mapped in
// memory. Listing endpoints must use this instead of per-row resolution.
func (s *Service) ResolveAll(ctx context.Context) ([]ResolvedTerritory, error) {
	start := time.Now()
	defer s.metrics.ObserveResolveAll(start)

	territories, err := s.catalog.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list territories")
	}
	active, err := s.ledger.ListActive(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list active ownerships")
	}
	held, err := s.leases.HeldSet(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list held leases")
	}

	activeByTerritory := make(map[id.TerritoryID]*models.Record, len(active))
	for _, rec := range active {
		activeByTerritory[rec.TerritoryID] = rec
	}

	out := make([]ResolvedTerritory, 0, len(territories))
	for _, t := range territories {
		out = append(out, ResolvedTerritory{
			Territory:  t,
			Resolution: s.resolveFromMaps(t, activeByTerritory, held),
		})
	}
	return out, nil
}

func (s *Service) resolveFromMaps(t *catalogmodels.Territory, active map[id.TerritoryID]*models.Record, held map[id.TerritoryID]bool) Resolution {
	if t.IsMetroGroup {
		if rec := active[t.ID]; rec != nil {
			return taken(rec.PartyID)
		}
		return Resolution{Status: id.StatusAvailable}
	}
	if t.HasParent() {
		if parentRec := active[*t.MetroGroupID]; parentRec != nil {
			if direct := active[t.ID]; direct != nil {
				s.metrics.IncrementIntegrityFault()
				s.logger.Warn("territory has both direct and metro-group active ownership",
					"territory_id", t.ID.String(),
					"metro_group_id", t.MetroGroupID.String(),
					"direct_subscription_ref", direct.SubscriptionRef.String())
			}
			return taken(parentRec.PartyID)
		}
	}
	if rec := active[t.ID]; rec != nil {
		return taken(rec.PartyID)
	}
	if held[t.ID] {
		return Resolution{Status: id.StatusHeld}
	}
	return Resolution{Status: id.StatusAvailable}
}

func (s *Service) directActive(ctx context.Context, territoryID id.TerritoryID) (*models.Record, error) {
	rec, err := s.ledger.ActiveByTerritory(ctx, territoryID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load active ownership")
	}
	return rec, nil
}

func taken(owner id.PartyID) Resolution {
	return Resolution{Status: id.StatusTaken, OwnerID: &owner}
}
