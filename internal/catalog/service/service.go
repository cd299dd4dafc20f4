package service

import (
	"context"
	"errors"
	"strings"

	"turf/internal/catalog/models"
	id "turf/pkg/domain"
	dErrors "turf/pkg/domain-errors"
	"turf/pkg/platform/sentinel"
)

// Store is the catalog persistence contract. Implemented by the in-memory
// and PostgreSQL stores.
type Store interface {
	Create(ctx context.Context, t *models.Territory) error
	Get(ctx context.Context, territoryID id.TerritoryID) (*models.Territory, error)
	List(ctx context.Context) ([]*models.Territory, error)
	FindByZip(ctx context.Context, zip string) (*models.Territory, error)
	MembersOf(ctx context.Context, metroGroupID id.TerritoryID) ([]*models.Territory, error)
	UpdateStatusHint(ctx context.Context, ids []id.TerritoryID, status id.TerritoryStatus) error
}

// Service exposes read access to the territory catalog and the hint-update
// path used by reconciliation cascades. Catalog mutation beyond hints is
// administrative and out of scope.
type Service struct {
	store Store
}

// New constructs the catalog service.
func New(store Store) *Service {
	return &Service{store: store}
}

// Get returns one territory.
func (s *Service) Get(ctx context.Context, territoryID id.TerritoryID) (*models.Territory, error) {
	t, err := s.store.Get(ctx, territoryID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "territory not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load territory")
	}
	return t, nil
}

// List returns the full catalog.
func (s *Service) List(ctx context.Context) ([]*models.Territory, error) {
	ts, err := s.store.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list territories")
	}
	return ts, nil
}

// FindByZip maps a ZIP-equivalent key to its covering territory.
func (s *Service) FindByZip(ctx context.Context, zip string) (*models.Territory, error) {
	zip = strings.TrimSpace(zip)
	if zip == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "zip is required")
	}
	t, err := s.store.FindByZip(ctx, zip)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "no territory covers this zip")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to find territory by zip")
	}
	return t, nil
}

// Neighbors returns the territories adjacent to the given one.
func (s *Service) Neighbors(ctx context.Context, territoryID id.TerritoryID) ([]*models.Territory, error) {
	t, err := s.Get(ctx, territoryID)
	if err != nil {
		return nil, err
	}
	out := make([]*models.Territory, 0, len(t.AdjacentIDs))
	for _, aid := range t.AdjacentIDs {
		n, err := s.store.Get(ctx, aid)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				// Dangling adjacency entries are a catalog administration
				// problem, not a read failure.
				continue
			}
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load neighbor")
		}
		out = append(out, n)
	}
	return out, nil
}

// MembersOf returns the member territories of a metro-group.
func (s *Service) MembersOf(ctx context.Context, metroGroupID id.TerritoryID) ([]*models.Territory, error) {
	ms, err := s.store.MembersOf(ctx, metroGroupID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load metro-group members")
	}
	return ms, nil
}

// UpdateStatusHint bulk-updates the cached listing hint.
func (s *Service) UpdateStatusHint(ctx context.Context, ids []id.TerritoryID, status id.TerritoryStatus) error {
	if len(ids) == 0 {
		return nil
	}
	if !status.IsValid() {
		return dErrors.New(dErrors.CodeInvalidInput, "invalid territory status")
	}
	if err := s.store.UpdateStatusHint(ctx, ids, status); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update status hints")
	}
	return nil
}
