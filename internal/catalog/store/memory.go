package store

import (
	"context"
	"strings"
	"sync"

	"turf/internal/catalog/models"
	id "turf/pkg/domain"
	"turf/pkg/platform/sentinel"
	platformstrings "turf/pkg/platform/strings"
	"turf/pkg/requestcontext"
)

// InMemory implements the catalog store with a mutex-guarded map. Used by
// unit tests and dev mode; production uses the PostgreSQL store.
type InMemory struct {
	mu          sync.RWMutex
	territories map[id.TerritoryID]*models.Territory
}

// NewInMemory creates an empty in-memory catalog store.
func NewInMemory() *InMemory {
	return &InMemory{territories: make(map[id.TerritoryID]*models.Territory)}
}

// Create adds a territory. Used by seeding and tests; catalog administration
// is out of scope for the service itself.
func (s *InMemory) Create(ctx context.Context, t *models.Territory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.territories[t.ID]; ok {
		return sentinel.ErrConflict
	}
	cp := *t
	cp.Zips = platformstrings.DedupeAndTrim(t.Zips)
	s.territories[t.ID] = &cp
	return nil
}

// Get returns a territory by id.
func (s *InMemory) Get(ctx context.Context, territoryID id.TerritoryID) (*models.Territory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.territories[territoryID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

// List returns every territory, metro-groups included.
func (s *InMemory) List(ctx context.Context) ([]*models.Territory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Territory, 0, len(s.territories))
	for _, t := range s.territories {
		cp := *t
		out = append(out, &cp)
	}
	return out, nil
}

// FindByZip returns the territory whose membership set contains zip.
func (s *InMemory) FindByZip(ctx context.Context, zip string) (*models.Territory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.territories {
		if t.CoversZip(strings.TrimSpace(zip)) {
			cp := *t
			return &cp, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

// MembersOf returns the member territories of a metro-group.
func (s *InMemory) MembersOf(ctx context.Context, metroGroupID id.TerritoryID) ([]*models.Territory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Territory
	for _, t := range s.territories {
		if t.HasParent() && *t.MetroGroupID == metroGroupID {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

// UpdateStatusHint bulk-updates the cached listing hint. Missing ids are
// skipped: the hint is advisory and cascades must not fail on stale members.
func (s *InMemory) UpdateStatusHint(ctx context.Context, ids []id.TerritoryID, status id.TerritoryStatus) error {
	now := requestcontext.Now(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tid := range ids {
		if t, ok := s.territories[tid]; ok {
			t.StatusHint = status
			t.UpdatedAt = now
		}
	}
	return nil
}
