package store

import (
	"context"
	"sync"
	"time"

	"turf/internal/ownership/models"
	id "turf/pkg/domain"
	"turf/pkg/platform/sentinel"
)

// InMemory implements the ledger with a mutex-guarded slice, preserving
// append order the way the PostgreSQL store preserves rows. Used by unit
// tests and dev mode.
type InMemory struct {
	mu      sync.RWMutex
	records []*models.Record
}

// NewInMemory creates an empty in-memory ledger.
func NewInMemory() *InMemory {
	return &InMemory{}
}

func (s *InMemory) Create(ctx context.Context, r *models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.records {
		if existing.SubscriptionRef == r.SubscriptionRef {
			return sentinel.ErrConflict
		}
		if existing.TerritoryID == r.TerritoryID && existing.IsActive() && r.IsActive() {
			return sentinel.ErrConflict
		}
	}
	cp := *r
	s.records = append(s.records, &cp)
	return nil
}

func (s *InMemory) FindBySubscriptionRef(ctx context.Context, ref id.SubscriptionRef) (*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.records {
		if r.SubscriptionRef == ref {
			cp := *r
			return &cp, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemory) ActiveByTerritory(ctx context.Context, territoryID id.TerritoryID) (*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.records {
		if r.TerritoryID == territoryID && r.IsActive() {
			cp := *r
			return &cp, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemory) ActiveByParty(ctx context.Context, partyID id.PartyID) ([]*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Record
	for _, r := range s.records {
		if r.PartyID == partyID && r.IsActive() {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *InMemory) ListActive(ctx context.Context) ([]*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Record
	for _, r := range s.records {
		if r.IsActive() {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *InMemory) MarkCanceled(ctx context.Context, ref id.SubscriptionRef, endedAt time.Time) (*models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.records {
		if r.SubscriptionRef != ref {
			continue
		}
		if !r.IsActive() {
			cp := *r
			return &cp, sentinel.ErrInvalidState
		}
		r.Status = id.OwnershipCanceled
		end := endedAt
		r.EndedAt = &end
		cp := *r
		return &cp, nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemory) EnsureActive(ctx context.Context, ref id.SubscriptionRef) (*models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.records {
		if r.SubscriptionRef != ref {
			continue
		}
		if !r.IsActive() {
			// Guard the one-active-per-territory invariant before reviving.
			for _, other := range s.records {
				if other != r && other.TerritoryID == r.TerritoryID && other.IsActive() {
					return nil, sentinel.ErrConflict
				}
			}
			r.Status = id.OwnershipActive
			r.EndedAt = nil
		}
		cp := *r
		return &cp, nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemory) UpdatePriceTier(ctx context.Context, ref id.SubscriptionRef, tier id.PriceTier) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.records {
		if r.SubscriptionRef == ref {
			r.PriceTier = tier
			return nil
		}
	}
	return sentinel.ErrNotFound
}
