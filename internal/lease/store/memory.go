package store

import (
	"context"
	"sync"

	"turf/internal/lease/models"
	id "turf/pkg/domain"
	"turf/pkg/platform/sentinel"
	"turf/pkg/requestcontext"
)

// InMemory implements the lease store with a mutex-guarded map. The mutex
// makes Acquire's check-and-insert a single atomic unit, mirroring what the
// Redis store gets from SET NX. Used by unit tests and dev mode.
type InMemory struct {
	mu     sync.RWMutex
	leases map[id.TerritoryID]*models.Lease
}

// NewInMemory creates an empty in-memory lease store.
func NewInMemory() *InMemory {
	return &InMemory{leases: make(map[id.TerritoryID]*models.Lease)}
}

// Acquire inserts the lease unless an unexpired one already holds the
// territory. An expired lease is overwritten in place: lazy reaping means
// stale entries must never block a new buyer.
func (s *InMemory) Acquire(ctx context.Context, l *models.Lease) error {
	now := requestcontext.Now(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.leases[l.TerritoryID]; ok && !existing.Expired(now) {
		return sentinel.ErrConflict
	}
	cp := *l
	s.leases[l.TerritoryID] = &cp
	return nil
}

// Get returns the territory's unexpired lease.
func (s *InMemory) Get(ctx context.Context, territoryID id.TerritoryID) (*models.Lease, error) {
	now := requestcontext.Now(ctx)
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.leases[territoryID]
	if !ok || l.Expired(now) {
		return nil, sentinel.ErrNotFound
	}
	cp := *l
	return &cp, nil
}

// Release deletes the territory's lease if present.
func (s *InMemory) Release(ctx context.Context, territoryID id.TerritoryID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.leases, territoryID)
	return nil
}

// SetCheckoutRef attaches the external checkout session to an unexpired lease.
func (s *InMemory) SetCheckoutRef(ctx context.Context, territoryID id.TerritoryID, ref string) error {
	now := requestcontext.Now(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.leases[territoryID]
	if !ok || l.Expired(now) {
		return sentinel.ErrNotFound
	}
	l.CheckoutRef = ref
	return nil
}

// Held reports whether an unexpired lease holds the territory.
func (s *InMemory) Held(ctx context.Context, territoryID id.TerritoryID) (bool, error) {
	_, err := s.Get(ctx, territoryID)
	if err != nil {
		return false, nil
	}
	return true, nil
}

// HeldSet returns every territory with an unexpired lease.
func (s *InMemory) HeldSet(ctx context.Context) (map[id.TerritoryID]bool, error) {
	now := requestcontext.Now(ctx)
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[id.TerritoryID]bool)
	for tid, l := range s.leases {
		if !l.Expired(now) {
			out[tid] = true
		}
	}
	return out, nil
}

// DeleteExpired removes leases whose TTL has passed and returns the freed
// territories. Safe to run redundantly: the predicate is expiry, not
// identity.
func (s *InMemory) DeleteExpired(ctx context.Context) ([]id.TerritoryID, error) {
	now := requestcontext.Now(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	var freed []id.TerritoryID
	for tid, l := range s.leases {
		if l.Expired(now) {
			delete(s.leases, tid)
			freed = append(freed, tid)
		}
	}
	return freed, nil
}
