package pending

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"turf/internal/reconciler/models"
	id "turf/pkg/domain"
	"turf/pkg/platform/sentinel"
)

// InMemory implements the pending-purchase store with a mutex-guarded map.
type InMemory struct {
	mu   sync.RWMutex
	rows map[uuid.UUID]*models.PendingPurchase
}

// NewInMemory creates an empty in-memory pending-purchase store.
func NewInMemory() *InMemory {
	return &InMemory{rows: make(map[uuid.UUID]*models.PendingPurchase)}
}

func (s *InMemory) Create(ctx context.Context, p *models.PendingPurchase) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.rows {
		if existing.SubscriptionRef == p.SubscriptionRef {
			return sentinel.ErrConflict
		}
	}
	cp := *p
	s.rows[p.ID] = &cp
	return nil
}

func (s *InMemory) FindBySubscriptionRef(ctx context.Context, ref id.SubscriptionRef) (*models.PendingPurchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.rows {
		if p.SubscriptionRef == ref {
			cp := *p
			return &cp, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemory) UnconsumedByEmail(ctx context.Context, email string) ([]*models.PendingPurchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.PendingPurchase
	for _, p := range s.rows {
		if !p.Consumed() && strings.EqualFold(p.Email, email) {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

// MarkConsumed stamps the row exactly once. A second call returns
// sentinel.ErrAlreadyUsed so redundant linking runs converge.
func (s *InMemory) MarkConsumed(ctx context.Context, pendingID uuid.UUID, when time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.rows[pendingID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if p.Consumed() {
		return sentinel.ErrAlreadyUsed
	}
	t := when
	p.ConsumedAt = &t
	return nil
}
