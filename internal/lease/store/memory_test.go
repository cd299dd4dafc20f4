package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"turf/internal/lease/models"
	id "turf/pkg/domain"
	"turf/pkg/platform/sentinel"
	"turf/pkg/requestcontext"
)

type LeaseStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
	now   time.Time
}

func (s *LeaseStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
}

func TestLeaseStoreSuite(t *testing.T) {
	suite.Run(t, new(LeaseStoreSuite))
}

func (s *LeaseStoreSuite) newLease(territoryID id.TerritoryID, ttl time.Duration) *models.Lease {
	return &models.Lease{
		ID:          id.NewLeaseID(),
		TerritoryID: territoryID,
		PartyID:     id.NewPartyID(),
		ExpiresAt:   s.now.Add(ttl),
		CreatedAt:   s.now,
	}
}

func (s *LeaseStoreSuite) TestAcquire() {
	s.Run("second acquire on a held territory conflicts", func() {
		tid := id.NewTerritoryID()
		s.Require().NoError(s.store.Acquire(s.ctx, s.newLease(tid, 10*time.Minute)))
		s.Require().ErrorIs(s.store.Acquire(s.ctx, s.newLease(tid, 10*time.Minute)), sentinel.ErrConflict)
	})

	s.Run("expired lease is overwritten in place", func() {
		tid := id.NewTerritoryID()
		s.Require().NoError(s.store.Acquire(s.ctx, s.newLease(tid, 10*time.Minute)))

		later := requestcontext.WithTime(context.Background(), s.now.Add(11*time.Minute))
		replacement := s.newLease(tid, 10*time.Minute)
		replacement.ExpiresAt = s.now.Add(21 * time.Minute)
		s.Require().NoError(s.store.Acquire(later, replacement))

		got, err := s.store.Get(later, tid)
		s.Require().NoError(err)
		s.Equal(replacement.ID, got.ID)
	})

	s.Run("exactly one concurrent acquirer wins", func() {
		tid := id.NewTerritoryID()
		var wg sync.WaitGroup
		errs := make([]error, 20)
		for i := range errs {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				errs[i] = s.store.Acquire(s.ctx, s.newLease(tid, 10*time.Minute))
			}(i)
		}
		wg.Wait()

		wins := 0
		for _, err := range errs {
			if err == nil {
				wins++
			} else {
				s.Require().ErrorIs(err, sentinel.ErrConflict)
			}
		}
		s.Equal(1, wins)
	})
}

func (s *LeaseStoreSuite) TestVisibility() {
	tid := id.NewTerritoryID()
	s.Require().NoError(s.store.Acquire(s.ctx, s.newLease(tid, 10*time.Minute)))

	s.Run("held while unexpired", func() {
		held, err := s.store.Held(s.ctx, tid)
		s.Require().NoError(err)
		s.True(held)
	})

	s.Run("invisible after expiry without any reap", func() {
		later := requestcontext.WithTime(context.Background(), s.now.Add(11*time.Minute))

		held, err := s.store.Held(later, tid)
		s.Require().NoError(err)
		s.False(held)

		_, err = s.store.Get(later, tid)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)

		set, err := s.store.HeldSet(later)
		s.Require().NoError(err)
		s.False(set[tid])
	})
}

func (s *LeaseStoreSuite) TestSetCheckoutRef() {
	tid := id.NewTerritoryID()
	s.Require().NoError(s.store.Acquire(s.ctx, s.newLease(tid, 10*time.Minute)))

	s.Require().NoError(s.store.SetCheckoutRef(s.ctx, tid, "cs_test_001"))

	got, err := s.store.Get(s.ctx, tid)
	s.Require().NoError(err)
	s.Equal("cs_test_001", got.CheckoutRef)

	s.Require().ErrorIs(s.store.SetCheckoutRef(s.ctx, id.NewTerritoryID(), "cs_test_002"), sentinel.ErrNotFound)
}

func (s *LeaseStoreSuite) TestDeleteExpired() {
	live := id.NewTerritoryID()
	stale := id.NewTerritoryID()
	s.Require().NoError(s.store.Acquire(s.ctx, s.newLease(live, 30*time.Minute)))
	s.Require().NoError(s.store.Acquire(s.ctx, s.newLease(stale, 5*time.Minute)))

	later := requestcontext.WithTime(context.Background(), s.now.Add(10*time.Minute))
	freed, err := s.store.DeleteExpired(later)
	s.Require().NoError(err)
	s.Equal([]id.TerritoryID{stale}, freed)

	// Idempotent: a second pass finds nothing.
	freed, err = s.store.DeleteExpired(later)
	s.Require().NoError(err)
	s.Empty(freed)

	held, err := s.store.Held(later, live)
	s.Require().NoError(err)
	s.True(held)
}
