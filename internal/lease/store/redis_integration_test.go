//go:build integration

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
	"turf/pkg/testutil/containers"
)

type RedisLeaseSuite struct {
	suite.Suite
	rd    *containers.RedisContainer
	store *Redis
	ctx   context.Context
}

func (s *RedisLeaseSuite) SetupSuite() {
	s.ctx = context.Background()
	s.rd = containers.NewRedisContainer(s.T())
	s.store = NewRedis(s.rd.Client)
}

func (s *RedisLeaseSuite) TearDownSuite() {
	if s.rd != nil {
		_ = s.rd.Client.Close()
		_ = s.rd.Container.Terminate(s.ctx)
	}
}

func (s *RedisLeaseSuite) SetupTest() {
	s.Require().NoError(s.rd.FlushAll(s.ctx))
}

func TestRedisLeaseSuite(t *testing.T) {
	suite.Run(t, new(RedisLeaseSuite))
}

func (s *RedisLeaseSuite) newLease(territoryID id.TerritoryID, ttl time.Duration) *models.Lease {
	now := time.Now()
	return &models.Lease{
		ID:          id.NewLeaseID(),
		TerritoryID: territoryID,
		PartyID:     id.NewPartyID(),
		ExpiresAt:   now.Add(ttl),
		CreatedAt:   now,
	}
}

func (s *RedisLeaseSuite) TestAcquireIsExclusive() {
	tid := id.NewTerritoryID()
	s.Require().NoError(s.store.Acquire(s.ctx, s.newLease(tid, time.Minute)))

	s.ErrorIs(s.store.Acquire(s.ctx, s.newLease(tid, time.Minute)), sentinel.ErrConflict)

	held, err := s.store.Held(s.ctx, tid)
	s.Require().NoError(err)
	s.True(held)
}

func (s *RedisLeaseSuite) TestConcurrentAcquireHasOneWinner() {
	tid := id.NewTerritoryID()

	const acquirers = 20
	var wg sync.WaitGroup
	errs := make([]error, acquirers)
	for i := 0; i < acquirers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = s.store.Acquire(s.ctx, s.newLease(tid, time.Minute))
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
		} else {
			s.ErrorIs(err, sentinel.ErrConflict)
		}
	}
	s.Equal(1, wins)
}

func (s *RedisLeaseSuite) TestExpiryFreesTheTerritory() {
	tid := id.NewTerritoryID()
	s.Require().NoError(s.store.Acquire(s.ctx, s.newLease(tid, 100*time.Millisecond)))

	s.Require().Eventually(func() bool {
		held, err := s.store.Held(s.ctx, tid)
		return err == nil && !held
	}, 5*time.Second, 50*time.Millisecond)

	s.NoError(s.store.Acquire(s.ctx, s.newLease(tid, time.Minute)))
}

func (s *RedisLeaseSuite) TestSetCheckoutRefKeepsExpiry() {
	tid := id.NewTerritoryID()
	s.Require().NoError(s.store.Acquire(s.ctx, s.newLease(tid, 500*time.Millisecond)))
	s.Require().NoError(s.store.SetCheckoutRef(s.ctx, tid, "cs_test_001"))

	l, err := s.store.Get(s.ctx, tid)
	s.Require().NoError(err)
	s.Equal("cs_test_001", l.CheckoutRef)

	// Annotating must not extend the hold.
	s.Require().Eventually(func() bool {
		held, err := s.store.Held(s.ctx, tid)
		return err == nil && !held
	}, 5*time.Second, 50*time.Millisecond)
}

func (s *RedisLeaseSuite) TestReleaseAndHeldSet() {
	t1, t2 := id.NewTerritoryID(), id.NewTerritoryID()
	s.Require().NoError(s.store.Acquire(s.ctx, s.newLease(t1, time.Minute)))
	s.Require().NoError(s.store.Acquire(s.ctx, s.newLease(t2, time.Minute)))

	held, err := s.store.HeldSet(s.ctx)
	s.Require().NoError(err)
	s.Len(held, 2)
	s.True(held[t1])

	s.Require().NoError(s.store.Release(s.ctx, t1))
	_, err = s.store.Get(s.ctx, t1)
	s.ErrorIs(err, sentinel.ErrNotFound)

	// Releasing an unheld territory stays idempotent.
	s.NoError(s.store.Release(s.ctx, t1))
}
