package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"turf/internal/ownership/models"
	id "turf/pkg/domain"
	"turf/pkg/platform/sentinel"
)

type LedgerStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
	now   time.Time
}

func (s *LedgerStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

func TestLedgerStoreSuite(t *testing.T) {
	suite.Run(t, new(LedgerStoreSuite))
}

func (s *LedgerStoreSuite) newRecord(ref string) *models.Record {
	return models.NewActive(id.NewTerritoryID(), id.NewPartyID(), id.SubscriptionRef(ref), id.TierStandard, s.now)
}

func (s *LedgerStoreSuite) TestUniqueness() {
	s.Run("rejects a second active record for the same territory", func() {
		first := s.newRecord("sub_1")
		s.Require().NoError(s.store.Create(s.ctx, first))

		second := s.newRecord("sub_2")
		second.TerritoryID = first.TerritoryID
		s.Require().ErrorIs(s.store.Create(s.ctx, second), sentinel.ErrConflict)
	})

	s.Run("rejects a duplicate subscription ref even across territories", func() {
		first := s.newRecord("sub_dup")
		s.Require().NoError(s.store.Create(s.ctx, first))

		second := s.newRecord("sub_dup")
		s.Require().ErrorIs(s.store.Create(s.ctx, second), sentinel.ErrConflict)
	})

	s.Run("allows a new active record after cancellation", func() {
		first := s.newRecord("sub_gone")
		s.Require().NoError(s.store.Create(s.ctx, first))
		_, err := s.store.MarkCanceled(s.ctx, first.SubscriptionRef, s.now)
		s.Require().NoError(err)

		second := s.newRecord("sub_next")
		second.TerritoryID = first.TerritoryID
		s.Require().NoError(s.store.Create(s.ctx, second))
	})
}

func (s *LedgerStoreSuite) TestMarkCanceled() {
	rec := s.newRecord("sub_cancel")
	s.Require().NoError(s.store.Create(s.ctx, rec))

	s.Run("cancels an active record with the end time", func() {
		canceled, err := s.store.MarkCanceled(s.ctx, rec.SubscriptionRef, s.now)
		s.Require().NoError(err)
		s.Equal(id.OwnershipCanceled, canceled.Status)
		s.Require().NotNil(canceled.EndedAt)
		s.Equal(s.now, *canceled.EndedAt)
	})

	s.Run("second cancellation reports invalid state", func() {
		_, err := s.store.MarkCanceled(s.ctx, rec.SubscriptionRef, s.now.Add(time.Hour))
		s.Require().ErrorIs(err, sentinel.ErrInvalidState)
	})

	s.Run("unknown ref reports not found", func() {
		_, err := s.store.MarkCanceled(s.ctx, "sub_missing", s.now)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *LedgerStoreSuite) TestEnsureActive() {
	s.Run("no-op on an already active record", func() {
		rec := s.newRecord("sub_active")
		s.Require().NoError(s.store.Create(s.ctx, rec))

		got, err := s.store.EnsureActive(s.ctx, rec.SubscriptionRef)
		s.Require().NoError(err)
		s.Equal(id.OwnershipActive, got.Status)
	})

	s.Run("revives a canceled record", func() {
		rec := s.newRecord("sub_revive")
		s.Require().NoError(s.store.Create(s.ctx, rec))
		_, err := s.store.MarkCanceled(s.ctx, rec.SubscriptionRef, s.now)
		s.Require().NoError(err)

		got, err := s.store.EnsureActive(s.ctx, rec.SubscriptionRef)
		s.Require().NoError(err)
		s.Equal(id.OwnershipActive, got.Status)
		s.Nil(got.EndedAt)
	})

	s.Run("refuses to revive when the territory was re-sold", func() {
		rec := s.newRecord("sub_old")
		s.Require().NoError(s.store.Create(s.ctx, rec))
		_, err := s.store.MarkCanceled(s.ctx, rec.SubscriptionRef, s.now)
		s.Require().NoError(err)

		replacement := s.newRecord("sub_new")
		replacement.TerritoryID = rec.TerritoryID
		s.Require().NoError(s.store.Create(s.ctx, replacement))

		_, err = s.store.EnsureActive(s.ctx, rec.SubscriptionRef)
		s.Require().ErrorIs(err, sentinel.ErrConflict)
	})
}

func (s *LedgerStoreSuite) TestLookups() {
	party := id.NewPartyID()
	recA := s.newRecord("sub_a")
	recA.PartyID = party
	recB := s.newRecord("sub_b")
	recB.PartyID = party
	recC := s.newRecord("sub_c")
	s.Require().NoError(s.store.Create(s.ctx, recA))
	s.Require().NoError(s.store.Create(s.ctx, recB))
	s.Require().NoError(s.store.Create(s.ctx, recC))

	_, err := s.store.MarkCanceled(s.ctx, recB.SubscriptionRef, s.now)
	s.Require().NoError(err)

	s.Run("finds records by ref in any status", func() {
		got, err := s.store.FindBySubscriptionRef(s.ctx, recB.SubscriptionRef)
		s.Require().NoError(err)
		s.Equal(id.OwnershipCanceled, got.Status)
	})

	s.Run("active-by-party excludes canceled records", func() {
		got, err := s.store.ActiveByParty(s.ctx, party)
		s.Require().NoError(err)
		s.Require().Len(got, 1)
		s.Equal(recA.SubscriptionRef, got[0].SubscriptionRef)
	})

	s.Run("list-active excludes canceled records", func() {
		got, err := s.store.ListActive(s.ctx)
		s.Require().NoError(err)
		s.Len(got, 2)
	})
}

func (s *LedgerStoreSuite) TestUpdatePriceTier() {
	rec := models.NewActive(id.NewTerritoryID(), id.NewPartyID(), "sub_tier", id.TierAdjacentDiscount, s.now)
	s.Require().NoError(s.store.Create(s.ctx, rec))

	s.Require().NoError(s.store.UpdatePriceTier(s.ctx, rec.SubscriptionRef, id.TierStandard))

	got, err := s.store.FindBySubscriptionRef(s.ctx, rec.SubscriptionRef)
	s.Require().NoError(err)
	s.Equal(id.TierStandard, got.PriceTier)
}
