package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	catalogmodels "turf/internal/catalog/models"
	catalogservice "turf/internal/catalog/service"
	catalogstore "turf/internal/catalog/store"
	leasestore "turf/internal/lease/store"
	ownershipmodels "turf/internal/ownership/models"
	"turf/internal/ownership/resolver"
	ownershipstore "turf/internal/ownership/store"
	id "turf/pkg/domain"
	dErrors "turf/pkg/domain-errors"
	"turf/pkg/requestcontext"
)

type LeaseServiceSuite struct {
	suite.Suite
	catalogSt *catalogstore.InMemory
	catalog   *catalogservice.Service
	ledger    *ownershipstore.InMemory
	store     *leasestore.InMemory
	service   *Service
	ctx       context.Context
	now       time.Time
}

func (s *LeaseServiceSuite) SetupTest() {
	catalogSt := catalogstore.NewInMemory()
	s.catalogSt = catalogSt
	s.catalog = catalogservice.New(catalogSt)
	s.ledger = ownershipstore.NewInMemory()
	s.store = leasestore.NewInMemory()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	res := resolver.New(catalogSt, s.ledger, s.store, logger, nil)
	s.service = New(s.store, res, s.catalog, logger, WithTTL(10*time.Minute))
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
}

func TestLeaseServiceSuite(t *testing.T) {
	suite.Run(t, new(LeaseServiceSuite))
}

func (s *LeaseServiceSuite) addTerritory(name string) *catalogmodels.Territory {
	t := &catalogmodels.Territory{
		ID:         id.NewTerritoryID(),
		Name:       name,
		Region:     "GA",
		StatusHint: id.StatusAvailable,
		CreatedAt:  s.now,
		UpdatedAt:  s.now,
	}
	s.Require().NoError(s.catalogSt.Create(s.ctx, t))
	return t
}

func (s *LeaseServiceSuite) TestAcquire() {
	s.Run("acquires an available territory and hints held", func() {
		t := s.addTerritory("Midtown")

		lease, err := s.service.Acquire(s.ctx, t.ID, id.NewPartyID())
		s.Require().NoError(err)
		s.Equal(t.ID, lease.TerritoryID)
		s.Equal(s.now.Add(10*time.Minute), lease.ExpiresAt)

		got, err := s.catalog.Get(s.ctx, t.ID)
		s.Require().NoError(err)
		s.Equal(id.StatusHeld, got.StatusHint)
	})

	s.Run("rejects a second buyer while the hold lives", func() {
		t := s.addTerritory("Buckhead")
		_, err := s.service.Acquire(s.ctx, t.ID, id.NewPartyID())
		s.Require().NoError(err)

		_, err = s.service.Acquire(s.ctx, t.ID, id.NewPartyID())
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("allows a new buyer after the hold expires", func() {
		t := s.addTerritory("Decatur")
		_, err := s.service.Acquire(s.ctx, t.ID, id.NewPartyID())
		s.Require().NoError(err)

		later := requestcontext.WithTime(context.Background(), s.now.Add(11*time.Minute))
		_, err = s.service.Acquire(later, t.ID, id.NewPartyID())
		s.Require().NoError(err)
	})

	s.Run("rejects an owned territory", func() {
		t := s.addTerritory("Savannah")
		rec := ownershipmodels.NewActive(t.ID, id.NewPartyID(), "sub_owned", id.TierStandard, s.now)
		s.Require().NoError(s.ledger.Create(s.ctx, rec))

		_, err := s.service.Acquire(s.ctx, t.ID, id.NewPartyID())
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("rejects an anonymous acquirer", func() {
		t := s.addTerritory("Athens")
		_, err := s.service.Acquire(s.ctx, t.ID, id.PartyID{})
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})
}

func (s *LeaseServiceSuite) TestRelease() {
	t := s.addTerritory("Augusta")
	_, err := s.service.Acquire(s.ctx, t.ID, id.NewPartyID())
	s.Require().NoError(err)

	s.Require().NoError(s.service.Release(s.ctx, t.ID))

	held, err := s.service.Held(s.ctx, t.ID)
	s.Require().NoError(err)
	s.False(held)

	got, err := s.catalog.Get(s.ctx, t.ID)
	s.Require().NoError(err)
	s.Equal(id.StatusAvailable, got.StatusHint)
}

func (s *LeaseServiceSuite) TestAttachCheckoutRef() {
	t := s.addTerritory("Columbus")
	_, err := s.service.Acquire(s.ctx, t.ID, id.NewPartyID())
	s.Require().NoError(err)

	s.Require().NoError(s.service.AttachCheckoutRef(s.ctx, t.ID, "cs_test_007"))

	lease, err := s.service.Get(s.ctx, t.ID)
	s.Require().NoError(err)
	s.Equal("cs_test_007", lease.CheckoutRef)

	err = s.service.AttachCheckoutRef(s.ctx, id.NewTerritoryID(), "cs_test_008")
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *LeaseServiceSuite) TestReap() {
	lapsed := s.addTerritory("Macon")
	live := s.addTerritory("Valdosta")
	converted := s.addTerritory("Albany")

	_, err := s.service.Acquire(s.ctx, lapsed.ID, id.NewPartyID())
	s.Require().NoError(err)
	_, err = s.service.Acquire(s.ctx, converted.ID, id.NewPartyID())
	s.Require().NoError(err)

	later := requestcontext.WithTime(context.Background(), s.now.Add(11*time.Minute))
	_, err = s.service.Acquire(later, live.ID, id.NewPartyID())
	s.Require().NoError(err)

	// The converted hold became a purchase before it lapsed.
	rec := ownershipmodels.NewActive(converted.ID, id.NewPartyID(), "sub_conv", id.TierStandard, s.now)
	s.Require().NoError(s.ledger.Create(s.ctx, rec))

	reaped, err := s.service.Reap(later)
	s.Require().NoError(err)
	s.Equal(2, reaped)

	s.Run("lapsed hold resets to available", func() {
		got, err := s.catalog.Get(later, lapsed.ID)
		s.Require().NoError(err)
		s.Equal(id.StatusAvailable, got.StatusHint)
	})

	s.Run("converted territory is not counted and its hint repairs to taken", func() {
		got, err := s.catalog.Get(later, converted.ID)
		s.Require().NoError(err)
		s.Equal(id.StatusTaken, got.StatusHint)
	})

	s.Run("second reap finds nothing left", func() {
		reaped, err := s.service.Reap(later)
		s.Require().NoError(err)
		s.Zero(reaped)
	})

	s.Run("live hold survives", func() {
		held, err := s.service.Held(later, live.ID)
		s.Require().NoError(err)
		s.True(held)
	})
}
