package resolver

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	catalogmodels "turf/internal/catalog/models"
	catalogstore "turf/internal/catalog/store"
	leasemodels "turf/internal/lease/models"
	leasestore "turf/internal/lease/store"
	ownershipmodels "turf/internal/ownership/models"
	ownershipstore "turf/internal/ownership/store"
	id "turf/pkg/domain"
	"turf/pkg/requestcontext"
)

type ResolverSuite struct {
	suite.Suite
	catalog  *catalogstore.InMemory
	ledger   *ownershipstore.InMemory
	leases   *leasestore.InMemory
	resolver *Service
	ctx      context.Context
	now      time.Time
}

func (s *ResolverSuite) SetupTest() {
	s.catalog = catalogstore.NewInMemory()
	s.ledger = ownershipstore.NewInMemory()
	s.leases = leasestore.NewInMemory()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.resolver = New(s.catalog, s.ledger, s.leases, logger, nil)
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
}

func TestResolverSuite(t *testing.T) {
	suite.Run(t, new(ResolverSuite))
}

func (s *ResolverSuite) addTerritory(name string, mutate ...func(*catalogmodels.Territory)) *catalogmodels.Territory {
	t := &catalogmodels.Territory{
		ID:         id.NewTerritoryID(),
		Name:       name,
		Region:     "GA",
		StatusHint: id.StatusAvailable,
		CreatedAt:  s.now,
		UpdatedAt:  s.now,
	}
	for _, m := range mutate {
		m(t)
	}
	s.Require().NoError(s.catalog.Create(s.ctx, t))
	return t
}

func (s *ResolverSuite) claim(territoryID id.TerritoryID, ref string) *ownershipmodels.Record {
	rec := ownershipmodels.NewActive(territoryID, id.NewPartyID(), id.SubscriptionRef(ref), id.TierStandard, s.now)
	s.Require().NoError(s.ledger.Create(s.ctx, rec))
	return rec
}

func (s *ResolverSuite) hold(territoryID id.TerritoryID, expiresAt time.Time) {
	s.Require().NoError(s.leases.Acquire(s.ctx, &leasemodels.Lease{
		ID:          id.NewLeaseID(),
		TerritoryID: territoryID,
		PartyID:     id.NewPartyID(),
		ExpiresAt:   expiresAt,
		CreatedAt:   s.now,
	}))
}

func (s *ResolverSuite) TestDirectOwnership() {
	s.Run("own active record resolves taken", func() {
		t := s.addTerritory("Midtown")
		rec := s.claim(t.ID, "sub_direct")

		res, err := s.resolver.ResolveTerritory(s.ctx, t.ID)
		s.Require().NoError(err)
		s.Equal(id.StatusTaken, res.Status)
		s.Require().NotNil(res.OwnerID)
		s.Equal(rec.PartyID, *res.OwnerID)
	})

	s.Run("no record and no lease resolves available", func() {
		t := s.addTerritory("Buckhead")

		res, err := s.resolver.ResolveTerritory(s.ctx, t.ID)
		s.Require().NoError(err)
		s.Equal(id.StatusAvailable, res.Status)
		s.Nil(res.OwnerID)
	})
}

func (s *ResolverSuite) TestMetroGroupInheritance() {
	metro := s.addTerritory("Atlanta Metro", func(t *catalogmodels.Territory) {
		t.IsMetroGroup = true
	})
	member := s.addTerritory("Decatur", func(t *catalogmodels.Territory) {
		t.MetroGroupID = &metro.ID
	})

	s.Run("member inherits the metro-group owner", func() {
		rec := s.claim(metro.ID, "sub_metro")

		res, err := s.resolver.ResolveTerritory(s.ctx, member.ID)
		s.Require().NoError(err)
		s.Equal(id.StatusTaken, res.Status)
		s.Require().NotNil(res.OwnerID)
		s.Equal(rec.PartyID, *res.OwnerID)
	})

	s.Run("metro-group record wins over a conflicting direct record", func() {
		metroRec, err := s.ledger.FindBySubscriptionRef(s.ctx, "sub_metro")
		s.Require().NoError(err)

		direct := s.claim(member.ID, "sub_member_direct")

		res, err := s.resolver.ResolveTerritory(s.ctx, member.ID)
		s.Require().NoError(err)
		s.Equal(id.StatusTaken, res.Status)
		s.Require().NotNil(res.OwnerID)
		s.Equal(metroRec.PartyID, *res.OwnerID)
		s.NotEqual(direct.PartyID, *res.OwnerID)
	})

	s.Run("metro-group itself resolves from its own record only", func() {
		res, err := s.resolver.ResolveTerritory(s.ctx, metro.ID)
		s.Require().NoError(err)
		s.Equal(id.StatusTaken, res.Status)
	})
}

// faultyLedger fails ActiveByTerritory for one territory so the dual-claim
// probe can be exercised against a store error.
type faultyLedger struct {
	*ownershipstore.InMemory
	failFor id.TerritoryID
}

func (f *faultyLedger) ActiveByTerritory(ctx context.Context, territoryID id.TerritoryID) (*ownershipmodels.Record, error) {
	if territoryID == f.failFor {
		return nil, errors.New("connection reset")
	}
	return f.InMemory.ActiveByTerritory(ctx, territoryID)
}

func (s *ResolverSuite) TestDualClaimProbeErrorIsLogged() {
	metro := s.addTerritory("Columbus Metro", func(t *catalogmodels.Territory) {
		t.IsMetroGroup = true
	})
	member := s.addTerritory("Columbus East", func(t *catalogmodels.Territory) {
		t.MetroGroupID = &metro.ID
	})
	rec := s.claim(metro.ID, "sub_metro_cols")

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	res := New(s.catalog, &faultyLedger{InMemory: s.ledger, failFor: member.ID}, s.leases, logger, nil)

	resolved, err := res.ResolveTerritory(s.ctx, member.ID)
	s.Require().NoError(err)
	s.Equal(id.StatusTaken, resolved.Status)
	s.Require().NotNil(resolved.OwnerID)
	s.Equal(rec.PartyID, *resolved.OwnerID)

	s.Contains(logs.String(), "failed to check member for dual ownership")
	s.NotContains(logs.String(), "both direct and metro-group")
}

func (s *ResolverSuite) TestMemberFallsBackWhenMetroUnowned() {
	metro := s.addTerritory("Macon Metro", func(t *catalogmodels.Territory) {
		t.IsMetroGroup = true
	})
	member := s.addTerritory("Macon North", func(t *catalogmodels.Territory) {
		t.MetroGroupID = &metro.ID
	})
	rec := s.claim(member.ID, "sub_member")

	res, err := s.resolver.ResolveTerritory(s.ctx, member.ID)
	s.Require().NoError(err)
	s.Equal(id.StatusTaken, res.Status)
	s.Require().NotNil(res.OwnerID)
	s.Equal(rec.PartyID, *res.OwnerID)
}

func (s *ResolverSuite) TestLeases() {
	s.Run("unexpired lease resolves held with no owner", func() {
		t := s.addTerritory("Savannah")
		s.hold(t.ID, s.now.Add(10*time.Minute))

		res, err := s.resolver.ResolveTerritory(s.ctx, t.ID)
		s.Require().NoError(err)
		s.Equal(id.StatusHeld, res.Status)
		s.Nil(res.OwnerID)
	})

	s.Run("expired lease is invisible before any reap", func() {
		t := s.addTerritory("Augusta")
		s.hold(t.ID, s.now.Add(-time.Minute))

		res, err := s.resolver.ResolveTerritory(s.ctx, t.ID)
		s.Require().NoError(err)
		s.Equal(id.StatusAvailable, res.Status)
	})

	s.Run("ownership record wins over a live lease", func() {
		t := s.addTerritory("Athens")
		s.hold(t.ID, s.now.Add(10*time.Minute))
		s.claim(t.ID, "sub_athens")

		res, err := s.resolver.ResolveTerritory(s.ctx, t.ID)
		s.Require().NoError(err)
		s.Equal(id.StatusTaken, res.Status)
	})
}

func (s *ResolverSuite) TestResolveAll() {
	metro := s.addTerritory("Metro", func(t *catalogmodels.Territory) {
		t.IsMetroGroup = true
	})
	member := s.addTerritory("Member", func(t *catalogmodels.Territory) {
		t.MetroGroupID = &metro.ID
	})
	owned := s.addTerritory("Owned")
	held := s.addTerritory("Held")
	open := s.addTerritory("Open")

	metroRec := s.claim(metro.ID, "sub_all_metro")
	ownedRec := s.claim(owned.ID, "sub_all_owned")
	s.hold(held.ID, s.now.Add(5*time.Minute))

	resolved, err := s.resolver.ResolveAll(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(resolved, 5)

	byID := make(map[id.TerritoryID]Resolution, len(resolved))
	for _, rt := range resolved {
		byID[rt.Territory.ID] = rt.Resolution
	}

	s.Equal(id.StatusTaken, byID[metro.ID].Status)
	s.Equal(metroRec.PartyID, *byID[member.ID].OwnerID)
	s.Equal(id.StatusTaken, byID[member.ID].Status)
	s.Equal(ownedRec.PartyID, *byID[owned.ID].OwnerID)
	s.Equal(id.StatusHeld, byID[held.ID].Status)
	s.Equal(id.StatusAvailable, byID[open.ID].Status)
}

func (s *ResolverSuite) TestResolveOwner() {
	t := s.addTerritory("Columbus")

	owner, err := s.resolver.ResolveOwner(s.ctx, t.ID)
	s.Require().NoError(err)
	s.Nil(owner)

	rec := s.claim(t.ID, "sub_columbus")
	owner, err = s.resolver.ResolveOwner(s.ctx, t.ID)
	s.Require().NoError(err)
	s.Require().NotNil(owner)
	s.Equal(rec.PartyID, *owner)
}
