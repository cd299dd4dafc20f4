//go:build integration

package pending

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	catalogmodels "turf/internal/catalog/models"
	catalogstore "turf/internal/catalog/store"
	platformpostgres "turf/internal/platform/postgres"
	"turf/internal/reconciler/models"
	id "turf/pkg/domain"
	"turf/pkg/platform/sentinel"
	"turf/pkg/testutil/containers"
)

type PostgresPendingSuite struct {
	suite.Suite
	pg      *containers.PostgresContainer
	catalog *catalogstore.Postgres
	store   *Postgres
	ctx     context.Context
	now     time.Time
}

func (s *PostgresPendingSuite) SetupSuite() {
	s.ctx = context.Background()
	s.pg = containers.NewPostgresContainer(s.T())
	s.Require().NoError(platformpostgres.EnsureSchema(s.ctx, s.pg.DB))
	s.catalog = catalogstore.NewPostgres(s.pg.DB)
	s.store = NewPostgres(s.pg.DB)
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

func (s *PostgresPendingSuite) TearDownSuite() {
	if s.pg != nil {
		_ = s.pg.DB.Close()
		_ = s.pg.Container.Terminate(s.ctx)
	}
}

func (s *PostgresPendingSuite) SetupTest() {
	s.Require().NoError(s.pg.TruncateAll(s.ctx, "pending_purchases", "territories"))
}

func TestPostgresPendingSuite(t *testing.T) {
	suite.Run(t, new(PostgresPendingSuite))
}

func (s *PostgresPendingSuite) newPurchase(email, ref string) *models.PendingPurchase {
	t := &catalogmodels.Territory{
		ID:         id.NewTerritoryID(),
		Name:       "Decatur",
		Region:     "GA",
		StatusHint: id.StatusAvailable,
		CreatedAt:  s.now,
		UpdatedAt:  s.now,
	}
	s.Require().NoError(s.catalog.Create(s.ctx, t))
	return &models.PendingPurchase{
		ID:              uuid.New(),
		Email:           email,
		TerritoryID:     t.ID,
		SubscriptionRef: id.SubscriptionRef(ref),
		PriceTier:       id.TierStandard,
		CreatedAt:       s.now,
	}
}

func (s *PostgresPendingSuite) TestCreateAndLookup() {
	p := s.newPurchase("guest@example.com", "sub_1")
	s.Require().NoError(s.store.Create(s.ctx, p))

	found, err := s.store.FindBySubscriptionRef(s.ctx, "sub_1")
	s.Require().NoError(err)
	s.Equal(p.ID, found.ID)
	s.False(found.Consumed())

	dup := s.newPurchase("guest@example.com", "sub_1")
	s.ErrorIs(s.store.Create(s.ctx, dup), sentinel.ErrConflict)
}

func (s *PostgresPendingSuite) TestUnconsumedByEmailIsCaseInsensitive() {
	s.Require().NoError(s.store.Create(s.ctx, s.newPurchase("Guest@Example.com", "sub_1")))
	s.Require().NoError(s.store.Create(s.ctx, s.newPurchase("guest@example.com", "sub_2")))
	s.Require().NoError(s.store.Create(s.ctx, s.newPurchase("other@example.com", "sub_3")))

	rows, err := s.store.UnconsumedByEmail(s.ctx, "GUEST@example.COM")
	s.Require().NoError(err)
	s.Len(rows, 2)
}

func (s *PostgresPendingSuite) TestMarkConsumedIsOneShot() {
	p := s.newPurchase("guest@example.com", "sub_1")
	s.Require().NoError(s.store.Create(s.ctx, p))

	s.Require().NoError(s.store.MarkConsumed(s.ctx, p.ID, s.now))
	s.ErrorIs(s.store.MarkConsumed(s.ctx, p.ID, s.now.Add(time.Minute)), sentinel.ErrAlreadyUsed)
	s.ErrorIs(s.store.MarkConsumed(s.ctx, uuid.New(), s.now), sentinel.ErrNotFound)

	rows, err := s.store.UnconsumedByEmail(s.ctx, "guest@example.com")
	s.Require().NoError(err)
	s.Empty(rows)
}
