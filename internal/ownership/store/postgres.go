package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"turf/internal/ownership/models"
	id "turf/pkg/domain"
	"turf/pkg/platform/sentinel"
)

// Postgres persists the ownership ledger in PostgreSQL. The partial unique
// index on (territory_id) WHERE status = 'active' and the unique
// subscription_ref column are the store-level single-writer guarantees the
// reconciler relies on; the Go code never check-then-acts around them.
type Postgres struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed ledger.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const recordColumns = `id, territory_id, party_id, subscription_ref, price_tier, status, started_at, ended_at`

func (s *Postgres) Create(ctx context.Context, r *models.Record) error {
	query := `
		INSERT INTO ownerships (` + recordColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.db.ExecContext(ctx, query,
		uuid.UUID(r.ID), uuid.UUID(r.TerritoryID), uuid.UUID(r.PartyID),
		string(r.SubscriptionRef), string(r.PriceTier), string(r.Status),
		r.StartedAt, r.EndedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create ownership: %w", err)
	}
	return nil
}

func (s *Postgres) FindBySubscriptionRef(ctx context.Context, ref id.SubscriptionRef) (*models.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM ownerships WHERE subscription_ref = $1`
	return s.scanOne(s.db.QueryRowContext(ctx, query, string(ref)), "find ownership by ref")
}

func (s *Postgres) ActiveByTerritory(ctx context.Context, territoryID id.TerritoryID) (*models.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM ownerships WHERE territory_id = $1 AND status = 'active'`
	return s.scanOne(s.db.QueryRowContext(ctx, query, uuid.UUID(territoryID)), "active ownership by territory")
}

func (s *Postgres) ActiveByParty(ctx context.Context, partyID id.PartyID) ([]*models.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM ownerships WHERE party_id = $1 AND status = 'active'`
	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(partyID))
	if err != nil {
		return nil, fmt.Errorf("active ownerships by party: %w", err)
	}
	defer rows.Close()
	return collectRecords(rows)
}

func (s *Postgres) ListActive(ctx context.Context) ([]*models.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM ownerships WHERE status = 'active'`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list active ownerships: %w", err)
	}
	defer rows.Close()
	return collectRecords(rows)
}

func (s *Postgres) MarkCanceled(ctx context.Context, ref id.SubscriptionRef, endedAt time.Time) (*models.Record, error) {
	query := `
		UPDATE ownerships
		SET status = 'canceled', ended_at = $2
		WHERE subscription_ref = $1 AND status = 'active'
		RETURNING ` + recordColumns
	r, err := s.scanOne(s.db.QueryRowContext(ctx, query, string(ref), endedAt), "cancel ownership")
	if err == nil {
		return r, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, err
	}
	// Zero rows: distinguish a missing record from one already canceled.
	existing, ferr := s.FindBySubscriptionRef(ctx, ref)
	if ferr != nil {
		return nil, ferr
	}
	return existing, sentinel.ErrInvalidState
}

func (s *Postgres) EnsureActive(ctx context.Context, ref id.SubscriptionRef) (*models.Record, error) {
	query := `
		UPDATE ownerships
		SET status = 'active', ended_at = NULL
		WHERE subscription_ref = $1
		RETURNING ` + recordColumns
	r, err := s.scanOne(s.db.QueryRowContext(ctx, query, string(ref)), "ensure ownership active")
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			// Another record took the territory's active slot meanwhile.
			return nil, sentinel.ErrConflict
		}
		return nil, err
	}
	return r, nil
}

func (s *Postgres) UpdatePriceTier(ctx context.Context, ref id.SubscriptionRef, tier id.PriceTier) error {
	query := `UPDATE ownerships SET price_tier = $2 WHERE subscription_ref = $1`
	res, err := s.db.ExecContext(ctx, query, string(ref), string(tier))
	if err != nil {
		return fmt.Errorf("update price tier: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) scanOne(row *sql.Row, op string) (*models.Record, error) {
	var (
		r       models.Record
		rid     uuid.UUID
		tid     uuid.UUID
		pid     uuid.UUID
		ref     string
		tier    string
		status  string
		endedAt sql.NullTime
	)
	err := row.Scan(&rid, &tid, &pid, &ref, &tier, &status, &r.StartedAt, &endedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	r.ID = id.OwnershipID(rid)
	r.TerritoryID = id.TerritoryID(tid)
	r.PartyID = id.PartyID(pid)
	r.SubscriptionRef = id.SubscriptionRef(ref)
	r.PriceTier = id.PriceTier(tier)
	r.Status = id.OwnershipStatus(status)
	if endedAt.Valid {
		t := endedAt.Time
		r.EndedAt = &t
	}
	return &r, nil
}

func collectRecords(rows *sql.Rows) ([]*models.Record, error) {
	var out []*models.Record
	for rows.Next() {
		var (
			r       models.Record
			rid     uuid.UUID
			tid     uuid.UUID
			pid     uuid.UUID
			ref     string
			tier    string
			status  string
			endedAt sql.NullTime
		)
		if err := rows.Scan(&rid, &tid, &pid, &ref, &tier, &status, &r.StartedAt, &endedAt); err != nil {
			return nil, err
		}
		r.ID = id.OwnershipID(rid)
		r.TerritoryID = id.TerritoryID(tid)
		r.PartyID = id.PartyID(pid)
		r.SubscriptionRef = id.SubscriptionRef(ref)
		r.PriceTier = id.PriceTier(tier)
		r.Status = id.OwnershipStatus(status)
		if endedAt.Valid {
			t := endedAt.Time
			r.EndedAt = &t
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}
