package pending

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"turf/internal/reconciler/models"
	id "turf/pkg/domain"
	"turf/pkg/platform/sentinel"
)

// Postgres persists pending purchases. MarkConsumed is a compare-and-set on
// consumed_at IS NULL, which is what makes linking safe to re-run.
type Postgres struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed pending-purchase store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const pendingColumns = `id, email, territory_id, subscription_ref, customer_ref, price_tier, created_at, consumed_at`

func (s *Postgres) Create(ctx context.Context, p *models.PendingPurchase) error {
	query := `
		INSERT INTO pending_purchases (` + pendingColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.db.ExecContext(ctx, query,
		p.ID, p.Email, uuid.UUID(p.TerritoryID), string(p.SubscriptionRef),
		p.CustomerRef, string(p.PriceTier), p.CreatedAt, p.ConsumedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create pending purchase: %w", err)
	}
	return nil
}

func (s *Postgres) FindBySubscriptionRef(ctx context.Context, ref id.SubscriptionRef) (*models.PendingPurchase, error) {
	query := `SELECT ` + pendingColumns + ` FROM pending_purchases WHERE subscription_ref = $1`
	p, err := scanPending(s.db.QueryRowContext(ctx, query, string(ref)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find pending purchase: %w", err)
	}
	return p, nil
}

func (s *Postgres) UnconsumedByEmail(ctx context.Context, email string) ([]*models.PendingPurchase, error) {
	query := `SELECT ` + pendingColumns + ` FROM pending_purchases WHERE lower(email) = lower($1) AND consumed_at IS NULL`
	rows, err := s.db.QueryContext(ctx, query, email)
	if err != nil {
		return nil, fmt.Errorf("unconsumed pending purchases: %w", err)
	}
	defer rows.Close()

	var out []*models.PendingPurchase
	for rows.Next() {
		p, err := scanPending(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Postgres) MarkConsumed(ctx context.Context, pendingID uuid.UUID, when time.Time) error {
	query := `UPDATE pending_purchases SET consumed_at = $2 WHERE id = $1 AND consumed_at IS NULL`
	res, err := s.db.ExecContext(ctx, query, pendingID, when)
	if err != nil {
		return fmt.Errorf("mark pending purchase consumed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark pending purchase consumed: %w", err)
	}
	if n == 0 {
		// Row missing or already consumed; look to tell the caller which.
		var consumedAt sql.NullTime
		err := s.db.QueryRowContext(ctx, `SELECT consumed_at FROM pending_purchases WHERE id = $1`, pendingID).Scan(&consumedAt)
		if errors.Is(err, sql.ErrNoRows) {
			return sentinel.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("mark pending purchase consumed: %w", err)
		}
		return sentinel.ErrAlreadyUsed
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPending(row rowScanner) (*models.PendingPurchase, error) {
	var (
		p          models.PendingPurchase
		tid        uuid.UUID
		ref        string
		tier       string
		consumedAt sql.NullTime
	)
	err := row.Scan(&p.ID, &p.Email, &tid, &ref, &p.CustomerRef, &tier, &p.CreatedAt, &consumedAt)
	if err != nil {
		return nil, err
	}
	p.TerritoryID = id.TerritoryID(tid)
	p.SubscriptionRef = id.SubscriptionRef(ref)
	p.PriceTier = id.PriceTier(tier)
	if consumedAt.Valid {
		t := consumedAt.Time
		p.ConsumedAt = &t
	}
	return &p, nil
}
