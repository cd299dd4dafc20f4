package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"turf/internal/catalog/models"
	id "turf/pkg/domain"
	"turf/pkg/platform/sentinel"
	platformstrings "turf/pkg/platform/strings"
	"turf/pkg/requestcontext"
)

// Postgres persists the territory catalog in PostgreSQL. ZIP membership and
// the adjacency graph live in array columns; both are reference data that
// changes through catalog administration, not request traffic.
type Postgres struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed catalog store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const territoryColumns = `id, name, region, metro_group_id, is_metro_group, zips, adjacent_ids, status_hint, created_at, updated_at`

func (s *Postgres) Create(ctx context.Context, t *models.Territory) error {
	query := `
		INSERT INTO territories (` + territoryColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := s.db.ExecContext(ctx, query,
		uuid.UUID(t.ID), t.Name, t.Region, metroGroupParam(t), t.IsMetroGroup,
		pq.Array(platformstrings.DedupeAndTrim(t.Zips)), pq.Array(adjacentStrings(t.AdjacentIDs)), string(t.StatusHint),
		t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create territory: %w", err)
	}
	return nil
}

func (s *Postgres) Get(ctx context.Context, territoryID id.TerritoryID) (*models.Territory, error) {
	query := `SELECT ` + territoryColumns + ` FROM territories WHERE id = $1`
	t, err := scanTerritory(s.db.QueryRowContext(ctx, query, uuid.UUID(territoryID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get territory: %w", err)
	}
	return t, nil
}

func (s *Postgres) List(ctx context.Context) ([]*models.Territory, error) {
	query := `SELECT ` + territoryColumns + ` FROM territories ORDER BY region, name`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list territories: %w", err)
	}
	defer rows.Close()
	return collectTerritories(rows)
}

func (s *Postgres) FindByZip(ctx context.Context, zip string) (*models.Territory, error) {
	query := `SELECT ` + territoryColumns + ` FROM territories WHERE $1 = ANY(zips)`
	t, err := scanTerritory(s.db.QueryRowContext(ctx, query, strings.TrimSpace(zip)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find territory by zip: %w", err)
	}
	return t, nil
}

func (s *Postgres) MembersOf(ctx context.Context, metroGroupID id.TerritoryID) ([]*models.Territory, error) {
	query := `SELECT ` + territoryColumns + ` FROM territories WHERE metro_group_id = $1`
	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(metroGroupID))
	if err != nil {
		return nil, fmt.Errorf("members of metro-group: %w", err)
	}
	defer rows.Close()
	return collectTerritories(rows)
}

func (s *Postgres) UpdateStatusHint(ctx context.Context, ids []id.TerritoryID, status id.TerritoryStatus) error {
	if len(ids) == 0 {
		return nil
	}
	query := `UPDATE territories SET status_hint = $1, updated_at = $2 WHERE id = ANY($3)`
	_, err := s.db.ExecContext(ctx, query, string(status), requestcontext.Now(ctx), pq.Array(adjacentStrings(ids)))
	if err != nil {
		return fmt.Errorf("update status hint: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTerritory(row rowScanner) (*models.Territory, error) {
	var (
		t          models.Territory
		tid        uuid.UUID
		metroGroup uuid.NullUUID
		zips       pq.StringArray
		adjacent   pq.StringArray
		status     string
	)
	err := row.Scan(&tid, &t.Name, &t.Region, &metroGroup, &t.IsMetroGroup,
		&zips, &adjacent, &status, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	t.ID = id.TerritoryID(tid)
	if metroGroup.Valid {
		mg := id.TerritoryID(metroGroup.UUID)
		t.MetroGroupID = &mg
	}
	t.Zips = []string(zips)
	t.StatusHint = id.TerritoryStatus(status)
	t.AdjacentIDs = make([]id.TerritoryID, 0, len(adjacent))
	for _, raw := range adjacent {
		aid, err := id.ParseTerritoryID(raw)
		if err != nil {
			return nil, fmt.Errorf("malformed adjacency entry %q: %w", raw, err)
		}
		t.AdjacentIDs = append(t.AdjacentIDs, aid)
	}
	return &t, nil
}

func collectTerritories(rows *sql.Rows) ([]*models.Territory, error) {
	var out []*models.Territory
	for rows.Next() {
		t, err := scanTerritory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func metroGroupParam(t *models.Territory) any {
	if t.HasParent() {
		return uuid.UUID(*t.MetroGroupID)
	}
	return nil
}

func adjacentStrings(ids []id.TerritoryID) []string {
	out := make([]string, len(ids))
	for i, a := range ids {
		out[i] = a.String()
	}
	return out
}
