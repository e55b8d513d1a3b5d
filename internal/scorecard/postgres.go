package scorecard

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Schema is the SQL DDL for the scorecard catalog tables. Execute it via
// [PostgresCatalog.Migrate] or apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS scorecards (
    id          TEXT PRIMARY KEY,
    name        TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    call_type   TEXT NOT NULL DEFAULT '',
    active      BOOLEAN NOT NULL DEFAULT true,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS scorecard_criteria (
    id           TEXT PRIMARY KEY,
    scorecard_id TEXT NOT NULL REFERENCES scorecards(id) ON DELETE CASCADE,
    name         TEXT NOT NULL,
    description  TEXT NOT NULL DEFAULT '',
    weight       INTEGER NOT NULL DEFAULT 1,
    max_score    INTEGER NOT NULL DEFAULT 3,
    position     INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_scorecard_criteria_scorecard ON scorecard_criteria(scorecard_id);
CREATE INDEX IF NOT EXISTS idx_scorecards_call_type ON scorecards(call_type) WHERE active;
`

// DB is the database interface used by [PostgresCatalog]. Both *pgxpool.Pool
// and *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresCatalog is a [Catalog] backed by PostgreSQL.
//
// SelectForCall performs a basic match: the most recent active scorecard
// whose call_type equals the call's type, falling back to the most recent
// active scorecard with an empty call_type (the catalog default). Richer
// selection rules (pipeline/cadence matching) belong to the catalog owner
// and can replace this implementation behind the [Catalog] interface.
type PostgresCatalog struct {
	db DB
}

// Compile-time interface check.
var _ Catalog = (*PostgresCatalog)(nil)

// NewPostgresCatalog creates a [PostgresCatalog] using the given connection
// or pool. Call [PostgresCatalog.Migrate] before issuing queries against a
// fresh database.
func NewPostgresCatalog(db DB) *PostgresCatalog {
	return &PostgresCatalog{db: db}
}

// Migrate executes the [Schema] DDL, creating the catalog tables and indexes
// if they do not already exist.
func (c *PostgresCatalog) Migrate(ctx context.Context) error {
	if _, err := c.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("scorecard: migrate: %w", err)
	}
	return nil
}

// SelectForCall implements [Catalog]. It returns the scorecard with its
// criteria already loaded, or (nil, nil) when no active scorecard matches.
func (c *PostgresCatalog) SelectForCall(ctx context.Context, cc CallContext) (*Scorecard, error) {
	const query = `
		SELECT id, name, description
		FROM scorecards
		WHERE active AND (call_type = $1 OR call_type = '')
		ORDER BY (call_type = $1) DESC, created_at DESC
		LIMIT 1`

	var sc Scorecard
	err := c.db.QueryRow(ctx, query, cc.CallType).Scan(&sc.ID, &sc.Name, &sc.Description)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scorecard: select for call %q: %w", cc.CallID, err)
	}

	criteria, err := c.CriteriaFor(ctx, sc.ID)
	if err != nil {
		return nil, err
	}
	sc.Criteria = criteria
	return &sc, nil
}

// CriteriaFor implements [Catalog]. Criteria are returned in catalog order.
func (c *PostgresCatalog) CriteriaFor(ctx context.Context, scorecardID string) ([]Criterion, error) {
	const query = `
		SELECT id, name, description, weight, max_score
		FROM scorecard_criteria
		WHERE scorecard_id = $1
		ORDER BY position, id`

	rows, err := c.db.Query(ctx, query, scorecardID)
	if err != nil {
		return nil, fmt.Errorf("scorecard: criteria for %q: %w", scorecardID, err)
	}
	defer rows.Close()

	var criteria []Criterion
	for rows.Next() {
		var cr Criterion
		if err := rows.Scan(&cr.ID, &cr.Name, &cr.Description, &cr.Weight, &cr.MaxScore); err != nil {
			return nil, fmt.Errorf("scorecard: scan criterion: %w", err)
		}
		criteria = append(criteria, cr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scorecard: criteria for %q: %w", scorecardID, err)
	}
	return criteria, nil
}
