package batch

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Schema is the SQL DDL for the calls table. Execute it via
// [PostgresSource.Migrate] or apply it manually during deployment.
// The analysis_records table referenced by the existence check belongs to
// the analysis package schema.
const Schema = `
CREATE TABLE IF NOT EXISTS calls (
    id               TEXT PRIMARY KEY,
    transcript       TEXT NOT NULL DEFAULT '',
    duration_seconds INTEGER NOT NULL DEFAULT 0,
    sdr_name         TEXT NOT NULL DEFAULT '',
    client_name      TEXT NOT NULL DEFAULT '',
    call_type        TEXT NOT NULL DEFAULT '',
    created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// DB is the database interface used by [PostgresSource]. Both *pgxpool.Pool
// and *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresSource is a [Source] backed by PostgreSQL. The analysis-existence
// flag is resolved in the same query via a join against analysis_records.
type PostgresSource struct {
	db DB
}

// Compile-time interface check.
var _ Source = (*PostgresSource)(nil)

// NewPostgresSource creates a [PostgresSource] using the given connection or
// pool.
func NewPostgresSource(db DB) *PostgresSource {
	return &PostgresSource{db: db}
}

// Migrate executes the [Schema] DDL, creating the calls table if it does
// not already exist.
func (s *PostgresSource) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("batch: migrate: %w", err)
	}
	return nil
}

// List implements [Source].
func (s *PostgresSource) List(ctx context.Context) ([]Call, error) {
	const query = `
		SELECT c.id, c.transcript, c.duration_seconds, c.sdr_name,
		       c.client_name, c.call_type,
		       (ar.call_id IS NOT NULL) AS has_analysis
		FROM calls c
		LEFT JOIN analysis_records ar ON ar.call_id = c.id
		ORDER BY c.created_at`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("batch: list calls: %w", err)
	}
	defer rows.Close()

	var calls []Call
	for rows.Next() {
		var c Call
		if err := rows.Scan(&c.ID, &c.Transcript, &c.DurationSeconds,
			&c.SDRName, &c.ClientName, &c.CallType, &c.HasAnalysis); err != nil {
			return nil, fmt.Errorf("batch: scan call: %w", err)
		}
		calls = append(calls, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("batch: list calls: %w", err)
	}
	return calls, nil
}
