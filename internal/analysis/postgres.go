package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Schema is the SQL DDL for the analysis_records table. Execute it via
// [PostgresStore.Migrate] or apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS analysis_records (
    id                 TEXT PRIMARY KEY,
    call_id            TEXT NOT NULL UNIQUE,
    scorecard_used     TEXT NOT NULL DEFAULT '',
    overall_score      INTEGER NOT NULL,
    max_possible_score INTEGER NOT NULL,
    final_grade        DOUBLE PRECISION NOT NULL,
    criteria_analysis  JSONB NOT NULL DEFAULT '[]',
    general_feedback   TEXT NOT NULL DEFAULT '',
    strengths          JSONB NOT NULL DEFAULT '[]',
    improvements       JSONB NOT NULL DEFAULT '[]',
    confidence         DOUBLE PRECISION NOT NULL DEFAULT 0,
    created_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_analysis_records_call ON analysis_records(call_id);
`

// DB is the database interface used by [PostgresStore]. Both *pgxpool.Pool
// and *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore is a [Store] backed by a PostgreSQL database. The
// per-criterion breakdown and the strength/improvement lists are serialised
// as JSONB.
type PostgresStore struct {
	db DB
}

// Compile-time interface check.
var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a [PostgresStore] using the given connection or
// pool. Call [PostgresStore.Migrate] before issuing queries against a fresh
// database.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate executes the [Schema] DDL, creating the analysis_records table
// and index if they do not already exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("analysis: migrate: %w", err)
	}
	return nil
}

// GetByCallID implements [Store].
func (s *PostgresStore) GetByCallID(ctx context.Context, callID string) (*AnalysisRecord, error) {
	const query = `
		SELECT id, call_id, scorecard_used, overall_score, max_possible_score,
		       final_grade, criteria_analysis, general_feedback, strengths,
		       improvements, confidence, created_at
		FROM analysis_records
		WHERE call_id = $1`

	var rec AnalysisRecord
	var criteriaJSON, strengthsJSON, improvementsJSON []byte

	err := s.db.QueryRow(ctx, query, callID).Scan(
		&rec.ID, &rec.CallID, &rec.ScorecardUsed, &rec.OverallScore, &rec.MaxPossibleScore,
		&rec.FinalGrade, &criteriaJSON, &rec.GeneralFeedback, &strengthsJSON,
		&improvementsJSON, &rec.Confidence, &rec.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("analysis: get by call %q: %w", callID, err)
	}

	if err := json.Unmarshal(criteriaJSON, &rec.CriteriaAnalysis); err != nil {
		return nil, fmt.Errorf("analysis: unmarshal criteria for call %q: %w", callID, err)
	}
	if err := json.Unmarshal(strengthsJSON, &rec.Strengths); err != nil {
		return nil, fmt.Errorf("analysis: unmarshal strengths for call %q: %w", callID, err)
	}
	if err := json.Unmarshal(improvementsJSON, &rec.Improvements); err != nil {
		return nil, fmt.Errorf("analysis: unmarshal improvements for call %q: %w", callID, err)
	}
	return &rec, nil
}

// Upsert implements [Store]. Failed results are rejected: the no-grade
// invariant must hold for every durable record.
func (s *PostgresStore) Upsert(ctx context.Context, callID string, result *AnalysisResult) (string, error) {
	if result.AnalysisFailed || result.FinalGrade == nil {
		return "", fmt.Errorf("analysis: refusing to persist failed result for call %q", callID)
	}

	criteriaJSON, err := json.Marshal(emptySlice(result.CriteriaAnalysis))
	if err != nil {
		return "", fmt.Errorf("analysis: marshal criteria: %w", err)
	}
	strengthsJSON, err := json.Marshal(emptySlice(result.Strengths))
	if err != nil {
		return "", fmt.Errorf("analysis: marshal strengths: %w", err)
	}
	improvementsJSON, err := json.Marshal(emptySlice(result.Improvements))
	if err != nil {
		return "", fmt.Errorf("analysis: marshal improvements: %w", err)
	}

	const query = `
		INSERT INTO analysis_records (
			id, call_id, scorecard_used, overall_score, max_possible_score,
			final_grade, criteria_analysis, general_feedback, strengths,
			improvements, confidence
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (call_id) DO UPDATE SET
			scorecard_used     = EXCLUDED.scorecard_used,
			overall_score      = EXCLUDED.overall_score,
			max_possible_score = EXCLUDED.max_possible_score,
			final_grade        = EXCLUDED.final_grade,
			criteria_analysis  = EXCLUDED.criteria_analysis,
			general_feedback   = EXCLUDED.general_feedback,
			strengths          = EXCLUDED.strengths,
			improvements       = EXCLUDED.improvements,
			confidence         = EXCLUDED.confidence
		RETURNING id`

	var id string
	err = s.db.QueryRow(ctx, query,
		uuid.New().String(), callID, result.ScorecardUsed,
		*result.OverallScore, *result.MaxPossibleScore, *result.FinalGrade,
		criteriaJSON, result.GeneralFeedback, strengthsJSON,
		improvementsJSON, result.Confidence,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("analysis: upsert call %q: %w", callID, err)
	}
	return id, nil
}

// emptySlice maps nil to an empty slice so JSONB columns store [] instead
// of null.
func emptySlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
