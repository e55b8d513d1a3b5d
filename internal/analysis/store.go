package analysis

import "context"

// Store persists successful analysis results, keyed uniquely by call id.
//
// Implementations must be safe for concurrent use. A lookup miss is
// (nil, nil), not an error, so callers can distinguish "not analysed yet"
// from infrastructure failures.
type Store interface {
	// GetByCallID returns the persisted record for the call, or (nil, nil)
	// when the call has never been successfully analysed.
	GetByCallID(ctx context.Context, callID string) (*AnalysisRecord, error)

	// Upsert writes the result for the call, replacing any previous record,
	// and returns the record id. Must not be called with a failed result —
	// failed analyses are never persisted.
	Upsert(ctx context.Context, callID string, result *AnalysisResult) (string, error)
}
