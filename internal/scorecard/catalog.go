package scorecard

import "context"

// Catalog resolves which scorecard applies to a call and fetches its
// criteria.
//
// Implementations must be safe for concurrent use. Lookup misses are
// reported as (nil, nil) rather than errors so that callers can distinguish
// "no scorecard configured" from infrastructure failures.
type Catalog interface {
	// SelectForCall returns the scorecard that should grade the given call,
	// or (nil, nil) when none applies.
	SelectForCall(ctx context.Context, cc CallContext) (*Scorecard, error)

	// CriteriaFor returns the ordered criteria of the given scorecard.
	// An unknown scorecard id yields (nil, nil).
	CriteriaFor(ctx context.Context, scorecardID string) ([]Criterion, error)
}
