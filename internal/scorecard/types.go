// Package scorecard defines the scorecard and criterion catalog consumed by
// the call analysis pipeline.
//
// A scorecard is a named, ordered set of weighted criteria used to grade a
// sales call. Scorecards are owned by an external catalog; this package only
// models them and provides the [Catalog] lookup interface plus a PostgreSQL
// and an in-memory implementation.
package scorecard

// Criterion is a single gradable dimension of a call.
// Criteria are immutable per scorecard version.
type Criterion struct {
	// ID uniquely identifies the criterion within the catalog.
	ID string

	// Name is the short display name (e.g., "Abertura da chamada").
	Name string

	// Description explains to the grader (human or model) what the criterion
	// measures.
	Description string

	// Weight is the relative importance of the criterion in the weighted
	// grade. Always >= 1.
	Weight int

	// MaxScore is the maximum achievable score for this criterion,
	// typically 3.
	MaxScore int
}

// Scorecard is a named, ordered set of criteria.
type Scorecard struct {
	// ID uniquely identifies the scorecard.
	ID string

	// Name is the scorecard's display name.
	Name string

	// Description explains the scorecard's intended use.
	Description string

	// Criteria is the ordered criterion list. A scorecard with zero criteria
	// cannot grade a call.
	Criteria []Criterion
}

// CallContext carries the call metadata the catalog uses to pick a scorecard.
// The selection logic itself ("smart match" on type/pipeline/cadence) lives
// with the catalog owner; the analysis pipeline treats the chosen scorecard
// as an opaque input.
type CallContext struct {
	// CallID identifies the call being graded.
	CallID string

	// CallType categorises the call (e.g., "outbound", "discovery").
	CallType string

	// Pipeline is the sales pipeline the call belongs to.
	Pipeline string

	// Cadence is the outreach cadence the call was part of.
	Cadence string
}
