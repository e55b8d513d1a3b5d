// Package batch discovers calls that still need analysis and drives the
// analyzer over them with bounded concurrency and inter-group backpressure.
package batch

import "context"

// Call is the call metadata the scheduler needs for eligibility filtering
// and for invoking the analyzer.
type Call struct {
	// ID identifies the call.
	ID string

	// Transcript is the full call transcript.
	Transcript string

	// DurationSeconds is the recorded call duration.
	DurationSeconds int

	// HasAnalysis reports whether a durable analysis record already exists.
	HasAnalysis bool

	// SDRName optionally names the seller.
	SDRName string

	// ClientName optionally names the prospect.
	ClientName string

	// CallType feeds scorecard selection.
	CallType string
}

// Label returns the human-readable progress label for the call.
func (c Call) Label() string {
	switch {
	case c.SDRName != "" && c.ClientName != "":
		return c.SDRName + " → " + c.ClientName
	case c.SDRName != "":
		return c.SDRName
	default:
		return c.ID
	}
}

// Source lists candidate calls from the call/transcript store.
// Implementations must be safe for concurrent use.
type Source interface {
	// List returns all candidate calls. Eligibility filtering is the
	// scheduler's job; sources should not pre-filter beyond obvious storage
	// concerns.
	List(ctx context.Context) ([]Call, error)
}
