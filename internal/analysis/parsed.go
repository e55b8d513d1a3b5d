package analysis

// ParseStage identifies which rung of the parser's fallback ladder produced
// a [ParsedAnalysis]. Used as a metric attribute to monitor how well the
// model follows the output-format instructions.
type ParseStage string

const (
	// StageFenced means the reply contained a decodable fenced code block.
	StageFenced ParseStage = "fenced"

	// StageBraceScan means a JSON object was salvaged by brace-depth
	// scanning, possibly after light repair.
	StageBraceScan ParseStage = "brace_scan"

	// StageCommentStrip means the reply decoded only after comment-like
	// lines were removed.
	StageCommentStrip ParseStage = "comment_strip"

	// StageFailed means nothing decodable was found and a synthetic failure
	// object was returned.
	StageFailed ParseStage = "failed"
)

// ParsedCriterion is one per-criterion entry extracted from the model reply.
// Scores are not yet clamped or matched against the catalog — that is the
// scoring engine's job.
type ParsedCriterion struct {
	CriterionID   string
	AchievedScore int
	Analysis      string
	Evidence      []string
	Suggestions   []string
}

// ParsedSuccess is the payload of a reply that decoded into a usable object.
type ParsedSuccess struct {
	Criteria        []ParsedCriterion
	GeneralFeedback string
	Strengths       []string
	Improvements    []string

	// Confidence is the model's self-reported confidence, or nil when the
	// payload omitted it. The scoring engine applies the default.
	Confidence *float64
}

// ParsedFailure is the payload of a reply that could not be decoded at all.
// It carries the synthetic feedback shown to users in place of a grade.
type ParsedFailure struct {
	Reason          string
	GeneralFeedback string
	Strengths       []string
	Improvements    []string
	Confidence      float64
}

// ParsedAnalysis is the outcome of parsing one model reply. It is a tagged
// union: exactly one of the success or failure payloads is present, so a
// failed parse cannot smuggle scores into the scoring engine.
type ParsedAnalysis struct {
	stage   ParseStage
	success *ParsedSuccess
	failure *ParsedFailure
}

// Stage reports which ladder rung produced this value.
func (p ParsedAnalysis) Stage() ParseStage { return p.stage }

// Failed reports whether the parse ended in the synthetic failure object.
func (p ParsedAnalysis) Failed() bool { return p.failure != nil }

// Success returns the success payload, or ok=false for a failed parse.
func (p ParsedAnalysis) Success() (*ParsedSuccess, bool) {
	return p.success, p.success != nil
}

// Failure returns the failure payload, or ok=false for a successful parse.
func (p ParsedAnalysis) Failure() (*ParsedFailure, bool) {
	return p.failure, p.failure != nil
}

func successAnalysis(stage ParseStage, s ParsedSuccess) ParsedAnalysis {
	return ParsedAnalysis{stage: stage, success: &s}
}

func failedAnalysis(f ParsedFailure) ParsedAnalysis {
	return ParsedAnalysis{stage: StageFailed, failure: &f}
}
