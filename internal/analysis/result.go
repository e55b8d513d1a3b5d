// Package analysis implements the call analysis pipeline: prompt
// construction, resilient parsing of the model's loosely structured reply,
// weighted score computation, the in-flight deduplication cache, and the
// persistence policy.
//
// The central invariant of the package: a result with AnalysisFailed set
// never carries a grade and is never written to durable storage. Failed
// analyses are data, not errors — only validation and configuration problems
// (empty transcript, missing scorecard) surface as Go errors.
package analysis

import "time"

// CriterionAnalysis is the per-criterion outcome of one analysis run.
// AchievedScore is always clamped to [0, MaxScore].
type CriterionAnalysis struct {
	// CriterionID references the catalog criterion this entry grades.
	CriterionID string `json:"criterion_id"`

	// CriterionName mirrors the catalog name at analysis time.
	CriterionName string `json:"criterion_name"`

	// CriterionDescription mirrors the catalog description at analysis time.
	CriterionDescription string `json:"criterion_description"`

	// AchievedScore is the score the model assigned, clamped to [0, MaxScore].
	AchievedScore int `json:"achieved_score"`

	// MaxScore is the criterion's maximum score, copied from the catalog.
	MaxScore int `json:"max_score"`

	// Percentage is round(AchievedScore / MaxScore * 100).
	Percentage int `json:"percentage"`

	// Analysis is the model's free-text justification for the score.
	Analysis string `json:"analysis"`

	// Evidence lists transcript excerpts supporting the score.
	Evidence []string `json:"evidence"`

	// Suggestions lists concrete improvement actions for this criterion.
	Suggestions []string `json:"suggestions"`
}

// AnalysisResult is the outcome of one analysis run for a call.
//
// FinalGrade is non-nil iff AnalysisFailed is false. When AnalysisFailed is
// true, OverallScore and MaxPossibleScore are nil as well and the result is
// never persisted.
type AnalysisResult struct {
	// ScorecardUsed is the display name of the scorecard that graded the call.
	ScorecardUsed string `json:"scorecard_used"`

	// OverallScore is Σ(achieved_i × weight_i). Nil when the analysis failed.
	OverallScore *int `json:"overall_score"`

	// MaxPossibleScore is Σ(max_i × weight_i). Nil when the analysis failed.
	MaxPossibleScore *int `json:"max_possible_score"`

	// FinalGrade is the 0–10 weighted aggregate, one decimal place.
	// Nil when the analysis failed.
	FinalGrade *float64 `json:"final_grade"`

	// CriteriaAnalysis holds the per-criterion breakdown, in catalog order.
	CriteriaAnalysis []CriterionAnalysis `json:"criteria_analysis"`

	// GeneralFeedback is the model's overall assessment of the call.
	GeneralFeedback string `json:"general_feedback"`

	// Strengths lists what went well on the call.
	Strengths []string `json:"strengths"`

	// Improvements lists what should be done better.
	Improvements []string `json:"improvements"`

	// Confidence is the model's self-reported confidence in [0, 1].
	// Zero when the analysis failed.
	Confidence float64 `json:"confidence"`

	// AnalysisFailed marks results that could not produce a trustworthy
	// grade. Failed results are returned to the caller but never persisted.
	AnalysisFailed bool `json:"analysis_failed"`

	// RecordID is the durable record id assigned on persistence. Empty when
	// the result was not (or could not be) written.
	RecordID string `json:"record_id,omitempty"`
}

// AnalysisRecord is the persisted form of a successful [AnalysisResult],
// keyed uniquely by call id. Records are created on first successful
// analysis, updated only on explicit forced reprocessing, and never deleted
// by this subsystem. Failed results are never recorded, so a record always
// carries a grade.
type AnalysisRecord struct {
	ID               string
	CallID           string
	ScorecardUsed    string
	OverallScore     int
	MaxPossibleScore int
	FinalGrade       float64
	CriteriaAnalysis []CriterionAnalysis
	GeneralFeedback  string
	Strengths        []string
	Improvements     []string
	Confidence       float64
	CreatedAt        time.Time
}

// Result maps the record back into the in-memory result shape. Persisted
// analyses always represent successful runs.
func (r *AnalysisRecord) Result() *AnalysisResult {
	overall, maxPossible, grade := r.OverallScore, r.MaxPossibleScore, r.FinalGrade
	return &AnalysisResult{
		ScorecardUsed:    r.ScorecardUsed,
		OverallScore:     &overall,
		MaxPossibleScore: &maxPossible,
		FinalGrade:       &grade,
		CriteriaAnalysis: r.CriteriaAnalysis,
		GeneralFeedback:  r.GeneralFeedback,
		Strengths:        r.Strengths,
		Improvements:     r.Improvements,
		Confidence:       r.Confidence,
		AnalysisFailed:   false,
		RecordID:         r.ID,
	}
}
