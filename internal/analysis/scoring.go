package analysis

import (
	"log/slog"
	"math"

	"github.com/callgrade/callgrade/internal/scorecard"
)

const (
	// defaultConfidence is assumed when a successful reply omits the
	// confidence field.
	defaultConfidence = 0.7

	// missingCriterionAnalysis is shown when the model reply has no entry
	// for a catalog criterion.
	missingCriterionAnalysis = "Análise não disponível"
)

// Score maps the parsed reply and the catalog criteria into an
// [AnalysisResult] (minus persistence concerns — ScorecardUsed and RecordID
// are filled by the analyzer).
//
// Matching is by criterion id first, positional alignment second; a
// criterion with no match at all scores zero. Achieved scores are clamped to
// [0, MaxScore].
//
// A failed parse yields nil OverallScore/MaxPossibleScore/FinalGrade and
// confidence zero. The weighted sum is deliberately not computed in that
// case: a fabricated zero grade would be indistinguishable from a
// legitimately bad call.
func Score(criteria []scorecard.Criterion, parsed ParsedAnalysis) AnalysisResult {
	if failure, ok := parsed.Failure(); ok {
		return AnalysisResult{
			CriteriaAnalysis: failedCriteria(criteria),
			GeneralFeedback:  failure.GeneralFeedback,
			Strengths:        failure.Strengths,
			Improvements:     failure.Improvements,
			Confidence:       0,
			AnalysisFailed:   true,
		}
	}

	success, _ := parsed.Success()

	knownIDs := make(map[string]bool, len(criteria))
	for _, cr := range criteria {
		knownIDs[cr.ID] = true
	}

	var overall, maxPossible int
	criteriaAnalysis := make([]CriterionAnalysis, 0, len(criteria))
	for i, cr := range criteria {
		entry := matchCriterion(cr, i, success.Criteria, knownIDs)
		achieved := clamp(entry.AchievedScore, 0, cr.MaxScore)

		criteriaAnalysis = append(criteriaAnalysis, CriterionAnalysis{
			CriterionID:          cr.ID,
			CriterionName:        cr.Name,
			CriterionDescription: cr.Description,
			AchievedScore:        achieved,
			MaxScore:             cr.MaxScore,
			Percentage:           percentage(achieved, cr.MaxScore),
			Analysis:             entry.Analysis,
			Evidence:             entry.Evidence,
			Suggestions:          entry.Suggestions,
		})

		overall += achieved * cr.Weight
		maxPossible += cr.MaxScore * cr.Weight
	}

	grade := 0.0
	if maxPossible > 0 {
		grade = math.Round(float64(overall)/float64(maxPossible)*100) / 10
	} else {
		// A scorecard whose criteria cannot contribute any points is a
		// catalog misconfiguration, not a per-call failure.
		slog.Warn("scorecard has no usable criteria; final grade forced to 0",
			"criteria", len(criteria))
	}

	confidence := defaultConfidence
	if success.Confidence != nil {
		confidence = clampFloat(*success.Confidence, 0, 1)
	}

	return AnalysisResult{
		OverallScore:     &overall,
		MaxPossibleScore: &maxPossible,
		FinalGrade:       &grade,
		CriteriaAnalysis: criteriaAnalysis,
		GeneralFeedback:  success.GeneralFeedback,
		Strengths:        success.Strengths,
		Improvements:     success.Improvements,
		Confidence:       confidence,
		AnalysisFailed:   false,
	}
}

// matchCriterion locates the parsed entry for cr: by criterion id first,
// then by position. The positional fallback only claims an entry that does
// not explicitly belong to another catalog criterion, so a reordered reply
// cannot double-count a score. A miss yields a zero-score placeholder.
func matchCriterion(cr scorecard.Criterion, idx int, parsed []ParsedCriterion, knownIDs map[string]bool) ParsedCriterion {
	for _, p := range parsed {
		if p.CriterionID != "" && p.CriterionID == cr.ID {
			return p
		}
	}
	if idx < len(parsed) {
		if id := parsed[idx].CriterionID; id == "" || !knownIDs[id] {
			return parsed[idx]
		}
	}
	return ParsedCriterion{Analysis: missingCriterionAnalysis}
}

// failedCriteria builds the zero-score breakdown attached to a failed
// result so UIs can still render the scorecard structure.
func failedCriteria(criteria []scorecard.Criterion) []CriterionAnalysis {
	out := make([]CriterionAnalysis, 0, len(criteria))
	for _, cr := range criteria {
		out = append(out, CriterionAnalysis{
			CriterionID:          cr.ID,
			CriterionName:        cr.Name,
			CriterionDescription: cr.Description,
			AchievedScore:        0,
			MaxScore:             cr.MaxScore,
			Percentage:           0,
			Analysis:             missingCriterionAnalysis,
		})
	}
	return out
}

func percentage(achieved, max int) int {
	if max <= 0 {
		return 0
	}
	return int(math.Round(float64(achieved) / float64(max) * 100))
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
