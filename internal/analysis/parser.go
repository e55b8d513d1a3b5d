package analysis

import (
	"encoding/json"
	"math"
	"regexp"
	"strings"
)

// Completion services are not guaranteed to emit pure JSON: replies arrive
// wrapped in prose, markdown fences, or with small syntax defects. Parse
// tries a ladder of increasingly forgiving extraction strategies and always
// terminates with a well-typed value — a parse can fail, but it cannot error.
//
// User-facing fallback strings are Brazilian Portuguese, matching the
// language of the graded calls and of the prompt.
const (
	parseFailedFeedback    = "Análise automática indisponível: não foi possível interpretar a resposta do modelo de IA."
	parseFailedStrength    = "Chamada realizada com sucesso"
	parseFailedImprovement = "Revisar configuração do modelo de IA"
	parseFailedConfidence  = 0.3
)

var (
	// fencedBlockRe captures the content of the first triple-backtick block,
	// optionally labelled "json".
	fencedBlockRe = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

	// trailingCommaRe matches a comma directly before a closing bracket.
	trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)

	// blankLinesRe matches runs of blank lines.
	blankLinesRe = regexp.MustCompile(`\n[ \t]*\n+`)
)

// wireCriterion mirrors one criteria_analysis entry of the model reply.
// Scores are decoded as float64 because models occasionally emit "2.0" for
// an integer rubric.
type wireCriterion struct {
	CriterionID   string   `json:"criterion_id"`
	AchievedScore float64  `json:"achieved_score"`
	Analysis      string   `json:"analysis"`
	Evidence      []string `json:"evidence"`
	Suggestions   []string `json:"suggestions"`
}

// wirePayload mirrors the JSON object the prompt instructs the model to
// return.
type wirePayload struct {
	CriteriaAnalysis []wireCriterion `json:"criteria_analysis"`
	GeneralFeedback  string          `json:"general_feedback"`
	Strengths        []string        `json:"strengths"`
	Improvements     []string        `json:"improvements"`
	Confidence       *float64        `json:"confidence"`
}

// Parse turns an arbitrary completion reply into a [ParsedAnalysis].
// It never returns an error. The ladder, first success wins:
//
//  1. strict decode of the first fenced code block;
//  2. brace-depth scan for the first balanced object, strict decode, then
//     one retry after light repair (trailing commas, blank lines, tabs);
//  3. strict decode of the whole text with comment-like lines stripped;
//  4. synthetic failure object.
func Parse(raw string) ParsedAnalysis {
	if m := fencedBlockRe.FindStringSubmatch(raw); m != nil {
		if payload, ok := decodePayload(m[1]); ok {
			return successAnalysis(StageFenced, payloadToSuccess(payload))
		}
	}

	if candidate, ok := firstBalancedObject(raw); ok {
		if payload, ok := decodePayload(candidate); ok {
			return successAnalysis(StageBraceScan, payloadToSuccess(payload))
		}
		if payload, ok := decodePayload(repair(candidate)); ok {
			return successAnalysis(StageBraceScan, payloadToSuccess(payload))
		}
	}

	if payload, ok := decodePayload(stripCommentLines(raw)); ok {
		return successAnalysis(StageCommentStrip, payloadToSuccess(payload))
	}

	return failedAnalysis(ParsedFailure{
		Reason:          "no decodable JSON object in model reply",
		GeneralFeedback: parseFailedFeedback,
		Strengths:       []string{parseFailedStrength},
		Improvements:    []string{parseFailedImprovement},
		Confidence:      parseFailedConfidence,
	})
}

// decodePayload attempts a strict JSON decode of s into the wire shape.
func decodePayload(s string) (*wirePayload, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, false
	}
	var payload wirePayload
	if err := json.Unmarshal([]byte(s), &payload); err != nil {
		return nil, false
	}
	return &payload, true
}

// firstBalancedObject scans raw for the first '{' and walks forward keeping
// a brace-depth counter. When the depth returns to zero the substring is a
// candidate object.
func firstBalancedObject(raw string) (string, bool) {
	start := strings.IndexByte(raw, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	for i := start; i < len(raw); i++ {
		switch raw[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return raw[start : i+1], true
			}
		}
	}
	return "", false
}

// repair applies light syntactic fixes that cover the most common model
// output defects: trailing commas before a closing bracket, runs of blank
// lines, and tab characters.
func repair(s string) string {
	s = trailingCommaRe.ReplaceAllString(s, "$1")
	s = blankLinesRe.ReplaceAllString(s, "\n")
	s = strings.ReplaceAll(s, "\t", " ")
	return s
}

// stripCommentLines removes lines that look like code comments (// or #)
// from the whole text.
func stripCommentLines(raw string) string {
	lines := strings.Split(raw, "\n")
	kept := lines[:0]
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "//") || strings.HasPrefix(trimmed, "#") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

// payloadToSuccess converts the wire shape into the typed success payload.
func payloadToSuccess(p *wirePayload) ParsedSuccess {
	s := ParsedSuccess{
		GeneralFeedback: p.GeneralFeedback,
		Strengths:       p.Strengths,
		Improvements:    p.Improvements,
		Confidence:      p.Confidence,
	}
	for _, wc := range p.CriteriaAnalysis {
		s.Criteria = append(s.Criteria, ParsedCriterion{
			CriterionID:   wc.CriterionID,
			AchievedScore: int(math.Round(wc.AchievedScore)),
			Analysis:      wc.Analysis,
			Evidence:      wc.Evidence,
			Suggestions:   wc.Suggestions,
		})
	}
	return s
}
