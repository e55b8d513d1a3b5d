package analysis

import (
	"strings"
	"testing"
)

func TestParse_FencedCodeBlock(t *testing.T) {
	t.Parallel()

	raw := "Here is the result: ```json\n" +
		`{"criteria_analysis":[],"general_feedback":"ok","strengths":[],"improvements":[],"confidence":0.9}` +
		"\n```"

	parsed := Parse(raw)
	if parsed.Failed() {
		t.Fatal("expected success, got failure")
	}
	if parsed.Stage() != StageFenced {
		t.Fatalf("want stage %q, got %q", StageFenced, parsed.Stage())
	}
	success, _ := parsed.Success()
	if success.GeneralFeedback != "ok" {
		t.Errorf("want feedback %q, got %q", "ok", success.GeneralFeedback)
	}
	if success.Confidence == nil || *success.Confidence != 0.9 {
		t.Errorf("want confidence 0.9, got %v", success.Confidence)
	}
}

func TestParse_FencedBlockWithoutLabel(t *testing.T) {
	t.Parallel()

	raw := "```\n{\"general_feedback\":\"sem label\"}\n```"
	parsed := Parse(raw)
	if parsed.Stage() != StageFenced {
		t.Fatalf("want stage %q, got %q", StageFenced, parsed.Stage())
	}
}

func TestParse_BraceScanWithRepair(t *testing.T) {
	t.Parallel()

	// Unfenced object with a trailing comma — strict decode fails, the
	// repair pass fixes it.
	raw := `The model says: {"a":1,}`
	parsed := Parse(raw)
	if parsed.Failed() {
		t.Fatal("expected success via brace scan + repair, got failure")
	}
	if parsed.Stage() != StageBraceScan {
		t.Fatalf("want stage %q, got %q", StageBraceScan, parsed.Stage())
	}
}

func TestParse_BraceScanPlainObject(t *testing.T) {
	t.Parallel()

	raw := `Sure! Here's my analysis.
{"criteria_analysis":[{"criterion_id":"c1","achieved_score":2,"analysis":"boa abertura"}],"general_feedback":"razoável"}
Let me know if you need anything else.`

	parsed := Parse(raw)
	if parsed.Stage() != StageBraceScan {
		t.Fatalf("want stage %q, got %q", StageBraceScan, parsed.Stage())
	}
	success, _ := parsed.Success()
	if len(success.Criteria) != 1 {
		t.Fatalf("want 1 criterion, got %d", len(success.Criteria))
	}
	if success.Criteria[0].CriterionID != "c1" || success.Criteria[0].AchievedScore != 2 {
		t.Errorf("unexpected criterion: %+v", success.Criteria[0])
	}
}

func TestParse_FractionalScoreRounded(t *testing.T) {
	t.Parallel()

	raw := `{"criteria_analysis":[{"criterion_id":"c1","achieved_score":2.6}]}`
	parsed := Parse(raw)
	success, ok := parsed.Success()
	if !ok {
		t.Fatal("expected success")
	}
	if success.Criteria[0].AchievedScore != 3 {
		t.Errorf("want rounded score 3, got %d", success.Criteria[0].AchievedScore)
	}
}

func TestParse_CommentStripped(t *testing.T) {
	t.Parallel()

	// Comment lines inside the object defeat both the fenced and brace-scan
	// rungs; only whole-text comment stripping salvages it.
	raw := "{\n\"general_feedback\": \"ok\",\n// nota do modelo\n\"confidence\": 0.8\n}"
	parsed := Parse(raw)
	if parsed.Failed() {
		t.Fatal("expected success via comment stripping, got failure")
	}
	if parsed.Stage() != StageCommentStrip {
		t.Fatalf("want stage %q, got %q", StageCommentStrip, parsed.Stage())
	}
}

func TestParse_GarbageYieldsSyntheticFailure(t *testing.T) {
	t.Parallel()

	parsed := Parse("not json at all")
	if !parsed.Failed() {
		t.Fatal("expected failure")
	}
	if parsed.Stage() != StageFailed {
		t.Fatalf("want stage %q, got %q", StageFailed, parsed.Stage())
	}
	failure, _ := parsed.Failure()
	if !strings.Contains(failure.GeneralFeedback, "indisponível") {
		t.Errorf("feedback should state unavailability, got %q", failure.GeneralFeedback)
	}
	if len(failure.Strengths) != 1 || failure.Strengths[0] != "Chamada realizada com sucesso" {
		t.Errorf("unexpected strengths: %v", failure.Strengths)
	}
	if len(failure.Improvements) != 1 || failure.Improvements[0] != "Revisar configuração do modelo de IA" {
		t.Errorf("unexpected improvements: %v", failure.Improvements)
	}
	if failure.Confidence != 0.3 {
		t.Errorf("want confidence 0.3, got %v", failure.Confidence)
	}
}

func TestParse_UnbalancedBraces(t *testing.T) {
	t.Parallel()

	parsed := Parse(`{"general_feedback": "never closed`)
	if !parsed.Failed() {
		t.Fatal("expected failure for unbalanced braces")
	}
}

func TestParse_EmptyInput(t *testing.T) {
	t.Parallel()

	parsed := Parse("")
	if !parsed.Failed() {
		t.Fatal("expected failure for empty input")
	}
}
