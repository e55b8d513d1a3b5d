package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/callgrade/callgrade/internal/observe"
	"github.com/callgrade/callgrade/internal/scorecard"
	"github.com/callgrade/callgrade/pkg/provider/llm"
)

// Validation and configuration errors. These indicate a setup problem the
// caller must fix — unlike completion-service or parsing failures, which are
// absorbed into a failed [AnalysisResult].
var (
	// ErrEmptyTranscript is returned when Process is called without a
	// transcript.
	ErrEmptyTranscript = errors.New("analysis: transcript is empty")

	// ErrNoScorecard is returned when the catalog has no scorecard for the
	// call.
	ErrNoScorecard = errors.New("analysis: no scorecard found for call")

	// ErrNoCriteria is returned when the selected scorecard has zero
	// criteria.
	ErrNoCriteria = errors.New("analysis: scorecard has no criteria")
)

const (
	// defaultCompletionTimeout bounds each completion-service invocation.
	// Expiry is treated as a transport failure and feeds the fallback path.
	defaultCompletionTimeout = 60 * time.Second

	// fallbackScoreRatio is the fraction of each criterion's max score
	// fabricated when the completion service itself fails. The result is
	// flagged failed and never persisted; the scores only give UIs a
	// plausible breakdown to render alongside the error feedback.
	fallbackScoreRatio = 0.6

	// gradingTemperature keeps grading runs close to deterministic.
	gradingTemperature = 0.2
)

// ProcessRequest carries the inputs of one analysis run.
type ProcessRequest struct {
	// CallID identifies the call; it keys both the in-flight cache and the
	// durable record.
	CallID string

	// Transcript is the full call transcript. Must be non-empty; callers are
	// responsible for any duration/length eligibility checks.
	Transcript string

	// SDRName optionally names the seller, for prompt context.
	SDRName string

	// ClientName optionally names the prospect, for prompt context.
	ClientName string

	// CallType feeds scorecard selection.
	CallType string

	// ForceReprocess bypasses the persisted record and recomputes, updating
	// the stored analysis on success.
	ForceReprocess bool
}

// inflight is the pending-result handle shared by concurrent duplicate
// requests for the same call id.
type inflight struct {
	done   chan struct{}
	result *AnalysisResult
	err    error
}

// Analyzer orchestrates single-call analysis: cache-first lookup, in-flight
// deduplication, prompt construction, the completion call, parsing, scoring,
// and the save-if-successful persistence policy.
//
// The in-flight map is owned by the Analyzer instance, not by the package,
// so tests can construct isolated instances and assert deduplication
// deterministically. Safe for concurrent use.
type Analyzer struct {
	provider llm.Provider
	catalog  scorecard.Catalog
	store    Store

	timeout time.Duration
	execute func(fn func() error) error
	metrics *observe.Metrics

	mu       sync.Mutex
	inflight map[string]*inflight
}

// AnalyzerOption is a functional option for [NewAnalyzer].
type AnalyzerOption func(*Analyzer)

// WithCompletionTimeout overrides the per-invocation completion-service
// deadline. Default: 60s.
func WithCompletionTimeout(d time.Duration) AnalyzerOption {
	return func(a *Analyzer) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithBreaker routes completion calls through the given circuit breaker.
// An open breaker counts as a transport failure and produces the standard
// failed-analysis fallback.
func WithBreaker(execute func(fn func() error) error) AnalyzerOption {
	return func(a *Analyzer) {
		if execute != nil {
			a.execute = execute
		}
	}
}

// WithMetrics attaches metric instruments to the analyzer.
func WithMetrics(m *observe.Metrics) AnalyzerOption {
	return func(a *Analyzer) { a.metrics = m }
}

// NewAnalyzer creates an [Analyzer] with its own in-flight cache.
func NewAnalyzer(provider llm.Provider, catalog scorecard.Catalog, store Store, opts ...AnalyzerOption) *Analyzer {
	a := &Analyzer{
		provider: provider,
		catalog:  catalog,
		store:    store,
		timeout:  defaultCompletionTimeout,
		execute:  func(fn func() error) error { return fn() },
		inflight: make(map[string]*inflight),
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// GetExisting returns the persisted analysis for the call mapped back into
// the result shape, or (nil, nil) when none exists. It never triggers a
// computation.
func (a *Analyzer) GetExisting(ctx context.Context, callID string) (*AnalysisResult, error) {
	rec, err := a.store.GetByCallID(ctx, callID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, nil
	}
	return rec.Result(), nil
}

// Process runs one analysis for the call, collapsing concurrent duplicate
// requests into a single computation.
//
// Persisted analyses are the source of truth once they exist: unless
// ForceReprocess is set, a stored record is returned without touching the
// completion service. Computation failures (unreachable service, deadline
// expiry, unparseable reply) come back as a result with AnalysisFailed set,
// not as an error; such results are never persisted. A persistence failure
// after a successful computation is logged and surfaced as an empty
// RecordID, but the computed result is still returned.
//
// The returned error is non-nil only for validation and configuration
// problems ([ErrEmptyTranscript], [ErrNoScorecard], [ErrNoCriteria]) and for
// store read failures.
func (a *Analyzer) Process(ctx context.Context, req ProcessRequest) (*AnalysisResult, error) {
	if req.Transcript == "" {
		return nil, ErrEmptyTranscript
	}

	// Atomic check-then-install: the second writer for a call id must await
	// the first's handle instead of starting its own computation.
	a.mu.Lock()
	if entry, ok := a.inflight[req.CallID]; ok {
		a.mu.Unlock()
		select {
		case <-entry.done:
			return entry.result, entry.err
		case <-ctx.Done():
			// The computation continues for its originator and any other
			// waiters; only this caller gives up.
			return nil, ctx.Err()
		}
	}
	entry := &inflight{done: make(chan struct{})}
	a.inflight[req.CallID] = entry
	a.mu.Unlock()

	if a.metrics != nil {
		a.metrics.ActiveAnalyses.Add(ctx, 1)
	}
	start := time.Now()

	var (
		result *AnalysisResult
		err    error
	)
	func() {
		// Guaranteed cleanup: the entry is resolved and removed on every
		// exit path, including a panicking compute.
		defer func() {
			entry.result, entry.err = result, err
			close(entry.done)
			a.mu.Lock()
			delete(a.inflight, req.CallID)
			a.mu.Unlock()
		}()
		result, err = a.compute(ctx, req)
	}()

	if a.metrics != nil {
		a.metrics.ActiveAnalyses.Add(ctx, -1)
		outcome := "success"
		switch {
		case err != nil:
			outcome = "error"
		case result.AnalysisFailed:
			outcome = "failed"
		}
		a.metrics.AnalysisDuration.Record(ctx, time.Since(start).Seconds(),
			metric.WithAttributes(attribute.String("outcome", outcome)))
	}

	return result, err
}

// compute performs the cache check and, on a miss, the full analysis run.
// It is always called under an installed in-flight entry.
func (a *Analyzer) compute(ctx context.Context, req ProcessRequest) (*AnalysisResult, error) {
	log := slog.With("call_id", req.CallID)

	if !req.ForceReprocess {
		rec, err := a.store.GetByCallID(ctx, req.CallID)
		if err != nil {
			return nil, err
		}
		if rec != nil {
			log.Debug("returning persisted analysis")
			return rec.Result(), nil
		}
	}

	sc, err := a.catalog.SelectForCall(ctx, scorecard.CallContext{
		CallID:   req.CallID,
		CallType: req.CallType,
	})
	if err != nil {
		return nil, fmt.Errorf("analysis: select scorecard for call %q: %w", req.CallID, err)
	}
	if sc == nil {
		return nil, fmt.Errorf("%w %q", ErrNoScorecard, req.CallID)
	}
	if len(sc.Criteria) == 0 {
		return nil, fmt.Errorf("%w: scorecard %q", ErrNoCriteria, sc.ID)
	}

	prompt := buildPrompt(promptRequest{
		Scorecard:  sc,
		Transcript: req.Transcript,
		SDRName:    req.SDRName,
		ClientName: req.ClientName,
	})

	content, completionErr := a.complete(ctx, prompt)
	if completionErr != nil {
		log.Warn("completion service failed; returning fallback result", "err", completionErr)
		result := a.fallbackResult(sc, completionErr)
		return result, nil
	}

	parsed := Parse(content)
	if a.metrics != nil {
		a.metrics.ParserOutcomes.Add(ctx, 1,
			metric.WithAttributes(attribute.String("stage", string(parsed.Stage()))))
	}

	result := Score(sc.Criteria, parsed)
	result.ScorecardUsed = sc.Name

	if result.AnalysisFailed {
		log.Warn("analysis failed; result not persisted", "stage", parsed.Stage())
		return &result, nil
	}

	recordID, err := a.store.Upsert(ctx, req.CallID, &result)
	if err != nil {
		// Soft-fail: the computed result is still good, the write is not.
		// A later GetExisting miss means "not yet durably confirmed".
		log.Error("failed to persist analysis", "err", err)
	} else {
		result.RecordID = recordID
	}

	log.Info("call analysed",
		"scorecard", sc.Name,
		"final_grade", *result.FinalGrade,
		"confidence", result.Confidence,
	)
	return &result, nil
}

// complete invokes the completion service with a per-invocation deadline,
// optionally through the circuit breaker.
func (a *Analyzer) complete(ctx context.Context, prompt string) (string, error) {
	cctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	var content string
	err := a.execute(func() error {
		resp, err := a.provider.Complete(cctx, llm.CompletionRequest{
			SystemPrompt: systemPrompt,
			UserPrompt:   prompt,
			Temperature:  gradingTemperature,
		})
		if err != nil {
			return err
		}
		content = resp.Content
		return nil
	})

	if a.metrics != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		a.metrics.CompletionRequests.Add(ctx, 1,
			metric.WithAttributes(attribute.String("status", status)))
	}
	return content, err
}

// fallbackResult fabricates the deterministic failed result used when the
// completion service itself errors: per-criterion scores at 60% of max, an
// explanatory feedback string naming the underlying error, and the failed
// flag set so the result is never persisted.
func (a *Analyzer) fallbackResult(sc *scorecard.Scorecard, cause error) *AnalysisResult {
	criteria := make([]CriterionAnalysis, 0, len(sc.Criteria))
	for _, cr := range sc.Criteria {
		achieved := int(math.Round(float64(cr.MaxScore) * fallbackScoreRatio))
		criteria = append(criteria, CriterionAnalysis{
			CriterionID:          cr.ID,
			CriterionName:        cr.Name,
			CriterionDescription: cr.Description,
			AchievedScore:        achieved,
			MaxScore:             cr.MaxScore,
			Percentage:           percentage(achieved, cr.MaxScore),
			Analysis:             missingCriterionAnalysis,
		})
	}
	return &AnalysisResult{
		ScorecardUsed:    sc.Name,
		CriteriaAnalysis: criteria,
		GeneralFeedback: fmt.Sprintf(
			"Análise automática indisponível devido a erro no serviço de IA: %v", cause),
		Strengths:      []string{parseFailedStrength},
		Improvements:   []string{parseFailedImprovement},
		Confidence:     0,
		AnalysisFailed: true,
	}
}
