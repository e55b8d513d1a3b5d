package batch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/callgrade/callgrade/internal/analysis"
)

// fakeSource returns a fixed call list.
type fakeSource struct {
	calls []Call
	err   error
}

func (f *fakeSource) List(_ context.Context) ([]Call, error) { return f.calls, f.err }

// fakeProcessor records processed call ids and fails the configured ones.
type fakeProcessor struct {
	mu        sync.Mutex
	processed []string
	errFor    map[string]error
	failedFor map[string]bool
	block     chan struct{}
	onProcess func(callID string)
}

func (f *fakeProcessor) Process(ctx context.Context, req analysis.ProcessRequest) (*analysis.AnalysisResult, error) {
	f.mu.Lock()
	f.processed = append(f.processed, req.CallID)
	f.mu.Unlock()

	if f.onProcess != nil {
		f.onProcess(req.CallID)
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := f.errFor[req.CallID]; err != nil {
		return nil, err
	}
	if f.failedFor[req.CallID] {
		return &analysis.AnalysisResult{AnalysisFailed: true}, nil
	}
	grade := 8.0
	return &analysis.AnalysisResult{FinalGrade: &grade}, nil
}

func (f *fakeProcessor) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.processed)
}

func eligibleCall(id string) Call {
	return Call{
		ID:              id,
		Transcript:      strings.Repeat("x", 60),
		DurationSeconds: 200,
		SDRName:         "Ana",
	}
}

func eligibleCalls(n int) []Call {
	calls := make([]Call, 0, n)
	for i := range n {
		calls = append(calls, eligibleCall(fmt.Sprintf("call-%d", i)))
	}
	return calls
}

func TestScheduler_EligibilityFilter(t *testing.T) {
	t.Parallel()

	calls := []Call{
		eligibleCall("ok"),
		{ID: "short-call", Transcript: strings.Repeat("x", 60), DurationSeconds: 100},
		{ID: "short-transcript", Transcript: strings.Repeat("x", 10), DurationSeconds: 200},
		{ID: "boundary-duration", Transcript: strings.Repeat("x", 60), DurationSeconds: 180},
		{ID: "boundary-transcript", Transcript: strings.Repeat("x", 50), DurationSeconds: 200},
		func() Call { c := eligibleCall("already-analysed"); c.HasAnalysis = true; return c }(),
	}
	processor := &fakeProcessor{}
	scheduler := NewScheduler(&fakeSource{calls: calls}, processor, WithGroupPause(0))

	progress, err := scheduler.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run() unexpected error: %v", err)
	}
	if progress.Total != 1 {
		t.Errorf("Total = %d, want 1 eligible call", progress.Total)
	}
	if processor.count() != 1 || processor.processed[0] != "ok" {
		t.Errorf("processed = %v, want [ok]", processor.processed)
	}
	if !progress.Completed {
		t.Error("run must report completed")
	}
}

func TestScheduler_ZeroEligible(t *testing.T) {
	t.Parallel()

	processor := &fakeProcessor{}
	scheduler := NewScheduler(&fakeSource{}, processor)

	var observed []Progress
	progress, err := scheduler.Run(context.Background(), func(p Progress) {
		observed = append(observed, p)
	})
	if err != nil {
		t.Fatalf("Run() unexpected error: %v", err)
	}
	if !progress.Completed || progress.Total != 0 {
		t.Errorf("progress = %+v, want completed with total 0", progress)
	}
	if len(observed) != 1 {
		t.Errorf("want exactly one final progress emission, got %d", len(observed))
	}
	if processor.count() != 0 {
		t.Error("processor must not be invoked")
	}
}

func TestScheduler_SourceError(t *testing.T) {
	t.Parallel()

	scheduler := NewScheduler(&fakeSource{err: errors.New("pg down")}, &fakeProcessor{})
	_, err := scheduler.Run(context.Background(), nil)
	if err == nil {
		t.Fatal("Run() expected error, got nil")
	}
	if !strings.Contains(err.Error(), "batch: discover calls:") {
		t.Errorf("error = %q, want discovery prefix", err.Error())
	}
}

func TestScheduler_FailureIsolation(t *testing.T) {
	t.Parallel()

	processor := &fakeProcessor{
		errFor:    map[string]error{"call-1": errors.New("boom")},
		failedFor: map[string]bool{"call-2": true},
	}
	scheduler := NewScheduler(&fakeSource{calls: eligibleCalls(5)}, processor, WithGroupPause(0))

	progress, err := scheduler.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run() unexpected error: %v", err)
	}
	if progress.Processed != 5 {
		t.Errorf("Processed = %d, want 5", progress.Processed)
	}
	// One Go error plus one failed analysis.
	if progress.Errors != 2 {
		t.Errorf("Errors = %d, want 2", progress.Errors)
	}
	if !progress.Completed {
		t.Error("per-call failures must not abort the run")
	}
}

func TestScheduler_PausesBetweenGroups(t *testing.T) {
	t.Parallel()

	// 12 eligible calls in groups of 5 make 3 groups, so exactly 2 pauses.
	processor := &fakeProcessor{}
	scheduler := NewScheduler(&fakeSource{calls: eligibleCalls(12)}, processor)

	var pauses int
	scheduler.sleep = func(_ context.Context, d time.Duration) error {
		if d != defaultGroupPause {
			t.Errorf("pause = %v, want %v", d, defaultGroupPause)
		}
		pauses++
		return nil
	}

	progress, err := scheduler.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run() unexpected error: %v", err)
	}
	if pauses != 2 {
		t.Errorf("pauses = %d, want exactly 2", pauses)
	}
	if progress.Processed != 12 {
		t.Errorf("Processed = %d, want 12", progress.Processed)
	}
}

func TestScheduler_GroupsRunSequentially(t *testing.T) {
	t.Parallel()

	// With group size 2 the third call must not start before both calls of
	// the first group resolved.
	var mu sync.Mutex
	var maxInFlight, inFlight int
	processor := &fakeProcessor{}
	processor.onProcess = func(string) {
		mu.Lock()
		inFlight++
		if inFlight > maxInFlight {
			maxInFlight = inFlight
		}
		mu.Unlock()
		time.Sleep(10 * time.Millisecond)
		mu.Lock()
		inFlight--
		mu.Unlock()
	}
	scheduler := NewScheduler(&fakeSource{calls: eligibleCalls(6)}, processor,
		WithGroupSize(2), WithGroupPause(0))

	if _, err := scheduler.Run(context.Background(), nil); err != nil {
		t.Fatalf("Run() unexpected error: %v", err)
	}
	if maxInFlight > 2 {
		t.Errorf("max in-flight = %d, want at most the group size 2", maxInFlight)
	}
}

func TestScheduler_MaxConcurrentCapsFanOut(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var maxInFlight, inFlight int
	processor := &fakeProcessor{}
	processor.onProcess = func(string) {
		mu.Lock()
		inFlight++
		if inFlight > maxInFlight {
			maxInFlight = inFlight
		}
		mu.Unlock()
		time.Sleep(10 * time.Millisecond)
		mu.Lock()
		inFlight--
		mu.Unlock()
	}
	scheduler := NewScheduler(&fakeSource{calls: eligibleCalls(5)}, processor,
		WithGroupPause(0), WithMaxConcurrent(2))

	if _, err := scheduler.Run(context.Background(), nil); err != nil {
		t.Fatalf("Run() unexpected error: %v", err)
	}
	if maxInFlight > 2 {
		t.Errorf("max in-flight = %d, want at most 2", maxInFlight)
	}
}

func TestScheduler_Cancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	processor := &fakeProcessor{}
	scheduler := NewScheduler(&fakeSource{calls: eligibleCalls(12)}, processor)

	// Cancel during the first inter-group pause: the remaining groups must
	// not be scheduled.
	scheduler.sleep = func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}

	progress, err := scheduler.Run(ctx, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
	if progress.Completed {
		t.Error("cancelled run must not report completed")
	}
	if progress.Processed != 5 {
		t.Errorf("Processed = %d, want only the first group of 5", progress.Processed)
	}
}

func TestScheduler_ProgressEmissions(t *testing.T) {
	t.Parallel()

	processor := &fakeProcessor{}
	scheduler := NewScheduler(&fakeSource{calls: eligibleCalls(3)}, processor, WithGroupPause(0))

	var mu sync.Mutex
	var observed []Progress
	progress, err := scheduler.Run(context.Background(), func(p Progress) {
		mu.Lock()
		observed = append(observed, p)
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("Run() unexpected error: %v", err)
	}
	// One emission per resolved call plus the final one.
	if len(observed) != 4 {
		t.Fatalf("emissions = %d, want 4", len(observed))
	}
	final := observed[len(observed)-1]
	if !final.Completed || final.Processed != 3 {
		t.Errorf("final emission = %+v, want completed with 3 processed", final)
	}
	if progress.Current == "" {
		t.Error("Current must carry the last resolved call's label")
	}
}

func TestCall_Label(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		call Call
		want string
	}{
		{"both names", Call{ID: "c1", SDRName: "Ana", ClientName: "Bruno"}, "Ana → Bruno"},
		{"sdr only", Call{ID: "c1", SDRName: "Ana"}, "Ana"},
		{"neither", Call{ID: "c1"}, "c1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.call.Label(); got != tt.want {
				t.Errorf("Label() = %q, want %q", got, tt.want)
			}
		})
	}
}
