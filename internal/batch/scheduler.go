package batch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/semaphore"

	"github.com/callgrade/callgrade/internal/analysis"
	"github.com/callgrade/callgrade/internal/observe"
)

// Eligibility thresholds and pacing defaults. Groups are deliberately small
// and separated by a pause so a backlog run cannot saturate the completion
// service's rate limits.
const (
	defaultGroupSize          = 5
	defaultGroupPause         = 2 * time.Second
	defaultMinDurationSeconds = 180
	defaultMinTranscriptChars = 50
)

// Progress is the monotonically updated state of one batch run, surfaced to
// the caller-supplied observer after every call resolves and once more at
// the end.
type Progress struct {
	// Total is the number of eligible calls discovered.
	Total int

	// Processed counts calls that have resolved, successfully or not.
	Processed int

	// Current is a human label for the most recently resolved call.
	Current string

	// Errors counts calls whose analysis errored or came back failed.
	Errors int

	// Completed is true once all groups have been processed; a cancelled
	// run reports its final progress with Completed false.
	Completed bool
}

// Processor runs one call analysis. Satisfied by [analysis.Analyzer].
type Processor interface {
	Process(ctx context.Context, req analysis.ProcessRequest) (*analysis.AnalysisResult, error)
}

// Scheduler discovers eligible calls and drives the [Processor] over them in
// fixed-size groups: calls within a group fan out concurrently (additionally
// bounded by a shared semaphore), groups execute strictly sequentially with
// a fixed pause in between.
type Scheduler struct {
	source    Source
	processor Processor

	groupSize     int
	pause         time.Duration
	minDuration   int
	minTranscript int
	sem           *semaphore.Weighted
	metrics       *observe.Metrics

	// sleep is the ctx-aware inter-group pause, replaceable in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// SchedulerOption is a functional option for [NewScheduler].
type SchedulerOption func(*Scheduler)

// WithGroupSize sets how many calls form one concurrent group. Default: 5.
func WithGroupSize(n int) SchedulerOption {
	return func(s *Scheduler) {
		if n > 0 {
			s.groupSize = n
		}
	}
}

// WithGroupPause sets the backpressure pause between groups. Default: 2s.
func WithGroupPause(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if d >= 0 {
			s.pause = d
		}
	}
}

// WithEligibility overrides the minimum call duration (seconds) and minimum
// transcript length (characters) a call must exceed to be analysed.
// Defaults: 180s and 50 characters.
func WithEligibility(minDurationSeconds, minTranscriptChars int) SchedulerOption {
	return func(s *Scheduler) {
		s.minDuration = minDurationSeconds
		s.minTranscript = minTranscriptChars
	}
}

// WithMaxConcurrent caps concurrent Process invocations across the run,
// independent of group size. Default: the group size.
func WithMaxConcurrent(n int) SchedulerOption {
	return func(s *Scheduler) {
		if n > 0 {
			s.sem = semaphore.NewWeighted(int64(n))
		}
	}
}

// WithMetrics attaches metric instruments to the scheduler.
func WithMetrics(m *observe.Metrics) SchedulerOption {
	return func(s *Scheduler) { s.metrics = m }
}

// NewScheduler creates a [Scheduler] over the given source and processor.
func NewScheduler(source Source, processor Processor, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		source:        source,
		processor:     processor,
		groupSize:     defaultGroupSize,
		pause:         defaultGroupPause,
		minDuration:   defaultMinDurationSeconds,
		minTranscript: defaultMinTranscriptChars,
		sleep:         sleepCtx,
	}
	for _, o := range opts {
		o(s)
	}
	if s.sem == nil {
		s.sem = semaphore.NewWeighted(int64(s.groupSize))
	}
	return s
}

// Run processes the backlog of eligible calls. onProgress, when non-nil, is
// invoked synchronously after every call resolves and once more with the
// final state; calls to it are serialised.
//
// Per-call failures are isolated: they increment [Progress.Errors] and do
// not abort siblings or the run. Cancellation stops scheduling further
// groups and returns the final progress with Completed false alongside
// ctx.Err().
func (s *Scheduler) Run(ctx context.Context, onProgress func(Progress)) (Progress, error) {
	calls, err := s.source.List(ctx)
	if err != nil {
		return Progress{}, fmt.Errorf("batch: discover calls: %w", err)
	}

	eligible := s.filterEligible(calls)
	progress := Progress{Total: len(eligible)}
	slog.Info("batch run starting",
		"candidates", len(calls),
		"eligible", len(eligible),
		"group_size", s.groupSize,
	)

	emit := func() {
		if onProgress != nil {
			onProgress(progress)
		}
	}

	if len(eligible) == 0 {
		progress.Completed = true
		emit()
		return progress, nil
	}

	var mu sync.Mutex
	groups := partition(eligible, s.groupSize)

	for gi, group := range groups {
		if ctx.Err() != nil {
			break
		}

		var wg sync.WaitGroup
		for _, call := range group {
			if err := s.sem.Acquire(ctx, 1); err != nil {
				break
			}
			wg.Add(1)
			go func(c Call) {
				defer wg.Done()
				defer s.sem.Release(1)

				res, perr := s.processor.Process(ctx, analysis.ProcessRequest{
					CallID:     c.ID,
					Transcript: c.Transcript,
					SDRName:    c.SDRName,
					ClientName: c.ClientName,
					CallType:   c.CallType,
				})
				failed := perr != nil || (res != nil && res.AnalysisFailed)
				if perr != nil {
					slog.Warn("batch call errored", "call_id", c.ID, "err", perr)
				}

				mu.Lock()
				progress.Processed++
				progress.Current = c.Label()
				if failed {
					progress.Errors++
				}
				emit()
				mu.Unlock()

				if s.metrics != nil {
					status := "ok"
					if failed {
						status = "error"
					}
					s.metrics.BatchCallsProcessed.Add(ctx, 1,
						metric.WithAttributes(attribute.String("status", status)))
				}
			}(call)
		}
		wg.Wait()

		if gi < len(groups)-1 {
			if err := s.sleep(ctx, s.pause); err != nil {
				break
			}
		}
	}

	progress.Completed = ctx.Err() == nil
	emit()
	slog.Info("batch run finished",
		"processed", progress.Processed,
		"errors", progress.Errors,
		"completed", progress.Completed,
	)
	return progress, ctx.Err()
}

// filterEligible keeps calls that exceed the duration and transcript-length
// thresholds and have no existing analysis record. A pure filter — no
// mutation of collaborator data.
func (s *Scheduler) filterEligible(calls []Call) []Call {
	var eligible []Call
	for _, c := range calls {
		if c.HasAnalysis {
			continue
		}
		if c.DurationSeconds <= s.minDuration {
			continue
		}
		if len(c.Transcript) <= s.minTranscript {
			continue
		}
		eligible = append(eligible, c)
	}
	return eligible
}

// partition splits calls into groups of at most size.
func partition(calls []Call, size int) [][]Call {
	var groups [][]Call
	for start := 0; start < len(calls); start += size {
		end := start + size
		if end > len(calls) {
			end = len(calls)
		}
		groups = append(groups, calls[start:end])
	}
	return groups
}

// sleepCtx pauses for d or until ctx is cancelled, whichever comes first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
