// Command callgrade analyses sales-call transcripts against weighted
// scorecards using a text-completion service.
//
// Modes:
//
//	callgrade -config config.yaml -call <id>        analyse one call
//	callgrade -config config.yaml -call <id> -force reanalyse, updating the stored record
//	callgrade -config config.yaml -batch            process the eligible backlog
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"

	"github.com/callgrade/callgrade/internal/analysis"
	"github.com/callgrade/callgrade/internal/batch"
	"github.com/callgrade/callgrade/internal/config"
	"github.com/callgrade/callgrade/internal/health"
	"github.com/callgrade/callgrade/internal/observe"
	"github.com/callgrade/callgrade/internal/resilience"
	"github.com/callgrade/callgrade/internal/scorecard"
	"github.com/callgrade/callgrade/pkg/provider/llm"
	"github.com/callgrade/callgrade/pkg/provider/llm/anyllm"
	"github.com/callgrade/callgrade/pkg/provider/llm/openai"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	callID := flag.String("call", "", "analyse a single call by id")
	force := flag.Bool("force", false, "recompute even when a stored analysis exists")
	batchMode := flag.Bool("batch", false, "process the backlog of eligible calls")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "callgrade: config file %q not found\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "callgrade: %v\n", err)
		}
		return 1
	}

	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	if !*batchMode && *callID == "" {
		fmt.Fprintln(os.Stderr, "callgrade: nothing to do — pass -call <id> or -batch")
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Observability ─────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "callgrade"})
	if err != nil {
		slog.Error("failed to initialise metrics provider", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("metrics shutdown failed", "err", err)
		}
	}()

	metrics, err := observe.NewMetrics(otel.GetMeterProvider())
	if err != nil {
		slog.Error("failed to create metrics", "err", err)
		return 1
	}

	// ── Database ──────────────────────────────────────────────────────────────
	pool, err := pgxpool.New(ctx, cfg.Database.PostgresDSN)
	if err != nil {
		slog.Error("failed to create postgres pool", "err", err)
		return 1
	}
	defer pool.Close()

	if cfg.Server.MetricsAddr != "" {
		go serveMetrics(cfg.Server.MetricsAddr, health.New(health.DatabaseChecker(pool)))
	}

	store := analysis.NewPostgresStore(pool)
	catalog := scorecard.NewPostgresCatalog(pool)
	source := batch.NewPostgresSource(pool)

	if cfg.Database.MigrateOnStart {
		for _, migrate := range []func(context.Context) error{
			store.Migrate, catalog.Migrate, source.Migrate,
		} {
			if err := migrate(ctx); err != nil {
				slog.Error("migration failed", "err", err)
				return 1
			}
		}
	}

	// ── Completion provider ───────────────────────────────────────────────────
	provider, err := buildProvider(cfg.LLM)
	if err != nil {
		slog.Error("failed to build completion provider", "err", err)
		return 1
	}

	breaker := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Name:         "completion-service",
		MaxFailures:  cfg.Analysis.BreakerMaxFailures,
		ResetTimeout: time.Duration(cfg.Analysis.BreakerResetSeconds) * time.Second,
	})

	analyzerOpts := []analysis.AnalyzerOption{
		analysis.WithBreaker(breaker.Execute),
		analysis.WithMetrics(metrics),
	}
	if cfg.Analysis.CompletionTimeoutSeconds > 0 {
		analyzerOpts = append(analyzerOpts,
			analysis.WithCompletionTimeout(time.Duration(cfg.Analysis.CompletionTimeoutSeconds)*time.Second))
	}
	analyzer := analysis.NewAnalyzer(provider, catalog, store, analyzerOpts...)

	// ── Run ───────────────────────────────────────────────────────────────────
	if *batchMode {
		return runBatch(ctx, cfg, source, analyzer, metrics)
	}
	return runSingle(ctx, pool, analyzer, *callID, *force)
}

// runSingle analyses one call by id, loading its transcript from the calls
// table, and prints the result as JSON.
func runSingle(ctx context.Context, pool *pgxpool.Pool, analyzer *analysis.Analyzer, callID string, force bool) int {
	var transcript, sdrName, clientName, callType string
	err := pool.QueryRow(ctx,
		`SELECT transcript, sdr_name, client_name, call_type FROM calls WHERE id = $1`,
		callID,
	).Scan(&transcript, &sdrName, &clientName, &callType)
	if err != nil {
		slog.Error("failed to load call", "call_id", callID, "err", err)
		return 1
	}

	result, err := analyzer.Process(ctx, analysis.ProcessRequest{
		CallID:         callID,
		Transcript:     transcript,
		SDRName:        sdrName,
		ClientName:     clientName,
		CallType:       callType,
		ForceReprocess: force,
	})
	if err != nil {
		slog.Error("analysis failed", "call_id", callID, "err", err)
		return 1
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		slog.Error("failed to write result", "err", err)
		return 1
	}
	return 0
}

// runBatch processes the eligible backlog with progress logging.
func runBatch(ctx context.Context, cfg *config.Config, source batch.Source, analyzer *analysis.Analyzer, metrics *observe.Metrics) int {
	opts := []batch.SchedulerOption{batch.WithMetrics(metrics)}
	if cfg.Batch.GroupSize > 0 {
		opts = append(opts, batch.WithGroupSize(cfg.Batch.GroupSize))
	}
	if cfg.Batch.PauseSeconds > 0 {
		opts = append(opts, batch.WithGroupPause(time.Duration(cfg.Batch.PauseSeconds)*time.Second))
	}
	if cfg.Batch.MaxConcurrent > 0 {
		opts = append(opts, batch.WithMaxConcurrent(cfg.Batch.MaxConcurrent))
	}
	if cfg.Batch.MinDurationSeconds > 0 || cfg.Batch.MinTranscriptChars > 0 {
		opts = append(opts, batch.WithEligibility(cfg.Batch.MinDurationSeconds, cfg.Batch.MinTranscriptChars))
	}

	scheduler := batch.NewScheduler(source, analyzer, opts...)
	progress, err := scheduler.Run(ctx, func(p batch.Progress) {
		slog.Info("batch progress",
			"processed", p.Processed,
			"total", p.Total,
			"errors", p.Errors,
			"current", p.Current,
		)
	})
	if err != nil {
		slog.Warn("batch run interrupted", "err", err, "processed", progress.Processed)
		return 1
	}
	return 0
}

// buildProvider selects the completion backend: the official SDK for
// "openai", the any-llm multi-provider wrapper for everything else.
func buildProvider(cfg config.LLMConfig) (llm.Provider, error) {
	if cfg.Provider == "openai" && cfg.APIKey != "" {
		var opts []openai.Option
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		return openai.New(cfg.APIKey, cfg.Model, opts...)
	}

	var opts []anyllmlib.Option
	if cfg.APIKey != "" {
		opts = append(opts, anyllmlib.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, anyllmlib.WithBaseURL(cfg.BaseURL))
	}
	return anyllm.New(cfg.Provider, cfg.Model, opts...)
}

// serveMetrics exposes /metrics (Prometheus) plus the /healthz and /readyz
// probes.
func serveMetrics(addr string, h *health.Handler) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	h.Register(mux)
	slog.Info("metrics listener starting", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Warn("metrics listener stopped", "err", err)
	}
}

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
