// Package observe provides observability primitives for callgrade:
// OpenTelemetry metrics with a Prometheus exporter bridge so that metrics
// can be scraped via the standard /metrics endpoint.
//
// Tests should use [NewMetrics] with a custom [metric.MeterProvider]
// (typically backed by a ManualReader) to avoid cross-test pollution.
package observe

import (
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all callgrade metrics.
const meterName = "github.com/callgrade/callgrade"

// Metrics holds all OpenTelemetry metric instruments for the analysis
// pipeline. All fields are safe for concurrent use — the underlying OTel
// types handle their own synchronisation.
type Metrics struct {
	// AnalysisDuration tracks end-to-end single-call analysis latency in
	// seconds. Use with attribute.String("outcome", "success"|"failed"|"cached").
	AnalysisDuration metric.Float64Histogram

	// CompletionRequests counts completion-service calls. Use with
	// attribute.String("status", "ok"|"error").
	CompletionRequests metric.Int64Counter

	// ParserOutcomes counts parser results by ladder stage. Use with
	// attribute.String("stage", ...).
	ParserOutcomes metric.Int64Counter

	// BatchCallsProcessed counts calls processed by batch runs. Use with
	// attribute.String("status", "ok"|"error").
	BatchCallsProcessed metric.Int64Counter

	// ActiveAnalyses tracks the number of in-flight analysis computations.
	ActiveAnalyses metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// completion-service round-trips, which dominate analysis latency.
var latencyBuckets = []float64{
	0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 40, 60, 120,
}

// NewMetrics creates a fully initialised [Metrics] using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.AnalysisDuration, err = m.Float64Histogram("callgrade.analysis.duration",
		metric.WithDescription("End-to-end latency of a single call analysis."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	if met.CompletionRequests, err = m.Int64Counter("callgrade.completion.requests",
		metric.WithDescription("Completion-service calls issued by the analyzer."),
	); err != nil {
		return nil, err
	}

	if met.ParserOutcomes, err = m.Int64Counter("callgrade.parser.outcomes",
		metric.WithDescription("Parser results by fallback-ladder stage."),
	); err != nil {
		return nil, err
	}

	if met.BatchCallsProcessed, err = m.Int64Counter("callgrade.batch.calls_processed",
		metric.WithDescription("Calls processed by batch runs."),
	); err != nil {
		return nil, err
	}

	if met.ActiveAnalyses, err = m.Int64UpDownCounter("callgrade.analysis.active",
		metric.WithDescription("Number of in-flight analysis computations."),
	); err != nil {
		return nil, err
	}

	return met, nil
}
