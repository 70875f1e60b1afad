// Package observe provides application-wide observability primitives for
// yomihosei: OpenTelemetry metrics, tracing, and structured logging helpers.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all yomihosei metrics.
const meterName = "github.com/daideguchi/yomihosei"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// TokenizeDuration tracks morphological analysis latency per block.
	TokenizeDuration metric.Float64Histogram

	// AudioQueryDuration tracks speech-engine accent query latency per block.
	AudioQueryDuration metric.Float64Histogram

	// ReasonDuration tracks reasoning-service batch call latency.
	ReasonDuration metric.Float64Histogram

	// --- Counters ---

	// ReasonerCalls counts reasoning-service calls. Use with attribute:
	//   attribute.String("status", ...)
	ReasonerCalls metric.Int64Counter

	// SurfacesSent counts surfaces submitted to the reasoning service.
	SurfacesSent metric.Int64Counter

	// Decisions counts validated reasoner decisions. Use with attributes:
	//   attribute.String("verdict", ...), attribute.String("reject", ...)
	Decisions metric.Int64Counter

	// Patches counts patch applications. Use with attribute:
	//   attribute.String("method", ...)
	Patches metric.Int64Counter

	// Runs counts completed correction runs. Use with attribute:
	//   attribute.String("outcome", ...)
	Runs metric.Int64Counter

	// --- Error counters ---

	// ProviderErrors counts provider errors. Use with attribute:
	//   attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) covering
// both local tokenization and remote reasoning-service calls.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.TokenizeDuration, err = m.Float64Histogram("yomihosei.tokenize.duration",
		metric.WithDescription("Latency of morphological analysis per block."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.AudioQueryDuration, err = m.Float64Histogram("yomihosei.audioquery.duration",
		metric.WithDescription("Latency of speech-engine accent queries per block."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ReasonDuration, err = m.Float64Histogram("yomihosei.reason.duration",
		metric.WithDescription("Latency of reasoning-service batch calls."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.ReasonerCalls, err = m.Int64Counter("yomihosei.reasoner.calls",
		metric.WithDescription("Total reasoning-service calls by status."),
	); err != nil {
		return nil, err
	}
	if met.SurfacesSent, err = m.Int64Counter("yomihosei.reasoner.surfaces",
		metric.WithDescription("Total surfaces submitted to the reasoning service."),
	); err != nil {
		return nil, err
	}
	if met.Decisions, err = m.Int64Counter("yomihosei.decisions",
		metric.WithDescription("Total validated reasoner decisions by verdict and reject reason."),
	); err != nil {
		return nil, err
	}
	if met.Patches, err = m.Int64Counter("yomihosei.patches",
		metric.WithDescription("Total patch applications by method."),
	); err != nil {
		return nil, err
	}
	if met.Runs, err = m.Int64Counter("yomihosei.runs",
		metric.WithDescription("Total correction runs by outcome."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.ProviderErrors, err = m.Int64Counter("yomihosei.provider.errors",
		metric.WithDescription("Total provider errors by kind."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordReasonerCall records one reasoning-service call with its status and
// the number of surfaces it carried.
func (m *Metrics) RecordReasonerCall(ctx context.Context, status string, surfaces int) {
	m.ReasonerCalls.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)),
	)
	m.SurfacesSent.Add(ctx, int64(surfaces))
}

// RecordDecision records one validated decision. reject is empty for
// accepted decisions.
func (m *Metrics) RecordDecision(ctx context.Context, verdict, reject string) {
	m.Decisions.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("verdict", verdict),
			attribute.String("reject", reject),
		),
	)
}

// RecordPatch records patch applications for one method.
func (m *Metrics) RecordPatch(ctx context.Context, method string, n int) {
	m.Patches.Add(ctx, int64(n),
		metric.WithAttributes(attribute.String("method", method)),
	)
}

// RecordRun records one completed correction run by outcome.
func (m *Metrics) RecordRun(ctx context.Context, outcome string) {
	m.Runs.Add(ctx, 1,
		metric.WithAttributes(attribute.String("outcome", outcome)),
	)
}

// RecordProviderError records a provider error by kind ("tokenizer",
// "speech", "reasoner").
func (m *Metrics) RecordProviderError(ctx context.Context, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(attribute.String("kind", kind)),
	)
}
