// Package observe provides application-wide observability primitives:
// OpenTelemetry metrics, tracing, trace-aware logging, and HTTP middleware
// that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API and bridged to
// Prometheus by [InitProvider] so they can be scraped at /metrics. A
// package-level [DefaultMetrics] instance is provided for convenience; tests
// should use [NewMetrics] with their own [metric.MeterProvider].
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all metrics.
const meterName = "github.com/tomwolfe/ConvoCue"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use.
type Metrics struct {
	// STTDuration tracks transcription latency. Attribute: provider.
	STTDuration metric.Float64Histogram

	// LLMDuration tracks generation latency. Attributes: provider, kind
	// (llm-suggest, llm-summarize).
	LLMDuration metric.Float64Histogram

	// EnergyDrain records every social energy deduction. Attribute: intent.
	EnergyDrain metric.Float64Histogram

	// Tasks counts settled dispatcher tasks. Attributes: kind, outcome.
	Tasks metric.Int64Counter

	// CacheLookups counts suggestion cache lookups. Attribute: result
	// (hit, miss).
	CacheLookups metric.Int64Counter

	// Suggestions counts suggestions shown. Attribute: source
	// (shortcut, cache, llm, silence).
	Suggestions metric.Int64Counter

	// ProviderRequests counts provider calls. Attributes: provider, kind,
	// status.
	ProviderRequests metric.Int64Counter

	// ProviderErrors counts provider errors. Attributes: provider, kind.
	ProviderErrors metric.Int64Counter

	// BreakerTransitions counts circuit breaker state changes. Attributes:
	// provider, state.
	BreakerTransitions metric.Int64Counter

	// ActiveSessions tracks the number of connected sessions.
	ActiveSessions metric.Int64UpDownCounter

	// HTTPRequestDuration tracks HTTP request processing time, or the
	// connection lifetime for WebSocket sessions. Attributes: method, route,
	// status.
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets are histogram boundaries in seconds for provider calls.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2, 3, 5, 10, 30,
}

// drainBuckets cover single-utterance deductions, which are fractions of a
// percent.
var drainBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.15, 0.2, 0.3, 0.5,
}

// NewMetrics creates every instrument on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.STTDuration, err = m.Float64Histogram("convocue.stt.duration",
		metric.WithDescription("Latency of speech-to-text transcription."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.LLMDuration, err = m.Float64Histogram("convocue.llm.duration",
		metric.WithDescription("Latency of text generation by request kind."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.EnergyDrain, err = m.Float64Histogram("convocue.energy.drain",
		metric.WithDescription("Social energy removed per deduction."),
		metric.WithUnit("%"),
		metric.WithExplicitBucketBoundaries(drainBuckets...),
	); err != nil {
		return nil, err
	}

	if met.Tasks, err = m.Int64Counter("convocue.tasks",
		metric.WithDescription("Settled asynchronous tasks by kind and outcome."),
	); err != nil {
		return nil, err
	}
	if met.CacheLookups, err = m.Int64Counter("convocue.cache.lookups",
		metric.WithDescription("Suggestion cache lookups by result."),
	); err != nil {
		return nil, err
	}
	if met.Suggestions, err = m.Int64Counter("convocue.suggestions",
		metric.WithDescription("Suggestions shown by source."),
	); err != nil {
		return nil, err
	}
	if met.ProviderRequests, err = m.Int64Counter("convocue.provider.requests",
		metric.WithDescription("Total provider API requests by provider, kind, and status."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("convocue.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}
	if met.BreakerTransitions, err = m.Int64Counter("convocue.breaker.transitions",
		metric.WithDescription("Circuit breaker state changes by provider and new state."),
	); err != nil {
		return nil, err
	}

	if met.ActiveSessions, err = m.Int64UpDownCounter("convocue.active_sessions",
		metric.WithDescription("Number of connected coaching sessions."),
	); err != nil {
		return nil, err
	}

	if met.HTTPRequestDuration, err = m.Float64Histogram("convocue.http.request.duration",
		metric.WithDescription("HTTP request latency by method, route and status."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, created on
// first call from [otel.GetMeterProvider]. Panics if instrument creation
// fails, which does not happen with the global provider.
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

// Attr is a convenience alias for [attribute.String].
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordProviderRequest increments the provider request counter.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}

// RecordProviderError increments the provider error counter.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}

// RecordTask counts one settled task.
func (m *Metrics) RecordTask(ctx context.Context, kind, outcome string) {
	m.Tasks.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("kind", kind),
			attribute.String("outcome", outcome),
		),
	)
}

// RecordCacheLookup counts a cache hit or miss.
func (m *Metrics) RecordCacheLookup(ctx context.Context, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

// RecordSuggestion counts a suggestion shown from source.
func (m *Metrics) RecordSuggestion(ctx context.Context, source string) {
	m.Suggestions.Add(ctx, 1, metric.WithAttributes(attribute.String("source", source)))
}

// RecordDrain records one energy deduction.
func (m *Metrics) RecordDrain(ctx context.Context, intent string, amount float64) {
	m.EnergyDrain.Record(ctx, amount, metric.WithAttributes(attribute.String("intent", intent)))
}

// RecordBreakerTransition counts a circuit breaker state change.
func (m *Metrics) RecordBreakerTransition(ctx context.Context, provider, state string) {
	m.BreakerTransitions.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("state", state),
		),
	)
}
