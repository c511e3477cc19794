package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/tomwolfe/ConvoCue/internal/config"
	"github.com/tomwolfe/ConvoCue/internal/observe"
	"github.com/tomwolfe/ConvoCue/internal/resilience"
	"github.com/tomwolfe/ConvoCue/pkg/provider/llm"
	"github.com/tomwolfe/ConvoCue/pkg/provider/stt"
)

// ErrNotLoaded is returned by a provider slot that has no provider yet.
var ErrNotLoaded = errors.New("app: provider not loaded")

// errNotConfigured marks a service with no provider in the config.
var errNotConfigured = errors.New("no provider configured")

// llmSlot is an [llm.Provider] whose backend is installed once loading
// finishes. Sessions hold the slot from the start and consult readiness
// before using it.
type llmSlot struct {
	p atomic.Pointer[llm.Provider]
}

func (s *llmSlot) set(p llm.Provider) { s.p.Store(&p) }

func (s *llmSlot) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p := s.p.Load()
	if p == nil {
		return nil, ErrNotLoaded
	}
	return (*p).Complete(ctx, req)
}

// sttSlot is the [stt.Provider] counterpart of [llmSlot].
type sttSlot struct {
	p atomic.Pointer[stt.Provider]
}

func (s *sttSlot) set(p stt.Provider) { s.p.Store(&p) }

func (s *sttSlot) Transcribe(ctx context.Context, req stt.Request) (stt.Transcript, error) {
	p := s.p.Load()
	if p == nil {
		return stt.Transcript{}, ErrNotLoaded
	}
	return (*p).Transcribe(ctx, req)
}

// meteredLLM records latency and outcome of every completion under one
// request kind.
type meteredLLM struct {
	next     llm.Provider
	provider string
	kind     string
	metrics  *observe.Metrics
}

func (m *meteredLLM) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	start := time.Now()
	resp, err := m.next.Complete(ctx, req)
	m.metrics.LLMDuration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(
		observe.Attr("provider", m.provider),
		observe.Attr("kind", m.kind),
	))
	m.metrics.RecordProviderRequest(ctx, m.provider, m.kind, status(err))
	if err != nil {
		m.metrics.RecordProviderError(ctx, m.provider, m.kind)
	}
	return resp, err
}

// meteredSTT is the [stt.Provider] counterpart of [meteredLLM].
type meteredSTT struct {
	next     stt.Provider
	provider string
	metrics  *observe.Metrics
}

func (m *meteredSTT) Transcribe(ctx context.Context, req stt.Request) (stt.Transcript, error) {
	start := time.Now()
	tr, err := m.next.Transcribe(ctx, req)
	m.metrics.STTDuration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(
		observe.Attr("provider", m.provider),
	))
	m.metrics.RecordProviderRequest(ctx, m.provider, "stt", status(err))
	if err != nil {
		m.metrics.RecordProviderError(ctx, m.provider, "stt")
	}
	return tr, err
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// fallbackConfig turns the breaker settings into a [resilience.FallbackConfig]
// whose state changes are counted.
func fallbackConfig(b config.BreakerConfig, m *observe.Metrics) resilience.FallbackConfig {
	return resilience.FallbackConfig{
		CircuitBreaker: resilience.CircuitBreakerConfig{
			MaxFailures:  b.MaxFailures,
			ResetTimeout: b.ResetTimeout,
			HalfOpenMax:  b.HalfOpenMax,
			OnStateChange: func(name string, _, to resilience.State) {
				m.RecordBreakerTransition(context.Background(), name, to.String())
			},
		},
	}
}

// buildLLM creates the configured primary LLM and its fallbacks. A fallback
// that cannot be created is skipped with a warning; a primary that cannot be
// created is an error.
func buildLLM(reg *config.Registry, pc config.ProvidersConfig, m *observe.Metrics) (llm.Provider, error) {
	primary, err := reg.CreateLLM(pc.LLM)
	if err != nil {
		return nil, fmt.Errorf("create llm provider %q: %w", pc.LLM.Name, err)
	}
	group := resilience.NewLLMFallback(primary, pc.LLM.Name, fallbackConfig(pc.Breaker, m))
	for i, entry := range pc.LLMFallbacks {
		p, err := reg.CreateLLM(entry)
		if err != nil {
			slog.Warn("skipping llm fallback", "index", i, "name", entry.Name, "err", err)
			continue
		}
		group.AddFallback(entry.Name, p)
		slog.Info("provider created", "kind", "llm", "name", entry.Name, "role", "fallback")
	}
	slog.Info("provider created", "kind", "llm", "name", pc.LLM.Name, "model", pc.LLM.Model)
	return group, nil
}

// buildSTT is the recognition counterpart of [buildLLM].
func buildSTT(reg *config.Registry, pc config.ProvidersConfig, m *observe.Metrics) (stt.Provider, error) {
	primary, err := reg.CreateSTT(pc.STT)
	if err != nil {
		return nil, fmt.Errorf("create stt provider %q: %w", pc.STT.Name, err)
	}
	group := resilience.NewSTTFallback(primary, pc.STT.Name, fallbackConfig(pc.Breaker, m))
	for i, entry := range pc.STTFallbacks {
		p, err := reg.CreateSTT(entry)
		if err != nil {
			slog.Warn("skipping stt fallback", "index", i, "name", entry.Name, "err", err)
			continue
		}
		group.AddFallback(entry.Name, p)
		slog.Info("provider created", "kind", "stt", "name", entry.Name, "role", "fallback")
	}
	slog.Info("provider created", "kind", "stt", "name", pc.STT.Name, "model", pc.STT.Model)
	return group, nil
}
