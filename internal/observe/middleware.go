package observe

import (
	"bufio"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// TraceHeader carries the request's trace id back to the client so a
// reported problem can be matched to server logs.
const TraceHeader = "X-Trace-ID"

// routes are the paths served by the app. Anything else is labelled
// "other" to keep metric cardinality bounded.
var routes = map[string]bool{
	"/ws":      true,
	"/healthz": true,
	"/readyz":  true,
	"/metrics": true,
}

// probes are polled by orchestrators and scrapers; their completions log at
// debug.
var probes = map[string]bool{
	"/healthz": true,
	"/readyz":  true,
	"/metrics": true,
}

func route(path string) string {
	if routes[path] {
		return path
	}
	return "other"
}

// statusRecorder captures the status written by the downstream handler.
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack lets WebSocket upgrades through the recorder.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("observe: response writer does not support hijacking")
	}
	r.statusCode = http.StatusSwitchingProtocols
	return hj.Hijack()
}

// Unwrap exposes the wrapped writer to [http.ResponseController].
func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

// Middleware traces every request, continuing a W3C trace context when the
// client sent one, and records [Metrics.HTTPRequestDuration] by method,
// route and status. For a WebSocket route the duration is the lifetime of
// the connection, reported with status 101.
func Middleware(m *Metrics) func(http.Handler) http.Handler {
	prop := propagation.TraceContext{}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rt := route(r.URL.Path)

			ctx := prop.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
			ctx, span := StartSpan(ctx, r.Method+" "+rt,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					semconv.HTTPRequestMethodKey.String(r.Method),
					semconv.URLPath(r.URL.Path),
					semconv.HTTPRoute(rt),
				),
			)
			defer span.End()

			traceID := span.SpanContext().TraceID().String()
			w.Header().Set(TraceHeader, traceID)

			rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(rec, r.WithContext(ctx))

			elapsed := time.Since(start)
			m.HTTPRequestDuration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(
				attribute.String("method", r.Method),
				attribute.String("route", rt),
				attribute.String("status", strconv.Itoa(rec.statusCode)),
			))
			span.SetAttributes(semconv.HTTPResponseStatusCode(rec.statusCode))

			level := slog.LevelInfo
			if probes[rt] && rec.statusCode < http.StatusInternalServerError {
				level = slog.LevelDebug
			}
			slog.LogAttrs(ctx, level, "request completed",
				slog.String("trace_id", traceID),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rec.statusCode),
				slog.Duration("duration", elapsed),
			)
		})
	}
}
