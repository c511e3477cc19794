package observe

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/tomwolfe/ConvoCue"

// Tracer returns the application tracer from the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// StartSpan starts a span named name. The caller ends it, usually through
// [EndSpan].
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, opts...)
}

// StartTask starts the span around one provider request issued by a
// session. The span carries session_id and task_id plus attrs.
func StartTask(ctx context.Context, name, sessionID string, taskID uint64, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	kv := make([]attribute.KeyValue, 0, len(attrs)+2)
	kv = append(kv,
		attribute.String("session_id", sessionID),
		attribute.Int64("task_id", int64(taskID)),
	)
	kv = append(kv, attrs...)
	return StartSpan(ctx, name, trace.WithAttributes(kv...))
}

// EndSpan marks span as failed when err is non-nil and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Logger returns the default logger with trace_id and span_id from the span
// in ctx. Without an active span it is [slog.Default].
func Logger(ctx context.Context) *slog.Logger {
	l := slog.Default()
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		l = l.With(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	return l
}
