// Package telemetry integrates orchestrator events with Clue logging and
// OpenTelemetry metrics/tracing. The interfaces are intentionally small so
// unit tests can supply lightweight stand-ins instead of wiring a real
// exporter.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Logger captures structured logging used throughout the orchestrator.
// Implementations typically delegate to Clue but callers only depend on
// this interface.
type Logger interface {
	Debug(ctx context.Context, msg string, keyvals ...any)
	Info(ctx context.Context, msg string, keyvals ...any)
	Warn(ctx context.Context, msg string, keyvals ...any)
	Error(ctx context.Context, msg string, keyvals ...any)
}

// Metrics exposes counter, timer and gauge helpers for runtime instrumentation.
type Metrics interface {
	IncCounter(name string, value float64, tags ...string)
	RecordTimer(name string, duration time.Duration, tags ...string)
	RecordGauge(name string, value float64, tags ...string)
}

// Tracer abstracts span creation so orchestrator code stays agnostic of the
// underlying OpenTelemetry provider.
type Tracer interface {
	Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, Span)
	Span(ctx context.Context) Span
}

// Span represents an in-flight tracing span.
type Span interface {
	End(opts ...trace.SpanEndOption)
	AddEvent(name string, attrs ...any)
	SetStatus(code codes.Code, description string)
	RecordError(err error, opts ...trace.EventOption)
}

// Telemetry bundles the three signals components need; most constructors
// take a *Telemetry instead of three separate arguments.
type Telemetry struct {
	Logger  Logger
	Metrics Metrics
	Tracer  Tracer
}

// Noop returns a Telemetry whose components discard everything, for tests
// and for code paths that run before production wiring is available.
func Noop() *Telemetry {
	return &Telemetry{
		Logger:  NoopLogger{},
		Metrics: NoopMetrics{},
		Tracer:  NoopTracer{},
	}
}
