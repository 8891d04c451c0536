package interceptor

import (
	"context"
	"time"
)

// Logger is satisfied by *slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// MetricsCollector receives dispatch and registration measurements.
type MetricsCollector interface {
	RecordDuration(metric string, duration time.Duration, labels map[string]string)
	IncrementCounter(metric string, labels map[string]string)
}

// SpanContext represents an active tracing span.
type SpanContext interface {
	SetStatus(status string)
	AddAttribute(key, value string)
}

// TracingCollector creates spans around intercepted calls.
type TracingCollector interface {
	StartSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, SpanContext)
	FinishSpan(spanCtx SpanContext, status string, attrs map[string]string)
}

// Metric and span names.
const (
	MetricDispatchTotal        = "aspects_dispatch_total"
	MetricDispatchDuration     = "aspects_dispatch_duration_seconds"
	MetricHandlerInvocations   = "aspects_handler_invocations_total"
	MetricHandlerSkipped       = "aspects_handler_skipped_total"
	MetricUnrecognizedSelector = "aspects_unrecognized_selector_total"
	MetricHooksRegistered      = "aspects_hooks_registered_total"
	MetricHooksRemoved         = "aspects_hooks_removed_total"
	MetricRegistrationFailures = "aspects_registration_failures_total"

	SpanDispatch = "aspects.dispatch"
)

// Span status values.
const (
	StatusOK    = "ok"
	StatusError = "error"
)
