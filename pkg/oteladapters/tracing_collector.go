package oteladapters

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/codysoyland/aspecthooks/pkg/interceptor"
)

// TracingCollector implements interceptor.TracingCollector with an OpenTelemetry tracer.
type TracingCollector struct {
	tracer trace.Tracer
}

// NewTracingCollector creates a collector starting spans on tracer. A nil
// tracer uses the global TracerProvider.
func NewTracingCollector(tracer trace.Tracer) *TracingCollector {
	if tracer == nil {
		tracer = otel.Tracer(InstrumentationName)
	}
	return &TracingCollector{tracer: tracer}
}

// StartSpan starts a span named name as a child of ctx.
func (t *TracingCollector) StartSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, interceptor.SpanContext) {
	spanCtx, span := t.tracer.Start(ctx, name, trace.WithAttributes(attributes(attrs)...))
	return spanCtx, &OTelSpanContext{span: span}
}

// FinishSpan sets the final attributes and status, then ends the span.
// Spans not created by this collector are ignored.
func (t *TracingCollector) FinishSpan(spanCtx interceptor.SpanContext, status string, attrs map[string]string) {
	otelSpanCtx, ok := spanCtx.(*OTelSpanContext)
	if !ok {
		return
	}
	otelSpanCtx.span.SetAttributes(attributes(attrs)...)
	otelSpanCtx.SetStatus(status)
	otelSpanCtx.span.End()
}

var _ interceptor.TracingCollector = (*TracingCollector)(nil)

// OTelSpanContext implements interceptor.SpanContext by wrapping an OpenTelemetry span.
type OTelSpanContext struct {
	span trace.Span
}

// Span returns the wrapped span.
func (s *OTelSpanContext) Span() trace.Span { return s.span }

// SetStatus maps interceptor.StatusOK and interceptor.StatusError to span
// status codes. Other values are kept as a status attribute.
func (s *OTelSpanContext) SetStatus(status string) {
	switch status {
	case interceptor.StatusOK:
		s.span.SetStatus(codes.Ok, "")
	case interceptor.StatusError:
		s.span.SetStatus(codes.Error, "intercepted call failed")
	default:
		s.span.SetAttributes(attribute.String("status", status))
	}
}

// AddAttribute adds a string attribute to the span.
func (s *OTelSpanContext) AddAttribute(key, value string) {
	s.span.SetAttributes(attribute.String(key, value))
}

var _ interceptor.SpanContext = (*OTelSpanContext)(nil)
