package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// CacheMeta identifies a store or cache instance for telemetry purposes.
type CacheMeta struct {
	Namespace string // Tenant or producer namespace (may be empty)
	Name      string // Instance name (required)
	Kind      string // "store" or "cache" (optional)
}

// ID returns the fully qualified instance identifier.
func (m CacheMeta) ID() string {
	if m.Namespace != "" {
		return m.Namespace + "." + m.Name
	}
	return m.Name
}

// SpanName returns the span name used for producer fetches.
// Format: freshcache.fetch.<namespace>.<name> or freshcache.fetch.<name>
func (m CacheMeta) SpanName() string {
	return "freshcache.fetch." + m.ID()
}

func (m CacheMeta) attributes() []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("cache.id", m.ID()),
		attribute.String("cache.name", m.Name),
	}
	if m.Namespace != "" {
		attrs = append(attrs, attribute.String("cache.namespace", m.Namespace))
	}
	if m.Kind != "" {
		attrs = append(attrs, attribute.String("cache.kind", m.Kind))
	}
	return attrs
}

// Tracer wraps OpenTelemetry tracing for producer fetches.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: EndSpan must be best-effort and must not panic.
type Tracer interface {
	// StartSpan starts a span for fetching key.
	StartSpan(ctx context.Context, meta CacheMeta, key string) (context.Context, trace.Span)

	// EndSpan ends the span, recording any error.
	EndSpan(span trace.Span, err error)
}

type tracerImpl struct {
	tracer trace.Tracer
}

// NewTracer creates a Tracer wrapping the given OpenTelemetry tracer.
func NewTracer(t trace.Tracer) Tracer {
	return &tracerImpl{tracer: t}
}

func (t *tracerImpl) StartSpan(ctx context.Context, meta CacheMeta, key string) (context.Context, trace.Span) {
	attrs := append(meta.attributes(),
		attribute.String("cache.key", key),
		attribute.Bool("cache.fetch.error", false),
	)

	return t.tracer.Start(ctx, meta.SpanName(),
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

func (t *tracerImpl) EndSpan(span trace.Span, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.Bool("cache.fetch.error", true))
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// NopTracer returns a Tracer whose spans record nothing.
func NopTracer() Tracer {
	return NewTracer(tracenoop.NewTracerProvider().Tracer("noop"))
}
