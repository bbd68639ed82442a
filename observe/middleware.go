package observe

import (
	"context"
	"time"
)

// FetchFunc performs one producer fetch and reports its outcome
// (OutcomeFetched or OutcomeNotModified). The outcome is ignored on error.
type FetchFunc func(ctx context.Context) (outcome string, err error)

// Middleware wraps producer fetches with observability (tracing, metrics, logging).
//
// Contract:
//   - Concurrency: Fetch is safe for concurrent use.
//   - Context: Propagates context through tracing spans.
//   - Errors: Errors from the wrapped function are recorded and returned unchanged.
type Middleware struct {
	tracer  Tracer
	metrics CacheMetrics
	logger  Logger
}

// NewMiddleware creates a new Middleware with the given observability components.
// Nil components are replaced with no-op implementations.
func NewMiddleware(tracer Tracer, metrics CacheMetrics, logger Logger) *Middleware {
	if tracer == nil {
		tracer = NopTracer()
	}
	if metrics == nil {
		metrics = NopCacheMetrics()
	}
	if logger == nil {
		logger = NopLogger()
	}
	return &Middleware{
		tracer:  tracer,
		metrics: metrics,
		logger:  logger,
	}
}

// Fetch runs fn inside a span, records its duration and outcome, and logs
// the result against meta.
func (m *Middleware) Fetch(ctx context.Context, meta CacheMeta, key string, fn FetchFunc) error {
	ctx, span := m.tracer.StartSpan(ctx, meta, key)

	start := time.Now()
	outcome, err := fn(ctx)
	duration := time.Since(start)

	m.tracer.EndSpan(span, err)

	if err != nil {
		outcome = OutcomeError
	}
	m.metrics.RecordFetch(ctx, meta, duration, outcome)

	logger := m.logger.WithCache(meta)
	fields := []Field{
		F("key", key),
		F("outcome", outcome),
		F("duration_ms", float64(duration.Milliseconds())),
	}

	if err != nil {
		fields = append(fields, F("error", err.Error()))
		logger.Warn(ctx, "producer fetch failed", fields...)
	} else {
		logger.Debug(ctx, "producer fetch completed", fields...)
	}

	return err
}

// MiddlewareFromObserver creates a Middleware from an Observer.
func MiddlewareFromObserver(obs Observer) (*Middleware, error) {
	ins, err := InstrumentsFromObserver(obs)
	if err != nil {
		return nil, err
	}
	return NewMiddleware(ins.Tracer, ins.CacheMetrics, ins.Logger), nil
}
