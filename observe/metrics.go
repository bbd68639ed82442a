package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// StoreMetrics records expiring store activity.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: must honor cancellation/deadlines and return quickly.
// - Errors: implementations must not panic.
type StoreMetrics interface {
	// RecordLookup records a Get that hit or missed.
	RecordLookup(ctx context.Context, meta CacheMeta, hit bool)

	// RecordEviction records an entry leaving the store for reason.
	RecordEviction(ctx context.Context, meta CacheMeta, reason string)

	// RecordCallbackFailure records an eviction callback that errored or panicked.
	RecordCallbackFailure(ctx context.Context, meta CacheMeta)

	// RecordSweep records how many entries one background sweep tick inspected.
	RecordSweep(ctx context.Context, meta CacheMeta, inspected int)
}

// CacheMetrics records negotiated cache activity.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: implementations must not panic.
type CacheMetrics interface {
	// RecordClassification records the classification of the selected candidate.
	RecordClassification(ctx context.Context, meta CacheMeta, class string)

	// RecordFetch records a producer fetch with its duration and outcome.
	RecordFetch(ctx context.Context, meta CacheMeta, duration time.Duration, outcome string)
}

// Fetch outcomes reported through CacheMetrics.RecordFetch.
const (
	OutcomeFetched     = "fetched"
	OutcomeNotModified = "not_modified"
	OutcomeError       = "error"
)

type storeMetricsImpl struct {
	lookups          metric.Int64Counter
	evictions        metric.Int64Counter
	callbackFailures metric.Int64Counter
	sweepInspected   metric.Int64Counter
}

// NewStoreMetrics creates StoreMetrics backed by the given meter.
func NewStoreMetrics(meter metric.Meter) (StoreMetrics, error) {
	lookups, err := meter.Int64Counter(
		"freshcache.store.lookups",
		metric.WithDescription("Store lookups by result"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return nil, err
	}

	evictions, err := meter.Int64Counter(
		"freshcache.store.evictions",
		metric.WithDescription("Entries removed from a store by reason"),
		metric.WithUnit("{entry}"),
	)
	if err != nil {
		return nil, err
	}

	callbackFailures, err := meter.Int64Counter(
		"freshcache.store.callback_failures",
		metric.WithDescription("Eviction callbacks that returned an error or panicked"),
		metric.WithUnit("{callback}"),
	)
	if err != nil {
		return nil, err
	}

	sweepInspected, err := meter.Int64Counter(
		"freshcache.store.sweep.inspected",
		metric.WithDescription("Entries inspected by the background sweep"),
		metric.WithUnit("{entry}"),
	)
	if err != nil {
		return nil, err
	}

	return &storeMetricsImpl{
		lookups:          lookups,
		evictions:        evictions,
		callbackFailures: callbackFailures,
		sweepInspected:   sweepInspected,
	}, nil
}

func (m *storeMetricsImpl) RecordLookup(ctx context.Context, meta CacheMeta, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	attrs := append(meta.attributes(), attribute.String("result", result))
	m.lookups.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *storeMetricsImpl) RecordEviction(ctx context.Context, meta CacheMeta, reason string) {
	attrs := append(meta.attributes(), attribute.String("reason", reason))
	m.evictions.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *storeMetricsImpl) RecordCallbackFailure(ctx context.Context, meta CacheMeta) {
	m.callbackFailures.Add(ctx, 1, metric.WithAttributes(meta.attributes()...))
}

func (m *storeMetricsImpl) RecordSweep(ctx context.Context, meta CacheMeta, inspected int) {
	if inspected == 0 {
		return
	}
	m.sweepInspected.Add(ctx, int64(inspected), metric.WithAttributes(meta.attributes()...))
}

type cacheMetricsImpl struct {
	classifications metric.Int64Counter
	fetches         metric.Int64Counter
	fetchDuration   metric.Float64Histogram
}

// NewCacheMetrics creates CacheMetrics backed by the given meter.
func NewCacheMetrics(meter metric.Meter) (CacheMetrics, error) {
	classifications, err := meter.Int64Counter(
		"freshcache.cache.classifications",
		metric.WithDescription("Selected candidate classifications"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return nil, err
	}

	fetches, err := meter.Int64Counter(
		"freshcache.cache.fetches",
		metric.WithDescription("Producer fetches by outcome"),
		metric.WithUnit("{fetch}"),
	)
	if err != nil {
		return nil, err
	}

	fetchDuration, err := meter.Float64Histogram(
		"freshcache.cache.fetch.duration_ms",
		metric.WithDescription("Producer fetch duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &cacheMetricsImpl{
		classifications: classifications,
		fetches:         fetches,
		fetchDuration:   fetchDuration,
	}, nil
}

func (m *cacheMetricsImpl) RecordClassification(ctx context.Context, meta CacheMeta, class string) {
	attrs := append(meta.attributes(), attribute.String("class", class))
	m.classifications.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *cacheMetricsImpl) RecordFetch(ctx context.Context, meta CacheMeta, duration time.Duration, outcome string) {
	attrs := append(meta.attributes(), attribute.String("outcome", outcome))
	opt := metric.WithAttributes(attrs...)
	m.fetches.Add(ctx, 1, opt)
	m.fetchDuration.Record(ctx, float64(duration.Milliseconds()), opt)
}

type nopStoreMetrics struct{}

// NopStoreMetrics returns StoreMetrics that record nothing.
func NopStoreMetrics() StoreMetrics { return nopStoreMetrics{} }

func (nopStoreMetrics) RecordLookup(context.Context, CacheMeta, bool)     {}
func (nopStoreMetrics) RecordEviction(context.Context, CacheMeta, string) {}
func (nopStoreMetrics) RecordCallbackFailure(context.Context, CacheMeta)  {}
func (nopStoreMetrics) RecordSweep(context.Context, CacheMeta, int)       {}

type nopCacheMetrics struct{}

// NopCacheMetrics returns CacheMetrics that record nothing.
func NopCacheMetrics() CacheMetrics { return nopCacheMetrics{} }

func (nopCacheMetrics) RecordClassification(context.Context, CacheMeta, string)       {}
func (nopCacheMetrics) RecordFetch(context.Context, CacheMeta, time.Duration, string) {}
