package cache

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/jonwraymond/freshcache/clock"
	"github.com/jonwraymond/freshcache/freshness"
	"github.com/jonwraymond/freshcache/observe"
	"github.com/jonwraymond/freshcache/resilience"
	"github.com/jonwraymond/freshcache/store"
)

// MaxKeyLength is the maximum allowed length for a cache key.
const MaxKeyLength = 512

// DefaultMaxRevalidations bounds concurrent background revalidations when
// Config.MaxRevalidations is zero.
const DefaultMaxRevalidations = 16

// Sentinel errors for cache operations.
var (
	ErrNilFetcher            = errors.New("cache: fetcher is nil")
	ErrInvalidKey            = errors.New("cache: key is invalid")
	ErrKeyTooLong            = errors.New("cache: key exceeds max length")
	ErrInvalidPolicy         = errors.New("cache: policy durations and limits must not be negative")
	ErrInvalidConfig         = errors.New("cache: invalid config")
	ErrClosed                = errors.New("cache: cache is closed")
	ErrUnexpectedNotModified = errors.New("cache: not modified answer without a previous candidate")
	ErrInvalidFetch          = errors.New("cache: fetched resource is invalid")
)

// ValidateKey checks if a key is valid for caching.
func ValidateKey(key string) error {
	if key == "" || strings.TrimSpace(key) == "" {
		return ErrInvalidKey
	}
	if len(key) > MaxKeyLength {
		return ErrKeyTooLong
	}
	if strings.ContainsAny(key, "\n\r") {
		return ErrInvalidKey
	}
	return nil
}

// Config configures a Cache.
type Config struct {
	// Name identifies the cache in logs, metrics and spans. Default: "cache".
	Name string

	// Policy defaults to DefaultPolicy().
	Policy *Policy

	// Keyer defaults to NewDefaultKeyer().
	Keyer Keyer

	// NumItemsLimit bounds the number of primary keys held. Zero means unbounded.
	NumItemsLimit int

	// SweepInterval and SweepBatchSize tune the store's background expiry.
	SweepInterval  time.Duration
	SweepBatchSize int

	// Fetch protects producer calls. The zero value applies no protection.
	Fetch resilience.FetchPolicy

	// MaxRevalidations bounds concurrent background revalidations.
	// Default: DefaultMaxRevalidations
	MaxRevalidations int

	// Clock defaults to clock.System().
	Clock clock.Clock

	// Instruments supplies logging, metrics and tracing. Nil members are no-ops.
	Instruments observe.Instruments
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Policy != nil {
		if err := c.Policy.Validate(); err != nil {
			return err
		}
	}
	if c.MaxRevalidations < 0 {
		return fmt.Errorf("%w: negative max revalidations %d", ErrInvalidConfig, c.MaxRevalidations)
	}
	return c.Fetch.Validate()
}

// Cache serves values under negotiated freshness, fetching from a producer
// when no stored candidate is usable.
//
// Contract:
// - Concurrency: all methods are safe for concurrent use.
// - Context: Get honors cancellation while waiting on a fetch. Background
// revalidations run detached from the caller's context.
// - Errors: Get returns fetch errors only when nothing stored may be served.
type Cache[V any] struct {
	name    string
	policy  Policy
	keyer   Keyer
	clock   clock.Clock
	entries *store.Store[string, *entrySet[V]]

	exec          *resilience.Executor
	revalidations *resilience.Bulkhead
	flights       singleflight.Group
	pending       sync.Map

	middleware *observe.Middleware
	logger     observe.Logger
	metrics    observe.CacheMetrics

	writeMu sync.Mutex

	bgMu   sync.RWMutex
	bg     sync.WaitGroup
	closed bool
}

// New creates a Cache.
func New[V any](cfg Config) (*Cache[V], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Name == "" {
		cfg.Name = "cache"
	}
	policy := DefaultPolicy()
	if cfg.Policy != nil {
		policy = *cfg.Policy
	}
	if cfg.Keyer == nil {
		cfg.Keyer = NewDefaultKeyer()
	}
	if cfg.MaxRevalidations == 0 {
		cfg.MaxRevalidations = DefaultMaxRevalidations
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.System()
	}
	ins := cfg.Instruments
	if ins.Logger == nil {
		ins.Logger = observe.NopLogger()
	}
	if ins.CacheMetrics == nil {
		ins.CacheMetrics = observe.NopCacheMetrics()
	}

	exec, err := resilience.NewFetchExecutor(cfg.Fetch, cfg.Clock)
	if err != nil {
		return nil, err
	}

	entries, err := store.New(store.Config[string, *entrySet[V]]{
		Name:           cfg.Name,
		NumItemsLimit:  cfg.NumItemsLimit,
		SweepInterval:  cfg.SweepInterval,
		SweepBatchSize: cfg.SweepBatchSize,
		Clock:          cfg.Clock,
		Logger:         ins.Logger,
		Metrics:        ins.StoreMetrics,
	})
	if err != nil {
		return nil, err
	}

	return &Cache[V]{
		name:          cfg.Name,
		policy:        policy,
		keyer:         cfg.Keyer,
		clock:         cfg.Clock,
		entries:       entries,
		exec:          exec,
		revalidations: resilience.NewBulkhead(resilience.BulkheadConfig{MaxConcurrent: cfg.MaxRevalidations}),
		middleware:    observe.NewMiddleware(ins.Tracer, ins.CacheMetrics, ins.Logger),
		logger:        ins.Logger,
		metrics:       ins.CacheMetrics,
	}, nil
}

// Name returns the configured cache name.
func (c *Cache[V]) Name() string {
	return c.name
}

// Stats returns the counters of the underlying store.
func (c *Cache[V]) Stats() store.Stats {
	return c.entries.Stats()
}

// CircuitState reports the state of the circuit breaker guarding fetches.
func (c *Cache[V]) CircuitState() resilience.State {
	return c.exec.CircuitState()
}

// Len returns the number of primary keys held.
func (c *Cache[V]) Len() int {
	return c.entries.Len()
}

// Get returns a value for req. A Usable candidate is served directly. A
// candidate usable while revalidating is served and refreshed in the
// background. A candidate usable only on error is served when a synchronous
// fetch fails. Otherwise the value is fetched and stored.
func (c *Cache[V]) Get(ctx context.Context, req Request, fetcher Fetcher[V]) (Result[V], error) {
	if c.isClosed() {
		return Result[V]{}, ErrClosed
	}
	if isNilFetcher(fetcher) {
		return Result[V]{}, ErrNilFetcher
	}
	if err := req.Directives.Validate(); err != nil {
		return Result[V]{}, err
	}
	key, err := c.key(req)
	if err != nil {
		return Result[V]{}, err
	}

	now := c.clock.Now()
	cand, class := c.lookup(ctx, key, req, now)
	meta := c.meta(req)
	if cand == nil {
		c.metrics.RecordClassification(ctx, meta, "miss")
	} else {
		c.metrics.RecordClassification(ctx, meta, class.String())
	}

	switch {
	case cand != nil && class == freshness.Usable:
		return c.served(cand, class, now), nil

	case cand != nil && class == freshness.UsableWhileRevalidate:
		res := c.served(cand, class, now)
		res.Revalidating = c.revalidate(ctx, key, req, cand, fetcher)
		return res, nil

	case cand != nil && class == freshness.UsableIfError:
		fetched, err := c.fetch(ctx, key, req, cand, fetcher)
		if err == nil {
			return c.fresh(fetched, req), nil
		}
		c.logger.WithCache(meta).Warn(ctx, "serving stale value after fetch failure",
			observe.F("key", key),
			observe.F("age_ms", cand.Age(now).Milliseconds()),
			observe.F("error", err),
		)
		res := c.served(cand, class, now)
		res.StaleOnError = true
		res.FetchErr = err
		return res, nil

	default:
		fetched, err := c.fetch(ctx, key, req, cand, fetcher)
		if err != nil {
			return Result[V]{}, err
		}
		return c.fresh(fetched, req), nil
	}
}

// Put stores a producer answer for req as if it had been fetched. A
// NotModified answer refreshes the best stored candidate.
func (c *Cache[V]) Put(ctx context.Context, req Request, f Fetched[V]) (*freshness.Resource[V], error) {
	if c.isClosed() {
		return nil, ErrClosed
	}
	key, err := c.key(req)
	if err != nil {
		return nil, err
	}

	prev, _ := c.lookup(ctx, key, req, c.clock.Now())
	res, err := c.resourceFrom(f, prev)
	if err != nil {
		return nil, err
	}
	c.write(ctx, key, req, res)
	return res, nil
}

// Invalidate removes every candidate stored for req's namespace and input.
func (c *Cache[V]) Invalidate(ctx context.Context, req Request) bool {
	key, err := c.key(req)
	if err != nil {
		return false
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.entries.Delete(ctx, key)
}

// Close stops accepting lookups, waits for in-flight revalidations until ctx
// ends, and closes the store. It is idempotent.
func (c *Cache[V]) Close(ctx context.Context) error {
	c.bgMu.Lock()
	already := c.closed
	c.closed = true
	c.bgMu.Unlock()
	if already {
		return nil
	}

	done := make(chan struct{})
	go func() {
		c.bg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}

	return errors.Join(err, c.entries.Close())
}

func (c *Cache[V]) isClosed() bool {
	c.bgMu.RLock()
	defer c.bgMu.RUnlock()
	return c.closed
}

func (c *Cache[V]) key(req Request) (string, error) {
	key, err := c.keyer.Key(req.Namespace, req.Input)
	if err != nil {
		return "", err
	}
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	return key, nil
}

func (c *Cache[V]) meta(req Request) observe.CacheMeta {
	return observe.CacheMeta{Namespace: req.Namespace, Name: c.name, Kind: "cache"}
}

func (c *Cache[V]) lookup(ctx context.Context, key string, req Request, now time.Time) (*freshness.Resource[V], freshness.Classification) {
	set, ok := c.entries.Get(ctx, key)
	if !ok {
		return nil, freshness.Unusable
	}
	return set.best(req.Vary, req.Directives, now)
}

func (c *Cache[V]) served(r *freshness.Resource[V], class freshness.Classification, now time.Time) Result[V] {
	return Result[V]{
		Value:    r.Value(),
		Resource: r,
		Source:   SourceCache,
		Class:    class,
		Age:      r.Age(now),
	}
}

func (c *Cache[V]) fresh(r *freshness.Resource[V], req Request) Result[V] {
	now := c.clock.Now()
	return Result[V]{
		Value:    r.Value(),
		Resource: r,
		Source:   SourceFetch,
		Class:    freshness.Classify(r, req.Directives, now),
		Age:      r.Age(now),
	}
}

// write stores res as the candidate for req's vary values.
func (c *Cache[V]) write(ctx context.Context, key string, req Request, res *freshness.Resource[V]) {
	now := c.clock.Now()
	ttl := c.policy.StoreTTL(res.PotentiallyUsefulFor(now))
	if ttl <= 0 {
		return
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	old, _ := c.entries.Get(ctx, key)
	set := old.with(variant[V]{
		vary:      cloneVary(req.Vary),
		resource:  res,
		expiresAt: now.Add(ttl),
	}, now, c.policy.maxVariants())

	if err := c.entries.Set(ctx, key, set, set.latestExpiry().Sub(now)); err != nil {
		c.logger.WithCache(c.meta(req)).Warn(ctx, "failed to store fetched value",
			observe.F("key", key),
			observe.F("error", err),
		)
	}
}

func cloneVary(vary map[string]string) map[string]string {
	if len(vary) == 0 {
		return nil
	}
	return maps.Clone(vary)
}

func isNilFetcher[V any](f Fetcher[V]) bool {
	if f == nil {
		return true
	}
	if fn, ok := f.(FetchFunc[V]); ok && fn == nil {
		return true
	}
	return false
}
