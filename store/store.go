package store

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonwraymond/freshcache/clock"
	"github.com/jonwraymond/freshcache/observe"
)

// EvictionReason describes why an entry left the store.
type EvictionReason int

const (
	// ReasonDeleted is an explicit Delete.
	ReasonDeleted EvictionReason = iota
	// ReasonExpired is a lazy expiry observed by Get.
	ReasonExpired
	// ReasonCapacity is an LRU eviction to make room for a new key.
	ReasonCapacity
	// ReasonSwept is an expiry found by the background sweep.
	ReasonSwept
)

func (r EvictionReason) String() string {
	switch r {
	case ReasonDeleted:
		return "deleted"
	case ReasonExpired:
		return "expired"
	case ReasonCapacity:
		return "capacity"
	case ReasonSwept:
		return "swept"
	default:
		return "unknown"
	}
}

// Stats is a point-in-time snapshot of store counters.
type Stats struct {
	Hits             uint64
	Misses           uint64
	Deleted          uint64
	Expired          uint64
	Capacity         uint64
	Swept            uint64
	CallbackFailures uint64
	Sweeps           uint64
}

// Evictions returns the total number of entries that left the store.
func (s Stats) Evictions() uint64 {
	return s.Deleted + s.Expired + s.Capacity + s.Swept
}

type counters struct {
	hits             atomic.Uint64
	misses           atomic.Uint64
	byReason         [4]atomic.Uint64
	callbackFailures atomic.Uint64
	sweeps           atomic.Uint64
}

// Store is an in-memory key/value store with per-entry TTL and an optional
// LRU capacity bound.
//
// Contract:
// - Concurrency: all methods are safe for concurrent use.
// - Context: ctx is handed (without cancellation) to eviction callbacks.
// - Errors: eviction callback failures are logged and counted, never returned.
type Store[K comparable, V any] struct {
	mu      sync.Mutex
	backend backend[K, V]
	cursor  int
	closed  bool

	name       string
	limit      int
	batch      int
	onEviction EvictionFunc[K, V]
	clock      clock.Clock
	logger     observe.Logger
	metrics    observe.StoreMetrics
	meta       observe.CacheMeta

	ticker   clock.Ticker
	done     chan struct{}
	loopDone chan struct{}
	notifyWG sync.WaitGroup

	stats counters
}

type removal[K comparable, V any] struct {
	key    K
	value  V
	reason EvictionReason
}

// New creates a Store and starts its background sweep.
func New[K comparable, V any](cfg Config[K, V]) (*Store[K, V], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	var b backend[K, V]
	if cfg.NumItemsLimit > 0 {
		bounded, err := newCapacityBounded[K, V](cfg.NumItemsLimit)
		if err != nil {
			return nil, fmt.Errorf("store: create lru backend: %w", err)
		}
		b = bounded
	} else {
		b = newUnbounded[K, V]()
	}

	meta := observe.CacheMeta{Name: cfg.Name, Kind: "store"}
	s := &Store[K, V]{
		backend:    b,
		name:       cfg.Name,
		limit:      cfg.NumItemsLimit,
		batch:      cfg.SweepBatchSize,
		onEviction: cfg.OnEviction,
		clock:      cfg.Clock,
		logger:     cfg.Logger.WithCache(meta),
		metrics:    cfg.Metrics,
		meta:       meta,
		ticker:     cfg.Clock.NewTicker(cfg.SweepInterval),
		done:       make(chan struct{}),
		loopDone:   make(chan struct{}),
	}

	go s.sweepLoop()

	return s, nil
}

// Name returns the configured store name.
func (s *Store[K, V]) Name() string {
	return s.name
}

// Get returns the value stored under key if it has not expired, marking it
// most recently used. An expired entry is removed and reported as absent.
func (s *Store[K, V]) Get(ctx context.Context, key K) (V, bool) {
	var zero V

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return zero, false
	}
	e, ok := s.backend.get(key)
	if ok && e.expired(s.clock.Now()) {
		s.backend.remove(key)
		s.mu.Unlock()

		s.recordLookup(ctx, false)
		s.notify(ctx, removal[K, V]{key: key, value: e.value, reason: ReasonExpired})
		return zero, false
	}
	s.mu.Unlock()

	s.recordLookup(ctx, ok)
	if !ok {
		return zero, false
	}
	return e.value, true
}

// Set stores value under key until now+ttl. When the store is at capacity
// and key is new, the least recently used entry is evicted first.
func (s *Store[K, V]) Set(ctx context.Context, key K, value V, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("%w: got %s", ErrInvalidTTL, ttl)
	}

	var evicted *removal[K, V]

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.limit > 0 && s.backend.len() >= s.limit {
		if _, exists := s.backend.peek(key); !exists {
			if k, e, ok := s.backend.evictOldest(); ok {
				evicted = &removal[K, V]{key: k, value: e.value, reason: ReasonCapacity}
			}
		}
	}
	s.backend.put(key, entry[V]{value: value, expiresAt: s.clock.Now().Add(ttl)})
	s.mu.Unlock()

	if evicted != nil {
		s.notify(ctx, *evicted)
	}
	return nil
}

// Has reports whether key holds an unexpired entry. It neither promotes
// recency nor removes expired entries.
func (s *Store[K, V]) Has(key K) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	e, ok := s.backend.peek(key)
	return ok && !e.expired(s.clock.Now())
}

// Delete removes key and reports whether it was present.
func (s *Store[K, V]) Delete(ctx context.Context, key K) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}

	if s.onEviction == nil {
		removed := s.backend.remove(key)
		s.mu.Unlock()
		if removed {
			s.notify(ctx, removal[K, V]{key: key, reason: ReasonDeleted})
		}
		return removed
	}

	e, ok := s.backend.peek(key)
	if ok {
		s.backend.remove(key)
	}
	s.mu.Unlock()

	if ok {
		s.notify(ctx, removal[K, V]{key: key, value: e.value, reason: ReasonDeleted})
	}
	return ok
}

// Len returns the number of stored entries, including expired entries not
// yet reclaimed.
func (s *Store[K, V]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backend.len()
}

// Stats returns a snapshot of the store counters.
func (s *Store[K, V]) Stats() Stats {
	return Stats{
		Hits:             s.stats.hits.Load(),
		Misses:           s.stats.misses.Load(),
		Deleted:          s.stats.byReason[ReasonDeleted].Load(),
		Expired:          s.stats.byReason[ReasonExpired].Load(),
		Capacity:         s.stats.byReason[ReasonCapacity].Load(),
		Swept:            s.stats.byReason[ReasonSwept].Load(),
		CallbackFailures: s.stats.callbackFailures.Load(),
		Sweeps:           s.stats.sweeps.Load(),
	}
}

// Close stops the background sweep. It is idempotent. Callbacks already
// dispatched keep running; use Wait to block on them.
func (s *Store[K, V]) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	close(s.done)
	s.ticker.Stop()
	<-s.loopDone
	return nil
}

// Wait blocks until every dispatched eviction callback has returned.
func (s *Store[K, V]) Wait() {
	s.notifyWG.Wait()
}

func (s *Store[K, V]) recordLookup(ctx context.Context, hit bool) {
	if hit {
		s.stats.hits.Add(1)
	} else {
		s.stats.misses.Add(1)
	}
	s.metrics.RecordLookup(ctx, s.meta, hit)
}
