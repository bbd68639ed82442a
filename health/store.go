package health

import (
	"context"
	"fmt"
	"sync"

	"github.com/jonwraymond/freshcache/resilience"
	"github.com/jonwraymond/freshcache/store"
)

// StatsSource is implemented by store.Store and cache.Cache.
type StatsSource interface {
	Name() string
	Len() int
	Stats() store.Stats
}

// StoreCheckerConfig configures a StoreChecker.
type StoreCheckerConfig struct {
	// MinHitRatio degrades the check when the hit ratio since the previous
	// check falls below it. Zero disables the ratio check.
	MinHitRatio float64

	// MinLookups is the number of lookups since the previous check required
	// before the hit ratio is judged.
	// Default: 100
	MinLookups uint64
}

// StoreChecker reports on a store's counters. Each check compares against
// the counters seen by the previous check, so a burst of failures clears once
// it stops.
type StoreChecker struct {
	source StatsSource
	config StoreCheckerConfig

	mu   sync.Mutex
	last store.Stats
}

// NewStoreChecker creates a StoreChecker for source.
func NewStoreChecker(source StatsSource, config StoreCheckerConfig) *StoreChecker {
	if config.MinHitRatio < 0 || config.MinHitRatio > 1 {
		config.MinHitRatio = 0
	}
	if config.MinLookups == 0 {
		config.MinLookups = 100
	}
	return &StoreChecker{source: source, config: config}
}

// Name returns the name of the watched store.
func (c *StoreChecker) Name() string {
	return c.source.Name()
}

// Check reports Degraded when eviction callbacks failed or the hit ratio
// dropped below the configured minimum since the previous check.
func (c *StoreChecker) Check(_ context.Context) Result {
	stats := c.source.Stats()

	c.mu.Lock()
	prev := c.last
	c.last = stats
	c.mu.Unlock()

	hits := stats.Hits - prev.Hits
	misses := stats.Misses - prev.Misses
	failures := stats.CallbackFailures - prev.CallbackFailures

	details := map[string]any{
		"len":               c.source.Len(),
		"hits":              stats.Hits,
		"misses":            stats.Misses,
		"evictions":         stats.Evictions(),
		"capacity_evicted":  stats.Capacity,
		"callback_failures": stats.CallbackFailures,
	}

	if failures > 0 {
		return Degraded(fmt.Sprintf("%d eviction callbacks failed", failures)).
			WithDetails(details).
			WithError(ErrCallbackFailures)
	}

	if lookups := hits + misses; c.config.MinHitRatio > 0 && lookups >= c.config.MinLookups {
		ratio := float64(hits) / float64(lookups)
		details["hit_ratio"] = ratio
		if ratio < c.config.MinHitRatio {
			return Degraded(fmt.Sprintf("hit ratio %.2f below %.2f", ratio, c.config.MinHitRatio)).
				WithDetails(details)
		}
	}

	return Healthy("store serving").WithDetails(details)
}

// CircuitSource exposes the state of the circuit breaker guarding a producer.
type CircuitSource interface {
	CircuitState() resilience.State
}

// CircuitChecker reports on a producer's circuit breaker. An open circuit is
// Degraded: stored values may still be served on error.
type CircuitChecker struct {
	name   string
	source CircuitSource
}

// NewCircuitChecker creates a CircuitChecker.
func NewCircuitChecker(name string, source CircuitSource) *CircuitChecker {
	return &CircuitChecker{name: name, source: source}
}

// Name returns the checker name.
func (c *CircuitChecker) Name() string {
	return c.name
}

// Check maps the circuit state to a status.
func (c *CircuitChecker) Check(_ context.Context) Result {
	state := c.source.CircuitState()
	details := map[string]any{"circuit": state.String()}

	switch state {
	case resilience.StateClosed:
		return Healthy("producer reachable").WithDetails(details)
	case resilience.StateHalfOpen:
		return Degraded("producer recovering").WithDetails(details)
	default:
		return Degraded("producer circuit open").
			WithDetails(details).
			WithError(resilience.ErrCircuitOpen)
	}
}

var (
	_ Checker = (*StoreChecker)(nil)
	_ Checker = (*CircuitChecker)(nil)
)
