// Package resilience protects producer fetches: the calls a cache makes to
// recompute a value when nothing stored is usable.
//
// # Patterns
//
//   - Circuit Breaker: stops calling a producer after repeated failures, so
//     callers fall back to stale-if-error values quickly.
//
//   - Retry: retries failed fetches with exponential, linear or constant
//     backoff.
//
//   - Rate Limiter: caps fetch rate, for example to a classifier quota.
//
//   - Bulkhead: bounds concurrent fetches and background revalidations.
//
//   - Timeout: bounds a single fetch attempt.
//
// # Usage
//
// FetchPolicy is the declarative form used by cache.Config:
//
//	exec, err := resilience.NewFetchExecutor(resilience.FetchPolicy{
//	    Timeout: 2 * time.Second,
//	    Retry:   &resilience.RetryConfig{MaxAttempts: 3},
//	    CircuitBreaker: &resilience.CircuitBreakerConfig{
//	        MaxFailures:  5,
//	        ResetTimeout: time.Minute,
//	    },
//	}, clock.System())
//
//	err = exec.Execute(ctx, func(ctx context.Context) error {
//	    return scoreContent(ctx)
//	})
package resilience
