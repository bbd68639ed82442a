package resilience

import (
	"errors"
	"fmt"
	"time"

	"github.com/jonwraymond/freshcache/clock"
)

// ErrInvalidPolicy indicates a FetchPolicy with out-of-range values.
var ErrInvalidPolicy = errors.New("resilience: invalid fetch policy")

// FetchPolicy declares how producer fetches are protected. Nil sections are
// left out of the resulting Executor.
type FetchPolicy struct {
	// Timeout bounds a single attempt. Zero disables it.
	Timeout time.Duration

	// Retry configures retries with backoff.
	Retry *RetryConfig

	// CircuitBreaker stops calling a producer that keeps failing.
	CircuitBreaker *CircuitBreakerConfig

	// RateLimit caps the fetch rate.
	RateLimit *RateLimiterConfig

	// MaxConcurrent bounds in-flight fetches. Zero means unbounded.
	MaxConcurrent int
}

// DefaultFetchPolicy returns a policy suited to remote classifier calls:
// 5s timeout, 3 attempts, and a breaker opening after 5 consecutive failures.
func DefaultFetchPolicy() FetchPolicy {
	return FetchPolicy{
		Timeout: 5 * time.Second,
		Retry: &RetryConfig{
			MaxAttempts:  3,
			InitialDelay: 50 * time.Millisecond,
			MaxDelay:     time.Second,
			Jitter:       true,
		},
		CircuitBreaker: &CircuitBreakerConfig{
			MaxFailures:  5,
			ResetTimeout: 30 * time.Second,
		},
	}
}

// Validate validates the policy.
func (p *FetchPolicy) Validate() error {
	if p.Timeout < 0 {
		return fmt.Errorf("%w: negative timeout %s", ErrInvalidPolicy, p.Timeout)
	}
	if p.MaxConcurrent < 0 {
		return fmt.Errorf("%w: negative max concurrent %d", ErrInvalidPolicy, p.MaxConcurrent)
	}
	if p.Retry != nil && p.Retry.MaxAttempts < 0 {
		return fmt.Errorf("%w: negative retry attempts %d", ErrInvalidPolicy, p.Retry.MaxAttempts)
	}
	if p.RateLimit != nil && p.RateLimit.Rate < 0 {
		return fmt.Errorf("%w: negative rate %f", ErrInvalidPolicy, p.RateLimit.Rate)
	}
	return nil
}

// NewFetchExecutor builds an Executor from p. clk drives the circuit breaker
// and rate limiter unless their configs set one.
func NewFetchExecutor(p FetchPolicy, clk clock.Clock) (*Executor, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	var opts []ExecutorOption
	if p.Timeout > 0 {
		opts = append(opts, WithTimeout(p.Timeout))
	}
	if p.Retry != nil {
		opts = append(opts, WithRetry(NewRetry(*p.Retry)))
	}
	if p.CircuitBreaker != nil {
		cfg := *p.CircuitBreaker
		if cfg.Clock == nil {
			cfg.Clock = clk
		}
		opts = append(opts, WithCircuitBreaker(NewCircuitBreaker(cfg)))
	}
	if p.RateLimit != nil {
		cfg := *p.RateLimit
		if cfg.Clock == nil {
			cfg.Clock = clk
		}
		opts = append(opts, WithRateLimiter(NewRateLimiter(cfg)))
	}
	if p.MaxConcurrent > 0 {
		opts = append(opts, WithBulkhead(NewBulkhead(BulkheadConfig{MaxConcurrent: p.MaxConcurrent})))
	}

	return NewExecutor(opts...), nil
}
