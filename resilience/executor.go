package resilience

import (
	"context"
	"time"
)

// Executor composes resilience patterns around a producer fetch.
type Executor struct {
	circuitBreaker *CircuitBreaker
	retry          *Retry
	rateLimiter    *RateLimiter
	bulkhead       *Bulkhead
	timeout        *Timeout
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// NewExecutor creates a new resilience executor.
func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// WithCircuitBreaker adds a circuit breaker to the executor.
func WithCircuitBreaker(cb *CircuitBreaker) ExecutorOption {
	return func(e *Executor) {
		e.circuitBreaker = cb
	}
}

// WithRetry adds retry logic to the executor.
func WithRetry(r *Retry) ExecutorOption {
	return func(e *Executor) {
		e.retry = r
	}
}

// WithRateLimiter adds rate limiting to the executor.
func WithRateLimiter(rl *RateLimiter) ExecutorOption {
	return func(e *Executor) {
		e.rateLimiter = rl
	}
}

// WithBulkhead adds bulkhead isolation to the executor.
func WithBulkhead(b *Bulkhead) ExecutorOption {
	return func(e *Executor) {
		e.bulkhead = b
	}
}

// WithTimeout adds timeout to the executor.
func WithTimeout(timeout time.Duration) ExecutorOption {
	return func(e *Executor) {
		e.timeout = NewTimeout(TimeoutConfig{Timeout: timeout})
	}
}

// WithTimeoutConfig adds timeout with custom config to the executor.
func WithTimeoutConfig(t *Timeout) ExecutorOption {
	return func(e *Executor) {
		e.timeout = t
	}
}

// Execute runs op through the configured patterns, outermost first: rate
// limiter, bulkhead, circuit breaker, retry, then a per-attempt timeout. A
// rate-limited or bulkhead-rejected fetch never reaches the breaker, and a
// retried fetch counts as one breaker outcome.
func (e *Executor) Execute(ctx context.Context, op func(context.Context) error) error {
	run := op
	for _, l := range e.layers() {
		run = wrap(l, run)
	}
	return run(ctx)
}

// layer is one resilience pattern around an operation.
type layer interface {
	Execute(ctx context.Context, op func(context.Context) error) error
}

// layers lists the configured patterns innermost first.
func (e *Executor) layers() []layer {
	all := make([]layer, 0, 5)
	if e.timeout != nil {
		all = append(all, e.timeout)
	}
	if e.retry != nil {
		all = append(all, e.retry)
	}
	if e.circuitBreaker != nil {
		all = append(all, e.circuitBreaker)
	}
	if e.bulkhead != nil {
		all = append(all, e.bulkhead)
	}
	if e.rateLimiter != nil {
		all = append(all, e.rateLimiter)
	}
	return all
}

func wrap(l layer, inner func(context.Context) error) func(context.Context) error {
	return func(ctx context.Context) error {
		return l.Execute(ctx, inner)
	}
}

// CircuitState reports the circuit breaker state, or StateClosed when the
// executor has no breaker.
func (e *Executor) CircuitState() State {
	if e.circuitBreaker == nil {
		return StateClosed
	}
	return e.circuitBreaker.State()
}
