package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/jonwraymond/freshcache/clock"
)

// RateLimiterConfig configures the rate limiter.
type RateLimiterConfig struct {
	// Rate is the number of fetches allowed per second.
	// Default: 100
	Rate float64

	// Burst is the bucket size.
	// Default: 10
	Burst int

	// WaitOnLimit makes Execute wait for a token instead of failing.
	WaitOnLimit bool

	// MaxWait bounds how long Wait may block. A wait that would need longer
	// fails immediately with ErrRateLimitExceeded.
	// Default: 1 second
	MaxWait time.Duration

	// Clock drives token refill.
	// Default: clock.System()
	Clock clock.Clock
}

// RateLimiter is a token bucket that caps the rate of producer fetches, for
// example to stay inside a third-party classifier's request quota.
type RateLimiter struct {
	config RateLimiterConfig

	mu       sync.Mutex
	tokens   float64
	refilled time.Time
}

// NewRateLimiter creates a new rate limiter with a full bucket.
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	if config.Rate <= 0 {
		config.Rate = 100
	}
	if config.Burst <= 0 {
		config.Burst = 10
	}
	if config.MaxWait <= 0 {
		config.MaxWait = time.Second
	}
	if config.Clock == nil {
		config.Clock = clock.System()
	}

	return &RateLimiter{
		config:   config,
		tokens:   float64(config.Burst),
		refilled: config.Clock.Now(),
	}
}

// Allow takes one token if available.
func (rl *RateLimiter) Allow() bool {
	return rl.AllowN(1)
}

// AllowN takes n tokens if all are available.
func (rl *RateLimiter) AllowN(n int) bool {
	_, ok := rl.take(n)
	return ok
}

// Wait blocks until a token is taken, ctx ends, or MaxWait would be exceeded.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	return rl.WaitN(ctx, 1)
}

// WaitN blocks until n tokens are taken, ctx ends, or MaxWait would be exceeded.
func (rl *RateLimiter) WaitN(ctx context.Context, n int) error {
	deadline := rl.config.MaxWait
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		short, ok := rl.take(n)
		if ok {
			return nil
		}
		if short > deadline {
			return ErrRateLimitExceeded
		}
		deadline -= short

		timer := time.NewTimer(short)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Execute runs op once a token is taken.
func (rl *RateLimiter) Execute(ctx context.Context, op func(context.Context) error) error {
	if rl.config.WaitOnLimit {
		if err := rl.Wait(ctx); err != nil {
			return err
		}
	} else if !rl.Allow() {
		return ErrRateLimitExceeded
	}

	return op(ctx)
}

// take refills the bucket and takes n tokens. When too few are available it
// takes nothing and reports how long the refill would need.
func (rl *RateLimiter) take(n int) (time.Duration, bool) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.refillLocked()
	need := float64(n)
	if rl.tokens >= need {
		rl.tokens -= need
		return 0, true
	}
	return time.Duration((need - rl.tokens) / rl.config.Rate * float64(time.Second)), false
}

func (rl *RateLimiter) refillLocked() {
	now := rl.config.Clock.Now()
	rl.tokens = min(float64(rl.config.Burst), rl.tokens+now.Sub(rl.refilled).Seconds()*rl.config.Rate)
	rl.refilled = now
}

// Tokens returns the current number of available tokens.
func (rl *RateLimiter) Tokens() float64 {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.refillLocked()
	return rl.tokens
}

// Reset refills the bucket.
func (rl *RateLimiter) Reset() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.tokens = float64(rl.config.Burst)
	rl.refilled = rl.config.Clock.Now()
}
