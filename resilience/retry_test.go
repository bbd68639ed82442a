package resilience

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts:  attempts,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
	}
}

func TestNewRetry_Defaults(t *testing.T) {
	cfg := NewRetry(RetryConfig{}).Config()

	if cfg.MaxAttempts != 3 || cfg.InitialDelay != 100*time.Millisecond ||
		cfg.MaxDelay != 30*time.Second || cfg.Multiplier != 2.0 || cfg.RetryIf == nil {
		t.Errorf("defaults not applied: %+v", cfg)
	}
}

func TestRetry_Attempts(t *testing.T) {
	tests := []struct {
		name      string
		failFirst int
		attempts  int
		wantCalls int
		wantErr   bool
	}{
		{name: "first attempt succeeds", failFirst: 0, attempts: 3, wantCalls: 1},
		{name: "succeeds on retry", failFirst: 2, attempts: 3, wantCalls: 3},
		{name: "exhausted", failFirst: 5, attempts: 3, wantCalls: 3, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := NewRetry(fastRetry(tt.attempts)).Execute(context.Background(), func(context.Context) error {
				calls++
				if calls <= tt.failFirst {
					return errUpstream
				}
				return nil
			})

			if calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls, tt.wantCalls)
			}
			if (err != nil) != tt.wantErr {
				t.Errorf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && (!errors.Is(err, ErrMaxRetriesExceeded) || !errors.Is(err, errUpstream)) {
				t.Errorf("error = %v, want ErrMaxRetriesExceeded wrapping errUpstream", err)
			}
		})
	}
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errUpstream, true},
		{ErrTimeout, true},
		{context.Canceled, false},
		{fmt.Errorf("fetch: %w", context.Canceled), false},
		{ErrCircuitOpen, false},
		{ErrBulkheadFull, false},
		{ErrRateLimitExceeded, false},
	}
	for _, tt := range tests {
		if got := Retryable(tt.err); got != tt.want {
			t.Errorf("Retryable(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestRetry_DoesNotRetryOpenCircuit(t *testing.T) {
	calls := 0
	err := NewRetry(fastRetry(5)).Execute(context.Background(), func(context.Context) error {
		calls++
		return ErrCircuitOpen
	})
	if !errors.Is(err, ErrCircuitOpen) || calls != 1 {
		t.Errorf("err = %v, calls = %d; want ErrCircuitOpen after 1 call", err, calls)
	}
}

func TestRetry_ContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := NewRetry(RetryConfig{MaxAttempts: 3, InitialDelay: time.Hour, MaxDelay: time.Hour})

	err := r.Execute(ctx, func(context.Context) error {
		cancel()
		return errUpstream
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestRetry_OnRetry(t *testing.T) {
	var attempts []int
	cfg := fastRetry(3)
	cfg.OnRetry = func(attempt int, err error, _ time.Duration) {
		if !errors.Is(err, errUpstream) {
			t.Errorf("OnRetry err = %v", err)
		}
		attempts = append(attempts, attempt)
	}

	_ = NewRetry(cfg).Execute(context.Background(), failFetch)

	if len(attempts) != 2 || attempts[0] != 1 || attempts[1] != 2 {
		t.Errorf("OnRetry attempts = %v, want [1 2]", attempts)
	}
}

func TestRetry_CalculateDelay(t *testing.T) {
	tests := []struct {
		name     string
		strategy BackoffStrategy
		attempt  int
		want     time.Duration
	}{
		{"constant", BackoffConstant, 3, 10 * time.Millisecond},
		{"linear", BackoffLinear, 3, 30 * time.Millisecond},
		{"exponential", BackoffExponential, 3, 40 * time.Millisecond},
		{"capped", BackoffExponential, 10, 100 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRetry(RetryConfig{
				InitialDelay: 10 * time.Millisecond,
				MaxDelay:     100 * time.Millisecond,
				Strategy:     tt.strategy,
			})
			if got := r.delay(tt.attempt); got != tt.want {
				t.Errorf("delay(%d) = %v, want %v", tt.attempt, got, tt.want)
			}
		})
	}
}

func TestRetry_JitterBounded(t *testing.T) {
	r := NewRetry(RetryConfig{InitialDelay: 40 * time.Millisecond, Strategy: BackoffConstant, Jitter: true})
	for range 50 {
		d := r.delay(1)
		if d < 40*time.Millisecond || d >= 50*time.Millisecond {
			t.Fatalf("delay %v outside [40ms, 50ms)", d)
		}
	}
}
