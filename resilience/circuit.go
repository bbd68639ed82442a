package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonwraymond/freshcache/clock"
)

// State represents the circuit breaker state.
type State int

const (
	// StateClosed means producer calls flow normally.
	StateClosed State = iota
	// StateOpen means producer calls are refused without being attempted.
	StateOpen
	// StateHalfOpen means a limited number of probe calls are let through.
	StateHalfOpen
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig configures the circuit breaker.
type CircuitBreakerConfig struct {
	// MaxFailures is the number of consecutive failures that opens the circuit.
	// Default: 5
	MaxFailures int

	// ResetTimeout is how long the circuit stays open before probing.
	// Default: 30 seconds
	ResetTimeout time.Duration

	// HalfOpenProbes is the number of concurrent probe calls allowed while
	// half-open.
	// Default: 1
	HalfOpenProbes int

	// SuccessThreshold is the number of consecutive successful probes that
	// closes the circuit.
	// Default: 1
	SuccessThreshold int

	// OnStateChange is called with the breaker's lock held on every transition.
	OnStateChange func(from, to State)

	// IsFailure determines if an error should count as a failure.
	// Default: all non-nil errors except context cancellation.
	IsFailure func(err error) bool

	// Clock drives the reset timeout.
	// Default: clock.System()
	Clock clock.Clock
}

// CircuitBreaker stops calling a failing producer once MaxFailures
// consecutive fetches fail, and probes it again after ResetTimeout.
type CircuitBreaker struct {
	config CircuitBreakerConfig

	mu          sync.Mutex
	state       State
	failures    int
	probes      int
	probeWins   int
	openedAt    time.Time
	lastFailure time.Time
}

// NewCircuitBreaker creates a new circuit breaker.
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	if config.MaxFailures <= 0 {
		config.MaxFailures = 5
	}
	if config.ResetTimeout <= 0 {
		config.ResetTimeout = 30 * time.Second
	}
	if config.HalfOpenProbes <= 0 {
		config.HalfOpenProbes = 1
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = 1
	}
	if config.IsFailure == nil {
		config.IsFailure = countsAsFailure
	}
	if config.Clock == nil {
		config.Clock = clock.System()
	}

	return &CircuitBreaker{config: config}
}

// Execute runs op unless the circuit refuses it with ErrCircuitOpen.
func (cb *CircuitBreaker) Execute(ctx context.Context, op func(context.Context) error) error {
	probe, err := cb.admit()
	if err != nil {
		return err
	}

	err = op(ctx)
	cb.record(probe, err)
	return err
}

// State returns the current circuit state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.stateLocked()
}

// Reset closes the circuit and forgets recorded failures.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.transition(StateClosed)
}

// admit decides whether a call may proceed and whether it is a probe.
func (cb *CircuitBreaker) admit() (probe bool, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.stateLocked() {
	case StateOpen:
		return false, ErrCircuitOpen
	case StateHalfOpen:
		if cb.probes >= cb.config.HalfOpenProbes {
			return false, ErrCircuitOpen
		}
		cb.probes++
		return true, nil
	default:
		return false, nil
	}
}

func (cb *CircuitBreaker) record(probe bool, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	failed := cb.config.IsFailure(err)
	if failed {
		cb.lastFailure = cb.config.Clock.Now()
	}

	if !probe {
		if cb.state != StateClosed {
			// The circuit moved while this call was in flight.
			return
		}
		if !failed {
			cb.failures = 0
			return
		}
		cb.failures++
		if cb.failures >= cb.config.MaxFailures {
			cb.transition(StateOpen)
		}
		return
	}

	if cb.state != StateHalfOpen {
		return
	}
	cb.probes--
	if failed {
		cb.transition(StateOpen)
		return
	}
	cb.probeWins++
	if cb.probeWins >= cb.config.SuccessThreshold {
		cb.transition(StateClosed)
	}
}

// stateLocked moves an open circuit to half-open once ResetTimeout has passed.
func (cb *CircuitBreaker) stateLocked() State {
	if cb.state == StateOpen && cb.config.Clock.Now().Sub(cb.openedAt) >= cb.config.ResetTimeout {
		cb.transition(StateHalfOpen)
	}
	return cb.state
}

func (cb *CircuitBreaker) transition(to State) {
	from := cb.state
	cb.state = to
	cb.probes = 0
	cb.probeWins = 0

	switch to {
	case StateClosed:
		cb.failures = 0
	case StateOpen:
		cb.openedAt = cb.config.Clock.Now()
	}

	if from != to && cb.config.OnStateChange != nil {
		cb.config.OnStateChange(from, to)
	}
}

// countsAsFailure treats a caller giving up as neutral: the producer did not
// fail, the request was abandoned.
func countsAsFailure(err error) bool {
	return err != nil && !errors.Is(err, context.Canceled)
}

// CircuitSnapshot is a point-in-time view of a circuit breaker.
type CircuitSnapshot struct {
	State State

	// Failures counts consecutive failures while closed.
	Failures int

	OpenedAt    time.Time
	LastFailure time.Time
}

// Snapshot returns the breaker's current state and counters.
func (cb *CircuitBreaker) Snapshot() CircuitSnapshot {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return CircuitSnapshot{
		State:       cb.stateLocked(),
		Failures:    cb.failures,
		OpenedAt:    cb.openedAt,
		LastFailure: cb.lastFailure,
	}
}
