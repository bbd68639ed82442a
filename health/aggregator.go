package health

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/jonwraymond/freshcache/clock"
)

// AggregatorConfig configures the health aggregator.
type AggregatorConfig struct {
	// Timeout is the maximum time to wait for all checks.
	// Default: 10 seconds
	Timeout time.Duration

	// Sequential runs checks one at a time in registration order.
	Sequential bool

	// Clock stamps results. Default: clock.System()
	Clock clock.Clock
}

// Aggregator combines multiple health checkers into a single composite check.
type Aggregator struct {
	config   AggregatorConfig
	mu       sync.RWMutex
	checkers map[string]Checker
	order    []string
}

// NewAggregator creates a new health aggregator.
func NewAggregator(config ...AggregatorConfig) *Aggregator {
	var cfg AggregatorConfig
	if len(config) > 0 {
		cfg = config[0]
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.System()
	}

	return &Aggregator{
		config:   cfg,
		checkers: make(map[string]Checker),
	}
}

// Register adds a health checker under name, replacing any previous one.
func (a *Aggregator) Register(name string, checker Checker) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, exists := a.checkers[name]; !exists {
		a.order = append(a.order, name)
	}
	a.checkers[name] = checker
}

// Unregister removes a health checker from the aggregator.
func (a *Aggregator) Unregister(name string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	delete(a.checkers, name)
	if i := slices.Index(a.order, name); i >= 0 {
		a.order = slices.Delete(a.order, i, i+1)
	}
}

// CheckerNames returns the names of all registered checkers in registration order.
func (a *Aggregator) CheckerNames() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return slices.Clone(a.order)
}

// Check runs a single named health check.
func (a *Aggregator) Check(ctx context.Context, name string) (Result, error) {
	a.mu.RLock()
	checker, ok := a.checkers[name]
	a.mu.RUnlock()

	if !ok {
		return Result{}, ErrCheckerNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, a.config.Timeout)
	defer cancel()
	return a.runCheck(ctx, checker), nil
}

type registered struct {
	name    string
	checker Checker
}

func (a *Aggregator) snapshot() []registered {
	a.mu.RLock()
	defer a.mu.RUnlock()

	regs := make([]registered, len(a.order))
	for i, name := range a.order {
		regs[i] = registered{name: name, checker: a.checkers[name]}
	}
	return regs
}

// CheckAll runs all registered health checks under the aggregate timeout and
// returns the results by name.
func (a *Aggregator) CheckAll(ctx context.Context) map[string]Result {
	regs := a.snapshot()
	if len(regs) == 0 {
		return map[string]Result{}
	}

	ctx, cancel := context.WithTimeout(ctx, a.config.Timeout)
	defer cancel()

	out := make([]Result, len(regs))
	if a.config.Sequential {
		for i, reg := range regs {
			out[i] = a.runCheck(ctx, reg.checker)
		}
	} else {
		var wg sync.WaitGroup
		for i, reg := range regs {
			wg.Go(func() { out[i] = a.runCheck(ctx, reg.checker) })
		}
		wg.Wait()
	}

	results := make(map[string]Result, len(regs))
	for i, reg := range regs {
		results[reg.name] = out[i]
	}
	return results
}

// OverallStatus returns the worst status among results, or StatusHealthy
// when there are none.
func (a *Aggregator) OverallStatus(results map[string]Result) Status {
	return worst(results)
}

func worst(results map[string]Result) Status {
	overall := StatusHealthy
	for _, r := range results {
		overall = max(overall, r.Status)
	}
	return overall
}

func (a *Aggregator) runCheck(ctx context.Context, checker Checker) Result {
	start := a.config.Clock.Now()
	resultCh := make(chan Result, 1)

	go func() {
		result := checker.Check(ctx)
		if result.Duration == 0 {
			result.Duration = a.config.Clock.Now().Sub(start)
		}
		if result.Timestamp.IsZero() {
			result.Timestamp = start
		}
		resultCh <- result
	}()

	select {
	case result := <-resultCh:
		return result
	case <-ctx.Done():
		return Result{
			Status:    StatusUnhealthy,
			Message:   "check timed out",
			Error:     ErrCheckTimeout,
			Duration:  a.config.Clock.Now().Sub(start),
			Timestamp: start,
		}
	}
}

// Checker returns the aggregator as a single Checker named "aggregate".
// Per-check status, message and duration are reported in Details.
func (a *Aggregator) Checker() Checker {
	return NewCheckerFunc("aggregate", func(ctx context.Context) Result {
		return summarize(a.CheckAll(ctx))
	})
}

var summaries = map[Status]string{
	StatusHealthy:   "all checks passed",
	StatusDegraded:  "some checks degraded",
	StatusUnhealthy: "some checks failed",
}

func summarize(results map[string]Result) Result {
	status := worst(results)
	details := make(map[string]any, len(results))
	for name, r := range results {
		details[name] = map[string]any{
			"status":   r.Status.String(),
			"message":  r.Message,
			"duration": r.Duration.String(),
		}
	}
	return Result{Status: status, Message: summaries[status], Details: details}
}
