package resilience

import (
	"context"
	"sync/atomic"
	"time"
)

// BulkheadConfig configures the bulkhead.
type BulkheadConfig struct {
	// MaxConcurrent is the maximum number of concurrent operations.
	// Default: 10
	MaxConcurrent int

	// MaxWait is the maximum time to wait for a slot. Zero rejects
	// immediately when the bulkhead is full.
	MaxWait time.Duration
}

// Bulkhead limits concurrent operations, such as background revalidations
// of stale cache entries.
type Bulkhead struct {
	config BulkheadConfig
	slots  chan struct{}

	active    atomic.Int64
	maxActive atomic.Int64
	rejected  atomic.Int64
}

// NewBulkhead creates a new bulkhead.
func NewBulkhead(config BulkheadConfig) *Bulkhead {
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 10
	}

	return &Bulkhead{
		config: config,
		slots:  make(chan struct{}, config.MaxConcurrent),
	}
}

// Acquire takes a slot, waiting up to MaxWait for one to free up.
// It returns ErrBulkheadFull when none does, or ctx's error if ctx ends first.
func (b *Bulkhead) Acquire(ctx context.Context) error {
	select {
	case b.slots <- struct{}{}:
		b.taken()
		return nil
	default:
	}

	if b.config.MaxWait <= 0 {
		b.rejected.Add(1)
		return ErrBulkheadFull
	}

	timer := time.NewTimer(b.config.MaxWait)
	defer timer.Stop()

	select {
	case b.slots <- struct{}{}:
		b.taken()
		return nil
	case <-timer.C:
		b.rejected.Add(1)
		return ErrBulkheadFull
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Bulkhead) taken() {
	n := b.active.Add(1)
	for {
		peak := b.maxActive.Load()
		if n <= peak || b.maxActive.CompareAndSwap(peak, n) {
			return
		}
	}
}

// Release returns a slot taken by Acquire.
func (b *Bulkhead) Release() {
	select {
	case <-b.slots:
		b.active.Add(-1)
	default:
	}
}

// Execute runs the operation within the bulkhead.
func (b *Bulkhead) Execute(ctx context.Context, op func(context.Context) error) error {
	if err := b.Acquire(ctx); err != nil {
		return err
	}
	defer b.Release()

	return op(ctx)
}

// Go acquires a slot and runs op on a new goroutine, releasing the slot when
// op returns. It reports ErrBulkheadFull without starting op when no slot is
// available. done, if non-nil, receives op's result.
func (b *Bulkhead) Go(ctx context.Context, op func(context.Context) error, done func(error)) error {
	if err := b.Acquire(ctx); err != nil {
		return err
	}

	go func() {
		defer b.Release()
		err := op(ctx)
		if done != nil {
			done(err)
		}
	}()
	return nil
}

// BulkheadSnapshot is a point-in-time view of a bulkhead.
type BulkheadSnapshot struct {
	Active        int
	MaxActive     int
	Available     int
	MaxConcurrent int
	Rejected      int64
}

// Snapshot returns the bulkhead's current occupancy and counters.
func (b *Bulkhead) Snapshot() BulkheadSnapshot {
	active := int(b.active.Load())
	return BulkheadSnapshot{
		Active:        active,
		MaxActive:     int(b.maxActive.Load()),
		Available:     b.config.MaxConcurrent - active,
		MaxConcurrent: b.config.MaxConcurrent,
		Rejected:      b.rejected.Load(),
	}
}
