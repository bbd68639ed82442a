package store

import (
	"context"
	"time"

	"github.com/jonwraymond/freshcache/clock"
	"github.com/jonwraymond/freshcache/observe"
)

// Defaults applied by New for zero-valued Config fields.
const (
	DefaultName           = "store"
	DefaultSweepInterval  = 2 * time.Second
	DefaultSweepBatchSize = 20
)

// EvictionFunc is called after an entry has left the store.
//
// It runs on its own goroutine with a context that is never cancelled by the
// store. Returned errors and panics are logged and counted, never propagated.
type EvictionFunc[K comparable, V any] func(ctx context.Context, key K, value V) error

// Config configures a Store.
type Config[K comparable, V any] struct {
	// Name identifies the store in logs and metrics. Defaults to DefaultName.
	Name string

	// NumItemsLimit bounds the number of entries. Zero means unbounded; a
	// positive value evicts the least recently used entry when a new key
	// would exceed it.
	NumItemsLimit int

	// OnEviction is invoked asynchronously for every removed entry.
	OnEviction EvictionFunc[K, V]

	// SweepInterval is the background sweep period. Defaults to DefaultSweepInterval.
	SweepInterval time.Duration

	// SweepBatchSize caps entries inspected per sweep tick. Defaults to DefaultSweepBatchSize.
	SweepBatchSize int

	// Clock defaults to clock.System().
	Clock clock.Clock

	// Logger defaults to observe.NopLogger().
	Logger observe.Logger

	// Metrics defaults to observe.NopStoreMetrics().
	Metrics observe.StoreMetrics
}

// Validate validates the configuration.
func (c *Config[K, V]) Validate() error {
	if c.NumItemsLimit < 0 {
		return ErrInvalidLimit
	}
	if c.SweepInterval < 0 {
		return ErrInvalidSweepInterval
	}
	if c.SweepBatchSize < 0 {
		return ErrInvalidBatchSize
	}
	return nil
}

func (c Config[K, V]) withDefaults() Config[K, V] {
	if c.Name == "" {
		c.Name = DefaultName
	}
	if c.SweepInterval == 0 {
		c.SweepInterval = DefaultSweepInterval
	}
	if c.SweepBatchSize == 0 {
		c.SweepBatchSize = DefaultSweepBatchSize
	}
	if c.Clock == nil {
		c.Clock = clock.System()
	}
	if c.Logger == nil {
		c.Logger = observe.NopLogger()
	}
	if c.Metrics == nil {
		c.Metrics = observe.NopStoreMetrics()
	}
	return c
}
