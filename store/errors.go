package store

import "errors"

// Sentinel errors for store configuration and operations.
var (
	ErrInvalidLimit         = errors.New("store: item limit must not be negative")
	ErrInvalidTTL           = errors.New("store: ttl must be positive")
	ErrInvalidSweepInterval = errors.New("store: sweep interval must not be negative")
	ErrInvalidBatchSize     = errors.New("store: sweep batch size must not be negative")
	ErrClosed               = errors.New("store: store is closed")
)
