// Package store provides a generic in-memory key/value store with a hard
// per-entry TTL and an optional LRU capacity bound.
//
// Entries expire lazily on read and through an incremental background sweep
// that inspects a bounded batch of entries per tick. Every removal (explicit
// delete, lazy expiry, sweep, capacity eviction) dispatches the configured
// eviction callback on its own goroutine, outside the store's lock.
//
// The hard TTL is a memory bound only. Whether a stored value is still
// acceptable to a caller is decided by the freshness package.
package store
