package health

import "errors"

var (
	// ErrCheckTimeout indicates a health check timed out.
	ErrCheckTimeout = errors.New("health: check timeout")

	// ErrCheckerNotFound indicates a checker was not found.
	ErrCheckerNotFound = errors.New("health: checker not found")

	// ErrCallbackFailures indicates eviction callbacks failed since the last check.
	ErrCallbackFailures = errors.New("health: eviction callbacks failed")
)
