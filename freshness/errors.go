package freshness

import "errors"

// Validation errors.
var (
	// ErrNegativeDuration indicates a negative age, lifetime or staleness bound.
	ErrNegativeDuration = errors.New("freshness: negative duration")

	// ErrMissingDate indicates a Resource was created without a date.
	ErrMissingDate = errors.New("freshness: resource date is required")

	// ErrMalformedDirective indicates a directive string could not be parsed.
	ErrMalformedDirective = errors.New("freshness: malformed directive")
)
