package freshness

import "time"

// Classification is the usability verdict for a resource.
type Classification int

const (
	// Unusable means the resource must be ignored and a fresh value fetched.
	Unusable Classification = iota
	// UsableIfError means the resource may be served only when a fresh
	// attempt has already failed.
	UsableIfError
	// UsableWhileRevalidate means the resource may be served now but a
	// background refresh must be started.
	UsableWhileRevalidate
	// Usable means the resource may be served as-is.
	Usable
)

// String returns the string representation of the classification.
func (c Classification) String() string {
	switch c {
	case Usable:
		return "usable"
	case UsableWhileRevalidate:
		return "usable_while_revalidate"
	case UsableIfError:
		return "usable_if_error"
	case Unusable:
		return "unusable"
	default:
		return "unknown"
	}
}

// Better reports whether c is strictly more usable than other.
func (c Classification) Better(other Classification) bool {
	return c > other
}

// Classify decides how a resource may be used by a consumer at the given time.
//
// Consumer max-age is checked first and wins over every staleness allowance,
// including the error fallback. A fresh resource is Usable. A stale resource
// with no staleness tolerance on either side is Unusable. Otherwise the
// negotiated MaxStale tiers, offset by the freshness lifetime, decide.
func Classify[V any](r *Resource[V], consumer ConsumerDirectives, at time.Time) Classification {
	age := r.Age(at)

	if consumer.MaxAge != nil && age > *consumer.MaxAge {
		return Unusable
	}

	if r.IsFresh(at) {
		return Usable
	}

	if r.directives.MaxStale == nil && !consumer.MaxStale.IsSet() {
		return Unusable
	}

	limits := Negotiate(r.directives.MaxStale, consumer.MaxStale).Limits(r.directives.FreshUntilAge)
	switch {
	case age <= limits[TierUsable]:
		return Usable
	case age <= limits[TierRevalidate]:
		return UsableWhileRevalidate
	case age <= limits[TierError]:
		return UsableIfError
	default:
		return Unusable
	}
}

// Negotiate combines producer and consumer staleness tolerances.
//
// A consumer that expressed nothing defaults to the producer's revalidate and
// error tiers with no plain-usable staleness; a producer that expressed nothing
// defers to the consumer. The tighter bound wins per tier.
func Negotiate(producer *MaxStale, consumer RawMaxStale) MaxStale {
	var defaultConsumer MaxStale
	if producer != nil {
		defaultConsumer = MaxStale{0, producer[TierRevalidate], producer[TierError]}
	}

	finalConsumer := defaultConsumer
	if n := consumer.Normalize(); n != nil {
		finalConsumer = *n
	}

	finalProducer := finalConsumer
	if producer != nil {
		finalProducer = *producer
	}

	return finalConsumer.Min(finalProducer)
}
