package cache

import (
	"time"

	"github.com/jonwraymond/freshcache/freshness"
)

// Policy configures how fetched resources are described and how long the
// store keeps them.
type Policy struct {
	// DefaultDirectives apply to fetched values that carry no directives.
	DefaultDirectives freshness.ProducerDirectives

	// MaxTTL caps how long any resource stays in memory.
	// If zero, no maximum is enforced.
	MaxTTL time.Duration

	// Grace extends the store TTL past the point where a resource stops
	// being useful, so late readers still find validators to revalidate with.
	Grace time.Duration

	// MaxVariants caps the candidates kept per primary key.
	// Default: DefaultMaxVariants
	MaxVariants int
}

// DefaultMaxVariants is the candidate cap used when Policy.MaxVariants is zero.
const DefaultMaxVariants = 8

// DefaultPolicy returns the default policy.
// Values are fresh for 5 minutes, usable while revalidating for 1 more minute
// and usable on error for 1 hour after that. MaxTTL: 24 hours, Grace: 1 minute.
func DefaultPolicy() Policy {
	return Policy{
		DefaultDirectives: freshness.ProducerDirectives{
			FreshUntilAge: 5 * time.Minute,
			MaxStale:      &freshness.MaxStale{0, time.Minute, time.Hour + time.Minute},
		},
		MaxTTL:      24 * time.Hour,
		Grace:       time.Minute,
		MaxVariants: DefaultMaxVariants,
	}
}

// Validate validates the policy.
func (p Policy) Validate() error {
	if p.MaxTTL < 0 || p.Grace < 0 || p.MaxVariants < 0 {
		return ErrInvalidPolicy
	}
	return p.DefaultDirectives.Validate()
}

// StoreTTL returns how long to keep a resource that remains potentially
// useful for the given duration. Zero means the resource is not worth storing.
func (p Policy) StoreTTL(useful time.Duration) time.Duration {
	if useful <= 0 {
		return 0
	}

	ttl := useful
	if ttl < freshness.Unlimited-p.Grace {
		ttl += p.Grace
	} else {
		ttl = freshness.Unlimited
	}

	if p.MaxTTL > 0 && ttl > p.MaxTTL {
		ttl = p.MaxTTL
	}

	return ttl
}

func (p Policy) maxVariants() int {
	if p.MaxVariants <= 0 {
		return DefaultMaxVariants
	}
	return p.MaxVariants
}
