package freshness

import (
	"fmt"
	"math"
	"time"
)

// Unlimited stands for an unbounded duration: an unlimited staleness tier or
// an entry that stays potentially useful indefinitely.
const Unlimited = time.Duration(math.MaxInt64)

// Staleness tiers, used to index a MaxStale.
const (
	// TierUsable is the window in which a stale value is still plainly usable.
	TierUsable = iota
	// TierRevalidate is the window in which a stale value is usable but must
	// trigger a background revalidation.
	TierRevalidate
	// TierError is the window in which a stale value may only be served as a
	// fallback after a fresh attempt failed.
	TierError
)

// MaxStale is a three-tier allowance for staleness beyond the freshness
// lifetime. Tiers are conventionally non-decreasing.
type MaxStale [3]time.Duration

// Validate reports ErrNegativeDuration if any tier is negative.
func (m MaxStale) Validate() error {
	for i, d := range m {
		if d < 0 {
			return fmt.Errorf("%w: max-stale tier %d is %s", ErrNegativeDuration, i, d)
		}
	}
	return nil
}

// Min returns the per-tier minimum of m and other.
func (m MaxStale) Min(other MaxStale) MaxStale {
	var out MaxStale
	for i := range m {
		out[i] = min(m[i], other[i])
	}
	return out
}

// Limits returns, per tier, the maximum age at which a resource with the given
// freshness lifetime still falls within that tier.
func (m MaxStale) Limits(freshUntilAge time.Duration) [3]time.Duration {
	var out [3]time.Duration
	for i, d := range m {
		out[i] = addSaturating(freshUntilAge, d)
	}
	return out
}

func (m MaxStale) String() string {
	return fmt.Sprintf("[%s %s %s]", tierString(m[0]), tierString(m[1]), tierString(m[2]))
}

func tierString(d time.Duration) string {
	if d == Unlimited {
		return "unlimited"
	}
	return d.String()
}

type rawKind uint8

const (
	rawAbsent rawKind = iota
	rawAny
	rawUniform
	rawTiers
)

// RawMaxStale is a consumer's staleness tolerance before normalization.
//
// The zero value means the consumer expressed no tolerance. Use AnyStale,
// StaleFor or StaleTiers to build the other accepted forms.
type RawMaxStale struct {
	kind  rawKind
	tiers MaxStale
}

// AnyStale accepts a stale value of any age in every tier, like a bare HTTP
// max-stale directive.
func AnyStale() RawMaxStale {
	return RawMaxStale{kind: rawAny, tiers: MaxStale{Unlimited, Unlimited, Unlimited}}
}

// StaleFor accepts staleness up to d in every tier.
func StaleFor(d time.Duration) RawMaxStale {
	return RawMaxStale{kind: rawUniform, tiers: MaxStale{d, d, d}}
}

// StaleTiers accepts the canonical three-tier form.
func StaleTiers(usable, revalidate, onError time.Duration) RawMaxStale {
	return RawMaxStale{kind: rawTiers, tiers: MaxStale{usable, revalidate, onError}}
}

// IsSet reports whether the consumer expressed any staleness tolerance.
func (r RawMaxStale) IsSet() bool {
	return r.kind != rawAbsent
}

// Normalize returns the canonical tuple, or nil when no tolerance was given.
func (r RawMaxStale) Normalize() *MaxStale {
	if r.kind == rawAbsent {
		return nil
	}
	out := r.tiers
	return &out
}

// Validate reports ErrNegativeDuration if any tier is negative.
func (r RawMaxStale) Validate() error {
	if r.kind == rawAbsent {
		return nil
	}
	return r.tiers.Validate()
}

func (r RawMaxStale) String() string {
	switch r.kind {
	case rawAny:
		return "any"
	case rawUniform:
		return tierString(r.tiers[0])
	case rawTiers:
		return r.tiers.String()
	default:
		return "none"
	}
}

func addSaturating(a, b time.Duration) time.Duration {
	if a == Unlimited || b == Unlimited {
		return Unlimited
	}
	if b > 0 && a > Unlimited-b {
		return Unlimited
	}
	return a + b
}
