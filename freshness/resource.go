package freshness

import (
	"fmt"
	"maps"
	"time"
)

// Resource is a cached result together with its producer's freshness terms.
//
// Resources are immutable once created with NewResource.
type Resource[V any] struct {
	value      V
	date       time.Time
	initialAge time.Duration
	directives ProducerDirectives
	validators map[string]any
}

// ResourceOption configures optional Resource metadata.
type ResourceOption func(*resourceOptions)

type resourceOptions struct {
	initialAge time.Duration
	validators map[string]any
}

// WithInitialAge records age the value had already accrued upstream before it
// entered the cache.
func WithInitialAge(d time.Duration) ResourceOption {
	return func(o *resourceOptions) {
		o.initialAge = d
	}
}

// WithValidators attaches opaque validators (an ETag, a model version, a
// content hash) that allow revalidation instead of recomputation.
func WithValidators(v map[string]any) ResourceOption {
	return func(o *resourceOptions) {
		o.validators = v
	}
}

// NewResource creates a Resource that entered the cache at date.
//
// It returns ErrMissingDate for a zero date and ErrNegativeDuration for a
// negative initial age or negative producer directives.
func NewResource[V any](value V, date time.Time, directives ProducerDirectives, opts ...ResourceOption) (*Resource[V], error) {
	var o resourceOptions
	for _, opt := range opts {
		opt(&o)
	}

	if date.IsZero() {
		return nil, ErrMissingDate
	}
	if o.initialAge < 0 {
		return nil, fmt.Errorf("%w: initial age is %s", ErrNegativeDuration, o.initialAge)
	}
	if err := directives.Validate(); err != nil {
		return nil, err
	}

	if directives.MaxStale != nil {
		ms := *directives.MaxStale
		directives.MaxStale = &ms
	}

	return &Resource[V]{
		value:      value,
		date:       date,
		initialAge: o.initialAge,
		directives: directives,
		validators: maps.Clone(o.validators),
	}, nil
}

// Value returns the cached value.
func (r *Resource[V]) Value() V {
	return r.value
}

// Date returns when this representation entered the cache.
func (r *Resource[V]) Date() time.Time {
	return r.date
}

// InitialAge returns the age accrued before the resource entered the cache.
func (r *Resource[V]) InitialAge() time.Duration {
	return r.initialAge
}

// Directives returns a copy of the producer's directives.
func (r *Resource[V]) Directives() ProducerDirectives {
	d := r.directives
	if d.MaxStale != nil {
		ms := *d.MaxStale
		d.MaxStale = &ms
	}
	return d
}

// Validators returns a copy of the resource's validators.
func (r *Resource[V]) Validators() map[string]any {
	return maps.Clone(r.validators)
}

// Validator returns a single validator by name.
func (r *Resource[V]) Validator(name string) (any, bool) {
	v, ok := r.validators[name]
	return v, ok
}

// BirthDate returns when the origin created the value.
func (r *Resource[V]) BirthDate() time.Time {
	return r.date.Add(-r.initialAge)
}

// Age returns how old the value is at the given time. It is negative when at
// precedes the birth date.
func (r *Resource[V]) Age(at time.Time) time.Duration {
	return at.Sub(r.BirthDate())
}

// IsFresh reports whether the age at the given time is within the freshness
// lifetime.
func (r *Resource[V]) IsFresh(at time.Time) bool {
	age := r.Age(at)
	return age >= 0 && age <= r.directives.FreshUntilAge
}

// IsValidatable reports whether the resource carries any validators.
func (r *Resource[V]) IsValidatable() bool {
	return len(r.validators) > 0
}

// PotentiallyUsefulFor returns how much longer the resource could be served
// under any negotiation, including as an error fallback.
//
// Resources that are validatable, or whose producer set no staleness bound,
// return Unlimited: a caller may still revalidate or judge them itself.
// The result is advisory and is not consulted by Classify.
func (r *Resource[V]) PotentiallyUsefulFor(at time.Time) time.Duration {
	if r.directives.MaxStale == nil || r.IsValidatable() {
		return Unlimited
	}
	limit := addSaturating(r.directives.FreshUntilAge, r.directives.MaxStale[TierError])
	if limit == Unlimited {
		return Unlimited
	}
	return limit - r.Age(at)
}

// Refreshed returns a copy of r that entered the cache at date with no prior
// age, keeping its value, directives and validators. It is used when a
// revalidation confirms the value is unchanged.
func (r *Resource[V]) Refreshed(date time.Time) *Resource[V] {
	out := *r
	out.date = date
	out.initialAge = 0
	return &out
}
