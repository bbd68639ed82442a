package freshness

import (
	"fmt"
	"time"
)

// ProducerDirectives are the freshness terms set by whoever computed a value.
type ProducerDirectives struct {
	// FreshUntilAge is the freshness lifetime measured from the value's birth.
	FreshUntilAge time.Duration

	// MaxStale is the producer's staleness allowance. Nil means the producer
	// did not bound staleness.
	MaxStale *MaxStale
}

// Validate rejects negative lifetimes and staleness tiers.
func (p ProducerDirectives) Validate() error {
	if p.FreshUntilAge < 0 {
		return fmt.Errorf("%w: fresh-until-age is %s", ErrNegativeDuration, p.FreshUntilAge)
	}
	if p.MaxStale != nil {
		return p.MaxStale.Validate()
	}
	return nil
}

// ConsumerDirectives are the terms a request negotiates with.
type ConsumerDirectives struct {
	// MaxAge is an absolute ceiling on acceptable age. Nil means no ceiling.
	MaxAge *time.Duration

	// MaxStale is the consumer's staleness tolerance.
	MaxStale RawMaxStale
}

// WithMaxAge returns a copy of c with the max-age ceiling set to d.
func (c ConsumerDirectives) WithMaxAge(d time.Duration) ConsumerDirectives {
	c.MaxAge = &d
	return c
}

// WithMaxStale returns a copy of c with the given staleness tolerance.
func (c ConsumerDirectives) WithMaxStale(r RawMaxStale) ConsumerDirectives {
	c.MaxStale = r
	return c
}

// Validate rejects a negative max-age or negative staleness tiers.
func (c ConsumerDirectives) Validate() error {
	if c.MaxAge != nil && *c.MaxAge < 0 {
		return fmt.Errorf("%w: max-age is %s", ErrNegativeDuration, *c.MaxAge)
	}
	return c.MaxStale.Validate()
}
