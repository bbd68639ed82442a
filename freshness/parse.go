package freshness

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type directiveSet struct {
	values map[string]string
	bare   map[string]bool
}

func splitDirectives(s string) (directiveSet, error) {
	set := directiveSet{values: map[string]string{}, bare: map[string]bool{}}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, value, hasValue := strings.Cut(part, "=")
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			return set, fmt.Errorf("%w: empty directive name in %q", ErrMalformedDirective, s)
		}
		if hasValue {
			set.values[name] = strings.Trim(strings.TrimSpace(value), `"`)
		} else {
			set.bare[name] = true
		}
	}
	return set, nil
}

// seconds parses a named directive as a non-negative number of seconds.
func (d directiveSet) seconds(name string) (time.Duration, bool, error) {
	raw, ok := d.values[name]
	if !ok {
		return 0, false, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("%w: %s=%q", ErrMalformedDirective, name, raw)
	}
	if n < 0 {
		return 0, false, fmt.Errorf("%w: %s=%d", ErrNegativeDuration, name, n)
	}
	if n > int64(Unlimited/time.Second) {
		return Unlimited, true, nil
	}
	return time.Duration(n) * time.Second, true, nil
}

type staleWindows struct {
	maxStale, revalidate, onError time.Duration
	any                           bool
}

func (d directiveSet) staleWindows() (staleWindows, error) {
	var w staleWindows
	var err error

	if w.maxStale, w.any, err = d.seconds("max-stale"); err != nil {
		return w, err
	}
	hasSWR := false
	if w.revalidate, hasSWR, err = d.seconds("stale-while-revalidate"); err != nil {
		return w, err
	}
	hasSIE := false
	if w.onError, hasSIE, err = d.seconds("stale-if-error"); err != nil {
		return w, err
	}
	w.any = w.any || hasSWR || hasSIE
	return w, nil
}

// tiers turns the three windows into cumulative MaxStale tiers.
func (w staleWindows) tiers() MaxStale {
	revalidate := addSaturating(w.maxStale, w.revalidate)
	return MaxStale{w.maxStale, revalidate, addSaturating(revalidate, w.onError)}
}

// ParseConsumerDirectives parses a Cache-Control-like request directive string.
//
// Recognized directives: max-age=N, max-stale (bare, any staleness),
// max-stale=N, stale-while-revalidate=N and stale-if-error=N, all in seconds.
// A lone max-stale=N tolerates N seconds in every tier; combined with the
// stale-* directives, the tiers become cumulative windows. Unknown directives
// are ignored.
func ParseConsumerDirectives(s string) (ConsumerDirectives, error) {
	var c ConsumerDirectives

	set, err := splitDirectives(s)
	if err != nil {
		return c, err
	}

	maxAge, ok, err := set.seconds("max-age")
	if err != nil {
		return c, err
	}
	if ok {
		c.MaxAge = &maxAge
	}

	if set.bare["max-stale"] {
		c.MaxStale = AnyStale()
		return c, nil
	}

	w, err := set.staleWindows()
	if err != nil {
		return c, err
	}
	_, hasSWR := set.values["stale-while-revalidate"]
	_, hasSIE := set.values["stale-if-error"]
	switch {
	case hasSWR || hasSIE:
		t := w.tiers()
		c.MaxStale = StaleTiers(t[0], t[1], t[2])
	case w.any:
		c.MaxStale = StaleFor(w.maxStale)
	}

	return c, nil
}

// ParseProducerDirectives parses a Cache-Control-like response directive
// string.
//
// max-age=N (or s-maxage=N when max-age is absent) sets the freshness
// lifetime. max-stale=A, stale-while-revalidate=B and stale-if-error=C set
// cumulative tiers [A, A+B, A+B+C]; without any of them the producer leaves
// staleness unbounded by its own terms. no-cache and no-store force a zero
// lifetime with no staleness allowance.
func ParseProducerDirectives(s string) (ProducerDirectives, error) {
	var p ProducerDirectives

	set, err := splitDirectives(s)
	if err != nil {
		return p, err
	}

	fresh, ok, err := set.seconds("max-age")
	if err != nil {
		return p, err
	}
	if !ok {
		if fresh, _, err = set.seconds("s-maxage"); err != nil {
			return p, err
		}
	}
	p.FreshUntilAge = fresh

	if set.bare["no-cache"] || set.bare["no-store"] {
		p.FreshUntilAge = 0
		p.MaxStale = &MaxStale{}
		return p, nil
	}

	w, err := set.staleWindows()
	if err != nil {
		return p, err
	}
	if w.any {
		t := w.tiers()
		p.MaxStale = &t
	}

	return p, nil
}
