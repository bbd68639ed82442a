package cache

import (
	"maps"
	"time"

	"github.com/jonwraymond/freshcache/freshness"
)

// variant is one stored candidate for a primary key, produced for a request
// with the given vary values.
type variant[V any] struct {
	vary      map[string]string
	resource  *freshness.Resource[V]
	expiresAt time.Time
}

// matches reports whether every vary value the candidate was produced under
// equals the request's value for that name. A missing request value counts
// as the empty string.
func (v variant[V]) matches(vary map[string]string) bool {
	for name, value := range v.vary {
		if vary[name] != value {
			return false
		}
	}
	return true
}

func (v variant[V]) sameVary(vary map[string]string) bool {
	return maps.Equal(v.vary, vary)
}

// entrySet is the immutable set of candidates stored under one primary key.
// Writers replace the whole set.
type entrySet[V any] struct {
	variants []variant[V]
}

// with returns a new set holding v, replacing any candidate with identical
// vary values and dropping candidates past their own expiry. The oldest
// candidates are dropped first when the set exceeds limit.
func (s *entrySet[V]) with(v variant[V], now time.Time, limit int) *entrySet[V] {
	out := &entrySet[V]{}
	if s != nil {
		out.variants = make([]variant[V], 0, len(s.variants)+1)
		for _, old := range s.variants {
			if old.sameVary(v.vary) || !now.Before(old.expiresAt) {
				continue
			}
			out.variants = append(out.variants, old)
		}
	}
	out.variants = append(out.variants, v)

	if n := len(out.variants) - limit; n > 0 {
		out.variants = out.variants[n:]
	}
	return out
}

// latestExpiry returns the furthest expiry among the candidates.
func (s *entrySet[V]) latestExpiry() time.Time {
	var latest time.Time
	for _, v := range s.variants {
		if v.expiresAt.After(latest) {
			latest = v.expiresAt
		}
	}
	return latest
}

// best classifies every candidate matching vary and returns the most usable
// one, preferring the youngest among equally usable candidates. It returns
// nil when no candidate matches.
func (s *entrySet[V]) best(vary map[string]string, consumer freshness.ConsumerDirectives, now time.Time) (*freshness.Resource[V], freshness.Classification) {
	var (
		best      *freshness.Resource[V]
		bestClass freshness.Classification
	)
	if s == nil {
		return nil, freshness.Unusable
	}

	for _, v := range s.variants {
		if !v.matches(vary) || !now.Before(v.expiresAt) {
			continue
		}
		class := freshness.Classify(v.resource, consumer, now)
		if best == nil || class.Better(bestClass) ||
			(class == bestClass && v.resource.Age(now) < best.Age(now)) {
			best, bestClass = v.resource, class
		}
	}
	return best, bestClass
}
