package cache

import (
	"context"
	"time"

	"github.com/jonwraymond/freshcache/freshness"
)

// Request describes one lookup.
type Request struct {
	// Namespace scopes the key, typically a tenant or producer name.
	Namespace string

	// Input identifies the computation. It is canonicalized by the Keyer.
	Input any

	// Vary holds request attributes a stored value may depend on, such as a
	// locale or a model version. Candidates produced under different values
	// are not served.
	Vary map[string]string

	// Directives express the consumer's freshness requirements.
	Directives freshness.ConsumerDirectives
}

// Source tells where a Result value came from.
type Source int

const (
	// SourceCache means the value was served from a stored candidate.
	SourceCache Source = iota
	// SourceFetch means the value was produced by the fetcher for this call.
	SourceFetch
)

func (s Source) String() string {
	switch s {
	case SourceCache:
		return "cache"
	case SourceFetch:
		return "fetch"
	default:
		return "unknown"
	}
}

// Result is the outcome of Get.
type Result[V any] struct {
	Value    V
	Resource *freshness.Resource[V]
	Source   Source

	// Class is the classification of Resource at lookup time.
	Class freshness.Classification

	// Age is the age of Resource at lookup time.
	Age time.Duration

	// Revalidating is set when a background refresh was started.
	Revalidating bool

	// StaleOnError is set when a stale value is served because the fetch failed.
	StaleOnError bool

	// FetchErr holds the fetch failure behind a StaleOnError result.
	FetchErr error
}

// Revalidation is handed to a Fetcher. Previous is the best stored candidate
// for the request, or nil.
type Revalidation[V any] struct {
	Request  Request
	Previous *freshness.Resource[V]
}

// Validatable reports whether Previous carries validators the producer can
// use to answer NotModified.
func (r Revalidation[V]) Validatable() bool {
	return r.Previous != nil && r.Previous.IsValidatable()
}

// Validator returns a validator of Previous by name.
func (r Revalidation[V]) Validator(name string) (any, bool) {
	if r.Previous == nil {
		return nil, false
	}
	return r.Previous.Validator(name)
}

// Fetched is a producer's answer.
type Fetched[V any] struct {
	// Value is ignored when NotModified is set.
	Value V

	// NotModified confirms Previous is unchanged. Its value is kept and its
	// date refreshed.
	NotModified bool

	// Directives default to the previous resource's directives on
	// NotModified, and to Policy.DefaultDirectives otherwise.
	Directives *freshness.ProducerDirectives

	// Date is when the producer generated the answer. Zero means now.
	Date time.Time

	// InitialAge is the age the answer already had when produced.
	InitialAge time.Duration

	// Validators identify the value for later revalidation. On NotModified
	// they default to the previous validators.
	Validators map[string]any
}

// Fetcher produces values when no stored candidate is usable.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: implementations must honor cancellation and deadlines.
type Fetcher[V any] interface {
	Fetch(ctx context.Context, rv Revalidation[V]) (Fetched[V], error)
}

// FetchFunc adapts a function to Fetcher.
type FetchFunc[V any] func(ctx context.Context, rv Revalidation[V]) (Fetched[V], error)

// Fetch calls f.
func (f FetchFunc[V]) Fetch(ctx context.Context, rv Revalidation[V]) (Fetched[V], error) {
	return f(ctx, rv)
}
