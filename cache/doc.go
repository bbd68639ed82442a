// Package cache serves expensive computed values under negotiated freshness.
//
// A Cache keys requests by namespace and canonicalized input (SHA-256 or
// xxhash), keeps several candidates per key distinguished by vary values, and
// classifies each candidate with the freshness package against the consumer's
// directives. Depending on the best classification it serves the candidate,
// serves it while refreshing in the background, falls back to it when a
// synchronous fetch fails, or fetches a new value.
//
// Fetches are deduplicated per request, protected by a resilience policy and
// traced and measured through observe. Candidates live in a store.Store whose
// hard TTL is derived from how long the freshness math keeps them useful.
package cache
