// Package freshness decides whether a previously computed result can still
// satisfy a new request.
//
// A Resource carries a value together with the terms its producer attached
// (how long it stays fresh, how long it may be served stale) and optional
// validators for cheap revalidation. Classify negotiates those terms against a
// consumer's ConsumerDirectives at an explicit point in time and returns one of
// four verdicts:
//
//   - Usable: serve as-is.
//   - UsableWhileRevalidate: serve now and refresh in the background.
//   - UsableIfError: serve only if a fresh attempt has failed.
//   - Unusable: ignore and fetch fresh.
//
// The vocabulary (max-age, max-stale, stale-while-revalidate, stale-if-error)
// follows HTTP Cache-Control, but the rules are this package's own: staleness
// tolerance is a three-tier MaxStale tuple and each party's tolerance caps the
// other's per tier. Consumer max-age is an absolute ceiling that no staleness
// allowance can override.
//
// Every function takes the current time as an argument and never reads a
// clock, so results are deterministic.
package freshness
