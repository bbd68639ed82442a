// Package observe provides observability primitives for freshness-negotiated
// caches.
//
// It is a pure instrumentation library: structured logging, OpenTelemetry
// metrics for stores and caches, and tracing of producer fetches. Stores and
// caches accept its interfaces in their configs and fall back to no-ops when
// none are given.
package observe
