// Package health reports whether stores and caches are serving well.
//
// A Checker reports a Status: Healthy, Degraded, or Unhealthy. StoreChecker
// watches a store's counters for callback failures and a collapsing hit
// ratio. CircuitChecker watches the circuit breaker that guards a cache's
// producer: an open circuit means only stored values can be served.
//
// # Aggregating Health Checks
//
//	agg := health.NewAggregator()
//	agg.Register("scores", health.NewStoreChecker(scores, health.StoreCheckerConfig{}))
//	agg.Register("scores.producer", health.NewCircuitChecker("scores", scores))
//
//	results := agg.CheckAll(ctx)
//	overall := agg.OverallStatus(results)
package health
