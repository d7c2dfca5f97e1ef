/*
Package metrics provides Prometheus metrics for the ledger store.

	┌──────────────────── METRICS SYSTEM ──────────────────────┐
	│  Prometheus Registry (MustRegister at package init)        │
	│                                                            │
	│  Cache:   hits/misses/evictions/writebacks, active items  │
	│  Storage: bucket load/save duration, by provider          │
	│  Ledger:  sweep duration, operations applied              │
	│  API:     request count/duration, by path                 │
	│                                                            │
	│  Handler() -> promhttp.Handler(), mounted at /metrics      │
	└────────────────────────────────────────────────────────────┘
*/
package metrics
