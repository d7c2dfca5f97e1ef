package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Cache metrics
	CacheHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "homeledger_cache_hits_total",
			Help: "Total number of BucketCache.Get/Range calls resolved by a resident entry",
		},
	)

	CacheMissesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "homeledger_cache_misses_total",
			Help: "Total number of BucketCache.Get/Range calls that required a lazy load",
		},
	)

	CacheEvictionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "homeledger_cache_evictions_total",
			Help: "Total number of resident entries evicted from the LRU",
		},
	)

	CacheWriteBacksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "homeledger_cache_writebacks_total",
			Help: "Total number of dirty buckets persisted on eviction or flush",
		},
	)

	ActiveItemsGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "homeledger_cache_active_items",
			Help: "Current number of resident entries in the BucketCache",
		},
	)

	// Storage metrics
	BucketLoadDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "homeledger_bucket_load_duration_seconds",
			Help:    "Time taken to load one bucket from a BucketSource",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider"},
	)

	BucketSaveDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "homeledger_bucket_save_duration_seconds",
			Help:    "Time taken to save one bucket to a BucketSource",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider"},
	)

	// Ledger metrics
	LedgerSweepDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "homeledger_ledger_sweep_duration_seconds",
			Help:    "Time taken by LedgerEngine.BuildTotals for a full sweep",
			Buckets: prometheus.DefBuckets,
		},
	)

	LedgerOperationsAppliedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "homeledger_ledger_operations_applied_total",
			Help: "Total number of operations applied by OperationSemantics",
		},
	)

	// API metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "homeledger_api_requests_total",
			Help: "Total number of API requests by path and status",
		},
		[]string{"path", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "homeledger_api_request_duration_seconds",
			Help:    "API request duration in seconds by path",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path"},
	)
)

func init() {
	prometheus.MustRegister(CacheHitsTotal)
	prometheus.MustRegister(CacheMissesTotal)
	prometheus.MustRegister(CacheEvictionsTotal)
	prometheus.MustRegister(CacheWriteBacksTotal)
	prometheus.MustRegister(ActiveItemsGauge)

	prometheus.MustRegister(BucketLoadDuration)
	prometheus.MustRegister(BucketSaveDuration)

	prometheus.MustRegister(LedgerSweepDuration)
	prometheus.MustRegister(LedgerOperationsAppliedTotal)

	prometheus.MustRegister(APIRequestsTotal)
	prometheus.MustRegister(APIRequestDuration)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(t.Duration().Seconds())
}

// ObserveDurationVec records the duration to a histogram vector under label.
func (t *Timer) ObserveDurationVec(histogram *prometheus.HistogramVec, label string) {
	histogram.WithLabelValues(label).Observe(t.Duration().Seconds())
}
