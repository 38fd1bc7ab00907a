package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quickblog_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "quickblog_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// MediaOperations counts Media Host calls by operation and outcome.
	MediaOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quickblog_media_operations_total",
		Help: "Total number of media host operations by operation and result",
	}, []string{"operation", "result"})

	// MediaOperationLatency records Media Host call latency.
	MediaOperationLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "quickblog_media_operation_latency_seconds",
		Help:    "Media host operation latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	// OrphanedAssets counts uploaded assets that could not be released after a failed write.
	OrphanedAssets = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quickblog_media_orphaned_assets_total",
		Help: "Total number of media assets left without a referencing post",
	})

	// SlugCollisions counts candidate slugs that were already taken.
	SlugCollisions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quickblog_slug_collisions_total",
		Help: "Total number of slug candidates rejected because they were taken",
	})

	// CacheResults counts cache-aside lookups by outcome.
	CacheResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quickblog_cache_results_total",
		Help: "Cache-aside lookups by result (hit, miss, error)",
	}, []string{"result"})
)

// TrackMedia returns a function that records the outcome and latency of a
// Media Host call. Pass the call's error to the returned function.
func TrackMedia(operation string) func(error) {
	start := time.Now()
	return func(err error) {
		MediaOperationLatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
		result := "success"
		if err != nil {
			result = "error"
		}
		MediaOperations.WithLabelValues(operation, result).Inc()
	}
}

// ObserveQuery records the latency of a database query.
func ObserveQuery(operation, table string, start time.Time) {
	DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
}
