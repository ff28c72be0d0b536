package observability

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~20s
		},
		[]string{"method", "route", "status"},
	)

	lookupBatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "lookup_batch_size",
			Help:    "Number of locations per lookup request.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		},
	)

	buildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_build_info",
			Help: "Build information for the binary.",
		},
		[]string{"version"},
	)

	cacheResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_results_total",
			Help: "Result cache lookups by tier and outcome.",
		},
		[]string{"tier", "outcome"},
	)

	cacheOpSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cache_op_seconds",
			Help:    "Latency of shared cache operations in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
		[]string{"op", "result"},
	)

	storeQuerySeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "store_query_seconds",
			Help:    "Latency of spatial index store calls in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
		},
		[]string{"op", "result"},
	)

	sampleResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "elevation_samples_total",
			Help: "Raster sampling attempts by outcome.",
		},
		[]string{"outcome"},
	)

	lookupResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "elevation_lookups_total",
			Help: "Point lookups by outcome.",
		},
		[]string{"outcome"},
	)

	ingestFiles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_files_total",
			Help: "Raster files seen during index regeneration.",
		},
		[]string{"result", "reason"},
	)

	invalidationEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "invalidation_events_total",
			Help: "Index change events published or applied.",
		},
		[]string{"direction", "op", "result"},
	)
)

func ObserveHTTP(method, route string, status int, durationSeconds float64) {
	st := strconv.Itoa(status)
	httpRequestsTotal.WithLabelValues(method, route, st).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route, st).Observe(durationSeconds)
}

func ObserveBatchSize(n int) {
	lookupBatchSize.Observe(float64(n))
}

func IncCacheHit(tier string) {
	cacheResults.WithLabelValues(tier, "hit").Inc()
}

func IncCacheMiss(tier string) {
	cacheResults.WithLabelValues(tier, "miss").Inc()
}

func ObserveCacheOp(op string, err error, durationSeconds float64) {
	cacheOpSeconds.WithLabelValues(op, result(err)).Observe(durationSeconds)
}

func ObserveStoreQuery(op string, err error, durationSeconds float64) {
	storeQuerySeconds.WithLabelValues(op, result(err)).Observe(durationSeconds)
}

func IncSample(outcome string) {
	sampleResults.WithLabelValues(outcome).Inc()
}

func IncLookup(outcome string) {
	lookupResults.WithLabelValues(outcome).Inc()
}

func IncIngest(result, reason string) {
	ingestFiles.WithLabelValues(result, reason).Inc()
}

// IncInvalidation counts an event; direction is "published" or "consumed".
func IncInvalidation(direction, op string, err error) {
	invalidationEvents.WithLabelValues(direction, op, result(err)).Inc()
}

func ExposeBuildInfo(version string) {
	if version == "" {
		version = "dev"
	}
	buildInfo.WithLabelValues(version).Set(1)
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
