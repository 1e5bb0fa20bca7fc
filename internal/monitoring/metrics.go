package monitoring

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workpulse_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "workpulse_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Leaderboard cache
	CacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workpulse_cache_requests_total",
			Help: "Leaderboard cache lookups by result",
		},
		[]string{"result"}, // "hit", "miss"
	)

	// Aggregation paths
	PreferredPath = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workpulse_preferred_path_total",
			Help: "Pre-aggregated procedure calls by outcome",
		},
		[]string{"procedure", "outcome"}, // "ok", "unavailable"
	)

	StoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workpulse_store_errors_total",
			Help: "Raw-row store failures surfaced to callers",
		},
		[]string{"operation"},
	)

	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "workpulse_breaker_state",
			Help: "Circuit breaker state per procedure (0=closed, 1=half-open, 2=open)",
		},
		[]string{"procedure"},
	)

	RateLimited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workpulse_rate_limited_total",
			Help: "Requests rejected by the rate limiter",
		},
		[]string{"backend"}, // "redis", "memory"
	)
)

// RecordHTTPRequest records one served request.
func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	HTTPRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordCacheLookup records a leaderboard cache hit or miss.
func RecordCacheLookup(hit bool) {
	if hit {
		CacheRequests.WithLabelValues("hit").Inc()
		return
	}
	CacheRequests.WithLabelValues("miss").Inc()
}

// RecordPreferredPath records whether a procedure served the request.
func RecordPreferredPath(procedure string, ok bool) {
	outcome := "ok"
	if !ok {
		outcome = "unavailable"
	}
	PreferredPath.WithLabelValues(procedure, outcome).Inc()
}

// RecordStoreError records a failure of the raw-row path.
func RecordStoreError(operation string) {
	StoreErrors.WithLabelValues(operation).Inc()
}

// SetBreakerState exports a breaker state as 0, 1 or 2.
func SetBreakerState(procedure string, state int) {
	BreakerState.WithLabelValues(procedure).Set(float64(state))
}

// RecordRateLimited records a rejected request.
func RecordRateLimited(backend string) {
	RateLimited.WithLabelValues(backend).Inc()
}
