// Package metrics holds the Prometheus collectors for the session and
// dashboard layers. Collectors register on the default registry at init and
// are served by the server's /metrics route.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SessionOperations counts session operations by outcome.
	SessionOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hackhub_session_operations_total",
		Help: "Session operations by operation and result",
	}, []string{"operation", "result"})

	// ProfileFallbacks counts profiles built from identity data because the
	// backend record was unavailable.
	ProfileFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hackhub_profile_fallbacks_total",
		Help: "Profiles constructed from identity-provider data only",
	})

	// SyncFailures counts failed post-login backend syncs.
	SyncFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hackhub_login_sync_failures_total",
		Help: "Best-effort backend syncs after login that failed",
	})

	// BackendRequests counts backend calls by operation and status code
	// ("error" when no response arrived).
	BackendRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hackhub_backend_requests_total",
		Help: "Application backend requests by operation and status",
	}, []string{"operation", "status"})

	// BackendLatency records backend call latency.
	BackendLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "hackhub_backend_request_seconds",
		Help:    "Application backend request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	// CacheLookups counts SWR cache lookups by result (hit, stale, miss).
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hackhub_cache_lookups_total",
		Help: "Stale-while-revalidate cache lookups by result",
	}, []string{"result"})

	// CacheRevalidations counts background revalidations by result.
	CacheRevalidations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hackhub_cache_revalidations_total",
		Help: "Background cache revalidations by result",
	}, []string{"result"})

	// ActiveSessions is the number of browser sessions held by the registry.
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hackhub_active_sessions",
		Help: "Browser sessions currently held in memory",
	})

	// HTTPRequests counts served requests by method, route pattern and status.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hackhub_http_requests_total",
		Help: "HTTP requests by method, route and status",
	}, []string{"method", "route", "status"})

	// HTTPDuration records request handling time per route pattern.
	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "hackhub_http_request_seconds",
		Help:    "HTTP request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})
)

// TrackBackend starts timing a backend call. The returned func records the
// latency and the status (0 means no response).
func TrackBackend(operation string) func(status int) {
	start := time.Now()
	return func(status int) {
		BackendLatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
		label := "error"
		if status > 0 {
			label = strconv.Itoa(status)
		}
		BackendRequests.WithLabelValues(operation, label).Inc()
	}
}

// ObserveResult records a session operation outcome.
func ObserveResult(operation string, success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	SessionOperations.WithLabelValues(operation, result).Inc()
}
