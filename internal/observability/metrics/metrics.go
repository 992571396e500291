package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bookinglean_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bookinglean_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	identifyResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bookinglean_login_identify_total",
		Help: "Identify-stage outcomes by result and matched role",
	}, []string{"result", "role"})

	authenticateResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bookinglean_login_authenticate_total",
		Help: "Authenticate-stage outcomes",
	}, []string{"result"})

	directoryLookupDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bookinglean_directory_lookup_duration_seconds",
		Help:    "Duration of identity directory lookups",
		Buckets: prometheus.DefBuckets,
	}, []string{"directory", "result"})

	ambiguousMatches = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bookinglean_login_ambiguous_matches_total",
		Help: "Identifiers matched in both directories within one tenant (data-integrity fault)",
	})

	crossTenantRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bookinglean_login_cross_tenant_rejections_total",
		Help: "Candidates rejected by the pre-issuance tenant membership re-check",
	})

	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bookinglean_active_sessions",
		Help: "Number of live resolved sessions",
	})

	sessionsIssued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bookinglean_sessions_issued_total",
		Help: "Resolved sessions issued by role",
	}, []string{"role"})
)

// ObserveHTTPRequest records an HTTP request metric
func ObserveHTTPRequest(method, path, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// ObserveIdentify records an identify-stage outcome. role is empty when
// no candidate was matched.
func ObserveIdentify(result, role string) {
	if role == "" {
		role = "none"
	}
	identifyResults.WithLabelValues(result, role).Inc()
}

// ObserveAuthenticate records an authenticate-stage outcome
func ObserveAuthenticate(result string) {
	authenticateResults.WithLabelValues(result).Inc()
}

// ObserveDirectoryLookup records one directory lookup with its result
func ObserveDirectoryLookup(directory, result string, duration time.Duration) {
	directoryLookupDuration.WithLabelValues(directory, result).Observe(duration.Seconds())
}

// ObserveAmbiguousMatch counts a both-directories match within one tenant
func ObserveAmbiguousMatch() {
	ambiguousMatches.Inc()
}

// ObserveCrossTenantRejection counts a failed membership re-check
func ObserveCrossTenantRejection() {
	crossTenantRejections.Inc()
}

// ObserveSessionIssued counts an issued session by role
func ObserveSessionIssued(role string) {
	sessionsIssued.WithLabelValues(role).Inc()
}

// SetActiveSessions sets the live session gauge
func SetActiveSessions(count int) {
	if count < 0 {
		count = 0
	}
	activeSessions.Set(float64(count))
}
