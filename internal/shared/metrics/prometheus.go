package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	// Business metrics
	eventsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_created_total",
			Help: "Total number of events created",
		},
		[]string{"creator_level"},
	)

	delegationsAppended = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "delegations_appended_total",
			Help: "Total number of delegation set appends",
		},
		[]string{"target_set"},
	)

	eventStatusChanged = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "event_status_changed_total",
			Help: "Total number of event status changes",
		},
		[]string{"from_status", "to_status"},
	)

	participationUpdates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "participation_updates_total",
			Help: "Total number of participation record updates",
		},
		[]string{"status"},
	)

	adminLifecycleTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admin_lifecycle_transitions_total",
			Help: "Total number of admin lifecycle transitions",
		},
		[]string{"operation"},
	)

	authorizationDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authorization_decisions_total",
			Help: "Total number of authorization decisions",
		},
		[]string{"check", "decision"},
	)

	timelineEntriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "timeline_entries_total",
			Help: "Total number of status timeline entries appended",
		},
	)

	delegationRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "delegation_conflict_retries_total",
			Help: "Total number of internal retries on concurrent delegation conflicts",
		},
	)

	// Database metrics
	dbQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation"},
	)
)

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware creates HTTP metrics middleware
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		httpRequestsInFlight.Inc()
		defer httpRequestsInFlight.Dec()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start).Seconds()
		path := normalizePath(r.URL.Path)

		httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.statusCode)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// normalizePath normalizes URL paths for metrics to avoid cardinality explosion
func normalizePath(path string) string {
	if len(path) > 100 {
		return "/api/..."
	}
	return path
}

// --- Business metric helpers ---

// RecordEventCreated records an event creation
func RecordEventCreated(creatorLevel string) {
	eventsCreated.WithLabelValues(creatorLevel).Inc()
}

// RecordDelegationAppend records a delegation set append
func RecordDelegationAppend(targetSet string) {
	delegationsAppended.WithLabelValues(targetSet).Inc()
}

// RecordEventStatusChange records an event status change
func RecordEventStatusChange(fromStatus, toStatus string) {
	eventStatusChanged.WithLabelValues(fromStatus, toStatus).Inc()
}

// RecordParticipationUpdate records a participation decision
func RecordParticipationUpdate(status string) {
	participationUpdates.WithLabelValues(status).Inc()
}

// RecordLifecycleTransition records an admin lifecycle operation
func RecordLifecycleTransition(operation string) {
	adminLifecycleTransitions.WithLabelValues(operation).Inc()
}

// RecordAuthorizationDecision records an authorization decision
func RecordAuthorizationDecision(check string, allowed bool) {
	decision := "deny"
	if allowed {
		decision = "allow"
	}
	authorizationDecisions.WithLabelValues(check, decision).Inc()
}

// RecordTimelineEntry records a timeline append
func RecordTimelineEntry() {
	timelineEntriesTotal.Inc()
}

// RecordDelegationRetry records an internal conflict retry
func RecordDelegationRetry() {
	delegationRetries.Inc()
}

// RecordDBQuery records a database query duration
func RecordDBQuery(operation string, duration time.Duration) {
	dbQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}
