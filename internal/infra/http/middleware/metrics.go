package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "console_http_requests_total",
			Help: "Total number of console HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "console_http_request_duration_seconds",
			Help:    "Duration of console HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	activeConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "console_http_active_connections",
			Help: "Number of in-flight console HTTP requests",
		},
	)

	apiCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_api_calls_total",
			Help: "Calls made to the CRM backend by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	dashboardPolls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashboard_polls_total",
			Help: "Dashboard refreshes by outcome",
		},
		[]string{"outcome"},
	)

	remindersPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "followup_reminders_published_total",
			Help: "Follow-up reminders queued",
		},
	)

	remindersSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "followup_reminders_sent_total",
			Help: "Follow-up reminder deliveries by status",
		},
		[]string{"status"},
	)
)

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		activeConnections.Inc()
		defer activeConnections.Dec()

		rw := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(rw, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(rw.statusCode)

		httpRequestsTotal.WithLabelValues(r.Method, route, status).Inc()
		httpRequestDuration.WithLabelValues(r.Method, route).Observe(duration)
	})
}

func RecordAPICall(operation, outcome string) {
	apiCalls.WithLabelValues(operation, outcome).Inc()
}

func RecordDashboardPoll(outcome string) {
	dashboardPolls.WithLabelValues(outcome).Inc()
}

func RecordReminderPublished() {
	remindersPublished.Inc()
}

func RecordReminderSent(status string) {
	remindersSent.WithLabelValues(status).Inc()
}
