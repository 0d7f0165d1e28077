package obs

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Slack API and reconciliation metrics.
var (
	slackCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slacksync_slack_api_calls_total",
			Help: "Slack Web API calls by method and outcome.",
		},
		[]string{"method", "outcome"},
	)

	membershipOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slacksync_membership_operations_total",
			Help: "Invite and kick operations by outcome.",
		},
		[]string{"op", "outcome"},
	)

	rateLimitRetriesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "slacksync_rate_limit_retries_total",
		Help: "Retries triggered by Slack rate-limit responses.",
	})

	sweepDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "slacksync_sweep_duration_seconds",
		Help:    "Duration of full reconciliation sweeps.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	})

	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "slacksync_http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slacksync_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "slacksync_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

// Init registers all metrics with the default registry.
func Init() {
	prometheus.MustRegister(
		slackCallsTotal,
		membershipOpsTotal,
		rateLimitRetriesTotal,
		sweepDuration,
		httpInFlight,
		httpRequestsTotal,
		httpRequestDuration,
	)
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveSlackCall records one outbound API call.
func ObserveSlackCall(method, outcome string) {
	slackCallsTotal.WithLabelValues(method, outcome).Inc()
}

// ObserveMembershipOp records one invite or kick attempt.
func ObserveMembershipOp(op, outcome string) {
	membershipOpsTotal.WithLabelValues(op, outcome).Inc()
}

// ObserveRateLimitRetry records a retry caused by a rate-limit response.
func ObserveRateLimitRetry() {
	rateLimitRetriesTotal.Inc()
}

// ObserveSweep records the duration of a completed sweep.
func ObserveSweep(d time.Duration) {
	sweepDuration.Observe(d.Seconds())
}

// CanonicalPath collapses identifier segments so metric label cardinality
// stays bounded.
func CanonicalPath(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "/"
	}
	parts := strings.Split(path, "/")
	if len(parts) == 4 && parts[1] == "v1" && parts[2] == "users" {
		parts[3] = ":id"
	}
	if len(parts) == 5 && parts[1] == "v1" && parts[2] == "users" && parts[4] == "conversations" {
		parts[3] = ":id"
	}
	if len(parts) == 4 && parts[1] == "v1" && parts[2] == "sync" {
		parts[3] = ":id"
	}
	return strings.Join(parts, "/")
}

// Instrument wraps an HTTP handler with request metrics.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := CanonicalPath(r.URL.Path)
		method := r.Method

		httpInFlight.Inc()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: 200}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(method, path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpInFlight.Dec()
	})
}

// statusWriter captures the response code for metric labels.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
