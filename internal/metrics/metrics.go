// Package metrics exposes Prometheus collectors for the linter service.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	lintRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storylint_runs_total",
			Help: "Total number of lint runs, labeled by site and worst status.",
		},
		[]string{"site", "status"},
	)

	lintVerdictsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storylint_check_outcomes_total",
			Help: "Total number of check outcomes, labeled by check and status.",
		},
		[]string{"check", "status"},
	)

	lintCheckDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storylint_check_duration_seconds",
			Help:    "Histogram of check durations, labeled by check.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"check"},
	)

	poolInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "storylint_fetch_pool_in_flight",
			Help: "Number of outbound calls currently holding a fetch pool slot.",
		},
	)

	poolWaitSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "storylint_fetch_pool_wait_seconds",
			Help:    "Histogram of time spent waiting for a fetch pool slot.",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		},
	)

	outboundRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storylint_outbound_requests_total",
			Help: "Total number of outbound requests issued by checks, labeled by method and code.",
		},
		[]string{"method", "code"},
	)

	rateLimitedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "storylint_rate_limited_requests_total",
			Help: "Total number of API requests rejected by the rate limiter.",
		},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests, labeled by method and code.",
		},
		[]string{"method", "code"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, labeled by method and route.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"method", "route"},
	)
)

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveRun counts a finished lint run.
func ObserveRun(site string, worst string) {
	lintRunsTotal.WithLabelValues(SanitizeSite(site), worst).Inc()
}

// ObserveCheck records the outcome and duration of one check.
func ObserveCheck(check string, status string, duration time.Duration) {
	lintVerdictsTotal.WithLabelValues(check, status).Inc()
	lintCheckDurationSeconds.WithLabelValues(check).Observe(duration.Seconds())
}

// IncPoolInFlight increments the fetch pool gauge.
func IncPoolInFlight() {
	poolInFlight.Inc()
}

// DecPoolInFlight decrements the fetch pool gauge.
func DecPoolInFlight() {
	poolInFlight.Dec()
}

// ObservePoolWait records how long a caller waited for a slot.
func ObservePoolWait(d time.Duration) {
	poolWaitSeconds.Observe(d.Seconds())
}

// ObserveOutbound counts one outbound request. A zero code marks a
// transport failure.
func ObserveOutbound(method string, code int) {
	label := strconv.Itoa(code)
	if code == 0 {
		label = "error"
	}
	outboundRequestsTotal.WithLabelValues(method, label).Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveRateLimited counts one request rejected by the API rate limiter.
func ObserveRateLimited() {
	rateLimitedTotal.Inc()
}
