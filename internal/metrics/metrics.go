// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "billpay"

// Auth verification outcomes.
const (
	OutcomeSuccess       = "success"
	OutcomeInvalidFormat = "invalid_format"
	OutcomeNotFound      = "not_found"
	OutcomeDisabled      = "disabled"
	OutcomeExpired       = "expired"
	OutcomeError         = "error"
)

var (
	// Registry holds the application collectors plus Go/process collectors.
	Registry = prometheus.NewRegistry()

	apiKeyVerifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "api_key_verifications_total",
			Help:      "API key verifications by outcome.",
		},
		[]string{"outcome"},
	)

	apiKeysIssued = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "api_keys_issued_total",
			Help:      "API keys issued, by reason (register or regenerate).",
		},
		[]string{"reason"},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "route"},
	)

	rateLimited = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter.",
		},
	)

	paymentsSettled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "billing",
			Name:      "payments_settled_total",
			Help:      "Payments moved from pending to completed.",
		},
	)

	billsOverdue = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "billing",
			Name:      "bills_marked_overdue_total",
			Help:      "Bills moved from pending to overdue by the sweep.",
		},
	)
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		apiKeyVerifications,
		apiKeysIssued,
		httpRequests,
		httpDuration,
		rateLimited,
		paymentsSettled,
		billsOverdue,
	)
}

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

func RecordAPIKeyVerification(outcome string) {
	apiKeyVerifications.WithLabelValues(outcome).Inc()
}

func RecordAPIKeyIssued(reason string) {
	apiKeysIssued.WithLabelValues(reason).Inc()
}

func RecordHTTPRequest(method, route, status string, seconds float64) {
	httpRequests.WithLabelValues(method, route, status).Inc()
	httpDuration.WithLabelValues(method, route).Observe(seconds)
}

func RecordRateLimited() {
	rateLimited.Inc()
}

func RecordPaymentSettled() {
	paymentsSettled.Inc()
}

func RecordBillsOverdue(n int64) {
	billsOverdue.Add(float64(n))
}

// APIKeyVerifications exposes the verification counter for assertions.
func APIKeyVerifications() *prometheus.CounterVec {
	return apiKeyVerifications
}

// HTTPRequests exposes the request counter for assertions.
func HTTPRequests() *prometheus.CounterVec {
	return httpRequests
}
