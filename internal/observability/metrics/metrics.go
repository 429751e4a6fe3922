// Package metrics provides Prometheus metrics for the edge filter, the identity
// provider client and the HTTP server.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	obserrors "github.com/target/sitegate/internal/observability/errors"
)

const namespace = "sitegate"

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by method, route and status code",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "route"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_in_flight",
			Help:      "Number of HTTP requests currently being processed",
		},
	)

	EdgeDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "edge",
			Name:      "decisions_total",
			Help:      "Edge filter decisions by route class, action and reason",
		},
		[]string{"route_class", "action", "reason"},
	)

	SessionReadFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_read_failures_total",
			Help:      "Session reads that degraded to an anonymous caller, by outcome",
		},
		[]string{"outcome"},
	)

	SessionRotationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_rotations_total",
			Help:      "Sessions refreshed by the session reader",
		},
	)

	ProviderRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "identity_provider",
			Name:      "requests_total",
			Help:      "Identity provider calls by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	ProviderRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "identity_provider",
			Name:      "request_duration_seconds",
			Help:      "Identity provider call latency in seconds",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	CallbackOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "callback_outcomes_total",
			Help:      "Auth callback results by outcome",
		},
		[]string{"outcome"},
	)
)

// Callback outcome labels.
const (
	CallbackProviderError = "provider_error"
	CallbackMissingCode   = "missing_code"
	CallbackCodeReused    = "code_reused"
	CallbackExchangeError = "exchange_error"
	CallbackNewUser       = "new_user"
	CallbackSignedIn      = "signed_in"
)

// ObserveProviderCall records one identity provider round trip.
func ObserveProviderCall(operation string, started time.Time, err error) {
	ProviderRequestsTotal.WithLabelValues(operation, obserrors.Classify(err)).Inc()
	ProviderRequestDuration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}

// ObserveDecision records one edge filter decision.
func ObserveDecision(routeClass, action, reason string) {
	if reason == "" {
		reason = "none"
	}
	EdgeDecisionsTotal.WithLabelValues(routeClass, action, reason).Inc()
}

// ObserveSessionFailure records a session read that degraded to anonymous.
func ObserveSessionFailure(err error) {
	SessionReadFailuresTotal.WithLabelValues(obserrors.Classify(err)).Inc()
}

// ObserveCallback records an auth callback outcome.
func ObserveCallback(outcome string) {
	CallbackOutcomesTotal.WithLabelValues(outcome).Inc()
}
