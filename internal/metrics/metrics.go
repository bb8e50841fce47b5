// Package metrics holds the prometheus collectors exported on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the collectors used by the server
type Metrics struct {
	ProviderCalls    *prometheus.CounterVec
	ProviderLatency  *prometheus.HistogramVec
	UpstreamCalls    *prometheus.CounterVec
	HTTPRequests     *prometheus.CounterVec
	RejectedReplays  prometheus.Counter
	RateLimitedCalls prometheus.Counter
}

// New creates the collectors and registers them with reg
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ProviderCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bustrack",
			Name:      "identity_provider_calls_total",
			Help:      "Identity provider calls by operation and outcome.",
		}, []string{"operation", "outcome"}),
		ProviderLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "bustrack",
			Name:      "identity_provider_call_seconds",
			Help:      "Identity provider call latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		UpstreamCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bustrack",
			Name:      "upstream_calls_total",
			Help:      "Forwarded fleet service calls by service and status class.",
		}, []string{"service", "status"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bustrack",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
		RejectedReplays: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bustrack",
			Name:      "challenge_replays_rejected_total",
			Help:      "Challenge sessions presented more than once.",
		}),
		RateLimitedCalls: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bustrack",
			Name:      "rate_limited_requests_total",
			Help:      "Requests rejected by the auth rate limiter.",
		}),
	}

	reg.MustRegister(m.ProviderCalls, m.ProviderLatency, m.UpstreamCalls, m.HTTPRequests, m.RejectedReplays, m.RateLimitedCalls)
	return m
}

// ObserveProviderCall records the outcome and latency of one identity provider call.
// A nil receiver is a no-op so adapters can run without metrics.
func (m *Metrics) ObserveProviderCall(operation string, start time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.ProviderCalls.WithLabelValues(operation, outcome).Inc()
	m.ProviderLatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// ObserveUpstream records a forwarded call; status is the HTTP status or 0 on transport failure
func (m *Metrics) ObserveUpstream(service string, status int) {
	if m == nil {
		return
	}
	class := "error"
	switch {
	case status >= 500:
		class = "5xx"
	case status >= 400:
		class = "4xx"
	case status >= 200:
		class = "2xx"
	}
	m.UpstreamCalls.WithLabelValues(service, class).Inc()
}
