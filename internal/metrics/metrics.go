// Package metrics groups all Prometheus instruments used across the
// application.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics is registered once at startup via New() and passed by pointer
// wherever needed.
type Metrics struct {
	HTTPRequests     *prometheus.CounterVec
	HTTPDuration     *prometheus.HistogramVec
	RateLimitDenials *prometheus.CounterVec
	AnilistRequests  *prometheus.CounterVec
}

// New registers all instruments with the given Prometheus registerer and
// returns the populated Metrics struct.
// Using a custom registry (instead of prometheus.DefaultRegisterer) keeps
// tests isolated and avoids global state.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests by method, route, and status class.",
		}, []string{"method", "route", "status"}),

		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),

		RateLimitDenials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rate_limit_denials_total",
			Help: "Requests rejected by the fixed-window rate limiter.",
		}, []string{"route"}),

		AnilistRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "anilist_requests_total",
			Help: "Outbound AniList search calls by outcome.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(
		m.HTTPRequests,
		m.HTTPDuration,
		m.RateLimitDenials,
		m.AnilistRequests,
	)

	return m
}
