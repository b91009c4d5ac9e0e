// Package metrics defines the Prometheus collectors exported at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups every collector the service records into.
type Metrics struct {
	RateQuotes      *prometheus.CounterVec
	StateLoads      *prometheus.CounterVec
	StateSaves      *prometheus.CounterVec
	LoginAttempts   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg.
// A nil reg leaves them unregistered, which is what tests want.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RateQuotes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "splitpay",
			Name:      "rate_quotes_total",
			Help:      "Exchange rate quotes served, by source (live or fallback).",
		}, []string{"source"}),
		StateLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "splitpay",
			Name:      "state_loads_total",
			Help:      "State loads, by outcome.",
		}, []string{"status"}),
		StateSaves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "splitpay",
			Name:      "state_saves_total",
			Help:      "State rewrites, by triggering action.",
		}, []string{"action"}),
		LoginAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "splitpay",
			Name:      "login_attempts_total",
			Help:      "Password gate attempts, by result.",
		}, []string{"result"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "splitpay",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "code"}),
	}
	if reg != nil {
		reg.MustRegister(m.RateQuotes, m.StateLoads, m.StateSaves, m.LoginAttempts, m.RequestDuration)
	}
	return m
}

// Nop returns unregistered collectors, for callers that do not export metrics.
func Nop() *Metrics {
	return New(nil)
}
