// Package metrics exposes Prometheus instruments for registration forms.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels.
const (
	OutcomeInvalid   = "invalid"
	OutcomeInFlight  = "in_flight"
	OutcomeCreated   = "created"
	OutcomeRejected  = "rejected"
	OutcomeFailed    = "failed"
	OutcomeCancelled = "cancelled"
)

var durationBuckets = []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// Metrics groups the form instruments.
type Metrics struct {
	Submissions *prometheus.CounterVec
	Duration    *prometheus.HistogramVec
	ActiveForms prometheus.Gauge
}

// New registers the instruments on reg. A nil reg uses a private registry,
// which keeps tests from colliding on the default one.
func New(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		Submissions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "submissions_total",
				Help:      "Registration submit attempts by outcome",
			},
			[]string{"outcome"},
		),
		Duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "submission_duration_seconds",
				Help:      "Latency of the outbound registration request",
				Buckets:   durationBuckets,
			},
			[]string{"outcome"},
		),
		ActiveForms: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "forms_active",
				Help:      "Mounted registration form instances",
			},
		),
	}
}

// Attempt counts a submit attempt that never reached the network.
func (m *Metrics) Attempt(outcome string) {
	if m == nil {
		return
	}
	m.Submissions.WithLabelValues(outcome).Inc()
}

// Settled records a finished outbound request.
func (m *Metrics) Settled(outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.Submissions.WithLabelValues(outcome).Inc()
	m.Duration.WithLabelValues(outcome).Observe(took.Seconds())
}

// Mounted adjusts the active form gauge by delta.
func (m *Metrics) Mounted(delta int) {
	if m == nil {
		return
	}
	m.ActiveForms.Add(float64(delta))
}
