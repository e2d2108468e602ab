package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for the requests counter.
const (
	resultApplied    = "applied"
	resultSuperseded = "superseded"
	resultFailed     = "failed"
)

// Metrics holds the channel's Prometheus collectors.
type Metrics struct {
	Requests  *prometheus.CounterVec
	Fallbacks prometheus.Counter
	Duration  prometheus.Histogram
	Queued    prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gitpanel",
			Subsystem: "dispatch",
			Name:      "requests_total",
			Help:      "Diff build requests by outcome (applied, superseded, failed).",
		}, []string{"result"}),
		Fallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gitpanel",
			Subsystem: "dispatch",
			Name:      "fallback_attempts_total",
			Help:      "Builds retried against the fallback patch.",
		}),
		Duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "gitpanel",
			Subsystem: "dispatch",
			Name:      "build_duration_seconds",
			Help:      "Time spent building one renderable diff, fallback included.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
		}),
		Queued: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "gitpanel",
			Subsystem: "dispatch",
			Name:      "queued_requests",
			Help:      "Requests waiting for a worker.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Requests, m.Fallbacks, m.Duration, m.Queued)
	}
	return m
}
