package scgi

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Request outcomes recorded in requests_total.
const (
	OutcomeOK           = "ok"
	OutcomeHandlerError = "handler_error"
	OutcomeBadRequest   = "bad_request"
	OutcomePanic        = "panic"
	OutcomeIOError      = "io_error"
)

// Metrics are the Prometheus collectors of a Server.
type Metrics struct {
	requests *prometheus.CounterVec
	inFlight prometheus.Gauge
	duration prometheus.Histogram
}

// NewMetrics creates the server collectors and registers them on reg.
// A nil reg creates unregistered collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "fuse",
				Subsystem: "scgi",
				Name:      "requests_total",
				Help:      "Total number of SCGI requests by outcome",
			},
			[]string{"outcome"},
		),
		inFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "fuse",
				Subsystem: "scgi",
				Name:      "in_flight_requests",
				Help:      "Number of requests being served",
			},
		),
		duration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "fuse",
				Subsystem: "scgi",
				Name:      "request_duration_seconds",
				Help:      "Time from accepting a connection to closing it",
				Buckets:   prometheus.DefBuckets,
			},
		),
	}
}

func (m *Metrics) begin() {
	if m != nil {
		m.inFlight.Inc()
	}
}

func (m *Metrics) end(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.inFlight.Dec()
	m.requests.WithLabelValues(outcome).Inc()
	m.duration.Observe(seconds)
}
