package backend

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus metrics for backend calls.
type Metrics struct {
	CallsTotal   *prometheus.CounterVec
	CallDuration *prometheus.HistogramVec
}

// NewMetrics registers and returns backend metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "medtriage_backend_calls_total",
			Help: "Total backend calls by operation, calling route and outcome.",
		}, []string{"operation", "route", "outcome"}),
		CallDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "medtriage_backend_call_duration_seconds",
			Help:    "Backend call latency by operation.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms .. ~41s
		}, []string{"operation"}),
	}

	reg.MustRegister(m.CallsTotal, m.CallDuration)
	return m
}

// Observer returns a CallObserver that records into m.
func (m *Metrics) Observer() CallObserver {
	return CallObserverFunc(func(_ context.Context, op, route, outcome string, dur time.Duration) {
		m.CallsTotal.WithLabelValues(op, route, outcome).Inc()
		m.CallDuration.WithLabelValues(op).Observe(dur.Seconds())
	})
}
