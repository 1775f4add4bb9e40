package stream

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the audit stream mirror.
type Metrics struct {
	Published      prometheus.Counter
	PublishFailed  prometheus.Counter
	Dropped        prometheus.Counter
	CircuitBreaker prometheus.Gauge
}

// NewMetrics registers the mirror metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Published: f.NewCounter(prometheus.CounterOpts{
			Name: "senderguard_audit_stream_published_total",
			Help: "Audit records mirrored to the stream",
		}),
		PublishFailed: f.NewCounter(prometheus.CounterOpts{
			Name: "senderguard_audit_stream_publish_failures_total",
			Help: "Audit records that could not be mirrored to the stream",
		}),
		Dropped: f.NewCounter(prometheus.CounterOpts{
			Name: "senderguard_audit_stream_dropped_total",
			Help: "Audit records dropped from the mirror buffer because it was full",
		}),
		CircuitBreaker: f.NewGauge(prometheus.GaugeOpts{
			Name: "senderguard_audit_stream_circuit_open",
			Help: "Stream mirror circuit state (0=closed/healthy, 1=open/unhealthy)",
		}),
	}
}
