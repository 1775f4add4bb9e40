package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	OutcomeAllowed  = "allowed"
	OutcomeDenied   = "denied"
	OutcomeDegraded = "degraded"
	OutcomeInvalid  = "invalid_window"
)

type Metrics struct {
	Decisions     *prometheus.CounterVec
	StoreFailures prometheus.Counter
	Degraded      prometheus.Gauge
}

// New registers rate limit metrics on reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		Decisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "senderguard_ratelimit_decisions_total",
			Help: "Rate limit decisions by policy and outcome",
		}, []string{"policy", "outcome"}),
		StoreFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "senderguard_ratelimit_store_failures_total",
			Help: "Counter store calls that failed or timed out",
		}),
		Degraded: factory.NewGauge(prometheus.GaugeOpts{
			Name: "senderguard_ratelimit_store_degraded",
			Help: "1 while the counter store is considered unavailable",
		}),
	}
}

func (m *Metrics) ObserveDecision(policy, outcome string) {
	m.Decisions.WithLabelValues(policy, outcome).Inc()
}

func (m *Metrics) IncrementStoreFailures() {
	m.StoreFailures.Inc()
}

func (m *Metrics) SetDegraded(degraded bool) {
	if degraded {
		m.Degraded.Set(1)
		return
	}
	m.Degraded.Set(0)
}
