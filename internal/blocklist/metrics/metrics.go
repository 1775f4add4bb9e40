package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for blocklist mutations and matching runs.
type Metrics struct {
	Mutations        *prometheus.CounterVec
	MutationFailures *prometheus.CounterVec
	MatchRuns        *prometheus.CounterVec
	MatchEntries     *prometheus.CounterVec
	MatchRunDuration prometheus.Histogram
}

// New registers blocklist metrics on reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		Mutations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "senderguard_blocklist_mutations_total",
			Help: "Audited blocklist mutations by action",
		}, []string{"action"}),
		MutationFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "senderguard_blocklist_audit_failures_total",
			Help: "Failed blocklist mutations by the stage that failed",
		}, []string{"stage"}),
		MatchRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "senderguard_match_runs_total",
			Help: "Matching runs by outcome (ok, partial, failed, empty)",
		}, []string{"outcome"}),
		MatchEntries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "senderguard_match_entries_total",
			Help: "Per-entry match counter updates by outcome",
		}, []string{"outcome"}),
		MatchRunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "senderguard_match_run_duration_seconds",
			Help:    "Duration of matching runs",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
	}
}

func (m *Metrics) IncrementMutation(action string) {
	m.Mutations.WithLabelValues(action).Inc()
}

func (m *Metrics) IncrementMutationFailure(stage string) {
	m.MutationFailures.WithLabelValues(stage).Inc()
}

func (m *Metrics) ObserveMatchRun(outcome string, start time.Time, succeeded, failed int) {
	m.MatchRuns.WithLabelValues(outcome).Inc()
	m.MatchRunDuration.Observe(time.Since(start).Seconds())
	m.MatchEntries.WithLabelValues("ok").Add(float64(succeeded))
	m.MatchEntries.WithLabelValues("failed").Add(float64(failed))
}
