package observability

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aretw0/concierge/pkg/domain"
)

// Metrics records engine activity as Prometheus series.
type Metrics struct {
	nodeVisits     *prometheus.CounterVec
	effectDuration *prometheus.HistogramVec
	effectFailures *prometheus.CounterVec
	pauses         *prometheus.CounterVec
	runOutcomes    *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them on reg.
// A nil reg uses prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		nodeVisits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "concierge_node_visits_total",
				Help: "Total number of node executions",
			},
			[]string{"node", "kind"},
		),
		effectDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "concierge_effect_duration_seconds",
				Help:    "Duration of effect invocations",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"capability"},
		),
		effectFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "concierge_effect_failures_total",
				Help: "Total number of effect invocations that reported an error",
			},
			[]string{"capability"},
		),
		pauses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "concierge_pauses_total",
				Help: "Total number of runs paused before a gated node",
			},
			[]string{"node"},
		),
		runOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "concierge_run_outcomes_total",
				Help: "Outcomes returned by start, resume and continue",
			},
			[]string{"outcome"},
		),
	}
	for _, c := range []prometheus.Collector{m.nodeVisits, m.effectDuration, m.effectFailures, m.pauses, m.runOutcomes} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Hooks returns lifecycle hooks feeding the collectors.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnNodeEnter: func(_ context.Context, e *domain.NodeEvent) {
			m.nodeVisits.WithLabelValues(e.Node, string(e.Kind)).Inc()
		},
		OnEffectReturn: func(_ context.Context, e *domain.EffectEvent) {
			m.effectDuration.WithLabelValues(e.Capability).Observe(e.Duration.Seconds())
			if e.IsError {
				m.effectFailures.WithLabelValues(e.Capability).Inc()
			}
		},
		OnPause: func(_ context.Context, e *domain.NodeEvent) {
			m.pauses.WithLabelValues(e.Node).Inc()
		},
		OnRunEnd: func(_ context.Context, e *domain.RunEvent) {
			m.runOutcomes.WithLabelValues(string(e.Outcome.Kind)).Inc()
		},
	}
}
