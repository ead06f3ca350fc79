package observability

import (
	"context"
	"strconv"

	"github.com/aretw0/charter/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors fed by the lifecycle hooks.
type Metrics struct {
	StateVisits    *prometheus.CounterVec
	ActionDuration *prometheus.HistogramVec
	ActionOutcomes *prometheus.CounterVec
	Decisions      *prometheus.CounterVec
	SessionsEnded  *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		StateVisits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "charter_state_visits_total",
				Help: "Total number of flow state entries",
			},
			[]string{"state"},
		),
		ActionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "charter_action_duration_seconds",
				Help:    "Duration of protocol executions",
				Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
			},
			[]string{"action"},
		),
		ActionOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "charter_action_outcomes_total",
				Help: "Protocol executions by outcome",
			},
			[]string{"action", "outcome", "timed_out"},
		),
		Decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "charter_authorization_decisions_total",
				Help: "Authorization decisions taken while driving flows",
			},
			[]string{"action", "allowed"},
		),
		SessionsEnded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "charter_sessions_ended_total",
				Help: "Sessions that reached a terminal status",
			},
			[]string{"status"},
		),
	}
	reg.MustRegister(m.StateVisits, m.ActionDuration, m.ActionOutcomes, m.Decisions, m.SessionsEnded)
	return m
}

// Hooks returns lifecycle hooks that record into the collectors.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStateEnter: func(_ context.Context, e *domain.StateEvent) {
			m.StateVisits.WithLabelValues(e.State).Inc()
		},
		OnActionReturn: func(_ context.Context, e *domain.ActionEvent) {
			m.ActionDuration.WithLabelValues(e.Action).Observe(e.Duration.Seconds())
			m.ActionOutcomes.WithLabelValues(e.Action, string(e.Outcome), strconv.FormatBool(e.TimedOut)).Inc()
		},
		OnDecision: func(_ context.Context, e *domain.DecisionEvent) {
			m.Decisions.WithLabelValues(e.Decision.Action, strconv.FormatBool(e.Decision.Allowed)).Inc()
		},
		OnSessionEnd: func(_ context.Context, e *domain.SessionEvent) {
			m.SessionsEnded.WithLabelValues(string(e.Status)).Inc()
		},
	}
}
