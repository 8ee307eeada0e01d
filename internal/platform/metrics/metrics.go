package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Refresh outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeTimeout = "timeout"
	OutcomeNoCSRF  = "no_csrf"
)

// Metrics holds all Prometheus metrics for the session subsystem.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	RefreshTotal     *prometheus.CounterVec
	RefreshCoalesced prometheus.Counter
	ReplayTotal      *prometheus.CounterVec
	GuardDecisions   *prometheus.CounterVec
}

// New creates the metrics and registers them with reg. Tests pass a fresh
// prometheus.NewRegistry() so repeated construction does not collide.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RefreshTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "joblinker_session_refresh_total",
			Help: "Refresh calls to the backend by outcome",
		}, []string{"outcome"}),
		RefreshCoalesced: factory.NewCounter(prometheus.CounterOpts{
			Name: "joblinker_session_refresh_coalesced_total",
			Help: "Refresh requests served by an already in-flight refresh",
		}),
		ReplayTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "joblinker_http_replay_total",
			Help: "Requests replayed after a 401, by resulting status class",
		}, []string{"status_class"}),
		GuardDecisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "joblinker_guard_decisions_total",
			Help: "Protected view decisions by result",
		}, []string{"decision"}),
	}
}

func (m *Metrics) ObserveRefresh(outcome string) {
	if m == nil {
		return
	}
	m.RefreshTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncrementRefreshCoalesced() {
	if m == nil {
		return
	}
	m.RefreshCoalesced.Inc()
}

func (m *Metrics) ObserveReplay(statusClass string) {
	if m == nil {
		return
	}
	m.ReplayTotal.WithLabelValues(statusClass).Inc()
}

func (m *Metrics) ObserveGuardDecision(decision string) {
	if m == nil {
		return
	}
	m.GuardDecisions.WithLabelValues(decision).Inc()
}
