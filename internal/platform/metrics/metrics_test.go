package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveRefresh(OutcomeSuccess)
	m.ObserveRefresh(OutcomeSuccess)
	m.ObserveRefresh(OutcomeTimeout)
	m.IncrementRefreshCoalesced()
	m.ObserveReplay("2xx")
	m.ObserveGuardDecision("loading")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RefreshTotal.WithLabelValues(OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RefreshTotal.WithLabelValues(OutcomeTimeout)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RefreshCoalesced))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ReplayTotal.WithLabelValues("2xx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GuardDecisions.WithLabelValues("loading")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveRefresh(OutcomeFailure)
		m.IncrementRefreshCoalesced()
		m.ObserveReplay("4xx")
		m.ObserveGuardDecision("redirect")
	})
}
