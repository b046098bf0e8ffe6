package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestSchedulingMetricsCount(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewSchedulingMetrics(reg)

	m.ObserveScheduled(true)
	m.ObserveScheduled(true)
	m.ObserveScheduled(false)
	m.ObserveConflict()
	m.ObserveNoShow()

	assert.Equal(t, float64(2), testutil.ToFloat64(m.scheduledTotal.WithLabelValues("true")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.scheduledTotal.WithLabelValues("false")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.conflictsTotal))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.noShowsTotal))
}

func TestWaitingRoomMetricsCount(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWaitingRoomMetrics(reg)

	m.ObserveArrival("walk_in", "emergency")
	m.ObserveTransition("called")
	m.ObserveWait(120)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.arrivalsTotal.WithLabelValues("walk_in", "emergency")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.transitionsTotal.WithLabelValues("called")))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var sched *SchedulingMetrics
	var wr *WaitingRoomMetrics

	assert.NotPanics(t, func() {
		sched.ObserveScheduled(true)
		sched.ObserveConflict()
		sched.ObserveNoShow()
		wr.ObserveArrival("walk_in", "standard")
		wr.ObserveTransition("closed")
		wr.ObserveWait(30)
	})
}
