package metrics

import "github.com/prometheus/client_golang/prometheus"

// SchedulingMetrics exposes counters for the appointment booking flow.
type SchedulingMetrics struct {
	scheduledTotal *prometheus.CounterVec
	conflictsTotal prometheus.Counter
	noShowsTotal   prometheus.Counter
}

func NewSchedulingMetrics(reg prometheus.Registerer) *SchedulingMetrics {
	m := &SchedulingMetrics{
		scheduledTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vetdesk",
			Subsystem: "scheduling",
			Name:      "appointments_scheduled_total",
			Help:      "Total appointments scheduled",
		}, []string{"assigned"}),
		conflictsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vetdesk",
			Subsystem: "scheduling",
			Name:      "slot_conflicts_total",
			Help:      "Scheduling attempts rejected because of an overlapping slot",
		}),
		noShowsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vetdesk",
			Subsystem: "scheduling",
			Name:      "no_shows_total",
			Help:      "Appointments marked no-show",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.scheduledTotal, m.conflictsTotal, m.noShowsTotal)
	return m
}

func (m *SchedulingMetrics) ObserveScheduled(assigned bool) {
	if m == nil {
		return
	}
	label := "false"
	if assigned {
		label = "true"
	}
	m.scheduledTotal.WithLabelValues(label).Inc()
}

func (m *SchedulingMetrics) ObserveConflict() {
	if m == nil {
		return
	}
	m.conflictsTotal.Inc()
}

func (m *SchedulingMetrics) ObserveNoShow() {
	if m == nil {
		return
	}
	m.noShowsTotal.Inc()
}

// WaitingRoomMetrics exposes counters for waiting room activity.
type WaitingRoomMetrics struct {
	arrivalsTotal    *prometheus.CounterVec
	transitionsTotal *prometheus.CounterVec
	waitSeconds      prometheus.Histogram
}

func NewWaitingRoomMetrics(reg prometheus.Registerer) *WaitingRoomMetrics {
	m := &WaitingRoomMetrics{
		arrivalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vetdesk",
			Subsystem: "waiting_room",
			Name:      "arrivals_total",
			Help:      "Waiting room entries created",
		}, []string{"origin", "arrival_mode"}),
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vetdesk",
			Subsystem: "waiting_room",
			Name:      "transitions_total",
			Help:      "Waiting room status transitions",
		}, []string{"to_status"}),
		waitSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "vetdesk",
			Subsystem: "waiting_room",
			Name:      "wait_seconds",
			Help:      "Time between arrival and being called",
			Buckets:   []float64{60, 300, 600, 1200, 1800, 3600, 7200},
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.arrivalsTotal, m.transitionsTotal, m.waitSeconds)
	return m
}

func (m *WaitingRoomMetrics) ObserveArrival(origin, arrivalMode string) {
	if m == nil {
		return
	}
	m.arrivalsTotal.WithLabelValues(origin, arrivalMode).Inc()
}

func (m *WaitingRoomMetrics) ObserveTransition(toStatus string) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(toStatus).Inc()
}

func (m *WaitingRoomMetrics) ObserveWait(seconds float64) {
	if m == nil {
		return
	}
	m.waitSeconds.Observe(seconds)
}
