package metrics

import "github.com/prometheus/client_golang/prometheus"

// DomainMetrics counts measurements and the alerts they raise.
type DomainMetrics struct {
	MeasurementsRecorded prometheus.Counter
	AlertsTriggered      *prometheus.CounterVec
	ReevaluationRuns     *prometheus.CounterVec
	ReevaluatedChanged   prometheus.Counter
}

func NewDomainMetrics(reg prometheus.Registerer) *DomainMetrics {
	m := &DomainMetrics{
		MeasurementsRecorded: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "measurements",
				Name:      "recorded_total",
				Help:      "Total number of energy measurements recorded",
			},
		),
		AlertsTriggered: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "alerts",
				Name:      "triggered_total",
				Help:      "Total number of measurements that breached an alert rule",
			},
			[]string{"severity"},
		),
		ReevaluationRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "alerts",
				Name:      "reevaluation_runs_total",
				Help:      "Total number of alert re-evaluation runs",
			},
			[]string{"status"}, // status: success, error
		),
		ReevaluatedChanged: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "alerts",
				Name:      "reevaluated_measurements_total",
				Help:      "Measurements whose triggered alert changed during re-evaluation",
			},
		),
	}

	reg.MustRegister(m.MeasurementsRecorded, m.AlertsTriggered, m.ReevaluationRuns, m.ReevaluatedChanged)
	return m
}

// MeasurementRecorded is safe to call on a nil receiver.
func (m *DomainMetrics) MeasurementRecorded(severity string) {
	if m == nil {
		return
	}
	m.MeasurementsRecorded.Inc()
	if severity != "" {
		m.AlertsTriggered.WithLabelValues(severity).Inc()
	}
}

// ReevaluationFinished is safe to call on a nil receiver.
func (m *DomainMetrics) ReevaluationFinished(changed int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.ReevaluationRuns.WithLabelValues("error").Inc()
		return
	}
	m.ReevaluationRuns.WithLabelValues("success").Inc()
	m.ReevaluatedChanged.Add(float64(changed))
}
