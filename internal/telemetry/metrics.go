package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"

	wis "wis-backend"
)

// Metrics counts diagnosis activity. A nil *Metrics records nothing.
type Metrics struct {
	diagnoses     prometheus.Counter
	findings      *prometheus.CounterVec
	status        *prometheus.CounterVec
	historyErrors *prometheus.CounterVec
	fmRatio       prometheus.Gauge
	svi           prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		diagnoses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wis_diagnoses_total",
			Help: "Total diagnosis runs.",
		}),
		findings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wis_findings_total",
			Help: "Findings emitted, by rule and severity.",
		}, []string{"rule", "severity"}),
		status: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wis_diagnosis_status_total",
			Help: "Diagnosis runs by overall status.",
		}, []string{"status"}),
		historyErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wis_history_errors_total",
			Help: "History store failures, by operation.",
		}, []string{"op"}),
		fmRatio: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "wis_last_fm_ratio",
			Help: "F/M ratio of the latest diagnosis.",
		}),
		svi: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "wis_last_svi_ml_per_gram",
			Help: "Sludge volume index of the latest diagnosis.",
		}),
	}
	reg.MustRegister(m.diagnoses, m.findings, m.status, m.historyErrors, m.fmRatio, m.svi)
	return m
}

func (m *Metrics) ObserveReport(report wis.Report) {
	if m == nil {
		return
	}
	m.diagnoses.Inc()
	m.status.WithLabelValues(string(report.Status)).Inc()
	for _, f := range report.Findings {
		m.findings.WithLabelValues(f.Rule, string(f.Severity)).Inc()
	}
	m.fmRatio.Set(report.Metrics.FMRatio)
	m.svi.Set(report.Metrics.SVI)
}

func (m *Metrics) HistoryError(op string) {
	if m == nil {
		return
	}
	m.historyErrors.WithLabelValues(op).Inc()
}
