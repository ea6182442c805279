package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	wis "wis-backend"
)

func TestObserveReport(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.ObserveReport(wis.Report{
		Metrics: wis.DerivedMetrics{MLSS: 7500, FMRatio: 0.05, SVI: 120, HRT: 14.7},
		Status:  wis.SeverityCritical,
		Findings: []wis.Finding{
			{Rule: wis.RuleSludgeCrisis, Severity: wis.SeverityCritical},
			{Rule: wis.RuleChlorineOK, Severity: wis.SeverityNormal},
		},
	})
	m.ObserveReport(wis.Report{Status: wis.SeverityNormal, Metrics: wis.DerivedMetrics{FMRatio: 0.3, SVI: 133}})

	if got := testutil.ToFloat64(m.diagnoses); got != 2 {
		t.Fatalf("expected 2 diagnoses, got %f", got)
	}
	if got := testutil.ToFloat64(m.findings.WithLabelValues(wis.RuleSludgeCrisis, "critical")); got != 1 {
		t.Fatalf("expected 1 sludge finding, got %f", got)
	}
	if got := testutil.ToFloat64(m.status.WithLabelValues("normal")); got != 1 {
		t.Fatalf("expected 1 normal run, got %f", got)
	}
	if got := testutil.ToFloat64(m.fmRatio); got != 0.3 {
		t.Fatalf("expected last F/M 0.3, got %f", got)
	}
	if got := testutil.ToFloat64(m.svi); got != 133 {
		t.Fatalf("expected last SVI 133, got %f", got)
	}
}

func TestHistoryErrorAndNil(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.HistoryError("append")
	m.HistoryError("append")
	if got := testutil.ToFloat64(m.historyErrors.WithLabelValues("append")); got != 2 {
		t.Fatalf("expected 2 append errors, got %f", got)
	}

	var none *Metrics
	none.ObserveReport(wis.Report{})
	none.HistoryError("list")
}
