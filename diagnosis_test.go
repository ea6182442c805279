package wis

import "testing"

func rulesOf(findings []Finding) []string {
	out := make([]string, 0, len(findings))
	for _, f := range findings {
		out = append(out, f.Rule)
	}
	return out
}

func hasRule(findings []Finding, rule string) bool {
	for _, f := range findings {
		if f.Rule == rule {
			return true
		}
	}
	return false
}

func healthySample() MeasurementSample {
	return MeasurementSample{
		ActualFlow:       98,
		InfluentBOD:      250,
		DissolvedOxygen:  2.0,
		ChlorineResidual: 0.5,
		SV30:             400,
		PHInlet:          7.0,
		PHAeration:       7.2,
		PHEffluent:       7.0,
		MLSS:             QuickSV30{},
	}
}

func TestDiagnoseAllNormal(t *testing.T) {
	metrics := DerivedMetrics{MLSS: 3000, FMRatio: 0.3, SVI: 133, HRT: 24}
	findings := Diagnose(healthySample(), metrics, DefaultThresholds())
	if len(findings) != 3 {
		t.Fatalf("expected 3 findings, got %v", rulesOf(findings))
	}
	for _, f := range findings {
		if f.Severity != SeverityNormal {
			t.Fatalf("expected only normal findings, got %+v", f)
		}
	}
	want := []string{RuleAerationPHOK, RuleChlorineOK, RuleBalancedProcess}
	for i, rule := range want {
		if findings[i].Rule != rule {
			t.Fatalf("expected %s at %d, got %v", rule, i, rulesOf(findings))
		}
	}
}

func TestDiagnoseLowDissolvedOxygen(t *testing.T) {
	sample := healthySample()
	sample.DissolvedOxygen = 0.5
	metrics := ComputeMetrics(DefaultPlantSpec(), sample)
	findings := Diagnose(sample, metrics, DefaultThresholds())
	count := 0
	for _, f := range findings {
		if f.Rule == RuleDissolvedO2Low {
			count++
			if f.Severity != SeverityCritical {
				t.Fatalf("expected critical severity, got %s", f.Severity)
			}
		}
	}
	if count != 1 {
		t.Fatalf("expected exactly one low DO finding, got %d", count)
	}
}

func TestDiagnoseSludgeCrisisThresholds(t *testing.T) {
	tests := []struct {
		name       string
		sv30       float64
		thresholds ThresholdSet
		expectHit  bool
	}{
		{"standard above 600", 900, DefaultThresholds(), true},
		{"standard at 550", 550, DefaultThresholds(), false},
		{"standard exactly 600", 600, DefaultThresholds(), false},
		{"strict at 550", 550, StrictThresholds(), true},
		{"strict exactly 500", 500, StrictThresholds(), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sample := healthySample()
			sample.SV30 = tt.sv30
			findings := Diagnose(sample, ComputeMetrics(DefaultPlantSpec(), sample), tt.thresholds)
			if hasRule(findings, RuleSludgeCrisis) != tt.expectHit {
				t.Fatalf("expected sludge crisis %v, got %v", tt.expectHit, rulesOf(findings))
			}
		})
	}
}

func TestDiagnoseScenarioHighSV30(t *testing.T) {
	sample := healthySample()
	sample.SV30 = 900
	metrics := ComputeMetrics(PlantSpec{DesignFlow: 98, TankVolume: 60}, sample)
	findings := Diagnose(sample, metrics, DefaultThresholds())
	if findings[0].Rule != RuleSludgeCrisis || findings[0].Severity != SeverityCritical {
		t.Fatalf("expected sludge crisis first, got %v", rulesOf(findings))
	}
	if findings[0].Action == "" {
		t.Fatalf("expected a recommended action")
	}
	if hasRule(findings, RuleBalancedProcess) {
		t.Fatalf("balanced rule must not fire at sv30 900")
	}
}

func TestDiagnoseIndependentRules(t *testing.T) {
	sample := healthySample()
	sample.SV30 = 700
	sample.ChlorineResidual = 0.1
	findings := Diagnose(sample, ComputeMetrics(DefaultPlantSpec(), sample), DefaultThresholds())
	if !hasRule(findings, RuleSludgeCrisis) || !hasRule(findings, RuleChlorineLow) {
		t.Fatalf("expected both sludge and chlorine findings, got %v", rulesOf(findings))
	}
	if hasRule(findings, RuleChlorineOK) {
		t.Fatalf("chlorine low and normal cannot both fire")
	}
}

func TestDiagnosePH(t *testing.T) {
	tests := []struct {
		ph   float64
		want []string
	}{
		{6.0, []string{RuleAerationPHLow}},
		{6.5, []string{RuleAerationPHOK}},
		{8.5, []string{RuleAerationPHOK}},
		{9.0, nil},
	}
	for _, tt := range tests {
		sample := healthySample()
		sample.PHAeration = tt.ph
		findings := Diagnose(sample, DerivedMetrics{}, DefaultThresholds())
		low := hasRule(findings, RuleAerationPHLow)
		ok := hasRule(findings, RuleAerationPHOK)
		if low && ok {
			t.Fatalf("ph %v: low and normal both fired", tt.ph)
		}
		if len(tt.want) == 0 && (low || ok) {
			t.Fatalf("ph %v: expected no ph finding, got %v", tt.ph, rulesOf(findings))
		}
		for _, rule := range tt.want {
			if !hasRule(findings, rule) {
				t.Fatalf("ph %v: expected %s, got %v", tt.ph, rule, rulesOf(findings))
			}
		}
	}
}

func TestDiagnoseRetention(t *testing.T) {
	sample := healthySample()
	short := DerivedMetrics{FMRatio: 0.3, HRT: 12}
	if !hasRule(Diagnose(sample, short, DefaultThresholds()), RuleRetentionLow) {
		t.Fatalf("expected short retention warning")
	}
	undefined := DerivedMetrics{FMRatio: 0.3, HRT: 0}
	if hasRule(Diagnose(sample, undefined, DefaultThresholds()), RuleRetentionLow) {
		t.Fatalf("retention rule must skip an undefined hrt")
	}
	disabled := DefaultThresholds()
	disabled.HRTRuleEnabled = false
	if hasRule(Diagnose(sample, short, disabled), RuleRetentionLow) {
		t.Fatalf("retention rule must respect the threshold set")
	}
}

func TestDiagnoseBalancedSkipsUndefinedFM(t *testing.T) {
	thresholds := DefaultThresholds()
	thresholds.FMMin = 0
	findings := Diagnose(healthySample(), DerivedMetrics{FMRatio: 0, HRT: 24}, thresholds)
	if hasRule(findings, RuleBalancedProcess) {
		t.Fatalf("balanced rule must not fire on a zero f/m")
	}
}

func TestOperationalActions(t *testing.T) {
	sample := healthySample()
	sample.SV30 = 550
	sample.PHAeration = 6.0
	actions := OperationalActions(sample, DefaultThresholds())
	if len(actions) != 2 || actions[0].Rule != RuleWasteSludge || actions[1].Rule != RuleAlkaliDosing {
		t.Fatalf("unexpected actions: %v", rulesOf(actions))
	}
	if hasRule(Diagnose(sample, DerivedMetrics{}, DefaultThresholds()), RuleSludgeCrisis) {
		t.Fatalf("sv30 550 is an action, not a crisis, under the standard set")
	}
	if len(OperationalActions(healthySample(), DefaultThresholds())) != 0 {
		t.Fatalf("expected no actions for a healthy sample")
	}
}

func TestRunSummary(t *testing.T) {
	sample := healthySample()
	sample.DissolvedOxygen = 0.4
	sample.ChlorineResidual = 0.1
	spec := PlantSpec{DesignFlow: 98, TankVolume: 80}
	report := Run(spec, sample, DefaultThresholds())
	if report.Status != SeverityCritical {
		t.Fatalf("expected critical status, got %s", report.Status)
	}
	if report.Critical != 1 || report.Warnings != 1 {
		t.Fatalf("unexpected counts: %d critical %d warnings", report.Critical, report.Warnings)
	}
	if report.Metrics != ComputeMetrics(spec, sample) {
		t.Fatalf("report metrics differ from ComputeMetrics")
	}

	healthy := Run(spec, healthySample(), DefaultThresholds())
	if healthy.Status != SeverityNormal {
		t.Fatalf("expected normal status, got %s: %v", healthy.Status, rulesOf(healthy.Findings))
	}
}
