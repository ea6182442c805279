// file: diagnosis.go
package wis

import (
	"fmt"
	"strconv"
)

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityNormal   Severity = "normal"
)

const (
	RuleSludgeCrisis    = "SLUDGE_CRISIS"
	RuleAerationPHLow   = "AERATION_PH_LOW"
	RuleAerationPHOK    = "AERATION_PH_NORMAL"
	RuleChlorineLow     = "CHLORINE_LOW"
	RuleChlorineOK      = "CHLORINE_NORMAL"
	RuleRetentionLow    = "HRT_LOW"
	RuleDissolvedO2Low  = "DO_LOW"
	RuleBalancedProcess = "BALANCED_SYSTEM"
	RuleWasteSludge     = "ACTION_WASTE_SLUDGE"
	RuleAlkaliDosing    = "ACTION_ALKALI_DOSING"
)

// Finding is one diagnostic result. Action is empty when nothing needs doing.
type Finding struct {
	Rule     string   `json:"rule"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	Action   string   `json:"action,omitempty"`
}

// Diagnose runs every rule against the sample and its metrics and returns the
// matching findings in rule order. Rules never suppress each other.
//
// Rules that read a derived metric skip it while the metric is the zero sentinel:
// the retention rule needs HRT > 0 and the balanced rule needs F/M > 0.
func Diagnose(sample MeasurementSample, metrics DerivedMetrics, t ThresholdSet) []Finding {
	findings := []Finding{}
	add := func(f Finding) { findings = append(findings, f) }

	if sample.SV30 > t.SludgeCriticalSV30 {
		add(Finding{
			Rule:     RuleSludgeCrisis,
			Severity: SeverityCritical,
			Message:  fmt.Sprintf("sludge crisis (SV30 = %s mL/L): settled sludge is too dense, the clarifier cannot separate the phases", formatValue(sample.SV30)),
			Action:   "increase waste activated sludge (WAS) pumping or run the sludge press",
		})
	}

	switch {
	case sample.PHAeration < t.PHLow:
		add(Finding{
			Rule:     RuleAerationPHLow,
			Severity: SeverityCritical,
			Message:  fmt.Sprintf("aeration tank pH is low (%s): acidic conditions degrade microbial activity", formatValue(sample.PHAeration)),
			Action:   "check the alkali dosing system",
		})
	case sample.PHAeration <= t.PHHigh:
		add(Finding{
			Rule:     RuleAerationPHOK,
			Severity: SeverityNormal,
			Message:  "aeration tank pH is normal: conditions favour the biomass",
		})
	}

	if sample.ChlorineResidual < t.ChlorineMin {
		add(Finding{
			Rule:     RuleChlorineLow,
			Severity: SeverityWarning,
			Message:  fmt.Sprintf("effluent chlorine is low (%s mg/L): disinfection may be incomplete", formatValue(sample.ChlorineResidual)),
		})
	} else {
		add(Finding{
			Rule:     RuleChlorineOK,
			Severity: SeverityNormal,
			Message:  "disinfection is within standard",
		})
	}

	if t.HRTRuleEnabled && metrics.HRT > 0 && metrics.HRT < t.HRTMinHours {
		add(Finding{
			Rule:     RuleRetentionLow,
			Severity: SeverityWarning,
			Message:  fmt.Sprintf("hydraulic retention time is short (%s h): flow is too fast, treatment may be incomplete", formatValue(metrics.HRT)),
		})
	}

	if sample.DissolvedOxygen < t.DOMin {
		add(Finding{
			Rule:     RuleDissolvedO2Low,
			Severity: SeverityCritical,
			Message:  fmt.Sprintf("dissolved oxygen is low (%s mg/L): risk of microbial die-off and odour", formatValue(sample.DissolvedOxygen)),
		})
	}

	if metrics.FMRatio > 0 && metrics.FMRatio >= t.FMMin && metrics.FMRatio <= t.FMMax && sample.SV30 < t.BalancedMaxSV30 {
		add(Finding{
			Rule:     RuleBalancedProcess,
			Severity: SeverityNormal,
			Message:  fmt.Sprintf("process is balanced (F/M = %.2f): overall operation within the normal range", metrics.FMRatio),
		})
	}

	return findings
}

// OperationalActions lists the operator actions for the sample. The sludge action
// uses its own, lower, SV30 limit so it can be raised before a crisis is diagnosed.
func OperationalActions(sample MeasurementSample, t ThresholdSet) []Finding {
	actions := []Finding{}
	if sample.SV30 > t.SludgeActionSV30 {
		actions = append(actions, Finding{
			Rule:     RuleWasteSludge,
			Severity: SeverityCritical,
			Message:  fmt.Sprintf("SV30 %s mL/L is above %s mL/L", formatValue(sample.SV30), formatValue(t.SludgeActionSV30)),
			Action:   "increase waste activated sludge (WAS) pumping or run the sludge press",
		})
	}
	if sample.PHAeration < t.PHLow {
		actions = append(actions, Finding{
			Rule:     RuleAlkaliDosing,
			Severity: SeverityWarning,
			Message:  fmt.Sprintf("aeration pH %s is below %s", formatValue(sample.PHAeration), formatValue(t.PHLow)),
			Action:   "check the alkali dosing system",
		})
	}
	return actions
}

// Report is the full result of one diagnosis run.
type Report struct {
	Metrics   DerivedMetrics `json:"metrics"`
	Findings  []Finding      `json:"findings"`
	Actions   []Finding      `json:"actions"`
	Status    Severity       `json:"status"`
	Critical  int            `json:"criticalCount"`
	Warnings  int            `json:"warningCount"`
	Undefined []string       `json:"undefinedMetrics"`
}

// Run computes the metrics, diagnoses them and summarises the result.
func Run(spec PlantSpec, sample MeasurementSample, t ThresholdSet) Report {
	metrics := ComputeMetrics(spec, sample)
	findings := Diagnose(sample, metrics, t)
	report := Report{
		Metrics:   metrics,
		Findings:  findings,
		Actions:   OperationalActions(sample, t),
		Status:    SeverityNormal,
		Undefined: UndefinedMetrics(spec, sample),
	}
	for _, f := range findings {
		switch f.Severity {
		case SeverityCritical:
			report.Critical++
		case SeverityWarning:
			report.Warnings++
		}
	}
	if report.Critical > 0 {
		report.Status = SeverityCritical
	} else if report.Warnings > 0 {
		report.Status = SeverityWarning
	}
	return report
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
