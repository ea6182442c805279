// file: validate.go
package wis

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

var ErrInvalidSample = errors.New("invalid sample")

const (
	// maxReading bounds every operator entry well above any physical value.
	maxReading = 1e9
	// maxSV30 is the whole one-litre cylinder.
	maxSV30 = 1000
)

type ErrorDetail struct {
	Field   string `json:"field"`
	Problem string `json:"problem"`
	Hint    string `json:"hint,omitempty"`
}

// ValidationError collects every field problem of one input.
type ValidationError struct {
	Details []ErrorDetail
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Details))
	for _, d := range e.Details {
		parts = append(parts, d.Field+" "+d.Problem)
	}
	return fmt.Sprintf("%s: %s", ErrInvalidSample, strings.Join(parts, ", "))
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidSample
}

// ValidateSample checks the invariants callers must hold before ComputeMetrics:
// one MLSS source and finite non-negative numbers.
func ValidateSample(sample MeasurementSample) error {
	var details []ErrorDetail
	check := func(field string, v float64) {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			details = append(details, ErrorDetail{Field: field, Problem: "not a number"})
			return
		}
		if v < 0 {
			details = append(details, ErrorDetail{Field: field, Problem: "negative", Hint: "must be >= 0"})
			return
		}
		if v > maxReading {
			details = append(details, ErrorDetail{Field: field, Problem: "out of range", Hint: "must be <= 1e9"})
		}
	}
	check("actualFlow", sample.ActualFlow)
	check("influentBOD", sample.InfluentBOD)
	check("dissolvedOxygen", sample.DissolvedOxygen)
	check("chlorineResidual", sample.ChlorineResidual)
	check("sv30", sample.SV30)
	check("phInlet", sample.PHInlet)
	check("phAeration", sample.PHAeration)
	check("phEffluent", sample.PHEffluent)
	switch src := sample.MLSS.(type) {
	case QuickSV30:
	case LabWeight:
		check("dryWeightGrams", src.DryWeightGrams)
		check("sampleVolumeML", src.SampleVolumeML)
	case Manual:
		check("manualMLSS", src.MLSS)
	default:
		details = append(details, ErrorDetail{Field: "mlssMethod", Problem: "missing", Hint: "quick_sv30, lab_weight or manual"})
	}
	if sample.SV30 > maxSV30 && sample.SV30 <= maxReading {
		details = append(details, ErrorDetail{Field: "sv30", Problem: "out of range", Hint: "0 to 1000 mL/L"})
	}
	ph := []struct {
		field string
		value float64
	}{{"phInlet", sample.PHInlet}, {"phAeration", sample.PHAeration}, {"phEffluent", sample.PHEffluent}}
	for _, p := range ph {
		if p.value > 14 && p.value <= maxReading {
			details = append(details, ErrorDetail{Field: p.field, Problem: "out of range", Hint: "0 to 14"})
		}
	}
	if len(details) > 0 {
		return &ValidationError{Details: details}
	}
	return nil
}

func ValidatePlant(spec PlantSpec) error {
	var details []ErrorDetail
	for _, f := range []struct {
		field string
		value float64
	}{{"designFlow", spec.DesignFlow}, {"tankVolume", spec.TankVolume}} {
		switch {
		case math.IsNaN(f.value) || math.IsInf(f.value, 0):
			details = append(details, ErrorDetail{Field: f.field, Problem: "not a number"})
		case f.value < 0:
			details = append(details, ErrorDetail{Field: f.field, Problem: "negative", Hint: "must be >= 0"})
		case f.value > maxReading:
			details = append(details, ErrorDetail{Field: f.field, Problem: "out of range", Hint: "must be <= 1e9"})
		}
	}
	if len(details) > 0 {
		return &ValidationError{Details: details}
	}
	return nil
}

// ValidateMetrics rejects metrics that overflowed for extreme but in-range
// inputs, such as a lab sample volume close to zero.
func ValidateMetrics(m DerivedMetrics) error {
	var details []ErrorDetail
	for _, f := range []struct {
		field string
		value float64
	}{{"mlss", m.MLSS}, {"fmRatio", m.FMRatio}, {"svi", m.SVI}, {"hrt", m.HRT}} {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			details = append(details, ErrorDetail{Field: f.field, Problem: "not finite", Hint: "check the inputs it is derived from"})
		}
	}
	if len(details) > 0 {
		return &ValidationError{Details: details}
	}
	return nil
}
