// file: sample_json.go
package wis

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// sampleFields is the wire form of MeasurementSample. Pointers tell a missing
// measurement apart from a measured zero.
type sampleFields struct {
	ActualFlow       *float64 `json:"actualFlow"`
	InfluentBOD      *float64 `json:"influentBOD"`
	DissolvedOxygen  *float64 `json:"dissolvedOxygen"`
	ChlorineResidual *float64 `json:"chlorineResidual"`
	SV30             *float64 `json:"sv30"`
	PHInlet          *float64 `json:"phInlet"`
	PHAeration       *float64 `json:"phAeration"`
	PHEffluent       *float64 `json:"phEffluent"`
	MLSSMethod       string   `json:"mlssMethod"`
	DryWeightGrams   *float64 `json:"dryWeightGrams,omitempty"`
	SampleVolumeML   *float64 `json:"sampleVolumeML,omitempty"`
	ManualMLSS       *float64 `json:"manualMLSS,omitempty"`
}

// MarshalJSON flattens the MLSS source into mlssMethod plus its own fields.
func (s MeasurementSample) MarshalJSON() ([]byte, error) {
	out := sampleFields{
		ActualFlow:       &s.ActualFlow,
		InfluentBOD:      &s.InfluentBOD,
		DissolvedOxygen:  &s.DissolvedOxygen,
		ChlorineResidual: &s.ChlorineResidual,
		SV30:             &s.SV30,
		PHInlet:          &s.PHInlet,
		PHAeration:       &s.PHAeration,
		PHEffluent:       &s.PHEffluent,
	}
	switch src := s.MLSS.(type) {
	case QuickSV30:
		out.MLSSMethod = MethodQuickSV30
	case LabWeight:
		out.MLSSMethod = MethodLabWeight
		out.DryWeightGrams = &src.DryWeightGrams
		out.SampleVolumeML = &src.SampleVolumeML
	case Manual:
		out.MLSSMethod = MethodManual
		out.ManualMLSS = &src.MLSS
	case nil:
		return nil, fmt.Errorf("mlss source is required: %w", ErrInvalidSample)
	}
	return json.Marshal(out)
}

// UnmarshalJSON rejects unknown keys and every missing measurement, so a typo
// never turns into a zero reading.
func (s *MeasurementSample) UnmarshalJSON(data []byte) error {
	var in sampleFields
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&in); err != nil {
		return fmt.Errorf("sample: %w", err)
	}

	var details []ErrorDetail
	required := func(field string, v *float64) float64 {
		if v == nil {
			details = append(details, ErrorDetail{Field: field, Problem: "missing"})
			return 0
		}
		return *v
	}
	sample := MeasurementSample{
		ActualFlow:       required("actualFlow", in.ActualFlow),
		InfluentBOD:      required("influentBOD", in.InfluentBOD),
		DissolvedOxygen:  required("dissolvedOxygen", in.DissolvedOxygen),
		ChlorineResidual: required("chlorineResidual", in.ChlorineResidual),
		SV30:             required("sv30", in.SV30),
		PHInlet:          required("phInlet", in.PHInlet),
		PHAeration:       required("phAeration", in.PHAeration),
		PHEffluent:       required("phEffluent", in.PHEffluent),
	}

	var dry, volume, manual float64
	switch strings.ToLower(strings.TrimSpace(in.MLSSMethod)) {
	case MethodLabWeight, "lab":
		dry = required("dryWeightGrams", in.DryWeightGrams)
		volume = required("sampleVolumeML", in.SampleVolumeML)
	case MethodManual:
		manual = required("manualMLSS", in.ManualMLSS)
	}
	if len(details) > 0 {
		return &ValidationError{Details: details}
	}
	src, err := ParseMLSSSource(in.MLSSMethod, dry, volume, manual)
	if err != nil {
		return err
	}
	sample.MLSS = src
	*s = sample
	return nil
}

// ParseMLSSSource builds the source variant named by method. An empty method means QuickSV30.
func ParseMLSSSource(method string, dryWeightGrams, sampleVolumeML, manualMLSS float64) (MLSSSource, error) {
	switch strings.ToLower(strings.TrimSpace(method)) {
	case "", MethodQuickSV30, "quick", "sv30":
		return QuickSV30{}, nil
	case MethodLabWeight, "lab":
		return LabWeight{DryWeightGrams: dryWeightGrams, SampleVolumeML: sampleVolumeML}, nil
	case MethodManual:
		return Manual{MLSS: manualMLSS}, nil
	default:
		return nil, fmt.Errorf("unsupported mlss method %q: %w", method, ErrInvalidSample)
	}
}
