// file: thresholds.go
package wis

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	ProfileStandard = "standard"
	ProfileStrict   = "strict"
)

// ThresholdSet holds the engineering limits the diagnostic rules compare against.
type ThresholdSet struct {
	SludgeCriticalSV30 float64 `yaml:"sludge_critical_sv30" json:"sludgeCriticalSV30"`
	SludgeActionSV30   float64 `yaml:"sludge_action_sv30" json:"sludgeActionSV30"`
	PHLow              float64 `yaml:"ph_low" json:"phLow"`
	PHHigh             float64 `yaml:"ph_high" json:"phHigh"`
	ChlorineMin        float64 `yaml:"chlorine_min" json:"chlorineMin"`
	HRTRuleEnabled     bool    `yaml:"hrt_rule_enabled" json:"hrtRuleEnabled"`
	HRTMinHours        float64 `yaml:"hrt_min_hours" json:"hrtMinHours"`
	DOMin              float64 `yaml:"do_min" json:"doMin"`
	FMMin              float64 `yaml:"fm_min" json:"fmMin"`
	FMMax              float64 `yaml:"fm_max" json:"fmMax"`
	BalancedMaxSV30    float64 `yaml:"balanced_max_sv30" json:"balancedMaxSV30"`
}

// DefaultThresholds is the standard set: sludge crisis above SV30 600.
func DefaultThresholds() ThresholdSet {
	return ThresholdSet{
		SludgeCriticalSV30: 600,
		SludgeActionSV30:   500,
		PHLow:              6.5,
		PHHigh:             8.5,
		ChlorineMin:        0.2,
		HRTRuleEnabled:     true,
		HRTMinHours:        18,
		DOMin:              1.0,
		FMMin:              0.1,
		FMMax:              0.6,
		BalancedMaxSV30:    500,
	}
}

// StrictThresholds flags sludge crisis from SV30 500.
func StrictThresholds() ThresholdSet {
	t := DefaultThresholds()
	t.SludgeCriticalSV30 = 500
	return t
}

// ThresholdProfile resolves one of the built-in profiles.
func ThresholdProfile(name string) (ThresholdSet, error) {
	return DefaultCatalog().Lookup(name)
}

// ThresholdCatalog maps profile names to threshold sets.
type ThresholdCatalog map[string]ThresholdSet

func DefaultCatalog() ThresholdCatalog {
	return ThresholdCatalog{
		ProfileStandard: DefaultThresholds(),
		ProfileStrict:   StrictThresholds(),
	}
}

// LoadThresholds reads profiles from a YAML file on top of the built-in ones.
// Unset fields in a file profile fall back to the standard values.
func LoadThresholds(path string) (ThresholdCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseThresholds(data)
}

func ParseThresholds(data []byte) (ThresholdCatalog, error) {
	var raw struct {
		Profiles map[string]yaml.Node `yaml:"profiles"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	if len(raw.Profiles) == 0 {
		return nil, errors.New("no threshold profiles configured")
	}
	catalog := DefaultCatalog()
	for name, node := range raw.Profiles {
		key := strings.ToLower(strings.TrimSpace(name))
		base, ok := catalog[key]
		if !ok {
			base = DefaultThresholds()
		}
		if err := node.Decode(&base); err != nil {
			return nil, fmt.Errorf("profile %q: %w", name, err)
		}
		if err := base.Validate(); err != nil {
			return nil, fmt.Errorf("profile %q: %w", name, err)
		}
		catalog[key] = base
	}
	return catalog, nil
}

func (c ThresholdCatalog) Lookup(name string) (ThresholdSet, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || key == "default" {
		key = ProfileStandard
	}
	set, ok := c[key]
	if !ok {
		return ThresholdSet{}, fmt.Errorf("unknown threshold profile %q", name)
	}
	return set, nil
}

func (t ThresholdSet) Validate() error {
	if t.PHLow >= t.PHHigh {
		return errors.New("ph_low must be below ph_high")
	}
	if t.FMMin >= t.FMMax {
		return errors.New("fm_min must be below fm_max")
	}
	if t.SludgeCriticalSV30 <= 0 || t.SludgeActionSV30 <= 0 || t.BalancedMaxSV30 <= 0 {
		return errors.New("sv30 thresholds must be positive")
	}
	if t.ChlorineMin < 0 || t.DOMin < 0 || t.HRTMinHours < 0 {
		return errors.New("thresholds must not be negative")
	}
	return nil
}
