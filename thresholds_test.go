package wis

import (
	"os"
	"path/filepath"
	"testing"
)

func TestThresholdProfile(t *testing.T) {
	std, err := ThresholdProfile("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if std.SludgeCriticalSV30 != 600 {
		t.Fatalf("expected standard sludge limit 600 got %v", std.SludgeCriticalSV30)
	}
	strict, err := ThresholdProfile("Strict")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strict.SludgeCriticalSV30 != 500 {
		t.Fatalf("expected strict sludge limit 500 got %v", strict.SludgeCriticalSV30)
	}
	if _, err := ThresholdProfile("lenient"); err == nil {
		t.Fatalf("expected error for unknown profile")
	}
}

func TestParseThresholdsOverlay(t *testing.T) {
	data := []byte(`
profiles:
  strict:
    do_min: 1.5
  summer:
    hrt_rule_enabled: false
    chlorine_min: 0.3
`)
	catalog, err := ParseThresholds(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	strict, err := catalog.Lookup("strict")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strict.DOMin != 1.5 || strict.SludgeCriticalSV30 != 500 {
		t.Fatalf("expected strict overlay, got %+v", strict)
	}
	summer, err := catalog.Lookup("summer")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summer.HRTRuleEnabled || summer.ChlorineMin != 0.3 || summer.PHLow != 6.5 {
		t.Fatalf("unexpected summer profile: %+v", summer)
	}
	if _, err := catalog.Lookup("standard"); err != nil {
		t.Fatalf("built-in profile missing: %v", err)
	}
}

func TestParseThresholdsInvalid(t *testing.T) {
	cases := map[string]string{
		"empty":       "profiles: {}\n",
		"inverted ph": "profiles:\n  bad:\n    ph_low: 9\n    ph_high: 7\n",
		"inverted fm": "profiles:\n  bad:\n    fm_min: 0.8\n",
		"bad yaml":    "profiles: [",
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseThresholds([]byte(data)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestLoadThresholdsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "thresholds.yaml")
	if err := os.WriteFile(path, []byte("profiles:\n  standard:\n    sludge_critical_sv30: 650\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	catalog, err := LoadThresholds(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	set, _ := catalog.Lookup("")
	if set.SludgeCriticalSV30 != 650 {
		t.Fatalf("expected 650 got %v", set.SludgeCriticalSV30)
	}
	if _, err := LoadThresholds(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
