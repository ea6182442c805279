package wis

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func sampleRecord(ts time.Time) HistoryRecord {
	sample := MeasurementSample{
		ActualFlow: 98, InfluentBOD: 250, DissolvedOxygen: 2.1, ChlorineResidual: 0.45,
		SV30: 900, PHInlet: 7.0, PHAeration: 7.2, PHEffluent: 6.9, MLSS: QuickSV30{},
	}
	return NewHistoryRecord(ts, sample, ComputeMetrics(DefaultPlantSpec(), sample))
}

func TestNewHistoryRecordRounding(t *testing.T) {
	ts := time.Date(2024, 3, 1, 8, 30, 15, 999, time.UTC)
	rec := sampleRecord(ts)
	if !rec.Timestamp.Equal(time.Date(2024, 3, 1, 8, 30, 15, 0, time.UTC)) {
		t.Fatalf("expected timestamp truncated to seconds, got %v", rec.Timestamp)
	}
	if rec.FMRatio != 0.05 {
		t.Fatalf("expected fm rounded to 0.05, got %v", rec.FMRatio)
	}
	if rec.SVI != 120 {
		t.Fatalf("expected svi 120, got %v", rec.SVI)
	}
	if rec.MLSS != 7500 {
		t.Fatalf("expected mlss 7500, got %v", rec.MLSS)
	}
}

func TestCSVHistoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "history.csv")
	store := NewCSVHistoryStore(path)

	older := sampleRecord(time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC))
	newer := HistoryRecord{
		Timestamp: time.Date(2024, 3, 2, 9, 15, 0, 0, time.FixedZone("ICT", 7*3600)),
		Flow:      101.25, SV30: 333.3333333333333, MLSS: 2777.777777777778, DO: 0.1 + 0.2,
		PHInlet: 7.05, PHAeration: 6.45, PHEffluent: 7.1, Chlorine: 0.15, FMRatio: 0.13, SVI: 118,
	}
	for _, rec := range []HistoryRecord{older, newer} {
		if err := store.Append(ctx, rec); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	records, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	assertRecord(t, records[0], newer)
	assertRecord(t, records[1], older)

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.HasPrefix(raw, utf8BOM) {
		t.Fatalf("expected BOM prefix")
	}
	if got := strings.Count(string(raw), "Timestamp,Flow"); got != 1 {
		t.Fatalf("expected one header row, got %d", got)
	}
}

func assertRecord(t *testing.T, got, want HistoryRecord) {
	t.Helper()
	if !got.Timestamp.Equal(want.Timestamp) {
		t.Fatalf("timestamp: expected %v got %v", want.Timestamp, got.Timestamp)
	}
	got.Timestamp = want.Timestamp
	if got != want {
		t.Fatalf("expected %+v got %+v", want, got)
	}
}

func TestCSVHistoryEmptyAndClear(t *testing.T) {
	ctx := context.Background()
	store := NewCSVHistoryStore(filepath.Join(t.TempDir(), "history.csv"))
	records, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected no records")
	}
	if err := store.Clear(ctx); err != nil {
		t.Fatalf("clear on missing file: %v", err)
	}
	if err := store.Append(ctx, sampleRecord(time.Now())); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := store.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, err := os.Stat(store.Path()); !os.IsNotExist(err) {
		t.Fatalf("expected history file removed, got %v", err)
	}
	if err := store.Append(ctx, sampleRecord(time.Now())); err != nil {
		t.Fatalf("append after clear: %v", err)
	}
	records, _ = store.List(ctx)
	if len(records) != 1 {
		t.Fatalf("expected 1 record after clear and append, got %d", len(records))
	}
}

func TestReadHistoryCSVLegacyRows(t *testing.T) {
	data := "\ufeffTimestamp,Flow,SV30,MLSS,DO,pH_In,pH_Aer,pH_Out,Cl2,FM,SVI\n" +
		"2024-01-05 14:30,98,900,7500.0,2.0,7.0,7.2,7.0,0.5,0.05,120.0\n"
	records, err := ReadHistoryCSV(strings.NewReader(data))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record")
	}
	want := time.Date(2024, 1, 5, 14, 30, 0, 0, time.Local)
	if !records[0].Timestamp.Equal(want) || records[0].MLSS != 7500 {
		t.Fatalf("unexpected record %+v", records[0])
	}
}

func TestReadHistoryCSVErrors(t *testing.T) {
	cases := map[string]string{
		"missing column": "Timestamp,Flow\n2024-01-05 14:30,98\n",
		"bad number":     "Timestamp,Flow,SV30,MLSS,DO,pH_In,pH_Aer,pH_Out,Cl2,FM,SVI\n2024-01-05 14:30,x,900,7500,2,7,7.2,7,0.5,0.05,120\n",
		"bad timestamp":  "Timestamp,Flow,SV30,MLSS,DO,pH_In,pH_Aer,pH_Out,Cl2,FM,SVI\nyesterday,98,900,7500,2,7,7.2,7,0.5,0.05,120\n",
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := ReadHistoryCSV(strings.NewReader(data)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestWriteHistoryCSV(t *testing.T) {
	var buf bytes.Buffer
	recs := []HistoryRecord{sampleRecord(time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC))}
	if err := WriteHistoryCSV(&buf, recs); err != nil {
		t.Fatalf("write: %v", err)
	}
	back, err := ReadHistoryCSV(&buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(back) != 1 {
		t.Fatalf("expected 1 record, got %d", len(back))
	}
	assertRecord(t, back[0], recs[0])
}

func TestCSVHistoryAppendFailure(t *testing.T) {
	dir := t.TempDir()
	store := NewCSVHistoryStore(dir)
	if err := store.Append(context.Background(), sampleRecord(time.Now())); err == nil {
		t.Fatalf("expected error appending to a directory path")
	}
}
