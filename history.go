// file: history.go
package wis

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

const (
	DefaultHistoryPath  = "wastewater_history.csv"
	DefaultHistoryTable = "wastewater_history"
)

// HistoryColumns is the fixed column set of the tabular history, in file order.
var HistoryColumns = []string{"Timestamp", "Flow", "SV30", "MLSS", "DO", "pH_In", "pH_Aer", "pH_Out", "Cl2", "FM", "SVI"}

// HistoryRecord is one logged diagnosis run: the raw sample next to its metrics.
type HistoryRecord struct {
	Timestamp  time.Time `json:"timestamp"`
	Flow       float64   `json:"flow"`
	SV30       float64   `json:"sv30"`
	MLSS       float64   `json:"mlss"`
	DO         float64   `json:"do"`
	PHInlet    float64   `json:"phInlet"`
	PHAeration float64   `json:"phAeration"`
	PHEffluent float64   `json:"phEffluent"`
	Chlorine   float64   `json:"cl2"`
	FMRatio    float64   `json:"fm"`
	SVI        float64   `json:"svi"`
}

// NewHistoryRecord builds the log row for a run. F/M keeps two decimals and SVI
// none, matching how they are reported to operators.
func NewHistoryRecord(ts time.Time, sample MeasurementSample, metrics DerivedMetrics) HistoryRecord {
	return HistoryRecord{
		Timestamp:  ts.Truncate(time.Second),
		Flow:       sample.ActualFlow,
		SV30:       sample.SV30,
		MLSS:       metrics.MLSS,
		DO:         sample.DissolvedOxygen,
		PHInlet:    sample.PHInlet,
		PHAeration: sample.PHAeration,
		PHEffluent: sample.PHEffluent,
		Chlorine:   sample.ChlorineResidual,
		FMRatio:    roundTo(metrics.FMRatio, 2),
		SVI:        roundTo(metrics.SVI, 0),
	}
}

func roundTo(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}

// HistoryStore is the append-only log of diagnosis runs.
type HistoryStore interface {
	Append(ctx context.Context, rec HistoryRecord) error

	// List returns every record, newest first.
	List(ctx context.Context) ([]HistoryRecord, error)

	Clear(ctx context.Context) error

	Close() error
}

type StoreConfig struct {
	Type     string // csv | postgres | mysql | mssql
	Path     string
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	Table    string
}

func NewHistoryStore(cfg StoreConfig) (HistoryStore, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Type)) {
	case "", "csv":
		return NewCSVHistoryStore(cfg.Path), nil
	case "postgres", "postgresql":
		return newPostgresHistoryStore(cfg)
	case "mysql":
		return newMySQLHistoryStore(cfg)
	case "mssql", "sqlserver":
		return newMSSQLHistoryStore(cfg)
	default:
		return nil, fmt.Errorf("unsupported history store type %q", cfg.Type)
	}
}

// OpenHistoryStore builds the store cfg names and, for SQL backends, checks the
// connection and creates the history table before the first Append.
func OpenHistoryStore(ctx context.Context, cfg StoreConfig) (HistoryStore, error) {
	store, err := NewHistoryStore(cfg)
	if err != nil {
		return nil, err
	}
	if err := prepareHistoryStore(ctx, store); err != nil {
		return nil, err
	}
	return store, nil
}

func prepareHistoryStore(ctx context.Context, store HistoryStore) error {
	sqlStore, ok := store.(*SQLHistoryStore)
	if !ok {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := sqlStore.Prepare(ctx); err != nil {
		sqlStore.Close()
		return err
	}
	return nil
}

// MirroredHistoryStore appends to a primary store and copies each record to
// the mirrors. Reads come from the primary only.
type MirroredHistoryStore struct {
	Primary HistoryStore
	Mirrors []HistoryStore
}

func (m *MirroredHistoryStore) Append(ctx context.Context, rec HistoryRecord) error {
	if err := m.Primary.Append(ctx, rec); err != nil {
		return err
	}
	var errs []error
	for _, mirror := range m.Mirrors {
		if err := mirror.Append(ctx, rec); err != nil {
			errs = append(errs, fmt.Errorf("mirror append: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (m *MirroredHistoryStore) List(ctx context.Context) ([]HistoryRecord, error) {
	return m.Primary.List(ctx)
}

func (m *MirroredHistoryStore) Clear(ctx context.Context) error {
	errs := []error{m.Primary.Clear(ctx)}
	for _, mirror := range m.Mirrors {
		errs = append(errs, mirror.Clear(ctx))
	}
	return errors.Join(errs...)
}

func (m *MirroredHistoryStore) Close() error {
	errs := []error{m.Primary.Close()}
	for _, mirror := range m.Mirrors {
		errs = append(errs, mirror.Close())
	}
	return errors.Join(errs...)
}

func sortHistory(records []HistoryRecord) []HistoryRecord {
	if records == nil {
		return []HistoryRecord{}
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp.After(records[j].Timestamp)
	})
	return records
}

func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	// older logs use local wall-clock time with minute precision
	for _, layout := range []string{"2006-01-02 15:04:05", "2006-01-02 15:04"} {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported timestamp %q", s)
}
