// file: csv_history.go
package wis

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// utf8BOM prefixes every history file so spreadsheet tools pick UTF-8.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVHistoryStore keeps the history as one CSV file with a header row.
type CSVHistoryStore struct {
	mu   sync.Mutex
	path string
}

func NewCSVHistoryStore(path string) *CSVHistoryStore {
	if strings.TrimSpace(path) == "" {
		path = DefaultHistoryPath
	}
	return &CSVHistoryStore{path: path}
}

func (s *CSVHistoryStore) Path() string {
	return s.path
}

func (s *CSVHistoryStore) Append(ctx context.Context, rec HistoryRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create history dir: %w", err)
		}
	}
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open csv history: %w", err)
	}
	defer f.Close()
	stat, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat csv history: %w", err)
	}

	w := csv.NewWriter(f)
	if stat.Size() == 0 {
		if _, err := f.Write(utf8BOM); err != nil {
			return fmt.Errorf("append csv history: %w", err)
		}
		if err := w.Write(HistoryColumns); err != nil {
			return fmt.Errorf("append csv history: %w", err)
		}
	}
	if err := w.Write(historyRow(rec)); err != nil {
		return fmt.Errorf("append csv history: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("append csv history: %w", err)
	}
	return f.Sync()
}

func (s *CSVHistoryStore) List(ctx context.Context) ([]HistoryRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []HistoryRecord{}, nil
		}
		return nil, fmt.Errorf("open csv history: %w", err)
	}
	defer f.Close()
	records, err := ReadHistoryCSV(f)
	if err != nil {
		return nil, err
	}
	return sortHistory(records), nil
}

// Clear deletes the history file. A missing file is not an error.
func (s *CSVHistoryStore) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("clear csv history: %w", err)
	}
	return nil
}

func (s *CSVHistoryStore) Close() error {
	return nil
}

// WriteHistoryCSV renders records in the history file format, BOM and header included.
func WriteHistoryCSV(w io.Writer, records []HistoryRecord) error {
	if _, err := w.Write(utf8BOM); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(HistoryColumns); err != nil {
		return err
	}
	for _, rec := range records {
		if err := cw.Write(historyRow(rec)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadHistoryCSV parses a history file. The BOM is optional.
func ReadHistoryCSV(r io.Reader) ([]HistoryRecord, error) {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}
	cr := csv.NewReader(br)
	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return []HistoryRecord{}, nil
		}
		return nil, fmt.Errorf("read csv history header: %w", err)
	}
	index, err := headerIndex(header)
	if err != nil {
		return nil, err
	}
	records := []HistoryRecord{}
	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv history: %w", err)
		}
		rec, err := parseHistoryRow(row, index)
		if err != nil {
			return nil, fmt.Errorf("csv history line %d: %w", line, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func headerIndex(header []string) (map[string]int, error) {
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(name)] = i
	}
	for _, col := range HistoryColumns {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("csv history missing column %q", col)
		}
	}
	return index, nil
}

func historyRow(rec HistoryRecord) []string {
	return []string{
		rec.Timestamp.Format(time.RFC3339Nano),
		formatValue(rec.Flow),
		formatValue(rec.SV30),
		formatValue(rec.MLSS),
		formatValue(rec.DO),
		formatValue(rec.PHInlet),
		formatValue(rec.PHAeration),
		formatValue(rec.PHEffluent),
		formatValue(rec.Chlorine),
		formatValue(rec.FMRatio),
		formatValue(rec.SVI),
	}
}

func parseHistoryRow(row []string, index map[string]int) (HistoryRecord, error) {
	var rec HistoryRecord
	ts, err := parseTimestamp(row[index["Timestamp"]])
	if err != nil {
		return HistoryRecord{}, err
	}
	rec.Timestamp = ts
	fields := []struct {
		column string
		dst    *float64
	}{
		{"Flow", &rec.Flow},
		{"SV30", &rec.SV30},
		{"MLSS", &rec.MLSS},
		{"DO", &rec.DO},
		{"pH_In", &rec.PHInlet},
		{"pH_Aer", &rec.PHAeration},
		{"pH_Out", &rec.PHEffluent},
		{"Cl2", &rec.Chlorine},
		{"FM", &rec.FMRatio},
		{"SVI", &rec.SVI},
	}
	for _, field := range fields {
		raw := strings.TrimSpace(row[index[field.column]])
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return HistoryRecord{}, fmt.Errorf("column %s: %w", field.column, err)
		}
		*field.dst = v
	}
	return rec, nil
}
