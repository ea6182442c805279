// file: sql_history.go
package wis

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var historySQLColumns = []string{
	"recorded_at", "flow", "sv30", "mlss", "dissolved_oxygen",
	"ph_inlet", "ph_aeration", "ph_effluent", "chlorine", "fm_ratio", "svi",
}

// sqlDialect captures what differs between the supported databases.
type sqlDialect struct {
	name        string
	quote       func(string) string
	placeholder func(i int) string
	createTable func(table string) string
	maxSegments int
}

// SQLHistoryStore keeps the history in a relational table.
type SQLHistoryStore struct {
	db      *sql.DB
	dialect sqlDialect
	table   string
}

// NewSQLHistoryStore wraps an open database. dialect is postgres, mysql or mssql.
func NewSQLHistoryStore(db *sql.DB, dialect string, table string) (*SQLHistoryStore, error) {
	d, err := dialectFor(dialect)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(table) == "" {
		table = DefaultHistoryTable
	}
	quoted, _, err := quoteQualified(table, d.maxSegments, d.quote)
	if err != nil {
		return nil, fmt.Errorf("invalid history table: %w", err)
	}
	return &SQLHistoryStore{db: db, dialect: d, table: quoted}, nil
}

func dialectFor(name string) (sqlDialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "postgres", "postgresql":
		return postgresDialect, nil
	case "mysql":
		return mysqlDialect, nil
	case "mssql", "sqlserver":
		return mssqlDialect, nil
	default:
		return sqlDialect{}, fmt.Errorf("unsupported sql dialect %q", name)
	}
}

// EnsureSchema creates the history table when it does not exist.
func (s *SQLHistoryStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, s.dialect.createTable(s.table)); err != nil {
		return fmt.Errorf("create %s history table: %w", s.dialect.name, err)
	}
	return nil
}

func (s *SQLHistoryStore) Append(ctx context.Context, rec HistoryRecord) error {
	cols, err := quoteList(historySQLColumns, s.dialect.quote)
	if err != nil {
		return err
	}
	marks := make([]string, len(historySQLColumns))
	for i := range marks {
		marks[i] = s.dialect.placeholder(i + 1)
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", s.table, cols, strings.Join(marks, ", "))
	_, err = s.db.ExecContext(ctx, query,
		rec.Timestamp, rec.Flow, rec.SV30, rec.MLSS, rec.DO,
		rec.PHInlet, rec.PHAeration, rec.PHEffluent, rec.Chlorine, rec.FMRatio, rec.SVI,
	)
	if err != nil {
		return fmt.Errorf("append %s history: %w", s.dialect.name, err)
	}
	return nil
}

func (s *SQLHistoryStore) List(ctx context.Context) ([]HistoryRecord, error) {
	cols, err := quoteList(historySQLColumns, s.dialect.quote)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY %s DESC", cols, s.table, s.dialect.quote("recorded_at"))
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list %s history: %w", s.dialect.name, err)
	}
	defer rows.Close()
	results := []HistoryRecord{}
	for rows.Next() {
		var rec HistoryRecord
		if err := rows.Scan(&rec.Timestamp, &rec.Flow, &rec.SV30, &rec.MLSS, &rec.DO,
			&rec.PHInlet, &rec.PHAeration, &rec.PHEffluent, &rec.Chlorine, &rec.FMRatio, &rec.SVI); err != nil {
			return nil, fmt.Errorf("scan %s history: %w", s.dialect.name, err)
		}
		results = append(results, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s history: %w", s.dialect.name, err)
	}
	return sortHistory(results), nil
}

func (s *SQLHistoryStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM "+s.table); err != nil {
		return fmt.Errorf("clear %s history: %w", s.dialect.name, err)
	}
	return nil
}

func (s *SQLHistoryStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping %s: %w", s.dialect.name, err)
	}
	return nil
}

// Prepare pings the database and creates the history table if needed.
func (s *SQLHistoryStore) Prepare(ctx context.Context) error {
	if err := s.Ping(ctx); err != nil {
		return err
	}
	return s.EnsureSchema(ctx)
}

func (s *SQLHistoryStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func openDatabase(driverName, dsn string) (*sql.DB, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, err
	}
	return db, nil
}

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_$]*$`)

func splitIdentifier(ident string) ([]string, error) {
	trimmed := strings.TrimSpace(ident)
	if trimmed == "" {
		return nil, errors.New("identifier is empty")
	}
	parts := strings.Split(trimmed, ".")
	for _, part := range parts {
		if part == "" {
			return nil, errors.New("identifier contains empty segment")
		}
		if !identPattern.MatchString(part) {
			return nil, fmt.Errorf("identifier segment %q is invalid", part)
		}
	}
	return parts, nil
}

func quoteQualified(ident string, maxSegments int, quote func(string) string) (string, []string, error) {
	parts, err := splitIdentifier(ident)
	if err != nil {
		return "", nil, err
	}
	if maxSegments > 0 && len(parts) > maxSegments {
		return "", nil, fmt.Errorf("identifier %q has too many segments", ident)
	}
	quoted := make([]string, len(parts))
	for i, part := range parts {
		quoted[i] = quote(part)
	}
	return strings.Join(quoted, "."), parts, nil
}

func quoteList(names []string, quote func(string) string) (string, error) {
	if len(names) == 0 {
		return "", errors.New("no columns provided")
	}
	quoted := make([]string, len(names))
	for i, name := range names {
		parts, err := splitIdentifier(name)
		if err != nil || len(parts) != 1 {
			return "", fmt.Errorf("invalid column name %q", name)
		}
		quoted[i] = quote(name)
	}
	return strings.Join(quoted, ", "), nil
}
