// file: postgres_history.go
package wis

import (
	"fmt"
	"strings"

	_ "github.com/lib/pq"
)

var postgresDialect = sqlDialect{
	name:        "postgres",
	quote:       func(s string) string { return "\"" + s + "\"" },
	placeholder: func(i int) string { return fmt.Sprintf("$%d", i) },
	maxSegments: 2,
	createTable: func(table string) string {
		return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id BIGSERIAL PRIMARY KEY,
	"recorded_at" TIMESTAMPTZ NOT NULL,
	"flow" DOUBLE PRECISION NOT NULL,
	"sv30" DOUBLE PRECISION NOT NULL,
	"mlss" DOUBLE PRECISION NOT NULL,
	"dissolved_oxygen" DOUBLE PRECISION NOT NULL,
	"ph_inlet" DOUBLE PRECISION NOT NULL,
	"ph_aeration" DOUBLE PRECISION NOT NULL,
	"ph_effluent" DOUBLE PRECISION NOT NULL,
	"chlorine" DOUBLE PRECISION NOT NULL,
	"fm_ratio" DOUBLE PRECISION NOT NULL,
	"svi" DOUBLE PRECISION NOT NULL
)`, table)
	},
}

func newPostgresHistoryStore(cfg StoreConfig) (*SQLHistoryStore, error) {
	if cfg.Port == 0 {
		cfg.Port = 5432
	}
	sslMode := strings.ToLower(strings.TrimSpace(cfg.SSLMode))
	if sslMode == "" {
		sslMode = "disable"
	}
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s", cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, sslMode)
	db, err := openDatabase("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}
	store, err := NewSQLHistoryStore(db, "postgres", cfg.Table)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}
