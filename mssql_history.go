// file: mssql_history.go
package wis

import (
	"fmt"
	"net/url"
	"strings"

	_ "github.com/microsoft/go-mssqldb"
)

var mssqlDialect = sqlDialect{
	name:        "mssql",
	quote:       func(s string) string { return "[" + s + "]" },
	placeholder: func(i int) string { return fmt.Sprintf("@p%d", i) },
	maxSegments: 2,
	createTable: func(table string) string {
		return fmt.Sprintf(`IF OBJECT_ID(N'%s', N'U') IS NULL
CREATE TABLE %s (
	id BIGINT IDENTITY(1,1) PRIMARY KEY,
	[recorded_at] DATETIMEOFFSET NOT NULL,
	[flow] FLOAT NOT NULL,
	[sv30] FLOAT NOT NULL,
	[mlss] FLOAT NOT NULL,
	[dissolved_oxygen] FLOAT NOT NULL,
	[ph_inlet] FLOAT NOT NULL,
	[ph_aeration] FLOAT NOT NULL,
	[ph_effluent] FLOAT NOT NULL,
	[chlorine] FLOAT NOT NULL,
	[fm_ratio] FLOAT NOT NULL,
	[svi] FLOAT NOT NULL
)`, table, table)
	},
}

func newMSSQLHistoryStore(cfg StoreConfig) (*SQLHistoryStore, error) {
	if cfg.Port == 0 {
		cfg.Port = 1433
	}
	user := url.QueryEscape(cfg.User)
	pass := url.QueryEscape(cfg.Password)
	sslMode := strings.ToLower(strings.TrimSpace(cfg.SSLMode))
	encrypt := "true"
	if sslMode == "disable" {
		encrypt = "disable"
	}
	dsn := fmt.Sprintf("sqlserver://%s:%s@%s:%d?database=%s&encrypt=%s", user, pass, cfg.Host, cfg.Port, url.QueryEscape(cfg.Database), encrypt)
	db, err := openDatabase("sqlserver", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mssql connection: %w", err)
	}
	store, err := NewSQLHistoryStore(db, "mssql", cfg.Table)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}
