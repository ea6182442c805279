// file: mysql_history.go
package wis

import (
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"
)

var mysqlDialect = sqlDialect{
	name:        "mysql",
	quote:       func(s string) string { return "`" + s + "`" },
	placeholder: func(int) string { return "?" },
	maxSegments: 2,
	createTable: func(table string) string {
		return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s ("+
			"id BIGINT AUTO_INCREMENT PRIMARY KEY, "+
			"`recorded_at` DATETIME(6) NOT NULL, "+
			"`flow` DOUBLE NOT NULL, "+
			"`sv30` DOUBLE NOT NULL, "+
			"`mlss` DOUBLE NOT NULL, "+
			"`dissolved_oxygen` DOUBLE NOT NULL, "+
			"`ph_inlet` DOUBLE NOT NULL, "+
			"`ph_aeration` DOUBLE NOT NULL, "+
			"`ph_effluent` DOUBLE NOT NULL, "+
			"`chlorine` DOUBLE NOT NULL, "+
			"`fm_ratio` DOUBLE NOT NULL, "+
			"`svi` DOUBLE NOT NULL, "+
			"INDEX idx_recorded_at (`recorded_at`))", table)
	},
}

func newMySQLHistoryStore(cfg StoreConfig) (*SQLHistoryStore, error) {
	if cfg.Port == 0 {
		cfg.Port = 3306
	}
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&loc=UTC", cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database)
	sslMode := strings.ToLower(strings.TrimSpace(cfg.SSLMode))
	if sslMode == "disable" {
		dsn += "&tls=false"
	} else if sslMode != "" {
		dsn += "&tls=true"
	}
	db, err := openDatabase("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql connection: %w", err)
	}
	store, err := NewSQLHistoryStore(db, "mysql", cfg.Table)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}
