package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const ledgerTable = "schema_migrations"

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	dir := os.Getenv("MIGRATIONS_DIR")
	if dir == "" {
		dir = "migrations"
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		logger.Error("failed to connect", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	files, err := listMigrations(dir)
	if err != nil {
		logger.Error("failed to list migrations", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if _, err := pool.Exec(ctx, ledgerSchema); err != nil {
		logger.Error("failed to create migration ledger", slog.String("error", err.Error()))
		os.Exit(1)
	}
	applied, err := appliedMigrations(ctx, pool)
	if err != nil {
		logger.Error("failed to read migration ledger", slog.String("error", err.Error()))
		os.Exit(1)
	}
	pending := pendingMigrations(files, applied)
	if len(pending) == 0 {
		logger.Info("schema up to date", slog.Int("applied", len(applied)))
		return
	}
	for _, file := range pending {
		if err := applyMigration(ctx, pool, file); err != nil {
			logger.Error("failed to apply migration", slog.String("file", file), slog.String("error", err.Error()))
			os.Exit(1)
		}
		logger.Info("applied migration", slog.String("file", filepath.Base(file)))
	}
}

var ledgerSchema = fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	name TEXT PRIMARY KEY,
	applied_at TIMESTAMPTZ NOT NULL
)`, ledgerTable)

// listMigrations returns the .sql files in dir in apply order.
func listMigrations(dir string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.sql"))
	if err != nil {
		return nil, err
	}
	sort.Slice(files, func(i, j int) bool { return filepath.Base(files[i]) < filepath.Base(files[j]) })
	return files, nil
}

// pendingMigrations keeps the files whose base name is not in the ledger yet.
func pendingMigrations(files []string, applied map[string]bool) []string {
	var out []string
	for _, file := range files {
		if !applied[filepath.Base(file)] {
			out = append(out, file)
		}
	}
	return out
}

func appliedMigrations(ctx context.Context, pool *pgxpool.Pool) (map[string]bool, error) {
	rows, err := pool.Query(ctx, "SELECT name FROM "+ledgerTable)
	if err != nil {
		return nil, err
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, err
	}
	applied := make(map[string]bool, len(names))
	for _, name := range names {
		applied[name] = true
	}
	return applied, nil
}

// applyMigration runs one file and records it in the same transaction, so a
// failed script leaves neither its changes nor a ledger row behind.
func applyMigration(ctx context.Context, pool *pgxpool.Pool, file string) error {
	content, err := os.ReadFile(file)
	if err != nil {
		return err
	}
	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	if _, err := tx.Exec(ctx, string(content)); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, "INSERT INTO "+ledgerTable+" (name, applied_at) VALUES ($1, $2)", filepath.Base(file), time.Now().UTC()); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
