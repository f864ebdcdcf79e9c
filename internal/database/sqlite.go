package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS game_tables (
		id              TEXT PRIMARY KEY,
		master_name     TEXT,
		master_link     TEXT,
		system          TEXT,
		adventure_name  TEXT,
		description     TEXT,
		age_range       TEXT,
		novices         TEXT,
		pregens         TEXT,
		player_count    INTEGER,
		remaining_seats INTEGER CHECK (remaining_seats IS NULL OR remaining_seats >= 0)
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		telegram_id   TEXT UNIQUE NOT NULL,
		username      TEXT,
		first_name    TEXT,
		last_name     TEXT,
		registered_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		meta          TEXT
	)`,
}

// Columns added after the first release; SQLite has no ADD COLUMN IF NOT EXISTS.
var sqliteUpgrades = []struct {
	table, column, ddl string
}{
	{"game_tables", "master_link", `ALTER TABLE game_tables ADD COLUMN master_link TEXT`},
	{"users", "name", `ALTER TABLE users ADD COLUMN name TEXT`},
	{"users", "contact", `ALTER TABLE users ADD COLUMN contact TEXT`},
	{"users", "table_id", `ALTER TABLE users ADD COLUMN table_id TEXT REFERENCES game_tables(id) ON DELETE SET NULL`},
}

// OpenSQLite opens (creating if needed) the SQLite file at path. Pass
// ":memory:" for a throwaway database.
func OpenSQLite(ctx context.Context, path string) (*bun.DB, error) {
	if !strings.Contains(path, ":memory:") {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	sqldb, err := sql.Open(sqliteshim.ShimName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection keeps :memory: databases alive and serializes writers.
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	return db, nil
}

// MigrateSQLite applies the SQLite schema and adds any missing columns.
func MigrateSQLite(ctx context.Context, db *bun.DB) error {
	for _, stmt := range sqliteSchema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	for _, up := range sqliteUpgrades {
		var count int
		if err := db.NewRaw(
			"SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?", up.table, up.column,
		).Scan(ctx, &count); err != nil {
			return fmt.Errorf("inspect %s: %w", up.table, err)
		}
		if count > 0 {
			continue
		}
		if _, err := db.ExecContext(ctx, up.ddl); err != nil {
			return fmt.Errorf("add %s.%s: %w", up.table, up.column, err)
		}
	}

	if _, err := db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_users_table_id ON users(table_id)`); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}
