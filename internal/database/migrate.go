package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// postgresSchema creates the tables and upgrades users tables created before
// registrations carried a normalized table reference.
var postgresSchema = []string{
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
		remaining_seats INTEGER CHECK (remaining_seats >= 0)
	)`,
	`ALTER TABLE game_tables ADD COLUMN IF NOT EXISTS master_link TEXT`,
	`CREATE TABLE IF NOT EXISTS users (
		id            BIGSERIAL PRIMARY KEY,
		telegram_id   TEXT UNIQUE NOT NULL,
		username      TEXT,
		first_name    TEXT,
		last_name     TEXT,
		registered_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		meta          JSONB
	)`,
	`ALTER TABLE users ADD COLUMN IF NOT EXISTS name TEXT`,
	`ALTER TABLE users ADD COLUMN IF NOT EXISTS contact TEXT`,
	`ALTER TABLE users ADD COLUMN IF NOT EXISTS table_id TEXT REFERENCES game_tables(id) ON DELETE SET NULL`,
	`CREATE INDEX IF NOT EXISTS idx_users_table_id ON users(table_id)`,
}

// Migrate applies the Postgres schema. Every statement is idempotent.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range postgresSchema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}
