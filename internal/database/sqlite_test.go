package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrateSQLiteUpgradesLegacyUsersTable(t *testing.T) {
	ctx := context.Background()
	db, err := OpenSQLite(ctx, ":memory:")
	require.NoError(t, err)
	defer db.Close()

	// The first release only had these columns.
	_, err = db.ExecContext(ctx, `CREATE TABLE users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		telegram_id TEXT UNIQUE,
		username TEXT,
		first_name TEXT,
		last_name TEXT,
		registered_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		meta TEXT
	)`)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `INSERT INTO users (telegram_id, username, meta) VALUES ('Bob-1', 'Bob', '{"tableId":"5"}')`)
	require.NoError(t, err)

	require.NoError(t, MigrateSQLite(ctx, db))
	// A second run must be a no-op.
	require.NoError(t, MigrateSQLite(ctx, db))

	var names []string
	require.NoError(t, db.NewRaw("SELECT name FROM pragma_table_info('users')").Scan(ctx, &names))
	assert.Contains(t, names, "name")
	assert.Contains(t, names, "contact")
	assert.Contains(t, names, "table_id")

	var count int
	require.NoError(t, db.NewRaw("SELECT COUNT(*) FROM users WHERE table_id IS NULL").Scan(ctx, &count))
	assert.Equal(t, 1, count)
}

func TestOpenSQLiteCreatesDirectory(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "app.db")

	db, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, MigrateSQLite(ctx, db))

	_, err = os.Stat(filepath.Dir(path))
	assert.NoError(t, err)
}
