package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/Shivanand-hulikatti/mantikon-registration/internal/database"
	"github.com/Shivanand-hulikatti/mantikon-registration/internal/model"
	"github.com/Shivanand-hulikatti/mantikon-registration/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(n int) *int       { return &n }
func strPtr(s string) *string { return &s }

func setupStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()

	db, err := database.OpenSQLite(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.MigrateSQLite(ctx, db))

	return NewStore(db)
}

func seedOffering(t *testing.T, s *Store, id string, seats *int) {
	t.Helper()
	_, err := s.db.ExecContext(context.Background(),
		`INSERT INTO game_tables (id, master_name, system, remaining_seats) VALUES (?, ?, ?, ?)`,
		id, "Master "+id, "D&D 5e", seats,
	)
	require.NoError(t, err)
}

func booking(identity, name, table string, seats *int) model.Booking {
	return model.Booking{
		IdentityKey:    identity,
		Name:           name,
		TableID:        table,
		RemainingSeats: seats,
		Meta:           model.Meta{Name: model.FlexString(name), TableID: model.FlexString(table), RemainingSeats: seats},
		RegisteredAt:   time.Now().UTC(),
	}
}

func TestStore_ListMissingTableIsEmpty(t *testing.T) {
	ctx := context.Background()
	db, err := database.OpenSQLite(ctx, ":memory:")
	require.NoError(t, err)
	defer db.Close()

	offerings, err := NewStore(db).List(ctx)
	require.NoError(t, err)
	assert.Empty(t, offerings)
}

func TestStore_BookUpsertsOnIdentity(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	seedOffering(t, s, "1", intPtr(4))

	first, err := s.Book(ctx, booking("tg-1", "Bob", "1", intPtr(3)))
	require.NoError(t, err)

	b := booking("tg-1", "Robert", "1", intPtr(3))
	b.Contact = "@robert"
	second, err := s.Book(ctx, b)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Robert", second.Name)
	assert.Equal(t, "@robert", second.Contact)
	assert.Equal(t, model.FlexString("Robert"), second.Meta.Name)

	rows, err := s.ListRows(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.NotNil(t, rows[0].TableID)
	assert.Equal(t, "1", *rows[0].TableID)
}

func TestStore_BookWritesCallerSeatCount(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	seedOffering(t, s, "2", intPtr(5))

	_, err := s.Book(ctx, booking("tg-2", "Ann", "2", intPtr(4)))
	require.NoError(t, err)

	offerings, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, offerings, 1)
	require.NotNil(t, offerings[0].RemainingSeats)
	assert.Equal(t, 4, *offerings[0].RemainingSeats)
	assert.Equal(t, "Master 2", *offerings[0].MasterName)
}

func TestStore_BookCreatesShellAndKeepsExistingValues(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	b := booking("tg-3", "Kim", "9", nil)
	b.MasterName = strPtr("Vera")
	b.System = strPtr("Fate")
	_, err := s.Book(ctx, b)
	require.NoError(t, err)

	// A later booking without facilitator details must not erase them.
	_, err = s.Book(ctx, booking("tg-4", "Lee", "9", nil))
	require.NoError(t, err)

	offerings, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, offerings, 1)
	assert.Equal(t, "Vera", *offerings[0].MasterName)
	assert.Equal(t, "Fate", *offerings[0].System)
	assert.Nil(t, offerings[0].RemainingSeats)
}

func TestStore_BookIgnoresNegativeSeatCount(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	seedOffering(t, s, "3", intPtr(1))

	_, err := s.Book(ctx, booking("tg-5", "Max", "3", intPtr(-1)))
	require.NoError(t, err)

	offerings, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, *offerings[0].RemainingSeats)
}

func TestStore_BookServerDecrement(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	seedOffering(t, s, "4", intPtr(2))

	b := booking("tg-6", "Ola", "4", nil)
	b.Decrement = true
	reg, err := s.Book(ctx, b)
	require.NoError(t, err)
	require.NotNil(t, reg.Meta.RemainingSeats)
	assert.Equal(t, 1, *reg.Meta.RemainingSeats)

	// Re-registering on the same table does not take another seat.
	reg, err = s.Book(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, 1, *reg.Meta.RemainingSeats)

	c := booking("tg-7", "Pia", "4", nil)
	c.Decrement = true
	_, err = s.Book(ctx, c)
	require.NoError(t, err)

	d := booking("tg-8", "Rex", "4", nil)
	d.Decrement = true
	_, err = s.Book(ctx, d)
	assert.ErrorIs(t, err, repository.ErrNoSeatsLeft)

	rows, err := s.ListRows(ctx)
	require.NoError(t, err)
	assert.Len(t, rows, 2, "a rejected booking must not leave a registration behind")

	offerings, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, *offerings[0].RemainingSeats)
}

func TestStore_BookWithoutTableKeepsPreviousTable(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	seedOffering(t, s, "5", intPtr(3))

	_, err := s.Book(ctx, booking("tg-9", "Sam", "5", intPtr(2)))
	require.NoError(t, err)
	reg, err := s.Book(ctx, booking("tg-9", "Sam", "", nil))
	require.NoError(t, err)

	require.NotNil(t, reg.TableID)
	assert.Equal(t, "5", *reg.TableID)
}

func TestStore_ListRowsJoinsOffering(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	seedOffering(t, s, "6", intPtr(3))

	_, err := s.Book(ctx, booking("tg-10", "Tom", "6", intPtr(2)))
	require.NoError(t, err)

	rows, err := s.ListRows(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Master 6", *rows[0].OfferingMaster)
	assert.Equal(t, "D&D 5e", *rows[0].OfferingSystem)
	assert.Equal(t, 2, *rows[0].OfferingSeats)
	assert.False(t, rows[0].RegisteredAt.IsZero())
}

func TestStore_Orphans(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	seedOffering(t, s, "7", intPtr(3))

	_, err := s.Book(ctx, booking("tg-11", "Uma", "7", intPtr(2)))
	require.NoError(t, err)

	// Legacy rows: the table only lives in metadata, or nowhere.
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO users (telegram_id, username, meta) VALUES
		 ('legacy-1', 'Val', '{"name":"Val","tableId":"5"}'),
		 ('legacy-2', 'Wes', '{"name":"Wes","tableId":12}'),
		 ('legacy-3', 'Xan', '{"name":"Xan"}'),
		 ('legacy-4', 'Yul', 'not json'),
		 ('legacy-5', 'Zed', NULL)`)
	require.NoError(t, err)

	n, err := s.CountOrphans(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	deleted, err := s.DeleteOrphans(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	rows, err := s.ListRows(ctx)
	require.NoError(t, err)
	assert.Len(t, rows, 4)
	for _, r := range rows {
		assert.False(t, r.Orphaned(), "row %s should have survived", r.TelegramID)
	}
}

func TestStore_Delete(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	reg, err := s.Book(ctx, booking("tg-12", "Ivy", "8", nil))
	require.NoError(t, err)

	removed, err := s.Delete(ctx, reg.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ivy", removed.Name)
	assert.Equal(t, "8", removed.EffectiveTableID())

	_, err = s.Delete(ctx, reg.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
