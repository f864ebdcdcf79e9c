// Package sqlite is the SQLite implementation of the offering and
// registration stores, built on bun. It backs local development and tests.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Shivanand-hulikatti/mantikon-registration/internal/model"
	"github.com/Shivanand-hulikatti/mantikon-registration/internal/repository"
	"github.com/uptrace/bun"
)

type offeringRow struct {
	ID             string  `bun:"id"`
	MasterName     *string `bun:"master_name"`
	MasterLink     *string `bun:"master_link"`
	System         *string `bun:"system"`
	AdventureName  *string `bun:"adventure_name"`
	Description    *string `bun:"description"`
	AgeRange       *string `bun:"age_range"`
	Novices        *string `bun:"novices"`
	Pregens        *string `bun:"pregens"`
	PlayerCount    *int    `bun:"player_count"`
	RemainingSeats *int    `bun:"remaining_seats"`
}

type registrationRow struct {
	ID             int64      `bun:"id"`
	TelegramID     string     `bun:"telegram_id"`
	Name           string     `bun:"name"`
	Username       string     `bun:"username"`
	FirstName      string     `bun:"first_name"`
	LastName       string     `bun:"last_name"`
	Contact        string     `bun:"contact"`
	RegisteredAt   time.Time  `bun:"registered_at"`
	TableID        *string    `bun:"table_id"`
	Meta           model.Meta `bun:"meta"`
	OfferingMaster *string    `bun:"offering_master"`
	OfferingSystem *string    `bun:"offering_system"`
	OfferingSeats  *int       `bun:"offering_seats"`
}

func (r registrationRow) registration() *model.Registration {
	return &model.Registration{
		ID:           r.ID,
		TelegramID:   r.TelegramID,
		Name:         r.Name,
		Username:     r.Username,
		FirstName:    r.FirstName,
		LastName:     r.LastName,
		Contact:      r.Contact,
		RegisteredAt: r.RegisteredAt,
		TableID:      r.TableID,
		Meta:         r.Meta,
	}
}

const registrationColumns = `id, telegram_id, COALESCE(name, '') AS name, COALESCE(username, '') AS username,
	COALESCE(first_name, '') AS first_name, COALESCE(last_name, '') AS last_name,
	COALESCE(contact, '') AS contact, registered_at, table_id, meta`

// The metadata table id must be a string or number and not blank.
const orphanPredicate = `table_id IS NULL AND json_valid(meta)
	AND json_type(meta, '$.tableId') IN ('text', 'integer', 'real')
	AND TRIM(CAST(json_extract(meta, '$.tableId') AS TEXT), ' ' || char(9) || char(10) || char(13)) <> ''`

// Store implements both the offering and the registration store.
type Store struct {
	db *bun.DB
}

// NewStore constructs a Store over an opened and migrated bun database.
func NewStore(db *bun.DB) *Store {
	return &Store{db: db}
}

// List returns all offerings in storage order, or an empty list when the
// table does not exist yet.
func (s *Store) List(ctx context.Context) ([]model.Offering, error) {
	var rows []offeringRow
	err := s.db.NewRaw(
		`SELECT id, master_name, master_link, system, adventure_name, description,
		        age_range, novices, pregens, player_count, remaining_seats
		 FROM game_tables`,
	).Scan(ctx, &rows)
	if err != nil {
		if strings.Contains(err.Error(), "no such table") {
			return []model.Offering{}, nil
		}
		return nil, fmt.Errorf("list offerings: %w", err)
	}

	offerings := make([]model.Offering, 0, len(rows))
	for _, r := range rows {
		offerings = append(offerings, model.Offering(r))
	}
	return offerings, nil
}

// Book records a registration in one transaction. See the Postgres
// repository for the step-by-step contract.
func (s *Store) Book(ctx context.Context, b model.Booking) (*model.Registration, error) {
	var out registrationRow
	err := s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		var tableID *string
		if b.TableID != "" {
			tableID = &b.TableID

			if _, err := tx.ExecContext(ctx,
				`INSERT INTO game_tables (id, master_name, system)
				 VALUES (?, ?, ?)
				 ON CONFLICT (id) DO UPDATE SET
				   master_name = COALESCE(excluded.master_name, game_tables.master_name),
				   system      = COALESCE(excluded.system, game_tables.system)`,
				b.TableID, b.MasterName, b.System,
			); err != nil {
				return fmt.Errorf("upsert offering: %w", err)
			}

			if b.Decrement {
				if err := decrement(ctx, tx, &b); err != nil {
					return err
				}
			} else if b.RemainingSeats != nil && *b.RemainingSeats >= 0 {
				if _, err := tx.ExecContext(ctx,
					`UPDATE game_tables SET remaining_seats = ? WHERE id = ?`,
					*b.RemainingSeats, b.TableID,
				); err != nil {
					return fmt.Errorf("update remaining seats: %w", err)
				}
			}
		}

		if err := tx.NewRaw(
			`INSERT INTO users (telegram_id, name, username, first_name, last_name, contact, table_id, meta, registered_at)
			 VALUES (?, NULLIF(?, ''), NULLIF(?, ''), NULLIF(?, ''), NULLIF(?, ''), NULLIF(?, ''), ?, ?, ?)
			 ON CONFLICT (telegram_id) DO UPDATE SET
			   name       = excluded.name,
			   username   = excluded.username,
			   first_name = excluded.first_name,
			   last_name  = excluded.last_name,
			   contact    = excluded.contact,
			   meta       = excluded.meta,
			   table_id   = COALESCE(excluded.table_id, users.table_id)
			 RETURNING `+registrationColumns,
			b.IdentityKey, b.Name, b.Username, b.FirstName, b.LastName, b.Contact, tableID, b.Meta, b.RegisteredAt,
		).Scan(ctx, &out); err != nil {
			return fmt.Errorf("upsert registration: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out.registration(), nil
}

func decrement(ctx context.Context, tx bun.Tx, b *model.Booking) error {
	var current *string
	err := tx.QueryRowContext(ctx,
		`SELECT table_id FROM users WHERE telegram_id = ?`, b.IdentityKey,
	).Scan(&current)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("lookup existing registration: %w", err)
	}

	var seats *int
	if current != nil && *current == b.TableID {
		err = tx.QueryRowContext(ctx,
			`SELECT remaining_seats FROM game_tables WHERE id = ?`, b.TableID,
		).Scan(&seats)
		if err != nil {
			return fmt.Errorf("read remaining seats: %w", err)
		}
	} else {
		err = tx.QueryRowContext(ctx,
			`UPDATE game_tables
			 SET remaining_seats = remaining_seats - 1
			 WHERE id = ? AND (remaining_seats IS NULL OR remaining_seats > 0)
			 RETURNING remaining_seats`,
			b.TableID,
		).Scan(&seats)
		if errors.Is(err, sql.ErrNoRows) {
			return repository.ErrNoSeatsLeft
		}
		if err != nil {
			return fmt.Errorf("decrement remaining seats: %w", err)
		}
	}

	b.RemainingSeats = seats
	b.Meta.RemainingSeats = seats
	return nil
}

// ListRows returns every registration joined with its normalized offering,
// oldest first.
func (s *Store) ListRows(ctx context.Context) ([]model.RegistrationRow, error) {
	var rows []registrationRow
	err := s.db.NewRaw(
		`SELECT u.id, u.telegram_id, COALESCE(u.name, '') AS name, COALESCE(u.username, '') AS username,
		        COALESCE(u.first_name, '') AS first_name, COALESCE(u.last_name, '') AS last_name,
		        COALESCE(u.contact, '') AS contact, u.registered_at, u.table_id, u.meta,
		        t.master_name AS offering_master, t.system AS offering_system,
		        t.remaining_seats AS offering_seats
		 FROM users u
		 LEFT JOIN game_tables t ON t.id = u.table_id
		 ORDER BY u.registered_at ASC, u.id ASC`,
	).Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}

	out := make([]model.RegistrationRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.RegistrationRow{
			Registration:   *r.registration(),
			OfferingMaster: r.OfferingMaster,
			OfferingSystem: r.OfferingSystem,
			OfferingSeats:  r.OfferingSeats,
		})
	}
	return out, nil
}

// Delete removes one registration by primary key and returns what was removed.
func (s *Store) Delete(ctx context.Context, id int64) (*model.Registration, error) {
	var rows []registrationRow
	err := s.db.NewRaw(
		`DELETE FROM users WHERE id = ? RETURNING `+registrationColumns, id,
	).Scan(ctx, &rows)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("delete registration: %w", err)
	}
	if len(rows) == 0 {
		return nil, repository.ErrNotFound
	}
	return rows[0].registration(), nil
}

// CountOrphans counts registrations linked to a table only through metadata.
func (s *Store) CountOrphans(ctx context.Context) (int, error) {
	var n int
	if err := s.db.NewRaw(`SELECT COUNT(*) FROM users WHERE ` + orphanPredicate).Scan(ctx, &n); err != nil {
		return 0, fmt.Errorf("count orphans: %w", err)
	}
	return n, nil
}

// DeleteOrphans removes every orphaned registration and reports how many.
func (s *Store) DeleteOrphans(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE `+orphanPredicate)
	if err != nil {
		return 0, fmt.Errorf("delete orphans: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete orphans: %w", err)
	}
	return n, nil
}
