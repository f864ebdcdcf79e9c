// Package repository implements the Postgres queries for offerings and
// registrations. It uses pgx directly (no ORM).
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Shivanand-hulikatti/mantikon-registration/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// ErrNoSeatsLeft is returned by a server-side decrement on a full table.
var ErrNoSeatsLeft = errors.New("no seats left at this table")

// SQLSTATE for "relation does not exist".
const undefinedTable = "42P01"

// OfferingRepository handles persistence for game tables.
type OfferingRepository struct {
	db *pgxpool.Pool
}

// NewOfferingRepository constructs an OfferingRepository.
func NewOfferingRepository(db *pgxpool.Pool) *OfferingRepository {
	return &OfferingRepository{db: db}
}

// List returns all offerings in storage order. A missing table means the
// seeding job has not run yet and yields an empty list.
func (r *OfferingRepository) List(ctx context.Context) ([]model.Offering, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, master_name, master_link, system, adventure_name, description,
		        age_range, novices, pregens, player_count, remaining_seats
		 FROM game_tables`,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == undefinedTable {
			return []model.Offering{}, nil
		}
		return nil, fmt.Errorf("list offerings: %w", err)
	}
	defer rows.Close()

	offerings := []model.Offering{}
	for rows.Next() {
		var o model.Offering
		if err := rows.Scan(
			&o.ID, &o.MasterName, &o.MasterLink, &o.System, &o.AdventureName, &o.Description,
			&o.AgeRange, &o.Novices, &o.Pregens, &o.PlayerCount, &o.RemainingSeats,
		); err != nil {
			return nil, fmt.Errorf("scan offering: %w", err)
		}
		offerings = append(offerings, o)
	}
	return offerings, rows.Err()
}

// RegistrationRepository handles persistence for registrations.
type RegistrationRepository struct {
	db *pgxpool.Pool
}

// NewRegistrationRepository constructs a RegistrationRepository.
func NewRegistrationRepository(db *pgxpool.Pool) *RegistrationRepository {
	return &RegistrationRepository{db: db}
}

const registrationColumns = `id, telegram_id, COALESCE(name, ''), COALESCE(username, ''),
	COALESCE(first_name, ''), COALESCE(last_name, ''), COALESCE(contact, ''),
	registered_at, table_id, meta`

func scanRegistration(row pgx.Row, reg *model.Registration, extra ...any) error {
	dest := append([]any{
		&reg.ID, &reg.TelegramID, &reg.Name, &reg.Username, &reg.FirstName, &reg.LastName,
		&reg.Contact, &reg.RegisteredAt, &reg.TableID, &reg.Meta,
	}, extra...)
	return row.Scan(dest...)
}

// Book records a registration inside a single transaction:
//
//  1. upsert the offering shell, keeping stored values the booking leaves nil
//  2. adjust the seat count, either by trusting the caller's value or by a
//     conditional decrement that cannot go below zero
//  3. upsert the registration on its identity key and point it at the table
//
// Only the conditional decrement is safe against concurrent bookings; the
// caller-computed value can lose updates.
func (r *RegistrationRepository) Book(ctx context.Context, b model.Booking) (*model.Registration, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	var tableID *string
	if b.TableID != "" {
		tableID = &b.TableID

		_, err = tx.Exec(ctx,
			`INSERT INTO game_tables (id, master_name, system)
			 VALUES ($1, $2, $3)
			 ON CONFLICT (id) DO UPDATE SET
			   master_name = COALESCE(EXCLUDED.master_name, game_tables.master_name),
			   system      = COALESCE(EXCLUDED.system, game_tables.system)`,
			b.TableID, b.MasterName, b.System,
		)
		if err != nil {
			return nil, fmt.Errorf("upsert offering: %w", err)
		}

		if b.Decrement {
			err = r.decrement(ctx, tx, &b)
			if err != nil {
				return nil, err
			}
		} else if b.RemainingSeats != nil && *b.RemainingSeats >= 0 {
			_, err = tx.Exec(ctx,
				`UPDATE game_tables SET remaining_seats = $2 WHERE id = $1`,
				b.TableID, *b.RemainingSeats,
			)
			if err != nil {
				return nil, fmt.Errorf("update remaining seats: %w", err)
			}
		}
	}

	reg := &model.Registration{}
	err = scanRegistration(tx.QueryRow(ctx,
		`INSERT INTO users (telegram_id, name, username, first_name, last_name, contact, table_id, meta, registered_at)
		 VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), $7, $8, $9)
		 ON CONFLICT (telegram_id) DO UPDATE SET
		   name       = EXCLUDED.name,
		   username   = EXCLUDED.username,
		   first_name = EXCLUDED.first_name,
		   last_name  = EXCLUDED.last_name,
		   contact    = EXCLUDED.contact,
		   meta       = EXCLUDED.meta,
		   table_id   = COALESCE(EXCLUDED.table_id, users.table_id)
		 RETURNING `+registrationColumns,
		b.IdentityKey, b.Name, b.Username, b.FirstName, b.LastName, b.Contact, tableID, b.Meta, b.RegisteredAt,
	), reg)
	if err != nil {
		return nil, fmt.Errorf("upsert registration: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return reg, nil
}

// decrement takes one seat unless this identity already holds a seat at the
// same table. It records the resulting count in the booking's metadata.
func (r *RegistrationRepository) decrement(ctx context.Context, tx pgx.Tx, b *model.Booking) error {
	var current *string
	err := tx.QueryRow(ctx,
		`SELECT table_id FROM users WHERE telegram_id = $1`, b.IdentityKey,
	).Scan(&current)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("lookup existing registration: %w", err)
	}

	var seats *int
	if current != nil && *current == b.TableID {
		err = tx.QueryRow(ctx,
			`SELECT remaining_seats FROM game_tables WHERE id = $1`, b.TableID,
		).Scan(&seats)
		if err != nil {
			return fmt.Errorf("read remaining seats: %w", err)
		}
	} else {
		err = tx.QueryRow(ctx,
			`UPDATE game_tables
			 SET remaining_seats = remaining_seats - 1
			 WHERE id = $1 AND (remaining_seats IS NULL OR remaining_seats > 0)
			 RETURNING remaining_seats`,
			b.TableID,
		).Scan(&seats)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNoSeatsLeft
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
func (r *RegistrationRepository) ListRows(ctx context.Context) ([]model.RegistrationRow, error) {
	rows, err := r.db.Query(ctx,
		`SELECT u.id, u.telegram_id, COALESCE(u.name, ''), COALESCE(u.username, ''),
		        COALESCE(u.first_name, ''), COALESCE(u.last_name, ''), COALESCE(u.contact, ''),
		        u.registered_at, u.table_id, u.meta,
		        t.master_name, t.system, t.remaining_seats
		 FROM users u
		 LEFT JOIN game_tables t ON t.id = u.table_id
		 ORDER BY u.registered_at ASC, u.id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	defer rows.Close()

	var out []model.RegistrationRow
	for rows.Next() {
		var row model.RegistrationRow
		if err := scanRegistration(rows, &row.Registration,
			&row.OfferingMaster, &row.OfferingSystem, &row.OfferingSeats,
		); err != nil {
			return nil, fmt.Errorf("scan registration: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// Delete removes one registration by primary key and returns what was removed.
func (r *RegistrationRepository) Delete(ctx context.Context, id int64) (*model.Registration, error) {
	reg := &model.Registration{}
	err := scanRegistration(r.db.QueryRow(ctx,
		`DELETE FROM users WHERE id = $1 RETURNING `+registrationColumns, id,
	), reg)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("delete registration: %w", err)
	}
	return reg, nil
}

// Rows whose table link exists only in the legacy metadata. The metadata
// table id must be a string or number and not blank.
const orphanPredicate = `table_id IS NULL
	AND jsonb_typeof(meta::jsonb -> 'tableId') IN ('string', 'number')
	AND BTRIM(meta::jsonb ->> 'tableId', E' \t\n\r') <> ''`

// CountOrphans counts registrations linked to a table only through metadata.
func (r *RegistrationRepository) CountOrphans(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE `+orphanPredicate).Scan(&n); err != nil {
		return 0, fmt.Errorf("count orphans: %w", err)
	}
	return n, nil
}

// DeleteOrphans removes every orphaned registration and reports how many.
func (r *RegistrationRepository) DeleteOrphans(ctx context.Context) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM users WHERE `+orphanPredicate)
	if err != nil {
		return 0, fmt.Errorf("delete orphans: %w", err)
	}
	return tag.RowsAffected(), nil
}
