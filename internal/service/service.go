// Package service implements business logic, validation, and orchestration
// between the HTTP and chat handlers and the store layer.
package service

import (
	"context"
	"errors"

	"github.com/Shivanand-hulikatti/mantikon-registration/internal/model"
)

var (
	// ErrMissingIdentity is returned when a registration carries neither a
	// telegram id nor a name to synthesize an identity key from.
	ErrMissingIdentity = errors.New("telegram_id or name required")

	// ErrInvalidRequest wraps field-level validation failures.
	ErrInvalidRequest = errors.New("invalid request")
)

// OfferingStore reads game tables.
type OfferingStore interface {
	List(ctx context.Context) ([]model.Offering, error)
}

// RegistrationStore persists registrations. Implemented by
// repository.RegistrationRepository and sqlite.Store.
type RegistrationStore interface {
	Book(ctx context.Context, b model.Booking) (*model.Registration, error)
	ListRows(ctx context.Context) ([]model.RegistrationRow, error)
	Delete(ctx context.Context, id int64) (*model.Registration, error)
	CountOrphans(ctx context.Context) (int, error)
	DeleteOrphans(ctx context.Context) (int64, error)
}

// NoticeDispatcher hands a registration notice to the outbound notifiers.
// Dispatch must not block on delivery.
type NoticeDispatcher interface {
	Dispatch(notice model.RegistrationNotice)
}
