package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Shivanand-hulikatti/mantikon-registration/internal/metrics"
	"github.com/Shivanand-hulikatti/mantikon-registration/internal/model"
	"github.com/Shivanand-hulikatti/mantikon-registration/internal/report"
	"github.com/Shivanand-hulikatti/mantikon-registration/internal/repository"
	log "github.com/sirupsen/logrus"
)

const (
	maxNameLen    = 200
	maxContactLen = 200

	// Table ids travel inside chat button tokens, which Telegram caps at
	// 64 bytes.
	maxTableIDBytes = 48
)

// RegistrationService books seats.
type RegistrationService struct {
	store     RegistrationStore
	notices   NoticeDispatcher
	decrement bool
	now       func() time.Time
}

// NewRegistrationService constructs a RegistrationService. With
// serverSeats set the store decrements the seat count itself; otherwise
// the caller's post-booking count is trusted. notices may be nil.
func NewRegistrationService(store RegistrationStore, notices NoticeDispatcher, serverSeats bool) *RegistrationService {
	return &RegistrationService{
		store:     store,
		notices:   notices,
		decrement: serverSeats,
		now:       time.Now,
	}
}

// Register validates the request, books the seat and emits a notice.
func (s *RegistrationService) Register(ctx context.Context, req model.RegisterRequest) (*model.Registration, error) {
	b, err := s.booking(req)
	if err != nil {
		metrics.Registrations.WithLabelValues(metrics.OutcomeRejected).Inc()
		return nil, err
	}

	reg, err := s.store.Book(ctx, b)
	if err != nil {
		if errors.Is(err, repository.ErrNoSeatsLeft) {
			metrics.Registrations.WithLabelValues(metrics.OutcomeRejected).Inc()
			return nil, err
		}
		metrics.Registrations.WithLabelValues(metrics.OutcomeError).Inc()
		return nil, fmt.Errorf("register: %w", err)
	}
	metrics.Registrations.WithLabelValues(metrics.OutcomeOK).Inc()

	log.WithFields(log.Fields{
		"registration_id": reg.ID,
		"table_id":        reg.EffectiveTableID(),
	}).Info("registration stored")

	if s.notices != nil {
		s.notices.Dispatch(noticeFor(reg))
	}
	return reg, nil
}

func (s *RegistrationService) booking(req model.RegisterRequest) (model.Booking, error) {
	var meta model.Meta
	if req.Meta != nil {
		meta = req.Meta.Normalize()
	}

	name := firstNonEmpty(req.Name, meta.Name.String())
	contact := firstNonEmpty(req.Contact.String(), meta.Contact.String())
	tableID := firstNonEmpty(req.TableID.String(), meta.TableID.String())
	master := firstNonEmpty(req.MasterName, meta.MasterName.String())
	system := firstNonEmpty(req.System, meta.System.String())
	seats := req.RemainingSeats
	if seats == nil {
		seats = meta.RemainingSeats
	}
	if seats != nil && *seats < 0 {
		seats = nil
	}

	if err := checkLen("name", name, maxNameLen); err != nil {
		return model.Booking{}, err
	}
	if err := checkLen("contact", contact, maxContactLen); err != nil {
		return model.Booking{}, err
	}
	if len(tableID) > maxTableIDBytes {
		return model.Booking{}, fmt.Errorf("%w: tableId must be at most %d bytes", ErrInvalidRequest, maxTableIDBytes)
	}
	if report.ReservedTableID(tableID) {
		return model.Booking{}, fmt.Errorf("%w: tableId %q is reserved", ErrInvalidRequest, tableID)
	}

	now := s.now().UTC()
	identity := req.TelegramID.String()
	if identity == "" {
		if name == "" {
			return model.Booking{}, ErrMissingIdentity
		}
		identity = name + "-" + strconv.FormatInt(now.UnixNano(), 10)
	}

	meta.Name = model.FlexString(name)
	meta.Contact = model.FlexString(contact)
	meta.TableID = model.FlexString(tableID)
	meta.MasterName = model.FlexString(master)
	meta.System = model.FlexString(system)
	meta.RemainingSeats = seats
	if age := req.Age.String(); age != "" {
		meta.Age = model.FlexString(age)
	}

	username := strings.TrimSpace(req.Username)
	first := strings.TrimSpace(req.FirstName)
	last := strings.TrimSpace(req.LastName)

	b := model.Booking{
		IdentityKey:  identity,
		Name:         firstNonEmpty(name, strings.TrimSpace(first+" "+last), username),
		Username:     username,
		FirstName:    first,
		LastName:     last,
		Contact:      firstNonEmpty(contact, meta.Age.String()),
		TableID:      tableID,
		MasterName:   optional(master),
		System:       optional(system),
		Meta:         meta,
		RegisteredAt: now,
	}
	if tableID != "" {
		if s.decrement {
			b.Decrement = true
		} else {
			b.RemainingSeats = seats
		}
	}
	return b, nil
}

func noticeFor(reg *model.Registration) model.RegistrationNotice {
	return model.RegistrationNotice{
		RegistrationID: reg.ID,
		Name:           reg.DisplayName(),
		Contact:        reg.ContactInfo(),
		TableID:        reg.EffectiveTableID(),
		MasterName:     reg.Meta.MasterName.String(),
		System:         reg.Meta.System.String(),
		RemainingSeats: reg.Meta.RemainingSeats,
		RegisteredAt:   reg.RegisteredAt,
	}
}

func checkLen(field, v string, limit int) error {
	if utf8.RuneCountInString(v) > limit {
		return fmt.Errorf("%w: %s must be at most %d characters", ErrInvalidRequest, field, limit)
	}
	return nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
