// Package model defines the core domain types for the convention registration service.
package model

import (
	"strings"
	"time"
)

// Offering is a game table: one facilitator running one adventure with a
// fixed number of seats.
type Offering struct {
	ID             string  `json:"id"`
	MasterName     *string `json:"master_name"`
	MasterLink     *string `json:"master_link"`
	System         *string `json:"system"`
	AdventureName  *string `json:"adventure_name"`
	Description    *string `json:"description"`
	AgeRange       *string `json:"age_range"`
	Novices        *string `json:"novices"`
	Pregens        *string `json:"pregens"`
	PlayerCount    *int    `json:"player_count"`
	RemainingSeats *int    `json:"remaining_seats"`
}

// Selectable reports whether the registration form may offer this table.
// A nil seat count means unknown and is not selectable.
func (o *Offering) Selectable() bool {
	return o.RemainingSeats != nil && *o.RemainingSeats > 0
}

// Registration is a person's claim on a seat. TelegramID holds the identity
// key, which is either a real Telegram id or a synthesized name+timestamp.
type Registration struct {
	ID           int64     `json:"id"`
	TelegramID   string    `json:"telegram_id"`
	Name         string    `json:"name"`
	Username     string    `json:"username"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Contact      string    `json:"contact"`
	RegisteredAt time.Time `json:"registered_at"`
	TableID      *string   `json:"table_id"`
	Meta         Meta      `json:"meta"`
}

// EffectiveTableID returns the normalized table reference, falling back to
// the legacy metadata reference. Empty means the registration has no table.
func (r *Registration) EffectiveTableID() string {
	if r.TableID != nil && strings.TrimSpace(*r.TableID) != "" {
		return strings.TrimSpace(*r.TableID)
	}
	return r.Meta.TableID.String()
}

// Orphaned reports whether the table link exists only in legacy metadata.
func (r *Registration) Orphaned() bool {
	return (r.TableID == nil || strings.TrimSpace(*r.TableID) == "") && r.Meta.TableID.String() != ""
}

// DisplayName picks the best human-readable name for the registrant.
func (r *Registration) DisplayName() string {
	for _, candidate := range []string{
		r.Meta.Name.String(),
		r.Name,
		strings.TrimSpace(r.FirstName + " " + r.LastName),
		r.Username,
	} {
		if candidate = strings.TrimSpace(candidate); candidate != "" {
			return candidate
		}
	}
	return "(no name)"
}

// ContactInfo returns the free-form contact, or the age older records carried instead.
func (r *Registration) ContactInfo() string {
	if c := strings.TrimSpace(r.Contact); c != "" {
		return c
	}
	if c := r.Meta.Contact.String(); c != "" {
		return c
	}
	return r.Meta.Age.String()
}

// RegistrationRow is a registration joined with the offering its normalized
// reference points at. The offering columns are nil for legacy rows.
type RegistrationRow struct {
	Registration
	OfferingMaster *string
	OfferingSystem *string
	OfferingSeats  *int
}

// Booking is the write command the registration service hands to a store.
type Booking struct {
	IdentityKey string
	Name        string
	Username    string
	FirstName   string
	LastName    string
	Contact     string
	TableID     string
	MasterName  *string
	System      *string
	// RemainingSeats is the caller's post-booking seat count.
	RemainingSeats *int
	// Decrement asks the store to decrement the seat count itself instead
	// of trusting RemainingSeats.
	Decrement    bool
	Meta         Meta
	RegisteredAt time.Time
}

// RegisterRequest is the payload for POST /api/register.
type RegisterRequest struct {
	Name           string     `json:"name"`
	Age            FlexString `json:"age"`
	Contact        FlexString `json:"contact"`
	TableID        FlexString `json:"tableId"`
	MasterName     string     `json:"masterName"`
	RemainingSeats *int       `json:"remainingSeats"`
	System         string     `json:"system"`
	TelegramID     FlexString `json:"telegram_id"`
	Username       string     `json:"username"`
	FirstName      string     `json:"first_name"`
	LastName       string     `json:"last_name"`
	Meta           *Meta      `json:"meta"`
}

// Player is one registrant line inside a TableGroup.
type Player struct {
	ID      int64
	Name    string
	Contact string
}

// TableGroup collects the registrations that share an effective table id.
// An empty TableID is the "no table" group.
type TableGroup struct {
	TableID        string
	MasterName     string
	System         string
	RemainingSeats *int
	Players        []Player
}

// MenuButton is one inline button of a chat menu.
type MenuButton struct {
	Text   string
	Action string
}

// RegistrationNotice is what outbound notifiers receive after a booking.
type RegistrationNotice struct {
	RegistrationID int64     `json:"registration_id"`
	Name           string    `json:"name"`
	Contact        string    `json:"contact"`
	TableID        string    `json:"table_id"`
	MasterName     string    `json:"master_name"`
	System         string    `json:"system"`
	RemainingSeats *int      `json:"remaining_seats"`
	RegisteredAt   time.Time `json:"registered_at"`
}

// ErrorResponse is the standard JSON error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
