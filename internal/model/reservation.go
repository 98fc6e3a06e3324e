package model

import (
	"strings"
	"time"
)

// Status is the lifecycle state of a reservation.
type Status string

const (
	StatusPending   Status = "PENDING"   // seat admitted, awaiting merchant confirmation
	StatusConfirmed Status = "CONFIRMED" // merchant accepted the reservation
	StatusCancelled Status = "CANCELLED" // terminal; seat released
	StatusCompleted Status = "COMPLETED" // terminal; appointment took place
)

// ParseStatus converts a client-supplied status (any case) into a Status.
// The second return value is false for unknown values.
func ParseStatus(s string) (Status, bool) {
	switch Status(strings.ToUpper(strings.TrimSpace(s))) {
	case StatusPending:
		return StatusPending, true
	case StatusConfirmed:
		return StatusConfirmed, true
	case StatusCancelled:
		return StatusCancelled, true
	case StatusCompleted:
		return StatusCompleted, true
	}
	return "", false
}

// IsActive reports whether a reservation in this status occupies a seat.
func (s Status) IsActive() bool { return s == StatusPending || s == StatusConfirmed }

// IsTerminal reports whether no transition may leave this status.
func (s Status) IsTerminal() bool { return s == StatusCancelled || s == StatusCompleted }

// DisplayName is the human readable label used in notifications.
func (s Status) DisplayName() string {
	switch s {
	case StatusPending:
		return "Pending confirmation"
	case StatusConfirmed:
		return "Confirmed"
	case StatusCancelled:
		return "Cancelled"
	case StatusCompleted:
		return "Completed"
	}
	return string(s)
}

// Reservation records one user's claim against one seat of a slot.
// Reservations are never deleted; cancellation is a status change.
//
// Fields:
//  ID        – primary key identifier.
//  UserID    – user the seat is reserved for.
//  SlotID    – slot the seat belongs to.
//  Status    – lifecycle state (PENDING, CONFIRMED, CANCELLED, COMPLETED).
//  Remark    – optional free-text note from the user.
//  Version   – optimistic concurrency token, bumped on every write.
//  CreatedAt – creation timestamp.
//  UpdatedAt – last update timestamp.
type Reservation struct {
	ID        uint64    `json:"id"`
	UserID    uint64    `json:"user_id"`
	SlotID    uint64    `json:"slot_id"`
	Status    Status    `json:"status"`
	Remark    *string   `json:"remark,omitempty"`
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
