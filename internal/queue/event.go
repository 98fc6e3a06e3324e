// Package queue defines reservation events and moves them over the message
// broker: publishers for RabbitMQ and Kafka, and a RabbitMQ consumer that
// hands each event to a Notifier.
package queue

import (
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/slot-booking/internal/model"
)

// EventType names what happened to a reservation.
type EventType string

const (
	EventReservationCreated   EventType = "reservation.created"
	EventReservationConfirmed EventType = "reservation.confirmed"
	EventReservationCancelled EventType = "reservation.cancelled"
	EventReservationCompleted EventType = "reservation.completed"
)

// EventTypeFor maps the status a reservation moved to onto its event type.
func EventTypeFor(status model.Status) EventType {
	switch status {
	case model.StatusConfirmed:
		return EventReservationConfirmed
	case model.StatusCancelled:
		return EventReservationCancelled
	case model.StatusCompleted:
		return EventReservationCompleted
	default:
		return EventReservationCreated
	}
}

// ReservationEvent is published after a reservation change commits. It
// carries enough for downstream consumers to notify the user or merchant
// without querying the primary database.
type ReservationEvent struct {
	ID             string       `json:"id"`
	Type           EventType    `json:"type"`
	ReservationID  uint64       `json:"reservation_id"`
	UserID         uint64       `json:"user_id"`
	SlotID         uint64       `json:"slot_id"`
	Status         model.Status `json:"status"`
	PreviousStatus model.Status `json:"previous_status,omitempty"`
	Actor          string       `json:"actor"`
	OccurredAt     time.Time    `json:"occurred_at"`
}

// NewReservationEvent builds the event for r having moved from prev (empty
// for creations) to its current status.
func NewReservationEvent(r model.Reservation, prev model.Status, actor string) ReservationEvent {
	return ReservationEvent{
		ID:             uuid.NewString(),
		Type:           EventTypeFor(r.Status),
		ReservationID:  r.ID,
		UserID:         r.UserID,
		SlotID:         r.SlotID,
		Status:         r.Status,
		PreviousStatus: prev,
		Actor:          actor,
		OccurredAt:     r.UpdatedAt.UTC(),
	}
}
