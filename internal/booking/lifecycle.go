package booking

import (
	"time"

	"github.com/iliyamo/slot-booking/internal/model"
)

// transitions lists, for every target status, the statuses it may be
// reached from. PENDING is only entered at creation and has no entry.
var transitions = map[model.Status][]model.Status{
	model.StatusConfirmed: {model.StatusPending},
	model.StatusCompleted: {model.StatusConfirmed},
	model.StatusCancelled: {model.StatusPending, model.StatusConfirmed},
}

// CanTransition reports whether a reservation in status from may move to to.
func CanTransition(from, to model.Status) bool {
	for _, s := range transitions[to] {
		if s == from {
			return true
		}
	}
	return false
}

// ReleasesSeat reports whether entering status to frees the seat held by
// the reservation.
func ReleasesSeat(to model.Status) bool { return to == model.StatusCancelled }

// Transition moves r to status to and stamps UpdatedAt. When the guard does
// not hold, r is left unchanged and a *TransitionError carrying the current
// status is returned.
func Transition(r *model.Reservation, to model.Status, at time.Time) error {
	if !CanTransition(r.Status, to) {
		return &TransitionError{Current: r.Status, Target: to}
	}
	r.Status = to
	r.UpdatedAt = at
	return nil
}

// NewPending builds the reservation created by a successful admission.
func NewPending(userID, slotID uint64, remark *string, at time.Time) *model.Reservation {
	return &model.Reservation{
		UserID:    userID,
		SlotID:    slotID,
		Status:    model.StatusPending,
		Remark:    remark,
		CreatedAt: at,
		UpdatedAt: at,
	}
}
