package booking

import (
	"errors"
	"fmt"

	"github.com/iliyamo/slot-booking/internal/model"
)

var (
	// ErrNotFound is returned when a slot or reservation id is unknown.
	ErrNotFound = errors.New("not found")
	// ErrSlotFull is returned when a slot has no free seat at admission time.
	ErrSlotFull = errors.New("slot full")
	// ErrDuplicateReservation is returned when the user already holds an
	// active reservation on the slot.
	ErrDuplicateReservation = errors.New("duplicate reservation")
	// ErrConcurrencyConflict is returned when a conditioned write loses to a
	// concurrent writer. It is the only retryable error of the engine.
	ErrConcurrencyConflict = errors.New("concurrency conflict")
	// ErrInvalidStateTransition matches any *TransitionError via errors.Is.
	ErrInvalidStateTransition = errors.New("invalid state transition")
	// ErrNotOwned is returned when the acting user or merchant does not own
	// the reservation.
	ErrNotOwned = errors.New("not owned")
)

// TransitionError reports a lifecycle guard violation together with the
// reservation's current status.
type TransitionError struct {
	Current model.Status
	Target  model.Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid state transition: %s -> %s", e.Current, e.Target)
}

// Is makes errors.Is(err, ErrInvalidStateTransition) hold for every
// *TransitionError.
func (e *TransitionError) Is(target error) bool { return target == ErrInvalidStateTransition }

// IsRetryable reports whether the caller may retry the whole operation.
func IsRetryable(err error) bool { return errors.Is(err, ErrConcurrencyConflict) }

// CurrentStatus extracts the status carried by a transition error.
func CurrentStatus(err error) (model.Status, bool) {
	var te *TransitionError
	if errors.As(err, &te) {
		return te.Current, true
	}
	return "", false
}
