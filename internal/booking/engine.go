package booking

import (
	"context"

	"github.com/iliyamo/slot-booking/internal/clock"
	"github.com/iliyamo/slot-booking/internal/logger"
	"github.com/iliyamo/slot-booking/internal/model"
)

// Store is the transactional storage the engine runs on. Every method other
// than WithTx must participate in the unit of work carried by ctx when
// called from inside WithTx.
//
// SaveSlot and SaveReservation (for existing rows) are conditioned on the
// Version held by the argument; on success they bump it, on mismatch they
// return an error wrapping ErrConcurrencyConflict. SaveReservation inserts
// when ID is zero and assigns the new id. A second active reservation for
// the same (user, slot) must be rejected with ErrDuplicateReservation.
// Missing rows are reported with ErrNotFound.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	LoadSlot(ctx context.Context, id uint64) (*model.Slot, error)
	LoadReservation(ctx context.Context, id uint64) (*model.Reservation, error)
	SaveSlot(ctx context.Context, slot *model.Slot) error
	SaveReservation(ctx context.Context, r *model.Reservation) error
	FindActiveReservation(ctx context.Context, userID, slotID uint64) (bool, error)
	// MerchantOfSlot walks slot -> task -> service item -> merchant profile
	// and returns the merchant profile id. It never mutates anything.
	MerchantOfSlot(ctx context.Context, slotID uint64) (uint64, error)
}

// Result is the state committed by a successful operation. Slot is nil when
// the operation did not touch capacity.
type Result struct {
	Reservation model.Reservation
	Slot        *model.Slot
	Previous    model.Status // empty for creations
}

// Engine composes the capacity ledger and the reservation lifecycle inside
// one unit of work per operation. It holds no locks and never retries;
// concurrent callers are arbitrated by the store's conditioned writes.
type Engine struct {
	store Store
	clock clock.Clock
	log   *logger.Logger
}

// Option customises an Engine.
type Option func(*Engine)

// WithClock overrides the clock used for reservation timestamps.
func WithClock(c clock.Clock) Option {
	return func(e *Engine) {
		if c != nil {
			e.clock = c
		}
	}
}

// WithLogger sets the logger used for rejected operations.
func WithLogger(l *logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// NewEngine returns an Engine over store.
func NewEngine(store Store, opts ...Option) *Engine {
	e := &Engine{store: store, clock: clock.NewSystem(), log: logger.Discard()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CreateReservation admits userID into slotID and records a PENDING
// reservation. It fails with ErrNotFound, ErrDuplicateReservation,
// ErrSlotFull or ErrConcurrencyConflict, leaving nothing behind.
func (e *Engine) CreateReservation(ctx context.Context, userID, slotID uint64, remark *string) (Result, error) {
	return e.create(ctx, userID, slotID, remark)
}

// CreateReservationForUser is CreateReservation on behalf of another user,
// for a merchant or a signed-link resolver. Authorizing the caller is the
// caller's job.
func (e *Engine) CreateReservationForUser(ctx context.Context, userID, slotID uint64, remark *string) (Result, error) {
	return e.create(ctx, userID, slotID, remark)
}

func (e *Engine) create(ctx context.Context, userID, slotID uint64, remark *string) (Result, error) {
	var res Result
	err := e.store.WithTx(ctx, func(txCtx context.Context) error {
		slot, err := e.store.LoadSlot(txCtx, slotID)
		if err != nil {
			return err
		}
		dup, err := e.store.FindActiveReservation(txCtx, userID, slotID)
		if err != nil {
			return err
		}
		if dup {
			return ErrDuplicateReservation
		}
		if !TryAdmit(slot) {
			return ErrSlotFull
		}
		if err := e.store.SaveSlot(txCtx, slot); err != nil {
			return err
		}
		r := NewPending(userID, slotID, remark, e.clock.Now())
		if err := e.store.SaveReservation(txCtx, r); err != nil {
			return err
		}
		res = Result{Reservation: *r, Slot: slot}
		return nil
	})
	if err != nil {
		e.log.Debug("reservation rejected", "op", "create", "user_id", userID, "slot_id", slotID, "error", err)
		return Result{}, err
	}
	return res, nil
}

// CancelReservation cancels a reservation owned by userID and releases its
// seat in the same unit of work.
func (e *Engine) CancelReservation(ctx context.Context, reservationID, userID uint64) (Result, error) {
	return e.transition(ctx, "cancel", reservationID, model.StatusCancelled, e.ownedByUser(userID))
}

// CancelReservationByMerchant cancels a reservation on one of merchantID's
// slots and releases its seat.
func (e *Engine) CancelReservationByMerchant(ctx context.Context, reservationID, merchantID uint64) (Result, error) {
	return e.transition(ctx, "merchant_cancel", reservationID, model.StatusCancelled, e.ownedByMerchant(merchantID))
}

// ConfirmReservation moves a PENDING reservation on one of merchantID's
// slots to CONFIRMED. Capacity is untouched.
func (e *Engine) ConfirmReservation(ctx context.Context, reservationID, merchantID uint64) (Result, error) {
	return e.transition(ctx, "confirm", reservationID, model.StatusConfirmed, e.ownedByMerchant(merchantID))
}

// CompleteReservation moves a CONFIRMED reservation on one of merchantID's
// slots to COMPLETED. Capacity is untouched.
func (e *Engine) CompleteReservation(ctx context.Context, reservationID, merchantID uint64) (Result, error) {
	return e.transition(ctx, "complete", reservationID, model.StatusCompleted, e.ownedByMerchant(merchantID))
}

// ExpireReservation cancels a PENDING reservation on behalf of the system
// and releases its seat. A reservation that was confirmed in the meantime
// is left alone with a *TransitionError.
func (e *Engine) ExpireReservation(ctx context.Context, reservationID uint64) (Result, error) {
	return e.transition(ctx, "expire", reservationID, model.StatusCancelled, pendingOnly)
}

// AutoCompleteReservation completes a CONFIRMED reservation on behalf of
// the system.
func (e *Engine) AutoCompleteReservation(ctx context.Context, reservationID uint64) (Result, error) {
	return e.transition(ctx, "auto_complete", reservationID, model.StatusCompleted, nil)
}

// guard runs after the reservation is loaded and before the lifecycle
// transition is applied.
type guard func(ctx context.Context, r *model.Reservation) error

func (e *Engine) ownedByUser(userID uint64) guard {
	return func(_ context.Context, r *model.Reservation) error {
		if r.UserID != userID {
			return ErrNotOwned
		}
		return nil
	}
}

func (e *Engine) ownedByMerchant(merchantID uint64) guard {
	return func(ctx context.Context, r *model.Reservation) error {
		owner, err := e.store.MerchantOfSlot(ctx, r.SlotID)
		if err != nil {
			return err
		}
		if owner != merchantID {
			return ErrNotOwned
		}
		return nil
	}
}

func pendingOnly(_ context.Context, r *model.Reservation) error {
	if r.Status != model.StatusPending {
		return &TransitionError{Current: r.Status, Target: model.StatusCancelled}
	}
	return nil
}

func (e *Engine) transition(ctx context.Context, op string, reservationID uint64, to model.Status, check guard) (Result, error) {
	var res Result
	err := e.store.WithTx(ctx, func(txCtx context.Context) error {
		r, err := e.store.LoadReservation(txCtx, reservationID)
		if err != nil {
			return err
		}
		if check != nil {
			if err := check(txCtx, r); err != nil {
				return err
			}
		}
		prev := r.Status
		if err := Transition(r, to, e.clock.Now()); err != nil {
			return err
		}

		var slot *model.Slot
		if ReleasesSeat(to) {
			slot, err = e.store.LoadSlot(txCtx, r.SlotID)
			if err != nil {
				return err
			}
			Release(slot)
			if err := e.store.SaveSlot(txCtx, slot); err != nil {
				return err
			}
		}
		if err := e.store.SaveReservation(txCtx, r); err != nil {
			return err
		}
		res = Result{Reservation: *r, Slot: slot, Previous: prev}
		return nil
	})
	if err != nil {
		e.log.Debug("reservation rejected", "op", op, "reservation_id", reservationID, "error", err)
		return Result{}, err
	}
	return res, nil
}
