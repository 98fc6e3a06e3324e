package service

import (
	"context"
	"fmt"
	"time"

	"github.com/iliyamo/slot-booking/internal/booking"
	"github.com/iliyamo/slot-booking/internal/model"
)

// GetSlotAvailability returns the availability view of a slot, read
// through the cache.
func (s *BookingService) GetSlotAvailability(ctx context.Context, slotID uint64) (model.SlotAvailability, error) {
	if v, ok := s.cache.Get(ctx, slotID); ok {
		s.metrics.CacheLookup(true)
		return v, nil
	}
	s.metrics.CacheLookup(false)

	slot, err := s.repo.LoadSlot(ctx, slotID)
	if err != nil {
		return model.SlotAvailability{}, err
	}
	v := model.AvailabilityOf(slot)
	if err := s.cache.Set(ctx, v); err != nil {
		s.log.Warn("availability cache write failed", "slot_id", slotID, "error", err)
	}
	return v, nil
}

// ListTaskSlots returns the availability of every slot of a task, ordered
// by start time. An unknown task is not found.
func (s *BookingService) ListTaskSlots(ctx context.Context, taskID uint64) ([]model.SlotAvailability, error) {
	if _, err := s.repo.MerchantOfTask(ctx, taskID); err != nil {
		return nil, err
	}
	slots, err := s.repo.ListTaskSlots(ctx, taskID)
	if err != nil {
		return nil, err
	}
	out := make([]model.SlotAvailability, 0, len(slots))
	for i := range slots {
		out = append(out, model.AvailabilityOf(&slots[i]))
	}
	return out, nil
}

// GetReservationForUser returns a reservation owned by userID.
func (s *BookingService) GetReservationForUser(ctx context.Context, reservationID, userID uint64) (model.Reservation, error) {
	r, err := s.repo.LoadReservation(ctx, reservationID)
	if err != nil {
		return model.Reservation{}, err
	}
	if r.UserID != userID {
		return model.Reservation{}, booking.ErrNotOwned
	}
	return *r, nil
}

// ListUserReservations lists the user's reservations, newest first. An
// empty status lists all of them.
func (s *BookingService) ListUserReservations(ctx context.Context, userID uint64, status model.Status) ([]model.Reservation, error) {
	return s.repo.ListUserReservations(ctx, userID, status)
}

// ListMerchantReservations lists reservations on the merchant's slots,
// newest first.
func (s *BookingService) ListMerchantReservations(ctx context.Context, merchantID uint64, status model.Status) ([]model.Reservation, error) {
	return s.repo.ListMerchantReservations(ctx, merchantID, status)
}

// MerchantIDForUser resolves the merchant profile managed by a login.
func (s *BookingService) MerchantIDForUser(ctx context.Context, userID uint64) (uint64, error) {
	return s.repo.MerchantIDForUser(ctx, userID)
}

// TaskOwnedBy checks that taskID exists and belongs to merchantID.
func (s *BookingService) TaskOwnedBy(ctx context.Context, taskID, merchantID uint64) error {
	owner, err := s.repo.MerchantOfTask(ctx, taskID)
	if err != nil {
		return err
	}
	if owner != merchantID {
		return booking.ErrNotOwned
	}
	return nil
}

// PublishSlot creates a slot with no seats booked under one of the
// merchant's tasks.
func (s *BookingService) PublishSlot(ctx context.Context, merchantID, taskID uint64, start, end time.Time, capacity int) (model.Slot, error) {
	if capacity <= 0 {
		return model.Slot{}, fmt.Errorf("%w: capacity must be positive", ErrInvalidSlot)
	}
	if !end.After(start) {
		return model.Slot{}, fmt.Errorf("%w: end must be after start", ErrInvalidSlot)
	}
	if err := s.TaskOwnedBy(ctx, taskID, merchantID); err != nil {
		return model.Slot{}, err
	}
	slot := &model.Slot{TaskID: taskID, StartTime: start.UTC(), EndTime: end.UTC(), Capacity: capacity}
	if err := s.repo.CreateSlot(ctx, slot); err != nil {
		return model.Slot{}, err
	}
	s.log.Info("slot published", "slot_id", slot.ID, "task_id", taskID, "capacity", capacity)
	return *slot, nil
}

// Ping checks the store.
func (s *BookingService) Ping(ctx context.Context) error { return s.repo.Ping(ctx) }
