package booking_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/iliyamo/slot-booking/internal/booking"
	"github.com/iliyamo/slot-booking/internal/clock"
	"github.com/iliyamo/slot-booking/internal/model"
	"github.com/iliyamo/slot-booking/internal/repository/memory"
)

var base = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

type fixture struct {
	store      *memory.Store
	engine     *booking.Engine
	clock      *clock.Manual
	merchantID uint64
	taskID     uint64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	m := &model.MerchantProfile{UserID: 900, Name: "Studio"}
	store.AddMerchant(m)
	item := &model.ServiceItem{MerchantID: m.ID, Name: "Haircut"}
	store.AddServiceItem(item)
	task := &model.Task{ServiceItemID: item.ID, Title: "Monday cuts"}
	store.AddTask(task)

	clk := clock.NewManual(base)
	return &fixture{
		store:      store,
		engine:     booking.NewEngine(store, booking.WithClock(clk)),
		clock:      clk,
		merchantID: m.ID,
		taskID:     task.ID,
	}
}

func (f *fixture) slot(t *testing.T, capacity int) uint64 {
	t.Helper()
	s := &model.Slot{
		TaskID:    f.taskID,
		StartTime: base.Add(24 * time.Hour),
		EndTime:   base.Add(25 * time.Hour),
		Capacity:  capacity,
	}
	if err := f.store.CreateSlot(context.Background(), s); err != nil {
		t.Fatalf("create slot: %v", err)
	}
	return s.ID
}

func (f *fixture) booked(t *testing.T, slotID uint64) int {
	t.Helper()
	s, err := f.store.LoadSlot(context.Background(), slotID)
	if err != nil {
		t.Fatalf("load slot: %v", err)
	}
	return s.BookedCount
}

func (f *fixture) create(t *testing.T, userID, slotID uint64) model.Reservation {
	t.Helper()
	res, err := f.engine.CreateReservation(context.Background(), userID, slotID, nil)
	if err != nil {
		t.Fatalf("create reservation for user %d: %v", userID, err)
	}
	return res.Reservation
}

func TestCreateReservation(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	slotID := f.slot(t, 2)
	remark := "window seat"

	res, err := f.engine.CreateReservation(context.Background(), 1, slotID, &remark)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	r := res.Reservation
	if r.ID == 0 || r.Status != model.StatusPending || r.UserID != 1 || r.SlotID != slotID {
		t.Fatalf("unexpected reservation %+v", r)
	}
	if r.Remark == nil || *r.Remark != remark {
		t.Fatalf("expected remark to be kept, got %v", r.Remark)
	}
	if !r.CreatedAt.Equal(base) || !r.UpdatedAt.Equal(base) {
		t.Fatalf("expected timestamps from the clock, got %s / %s", r.CreatedAt, r.UpdatedAt)
	}
	if res.Slot == nil || res.Slot.BookedCount != 1 || res.Slot.Version != 1 {
		t.Fatalf("unexpected slot in result %+v", res.Slot)
	}
	if got := f.booked(t, slotID); got != 1 {
		t.Fatalf("expected booked count 1, got %d", got)
	}
}

func TestCreateReservationErrors(t *testing.T) {
	t.Parallel()

	t.Run("unknown slot", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.engine.CreateReservation(context.Background(), 1, 4242, nil)
		if !errors.Is(err, booking.ErrNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
	})

	t.Run("duplicate regardless of capacity", func(t *testing.T) {
		f := newFixture(t)
		slotID := f.slot(t, 5)
		f.create(t, 1, slotID)

		_, err := f.engine.CreateReservation(context.Background(), 1, slotID, nil)
		if !errors.Is(err, booking.ErrDuplicateReservation) {
			t.Fatalf("expected duplicate reservation, got %v", err)
		}
		if got := f.booked(t, slotID); got != 1 {
			t.Fatalf("expected booked count 1, got %d", got)
		}
	})

	t.Run("duplicate while confirmed", func(t *testing.T) {
		f := newFixture(t)
		slotID := f.slot(t, 5)
		r := f.create(t, 1, slotID)
		if _, err := f.engine.ConfirmReservation(context.Background(), r.ID, f.merchantID); err != nil {
			t.Fatalf("confirm: %v", err)
		}
		_, err := f.engine.CreateReservationForUser(context.Background(), 1, slotID, nil)
		if !errors.Is(err, booking.ErrDuplicateReservation) {
			t.Fatalf("expected duplicate reservation, got %v", err)
		}
	})

	t.Run("slot full", func(t *testing.T) {
		f := newFixture(t)
		slotID := f.slot(t, 1)
		f.create(t, 1, slotID)

		_, err := f.engine.CreateReservation(context.Background(), 2, slotID, nil)
		if !errors.Is(err, booking.ErrSlotFull) {
			t.Fatalf("expected slot full, got %v", err)
		}
		if got := f.booked(t, slotID); got != 1 {
			t.Fatalf("expected booked count 1, got %d", got)
		}
	})
}

func TestCancelReservation(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	slotID := f.slot(t, 3)
	r := f.create(t, 1, slotID)
	f.clock.Advance(time.Minute)

	res, err := f.engine.CancelReservation(context.Background(), r.ID, 1)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if res.Reservation.Status != model.StatusCancelled || res.Previous != model.StatusPending {
		t.Fatalf("unexpected result %+v", res)
	}
	if !res.Reservation.UpdatedAt.Equal(base.Add(time.Minute)) {
		t.Fatalf("expected updated_at to advance, got %s", res.Reservation.UpdatedAt)
	}
	if got := f.booked(t, slotID); got != 0 {
		t.Fatalf("expected booked count 0, got %d", got)
	}

	_, err = f.engine.CancelReservation(context.Background(), r.ID, 1)
	if !errors.Is(err, booking.ErrInvalidStateTransition) {
		t.Fatalf("expected invalid state transition, got %v", err)
	}
	if current, _ := booking.CurrentStatus(err); current != model.StatusCancelled {
		t.Fatalf("expected current status CANCELLED, got %q", current)
	}
	if got := f.booked(t, slotID); got != 0 {
		t.Fatalf("expected booked count to stay 0, got %d", got)
	}
}

func TestCancelReservationNotOwned(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	slotID := f.slot(t, 3)
	r := f.create(t, 1, slotID)

	if _, err := f.engine.CancelReservation(context.Background(), r.ID, 2); !errors.Is(err, booking.ErrNotOwned) {
		t.Fatalf("expected not owned, got %v", err)
	}
	if _, err := f.engine.CancelReservationByMerchant(context.Background(), r.ID, f.merchantID+1000); !errors.Is(err, booking.ErrNotOwned) {
		t.Fatalf("expected not owned for foreign merchant, got %v", err)
	}
	if got := f.booked(t, slotID); got != 1 {
		t.Fatalf("expected booked count 1, got %d", got)
	}
	if _, err := f.engine.CancelReservation(context.Background(), 9999, 1); !errors.Is(err, booking.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCancelReservationByMerchant(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	slotID := f.slot(t, 3)
	r := f.create(t, 1, slotID)
	if _, err := f.engine.ConfirmReservation(context.Background(), r.ID, f.merchantID); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	res, err := f.engine.CancelReservationByMerchant(context.Background(), r.ID, f.merchantID)
	if err != nil {
		t.Fatalf("merchant cancel: %v", err)
	}
	if res.Previous != model.StatusConfirmed || res.Reservation.Status != model.StatusCancelled {
		t.Fatalf("unexpected result %+v", res)
	}
	if got := f.booked(t, slotID); got != 0 {
		t.Fatalf("expected booked count 0, got %d", got)
	}
}

func TestConfirmAndComplete(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	slotID := f.slot(t, 2)
	r := f.create(t, 1, slotID)
	ctx := context.Background()

	if _, err := f.engine.CompleteReservation(ctx, r.ID, f.merchantID); !errors.Is(err, booking.ErrInvalidStateTransition) {
		t.Fatalf("expected completing a pending reservation to fail, got %v", err)
	}

	res, err := f.engine.ConfirmReservation(ctx, r.ID, f.merchantID)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if res.Reservation.Status != model.StatusConfirmed || res.Slot != nil {
		t.Fatalf("unexpected confirm result %+v", res)
	}
	if got := f.booked(t, slotID); got != 1 {
		t.Fatalf("expected confirm to leave booked count at 1, got %d", got)
	}

	res, err = f.engine.CompleteReservation(ctx, r.ID, f.merchantID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if res.Reservation.Status != model.StatusCompleted {
		t.Fatalf("expected COMPLETED, got %s", res.Reservation.Status)
	}
	if got := f.booked(t, slotID); got != 1 {
		t.Fatalf("expected complete to leave booked count at 1, got %d", got)
	}

	_, err = f.engine.ConfirmReservation(ctx, r.ID, f.merchantID)
	if current, ok := booking.CurrentStatus(err); !ok || current != model.StatusCompleted {
		t.Fatalf("expected transition error from COMPLETED, got %v", err)
	}
	if _, err := f.engine.CancelReservation(ctx, r.ID, 1); !errors.Is(err, booking.ErrInvalidStateTransition) {
		t.Fatalf("expected cancelling a completed reservation to fail, got %v", err)
	}
}

func TestConfirmCancelledReservation(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	slotID := f.slot(t, 2)
	r := f.create(t, 1, slotID)
	if _, err := f.engine.CancelReservation(context.Background(), r.ID, 1); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	_, err := f.engine.ConfirmReservation(context.Background(), r.ID, f.merchantID)
	if current, ok := booking.CurrentStatus(err); !ok || current != model.StatusCancelled {
		t.Fatalf("expected transition error from CANCELLED, got %v", err)
	}
	if _, err := f.engine.ConfirmReservation(context.Background(), r.ID, f.merchantID+1); !errors.Is(err, booking.ErrNotOwned) {
		t.Fatalf("expected ownership to be checked first, got %v", err)
	}
}

func TestCreateCancelCreateRoundTrip(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	slotID := f.slot(t, 1)
	first := f.create(t, 1, slotID)
	if _, err := f.engine.CancelReservation(context.Background(), first.ID, 1); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	second := f.create(t, 1, slotID)
	if second.ID == first.ID {
		t.Fatal("expected a new reservation row")
	}
	if got := f.booked(t, slotID); got != 1 {
		t.Fatalf("expected booked count 1, got %d", got)
	}
}

func TestFullSlotFreesAfterCancel(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	slotID := f.slot(t, 2)
	a := f.create(t, 1, slotID)
	f.create(t, 2, slotID)

	if _, err := f.engine.CreateReservation(context.Background(), 3, slotID, nil); !errors.Is(err, booking.ErrSlotFull) {
		t.Fatalf("expected slot full, got %v", err)
	}
	if _, err := f.engine.CancelReservation(context.Background(), a.ID, 1); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	f.create(t, 3, slotID)
	if got := f.booked(t, slotID); got != 2 {
		t.Fatalf("expected booked count 2, got %d", got)
	}
}

func TestConcurrentAdmissionOnLastSeat(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	slotID := f.slot(t, 1)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	start := make(chan struct{})
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = f.engine.CreateReservation(context.Background(), uint64(i+1), slotID, nil)
		}(i)
	}
	close(start)
	wg.Wait()

	ok := 0
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, booking.ErrSlotFull), errors.Is(err, booking.ErrConcurrencyConflict):
		default:
			t.Fatalf("unexpected error %v", err)
		}
	}
	if ok != 1 {
		t.Fatalf("expected exactly one admission, got %d (%v)", ok, errs)
	}
	if got := f.booked(t, slotID); got != 1 {
		t.Fatalf("expected booked count 1, got %d", got)
	}
}

func TestConcurrentAdmissionNeverOverbooks(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	const capacity = 3
	slotID := f.slot(t, capacity)

	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(user uint64) {
			defer wg.Done()
			_, err := f.engine.CreateReservation(context.Background(), user, slotID, nil)
			if err != nil && !errors.Is(err, booking.ErrSlotFull) && !errors.Is(err, booking.ErrConcurrencyConflict) {
				t.Errorf("unexpected error %v", err)
				return
			}
			if err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}(uint64(i + 1))
	}
	wg.Wait()

	booked := f.booked(t, slotID)
	if ok > capacity || booked != ok {
		t.Fatalf("expected admissions (%d) == booked count (%d) <= capacity", ok, booked)
	}
	active, err := f.store.ListTaskSlots(context.Background(), f.taskID)
	if err != nil || len(active) != 1 {
		t.Fatalf("list slots: %v", err)
	}
}

// racingStore lets another writer commit between the engine's load and
// its conditioned write.
type racingStore struct {
	*memory.Store
	once   sync.Once
	interj func()
}

func (s *racingStore) LoadSlot(ctx context.Context, id uint64) (*model.Slot, error) {
	slot, err := s.Store.LoadSlot(ctx, id)
	s.once.Do(s.interj)
	return slot, err
}

func TestStaleSlotWriteIsConflict(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	slotID := f.slot(t, 5)

	rs := &racingStore{Store: f.store}
	engine := booking.NewEngine(rs)
	rs.interj = func() {
		if _, err := f.engine.CreateReservation(context.Background(), 2, slotID, nil); err != nil {
			t.Errorf("interleaved create: %v", err)
		}
	}

	_, err := engine.CreateReservation(context.Background(), 1, slotID, nil)
	if !errors.Is(err, booking.ErrConcurrencyConflict) {
		t.Fatalf("expected concurrency conflict, got %v", err)
	}
	if !booking.IsRetryable(err) {
		t.Fatal("expected conflict to be retryable")
	}
	if got := f.booked(t, slotID); got != 1 {
		t.Fatalf("expected only the interleaved admission to count, got %d", got)
	}
	if dup, _ := f.store.FindActiveReservation(context.Background(), 1, slotID); dup {
		t.Fatal("expected the losing reservation to be rolled back")
	}
}

// failingStore fails the reservation write after the seat was admitted.
type failingStore struct {
	*memory.Store
}

var errDisk = errors.New("disk full")

func (s failingStore) SaveReservation(context.Context, *model.Reservation) error { return errDisk }

func TestFailedReservationWriteRollsBackSeat(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	slotID := f.slot(t, 1)

	engine := booking.NewEngine(failingStore{Store: f.store})
	if _, err := engine.CreateReservation(context.Background(), 1, slotID, nil); !errors.Is(err, errDisk) {
		t.Fatalf("expected write error, got %v", err)
	}
	if got := f.booked(t, slotID); got != 0 {
		t.Fatalf("expected half-admitted seat to be rolled back, got %d", got)
	}
	f.create(t, 2, slotID)
}

func TestSystemTransitions(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	slotID := f.slot(t, 3)
	pending := f.create(t, 1, slotID)
	confirmed := f.create(t, 2, slotID)
	ctx := context.Background()
	if _, err := f.engine.ConfirmReservation(ctx, confirmed.ID, f.merchantID); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	if _, err := f.engine.ExpireReservation(ctx, confirmed.ID); !errors.Is(err, booking.ErrInvalidStateTransition) {
		t.Fatalf("expected expiring a confirmed reservation to fail, got %v", err)
	}
	if _, err := f.engine.ExpireReservation(ctx, pending.ID); err != nil {
		t.Fatalf("expire: %v", err)
	}
	if got := f.booked(t, slotID); got != 1 {
		t.Fatalf("expected expiry to release one seat, got %d", got)
	}
	if _, err := f.engine.AutoCompleteReservation(ctx, pending.ID); !errors.Is(err, booking.ErrInvalidStateTransition) {
		t.Fatalf("expected completing a cancelled reservation to fail, got %v", err)
	}
	res, err := f.engine.AutoCompleteReservation(ctx, confirmed.ID)
	if err != nil {
		t.Fatalf("auto complete: %v", err)
	}
	if res.Reservation.Status != model.StatusCompleted {
		t.Fatalf("expected COMPLETED, got %s", res.Reservation.Status)
	}
}
