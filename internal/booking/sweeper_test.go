package booking_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/iliyamo/slot-booking/internal/booking"
	"github.com/iliyamo/slot-booking/internal/model"
)

func TestSweepOnce(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	slotID := f.slot(t, 3)
	ctx := context.Background()
	pending := f.create(t, 1, slotID)
	confirmed := f.create(t, 2, slotID)
	if _, err := f.engine.ConfirmReservation(ctx, confirmed.ID, f.merchantID); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	sweeper := booking.NewSweeper(f.store, f.engine, booking.WithSweepClock(f.clock))

	stats, err := sweeper.SweepOnce(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if stats != (booking.SweepStats{}) {
		t.Fatalf("expected nothing due before the slot ends, got %+v", stats)
	}

	// slot ends at base+25h
	f.clock.Advance(25 * time.Hour)
	stats, err = sweeper.SweepOnce(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if stats.Expired != 1 || stats.Completed != 0 {
		t.Fatalf("expected one expiry, got %+v", stats)
	}
	r, _ := f.store.LoadReservation(ctx, pending.ID)
	if r.Status != model.StatusCancelled {
		t.Fatalf("expected pending reservation to be cancelled, got %s", r.Status)
	}
	if got := f.booked(t, slotID); got != 1 {
		t.Fatalf("expected expiry to release the seat, got booked count %d", got)
	}

	f.clock.Advance(booking.DefaultCompleteAfter)
	stats, err = sweeper.SweepOnce(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if stats.Completed != 1 || stats.Expired != 0 {
		t.Fatalf("expected one completion, got %+v", stats)
	}
	r, _ = f.store.LoadReservation(ctx, confirmed.ID)
	if r.Status != model.StatusCompleted {
		t.Fatalf("expected confirmed reservation to be completed, got %s", r.Status)
	}
}

type stubFinder struct {
	pending, confirmed []uint64
	err                error
}

func (s stubFinder) ListPendingEndedBefore(context.Context, time.Time, int) ([]uint64, error) {
	return s.pending, s.err
}

func (s stubFinder) ListConfirmedEndedBefore(context.Context, time.Time, int) ([]uint64, error) {
	return s.confirmed, s.err
}

type stubTransitioner struct {
	fail map[uint64]error
}

func (s stubTransitioner) ExpireReservation(_ context.Context, id uint64) (booking.Result, error) {
	return booking.Result{}, s.fail[id]
}

func (s stubTransitioner) AutoCompleteReservation(_ context.Context, id uint64) (booking.Result, error) {
	return booking.Result{}, s.fail[id]
}

func TestSweepOnceSkipsFailures(t *testing.T) {
	t.Parallel()
	finder := stubFinder{pending: []uint64{1, 2}, confirmed: []uint64{3, 4}}
	target := stubTransitioner{fail: map[uint64]error{
		2: booking.ErrConcurrencyConflict,
		4: errors.New("connection reset"),
	}}

	stats, err := booking.NewSweeper(finder, target).SweepOnce(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	want := booking.SweepStats{Expired: 1, Completed: 1, Skipped: 2}
	if stats != want {
		t.Fatalf("expected %+v, got %+v", want, stats)
	}
}

func TestSweepOnceFinderError(t *testing.T) {
	t.Parallel()
	boom := errors.New("database is locked")
	_, err := booking.NewSweeper(stubFinder{err: boom}, stubTransitioner{}).SweepOnce(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("expected finder error, got %v", err)
	}
}
