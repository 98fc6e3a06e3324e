package metrics

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/iliyamo/slot-booking/internal/booking"
	"github.com/iliyamo/slot-booking/internal/model"
)

func TestOutcome(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, "ok"},
		{booking.ErrSlotFull, "slot_full"},
		{fmt.Errorf("%w: user 1 slot 2", booking.ErrDuplicateReservation), "duplicate"},
		{fmt.Errorf("%w: slot 2", booking.ErrConcurrencyConflict), "conflict"},
		{&booking.TransitionError{Current: model.StatusCancelled, Target: model.StatusConfirmed}, "invalid_transition"},
		{booking.ErrNotOwned, "not_owned"},
		{fmt.Errorf("%w: slot 9", booking.ErrNotFound), "not_found"},
		{errors.New("io"), "error"},
	}
	for _, tc := range cases {
		if got := Outcome(tc.err); got != tc.want {
			t.Errorf("Outcome(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestObserveOperation(t *testing.T) {
	m := New()
	m.ObserveOperation("create", nil, time.Millisecond)
	m.ObserveOperation("create", booking.ErrSlotFull, time.Millisecond)
	m.ObserveOperation("create", booking.ErrSlotFull, time.Millisecond)
	m.IncRetry("create")

	if got := testutil.ToFloat64(m.operations.WithLabelValues("create", "slot_full")); got != 2 {
		t.Fatalf("expected 2 slot_full, got %v", got)
	}
	if got := testutil.ToFloat64(m.retries.WithLabelValues("create")); got != 1 {
		t.Fatalf("expected 1 retry, got %v", got)
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveOperation("create", nil, time.Second)
	m.IncRetry("create")
	m.AddSweep(1, 2, 3)
	m.CacheLookup(true)
	m.EventPublished("reservation.created", nil)
}

func TestHandlerServesRegistry(t *testing.T) {
	m := New()
	m.CacheLookup(true)
	m.AddSweep(1, 0, 0)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		`slot_booking_availability_cache_lookups_total{result="hit"} 1`,
		`slot_booking_sweep_reservations_total{result="expired"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in metrics output", want)
		}
	}
}
