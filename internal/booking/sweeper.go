package booking

import (
	"context"
	"errors"
	"time"

	"github.com/iliyamo/slot-booking/internal/clock"
	"github.com/iliyamo/slot-booking/internal/logger"
)

// DefaultCompleteAfter is how long after a slot ends a confirmed
// reservation is completed automatically.
const DefaultCompleteAfter = 2 * time.Hour

const defaultSweepBatch = 200

// SweepFinder selects reservations due for system transitions.
type SweepFinder interface {
	// ListPendingEndedBefore returns ids of PENDING reservations whose slot
	// ended at or before cutoff.
	ListPendingEndedBefore(ctx context.Context, cutoff time.Time, limit int) ([]uint64, error)
	// ListConfirmedEndedBefore returns ids of CONFIRMED reservations whose
	// slot ended at or before cutoff.
	ListConfirmedEndedBefore(ctx context.Context, cutoff time.Time, limit int) ([]uint64, error)
}

// SystemTransitioner performs the system-actor transitions. *Engine
// implements it; callers that attach side effects may wrap it.
type SystemTransitioner interface {
	ExpireReservation(ctx context.Context, reservationID uint64) (Result, error)
	AutoCompleteReservation(ctx context.Context, reservationID uint64) (Result, error)
}

// SweepStats counts what one sweep pass did.
type SweepStats struct {
	Expired   int
	Completed int
	Skipped   int
}

// Sweeper cancels PENDING reservations whose slot has ended, releasing the
// seat, and completes CONFIRMED reservations once their slot has been over
// for CompleteAfter.
type Sweeper struct {
	finder        SweepFinder
	target        SystemTransitioner
	clock         clock.Clock
	log           *logger.Logger
	completeAfter time.Duration
	batch         int
	report        func(SweepStats)
}

// SweeperOption customises a Sweeper.
type SweeperOption func(*Sweeper)

// WithCompleteAfter overrides DefaultCompleteAfter.
func WithCompleteAfter(d time.Duration) SweeperOption {
	return func(s *Sweeper) {
		if d > 0 {
			s.completeAfter = d
		}
	}
}

// WithSweepClock sets the clock used to compute cutoffs.
func WithSweepClock(c clock.Clock) SweeperOption {
	return func(s *Sweeper) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithSweepLogger sets the sweeper's logger.
func WithSweepLogger(l *logger.Logger) SweeperOption {
	return func(s *Sweeper) {
		if l != nil {
			s.log = l
		}
	}
}

// WithSweepBatch caps how many reservations of each kind one pass handles.
func WithSweepBatch(n int) SweeperOption {
	return func(s *Sweeper) {
		if n > 0 {
			s.batch = n
		}
	}
}

// WithSweepReport registers fn to receive the stats of every pass.
func WithSweepReport(fn func(SweepStats)) SweeperOption {
	return func(s *Sweeper) { s.report = fn }
}

// NewSweeper returns a Sweeper driving target with ids from finder.
func NewSweeper(finder SweepFinder, target SystemTransitioner, opts ...SweeperOption) *Sweeper {
	s := &Sweeper{
		finder:        finder,
		target:        target,
		clock:         clock.NewSystem(),
		log:           logger.Discard(),
		completeAfter: DefaultCompleteAfter,
		batch:         defaultSweepBatch,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SweepOnce runs one pass. Per-reservation failures are logged and
// skipped; the reservation is picked up again on the next pass if still
// due. Only finder errors abort the pass.
func (s *Sweeper) SweepOnce(ctx context.Context) (SweepStats, error) {
	var stats SweepStats
	now := s.clock.Now()

	pending, err := s.finder.ListPendingEndedBefore(ctx, now, s.batch)
	if err != nil {
		return stats, err
	}
	for _, id := range pending {
		if _, err := s.target.ExpireReservation(ctx, id); err != nil {
			s.skip(&stats, "expire", id, err)
			continue
		}
		stats.Expired++
	}

	confirmed, err := s.finder.ListConfirmedEndedBefore(ctx, now.Add(-s.completeAfter), s.batch)
	if err != nil {
		return stats, err
	}
	for _, id := range confirmed {
		if _, err := s.target.AutoCompleteReservation(ctx, id); err != nil {
			s.skip(&stats, "auto_complete", id, err)
			continue
		}
		stats.Completed++
	}

	if stats.Expired+stats.Completed+stats.Skipped > 0 {
		s.log.Info("sweep finished", "expired", stats.Expired, "completed", stats.Completed, "skipped", stats.Skipped)
	}
	if s.report != nil {
		s.report(stats)
	}
	return stats, nil
}

func (s *Sweeper) skip(stats *SweepStats, op string, id uint64, err error) {
	stats.Skipped++
	switch {
	case errors.Is(err, ErrConcurrencyConflict), errors.Is(err, ErrInvalidStateTransition):
		s.log.Debug("sweep skipped reservation", "op", op, "reservation_id", id, "error", err)
	default:
		s.log.Warn("sweep failed on reservation", "op", op, "reservation_id", id, "error", err)
	}
}

// Run sweeps every interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		if _, err := s.SweepOnce(ctx); err != nil && ctx.Err() == nil {
			s.log.Error("sweep pass failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}
