// Package service is the application layer around the booking engine. It
// owns everything the engine deliberately leaves to its callers: retrying
// concurrency conflicts, caching availability, publishing events, metrics
// and tracing, and the read side.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/iliyamo/slot-booking/internal/booking"
	"github.com/iliyamo/slot-booking/internal/clock"
	"github.com/iliyamo/slot-booking/internal/logger"
	"github.com/iliyamo/slot-booking/internal/metrics"
	"github.com/iliyamo/slot-booking/internal/model"
	"github.com/iliyamo/slot-booking/internal/queue"
)

const tracerName = "github.com/iliyamo/slot-booking/internal/service"

// Actors recorded on published events.
const (
	ActorUser     = "user"
	ActorMerchant = "merchant"
	ActorLink     = "link"
	ActorSystem   = "system"
)

// ErrInvalidSlot is returned when a slot to publish has a non-positive
// capacity or does not end after it starts.
var ErrInvalidSlot = errors.New("invalid slot")

// Repository is what the service needs from storage: the engine's
// transactional store, the sweeper's finder and the read side. Both the
// SQL store and the in-memory store satisfy it.
type Repository interface {
	booking.Store
	booking.SweepFinder
	CreateSlot(ctx context.Context, slot *model.Slot) error
	MerchantOfTask(ctx context.Context, taskID uint64) (uint64, error)
	MerchantIDForUser(ctx context.Context, userID uint64) (uint64, error)
	ListTaskSlots(ctx context.Context, taskID uint64) ([]model.Slot, error)
	ListUserReservations(ctx context.Context, userID uint64, status model.Status) ([]model.Reservation, error)
	ListMerchantReservations(ctx context.Context, merchantID uint64, status model.Status) ([]model.Reservation, error)
	Ping(ctx context.Context) error
}

// AvailabilityCache caches slot availability views by slot id.
type AvailabilityCache interface {
	Get(ctx context.Context, slotID uint64) (model.SlotAvailability, bool)
	Set(ctx context.Context, v model.SlotAvailability) error
	Invalidate(ctx context.Context, slotID uint64) error
}

type noCache struct{}

func (noCache) Get(context.Context, uint64) (model.SlotAvailability, bool) {
	return model.SlotAvailability{}, false
}
func (noCache) Set(context.Context, model.SlotAvailability) error { return nil }
func (noCache) Invalidate(context.Context, uint64) error          { return nil }

// BookingService runs engine operations and applies their side effects
// after they commit.
type BookingService struct {
	repo    Repository
	engine  *booking.Engine
	cache   AvailabilityCache
	events  queue.Publisher
	metrics *metrics.Metrics
	tracer  trace.Tracer
	log     *logger.Logger
	clock   clock.Clock
	retries int
	backoff func() backoff.BackOff
}

// Option customises a BookingService.
type Option func(*BookingService)

// WithCache sets the availability cache.
func WithCache(c AvailabilityCache) Option {
	return func(s *BookingService) {
		if c != nil {
			s.cache = c
		}
	}
}

// WithPublisher sets where reservation events go.
func WithPublisher(p queue.Publisher) Option {
	return func(s *BookingService) {
		if p != nil {
			s.events = p
		}
	}
}

// WithMetrics sets the Prometheus collectors.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *BookingService) { s.metrics = m }
}

// WithLogger sets the logger, which is also handed to the engine.
func WithLogger(l *logger.Logger) Option {
	return func(s *BookingService) {
		if l != nil {
			s.log = l
		}
	}
}

// WithClock sets the clock, which is also handed to the engine.
func WithClock(c clock.Clock) Option {
	return func(s *BookingService) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithConflictRetries re-runs an operation up to n more times when it
// fails with booking.ErrConcurrencyConflict. Zero disables retrying.
func WithConflictRetries(n int) Option {
	return func(s *BookingService) {
		if n >= 0 {
			s.retries = n
		}
	}
}

// WithBackOff overrides the delay policy between conflict retries.
func WithBackOff(fn func() backoff.BackOff) Option {
	return func(s *BookingService) {
		if fn != nil {
			s.backoff = fn
		}
	}
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 5 * time.Millisecond
	b.MaxInterval = 200 * time.Millisecond
	return b
}

// New returns a BookingService over repo.
func New(repo Repository, opts ...Option) *BookingService {
	s := &BookingService{
		repo:    repo,
		cache:   noCache{},
		events:  queue.NopPublisher{},
		tracer:  otel.Tracer(tracerName),
		log:     logger.Discard(),
		clock:   clock.NewSystem(),
		backoff: defaultBackOff,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.engine = booking.NewEngine(repo, booking.WithClock(s.clock), booking.WithLogger(s.log))
	return s
}

// CreateReservation books a seat on slotID for userID.
func (s *BookingService) CreateReservation(ctx context.Context, userID, slotID uint64, remark *string) (model.Reservation, error) {
	res, err := s.run(ctx, "create", ActorUser, func(ctx context.Context) (booking.Result, error) {
		return s.engine.CreateReservation(ctx, userID, slotID, remark)
	}, attribute.Int64("user.id", int64(userID)), attribute.Int64("slot.id", int64(slotID)))
	return res.Reservation, err
}

// CreateReservationForUser books a seat for userID on behalf of the
// merchant owning slotID.
func (s *BookingService) CreateReservationForUser(ctx context.Context, merchantID, userID, slotID uint64, remark *string) (model.Reservation, error) {
	owner, err := s.repo.MerchantOfSlot(ctx, slotID)
	if err != nil {
		return model.Reservation{}, err
	}
	if owner != merchantID {
		return model.Reservation{}, booking.ErrNotOwned
	}
	res, err := s.run(ctx, "create_for_user", ActorMerchant, func(ctx context.Context) (booking.Result, error) {
		return s.engine.CreateReservationForUser(ctx, userID, slotID, remark)
	}, attribute.Int64("user.id", int64(userID)), attribute.Int64("slot.id", int64(slotID)))
	return res.Reservation, err
}

// BookViaLink books slotID for userID through a verified link for taskID.
// A slot of another task reads as not found.
func (s *BookingService) BookViaLink(ctx context.Context, taskID, slotID, userID uint64, remark *string) (model.Reservation, error) {
	slot, err := s.repo.LoadSlot(ctx, slotID)
	if err != nil {
		return model.Reservation{}, err
	}
	if slot.TaskID != taskID {
		return model.Reservation{}, fmt.Errorf("%w: slot %d in task %d", booking.ErrNotFound, slotID, taskID)
	}
	res, err := s.run(ctx, "create_via_link", ActorLink, func(ctx context.Context) (booking.Result, error) {
		return s.engine.CreateReservationForUser(ctx, userID, slotID, remark)
	}, attribute.Int64("task.id", int64(taskID)), attribute.Int64("slot.id", int64(slotID)))
	return res.Reservation, err
}

// CancelReservation cancels the user's own reservation.
func (s *BookingService) CancelReservation(ctx context.Context, reservationID, userID uint64) (model.Reservation, error) {
	res, err := s.run(ctx, "cancel", ActorUser, func(ctx context.Context) (booking.Result, error) {
		return s.engine.CancelReservation(ctx, reservationID, userID)
	}, attribute.Int64("reservation.id", int64(reservationID)))
	return res.Reservation, err
}

// CancelReservationByMerchant cancels a reservation on the merchant's slot.
func (s *BookingService) CancelReservationByMerchant(ctx context.Context, reservationID, merchantID uint64) (model.Reservation, error) {
	res, err := s.run(ctx, "merchant_cancel", ActorMerchant, func(ctx context.Context) (booking.Result, error) {
		return s.engine.CancelReservationByMerchant(ctx, reservationID, merchantID)
	}, attribute.Int64("reservation.id", int64(reservationID)))
	return res.Reservation, err
}

// ConfirmReservation confirms a pending reservation on the merchant's slot.
func (s *BookingService) ConfirmReservation(ctx context.Context, reservationID, merchantID uint64) (model.Reservation, error) {
	res, err := s.run(ctx, "confirm", ActorMerchant, func(ctx context.Context) (booking.Result, error) {
		return s.engine.ConfirmReservation(ctx, reservationID, merchantID)
	}, attribute.Int64("reservation.id", int64(reservationID)))
	return res.Reservation, err
}

// CompleteReservation completes a confirmed reservation on the merchant's
// slot.
func (s *BookingService) CompleteReservation(ctx context.Context, reservationID, merchantID uint64) (model.Reservation, error) {
	res, err := s.run(ctx, "complete", ActorMerchant, func(ctx context.Context) (booking.Result, error) {
		return s.engine.CompleteReservation(ctx, reservationID, merchantID)
	}, attribute.Int64("reservation.id", int64(reservationID)))
	return res.Reservation, err
}

// ExpireReservation implements booking.SystemTransitioner.
func (s *BookingService) ExpireReservation(ctx context.Context, reservationID uint64) (booking.Result, error) {
	return s.run(ctx, "expire", ActorSystem, func(ctx context.Context) (booking.Result, error) {
		return s.engine.ExpireReservation(ctx, reservationID)
	}, attribute.Int64("reservation.id", int64(reservationID)))
}

// AutoCompleteReservation implements booking.SystemTransitioner.
func (s *BookingService) AutoCompleteReservation(ctx context.Context, reservationID uint64) (booking.Result, error) {
	return s.run(ctx, "auto_complete", ActorSystem, func(ctx context.Context) (booking.Result, error) {
		return s.engine.AutoCompleteReservation(ctx, reservationID)
	}, attribute.Int64("reservation.id", int64(reservationID)))
}

// NewSweeper returns a sweeper that drives this service, so system
// transitions get the same side effects as user ones.
func (s *BookingService) NewSweeper(completeAfter time.Duration) *booking.Sweeper {
	return booking.NewSweeper(s.repo, s,
		booking.WithCompleteAfter(completeAfter),
		booking.WithSweepClock(s.clock),
		booking.WithSweepLogger(s.log.With("component", "sweeper")),
		booking.WithSweepReport(func(st booking.SweepStats) {
			s.metrics.AddSweep(st.Expired, st.Completed, st.Skipped)
		}),
	)
}

// run executes op, retrying conflicts when configured, and applies the
// post-commit side effects on success.
func (s *BookingService) run(ctx context.Context, op, actor string, fn func(context.Context) (booking.Result, error), attrs ...attribute.KeyValue) (booking.Result, error) {
	ctx, span := s.tracer.Start(ctx, "booking."+op, trace.WithAttributes(attrs...))
	defer span.End()
	started := time.Now()

	attempt := 0
	res, err := backoff.Retry(ctx, func() (booking.Result, error) {
		if attempt > 0 {
			s.metrics.IncRetry(op)
			s.log.Debug("retrying after conflict", "op", op, "attempt", attempt+1)
		}
		attempt++
		r, err := fn(ctx)
		if err != nil && !booking.IsRetryable(err) {
			return r, backoff.Permanent(err)
		}
		return r, err
	}, backoff.WithBackOff(s.backoff()), backoff.WithMaxTries(uint(s.retries+1)))

	s.metrics.ObserveOperation(op, err, time.Since(started))
	span.SetAttributes(attribute.Int("attempts", attempt), attribute.String("outcome", metrics.Outcome(err)))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, metrics.Outcome(err))
		return booking.Result{}, err
	}

	s.afterCommit(ctx, actor, res)
	return res, nil
}

// afterCommit drops the cached availability and publishes the event.
// Failures here are logged; the operation itself already committed.
func (s *BookingService) afterCommit(ctx context.Context, actor string, res booking.Result) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	slotID := res.Reservation.SlotID
	if err := s.cache.Invalidate(ctx, slotID); err != nil {
		s.log.Warn("availability cache invalidation failed", "slot_id", slotID, "error", err)
	}

	ev := queue.NewReservationEvent(res.Reservation, res.Previous, actor)
	err := s.events.Publish(ctx, ev)
	s.metrics.EventPublished(string(ev.Type), err)
	if err != nil {
		s.log.Warn("publish reservation event failed", "event_id", ev.ID, "type", string(ev.Type), "reservation_id", ev.ReservationID, "error", err)
	}
}
