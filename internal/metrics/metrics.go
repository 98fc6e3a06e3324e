// Package metrics exposes booking counters and latencies to Prometheus.
package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iliyamo/slot-booking/internal/booking"
)

const namespace = "slot_booking"

// Metrics owns a private registry so tests can create as many as they
// like without clashing on the default one.
type Metrics struct {
	registry *prometheus.Registry

	operations   *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	retries      *prometheus.CounterVec
	sweeps       *prometheus.CounterVec
	cacheLookups *prometheus.CounterVec
	events       *prometheus.CounterVec
}

// New registers every collector on a fresh registry, plus the Go runtime
// and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Booking engine operations by name and outcome.",
		}, []string{"op", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Booking engine operation latency including retries.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		}, []string{"op"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conflict_retries_total",
			Help:      "Operations re-run after a concurrency conflict.",
		}, []string{"op"}),
		sweeps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_reservations_total",
			Help:      "Reservations handled by the sweeper by result.",
		}, []string{"result"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "availability_cache_lookups_total",
			Help:      "Slot availability cache lookups by result.",
		}, []string{"result"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Reservation events handed to the broker by result.",
		}, []string{"type", "result"}),
	}
	m.registry.MustRegister(
		m.operations, m.duration, m.retries, m.sweeps, m.cacheLookups, m.events,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry the collectors live in.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Outcome classifies an operation error into a low-cardinality label.
func Outcome(err error) string {
	var te *booking.TransitionError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, booking.ErrSlotFull):
		return "slot_full"
	case errors.Is(err, booking.ErrDuplicateReservation):
		return "duplicate"
	case errors.Is(err, booking.ErrConcurrencyConflict):
		return "conflict"
	case errors.As(err, &te):
		return "invalid_transition"
	case errors.Is(err, booking.ErrNotOwned):
		return "not_owned"
	case errors.Is(err, booking.ErrNotFound):
		return "not_found"
	}
	return "error"
}

// ObserveOperation records one finished operation. A nil receiver is a
// no-op.
func (m *Metrics) ObserveOperation(op string, err error, took time.Duration) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(op, Outcome(err)).Inc()
	m.duration.WithLabelValues(op).Observe(took.Seconds())
}

// IncRetry counts one retry of op.
func (m *Metrics) IncRetry(op string) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(op).Inc()
}

// AddSweep adds a sweep pass's counts.
func (m *Metrics) AddSweep(expired, completed, skipped int) {
	if m == nil {
		return
	}
	m.sweeps.WithLabelValues("expired").Add(float64(expired))
	m.sweeps.WithLabelValues("completed").Add(float64(completed))
	m.sweeps.WithLabelValues("skipped").Add(float64(skipped))
}

// CacheLookup counts a cache hit or miss.
func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// EventPublished counts one publish attempt.
func (m *Metrics) EventPublished(eventType string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.events.WithLabelValues(eventType, result).Inc()
}
