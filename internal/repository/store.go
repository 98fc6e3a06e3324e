package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/slot-booking/internal/booking"
)

// Store bundles the repositories behind one database handle and provides
// the unit of work the booking engine runs in.
type Store struct {
	*SlotRepo
	*ReservationRepo
	*MerchantRepo
	db *sql.DB
}

// NewStore returns a Store over db. The schema must already be migrated.
func NewStore(db *sql.DB) *Store {
	return &Store{
		SlotRepo:        NewSlotRepo(db),
		ReservationRepo: NewReservationRepo(db),
		MerchantRepo:    NewMerchantRepo(db),
		db:              db,
	}
}

// DB exposes the underlying handle for health checks.
func (s *Store) DB() *sql.DB { return s.db }

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// Close closes the database handle.
func (s *Store) Close() error { return s.db.Close() }

// WithTx runs fn in a database transaction; repositories called with the
// context passed to fn take part in it.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, s.db, fn)
}

var _ booking.Store = (*Store)(nil)
var _ booking.SweepFinder = (*Store)(nil)
