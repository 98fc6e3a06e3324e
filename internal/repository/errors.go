// Package repository implements the booking store on database/sql. The same
// statements run against MySQL and SQLite; only the schema differs. Driver
// errors are translated into the booking error kinds here so the engine
// never sees driver types.
package repository

import (
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/iliyamo/slot-booking/internal/booking"
)

const (
	mysqlDuplicateEntry  = 1062
	mysqlLockWaitTimeout = 1205
	mysqlDeadlock        = 1213
	mysqlCheckConstraint = 3819
)

// ErrInvariant is returned when the database rejects a write through a
// CHECK constraint, e.g. a booked count outside 0..capacity.
var ErrInvariant = errors.New("storage invariant violated")

// isUniqueViolation reports whether err is a unique or primary key
// violation from either driver.
func isUniqueViolation(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlDuplicateEntry
	}
	var liteErr *msqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_UNIQUE, sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		}
	}
	return false
}

// isCheckViolation reports whether err comes from a CHECK constraint.
func isCheckViolation(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlCheckConstraint
	}
	var liteErr *msqlite.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code() == sqlite3lib.SQLITE_CONSTRAINT_CHECK
	}
	return false
}

// isContention reports whether err means another transaction holds the
// rows or the database: deadlocks, lock wait timeouts, busy/locked SQLite.
func isContention(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlDeadlock || myErr.Number == mysqlLockWaitTimeout
	}
	var liteErr *msqlite.Error
	if errors.As(err, &liteErr) {
		primary := liteErr.Code() & 0xff
		return primary == sqlite3lib.SQLITE_BUSY || primary == sqlite3lib.SQLITE_LOCKED
	}
	return false
}

// translate maps contention and CHECK failures onto the error kinds the
// engine understands and wraps everything else with what.
func translate(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case isContention(err):
		return fmt.Errorf("%w: %s: %v", booking.ErrConcurrencyConflict, what, err)
	case isCheckViolation(err):
		return fmt.Errorf("%w: %s: %v", ErrInvariant, what, err)
	}
	return fmt.Errorf("%s: %w", what, err)
}
