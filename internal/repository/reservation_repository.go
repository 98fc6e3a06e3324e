package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/slot-booking/internal/booking"
	"github.com/iliyamo/slot-booking/internal/model"
)

// ReservationRepo reads and writes reservations. Rows are never deleted;
// cancellation is a status update. The schema carries a unique constraint
// on (user_id, slot_id) restricted to PENDING and CONFIRMED rows.
type ReservationRepo struct {
	db *sql.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

const reservationColumns = `r.id, r.user_id, r.slot_id, r.status, r.remark, r.version, r.created_at, r.updated_at`

func scanReservation(row rowScanner) (*model.Reservation, error) {
	var (
		res              model.Reservation
		status           string
		remark           sql.NullString
		created, updated int64
	)
	if err := row.Scan(&res.ID, &res.UserID, &res.SlotID, &status, &remark, &res.Version, &created, &updated); err != nil {
		return nil, err
	}
	res.Status = model.Status(status)
	if remark.Valid {
		rm := remark.String
		res.Remark = &rm
	}
	res.CreatedAt = fromMillis(created)
	res.UpdatedAt = fromMillis(updated)
	return &res, nil
}

func nullableRemark(remark *string) any {
	if remark == nil {
		return nil
	}
	return *remark
}

// LoadReservation returns the reservation with the given id.
func (r *ReservationRepo) LoadReservation(ctx context.Context, id uint64) (*model.Reservation, error) {
	row := conn(ctx, r.db).QueryRowContext(ctx, `SELECT `+reservationColumns+` FROM reservations r WHERE r.id = ?`, id)
	res, err := scanReservation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: reservation %d", booking.ErrNotFound, id)
	}
	if err != nil {
		return nil, translate(err, "load reservation")
	}
	return res, nil
}

// SaveReservation inserts res when its ID is zero and populates the id;
// otherwise it updates status, remark and updated_at only if the row still
// carries res.Version, then advances res.Version.
func (r *ReservationRepo) SaveReservation(ctx context.Context, res *model.Reservation) error {
	if res.ID == 0 {
		return r.insert(ctx, res)
	}
	const q = `UPDATE reservations SET status = ?, remark = ?, updated_at = ?, version = version + 1 WHERE id = ? AND version = ?`
	db := conn(ctx, r.db)
	result, err := db.ExecContext(ctx, q, string(res.Status), nullableRemark(res.Remark), toMillis(res.UpdatedAt), res.ID, res.Version)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: user %d slot %d", booking.ErrDuplicateReservation, res.UserID, res.SlotID)
		}
		return translate(err, "save reservation")
	}
	n, err := result.RowsAffected()
	if err != nil {
		return translate(err, "save reservation")
	}
	if n == 0 {
		var exists int
		err := db.QueryRowContext(ctx, `SELECT 1 FROM reservations WHERE id = ?`, res.ID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: reservation %d", booking.ErrNotFound, res.ID)
		}
		return fmt.Errorf("%w: reservation %d at version %d", booking.ErrConcurrencyConflict, res.ID, res.Version)
	}
	res.Version++
	return nil
}

func (r *ReservationRepo) insert(ctx context.Context, res *model.Reservation) error {
	const q = `INSERT INTO reservations (user_id, slot_id, status, remark, version, created_at, updated_at) VALUES (?, ?, ?, ?, 0, ?, ?)`
	result, err := conn(ctx, r.db).ExecContext(ctx, q,
		res.UserID, res.SlotID, string(res.Status), nullableRemark(res.Remark),
		toMillis(res.CreatedAt), toMillis(res.UpdatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: user %d slot %d", booking.ErrDuplicateReservation, res.UserID, res.SlotID)
		}
		return translate(err, "insert reservation")
	}
	id, err := result.LastInsertId()
	if err != nil {
		return translate(err, "insert reservation")
	}
	res.ID = uint64(id)
	res.Version = 0
	return nil
}

// FindActiveReservation reports whether userID holds a PENDING or
// CONFIRMED reservation on slotID.
func (r *ReservationRepo) FindActiveReservation(ctx context.Context, userID, slotID uint64) (bool, error) {
	const q = `SELECT 1 FROM reservations WHERE user_id = ? AND slot_id = ? AND status IN ('PENDING', 'CONFIRMED') LIMIT 1`
	var found int
	err := conn(ctx, r.db).QueryRowContext(ctx, q, userID, slotID).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, translate(err, "find active reservation")
	}
	return true, nil
}

// ListUserReservations returns the user's reservations, newest first. An
// empty status matches every status.
func (r *ReservationRepo) ListUserReservations(ctx context.Context, userID uint64, status model.Status) ([]model.Reservation, error) {
	q := `SELECT ` + reservationColumns + ` FROM reservations r WHERE r.user_id = ?`
	args := []any{userID}
	if status != "" {
		q += ` AND r.status = ?`
		args = append(args, string(status))
	}
	q += ` ORDER BY r.id DESC`
	return r.list(ctx, "list user reservations", q, args...)
}

// ListMerchantReservations returns reservations on slots of tasks that
// belong to the merchant's service items, newest first.
func (r *ReservationRepo) ListMerchantReservations(ctx context.Context, merchantID uint64, status model.Status) ([]model.Reservation, error) {
	q := `SELECT ` + reservationColumns + `
        FROM reservations r
        JOIN slots s ON s.id = r.slot_id
        JOIN tasks t ON t.id = s.task_id
        JOIN service_items si ON si.id = t.service_item_id
        WHERE si.merchant_id = ?`
	args := []any{merchantID}
	if status != "" {
		q += ` AND r.status = ?`
		args = append(args, string(status))
	}
	q += ` ORDER BY r.id DESC`
	return r.list(ctx, "list merchant reservations", q, args...)
}

// ListPendingEndedBefore returns ids of PENDING reservations whose slot
// ended at or before cutoff.
func (r *ReservationRepo) ListPendingEndedBefore(ctx context.Context, cutoff time.Time, limit int) ([]uint64, error) {
	return r.idsEndedBefore(ctx, model.StatusPending, cutoff, limit)
}

// ListConfirmedEndedBefore returns ids of CONFIRMED reservations whose slot
// ended at or before cutoff.
func (r *ReservationRepo) ListConfirmedEndedBefore(ctx context.Context, cutoff time.Time, limit int) ([]uint64, error) {
	return r.idsEndedBefore(ctx, model.StatusConfirmed, cutoff, limit)
}

func (r *ReservationRepo) idsEndedBefore(ctx context.Context, status model.Status, cutoff time.Time, limit int) ([]uint64, error) {
	const q = `SELECT r.id FROM reservations r
        JOIN slots s ON s.id = r.slot_id
        WHERE r.status = ? AND s.ends_at <= ?
        ORDER BY r.id
        LIMIT ?`
	rows, err := conn(ctx, r.db).QueryContext(ctx, q, string(status), toMillis(cutoff), limit)
	if err != nil {
		return nil, translate(err, "list ended reservations")
	}
	defer rows.Close()

	ids := make([]uint64, 0)
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, translate(err, "scan reservation id")
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, translate(err, "list ended reservations")
	}
	return ids, nil
}

func (r *ReservationRepo) list(ctx context.Context, what, q string, args ...any) ([]model.Reservation, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx, q, args...)
	if err != nil {
		return nil, translate(err, what)
	}
	defer rows.Close()

	out := make([]model.Reservation, 0)
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, translate(err, "scan reservation")
		}
		out = append(out, *res)
	}
	if err := rows.Err(); err != nil {
		return nil, translate(err, what)
	}
	return out, nil
}
