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

// SlotRepo reads and writes slots. All timestamps are stored as unix
// milliseconds in UTC so the statements are portable across drivers.
type SlotRepo struct {
	db *sql.DB
}

// NewSlotRepo returns a new SlotRepo bound to the given database.
func NewSlotRepo(db *sql.DB) *SlotRepo { return &SlotRepo{db: db} }

const slotColumns = `id, task_id, starts_at, ends_at, capacity, booked_count, version`

func toMillis(t time.Time) int64 { return t.UTC().UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSlot(row rowScanner) (*model.Slot, error) {
	var (
		s          model.Slot
		start, end int64
	)
	if err := row.Scan(&s.ID, &s.TaskID, &start, &end, &s.Capacity, &s.BookedCount, &s.Version); err != nil {
		return nil, err
	}
	s.StartTime = fromMillis(start)
	s.EndTime = fromMillis(end)
	return &s, nil
}

// LoadSlot returns the slot with the given id, reading through the
// transaction carried by ctx if any.
func (r *SlotRepo) LoadSlot(ctx context.Context, id uint64) (*model.Slot, error) {
	row := conn(ctx, r.db).QueryRowContext(ctx, `SELECT `+slotColumns+` FROM slots WHERE id = ?`, id)
	s, err := scanSlot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: slot %d", booking.ErrNotFound, id)
	}
	if err != nil {
		return nil, translate(err, "load slot")
	}
	return s, nil
}

// SaveSlot persists BookedCount only if the row still carries the version
// the slot was loaded with. On success slot.Version is advanced to match
// the row.
func (r *SlotRepo) SaveSlot(ctx context.Context, slot *model.Slot) error {
	const q = `UPDATE slots SET booked_count = ?, version = version + 1 WHERE id = ? AND version = ?`
	db := conn(ctx, r.db)
	res, err := db.ExecContext(ctx, q, slot.BookedCount, slot.ID, slot.Version)
	if err != nil {
		return translate(err, "save slot")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return translate(err, "save slot")
	}
	if n == 0 {
		var exists int
		err := db.QueryRowContext(ctx, `SELECT 1 FROM slots WHERE id = ?`, slot.ID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: slot %d", booking.ErrNotFound, slot.ID)
		}
		return fmt.Errorf("%w: slot %d at version %d", booking.ErrConcurrencyConflict, slot.ID, slot.Version)
	}
	slot.Version++
	return nil
}

// CreateSlot inserts a new slot with no seats booked and populates its id.
func (r *SlotRepo) CreateSlot(ctx context.Context, slot *model.Slot) error {
	const q = `INSERT INTO slots (task_id, starts_at, ends_at, capacity, booked_count, version) VALUES (?, ?, ?, ?, 0, 0)`
	res, err := conn(ctx, r.db).ExecContext(ctx, q, slot.TaskID, toMillis(slot.StartTime), toMillis(slot.EndTime), slot.Capacity)
	if err != nil {
		return translate(err, "create slot")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return translate(err, "create slot")
	}
	slot.ID = uint64(id)
	slot.BookedCount = 0
	slot.Version = 0
	return nil
}

// ListTaskSlots returns every slot of a task ordered by start time.
func (r *SlotRepo) ListTaskSlots(ctx context.Context, taskID uint64) ([]model.Slot, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx,
		`SELECT `+slotColumns+` FROM slots WHERE task_id = ? ORDER BY starts_at, id`, taskID)
	if err != nil {
		return nil, translate(err, "list task slots")
	}
	defer rows.Close()

	out := make([]model.Slot, 0)
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, translate(err, "scan slot")
		}
		out = append(out, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, translate(err, "list task slots")
	}
	return out, nil
}
