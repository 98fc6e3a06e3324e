package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iliyamo/slot-booking/internal/booking"
	"github.com/iliyamo/slot-booking/internal/model"
)

// MerchantRepo resolves merchant ownership. The chain
// slot -> task -> service item -> merchant profile is a read-only lookup;
// nothing here mutates the chain during booking.
type MerchantRepo struct {
	db *sql.DB
}

// NewMerchantRepo returns a new MerchantRepo bound to the given database.
func NewMerchantRepo(db *sql.DB) *MerchantRepo { return &MerchantRepo{db: db} }

// MerchantOfSlot returns the id of the merchant profile owning the slot.
func (r *MerchantRepo) MerchantOfSlot(ctx context.Context, slotID uint64) (uint64, error) {
	const q = `SELECT mp.id
        FROM slots s
        JOIN tasks t ON t.id = s.task_id
        JOIN service_items si ON si.id = t.service_item_id
        JOIN merchant_profiles mp ON mp.id = si.merchant_id
        WHERE s.id = ?`
	return r.lookup(ctx, q, slotID, "slot")
}

// MerchantOfTask returns the id of the merchant profile owning the task.
func (r *MerchantRepo) MerchantOfTask(ctx context.Context, taskID uint64) (uint64, error) {
	const q = `SELECT mp.id
        FROM tasks t
        JOIN service_items si ON si.id = t.service_item_id
        JOIN merchant_profiles mp ON mp.id = si.merchant_id
        WHERE t.id = ?`
	return r.lookup(ctx, q, taskID, "task")
}

// MerchantIDForUser returns the merchant profile managed by a login.
func (r *MerchantRepo) MerchantIDForUser(ctx context.Context, userID uint64) (uint64, error) {
	return r.lookup(ctx, `SELECT id FROM merchant_profiles WHERE user_id = ?`, userID, "merchant profile for user")
}

func (r *MerchantRepo) lookup(ctx context.Context, q string, id uint64, what string) (uint64, error) {
	var merchantID uint64
	err := conn(ctx, r.db).QueryRowContext(ctx, q, id).Scan(&merchantID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: %s %d", booking.ErrNotFound, what, id)
	}
	if err != nil {
		return 0, translate(err, "lookup "+what)
	}
	return merchantID, nil
}

// CreateMerchant inserts a merchant profile and populates its id.
func (r *MerchantRepo) CreateMerchant(ctx context.Context, m *model.MerchantProfile) error {
	id, err := r.insert(ctx, `INSERT INTO merchant_profiles (user_id, name) VALUES (?, ?)`, m.UserID, m.Name)
	if err != nil {
		return translate(err, "create merchant")
	}
	m.ID = id
	return nil
}

// CreateServiceItem inserts a service item and populates its id.
func (r *MerchantRepo) CreateServiceItem(ctx context.Context, it *model.ServiceItem) error {
	id, err := r.insert(ctx, `INSERT INTO service_items (merchant_id, name) VALUES (?, ?)`, it.MerchantID, it.Name)
	if err != nil {
		return translate(err, "create service item")
	}
	it.ID = id
	return nil
}

// CreateTask inserts a task and populates its id.
func (r *MerchantRepo) CreateTask(ctx context.Context, t *model.Task) error {
	id, err := r.insert(ctx, `INSERT INTO tasks (service_item_id, title) VALUES (?, ?)`, t.ServiceItemID, t.Title)
	if err != nil {
		return translate(err, "create task")
	}
	t.ID = id
	return nil
}

func (r *MerchantRepo) insert(ctx context.Context, q string, args ...any) (uint64, error) {
	res, err := conn(ctx, r.db).ExecContext(ctx, q, args...)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}
