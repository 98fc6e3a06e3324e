// Package memory is an in-process implementation of the booking store. It
// mirrors the SQL store's guarantees: writes are conditioned on the version
// read at load time, a unit of work commits all of its writes or none, and
// at most one active reservation may exist per (user, slot). Intended for
// tests and local development.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/slot-booking/internal/booking"
	"github.com/iliyamo/slot-booking/internal/model"
)

// Store holds committed state behind one RWMutex. Units of work buffer
// their writes and validate them against committed versions at commit.
type Store struct {
	mu           sync.RWMutex
	slots        map[uint64]model.Slot
	reservations map[uint64]model.Reservation
	tasks        map[uint64]model.Task
	items        map[uint64]model.ServiceItem
	merchants    map[uint64]model.MerchantProfile
	lastID       uint64
}

// New returns an empty store.
func New() *Store {
	return &Store{
		slots:        make(map[uint64]model.Slot),
		reservations: make(map[uint64]model.Reservation),
		tasks:        make(map[uint64]model.Task),
		items:        make(map[uint64]model.ServiceItem),
		merchants:    make(map[uint64]model.MerchantProfile),
	}
}

// Close satisfies the same lifecycle as the SQL store.
func (s *Store) Close() error { return nil }

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

type txKey struct{}

type slotWrite struct {
	slot     model.Slot
	expected int64
}

type reservationWrite struct {
	res      model.Reservation
	expected int64
	insert   bool
}

type unitOfWork struct {
	slots        map[uint64]*slotWrite
	reservations map[uint64]*reservationWrite
	order        []uint64
}

func txFrom(ctx context.Context) *unitOfWork {
	if u, ok := ctx.Value(txKey{}).(*unitOfWork); ok {
		return u
	}
	return nil
}

// WithTx runs fn inside a unit of work. Nested calls join the outer unit.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if txFrom(ctx) != nil {
		return fn(ctx)
	}
	u := &unitOfWork{
		slots:        make(map[uint64]*slotWrite),
		reservations: make(map[uint64]*reservationWrite),
	}
	if err := fn(context.WithValue(ctx, txKey{}, u)); err != nil {
		return err
	}
	return s.commit(u)
}

func (s *Store) commit(u *unitOfWork) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, w := range u.slots {
		if cur, ok := s.slots[id]; !ok || cur.Version != w.expected {
			return fmt.Errorf("%w: slot %d", booking.ErrConcurrencyConflict, id)
		}
	}
	for _, id := range u.order {
		w := u.reservations[id]
		if w.insert {
			if w.res.Status.IsActive() && s.hasActiveLocked(w.res.UserID, w.res.SlotID) {
				return fmt.Errorf("%w: user %d slot %d", booking.ErrDuplicateReservation, w.res.UserID, w.res.SlotID)
			}
			continue
		}
		if cur, ok := s.reservations[id]; !ok || cur.Version != w.expected {
			return fmt.Errorf("%w: reservation %d", booking.ErrConcurrencyConflict, id)
		}
	}

	for id, w := range u.slots {
		s.slots[id] = w.slot
	}
	for _, id := range u.order {
		s.reservations[id] = u.reservations[id].res
	}
	return nil
}

func (s *Store) nextID() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastID++
	return s.lastID
}

// LoadSlot returns a copy of the slot as seen by the unit of work in ctx.
func (s *Store) LoadSlot(ctx context.Context, id uint64) (*model.Slot, error) {
	if u := txFrom(ctx); u != nil {
		if w, ok := u.slots[id]; ok {
			cp := w.slot
			return &cp, nil
		}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	slot, ok := s.slots[id]
	if !ok {
		return nil, fmt.Errorf("%w: slot %d", booking.ErrNotFound, id)
	}
	return &slot, nil
}

// LoadReservation returns a copy of the reservation as seen by the unit of
// work in ctx.
func (s *Store) LoadReservation(ctx context.Context, id uint64) (*model.Reservation, error) {
	if u := txFrom(ctx); u != nil {
		if w, ok := u.reservations[id]; ok {
			cp := w.res
			return &cp, nil
		}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reservations[id]
	if !ok {
		return nil, fmt.Errorf("%w: reservation %d", booking.ErrNotFound, id)
	}
	return &r, nil
}

// SaveSlot writes slot if its Version still matches, then bumps Version.
func (s *Store) SaveSlot(ctx context.Context, slot *model.Slot) error {
	if slot.BookedCount < 0 || slot.BookedCount > slot.Capacity {
		return fmt.Errorf("slot %d: booked_count %d outside 0..%d", slot.ID, slot.BookedCount, slot.Capacity)
	}
	u := txFrom(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	committed, ok := s.slots[slot.ID]
	if !ok {
		return fmt.Errorf("%w: slot %d", booking.ErrNotFound, slot.ID)
	}
	current := committed.Version
	if u != nil {
		if w, ok := u.slots[slot.ID]; ok {
			current = w.slot.Version
		}
	}
	if current != slot.Version {
		return fmt.Errorf("%w: slot %d", booking.ErrConcurrencyConflict, slot.ID)
	}
	slot.Version++

	if u == nil {
		s.slots[slot.ID] = *slot
		return nil
	}
	if w, ok := u.slots[slot.ID]; ok {
		w.slot = *slot
	} else {
		u.slots[slot.ID] = &slotWrite{slot: *slot, expected: committed.Version}
	}
	return nil
}

// SaveReservation inserts r when its ID is zero, otherwise writes it if its
// Version still matches and bumps Version.
func (s *Store) SaveReservation(ctx context.Context, r *model.Reservation) error {
	u := txFrom(ctx)
	if r.ID == 0 {
		return s.insertReservation(u, r)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	committed, ok := s.reservations[r.ID]
	var pending *reservationWrite
	if u != nil {
		pending = u.reservations[r.ID]
	}
	if !ok && pending == nil {
		return fmt.Errorf("%w: reservation %d", booking.ErrNotFound, r.ID)
	}
	current := committed.Version
	if pending != nil {
		current = pending.res.Version
	}
	if current != r.Version {
		return fmt.Errorf("%w: reservation %d", booking.ErrConcurrencyConflict, r.ID)
	}
	r.Version++

	if u == nil {
		s.reservations[r.ID] = *r
		return nil
	}
	if pending != nil {
		pending.res = *r
		return nil
	}
	u.reservations[r.ID] = &reservationWrite{res: *r, expected: committed.Version}
	u.order = append(u.order, r.ID)
	return nil
}

func (s *Store) insertReservation(u *unitOfWork, r *model.Reservation) error {
	if u != nil && r.Status.IsActive() {
		for _, id := range u.order {
			w := u.reservations[id]
			if w.res.Status.IsActive() && w.res.UserID == r.UserID && w.res.SlotID == r.SlotID {
				return fmt.Errorf("%w: user %d slot %d", booking.ErrDuplicateReservation, r.UserID, r.SlotID)
			}
		}
	}
	r.ID = s.nextID()
	r.Version = 0

	if u == nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		if r.Status.IsActive() && s.hasActiveLocked(r.UserID, r.SlotID) {
			return fmt.Errorf("%w: user %d slot %d", booking.ErrDuplicateReservation, r.UserID, r.SlotID)
		}
		s.reservations[r.ID] = *r
		return nil
	}
	u.reservations[r.ID] = &reservationWrite{res: *r, insert: true}
	u.order = append(u.order, r.ID)
	return nil
}

// FindActiveReservation reports whether userID holds a PENDING or
// CONFIRMED reservation on slotID, including writes buffered in ctx.
func (s *Store) FindActiveReservation(ctx context.Context, userID, slotID uint64) (bool, error) {
	u := txFrom(ctx)
	if u != nil {
		for _, id := range u.order {
			w := u.reservations[id]
			if w.res.UserID == userID && w.res.SlotID == slotID && w.res.Status.IsActive() {
				return true, nil
			}
		}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for id, r := range s.reservations {
		if r.UserID != userID || r.SlotID != slotID || !r.Status.IsActive() {
			continue
		}
		if u != nil {
			if w, ok := u.reservations[id]; ok && !w.res.Status.IsActive() {
				continue
			}
		}
		return true, nil
	}
	return false, nil
}

func (s *Store) hasActiveLocked(userID, slotID uint64) bool {
	for _, r := range s.reservations {
		if r.UserID == userID && r.SlotID == slotID && r.Status.IsActive() {
			return true
		}
	}
	return false
}

// MerchantOfSlot walks slot -> task -> service item -> merchant.
func (s *Store) MerchantOfSlot(ctx context.Context, slotID uint64) (uint64, error) {
	s.mu.RLock()
	slot, ok := s.slots[slotID]
	s.mu.RUnlock()
	if !ok {
		return 0, fmt.Errorf("%w: slot %d", booking.ErrNotFound, slotID)
	}
	return s.MerchantOfTask(ctx, slot.TaskID)
}

// MerchantOfTask walks task -> service item -> merchant.
func (s *Store) MerchantOfTask(_ context.Context, taskID uint64) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	task, ok := s.tasks[taskID]
	if !ok {
		return 0, fmt.Errorf("%w: task %d", booking.ErrNotFound, taskID)
	}
	item, ok := s.items[task.ServiceItemID]
	if !ok {
		return 0, fmt.Errorf("%w: service item %d", booking.ErrNotFound, task.ServiceItemID)
	}
	merchant, ok := s.merchants[item.MerchantID]
	if !ok {
		return 0, fmt.Errorf("%w: merchant %d", booking.ErrNotFound, item.MerchantID)
	}
	return merchant.ID, nil
}

// MerchantIDForUser returns the merchant profile managed by a login.
func (s *Store) MerchantIDForUser(_ context.Context, userID uint64) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.merchants {
		if m.UserID == userID {
			return m.ID, nil
		}
	}
	return 0, fmt.Errorf("%w: merchant profile for user %d", booking.ErrNotFound, userID)
}

// AddMerchant stores a merchant profile and assigns its id.
func (s *Store) AddMerchant(m *model.MerchantProfile) {
	m.ID = s.nextID()
	s.mu.Lock()
	s.merchants[m.ID] = *m
	s.mu.Unlock()
}

// AddServiceItem stores a service item and assigns its id.
func (s *Store) AddServiceItem(it *model.ServiceItem) {
	it.ID = s.nextID()
	s.mu.Lock()
	s.items[it.ID] = *it
	s.mu.Unlock()
}

// AddTask stores a task and assigns its id.
func (s *Store) AddTask(t *model.Task) {
	t.ID = s.nextID()
	s.mu.Lock()
	s.tasks[t.ID] = *t
	s.mu.Unlock()
}

// CreateMerchant stores a merchant profile. It mirrors the SQL store so
// seeding code works against either.
func (s *Store) CreateMerchant(_ context.Context, m *model.MerchantProfile) error {
	s.AddMerchant(m)
	return nil
}

// CreateServiceItem stores a service item.
func (s *Store) CreateServiceItem(_ context.Context, it *model.ServiceItem) error {
	s.AddServiceItem(it)
	return nil
}

// CreateTask stores a task.
func (s *Store) CreateTask(_ context.Context, t *model.Task) error {
	s.AddTask(t)
	return nil
}

// CreateSlot stores a new slot with BookedCount and Version reset.
func (s *Store) CreateSlot(_ context.Context, slot *model.Slot) error {
	if slot.Capacity <= 0 {
		return fmt.Errorf("slot capacity must be positive, got %d", slot.Capacity)
	}
	slot.ID = s.nextID()
	slot.BookedCount = 0
	slot.Version = 0
	s.mu.Lock()
	s.slots[slot.ID] = *slot
	s.mu.Unlock()
	return nil
}

// ListTaskSlots returns the task's slots ordered by start time.
func (s *Store) ListTaskSlots(_ context.Context, taskID uint64) ([]model.Slot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Slot, 0)
	for _, slot := range s.slots {
		if slot.TaskID == taskID {
			out = append(out, slot)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartTime.Before(out[j].StartTime)
	})
	return out, nil
}

// ListUserReservations returns the user's reservations, newest first.
// An empty status matches every status.
func (s *Store) ListUserReservations(_ context.Context, userID uint64, status model.Status) ([]model.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filterLocked(func(r model.Reservation) bool {
		return r.UserID == userID && (status == "" || r.Status == status)
	}), nil
}

// ListMerchantReservations returns reservations on the merchant's slots,
// newest first. An empty status matches every status.
func (s *Store) ListMerchantReservations(_ context.Context, merchantID uint64, status model.Status) ([]model.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filterLocked(func(r model.Reservation) bool {
		if status != "" && r.Status != status {
			return false
		}
		slot, ok := s.slots[r.SlotID]
		if !ok {
			return false
		}
		task, ok := s.tasks[slot.TaskID]
		if !ok {
			return false
		}
		item, ok := s.items[task.ServiceItemID]
		return ok && item.MerchantID == merchantID
	}), nil
}

// ListPendingEndedBefore implements booking.SweepFinder.
func (s *Store) ListPendingEndedBefore(_ context.Context, cutoff time.Time, limit int) ([]uint64, error) {
	return s.endedBefore(model.StatusPending, cutoff, limit), nil
}

// ListConfirmedEndedBefore implements booking.SweepFinder.
func (s *Store) ListConfirmedEndedBefore(_ context.Context, cutoff time.Time, limit int) ([]uint64, error) {
	return s.endedBefore(model.StatusConfirmed, cutoff, limit), nil
}

func (s *Store) endedBefore(status model.Status, cutoff time.Time, limit int) []uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]uint64, 0)
	for id, r := range s.reservations {
		if r.Status != status {
			continue
		}
		if slot, ok := s.slots[r.SlotID]; ok && !slot.EndTime.After(cutoff) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids
}

func (s *Store) filterLocked(keep func(model.Reservation) bool) []model.Reservation {
	out := make([]model.Reservation, 0)
	for _, r := range s.reservations {
		if keep(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

var _ booking.Store = (*Store)(nil)
var _ booking.SweepFinder = (*Store)(nil)
