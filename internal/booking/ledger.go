// Package booking is the admission and capacity-concurrency engine. It
// decides whether a reservation attempt succeeds, keeps every slot's
// booked count within its capacity, and enforces the reservation
// lifecycle. Every operation runs as one unit of work over a Store.
package booking

import "github.com/iliyamo/slot-booking/internal/model"

// TryAdmit claims one seat on the given snapshot. It increments BookedCount
// and returns true when a seat is free; otherwise it leaves the slot
// untouched and returns false. The caller must persist the same snapshot
// with a write conditioned on the version it was loaded with.
func TryAdmit(slot *model.Slot) bool {
	if slot.BookedCount >= slot.Capacity {
		return false
	}
	slot.BookedCount++
	return true
}

// Release frees one seat on the given snapshot. The count never drops
// below zero; callers still must not release twice for one reservation.
func Release(slot *model.Slot) {
	if slot.BookedCount > 0 {
		slot.BookedCount--
	}
}
