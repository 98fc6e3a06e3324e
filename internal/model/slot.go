package model

import "time"

// Slot is a bounded-capacity, time-boxed reservation target published by a
// merchant for one of its tasks.
//
// Fields:
//  ID          – primary key identifier.
//  TaskID      – parent task the slot belongs to.
//  StartTime   – when the appointment window opens.
//  EndTime     – when the appointment window closes.
//  Capacity    – number of seats; positive and immutable after creation.
//  BookedCount – seats held by active reservations (0..Capacity).
//  Version     – optimistic concurrency token, bumped on every write.
type Slot struct {
	ID          uint64    // slots.id
	TaskID      uint64    // slots.task_id
	StartTime   time.Time // slots.starts_at
	EndTime     time.Time // slots.ends_at
	Capacity    int       // slots.capacity
	BookedCount int       // slots.booked_count
	Version     int64     // slots.version
}

// Available returns the number of seats that can still be admitted.
func (s *Slot) Available() int {
	if n := s.Capacity - s.BookedCount; n > 0 {
		return n
	}
	return 0
}

// HasCapacity reports whether at least one seat is free.
func (s *Slot) HasCapacity() bool { return s.BookedCount < s.Capacity }

// Ended reports whether the slot's window has closed at the given instant.
func (s *Slot) Ended(now time.Time) bool { return !s.EndTime.After(now) }

// SlotAvailability is the read-side view of a slot returned to browsing
// clients and stored in the availability cache.
type SlotAvailability struct {
	SlotID         uint64    `json:"slot_id"`
	TaskID         uint64    `json:"task_id"`
	StartTime      time.Time `json:"start_time"`
	EndTime        time.Time `json:"end_time"`
	Capacity       int       `json:"capacity"`
	BookedCount    int       `json:"booked_count"`
	AvailableCount int       `json:"available_count"`
	HasCapacity    bool      `json:"has_capacity"`
}

// AvailabilityOf builds the availability view of s.
func AvailabilityOf(s *Slot) SlotAvailability {
	return SlotAvailability{
		SlotID:         s.ID,
		TaskID:         s.TaskID,
		StartTime:      s.StartTime,
		EndTime:        s.EndTime,
		Capacity:       s.Capacity,
		BookedCount:    s.BookedCount,
		AvailableCount: s.Available(),
		HasCapacity:    s.HasCapacity(),
	}
}
