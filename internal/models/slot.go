package models

import (
	"time"
)

// RideSlot is an interval of time an instructor marks available. A slot with
// a nil RideID is free; setting RideID is the sole act of booking, done with a
// conditional update so two concurrent claims cannot both succeed.
type RideSlot struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	InstructorID string    `json:"instructor_id" gorm:"not null;index;size:255" validate:"required"`
	StartTime    time.Time `json:"start_time" gorm:"not null;index" validate:"required"`
	EndTime      time.Time `json:"end_time" gorm:"not null" validate:"required"`

	// Occupancy link, not ownership: the occupying ride references back via
	// Ride.SlotID as well.
	RideID *uint `json:"ride_id" gorm:"uniqueIndex"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (RideSlot) TableName() string {
	return "ride_slots"
}

// Free reports whether no ride occupies the slot.
func (s *RideSlot) Free() bool {
	return s.RideID == nil
}

// DurationHours is the slot length in hours.
func (s *RideSlot) DurationHours() float64 {
	return s.EndTime.Sub(s.StartTime).Hours()
}

// Overlaps reports whether [start, end) intersects the slot's window.
func (s *RideSlot) Overlaps(start, end time.Time) bool {
	return start.Before(s.EndTime) && s.StartTime.Before(end)
}
