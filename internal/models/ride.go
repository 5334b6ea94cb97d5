package models

import (
	"time"
)

type RideStatus string

const (
	RideScheduled  RideStatus = "scheduled"
	RideInProgress RideStatus = "in_progress"
	RideCompleted  RideStatus = "completed"
	RideCancelled  RideStatus = "cancelled"
)

// Terminal reports whether the status admits no further transitions.
func (s RideStatus) Terminal() bool {
	return s == RideCompleted || s == RideCancelled
}

// Ride is one scheduled or completed lesson instance occupying one slot.
// Its time window is copied from the slot at booking and immutable after.
type Ride struct {
	ID     uint       `json:"id" gorm:"primaryKey"`
	Status RideStatus `json:"status" gorm:"not null;default:scheduled;index"`

	CourseID  uint   `json:"course_id" gorm:"not null;index"`
	SlotID    uint   `json:"slot_id" gorm:"not null;index"`
	VehicleID string `json:"vehicle_id" gorm:"not null;size:255" validate:"required"`

	StartTime time.Time `json:"start_time" gorm:"not null"`
	EndTime   time.Time `json:"end_time" gorm:"not null"`

	// HoursCounted is set on completion and may differ from the slot-implied
	// duration.
	HoursCounted float64    `json:"hours_counted"`
	StartedAt    *time.Time `json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at"`
	CancelledAt  *time.Time `json:"cancelled_at"`

	ExamID *uint `json:"exam_id" gorm:"index"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Course Course `json:"course,omitempty" gorm:"foreignKey:CourseID"`
	Exam   *Exam  `json:"exam,omitempty" gorm:"foreignKey:ExamID"`
}

func (Ride) TableName() string {
	return "rides"
}
