package models

import (
	"time"

	"gorm.io/gorm"
)

type CourseCategory string

const (
	CategoryA  CourseCategory = "A"
	CategoryA1 CourseCategory = "A1"
	CategoryB  CourseCategory = "B"
	CategoryBE CourseCategory = "BE"
	CategoryC  CourseCategory = "C"
)

// Course is one purchased agreement between a student and a school for a
// category of driving instruction. Hours purchased only grow via confirmed
// payment events; hours consumed only grow via completed rides.
type Course struct {
	ID       uint           `json:"id" gorm:"primaryKey"`
	Category CourseCategory `json:"category" gorm:"not null;size:10;index" validate:"required,oneof=A A1 B BE C"`

	StudentID    string  `json:"student_id" gorm:"not null;index;size:255" validate:"required"`
	SchoolID     string  `json:"school_id" gorm:"not null;index;size:255" validate:"required"`
	InstructorID *string `json:"instructor_id" gorm:"index;size:255"`

	HoursPurchased float64 `json:"hours_purchased" gorm:"not null" validate:"required,gt=0"`
	HoursConsumed  float64 `json:"hours_consumed" gorm:"not null;default:0"`
	HourRate       float64 `json:"hour_rate" gorm:"not null" validate:"required,gt=0"`

	// PurchaseTransactionID makes course creation idempotent per payment.
	PurchaseTransactionID string    `json:"purchase_transaction_id" gorm:"uniqueIndex;not null;size:255"`
	PurchasedAt           time.Time `json:"purchased_at" gorm:"not null"`

	Archived bool `json:"archived" gorm:"not null;default:false;index"`
	// NeedsArchiveReview is set when a completed ride over-consumed the
	// remaining balance and the hours were clamped at zero.
	NeedsArchiveReview bool `json:"needs_archive_review" gorm:"not null;default:false"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	Rides          []Ride                  `json:"rides,omitempty" gorm:"foreignKey:CourseID"`
	Exams          []Exam                  `json:"exams,omitempty" gorm:"foreignKey:CourseID"`
	ChangeRequests []InstructorChangeRequest `json:"change_requests,omitempty" gorm:"foreignKey:CourseID"`

	// Computed fields (not stored)
	HoursRemaining float64 `json:"hours_remaining" gorm:"-"`
}

func (Course) TableName() string {
	return "courses"
}

// RemainingHours is the purchased balance minus consumption, never negative.
func (c *Course) RemainingHours() float64 {
	remaining := c.HoursPurchased - c.HoursConsumed
	if remaining < 0 {
		return 0
	}
	return remaining
}
