package models

import (
	"time"
)

type ChangeRequestStatus string

const (
	ChangeRequestPending  ChangeRequestStatus = "pending"
	ChangeRequestApproved ChangeRequestStatus = "approved"
	ChangeRequestRejected ChangeRequestStatus = "rejected"
)

type RequestorType string

const (
	RequestorStudent RequestorType = "student"
	RequestorStaff   RequestorType = "staff"
)

// InstructorChangeRequest is the workflow entity for reassigning a course's
// instructor. At most one request may be pending per course at a time;
// approval writes the new instructor into the owning course.
type InstructorChangeRequest struct {
	ID     uint                `json:"id" gorm:"primaryKey"`
	Status ChangeRequestStatus `json:"status" gorm:"not null;default:pending;index"`

	CourseID      uint          `json:"course_id" gorm:"not null;index;uniqueIndex:uniq_pending_change_per_course,where:status = 'pending'"`
	RequestorID   string        `json:"requestor_id" gorm:"not null;size:255" validate:"required"`
	RequestorType RequestorType `json:"requestor_type" gorm:"not null;size:20"`

	RequestedInstructorID *string `json:"requested_instructor_id" gorm:"size:255"`
	Note                  string  `json:"note" gorm:"type:text" validate:"max=1000"`

	ResolvedBy *string `json:"resolved_by" gorm:"size:255"`

	RequestedAt      time.Time `json:"requested_at" gorm:"not null"`
	LastStatusChange time.Time `json:"last_status_change" gorm:"not null"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (InstructorChangeRequest) TableName() string {
	return "instructor_change_requests"
}
