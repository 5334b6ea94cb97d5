package validator

import (
	"time"

	"github.com/driveschool-hub/scheduling-service/internal/models"
)

// SlotCreateRequest represents an instructor publishing an available window
type SlotCreateRequest struct {
	InstructorID string    `json:"instructor_id" validate:"required"`
	StartTime    time.Time `json:"start_time" validate:"required,future_date"`
	EndTime      time.Time `json:"end_time" validate:"required"`
}

// RideBookRequest represents a student claiming a slot for a practice ride
type RideBookRequest struct {
	CourseID  uint   `json:"course_id" validate:"required"`
	SlotID    uint   `json:"slot_id" validate:"required"`
	VehicleID string `json:"vehicle_id" validate:"omitempty,max=64"`
}

// ExamScheduleRequest represents scheduling a practical exam on a slot
type ExamScheduleRequest struct {
	CourseID      uint   `json:"course_id" validate:"required"`
	SlotID        uint   `json:"slot_id" validate:"required"`
	VehicleID     string `json:"vehicle_id" validate:"omitempty,max=64"`
	PassThreshold *int   `json:"pass_threshold" validate:"omitempty,min=1"`
}

// CriterionGradeRequest represents an examiner grading one exam criterion
type CriterionGradeRequest struct {
	Result models.CriterionResult `json:"result" validate:"required,criterion_result"`
}

// CoursePurchaseRequest represents a confirmed payment creating a course
type CoursePurchaseRequest struct {
	StudentID     string                `json:"student_id" validate:"required"`
	SchoolID      string                `json:"school_id" validate:"required"`
	Category      models.CourseCategory `json:"category" validate:"required,course_category"`
	Hours         float64               `json:"hours" validate:"required,hour_amount"`
	HourRate      float64               `json:"hour_rate" validate:"required,gt=0"`
	TransactionID string                `json:"transaction_id" validate:"required,max=128"`
	PaymentStatus string                `json:"payment_status" validate:"required,oneof=confirmed pending failed"`
}

// HourPackageRequest represents topping up an existing course with hours
type HourPackageRequest struct {
	Hours         float64 `json:"hours" validate:"required,hour_amount"`
	TransactionID string  `json:"transaction_id" validate:"required,max=128"`
	PaymentStatus string  `json:"payment_status" validate:"required,oneof=confirmed pending failed"`
}

// ChangeRequestCreateRequest represents filing an instructor change
type ChangeRequestCreateRequest struct {
	RequestedInstructorID *string `json:"requested_instructor_id" validate:"omitempty,max=255"`
	Note                  string  `json:"note" validate:"omitempty,max=500"`
}

// ChangeRequestResolveRequest represents staff approving or rejecting a change
type ChangeRequestResolveRequest struct {
	Approve      bool    `json:"approve"`
	InstructorID *string `json:"instructor_id" validate:"omitempty,max=255"`
}
