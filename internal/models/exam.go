package models

import (
	"time"

	"gorm.io/datatypes"
)

type ExamStatus string

const (
	ExamScheduled  ExamStatus = "scheduled"
	ExamInProgress ExamStatus = "in_progress"
	ExamPassed     ExamStatus = "passed"
	ExamFailed     ExamStatus = "failed"
	ExamCancelled  ExamStatus = "cancelled"
)

// Resolved reports whether the exam reached a terminal graded state.
func (s ExamStatus) Resolved() bool {
	return s == ExamPassed || s == ExamFailed
}

// Terminal reports whether the status admits no further transitions.
func (s ExamStatus) Terminal() bool {
	return s.Resolved() || s == ExamCancelled
}

type CriterionResult string

const (
	CriterionUnset  CriterionResult = "unset"
	CriterionPassed CriterionResult = "passed"
	CriterionFailed CriterionResult = "failed"
)

// Exam tracks the graded outcome of a special ride. The criteria checklist is
// fixed by the course category's curriculum at scheduling time; the exam
// cannot resolve until every criterion is graded.
type Exam struct {
	ID     uint       `json:"id" gorm:"primaryKey"`
	Status ExamStatus `json:"status" gorm:"not null;default:scheduled;index"`

	CourseID uint `json:"course_id" gorm:"not null;index"`
	RideID   uint `json:"ride_id" gorm:"not null;uniqueIndex"`

	// PassThreshold is the minimum number of passed criteria, sourced from the
	// curriculum collaborator per category.
	PassThreshold int        `json:"pass_threshold" gorm:"not null"`
	ResolvedAt    *time.Time `json:"resolved_at"`

	// ResultSummary is a JSON snapshot written once on resolution.
	ResultSummary datatypes.JSON `json:"result_summary" gorm:"type:jsonb"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Criteria []ExamCriterion `json:"criteria,omitempty" gorm:"foreignKey:ExamID"`
}

func (Exam) TableName() string {
	return "exams"
}

// GradedCount returns how many criteria have a non-unset result.
func (e *Exam) GradedCount() int {
	n := 0
	for _, c := range e.Criteria {
		if c.Result != CriterionUnset {
			n++
		}
	}
	return n
}

// PassedCount returns how many criteria were graded as passed.
func (e *Exam) PassedCount() int {
	n := 0
	for _, c := range e.Criteria {
		if c.Result == CriterionPassed {
			n++
		}
	}
	return n
}

// ExamCriterion is one graded skill item within an exam's checklist.
type ExamCriterion struct {
	ID       uint            `json:"id" gorm:"primaryKey"`
	ExamID   uint            `json:"exam_id" gorm:"not null;index"`
	Position int             `json:"position" gorm:"not null"`
	Code     string          `json:"code" gorm:"not null;size:50"`
	Name     string          `json:"name" gorm:"not null;size:200"`
	Result   CriterionResult `json:"result" gorm:"not null;default:unset"`

	GradedAt *time.Time `json:"graded_at"`
	GradedBy *string    `json:"graded_by" gorm:"size:255"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (ExamCriterion) TableName() string {
	return "exam_criteria"
}
