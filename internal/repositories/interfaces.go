package repositories

import (
	"context"
	"time"

	"github.com/driveschool-hub/scheduling-service/internal/models"
)

// ===== SHARED FILTER STRUCTS =====

type CourseFilters struct {
	StudentID    *string                `json:"student_id"`
	InstructorID *string                `json:"instructor_id"`
	SchoolID     *string                `json:"school_id"`
	Category     *models.CourseCategory `json:"category"`
	Archived     *bool                  `json:"archived"`
	Limit        int                    `json:"limit"`
	Offset       int                    `json:"offset"`
	SortBy       string                 `json:"sort_by"`    // "created_at", "purchased_at"
	SortOrder    string                 `json:"sort_order"` // "asc", "desc"
}

type SlotFilters struct {
	InstructorID *string    `json:"instructor_id"`
	OnlyFree     bool       `json:"only_free"`
	From         *time.Time `json:"from"`
	To           *time.Time `json:"to"`
	Limit        int        `json:"limit"`
	Offset       int        `json:"offset"`
}

type RideFilters struct {
	Status   *models.RideStatus `json:"status"`
	CourseID *uint              `json:"course_id"`
	DateFrom *time.Time         `json:"date_from"`
	DateTo   *time.Time         `json:"date_to"`
	Limit    int                `json:"limit"`
	Offset   int                `json:"offset"`
}

type ChangeRequestFilters struct {
	Status      *models.ChangeRequestStatus `json:"status"`
	CourseID    *uint                       `json:"course_id"`
	RequestorID *string                     `json:"requestor_id"`
	Limit       int                         `json:"limit"`
	Offset      int                         `json:"offset"`
	SortBy      string                      `json:"sort_by"`    // "requested_at", "created_at"
	SortOrder   string                      `json:"sort_order"` // "asc", "desc"
}

// ===== SHARED STATISTICS STRUCTS =====

type CourseProgress struct {
	CourseID       uint    `json:"course_id"`
	HoursPurchased float64 `json:"hours_purchased"`
	HoursConsumed  float64 `json:"hours_consumed"`
	HoursRemaining float64 `json:"hours_remaining"`
	CompletedRides int     `json:"completed_rides"`
	ScheduledRides int     `json:"scheduled_rides"`
	ExamsPassed    int     `json:"exams_passed"`
	ExamsFailed    int     `json:"exams_failed"`
}

// ===== REPOSITORY INTERFACES =====

type CourseRepository interface {
	Create(ctx context.Context, course *models.Course) error
	GetByID(ctx context.Context, id uint) (*models.Course, error)
	GetByPurchaseTransaction(ctx context.Context, transactionID string) (*models.Course, error)
	Update(ctx context.Context, course *models.Course) error
	List(ctx context.Context, filters CourseFilters) ([]*models.Course, int64, error)
	GetProgress(ctx context.Context, id uint) (*CourseProgress, error)
}

type SlotRepository interface {
	Create(ctx context.Context, slot *models.RideSlot) error
	GetByID(ctx context.Context, id uint) (*models.RideSlot, error)
	Delete(ctx context.Context, id uint) error
	List(ctx context.Context, filters SlotFilters) ([]*models.RideSlot, error)
	HasOverlap(ctx context.Context, instructorID string, start, end time.Time) (bool, error)

	// Claim atomically binds a free slot to a ride: a single conditional
	// update keyed by slot id, returning ErrSlotOccupied when another ride
	// holds the slot. Exactly one of two concurrent claims wins.
	Claim(ctx context.Context, slotID, rideID uint) error
	Unclaim(ctx context.Context, slotID uint) error
}

type RideRepository interface {
	Create(ctx context.Context, ride *models.Ride) error
	GetByID(ctx context.Context, id uint) (*models.Ride, error)
	Update(ctx context.Context, ride *models.Ride) error

	// Transition writes the ride's state only while the row is still in one
	// of the from states, the same compare-and-set a slot claim does.
	// ErrStaleState means a concurrent transition committed first.
	Transition(ctx context.Context, ride *models.Ride, from ...models.RideStatus) error

	List(ctx context.Context, filters RideFilters) ([]*models.Ride, int64, error)

	// ListExpiredScheduled returns rides still in scheduled state whose window
	// ended before the cutoff; input for the reconciliation sweep.
	ListExpiredScheduled(ctx context.Context, before time.Time) ([]*models.Ride, error)
}

type ExamRepository interface {
	Create(ctx context.Context, exam *models.Exam) error
	GetByID(ctx context.Context, id uint) (*models.Exam, error)
	GetByIDWithCriteria(ctx context.Context, id uint) (*models.Exam, error)

	// GetByIDWithCriteriaLocked loads the exam and its checklist under a row
	// lock so concurrent graders inside transactions run one at a time.
	GetByIDWithCriteriaLocked(ctx context.Context, id uint) (*models.Exam, error)

	GetByRide(ctx context.Context, rideID uint) (*models.Exam, error)

	// Transition writes status, resolution time and result snapshot only
	// while the row is still in one of the from states; ErrStaleState means
	// a concurrent resolution or cancellation won.
	Transition(ctx context.Context, exam *models.Exam, from ...models.ExamStatus) error

	UpdateCriterion(ctx context.Context, criterion *models.ExamCriterion) error
	ListByCourse(ctx context.Context, courseID uint) ([]*models.Exam, error)
	HasUnresolvedByCourse(ctx context.Context, courseID uint) (bool, error)
}

type ChangeRequestRepository interface {
	// Create returns ErrDuplicatePending when the course already carries a
	// pending request; the partial unique index enforces it under races.
	Create(ctx context.Context, request *models.InstructorChangeRequest) error

	GetByID(ctx context.Context, id uint) (*models.InstructorChangeRequest, error)

	// Update commits a resolution only while the row is still pending,
	// returning ErrStaleState when a concurrent resolution won.
	Update(ctx context.Context, request *models.InstructorChangeRequest) error
	GetPendingByCourse(ctx context.Context, courseID uint) (*models.InstructorChangeRequest, error)
	List(ctx context.Context, filters ChangeRequestFilters) ([]*models.InstructorChangeRequest, int64, error)
}

type PurchaseRepository interface {
	Create(ctx context.Context, purchase *models.HourPackagePurchase) error
	GetByTransactionID(ctx context.Context, transactionID string) (*models.HourPackagePurchase, error)
}

type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	List(ctx context.Context, limit, offset int) ([]*models.User, error)
}
