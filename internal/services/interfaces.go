package services

import (
	"context"
	"time"

	"github.com/driveschool-hub/scheduling-service/internal/models"
	"github.com/driveschool-hub/scheduling-service/internal/repositories"
	"github.com/driveschool-hub/scheduling-service/internal/validator"
)

// ===== REQUEST/RESPONSE DTOs =====

// Use validator request types
type SlotCreateRequest = validator.SlotCreateRequest
type RideBookRequest = validator.RideBookRequest
type ExamScheduleRequest = validator.ExamScheduleRequest
type CriterionGradeRequest = validator.CriterionGradeRequest
type CoursePurchaseRequest = validator.CoursePurchaseRequest
type HourPackageRequest = validator.HourPackageRequest
type ChangeRequestCreateRequest = validator.ChangeRequestCreateRequest
type ChangeRequestResolveRequest = validator.ChangeRequestResolveRequest

// Actor is the authenticated caller, resolved from the identity provider.
type Actor struct {
	ID       string
	Role     models.UserRole
	SchoolID *string
}

func (a *Actor) IsStaff() bool {
	return a.Role == models.RoleStaff || a.Role == models.RoleAdmin
}

type RideCompleteRequest struct {
	// HoursOverride replaces the slot-implied duration when the ride ran
	// short or long. Nil means count the full slot duration.
	HoursOverride *float64 `json:"hours_override" validate:"omitempty,gt=0"`
}

type CourseListResponse struct {
	Courses []*models.Course `json:"courses"`
	Total   int64            `json:"total"`
}

type RideListResponse struct {
	Rides []*models.Ride `json:"rides"`
	Total int64          `json:"total"`
}

type ChangeRequestListResponse struct {
	Requests []*models.InstructorChangeRequest `json:"requests"`
	Total    int64                             `json:"total"`
}

// ===== SERVICE INTERFACES =====

type SlotService interface {
	Publish(ctx context.Context, actor *Actor, req *SlotCreateRequest) (*models.RideSlot, error)
	Delete(ctx context.Context, actor *Actor, slotID uint) error
	Get(ctx context.Context, actor *Actor, slotID uint) (*models.RideSlot, error)
	List(ctx context.Context, actor *Actor, filters repositories.SlotFilters) ([]*models.RideSlot, error)
}

type RideService interface {
	Book(ctx context.Context, actor *Actor, req *RideBookRequest) (*models.Ride, error)
	Start(ctx context.Context, actor *Actor, rideID uint) (*models.Ride, error)
	Complete(ctx context.Context, actor *Actor, rideID uint, req *RideCompleteRequest) (*models.Ride, error)
	Cancel(ctx context.Context, actor *Actor, rideID uint) (*models.Ride, error)
	Get(ctx context.Context, actor *Actor, rideID uint) (*models.Ride, error)
	List(ctx context.Context, actor *Actor, filters repositories.RideFilters) (*RideListResponse, error)

	// ReclaimExpired cancels scheduled rides whose window passed without a
	// start and frees their slots. Called by the background sweep.
	ReclaimExpired(ctx context.Context, before time.Time) (int, error)
}

type ExamService interface {
	Schedule(ctx context.Context, actor *Actor, req *ExamScheduleRequest) (*models.Exam, error)
	GradeCriterion(ctx context.Context, actor *Actor, examID, criterionID uint, req *CriterionGradeRequest) (*models.Exam, error)
	Cancel(ctx context.Context, actor *Actor, examID uint) (*models.Exam, error)
	Get(ctx context.Context, actor *Actor, examID uint) (*models.Exam, error)
	ListByCourse(ctx context.Context, actor *Actor, courseID uint) ([]*models.Exam, error)
}

type CourseService interface {
	// Purchase creates a course from a confirmed payment. Replaying the same
	// transaction id returns the already-created course.
	Purchase(ctx context.Context, actor *Actor, req *CoursePurchaseRequest) (*models.Course, error)

	// ApplyHourPackage credits extra hours onto an existing course, once per
	// transaction id.
	ApplyHourPackage(ctx context.Context, actor *Actor, courseID uint, req *HourPackageRequest) (*models.Course, error)

	Archive(ctx context.Context, actor *Actor, courseID uint) (*models.Course, error)
	Get(ctx context.Context, actor *Actor, courseID uint) (*models.Course, error)
	List(ctx context.Context, actor *Actor, filters repositories.CourseFilters) (*CourseListResponse, error)
	GetProgress(ctx context.Context, actor *Actor, courseID uint) (*repositories.CourseProgress, error)
}

type ChangeRequestService interface {
	File(ctx context.Context, actor *Actor, courseID uint, req *ChangeRequestCreateRequest) (*models.InstructorChangeRequest, error)
	Resolve(ctx context.Context, actor *Actor, requestID uint, req *ChangeRequestResolveRequest) (*models.InstructorChangeRequest, error)
	Get(ctx context.Context, actor *Actor, requestID uint) (*models.InstructorChangeRequest, error)
	List(ctx context.Context, actor *Actor, filters repositories.ChangeRequestFilters) (*ChangeRequestListResponse, error)
}

// AccessDecision is the outcome of authorizing an actor against a course,
// with the actor's roles spelled out for callers that branch on them.
type AccessDecision struct {
	Allowed      bool `json:"allowed"`
	IsStudent    bool `json:"is_student"`
	IsInstructor bool `json:"is_instructor"`
	IsStaff      bool `json:"is_staff"`
	IsAdmin      bool `json:"is_admin"`
}

// AccessService resolves actors and centralizes per-course authorization.
type AccessService interface {
	ResolveActor(ctx context.Context, userID string) (*Actor, error)
	Authorize(actor *Actor, course *models.Course) AccessDecision
	CanViewCourse(actor *Actor, course *models.Course) bool
	CanBookForCourse(actor *Actor, course *models.Course) bool
	CanManageCourse(actor *Actor, course *models.Course) bool
	CanOperateSlot(actor *Actor, slot *models.RideSlot) bool
}

// NotificationEventService publishes domain events after commits.
type NotificationEventService interface {
	RideCompleted(ctx context.Context, ride *models.Ride, course *models.Course)
	ExamResolved(ctx context.Context, exam *models.Exam, course *models.Course)
	CourseArchived(ctx context.Context, course *models.Course, automatic bool)
	InstructorChangeResolved(ctx context.Context, request *models.InstructorChangeRequest, course *models.Course)
}

// ReportService exports course history workbooks.
type ReportService interface {
	ExportCourseHistory(ctx context.Context, actor *Actor, courseID uint) ([]byte, string, error)
}

// ===== SERVICE MANAGER =====

type ServiceManager interface {
	Initialize(ctx context.Context) error
	Shutdown(ctx context.Context) error

	Access() AccessService
	Slot() SlotService
	Ride() RideService
	Exam() ExamService
	Course() CourseService
	ChangeRequest() ChangeRequestService
	Notification() NotificationEventService
	Report() ReportService
}
