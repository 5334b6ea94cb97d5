package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/driveschool-hub/scheduling-service/internal/models"
	"github.com/driveschool-hub/scheduling-service/internal/repositories"
	"github.com/driveschool-hub/scheduling-service/internal/validator"
)

const (
	paymentConfirmed = "confirmed"
	paymentPending   = "pending"
	paymentFailed    = "failed"
)

type courseService struct {
	repo      repositories.Repository
	access    AccessService
	notifier  NotificationEventService
	logger    *slog.Logger
	validator *validator.Validator
}

func NewCourseService(repo repositories.Repository, access AccessService, notifier NotificationEventService, logger *slog.Logger, v *validator.Validator) CourseService {
	return &courseService{
		repo:      repo,
		access:    access,
		notifier:  notifier,
		logger:    logger,
		validator: v,
	}
}

// consumeHoursTx adds consumed hours to a course inside the caller's
// transaction. Over-consumption clamps the balance at zero and flags the
// course for review instead of going negative. A course that hits zero with
// nothing unresolved archives itself.
func consumeHoursTx(ctx context.Context, repo repositories.Repository, course *models.Course, hours float64) error {
	course.HoursConsumed += hours
	if course.HoursConsumed > course.HoursPurchased {
		course.HoursConsumed = course.HoursPurchased
		course.NeedsArchiveReview = true
	}

	if course.RemainingHours() == 0 {
		unresolved, err := repo.Exam().HasUnresolvedByCourse(ctx, course.ID)
		if err != nil {
			return err
		}
		if !unresolved {
			course.Archived = true
		}
	}

	course.UpdatedAt = time.Now().UTC()
	return repo.Course().Update(ctx, course)
}

func checkPaymentStatus(status string) error {
	switch status {
	case paymentConfirmed:
		return nil
	case paymentPending:
		return NewUpstreamError("payment is still pending confirmation")
	case paymentFailed:
		return NewInvalidStateError("payment failed, no hours credited")
	default:
		return NewValidationError("unknown payment status "+status, nil)
	}
}

// Purchase creates a course from a confirmed payment. The transaction id is
// the idempotency key: replaying a processed payment returns the course it
// already created, with no second charge of hours.
func (s *courseService) Purchase(ctx context.Context, actor *Actor, req *CoursePurchaseRequest) (*models.Course, error) {
	if errs := s.validator.ValidateCoursePurchase(req); len(errs) > 0 {
		return nil, NewValidationError("invalid purchase request", errs)
	}

	if actor.Role == models.RoleStaff && (actor.SchoolID == nil || *actor.SchoolID != req.SchoolID) {
		return nil, NewAccessDeniedError("staff may only register purchases for their own school")
	}
	if actor.Role == models.RoleStudent || actor.Role == models.RoleInstructor {
		return nil, NewAccessDeniedError("only staff register purchases")
	}

	if existing, err := s.repo.Course().GetByPurchaseTransaction(ctx, req.TransactionID); err == nil {
		s.logger.Info("Purchase replayed, returning existing course",
			"transaction_id", req.TransactionID,
			"course_id", existing.ID)
		return existing, nil
	} else if !repositories.IsNotFoundError(err) {
		return nil, err
	}

	if err := checkPaymentStatus(req.PaymentStatus); err != nil {
		return nil, err
	}

	course := &models.Course{
		Category:              req.Category,
		StudentID:             req.StudentID,
		SchoolID:              req.SchoolID,
		HoursPurchased:        req.Hours,
		HourRate:              req.HourRate,
		PurchaseTransactionID: req.TransactionID,
		PurchasedAt:           time.Now().UTC(),
	}

	if err := s.repo.Course().Create(ctx, course); err != nil {
		// A concurrent replay may have inserted the same transaction first.
		if existing, getErr := s.repo.Course().GetByPurchaseTransaction(ctx, req.TransactionID); getErr == nil {
			return existing, nil
		}
		return nil, err
	}

	s.logger.Info("Course created from purchase",
		"course_id", course.ID,
		"student_id", course.StudentID,
		"category", course.Category,
		"hours", course.HoursPurchased)

	return course, nil
}

// ApplyHourPackage credits extra hours onto an existing course. Each
// transaction id credits at most once; a replay returns the course as-is.
func (s *courseService) ApplyHourPackage(ctx context.Context, actor *Actor, courseID uint, req *HourPackageRequest) (*models.Course, error) {
	if errs := s.validator.Validate(req); len(errs) > 0 {
		return nil, NewValidationError("invalid hour package request", errs)
	}

	course, err := s.repo.Course().GetByID(ctx, courseID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, NewNotFoundError("course")
		}
		return nil, err
	}

	if !s.access.CanManageCourse(actor, course) {
		return nil, NewAccessDeniedError("not allowed to credit this course")
	}

	if _, err := s.repo.Purchase().GetByTransactionID(ctx, req.TransactionID); err == nil {
		s.logger.Info("Hour package replayed, no credit applied",
			"transaction_id", req.TransactionID,
			"course_id", course.ID)
		return course, nil
	} else if !repositories.IsNotFoundError(err) {
		return nil, err
	}

	if err := checkPaymentStatus(req.PaymentStatus); err != nil {
		return nil, err
	}

	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		purchase := &models.HourPackagePurchase{
			CourseID:      course.ID,
			TransactionID: req.TransactionID,
			Hours:         req.Hours,
			CreditedAt:    time.Now().UTC(),
		}
		if err := txRepo.Purchase().Create(ctx, purchase); err != nil {
			return err
		}

		course.HoursPurchased += req.Hours
		// Fresh balance reopens a course that was closed on exhaustion.
		course.Archived = false
		course.NeedsArchiveReview = false
		course.UpdatedAt = time.Now().UTC()
		return txRepo.Course().Update(ctx, course)
	})
	if err != nil {
		if errors.Is(err, repositories.ErrDuplicateTransaction) {
			return course, nil
		}
		return nil, err
	}

	s.logger.Info("Hour package credited",
		"course_id", course.ID,
		"transaction_id", req.TransactionID,
		"hours", req.Hours,
		"hours_purchased", course.HoursPurchased)

	return course, nil
}

// Archive closes a course manually. Courses with scheduled rides or
// unresolved exams must settle those first.
func (s *courseService) Archive(ctx context.Context, actor *Actor, courseID uint) (*models.Course, error) {
	course, err := s.repo.Course().GetByID(ctx, courseID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, NewNotFoundError("course")
		}
		return nil, err
	}

	if !s.access.CanManageCourse(actor, course) {
		return nil, NewAccessDeniedError("not allowed to archive this course")
	}

	if course.Archived {
		return nil, NewInvalidStateError("course already archived")
	}

	scheduled := models.RideScheduled
	rides, _, err := s.repo.Ride().List(ctx, repositories.RideFilters{
		Status:   &scheduled,
		CourseID: &course.ID,
		Limit:    1,
	})
	if err != nil {
		return nil, err
	}
	if len(rides) > 0 {
		return nil, NewInvalidStateError("course has scheduled rides")
	}

	unresolved, err := s.repo.Exam().HasUnresolvedByCourse(ctx, course.ID)
	if err != nil {
		return nil, err
	}
	if unresolved {
		return nil, NewInvalidStateError("course has unresolved exams")
	}

	course.Archived = true
	course.NeedsArchiveReview = false
	course.UpdatedAt = time.Now().UTC()
	if err := s.repo.Course().Update(ctx, course); err != nil {
		return nil, err
	}

	s.logger.Info("Course archived", "course_id", course.ID, "actor_id", actor.ID)
	s.notifier.CourseArchived(ctx, course, false)

	return course, nil
}

func (s *courseService) Get(ctx context.Context, actor *Actor, courseID uint) (*models.Course, error) {
	course, err := s.repo.Course().GetByID(ctx, courseID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, NewNotFoundError("course")
		}
		return nil, err
	}

	if decision := s.access.Authorize(actor, course); !decision.Allowed {
		return nil, NewAccessDeniedError("not allowed to view this course")
	}

	return course, nil
}

// List scopes the result to what the actor may see before querying.
func (s *courseService) List(ctx context.Context, actor *Actor, filters repositories.CourseFilters) (*CourseListResponse, error) {
	switch actor.Role {
	case models.RoleStudent:
		filters.StudentID = &actor.ID
	case models.RoleInstructor:
		filters.InstructorID = &actor.ID
	case models.RoleStaff:
		if actor.SchoolID == nil {
			return nil, NewAccessDeniedError("staff account has no school")
		}
		filters.SchoolID = actor.SchoolID
	}

	courses, total, err := s.repo.Course().List(ctx, filters)
	if err != nil {
		return nil, err
	}

	return &CourseListResponse{Courses: courses, Total: total}, nil
}

func (s *courseService) GetProgress(ctx context.Context, actor *Actor, courseID uint) (*repositories.CourseProgress, error) {
	course, err := s.repo.Course().GetByID(ctx, courseID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, NewNotFoundError("course")
		}
		return nil, err
	}

	if decision := s.access.Authorize(actor, course); !decision.Allowed {
		return nil, NewAccessDeniedError("not allowed to view this course")
	}

	return s.repo.Course().GetProgress(ctx, courseID)
}
