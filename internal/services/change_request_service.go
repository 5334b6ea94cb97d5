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

type changeRequestService struct {
	repo      repositories.Repository
	access    AccessService
	notifier  NotificationEventService
	logger    *slog.Logger
	validator *validator.Validator
}

func NewChangeRequestService(repo repositories.Repository, access AccessService, notifier NotificationEventService, logger *slog.Logger, v *validator.Validator) ChangeRequestService {
	return &changeRequestService{
		repo:      repo,
		access:    access,
		notifier:  notifier,
		logger:    logger,
		validator: v,
	}
}

// File opens an instructor change request. A course carries at most one
// pending request at a time.
func (s *changeRequestService) File(ctx context.Context, actor *Actor, courseID uint, req *ChangeRequestCreateRequest) (*models.InstructorChangeRequest, error) {
	if errs := s.validator.Validate(req); len(errs) > 0 {
		return nil, NewValidationError("invalid change request", errs)
	}

	course, err := s.repo.Course().GetByID(ctx, courseID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, NewNotFoundError("course")
		}
		return nil, err
	}

	requestorType := models.RequestorStaff
	switch actor.Role {
	case models.RoleStudent:
		if course.StudentID != actor.ID {
			return nil, NewAccessDeniedError("not your course")
		}
		requestorType = models.RequestorStudent
	case models.RoleInstructor:
		return nil, NewAccessDeniedError("instructors cannot file change requests")
	default:
		if !s.access.CanManageCourse(actor, course) {
			return nil, NewAccessDeniedError("not allowed to file for this course")
		}
	}

	if course.Archived {
		return nil, NewInvalidStateError("course is archived")
	}

	if _, err := s.repo.ChangeRequest().GetPendingByCourse(ctx, courseID); err == nil {
		return nil, NewConflictError("course already has a pending change request", nil)
	} else if !repositories.IsNotFoundError(err) {
		return nil, err
	}

	now := time.Now().UTC()
	request := &models.InstructorChangeRequest{
		Status:                models.ChangeRequestPending,
		CourseID:              courseID,
		RequestorID:           actor.ID,
		RequestorType:         requestorType,
		RequestedInstructorID: req.RequestedInstructorID,
		Note:                  req.Note,
		RequestedAt:           now,
		LastStatusChange:      now,
	}

	// The lookup above is a fast path; the partial unique index on pending
	// requests decides when two filings race.
	if err := s.repo.ChangeRequest().Create(ctx, request); err != nil {
		if errors.Is(err, repositories.ErrDuplicatePending) {
			return nil, NewConflictError("course already has a pending change request", err)
		}
		return nil, err
	}

	s.logger.Info("Instructor change request filed",
		"request_id", request.ID,
		"course_id", courseID,
		"requestor_id", actor.ID,
		"requestor_type", requestorType)

	return request, nil
}

// Resolve approves or rejects a pending request. Approval writes the new
// instructor onto the course in the same transaction.
func (s *changeRequestService) Resolve(ctx context.Context, actor *Actor, requestID uint, req *ChangeRequestResolveRequest) (*models.InstructorChangeRequest, error) {
	if errs := s.validator.Validate(req); len(errs) > 0 {
		return nil, NewValidationError("invalid resolution request", errs)
	}

	request, err := s.repo.ChangeRequest().GetByID(ctx, requestID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, NewNotFoundError("change request")
		}
		return nil, err
	}

	course, err := s.repo.Course().GetByID(ctx, request.CourseID)
	if err != nil {
		return nil, err
	}

	if !s.access.CanManageCourse(actor, course) {
		return nil, NewAccessDeniedError("only staff resolve change requests")
	}

	if request.Status != models.ChangeRequestPending {
		return nil, NewInvalidStateError("change request already " + string(request.Status))
	}

	now := time.Now().UTC()
	if req.Approve {
		newInstructor := request.RequestedInstructorID
		if req.InstructorID != nil {
			newInstructor = req.InstructorID
		}
		if newInstructor == nil {
			return nil, NewValidationError("approval requires an instructor id", nil)
		}

		err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
			course.InstructorID = newInstructor
			course.UpdatedAt = now
			if err := txRepo.Course().Update(ctx, course); err != nil {
				return err
			}

			request.Status = models.ChangeRequestApproved
			request.ResolvedBy = &actor.ID
			request.LastStatusChange = now
			return txRepo.ChangeRequest().Update(ctx, request)
		})
		if err != nil {
			if errors.Is(err, repositories.ErrStaleState) {
				return nil, NewInvalidStateError("change request was resolved concurrently")
			}
			return nil, err
		}
	} else {
		request.Status = models.ChangeRequestRejected
		request.ResolvedBy = &actor.ID
		request.LastStatusChange = now
		if err := s.repo.ChangeRequest().Update(ctx, request); err != nil {
			if errors.Is(err, repositories.ErrStaleState) {
				return nil, NewInvalidStateError("change request was resolved concurrently")
			}
			return nil, err
		}
	}

	s.logger.Info("Instructor change request resolved",
		"request_id", request.ID,
		"course_id", request.CourseID,
		"status", request.Status,
		"resolved_by", actor.ID)

	s.notifier.InstructorChangeResolved(ctx, request, course)

	return request, nil
}

func (s *changeRequestService) Get(ctx context.Context, actor *Actor, requestID uint) (*models.InstructorChangeRequest, error) {
	request, err := s.repo.ChangeRequest().GetByID(ctx, requestID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, NewNotFoundError("change request")
		}
		return nil, err
	}

	course, err := s.repo.Course().GetByID(ctx, request.CourseID)
	if err != nil {
		return nil, err
	}
	if !s.access.CanViewCourse(actor, course) && request.RequestorID != actor.ID {
		return nil, NewAccessDeniedError("not allowed to view this request")
	}

	return request, nil
}

func (s *changeRequestService) List(ctx context.Context, actor *Actor, filters repositories.ChangeRequestFilters) (*ChangeRequestListResponse, error) {
	if !actor.IsStaff() {
		filters.RequestorID = &actor.ID
	}

	requests, total, err := s.repo.ChangeRequest().List(ctx, filters)
	if err != nil {
		return nil, err
	}

	return &ChangeRequestListResponse{Requests: requests, Total: total}, nil
}
