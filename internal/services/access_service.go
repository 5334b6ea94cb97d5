package services

import (
	"context"
	"log/slog"

	"github.com/driveschool-hub/scheduling-service/internal/models"
	"github.com/driveschool-hub/scheduling-service/internal/repositories"
)

type accessService struct {
	repo   repositories.Repository
	logger *slog.Logger
}

func NewAccessService(repo repositories.Repository, logger *slog.Logger) AccessService {
	return &accessService{
		repo:   repo,
		logger: logger,
	}
}

// ResolveActor loads the caller's identity and role from the user store.
func (s *accessService) ResolveActor(ctx context.Context, userID string) (*Actor, error) {
	user, err := s.repo.User().GetByID(ctx, userID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, NewAccessDeniedError("unknown user")
		}
		return nil, NewUpstreamError("identity provider unavailable")
	}

	return &Actor{
		ID:       user.ID,
		Role:     user.Role,
		SchoolID: user.SchoolID,
	}, nil
}

// Authorize gates an actor against a course before any mutation. A denied
// decision must short-circuit the caller with no side effects.
func (s *accessService) Authorize(actor *Actor, course *models.Course) AccessDecision {
	return AccessDecision{
		Allowed:      s.CanViewCourse(actor, course),
		IsStudent:    actor.Role == models.RoleStudent,
		IsInstructor: actor.Role == models.RoleInstructor,
		IsStaff:      actor.Role == models.RoleStaff,
		IsAdmin:      actor.Role == models.RoleAdmin,
	}
}

// CanViewCourse: students see their own courses, instructors the ones
// assigned to them, staff their school's, admins everything.
func (s *accessService) CanViewCourse(actor *Actor, course *models.Course) bool {
	switch actor.Role {
	case models.RoleAdmin:
		return true
	case models.RoleStaff:
		return actor.SchoolID != nil && *actor.SchoolID == course.SchoolID
	case models.RoleInstructor:
		return course.InstructorID != nil && *course.InstructorID == actor.ID
	case models.RoleStudent:
		return course.StudentID == actor.ID
	}
	return false
}

// CanBookForCourse: the owning student books their own rides; staff and
// admin may book on a student's behalf.
func (s *accessService) CanBookForCourse(actor *Actor, course *models.Course) bool {
	if actor.Role == models.RoleStudent {
		return course.StudentID == actor.ID
	}
	return s.CanManageCourse(actor, course)
}

// CanManageCourse covers staff-level lifecycle actions: purchases, archival,
// exam scheduling, change-request resolution.
func (s *accessService) CanManageCourse(actor *Actor, course *models.Course) bool {
	switch actor.Role {
	case models.RoleAdmin:
		return true
	case models.RoleStaff:
		return actor.SchoolID != nil && *actor.SchoolID == course.SchoolID
	}
	return false
}

// CanOperateSlot: the owning instructor runs and grades rides on their
// slots; staff and admin may step in.
func (s *accessService) CanOperateSlot(actor *Actor, slot *models.RideSlot) bool {
	switch actor.Role {
	case models.RoleAdmin, models.RoleStaff:
		return true
	case models.RoleInstructor:
		return slot.InstructorID == actor.ID
	}
	return false
}
