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

type rideService struct {
	repo      repositories.Repository
	access    AccessService
	notifier  NotificationEventService
	logger    *slog.Logger
	validator *validator.Validator
}

func NewRideService(repo repositories.Repository, access AccessService, notifier NotificationEventService, logger *slog.Logger, v *validator.Validator) RideService {
	return &rideService{
		repo:      repo,
		access:    access,
		notifier:  notifier,
		logger:    logger,
		validator: v,
	}
}

// bookRideTx creates a ride and claims its slot inside the caller's
// transaction. The claim is the commit point: if another booking holds the
// slot, ErrSlotOccupied rolls back the ride row with it.
func bookRideTx(ctx context.Context, repo repositories.Repository, course *models.Course, slot *models.RideSlot, vehicleID string) (*models.Ride, error) {
	ride := &models.Ride{
		Status:    models.RideScheduled,
		CourseID:  course.ID,
		SlotID:    slot.ID,
		VehicleID: vehicleID,
		StartTime: slot.StartTime,
		EndTime:   slot.EndTime,
	}

	if err := repo.Ride().Create(ctx, ride); err != nil {
		return nil, err
	}

	if err := repo.Slot().Claim(ctx, slot.ID, ride.ID); err != nil {
		return nil, err
	}

	return ride, nil
}

// checkBookable verifies course and slot preconditions shared by ride and
// exam booking.
func checkBookable(course *models.Course, slot *models.RideSlot, now time.Time) error {
	if course.Archived {
		return NewInvalidStateError("course is archived")
	}
	if !slot.StartTime.After(now) {
		return NewInvalidStateError("slot is in the past")
	}
	remaining := course.RemainingHours()
	if remaining <= 0 {
		return NewExhaustedError("course has no remaining hours")
	}
	if remaining < slot.DurationHours() {
		return NewExhaustedError("remaining hours do not cover the slot duration")
	}
	return nil
}

// Book claims a free slot for a practice ride. Of two concurrent bookings on
// the same slot exactly one succeeds; the loser gets a conflict and no
// partial state.
func (s *rideService) Book(ctx context.Context, actor *Actor, req *RideBookRequest) (*models.Ride, error) {
	if errs := s.validator.Validate(req); len(errs) > 0 {
		return nil, NewValidationError("invalid booking request", errs)
	}

	course, err := s.repo.Course().GetByID(ctx, req.CourseID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, NewNotFoundError("course")
		}
		return nil, err
	}

	if !s.access.CanBookForCourse(actor, course) {
		return nil, NewAccessDeniedError("not allowed to book for this course")
	}

	slot, err := s.repo.Slot().GetByID(ctx, req.SlotID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, NewNotFoundError("slot")
		}
		return nil, err
	}

	if err := checkBookable(course, slot, time.Now()); err != nil {
		return nil, err
	}

	var ride *models.Ride
	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		var txErr error
		ride, txErr = bookRideTx(ctx, txRepo, course, slot, req.VehicleID)
		return txErr
	})
	if err != nil {
		if errors.Is(err, repositories.ErrSlotOccupied) {
			return nil, NewConflictError("slot was booked by someone else", err)
		}
		return nil, err
	}

	s.logger.Info("Ride booked",
		"ride_id", ride.ID,
		"course_id", course.ID,
		"slot_id", slot.ID,
		"actor_id", actor.ID)

	return ride, nil
}

// Start moves a scheduled ride to in-progress. Only the slot's instructor or
// staff may start it.
func (s *rideService) Start(ctx context.Context, actor *Actor, rideID uint) (*models.Ride, error) {
	ride, slot, err := s.getRideWithSlot(ctx, rideID)
	if err != nil {
		return nil, err
	}

	if !s.access.CanOperateSlot(actor, slot) {
		return nil, NewAccessDeniedError("not allowed to start this ride")
	}

	if ride.Status != models.RideScheduled {
		return nil, NewInvalidStateError("ride is not scheduled")
	}

	now := time.Now().UTC()
	ride.Status = models.RideInProgress
	ride.StartedAt = &now
	ride.UpdatedAt = now

	if err := s.repo.Ride().Transition(ctx, ride, models.RideScheduled); err != nil {
		if errors.Is(err, repositories.ErrStaleState) {
			return nil, NewInvalidStateError("ride is not scheduled")
		}
		return nil, err
	}

	s.logger.Info("Ride started", "ride_id", ride.ID, "actor_id", actor.ID)
	return ride, nil
}

// Complete finishes a ride and consumes course hours. A scheduled ride may
// complete directly when nobody pressed start.
func (s *rideService) Complete(ctx context.Context, actor *Actor, rideID uint, req *RideCompleteRequest) (*models.Ride, error) {
	if req == nil {
		req = &RideCompleteRequest{}
	}
	if errs := s.validator.Validate(req); len(errs) > 0 {
		return nil, NewValidationError("invalid completion request", errs)
	}

	ride, slot, err := s.getRideWithSlot(ctx, rideID)
	if err != nil {
		return nil, err
	}

	if !s.access.CanOperateSlot(actor, slot) {
		return nil, NewAccessDeniedError("not allowed to complete this ride")
	}

	if ride.Status.Terminal() {
		return nil, NewInvalidStateError("ride already " + string(ride.Status))
	}

	hours := slot.DurationHours()
	if req.HoursOverride != nil {
		hours = *req.HoursOverride
	}

	now := time.Now().UTC()
	var course *models.Course
	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		var txErr error
		course, txErr = txRepo.Course().GetByID(ctx, ride.CourseID)
		if txErr != nil {
			return txErr
		}

		ride.Status = models.RideCompleted
		ride.HoursCounted = hours
		ride.CompletedAt = &now
		ride.UpdatedAt = now
		// The conditional write is what keeps two concurrent completions
		// from both consuming hours: the loser touches zero rows and the
		// whole transaction rolls back.
		if txErr := txRepo.Ride().Transition(ctx, ride, models.RideScheduled, models.RideInProgress); txErr != nil {
			return txErr
		}

		return consumeHoursTx(ctx, txRepo, course, hours)
	})
	if err != nil {
		if errors.Is(err, repositories.ErrStaleState) {
			return nil, NewInvalidStateError("ride was completed or cancelled concurrently")
		}
		return nil, err
	}

	s.logger.Info("Ride completed",
		"ride_id", ride.ID,
		"course_id", course.ID,
		"hours_counted", hours,
		"hours_remaining", course.RemainingHours())

	s.notifier.RideCompleted(ctx, ride, course)
	if course.Archived {
		s.notifier.CourseArchived(ctx, course, true)
	}

	return ride, nil
}

// Cancel aborts a scheduled ride and frees its slot for rebooking. Started
// rides cannot be cancelled, and exam rides are cancelled via their exam.
func (s *rideService) Cancel(ctx context.Context, actor *Actor, rideID uint) (*models.Ride, error) {
	ride, slot, err := s.getRideWithSlot(ctx, rideID)
	if err != nil {
		return nil, err
	}

	course, err := s.repo.Course().GetByID(ctx, ride.CourseID)
	if err != nil {
		return nil, err
	}

	allowed := s.access.CanBookForCourse(actor, course) || s.access.CanOperateSlot(actor, slot)
	if !allowed {
		return nil, NewAccessDeniedError("not allowed to cancel this ride")
	}

	if ride.Status != models.RideScheduled {
		return nil, NewInvalidStateError("only scheduled rides can be cancelled")
	}
	if ride.ExamID != nil {
		return nil, NewInvalidStateError("exam rides are cancelled through the exam")
	}

	if err := s.cancelRideTx(ctx, ride); err != nil {
		if errors.Is(err, repositories.ErrStaleState) {
			return nil, NewInvalidStateError("only scheduled rides can be cancelled")
		}
		return nil, err
	}

	s.logger.Info("Ride cancelled", "ride_id", ride.ID, "slot_id", ride.SlotID, "actor_id", actor.ID)
	return ride, nil
}

func (s *rideService) cancelRideTx(ctx context.Context, ride *models.Ride) error {
	now := time.Now().UTC()
	return s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		ride.Status = models.RideCancelled
		ride.CancelledAt = &now
		ride.UpdatedAt = now
		if err := txRepo.Ride().Transition(ctx, ride, models.RideScheduled); err != nil {
			return err
		}
		return txRepo.Slot().Unclaim(ctx, ride.SlotID)
	})
}

func (s *rideService) Get(ctx context.Context, actor *Actor, rideID uint) (*models.Ride, error) {
	ride, err := s.repo.Ride().GetByID(ctx, rideID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, NewNotFoundError("ride")
		}
		return nil, err
	}

	course, err := s.repo.Course().GetByID(ctx, ride.CourseID)
	if err != nil {
		return nil, err
	}
	if !s.access.CanViewCourse(actor, course) {
		return nil, NewAccessDeniedError("not allowed to view this ride")
	}

	return ride, nil
}

func (s *rideService) List(ctx context.Context, actor *Actor, filters repositories.RideFilters) (*RideListResponse, error) {
	if filters.CourseID != nil {
		course, err := s.repo.Course().GetByID(ctx, *filters.CourseID)
		if err != nil {
			if repositories.IsNotFoundError(err) {
				return nil, NewNotFoundError("course")
			}
			return nil, err
		}
		if !s.access.CanViewCourse(actor, course) {
			return nil, NewAccessDeniedError("not allowed to view rides of this course")
		}
	} else if !actor.IsStaff() {
		return nil, NewAccessDeniedError("course_id filter required for this role")
	}

	rides, total, err := s.repo.Ride().List(ctx, filters)
	if err != nil {
		return nil, err
	}

	return &RideListResponse{Rides: rides, Total: total}, nil
}

// ReclaimExpired cancels scheduled rides whose window ended before the
// cutoff and frees their slots. Exam rides fail their exam's schedule too.
func (s *rideService) ReclaimExpired(ctx context.Context, before time.Time) (int, error) {
	rides, err := s.repo.Ride().ListExpiredScheduled(ctx, before)
	if err != nil {
		return 0, err
	}

	reclaimed := 0
	for _, ride := range rides {
		ride := ride
		now := time.Now().UTC()
		err := s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
			ride.Status = models.RideCancelled
			ride.CancelledAt = &now
			ride.UpdatedAt = now
			if err := txRepo.Ride().Transition(ctx, ride, models.RideScheduled); err != nil {
				return err
			}
			if err := txRepo.Slot().Unclaim(ctx, ride.SlotID); err != nil {
				return err
			}
			if ride.ExamID != nil {
				exam, err := txRepo.Exam().GetByID(ctx, *ride.ExamID)
				if err != nil {
					return err
				}
				if !exam.Status.Terminal() {
					exam.Status = models.ExamCancelled
					exam.UpdatedAt = now
					if err := txRepo.Exam().Transition(ctx, exam, models.ExamScheduled, models.ExamInProgress); err != nil {
						return err
					}
				}
			}
			return nil
		})
		if errors.Is(err, repositories.ErrStaleState) {
			// Someone started or settled the ride since the listing; leave it.
			continue
		}
		if err != nil {
			s.logger.Error("Failed to reclaim expired ride", "ride_id", ride.ID, "error", err)
			continue
		}
		reclaimed++
	}

	if reclaimed > 0 {
		s.logger.Info("Reclaimed expired rides", "count", reclaimed, "cutoff", before)
	}

	return reclaimed, nil
}

func (s *rideService) getRideWithSlot(ctx context.Context, rideID uint) (*models.Ride, *models.RideSlot, error) {
	ride, err := s.repo.Ride().GetByID(ctx, rideID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, nil, NewNotFoundError("ride")
		}
		return nil, nil, err
	}

	slot, err := s.repo.Slot().GetByID(ctx, ride.SlotID)
	if err != nil {
		return nil, nil, err
	}

	return ride, slot, nil
}
