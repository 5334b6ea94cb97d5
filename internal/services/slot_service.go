package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/driveschool-hub/scheduling-service/internal/models"
	"github.com/driveschool-hub/scheduling-service/internal/repositories"
	"github.com/driveschool-hub/scheduling-service/internal/validator"
)

type slotService struct {
	repo      repositories.Repository
	access    AccessService
	logger    *slog.Logger
	validator *validator.Validator
}

func NewSlotService(repo repositories.Repository, access AccessService, logger *slog.Logger, v *validator.Validator) SlotService {
	return &slotService{
		repo:      repo,
		access:    access,
		logger:    logger,
		validator: v,
	}
}

// Publish creates an availability window. Instructors publish only their own
// windows; overlapping windows for the same instructor are rejected.
func (s *slotService) Publish(ctx context.Context, actor *Actor, req *SlotCreateRequest) (*models.RideSlot, error) {
	if errs := s.validator.ValidateSlotCreate(req); len(errs) > 0 {
		return nil, NewValidationError("invalid slot request", errs)
	}

	if actor.Role == models.RoleInstructor && req.InstructorID != actor.ID {
		return nil, NewAccessDeniedError("instructors publish only their own slots")
	}
	if actor.Role == models.RoleStudent {
		return nil, NewAccessDeniedError("students cannot publish slots")
	}

	overlap, err := s.repo.Slot().HasOverlap(ctx, req.InstructorID, req.StartTime, req.EndTime)
	if err != nil {
		return nil, err
	}
	if overlap {
		return nil, NewConflictError("slot overlaps an existing window for this instructor", nil)
	}

	slot := &models.RideSlot{
		InstructorID: req.InstructorID,
		StartTime:    req.StartTime.UTC(),
		EndTime:      req.EndTime.UTC(),
	}

	// The overlap pre-check is advisory; the store's exclusion constraint
	// settles the race between two concurrent publishes.
	if err := s.repo.Slot().Create(ctx, slot); err != nil {
		if errors.Is(err, repositories.ErrSlotOverlap) {
			return nil, NewConflictError("slot overlaps an existing window for this instructor", err)
		}
		return nil, err
	}

	s.logger.Info("Slot published",
		"slot_id", slot.ID,
		"instructor_id", slot.InstructorID,
		"start_time", slot.StartTime)

	return slot, nil
}

// Delete withdraws a free slot. Occupied slots must have their ride
// cancelled first.
func (s *slotService) Delete(ctx context.Context, actor *Actor, slotID uint) error {
	slot, err := s.repo.Slot().GetByID(ctx, slotID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return NewNotFoundError("slot")
		}
		return err
	}

	if !s.access.CanOperateSlot(actor, slot) {
		return NewAccessDeniedError("not allowed to delete this slot")
	}

	if err := s.repo.Slot().Delete(ctx, slotID); err != nil {
		if errors.Is(err, repositories.ErrSlotOccupied) {
			return NewInvalidStateError("slot is occupied by a ride")
		}
		if repositories.IsNotFoundError(err) {
			return NewNotFoundError("slot")
		}
		return err
	}

	s.logger.Info("Slot deleted", "slot_id", slotID, "actor_id", actor.ID)
	return nil
}

func (s *slotService) Get(ctx context.Context, actor *Actor, slotID uint) (*models.RideSlot, error) {
	slot, err := s.repo.Slot().GetByID(ctx, slotID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, NewNotFoundError("slot")
		}
		return nil, err
	}
	return slot, nil
}

// List returns slots matching the filters. Free slots are browsable by any
// authenticated role; instructors default to their own calendar.
func (s *slotService) List(ctx context.Context, actor *Actor, filters repositories.SlotFilters) ([]*models.RideSlot, error) {
	if actor.Role == models.RoleInstructor && filters.InstructorID == nil {
		filters.InstructorID = &actor.ID
	}
	return s.repo.Slot().List(ctx, filters)
}
