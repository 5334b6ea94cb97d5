package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/driveschool-hub/scheduling-service/internal/cache"
	"github.com/driveschool-hub/scheduling-service/internal/models"
	"github.com/driveschool-hub/scheduling-service/internal/repositories"
)

// exclusionViolation is the SQLSTATE raised by the no-overlap constraint on
// ride_slots.
const exclusionViolation = "23P01"

type SlotPostgreSQL struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager
}

func NewSlotPostgreSQL(db *gorm.DB, cacheManager *cache.CacheManager) repositories.SlotRepository {
	return &SlotPostgreSQL{
		db:           db,
		cacheManager: cacheManager,
	}
}

// Create inserts an availability window. The exclusion constraint on
// (instructor_id, window) rejects a concurrent insert the pre-check missed.
func (s *SlotPostgreSQL) Create(ctx context.Context, slot *models.RideSlot) error {
	if err := s.db.WithContext(ctx).Create(slot).Error; err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == exclusionViolation {
			return repositories.ErrSlotOverlap
		}
		return fmt.Errorf("failed to create slot: %w", err)
	}
	cache.InvalidateSlotCache(ctx, s.cacheManager, slot.InstructorID)
	return nil
}

func (s *SlotPostgreSQL) GetByID(ctx context.Context, id uint) (*models.RideSlot, error) {
	var slot models.RideSlot
	if err := s.db.WithContext(ctx).First(&slot, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get slot: %w", err)
	}
	return &slot, nil
}

func (s *SlotPostgreSQL) Delete(ctx context.Context, id uint) error {
	var slot models.RideSlot
	if err := s.db.WithContext(ctx).First(&slot, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return repositories.ErrNotFound
		}
		return fmt.Errorf("failed to get slot before delete: %w", err)
	}

	// Deleting only while free; the condition guards against a claim that
	// landed between the read above and this statement.
	result := s.db.WithContext(ctx).
		Where("id = ? AND ride_id IS NULL", id).
		Delete(&models.RideSlot{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete slot: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return repositories.ErrSlotOccupied
	}

	cache.InvalidateSlotCache(ctx, s.cacheManager, slot.InstructorID)
	return nil
}

func (s *SlotPostgreSQL) List(ctx context.Context, filters repositories.SlotFilters) ([]*models.RideSlot, error) {
	query := s.db.WithContext(ctx).Model(&models.RideSlot{})

	if filters.InstructorID != nil {
		query = query.Where("instructor_id = ?", *filters.InstructorID)
	}
	if filters.OnlyFree {
		query = query.Where("ride_id IS NULL")
	}
	if filters.From != nil {
		query = query.Where("start_time >= ?", *filters.From)
	}
	if filters.To != nil {
		query = query.Where("start_time < ?", *filters.To)
	}

	query = query.Order("start_time ASC")
	query = applyPagination(query, filters.Limit, filters.Offset)

	var slots []*models.RideSlot
	if err := query.Find(&slots).Error; err != nil {
		return nil, fmt.Errorf("failed to list slots: %w", err)
	}

	return slots, nil
}

func (s *SlotPostgreSQL) HasOverlap(ctx context.Context, instructorID string, start, end time.Time) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.RideSlot{}).
		Where("instructor_id = ? AND start_time < ? AND end_time > ?", instructorID, end, start).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check slot overlap: %w", err)
	}
	return count > 0, nil
}

// Claim binds a free slot to a ride. The WHERE clause makes it a single
// compare-and-set: of two concurrent claims on the same slot, exactly one
// update touches a row and the other observes RowsAffected == 0.
func (s *SlotPostgreSQL) Claim(ctx context.Context, slotID, rideID uint) error {
	result := s.db.WithContext(ctx).Model(&models.RideSlot{}).
		Where("id = ? AND ride_id IS NULL", slotID).
		Update("ride_id", rideID)
	if result.Error != nil {
		return fmt.Errorf("failed to claim slot: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return repositories.ErrSlotOccupied
	}

	cache.SafeInvalidatePattern(ctx, s.cacheManager.Slot, "instructor:*")
	return nil
}

// Unclaim reverts a slot to free when its occupying ride is cancelled.
func (s *SlotPostgreSQL) Unclaim(ctx context.Context, slotID uint) error {
	result := s.db.WithContext(ctx).Model(&models.RideSlot{}).
		Where("id = ?", slotID).
		Update("ride_id", nil)
	if result.Error != nil {
		return fmt.Errorf("failed to unclaim slot: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return repositories.ErrNotFound
	}

	cache.SafeInvalidatePattern(ctx, s.cacheManager.Slot, "instructor:*")
	return nil
}
