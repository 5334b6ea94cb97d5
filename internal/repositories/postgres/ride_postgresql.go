package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/driveschool-hub/scheduling-service/internal/models"
	"github.com/driveschool-hub/scheduling-service/internal/repositories"
)

type RidePostgreSQL struct {
	db *gorm.DB
}

func NewRidePostgreSQL(db *gorm.DB) repositories.RideRepository {
	return &RidePostgreSQL{db: db}
}

func (r *RidePostgreSQL) Create(ctx context.Context, ride *models.Ride) error {
	if err := r.db.WithContext(ctx).Create(ride).Error; err != nil {
		return fmt.Errorf("failed to create ride: %w", err)
	}
	return nil
}

func (r *RidePostgreSQL) GetByID(ctx context.Context, id uint) (*models.Ride, error) {
	var ride models.Ride
	if err := r.db.WithContext(ctx).First(&ride, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get ride: %w", err)
	}
	return &ride, nil
}

func (r *RidePostgreSQL) Update(ctx context.Context, ride *models.Ride) error {
	result := r.db.WithContext(ctx).Model(&models.Ride{}).Where("id = ?", ride.ID).Updates(map[string]interface{}{
		"status":        ride.Status,
		"hours_counted": ride.HoursCounted,
		"exam_id":       ride.ExamID,
		"started_at":    ride.StartedAt,
		"completed_at":  ride.CompletedAt,
		"cancelled_at":  ride.CancelledAt,
		"updated_at":    ride.UpdatedAt,
	})
	if result.Error != nil {
		return fmt.Errorf("failed to update ride: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return repositories.ErrNotFound
	}
	return nil
}

// Transition is the state-machine counterpart of a slot claim: the WHERE
// clause admits only the expected source states, so of two concurrent
// transitions on the same ride exactly one touches the row.
func (r *RidePostgreSQL) Transition(ctx context.Context, ride *models.Ride, from ...models.RideStatus) error {
	result := r.db.WithContext(ctx).Model(&models.Ride{}).
		Where("id = ? AND status IN ?", ride.ID, from).
		Updates(map[string]interface{}{
			"status":        ride.Status,
			"hours_counted": ride.HoursCounted,
			"started_at":    ride.StartedAt,
			"completed_at":  ride.CompletedAt,
			"cancelled_at":  ride.CancelledAt,
			"updated_at":    ride.UpdatedAt,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to transition ride: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return repositories.ErrStaleState
	}
	return nil
}

func (r *RidePostgreSQL) List(ctx context.Context, filters repositories.RideFilters) ([]*models.Ride, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Ride{})

	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	if filters.CourseID != nil {
		query = query.Where("course_id = ?", *filters.CourseID)
	}
	if filters.DateFrom != nil {
		query = query.Where("start_time >= ?", *filters.DateFrom)
	}
	if filters.DateTo != nil {
		query = query.Where("start_time < ?", *filters.DateTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count rides: %w", err)
	}

	query = query.Order("start_time ASC")
	query = applyPagination(query, filters.Limit, filters.Offset)

	var rides []*models.Ride
	if err := query.Find(&rides).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list rides: %w", err)
	}

	return rides, total, nil
}

// ListExpiredScheduled feeds the reconciliation sweep: rides still scheduled
// whose window ended before the cutoff never started and hold a slot hostage.
func (r *RidePostgreSQL) ListExpiredScheduled(ctx context.Context, before time.Time) ([]*models.Ride, error) {
	var rides []*models.Ride
	err := r.db.WithContext(ctx).
		Where("status = ? AND end_time < ?", models.RideScheduled, before).
		Find(&rides).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list expired scheduled rides: %w", err)
	}
	return rides, nil
}
