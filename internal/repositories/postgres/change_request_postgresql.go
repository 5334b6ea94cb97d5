package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/driveschool-hub/scheduling-service/internal/models"
	"github.com/driveschool-hub/scheduling-service/internal/repositories"
)

type ChangeRequestPostgreSQL struct {
	db *gorm.DB
}

func NewChangeRequestPostgreSQL(db *gorm.DB) repositories.ChangeRequestRepository {
	return &ChangeRequestPostgreSQL{db: db}
}

// Create files a request. The partial unique index on course_id for pending
// rows turns a concurrent duplicate filing into ErrDuplicatePending.
func (c *ChangeRequestPostgreSQL) Create(ctx context.Context, request *models.InstructorChangeRequest) error {
	if err := c.db.WithContext(ctx).Create(request).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "duplicate key") {
			return repositories.ErrDuplicatePending
		}
		return fmt.Errorf("failed to create instructor change request: %w", err)
	}
	return nil
}

func (c *ChangeRequestPostgreSQL) GetByID(ctx context.Context, id uint) (*models.InstructorChangeRequest, error) {
	var request models.InstructorChangeRequest
	if err := c.db.WithContext(ctx).First(&request, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get instructor change request: %w", err)
	}
	return &request, nil
}

// Update commits a resolution. The pending guard makes it a compare-and-set:
// a request resolved concurrently yields ErrStaleState instead of a second
// overwrite.
func (c *ChangeRequestPostgreSQL) Update(ctx context.Context, request *models.InstructorChangeRequest) error {
	result := c.db.WithContext(ctx).Model(&models.InstructorChangeRequest{}).
		Where("id = ? AND status = ?", request.ID, models.ChangeRequestPending).
		Updates(map[string]interface{}{
			"status":             request.Status,
			"resolved_by":        request.ResolvedBy,
			"last_status_change": request.LastStatusChange,
			"updated_at":         request.UpdatedAt,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update instructor change request: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return repositories.ErrStaleState
	}
	return nil
}

// GetPendingByCourse returns the open request for a course, if any.
// At most one pending request per course is allowed.
func (c *ChangeRequestPostgreSQL) GetPendingByCourse(ctx context.Context, courseID uint) (*models.InstructorChangeRequest, error) {
	var request models.InstructorChangeRequest
	err := c.db.WithContext(ctx).
		Where("course_id = ? AND status = ?", courseID, models.ChangeRequestPending).
		First(&request).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get pending change request: %w", err)
	}
	return &request, nil
}

func (c *ChangeRequestPostgreSQL) List(ctx context.Context, filters repositories.ChangeRequestFilters) ([]*models.InstructorChangeRequest, int64, error) {
	query := c.db.WithContext(ctx).Model(&models.InstructorChangeRequest{})

	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	if filters.CourseID != nil {
		query = query.Where("course_id = ?", *filters.CourseID)
	}
	if filters.RequestorID != nil {
		query = query.Where("requestor_id = ?", *filters.RequestorID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count change requests: %w", err)
	}

	query = applySort(query, filters.SortBy, filters.SortOrder, "requested_at")
	query = applyPagination(query, filters.Limit, filters.Offset)

	var requests []*models.InstructorChangeRequest
	if err := query.Find(&requests).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list change requests: %w", err)
	}

	return requests, total, nil
}
