package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/driveschool-hub/scheduling-service/internal/cache"
	"github.com/driveschool-hub/scheduling-service/internal/models"
	"github.com/driveschool-hub/scheduling-service/internal/repositories"
)

type CoursePostgreSQL struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager
}

func NewCoursePostgreSQL(db *gorm.DB, cacheManager *cache.CacheManager) repositories.CourseRepository {
	return &CoursePostgreSQL{
		db:           db,
		cacheManager: cacheManager,
	}
}

func (c *CoursePostgreSQL) Create(ctx context.Context, course *models.Course) error {
	if err := c.db.WithContext(ctx).Create(course).Error; err != nil {
		return fmt.Errorf("failed to create course: %w", err)
	}
	cache.SafeInvalidatePattern(ctx, c.cacheManager.Course, "list:*")
	return nil
}

// GetByID retrieves a course by ID with caching.
func (c *CoursePostgreSQL) GetByID(ctx context.Context, id uint) (*models.Course, error) {
	cacheKey := fmt.Sprintf("id:%d", id)
	var course models.Course

	err := c.cacheManager.Course.CacheOrExecute(ctx, cacheKey, &course, cache.CourseCacheConfig.TTL, func() (interface{}, error) {
		var dbCourse models.Course
		if err := c.db.WithContext(ctx).First(&dbCourse, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, repositories.ErrNotFound
			}
			return nil, fmt.Errorf("failed to get course: %w", err)
		}
		dbCourse.HoursRemaining = dbCourse.RemainingHours()
		return &dbCourse, nil
	})
	if err != nil {
		return nil, err
	}

	return &course, nil
}

func (c *CoursePostgreSQL) GetByPurchaseTransaction(ctx context.Context, transactionID string) (*models.Course, error) {
	var course models.Course
	err := c.db.WithContext(ctx).
		Where("purchase_transaction_id = ?", transactionID).
		First(&course).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get course by transaction: %w", err)
	}
	course.HoursRemaining = course.RemainingHours()
	return &course, nil
}

func (c *CoursePostgreSQL) Update(ctx context.Context, course *models.Course) error {
	result := c.db.WithContext(ctx).Model(&models.Course{}).Where("id = ?", course.ID).Updates(map[string]interface{}{
		"instructor_id":        course.InstructorID,
		"hours_purchased":      course.HoursPurchased,
		"hours_consumed":       course.HoursConsumed,
		"archived":             course.Archived,
		"needs_archive_review": course.NeedsArchiveReview,
		"updated_at":           course.UpdatedAt,
	})
	if result.Error != nil {
		return fmt.Errorf("failed to update course: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return repositories.ErrNotFound
	}

	cache.InvalidateCourseCache(ctx, c.cacheManager, course.ID)
	return nil
}

func (c *CoursePostgreSQL) List(ctx context.Context, filters repositories.CourseFilters) ([]*models.Course, int64, error) {
	query := c.db.WithContext(ctx).Model(&models.Course{})

	if filters.StudentID != nil {
		query = query.Where("student_id = ?", *filters.StudentID)
	}
	if filters.InstructorID != nil {
		query = query.Where("instructor_id = ?", *filters.InstructorID)
	}
	if filters.SchoolID != nil {
		query = query.Where("school_id = ?", *filters.SchoolID)
	}
	if filters.Category != nil {
		query = query.Where("category = ?", *filters.Category)
	}
	if filters.Archived != nil {
		query = query.Where("archived = ?", *filters.Archived)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count courses: %w", err)
	}

	query = applySort(query, filters.SortBy, filters.SortOrder, "created_at")
	query = applyPagination(query, filters.Limit, filters.Offset)

	var courses []*models.Course
	if err := query.Find(&courses).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list courses: %w", err)
	}

	for _, course := range courses {
		course.HoursRemaining = course.RemainingHours()
	}

	return courses, total, nil
}

// GetProgress computes ride and exam counters for one course, cached.
func (c *CoursePostgreSQL) GetProgress(ctx context.Context, id uint) (*repositories.CourseProgress, error) {
	cacheKey := fmt.Sprintf("progress:%d", id)
	var progress repositories.CourseProgress

	err := c.cacheManager.Stats.CacheOrExecute(ctx, cacheKey, &progress, cache.StatsCacheConfig.TTL, func() (interface{}, error) {
		var course models.Course
		if err := c.db.WithContext(ctx).First(&course, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, repositories.ErrNotFound
			}
			return nil, fmt.Errorf("failed to get course: %w", err)
		}

		p := repositories.CourseProgress{
			CourseID:       course.ID,
			HoursPurchased: course.HoursPurchased,
			HoursConsumed:  course.HoursConsumed,
			HoursRemaining: course.RemainingHours(),
		}

		type statusCount struct {
			Status models.RideStatus
			Count  int
		}
		var rideCounts []statusCount
		err := c.db.WithContext(ctx).Model(&models.Ride{}).
			Select("status, count(*) as count").
			Where("course_id = ?", id).
			Group("status").
			Scan(&rideCounts).Error
		if err != nil {
			return nil, fmt.Errorf("failed to count rides: %w", err)
		}
		for _, rc := range rideCounts {
			switch rc.Status {
			case models.RideCompleted:
				p.CompletedRides = rc.Count
			case models.RideScheduled, models.RideInProgress:
				p.ScheduledRides += rc.Count
			}
		}

		type examCount struct {
			Status models.ExamStatus
			Count  int
		}
		var examCounts []examCount
		err = c.db.WithContext(ctx).Model(&models.Exam{}).
			Select("status, count(*) as count").
			Where("course_id = ?", id).
			Group("status").
			Scan(&examCounts).Error
		if err != nil {
			return nil, fmt.Errorf("failed to count exams: %w", err)
		}
		for _, ec := range examCounts {
			switch ec.Status {
			case models.ExamPassed:
				p.ExamsPassed = ec.Count
			case models.ExamFailed:
				p.ExamsFailed = ec.Count
			}
		}

		return &p, nil
	})
	if err != nil {
		return nil, err
	}

	return &progress, nil
}
