package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/driveschool-hub/scheduling-service/internal/models"
	"github.com/driveschool-hub/scheduling-service/internal/repositories"
)

type ExamPostgreSQL struct {
	db *gorm.DB
}

func NewExamPostgreSQL(db *gorm.DB) repositories.ExamRepository {
	return &ExamPostgreSQL{db: db}
}

// Create persists the exam together with its criteria checklist.
func (e *ExamPostgreSQL) Create(ctx context.Context, exam *models.Exam) error {
	if err := e.db.WithContext(ctx).Create(exam).Error; err != nil {
		return fmt.Errorf("failed to create exam: %w", err)
	}
	return nil
}

func (e *ExamPostgreSQL) GetByID(ctx context.Context, id uint) (*models.Exam, error) {
	var exam models.Exam
	if err := e.db.WithContext(ctx).First(&exam, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get exam: %w", err)
	}
	return &exam, nil
}

func (e *ExamPostgreSQL) GetByIDWithCriteria(ctx context.Context, id uint) (*models.Exam, error) {
	var exam models.Exam
	err := e.db.WithContext(ctx).
		Preload("Criteria", func(db *gorm.DB) *gorm.DB {
			return db.Order("exam_criteria.position ASC")
		}).
		First(&exam, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get exam with criteria: %w", err)
	}
	return &exam, nil
}

// GetByIDWithCriteriaLocked takes FOR UPDATE on the exam row, serializing
// concurrent graders of the same exam inside their transactions.
func (e *ExamPostgreSQL) GetByIDWithCriteriaLocked(ctx context.Context, id uint) (*models.Exam, error) {
	var exam models.Exam
	err := e.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&exam, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("failed to lock exam: %w", err)
	}

	err = e.db.WithContext(ctx).
		Where("exam_id = ?", id).
		Order("position ASC").
		Find(&exam.Criteria).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load exam criteria: %w", err)
	}
	return &exam, nil
}

func (e *ExamPostgreSQL) GetByRide(ctx context.Context, rideID uint) (*models.Exam, error) {
	var exam models.Exam
	err := e.db.WithContext(ctx).Where("ride_id = ?", rideID).First(&exam).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get exam by ride: %w", err)
	}
	return &exam, nil
}

// Transition guards the status write with the expected source states, so a
// cancellation cannot overwrite a resolution that committed first.
func (e *ExamPostgreSQL) Transition(ctx context.Context, exam *models.Exam, from ...models.ExamStatus) error {
	result := e.db.WithContext(ctx).Model(&models.Exam{}).
		Where("id = ? AND status IN ?", exam.ID, from).
		Updates(map[string]interface{}{
			"status":         exam.Status,
			"resolved_at":    exam.ResolvedAt,
			"result_summary": exam.ResultSummary,
			"updated_at":     exam.UpdatedAt,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to transition exam: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return repositories.ErrStaleState
	}
	return nil
}

func (e *ExamPostgreSQL) UpdateCriterion(ctx context.Context, criterion *models.ExamCriterion) error {
	result := e.db.WithContext(ctx).Model(&models.ExamCriterion{}).Where("id = ?", criterion.ID).Updates(map[string]interface{}{
		"result":     criterion.Result,
		"graded_at":  criterion.GradedAt,
		"graded_by":  criterion.GradedBy,
		"updated_at": criterion.UpdatedAt,
	})
	if result.Error != nil {
		return fmt.Errorf("failed to update exam criterion: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return repositories.ErrNotFound
	}
	return nil
}

func (e *ExamPostgreSQL) ListByCourse(ctx context.Context, courseID uint) ([]*models.Exam, error) {
	var exams []*models.Exam
	err := e.db.WithContext(ctx).
		Preload("Criteria").
		Where("course_id = ?", courseID).
		Order("created_at ASC").
		Find(&exams).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list exams by course: %w", err)
	}
	return exams, nil
}

func (e *ExamPostgreSQL) HasUnresolvedByCourse(ctx context.Context, courseID uint) (bool, error) {
	var count int64
	err := e.db.WithContext(ctx).Model(&models.Exam{}).
		Where("course_id = ? AND status IN ?", courseID,
			[]models.ExamStatus{models.ExamScheduled, models.ExamInProgress}).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check unresolved exams: %w", err)
	}
	return count > 0, nil
}
