package services

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/driveschool-hub/scheduling-service/internal/models"
	"github.com/driveschool-hub/scheduling-service/internal/repositories"
	"github.com/driveschool-hub/scheduling-service/internal/validator"
)

type examService struct {
	repo       repositories.Repository
	access     AccessService
	curriculum CurriculumProvider
	notifier   NotificationEventService
	logger     *slog.Logger
	validator  *validator.Validator
}

func NewExamService(repo repositories.Repository, access AccessService, curriculum CurriculumProvider, notifier NotificationEventService, logger *slog.Logger, v *validator.Validator) ExamService {
	return &examService{
		repo:       repo,
		access:     access,
		curriculum: curriculum,
		notifier:   notifier,
		logger:     logger,
		validator:  v,
	}
}

// Schedule books an exam ride and creates the exam with its criteria
// checklist snapshotted from the curriculum, all in one transaction.
func (s *examService) Schedule(ctx context.Context, actor *Actor, req *ExamScheduleRequest) (*models.Exam, error) {
	if errs := s.validator.Validate(req); len(errs) > 0 {
		return nil, NewValidationError("invalid exam request", errs)
	}

	course, err := s.repo.Course().GetByID(ctx, req.CourseID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, NewNotFoundError("course")
		}
		return nil, err
	}

	if !s.access.CanManageCourse(actor, course) {
		return nil, NewAccessDeniedError("only staff schedule exams")
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

	unresolved, err := s.repo.Exam().HasUnresolvedByCourse(ctx, course.ID)
	if err != nil {
		return nil, err
	}
	if unresolved {
		return nil, NewInvalidStateError("course already has an unresolved exam")
	}

	curriculum, err := s.curriculum.CurriculumFor(course.Category)
	if err != nil {
		return nil, err
	}

	threshold := curriculum.PassThreshold
	if req.PassThreshold != nil {
		if *req.PassThreshold > len(curriculum.Criteria) {
			return nil, NewValidationError("pass threshold exceeds criteria count", nil)
		}
		threshold = *req.PassThreshold
	}

	var exam *models.Exam
	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		ride, txErr := bookRideTx(ctx, txRepo, course, slot, req.VehicleID)
		if txErr != nil {
			return txErr
		}

		exam = &models.Exam{
			Status:        models.ExamScheduled,
			CourseID:      course.ID,
			RideID:        ride.ID,
			PassThreshold: threshold,
		}
		for i, template := range curriculum.Criteria {
			exam.Criteria = append(exam.Criteria, models.ExamCriterion{
				Position: i + 1,
				Code:     template.Code,
				Name:     template.Name,
				Result:   models.CriterionUnset,
			})
		}
		if txErr := txRepo.Exam().Create(ctx, exam); txErr != nil {
			return txErr
		}

		ride.ExamID = &exam.ID
		return txRepo.Ride().Update(ctx, ride)
	})
	if err != nil {
		if errors.Is(err, repositories.ErrSlotOccupied) {
			return nil, NewConflictError("slot was booked by someone else", err)
		}
		return nil, err
	}

	s.logger.Info("Exam scheduled",
		"exam_id", exam.ID,
		"course_id", course.ID,
		"ride_id", exam.RideID,
		"criteria_count", len(exam.Criteria),
		"pass_threshold", exam.PassThreshold)

	return exam, nil
}

// GradeCriterion records one criterion result. Regrading is allowed while
// the exam is unresolved; grading the last unset criterion resolves the
// exam against its threshold.
func (s *examService) GradeCriterion(ctx context.Context, actor *Actor, examID, criterionID uint, req *CriterionGradeRequest) (*models.Exam, error) {
	if errs := s.validator.Validate(req); len(errs) > 0 {
		return nil, NewValidationError("invalid grade request", errs)
	}

	exam, err := s.repo.Exam().GetByID(ctx, examID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, NewNotFoundError("exam")
		}
		return nil, err
	}

	if err := s.checkGradeAccess(ctx, actor, exam); err != nil {
		return nil, err
	}

	if exam.Status.Terminal() {
		return nil, NewInvalidStateError("exam already " + string(exam.Status))
	}

	// The graded count that decides resolution must come from the state the
	// transaction sees, not the read above: the row lock serializes graders
	// of the same exam, so grading the last two criteria from two requests
	// still ends with exactly one resolution.
	now := time.Now().UTC()
	resolved := false
	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		var txErr error
		exam, txErr = txRepo.Exam().GetByIDWithCriteriaLocked(ctx, examID)
		if txErr != nil {
			return txErr
		}
		if exam.Status.Terminal() {
			return NewInvalidStateError("exam already " + string(exam.Status))
		}

		var criterion *models.ExamCriterion
		for i := range exam.Criteria {
			if exam.Criteria[i].ID == criterionID {
				criterion = &exam.Criteria[i]
				break
			}
		}
		if criterion == nil {
			return NewNotFoundError("criterion")
		}

		criterion.Result = req.Result
		criterion.GradedAt = &now
		criterion.GradedBy = &actor.ID
		if txErr := txRepo.Exam().UpdateCriterion(ctx, criterion); txErr != nil {
			return txErr
		}

		if exam.Status == models.ExamScheduled {
			exam.Status = models.ExamInProgress
		}

		if exam.GradedCount() == len(exam.Criteria) {
			resolved = true
			if txErr := s.resolveExamTx(ctx, txRepo, exam, now); txErr != nil {
				return txErr
			}
		}

		exam.UpdatedAt = now
		return txRepo.Exam().Transition(ctx, exam, models.ExamScheduled, models.ExamInProgress)
	})
	if err != nil {
		if errors.Is(err, repositories.ErrStaleState) {
			return nil, NewInvalidStateError("exam was resolved concurrently")
		}
		return nil, err
	}

	s.logger.Info("Criterion graded",
		"exam_id", exam.ID,
		"criterion_id", criterionID,
		"result", req.Result,
		"graded", exam.GradedCount(),
		"total", len(exam.Criteria))

	if resolved {
		course, err := s.repo.Course().GetByID(ctx, exam.CourseID)
		if err == nil {
			s.notifier.ExamResolved(ctx, exam, course)
			if course.Archived {
				s.notifier.CourseArchived(ctx, course, true)
			}
		}
	}

	return exam, nil
}

// resolveExamTx settles a fully graded exam and writes the result snapshot.
// A course that was only waiting on this exam with an empty balance
// archives in the same transaction.
func (s *examService) resolveExamTx(ctx context.Context, txRepo repositories.Repository, exam *models.Exam, now time.Time) error {
	passed := exam.PassedCount()
	if passed >= exam.PassThreshold {
		exam.Status = models.ExamPassed
	} else {
		exam.Status = models.ExamFailed
	}
	exam.ResolvedAt = &now

	type criterionSummary struct {
		Code   string                 `json:"code"`
		Result models.CriterionResult `json:"result"`
	}
	summary := struct {
		PassedCount   int                `json:"passed_count"`
		FailedCount   int                `json:"failed_count"`
		PassThreshold int                `json:"pass_threshold"`
		Outcome       models.ExamStatus  `json:"outcome"`
		Criteria      []criterionSummary `json:"criteria"`
	}{
		PassedCount:   passed,
		FailedCount:   len(exam.Criteria) - passed,
		PassThreshold: exam.PassThreshold,
		Outcome:       exam.Status,
	}
	for _, c := range exam.Criteria {
		summary.Criteria = append(summary.Criteria, criterionSummary{Code: c.Code, Result: c.Result})
	}

	data, err := json.Marshal(summary)
	if err != nil {
		return err
	}
	exam.ResultSummary = data

	course, err := txRepo.Course().GetByID(ctx, exam.CourseID)
	if err != nil {
		return err
	}
	if !course.Archived && course.RemainingHours() == 0 {
		course.Archived = true
		course.UpdatedAt = now
		if err := txRepo.Course().Update(ctx, course); err != nil {
			return err
		}
	}

	return nil
}

// Cancel aborts an unresolved exam, cancelling its ride and freeing the slot
// when the ride has not run yet.
func (s *examService) Cancel(ctx context.Context, actor *Actor, examID uint) (*models.Exam, error) {
	exam, err := s.repo.Exam().GetByID(ctx, examID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, NewNotFoundError("exam")
		}
		return nil, err
	}

	course, err := s.repo.Course().GetByID(ctx, exam.CourseID)
	if err != nil {
		return nil, err
	}
	if !s.access.CanManageCourse(actor, course) {
		return nil, NewAccessDeniedError("only staff cancel exams")
	}

	if exam.Status.Terminal() {
		return nil, NewInvalidStateError("exam already " + string(exam.Status))
	}

	now := time.Now().UTC()
	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		exam.Status = models.ExamCancelled
		exam.UpdatedAt = now
		// Guarded by the unresolved states: a resolution that committed
		// between the read above and here wins and fails this cancel.
		if err := txRepo.Exam().Transition(ctx, exam, models.ExamScheduled, models.ExamInProgress); err != nil {
			return err
		}

		ride, err := txRepo.Ride().GetByID(ctx, exam.RideID)
		if err != nil {
			return err
		}
		if ride.Status == models.RideScheduled {
			ride.Status = models.RideCancelled
			ride.CancelledAt = &now
			ride.UpdatedAt = now
			if err := txRepo.Ride().Transition(ctx, ride, models.RideScheduled); err != nil {
				return err
			}
			return txRepo.Slot().Unclaim(ctx, ride.SlotID)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, repositories.ErrStaleState) {
			return nil, NewInvalidStateError("exam was settled concurrently")
		}
		return nil, err
	}

	s.logger.Info("Exam cancelled", "exam_id", exam.ID, "actor_id", actor.ID)
	return exam, nil
}

func (s *examService) Get(ctx context.Context, actor *Actor, examID uint) (*models.Exam, error) {
	exam, err := s.repo.Exam().GetByIDWithCriteria(ctx, examID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, NewNotFoundError("exam")
		}
		return nil, err
	}

	course, err := s.repo.Course().GetByID(ctx, exam.CourseID)
	if err != nil {
		return nil, err
	}
	if !s.access.CanViewCourse(actor, course) {
		return nil, NewAccessDeniedError("not allowed to view this exam")
	}

	return exam, nil
}

func (s *examService) ListByCourse(ctx context.Context, actor *Actor, courseID uint) ([]*models.Exam, error) {
	course, err := s.repo.Course().GetByID(ctx, courseID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, NewNotFoundError("course")
		}
		return nil, err
	}
	if !s.access.CanViewCourse(actor, course) {
		return nil, NewAccessDeniedError("not allowed to view exams of this course")
	}

	return s.repo.Exam().ListByCourse(ctx, courseID)
}

// checkGradeAccess allows the instructor who runs the exam ride, or staff.
func (s *examService) checkGradeAccess(ctx context.Context, actor *Actor, exam *models.Exam) error {
	if actor.IsStaff() {
		return nil
	}

	ride, err := s.repo.Ride().GetByID(ctx, exam.RideID)
	if err != nil {
		return err
	}
	slot, err := s.repo.Slot().GetByID(ctx, ride.SlotID)
	if err != nil {
		return err
	}
	if !s.access.CanOperateSlot(actor, slot) {
		return NewAccessDeniedError("not allowed to grade this exam")
	}
	return nil
}
