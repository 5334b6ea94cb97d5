package services

import (
	"context"
	"log/slog"

	"github.com/driveschool-hub/scheduling-service/internal/events"
	"github.com/driveschool-hub/scheduling-service/internal/models"
	"github.com/driveschool-hub/scheduling-service/internal/repositories"
	"github.com/driveschool-hub/scheduling-service/internal/validator"
)

// Topics per aggregate so consumers subscribe to what they care about.
const (
	RideEventsTopic   = "scheduling.rides"
	ExamEventsTopic   = "scheduling.exams"
	CourseEventsTopic = "scheduling.courses"
)

// RideCompletedData is the payload for ride.completed events.
type RideCompletedData struct {
	RideID         uint    `json:"ride_id"`
	CourseID       uint    `json:"course_id"`
	StudentID      string  `json:"student_id"`
	HoursCounted   float64 `json:"hours_counted"`
	HoursRemaining float64 `json:"hours_remaining"`
}

// ExamResolvedData is the payload for exam.resolved events.
type ExamResolvedData struct {
	ExamID    uint              `json:"exam_id"`
	CourseID  uint              `json:"course_id"`
	StudentID string            `json:"student_id"`
	Outcome   models.ExamStatus `json:"outcome"`
}

// CourseArchivedData is the payload for course.archived events.
type CourseArchivedData struct {
	CourseID      uint    `json:"course_id"`
	StudentID     string  `json:"student_id"`
	Automatic     bool    `json:"automatic"`
	NeedsReview   bool    `json:"needs_review"`
	HoursConsumed float64 `json:"hours_consumed"`
}

// InstructorChangeResolvedData is the payload for instructor_change.resolved events.
type InstructorChangeResolvedData struct {
	RequestID    uint                       `json:"request_id"`
	CourseID     uint                       `json:"course_id"`
	Status       models.ChangeRequestStatus `json:"status"`
	InstructorID *string                    `json:"instructor_id"`
}

type notificationEventService struct {
	repo           repositories.Repository
	eventPublisher events.EventPublisher
	logger         *slog.Logger
	validator      *validator.Validator
}

func NewNotificationEventService(repo repositories.Repository, publisher events.EventPublisher, logger *slog.Logger, v *validator.Validator) NotificationEventService {
	return &notificationEventService{
		repo:           repo,
		eventPublisher: publisher,
		logger:         logger,
		validator:      v,
	}
}

// publish is fire-and-forget: downstream notification failures never fail
// the committed operation that triggered them.
func (s *notificationEventService) publish(ctx context.Context, topic string, event events.Event) {
	if err := s.eventPublisher.Publish(ctx, topic, event); err != nil {
		s.logger.Error("Failed to publish event",
			"event_type", event.Type,
			"topic", topic,
			"error", err)
	}
}

func (s *notificationEventService) RideCompleted(ctx context.Context, ride *models.Ride, course *models.Course) {
	s.publish(ctx, RideEventsTopic, events.NewEvent(events.RideCompletedEvent, RideCompletedData{
		RideID:         ride.ID,
		CourseID:       course.ID,
		StudentID:      course.StudentID,
		HoursCounted:   ride.HoursCounted,
		HoursRemaining: course.RemainingHours(),
	}))
}

func (s *notificationEventService) ExamResolved(ctx context.Context, exam *models.Exam, course *models.Course) {
	s.publish(ctx, ExamEventsTopic, events.NewEvent(events.ExamResolvedEvent, ExamResolvedData{
		ExamID:    exam.ID,
		CourseID:  course.ID,
		StudentID: course.StudentID,
		Outcome:   exam.Status,
	}))
}

func (s *notificationEventService) CourseArchived(ctx context.Context, course *models.Course, automatic bool) {
	s.publish(ctx, CourseEventsTopic, events.NewEvent(events.CourseArchivedEvent, CourseArchivedData{
		CourseID:      course.ID,
		StudentID:     course.StudentID,
		Automatic:     automatic,
		NeedsReview:   course.NeedsArchiveReview,
		HoursConsumed: course.HoursConsumed,
	}))
}

func (s *notificationEventService) InstructorChangeResolved(ctx context.Context, request *models.InstructorChangeRequest, course *models.Course) {
	s.publish(ctx, CourseEventsTopic, events.NewEvent(events.InstructorChangeResolvedEvent, InstructorChangeResolvedData{
		RequestID:    request.ID,
		CourseID:     course.ID,
		Status:       request.Status,
		InstructorID: course.InstructorID,
	}))
}
