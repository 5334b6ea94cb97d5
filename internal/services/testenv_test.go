package services

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/driveschool-hub/scheduling-service/internal/events"
	"github.com/driveschool-hub/scheduling-service/internal/models"
	"github.com/driveschool-hub/scheduling-service/internal/validator"
)

// testEnv wires the service layer over the in-memory repository so scenarios
// run without a database or broker.
type testEnv struct {
	repo      *fakeRepository
	publisher *events.MockEventPublisher

	access  AccessService
	slots   SlotService
	rides   RideService
	exams   ExamService
	courses CourseService
	changes ChangeRequestService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	v := validator.New()
	repo := newFakeRepository()
	publisher := events.NewMockEventPublisher(logger)

	access := NewAccessService(repo, logger)
	notifier := NewNotificationEventService(repo, publisher, logger, v)

	return &testEnv{
		repo:      repo,
		publisher: publisher,
		access:    access,
		slots:     NewSlotService(repo, access, logger, v),
		rides:     NewRideService(repo, access, notifier, logger, v),
		exams:     NewExamService(repo, access, NewStaticCurriculumProvider(), notifier, logger, v),
		courses:   NewCourseService(repo, access, notifier, logger, v),
		changes:   NewChangeRequestService(repo, access, notifier, logger, v),
	}
}

func studentActor(id string) *Actor {
	return &Actor{ID: id, Role: models.RoleStudent}
}

func instructorActor(id string) *Actor {
	return &Actor{ID: id, Role: models.RoleInstructor}
}

func staffActor(id, schoolID string) *Actor {
	return &Actor{ID: id, Role: models.RoleStaff, SchoolID: &schoolID}
}

func adminActor(id string) *Actor {
	return &Actor{ID: id, Role: models.RoleAdmin}
}

func (e *testEnv) seedCourseWithHours(studentID, schoolID string, category models.CourseCategory, hours float64) *models.Course {
	return e.repo.seedCourse(&models.Course{
		Category:              category,
		StudentID:             studentID,
		SchoolID:              schoolID,
		HoursPurchased:        hours,
		HourRate:              50,
		PurchaseTransactionID: "seed-" + studentID + "-" + string(category),
		PurchasedAt:           time.Now().UTC(),
	})
}

func (e *testEnv) seedFutureSlot(instructorID string, startIn, duration time.Duration) *models.RideSlot {
	start := time.Now().UTC().Add(startIn)
	return e.repo.seedSlot(&models.RideSlot{
		InstructorID: instructorID,
		StartTime:    start,
		EndTime:      start.Add(duration),
	})
}

// assertKind fails unless err is a ServiceError of the given kind.
func assertKind(t *testing.T, err error, kind ErrorKind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", kind)
	}
	if KindOf(err) != kind {
		t.Fatalf("expected %s error, got %s: %v", kind, KindOf(err), err)
	}
}

func (e *testEnv) eventsOfType(eventType string) []events.Event {
	var out []events.Event
	for _, ev := range e.publisher.GetPublishedEvents() {
		if ev.Type == eventType {
			out = append(out, ev)
		}
	}
	return out
}
