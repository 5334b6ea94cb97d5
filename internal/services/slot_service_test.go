package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/driveschool-hub/scheduling-service/internal/models"
	"github.com/driveschool-hub/scheduling-service/internal/repositories"
)

func slotRequest(instructorID string, startIn, duration time.Duration) *SlotCreateRequest {
	start := time.Now().UTC().Add(startIn)
	return &SlotCreateRequest{
		InstructorID: instructorID,
		StartTime:    start,
		EndTime:      start.Add(duration),
	}
}

func TestSlotService_Publish(t *testing.T) {
	ctx := context.Background()

	t.Run("Instructor_Publishes_Own_Slot", func(t *testing.T) {
		env := newTestEnv(t)

		slot, err := env.slots.Publish(ctx, instructorActor("instructor-1"), slotRequest("instructor-1", 24*time.Hour, 2*time.Hour))
		if err != nil {
			t.Fatalf("Publish failed: %v", err)
		}
		if !slot.Free() {
			t.Error("fresh slot must be free")
		}
	})

	t.Run("Instructor_Cannot_Publish_For_Others", func(t *testing.T) {
		env := newTestEnv(t)

		_, err := env.slots.Publish(ctx, instructorActor("instructor-1"), slotRequest("instructor-2", 24*time.Hour, 2*time.Hour))
		assertKind(t, err, KindAccessDenied)
	})

	t.Run("Student_Cannot_Publish", func(t *testing.T) {
		env := newTestEnv(t)

		_, err := env.slots.Publish(ctx, studentActor("student-1"), slotRequest("instructor-1", 24*time.Hour, 2*time.Hour))
		assertKind(t, err, KindAccessDenied)
	})

	t.Run("Overlapping_Window_Conflicts", func(t *testing.T) {
		env := newTestEnv(t)
		instructor := instructorActor("instructor-1")

		if _, err := env.slots.Publish(ctx, instructor, slotRequest("instructor-1", 24*time.Hour, 2*time.Hour)); err != nil {
			t.Fatalf("Publish failed: %v", err)
		}

		// Starts one hour into the existing window.
		_, err := env.slots.Publish(ctx, instructor, slotRequest("instructor-1", 25*time.Hour, 2*time.Hour))
		assertKind(t, err, KindConflict)

		// A different instructor may use the same window.
		if _, err := env.slots.Publish(ctx, instructorActor("instructor-2"), slotRequest("instructor-2", 24*time.Hour, 2*time.Hour)); err != nil {
			t.Fatalf("Publish for second instructor failed: %v", err)
		}
	})

	t.Run("Window_Length_Validated", func(t *testing.T) {
		env := newTestEnv(t)

		// 15 minutes is below the minimum slot length.
		_, err := env.slots.Publish(ctx, instructorActor("instructor-1"), slotRequest("instructor-1", 24*time.Hour, 15*time.Minute))
		assertKind(t, err, KindValidation)

		// 5 hours exceeds the maximum.
		_, err = env.slots.Publish(ctx, instructorActor("instructor-1"), slotRequest("instructor-1", 24*time.Hour, 5*time.Hour))
		assertKind(t, err, KindValidation)
	})
}

// Two publishes racing with intersecting windows: the store-level overlap
// rule admits exactly one, regardless of what the pre-check saw.
func TestSlotService_Publish_Concurrent(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	instructor := instructorActor("instructor-1")

	errs := make([]error, 2)
	requests := []*SlotCreateRequest{
		slotRequest("instructor-1", 24*time.Hour, 2*time.Hour),
		// Starts one hour into the other window.
		slotRequest("instructor-1", 25*time.Hour, 2*time.Hour),
	}

	var wg sync.WaitGroup
	for i, req := range requests {
		wg.Add(1)
		go func(i int, req *SlotCreateRequest) {
			defer wg.Done()
			_, errs[i] = env.slots.Publish(ctx, instructor, req)
		}(i, req)
	}
	wg.Wait()

	var wins, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case IsKind(err, KindConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 || conflicts != 1 {
		t.Fatalf("expected one published slot and one conflict, got %d wins, %d conflicts", wins, conflicts)
	}

	slots, err := env.repo.Slot().List(ctx, repositories.SlotFilters{InstructorID: &instructor.ID})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(slots) != 1 {
		t.Fatalf("expected a single slot after the race, got %d", len(slots))
	}
}

func TestSlotService_Delete(t *testing.T) {
	ctx := context.Background()

	t.Run("Free_Slot_Deletable", func(t *testing.T) {
		env := newTestEnv(t)
		slot := env.seedFutureSlot("instructor-1", 24*time.Hour, 2*time.Hour)

		if err := env.slots.Delete(ctx, instructorActor("instructor-1"), slot.ID); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}

		if _, err := env.repo.Slot().GetByID(ctx, slot.ID); !repositories.IsNotFoundError(err) {
			t.Error("deleted slot should be gone")
		}
	})

	t.Run("Occupied_Slot_Not_Deletable", func(t *testing.T) {
		env := newTestEnv(t)
		course := env.seedCourseWithHours("student-1", "school-1", models.CategoryB, 10)
		slot := env.seedFutureSlot("instructor-1", 24*time.Hour, 2*time.Hour)

		if _, err := env.rides.Book(ctx, studentActor("student-1"), &RideBookRequest{CourseID: course.ID, SlotID: slot.ID}); err != nil {
			t.Fatalf("Book failed: %v", err)
		}

		err := env.slots.Delete(ctx, instructorActor("instructor-1"), slot.ID)
		assertKind(t, err, KindInvalidState)
	})

	t.Run("Foreign_Instructor_Denied", func(t *testing.T) {
		env := newTestEnv(t)
		slot := env.seedFutureSlot("instructor-1", 24*time.Hour, 2*time.Hour)

		err := env.slots.Delete(ctx, instructorActor("instructor-2"), slot.ID)
		assertKind(t, err, KindAccessDenied)
	})
}

func TestSlotService_List(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	env.seedFutureSlot("instructor-1", 24*time.Hour, 2*time.Hour)
	env.seedFutureSlot("instructor-2", 24*time.Hour, 2*time.Hour)
	taken := env.seedFutureSlot("instructor-2", 48*time.Hour, 2*time.Hour)
	course := env.seedCourseWithHours("student-1", "school-1", models.CategoryB, 10)
	if _, err := env.rides.Book(ctx, studentActor("student-1"), &RideBookRequest{CourseID: course.ID, SlotID: taken.ID}); err != nil {
		t.Fatalf("Book failed: %v", err)
	}

	t.Run("Instructor_Defaults_To_Own_Calendar", func(t *testing.T) {
		slots, err := env.slots.List(ctx, instructorActor("instructor-2"), repositories.SlotFilters{})
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(slots) != 2 {
			t.Errorf("expected the instructor's 2 slots, got %d", len(slots))
		}
	})

	t.Run("Students_Browse_Free_Slots", func(t *testing.T) {
		slots, err := env.slots.List(ctx, studentActor("student-1"), repositories.SlotFilters{OnlyFree: true})
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(slots) != 2 {
			t.Errorf("expected 2 free slots, got %d", len(slots))
		}
		for _, slot := range slots {
			if !slot.Free() {
				t.Errorf("slot %d should be free", slot.ID)
			}
		}
	})
}
