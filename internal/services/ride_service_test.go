package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/driveschool-hub/scheduling-service/internal/events"
	"github.com/driveschool-hub/scheduling-service/internal/models"
	"github.com/driveschool-hub/scheduling-service/internal/repositories"
)

func TestRideService_Book(t *testing.T) {
	ctx := context.Background()

	t.Run("Student_Books_Own_Course", func(t *testing.T) {
		env := newTestEnv(t)
		course := env.seedCourseWithHours("student-1", "school-1", models.CategoryB, 10)
		slot := env.seedFutureSlot("instructor-1", 24*time.Hour, 2*time.Hour)

		ride, err := env.rides.Book(ctx, studentActor("student-1"), &RideBookRequest{
			CourseID: course.ID,
			SlotID:   slot.ID,
		})
		if err != nil {
			t.Fatalf("Book failed: %v", err)
		}
		if ride.Status != models.RideScheduled {
			t.Errorf("expected scheduled ride, got %s", ride.Status)
		}
		if !ride.StartTime.Equal(slot.StartTime) || !ride.EndTime.Equal(slot.EndTime) {
			t.Error("ride window should be copied from the slot")
		}

		stored, err := env.repo.Slot().GetByID(ctx, slot.ID)
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		if stored.RideID == nil || *stored.RideID != ride.ID {
			t.Error("slot should be claimed by the booked ride")
		}
	})

	t.Run("Student_Cannot_Book_Foreign_Course", func(t *testing.T) {
		env := newTestEnv(t)
		course := env.seedCourseWithHours("student-1", "school-1", models.CategoryB, 10)
		slot := env.seedFutureSlot("instructor-1", 24*time.Hour, 2*time.Hour)

		_, err := env.rides.Book(ctx, studentActor("student-2"), &RideBookRequest{
			CourseID: course.ID,
			SlotID:   slot.ID,
		})
		assertKind(t, err, KindAccessDenied)
	})

	t.Run("Occupied_Slot_Conflicts", func(t *testing.T) {
		env := newTestEnv(t)
		first := env.seedCourseWithHours("student-1", "school-1", models.CategoryB, 10)
		second := env.seedCourseWithHours("student-2", "school-1", models.CategoryB, 10)
		slot := env.seedFutureSlot("instructor-1", 24*time.Hour, 2*time.Hour)

		if _, err := env.rides.Book(ctx, studentActor("student-1"), &RideBookRequest{CourseID: first.ID, SlotID: slot.ID}); err != nil {
			t.Fatalf("first booking failed: %v", err)
		}

		_, err := env.rides.Book(ctx, studentActor("student-2"), &RideBookRequest{CourseID: second.ID, SlotID: slot.ID})
		assertKind(t, err, KindConflict)
	})

	t.Run("Archived_Course_Rejected", func(t *testing.T) {
		env := newTestEnv(t)
		course := env.seedCourseWithHours("student-1", "school-1", models.CategoryB, 10)
		course.Archived = true
		if err := env.repo.Course().Update(ctx, course); err != nil {
			t.Fatalf("Update failed: %v", err)
		}
		slot := env.seedFutureSlot("instructor-1", 24*time.Hour, 2*time.Hour)

		_, err := env.rides.Book(ctx, studentActor("student-1"), &RideBookRequest{CourseID: course.ID, SlotID: slot.ID})
		assertKind(t, err, KindInvalidState)
	})

	t.Run("Exhausted_Balance_Rejected", func(t *testing.T) {
		env := newTestEnv(t)
		course := env.seedCourseWithHours("student-1", "school-1", models.CategoryB, 1)
		// 1 hour left cannot cover a 2 hour slot.
		slot := env.seedFutureSlot("instructor-1", 24*time.Hour, 2*time.Hour)

		_, err := env.rides.Book(ctx, studentActor("student-1"), &RideBookRequest{CourseID: course.ID, SlotID: slot.ID})
		assertKind(t, err, KindExhausted)
	})
}

// Two bookings racing for one slot: exactly one wins, the loser leaves no
// partial state behind.
func TestRideService_Book_ConcurrentClaim(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	first := env.seedCourseWithHours("student-1", "school-1", models.CategoryB, 10)
	second := env.seedCourseWithHours("student-2", "school-1", models.CategoryB, 10)
	slot := env.seedFutureSlot("instructor-1", 24*time.Hour, 2*time.Hour)

	type outcome struct {
		ride *models.Ride
		err  error
	}
	results := make([]outcome, 2)

	var wg sync.WaitGroup
	for i, booking := range []struct {
		actor  *Actor
		course uint
	}{
		{studentActor("student-1"), first.ID},
		{studentActor("student-2"), second.ID},
	} {
		wg.Add(1)
		go func(i int, actor *Actor, courseID uint) {
			defer wg.Done()
			ride, err := env.rides.Book(ctx, actor, &RideBookRequest{CourseID: courseID, SlotID: slot.ID})
			results[i] = outcome{ride: ride, err: err}
		}(i, booking.actor, booking.course)
	}
	wg.Wait()

	var wins, conflicts int
	var winner *models.Ride
	for _, r := range results {
		switch {
		case r.err == nil:
			wins++
			winner = r.ride
		case IsKind(r.err, KindConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", r.err)
		}
	}
	if wins != 1 || conflicts != 1 {
		t.Fatalf("expected exactly one winner and one conflict, got %d wins, %d conflicts", wins, conflicts)
	}

	stored, err := env.repo.Slot().GetByID(ctx, slot.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if stored.RideID == nil || *stored.RideID != winner.ID {
		t.Error("slot should be held by the winning ride")
	}

	// The loser's ride row must have been rolled back with the claim.
	rides, total, err := env.repo.Ride().List(ctx, repositories.RideFilters{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if total != 1 || len(rides) != 1 {
		t.Fatalf("expected a single ride after the race, got %d", total)
	}
}

func TestRideService_Complete(t *testing.T) {
	ctx := context.Background()

	t.Run("Consumes_Slot_Duration", func(t *testing.T) {
		env := newTestEnv(t)
		course := env.seedCourseWithHours("student-1", "school-1", models.CategoryB, 4)
		slot := env.seedFutureSlot("instructor-1", 24*time.Hour, 2*time.Hour)

		ride, err := env.rides.Book(ctx, studentActor("student-1"), &RideBookRequest{CourseID: course.ID, SlotID: slot.ID})
		if err != nil {
			t.Fatalf("Book failed: %v", err)
		}

		completed, err := env.rides.Complete(ctx, instructorActor("instructor-1"), ride.ID, nil)
		if err != nil {
			t.Fatalf("Complete failed: %v", err)
		}
		if completed.Status != models.RideCompleted {
			t.Errorf("expected completed, got %s", completed.Status)
		}
		if completed.HoursCounted != 2 {
			t.Errorf("expected 2 hours counted, got %v", completed.HoursCounted)
		}

		stored, err := env.repo.Course().GetByID(ctx, course.ID)
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		if stored.HoursConsumed != 2 {
			t.Errorf("expected 2 hours consumed, got %v", stored.HoursConsumed)
		}
		if stored.Archived {
			t.Error("course with remaining hours must not archive")
		}

		published := env.eventsOfType(events.RideCompletedEvent)
		if len(published) != 1 {
			t.Fatalf("expected one ride.completed event, got %d", len(published))
		}
		data, ok := published[0].Data.(RideCompletedData)
		if !ok {
			t.Fatalf("unexpected event payload type %T", published[0].Data)
		}
		if data.RideID != ride.ID || data.HoursRemaining != 2 {
			t.Errorf("unexpected event payload: %+v", data)
		}
	})

	t.Run("Override_Clamps_At_Purchased_Balance", func(t *testing.T) {
		env := newTestEnv(t)
		course := env.seedCourseWithHours("student-1", "school-1", models.CategoryB, 2)
		slot := env.seedFutureSlot("instructor-1", 24*time.Hour, 90*time.Minute)

		ride, err := env.rides.Book(ctx, studentActor("student-1"), &RideBookRequest{CourseID: course.ID, SlotID: slot.ID})
		if err != nil {
			t.Fatalf("Book failed: %v", err)
		}

		override := 3.0
		if _, err := env.rides.Complete(ctx, instructorActor("instructor-1"), ride.ID, &RideCompleteRequest{HoursOverride: &override}); err != nil {
			t.Fatalf("Complete failed: %v", err)
		}

		stored, err := env.repo.Course().GetByID(ctx, course.ID)
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		if stored.HoursConsumed != stored.HoursPurchased {
			t.Errorf("consumption should clamp at the purchased total, got %v", stored.HoursConsumed)
		}
		if !stored.NeedsArchiveReview {
			t.Error("over-consumption must flag the course for review")
		}
		if !stored.Archived {
			t.Error("exhausted course with nothing unresolved should auto-archive")
		}

		archived := env.eventsOfType(events.CourseArchivedEvent)
		if len(archived) != 1 {
			t.Fatalf("expected one course.archived event, got %d", len(archived))
		}
		data, ok := archived[0].Data.(CourseArchivedData)
		if !ok {
			t.Fatalf("unexpected event payload type %T", archived[0].Data)
		}
		if !data.Automatic || !data.NeedsReview {
			t.Errorf("unexpected archive payload: %+v", data)
		}
	})

	t.Run("Student_Cannot_Complete", func(t *testing.T) {
		env := newTestEnv(t)
		course := env.seedCourseWithHours("student-1", "school-1", models.CategoryB, 4)
		slot := env.seedFutureSlot("instructor-1", 24*time.Hour, 2*time.Hour)

		ride, err := env.rides.Book(ctx, studentActor("student-1"), &RideBookRequest{CourseID: course.ID, SlotID: slot.ID})
		if err != nil {
			t.Fatalf("Book failed: %v", err)
		}

		_, err = env.rides.Complete(ctx, studentActor("student-1"), ride.ID, nil)
		assertKind(t, err, KindAccessDenied)
	})
}

// Two operations racing on one booked ride: the conditional status write
// lets exactly one commit, so hours are consumed at most once.
func TestRideService_ConcurrentTransitions(t *testing.T) {
	ctx := context.Background()

	t.Run("Double_Complete_Consumes_Hours_Once", func(t *testing.T) {
		env := newTestEnv(t)
		course := env.seedCourseWithHours("student-1", "school-1", models.CategoryB, 10)
		slot := env.seedFutureSlot("instructor-1", 24*time.Hour, 2*time.Hour)

		ride, err := env.rides.Book(ctx, studentActor("student-1"), &RideBookRequest{CourseID: course.ID, SlotID: slot.ID})
		if err != nil {
			t.Fatalf("Book failed: %v", err)
		}

		errs := make([]error, 2)
		var wg sync.WaitGroup
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = env.rides.Complete(ctx, instructorActor("instructor-1"), ride.ID, nil)
			}(i)
		}
		wg.Wait()

		var wins, rejected int
		for _, err := range errs {
			switch {
			case err == nil:
				wins++
			case IsKind(err, KindInvalidState):
				rejected++
			default:
				t.Fatalf("unexpected error: %v", err)
			}
		}
		if wins != 1 || rejected != 1 {
			t.Fatalf("expected one completion and one rejection, got %d wins, %d rejections", wins, rejected)
		}

		stored, err := env.repo.Course().GetByID(ctx, course.ID)
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		if stored.HoursConsumed != 2 {
			t.Errorf("a twice-submitted completion must consume the slot hours once, got %v", stored.HoursConsumed)
		}
		if published := env.eventsOfType(events.RideCompletedEvent); len(published) != 1 {
			t.Errorf("expected one ride.completed event, got %d", len(published))
		}
	})

	t.Run("Complete_And_Cancel_Settle_One_Way", func(t *testing.T) {
		env := newTestEnv(t)
		course := env.seedCourseWithHours("student-1", "school-1", models.CategoryB, 10)
		slot := env.seedFutureSlot("instructor-1", 24*time.Hour, 2*time.Hour)

		ride, err := env.rides.Book(ctx, studentActor("student-1"), &RideBookRequest{CourseID: course.ID, SlotID: slot.ID})
		if err != nil {
			t.Fatalf("Book failed: %v", err)
		}

		errs := make([]error, 2)
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, errs[0] = env.rides.Complete(ctx, instructorActor("instructor-1"), ride.ID, nil)
		}()
		go func() {
			defer wg.Done()
			_, errs[1] = env.rides.Cancel(ctx, studentActor("student-1"), ride.ID)
		}()
		wg.Wait()

		var wins int
		for _, err := range errs {
			if err == nil {
				wins++
			} else if !IsKind(err, KindInvalidState) {
				t.Fatalf("unexpected error: %v", err)
			}
		}
		if wins != 1 {
			t.Fatalf("expected exactly one of complete/cancel to commit, got %d", wins)
		}

		storedRide, err := env.repo.Ride().GetByID(ctx, ride.ID)
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		storedCourse, err := env.repo.Course().GetByID(ctx, course.ID)
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		storedSlot, err := env.repo.Slot().GetByID(ctx, slot.ID)
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}

		switch storedRide.Status {
		case models.RideCompleted:
			if storedCourse.HoursConsumed != 2 || storedSlot.Free() {
				t.Errorf("completed ride must consume hours and keep the slot, got %v consumed, free=%v",
					storedCourse.HoursConsumed, storedSlot.Free())
			}
		case models.RideCancelled:
			if storedCourse.HoursConsumed != 0 || !storedSlot.Free() {
				t.Errorf("cancelled ride must consume nothing and free the slot, got %v consumed, free=%v",
					storedCourse.HoursConsumed, storedSlot.Free())
			}
		default:
			t.Fatalf("ride left in non-terminal state %s", storedRide.Status)
		}
	})
}

func TestRideService_Cancel(t *testing.T) {
	ctx := context.Background()

	t.Run("Cancel_Frees_Slot_For_Rebooking", func(t *testing.T) {
		env := newTestEnv(t)
		course := env.seedCourseWithHours("student-1", "school-1", models.CategoryB, 10)
		slot := env.seedFutureSlot("instructor-1", 24*time.Hour, 2*time.Hour)

		ride, err := env.rides.Book(ctx, studentActor("student-1"), &RideBookRequest{CourseID: course.ID, SlotID: slot.ID})
		if err != nil {
			t.Fatalf("Book failed: %v", err)
		}

		cancelled, err := env.rides.Cancel(ctx, studentActor("student-1"), ride.ID)
		if err != nil {
			t.Fatalf("Cancel failed: %v", err)
		}
		if cancelled.Status != models.RideCancelled {
			t.Errorf("expected cancelled, got %s", cancelled.Status)
		}

		stored, err := env.repo.Slot().GetByID(ctx, slot.ID)
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		if !stored.Free() {
			t.Fatal("cancelled ride must free its slot")
		}

		// Same slot is bookable again.
		rebooked, err := env.rides.Book(ctx, studentActor("student-1"), &RideBookRequest{CourseID: course.ID, SlotID: slot.ID})
		if err != nil {
			t.Fatalf("rebooking failed: %v", err)
		}
		if rebooked.ID == ride.ID {
			t.Error("rebooking should create a fresh ride")
		}

		// No hours were consumed along the way.
		storedCourse, err := env.repo.Course().GetByID(ctx, course.ID)
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		if storedCourse.HoursConsumed != 0 {
			t.Errorf("cancelled rides must not consume hours, got %v", storedCourse.HoursConsumed)
		}
	})

	t.Run("Completed_Ride_Cannot_Cancel", func(t *testing.T) {
		env := newTestEnv(t)
		course := env.seedCourseWithHours("student-1", "school-1", models.CategoryB, 10)
		slot := env.seedFutureSlot("instructor-1", 24*time.Hour, 2*time.Hour)

		ride, err := env.rides.Book(ctx, studentActor("student-1"), &RideBookRequest{CourseID: course.ID, SlotID: slot.ID})
		if err != nil {
			t.Fatalf("Book failed: %v", err)
		}
		if _, err := env.rides.Complete(ctx, instructorActor("instructor-1"), ride.ID, nil); err != nil {
			t.Fatalf("Complete failed: %v", err)
		}

		_, err = env.rides.Cancel(ctx, studentActor("student-1"), ride.ID)
		assertKind(t, err, KindInvalidState)
	})
}

func TestRideService_StartThenComplete(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	course := env.seedCourseWithHours("student-1", "school-1", models.CategoryB, 10)
	slot := env.seedFutureSlot("instructor-1", 24*time.Hour, 2*time.Hour)

	ride, err := env.rides.Book(ctx, studentActor("student-1"), &RideBookRequest{CourseID: course.ID, SlotID: slot.ID})
	if err != nil {
		t.Fatalf("Book failed: %v", err)
	}

	started, err := env.rides.Start(ctx, instructorActor("instructor-1"), ride.ID)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if started.Status != models.RideInProgress || started.StartedAt == nil {
		t.Errorf("expected in-progress ride with start timestamp, got %s", started.Status)
	}

	// Starting twice is a lifecycle violation.
	if _, err := env.rides.Start(ctx, instructorActor("instructor-1"), ride.ID); !IsKind(err, KindInvalidState) {
		t.Fatalf("expected invalid_state on double start, got %v", err)
	}

	completed, err := env.rides.Complete(ctx, instructorActor("instructor-1"), ride.ID, nil)
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if completed.CompletedAt == nil {
		t.Error("completed ride must carry its completion timestamp")
	}
}

func TestRideService_ReclaimExpired(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	course := env.seedCourseWithHours("student-1", "school-1", models.CategoryB, 10)

	// A ride whose window already passed, still sitting in scheduled state.
	start := time.Now().UTC().Add(-3 * time.Hour)
	slot := env.repo.seedSlot(&models.RideSlot{
		InstructorID: "instructor-1",
		StartTime:    start,
		EndTime:      start.Add(2 * time.Hour),
	})
	ride := &models.Ride{
		Status:    models.RideScheduled,
		CourseID:  course.ID,
		SlotID:    slot.ID,
		StartTime: slot.StartTime,
		EndTime:   slot.EndTime,
	}
	if err := env.repo.Ride().Create(ctx, ride); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := env.repo.Slot().Claim(ctx, slot.ID, ride.ID); err != nil {
		t.Fatalf("Claim failed: %v", err)
	}

	reclaimed, err := env.rides.ReclaimExpired(ctx, time.Now().UTC())
	if err != nil {
		t.Fatalf("ReclaimExpired failed: %v", err)
	}
	if reclaimed != 1 {
		t.Fatalf("expected 1 reclaimed ride, got %d", reclaimed)
	}

	storedRide, err := env.repo.Ride().GetByID(ctx, ride.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if storedRide.Status != models.RideCancelled {
		t.Errorf("expected cancelled ride, got %s", storedRide.Status)
	}

	storedSlot, err := env.repo.Slot().GetByID(ctx, slot.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if !storedSlot.Free() {
		t.Error("reclaimed ride must free its slot")
	}
}
