package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/driveschool-hub/scheduling-service/internal/models"
	"github.com/driveschool-hub/scheduling-service/internal/repositories"
)

// fakeRepository is an in-memory Repository for service tests. Transactions
// are serialized and snapshot the whole store, so a failing fn rolls back
// every write it made.
type fakeRepository struct {
	store *fakeStore
}

type fakeStore struct {
	mu   sync.Mutex
	txMu sync.Mutex

	courses        map[uint]*models.Course
	slots          map[uint]*models.RideSlot
	rides          map[uint]*models.Ride
	exams          map[uint]*models.Exam
	changeRequests map[uint]*models.InstructorChangeRequest
	purchases      map[uint]*models.HourPackagePurchase
	users          map[string]*models.User

	nextID uint
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		store: &fakeStore{
			courses:        make(map[uint]*models.Course),
			slots:          make(map[uint]*models.RideSlot),
			rides:          make(map[uint]*models.Ride),
			exams:          make(map[uint]*models.Exam),
			changeRequests: make(map[uint]*models.InstructorChangeRequest),
			purchases:      make(map[uint]*models.HourPackagePurchase),
			users:          make(map[string]*models.User),
		},
	}
}

func (s *fakeStore) id() uint {
	s.nextID++
	return s.nextID
}

func copyCourse(c *models.Course) *models.Course {
	cp := *c
	return &cp
}

func copySlot(s *models.RideSlot) *models.RideSlot {
	cp := *s
	if s.RideID != nil {
		rideID := *s.RideID
		cp.RideID = &rideID
	}
	return &cp
}

func copyRide(r *models.Ride) *models.Ride {
	cp := *r
	return &cp
}

func copyExam(e *models.Exam) *models.Exam {
	cp := *e
	cp.Criteria = make([]models.ExamCriterion, len(e.Criteria))
	copy(cp.Criteria, e.Criteria)
	return &cp
}

func copyChangeRequest(r *models.InstructorChangeRequest) *models.InstructorChangeRequest {
	cp := *r
	return &cp
}

func (s *fakeStore) snapshot() *fakeStore {
	snap := &fakeStore{
		courses:        make(map[uint]*models.Course, len(s.courses)),
		slots:          make(map[uint]*models.RideSlot, len(s.slots)),
		rides:          make(map[uint]*models.Ride, len(s.rides)),
		exams:          make(map[uint]*models.Exam, len(s.exams)),
		changeRequests: make(map[uint]*models.InstructorChangeRequest, len(s.changeRequests)),
		purchases:      make(map[uint]*models.HourPackagePurchase, len(s.purchases)),
		users:          s.users,
		nextID:         s.nextID,
	}
	for id, c := range s.courses {
		snap.courses[id] = copyCourse(c)
	}
	for id, sl := range s.slots {
		snap.slots[id] = copySlot(sl)
	}
	for id, r := range s.rides {
		snap.rides[id] = copyRide(r)
	}
	for id, e := range s.exams {
		snap.exams[id] = copyExam(e)
	}
	for id, r := range s.changeRequests {
		snap.changeRequests[id] = copyChangeRequest(r)
	}
	for id, p := range s.purchases {
		cp := *p
		snap.purchases[id] = &cp
	}
	return snap
}

func (s *fakeStore) restore(snap *fakeStore) {
	s.courses = snap.courses
	s.slots = snap.slots
	s.rides = snap.rides
	s.exams = snap.exams
	s.changeRequests = snap.changeRequests
	s.purchases = snap.purchases
	s.nextID = snap.nextID
}

func (f *fakeRepository) Course() repositories.CourseRepository { return &fakeCourseRepo{f.store} }
func (f *fakeRepository) Slot() repositories.SlotRepository     { return &fakeSlotRepo{f.store} }
func (f *fakeRepository) Ride() repositories.RideRepository     { return &fakeRideRepo{f.store} }
func (f *fakeRepository) Exam() repositories.ExamRepository     { return &fakeExamRepo{f.store} }
func (f *fakeRepository) ChangeRequest() repositories.ChangeRequestRepository {
	return &fakeChangeRequestRepo{f.store}
}
func (f *fakeRepository) Purchase() repositories.PurchaseRepository { return &fakePurchaseRepo{f.store} }
func (f *fakeRepository) User() repositories.UserRepository         { return &fakeUserRepo{f.store} }

func (f *fakeRepository) WithTransaction(ctx context.Context, fn func(repositories.Repository) error) error {
	f.store.txMu.Lock()
	defer f.store.txMu.Unlock()

	f.store.mu.Lock()
	snap := f.store.snapshot()
	f.store.mu.Unlock()

	if err := fn(f); err != nil {
		f.store.mu.Lock()
		f.store.restore(snap)
		f.store.mu.Unlock()
		return err
	}
	return nil
}

func (f *fakeRepository) Ping(ctx context.Context) error { return nil }
func (f *fakeRepository) Close() error                   { return nil }

// seeding helpers

func (f *fakeRepository) seedUser(u *models.User) *models.User {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	f.store.users[u.ID] = u
	return u
}

func (f *fakeRepository) seedCourse(c *models.Course) *models.Course {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	if c.ID == 0 {
		c.ID = f.store.id()
	}
	f.store.courses[c.ID] = copyCourse(c)
	return c
}

func (f *fakeRepository) seedSlot(s *models.RideSlot) *models.RideSlot {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	if s.ID == 0 {
		s.ID = f.store.id()
	}
	f.store.slots[s.ID] = copySlot(s)
	return s
}

// ===== course repo =====

type fakeCourseRepo struct{ store *fakeStore }

func (r *fakeCourseRepo) Create(ctx context.Context, course *models.Course) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, existing := range r.store.courses {
		if existing.PurchaseTransactionID == course.PurchaseTransactionID {
			return repositories.ErrDuplicateTransaction
		}
	}
	course.ID = r.store.id()
	r.store.courses[course.ID] = copyCourse(course)
	return nil
}

func (r *fakeCourseRepo) GetByID(ctx context.Context, id uint) (*models.Course, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	course, ok := r.store.courses[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return copyCourse(course), nil
}

func (r *fakeCourseRepo) GetByPurchaseTransaction(ctx context.Context, transactionID string) (*models.Course, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, course := range r.store.courses {
		if course.PurchaseTransactionID == transactionID {
			return copyCourse(course), nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (r *fakeCourseRepo) Update(ctx context.Context, course *models.Course) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.courses[course.ID]; !ok {
		return repositories.ErrNotFound
	}
	r.store.courses[course.ID] = copyCourse(course)
	return nil
}

func (r *fakeCourseRepo) List(ctx context.Context, filters repositories.CourseFilters) ([]*models.Course, int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*models.Course
	for _, course := range r.store.courses {
		if filters.StudentID != nil && course.StudentID != *filters.StudentID {
			continue
		}
		if filters.InstructorID != nil && (course.InstructorID == nil || *course.InstructorID != *filters.InstructorID) {
			continue
		}
		if filters.SchoolID != nil && course.SchoolID != *filters.SchoolID {
			continue
		}
		if filters.Archived != nil && course.Archived != *filters.Archived {
			continue
		}
		out = append(out, copyCourse(course))
	}
	return out, int64(len(out)), nil
}

func (r *fakeCourseRepo) GetProgress(ctx context.Context, id uint) (*repositories.CourseProgress, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	course, ok := r.store.courses[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	p := &repositories.CourseProgress{
		CourseID:       id,
		HoursPurchased: course.HoursPurchased,
		HoursConsumed:  course.HoursConsumed,
		HoursRemaining: course.RemainingHours(),
	}
	for _, ride := range r.store.rides {
		if ride.CourseID != id {
			continue
		}
		switch ride.Status {
		case models.RideCompleted:
			p.CompletedRides++
		case models.RideScheduled, models.RideInProgress:
			p.ScheduledRides++
		}
	}
	for _, exam := range r.store.exams {
		if exam.CourseID != id {
			continue
		}
		switch exam.Status {
		case models.ExamPassed:
			p.ExamsPassed++
		case models.ExamFailed:
			p.ExamsFailed++
		}
	}
	return p, nil
}

// ===== slot repo =====

type fakeSlotRepo struct{ store *fakeStore }

// Create enforces the no-overlap rule the way the real store's exclusion
// constraint does, under the same lock as the insert.
func (r *fakeSlotRepo) Create(ctx context.Context, slot *models.RideSlot) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, existing := range r.store.slots {
		if existing.InstructorID == slot.InstructorID && existing.Overlaps(slot.StartTime, slot.EndTime) {
			return repositories.ErrSlotOverlap
		}
	}
	slot.ID = r.store.id()
	r.store.slots[slot.ID] = copySlot(slot)
	return nil
}

func (r *fakeSlotRepo) GetByID(ctx context.Context, id uint) (*models.RideSlot, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	slot, ok := r.store.slots[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return copySlot(slot), nil
}

func (r *fakeSlotRepo) Delete(ctx context.Context, id uint) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	slot, ok := r.store.slots[id]
	if !ok {
		return repositories.ErrNotFound
	}
	if slot.RideID != nil {
		return repositories.ErrSlotOccupied
	}
	delete(r.store.slots, id)
	return nil
}

func (r *fakeSlotRepo) List(ctx context.Context, filters repositories.SlotFilters) ([]*models.RideSlot, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*models.RideSlot
	for _, slot := range r.store.slots {
		if filters.InstructorID != nil && slot.InstructorID != *filters.InstructorID {
			continue
		}
		if filters.OnlyFree && slot.RideID != nil {
			continue
		}
		out = append(out, copySlot(slot))
	}
	return out, nil
}

func (r *fakeSlotRepo) HasOverlap(ctx context.Context, instructorID string, start, end time.Time) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, slot := range r.store.slots {
		if slot.InstructorID == instructorID && slot.Overlaps(start, end) {
			return true, nil
		}
	}
	return false, nil
}

// Claim is the same compare-and-set the real store does with its
// conditional update.
func (r *fakeSlotRepo) Claim(ctx context.Context, slotID, rideID uint) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	slot, ok := r.store.slots[slotID]
	if !ok {
		return repositories.ErrSlotOccupied
	}
	if slot.RideID != nil {
		return repositories.ErrSlotOccupied
	}
	slot.RideID = &rideID
	return nil
}

func (r *fakeSlotRepo) Unclaim(ctx context.Context, slotID uint) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	slot, ok := r.store.slots[slotID]
	if !ok {
		return repositories.ErrNotFound
	}
	slot.RideID = nil
	return nil
}

// ===== ride repo =====

type fakeRideRepo struct{ store *fakeStore }

func (r *fakeRideRepo) Create(ctx context.Context, ride *models.Ride) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	ride.ID = r.store.id()
	r.store.rides[ride.ID] = copyRide(ride)
	return nil
}

func (r *fakeRideRepo) GetByID(ctx context.Context, id uint) (*models.Ride, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	ride, ok := r.store.rides[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return copyRide(ride), nil
}

func (r *fakeRideRepo) Update(ctx context.Context, ride *models.Ride) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.rides[ride.ID]; !ok {
		return repositories.ErrNotFound
	}
	r.store.rides[ride.ID] = copyRide(ride)
	return nil
}

// Transition checks the stored row's state, not the caller's copy, matching
// the conditional update of the real store.
func (r *fakeRideRepo) Transition(ctx context.Context, ride *models.Ride, from ...models.RideStatus) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	stored, ok := r.store.rides[ride.ID]
	if !ok {
		return repositories.ErrNotFound
	}
	for _, status := range from {
		if stored.Status == status {
			r.store.rides[ride.ID] = copyRide(ride)
			return nil
		}
	}
	return repositories.ErrStaleState
}

func (r *fakeRideRepo) List(ctx context.Context, filters repositories.RideFilters) ([]*models.Ride, int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*models.Ride
	for _, ride := range r.store.rides {
		if filters.Status != nil && ride.Status != *filters.Status {
			continue
		}
		if filters.CourseID != nil && ride.CourseID != *filters.CourseID {
			continue
		}
		out = append(out, copyRide(ride))
	}
	return out, int64(len(out)), nil
}

func (r *fakeRideRepo) ListExpiredScheduled(ctx context.Context, before time.Time) ([]*models.Ride, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*models.Ride
	for _, ride := range r.store.rides {
		if ride.Status == models.RideScheduled && ride.EndTime.Before(before) {
			out = append(out, copyRide(ride))
		}
	}
	return out, nil
}

// ===== exam repo =====

type fakeExamRepo struct{ store *fakeStore }

func (r *fakeExamRepo) Create(ctx context.Context, exam *models.Exam) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	exam.ID = r.store.id()
	for i := range exam.Criteria {
		exam.Criteria[i].ID = r.store.id()
		exam.Criteria[i].ExamID = exam.ID
	}
	r.store.exams[exam.ID] = copyExam(exam)
	return nil
}

func (r *fakeExamRepo) GetByID(ctx context.Context, id uint) (*models.Exam, error) {
	return r.GetByIDWithCriteria(ctx, id)
}

func (r *fakeExamRepo) GetByIDWithCriteria(ctx context.Context, id uint) (*models.Exam, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	exam, ok := r.store.exams[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return copyExam(exam), nil
}

// Transactions are serialized here, so the locked read is a plain read.
func (r *fakeExamRepo) GetByIDWithCriteriaLocked(ctx context.Context, id uint) (*models.Exam, error) {
	return r.GetByIDWithCriteria(ctx, id)
}

func (r *fakeExamRepo) GetByRide(ctx context.Context, rideID uint) (*models.Exam, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, exam := range r.store.exams {
		if exam.RideID == rideID {
			return copyExam(exam), nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (r *fakeExamRepo) Transition(ctx context.Context, exam *models.Exam, from ...models.ExamStatus) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	stored, ok := r.store.exams[exam.ID]
	if !ok {
		return repositories.ErrNotFound
	}
	allowed := false
	for _, status := range from {
		if stored.Status == status {
			allowed = true
			break
		}
	}
	if !allowed {
		return repositories.ErrStaleState
	}
	criteria := stored.Criteria
	r.store.exams[exam.ID] = copyExam(exam)
	// Criteria rows are maintained through UpdateCriterion only.
	r.store.exams[exam.ID].Criteria = criteria
	return nil
}

func (r *fakeExamRepo) UpdateCriterion(ctx context.Context, criterion *models.ExamCriterion) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	exam, ok := r.store.exams[criterion.ExamID]
	if !ok {
		return repositories.ErrNotFound
	}
	for i := range exam.Criteria {
		if exam.Criteria[i].ID == criterion.ID {
			exam.Criteria[i] = *criterion
			return nil
		}
	}
	return repositories.ErrNotFound
}

func (r *fakeExamRepo) ListByCourse(ctx context.Context, courseID uint) ([]*models.Exam, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*models.Exam
	for _, exam := range r.store.exams {
		if exam.CourseID == courseID {
			out = append(out, copyExam(exam))
		}
	}
	return out, nil
}

func (r *fakeExamRepo) HasUnresolvedByCourse(ctx context.Context, courseID uint) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, exam := range r.store.exams {
		if exam.CourseID == courseID &&
			(exam.Status == models.ExamScheduled || exam.Status == models.ExamInProgress) {
			return true, nil
		}
	}
	return false, nil
}

// ===== change request repo =====

type fakeChangeRequestRepo struct{ store *fakeStore }

// Create rejects a second pending request for the same course under the
// insert lock, like the partial unique index of the real store.
func (r *fakeChangeRequestRepo) Create(ctx context.Context, request *models.InstructorChangeRequest) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, existing := range r.store.changeRequests {
		if existing.CourseID == request.CourseID && existing.Status == models.ChangeRequestPending {
			return repositories.ErrDuplicatePending
		}
	}
	request.ID = r.store.id()
	r.store.changeRequests[request.ID] = copyChangeRequest(request)
	return nil
}

func (r *fakeChangeRequestRepo) GetByID(ctx context.Context, id uint) (*models.InstructorChangeRequest, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	request, ok := r.store.changeRequests[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return copyChangeRequest(request), nil
}

func (r *fakeChangeRequestRepo) Update(ctx context.Context, request *models.InstructorChangeRequest) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	stored, ok := r.store.changeRequests[request.ID]
	if !ok {
		return repositories.ErrNotFound
	}
	if stored.Status != models.ChangeRequestPending {
		return repositories.ErrStaleState
	}
	r.store.changeRequests[request.ID] = copyChangeRequest(request)
	return nil
}

func (r *fakeChangeRequestRepo) GetPendingByCourse(ctx context.Context, courseID uint) (*models.InstructorChangeRequest, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, request := range r.store.changeRequests {
		if request.CourseID == courseID && request.Status == models.ChangeRequestPending {
			return copyChangeRequest(request), nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (r *fakeChangeRequestRepo) List(ctx context.Context, filters repositories.ChangeRequestFilters) ([]*models.InstructorChangeRequest, int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*models.InstructorChangeRequest
	for _, request := range r.store.changeRequests {
		if filters.Status != nil && request.Status != *filters.Status {
			continue
		}
		if filters.CourseID != nil && request.CourseID != *filters.CourseID {
			continue
		}
		if filters.RequestorID != nil && request.RequestorID != *filters.RequestorID {
			continue
		}
		out = append(out, copyChangeRequest(request))
	}
	return out, int64(len(out)), nil
}

// ===== purchase repo =====

type fakePurchaseRepo struct{ store *fakeStore }

func (r *fakePurchaseRepo) Create(ctx context.Context, purchase *models.HourPackagePurchase) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, existing := range r.store.purchases {
		if strings.EqualFold(existing.TransactionID, purchase.TransactionID) {
			return repositories.ErrDuplicateTransaction
		}
	}
	purchase.ID = r.store.id()
	cp := *purchase
	r.store.purchases[purchase.ID] = &cp
	return nil
}

func (r *fakePurchaseRepo) GetByTransactionID(ctx context.Context, transactionID string) (*models.HourPackagePurchase, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, purchase := range r.store.purchases {
		if purchase.TransactionID == transactionID {
			cp := *purchase
			return &cp, nil
		}
	}
	return nil, repositories.ErrNotFound
}

// ===== user repo =====

type fakeUserRepo struct{ store *fakeStore }

func (r *fakeUserRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	user, ok := r.store.users[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cp := *user
	return &cp, nil
}

func (r *fakeUserRepo) List(ctx context.Context, limit, offset int) ([]*models.User, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*models.User
	for _, user := range r.store.users {
		cp := *user
		out = append(out, &cp)
	}
	return out, nil
}
