package service

import (
	"sync"
	"testing"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/pkg/lock"
)

// --- Fixtures ---

type timetableFixture struct {
	catalog   *CatalogService
	index     *ScheduleIndex
	store     *EntryStore
	detector  *ConflictDetector
	generator *ScheduleGeneratorService
	locker    *lock.LocalLock
	reporter  *ConflictReporter
	refresher *recordingScheduler
	service   *TimetableService
}

type recordingScheduler struct {
	mu  sync.Mutex
	ids []string
}

func (r *recordingScheduler) Enqueue(ids ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, ids...)
}

func (r *recordingScheduler) queued() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ids...)
}

// fixtureSnapshot models a one-day week of P1, a break, then P2, shared by classrooms
// X and Y of grade 10.
func fixtureSnapshot() CatalogSnapshot {
	return CatalogSnapshot{
		TimeSlots: []models.TimeSlot{
			{ID: "p1", Name: "Period 1", SlotOrder: 1, StartTime: "07:00", EndTime: "07:45", Type: models.SlotTypeLesson, Active: true},
			{ID: "brk", Name: "Break", SlotOrder: 2, StartTime: "07:45", EndTime: "08:00", Type: models.SlotTypeBreak, Active: true},
			{ID: "p2", Name: "Period 2", SlotOrder: 3, StartTime: "08:00", EndTime: "08:45", Type: models.SlotTypeLesson, Active: true},
		},
		ClassRooms: []models.ClassRoom{
			{ID: "X", Name: "X-A", GradeLevelID: "grade-10", Active: true},
			{ID: "Y", Name: "X-B", GradeLevelID: "grade-10", Active: true},
			{ID: "Z", Name: "XI-A", GradeLevelID: "grade-11", Active: true},
		},
		Subjects: []models.Subject{
			{ID: "math", Code: "MTK", Name: "Mathematics", Active: true},
			{ID: "science", Code: "IPA", Name: "Science", Active: true},
			{ID: "art", Code: "SBD", Name: "Art", Active: true},
		},
		Teachers: []models.Teacher{
			{ID: "T1", FullName: "Budi Santoso", Active: true},
			{ID: "T2", FullName: "Siti Aminah", Active: true},
			{ID: "T9", FullName: "Retired", Active: false},
		},
		Rooms: []models.Room{
			{ID: "lab", Name: "Science Lab", Capacity: 32, Type: "LAB", Active: true},
			{ID: "hall", Name: "Hall", Capacity: 200, Type: "HALL", Active: true},
		},
		Qualifications: []models.TeacherSubject{
			{TeacherID: "T1", SubjectID: "math"},
			{TeacherID: "T1", SubjectID: "science"},
			{TeacherID: "T2", SubjectID: "science"},
		},
		Requirements: []models.GradeSubjectRequirement{
			{GradeLevelID: "grade-10", SubjectID: "math", WeeklyHours: 2},
		},
	}
}

func newTimetableFixture(t *testing.T, snap CatalogSnapshot, days ...int) *timetableFixture {
	t.Helper()
	if len(days) == 0 {
		days = []int{1}
	}
	catalog := NewCatalogService(nil, zap.NewNop())
	catalog.Load(snap)

	index := NewScheduleIndex()
	store := NewEntryStore(index, nil, zap.NewNop())
	detector := NewConflictDetector(index, nil, ConflictDetectorConfig{}, nil, zap.NewNop())
	locker := lock.NewLocalLock()
	generator := NewScheduleGeneratorService(catalog, store, detector, locker, nil, zap.NewNop(), ScheduleGeneratorConfig{SchoolDays: days})
	reporter := NewConflictReporter(detector, catalog, nil, 0, zap.NewNop())
	refresher := &recordingScheduler{}
	svc := NewTimetableService(catalog, store, detector, generator, reporter, refresher, NewSequenceGate(0), nil, validator.New(), zap.NewNop(), TimetableConfig{SchoolDays: days})

	return &timetableFixture{
		catalog:   catalog,
		index:     index,
		store:     store,
		detector:  detector,
		generator: generator,
		locker:    locker,
		reporter:  reporter,
		refresher: refresher,
		service:   svc,
	}
}

func lesson(classRoomID string, weekday int, slotID, subjectID, teacherID, roomID string) models.TimetableEntry {
	return models.TimetableEntry{
		ClassRoomID: classRoomID,
		Weekday:     weekday,
		TimeSlotID:  slotID,
		SubjectID:   models.StringPtr(subjectID),
		TeacherID:   models.StringPtr(teacherID),
		RoomID:      models.StringPtr(roomID),
		SlotType:    models.SlotTypeLesson,
	}
}
