package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

type catalogRepository interface {
	ListTimeSlots(ctx context.Context) ([]models.TimeSlot, error)
	ListClassRooms(ctx context.Context) ([]models.ClassRoom, error)
	ListSubjects(ctx context.Context) ([]models.Subject, error)
	ListTeachers(ctx context.Context) ([]models.Teacher, error)
	ListRooms(ctx context.Context) ([]models.Room, error)
	ListQualifications(ctx context.Context) ([]models.TeacherSubject, error)
	ListRequirements(ctx context.Context) ([]models.GradeSubjectRequirement, error)
	SetTeacherActive(ctx context.Context, id string, active bool) error
	SetRoomActive(ctx context.Context, id string, active bool) error
}

// CatalogSnapshot is a complete copy of the scheduling catalog.
type CatalogSnapshot struct {
	TimeSlots      []models.TimeSlot                `json:"time_slots"`
	ClassRooms     []models.ClassRoom               `json:"class_rooms"`
	Subjects       []models.Subject                 `json:"subjects"`
	Teachers       []models.Teacher                 `json:"teachers"`
	Rooms          []models.Room                    `json:"rooms"`
	Qualifications []models.TeacherSubject          `json:"qualifications"`
	Requirements   []models.GradeSubjectRequirement `json:"requirements"`
}

// CatalogService serves read-mostly catalog data from memory.
type CatalogService struct {
	repo   catalogRepository
	logger *zap.Logger

	mu           sync.RWMutex
	slots        map[string]models.TimeSlot
	ordered      []models.TimeSlot
	classRooms   map[string]models.ClassRoom
	subjects     map[string]models.Subject
	teachers     map[string]models.Teacher
	rooms        map[string]models.Room
	requirements map[string][]models.GradeSubjectRequirement
}

// NewCatalogService constructs the catalog. repo may be nil when the catalog is seeded with Load.
func NewCatalogService(repo catalogRepository, logger *zap.Logger) *CatalogService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &CatalogService{repo: repo, logger: logger}
	s.Load(CatalogSnapshot{})
	return s
}

// Reload replaces the in-memory catalog with the repository contents.
func (s *CatalogService) Reload(ctx context.Context) error {
	if s.repo == nil {
		return nil
	}
	var snap CatalogSnapshot
	var err error
	if snap.TimeSlots, err = s.repo.ListTimeSlots(ctx); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load time slots")
	}
	if snap.ClassRooms, err = s.repo.ListClassRooms(ctx); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class rooms")
	}
	if snap.Subjects, err = s.repo.ListSubjects(ctx); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subjects")
	}
	if snap.Teachers, err = s.repo.ListTeachers(ctx); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teachers")
	}
	if snap.Rooms, err = s.repo.ListRooms(ctx); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load rooms")
	}
	if snap.Qualifications, err = s.repo.ListQualifications(ctx); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher qualifications")
	}
	if snap.Requirements, err = s.repo.ListRequirements(ctx); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grade subject requirements")
	}
	s.Load(snap)
	s.logger.Info("catalog loaded",
		zap.Int("time_slots", len(snap.TimeSlots)),
		zap.Int("class_rooms", len(snap.ClassRooms)),
		zap.Int("teachers", len(snap.Teachers)),
		zap.Int("subjects", len(snap.Subjects)),
	)
	return nil
}

// LoadSnapshotFile reads a JSON catalog used to seed an in-memory deployment.
func LoadSnapshotFile(path string) (CatalogSnapshot, error) {
	var snap CatalogSnapshot
	raw, err := os.ReadFile(path)
	if err != nil {
		return snap, fmt.Errorf("read catalog file: %w", err)
	}
	if err := json.Unmarshal(raw, &snap); err != nil {
		return snap, fmt.Errorf("decode catalog file %s: %w", path, err)
	}
	return snap, nil
}

// Load installs snap. Qualifications from both the subject/teacher records and the
// relation rows are merged so either side may be authoritative.
func (s *CatalogService) Load(snap CatalogSnapshot) {
	slots := make(map[string]models.TimeSlot, len(snap.TimeSlots))
	ordered := make([]models.TimeSlot, 0, len(snap.TimeSlots))
	for _, slot := range snap.TimeSlots {
		slots[slot.ID] = slot
		ordered = append(ordered, slot)
	}
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].SlotOrder < ordered[j].SlotOrder })

	classRooms := make(map[string]models.ClassRoom, len(snap.ClassRooms))
	for _, cr := range snap.ClassRooms {
		classRooms[cr.ID] = cr
	}

	pairs := make(map[models.TeacherSubject]struct{}, len(snap.Qualifications))
	for _, q := range snap.Qualifications {
		pairs[q] = struct{}{}
	}
	for _, subj := range snap.Subjects {
		for _, teacherID := range subj.QualifiedTeacherIDs {
			pairs[models.TeacherSubject{TeacherID: teacherID, SubjectID: subj.ID}] = struct{}{}
		}
	}
	for _, t := range snap.Teachers {
		for _, subjectID := range t.QualifiedSubjectIDs {
			pairs[models.TeacherSubject{TeacherID: t.ID, SubjectID: subjectID}] = struct{}{}
		}
	}

	subjects := make(map[string]models.Subject, len(snap.Subjects))
	for _, subj := range snap.Subjects {
		subj.QualifiedTeacherIDs = nil
		subjects[subj.ID] = subj
	}
	teachers := make(map[string]models.Teacher, len(snap.Teachers))
	for _, t := range snap.Teachers {
		t.QualifiedSubjectIDs = nil
		teachers[t.ID] = t
	}
	for pair := range pairs {
		if subj, ok := subjects[pair.SubjectID]; ok {
			subj.QualifiedTeacherIDs = append(subj.QualifiedTeacherIDs, pair.TeacherID)
			subjects[pair.SubjectID] = subj
		}
		if t, ok := teachers[pair.TeacherID]; ok {
			t.QualifiedSubjectIDs = append(t.QualifiedSubjectIDs, pair.SubjectID)
			teachers[pair.TeacherID] = t
		}
	}
	for id, subj := range subjects {
		sort.Strings(subj.QualifiedTeacherIDs)
		subjects[id] = subj
	}
	for id, t := range teachers {
		sort.Strings(t.QualifiedSubjectIDs)
		teachers[id] = t
	}

	rooms := make(map[string]models.Room, len(snap.Rooms))
	for _, room := range snap.Rooms {
		rooms[room.ID] = room
	}

	requirements := make(map[string][]models.GradeSubjectRequirement)
	for _, req := range snap.Requirements {
		requirements[req.GradeLevelID] = append(requirements[req.GradeLevelID], req)
	}

	s.mu.Lock()
	s.slots = slots
	s.ordered = ordered
	s.classRooms = classRooms
	s.subjects = subjects
	s.teachers = teachers
	s.rooms = rooms
	s.requirements = requirements
	s.mu.Unlock()
}

// ActiveTimeSlots lists active time slots ordered by slot order.
func (s *CatalogService) ActiveTimeSlots() []models.TimeSlot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.TimeSlot, 0, len(s.ordered))
	for _, slot := range s.ordered {
		if slot.Active {
			out = append(out, slot)
		}
	}
	return out
}

// TimeSlot returns an active time slot.
func (s *CatalogService) TimeSlot(id string) (models.TimeSlot, error) {
	s.mu.RLock()
	slot, ok := s.slots[id]
	s.mu.RUnlock()
	if !ok || !slot.Active {
		return models.TimeSlot{}, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("time slot %s not found", id))
	}
	return slot, nil
}

// SlotDuration derives a slot's length from its start and end times.
func (s *CatalogService) SlotDuration(id string) (time.Duration, error) {
	slot, err := s.TimeSlot(id)
	if err != nil {
		return 0, err
	}
	d, err := slot.Duration()
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid time slot times")
	}
	return d, nil
}

// ClassRoom returns an active classroom.
func (s *CatalogService) ClassRoom(id string) (models.ClassRoom, error) {
	s.mu.RLock()
	cr, ok := s.classRooms[id]
	s.mu.RUnlock()
	if !ok || !cr.Active {
		return models.ClassRoom{}, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("class room %s not found", id))
	}
	return cr, nil
}

// ClassRooms lists active classrooms ordered by id.
func (s *CatalogService) ClassRooms() []models.ClassRoom {
	s.mu.RLock()
	out := make([]models.ClassRoom, 0, len(s.classRooms))
	for _, cr := range s.classRooms {
		if cr.Active {
			out = append(out, cr)
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Subject returns a subject regardless of its active flag.
func (s *CatalogService) Subject(id string) (models.Subject, error) {
	s.mu.RLock()
	subj, ok := s.subjects[id]
	s.mu.RUnlock()
	if !ok {
		return models.Subject{}, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("subject %s not found", id))
	}
	return subj, nil
}

// Teacher returns a teacher regardless of its active flag.
func (s *CatalogService) Teacher(id string) (models.Teacher, error) {
	s.mu.RLock()
	t, ok := s.teachers[id]
	s.mu.RUnlock()
	if !ok {
		return models.Teacher{}, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("teacher %s not found", id))
	}
	return t, nil
}

// Room returns a room regardless of its active flag.
func (s *CatalogService) Room(id string) (models.Room, error) {
	s.mu.RLock()
	room, ok := s.rooms[id]
	s.mu.RUnlock()
	if !ok {
		return models.Room{}, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("room %s not found", id))
	}
	return room, nil
}

// ActiveTeachers lists active teachers ordered by id.
func (s *CatalogService) ActiveTeachers() []models.Teacher {
	s.mu.RLock()
	out := make([]models.Teacher, 0, len(s.teachers))
	for _, t := range s.teachers {
		if t.Active {
			out = append(out, t)
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ActiveRooms lists active rooms ordered by id.
func (s *CatalogService) ActiveRooms() []models.Room {
	s.mu.RLock()
	out := make([]models.Room, 0, len(s.rooms))
	for _, room := range s.rooms {
		if room.Active {
			out = append(out, room)
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ActiveSubjects lists active subjects ordered by id.
func (s *CatalogService) ActiveSubjects() []models.Subject {
	s.mu.RLock()
	out := make([]models.Subject, 0, len(s.subjects))
	for _, subj := range s.subjects {
		if subj.Active {
			out = append(out, subj)
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Requirements lists a grade's subject requirements.
func (s *CatalogService) Requirements(gradeLevelID string) []models.GradeSubjectRequirement {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src := s.requirements[gradeLevelID]
	out := make([]models.GradeSubjectRequirement, len(src))
	copy(out, src)
	return out
}

// QualifiedTeachers returns the active teachers qualified for a subject, sorted by id.
func (s *CatalogService) QualifiedTeachers(subjectID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	subj, ok := s.subjects[subjectID]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(subj.QualifiedTeacherIDs))
	for _, id := range subj.QualifiedTeacherIDs {
		if t, ok := s.teachers[id]; ok && t.Active {
			out = append(out, id)
		}
	}
	return out
}

// SetTeacherActive persists and applies a teacher's active flag.
func (s *CatalogService) SetTeacherActive(ctx context.Context, id string, active bool) error {
	if _, err := s.Teacher(id); err != nil {
		return err
	}
	if s.repo != nil {
		if err := s.repo.SetTeacherActive(ctx, id, active); err != nil {
			return catalogWriteError(err, "teacher")
		}
	}
	s.mu.Lock()
	t := s.teachers[id]
	t.Active = active
	s.teachers[id] = t
	s.mu.Unlock()
	return nil
}

// SetRoomActive persists and applies a room's active flag.
func (s *CatalogService) SetRoomActive(ctx context.Context, id string, active bool) error {
	if _, err := s.Room(id); err != nil {
		return err
	}
	if s.repo != nil {
		if err := s.repo.SetRoomActive(ctx, id, active); err != nil {
			return catalogWriteError(err, "room")
		}
	}
	s.mu.Lock()
	room := s.rooms[id]
	room.Active = active
	s.rooms[id] = room
	s.mu.Unlock()
	return nil
}

func catalogWriteError(err error, kind string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, kind+" not found")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update "+kind)
}
