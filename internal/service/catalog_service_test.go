package service

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

func TestCatalogServiceReload(t *testing.T) {
	repo := &catalogRepoStub{snap: fixtureSnapshot()}
	repo.snap.TimeSlots = append(repo.snap.TimeSlots, models.TimeSlot{ID: "old", SlotOrder: 0, Type: models.SlotTypeLesson, Active: false})
	svc := NewCatalogService(repo, zap.NewNop())

	require.NoError(t, svc.Reload(context.Background()))

	slots := svc.ActiveTimeSlots()
	require.Len(t, slots, 3)
	assert.Equal(t, []string{"p1", "brk", "p2"}, []string{slots[0].ID, slots[1].ID, slots[2].ID})
	_, err := svc.TimeSlot("old")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	assert.Equal(t, []string{"T1", "T2"}, svc.QualifiedTeachers("science"))
	assert.Equal(t, []string{"T1"}, svc.QualifiedTeachers("math"))
	assert.Empty(t, svc.QualifiedTeachers("art"))
	assert.Len(t, svc.Requirements("grade-10"), 1)
	assert.Len(t, svc.ActiveTeachers(), 2)
	assert.Len(t, svc.ClassRooms(), 3)
}

func TestLoadSnapshotFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	raw := `{
		"time_slots": [{"id": "p1", "slot_order": 1, "start_time": "07:00", "end_time": "07:45", "type": "LESSON", "active": true}],
		"class_rooms": [{"id": "X", "name": "X-A", "grade_level_id": "grade-10", "active": true}],
		"subjects": [{"id": "math", "name": "Mathematics", "active": true}],
		"teachers": [{"id": "T1", "full_name": "Budi Santoso", "active": true}],
		"qualifications": [{"teacher_id": "T1", "subject_id": "math"}],
		"requirements": [{"grade_level_id": "grade-10", "subject_id": "math", "weekly_hours": 2}]
	}`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o600))

	snap, err := LoadSnapshotFile(path)
	require.NoError(t, err)
	svc := NewCatalogService(nil, zap.NewNop())
	svc.Load(snap)

	assert.Equal(t, []string{"T1"}, svc.QualifiedTeachers("math"))
	assert.Len(t, svc.Requirements("grade-10"), 1)
	d, err := svc.SlotDuration("p1")
	require.NoError(t, err)
	assert.Equal(t, 45*time.Minute, d)

	_, err = LoadSnapshotFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestCatalogServiceReloadFailure(t *testing.T) {
	repo := &catalogRepoStub{err: errors.New("relation \"teachers\" does not exist")}
	svc := NewCatalogService(repo, zap.NewNop())

	err := svc.Reload(context.Background())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)
	assert.Empty(t, svc.ActiveTimeSlots())
}

func TestCatalogServiceQualificationsMergeBothSides(t *testing.T) {
	snap := fixtureSnapshot()
	snap.Qualifications = nil
	snap.Subjects[2].QualifiedTeacherIDs = []string{"T2"}
	snap.Teachers[0].QualifiedSubjectIDs = []string{"art"}
	svc := NewCatalogService(nil, zap.NewNop())
	svc.Load(snap)

	assert.Equal(t, []string{"T1", "T2"}, svc.QualifiedTeachers("art"))
}

func TestCatalogServiceInactiveTeacherNotQualified(t *testing.T) {
	snap := fixtureSnapshot()
	snap.Qualifications = append(snap.Qualifications, models.TeacherSubject{TeacherID: "T9", SubjectID: "math"})
	svc := NewCatalogService(nil, zap.NewNop())
	svc.Load(snap)

	assert.Equal(t, []string{"T1"}, svc.QualifiedTeachers("math"))
}

func TestCatalogServiceSlotDuration(t *testing.T) {
	svc := NewCatalogService(nil, zap.NewNop())
	svc.Load(fixtureSnapshot())

	d, err := svc.SlotDuration("p1")
	require.NoError(t, err)
	assert.Equal(t, 45*time.Minute, d)

	_, err = svc.SlotDuration("missing")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestCatalogServiceSetActivePersistsFirst(t *testing.T) {
	repo := &catalogRepoStub{snap: fixtureSnapshot()}
	svc := NewCatalogService(repo, zap.NewNop())
	require.NoError(t, svc.Reload(context.Background()))

	require.NoError(t, svc.SetTeacherActive(context.Background(), "T2", false))
	assert.Equal(t, []string{"T2"}, repo.deactivated)
	teacher, err := svc.Teacher("T2")
	require.NoError(t, err)
	assert.False(t, teacher.Active)

	repo.writeErr = sql.ErrNoRows
	err = svc.SetRoomActive(context.Background(), "lab", false)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
	room, err := svc.Room("lab")
	require.NoError(t, err)
	assert.True(t, room.Active, "memory untouched when the write fails")
}

// --- Fixtures ---

type catalogRepoStub struct {
	snap        CatalogSnapshot
	err         error
	writeErr    error
	deactivated []string
}

func (s *catalogRepoStub) ListTimeSlots(ctx context.Context) ([]models.TimeSlot, error) {
	return s.snap.TimeSlots, s.err
}

func (s *catalogRepoStub) ListClassRooms(ctx context.Context) ([]models.ClassRoom, error) {
	return s.snap.ClassRooms, s.err
}

func (s *catalogRepoStub) ListSubjects(ctx context.Context) ([]models.Subject, error) {
	return s.snap.Subjects, s.err
}

func (s *catalogRepoStub) ListTeachers(ctx context.Context) ([]models.Teacher, error) {
	return s.snap.Teachers, s.err
}

func (s *catalogRepoStub) ListRooms(ctx context.Context) ([]models.Room, error) {
	return s.snap.Rooms, s.err
}

func (s *catalogRepoStub) ListQualifications(ctx context.Context) ([]models.TeacherSubject, error) {
	return s.snap.Qualifications, s.err
}

func (s *catalogRepoStub) ListRequirements(ctx context.Context) ([]models.GradeSubjectRequirement, error) {
	return s.snap.Requirements, s.err
}

func (s *catalogRepoStub) SetTeacherActive(ctx context.Context, id string, active bool) error {
	if s.writeErr != nil {
		return s.writeErr
	}
	if !active {
		s.deactivated = append(s.deactivated, id)
	}
	return nil
}

func (s *catalogRepoStub) SetRoomActive(ctx context.Context, id string, active bool) error {
	if s.writeErr != nil {
		return s.writeErr
	}
	if !active {
		s.deactivated = append(s.deactivated, id)
	}
	return nil
}
