package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

func newTimetableRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

var timetableRowColumns = []string{"id", "class_room_id", "weekday", "time_slot_id", "subject_id", "teacher_id", "room_id", "slot_type", "notes", "version", "created_at", "updated_at"}

func TestTimetableRepositoryFindByKey(t *testing.T) {
	db, mock, cleanup := newTimetableRepoMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(timetableRowColumns).
		AddRow("e1", "10A", 1, "p1", "math", "t1", nil, "LESSON", nil, 2, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM timetable_entries WHERE class_room_id = $1 AND weekday = $2 AND time_slot_id = $3")).
		WithArgs("10A", 1, "p1").
		WillReturnRows(rows)

	entry, err := repo.FindByKey(context.Background(), models.EntryKey{ClassRoomID: "10A", Weekday: 1, TimeSlotID: "p1"})
	require.NoError(t, err)
	assert.Equal(t, "math", entry.Subject())
	assert.Equal(t, "t1", entry.Teacher())
	assert.Nil(t, entry.RoomID)
	assert.Equal(t, 2, entry.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableRepositoryFindByKeyMissing(t *testing.T) {
	db, mock, cleanup := newTimetableRepoMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	mock.ExpectQuery("FROM timetable_entries").WillReturnRows(sqlmock.NewRows(timetableRowColumns))

	_, err := repo.FindByKey(context.Background(), models.EntryKey{ClassRoomID: "10A", Weekday: 1, TimeSlotID: "p1"})
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableRepositoryUpsertAssignsVersion(t *testing.T) {
	db, mock, cleanup := newTimetableRepoMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	created := time.Now().Add(-time.Hour)
	mock.ExpectQuery("INSERT INTO timetable_entries").
		WithArgs(sqlmock.AnyArg(), "10A", 1, "p1", "math", "t1", nil, "LESSON", nil, sqlmock.AnyArg(), sqlmock.AnyArg(), 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "version", "created_at"}).AddRow("e1", 1, created))

	entry := &models.TimetableEntry{
		ClassRoomID: "10A",
		Weekday:     1,
		TimeSlotID:  "p1",
		SubjectID:   models.StringPtr("math"),
		TeacherID:   models.StringPtr("t1"),
		SlotType:    models.SlotTypeLesson,
	}
	require.NoError(t, repo.Upsert(context.Background(), entry, 0))
	assert.Equal(t, "e1", entry.ID)
	assert.Equal(t, 1, entry.Version)
	assert.Equal(t, created, entry.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableRepositoryUpsertStaleVersion(t *testing.T) {
	db, mock, cleanup := newTimetableRepoMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	mock.ExpectQuery("INSERT INTO timetable_entries").
		WillReturnRows(sqlmock.NewRows([]string{"id", "version", "created_at"}))

	entry := &models.TimetableEntry{ClassRoomID: "10A", Weekday: 1, TimeSlotID: "p1", SlotType: models.SlotTypeLesson}
	err := repo.Upsert(context.Background(), entry, 3)
	assert.ErrorIs(t, err, ErrStaleVersion)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableRepositoryDelete(t *testing.T) {
	db, mock, cleanup := newTimetableRepoMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM timetable_entries WHERE class_room_id = $1 AND weekday = $2 AND time_slot_id = $3")).
		WithArgs("10A", 1, "p1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	removed, err := repo.Delete(context.Background(), models.EntryKey{ClassRoomID: "10A", Weekday: 1, TimeSlotID: "p1"})
	require.NoError(t, err)
	assert.False(t, removed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableRepositoryDeleteByClassRoom(t *testing.T) {
	db, mock, cleanup := newTimetableRepoMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM timetable_entries WHERE class_room_id = $1")).
		WithArgs("10A").
		WillReturnResult(sqlmock.NewResult(0, 7))

	count, err := repo.DeleteByClassRoom(context.Background(), "10A")
	require.NoError(t, err)
	assert.Equal(t, 7, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableRepositoryListByTeacherSlotExcludesClassRoom(t *testing.T) {
	db, mock, cleanup := newTimetableRepoMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(timetableRowColumns).
		AddRow("e2", "10B", 1, "p1", "science", "t1", nil, "LESSON", nil, 1, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE teacher_id = $1 AND weekday = $2 AND time_slot_id = $3 AND class_room_id <> $4")).
		WithArgs("t1", 1, "p1", "10A").
		WillReturnRows(rows)

	list, err := repo.ListByTeacherSlot(context.Background(), "t1", 1, "p1", "10A")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "10B", list[0].ClassRoomID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableRepositoryListByRoomSlot(t *testing.T) {
	db, mock, cleanup := newTimetableRepoMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE room_id = $1 AND weekday = $2 AND time_slot_id = $3 AND class_room_id <> $4")).
		WithArgs("lab", 2, "p3", "10A").
		WillReturnRows(sqlmock.NewRows(timetableRowColumns))

	list, err := repo.ListByRoomSlot(context.Background(), "lab", 2, "p3", "10A")
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.NoError(t, mock.ExpectationsWereMet())
}
