package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// ErrStaleVersion is returned when an upsert's expected version no longer matches the stored row.
var ErrStaleVersion = errors.New("timetable entry version mismatch")

const timetableColumns = `id, class_room_id, weekday, time_slot_id, subject_id, teacher_id, room_id, slot_type, notes, version, created_at, updated_at`

// TimetableRepository persists timetable entries keyed by (class_room_id, weekday, time_slot_id).
type TimetableRepository struct {
	db *sqlx.DB
}

// NewTimetableRepository creates a timetable repository.
func NewTimetableRepository(db *sqlx.DB) *TimetableRepository {
	return &TimetableRepository{db: db}
}

// FindByKey loads one cell. It returns sql.ErrNoRows when the cell is open.
func (r *TimetableRepository) FindByKey(ctx context.Context, key models.EntryKey) (*models.TimetableEntry, error) {
	query := `SELECT ` + timetableColumns + ` FROM timetable_entries WHERE class_room_id = $1 AND weekday = $2 AND time_slot_id = $3`
	var entry models.TimetableEntry
	if err := r.db.GetContext(ctx, &entry, query, key.ClassRoomID, key.Weekday, key.TimeSlotID); err != nil {
		return nil, err
	}
	return &entry, nil
}

// Upsert writes the entry when the stored version equals expectedVersion. An expected
// version of zero requires the cell to be open. On success the entry carries the stored
// id, version and timestamps.
func (r *TimetableRepository) Upsert(ctx context.Context, entry *models.TimetableEntry, expectedVersion int) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	entry.UpdatedAt = now

	const query = `INSERT INTO timetable_entries (id, class_room_id, weekday, time_slot_id, subject_id, teacher_id, room_id, slot_type, notes, version, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 1, $10, $11)
ON CONFLICT (class_room_id, weekday, time_slot_id) DO UPDATE SET
subject_id = EXCLUDED.subject_id, teacher_id = EXCLUDED.teacher_id, room_id = EXCLUDED.room_id,
slot_type = EXCLUDED.slot_type, notes = EXCLUDED.notes, version = timetable_entries.version + 1, updated_at = EXCLUDED.updated_at
WHERE timetable_entries.version = $12
RETURNING id, version, created_at`

	row := r.db.QueryRowxContext(ctx, query,
		entry.ID, entry.ClassRoomID, entry.Weekday, entry.TimeSlotID,
		entry.SubjectID, entry.TeacherID, entry.RoomID, entry.SlotType, entry.Notes,
		entry.CreatedAt, entry.UpdatedAt, expectedVersion,
	)
	if err := row.Scan(&entry.ID, &entry.Version, &entry.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrStaleVersion
		}
		return fmt.Errorf("upsert timetable entry: %w", err)
	}
	return nil
}

// Delete removes one cell and reports whether a row existed.
func (r *TimetableRepository) Delete(ctx context.Context, key models.EntryKey) (bool, error) {
	const query = `DELETE FROM timetable_entries WHERE class_room_id = $1 AND weekday = $2 AND time_slot_id = $3`
	result, err := r.db.ExecContext(ctx, query, key.ClassRoomID, key.Weekday, key.TimeSlotID)
	if err != nil {
		return false, fmt.Errorf("delete timetable entry: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete timetable entry rows: %w", err)
	}
	return affected > 0, nil
}

// DeleteByClassRoom removes every entry of a classroom and returns the count removed.
func (r *TimetableRepository) DeleteByClassRoom(ctx context.Context, classRoomID string) (int, error) {
	const query = `DELETE FROM timetable_entries WHERE class_room_id = $1`
	result, err := r.db.ExecContext(ctx, query, classRoomID)
	if err != nil {
		return 0, fmt.Errorf("clear timetable: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("clear timetable rows: %w", err)
	}
	return int(affected), nil
}

// ListByClassRoom returns a classroom's entries ordered by weekday and time slot.
func (r *TimetableRepository) ListByClassRoom(ctx context.Context, classRoomID string) ([]models.TimetableEntry, error) {
	query := `SELECT ` + timetableColumns + ` FROM timetable_entries WHERE class_room_id = $1 ORDER BY weekday ASC, time_slot_id ASC`
	var entries []models.TimetableEntry
	if err := r.db.SelectContext(ctx, &entries, query, classRoomID); err != nil {
		return nil, fmt.Errorf("list timetable by class room: %w", err)
	}
	return entries, nil
}

// ListAll returns every stored entry, used to hydrate the in-memory index.
func (r *TimetableRepository) ListAll(ctx context.Context) ([]models.TimetableEntry, error) {
	query := `SELECT ` + timetableColumns + ` FROM timetable_entries ORDER BY class_room_id ASC, weekday ASC, time_slot_id ASC`
	var entries []models.TimetableEntry
	if err := r.db.SelectContext(ctx, &entries, query); err != nil {
		return nil, fmt.Errorf("list timetable entries: %w", err)
	}
	return entries, nil
}

// ListByTeacherSlot returns the teacher's entries at a weekday/slot outside the excluded classroom.
func (r *TimetableRepository) ListByTeacherSlot(ctx context.Context, teacherID string, weekday int, timeSlotID, excludeClassRoomID string) ([]models.TimetableEntry, error) {
	query := `SELECT ` + timetableColumns + ` FROM timetable_entries WHERE teacher_id = $1 AND weekday = $2 AND time_slot_id = $3 AND class_room_id <> $4 ORDER BY class_room_id ASC`
	var entries []models.TimetableEntry
	if err := r.db.SelectContext(ctx, &entries, query, teacherID, weekday, timeSlotID, excludeClassRoomID); err != nil {
		return nil, fmt.Errorf("list timetable by teacher slot: %w", err)
	}
	return entries, nil
}

// ListByRoomSlot returns the room's entries at a weekday/slot outside the excluded classroom.
func (r *TimetableRepository) ListByRoomSlot(ctx context.Context, roomID string, weekday int, timeSlotID, excludeClassRoomID string) ([]models.TimetableEntry, error) {
	query := `SELECT ` + timetableColumns + ` FROM timetable_entries WHERE room_id = $1 AND weekday = $2 AND time_slot_id = $3 AND class_room_id <> $4 ORDER BY class_room_id ASC`
	var entries []models.TimetableEntry
	if err := r.db.SelectContext(ctx, &entries, query, roomID, weekday, timeSlotID, excludeClassRoomID); err != nil {
		return nil, fmt.Errorf("list timetable by room slot: %w", err)
	}
	return entries, nil
}
