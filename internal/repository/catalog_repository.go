package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// CatalogRepository loads the scheduling catalog.
type CatalogRepository struct {
	db *sqlx.DB
}

// NewCatalogRepository creates a catalog repository.
func NewCatalogRepository(db *sqlx.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// ListTimeSlots returns every time slot ordered by slot order.
func (r *CatalogRepository) ListTimeSlots(ctx context.Context) ([]models.TimeSlot, error) {
	const query = `SELECT id, name, slot_order, start_time, end_time, slot_type, active FROM time_slots ORDER BY slot_order ASC`
	var slots []models.TimeSlot
	if err := r.db.SelectContext(ctx, &slots, query); err != nil {
		return nil, fmt.Errorf("list time slots: %w", err)
	}
	return slots, nil
}

// ListClassRooms returns every classroom.
func (r *CatalogRepository) ListClassRooms(ctx context.Context) ([]models.ClassRoom, error) {
	const query = `SELECT id, name, grade_level_id, academic_period_id, capacity, active FROM class_rooms ORDER BY name ASC`
	var rooms []models.ClassRoom
	if err := r.db.SelectContext(ctx, &rooms, query); err != nil {
		return nil, fmt.Errorf("list class rooms: %w", err)
	}
	return rooms, nil
}

// ListSubjects returns every subject.
func (r *CatalogRepository) ListSubjects(ctx context.Context) ([]models.Subject, error) {
	const query = `SELECT id, code, name, active FROM subjects ORDER BY code ASC`
	var subjects []models.Subject
	if err := r.db.SelectContext(ctx, &subjects, query); err != nil {
		return nil, fmt.Errorf("list subjects: %w", err)
	}
	return subjects, nil
}

// ListTeachers returns every teacher.
func (r *CatalogRepository) ListTeachers(ctx context.Context) ([]models.Teacher, error) {
	const query = `SELECT id, full_name, active FROM teachers ORDER BY full_name ASC`
	var teachers []models.Teacher
	if err := r.db.SelectContext(ctx, &teachers, query); err != nil {
		return nil, fmt.Errorf("list teachers: %w", err)
	}
	return teachers, nil
}

// ListRooms returns every bookable room.
func (r *CatalogRepository) ListRooms(ctx context.Context) ([]models.Room, error) {
	const query = `SELECT id, name, capacity, room_type, active FROM rooms ORDER BY name ASC`
	var rooms []models.Room
	if err := r.db.SelectContext(ctx, &rooms, query); err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	return rooms, nil
}

// ListQualifications returns the teacher/subject qualification relation.
func (r *CatalogRepository) ListQualifications(ctx context.Context) ([]models.TeacherSubject, error) {
	const query = `SELECT teacher_id, subject_id FROM teacher_subjects ORDER BY teacher_id ASC, subject_id ASC`
	var pairs []models.TeacherSubject
	if err := r.db.SelectContext(ctx, &pairs, query); err != nil {
		return nil, fmt.Errorf("list teacher subjects: %w", err)
	}
	return pairs, nil
}

// ListRequirements returns every grade subject requirement.
func (r *CatalogRepository) ListRequirements(ctx context.Context) ([]models.GradeSubjectRequirement, error) {
	const query = `SELECT grade_level_id, subject_id, weekly_hours FROM grade_subject_requirements ORDER BY grade_level_id ASC, subject_id ASC`
	var reqs []models.GradeSubjectRequirement
	if err := r.db.SelectContext(ctx, &reqs, query); err != nil {
		return nil, fmt.Errorf("list grade subject requirements: %w", err)
	}
	return reqs, nil
}

// SetTeacherActive toggles the active flag of a teacher.
func (r *CatalogRepository) SetTeacherActive(ctx context.Context, id string, active bool) error {
	return r.setActive(ctx, "teachers", id, active)
}

// SetRoomActive toggles the active flag of a room.
func (r *CatalogRepository) SetRoomActive(ctx context.Context, id string, active bool) error {
	return r.setActive(ctx, "rooms", id, active)
}

func (r *CatalogRepository) setActive(ctx context.Context, table, id string, active bool) error {
	query := fmt.Sprintf("UPDATE %s SET active = $2, updated_at = $3 WHERE id = $1", table)
	result, err := r.db.ExecContext(ctx, query, id, active, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update %s active: %w", table, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update %s active rows: %w", table, err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
