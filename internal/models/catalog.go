package models

import (
	"fmt"
	"time"
)

// SlotType classifies a segment of the school day.
type SlotType string

const (
	SlotTypeLesson   SlotType = "LESSON"
	SlotTypeActivity SlotType = "ACTIVITY"
	SlotTypeBreak    SlotType = "BREAK"
	SlotTypeLunch    SlotType = "LUNCH"
	SlotTypeAssembly SlotType = "ASSEMBLY"
	SlotTypeFree     SlotType = "FREE"
)

// Valid reports whether t is a known slot type.
func (t SlotType) Valid() bool {
	switch t {
	case SlotTypeLesson, SlotTypeActivity, SlotTypeBreak, SlotTypeLunch, SlotTypeAssembly, SlotTypeFree:
		return true
	}
	return false
}

// Assignable reports whether subjects may be placed in slots of this type.
func (t SlotType) Assignable() bool {
	return t == SlotTypeLesson || t == SlotTypeActivity
}

// Fixed reports whether the generator pre-populates slots of this type as placeholders.
func (t SlotType) Fixed() bool {
	return t == SlotTypeBreak || t == SlotTypeLunch || t == SlotTypeAssembly
}

// TimeSlot is an ordered segment of the school day. Times use "15:04" notation.
type TimeSlot struct {
	ID        string   `db:"id" json:"id"`
	Name      string   `db:"name" json:"name"`
	SlotOrder int      `db:"slot_order" json:"slot_order"`
	StartTime string   `db:"start_time" json:"start_time"`
	EndTime   string   `db:"end_time" json:"end_time"`
	Type      SlotType `db:"slot_type" json:"type"`
	Active    bool     `db:"active" json:"active"`
}

// Duration derives the slot length from its start and end times.
func (s TimeSlot) Duration() (time.Duration, error) {
	start, err := parseClock(s.StartTime)
	if err != nil {
		return 0, fmt.Errorf("time slot %s start: %w", s.ID, err)
	}
	end, err := parseClock(s.EndTime)
	if err != nil {
		return 0, fmt.Errorf("time slot %s end: %w", s.ID, err)
	}
	if !end.After(start) {
		return 0, fmt.Errorf("time slot %s ends before it starts", s.ID)
	}
	return end.Sub(start), nil
}

func parseClock(raw string) (time.Time, error) {
	if t, err := time.Parse("15:04", raw); err == nil {
		return t, nil
	}
	return time.Parse("15:04:05", raw)
}

// ClassRoom is one grade+section grouping scoped to an academic period.
type ClassRoom struct {
	ID               string `db:"id" json:"id"`
	Name             string `db:"name" json:"name"`
	GradeLevelID     string `db:"grade_level_id" json:"grade_level_id"`
	AcademicPeriodID string `db:"academic_period_id" json:"academic_period_id"`
	Capacity         int    `db:"capacity" json:"capacity"`
	Active           bool   `db:"active" json:"active"`
}

// Subject is an academic subject and the teachers qualified to teach it.
type Subject struct {
	ID                  string   `db:"id" json:"id"`
	Code                string   `db:"code" json:"code"`
	Name                string   `db:"name" json:"name"`
	Active              bool     `db:"active" json:"active"`
	QualifiedTeacherIDs []string `db:"-" json:"qualified_teacher_ids,omitempty"`
}

// Teacher is an instructor and the subjects they are qualified for.
type Teacher struct {
	ID                  string   `db:"id" json:"id"`
	FullName            string   `db:"full_name" json:"full_name"`
	Active              bool     `db:"active" json:"active"`
	QualifiedSubjectIDs []string `db:"-" json:"qualified_subject_ids,omitempty"`
}

// Room is a bookable physical space.
type Room struct {
	ID       string `db:"id" json:"id"`
	Name     string `db:"name" json:"name"`
	Capacity int    `db:"capacity" json:"capacity"`
	Type     string `db:"room_type" json:"type"`
	Active   bool   `db:"active" json:"active"`
}

// TeacherSubject is one row of the teacher/subject qualification relation.
type TeacherSubject struct {
	TeacherID string `db:"teacher_id" json:"teacher_id"`
	SubjectID string `db:"subject_id" json:"subject_id"`
}

// GradeSubjectRequirement is the weekly lesson target for a subject within a grade.
type GradeSubjectRequirement struct {
	GradeLevelID string `db:"grade_level_id" json:"grade_level_id"`
	SubjectID    string `db:"subject_id" json:"subject_id"`
	WeeklyHours  int    `db:"weekly_hours" json:"weekly_hours"`
}
