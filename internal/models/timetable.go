package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// CellKey addresses one cell of a classroom grid.
type CellKey struct {
	Weekday    int    `json:"weekday"`
	TimeSlotID string `json:"time_slot_id"`
}

// String renders the key as "weekday/timeSlotID".
func (k CellKey) String() string {
	return strconv.Itoa(k.Weekday) + "/" + k.TimeSlotID
}

// MarshalText lets CellKey act as a JSON object key.
func (k CellKey) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText parses the "weekday/timeSlotID" form.
func (k *CellKey) UnmarshalText(text []byte) error {
	day, slot, ok := strings.Cut(string(text), "/")
	if !ok || slot == "" {
		return fmt.Errorf("invalid cell key %q", string(text))
	}
	weekday, err := strconv.Atoi(day)
	if err != nil {
		return fmt.Errorf("invalid cell key weekday %q: %w", day, err)
	}
	k.Weekday = weekday
	k.TimeSlotID = slot
	return nil
}

// EntryKey is the unique identity of a timetable entry.
type EntryKey struct {
	ClassRoomID string `json:"class_room_id"`
	Weekday     int    `json:"weekday"`
	TimeSlotID  string `json:"time_slot_id"`
}

// Cell drops the classroom from the key.
func (k EntryKey) Cell() CellKey {
	return CellKey{Weekday: k.Weekday, TimeSlotID: k.TimeSlotID}
}

func (k EntryKey) String() string {
	return k.ClassRoomID + "@" + k.Cell().String()
}

// TimetableEntry is the subject/teacher/room assignment for one cell.
type TimetableEntry struct {
	ID          string    `db:"id" json:"id"`
	ClassRoomID string    `db:"class_room_id" json:"class_room_id"`
	Weekday     int       `db:"weekday" json:"weekday"`
	TimeSlotID  string    `db:"time_slot_id" json:"time_slot_id"`
	SubjectID   *string   `db:"subject_id" json:"subject_id,omitempty"`
	TeacherID   *string   `db:"teacher_id" json:"teacher_id,omitempty"`
	RoomID      *string   `db:"room_id" json:"room_id,omitempty"`
	SlotType    SlotType  `db:"slot_type" json:"slot_type"`
	Notes       *string   `db:"notes" json:"notes,omitempty"`
	Version     int       `db:"version" json:"version"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// Key returns the entry identity.
func (e TimetableEntry) Key() EntryKey {
	return EntryKey{ClassRoomID: e.ClassRoomID, Weekday: e.Weekday, TimeSlotID: e.TimeSlotID}
}

// Teacher returns the teacher id or "" when unstaffed.
func (e TimetableEntry) Teacher() string {
	return deref(e.TeacherID)
}

// Room returns the room id or "" when the classroom hosts the lesson itself.
func (e TimetableEntry) Room() string {
	return deref(e.RoomID)
}

// Subject returns the subject id or "" for placeholders.
func (e TimetableEntry) Subject() string {
	return deref(e.SubjectID)
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

// StringPtr returns nil for empty strings.
func StringPtr(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

// ConflictDimension names the shared resource of a conflict.
type ConflictDimension string

const (
	ConflictTeacher ConflictDimension = "TEACHER"
	ConflictRoom    ConflictDimension = "ROOM"
)

// Conflict describes a competing entry in another classroom.
type Conflict struct {
	Dimension  ConflictDimension `json:"dimension"`
	ResourceID string            `json:"resource_id"`
	Entry      TimetableEntry    `json:"entry"`
}

// ConflictCandidate is a prospective placement used for advisory validation.
type ConflictCandidate struct {
	ClassRoomID string `json:"class_room_id" validate:"required"`
	Weekday     int    `json:"weekday" validate:"gte=0,lte=7"`
	TimeSlotID  string `json:"time_slot_id" validate:"required"`
	TeacherID   string `json:"teacher_id,omitempty"`
	RoomID      string `json:"room_id,omitempty"`
}

// ConflictResult combines teacher and room checks for one candidate.
type ConflictResult struct {
	TeacherConflicts []TimetableEntry `json:"teacher_conflicts"`
	RoomConflicts    []TimetableEntry `json:"room_conflicts"`
	HasConflicts     bool             `json:"has_conflicts"`
}

// Conflicts flattens the result into dimension-tagged conflicts.
func (r ConflictResult) Conflicts(teacherID, roomID string) []Conflict {
	out := make([]Conflict, 0, len(r.TeacherConflicts)+len(r.RoomConflicts))
	for _, e := range r.TeacherConflicts {
		out = append(out, Conflict{Dimension: ConflictTeacher, ResourceID: teacherID, Entry: e})
	}
	for _, e := range r.RoomConflicts {
		out = append(out, Conflict{Dimension: ConflictRoom, ResourceID: roomID, Entry: e})
	}
	return out
}

// SweepResult maps every occupied cell of a classroom to its conflicts.
type SweepResult map[CellKey][]Conflict

// Total counts conflicts across all cells.
func (r SweepResult) Total() int {
	total := 0
	for _, items := range r {
		total += len(items)
	}
	return total
}
