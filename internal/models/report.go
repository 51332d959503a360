package models

import "time"

// ConflictReport is the display-ready conflict summary of one classroom.
type ConflictReport struct {
	ClassRoomID string          `json:"class_room_id"`
	Total       int             `json:"total"`
	Groups      []ConflictGroup `json:"groups"`
	GeneratedAt time.Time       `json:"generated_at"`
}

// ConflictGroup gathers the conflicts of one weekday/time slot.
type ConflictGroup struct {
	Weekday    int              `json:"weekday"`
	TimeSlotID string           `json:"time_slot_id"`
	SlotName   string           `json:"slot_name"`
	StartTime  string           `json:"start_time"`
	EndTime    string           `json:"end_time"`
	Items      []ConflictDetail `json:"items"`
}

// ConflictDetail decorates a conflict with human-oriented names.
type ConflictDetail struct {
	Dimension ConflictDimension `json:"dimension"`
	// Own describes this classroom's entry, Other the competing one.
	Own   EntryDetail `json:"own"`
	Other EntryDetail `json:"other"`
}

// EntryDetail is an entry with resolved display names.
type EntryDetail struct {
	EntryID       string `json:"entry_id"`
	ClassRoomID   string `json:"class_room_id"`
	ClassRoomName string `json:"class_room_name"`
	GradeLevelID  string `json:"grade_level_id"`
	SubjectID     string `json:"subject_id,omitempty"`
	SubjectName   string `json:"subject_name,omitempty"`
	TeacherID     string `json:"teacher_id,omitempty"`
	TeacherName   string `json:"teacher_name,omitempty"`
	RoomID        string `json:"room_id,omitempty"`
	RoomName      string `json:"room_name,omitempty"`
}
