package dto

import "github.com/noah-isme/sma-timetable-api/internal/models"

// PlaceEntryRequest is the payload for assigning a cell.
type PlaceEntryRequest struct {
	SubjectID string          `json:"subject_id,omitempty"`
	TeacherID string          `json:"teacher_id,omitempty"`
	RoomID    string          `json:"room_id,omitempty"`
	SlotType  models.SlotType `json:"slot_type,omitempty" validate:"omitempty,oneof=LESSON ACTIVITY BREAK LUNCH ASSEMBLY FREE"`
	Notes     string          `json:"notes,omitempty" validate:"max=500"`
}

// PlaceEntryResult reports the saved entry together with any conflicts it created.
type PlaceEntryResult struct {
	Saved     models.TimetableEntry `json:"saved"`
	Conflicts models.ConflictResult `json:"conflicts"`
}

// ClearTimetableRequest confirms a whole-classroom wipe.
type ClearTimetableRequest struct {
	Confirm bool `json:"confirm"`
}

// ClearTimetableResponse reports how many cells were removed.
type ClearTimetableResponse struct {
	ClassRoomID  string `json:"class_room_id"`
	CountRemoved int    `json:"count_removed"`
}

// CheckConflictsRequest is a speculative validation issued while a candidate is being edited.
type CheckConflictsRequest struct {
	models.ConflictCandidate
	SessionID string `json:"session_id,omitempty" validate:"omitempty,max=128"`
	Sequence  uint64 `json:"sequence,omitempty"`
}

// CheckConflictsResponse carries the result and whether the caller should apply it.
type CheckConflictsResponse struct {
	Applied  bool                   `json:"applied"`
	Stale    bool                   `json:"stale"`
	Sequence uint64                 `json:"sequence,omitempty"`
	Result   *models.ConflictResult `json:"result,omitempty"`
}

// TimetableView is a classroom grid plus the catalog metadata needed to render it.
type TimetableView struct {
	ClassRoom models.ClassRoom        `json:"class_room"`
	TimeSlots []models.TimeSlot       `json:"time_slots"`
	Weekdays  []int                   `json:"weekdays"`
	Entries   []models.TimetableEntry `json:"entries"`
}

// SweepResponse wraps a full-grid conflict pass.
type SweepResponse struct {
	ClassRoomID string             `json:"class_room_id"`
	Total       int                `json:"total"`
	Cells       models.SweepResult `json:"cells"`
}

// DeactivateResourceResponse is returned once a teacher or room has been deactivated.
type DeactivateResourceResponse struct {
	ID     string `json:"id"`
	Active bool   `json:"active"`
}
