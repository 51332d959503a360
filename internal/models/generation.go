package models

// Shortfall reasons reported by the generator.
const (
	ShortfallNoQualifiedTeacher = "NO_QUALIFIED_TEACHER"
	ShortfallNoFreeCell         = "NO_CONFLICT_FREE_CELL"
	ShortfallLostRace           = "CELL_TAKEN_BEFORE_COMMIT"
)

// UnmetRequirement records quota occurrences that could not be placed.
type UnmetRequirement struct {
	SubjectID    string `json:"subject_id"`
	MissingCount int    `json:"missing_count"`
	Reason       string `json:"reason,omitempty"`
}

// GenerationResult summarises one generation run.
type GenerationResult struct {
	ClassRoomID    string             `json:"class_room_id"`
	EntriesCreated int                `json:"entries_created"`
	FixedEntries   int                `json:"fixed_entries"`
	Unmet          []UnmetRequirement `json:"unmet"`
	Entries        []TimetableEntry   `json:"entries,omitempty"`
}
