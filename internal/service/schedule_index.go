package service

import (
	"sort"
	"sync"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

// resourceCell addresses one teacher or room at one weekday/time slot.
type resourceCell struct {
	resourceID string
	cell       models.CellKey
}

// classSet holds the classrooms booking a resource cell.
type classSet map[string]struct{}

// ScheduleIndex owns every classroom grid plus teacher and room secondary indices.
// All mutations update the grid and both indices under one write lock.
type ScheduleIndex struct {
	mu        sync.RWMutex
	grid      map[string]map[models.CellKey]models.TimetableEntry
	byTeacher map[resourceCell]classSet
	byRoom    map[resourceCell]classSet

	cells cellLocks
}

// NewScheduleIndex builds an empty index.
func NewScheduleIndex() *ScheduleIndex {
	return &ScheduleIndex{
		grid:      make(map[string]map[models.CellKey]models.TimetableEntry),
		byTeacher: make(map[resourceCell]classSet),
		byRoom:    make(map[resourceCell]classSet),
		cells:     cellLocks{locks: make(map[models.EntryKey]*cellLock)},
	}
}

// Get returns the entry at key.
func (x *ScheduleIndex) Get(key models.EntryKey) (models.TimetableEntry, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	entry, ok := x.grid[key.ClassRoomID][key.Cell()]
	return entry, ok
}

// Upsert replaces any entry at the entry's key and returns the previous value.
func (x *ScheduleIndex) Upsert(entry models.TimetableEntry) (models.TimetableEntry, bool) {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.upsertLocked(entry)
}

func (x *ScheduleIndex) upsertLocked(entry models.TimetableEntry) (models.TimetableEntry, bool) {
	cell := entry.Key().Cell()
	row := x.grid[entry.ClassRoomID]
	if row == nil {
		row = make(map[models.CellKey]models.TimetableEntry)
		x.grid[entry.ClassRoomID] = row
	}
	prev, existed := row[cell]
	if existed {
		x.unindex(prev)
	}
	row[cell] = entry
	x.index(entry)
	return prev, existed
}

// Remove deletes the entry at key. Removing an open cell is a no-op.
func (x *ScheduleIndex) Remove(key models.EntryKey) (models.TimetableEntry, bool) {
	x.mu.Lock()
	defer x.mu.Unlock()
	row := x.grid[key.ClassRoomID]
	prev, ok := row[key.Cell()]
	if !ok {
		return models.TimetableEntry{}, false
	}
	delete(row, key.Cell())
	if len(row) == 0 {
		delete(x.grid, key.ClassRoomID)
	}
	x.unindex(prev)
	return prev, true
}

// Clear removes every entry of a classroom. It refuses to run without confirm.
func (x *ScheduleIndex) Clear(classRoomID string, confirm bool) (int, error) {
	if !confirm {
		return 0, appErrors.Clone(appErrors.ErrConfirmationRequired, "clearing a timetable requires confirm=true")
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	row := x.grid[classRoomID]
	for _, entry := range row {
		x.unindex(entry)
	}
	delete(x.grid, classRoomID)
	return len(row), nil
}

// Replace discards the whole index and installs entries, later duplicates winning.
func (x *ScheduleIndex) Replace(entries []models.TimetableEntry) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.grid = make(map[string]map[models.CellKey]models.TimetableEntry)
	x.byTeacher = make(map[resourceCell]classSet)
	x.byRoom = make(map[resourceCell]classSet)
	for _, entry := range entries {
		x.upsertLocked(entry)
	}
}

// ReplaceClassRoom swaps one classroom's row for entries. Entries of other classrooms
// are ignored.
func (x *ScheduleIndex) ReplaceClassRoom(classRoomID string, entries []models.TimetableEntry) {
	x.mu.Lock()
	defer x.mu.Unlock()
	for _, entry := range x.grid[classRoomID] {
		x.unindex(entry)
	}
	delete(x.grid, classRoomID)
	for _, entry := range entries {
		if entry.ClassRoomID == classRoomID {
			x.upsertLocked(entry)
		}
	}
}

// Entries returns a classroom's entries ordered by weekday then time slot id.
func (x *ScheduleIndex) Entries(classRoomID string) []models.TimetableEntry {
	x.mu.RLock()
	row := x.grid[classRoomID]
	out := make([]models.TimetableEntry, 0, len(row))
	for _, entry := range row {
		out = append(out, entry)
	}
	x.mu.RUnlock()
	sortEntries(out)
	return out
}

// ClassRoomIDs lists classrooms that hold at least one entry.
func (x *ScheduleIndex) ClassRoomIDs() []string {
	x.mu.RLock()
	out := make([]string, 0, len(x.grid))
	for id := range x.grid {
		out = append(out, id)
	}
	x.mu.RUnlock()
	sort.Strings(out)
	return out
}

// Len counts every entry.
func (x *ScheduleIndex) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	total := 0
	for _, row := range x.grid {
		total += len(row)
	}
	return total
}

// TeacherEntries lists the teacher's entries at cell outside excludeClassRoomID.
func (x *ScheduleIndex) TeacherEntries(teacherID string, cell models.CellKey, excludeClassRoomID string) []models.TimetableEntry {
	if teacherID == "" {
		return nil
	}
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.lookupLocked(x.byTeacher, resourceCell{resourceID: teacherID, cell: cell}, excludeClassRoomID)
}

// RoomEntries lists the room's entries at cell outside excludeClassRoomID.
func (x *ScheduleIndex) RoomEntries(roomID string, cell models.CellKey, excludeClassRoomID string) []models.TimetableEntry {
	if roomID == "" {
		return nil
	}
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.lookupLocked(x.byRoom, resourceCell{resourceID: roomID, cell: cell}, excludeClassRoomID)
}

// CountByTeacher counts every entry booking the teacher.
func (x *ScheduleIndex) CountByTeacher(teacherID string) int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return countResource(x.byTeacher, teacherID)
}

// CountByRoom counts every entry booking the room.
func (x *ScheduleIndex) CountByRoom(roomID string) int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return countResource(x.byRoom, roomID)
}

// Sweep compares each occupied cell of a classroom with every other classroom using
// the secondary indices, all under one read lock.
func (x *ScheduleIndex) Sweep(classRoomID string) models.SweepResult {
	x.mu.RLock()
	defer x.mu.RUnlock()
	row := x.grid[classRoomID]
	result := make(models.SweepResult, len(row))
	for cell, entry := range row {
		conflicts := make([]models.Conflict, 0)
		if teacherID := entry.Teacher(); teacherID != "" {
			for _, other := range x.lookupLocked(x.byTeacher, resourceCell{resourceID: teacherID, cell: cell}, classRoomID) {
				conflicts = append(conflicts, models.Conflict{Dimension: models.ConflictTeacher, ResourceID: teacherID, Entry: other})
			}
		}
		if roomID := entry.Room(); roomID != "" {
			for _, other := range x.lookupLocked(x.byRoom, resourceCell{resourceID: roomID, cell: cell}, classRoomID) {
				conflicts = append(conflicts, models.Conflict{Dimension: models.ConflictRoom, ResourceID: roomID, Entry: other})
			}
		}
		result[cell] = conflicts
	}
	return result
}

// LockCell serializes writers of key. The returned func releases the lock.
func (x *ScheduleIndex) LockCell(key models.EntryKey) func() {
	return x.cells.lock(key)
}

func (x *ScheduleIndex) lookupLocked(idx map[resourceCell]classSet, rc resourceCell, exclude string) []models.TimetableEntry {
	set := idx[rc]
	if len(set) == 0 {
		return nil
	}
	out := make([]models.TimetableEntry, 0, len(set))
	for classRoomID := range set {
		if classRoomID == exclude {
			continue
		}
		if entry, ok := x.grid[classRoomID][rc.cell]; ok {
			out = append(out, entry)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClassRoomID < out[j].ClassRoomID })
	return out
}

func (x *ScheduleIndex) index(entry models.TimetableEntry) {
	cell := entry.Key().Cell()
	if teacherID := entry.Teacher(); teacherID != "" {
		addToSet(x.byTeacher, resourceCell{resourceID: teacherID, cell: cell}, entry.ClassRoomID)
	}
	if roomID := entry.Room(); roomID != "" {
		addToSet(x.byRoom, resourceCell{resourceID: roomID, cell: cell}, entry.ClassRoomID)
	}
}

func (x *ScheduleIndex) unindex(entry models.TimetableEntry) {
	cell := entry.Key().Cell()
	if teacherID := entry.Teacher(); teacherID != "" {
		removeFromSet(x.byTeacher, resourceCell{resourceID: teacherID, cell: cell}, entry.ClassRoomID)
	}
	if roomID := entry.Room(); roomID != "" {
		removeFromSet(x.byRoom, resourceCell{resourceID: roomID, cell: cell}, entry.ClassRoomID)
	}
}

func addToSet(idx map[resourceCell]classSet, rc resourceCell, classRoomID string) {
	set := idx[rc]
	if set == nil {
		set = make(classSet)
		idx[rc] = set
	}
	set[classRoomID] = struct{}{}
}

func removeFromSet(idx map[resourceCell]classSet, rc resourceCell, classRoomID string) {
	set := idx[rc]
	if set == nil {
		return
	}
	delete(set, classRoomID)
	if len(set) == 0 {
		delete(idx, rc)
	}
}

func countResource(idx map[resourceCell]classSet, resourceID string) int {
	total := 0
	for rc, set := range idx {
		if rc.resourceID == resourceID {
			total += len(set)
		}
	}
	return total
}

func sortEntries(entries []models.TimetableEntry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Weekday == entries[j].Weekday {
			return entries[i].TimeSlotID < entries[j].TimeSlotID
		}
		return entries[i].Weekday < entries[j].Weekday
	})
}

// --- Per-cell locks ---

type cellLock struct {
	mu   sync.Mutex
	refs int
}

type cellLocks struct {
	mu    sync.Mutex
	locks map[models.EntryKey]*cellLock
}

func (l *cellLocks) lock(key models.EntryKey) func() {
	l.mu.Lock()
	cl := l.locks[key]
	if cl == nil {
		cl = &cellLock{}
		l.locks[key] = cl
	}
	cl.refs++
	l.mu.Unlock()

	cl.mu.Lock()
	return func() {
		cl.mu.Unlock()
		l.mu.Lock()
		cl.refs--
		if cl.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}
}
