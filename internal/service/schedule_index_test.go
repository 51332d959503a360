package service

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

func TestScheduleIndexUpsertReplacesCell(t *testing.T) {
	index := NewScheduleIndex()

	_, existed := index.Upsert(lesson("X", 1, "p1", "math", "T1", ""))
	assert.False(t, existed)
	prev, existed := index.Upsert(lesson("X", 1, "p1", "science", "T2", "lab"))
	require.True(t, existed)
	assert.Equal(t, "math", prev.Subject())

	entries := index.Entries("X")
	require.Len(t, entries, 1)
	assert.Equal(t, "science", entries[0].Subject())
	assert.Equal(t, 1, index.Len())

	// The replaced teacher must no longer be indexed at that cell.
	assert.Empty(t, index.TeacherEntries("T1", models.CellKey{Weekday: 1, TimeSlotID: "p1"}, ""))
	assert.Len(t, index.TeacherEntries("T2", models.CellKey{Weekday: 1, TimeSlotID: "p1"}, ""), 1)
	assert.Equal(t, 1, index.CountByRoom("lab"))
}

func TestScheduleIndexUniquenessUnderManyUpserts(t *testing.T) {
	index := NewScheduleIndex()
	teachers := []string{"T1", "T2", "T3"}
	for i := 0; i < 30; i++ {
		index.Upsert(lesson("X", 1+i%2, fmt.Sprintf("p%d", i%3), "math", teachers[i%len(teachers)], ""))
	}

	seen := make(map[models.EntryKey]int)
	for _, entry := range index.Entries("X") {
		seen[entry.Key()]++
	}
	assert.Len(t, seen, 6)
	for key, count := range seen {
		assert.Equal(t, 1, count, key.String())
	}
	assert.Equal(t, 6, index.Len())
}

func TestScheduleIndexTeacherEntriesExcludesClassRoom(t *testing.T) {
	index := NewScheduleIndex()
	index.Upsert(lesson("X", 1, "p1", "math", "T1", ""))
	index.Upsert(lesson("Y", 1, "p1", "science", "T1", ""))
	index.Upsert(lesson("Z", 1, "p1", "science", "T1", ""))
	index.Upsert(lesson("Y", 1, "p2", "science", "T1", ""))

	cell := models.CellKey{Weekday: 1, TimeSlotID: "p1"}
	others := index.TeacherEntries("T1", cell, "X")
	require.Len(t, others, 2)
	for _, entry := range others {
		assert.NotEqual(t, "X", entry.ClassRoomID)
		assert.Equal(t, cell, entry.Key().Cell())
	}
	assert.Equal(t, "Y", others[0].ClassRoomID)
	assert.Equal(t, "Z", others[1].ClassRoomID)
	assert.Equal(t, 4, index.CountByTeacher("T1"))
}

func TestScheduleIndexRemoveIsIdempotent(t *testing.T) {
	index := NewScheduleIndex()
	index.Upsert(lesson("X", 1, "p1", "math", "T1", "lab"))
	key := models.EntryKey{ClassRoomID: "X", Weekday: 1, TimeSlotID: "p1"}

	_, removed := index.Remove(key)
	assert.True(t, removed)
	_, removed = index.Remove(key)
	assert.False(t, removed)

	assert.Equal(t, 0, index.Len())
	assert.Equal(t, 0, index.CountByTeacher("T1"))
	assert.Equal(t, 0, index.CountByRoom("lab"))
	assert.Empty(t, index.Entries("X"))
}

func TestScheduleIndexClearIsolation(t *testing.T) {
	index := NewScheduleIndex()
	index.Upsert(lesson("X", 1, "p1", "math", "T1", "lab"))
	index.Upsert(lesson("X", 1, "p2", "math", "T1", ""))
	index.Upsert(lesson("Y", 1, "p1", "science", "T1", "lab"))

	_, err := index.Clear("X", false)
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrConfirmationRequired)
	assert.Equal(t, 3, index.Len())

	count, err := index.Clear("X", true)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Empty(t, index.Entries("X"))

	remaining := index.Entries("Y")
	require.Len(t, remaining, 1)
	cell := models.CellKey{Weekday: 1, TimeSlotID: "p1"}
	assert.Len(t, index.TeacherEntries("T1", cell, ""), 1)
	assert.Len(t, index.RoomEntries("lab", cell, "X"), 1)
	assert.Equal(t, 1, index.CountByTeacher("T1"))
}

func TestScheduleIndexSweepMarksEveryOccupiedCell(t *testing.T) {
	index := NewScheduleIndex()
	index.Upsert(lesson("X", 1, "p1", "math", "T1", "lab"))
	index.Upsert(lesson("X", 1, "p2", "math", "T2", ""))
	index.Upsert(lesson("Y", 1, "p1", "science", "T1", "lab"))

	result := index.Sweep("X")
	require.Len(t, result, 2)

	busy := result[models.CellKey{Weekday: 1, TimeSlotID: "p1"}]
	require.Len(t, busy, 2)
	assert.Equal(t, models.ConflictTeacher, busy[0].Dimension)
	assert.Equal(t, models.ConflictRoom, busy[1].Dimension)
	assert.Equal(t, "Y", busy[0].Entry.ClassRoomID)

	free, ok := result[models.CellKey{Weekday: 1, TimeSlotID: "p2"}]
	require.True(t, ok)
	assert.NotNil(t, free)
	assert.Empty(t, free)
	assert.Equal(t, 2, result.Total())
}

func TestScheduleIndexReplace(t *testing.T) {
	index := NewScheduleIndex()
	index.Upsert(lesson("X", 1, "p1", "math", "T1", ""))

	index.Replace([]models.TimetableEntry{
		lesson("Y", 2, "p2", "science", "T2", "lab"),
	})
	assert.Empty(t, index.Entries("X"))
	assert.Equal(t, 0, index.CountByTeacher("T1"))
	assert.Equal(t, []string{"Y"}, index.ClassRoomIDs())
}

func TestScheduleIndexConcurrentWritersKeepIndicesConsistent(t *testing.T) {
	index := NewScheduleIndex()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			teacher := fmt.Sprintf("T%d", i%2)
			index.Upsert(lesson("X", 1, "p1", "math", teacher, ""))
			index.TeacherEntries(teacher, models.CellKey{Weekday: 1, TimeSlotID: "p1"}, "Y")
		}(i)
	}
	wg.Wait()

	require.Len(t, index.Entries("X"), 1)
	assert.Equal(t, 1, index.CountByTeacher("T0")+index.CountByTeacher("T1"))
}
