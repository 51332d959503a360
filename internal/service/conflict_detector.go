package service

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/pkg/config"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

// slotConflictLookup answers the per-cell range queries used by the fallback sweep.
type slotConflictLookup interface {
	ListByTeacherSlot(ctx context.Context, teacherID string, weekday int, timeSlotID, excludeClassRoomID string) ([]models.TimetableEntry, error)
	ListByRoomSlot(ctx context.Context, roomID string, weekday int, timeSlotID, excludeClassRoomID string) ([]models.TimetableEntry, error)
}

// ConflictDetectorConfig selects the sweep strategy.
type ConflictDetectorConfig struct {
	SweepMode       string
	PerCellMaxCells int
	Concurrency     int
}

// ConflictDetector answers conflict queries over the schedule index. It never blocks writes.
type ConflictDetector struct {
	index   *ScheduleIndex
	lookup  slotConflictLookup
	cfg     ConflictDetectorConfig
	metrics *MetricsService
	logger  *zap.Logger
}

// NewConflictDetector wires the detector. When lookup is nil the per-cell sweep reads the index.
func NewConflictDetector(index *ScheduleIndex, lookup slotConflictLookup, cfg ConflictDetectorConfig, metrics *MetricsService, logger *zap.Logger) *ConflictDetector {
	if logger == nil {
		logger = zap.NewNop()
	}
	if lookup == nil {
		lookup = indexSlotLookup{index: index}
	}
	if cfg.SweepMode == "" {
		cfg.SweepMode = config.SweepModeIndexed
	}
	if cfg.PerCellMaxCells <= 0 {
		cfg.PerCellMaxCells = 200
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 8
	}
	return &ConflictDetector{index: index, lookup: lookup, cfg: cfg, metrics: metrics, logger: logger}
}

// TeacherConflicts lists the teacher's entries at weekday/slot in classrooms other than exclude.
func (d *ConflictDetector) TeacherConflicts(teacherID string, weekday int, timeSlotID, excludeClassRoomID string) []models.TimetableEntry {
	return d.index.TeacherEntries(teacherID, models.CellKey{Weekday: weekday, TimeSlotID: timeSlotID}, excludeClassRoomID)
}

// RoomConflicts lists the room's entries at weekday/slot in classrooms other than exclude.
func (d *ConflictDetector) RoomConflicts(roomID string, weekday int, timeSlotID, excludeClassRoomID string) []models.TimetableEntry {
	return d.index.RoomEntries(roomID, models.CellKey{Weekday: weekday, TimeSlotID: timeSlotID}, excludeClassRoomID)
}

// Validate combines the teacher and room checks for a prospective placement.
func (d *ConflictDetector) Validate(candidate models.ConflictCandidate) models.ConflictResult {
	result := models.ConflictResult{
		TeacherConflicts: nonNil(d.TeacherConflicts(candidate.TeacherID, candidate.Weekday, candidate.TimeSlotID, candidate.ClassRoomID)),
		RoomConflicts:    nonNil(d.RoomConflicts(candidate.RoomID, candidate.Weekday, candidate.TimeSlotID, candidate.ClassRoomID)),
	}
	result.HasConflicts = len(result.TeacherConflicts) > 0 || len(result.RoomConflicts) > 0
	return result
}

// Sweep checks every occupied cell of a classroom against all other classrooms.
// Conflict-free cells map to an empty list. The map is complete before it is returned.
func (d *ConflictDetector) Sweep(ctx context.Context, classRoomID string) (models.SweepResult, error) {
	start := time.Now()
	mode := d.cfg.SweepMode
	var entries []models.TimetableEntry
	if mode == config.SweepModePerCell {
		entries = d.index.Entries(classRoomID)
		if len(entries) > d.cfg.PerCellMaxCells {
			mode = config.SweepModeIndexed
		}
	}

	var result models.SweepResult
	if mode == config.SweepModePerCell {
		var err error
		if result, err = d.sweepPerCell(ctx, classRoomID, entries); err != nil {
			return nil, err
		}
	} else {
		mode = config.SweepModeIndexed
		result = d.index.Sweep(classRoomID)
	}
	d.metrics.ObserveSweep(mode, time.Since(start))
	d.logger.Debug("conflict sweep finished",
		zap.String("class_room_id", classRoomID),
		zap.String("mode", mode),
		zap.Int("cells", len(result)),
		zap.Int("conflicts", result.Total()),
	)
	return result, nil
}

// sweepPerCell issues one teacher and one room lookup per occupied cell with bounded
// parallelism. Each goroutine owns one slot of the results slice.
func (d *ConflictDetector) sweepPerCell(ctx context.Context, classRoomID string, entries []models.TimetableEntry) (models.SweepResult, error) {
	perCell := make([][]models.Conflict, len(entries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.cfg.Concurrency)
	for i := range entries {
		i := i
		entry := entries[i]
		g.Go(func() error {
			conflicts := make([]models.Conflict, 0)
			if teacherID := entry.Teacher(); teacherID != "" {
				others, err := d.lookup.ListByTeacherSlot(gctx, teacherID, entry.Weekday, entry.TimeSlotID, classRoomID)
				if err != nil {
					return err
				}
				for _, other := range others {
					conflicts = append(conflicts, models.Conflict{Dimension: models.ConflictTeacher, ResourceID: teacherID, Entry: other})
				}
			}
			if roomID := entry.Room(); roomID != "" {
				others, err := d.lookup.ListByRoomSlot(gctx, roomID, entry.Weekday, entry.TimeSlotID, classRoomID)
				if err != nil {
					return err
				}
				for _, other := range others {
					conflicts = append(conflicts, models.Conflict{Dimension: models.ConflictRoom, ResourceID: roomID, Entry: other})
				}
			}
			perCell[i] = conflicts
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sweep timetable conflicts")
	}

	result := make(models.SweepResult, len(entries))
	for i, entry := range entries {
		result[entry.Key().Cell()] = perCell[i]
	}
	return result, nil
}

// indexSlotLookup adapts the index to the per-cell lookup contract.
type indexSlotLookup struct {
	index *ScheduleIndex
}

func (l indexSlotLookup) ListByTeacherSlot(ctx context.Context, teacherID string, weekday int, timeSlotID, excludeClassRoomID string) ([]models.TimetableEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return l.index.TeacherEntries(teacherID, models.CellKey{Weekday: weekday, TimeSlotID: timeSlotID}, excludeClassRoomID), nil
}

func (l indexSlotLookup) ListByRoomSlot(ctx context.Context, roomID string, weekday int, timeSlotID, excludeClassRoomID string) ([]models.TimetableEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return l.index.RoomEntries(roomID, models.CellKey{Weekday: weekday, TimeSlotID: timeSlotID}, excludeClassRoomID), nil
}

func nonNil(entries []models.TimetableEntry) []models.TimetableEntry {
	if entries == nil {
		return []models.TimetableEntry{}
	}
	return entries
}
