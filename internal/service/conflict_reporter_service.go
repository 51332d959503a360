package service

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

const conflictReportKeyPrefix = "timetable:conflicts:"

func conflictReportKey(classRoomID string) string {
	return conflictReportKeyPrefix + classRoomID
}

// ConflictReporter turns sweep output into display-ready summaries grouped by weekday
// and time slot. Reports are cached, never persisted.
type ConflictReporter struct {
	detector *ConflictDetector
	catalog  *CatalogService
	cache    *CacheService
	ttl      time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// NewConflictReporter wires the reporter. cache may be nil.
func NewConflictReporter(detector *ConflictDetector, catalog *CatalogService, cache *CacheService, ttl time.Duration, logger *zap.Logger) *ConflictReporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConflictReporter{
		detector: detector,
		catalog:  catalog,
		cache:    cache,
		ttl:      ttl,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Report returns the cached report of a classroom, computing it on a miss.
func (r *ConflictReporter) Report(ctx context.Context, classRoomID string) (*models.ConflictReport, error) {
	if _, err := r.catalog.ClassRoom(classRoomID); err != nil {
		return nil, err
	}
	var cached models.ConflictReport
	if hit, _ := r.cache.Get(ctx, conflictReportKey(classRoomID), &cached); hit {
		return &cached, nil
	}
	return r.Refresh(ctx, classRoomID)
}

// Refresh recomputes the report and overwrites the cache.
func (r *ConflictReporter) Refresh(ctx context.Context, classRoomID string) (*models.ConflictReport, error) {
	report, err := r.Build(ctx, classRoomID)
	if err != nil {
		return nil, err
	}
	_ = r.cache.Set(ctx, conflictReportKey(classRoomID), report, r.ttl)
	return report, nil
}

// Forget drops the cached reports of the given classrooms so readers recompute them
// until the background refresh lands.
func (r *ConflictReporter) Forget(ctx context.Context, classRoomIDs ...string) {
	keys := make([]string, 0, len(classRoomIDs))
	for _, id := range classRoomIDs {
		if id != "" {
			keys = append(keys, conflictReportKey(id))
		}
	}
	_ = r.cache.Invalidate(ctx, keys...)
}

// Invalidate drops every cached report, used after catalog changes rename resources.
func (r *ConflictReporter) Invalidate(ctx context.Context) {
	_ = r.cache.InvalidatePattern(ctx, conflictReportKeyPrefix+"*")
}

// Build sweeps a classroom and groups its conflicts. Conflict-free cells are omitted.
func (r *ConflictReporter) Build(ctx context.Context, classRoomID string) (*models.ConflictReport, error) {
	sweep, err := r.detector.Sweep(ctx, classRoomID)
	if err != nil {
		return nil, err
	}
	own := make(map[models.CellKey]models.TimetableEntry)
	for _, entry := range r.detector.index.Entries(classRoomID) {
		own[entry.Key().Cell()] = entry
	}

	order := make(map[string]int)
	for _, slot := range r.catalog.ActiveTimeSlots() {
		order[slot.ID] = slot.SlotOrder
	}

	report := &models.ConflictReport{ClassRoomID: classRoomID, Groups: []models.ConflictGroup{}, GeneratedAt: r.now()}
	for cell, conflicts := range sweep {
		if len(conflicts) == 0 {
			continue
		}
		group := models.ConflictGroup{Weekday: cell.Weekday, TimeSlotID: cell.TimeSlotID}
		if slot, err := r.catalog.TimeSlot(cell.TimeSlotID); err == nil {
			group.SlotName = slot.Name
			group.StartTime = slot.StartTime
			group.EndTime = slot.EndTime
		}
		mine := r.describe(own[cell])
		for _, c := range conflicts {
			group.Items = append(group.Items, models.ConflictDetail{
				Dimension: c.Dimension,
				Own:       mine,
				Other:     r.describe(c.Entry),
			})
		}
		report.Total += len(group.Items)
		report.Groups = append(report.Groups, group)
	}
	sort.Slice(report.Groups, func(i, j int) bool {
		a, b := report.Groups[i], report.Groups[j]
		if a.Weekday != b.Weekday {
			return a.Weekday < b.Weekday
		}
		if order[a.TimeSlotID] != order[b.TimeSlotID] {
			return order[a.TimeSlotID] < order[b.TimeSlotID]
		}
		return a.TimeSlotID < b.TimeSlotID
	})
	return report, nil
}

func (r *ConflictReporter) describe(entry models.TimetableEntry) models.EntryDetail {
	detail := models.EntryDetail{
		EntryID:     entry.ID,
		ClassRoomID: entry.ClassRoomID,
		SubjectID:   entry.Subject(),
		TeacherID:   entry.Teacher(),
		RoomID:      entry.Room(),
	}
	if cr, err := r.catalog.ClassRoom(entry.ClassRoomID); err == nil {
		detail.ClassRoomName = cr.Name
		detail.GradeLevelID = cr.GradeLevelID
	}
	if detail.SubjectID != "" {
		if subj, err := r.catalog.Subject(detail.SubjectID); err == nil {
			detail.SubjectName = subj.Name
		}
	}
	if detail.TeacherID != "" {
		if t, err := r.catalog.Teacher(detail.TeacherID); err == nil {
			detail.TeacherName = t.FullName
		}
	}
	if detail.RoomID != "" {
		if room, err := r.catalog.Room(detail.RoomID); err == nil {
			detail.RoomName = room.Name
		}
	}
	return detail
}
