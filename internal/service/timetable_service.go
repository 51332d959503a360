package service

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

type reportScheduler interface {
	Enqueue(classRoomIDs ...string)
}

// TimetableConfig configures the timetable service.
type TimetableConfig struct {
	SchoolDays []int
}

// TimetableService exposes the timetable operations used by the HTTP layer.
type TimetableService struct {
	catalog   *CatalogService
	store     *EntryStore
	detector  *ConflictDetector
	generator *ScheduleGeneratorService
	reporter  *ConflictReporter
	refresher reportScheduler
	gate      *SequenceGate
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	days      map[int]struct{}
	dayList   []int

	// resources orders placements against teacher/room deactivation.
	resources sync.RWMutex
}

// NewTimetableService wires the facade. refresher, gate and metrics may be nil.
func NewTimetableService(
	catalog *CatalogService,
	store *EntryStore,
	detector *ConflictDetector,
	generator *ScheduleGeneratorService,
	reporter *ConflictReporter,
	refresher reportScheduler,
	gate *SequenceGate,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg TimetableConfig,
) *TimetableService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if gate == nil {
		gate = NewSequenceGate(0)
	}
	if len(cfg.SchoolDays) == 0 {
		cfg.SchoolDays = []int{1, 2, 3, 4, 5}
	}
	days := make(map[int]struct{}, len(cfg.SchoolDays))
	for _, d := range cfg.SchoolDays {
		days[d] = struct{}{}
	}
	dayList := append([]int(nil), cfg.SchoolDays...)
	sort.Ints(dayList)
	return &TimetableService{
		catalog:   catalog,
		store:     store,
		detector:  detector,
		generator: generator,
		reporter:  reporter,
		refresher: refresher,
		gate:      gate,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		days:      days,
		dayList:   dayList,
	}
}

// GetTimetable returns a classroom grid with the slots and weekdays needed to render it.
func (s *TimetableService) GetTimetable(ctx context.Context, classRoomID string) (*dto.TimetableView, error) {
	classRoom, err := s.catalog.ClassRoom(classRoomID)
	if err != nil {
		return nil, err
	}
	slots := s.catalog.ActiveTimeSlots()
	order := make(map[string]int, len(slots))
	for _, slot := range slots {
		order[slot.ID] = slot.SlotOrder
	}
	entries := s.store.Index().Entries(classRoomID)
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Weekday != entries[j].Weekday {
			return entries[i].Weekday < entries[j].Weekday
		}
		return order[entries[i].TimeSlotID] < order[entries[j].TimeSlotID]
	})
	return &dto.TimetableView{
		ClassRoom: classRoom,
		TimeSlots: slots,
		Weekdays:  append([]int(nil), s.dayList...),
		Entries:   entries,
	}, nil
}

// PlaceEntry assigns one cell. Conflicts never block the save; they are returned with it.
func (s *TimetableService) PlaceEntry(ctx context.Context, classRoomID string, weekday int, timeSlotID string, req dto.PlaceEntryRequest) (*dto.PlaceEntryResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid timetable entry payload")
	}
	if _, err := s.catalog.ClassRoom(classRoomID); err != nil {
		return nil, err
	}
	slot, err := s.catalog.TimeSlot(timeSlotID)
	if err != nil {
		return nil, err
	}
	if err := s.ensureWeekday(weekday); err != nil {
		return nil, err
	}

	s.resources.RLock()
	defer s.resources.RUnlock()
	if err := s.ensureReferences(slot, req); err != nil {
		return nil, err
	}

	slotType := req.SlotType
	if slotType == "" {
		slotType = slot.Type
	}
	entry := models.TimetableEntry{
		ClassRoomID: classRoomID,
		Weekday:     weekday,
		TimeSlotID:  timeSlotID,
		SubjectID:   models.StringPtr(req.SubjectID),
		TeacherID:   models.StringPtr(req.TeacherID),
		RoomID:      models.StringPtr(req.RoomID),
		SlotType:    slotType,
		Notes:       models.StringPtr(req.Notes),
	}
	candidate := models.ConflictCandidate{
		ClassRoomID: classRoomID,
		Weekday:     weekday,
		TimeSlotID:  timeSlotID,
		TeacherID:   req.TeacherID,
		RoomID:      req.RoomID,
	}

	var (
		conflicts models.ConflictResult
		replaced  []string
	)
	saved, err := s.store.Put(ctx, entry, func(current *models.TimetableEntry) error {
		conflicts = s.detector.Validate(candidate)
		// Classrooms that clashed with the overwritten value need a refresh too.
		replaced = nil
		if current != nil {
			replaced = s.conflictingClassRooms(*current)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordPlacement("place", 1)
	s.metrics.RecordConflicts(conflicts)
	if conflicts.HasConflicts {
		s.logger.Warn("timetable entry saved with conflicts",
			zap.String("class_room_id", classRoomID),
			zap.Int("weekday", weekday),
			zap.String("time_slot_id", timeSlotID),
			zap.Int("teacher_conflicts", len(conflicts.TeacherConflicts)),
			zap.Int("room_conflicts", len(conflicts.RoomConflicts)),
		)
	}
	s.scheduleRefresh(ctx, classRoomID, conflicts, replaced...)
	return &dto.PlaceEntryResult{Saved: saved, Conflicts: conflicts}, nil
}

// RemoveEntry deletes one cell. An open cell yields NotFound and leaves state untouched.
func (s *TimetableService) RemoveEntry(ctx context.Context, classRoomID string, weekday int, timeSlotID string) error {
	if _, err := s.catalog.ClassRoom(classRoomID); err != nil {
		return err
	}
	key := models.EntryKey{ClassRoomID: classRoomID, Weekday: weekday, TimeSlotID: timeSlotID}
	prev, ok, err := s.store.Delete(ctx, key)
	if err != nil {
		return err
	}
	if !ok {
		return appErrors.Clone(appErrors.ErrNotFound, "timetable entry not found")
	}
	s.metrics.RecordPlacement("remove", 1)

	affected := []string{classRoomID}
	affected = append(affected, s.conflictingClassRooms(prev)...)
	s.enqueue(ctx, affected...)
	return nil
}

// ClearTimetable removes every entry of a classroom. confirm must be true.
func (s *TimetableService) ClearTimetable(ctx context.Context, classRoomID string, confirm bool) (int, error) {
	if _, err := s.catalog.ClassRoom(classRoomID); err != nil {
		return 0, err
	}
	if !confirm {
		return 0, appErrors.Clone(appErrors.ErrConfirmationRequired, "clearing a timetable requires confirm=true")
	}

	affected := map[string]struct{}{classRoomID: {}}
	for _, entry := range s.store.Index().Entries(classRoomID) {
		for _, id := range s.conflictingClassRooms(entry) {
			affected[id] = struct{}{}
		}
	}

	count, err := s.store.Clear(ctx, classRoomID, confirm)
	if err != nil {
		return 0, err
	}
	s.metrics.RecordPlacement("clear", count)
	s.logger.Info("timetable cleared", zap.String("class_room_id", classRoomID), zap.Int("count_removed", count))

	ids := make([]string, 0, len(affected))
	for id := range affected {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	s.enqueue(ctx, ids...)
	return count, nil
}

// CheckConflicts validates a candidate without writing. With a session id, results
// superseded by a newer sequence are reported stale instead of applied.
func (s *TimetableService) CheckConflicts(ctx context.Context, req dto.CheckConflictsRequest) (*dto.CheckConflictsResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid conflict check payload")
	}
	if _, err := s.catalog.ClassRoom(req.ClassRoomID); err != nil {
		return nil, err
	}
	if _, err := s.catalog.TimeSlot(req.TimeSlotID); err != nil {
		return nil, err
	}
	if err := s.ensureWeekday(req.Weekday); err != nil {
		return nil, err
	}

	gated := req.SessionID != ""
	if gated && !s.gate.Begin(req.SessionID, req.Sequence) {
		s.metrics.RecordStaleCheck()
		return &dto.CheckConflictsResponse{Stale: true, Sequence: req.Sequence}, nil
	}

	result := s.detector.Validate(req.ConflictCandidate)
	if err := ctx.Err(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrTimeout.Code, appErrors.ErrTimeout.Status, "conflict check cancelled")
	}
	if gated && !s.gate.Complete(req.SessionID, req.Sequence) {
		s.metrics.RecordStaleCheck()
		return &dto.CheckConflictsResponse{Stale: true, Sequence: req.Sequence}, nil
	}
	return &dto.CheckConflictsResponse{Applied: true, Sequence: req.Sequence, Result: &result}, nil
}

// GenerateTimetable fills the classroom's open cells and refreshes affected reports.
func (s *TimetableService) GenerateTimetable(ctx context.Context, classRoomID string) (*models.GenerationResult, error) {
	s.resources.RLock()
	result, err := s.generator.Generate(ctx, classRoomID)
	s.resources.RUnlock()
	if err != nil {
		return nil, err
	}
	s.enqueue(ctx, classRoomID)
	return result, nil
}

// SweepConflicts runs a full-grid conflict pass for a classroom.
func (s *TimetableService) SweepConflicts(ctx context.Context, classRoomID string) (*dto.SweepResponse, error) {
	if _, err := s.catalog.ClassRoom(classRoomID); err != nil {
		return nil, err
	}
	result, err := s.detector.Sweep(ctx, classRoomID)
	if err != nil {
		return nil, err
	}
	return &dto.SweepResponse{ClassRoomID: classRoomID, Total: result.Total(), Cells: result}, nil
}

// ConflictReport returns the grouped, decorated conflict summary of a classroom.
func (s *TimetableService) ConflictReport(ctx context.Context, classRoomID string) (*models.ConflictReport, error) {
	return s.reporter.Report(ctx, classRoomID)
}

// DeactivateTeacher deactivates a teacher once no entry books them.
func (s *TimetableService) DeactivateTeacher(ctx context.Context, teacherID string) error {
	s.resources.Lock()
	defer s.resources.Unlock()
	if _, err := s.catalog.Teacher(teacherID); err != nil {
		return err
	}
	if n := s.store.Index().CountByTeacher(teacherID); n > 0 {
		return appErrors.WithDetails(appErrors.ErrConflict,
			fmt.Sprintf("teacher %s still has %d timetable bookings", teacherID, n),
			map[string]int{"bookings": n})
	}
	if err := s.catalog.SetTeacherActive(ctx, teacherID, false); err != nil {
		return err
	}
	if s.reporter != nil {
		s.reporter.Invalidate(ctx)
	}
	return nil
}

// DeactivateRoom deactivates a room once no entry books it.
func (s *TimetableService) DeactivateRoom(ctx context.Context, roomID string) error {
	s.resources.Lock()
	defer s.resources.Unlock()
	if _, err := s.catalog.Room(roomID); err != nil {
		return err
	}
	if n := s.store.Index().CountByRoom(roomID); n > 0 {
		return appErrors.WithDetails(appErrors.ErrConflict,
			fmt.Sprintf("room %s still has %d timetable bookings", roomID, n),
			map[string]int{"bookings": n})
	}
	if err := s.catalog.SetRoomActive(ctx, roomID, false); err != nil {
		return err
	}
	if s.reporter != nil {
		s.reporter.Invalidate(ctx)
	}
	return nil
}

func (s *TimetableService) ensureWeekday(weekday int) error {
	if _, ok := s.days[weekday]; !ok {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("weekday %d is not a configured school day", weekday))
	}
	return nil
}

// ensureReferences checks every foreign key of the payload against the catalog.
func (s *TimetableService) ensureReferences(slot models.TimeSlot, req dto.PlaceEntryRequest) error {
	if req.SubjectID != "" {
		subj, err := s.catalog.Subject(req.SubjectID)
		if err != nil || !subj.Active {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown subject %s", req.SubjectID))
		}
		if !slot.Type.Assignable() {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("time slot %s of type %s cannot hold a subject", slot.ID, slot.Type))
		}
	}
	if req.TeacherID != "" {
		t, err := s.catalog.Teacher(req.TeacherID)
		if err != nil || !t.Active {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown teacher %s", req.TeacherID))
		}
	}
	if req.RoomID != "" {
		room, err := s.catalog.Room(req.RoomID)
		if err != nil || !room.Active {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown room %s", req.RoomID))
		}
	}
	if req.SubjectID != "" && req.SlotType != "" && !req.SlotType.Assignable() {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("slot type %s cannot hold a subject", req.SlotType))
	}
	return nil
}

func (s *TimetableService) conflictingClassRooms(entry models.TimetableEntry) []string {
	cell := entry.Key().Cell()
	var ids []string
	for _, other := range s.detector.TeacherConflicts(entry.Teacher(), cell.Weekday, cell.TimeSlotID, entry.ClassRoomID) {
		ids = append(ids, other.ClassRoomID)
	}
	for _, other := range s.detector.RoomConflicts(entry.Room(), cell.Weekday, cell.TimeSlotID, entry.ClassRoomID) {
		ids = append(ids, other.ClassRoomID)
	}
	return ids
}

func (s *TimetableService) scheduleRefresh(ctx context.Context, classRoomID string, conflicts models.ConflictResult, also ...string) {
	ids := append([]string{classRoomID}, also...)
	for _, e := range conflicts.TeacherConflicts {
		ids = append(ids, e.ClassRoomID)
	}
	for _, e := range conflicts.RoomConflicts {
		ids = append(ids, e.ClassRoomID)
	}
	s.enqueue(ctx, ids...)
}

func (s *TimetableService) enqueue(ctx context.Context, ids ...string) {
	if s.reporter != nil {
		s.reporter.Forget(ctx, ids...)
	}
	if s.refresher == nil {
		return
	}
	s.refresher.Enqueue(ids...)
}
