package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/lock"
)

var (
	errCellTaken   = errors.New("cell taken before commit")
	errTeacherBusy = errors.New("teacher booked elsewhere before commit")
)

// ScheduleGeneratorConfig governs generator behaviour.
type ScheduleGeneratorConfig struct {
	SchoolDays []int
	LockTTL    time.Duration
}

// ScheduleGeneratorService fills a classroom's open cells to meet its grade's weekly quotas.
type ScheduleGeneratorService struct {
	catalog  *CatalogService
	store    *EntryStore
	detector *ConflictDetector
	locker   lock.Locker
	metrics  *MetricsService
	logger   *zap.Logger
	cfg      ScheduleGeneratorConfig

	// running guards this process even when a distributed lease expires mid-run.
	running sync.Map
}

// NewScheduleGeneratorService wires generator dependencies. locker defaults to an in-process lock.
func NewScheduleGeneratorService(
	catalog *CatalogService,
	store *EntryStore,
	detector *ConflictDetector,
	locker lock.Locker,
	metrics *MetricsService,
	logger *zap.Logger,
	cfg ScheduleGeneratorConfig,
) *ScheduleGeneratorService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if locker == nil {
		locker = lock.NewLocalLock()
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 2 * time.Minute
	}
	if len(cfg.SchoolDays) == 0 {
		cfg.SchoolDays = []int{1, 2, 3, 4, 5}
	}
	return &ScheduleGeneratorService{
		catalog:  catalog,
		store:    store,
		detector: detector,
		locker:   locker,
		metrics:  metrics,
		logger:   logger,
		cfg:      cfg,
	}
}

func generationLockKey(classRoomID string) string {
	return "timetable:generate:" + classRoomID
}

// Generate runs one best-effort generation for a classroom. Only that classroom's
// grid is written. A concurrent run for the same classroom is rejected.
func (s *ScheduleGeneratorService) Generate(ctx context.Context, classRoomID string) (*models.GenerationResult, error) {
	classRoom, err := s.catalog.ClassRoom(classRoomID)
	if err != nil {
		return nil, err
	}
	requirements, err := s.requirementsFor(classRoom)
	if err != nil {
		return nil, err
	}

	if _, busy := s.running.LoadOrStore(classRoomID, struct{}{}); busy {
		return nil, appErrors.Clone(appErrors.ErrGenerationInProgress, fmt.Sprintf("timetable generation already running for class room %s", classRoomID))
	}
	defer s.running.Delete(classRoomID)

	release, ok, err := s.locker.Lock(ctx, generationLockKey(classRoomID), s.cfg.LockTTL)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to acquire generation lock")
	}
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrGenerationInProgress, fmt.Sprintf("timetable generation already running for class room %s", classRoomID))
	}
	defer func() {
		if err := release(context.Background()); err != nil {
			s.logger.Warn("failed to release generation lock", zap.String("class_room_id", classRoomID), zap.Error(err))
		}
	}()

	// Another replica may have edited this grid since the last resync.
	if err := s.store.SyncClassRoom(ctx, classRoomID); err != nil {
		return nil, err
	}

	start := time.Now()
	state := s.observe(classRoomID)
	unmet := s.plan(state, requirements)

	result := &models.GenerationResult{ClassRoomID: classRoomID}
	lost := make(map[string]int)
	for _, entry := range state.exportFixed() {
		saved, err := s.store.Put(ctx, entry, requireOpenCell)
		if errors.Is(err, errCellTaken) {
			continue
		}
		if err != nil {
			return nil, err
		}
		result.FixedEntries++
		result.Entries = append(result.Entries, saved)
	}
	for _, entry := range state.exportPlacements() {
		saved, err := s.store.Put(ctx, entry, s.recheck(entry))
		if errors.Is(err, errCellTaken) || errors.Is(err, errTeacherBusy) {
			lost[entry.Subject()]++
			continue
		}
		if err != nil {
			return nil, err
		}
		result.EntriesCreated++
		result.Entries = append(result.Entries, saved)
	}
	result.Unmet = mergeUnmet(unmet, lost)

	s.metrics.ObserveGeneration(time.Since(start), result)
	s.logger.Info("timetable generated",
		zap.String("class_room_id", classRoomID),
		zap.Int("entries_created", result.EntriesCreated),
		zap.Int("fixed_entries", result.FixedEntries),
		zap.Int("unmet", len(result.Unmet)),
		zap.Duration("duration", time.Since(start)),
	)
	return result, nil
}

// requirementsFor resolves and orders the grade's requirements. Unknown subjects fail
// fast before any cell is planned.
func (s *ScheduleGeneratorService) requirementsFor(classRoom models.ClassRoom) ([]models.GradeSubjectRequirement, error) {
	reqs := s.catalog.Requirements(classRoom.GradeLevelID)
	out := make([]models.GradeSubjectRequirement, 0, len(reqs))
	for _, req := range reqs {
		if req.WeeklyHours <= 0 {
			continue
		}
		if _, err := s.catalog.Subject(req.SubjectID); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, fmt.Sprintf("grade %s requires unknown subject %s", classRoom.GradeLevelID, req.SubjectID))
		}
		out = append(out, req)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].WeeklyHours == out[j].WeeklyHours {
			return out[i].SubjectID < out[j].SubjectID
		}
		return out[i].WeeklyHours > out[j].WeeklyHours
	})
	return out, nil
}

// observe snapshots the classroom grid and collects the cells generation may use.
func (s *ScheduleGeneratorService) observe(classRoomID string) *generationState {
	state := newGenerationState(classRoomID)
	for _, entry := range s.store.Index().Entries(classRoomID) {
		state.occupy(entry)
	}
	slots := s.catalog.ActiveTimeSlots()
	for _, day := range s.cfg.SchoolDays {
		for _, slot := range slots {
			cell := models.CellKey{Weekday: day, TimeSlotID: slot.ID}
			if state.taken(cell) {
				continue
			}
			switch {
			case slot.Type.Assignable():
				state.open = append(state.open, openCell{cell: cell, slotType: slot.Type})
			case slot.Type.Fixed():
				state.fixed = append(state.fixed, openCell{cell: cell, slotType: slot.Type})
			}
		}
	}
	return state
}

// plan assigns requirement occurrences to open cells, scarcest subject first.
func (s *ScheduleGeneratorService) plan(state *generationState, requirements []models.GradeSubjectRequirement) []models.UnmetRequirement {
	var unmet []models.UnmetRequirement
	for _, req := range requirements {
		need := req.WeeklyHours - state.placed[req.SubjectID]
		if need <= 0 {
			continue
		}
		teachers := s.catalog.QualifiedTeachers(req.SubjectID)
		if len(teachers) == 0 {
			unmet = append(unmet, models.UnmetRequirement{SubjectID: req.SubjectID, MissingCount: need, Reason: models.ShortfallNoQualifiedTeacher})
			continue
		}
		missing := 0
		for i := 0; i < need; i++ {
			if !state.assign(req.SubjectID, teachers, s.teacherFree) {
				missing++
			}
		}
		if missing > 0 {
			unmet = append(unmet, models.UnmetRequirement{SubjectID: req.SubjectID, MissingCount: missing, Reason: models.ShortfallNoFreeCell})
		}
	}
	return unmet
}

func (s *ScheduleGeneratorService) teacherFree(teacherID string, cell models.CellKey, classRoomID string) bool {
	return len(s.detector.TeacherConflicts(teacherID, cell.Weekday, cell.TimeSlotID, classRoomID)) == 0
}

// recheck guards the commit: the cell must still be open and the teacher must not have
// been booked elsewhere since the plan was made.
func (s *ScheduleGeneratorService) recheck(entry models.TimetableEntry) cellCheck {
	return func(current *models.TimetableEntry) error {
		if current != nil {
			return errCellTaken
		}
		if !s.teacherFree(entry.Teacher(), entry.Key().Cell(), entry.ClassRoomID) {
			return errTeacherBusy
		}
		return nil
	}
}

func requireOpenCell(current *models.TimetableEntry) error {
	if current != nil {
		return errCellTaken
	}
	return nil
}

func mergeUnmet(planned []models.UnmetRequirement, lost map[string]int) []models.UnmetRequirement {
	out := make([]models.UnmetRequirement, 0, len(planned)+len(lost))
	out = append(out, planned...)
	subjects := make([]string, 0, len(lost))
	for subjectID := range lost {
		subjects = append(subjects, subjectID)
	}
	sort.Strings(subjects)
	for _, subjectID := range subjects {
		out = append(out, models.UnmetRequirement{SubjectID: subjectID, MissingCount: lost[subjectID], Reason: models.ShortfallLostRace})
	}
	return out
}

// --- Generation state ---

type openCell struct {
	cell     models.CellKey
	slotType models.SlotType
}

type plannedEntry struct {
	openCell
	subjectID string
	teacherID string
}

type generationState struct {
	classRoomID string
	occupied    map[models.CellKey]bool
	open        []openCell
	fixed       []openCell
	placed      map[string]int
	usedDays    map[string]map[int]bool
	rotation    map[string]int
	planned     []plannedEntry
}

func newGenerationState(classRoomID string) *generationState {
	return &generationState{
		classRoomID: classRoomID,
		occupied:    make(map[models.CellKey]bool),
		placed:      make(map[string]int),
		usedDays:    make(map[string]map[int]bool),
		rotation:    make(map[string]int),
	}
}

func (g *generationState) taken(cell models.CellKey) bool {
	return g.occupied[cell]
}

func (g *generationState) occupy(entry models.TimetableEntry) {
	g.occupied[entry.Key().Cell()] = true
	if subjectID := entry.Subject(); subjectID != "" {
		g.placed[subjectID]++
		g.markDay(subjectID, entry.Weekday)
	}
}

func (g *generationState) markDay(subjectID string, day int) {
	if g.usedDays[subjectID] == nil {
		g.usedDays[subjectID] = make(map[int]bool)
	}
	g.usedDays[subjectID][day] = true
}

// assign places one occurrence. Cells on weekdays the subject does not use yet are
// tried first. Teachers rotate across the qualified list to balance load.
func (g *generationState) assign(subjectID string, teachers []string, free func(teacherID string, cell models.CellKey, classRoomID string) bool) bool {
	for _, spreadOnly := range []bool{true, false} {
		for _, candidate := range g.open {
			if g.occupied[candidate.cell] {
				continue
			}
			if spreadOnly && g.usedDays[subjectID][candidate.cell.Weekday] {
				continue
			}
			start := g.rotation[subjectID]
			for i := 0; i < len(teachers); i++ {
				idx := (start + i) % len(teachers)
				teacherID := teachers[idx]
				if !free(teacherID, candidate.cell, g.classRoomID) {
					continue
				}
				g.place(candidate, subjectID, teacherID)
				g.rotation[subjectID] = (idx + 1) % len(teachers)
				return true
			}
		}
	}
	return false
}

func (g *generationState) place(candidate openCell, subjectID, teacherID string) {
	g.occupied[candidate.cell] = true
	g.placed[subjectID]++
	g.markDay(subjectID, candidate.cell.Weekday)
	g.planned = append(g.planned, plannedEntry{openCell: candidate, subjectID: subjectID, teacherID: teacherID})
}

func (g *generationState) exportPlacements() []models.TimetableEntry {
	out := make([]models.TimetableEntry, 0, len(g.planned))
	for _, p := range g.planned {
		out = append(out, models.TimetableEntry{
			ClassRoomID: g.classRoomID,
			Weekday:     p.cell.Weekday,
			TimeSlotID:  p.cell.TimeSlotID,
			SubjectID:   models.StringPtr(p.subjectID),
			TeacherID:   models.StringPtr(p.teacherID),
			SlotType:    p.slotType,
		})
	}
	sortEntries(out)
	return out
}

func (g *generationState) exportFixed() []models.TimetableEntry {
	out := make([]models.TimetableEntry, 0, len(g.fixed))
	for _, f := range g.fixed {
		out = append(out, models.TimetableEntry{
			ClassRoomID: g.classRoomID,
			Weekday:     f.cell.Weekday,
			TimeSlotID:  f.cell.TimeSlotID,
			SlotType:    f.slotType,
		})
	}
	return out
}
