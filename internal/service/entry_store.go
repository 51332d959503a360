package service

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/repository"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

type timetablePersistence interface {
	FindByKey(ctx context.Context, key models.EntryKey) (*models.TimetableEntry, error)
	Upsert(ctx context.Context, entry *models.TimetableEntry, expectedVersion int) error
	Delete(ctx context.Context, key models.EntryKey) (bool, error)
	DeleteByClassRoom(ctx context.Context, classRoomID string) (int, error)
	ListAll(ctx context.Context) ([]models.TimetableEntry, error)
	ListByClassRoom(ctx context.Context, classRoomID string) ([]models.TimetableEntry, error)
}

// cellCheck inspects the current cell inside the write critical section. A non-nil
// error aborts the write. current is nil for an open cell.
type cellCheck func(current *models.TimetableEntry) error

// EntryStore is the single write path for timetable cells. With a repository configured,
// each write is persisted before the index is updated.
type EntryStore struct {
	index  *ScheduleIndex
	repo   timetablePersistence
	logger *zap.Logger
	now    func() time.Time

	// clearMu keeps whole-classroom clears from interleaving with cell writes.
	clearMu sync.RWMutex
}

// NewEntryStore wires the store. repo may be nil for a purely in-memory engine.
func NewEntryStore(index *ScheduleIndex, repo timetablePersistence, logger *zap.Logger) *EntryStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EntryStore{index: index, repo: repo, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// Index exposes the underlying index.
func (s *EntryStore) Index() *ScheduleIndex {
	return s.index
}

// Hydrate replaces the index with every persisted entry. It runs at boot and again on
// each periodic sweep, so writes committed by other replicas become visible here.
func (s *EntryStore) Hydrate(ctx context.Context) error {
	if s.repo == nil {
		return nil
	}
	s.clearMu.Lock()
	defer s.clearMu.Unlock()
	entries, err := s.repo.ListAll(ctx)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable entries")
	}
	s.index.Replace(entries)
	s.logger.Info("timetable index hydrated", zap.Int("entries", len(entries)))
	return nil
}

// SyncClassRoom reloads one classroom's row from the repository.
func (s *EntryStore) SyncClassRoom(ctx context.Context, classRoomID string) error {
	if s.repo == nil {
		return nil
	}
	s.clearMu.Lock()
	defer s.clearMu.Unlock()
	entries, err := s.repo.ListByClassRoom(ctx, classRoomID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class room timetable")
	}
	s.index.ReplaceClassRoom(classRoomID, entries)
	return nil
}

// Put writes entry under the cell lock: read current, run check, persist, update the
// index. A stale persisted version reloads the cell and retries once.
func (s *EntryStore) Put(ctx context.Context, entry models.TimetableEntry, check cellCheck) (models.TimetableEntry, error) {
	s.clearMu.RLock()
	defer s.clearMu.RUnlock()

	key := entry.Key()
	unlock := s.index.LockCell(key)
	defer unlock()

	for attempt := 0; attempt < 2; attempt++ {
		var current *models.TimetableEntry
		if existing, ok := s.index.Get(key); ok {
			current = &existing
		}
		if check != nil {
			if err := check(current); err != nil {
				return models.TimetableEntry{}, err
			}
		}

		next := entry
		expected := 0
		if current != nil {
			expected = current.Version
			next.ID = current.ID
			next.CreatedAt = current.CreatedAt
		}

		if s.repo == nil {
			now := s.now()
			if next.ID == "" {
				next.ID = uuid.NewString()
			}
			if next.CreatedAt.IsZero() {
				next.CreatedAt = now
			}
			next.UpdatedAt = now
			next.Version = expected + 1
			s.index.Upsert(next)
			return next, nil
		}

		err := s.repo.Upsert(ctx, &next, expected)
		if err == nil {
			s.index.Upsert(next)
			return next, nil
		}
		if !errors.Is(err, repository.ErrStaleVersion) {
			return models.TimetableEntry{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save timetable entry")
		}
		s.logger.Warn("timetable cell changed while saving, reloading",
			zap.String("class_room_id", key.ClassRoomID),
			zap.Int("weekday", key.Weekday),
			zap.String("time_slot_id", key.TimeSlotID),
			zap.Int("attempt", attempt+1),
		)
		if err := s.reload(ctx, key); err != nil {
			return models.TimetableEntry{}, err
		}
	}
	return models.TimetableEntry{}, appErrors.Clone(appErrors.ErrConcurrencyConflict, "timetable cell changed concurrently, retry the request")
}

// Delete removes one cell and reports whether it held an entry.
func (s *EntryStore) Delete(ctx context.Context, key models.EntryKey) (models.TimetableEntry, bool, error) {
	s.clearMu.RLock()
	defer s.clearMu.RUnlock()

	unlock := s.index.LockCell(key)
	defer unlock()

	prev, ok := s.index.Get(key)
	if s.repo != nil {
		removed, err := s.repo.Delete(ctx, key)
		if err != nil {
			return models.TimetableEntry{}, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete timetable entry")
		}
		ok = ok || removed
	}
	s.index.Remove(key)
	return prev, ok, nil
}

// Clear removes every entry of a classroom and returns the count removed.
func (s *EntryStore) Clear(ctx context.Context, classRoomID string, confirm bool) (int, error) {
	if !confirm {
		return 0, appErrors.Clone(appErrors.ErrConfirmationRequired, "clearing a timetable requires confirm=true")
	}
	s.clearMu.Lock()
	defer s.clearMu.Unlock()

	persisted := -1
	if s.repo != nil {
		count, err := s.repo.DeleteByClassRoom(ctx, classRoomID)
		if err != nil {
			return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clear timetable")
		}
		persisted = count
	}
	count, err := s.index.Clear(classRoomID, confirm)
	if err != nil {
		return 0, err
	}
	if persisted > count {
		count = persisted
	}
	return count, nil
}

func (s *EntryStore) reload(ctx context.Context, key models.EntryKey) error {
	fresh, err := s.repo.FindByKey(ctx, key)
	if errors.Is(err, sql.ErrNoRows) {
		s.index.Remove(key)
		return nil
	}
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload timetable entry")
	}
	s.index.Upsert(*fresh)
	return nil
}
