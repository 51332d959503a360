package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/pkg/jobs"
)

const refreshJobType = "timetable.conflict_report"

// ReportRefresherConfig tunes the refresh worker pool and the periodic sweep.
type ReportRefresherConfig struct {
	Workers    int
	MaxRetries int
	// CronSpec uses the six-field format with seconds. Empty disables the periodic sweep.
	CronSpec string
	// Resync, when set, runs before each periodic sweep to reload the shared grid.
	Resync func(ctx context.Context) error
}

// ReportRefresher recomputes conflict reports in the background. Requests for the same
// classroom coalesce while one is still waiting in the queue.
type ReportRefresher struct {
	reporter *ConflictReporter
	catalog  *CatalogService
	queue    *jobs.Queue
	cron     *cron.Cron
	cronSpec string
	resync   func(ctx context.Context) error
	logger   *zap.Logger
}

// NewReportRefresher wires the worker pool. Call Start before enqueueing.
func NewReportRefresher(reporter *ConflictReporter, catalog *CatalogService, cfg ReportRefresherConfig, logger *zap.Logger) *ReportRefresher {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &ReportRefresher{
		reporter: reporter,
		catalog:  catalog,
		cron:     cron.New(cron.WithSeconds()),
		cronSpec: cfg.CronSpec,
		resync:   cfg.Resync,
		logger:   logger,
	}
	r.queue = jobs.NewQueue("conflict-reports", r.handle, jobs.QueueConfig{
		Workers:    cfg.Workers,
		MaxRetries: cfg.MaxRetries,
		Logger:     logger,
	})
	return r
}

// Start launches workers and registers the periodic sweep.
func (r *ReportRefresher) Start(ctx context.Context) error {
	r.queue.Start(ctx)
	if r.cronSpec == "" {
		return nil
	}
	if _, err := r.cron.AddFunc(r.cronSpec, func() {
		r.logger.Info("periodic conflict sweep", zap.String("job", "refresh_all_reports"))
		r.Sweep(ctx)
	}); err != nil {
		return fmt.Errorf("register conflict sweep %q: %w", r.cronSpec, err)
	}
	r.cron.Start()
	return nil
}

// Stop halts the cron scheduler and drains the workers.
func (r *ReportRefresher) Stop() {
	stopped := r.cron.Stop()
	<-stopped.Done()
	r.queue.Stop()
}

// Enqueue schedules a refresh for each distinct classroom.
func (r *ReportRefresher) Enqueue(classRoomIDs ...string) {
	seen := make(map[string]struct{}, len(classRoomIDs))
	for _, id := range classRoomIDs {
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		err := r.queue.Enqueue(jobs.Job{ID: id, Type: refreshJobType, Key: id, Payload: id})
		if err != nil {
			level := zap.WarnLevel
			if errors.Is(err, jobs.ErrQueueFull) {
				level = zap.ErrorLevel
			}
			r.logger.Check(level, "conflict report refresh not queued").Write(zap.String("class_room_id", id), zap.Error(err))
		}
	}
}

// EnqueueAll schedules a refresh for every active classroom.
func (r *ReportRefresher) EnqueueAll() {
	rooms := r.catalog.ClassRooms()
	ids := make([]string, 0, len(rooms))
	for _, cr := range rooms {
		ids = append(ids, cr.ID)
	}
	r.Enqueue(ids...)
}

// Sweep resyncs the grid when configured and then refreshes every report. A failed
// resync still refreshes from the grid already held.
func (r *ReportRefresher) Sweep(ctx context.Context) {
	if r.resync != nil {
		if err := r.resync(ctx); err != nil {
			r.logger.Error("timetable resync failed", zap.Error(err))
		}
	}
	r.EnqueueAll()
}

func (r *ReportRefresher) handle(ctx context.Context, job jobs.Job) error {
	classRoomID, _ := job.Payload.(string)
	if classRoomID == "" {
		return nil
	}
	if _, err := r.reporter.Refresh(ctx, classRoomID); err != nil {
		return fmt.Errorf("refresh conflict report %s: %w", classRoomID, err)
	}
	return nil
}
