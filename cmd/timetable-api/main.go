package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-timetable-api/api/swagger"
	"github.com/noah-isme/sma-timetable-api/internal/handler"
	"github.com/noah-isme/sma-timetable-api/internal/repository"
	"github.com/noah-isme/sma-timetable-api/internal/service"
	"github.com/noah-isme/sma-timetable-api/pkg/cache"
	"github.com/noah-isme/sma-timetable-api/pkg/config"
	"github.com/noah-isme/sma-timetable-api/pkg/database"
	"github.com/noah-isme/sma-timetable-api/pkg/lock"
	"github.com/noah-isme/sma-timetable-api/pkg/logger"
)

// @title School Timetable API
// @version 1.0.0
// @description Classroom timetables with teacher and room conflict detection.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Fatal("server failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	checks := map[string]handler.ReadinessCheck{}

	var db *sqlx.DB
	if cfg.Timetable.Persistence {
		conn, err := database.NewPostgres(ctx, cfg.Database)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer conn.Close() //nolint:errcheck
		db = conn
		checks["postgres"] = db.PingContext
	}

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}

	metrics := service.NewMetricsService()

	var locker lock.Locker = lock.NewLocalLock()
	var cacheSvc *service.CacheService
	if redisClient != nil {
		cacheRepo := repository.NewCacheRepository(redisClient, logr)
		defer cacheRepo.Close() //nolint:errcheck
		cacheSvc = service.NewCacheService(cacheRepo, metrics, cfg.Timetable.ReportCacheTTL, logr, true)
		locker = lock.NewRedisLock(redisClient)
		checks["redis"] = cacheRepo.Ping
	}

	catalog, store, detector, err := buildEngine(ctx, cfg, db, metrics, logr)
	if err != nil {
		return err
	}

	generator := service.NewScheduleGeneratorService(catalog, store, detector, locker, metrics, logr, service.ScheduleGeneratorConfig{
		SchoolDays: cfg.Timetable.SchoolDays,
		LockTTL:    cfg.Timetable.GenerationLockTTL,
	})
	reporter := service.NewConflictReporter(detector, catalog, cacheSvc, cfg.Timetable.ReportCacheTTL, logr)
	refresher := service.NewReportRefresher(reporter, catalog, service.ReportRefresherConfig{
		Workers:    cfg.Timetable.RefreshWorkers,
		MaxRetries: cfg.Timetable.RefreshRetries,
		CronSpec:   cfg.Timetable.SweepCron,
		Resync:     store.Hydrate,
	}, logr)
	if err := refresher.Start(ctx); err != nil {
		return err
	}
	defer refresher.Stop()

	timetable := service.NewTimetableService(
		catalog,
		store,
		detector,
		generator,
		reporter,
		refresher,
		service.NewSequenceGate(cfg.Timetable.CheckSessionMaxAge),
		metrics,
		validator.New(),
		logr,
		service.TimetableConfig{SchoolDays: cfg.Timetable.SchoolDays},
	)
	auth := service.NewAuthService(logr, service.AuthConfig{
		Secret:   cfg.JWT.Secret,
		Issuer:   cfg.JWT.Issuer,
		Audience: cfg.JWT.Audience,
	})

	router := newRouter(routerDeps{
		cfg:       cfg,
		logger:    logr,
		metrics:   metrics,
		auth:      auth,
		timetable: handler.NewTimetableHandler(timetable, logr),
		generator: handler.NewScheduleGeneratorHandler(timetable),
		catalog:   handler.NewCatalogHandler(catalog, timetable),
		probes:    handler.NewMetricsHandler(metrics, checks),
	})

	// Warm the report cache once the engine is serving.
	refresher.EnqueueAll()

	return serve(ctx, cfg, router, logr)
}

// buildEngine assembles the scheduling core. With db nil the engine runs in memory,
// seeded from the optional catalog file.
func buildEngine(ctx context.Context, cfg *config.Config, db *sqlx.DB, metrics *service.MetricsService, logr *zap.Logger) (*service.CatalogService, *service.EntryStore, *service.ConflictDetector, error) {
	index := service.NewScheduleIndex()
	detectorCfg := service.ConflictDetectorConfig{
		SweepMode:       cfg.Timetable.SweepMode,
		PerCellMaxCells: cfg.Timetable.PerCellMaxCells,
		Concurrency:     cfg.Timetable.SweepConcurrency,
	}

	if db == nil {
		catalog := service.NewCatalogService(nil, logr)
		if cfg.Timetable.CatalogFile != "" {
			snap, err := service.LoadSnapshotFile(cfg.Timetable.CatalogFile)
			if err != nil {
				return nil, nil, nil, err
			}
			catalog.Load(snap)
		}
		store := service.NewEntryStore(index, nil, logr)
		detector := service.NewConflictDetector(index, nil, detectorCfg, metrics, logr)
		return catalog, store, detector, nil
	}

	timetableRepo := repository.NewTimetableRepository(db)
	catalog := service.NewCatalogService(repository.NewCatalogRepository(db), logr)
	if err := catalog.Reload(ctx); err != nil {
		return nil, nil, nil, err
	}
	store := service.NewEntryStore(index, timetableRepo, logr)
	if err := store.Hydrate(ctx); err != nil {
		return nil, nil, nil, err
	}
	logr.Info("timetable hydrated", zap.Int("entries", index.Len()))
	detector := service.NewConflictDetector(index, timetableRepo, detectorCfg, metrics, logr)
	return catalog, store, detector, nil
}

func serve(ctx context.Context, cfg *config.Config, router *gin.Engine, logr *zap.Logger) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
