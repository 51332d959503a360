package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/handler"
	internalmiddleware "github.com/noah-isme/sma-timetable-api/internal/middleware"
	"github.com/noah-isme/sma-timetable-api/internal/service"
	"github.com/noah-isme/sma-timetable-api/pkg/config"
	"github.com/noah-isme/sma-timetable-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-timetable-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-timetable-api/pkg/middleware/requestid"
)

type routerDeps struct {
	cfg       *config.Config
	logger    *zap.Logger
	metrics   *service.MetricsService
	auth      *service.AuthService
	timetable *handler.TimetableHandler
	generator *handler.ScheduleGeneratorHandler
	catalog   *handler.CatalogHandler
	probes    *handler.MetricsHandler
}

func newRouter(d routerDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(d.logger))
	r.Use(corsmiddleware.New(d.cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(d.metrics, "/health", "/ready", d.cfg.Metrics.Path))

	r.GET("/health", d.probes.Health)
	r.GET("/ready", d.probes.Ready)
	if d.cfg.Metrics.Enabled {
		r.GET(d.cfg.Metrics.Path, d.probes.Prometheus)
	}
	if d.cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(d.cfg.APIPrefix)
	api.Use(internalmiddleware.JWT(d.auth))

	view := internalmiddleware.RBAC(internalmiddleware.Viewers...)
	edit := internalmiddleware.RBAC(internalmiddleware.Editors...)

	api.GET("/time-slots", view, d.catalog.TimeSlots)
	api.GET("/time-slots/:id/duration", view, d.catalog.SlotDuration)
	api.GET("/class-rooms", view, d.catalog.ClassRooms)
	api.GET("/subjects", view, d.catalog.Subjects)
	api.GET("/teachers", view, d.catalog.Teachers)
	api.GET("/rooms", view, d.catalog.Rooms)
	api.POST("/teachers/:id/deactivate", edit, d.catalog.DeactivateTeacher)
	api.POST("/rooms/:id/deactivate", edit, d.catalog.DeactivateRoom)

	classRooms := api.Group("/class-rooms/:id/timetable")
	classRooms.GET("", view, d.timetable.Get)
	classRooms.PUT("/:weekday/:slotId", edit, d.timetable.Place)
	classRooms.DELETE("/:weekday/:slotId", edit, d.timetable.Remove)
	classRooms.POST("/clear", edit, d.timetable.Clear)
	classRooms.POST("/generate", edit, d.generator.Generate)
	classRooms.GET("/conflicts", view, d.timetable.Report)
	classRooms.GET("/conflicts/sweep", view, d.timetable.Sweep)

	api.POST("/timetable/conflicts/check", view, d.timetable.Check)

	return r
}
