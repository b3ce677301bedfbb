package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/school-sim/scheduling-api/api/swagger"
	"github.com/school-sim/scheduling-api/internal/handler"
	"github.com/school-sim/scheduling-api/internal/middleware"
	"github.com/school-sim/scheduling-api/internal/models"
	"github.com/school-sim/scheduling-api/internal/repository"
	"github.com/school-sim/scheduling-api/internal/service"
	"github.com/school-sim/scheduling-api/pkg/cache"
	"github.com/school-sim/scheduling-api/pkg/config"
	"github.com/school-sim/scheduling-api/pkg/database"
	"github.com/school-sim/scheduling-api/pkg/locks"
	"github.com/school-sim/scheduling-api/pkg/logger"
	corsmiddleware "github.com/school-sim/scheduling-api/pkg/middleware/cors"
	reqidmiddleware "github.com/school-sim/scheduling-api/pkg/middleware/requestid"
)

// @title School Scheduling API
// @version 1.0.0
// @description Conflict-aware lesson scheduling, availability and timetable service
// @BasePath /
// @schemes http

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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, timetable cache disabled", "error", err)
		redisClient = nil
	}

	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	scheduleRepo := repository.NewScheduleRepository(db)
	classRoomRepo := repository.NewClassRoomRepository(db)
	subjectRepo := repository.NewSubjectRepository(db)
	teacherRepo := repository.NewTeacherRepository(db)

	keyed := locks.NewKeyedMutex()
	metricsSvc := service.NewMetricsService()

	dispatcher := service.NewEventDispatcher(cfg.Events, logr)

	scheduleSvc := service.NewScheduleService(scheduleRepo, classRoomRepo, subjectRepo, teacherRepo, keyed, cfg.Scheduling, dispatcher, metricsSvc, nil, logr)
	availabilitySvc := service.NewAvailabilityService(scheduleRepo, cfg.Scheduling, nil, logr)
	timetableSvc := service.NewTimetableService(scheduleRepo, teacherRepo, classRoomRepo, subjectRepo, cacheRepo, cfg.Timetable.CacheTTL, metricsSvc, logr)
	resolverSvc := service.NewResolverService(scheduleSvc, classRoomRepo, nil, logr)
	classRoomSvc := service.NewClassRoomService(classRoomRepo, nil, logr)
	subjectSvc := service.NewSubjectService(subjectRepo, nil, logr)
	teacherSvc := service.NewTeacherService(teacherRepo, nil, logr)

	dispatcher.Subscribe(timetableSvc.HandleScheduleEvent)

	runCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dispatcher.Start(runCtx)
	defer dispatcher.Stop()

	scheduleHandler := handler.NewScheduleHandler(scheduleSvc, resolverSvc)
	availabilityHandler := handler.NewAvailabilityHandler(availabilitySvc)
	timetableHandler := handler.NewTimetableHandler(timetableSvc)
	classRoomHandler := handler.NewClassRoomHandler(classRoomSvc)
	subjectHandler := handler.NewSubjectHandler(subjectSvc)
	teacherHandler := handler.NewTeacherHandler(teacherSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	staff := []string{string(models.RoleSuperAdmin), string(models.RoleAdmin)}
	readers := []string{string(models.RoleSuperAdmin), string(models.RoleAdmin), string(models.RoleTeacher), string(models.RoleStudent)}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(cfg.JWT.Secret))
	{
		api.GET("/stats", middleware.RBAC(staff...), metricsHandler.Stats)

		schedules := api.Group("/schedules")
		{
			schedules.GET("", middleware.RBAC(readers...), scheduleHandler.List)
			schedules.POST("", middleware.RBAC(staff...), scheduleHandler.Create)
			schedules.POST("/bulk", middleware.RBAC(staff...), scheduleHandler.BulkCreate)
			schedules.POST("/archive", middleware.RBAC(staff...), scheduleHandler.ArchiveYear)
			schedules.GET("/conflicts", middleware.RBAC(staff...), scheduleHandler.AuditConflicts)
			schedules.POST("/conflicts/check", middleware.RBAC(staff...), scheduleHandler.CheckConflicts)
			schedules.POST("/conflicts/resolve", middleware.RBAC(staff...), scheduleHandler.ResolveConflicts)
			schedules.GET("/:id", middleware.RBAC(readers...), scheduleHandler.Get)
			schedules.PUT("/:id", middleware.RBAC(staff...), scheduleHandler.Update)
			schedules.PATCH("/:id/status", middleware.RBAC(staff...), scheduleHandler.SetStatus)
			schedules.DELETE("/:id", middleware.RBAC(staff...), scheduleHandler.Delete)
		}

		availability := api.Group("/availability")
		{
			availability.GET("/slots", middleware.RBAC(readers...), availabilityHandler.Slots)
			availability.GET("/check", middleware.RBAC(readers...), availabilityHandler.Check)
		}

		timetables := api.Group("/timetables")
		{
			timetables.GET("/teachers/:id", middleware.RBAC(readers...), timetableHandler.Teacher)
			timetables.GET("/classrooms/:id", middleware.RBAC(readers...), timetableHandler.ClassRoom)
			timetables.GET("/subjects/:id", middleware.RBAC(readers...), timetableHandler.Subject)
		}

		classrooms := api.Group("/classrooms")
		{
			classrooms.GET("", middleware.RBAC(readers...), classRoomHandler.List)
			classrooms.POST("", middleware.RBAC(staff...), classRoomHandler.Create)
			classrooms.GET("/:id", middleware.RBAC(readers...), classRoomHandler.Get)
			classrooms.PUT("/:id", middleware.RBAC(staff...), classRoomHandler.Update)
			classrooms.DELETE("/:id", middleware.RBAC(staff...), classRoomHandler.Deactivate)
		}

		subjects := api.Group("/subjects")
		{
			subjects.GET("", middleware.RBAC(readers...), subjectHandler.List)
			subjects.POST("", middleware.RBAC(staff...), subjectHandler.Create)
			subjects.GET("/:id", middleware.RBAC(readers...), subjectHandler.Get)
			subjects.PUT("/:id", middleware.RBAC(staff...), subjectHandler.Update)
			subjects.DELETE("/:id", middleware.RBAC(staff...), subjectHandler.Delete)
		}

		teachers := api.Group("/teachers")
		{
			teachers.GET("", middleware.RBAC(readers...), teacherHandler.List)
			teachers.POST("", middleware.RBAC(staff...), teacherHandler.Create)
			teachers.GET("/:id", middleware.RBAC(readers...), teacherHandler.Get)
			teachers.PUT("/:id", middleware.RBAC(staff...), teacherHandler.Update)
			teachers.DELETE("/:id", middleware.RBAC(staff...), teacherHandler.Delete)
		}
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-runCtx.Done()
	logr.Sugar().Infow("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
