package main

import (
	"fmt"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/edupoint-id/portal-api/api/swagger"
	"github.com/edupoint-id/portal-api/internal/handler"
	"github.com/edupoint-id/portal-api/internal/middleware"
	"github.com/edupoint-id/portal-api/internal/models"
	"github.com/edupoint-id/portal-api/internal/repository"
	"github.com/edupoint-id/portal-api/internal/service"
	"github.com/edupoint-id/portal-api/pkg/cache"
	"github.com/edupoint-id/portal-api/pkg/config"
	"github.com/edupoint-id/portal-api/pkg/database"
	"github.com/edupoint-id/portal-api/pkg/logger"
	corsmiddleware "github.com/edupoint-id/portal-api/pkg/middleware/cors"
	reqidmiddleware "github.com/edupoint-id/portal-api/pkg/middleware/requestid"
)

// @title EduPoint Portal API
// @version 1.0.0
// @description Schedule, attendance and calendar portal for EduPoint schools
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	var redisClient *redis.Client
	if cfg.Schedule.CacheEnabled {
		redisClient, err = cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, schedule caching disabled", zap.Error(err))
			redisClient = nil
		} else {
			defer redisClient.Close() //nolint:errcheck
		}
	}

	validate := validator.New()

	attendanceRepo := repository.NewAttendanceRepository(db)
	lessonRepo := repository.NewLessonRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	calendarRepo := repository.NewCalendarRepository(db)

	metricsSvc := service.NewMetricsService()
	visibilitySvc := service.NewVisibilityService(enrollmentRepo, lessonRepo, logr)
	resolver := service.NewOccurrenceResolver(logr)
	scheduleSvc := service.NewScheduleService(lessonRepo, attendanceRepo, visibilitySvc, enrollmentRepo, resolver, redisClient, service.ScheduleServiceConfig{
		CacheTTL:     cfg.Schedule.CacheTTL,
		MaxRangeDays: cfg.Schedule.MaxRangeDays,
	}, logr)
	scheduleSvc.SetMetrics(metricsSvc)
	attendanceSvc := service.NewAttendanceService(attendanceRepo, visibilitySvc, enrollmentRepo, validate, logr)
	calendarSvc := service.NewCalendarService(calendarRepo, visibilitySvc, logr)
	lessonSvc := service.NewLessonService(lessonRepo, validate, logr)

	var exportSvc *service.ExportService
	if cfg.Exports.Enabled {
		exportSvc = service.NewExportService(enrollmentRepo, attendanceRepo, visibilitySvc, enrollmentRepo, nil, nil, logr)
	}

	scheduleHandler := handler.NewScheduleHandler(scheduleSvc)
	attendanceHandler := handler.NewAttendanceHandler(attendanceSvc, scheduleSvc, exportSvc)
	calendarHandler := handler.NewCalendarHandler(calendarSvc)
	lessonHandler := handler.NewLessonHandler(lessonSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc, db, redisClient)

	verifier := middleware.NewTokenVerifier(cfg.JWT)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(verifier))
	{
		api.GET("/schedule", scheduleHandler.Range)
		api.GET("/schedule/today", scheduleHandler.Today)

		api.GET("/attendance", attendanceHandler.List)
		api.POST("/attendance", middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher), attendanceHandler.Mark)
		api.GET("/attendance/summary", attendanceHandler.Summary)
		api.GET("/attendance/export", middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher), attendanceHandler.Export)

		api.GET("/calendar", calendarHandler.List)

		api.GET("/lessons", lessonHandler.List)
		api.PUT("/lessons/recurring/:id/reschedule", middleware.RequireRoles(models.RoleAdmin), lessonHandler.Reschedule)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
