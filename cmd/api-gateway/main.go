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
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/timetable-api/api/swagger"
	"github.com/noah-isme/timetable-api/internal/handler"
	internalmiddleware "github.com/noah-isme/timetable-api/internal/middleware"
	"github.com/noah-isme/timetable-api/internal/repository"
	"github.com/noah-isme/timetable-api/internal/service"
	"github.com/noah-isme/timetable-api/pkg/cache"
	"github.com/noah-isme/timetable-api/pkg/config"
	"github.com/noah-isme/timetable-api/pkg/database"
	"github.com/noah-isme/timetable-api/pkg/jobs"
	"github.com/noah-isme/timetable-api/pkg/lock"
	"github.com/noah-isme/timetable-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/timetable-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/timetable-api/pkg/middleware/requestid"
)

// @title Timetable API
// @version 1.0.0
// @description University timetable generation, optimisation and validation
// @BasePath /api/v1
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, running without cache and with in-process locks", zap.Error(err))
		redisClient = nil
	}
	var cmdable redis.Cmdable
	if redisClient != nil {
		cmdable = redisClient
		defer redisClient.Close()
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	// Repositories
	semesterRepo := repository.NewSemesterRepository(db)
	userRepo := repository.NewUserRepository(db)
	scheduleRepo := repository.NewScheduleRepository(db)
	lessonRepo := repository.NewLessonRepository(db)
	loadRepo := repository.NewTeachingLoadRepository(db)
	curriculumRepo := repository.NewCurriculumRepository(db)
	classroomRepo := repository.NewClassroomRepository(db)
	slotRepo := repository.NewTimeSlotRepository(db)
	historyRepo := repository.NewOptimizationHistoryRepository(db)
	settingsRepo := repository.NewPenaltySettingsRepository(db)
	cacheRepo := repository.NewCacheRepository(cmdable, logr)

	// Services
	validate := validator.New()
	metricsSvc := service.NewMetricsService()
	locker := lock.New(cmdable, lock.Options{TTL: cfg.Scheduler.LockTTL})
	var cacheStore service.CacheRepository
	if cmdable != nil {
		cacheStore = cacheRepo
	}
	cacheSvc := service.NewCacheService(cacheStore, metricsSvc, cfg.Scheduler.EvaluationCacheTTL, logr)
	settings := service.NewPenaltySettingsLoader(settingsRepo, logr).WithLateSlotThreshold(cfg.Scheduler.LateSlotThreshold)
	detector := service.NewConflictDetector(lessonRepo, logr)
	auditor := service.NewScheduleValidator(scheduleRepo, semesterRepo, lessonRepo, loadRepo, curriculumRepo, classroomRepo, slotRepo, detector, logr)

	generatorSvc := service.NewScheduleGeneratorService(
		semesterRepo, userRepo, scheduleRepo, loadRepo, classroomRepo, slotRepo, lessonRepo, historyRepo,
		settings, locker, metricsSvc, validate, logr,
		service.ScheduleGeneratorConfig{
			MaxIterations:        cfg.Scheduler.MaxIterations,
			DefaultTargetPenalty: cfg.Scheduler.DefaultTargetPenalty,
		},
	)
	optimizerSvc := service.NewScheduleOptimizer(
		scheduleRepo, lessonRepo, slotRepo, historyRepo,
		settings, locker, cacheSvc, metricsSvc, validate, logr,
		service.ScheduleOptimizerConfig{
			MaxIterations: cfg.Scheduler.OptimizeIterations,
			RandomSeed:    cfg.Scheduler.RandomSeed,
		},
	)
	scheduleSvc := service.NewScheduleService(
		scheduleRepo, lessonRepo, historyRepo, semesterRepo, userRepo, slotRepo,
		auditor, detector, settings, cacheSvc, locker, db, validate, logr,
		service.ScheduleServiceConfig{EvaluationTTL: cfg.Scheduler.EvaluationCacheTTL},
	)

	// Background optimisation sweep
	sweeper := service.NewScheduleSweeper(scheduleRepo, optimizerSvc, logr, service.ScheduleSweeperConfig{
		Spec:          cfg.Scheduler.SweepCron,
		Algorithm:     cfg.Scheduler.SweepAlgorithm,
		MaxIterations: cfg.Scheduler.OptimizeIterations,
	})
	sweepQueue := jobs.NewQueue("schedule-sweep", sweeper.Handle, jobs.QueueConfig{
		Workers:    cfg.Scheduler.Workers,
		MaxRetries: cfg.Scheduler.WorkerRetries,
		RetryDelay: 30 * time.Second,
		Logger:     logr,
	})
	sweeper.AttachQueue(sweepQueue)
	if cfg.Scheduler.SweepEnabled {
		sweepQueue.Start(ctx)
		if err := sweeper.Start(ctx); err != nil {
			logr.Fatal("failed to start schedule sweep", zap.Error(err))
		}
	}

	// HTTP
	checks := map[string]handler.ReadinessCheck{
		"postgres": db.PingContext,
	}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsSvc))

	handler.RegisterOpsRoutes(r, handler.NewMetricsHandler(metricsSvc, checks))
	handler.RegisterScheduleRoutes(
		r.Group(cfg.APIPrefix),
		handler.NewScheduleHandler(scheduleSvc),
		handler.NewScheduleGeneratorHandler(generatorSvc, optimizerSvc),
	)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
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

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("http shutdown failed", zap.Error(err))
	}
	if cfg.Scheduler.SweepEnabled {
		sweeper.Stop()
		sweepQueue.Stop()
	}
}
