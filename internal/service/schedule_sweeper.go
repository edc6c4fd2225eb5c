package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-api/internal/dto"
	"github.com/noah-isme/timetable-api/internal/models"
	"github.com/noah-isme/timetable-api/pkg/jobs"
)

// SweepJobType tags optimisation jobs queued by the sweeper.
const SweepJobType = "schedule.optimize"

type unpublishedScheduleLister interface {
	ListUnpublished(ctx context.Context) ([]models.Schedule, error)
}

type scheduleOptimizer interface {
	Optimize(ctx context.Context, scheduleID string, req dto.OptimizeRequest) (*dto.OptimizationResult, error)
}

type jobEnqueuer interface {
	Enqueue(job jobs.Job) error
}

// ScheduleSweeperConfig controls the periodic optimisation sweep.
type ScheduleSweeperConfig struct {
	Spec          string
	Algorithm     string
	MaxIterations int
}

// ScheduleSweeper periodically queues an optimisation run for every unpublished schedule.
type ScheduleSweeper struct {
	cron      *cron.Cron
	schedules unpublishedScheduleLister
	optimizer scheduleOptimizer
	queue     jobEnqueuer
	logger    *zap.Logger
	cfg       ScheduleSweeperConfig
}

// NewScheduleSweeper constructs the sweeper. The queue is attached separately because its
// handler is the sweeper itself.
func NewScheduleSweeper(schedules unpublishedScheduleLister, optimizer scheduleOptimizer, logger *zap.Logger, cfg ScheduleSweeperConfig) *ScheduleSweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Spec == "" {
		cfg.Spec = "0 3 * * *"
	}
	if cfg.Algorithm == "" {
		cfg.Algorithm = models.AlgorithmLocalSearch
	}
	return &ScheduleSweeper{
		cron:      cron.New(),
		schedules: schedules,
		optimizer: optimizer,
		logger:    logger,
		cfg:       cfg,
	}
}

// AttachQueue sets the queue sweep jobs are pushed to.
func (s *ScheduleSweeper) AttachQueue(queue jobEnqueuer) {
	s.queue = queue
}

// Start registers the cron entry and starts the scheduler.
func (s *ScheduleSweeper) Start(ctx context.Context) error {
	if s.queue == nil {
		return errors.New("schedule sweeper has no queue")
	}
	if _, err := s.cron.AddFunc(s.cfg.Spec, func() { s.Sweep(ctx) }); err != nil {
		return fmt.Errorf("register sweep %q: %w", s.cfg.Spec, err)
	}
	s.cron.Start()
	s.logger.Info("schedule sweep started", zap.String("spec", s.cfg.Spec), zap.String("algorithm", s.cfg.Algorithm))
	return nil
}

// Stop halts the scheduler and waits for a running sweep to return.
func (s *ScheduleSweeper) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("schedule sweep stopped")
}

// Sweep enqueues one job per unpublished schedule and returns how many were queued.
// Schedules that already have a job in flight are skipped.
func (s *ScheduleSweeper) Sweep(ctx context.Context) int {
	schedules, err := s.schedules.ListUnpublished(ctx)
	if err != nil {
		s.logger.Error("sweep failed to list schedules", zap.Error(err))
		return 0
	}
	queued := 0
	for _, schedule := range schedules {
		err := s.queue.Enqueue(jobs.Job{
			ID:      uuid.NewString(),
			Key:     schedule.ID,
			Type:    SweepJobType,
			Payload: schedule.ID,
		})
		switch {
		case err == nil:
			queued++
		case errors.Is(err, jobs.ErrDuplicate):
			s.logger.Debug("sweep skipped busy schedule", zap.String("schedule_id", schedule.ID))
		default:
			s.logger.Warn("sweep failed to enqueue", zap.String("schedule_id", schedule.ID), zap.Error(err))
		}
	}
	s.logger.Info("sweep queued schedules", zap.Int("queued", queued), zap.Int("candidates", len(schedules)))
	return queued
}

// Handle is the jobs.Handler that runs one queued optimisation.
func (s *ScheduleSweeper) Handle(ctx context.Context, job jobs.Job) error {
	scheduleID, ok := job.Payload.(string)
	if !ok || scheduleID == "" {
		return fmt.Errorf("sweep job %s has no schedule id", job.ID)
	}
	result, err := s.optimizer.Optimize(ctx, scheduleID, dto.OptimizeRequest{
		MaxIterations: s.cfg.MaxIterations,
		Algorithm:     s.cfg.Algorithm,
	})
	if err != nil {
		return err
	}
	s.logger.Info("sweep optimised schedule",
		zap.String("schedule_id", scheduleID),
		zap.Float64("before", result.Before),
		zap.Float64("after", result.After))
	return nil
}
