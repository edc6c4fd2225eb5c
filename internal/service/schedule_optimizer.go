package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"math"
	"math/rand"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-api/internal/dto"
	"github.com/noah-isme/timetable-api/internal/models"
	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
	"github.com/noah-isme/timetable-api/pkg/lock"
	"github.com/noah-isme/timetable-api/pkg/middleware/requestid"
)

type scheduleScoreStore interface {
	FindByID(ctx context.Context, id string) (*models.Schedule, error)
	UpdateScore(ctx context.Context, id string, score float64) error
}

type lessonPlacementStore interface {
	ListDetailedBySchedule(ctx context.Context, scheduleID string) ([]models.LessonDetail, error)
	UpdatePlacement(ctx context.Context, id string, day models.DayOfWeek, timeSlotID string) error
}

// Move relocates a lesson to another day and slot; the room stays.
type Move struct {
	Day  models.DayOfWeek
	Slot models.TimeSlot
}

// MoveStrategy proposes moves and decides whether a scored move is kept.
type MoveStrategy interface {
	Name() string
	Propose(rng *rand.Rand, lesson models.LessonDetail, days []models.DayOfWeek, slots []models.TimeSlot) Move
	Accept(current, candidate float64, iteration, total int, rng *rand.Rand) bool
}

// HillClimbing keeps only strict improvements.
type HillClimbing struct{}

// Name implements MoveStrategy.
func (HillClimbing) Name() string { return models.AlgorithmLocalSearch }

// Propose implements MoveStrategy.
func (HillClimbing) Propose(rng *rand.Rand, _ models.LessonDetail, days []models.DayOfWeek, slots []models.TimeSlot) Move {
	return randomMove(rng, days, slots)
}

// Accept implements MoveStrategy.
func (HillClimbing) Accept(current, candidate float64, _, _ int, _ *rand.Rand) bool {
	return candidate < current
}

// SimulatedAnnealing accepts worse moves with Metropolis probability under geometric cooling
// from InitialTemperature down to FinalTemperature over the run.
type SimulatedAnnealing struct {
	InitialTemperature float64
	FinalTemperature   float64
}

// Name implements MoveStrategy.
func (SimulatedAnnealing) Name() string { return models.AlgorithmSimulatedAnnealing }

// Propose implements MoveStrategy.
func (SimulatedAnnealing) Propose(rng *rand.Rand, _ models.LessonDetail, days []models.DayOfWeek, slots []models.TimeSlot) Move {
	return randomMove(rng, days, slots)
}

// Accept implements MoveStrategy.
func (a SimulatedAnnealing) Accept(current, candidate float64, iteration, total int, rng *rand.Rand) bool {
	if candidate < current {
		return true
	}
	t := a.temperature(iteration, total)
	if t <= 0 {
		return false
	}
	return rng.Float64() < math.Exp(-(candidate-current)/t)
}

func (a SimulatedAnnealing) temperature(iteration, total int) float64 {
	t0, tn := a.InitialTemperature, a.FinalTemperature
	if t0 <= 0 {
		t0 = 100
	}
	if tn <= 0 || tn >= t0 {
		tn = t0 / 100
	}
	if total <= 1 {
		return t0
	}
	alpha := math.Pow(tn/t0, 1/float64(total-1))
	return t0 * math.Pow(alpha, float64(iteration))
}

func randomMove(rng *rand.Rand, days []models.DayOfWeek, slots []models.TimeSlot) Move {
	return Move{
		Day:  days[rng.Intn(len(days))],
		Slot: slots[rng.Intn(len(slots))],
	}
}

// StrategyFor maps an algorithm name to its strategy; empty selects hill climbing.
func StrategyFor(algorithm string) (MoveStrategy, error) {
	switch algorithm {
	case "", models.AlgorithmLocalSearch:
		return HillClimbing{}, nil
	case models.AlgorithmSimulatedAnnealing:
		return SimulatedAnnealing{InitialTemperature: 100, FinalTemperature: 1}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown optimisation algorithm "+algorithm)
	}
}

// ScheduleOptimizerConfig tunes local search.
type ScheduleOptimizerConfig struct {
	MaxIterations int
	// RandomSeed makes runs reproducible when non-zero.
	RandomSeed int64
}

// ScheduleOptimizer improves an existing schedule by moving single lessons.
type ScheduleOptimizer struct {
	schedules scheduleScoreStore
	lessons   lessonPlacementStore
	slots     timeSlotLister
	history   historyWriter
	settings  *PenaltySettingsLoader
	locker    lock.Locker
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       ScheduleOptimizerConfig
}

// NewScheduleOptimizer wires optimizer dependencies.
func NewScheduleOptimizer(
	schedules scheduleScoreStore,
	lessons lessonPlacementStore,
	slots timeSlotLister,
	history historyWriter,
	settings *PenaltySettingsLoader,
	locker lock.Locker,
	cache *CacheService,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg ScheduleOptimizerConfig,
) *ScheduleOptimizer {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if locker == nil {
		locker = lock.NewLocal(lock.Options{})
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = 100
	}
	return &ScheduleOptimizer{
		schedules: schedules,
		lessons:   lessons,
		slots:     slots,
		history:   history,
		settings:  settings,
		locker:    locker,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
	}
}

// Optimize runs local search over a schedule. Accepted moves are persisted immediately; the
// returned penalty is never above the starting one.
func (o *ScheduleOptimizer) Optimize(ctx context.Context, scheduleID string, req dto.OptimizeRequest) (*dto.OptimizationResult, error) {
	if err := o.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid optimisation payload")
	}
	strategy, err := StrategyFor(req.Algorithm)
	if err != nil {
		return nil, err
	}

	schedule, err := o.schedules.FindByID(ctx, scheduleID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule not found")
		}
		return nil, appErrors.Internal(err, "failed to load schedule")
	}

	release, err := o.locker.Acquire(ctx, schedule.ID)
	if err != nil {
		return nil, lockError(err)
	}
	defer release()

	lessons, err := o.lessons.ListDetailedBySchedule(ctx, schedule.ID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load schedule lessons")
	}
	slots, err := o.slots.List(ctx)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load time slots")
	}
	calc := NewPenaltyCalculator(o.settings.LoadPenaltySettings(ctx, schedule.SemesterID), nil, nil)

	maxIterations := req.MaxIterations
	if maxIterations <= 0 {
		maxIterations = o.cfg.MaxIterations
	}

	start := time.Now()
	search := &localSearch{
		strategy: strategy,
		calc:     calc,
		store:    o.lessons,
		slots:    slots,
		snapshot: lessons,
		rng:      rand.New(rand.NewSource(o.seed())),
		metrics:  o.metrics,
	}
	before := calc.Evaluate(lessons, slots)
	runErr := search.run(ctx, before, maxIterations)
	o.cache.InvalidateSchedule(context.WithoutCancel(ctx), schedule.ID)
	if runErr != nil {
		o.logger.Error("schedule optimisation stopped",
			zap.String("schedule_id", schedule.ID),
			zap.String("request_id", requestid.FromContext(ctx)),
			zap.Int("iterations", search.iterations),
			zap.Error(runErr))
		return nil, runErr
	}

	after := calc.Evaluate(search.snapshot, slots)
	duration := time.Since(start)
	if err := o.schedules.UpdateScore(ctx, schedule.ID, after.TotalPenalty); err != nil {
		return nil, appErrors.Internal(err, "failed to store schedule score")
	}
	if err := o.recordHistory(ctx, schedule.ID, strategy.Name(), before.TotalPenalty, after.TotalPenalty, search, duration); err != nil {
		return nil, err
	}
	o.metrics.ObserveOptimization()
	o.metrics.ObservePenalty(after)

	result := &dto.OptimizationResult{
		ScheduleID:  schedule.ID,
		Algorithm:   strategy.Name(),
		Before:      before.TotalPenalty,
		After:       after.TotalPenalty,
		Improvement: before.TotalPenalty - after.TotalPenalty,
		Iterations:  search.iterations,
		Successful:  search.successful,
		DurationMs:  duration.Milliseconds(),
	}
	o.logger.Info("schedule optimised",
		zap.String("schedule_id", schedule.ID),
		zap.String("request_id", requestid.FromContext(ctx)),
		zap.String("algorithm", result.Algorithm),
		zap.Float64("before", result.Before),
		zap.Float64("after", result.After),
		zap.Int("iterations", result.Iterations),
		zap.Int("successful", result.Successful))
	return result, nil
}

func (o *ScheduleOptimizer) seed() int64 {
	if o.cfg.RandomSeed != 0 {
		return o.cfg.RandomSeed
	}
	return time.Now().UnixNano()
}

func (o *ScheduleOptimizer) recordHistory(ctx context.Context, scheduleID, algorithm string, before, after float64, search *localSearch, duration time.Duration) error {
	improvements, err := json.Marshal(map[string]interface{}{
		"improved":   after < before,
		"reduction":  before - after,
		"successful": search.successful,
	})
	if err != nil {
		return appErrors.Internal(err, "failed to encode optimisation summary")
	}
	entry := &models.OptimizationHistory{
		ScheduleID:    scheduleID,
		Algorithm:     algorithm,
		PenaltyBefore: before,
		PenaltyAfter:  after,
		Iterations:    search.iterations,
		DurationMs:    duration.Milliseconds(),
		Improvements:  types.JSONText(improvements),
	}
	if err := o.history.Create(ctx, entry); err != nil {
		return appErrors.Internal(err, "failed to record optimisation history")
	}
	return nil
}

// localSearch holds the in-memory snapshot of one optimisation run.
type localSearch struct {
	strategy MoveStrategy
	calc     *PenaltyCalculator
	store    lessonPlacementStore
	slots    []models.TimeSlot
	snapshot []models.LessonDetail
	rng      *rand.Rand
	metrics  *MetricsService

	iterations int
	successful int
}

type placement struct {
	day    models.DayOfWeek
	slotID string
	shift  models.Shift
	pair   int
}

func placementOf(l models.LessonDetail) placement {
	return placement{day: l.DayOfWeek, slotID: l.TimeSlotID, shift: l.Shift, pair: l.PairNumber}
}

func (p placement) apply(l models.LessonDetail) models.LessonDetail {
	l.DayOfWeek, l.TimeSlotID, l.Shift, l.PairNumber = p.day, p.slotID, p.shift, p.pair
	return l
}

// run performs up to maxIterations moves. The best placement seen is restored at the end so
// strategies that accept worse moves never leave the schedule worse than they found it.
func (s *localSearch) run(ctx context.Context, start models.PenaltyReport, maxIterations int) error {
	if len(s.snapshot) == 0 || len(s.slots) == 0 {
		return nil
	}

	current := start
	bestTotal := start.TotalPenalty
	best := s.placements()

	var runErr error
	for i := 0; i < maxIterations; i++ {
		if err := ctx.Err(); err != nil {
			runErr = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "schedule optimisation cancelled")
			break
		}

		idx := s.rng.Intn(len(s.snapshot))
		original := s.snapshot[idx]
		move := s.strategy.Propose(s.rng, original, models.TeachingDays, s.slots)
		target := placement{day: move.Day, slotID: move.Slot.ID, shift: move.Slot.Shift, pair: move.Slot.PairNumber}
		if target == placementOf(original) {
			s.iterations++
			s.metrics.RecordMove("unchanged")
			continue
		}

		candidate := target.apply(original)
		s.snapshot[idx] = candidate
		if len(CheckConflicts(candidate, s.snapshot)) > 0 {
			s.snapshot[idx] = original
			s.iterations++
			s.metrics.RecordMove("rejected_conflict")
			continue
		}

		report := s.calc.Evaluate(s.snapshot, s.slots)
		if report.Breakdown.Hard > current.Breakdown.Hard ||
			!s.strategy.Accept(current.TotalPenalty, report.TotalPenalty, i, maxIterations, s.rng) {
			s.snapshot[idx] = original
			s.iterations++
			s.metrics.RecordMove("rejected_score")
			continue
		}

		if err := s.store.UpdatePlacement(ctx, candidate.ID, candidate.DayOfWeek, candidate.TimeSlotID); err != nil {
			s.snapshot[idx] = original
			s.metrics.RecordMove("failed")
			runErr = appErrors.Internal(err, "failed to persist lesson move")
			break
		}

		s.iterations++
		s.successful++
		s.metrics.RecordMove("accepted")
		current = report
		if current.TotalPenalty < bestTotal {
			bestTotal = current.TotalPenalty
			best = s.placements()
		}
	}

	if current.TotalPenalty > bestTotal {
		if err := s.restore(context.WithoutCancel(ctx), best); err != nil && runErr == nil {
			runErr = err
		}
	}
	return runErr
}

func (s *localSearch) placements() map[string]placement {
	result := make(map[string]placement, len(s.snapshot))
	for _, l := range s.snapshot {
		result[l.ID] = placementOf(l)
	}
	return result
}

func (s *localSearch) restore(ctx context.Context, best map[string]placement) error {
	for i, l := range s.snapshot {
		target, ok := best[l.ID]
		if !ok || target == placementOf(l) {
			continue
		}
		if err := s.store.UpdatePlacement(ctx, l.ID, target.day, target.slotID); err != nil {
			return appErrors.Internal(err, "failed to restore best placement")
		}
		s.snapshot[i] = target.apply(l)
	}
	return nil
}
