package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-api/internal/dto"
	"github.com/noah-isme/timetable-api/internal/models"
	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
	"github.com/noah-isme/timetable-api/pkg/lock"
	"github.com/noah-isme/timetable-api/pkg/middleware/requestid"
)

type semesterReader interface {
	FindByID(ctx context.Context, id string) (*models.Semester, error)
}

type userReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type generatorScheduleStore interface {
	Create(ctx context.Context, exec sqlx.ExtContext, schedule *models.Schedule) error
	UpdateScore(ctx context.Context, id string, score float64) error
}

type teachingLoadLister interface {
	ListDetailedBySemester(ctx context.Context, semesterID string) ([]models.TeachingLoadDetail, error)
}

type classroomLister interface {
	List(ctx context.Context) ([]models.Classroom, error)
}

type lessonCreator interface {
	Create(ctx context.Context, exec sqlx.ExtContext, lesson *models.Lesson) error
}

type historyWriter interface {
	Create(ctx context.Context, entry *models.OptimizationHistory) error
}

// ScheduleGeneratorConfig governs generator behaviour.
type ScheduleGeneratorConfig struct {
	MaxIterations        int
	DefaultTargetPenalty float64
}

// ScheduleGeneratorService builds a complete timetable for a semester from its teaching loads.
type ScheduleGeneratorService struct {
	semesters  semesterReader
	users      userReader
	schedules  generatorScheduleStore
	loads      teachingLoadLister
	classrooms classroomLister
	slots      timeSlotLister
	lessons    lessonCreator
	history    historyWriter
	settings   *PenaltySettingsLoader
	locker     lock.Locker
	metrics    *MetricsService
	validator  *validator.Validate
	logger     *zap.Logger
	cfg        ScheduleGeneratorConfig
}

// NewScheduleGeneratorService wires generator dependencies.
func NewScheduleGeneratorService(
	semesters semesterReader,
	users userReader,
	schedules generatorScheduleStore,
	loads teachingLoadLister,
	classrooms classroomLister,
	slots timeSlotLister,
	lessons lessonCreator,
	history historyWriter,
	settings *PenaltySettingsLoader,
	locker lock.Locker,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg ScheduleGeneratorConfig,
) *ScheduleGeneratorService {
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
		cfg.MaxIterations = 1000
	}
	if cfg.DefaultTargetPenalty <= 0 {
		cfg.DefaultTargetPenalty = 100
	}
	return &ScheduleGeneratorService{
		semesters:  semesters,
		users:      users,
		schedules:  schedules,
		loads:      loads,
		classrooms: classrooms,
		slots:      slots,
		lessons:    lessons,
		history:    history,
		settings:   settings,
		locker:     locker,
		metrics:    metrics,
		validator:  validate,
		logger:     logger,
		cfg:        cfg,
	}
}

// generationRun carries the state of one Generate call.
type generationRun struct {
	phase    dto.GenerationPhase
	semester *models.Semester
	schedule *models.Schedule
	calc     *PenaltyCalculator
	rooms    []models.Classroom
	slots    []models.TimeSlot
	ordering models.SlotOrdering
	index    *placementIndex
}

// Generate builds and persists a new schedule for the requested semester.
func (s *ScheduleGeneratorService) Generate(ctx context.Context, req dto.GenerateScheduleRequest) (*dto.GenerationResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid schedule generation payload")
	}

	semester, err := s.semesters.FindByID(ctx, req.SemesterID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "semester not found")
		}
		return nil, appErrors.Internal(err, "failed to load semester")
	}
	if err := ensureScheduleManager(ctx, s.users, req.ActorID); err != nil {
		return nil, err
	}

	release, err := s.locker.Acquire(ctx, "semester:"+semester.ID+":generate")
	if err != nil {
		return nil, lockError(err)
	}
	defer release()

	start := time.Now()
	run := &generationRun{semester: semester}
	result, err := s.run(ctx, run, req)
	logFields := []zap.Field{
		zap.String("semester_id", semester.ID),
		zap.String("request_id", requestid.FromContext(ctx)),
		zap.String("phase", string(run.phase)),
		zap.Duration("duration", time.Since(start)),
	}
	if run.schedule != nil {
		logFields = append(logFields, zap.String("schedule_id", run.schedule.ID))
	}
	if err != nil {
		s.logger.Error("schedule generation failed", append(logFields, zap.Error(err))...)
		return nil, err
	}
	s.metrics.ObserveGeneration(time.Since(start), result.PlacedCount, result.TotalTasks-result.PlacedCount)
	s.logger.Info("schedule generated", append(logFields,
		zap.Int("placed", result.PlacedCount),
		zap.Int("total", result.TotalTasks),
		zap.Float64("penalty", result.Evaluation.TotalPenalty))...)
	return result, nil
}

func (s *ScheduleGeneratorService) run(ctx context.Context, run *generationRun, req dto.GenerateScheduleRequest) (*dto.GenerationResult, error) {
	weights := s.settings.LoadPenaltySettings(ctx, run.semester.ID)
	run.calc = NewPenaltyCalculator(weights, nil, nil)

	run.phase = dto.PhaseCreateSchedule
	now := time.Now().UTC()
	run.schedule = &models.Schedule{
		ID:           uuid.NewString(),
		SemesterID:   run.semester.ID,
		Name:         fmt.Sprintf("Schedule - Semester %d", run.semester.Number),
		AcademicYear: run.semester.AcademicYear,
		GeneratedBy:  models.GeneratedByAlgorithm,
		CreatedBy:    req.ActorID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.schedules.Create(ctx, nil, run.schedule); err != nil {
		return nil, appErrors.Internal(err, "failed to create schedule")
	}

	run.phase = dto.PhaseLoadData
	loads, err := s.loads.ListDetailedBySemester(ctx, run.semester.ID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load teaching loads")
	}
	if run.rooms, err = s.classrooms.List(ctx); err != nil {
		return nil, appErrors.Internal(err, "failed to load classrooms")
	}
	if run.slots, err = s.slots.List(ctx); err != nil {
		return nil, appErrors.Internal(err, "failed to load time slots")
	}
	run.ordering = models.NewSlotOrdering(run.slots)
	run.index = newPlacementIndex()

	run.phase = dto.PhaseBuildTasks
	tasks := BuildTasks(loads)

	run.phase = dto.PhasePrioritize
	tasks = PrioritizeTasks(tasks)

	run.phase = dto.PhasePlaceLoop
	maxIterations := req.MaxIterations
	if maxIterations <= 0 {
		maxIterations = s.cfg.MaxIterations
	}
	placed := 0
	unplaced := make([]dto.UnplacedTask, 0)
	for i, task := range tasks {
		if err := ctx.Err(); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "schedule generation cancelled")
		}
		if i >= maxIterations {
			unplaced = append(unplaced, unplacedTask(task, "iteration limit reached"))
			continue
		}
		ok, err := s.place(ctx, run, task)
		if err != nil {
			return nil, err
		}
		if ok {
			placed++
			continue
		}
		s.logger.Warn("task could not be placed",
			zap.String("schedule_id", run.schedule.ID),
			zap.String("teaching_load_id", task.TeachingLoadID),
			zap.String("kind", string(task.Kind)),
			zap.String("group", task.GroupCode))
		unplaced = append(unplaced, unplacedTask(task, "no conflict-free placement"))
	}

	run.phase = dto.PhaseEvaluate
	report := run.calc.Evaluate(run.index.lessons(), run.slots)
	if err := s.schedules.UpdateScore(ctx, run.schedule.ID, report.TotalPenalty); err != nil {
		return nil, appErrors.Internal(err, "failed to store schedule score")
	}
	s.metrics.ObservePenalty(report)

	run.phase = dto.PhasePersistHistory
	if req.SaveProgress == nil || *req.SaveProgress {
		if err := s.recordHistory(ctx, run.schedule.ID, report, len(tasks)); err != nil {
			return nil, err
		}
	}

	run.phase = dto.PhaseDone
	target := s.cfg.DefaultTargetPenalty
	if req.TargetPenalty != nil {
		target = *req.TargetPenalty
	}
	return &dto.GenerationResult{
		ScheduleID:    run.schedule.ID,
		PlacedCount:   placed,
		TotalTasks:    len(tasks),
		SuccessRate:   successRate(placed, len(tasks)),
		TargetPenalty: target,
		TargetReached: report.TotalPenalty <= target,
		Evaluation:    report,
		Unplaced:      unplaced,
		Phase:         run.phase,
	}, nil
}

// place tries every day, slot and room for task and persists the conflict-free option with the
// lowest local estimate. The first option found wins ties.
func (s *ScheduleGeneratorService) place(ctx context.Context, run *generationRun, task PlacementTask) (bool, error) {
	course := models.DeriveCourse(task.GroupCode, task.EnrollmentYear, run.semester.StartYear)
	requiredShift, shiftBound := models.RequiredShift(course)

	var (
		best      *models.LessonDetail
		bestScore = math.Inf(1)
	)
search:
	for _, day := range models.TeachingDays {
		for _, slot := range run.slots {
			if shiftBound && slot.Shift != requiredShift {
				continue
			}
			for _, room := range run.rooms {
				if !models.ClassroomAllowed(task.Kind, room.Kind) || room.Capacity < task.StudentCount {
					continue
				}
				candidate := task.detail(day, slot, room, run.schedule.ID, run.semester.StartYear)
				if len(CheckConflicts(candidate, run.index.at(day, slot.ID))) > 0 {
					continue
				}
				score := s.localEstimate(run, slot)
				if score < bestScore {
					c := candidate
					best, bestScore = &c, score
					if score == 0 {
						break search
					}
				}
			}
		}
	}
	if best == nil {
		return false, nil
	}

	best.ID = uuid.NewString()
	lesson := best.Lesson
	if err := s.lessons.Create(ctx, nil, &lesson); err != nil {
		return false, appErrors.Internal(err, "failed to persist lesson")
	}
	best.Lesson = lesson
	run.index.add(*best)
	return true, nil
}

func (s *ScheduleGeneratorService) localEstimate(run *generationRun, slot models.TimeSlot) float64 {
	w := run.calc.Weights()
	score := 0.0
	if run.ordering.IsFirstOfShift(slot.Shift, slot.PairNumber) {
		score += w.EarlyLesson
	}
	if run.ordering.IsLastOfShift(slot.Shift, slot.PairNumber) || run.ordering.Ordinal(slot.ID) >= w.LateSlotThreshold {
		score += w.LateLesson
	}
	return score
}

func (s *ScheduleGeneratorService) recordHistory(ctx context.Context, scheduleID string, report models.PenaltyReport, iterations int) error {
	improvements, err := json.Marshal(map[string]interface{}{
		"hard":       report.Breakdown.Hard,
		"soft":       report.Breakdown.Soft,
		"violations": len(report.Violations.Hard) + len(report.Violations.Soft),
	})
	if err != nil {
		return appErrors.Internal(err, "failed to encode generation summary")
	}
	entry := &models.OptimizationHistory{
		ScheduleID:    scheduleID,
		Algorithm:     models.AlgorithmGreedyBacktracking,
		PenaltyBefore: 0,
		PenaltyAfter:  report.TotalPenalty,
		Iterations:    iterations,
		Improvements:  types.JSONText(improvements),
	}
	if err := s.history.Create(ctx, entry); err != nil {
		return appErrors.Internal(err, "failed to record generation history")
	}
	return nil
}

// ensureScheduleManager requires the acting user to exist and hold a dispatcher or admin role.
func ensureScheduleManager(ctx context.Context, users userReader, actorID string) error {
	user, err := users.FindByID(ctx, actorID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrPreconditionFailed, "acting user not found")
		}
		return appErrors.Internal(err, "failed to load acting user")
	}
	if !user.Role.CanManageSchedules() {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "acting user must be a dispatcher or admin")
	}
	return nil
}

// detail builds the provisional lesson the detector and calculator reason over.
func (t PlacementTask) detail(day models.DayOfWeek, slot models.TimeSlot, room models.Classroom, scheduleID string, referenceYear int) models.LessonDetail {
	return models.LessonDetail{
		Lesson: models.Lesson{
			ScheduleID:     scheduleID,
			TeachingLoadID: t.TeachingLoadID,
			Kind:           t.Kind,
			DayOfWeek:      day,
			TimeSlotID:     slot.ID,
			ClassroomID:    room.ID,
			SubgroupNumber: t.SubgroupNumber,
			IsDouble:       t.IsDouble,
		},
		TeacherID:           t.TeacherID,
		TeacherName:         t.TeacherName,
		GroupID:             t.GroupID,
		GroupCode:           t.GroupCode,
		GroupEnrollmentYear: t.EnrollmentYear,
		GroupStudentCount:   t.StudentCount,
		CurriculumID:        t.CurriculumID,
		DisciplineID:        t.DisciplineID,
		DisciplineName:      t.DisciplineName,
		ClassroomNumber:     room.Number,
		ClassroomCapacity:   room.Capacity,
		ClassroomKind:       room.Kind,
		BuildingID:          room.BuildingID,
		BuildingName:        room.BuildingName,
		Shift:               slot.Shift,
		PairNumber:          slot.PairNumber,
		ReferenceYear:       referenceYear,
	}
}

func unplacedTask(task PlacementTask, reason string) dto.UnplacedTask {
	return dto.UnplacedTask{
		TeachingLoadID: task.TeachingLoadID,
		TeacherID:      task.TeacherID,
		GroupID:        task.GroupID,
		DisciplineName: task.DisciplineName,
		Kind:           task.Kind,
		SubgroupNumber: task.SubgroupNumber,
		Reason:         reason,
	}
}

func successRate(placed, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(placed)/float64(total)*1000) / 10
}

func lockError(err error) error {
	if errors.Is(err, lock.ErrNotAcquired) {
		return appErrors.Clone(appErrors.ErrLocked, "")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to acquire schedule lock")
}

// placementIndex keeps lessons bucketed by (day, slot) for fast conflict checks.
type placementIndex struct {
	order       []models.LessonDetail
	byPlacement map[string][]models.LessonDetail
}

func newPlacementIndex() *placementIndex {
	return &placementIndex{byPlacement: make(map[string][]models.LessonDetail)}
}

func (p *placementIndex) add(lesson models.LessonDetail) {
	p.order = append(p.order, lesson)
	key := placementKey(lesson.DayOfWeek, lesson.TimeSlotID)
	p.byPlacement[key] = append(p.byPlacement[key], lesson)
}

func (p *placementIndex) at(day models.DayOfWeek, slotID string) []models.LessonDetail {
	return p.byPlacement[placementKey(day, slotID)]
}

func (p *placementIndex) lessons() []models.LessonDetail {
	return p.order
}
