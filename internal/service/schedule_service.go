package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-api/internal/dto"
	"github.com/noah-isme/timetable-api/internal/models"
	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
	"github.com/noah-isme/timetable-api/pkg/lock"
)

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type scheduleStore interface {
	Create(ctx context.Context, exec sqlx.ExtContext, schedule *models.Schedule) error
	FindByID(ctx context.Context, id string) (*models.Schedule, error)
	ListBySemester(ctx context.Context, semesterID string) ([]models.Schedule, error)
	UpdatePublication(ctx context.Context, id string, published, active bool) error
}

type lessonStore interface {
	FindByID(ctx context.Context, id string) (*models.Lesson, error)
	ListBySchedule(ctx context.Context, scheduleID string) ([]models.Lesson, error)
	ListDetailedBySchedule(ctx context.Context, scheduleID string) ([]models.LessonDetail, error)
	Create(ctx context.Context, exec sqlx.ExtContext, lesson *models.Lesson) error
	BulkCreate(ctx context.Context, exec sqlx.ExtContext, lessons []models.Lesson) error
	Update(ctx context.Context, lesson *models.Lesson) error
	Delete(ctx context.Context, id string) error
}

type historyLister interface {
	ListBySchedule(ctx context.Context, scheduleID string) ([]models.OptimizationHistory, error)
}

type scheduleAuditor interface {
	ValidateSchedule(ctx context.Context, scheduleID string) (*dto.ValidationReport, error)
	ValidateLesson(ctx context.Context, lesson models.Lesson) (*dto.LessonValidation, error)
}

type scheduleConflictFinder interface {
	GetAllConflicts(ctx context.Context, scheduleID string) ([]models.ConflictReport, error)
}

// ScheduleServiceConfig tunes caching of derived schedule views.
type ScheduleServiceConfig struct {
	EvaluationTTL time.Duration
}

// ScheduleService exposes schedule reads, publication, cloning and manual lesson edits.
type ScheduleService struct {
	schedules scheduleStore
	lessons   lessonStore
	history   historyLister
	semesters semesterReader
	users     userReader
	slots     timeSlotLister
	auditor   scheduleAuditor
	conflicts scheduleConflictFinder
	settings  *PenaltySettingsLoader
	cache     *CacheService
	locker    lock.Locker
	tx        txProvider
	validator *validator.Validate
	logger    *zap.Logger
	cfg       ScheduleServiceConfig
}

// NewScheduleService instantiates ScheduleService.
func NewScheduleService(
	schedules scheduleStore,
	lessons lessonStore,
	history historyLister,
	semesters semesterReader,
	users userReader,
	slots timeSlotLister,
	auditor scheduleAuditor,
	conflicts scheduleConflictFinder,
	settings *PenaltySettingsLoader,
	cache *CacheService,
	locker lock.Locker,
	tx txProvider,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg ScheduleServiceConfig,
) *ScheduleService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if locker == nil {
		locker = lock.NewLocal(lock.Options{})
	}
	return &ScheduleService{
		schedules: schedules,
		lessons:   lessons,
		history:   history,
		semesters: semesters,
		users:     users,
		slots:     slots,
		auditor:   auditor,
		conflicts: conflicts,
		settings:  settings,
		cache:     cache,
		locker:    locker,
		tx:        tx,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
	}
}

// Get returns a schedule by id.
func (s *ScheduleService) Get(ctx context.Context, id string) (*models.Schedule, error) {
	schedule, err := s.schedules.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule not found")
		}
		return nil, appErrors.Internal(err, "failed to load schedule")
	}
	return schedule, nil
}

// ListBySemester lists schedules, optionally filtered by semester.
func (s *ScheduleService) ListBySemester(ctx context.Context, query dto.ScheduleListQuery) ([]models.Schedule, error) {
	schedules, err := s.schedules.ListBySemester(ctx, query.SemesterID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list schedules")
	}
	return schedules, nil
}

// Stats aggregates lesson counts and hours of a schedule.
func (s *ScheduleService) Stats(ctx context.Context, id string) (*models.ScheduleStats, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	lessons, err := s.lessons.ListDetailedBySchedule(ctx, id)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load schedule lessons")
	}
	stats := CalculateScheduleStats(lessons)
	return &stats, nil
}

// ListHistory returns generation and optimisation runs of a schedule, newest first.
func (s *ScheduleService) ListHistory(ctx context.Context, id string) ([]models.OptimizationHistory, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	history, err := s.history.ListBySchedule(ctx, id)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load optimisation history")
	}
	return history, nil
}

// Evaluate scores a schedule with its semester's weights. Reports are cached until the
// schedule changes.
func (s *ScheduleService) Evaluate(ctx context.Context, id string) (*models.PenaltyReport, error) {
	schedule, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	var cached models.PenaltyReport
	if s.cache.Get(ctx, EvaluationCacheKey(id), &cached) {
		return &cached, nil
	}

	calc := NewPenaltyCalculator(s.settings.LoadPenaltySettings(ctx, schedule.SemesterID), s.lessons, s.slots)
	report, err := calc.CalculateTotalPenalty(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cache.Set(ctx, EvaluationCacheKey(id), report, s.cfg.EvaluationTTL)
	return report, nil
}

// Conflicts lists every conflicting lesson of a schedule with aggregated counts.
func (s *ScheduleService) Conflicts(ctx context.Context, id string) (*dto.ConflictsResponse, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	reports, err := s.conflicts.GetAllConflicts(ctx, id)
	if err != nil {
		return nil, err
	}
	if reports == nil {
		reports = []models.ConflictReport{}
	}
	return &dto.ConflictsResponse{Reports: reports, Stats: ConflictStats(reports)}, nil
}

// Validate audits a schedule; unknown ids are reported as not found.
func (s *ScheduleService) Validate(ctx context.Context, id string) (*dto.ValidationReport, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.auditor.ValidateSchedule(ctx, id)
}

// Publish marks a valid schedule as published and active.
func (s *ScheduleService) Publish(ctx context.Context, id string) (*dto.PublishResult, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	release, err := s.locker.Acquire(ctx, id)
	if err != nil {
		return nil, lockError(err)
	}
	defer release()

	report, err := s.auditor.ValidateSchedule(ctx, id)
	if err != nil {
		return nil, err
	}
	if !report.IsValid {
		return nil, appErrors.WithDetails(appErrors.ErrPreconditionFailed, "schedule has validation errors and cannot be published", report)
	}
	if err := s.schedules.UpdatePublication(ctx, id, true, true); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule not found")
		}
		return nil, appErrors.Internal(err, "failed to publish schedule")
	}
	schedule, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.logger.Info("schedule published", zap.String("schedule_id", id))
	return &dto.PublishResult{Schedule: *schedule, Validation: *report}, nil
}

// CreateLesson places a lesson by hand after validating it.
func (s *ScheduleService) CreateLesson(ctx context.Context, req dto.CreateLessonRequest) (*models.Lesson, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid lesson payload")
	}
	if _, err := s.Get(ctx, req.ScheduleID); err != nil {
		return nil, err
	}

	release, err := s.locker.Acquire(ctx, req.ScheduleID)
	if err != nil {
		return nil, lockError(err)
	}
	defer release()

	lesson := models.Lesson{
		ScheduleID:     req.ScheduleID,
		TeachingLoadID: req.TeachingLoadID,
		Kind:           models.LessonKind(req.Kind),
		DayOfWeek:      models.DayOfWeek(req.DayOfWeek),
		TimeSlotID:     req.TimeSlotID,
		ClassroomID:    req.ClassroomID,
		SubgroupNumber: req.SubgroupNumber,
		IsDouble:       req.IsDouble,
	}
	if err := s.ensurePlaceable(ctx, lesson); err != nil {
		return nil, err
	}
	if err := s.lessons.Create(ctx, nil, &lesson); err != nil {
		return nil, appErrors.Internal(err, "failed to create lesson")
	}
	s.cache.InvalidateSchedule(ctx, lesson.ScheduleID)
	return &lesson, nil
}

// UpdateLesson applies a partial change to a lesson after validating the result.
func (s *ScheduleService) UpdateLesson(ctx context.Context, id string, req dto.UpdateLessonRequest) (*models.Lesson, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid lesson payload")
	}
	lesson, err := s.findLesson(ctx, id)
	if err != nil {
		return nil, err
	}

	release, err := s.locker.Acquire(ctx, lesson.ScheduleID)
	if err != nil {
		return nil, lockError(err)
	}
	defer release()

	if req.Kind != nil {
		lesson.Kind = models.LessonKind(*req.Kind)
	}
	if req.DayOfWeek != nil {
		lesson.DayOfWeek = models.DayOfWeek(*req.DayOfWeek)
	}
	if req.TimeSlotID != nil {
		lesson.TimeSlotID = *req.TimeSlotID
	}
	if req.ClassroomID != nil {
		lesson.ClassroomID = *req.ClassroomID
	}
	if req.SubgroupNumber != nil {
		lesson.SubgroupNumber = req.SubgroupNumber
	}
	if req.IsDouble != nil {
		lesson.IsDouble = *req.IsDouble
	}

	if err := s.ensurePlaceable(ctx, *lesson); err != nil {
		return nil, err
	}
	if err := s.lessons.Update(ctx, lesson); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "lesson not found")
		}
		return nil, appErrors.Internal(err, "failed to update lesson")
	}
	s.cache.InvalidateSchedule(ctx, lesson.ScheduleID)
	return lesson, nil
}

// DeleteLesson removes a lesson from its schedule.
func (s *ScheduleService) DeleteLesson(ctx context.Context, id string) error {
	lesson, err := s.findLesson(ctx, id)
	if err != nil {
		return err
	}
	release, err := s.locker.Acquire(ctx, lesson.ScheduleID)
	if err != nil {
		return lockError(err)
	}
	defer release()

	if err := s.lessons.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "lesson not found")
		}
		return appErrors.Internal(err, "failed to delete lesson")
	}
	s.cache.InvalidateSchedule(ctx, lesson.ScheduleID)
	return nil
}

// Clone copies a schedule and all of its lessons in one transaction.
func (s *ScheduleService) Clone(ctx context.Context, id string, req dto.CloneScheduleRequest) (schedule *models.Schedule, err error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid clone payload")
	}
	source, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := ensureScheduleManager(ctx, s.users, req.ActorID); err != nil {
		return nil, err
	}

	clone := models.Schedule{
		ID:           uuid.NewString(),
		SemesterID:   source.SemesterID,
		Name:         source.Name + " (copy)",
		AcademicYear: source.AcademicYear,
		GeneratedBy:  models.GeneratedByManual,
		CreatedBy:    req.ActorID,
	}
	if req.Name != "" {
		clone.Name = req.Name
	}
	if req.SemesterID != "" && req.SemesterID != source.SemesterID {
		semester, err := s.semesters.FindByID(ctx, req.SemesterID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "target semester not found")
			}
			return nil, appErrors.Internal(err, "failed to load semester")
		}
		clone.SemesterID = semester.ID
		clone.AcademicYear = semester.AcademicYear
	}

	lessons, err := s.lessons.ListBySchedule(ctx, source.ID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load schedule lessons")
	}
	copies := make([]models.Lesson, 0, len(lessons))
	for _, lesson := range lessons {
		lesson.ID = ""
		lesson.ScheduleID = clone.ID
		lesson.CreatedAt = time.Time{}
		copies = append(copies, lesson)
	}

	if s.tx == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.schedules.Create(ctx, tx, &clone); err != nil {
		return nil, appErrors.Internal(err, "failed to create schedule copy")
	}
	if err = s.lessons.BulkCreate(ctx, tx, copies); err != nil {
		return nil, appErrors.Internal(err, "failed to copy lessons")
	}
	if err = tx.Commit(); err != nil {
		return nil, appErrors.Internal(err, "failed to commit schedule copy")
	}

	s.logger.Info("schedule cloned",
		zap.String("source_id", source.ID),
		zap.String("schedule_id", clone.ID),
		zap.Int("lessons", len(copies)))
	return &clone, nil
}

func (s *ScheduleService) findLesson(ctx context.Context, id string) (*models.Lesson, error) {
	lesson, err := s.lessons.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "lesson not found")
		}
		return nil, appErrors.Internal(err, "failed to load lesson")
	}
	return lesson, nil
}

// ensurePlaceable maps a failed lesson validation to a typed error: conflicts become CONFLICT,
// anything else VALIDATION_ERROR.
func (s *ScheduleService) ensurePlaceable(ctx context.Context, lesson models.Lesson) error {
	validation, err := s.auditor.ValidateLesson(ctx, lesson)
	if err != nil {
		return err
	}
	if validation.IsValid {
		return nil
	}
	if len(validation.Conflicts) > 0 {
		conflictErr := &models.ScheduleConflictError{Message: "lesson conflicts with the schedule", Conflicts: validation.Conflicts}
		wrapped := appErrors.WithDetails(appErrors.ErrConflict, conflictErr.Message, validation)
		wrapped.Err = conflictErr
		return wrapped
	}
	return appErrors.WithDetails(appErrors.ErrValidation, "invalid lesson", validation)
}
