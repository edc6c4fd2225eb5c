package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/timetable-api/internal/dto"
	"github.com/noah-isme/timetable-api/internal/models"
	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
)

type auditorStub struct {
	report *dto.ValidationReport
	lesson *dto.LessonValidation
	err    error
	calls  int
}

func (a *auditorStub) ValidateSchedule(ctx context.Context, scheduleID string) (*dto.ValidationReport, error) {
	a.calls++
	if a.err != nil {
		return nil, a.err
	}
	return a.report, nil
}

func (a *auditorStub) ValidateLesson(ctx context.Context, lesson models.Lesson) (*dto.LessonValidation, error) {
	if a.err != nil {
		return nil, a.err
	}
	if a.lesson == nil {
		return &dto.LessonValidation{IsValid: true, Errors: []dto.LessonFieldError{}}, nil
	}
	return a.lesson, nil
}

// memoryCacheRepo stores JSON payloads the way the Redis repository does.
type memoryCacheRepo struct {
	mu      sync.Mutex
	entries map[string][]byte
	deleted []string
}

func newMemoryCacheRepo() *memoryCacheRepo {
	return &memoryCacheRepo{entries: map[string][]byte{}}
}

func (r *memoryCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	payload, ok := r.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(payload, dest)
}

func (r *memoryCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[key] = payload
	return nil
}

func (r *memoryCacheRepo) Delete(ctx context.Context, keys ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, key := range keys {
		delete(r.entries, key)
		r.deleted = append(r.deleted, key)
	}
	return nil
}

type scheduleServiceFixture struct {
	service   *ScheduleService
	schedules *scheduleMemoryStore
	lessons   *lessonMemoryStore
	history   *historyMemoryStore
	auditor   *auditorStub
	cacheRepo *memoryCacheRepo
	metrics   *MetricsService
}

func newScheduleServiceFixture(t *testing.T, tx txProvider, lessons ...models.LessonDetail) *scheduleServiceFixture {
	t.Helper()
	f := &scheduleServiceFixture{
		schedules: newScheduleMemoryStore(models.Schedule{ID: "sched-1", SemesterID: "sem-1", Name: "Base", AcademicYear: "2024-2025"}),
		lessons:   newLessonMemoryStore(lessons...),
		history:   &historyMemoryStore{},
		auditor:   &auditorStub{report: &dto.ValidationReport{IsValid: true}},
		cacheRepo: newMemoryCacheRepo(),
		metrics:   NewMetricsService(),
	}
	cache := NewCacheService(f.cacheRepo, f.metrics, time.Minute, nil)
	f.service = NewScheduleService(
		f.schedules,
		f.lessons,
		f.history,
		semesterStub{semester: fixtureSemester()},
		dispatcherUsers(),
		slotListStub{slots: fixtureSlots()},
		f.auditor,
		NewConflictDetector(f.lessons, nil),
		NewPenaltySettingsLoader(nil, nil),
		cache,
		nil,
		tx,
		nil,
		nil,
		ScheduleServiceConfig{EvaluationTTL: time.Minute},
	)
	return f
}

func requireAppError(t *testing.T, err error, code string) *appErrors.Error {
	t.Helper()
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr), "expected *errors.Error, got %T", err)
	assert.Equal(t, code, appErr.Code)
	return appErr
}

func TestScheduleServiceGetNotFound(t *testing.T) {
	f := newScheduleServiceFixture(t, nil)

	_, err := f.service.Get(context.Background(), "missing")
	requireAppError(t, err, appErrors.ErrNotFound.Code)

	_, err = f.service.Stats(context.Background(), "missing")
	requireAppError(t, err, appErrors.ErrNotFound.Code)
}

func TestScheduleServiceEvaluateCachesUntilChange(t *testing.T) {
	f := newScheduleServiceFixture(t, nil,
		fixtureLesson("l1", "t1", "g1", roomHall, models.Monday, slotM1),
	)
	ctx := context.Background()

	report, err := f.service.Evaluate(ctx, "sched-1")
	require.NoError(t, err)
	assert.Equal(t, 10.0, report.TotalPenalty)

	// A direct store edit bypasses invalidation, so the cached report is served.
	f.lessons.details[0].TimeSlotID, f.lessons.details[0].PairNumber = "m2", 2
	report, err = f.service.Evaluate(ctx, "sched-1")
	require.NoError(t, err)
	assert.Equal(t, 10.0, report.TotalPenalty)

	require.NoError(t, f.service.DeleteLesson(ctx, "l1"))
	assert.Contains(t, f.cacheRepo.deleted, EvaluationCacheKey("sched-1"))

	report, err = f.service.Evaluate(ctx, "sched-1")
	require.NoError(t, err)
	assert.Equal(t, 0.0, report.TotalPenalty)

	snapshot := f.metrics.Snapshot()
	assert.Equal(t, uint64(1), snapshot.CacheHits)
	assert.Equal(t, uint64(2), snapshot.CacheMisses)
}

func TestScheduleServiceConflicts(t *testing.T) {
	f := newScheduleServiceFixture(t, nil,
		fixtureLesson("l1", "t1", "g1", roomHall, models.Monday, slotM2),
		fixtureLesson("l2", "t1", "g2", roomHall2, models.Monday, slotM2),
		fixtureLesson("l3", "t2", "g3", roomHall, models.Monday, slotM3),
	)

	resp, err := f.service.Conflicts(context.Background(), "sched-1")
	require.NoError(t, err)
	assert.Len(t, resp.Reports, 2)
	assert.Equal(t, 2, resp.Stats.Total)
	assert.Equal(t, 2, resp.Stats.ByType[models.ConflictTeacher])
}

func TestScheduleServicePublish(t *testing.T) {
	t.Run("rejects invalid schedule", func(t *testing.T) {
		f := newScheduleServiceFixture(t, nil)
		f.auditor.report = &dto.ValidationReport{
			IsValid: false,
			Errors:  []dto.ValidationIssue{{Type: IssueIncompleteSchedule, Message: "missing lessons"}},
		}

		_, err := f.service.Publish(context.Background(), "sched-1")
		appErr := requireAppError(t, err, appErrors.ErrPreconditionFailed.Code)
		assert.Equal(t, f.auditor.report, appErr.Details)
		assert.Equal(t, 0, f.schedules.publishCall)
	})

	t.Run("publishes valid schedule", func(t *testing.T) {
		f := newScheduleServiceFixture(t, nil)

		result, err := f.service.Publish(context.Background(), "sched-1")
		require.NoError(t, err)
		assert.True(t, result.Schedule.IsPublished)
		assert.True(t, result.Schedule.IsActive)
		assert.True(t, result.Validation.IsValid)
		assert.Equal(t, 1, f.schedules.publishCall)
	})

	t.Run("unknown schedule", func(t *testing.T) {
		f := newScheduleServiceFixture(t, nil)

		_, err := f.service.Publish(context.Background(), "missing")
		requireAppError(t, err, appErrors.ErrNotFound.Code)
		assert.Equal(t, 0, f.auditor.calls)
	})
}

func TestScheduleServiceCreateLesson(t *testing.T) {
	req := dto.CreateLessonRequest{
		ScheduleID:     "sched-1",
		TeachingLoadID: "load-t1-g1",
		Kind:           string(models.LessonLecture),
		DayOfWeek:      string(models.Monday),
		TimeSlotID:     "m2",
		ClassroomID:    "hall-1",
	}

	t.Run("creates lesson", func(t *testing.T) {
		f := newScheduleServiceFixture(t, nil)

		lesson, err := f.service.CreateLesson(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, "lesson-new", lesson.ID)
		require.Len(t, f.lessons.created, 1)
		assert.Equal(t, models.Monday, f.lessons.created[0].DayOfWeek)
	})

	t.Run("conflict is reported", func(t *testing.T) {
		f := newScheduleServiceFixture(t, nil)
		f.auditor.lesson = &dto.LessonValidation{
			IsValid:   false,
			Errors:    []dto.LessonFieldError{{Field: "placement", Message: "teacher busy", Type: string(models.ConflictTeacher)}},
			Conflicts: []models.Conflict{{Type: models.ConflictTeacher, Severity: models.SeverityCritical, Message: "teacher busy"}},
		}

		_, err := f.service.CreateLesson(context.Background(), req)
		requireAppError(t, err, appErrors.ErrConflict.Code)
		var conflictErr *models.ScheduleConflictError
		require.True(t, errors.As(err, &conflictErr))
		assert.Len(t, conflictErr.Conflicts, 1)
		assert.Empty(t, f.lessons.created)
	})

	t.Run("invalid fields", func(t *testing.T) {
		f := newScheduleServiceFixture(t, nil)
		f.auditor.lesson = &dto.LessonValidation{
			Errors: []dto.LessonFieldError{{Field: "classroomId", Message: "classroomId not found"}},
		}

		_, err := f.service.CreateLesson(context.Background(), req)
		requireAppError(t, err, appErrors.ErrValidation.Code)
	})

	t.Run("bad payload", func(t *testing.T) {
		f := newScheduleServiceFixture(t, nil)
		bad := req
		bad.Kind = "SEMINAR"

		_, err := f.service.CreateLesson(context.Background(), bad)
		requireAppError(t, err, appErrors.ErrValidation.Code)
	})
}

func TestScheduleServiceUpdateLesson(t *testing.T) {
	f := newScheduleServiceFixture(t, nil,
		fixtureLesson("l1", "t1", "g1", roomHall, models.Monday, slotM1),
	)
	slot := "m3"
	day := string(models.Tuesday)

	lesson, err := f.service.UpdateLesson(context.Background(), "l1", dto.UpdateLessonRequest{TimeSlotID: &slot, DayOfWeek: &day})
	require.NoError(t, err)
	assert.Equal(t, "m3", lesson.TimeSlotID)
	assert.Equal(t, models.Tuesday, lesson.DayOfWeek)
	assert.Equal(t, "hall-1", lesson.ClassroomID)
	assert.Equal(t, 1, f.lessons.updates)
}

func TestScheduleServiceDeleteLessonNotFound(t *testing.T) {
	f := newScheduleServiceFixture(t, nil)

	err := f.service.DeleteLesson(context.Background(), "ghost")
	requireAppError(t, err, appErrors.ErrNotFound.Code)
}

func TestScheduleServiceListHistory(t *testing.T) {
	f := newScheduleServiceFixture(t, nil)
	require.NoError(t, f.history.Create(context.Background(), &models.OptimizationHistory{ID: "h1", ScheduleID: "sched-1", Algorithm: models.AlgorithmLocalSearch}))

	history, err := f.service.ListHistory(context.Background(), "sched-1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, models.AlgorithmLocalSearch, history[0].Algorithm)
}

func TestScheduleServiceClone(t *testing.T) {
	t.Run("copies schedule and lessons", func(t *testing.T) {
		tx, mock := newTxProviderMock(t)
		f := newScheduleServiceFixture(t, tx,
			fixtureLesson("l1", "t1", "g1", roomHall, models.Monday, slotM2),
			fixtureLesson("l2", "t2", "g2", roomHall2, models.Monday, slotM2),
		)
		mock.ExpectBegin()
		mock.ExpectCommit()

		clone, err := f.service.Clone(context.Background(), "sched-1", dto.CloneScheduleRequest{ActorID: "dispatcher-1"})
		require.NoError(t, err)
		assert.NotEqual(t, "sched-1", clone.ID)
		assert.Equal(t, "Base (copy)", clone.Name)
		assert.Equal(t, models.GeneratedByManual, clone.GeneratedBy)
		assert.Equal(t, "dispatcher-1", clone.CreatedBy)

		require.Len(t, f.lessons.created, 2)
		for _, lesson := range f.lessons.created {
			assert.Empty(t, lesson.ID)
			assert.Equal(t, clone.ID, lesson.ScheduleID)
		}
		_, err = f.schedules.FindByID(context.Background(), clone.ID)
		require.NoError(t, err)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back on failure", func(t *testing.T) {
		tx, mock := newTxProviderMock(t)
		f := newScheduleServiceFixture(t, tx)
		f.schedules.createErr = errors.New("insert failed")
		mock.ExpectBegin()
		mock.ExpectRollback()

		_, err := f.service.Clone(context.Background(), "sched-1", dto.CloneScheduleRequest{ActorID: "dispatcher-1", Name: "Draft"})
		requireAppError(t, err, appErrors.ErrInternal.Code)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("requires schedule manager", func(t *testing.T) {
		f := newScheduleServiceFixture(t, nil)

		_, err := f.service.Clone(context.Background(), "sched-1", dto.CloneScheduleRequest{ActorID: "teacher-1"})
		requireAppError(t, err, appErrors.ErrPreconditionFailed.Code)
	})

	t.Run("unknown target semester", func(t *testing.T) {
		f := newScheduleServiceFixture(t, nil)

		_, err := f.service.Clone(context.Background(), "sched-1", dto.CloneScheduleRequest{ActorID: "dispatcher-1", SemesterID: "sem-9"})
		requireAppError(t, err, appErrors.ErrNotFound.Code)
	})
}
