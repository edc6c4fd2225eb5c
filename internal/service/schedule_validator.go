package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-api/internal/dto"
	"github.com/noah-isme/timetable-api/internal/models"
	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
)

// Validation issue types.
const (
	IssueScheduleNotFound     = "SCHEDULE_NOT_FOUND"
	IssueConflictsFound       = "CONFLICTS_FOUND"
	IssueIncompleteSchedule   = "INCOMPLETE_SCHEDULE"
	IssuePartialCoverage      = "PARTIAL_COVERAGE"
	IssueCurriculumMismatch   = "CURRICULUM_MISMATCH"
	IssueTeachingLoadMismatch = "TEACHING_LOAD_MISMATCH"
)

// curriculumTolerance is the relative difference allowed between planned and scheduled hours.
const curriculumTolerance = 0.1

type scheduleFinder interface {
	FindByID(ctx context.Context, id string) (*models.Schedule, error)
}

type curriculumLister interface {
	ListBySemester(ctx context.Context, semesterID string) ([]models.Curriculum, error)
}

type teachingLoadReader interface {
	ListDetailedBySemester(ctx context.Context, semesterID string) ([]models.TeachingLoadDetail, error)
	FindDetailByID(ctx context.Context, id string) (*models.TeachingLoadDetail, error)
}

type classroomFinder interface {
	FindByID(ctx context.Context, id string) (*models.Classroom, error)
}

type timeSlotFinder interface {
	FindByID(ctx context.Context, id string) (*models.TimeSlot, error)
}

type slotConflictDetector interface {
	DetectConflicts(ctx context.Context, candidate models.LessonDetail, scheduleID string) ([]models.Conflict, error)
}

// ScheduleValidator audits complete schedules and single lessons.
type ScheduleValidator struct {
	schedules  scheduleFinder
	semesters  semesterReader
	lessons    lessonDetailReader
	loads      teachingLoadReader
	curricula  curriculumLister
	classrooms classroomFinder
	slots      timeSlotFinder
	detector   slotConflictDetector
	logger     *zap.Logger
}

// NewScheduleValidator constructs the validator.
func NewScheduleValidator(
	schedules scheduleFinder,
	semesters semesterReader,
	lessons lessonDetailReader,
	loads teachingLoadReader,
	curricula curriculumLister,
	classrooms classroomFinder,
	slots timeSlotFinder,
	detector slotConflictDetector,
	logger *zap.Logger,
) *ScheduleValidator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScheduleValidator{
		schedules:  schedules,
		semesters:  semesters,
		lessons:    lessons,
		loads:      loads,
		curricula:  curricula,
		classrooms: classrooms,
		slots:      slots,
		detector:   detector,
		logger:     logger,
	}
}

// ValidateSchedule runs every schedule-level check. A missing schedule yields an invalid
// report rather than an error.
func (v *ScheduleValidator) ValidateSchedule(ctx context.Context, scheduleID string) (*dto.ValidationReport, error) {
	report := &dto.ValidationReport{Errors: []dto.ValidationIssue{}, Warnings: []dto.ValidationIssue{}}

	schedule, err := v.schedules.FindByID(ctx, scheduleID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			report.Errors = append(report.Errors, dto.ValidationIssue{Type: IssueScheduleNotFound, Message: "schedule not found"})
			return report, nil
		}
		return nil, appErrors.Internal(err, "failed to load schedule")
	}

	lessons, err := v.lessons.ListDetailedBySchedule(ctx, schedule.ID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load schedule lessons")
	}
	loads, err := v.loads.ListDetailedBySemester(ctx, schedule.SemesterID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load teaching loads")
	}
	curricula, err := v.curricula.ListBySemester(ctx, schedule.SemesterID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load curricula")
	}

	if conflicts := CollectConflictReports(lessons); len(conflicts) > 0 {
		stats := ConflictStats(conflicts)
		report.Errors = append(report.Errors, dto.ValidationIssue{
			Type:    IssueConflictsFound,
			Message: fmt.Sprintf("%d conflict(s) across %d lesson(s)", stats.Total, len(conflicts)),
			Details: stats,
		})
	}

	byLoad := lo.GroupBy(lessons, func(l models.LessonDetail) string { return l.TeachingLoadID })
	v.checkCompleteness(report, loads, byLoad)
	v.checkCurricula(report, curricula, lessons)
	v.checkTeachingLoads(report, loads, byLoad)

	stats := CalculateScheduleStats(lessons)
	report.Stats = &stats
	report.IsValid = len(report.Errors) == 0

	v.logger.Debug("schedule validated",
		zap.String("schedule_id", schedule.ID),
		zap.Bool("valid", report.IsValid),
		zap.Int("errors", len(report.Errors)),
		zap.Int("warnings", len(report.Warnings)))
	return report, nil
}

// sessionHours pairs a session kind with its declared hours.
type sessionHours struct {
	kind  models.LessonKind
	hours float64
}

func sessionKinds(lecture, practical, lab int) []sessionHours {
	return []sessionHours{
		{models.LessonLecture, float64(lecture)},
		{models.LessonPractice, float64(practical)},
		{models.LessonLab, float64(lab)},
	}
}

// checkCompleteness compares every session kind of a load on its own: a kind with required
// hours and no lessons is missing, a shortfall is partial.
func (v *ScheduleValidator) checkCompleteness(report *dto.ValidationReport, loads []models.TeachingLoadDetail, byLoad map[string][]models.LessonDetail) {
	var missing, partial []map[string]interface{}
	for _, load := range loads {
		actual := hoursByKind(byLoad[load.ID])
		for _, required := range sessionKinds(load.HoursLecture, load.HoursPractical, load.HoursLab) {
			if required.hours <= 0 {
				continue
			}
			got := actual[required.kind]
			entry := map[string]interface{}{
				"teaching_load_id": load.ID,
				"discipline":       load.DisciplineName,
				"group":            load.GroupCode,
				"kind":             required.kind,
				"required_hours":   required.hours,
				"actual_hours":     got,
			}
			switch {
			case got == 0:
				missing = append(missing, entry)
			case got < required.hours:
				partial = append(partial, entry)
			}
		}
	}
	if len(missing) > 0 {
		report.Errors = append(report.Errors, dto.ValidationIssue{
			Type:    IssueIncompleteSchedule,
			Message: fmt.Sprintf("%d teaching load session kind(s) have no lessons", len(missing)),
			Details: missing,
		})
	}
	if len(partial) > 0 {
		report.Warnings = append(report.Warnings, dto.ValidationIssue{
			Type:    IssuePartialCoverage,
			Message: fmt.Sprintf("%d teaching load session kind(s) are only partly scheduled", len(partial)),
			Details: partial,
		})
	}
}

// checkCurricula allows each session kind to deviate from the plan by curriculumTolerance of
// its planned hours. A kind planned at zero hours tolerates nothing.
func (v *ScheduleValidator) checkCurricula(report *dto.ValidationReport, curricula []models.Curriculum, lessons []models.LessonDetail) {
	byCurriculum := lo.GroupBy(lessons, func(l models.LessonDetail) string { return l.CurriculumID })
	var mismatches []map[string]interface{}
	for _, curriculum := range curricula {
		actual := hoursByKind(byCurriculum[curriculum.ID])
		var deviating []models.LessonKind
		for _, planned := range sessionKinds(curriculum.HoursLecture, curriculum.HoursPractical, curriculum.HoursLab) {
			if math.Abs(actual[planned.kind]-planned.hours) > planned.hours*curriculumTolerance {
				deviating = append(deviating, planned.kind)
			}
		}
		if len(deviating) == 0 {
			continue
		}
		mismatches = append(mismatches, map[string]interface{}{
			"curriculum_id": curriculum.ID,
			"discipline":    curriculum.DisciplineName,
			"group":         curriculum.GroupCode,
			"kinds":         deviating,
			"required": map[string]int{
				"lecture":   curriculum.HoursLecture,
				"practical": curriculum.HoursPractical,
				"lab":       curriculum.HoursLab,
			},
			"actual": map[string]float64{
				"lecture":   actual[models.LessonLecture],
				"practical": actual[models.LessonPractice],
				"lab":       actual[models.LessonLab],
			},
		})
	}
	if len(mismatches) > 0 {
		report.Errors = append(report.Errors, dto.ValidationIssue{
			Type:    IssueCurriculumMismatch,
			Message: fmt.Sprintf("%d curriculum item(s) differ from the plan by more than %.0f%%", len(mismatches), curriculumTolerance*100),
			Details: mismatches,
		})
	}
}

func (v *ScheduleValidator) checkTeachingLoads(report *dto.ValidationReport, loads []models.TeachingLoadDetail, byLoad map[string][]models.LessonDetail) {
	var mismatches []map[string]interface{}
	for _, load := range loads {
		hours := hoursByKind(byLoad[load.ID])
		if hours[models.LessonLecture] == float64(load.HoursLecture) &&
			hours[models.LessonPractice] == float64(load.HoursPractical) &&
			hours[models.LessonLab] == float64(load.HoursLab) {
			continue
		}
		mismatches = append(mismatches, map[string]interface{}{
			"teaching_load_id": load.ID,
			"teacher":          load.TeacherName,
			"required": map[string]int{
				"lecture":   load.HoursLecture,
				"practical": load.HoursPractical,
				"lab":       load.HoursLab,
			},
			"actual": map[string]float64{
				"lecture":   hours[models.LessonLecture],
				"practical": hours[models.LessonPractice],
				"lab":       hours[models.LessonLab],
			},
		})
	}
	if len(mismatches) > 0 {
		report.Warnings = append(report.Warnings, dto.ValidationIssue{
			Type:    IssueTeachingLoadMismatch,
			Message: fmt.Sprintf("%d teaching load(s) do not match scheduled hours", len(mismatches)),
			Details: mismatches,
		})
	}
}

// ValidateLesson checks required fields and then runs the conflict detector on the lesson's
// placement.
func (v *ScheduleValidator) ValidateLesson(ctx context.Context, lesson models.Lesson) (*dto.LessonValidation, error) {
	result := &dto.LessonValidation{Errors: []dto.LessonFieldError{}}

	required := []struct {
		field string
		empty bool
	}{
		{"dayOfWeek", lesson.DayOfWeek == ""},
		{"timeSlotId", lesson.TimeSlotID == ""},
		{"classroomId", lesson.ClassroomID == ""},
		{"teachingLoadId", lesson.TeachingLoadID == ""},
		{"kind", lesson.Kind == ""},
	}
	for _, r := range required {
		if r.empty {
			result.Errors = append(result.Errors, dto.LessonFieldError{Field: r.field, Message: r.field + " is required"})
		}
	}
	if lesson.DayOfWeek != "" && !lesson.DayOfWeek.Valid() {
		result.Errors = append(result.Errors, dto.LessonFieldError{Field: "dayOfWeek", Message: "dayOfWeek must be MONDAY to SATURDAY"})
	}
	if len(result.Errors) > 0 {
		return result, nil
	}

	detail, fieldErrs, err := v.resolveLesson(ctx, lesson)
	if err != nil {
		return nil, err
	}
	if len(fieldErrs) > 0 {
		result.Errors = append(result.Errors, fieldErrs...)
		return result, nil
	}

	conflicts, err := v.detector.DetectConflicts(ctx, *detail, lesson.ScheduleID)
	if err != nil {
		return nil, err
	}
	for _, conflict := range conflicts {
		result.Errors = append(result.Errors, dto.LessonFieldError{Field: "placement", Message: conflict.Message, Type: string(conflict.Type)})
	}
	result.Conflicts = conflicts
	result.IsValid = len(result.Errors) == 0
	return result, nil
}

// resolveLesson loads the references of a lesson and flattens them into a detail row.
func (v *ScheduleValidator) resolveLesson(ctx context.Context, lesson models.Lesson) (*models.LessonDetail, []dto.LessonFieldError, error) {
	var fieldErrs []dto.LessonFieldError
	notFound := func(err error, field string) (bool, error) {
		if err == nil {
			return false, nil
		}
		if errors.Is(err, sql.ErrNoRows) {
			fieldErrs = append(fieldErrs, dto.LessonFieldError{Field: field, Message: field + " not found"})
			return true, nil
		}
		return false, appErrors.Internal(err, "failed to load "+field)
	}

	schedule, err := v.schedules.FindByID(ctx, lesson.ScheduleID)
	if missing, ferr := notFound(err, "scheduleId"); ferr != nil || missing {
		return nil, fieldErrs, ferr
	}
	semester, err := v.semesters.FindByID(ctx, schedule.SemesterID)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to load semester")
	}

	load, err := v.loads.FindDetailByID(ctx, lesson.TeachingLoadID)
	if _, ferr := notFound(err, "teachingLoadId"); ferr != nil {
		return nil, nil, ferr
	}
	room, err := v.classrooms.FindByID(ctx, lesson.ClassroomID)
	if _, ferr := notFound(err, "classroomId"); ferr != nil {
		return nil, nil, ferr
	}
	slot, err := v.slots.FindByID(ctx, lesson.TimeSlotID)
	if _, ferr := notFound(err, "timeSlotId"); ferr != nil {
		return nil, nil, ferr
	}
	if len(fieldErrs) > 0 {
		return nil, fieldErrs, nil
	}

	detail := ComposeLessonDetail(lesson, *load, *room, *slot, semester.StartYear)
	return &detail, nil, nil
}

// ComposeLessonDetail flattens a lesson with its references.
func ComposeLessonDetail(lesson models.Lesson, load models.TeachingLoadDetail, room models.Classroom, slot models.TimeSlot, referenceYear int) models.LessonDetail {
	return models.LessonDetail{
		Lesson:              lesson,
		TeacherID:           load.TeacherID,
		TeacherName:         load.TeacherName,
		GroupID:             load.GroupID,
		GroupCode:           load.GroupCode,
		GroupEnrollmentYear: load.GroupEnrollmentYear,
		GroupStudentCount:   load.StudentCount,
		CurriculumID:        load.CurriculumID,
		DisciplineID:        load.DisciplineID,
		DisciplineName:      load.DisciplineName,
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

// CalculateScheduleStats aggregates counts over lessons. One lesson counts as 1.5 hours.
func CalculateScheduleStats(lessons []models.LessonDetail) models.ScheduleStats {
	stats := models.ScheduleStats{
		TotalLessons: len(lessons),
		HoursByKind: map[models.LessonKind]float64{
			models.LessonLecture:           0,
			models.LessonPractice:          0,
			models.LessonLab:               0,
			models.LessonPhysicalEducation: 0,
		},
		LessonsByDay: make(map[models.DayOfWeek]int, len(models.TeachingDays)),
	}
	for _, day := range models.TeachingDays {
		stats.LessonsByDay[day] = 0
	}

	stats.UniqueGroups = len(lo.Uniq(lo.Map(lessons, func(l models.LessonDetail, _ int) string { return l.GroupID })))
	stats.UniqueTeachers = len(lo.Uniq(lo.Map(lessons, func(l models.LessonDetail, _ int) string { return l.TeacherID })))
	stats.UniqueRooms = len(lo.Uniq(lo.Map(lessons, func(l models.LessonDetail, _ int) string { return l.ClassroomID })))

	for _, l := range lessons {
		stats.TotalHours += models.HoursPerLesson
		stats.HoursByKind[l.Kind] += models.HoursPerLesson
		stats.LessonsByDay[l.DayOfWeek]++
	}
	return stats
}

func hoursByKind(lessons []models.LessonDetail) map[models.LessonKind]float64 {
	hours := make(map[models.LessonKind]float64)
	for _, l := range lessons {
		hours[l.Kind] += models.HoursPerLesson
	}
	return hours
}
