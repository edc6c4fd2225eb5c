package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-api/internal/models"
	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
)

type lessonDetailReader interface {
	ListDetailedBySchedule(ctx context.Context, scheduleID string) ([]models.LessonDetail, error)
}

type timeSlotLister interface {
	List(ctx context.Context) ([]models.TimeSlot, error)
}

type penaltySettingsReader interface {
	FindDefaultBySemester(ctx context.Context, semesterID string) (*models.PenaltySettings, error)
}

// PenaltyCalculator scores a set of lessons with a fixed weight table.
type PenaltyCalculator struct {
	weights models.PenaltyWeights
	lessons lessonDetailReader
	slots   timeSlotLister
}

// NewPenaltyCalculator constructs a calculator. The readers are only needed by
// CalculateTotalPenalty.
func NewPenaltyCalculator(weights models.PenaltyWeights, lessons lessonDetailReader, slots timeSlotLister) *PenaltyCalculator {
	if weights.LateSlotThreshold <= 0 {
		weights.LateSlotThreshold = models.DefaultPenaltyWeights().LateSlotThreshold
	}
	return &PenaltyCalculator{weights: weights, lessons: lessons, slots: slots}
}

// Weights returns the weight table the calculator was built with.
func (c *PenaltyCalculator) Weights() models.PenaltyWeights {
	return c.weights
}

// CalculateTotalPenalty loads a schedule's lessons and evaluates them.
func (c *PenaltyCalculator) CalculateTotalPenalty(ctx context.Context, scheduleID string) (*models.PenaltyReport, error) {
	lessons, err := c.lessons.ListDetailedBySchedule(ctx, scheduleID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load schedule lessons")
	}
	slots, err := c.slots.List(ctx)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load time slots")
	}
	report := c.Evaluate(lessons, slots)
	return &report, nil
}

// Evaluate prices hard and soft violations of lessons. It has no side effects.
func (c *PenaltyCalculator) Evaluate(lessons []models.LessonDetail, slots []models.TimeSlot) models.PenaltyReport {
	ordering := models.NewSlotOrdering(slots)
	report := models.PenaltyReport{
		Violations: models.PenaltyViolations{
			Hard: []models.Violation{},
			Soft: []models.Violation{},
		},
	}

	for _, v := range c.hardViolations(lessons) {
		report.Breakdown.Hard += v.Penalty
		report.Violations.Hard = append(report.Violations.Hard, v)
	}
	for _, v := range c.softViolations(lessons, ordering) {
		report.Breakdown.Soft += v.Penalty
		report.Violations.Soft = append(report.Violations.Soft, v)
	}
	report.TotalPenalty = report.Breakdown.Hard + report.Breakdown.Soft
	return report
}

// hardViolations counts double bookings per (day, slot) as lessons colliding with an earlier
// lesson of the same bucket, so one clashing pair costs exactly one weight.
func (c *PenaltyCalculator) hardViolations(lessons []models.LessonDetail) []models.Violation {
	w := c.weights.Hard
	var violations []models.Violation

	buckets := make(map[string][]models.LessonDetail)
	for _, lesson := range lessons {
		key := placementKey(lesson.DayOfWeek, lesson.TimeSlotID)
		earlier := buckets[key]

		if _, clash := lo.Find(earlier, func(o models.LessonDetail) bool {
			return lesson.TeacherID != "" && o.TeacherID == lesson.TeacherID
		}); clash {
			violations = append(violations, lessonViolation(models.ViolationTeacherDoubleBooking, w.TeacherDoubleBooking, lesson,
				fmt.Sprintf("teacher %s is double booked", nameOr(lesson.TeacherName, lesson.TeacherID))))
		}
		if _, clash := lo.Find(earlier, func(o models.LessonDetail) bool {
			return lesson.ClassroomID != "" && o.ClassroomID == lesson.ClassroomID
		}); clash {
			violations = append(violations, lessonViolation(models.ViolationRoomDoubleBooking, w.RoomDoubleBooking, lesson,
				fmt.Sprintf("classroom %s is double booked", nameOr(lesson.ClassroomNumber, lesson.ClassroomID))))
		}
		if _, clash := lo.Find(earlier, func(o models.LessonDetail) bool {
			return lesson.GroupID != "" && o.GroupID == lesson.GroupID && models.SubgroupsOverlap(o.SubgroupNumber, lesson.SubgroupNumber)
		}); clash {
			violations = append(violations, lessonViolation(models.ViolationGroupDoubleBooking, w.GroupDoubleBooking, lesson,
				fmt.Sprintf("group %s is double booked", nameOr(lesson.GroupCode, lesson.GroupID))))
		}
		buckets[key] = append(earlier, lesson)

		if lesson.ClassroomID != "" && lesson.ClassroomCapacity < lesson.GroupStudentCount {
			violations = append(violations, lessonViolation(models.ViolationRoomOverflow, w.RoomOverflow, lesson,
				fmt.Sprintf("classroom %s is too small for group %s", nameOr(lesson.ClassroomNumber, lesson.ClassroomID), nameOr(lesson.GroupCode, lesson.GroupID))))
		}
		if lesson.ClassroomID != "" && !models.ClassroomAllowed(lesson.Kind, lesson.ClassroomKind) {
			violations = append(violations, lessonViolation(models.ViolationWrongSpecialization, w.WrongSpecialization, lesson,
				fmt.Sprintf("%s placed in a %s classroom", lesson.Kind, lesson.ClassroomKind)))
		}
		if required, ok := models.RequiredShift(lesson.Course()); ok && lesson.Shift != "" && lesson.Shift != required {
			violations = append(violations, lessonViolation(models.ViolationShift, w.ShiftViolation, lesson,
				fmt.Sprintf("group %s must study in the %s shift", nameOr(lesson.GroupCode, lesson.GroupID), required)))
		}
	}
	return violations
}

func (c *PenaltyCalculator) softViolations(lessons []models.LessonDetail, ordering models.SlotOrdering) []models.Violation {
	w := c.weights
	var violations []models.Violation

	for _, lesson := range lessons {
		if w.EarlyLesson > 0 && ordering.IsFirstOfShift(lesson.Shift, lesson.PairNumber) {
			violations = append(violations, lessonViolation(models.ViolationEarlyLesson, w.EarlyLesson, lesson, "lesson in the first pair of a shift"))
		}
		if w.LateLesson > 0 && ordering.Ordinal(lesson.TimeSlotID) >= w.LateSlotThreshold {
			violations = append(violations, lessonViolation(models.ViolationLateLesson, w.LateLesson, lesson, "lesson late in the day"))
		}
	}

	byGroupDay := lo.GroupBy(lessons, func(l models.LessonDetail) string { return l.GroupID + "|" + string(l.DayOfWeek) })
	for _, key := range sortedKeys(byGroupDay) {
		day := sortByOrdinal(byGroupDay[key], ordering)
		if gaps := countGaps(day, ordering); gaps > 0 && w.StudentGap > 0 {
			violations = append(violations, models.Violation{
				Type:      models.ViolationStudentGap,
				Penalty:   float64(gaps) * w.StudentGap,
				LessonIDs: lessonIDs(day),
				Day:       day[0].DayOfWeek,
				Message:   fmt.Sprintf("group %s has %d idle pair(s)", nameOr(day[0].GroupCode, day[0].GroupID), gaps),
			})
		}
		violations = append(violations, c.roomChanges(day, ordering)...)
	}

	byTeacherDay := lo.GroupBy(lessons, func(l models.LessonDetail) string { return l.TeacherID + "|" + string(l.DayOfWeek) })
	for _, key := range sortedKeys(byTeacherDay) {
		day := sortByOrdinal(byTeacherDay[key], ordering)
		if gaps := countGaps(day, ordering); gaps > 0 && w.TeacherGap > 0 {
			violations = append(violations, models.Violation{
				Type:      models.ViolationTeacherGap,
				Penalty:   float64(gaps) * w.TeacherGap,
				LessonIDs: lessonIDs(day),
				Day:       day[0].DayOfWeek,
				Message:   fmt.Sprintf("teacher %s has %d idle pair(s)", nameOr(day[0].TeacherName, day[0].TeacherID), gaps),
			})
		}
	}

	return violations
}

// roomChanges walks one group's day in slot order. A classroom change is the same discipline
// and kind in consecutive pairs but different rooms; a building change is any two neighbouring
// lessons at most two pairs apart in different buildings.
func (c *PenaltyCalculator) roomChanges(day []models.LessonDetail, ordering models.SlotOrdering) []models.Violation {
	w := c.weights
	var violations []models.Violation
	for i := 1; i < len(day); i++ {
		prev, cur := day[i-1], day[i]
		distance := ordering.Ordinal(cur.TimeSlotID) - ordering.Ordinal(prev.TimeSlotID)

		if w.ClassroomChange > 0 && distance == 1 &&
			prev.DisciplineID == cur.DisciplineID && prev.Kind == cur.Kind && prev.ClassroomID != cur.ClassroomID {
			violations = append(violations, models.Violation{
				Type:      models.ViolationClassroomChange,
				Penalty:   w.ClassroomChange,
				LessonIDs: []string{prev.ID, cur.ID},
				Day:       cur.DayOfWeek,
				Message:   fmt.Sprintf("group %s changes classroom between consecutive %s pairs", nameOr(cur.GroupCode, cur.GroupID), nameOr(cur.DisciplineName, cur.DisciplineID)),
			})
		}
		if w.BuildingChange > 0 && distance > 0 && distance <= 2 &&
			prev.BuildingID != "" && cur.BuildingID != "" && prev.BuildingID != cur.BuildingID {
			violations = append(violations, models.Violation{
				Type:      models.ViolationBuildingChange,
				Penalty:   w.BuildingChange,
				LessonIDs: []string{prev.ID, cur.ID},
				Day:       cur.DayOfWeek,
				Message:   fmt.Sprintf("group %s moves from %s to %s", nameOr(cur.GroupCode, cur.GroupID), nameOr(prev.BuildingName, prev.BuildingID), nameOr(cur.BuildingName, cur.BuildingID)),
			})
		}
	}
	return violations
}

// countGaps returns the number of empty pairs between the first and last lesson.
func countGaps(day []models.LessonDetail, ordering models.SlotOrdering) int {
	ordinals := lo.Uniq(lo.FilterMap(day, func(l models.LessonDetail, _ int) (int, bool) {
		o := ordering.Ordinal(l.TimeSlotID)
		return o, o > 0
	}))
	gaps := 0
	for i := 1; i < len(ordinals); i++ {
		if d := ordinals[i] - ordinals[i-1] - 1; d > 0 {
			gaps += d
		}
	}
	return gaps
}

func sortByOrdinal(lessons []models.LessonDetail, ordering models.SlotOrdering) []models.LessonDetail {
	sorted := make([]models.LessonDetail, len(lessons))
	copy(sorted, lessons)
	sort.SliceStable(sorted, func(i, j int) bool {
		return ordering.Ordinal(sorted[i].TimeSlotID) < ordering.Ordinal(sorted[j].TimeSlotID)
	})
	return sorted
}

func sortedKeys[V any](m map[string]V) []string {
	keys := lo.Keys(m)
	sort.Strings(keys)
	return keys
}

func lessonIDs(lessons []models.LessonDetail) []string {
	return lo.Map(lessons, func(l models.LessonDetail, _ int) string { return l.ID })
}

func lessonViolation(kind models.ViolationType, penalty float64, lesson models.LessonDetail, message string) models.Violation {
	return models.Violation{
		Type:      kind,
		Penalty:   penalty,
		LessonIDs: []string{lesson.ID},
		Day:       lesson.DayOfWeek,
		Message:   message,
	}
}

// PenaltySettingsLoader resolves the weight table of a semester.
type PenaltySettingsLoader struct {
	repo              penaltySettingsReader
	logger            *zap.Logger
	lateSlotThreshold int
}

// NewPenaltySettingsLoader constructs the loader.
func NewPenaltySettingsLoader(repo penaltySettingsReader, logger *zap.Logger) *PenaltySettingsLoader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PenaltySettingsLoader{repo: repo, logger: logger}
}

// WithLateSlotThreshold sets the late-slot ordinal used when a weight table leaves it unset.
func (l *PenaltySettingsLoader) WithLateSlotThreshold(threshold int) *PenaltySettingsLoader {
	l.lateSlotThreshold = threshold
	return l
}

// LoadPenaltySettings returns the semester's default weights. A missing or unreadable row
// falls back to the built-in defaults, and so does any weight stored as zero or less.
func (l *PenaltySettingsLoader) LoadPenaltySettings(ctx context.Context, semesterID string) models.PenaltyWeights {
	if l == nil || l.repo == nil {
		return l.defaults()
	}
	settings, err := l.repo.FindDefaultBySemester(ctx, semesterID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			l.logger.Warn("no penalty settings for semester, using defaults", zap.String("semester_id", semesterID))
		} else {
			l.logger.Warn("failed to load penalty settings, using defaults", zap.String("semester_id", semesterID), zap.Error(err))
		}
		return l.defaults()
	}
	if settings == nil {
		return l.defaults()
	}
	return settings.Weights.WithDefaults(l.defaults())
}

func (l *PenaltySettingsLoader) defaults() models.PenaltyWeights {
	weights := models.DefaultPenaltyWeights()
	if l != nil && l.lateSlotThreshold > 0 {
		weights.LateSlotThreshold = l.lateSlotThreshold
	}
	return weights
}
