package service

import (
	"context"
	"fmt"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-api/internal/models"
	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
)

type lessonSlotReader interface {
	ListDetailedAtSlot(ctx context.Context, scheduleID string, day models.DayOfWeek, timeSlotID string) ([]models.LessonDetail, error)
	ListDetailedBySchedule(ctx context.Context, scheduleID string) ([]models.LessonDetail, error)
}

// ConflictDetector checks lesson placements against the hard rules of a timetable.
type ConflictDetector struct {
	lessons lessonSlotReader
	logger  *zap.Logger
}

// NewConflictDetector constructs the detector.
func NewConflictDetector(lessons lessonSlotReader, logger *zap.Logger) *ConflictDetector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConflictDetector{lessons: lessons, logger: logger}
}

// Check runs every rule for candidate against the given lessons without touching storage.
func (d *ConflictDetector) Check(candidate models.LessonDetail, others []models.LessonDetail) []models.Conflict {
	return CheckConflicts(candidate, others)
}

// DetectConflicts loads the lessons sharing the candidate's day and slot and checks them.
func (d *ConflictDetector) DetectConflicts(ctx context.Context, candidate models.LessonDetail, scheduleID string) ([]models.Conflict, error) {
	others, err := d.lessons.ListDetailedAtSlot(ctx, scheduleID, candidate.DayOfWeek, candidate.TimeSlotID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load lessons for conflict check")
	}
	return CheckConflicts(candidate, others), nil
}

// GetAllConflicts checks every lesson of a schedule and returns one report per lesson with
// at least one conflict.
func (d *ConflictDetector) GetAllConflicts(ctx context.Context, scheduleID string) ([]models.ConflictReport, error) {
	lessons, err := d.lessons.ListDetailedBySchedule(ctx, scheduleID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load schedule lessons")
	}
	reports := CollectConflictReports(lessons)
	if len(reports) > 0 {
		d.logger.Debug("schedule conflicts found", zap.String("schedule_id", scheduleID), zap.Int("lessons", len(reports)))
	}
	return reports, nil
}

// CheckConflicts is the pure rule set. Lessons with the candidate's id, or on another day or
// slot, are ignored. Every broken rule is reported.
func CheckConflicts(candidate models.LessonDetail, others []models.LessonDetail) []models.Conflict {
	var conflicts []models.Conflict

	for _, other := range others {
		if other.ID != "" && other.ID == candidate.ID {
			continue
		}
		if other.DayOfWeek != candidate.DayOfWeek || other.TimeSlotID != candidate.TimeSlotID {
			continue
		}
		if candidate.TeacherID != "" && other.TeacherID == candidate.TeacherID {
			conflicts = append(conflicts, pairConflict(models.ConflictTeacher, candidate, other,
				fmt.Sprintf("teacher %s already teaches %s at this time", nameOr(other.TeacherName, other.TeacherID), nameOr(other.DisciplineName, other.DisciplineID))))
		}
		if candidate.ClassroomID != "" && other.ClassroomID == candidate.ClassroomID {
			conflicts = append(conflicts, pairConflict(models.ConflictRoom, candidate, other,
				fmt.Sprintf("classroom %s is already occupied by group %s", nameOr(other.ClassroomNumber, other.ClassroomID), nameOr(other.GroupCode, other.GroupID))))
		}
		if candidate.GroupID != "" && other.GroupID == candidate.GroupID && models.SubgroupsOverlap(candidate.SubgroupNumber, other.SubgroupNumber) {
			conflicts = append(conflicts, pairConflict(models.ConflictGroup, candidate, other,
				fmt.Sprintf("group %s already has %s at this time", nameOr(other.GroupCode, other.GroupID), nameOr(other.DisciplineName, other.DisciplineID))))
		}
	}

	if candidate.ClassroomID != "" && candidate.ClassroomCapacity < candidate.GroupStudentCount {
		conflicts = append(conflicts, models.Conflict{
			Type:     models.ConflictCapacityInsufficient,
			Severity: models.SeverityCritical,
			LessonID: candidate.ID,
			Message: fmt.Sprintf("classroom %s holds %d students but group %s has %d",
				nameOr(candidate.ClassroomNumber, candidate.ClassroomID), candidate.ClassroomCapacity, nameOr(candidate.GroupCode, candidate.GroupID), candidate.GroupStudentCount),
			Details: map[string]interface{}{
				"capacity":      candidate.ClassroomCapacity,
				"student_count": candidate.GroupStudentCount,
			},
		})
	}

	if candidate.ClassroomID != "" && !models.ClassroomAllowed(candidate.Kind, candidate.ClassroomKind) {
		conflicts = append(conflicts, models.Conflict{
			Type:     models.ConflictWrongRoomType,
			Severity: models.SeverityCritical,
			LessonID: candidate.ID,
			Message:  fmt.Sprintf("%s cannot be held in a %s classroom", candidate.Kind, candidate.ClassroomKind),
			Details: map[string]interface{}{
				"classroom_kind": candidate.ClassroomKind,
				"allowed":        models.AllowedClassroomKinds(candidate.Kind),
			},
		})
	}

	if required, ok := models.RequiredShift(candidate.Course()); ok && candidate.Shift != "" && candidate.Shift != required {
		conflicts = append(conflicts, models.Conflict{
			Type:     models.ConflictShiftViolation,
			Severity: models.SeverityCritical,
			LessonID: candidate.ID,
			Message:  fmt.Sprintf("course %d of group %s studies in the %s shift", candidate.Course(), nameOr(candidate.GroupCode, candidate.GroupID), required),
			Details: map[string]interface{}{
				"course":         candidate.Course(),
				"required_shift": required,
				"slot_shift":     candidate.Shift,
			},
		})
	}

	return conflicts
}

// CollectConflictReports checks every lesson against the rest of the list.
func CollectConflictReports(lessons []models.LessonDetail) []models.ConflictReport {
	buckets := make(map[string][]models.LessonDetail)
	for _, lesson := range lessons {
		key := placementKey(lesson.DayOfWeek, lesson.TimeSlotID)
		buckets[key] = append(buckets[key], lesson)
	}

	var reports []models.ConflictReport
	for _, lesson := range lessons {
		conflicts := CheckConflicts(lesson, buckets[placementKey(lesson.DayOfWeek, lesson.TimeSlotID)])
		if len(conflicts) == 0 {
			continue
		}
		reports = append(reports, models.ConflictReport{LessonID: lesson.ID, Lesson: lesson, Conflicts: conflicts})
	}
	return reports
}

// ConflictStats counts conflicts by type and severity.
func ConflictStats(reports []models.ConflictReport) models.ConflictStats {
	stats := models.ConflictStats{
		ByType:     make(map[models.ConflictType]int),
		BySeverity: make(map[models.ConflictSeverity]int),
	}
	for _, report := range reports {
		for _, conflict := range report.Conflicts {
			stats.Total++
			stats.ByType[conflict.Type]++
			stats.BySeverity[conflict.Severity]++
		}
	}
	return stats
}

// HasCriticalConflicts reports whether any conflict is critical.
func HasCriticalConflicts(conflicts []models.Conflict) bool {
	for _, conflict := range conflicts {
		if conflict.Severity == models.SeverityCritical {
			return true
		}
	}
	return false
}

// ConflictTypes lists the distinct conflict types in order of first appearance.
func ConflictTypes(conflicts []models.Conflict) []models.ConflictType {
	return lo.Uniq(lo.Map(conflicts, func(c models.Conflict, _ int) models.ConflictType { return c.Type }))
}

func pairConflict(kind models.ConflictType, candidate, other models.LessonDetail, message string) models.Conflict {
	return models.Conflict{
		Type:                kind,
		Severity:            models.SeverityCritical,
		LessonID:            candidate.ID,
		ConflictingLessonID: other.ID,
		Message:             message,
		Details: map[string]interface{}{
			"day_of_week":  candidate.DayOfWeek,
			"time_slot_id": candidate.TimeSlotID,
		},
	}
}

func placementKey(day models.DayOfWeek, timeSlotID string) string {
	return string(day) + "|" + timeSlotID
}

func nameOr(name, fallback string) string {
	if name != "" {
		return name
	}
	return fallback
}
