package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/timetable-api/internal/models"
)

func violationTypes(violations []models.Violation) []models.ViolationType {
	types := make([]models.ViolationType, 0, len(violations))
	for _, v := range violations {
		types = append(types, v.Type)
	}
	return types
}

func TestEvaluateTeacherDoubleBookingCostsOneWeight(t *testing.T) {
	calc := NewPenaltyCalculator(models.DefaultPenaltyWeights(), nil, nil)
	lessons := []models.LessonDetail{
		fixtureLesson("l1", "t1", "g1", roomHall, models.Monday, slotM2),
		fixtureLesson("l2", "t1", "g2", roomHall2, models.Monday, slotM2),
	}

	report := calc.Evaluate(lessons, fixtureSlots())
	assert.Equal(t, 1000.0, report.Breakdown.Hard)
	assert.Equal(t, 0.0, report.Breakdown.Soft)
	assert.Equal(t, 1000.0, report.TotalPenalty)
	require.Len(t, report.Violations.Hard, 1)
	assert.Equal(t, models.ViolationTeacherDoubleBooking, report.Violations.Hard[0].Type)
	assert.Equal(t, []string{"l2"}, report.Violations.Hard[0].LessonIDs)
}

func TestEvaluateHardZeroMatchesConflictFreeSchedule(t *testing.T) {
	calc := NewPenaltyCalculator(models.DefaultPenaltyWeights(), nil, nil)

	clean := []models.LessonDetail{
		fixtureLesson("l1", "t1", "g1", roomHall, models.Monday, slotM2),
		fixtureLesson("l2", "t2", "g2", roomHall2, models.Monday, slotM2),
		fixtureLesson("l3", "t1", "g1", roomHall, models.Monday, slotM3),
	}
	assert.Equal(t, 0.0, calc.Evaluate(clean, fixtureSlots()).Breakdown.Hard)
	assert.Empty(t, CollectConflictReports(clean))

	clash := append(clean, fixtureLesson("l4", "t4", "g2", roomAnnex, models.Monday, slotM2))
	assert.Greater(t, calc.Evaluate(clash, fixtureSlots()).Breakdown.Hard, 0.0)
	assert.NotEmpty(t, CollectConflictReports(clash))
}

func TestEvaluatePerLessonHardRules(t *testing.T) {
	calc := NewPenaltyCalculator(models.DefaultPenaltyWeights(), nil, nil)

	overflow := fixtureLesson("l1", "t1", "g1", roomAnnex, models.Monday, slotM2)
	overflow.GroupStudentCount = 40
	wrongRoom := fixtureLesson("l2", "t2", "g2", roomLab, models.Tuesday, slotM2)
	wrongShift := fixtureLesson("l3", "t3", "g3", roomHall, models.Wednesday, slotA2)

	report := calc.Evaluate([]models.LessonDetail{overflow, wrongRoom, wrongShift}, fixtureSlots())
	assert.ElementsMatch(t, []models.ViolationType{
		models.ViolationRoomOverflow,
		models.ViolationWrongSpecialization,
		models.ViolationShift,
	}, violationTypes(report.Violations.Hard))
	assert.Equal(t, 3000.0, report.Breakdown.Hard)
}

func TestEvaluateGapsEarlyAndLate(t *testing.T) {
	calc := NewPenaltyCalculator(models.DefaultPenaltyWeights(), nil, nil)

	early := fixtureLesson("l1", "t1", "g1", roomHall, models.Monday, slotM1)
	afterGap := fixtureLesson("l2", "t1", "g1", roomHall, models.Monday, slotM3)
	report := calc.Evaluate([]models.LessonDetail{early, afterGap}, fixtureSlots())

	// early 10, one student gap 50, one teacher gap 5
	assert.Equal(t, 65.0, report.Breakdown.Soft)
	assert.ElementsMatch(t, []models.ViolationType{
		models.ViolationEarlyLesson,
		models.ViolationStudentGap,
		models.ViolationTeacherGap,
	}, violationTypes(report.Violations.Soft))

	late := fixtureLesson("l3", "t3", "g3", roomHall, models.Tuesday, slotA3)
	late.GroupCode = "ИС-23-1"
	report = calc.Evaluate([]models.LessonDetail{late}, fixtureSlots())
	assert.Equal(t, 0.0, report.Breakdown.Hard)
	assert.Equal(t, []models.ViolationType{models.ViolationLateLesson}, violationTypes(report.Violations.Soft))
	assert.Equal(t, 15.0, report.Breakdown.Soft)
}

func TestEvaluateClassroomAndBuildingChanges(t *testing.T) {
	calc := NewPenaltyCalculator(models.DefaultPenaltyWeights(), nil, nil)

	first := fixtureLesson("l1", "t1", "g1", roomHall, models.Monday, slotM2)
	sameDiscipline := fixtureLesson("l2", "t1", "g1", roomHall2, models.Monday, slotM3)
	report := calc.Evaluate([]models.LessonDetail{first, sameDiscipline}, fixtureSlots())
	require.Len(t, report.Violations.Soft, 1)
	assert.Equal(t, models.ViolationClassroomChange, report.Violations.Soft[0].Type)
	assert.Equal(t, 20.0, report.Breakdown.Soft)

	otherBuilding := fixtureLesson("l3", "t2", "g1", roomAnnex, models.Monday, slotM3)
	report = calc.Evaluate([]models.LessonDetail{first, otherBuilding}, fixtureSlots())
	require.Len(t, report.Violations.Soft, 1)
	assert.Equal(t, models.ViolationBuildingChange, report.Violations.Soft[0].Type)
	assert.Equal(t, 30.0, report.Breakdown.Soft)
}

func TestEvaluateUsesCustomWeights(t *testing.T) {
	weights := models.DefaultPenaltyWeights()
	weights.Hard.TeacherDoubleBooking = 10
	weights.EarlyLesson = 0
	calc := NewPenaltyCalculator(weights, nil, nil)

	lessons := []models.LessonDetail{
		fixtureLesson("l1", "t1", "g1", roomHall, models.Monday, slotM1),
		fixtureLesson("l2", "t1", "g2", roomHall2, models.Monday, slotM1),
	}
	report := calc.Evaluate(lessons, fixtureSlots())
	assert.Equal(t, 10.0, report.Breakdown.Hard)
	assert.Equal(t, 0.0, report.Breakdown.Soft)
}

func TestCalculateTotalPenaltyLoadsSchedule(t *testing.T) {
	store := newLessonMemoryStore(
		fixtureLesson("l1", "t1", "g1", roomHall, models.Monday, slotM2),
		fixtureLesson("l2", "t1", "g2", roomHall2, models.Monday, slotM2),
	)
	calc := NewPenaltyCalculator(models.DefaultPenaltyWeights(), store, slotListStub{slots: fixtureSlots()})

	report, err := calc.CalculateTotalPenalty(context.Background(), "sched-1")
	require.NoError(t, err)
	assert.Equal(t, 1000.0, report.TotalPenalty)
}

func TestPenaltySettingsLoader(t *testing.T) {
	custom := models.DefaultPenaltyWeights()
	custom.StudentGap = 75

	loader := NewPenaltySettingsLoader(penaltySettingsStub{settings: &models.PenaltySettings{Weights: custom}}, nil)
	assert.Equal(t, 75.0, loader.LoadPenaltySettings(context.Background(), "sem-1").StudentGap)

	missing := NewPenaltySettingsLoader(penaltySettingsStub{err: sql.ErrNoRows}, nil)
	assert.Equal(t, models.DefaultPenaltyWeights(), missing.LoadPenaltySettings(context.Background(), "sem-1"))

	broken := NewPenaltySettingsLoader(penaltySettingsStub{err: errors.New("decode weights: bad json")}, nil)
	assert.Equal(t, models.DefaultPenaltyWeights(), broken.LoadPenaltySettings(context.Background(), "sem-1"))

	var nilLoader *PenaltySettingsLoader
	assert.Equal(t, models.DefaultPenaltyWeights(), nilLoader.LoadPenaltySettings(context.Background(), "sem-1"))
}

func TestPenaltySettingsLoaderLateSlotThreshold(t *testing.T) {
	configured := NewPenaltySettingsLoader(penaltySettingsStub{err: sql.ErrNoRows}, nil).WithLateSlotThreshold(4)
	assert.Equal(t, 4, configured.LoadPenaltySettings(context.Background(), "sem-1").LateSlotThreshold)

	unset := models.DefaultPenaltyWeights()
	unset.LateSlotThreshold = 0
	fromRow := NewPenaltySettingsLoader(penaltySettingsStub{settings: &models.PenaltySettings{Weights: unset}}, nil).WithLateSlotThreshold(5)
	assert.Equal(t, 5, fromRow.LoadPenaltySettings(context.Background(), "sem-1").LateSlotThreshold)

	explicit := models.DefaultPenaltyWeights()
	explicit.LateSlotThreshold = 6
	pinned := NewPenaltySettingsLoader(penaltySettingsStub{settings: &models.PenaltySettings{Weights: explicit}}, nil).WithLateSlotThreshold(5)
	assert.Equal(t, 6, pinned.LoadPenaltySettings(context.Background(), "sem-1").LateSlotThreshold)
}

func TestPenaltySettingsLoaderTreatsZeroAsUnset(t *testing.T) {
	stored := models.DefaultPenaltyWeights()
	stored.Hard.TeacherDoubleBooking = 0
	stored.Hard.ShiftViolation = -5
	stored.EarlyLesson = 0
	stored.StudentGap = 80
	loader := NewPenaltySettingsLoader(penaltySettingsStub{settings: &models.PenaltySettings{Weights: stored}}, nil)

	weights := loader.LoadPenaltySettings(context.Background(), "sem-1")
	assert.Equal(t, 1000.0, weights.Hard.TeacherDoubleBooking)
	assert.Equal(t, 1000.0, weights.Hard.ShiftViolation)
	assert.Equal(t, 10.0, weights.EarlyLesson)
	assert.Equal(t, 80.0, weights.StudentGap)

	clash := []models.LessonDetail{
		fixtureLesson("l1", "t1", "g1", roomHall, models.Monday, slotM2),
		fixtureLesson("l2", "t1", "g2", roomHall2, models.Monday, slotM2),
	}
	report := NewPenaltyCalculator(weights, nil, nil).Evaluate(clash, fixtureSlots())
	assert.Equal(t, 1000.0, report.Breakdown.Hard)
}
