package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// HardWeights price every hard rule violation.
type HardWeights struct {
	TeacherDoubleBooking float64 `json:"teacher_double_booking"`
	RoomDoubleBooking    float64 `json:"room_double_booking"`
	GroupDoubleBooking   float64 `json:"group_double_booking"`
	RoomOverflow         float64 `json:"room_overflow"`
	WrongSpecialization  float64 `json:"wrong_specialization"`
	ShiftViolation       float64 `json:"shift_violation"`
	SubgroupViolation    float64 `json:"subgroup_violation"`
}

// PenaltyWeights is the immutable weight table a penalty calculator is built with.
type PenaltyWeights struct {
	Hard                 HardWeights `json:"hard_constraints"`
	StudentGap           float64     `json:"student_gap"`
	TeacherGap           float64     `json:"teacher_gap"`
	EarlyLesson          float64     `json:"early_lesson"`
	LateLesson           float64     `json:"late_lesson"`
	ClassroomChange      float64     `json:"classroom_change"`
	BuildingChange       float64     `json:"building_change"`
	DoubleBlockViolation float64     `json:"double_block_violation"`
	LateSlotThreshold    int         `json:"late_slot_threshold"`
}

// DefaultPenaltyWeights returns the built-in weights used when no settings row applies.
func DefaultPenaltyWeights() PenaltyWeights {
	return PenaltyWeights{
		Hard: HardWeights{
			TeacherDoubleBooking: 1000,
			RoomDoubleBooking:    1000,
			GroupDoubleBooking:   1000,
			RoomOverflow:         1000,
			WrongSpecialization:  1000,
			ShiftViolation:       1000,
			SubgroupViolation:    1000,
		},
		StudentGap:           50,
		TeacherGap:           5,
		EarlyLesson:          10,
		LateLesson:           15,
		ClassroomChange:      20,
		BuildingChange:       30,
		DoubleBlockViolation: 100,
		LateSlotThreshold:    7,
	}
}

// WithDefaults replaces every weight that is zero or negative with the matching value from
// defaults. A stored 0 means "unset", never "rule disabled".
func (w PenaltyWeights) WithDefaults(defaults PenaltyWeights) PenaltyWeights {
	fill := func(v *float64, d float64) {
		if *v <= 0 {
			*v = d
		}
	}
	fill(&w.Hard.TeacherDoubleBooking, defaults.Hard.TeacherDoubleBooking)
	fill(&w.Hard.RoomDoubleBooking, defaults.Hard.RoomDoubleBooking)
	fill(&w.Hard.GroupDoubleBooking, defaults.Hard.GroupDoubleBooking)
	fill(&w.Hard.RoomOverflow, defaults.Hard.RoomOverflow)
	fill(&w.Hard.WrongSpecialization, defaults.Hard.WrongSpecialization)
	fill(&w.Hard.ShiftViolation, defaults.Hard.ShiftViolation)
	fill(&w.Hard.SubgroupViolation, defaults.Hard.SubgroupViolation)
	fill(&w.StudentGap, defaults.StudentGap)
	fill(&w.TeacherGap, defaults.TeacherGap)
	fill(&w.EarlyLesson, defaults.EarlyLesson)
	fill(&w.LateLesson, defaults.LateLesson)
	fill(&w.ClassroomChange, defaults.ClassroomChange)
	fill(&w.BuildingChange, defaults.BuildingChange)
	fill(&w.DoubleBlockViolation, defaults.DoubleBlockViolation)
	if w.LateSlotThreshold <= 0 {
		w.LateSlotThreshold = defaults.LateSlotThreshold
	}
	return w
}

// PenaltySettings is a named weight table scoped to a semester.
type PenaltySettings struct {
	ID         string         `db:"id" json:"id"`
	SemesterID string         `db:"semester_id" json:"semester_id"`
	Name       string         `db:"name" json:"name"`
	IsDefault  bool           `db:"is_default" json:"is_default"`
	Weights    PenaltyWeights `db:"-" json:"weights"`
	RawWeights types.JSONText `db:"weights" json:"-"`
	CreatedAt  time.Time      `db:"created_at" json:"created_at"`
}

// ViolationType names a scored hard or soft rule.
type ViolationType string

const (
	ViolationTeacherDoubleBooking ViolationType = "TEACHER_DOUBLE_BOOKING"
	ViolationRoomDoubleBooking    ViolationType = "ROOM_DOUBLE_BOOKING"
	ViolationGroupDoubleBooking   ViolationType = "GROUP_DOUBLE_BOOKING"
	ViolationRoomOverflow         ViolationType = "ROOM_OVERFLOW"
	ViolationWrongSpecialization  ViolationType = "WRONG_SPECIALIZATION"
	ViolationShift                ViolationType = "SHIFT_VIOLATION"

	ViolationStudentGap      ViolationType = "STUDENT_GAP"
	ViolationTeacherGap      ViolationType = "TEACHER_GAP"
	ViolationEarlyLesson     ViolationType = "EARLY_LESSON"
	ViolationLateLesson      ViolationType = "LATE_LESSON"
	ViolationClassroomChange ViolationType = "CLASSROOM_CHANGE"
	ViolationBuildingChange  ViolationType = "BUILDING_CHANGE"
)

// Violation is one priced rule breach inside a penalty report.
type Violation struct {
	Type      ViolationType `json:"type"`
	Penalty   float64       `json:"penalty"`
	LessonIDs []string      `json:"lesson_ids,omitempty"`
	Day       DayOfWeek     `json:"day,omitempty"`
	Message   string        `json:"message"`
}

// PenaltyBreakdown splits the total into hard and soft parts.
type PenaltyBreakdown struct {
	Hard float64 `json:"hard"`
	Soft float64 `json:"soft"`
}

// PenaltyViolations lists violations by class.
type PenaltyViolations struct {
	Hard []Violation `json:"hard"`
	Soft []Violation `json:"soft"`
}

// PenaltyReport is the full evaluation of a schedule.
type PenaltyReport struct {
	TotalPenalty float64           `json:"total_penalty"`
	Breakdown    PenaltyBreakdown  `json:"breakdown"`
	Violations   PenaltyViolations `json:"violations"`
}
