package models

import (
	"time"

	"github.com/samber/lo"
)

// GeneratedBy records how a schedule came into existence.
type GeneratedBy string

const (
	GeneratedByAlgorithm GeneratedBy = "ALGORITHM"
	GeneratedByManual    GeneratedBy = "MANUAL"
)

// Schedule is a named container of lessons for one semester.
type Schedule struct {
	ID                string      `db:"id" json:"id"`
	SemesterID        string      `db:"semester_id" json:"semester_id"`
	Name              string      `db:"name" json:"name"`
	AcademicYear      string      `db:"academic_year" json:"academic_year"`
	IsActive          bool        `db:"is_active" json:"is_active"`
	IsPublished       bool        `db:"is_published" json:"is_published"`
	GeneratedBy       GeneratedBy `db:"generated_by" json:"generated_by"`
	CreatedBy         string      `db:"created_by" json:"created_by"`
	OptimizationScore *float64    `db:"optimization_score" json:"optimization_score,omitempty"`
	CreatedAt         time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time   `db:"updated_at" json:"updated_at"`
}

// DayOfWeek names a teaching day.
type DayOfWeek string

const (
	Monday    DayOfWeek = "MONDAY"
	Tuesday   DayOfWeek = "TUESDAY"
	Wednesday DayOfWeek = "WEDNESDAY"
	Thursday  DayOfWeek = "THURSDAY"
	Friday    DayOfWeek = "FRIDAY"
	Saturday  DayOfWeek = "SATURDAY"
)

// TeachingDays lists the six days lessons can be placed on, in calendar order.
var TeachingDays = []DayOfWeek{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday}

// Valid reports whether the day is a teaching day.
func (d DayOfWeek) Valid() bool {
	return lo.Contains(TeachingDays, d)
}

// LessonKind is the session type of a lesson.
type LessonKind string

const (
	LessonLecture           LessonKind = "LECTURE"
	LessonPractice          LessonKind = "PRACTICE"
	LessonLab               LessonKind = "LAB"
	LessonPhysicalEducation LessonKind = "PHYSICAL_EDUCATION"
)

// HoursPerLesson is the academic length of one pair.
const HoursPerLesson = 1.5

// Lesson is one placed session of a teaching load.
type Lesson struct {
	ID             string     `db:"id" json:"id"`
	ScheduleID     string     `db:"schedule_id" json:"schedule_id"`
	TeachingLoadID string     `db:"teaching_load_id" json:"teaching_load_id"`
	Kind           LessonKind `db:"kind" json:"kind"`
	DayOfWeek      DayOfWeek  `db:"day_of_week" json:"day_of_week"`
	TimeSlotID     string     `db:"time_slot_id" json:"time_slot_id"`
	ClassroomID    string     `db:"classroom_id" json:"classroom_id"`
	SubgroupNumber *int       `db:"subgroup_number" json:"subgroup_number,omitempty"`
	IsDouble       bool       `db:"is_double" json:"is_double"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

// LessonDetail flattens a lesson with the teacher, group, discipline, room and slot data
// needed to check and score it.
type LessonDetail struct {
	Lesson
	TeacherID           string        `db:"teacher_id" json:"teacher_id"`
	TeacherName         string        `db:"teacher_name" json:"teacher_name"`
	GroupID             string        `db:"group_id" json:"group_id"`
	GroupCode           string        `db:"group_code" json:"group_code"`
	GroupEnrollmentYear *int          `db:"group_enrollment_year" json:"group_enrollment_year,omitempty"`
	GroupStudentCount   int           `db:"group_student_count" json:"group_student_count"`
	CurriculumID        string        `db:"curriculum_id" json:"curriculum_id"`
	DisciplineID        string        `db:"discipline_id" json:"discipline_id"`
	DisciplineName      string        `db:"discipline_name" json:"discipline_name"`
	ClassroomNumber     string        `db:"classroom_number" json:"classroom_number"`
	ClassroomCapacity   int           `db:"classroom_capacity" json:"classroom_capacity"`
	ClassroomKind       ClassroomKind `db:"classroom_kind" json:"classroom_kind"`
	BuildingID          string        `db:"building_id" json:"building_id"`
	BuildingName        string        `db:"building_name" json:"building_name"`
	Shift               Shift         `db:"shift" json:"shift"`
	PairNumber          int           `db:"pair_number" json:"pair_number"`
	ReferenceYear       int           `db:"reference_year" json:"reference_year"`
}

// Course derives the group's year of study in the schedule's semester.
func (d LessonDetail) Course() int {
	return DeriveCourse(d.GroupCode, d.GroupEnrollmentYear, d.ReferenceYear)
}

// SubgroupsOverlap reports whether two subgroup assignments of the same group collide.
// A nil or zero number means the whole group.
func SubgroupsOverlap(a, b *int) bool {
	if a == nil || b == nil || *a == 0 || *b == 0 {
		return true
	}
	return *a == *b
}

// ScheduleStats aggregates counts over a schedule's lessons.
type ScheduleStats struct {
	TotalLessons   int                    `json:"total_lessons"`
	UniqueGroups   int                    `json:"unique_groups"`
	UniqueTeachers int                    `json:"unique_teachers"`
	UniqueRooms    int                    `json:"unique_rooms"`
	TotalHours     float64                `json:"total_hours"`
	HoursByKind    map[LessonKind]float64 `json:"hours_by_kind"`
	LessonsByDay   map[DayOfWeek]int      `json:"lessons_by_day"`
}
