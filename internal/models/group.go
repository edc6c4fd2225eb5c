package models

import (
	"strconv"
	"strings"
)

// Group is a cohort of students enrolled in the same year of a programme.
type Group struct {
	ID                 string `db:"id" json:"id"`
	Code               string `db:"code" json:"code"`
	EnrollmentYear     *int   `db:"enrollment_year" json:"enrollment_year,omitempty"`
	StudentCount       int    `db:"student_count" json:"student_count"`
	LectureSubgroups   int    `db:"lecture_subgroups" json:"lecture_subgroups"`
	PracticalSubgroups int    `db:"practical_subgroups" json:"practical_subgroups"`
	LabSubgroups       int    `db:"lab_subgroups" json:"lab_subgroups"`
}

// Subgroup is a partition of a group used for practicals and labs.
type Subgroup struct {
	GroupID string     `json:"group_id"`
	Number  int        `json:"number"`
	Kind    LessonKind `json:"kind"`
}

// Subgroups expands the declared subgroup count for a session kind; lectures never split.
func (g Group) Subgroups(kind LessonKind) []Subgroup {
	count := 0
	switch kind {
	case LessonPractice:
		count = g.PracticalSubgroups
	case LessonLab:
		count = g.LabSubgroups
	default:
		return nil
	}
	if count < 1 {
		count = 1
	}
	result := make([]Subgroup, 0, count)
	for n := 1; n <= count; n++ {
		result = append(result, Subgroup{GroupID: g.ID, Number: n, Kind: kind})
	}
	return result
}

// Course returns the year of study relative to referenceYear, or 0 when unknown.
func (g Group) Course(referenceYear int) int {
	return DeriveCourse(g.Code, g.EnrollmentYear, referenceYear)
}

// DeriveCourse computes the course number from an explicit enrollment year or from the
// second dash-separated segment of a group code ("ИС-21-1к" -> 2021).
func DeriveCourse(code string, enrollmentYear *int, referenceYear int) int {
	if referenceYear <= 0 {
		return 0
	}
	year := 0
	if enrollmentYear != nil && *enrollmentYear > 0 {
		year = *enrollmentYear
	} else {
		year = EnrollmentYearFromCode(code)
	}
	if year == 0 || year > referenceYear {
		return 0
	}
	return referenceYear - year + 1
}

// EnrollmentYearFromCode extracts the enrollment year encoded in a group code.
func EnrollmentYearFromCode(code string) int {
	parts := strings.Split(code, "-")
	if len(parts) < 2 {
		return 0
	}
	digits := strings.TrimFunc(parts[1], func(r rune) bool { return r < '0' || r > '9' })
	year, err := strconv.Atoi(digits)
	if err != nil || year <= 0 {
		return 0
	}
	switch len(digits) {
	case 2:
		return 2000 + year
	case 4:
		return year
	default:
		return 0
	}
}

// RequiredShift maps a course to its shift. Courses 1 and 3 study in the morning, 2 and 4
// in the afternoon; any other course may use both shifts.
func RequiredShift(course int) (Shift, bool) {
	switch course {
	case 1, 3:
		return ShiftMorning, true
	case 2, 4:
		return ShiftAfternoon, true
	default:
		return "", false
	}
}
