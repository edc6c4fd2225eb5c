package models

import "time"

// TeachingLoadStatus tracks approval of a teaching load.
type TeachingLoadStatus string

const (
	TeachingLoadDraft    TeachingLoadStatus = "DRAFT"
	TeachingLoadApproved TeachingLoadStatus = "APPROVED"
)

// TeachingLoad assigns a teacher to deliver a curriculum to a group. The engine never mutates it.
type TeachingLoad struct {
	ID             string             `db:"id" json:"id"`
	SemesterID     string             `db:"semester_id" json:"semester_id"`
	CurriculumID   string             `db:"curriculum_id" json:"curriculum_id"`
	TeacherID      string             `db:"teacher_id" json:"teacher_id"`
	GroupID        string             `db:"group_id" json:"group_id"`
	HoursLecture   int                `db:"hours_lecture" json:"hours_lecture"`
	HoursPractical int                `db:"hours_practical" json:"hours_practical"`
	HoursLab       int                `db:"hours_lab" json:"hours_lab"`
	Status         TeachingLoadStatus `db:"status" json:"status"`
	CreatedAt      time.Time          `db:"created_at" json:"created_at"`
}

// TotalHours sums the declared hours of every session kind.
func (t TeachingLoad) TotalHours() int {
	return t.HoursLecture + t.HoursPractical + t.HoursLab
}

// TeachingLoadDetail joins a teaching load with its teacher, discipline and group.
type TeachingLoadDetail struct {
	TeachingLoad
	TeacherName         string `db:"teacher_name" json:"teacher_name"`
	DisciplineID        string `db:"discipline_id" json:"discipline_id"`
	DisciplineName      string `db:"discipline_name" json:"discipline_name"`
	GroupCode           string `db:"group_code" json:"group_code"`
	GroupEnrollmentYear *int   `db:"group_enrollment_year" json:"group_enrollment_year,omitempty"`
	StudentCount        int    `db:"student_count" json:"student_count"`
	LectureSubgroups    int    `db:"lecture_subgroups" json:"lecture_subgroups"`
	PracticalSubgroups  int    `db:"practical_subgroups" json:"practical_subgroups"`
	LabSubgroups        int    `db:"lab_subgroups" json:"lab_subgroups"`
}

// Group rebuilds the group attributes carried by the detail row.
func (d TeachingLoadDetail) Group() Group {
	return Group{
		ID:                 d.GroupID,
		Code:               d.GroupCode,
		EnrollmentYear:     d.GroupEnrollmentYear,
		StudentCount:       d.StudentCount,
		LectureSubgroups:   d.LectureSubgroups,
		PracticalSubgroups: d.PracticalSubgroups,
		LabSubgroups:       d.LabSubgroups,
	}
}
