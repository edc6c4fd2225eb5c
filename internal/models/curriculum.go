package models

// Curriculum declares the hours a group must receive for a discipline in a semester.
type Curriculum struct {
	ID             string `db:"id" json:"id"`
	ProgramID      string `db:"program_id" json:"program_id"`
	DisciplineID   string `db:"discipline_id" json:"discipline_id"`
	DisciplineName string `db:"discipline_name" json:"discipline_name"`
	GroupID        string `db:"group_id" json:"group_id"`
	GroupCode      string `db:"group_code" json:"group_code"`
	SemesterID     string `db:"semester_id" json:"semester_id"`
	HoursLecture   int    `db:"hours_lecture" json:"hours_lecture"`
	HoursPractical int    `db:"hours_practical" json:"hours_practical"`
	HoursLab       int    `db:"hours_lab" json:"hours_lab"`
	AssessmentType string `db:"assessment_type" json:"assessment_type"`
}
