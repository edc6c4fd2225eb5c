package models

import "time"

// Semester anchors a teaching term; StartYear is the reference year for course derivation.
type Semester struct {
	ID           string    `db:"id" json:"id"`
	Number       int       `db:"number" json:"number"`
	AcademicYear string    `db:"academic_year" json:"academic_year"`
	StartYear    int       `db:"start_year" json:"start_year"`
	IsActive     bool      `db:"is_active" json:"is_active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}
