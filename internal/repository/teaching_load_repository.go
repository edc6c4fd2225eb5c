package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/timetable-api/internal/models"
)

const teachingLoadDetailQuery = `SELECT tl.id, tl.semester_id, tl.curriculum_id, tl.teacher_id, tl.group_id,
tl.hours_lecture, tl.hours_practical, tl.hours_lab, tl.status, tl.created_at,
t.full_name AS teacher_name, cu.discipline_id, d.name AS discipline_name,
g.code AS group_code, g.enrollment_year AS group_enrollment_year, g.student_count,
g.lecture_subgroups, g.practical_subgroups, g.lab_subgroups
FROM teaching_loads tl
JOIN teachers t ON t.id = tl.teacher_id
JOIN curricula cu ON cu.id = tl.curriculum_id
JOIN disciplines d ON d.id = cu.discipline_id
JOIN groups g ON g.id = tl.group_id`

// TeachingLoadRepository reads teaching loads. Loads are produced upstream and never written here.
type TeachingLoadRepository struct {
	db *sqlx.DB
}

// NewTeachingLoadRepository constructs repository.
func NewTeachingLoadRepository(db *sqlx.DB) *TeachingLoadRepository {
	return &TeachingLoadRepository{db: db}
}

// ListDetailedBySemester returns every load of a semester joined with teacher, discipline and group.
func (r *TeachingLoadRepository) ListDetailedBySemester(ctx context.Context, semesterID string) ([]models.TeachingLoadDetail, error) {
	query := teachingLoadDetailQuery + `
WHERE tl.semester_id = $1
ORDER BY tl.created_at ASC, tl.id ASC`
	var loads []models.TeachingLoadDetail
	if err := r.db.SelectContext(ctx, &loads, query, semesterID); err != nil {
		return nil, fmt.Errorf("list teaching loads: %w", err)
	}
	return loads, nil
}

// FindDetailByID loads one teaching load with its joins.
func (r *TeachingLoadRepository) FindDetailByID(ctx context.Context, id string) (*models.TeachingLoadDetail, error) {
	query := teachingLoadDetailQuery + `
WHERE tl.id = $1`
	var load models.TeachingLoadDetail
	if err := r.db.GetContext(ctx, &load, query, id); err != nil {
		return nil, err
	}
	return &load, nil
}
