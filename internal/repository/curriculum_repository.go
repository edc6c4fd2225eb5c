package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/timetable-api/internal/models"
)

// CurriculumRepository reads curriculum plans.
type CurriculumRepository struct {
	db *sqlx.DB
}

// NewCurriculumRepository constructs repository.
func NewCurriculumRepository(db *sqlx.DB) *CurriculumRepository {
	return &CurriculumRepository{db: db}
}

// ListBySemester returns the curriculum rows of a semester with discipline and group labels.
func (r *CurriculumRepository) ListBySemester(ctx context.Context, semesterID string) ([]models.Curriculum, error) {
	const query = `SELECT cu.id, cu.program_id, cu.discipline_id, d.name AS discipline_name, cu.group_id, g.code AS group_code,
cu.semester_id, cu.hours_lecture, cu.hours_practical, cu.hours_lab, cu.assessment_type
FROM curricula cu
JOIN disciplines d ON d.id = cu.discipline_id
JOIN groups g ON g.id = cu.group_id
WHERE cu.semester_id = $1
ORDER BY g.code ASC, d.name ASC`
	var items []models.Curriculum
	if err := r.db.SelectContext(ctx, &items, query, semesterID); err != nil {
		return nil, fmt.Errorf("list curricula: %w", err)
	}
	return items, nil
}
