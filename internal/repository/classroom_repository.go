package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/timetable-api/internal/models"
)

const classroomColumns = `c.id, c.building_id, COALESCE(b.name, '') AS building_name, c.number, c.capacity, c.kind
FROM classrooms c
LEFT JOIN buildings b ON b.id = c.building_id`

// ClassroomRepository reads classrooms together with their building.
type ClassroomRepository struct {
	db *sqlx.DB
}

// NewClassroomRepository constructs repository.
func NewClassroomRepository(db *sqlx.DB) *ClassroomRepository {
	return &ClassroomRepository{db: db}
}

// List returns all classrooms, largest first.
func (r *ClassroomRepository) List(ctx context.Context) ([]models.Classroom, error) {
	query := `SELECT ` + classroomColumns + ` ORDER BY c.capacity DESC, c.number ASC`
	var rooms []models.Classroom
	if err := r.db.SelectContext(ctx, &rooms, query); err != nil {
		return nil, fmt.Errorf("list classrooms: %w", err)
	}
	return rooms, nil
}

// FindByID loads a classroom.
func (r *ClassroomRepository) FindByID(ctx context.Context, id string) (*models.Classroom, error) {
	query := `SELECT ` + classroomColumns + ` WHERE c.id = $1`
	var room models.Classroom
	if err := r.db.GetContext(ctx, &room, query, id); err != nil {
		return nil, err
	}
	return &room, nil
}
