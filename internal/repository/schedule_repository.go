package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/timetable-api/internal/models"
)

const scheduleColumns = `id, semester_id, name, academic_year, is_active, is_published, generated_by, created_by, optimization_score, created_at, updated_at`

// ScheduleRepository persists timetable containers.
type ScheduleRepository struct {
	db *sqlx.DB
}

// NewScheduleRepository constructs repository.
func NewScheduleRepository(db *sqlx.DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

func (r *ScheduleRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create inserts a schedule row.
func (r *ScheduleRepository) Create(ctx context.Context, exec sqlx.ExtContext, schedule *models.Schedule) error {
	if schedule == nil {
		return fmt.Errorf("schedule payload is nil")
	}
	if schedule.SemesterID == "" {
		return fmt.Errorf("semester_id is required")
	}
	if schedule.ID == "" {
		schedule.ID = uuid.NewString()
	}
	if schedule.GeneratedBy == "" {
		schedule.GeneratedBy = models.GeneratedByAlgorithm
	}
	now := time.Now().UTC()
	if schedule.CreatedAt.IsZero() {
		schedule.CreatedAt = now
	}
	schedule.UpdatedAt = now

	const query = `
INSERT INTO schedules (id, semester_id, name, academic_year, is_active, is_published, generated_by, created_by, optimization_score, created_at, updated_at)
VALUES (:id, :semester_id, :name, :academic_year, :is_active, :is_published, :generated_by, :created_by, :optimization_score, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, schedule); err != nil {
		return fmt.Errorf("insert schedule: %w", err)
	}
	return nil
}

// FindByID loads a schedule by its identifier.
func (r *ScheduleRepository) FindByID(ctx context.Context, id string) (*models.Schedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM schedules WHERE id = $1`
	var schedule models.Schedule
	if err := r.db.GetContext(ctx, &schedule, query, id); err != nil {
		return nil, err
	}
	return &schedule, nil
}

// ListBySemester returns schedules of a semester, newest first. An empty id lists all schedules.
func (r *ScheduleRepository) ListBySemester(ctx context.Context, semesterID string) ([]models.Schedule, error) {
	var (
		schedules []models.Schedule
		err       error
	)
	if semesterID == "" {
		query := `SELECT ` + scheduleColumns + ` FROM schedules ORDER BY created_at DESC`
		err = r.db.SelectContext(ctx, &schedules, query)
	} else {
		query := `SELECT ` + scheduleColumns + ` FROM schedules WHERE semester_id = $1 ORDER BY created_at DESC`
		err = r.db.SelectContext(ctx, &schedules, query, semesterID)
	}
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	return schedules, nil
}

// ListUnpublished returns schedules still open for optimisation.
func (r *ScheduleRepository) ListUnpublished(ctx context.Context) ([]models.Schedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM schedules WHERE is_published = FALSE ORDER BY updated_at ASC`
	var schedules []models.Schedule
	if err := r.db.SelectContext(ctx, &schedules, query); err != nil {
		return nil, fmt.Errorf("list unpublished schedules: %w", err)
	}
	return schedules, nil
}

// UpdateScore records the latest total penalty of a schedule.
func (r *ScheduleRepository) UpdateScore(ctx context.Context, id string, score float64) error {
	const query = `UPDATE schedules SET optimization_score = $1, updated_at = $2 WHERE id = $3`
	return r.updateOne(ctx, "update schedule score", query, score, time.Now().UTC(), id)
}

// UpdatePublication sets the publication and activation flags.
func (r *ScheduleRepository) UpdatePublication(ctx context.Context, id string, published, active bool) error {
	const query = `UPDATE schedules SET is_published = $1, is_active = $2, updated_at = $3 WHERE id = $4`
	return r.updateOne(ctx, "update schedule publication", query, published, active, time.Now().UTC(), id)
}

func (r *ScheduleRepository) updateOne(ctx context.Context, op, query string, args ...interface{}) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
