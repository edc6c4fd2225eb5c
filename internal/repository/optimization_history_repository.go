package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"github.com/noah-isme/timetable-api/internal/models"
)

// OptimizationHistoryRepository appends and lists optimisation runs.
type OptimizationHistoryRepository struct {
	db *sqlx.DB
}

// NewOptimizationHistoryRepository constructs repository.
func NewOptimizationHistoryRepository(db *sqlx.DB) *OptimizationHistoryRepository {
	return &OptimizationHistoryRepository{db: db}
}

// Create appends a history entry.
func (r *OptimizationHistoryRepository) Create(ctx context.Context, entry *models.OptimizationHistory) error {
	if entry == nil {
		return fmt.Errorf("history payload is nil")
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if len(entry.Improvements) == 0 {
		entry.Improvements = types.JSONText(`{}`)
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	const query = `
INSERT INTO optimization_histories (id, schedule_id, algorithm, penalty_before, penalty_after, iterations, duration_ms, improvements, created_at)
VALUES (:id, :schedule_id, :algorithm, :penalty_before, :penalty_after, :iterations, :duration_ms, :improvements, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("insert optimization history: %w", err)
	}
	return nil
}

// ListBySchedule returns the runs of a schedule, newest first.
func (r *OptimizationHistoryRepository) ListBySchedule(ctx context.Context, scheduleID string) ([]models.OptimizationHistory, error) {
	const query = `SELECT id, schedule_id, algorithm, penalty_before, penalty_after, iterations, duration_ms, improvements, created_at
FROM optimization_histories WHERE schedule_id = $1 ORDER BY created_at DESC`
	var items []models.OptimizationHistory
	if err := r.db.SelectContext(ctx, &items, query, scheduleID); err != nil {
		return nil, fmt.Errorf("list optimization history: %w", err)
	}
	return items, nil
}
