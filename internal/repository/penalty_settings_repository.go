package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/timetable-api/internal/models"
)

// PenaltySettingsRepository reads weight tables stored as JSONB.
type PenaltySettingsRepository struct {
	db *sqlx.DB
}

// NewPenaltySettingsRepository constructs repository.
func NewPenaltySettingsRepository(db *sqlx.DB) *PenaltySettingsRepository {
	return &PenaltySettingsRepository{db: db}
}

// FindDefaultBySemester returns the semester's default settings with weights decoded on top
// of the built-in defaults, so a partial document only overrides the keys it names.
func (r *PenaltySettingsRepository) FindDefaultBySemester(ctx context.Context, semesterID string) (*models.PenaltySettings, error) {
	const query = `SELECT id, semester_id, name, is_default, weights, created_at
FROM penalty_settings WHERE semester_id = $1 AND is_default = TRUE
ORDER BY created_at DESC LIMIT 1`
	var settings models.PenaltySettings
	if err := r.db.GetContext(ctx, &settings, query, semesterID); err != nil {
		return nil, err
	}
	weights := models.DefaultPenaltyWeights()
	if len(settings.RawWeights) > 0 {
		if err := json.Unmarshal(settings.RawWeights, &weights); err != nil {
			return nil, fmt.Errorf("decode penalty weights %s: %w", settings.ID, err)
		}
	}
	settings.Weights = weights
	return &settings, nil
}
