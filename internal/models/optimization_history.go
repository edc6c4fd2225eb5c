package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// Algorithm names recorded in optimisation history.
const (
	AlgorithmGreedyBacktracking = "GREEDY_BACKTRACKING"
	AlgorithmLocalSearch        = "LOCAL_SEARCH"
	AlgorithmSimulatedAnnealing = "SIMULATED_ANNEALING"
)

// OptimizationHistory is an append-only record of a generation or optimisation run.
type OptimizationHistory struct {
	ID            string         `db:"id" json:"id"`
	ScheduleID    string         `db:"schedule_id" json:"schedule_id"`
	Algorithm     string         `db:"algorithm" json:"algorithm"`
	PenaltyBefore float64        `db:"penalty_before" json:"penalty_before"`
	PenaltyAfter  float64        `db:"penalty_after" json:"penalty_after"`
	Iterations    int            `db:"iterations" json:"iterations"`
	DurationMs    int64          `db:"duration_ms" json:"duration_ms"`
	Improvements  types.JSONText `db:"improvements" json:"improvements"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
}
