package dto

import "github.com/noah-isme/timetable-api/internal/models"

// GenerationPhase is the last construction step a generation run reached.
type GenerationPhase string

const (
	PhaseCreateSchedule GenerationPhase = "CREATE_SCHEDULE"
	PhaseLoadData       GenerationPhase = "LOAD_DATA"
	PhaseBuildTasks     GenerationPhase = "BUILD_TASKS"
	PhasePrioritize     GenerationPhase = "PRIORITIZE"
	PhasePlaceLoop      GenerationPhase = "PLACE_LOOP"
	PhaseEvaluate       GenerationPhase = "EVALUATE"
	PhasePersistHistory GenerationPhase = "PERSIST_HISTORY"
	PhaseDone           GenerationPhase = "DONE"
)

// GenerateScheduleRequest instructs the generator to build a schedule for a semester.
type GenerateScheduleRequest struct {
	SemesterID    string   `json:"semesterId" validate:"required"`
	ActorID       string   `json:"-" validate:"required"`
	MaxIterations int      `json:"maxIterations" validate:"omitempty,min=1,max=100000"`
	TargetPenalty *float64 `json:"targetPenalty" validate:"omitempty,min=0"`
	SaveProgress  *bool    `json:"saveProgress"`
}

// UnplacedTask describes a session the placement search could not fit.
type UnplacedTask struct {
	TeachingLoadID string            `json:"teachingLoadId"`
	TeacherID      string            `json:"teacherId"`
	GroupID        string            `json:"groupId"`
	DisciplineName string            `json:"disciplineName"`
	Kind           models.LessonKind `json:"kind"`
	SubgroupNumber *int              `json:"subgroupNumber,omitempty"`
	Reason         string            `json:"reason"`
}

// GenerationResult summarises a construction run.
type GenerationResult struct {
	ScheduleID    string               `json:"scheduleId"`
	PlacedCount   int                  `json:"placedCount"`
	TotalTasks    int                  `json:"totalTasks"`
	SuccessRate   float64              `json:"successRate"`
	TargetPenalty float64              `json:"targetPenalty"`
	TargetReached bool                 `json:"targetReached"`
	Evaluation    models.PenaltyReport `json:"evaluation"`
	Unplaced      []UnplacedTask       `json:"unplaced"`
	Phase         GenerationPhase      `json:"phase"`
}

// OptimizeRequest tunes a local-search run.
type OptimizeRequest struct {
	MaxIterations int    `json:"maxIterations" validate:"omitempty,min=1,max=100000"`
	Algorithm     string `json:"algorithm" validate:"omitempty,oneof=LOCAL_SEARCH SIMULATED_ANNEALING"`
}

// OptimizationResult reports the outcome of a local-search run.
type OptimizationResult struct {
	ScheduleID  string  `json:"scheduleId"`
	Algorithm   string  `json:"algorithm"`
	Before      float64 `json:"before"`
	After       float64 `json:"after"`
	Improvement float64 `json:"improvement"`
	Iterations  int     `json:"iterations"`
	Successful  int     `json:"successful"`
	DurationMs  int64   `json:"durationMs"`
}

// ConflictsResponse lists conflicts of a schedule with aggregated counts.
type ConflictsResponse struct {
	Reports []models.ConflictReport `json:"reports"`
	Stats   models.ConflictStats    `json:"stats"`
}

// ValidationIssue is one error or warning in a validation report.
type ValidationIssue struct {
	Type    string      `json:"type"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// ValidationReport is the audit result of a schedule.
type ValidationReport struct {
	IsValid  bool                  `json:"isValid"`
	Errors   []ValidationIssue     `json:"errors"`
	Warnings []ValidationIssue     `json:"warnings"`
	Stats    *models.ScheduleStats `json:"stats,omitempty"`
}

// LessonFieldError reports a problem with a single lesson field or placement.
type LessonFieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Type    string `json:"type,omitempty"`
}

// LessonValidation is the result of checking one lesson before it is written.
type LessonValidation struct {
	IsValid   bool               `json:"isValid"`
	Errors    []LessonFieldError `json:"errors"`
	Conflicts []models.Conflict  `json:"conflicts,omitempty"`
}

// CreateLessonRequest places a lesson by hand.
type CreateLessonRequest struct {
	ScheduleID     string `json:"scheduleId" validate:"required"`
	TeachingLoadID string `json:"teachingLoadId"`
	Kind           string `json:"kind" validate:"omitempty,oneof=LECTURE PRACTICE LAB PHYSICAL_EDUCATION"`
	DayOfWeek      string `json:"dayOfWeek" validate:"omitempty,oneof=MONDAY TUESDAY WEDNESDAY THURSDAY FRIDAY SATURDAY"`
	TimeSlotID     string `json:"timeSlotId"`
	ClassroomID    string `json:"classroomId"`
	SubgroupNumber *int   `json:"subgroupNumber" validate:"omitempty,min=0"`
	IsDouble       bool   `json:"isDouble"`
}

// UpdateLessonRequest moves or edits an existing lesson; nil fields are kept.
type UpdateLessonRequest struct {
	Kind           *string `json:"kind" validate:"omitempty,oneof=LECTURE PRACTICE LAB PHYSICAL_EDUCATION"`
	DayOfWeek      *string `json:"dayOfWeek" validate:"omitempty,oneof=MONDAY TUESDAY WEDNESDAY THURSDAY FRIDAY SATURDAY"`
	TimeSlotID     *string `json:"timeSlotId"`
	ClassroomID    *string `json:"classroomId"`
	SubgroupNumber *int    `json:"subgroupNumber" validate:"omitempty,min=0"`
	IsDouble       *bool   `json:"isDouble"`
}

// CloneScheduleRequest copies a schedule and its lessons.
type CloneScheduleRequest struct {
	SemesterID string `json:"semesterId"`
	Name       string `json:"name" validate:"omitempty,max=200"`
	ActorID    string `json:"-" validate:"required"`
}

// ScheduleListQuery filters schedules by semester.
type ScheduleListQuery struct {
	SemesterID string `form:"semesterId" json:"semesterId"`
}

// PublishResult is returned after a schedule is published.
type PublishResult struct {
	Schedule   models.Schedule  `json:"schedule"`
	Validation ValidationReport `json:"validation"`
}
