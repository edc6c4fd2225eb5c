package models

// ConflictType identifies a hard rule broken by a lesson placement.
type ConflictType string

const (
	ConflictTeacher              ConflictType = "TEACHER_CONFLICT"
	ConflictRoom                 ConflictType = "ROOM_CONFLICT"
	ConflictGroup                ConflictType = "GROUP_CONFLICT"
	ConflictCapacityInsufficient ConflictType = "CAPACITY_INSUFFICIENT"
	ConflictWrongRoomType        ConflictType = "WRONG_ROOM_TYPE"
	ConflictShiftViolation       ConflictType = "SHIFT_VIOLATION"
)

// ConflictSeverity grades a conflict.
type ConflictSeverity string

const (
	SeverityCritical ConflictSeverity = "CRITICAL"
	SeverityWarning  ConflictSeverity = "WARNING"
)

// Conflict is a transient violation record produced by the conflict detector.
type Conflict struct {
	Type                ConflictType           `json:"type"`
	Severity            ConflictSeverity       `json:"severity"`
	LessonID            string                 `json:"lesson_id,omitempty"`
	ConflictingLessonID string                 `json:"conflicting_lesson_id,omitempty"`
	Message             string                 `json:"message"`
	Details             map[string]interface{} `json:"details,omitempty"`
}

// ConflictReport groups the conflicts of one lesson.
type ConflictReport struct {
	LessonID  string       `json:"lesson_id"`
	Lesson    LessonDetail `json:"lesson"`
	Conflicts []Conflict   `json:"conflicts"`
}

// ConflictStats summarises a batch of conflict reports.
type ConflictStats struct {
	Total      int                      `json:"total"`
	ByType     map[ConflictType]int     `json:"by_type"`
	BySeverity map[ConflictSeverity]int `json:"by_severity"`
}

// ScheduleConflictError carries conflicts that blocked a lesson mutation.
type ScheduleConflictError struct {
	Message   string     `json:"message"`
	Conflicts []Conflict `json:"conflicts"`
}

// Error implements the error interface for conflict errors.
func (e *ScheduleConflictError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Message
}
