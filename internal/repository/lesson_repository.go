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

const lessonColumns = `id, schedule_id, teaching_load_id, kind, day_of_week, time_slot_id, classroom_id, subgroup_number, is_double, created_at, updated_at`

const lessonDetailQuery = `SELECT l.id, l.schedule_id, l.teaching_load_id, l.kind, l.day_of_week, l.time_slot_id, l.classroom_id,
l.subgroup_number, l.is_double, l.created_at, l.updated_at,
tl.teacher_id, t.full_name AS teacher_name, tl.group_id, g.code AS group_code,
g.enrollment_year AS group_enrollment_year, g.student_count AS group_student_count,
tl.curriculum_id, cu.discipline_id, d.name AS discipline_name,
r.number AS classroom_number, r.capacity AS classroom_capacity, r.kind AS classroom_kind,
r.building_id, COALESCE(b.name, '') AS building_name,
ts.shift, ts.pair_number, sem.start_year AS reference_year
FROM lessons l
JOIN teaching_loads tl ON tl.id = l.teaching_load_id
JOIN teachers t ON t.id = tl.teacher_id
JOIN groups g ON g.id = tl.group_id
JOIN curricula cu ON cu.id = tl.curriculum_id
JOIN disciplines d ON d.id = cu.discipline_id
JOIN classrooms r ON r.id = l.classroom_id
LEFT JOIN buildings b ON b.id = r.building_id
JOIN time_slots ts ON ts.id = l.time_slot_id
JOIN schedules s ON s.id = l.schedule_id
JOIN semesters sem ON sem.id = s.semester_id`

const insertLessonQuery = `
INSERT INTO lessons (id, schedule_id, teaching_load_id, kind, day_of_week, time_slot_id, classroom_id, subgroup_number, is_double, created_at, updated_at)
VALUES (:id, :schedule_id, :teaching_load_id, :kind, :day_of_week, :time_slot_id, :classroom_id, :subgroup_number, :is_double, :created_at, :updated_at)`

// LessonRepository persists placed lessons.
type LessonRepository struct {
	db *sqlx.DB
}

// NewLessonRepository constructs repository.
func NewLessonRepository(db *sqlx.DB) *LessonRepository {
	return &LessonRepository{db: db}
}

func (r *LessonRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// ListDetailedBySchedule returns every lesson of a schedule with its joined attributes.
func (r *LessonRepository) ListDetailedBySchedule(ctx context.Context, scheduleID string) ([]models.LessonDetail, error) {
	query := lessonDetailQuery + `
WHERE l.schedule_id = $1
ORDER BY l.day_of_week ASC, ts.pair_number ASC, l.id ASC`
	var lessons []models.LessonDetail
	if err := r.db.SelectContext(ctx, &lessons, query, scheduleID); err != nil {
		return nil, fmt.Errorf("list lesson details: %w", err)
	}
	return lessons, nil
}

// ListDetailedAtSlot returns the lessons of a schedule sharing a day and time slot.
func (r *LessonRepository) ListDetailedAtSlot(ctx context.Context, scheduleID string, day models.DayOfWeek, timeSlotID string) ([]models.LessonDetail, error) {
	query := lessonDetailQuery + `
WHERE l.schedule_id = $1 AND l.day_of_week = $2 AND l.time_slot_id = $3`
	var lessons []models.LessonDetail
	if err := r.db.SelectContext(ctx, &lessons, query, scheduleID, day, timeSlotID); err != nil {
		return nil, fmt.Errorf("list lessons at slot: %w", err)
	}
	return lessons, nil
}

// ListBySchedule returns the bare lesson rows of a schedule.
func (r *LessonRepository) ListBySchedule(ctx context.Context, scheduleID string) ([]models.Lesson, error) {
	query := `SELECT ` + lessonColumns + ` FROM lessons WHERE schedule_id = $1 ORDER BY created_at ASC, id ASC`
	var lessons []models.Lesson
	if err := r.db.SelectContext(ctx, &lessons, query, scheduleID); err != nil {
		return nil, fmt.Errorf("list lessons: %w", err)
	}
	return lessons, nil
}

// FindByID loads a single lesson row.
func (r *LessonRepository) FindByID(ctx context.Context, id string) (*models.Lesson, error) {
	query := `SELECT ` + lessonColumns + ` FROM lessons WHERE id = $1`
	var lesson models.Lesson
	if err := r.db.GetContext(ctx, &lesson, query, id); err != nil {
		return nil, err
	}
	return &lesson, nil
}

// Create inserts a lesson, assigning id and timestamps when missing.
func (r *LessonRepository) Create(ctx context.Context, exec sqlx.ExtContext, lesson *models.Lesson) error {
	if lesson == nil {
		return fmt.Errorf("lesson payload is nil")
	}
	prepareLesson(lesson, time.Now().UTC())
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), insertLessonQuery, lesson); err != nil {
		return fmt.Errorf("insert lesson: %w", err)
	}
	return nil
}

// BulkCreate inserts many lessons using the provided executor.
func (r *LessonRepository) BulkCreate(ctx context.Context, exec sqlx.ExtContext, lessons []models.Lesson) error {
	if len(lessons) == 0 {
		return nil
	}
	target := r.exec(exec)
	now := time.Now().UTC()
	for i := range lessons {
		lesson := &lessons[i]
		prepareLesson(lesson, now)
		if _, err := sqlx.NamedExecContext(ctx, target, insertLessonQuery, lesson); err != nil {
			return fmt.Errorf("bulk insert lesson: %w", err)
		}
	}
	return nil
}

// UpdatePlacement moves a lesson to another day and time slot.
func (r *LessonRepository) UpdatePlacement(ctx context.Context, id string, day models.DayOfWeek, timeSlotID string) error {
	const query = `UPDATE lessons SET day_of_week = $1, time_slot_id = $2, updated_at = $3 WHERE id = $4`
	result, err := r.db.ExecContext(ctx, query, day, timeSlotID, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update lesson placement: %w", err)
	}
	return expectAffected(result, "lesson placement")
}

// Update rewrites the editable fields of a lesson.
func (r *LessonRepository) Update(ctx context.Context, lesson *models.Lesson) error {
	lesson.UpdatedAt = time.Now().UTC()
	const query = `UPDATE lessons SET kind = :kind, day_of_week = :day_of_week, time_slot_id = :time_slot_id, classroom_id = :classroom_id,
subgroup_number = :subgroup_number, is_double = :is_double, updated_at = :updated_at WHERE id = :id`
	result, err := r.db.NamedExecContext(ctx, query, lesson)
	if err != nil {
		return fmt.Errorf("update lesson: %w", err)
	}
	return expectAffected(result, "lesson")
}

// Delete removes a lesson.
func (r *LessonRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM lessons WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete lesson: %w", err)
	}
	return expectAffected(result, "delete lesson")
}

func prepareLesson(lesson *models.Lesson, now time.Time) {
	if lesson.ID == "" {
		lesson.ID = uuid.NewString()
	}
	if lesson.CreatedAt.IsZero() {
		lesson.CreatedAt = now
	}
	lesson.UpdatedAt = now
}

func expectAffected(result sql.Result, op string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
