package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/edupoint-id/portal-api/internal/models"
)

// LessonRepository reads recurring lesson templates and standalone lessons.
type LessonRepository struct {
	db *sqlx.DB
}

// NewLessonRepository constructs the repository.
func NewLessonRepository(db *sqlx.DB) *LessonRepository {
	return &LessonRepository{db: db}
}

const templateColumns = `rl.id, rl.class_id, rl.subject_id, rl.teacher_id, rl.start_time, rl.end_time, rl.weekdays,
c.name AS class_name, sub.name AS subject_name, t.full_name AS teacher_name,
rl.created_at, rl.updated_at`

const templateJoins = `FROM recurring_lessons rl
LEFT JOIN classes c ON c.id = rl.class_id
LEFT JOIN subjects sub ON sub.id = rl.subject_id
LEFT JOIN users t ON t.id = rl.teacher_id`

// TemplatesInScope lists recurring templates, optionally restricted to class
// IDs. An empty classIDs slice means no class constraint; callers that hold
// an empty (non-admin) scope must short-circuit before reaching here.
func (r *LessonRepository) TemplatesInScope(ctx context.Context, classIDs []string) ([]models.RecurringLessonTemplate, error) {
	where := "1=1"
	args := []interface{}{}
	if len(classIDs) > 0 {
		where = "rl.class_id = ANY($1)"
		args = append(args, pq.Array(classIDs))
	}
	query := fmt.Sprintf(`SELECT %s %s WHERE %s ORDER BY rl.start_time ASC, rl.class_id ASC`, templateColumns, templateJoins, where)
	var templates []models.RecurringLessonTemplate
	if err := r.db.SelectContext(ctx, &templates, query, args...); err != nil {
		return nil, fmt.Errorf("list recurring lessons: %w", err)
	}
	return templates, nil
}

// StandaloneInRange lists one-off lessons whose date falls in [from, to],
// optionally restricted to class IDs.
func (r *LessonRepository) StandaloneInRange(ctx context.Context, classIDs []string, from, to time.Time) ([]models.StandaloneLesson, error) {
	where := []string{"sl.date >= $1", "sl.date <= $2"}
	args := []interface{}{from, to}
	if len(classIDs) > 0 {
		where = append(where, fmt.Sprintf("sl.class_id = ANY($%d)", len(args)+1))
		args = append(args, pq.Array(classIDs))
	}
	query := fmt.Sprintf(`SELECT sl.id, sl.class_id, sl.subject_id, sl.teacher_id, sl.date, sl.start_time, sl.end_time,
c.name AS class_name, sub.name AS subject_name, t.full_name AS teacher_name,
sl.created_at, sl.updated_at
FROM standalone_lessons sl
LEFT JOIN classes c ON c.id = sl.class_id
LEFT JOIN subjects sub ON sub.id = sl.subject_id
LEFT JOIN users t ON t.id = sl.teacher_id
WHERE %s ORDER BY sl.date ASC, sl.start_time ASC`, strings.Join(where, " AND "))
	var lessons []models.StandaloneLesson
	if err := r.db.SelectContext(ctx, &lessons, query, args...); err != nil {
		return nil, fmt.Errorf("list standalone lessons: %w", err)
	}
	return lessons, nil
}

// List returns templates matching the filter with pagination.
func (r *LessonRepository) List(ctx context.Context, filter models.LessonFilter) ([]models.RecurringLessonTemplate, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.ClassID != "" {
		where = append(where, fmt.Sprintf("rl.class_id = $%d", len(args)+1))
		args = append(args, filter.ClassID)
	}
	if filter.TeacherID != "" {
		where = append(where, fmt.Sprintf("rl.teacher_id = $%d", len(args)+1))
		args = append(args, filter.TeacherID)
	}
	if filter.SubjectID != "" {
		where = append(where, fmt.Sprintf("rl.subject_id = $%d", len(args)+1))
		args = append(args, filter.SubjectID)
	}
	whereClause := strings.Join(where, " AND ")
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s %s WHERE %s ORDER BY rl.start_time ASC, rl.class_id ASC LIMIT %d OFFSET %d`,
		templateColumns, templateJoins, whereClause, size, offset)
	var templates []models.RecurringLessonTemplate
	if err := r.db.SelectContext(ctx, &templates, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list recurring lessons: %w", err)
	}
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM recurring_lessons rl WHERE %s", whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count recurring lessons: %w", err)
	}
	return templates, total, nil
}

// FindTemplateByID fetches one recurring template.
func (r *LessonRepository) FindTemplateByID(ctx context.Context, id string) (*models.RecurringLessonTemplate, error) {
	query := fmt.Sprintf(`SELECT %s %s WHERE rl.id = $1`, templateColumns, templateJoins)
	var template models.RecurringLessonTemplate
	if err := r.db.GetContext(ctx, &template, query, id); err != nil {
		return nil, err
	}
	return &template, nil
}

// Reschedule updates a template's time-of-day and weekday set. Templates are
// otherwise immutable once created.
func (r *LessonRepository) Reschedule(ctx context.Context, id, startTime, endTime, weekdays string) error {
	const query = `UPDATE recurring_lessons SET start_time = $2, end_time = $3, weekdays = $4, updated_at = $5 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, startTime, endTime, weekdays, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("reschedule lesson: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reschedule rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("reschedule lesson %s: no such template", id)
	}
	return nil
}

// FindTeacherOverlaps returns other templates of the same teacher that share
// at least one weekday and overlap the [startTime, endTime) window. Used to
// keep reschedules from double-booking a teacher.
func (r *LessonRepository) FindTeacherOverlaps(ctx context.Context, teacherID string, weekdays []string, startTime, endTime, excludeID string) ([]models.RecurringLessonTemplate, error) {
	query := fmt.Sprintf(`SELECT %s %s
WHERE rl.teacher_id = $1
  AND rl.id <> $2
  AND string_to_array(rl.weekdays, ',') && $3
  AND rl.start_time < $4
  AND rl.end_time > $5`, templateColumns, templateJoins)
	var templates []models.RecurringLessonTemplate
	if err := r.db.SelectContext(ctx, &templates, query, teacherID, excludeID, pq.Array(weekdays), endTime, startTime); err != nil {
		return nil, fmt.Errorf("find teacher overlaps: %w", err)
	}
	return templates, nil
}

// TeacherClassIDs returns the distinct classes where a teacher has at least
// one recurring or standalone lesson. Teacher-authorship defines class
// membership; there is no separate teacher enrollment table.
func (r *LessonRepository) TeacherClassIDs(ctx context.Context, teacherID string) ([]string, error) {
	const query = `SELECT DISTINCT class_id FROM (
  SELECT class_id FROM recurring_lessons WHERE teacher_id = $1
  UNION
  SELECT class_id FROM standalone_lessons WHERE teacher_id = $1
) AS ids`
	var classIDs []string
	if err := r.db.SelectContext(ctx, &classIDs, query, teacherID); err != nil {
		return nil, fmt.Errorf("teacher class ids: %w", err)
	}
	return classIDs, nil
}
