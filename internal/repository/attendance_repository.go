package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/edupoint-id/portal-api/internal/models"
)

// AttendanceRepository owns the lifecycle of attendance records. Uniqueness of
// (student_id, date, occurrence_key) is enforced by the database; writes go
// through ON CONFLICT upserts so concurrent marks for the same key can never
// leave two rows behind.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// Upsert inserts a record or updates status/present in place when the
// (student_id, date, occurrence_key) row already exists.
func (r *AttendanceRepository) Upsert(ctx context.Context, record *models.AttendanceRecord) (*models.AttendanceRecord, error) {
	now := time.Now().UTC()
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
	query := `INSERT INTO attendance_records (id, student_id, date, occurrence_key, lesson_id, recurring_lesson_id, status, present, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (student_id, date, occurrence_key)
DO UPDATE SET status = EXCLUDED.status, present = EXCLUDED.present, updated_at = EXCLUDED.updated_at
RETURNING id, student_id, date, occurrence_key, lesson_id, recurring_lesson_id, status, present, created_at, updated_at`
	var stored models.AttendanceRecord
	if err := r.db.GetContext(ctx, &stored, query,
		record.ID, record.StudentID, record.Date, record.OccurrenceKey,
		record.LessonID, record.RecurringLessonID, record.Status, record.Present,
		record.CreatedAt, record.UpdatedAt); err != nil {
		return nil, fmt.Errorf("upsert attendance: %w", err)
	}
	return &stored, nil
}

// DeleteMatching removes all records for the key. Zero matches is fine;
// callers rely on clear being idempotent.
func (r *AttendanceRepository) DeleteMatching(ctx context.Context, studentID string, date time.Time, key models.OccurrenceKey) (int64, error) {
	const query = `DELETE FROM attendance_records WHERE student_id = $1 AND date = $2 AND occurrence_key = $3`
	res, err := r.db.ExecContext(ctx, query, studentID, date, key)
	if err != nil {
		return 0, fmt.Errorf("clear attendance: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("clear attendance rows affected: %w", err)
	}
	return affected, nil
}

// List returns attendance rows matching the filter, with student metadata.
func (r *AttendanceRepository) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecordDetail, int, error) {
	base := `FROM attendance_records ar
JOIN users s ON s.id = ar.student_id`
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.StudentID != "" {
		where = append(where, fmt.Sprintf("ar.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.ClassID != "" {
		where = append(where, fmt.Sprintf("EXISTS (SELECT 1 FROM enrollments e WHERE e.student_id = ar.student_id AND e.class_id = $%d AND e.active)", len(args)+1))
		args = append(args, filter.ClassID)
	}
	if filter.Status != nil && filter.Status.Valid() {
		where = append(where, fmt.Sprintf("ar.status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.DateFrom != nil {
		where = append(where, fmt.Sprintf("ar.date >= $%d", len(args)+1))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		where = append(where, fmt.Sprintf("ar.date <= $%d", len(args)+1))
		args = append(args, *filter.DateTo)
	}
	whereClause := strings.Join(where, " AND ")

	allowedSort := map[string]string{
		"date":       "ar.date",
		"status":     "ar.status",
		"created_at": "ar.created_at",
	}
	sortColumn, ok := allowedSort[filter.SortBy]
	if !ok {
		sortColumn = "ar.date"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT ar.id, ar.student_id, ar.date, ar.occurrence_key, ar.lesson_id, ar.recurring_lesson_id, ar.status, ar.present, ar.created_at, ar.updated_at,
s.full_name AS student_name
%s WHERE %s
ORDER BY %s %s, s.full_name ASC
LIMIT %d OFFSET %d`, base, whereClause, sortColumn, order, size, offset)

	var rows []models.AttendanceRecordDetail
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list attendance: %w", err)
	}
	countQuery := fmt.Sprintf("SELECT COUNT(*) %s WHERE %s", base, whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count attendance: %w", err)
	}
	return rows, total, nil
}

// ListForStudentRange returns a student's raw records in [from, to] for the
// schedule merge step.
func (r *AttendanceRepository) ListForStudentRange(ctx context.Context, studentID string, from, to time.Time) ([]models.AttendanceRecord, error) {
	const query = `SELECT id, student_id, date, occurrence_key, lesson_id, recurring_lesson_id, status, present, created_at, updated_at
FROM attendance_records
WHERE student_id = $1 AND date >= $2 AND date <= $3
ORDER BY date ASC`
	var rows []models.AttendanceRecord
	if err := r.db.SelectContext(ctx, &rows, query, studentID, from, to); err != nil {
		return nil, fmt.Errorf("list attendance for range: %w", err)
	}
	return rows, nil
}

// Summary aggregates one student's records per status over a period.
// Cancelled rows are excluded from the countable total, and the rate stays
// nil (rendered "-") when nothing countable exists.
func (r *AttendanceRepository) Summary(ctx context.Context, studentID string, from, to *time.Time) (*models.AttendanceSummary, error) {
	where := []string{"student_id = $1"}
	args := []interface{}{studentID}
	if from != nil {
		where = append(where, fmt.Sprintf("date >= $%d", len(args)+1))
		args = append(args, *from)
	}
	if to != nil {
		where = append(where, fmt.Sprintf("date <= $%d", len(args)+1))
		args = append(args, *to)
	}
	query := fmt.Sprintf(`SELECT status, COUNT(*) AS cnt FROM attendance_records WHERE %s GROUP BY status`, strings.Join(where, " AND "))
	rows := []struct {
		Status string `db:"status"`
		Count  int    `db:"cnt"`
	}{}
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("attendance summary: %w", err)
	}
	summary := &models.AttendanceSummary{}
	presentEquivalent := 0
	for _, row := range rows {
		switch models.AttendanceStatus(row.Status) {
		case models.AttendanceStatusPresent:
			summary.Present += row.Count
		case models.AttendanceStatusAbsent:
			summary.Absent += row.Count
		case models.AttendanceStatusTrial:
			summary.Trial += row.Count
		case models.AttendanceStatusMakeup:
			summary.Makeup += row.Count
		case models.AttendanceStatusCancelled:
			summary.Cancelled += row.Count
		}
		if models.AttendanceStatus(row.Status).CountsAsPresent() {
			presentEquivalent += row.Count
		}
		if models.AttendanceStatus(row.Status) != models.AttendanceStatusCancelled {
			summary.Counted += row.Count
		}
	}
	if summary.Counted > 0 {
		rate := float64(presentEquivalent) / float64(summary.Counted) * 100
		summary.Rate = &rate
	}
	return summary, nil
}
