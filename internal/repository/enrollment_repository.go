package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/edupoint-id/portal-api/internal/models"
)

// EnrollmentRepository answers membership questions: which classes a student
// belongs to, which grades those classes sit in, and which students a parent
// is guardian of.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// ClassIDsForStudent returns the active class memberships of one student.
func (r *EnrollmentRepository) ClassIDsForStudent(ctx context.Context, studentID string) ([]string, error) {
	const query = `SELECT DISTINCT class_id FROM enrollments WHERE student_id = $1 AND active`
	var classIDs []string
	if err := r.db.SelectContext(ctx, &classIDs, query, studentID); err != nil {
		return nil, fmt.Errorf("student class ids: %w", err)
	}
	return classIDs, nil
}

// ClassIDsForStudents returns the distinct active class memberships across a
// set of students (a parent's children).
func (r *EnrollmentRepository) ClassIDsForStudents(ctx context.Context, studentIDs []string) ([]string, error) {
	if len(studentIDs) == 0 {
		return nil, nil
	}
	const query = `SELECT DISTINCT class_id FROM enrollments WHERE student_id = ANY($1) AND active`
	var classIDs []string
	if err := r.db.SelectContext(ctx, &classIDs, query, pq.Array(studentIDs)); err != nil {
		return nil, fmt.Errorf("students class ids: %w", err)
	}
	return classIDs, nil
}

// GradeIDsForStudents returns the distinct grades of the classes the given
// students are enrolled in. A parent with children in different grades gets
// every grade back, not just one.
func (r *EnrollmentRepository) GradeIDsForStudents(ctx context.Context, studentIDs []string) ([]string, error) {
	if len(studentIDs) == 0 {
		return nil, nil
	}
	const query = `SELECT DISTINCT c.grade_id
FROM enrollments e
JOIN classes c ON c.id = e.class_id
WHERE e.student_id = ANY($1) AND e.active`
	var gradeIDs []string
	if err := r.db.SelectContext(ctx, &gradeIDs, query, pq.Array(studentIDs)); err != nil {
		return nil, fmt.Errorf("students grade ids: %w", err)
	}
	return gradeIDs, nil
}

// StudentIDsForParent returns the students a parent is guardian of.
func (r *EnrollmentRepository) StudentIDsForParent(ctx context.Context, parentID string) ([]string, error) {
	const query = `SELECT student_id FROM guardians WHERE parent_id = $1`
	var studentIDs []string
	if err := r.db.SelectContext(ctx, &studentIDs, query, parentID); err != nil {
		return nil, fmt.Errorf("parent student ids: %w", err)
	}
	return studentIDs, nil
}

// Roster lists the active students of a class, ordered by name for stable
// report output.
func (r *EnrollmentRepository) Roster(ctx context.Context, classID string) ([]models.RosterEntry, error) {
	const query = `SELECT e.student_id, s.full_name AS student_name
FROM enrollments e
JOIN users s ON s.id = e.student_id
WHERE e.class_id = $1 AND e.active
ORDER BY s.full_name ASC`
	var roster []models.RosterEntry
	if err := r.db.SelectContext(ctx, &roster, query, classID); err != nil {
		return nil, fmt.Errorf("class roster: %w", err)
	}
	return roster, nil
}
