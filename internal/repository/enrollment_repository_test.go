package repository

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEnrollmentMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestEnrollmentRepositoryClassIDsForStudent(t *testing.T) {
	db, mock, cleanup := newEnrollmentMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	rows := sqlmock.NewRows([]string{"class_id"}).AddRow("class-1")
	mock.ExpectQuery("SELECT DISTINCT class_id FROM enrollments WHERE student_id = \\$1 AND active").
		WithArgs("stu-1").
		WillReturnRows(rows)

	classIDs, err := repo.ClassIDsForStudent(context.Background(), "stu-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"class-1"}, classIDs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryGradeIDsForStudents(t *testing.T) {
	db, mock, cleanup := newEnrollmentMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	rows := sqlmock.NewRows([]string{"grade_id"}).AddRow("grade-7").AddRow("grade-9")
	mock.ExpectQuery("(?s)SELECT DISTINCT c.grade_id.*FROM enrollments e").
		WithArgs(pq.Array([]string{"stu-1", "stu-2"})).
		WillReturnRows(rows)

	gradeIDs, err := repo.GradeIDsForStudents(context.Background(), []string{"stu-1", "stu-2"})
	require.NoError(t, err)
	assert.Equal(t, []string{"grade-7", "grade-9"}, gradeIDs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryGradeIDsForStudentsEmptyInput(t *testing.T) {
	db, _, cleanup := newEnrollmentMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	gradeIDs, err := repo.GradeIDsForStudents(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, gradeIDs)
}

func TestEnrollmentRepositoryStudentIDsForParent(t *testing.T) {
	db, mock, cleanup := newEnrollmentMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	rows := sqlmock.NewRows([]string{"student_id"}).AddRow("stu-1").AddRow("stu-2")
	mock.ExpectQuery("SELECT student_id FROM guardians WHERE parent_id = \\$1").
		WithArgs("parent-1").
		WillReturnRows(rows)

	studentIDs, err := repo.StudentIDsForParent(context.Background(), "parent-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"stu-1", "stu-2"}, studentIDs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryRoster(t *testing.T) {
	db, mock, cleanup := newEnrollmentMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	rows := sqlmock.NewRows([]string{"student_id", "student_name"}).
		AddRow("stu-1", "Alice").
		AddRow("stu-2", "Bob")
	mock.ExpectQuery("(?s)SELECT e.student_id, s.full_name AS student_name.*FROM enrollments e").
		WithArgs("class-1").
		WillReturnRows(rows)

	roster, err := repo.Roster(context.Background(), "class-1")
	require.NoError(t, err)
	require.Len(t, roster, 2)
	assert.Equal(t, "Alice", roster[0].StudentName)
	assert.NoError(t, mock.ExpectationsWereMet())
}
