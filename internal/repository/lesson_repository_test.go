package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edupoint-id/portal-api/internal/models"
)

func newLessonMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func templateRows() *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{"id", "class_id", "subject_id", "teacher_id", "start_time", "end_time", "weekdays", "class_name", "subject_name", "teacher_name", "created_at", "updated_at"}).
		AddRow("tpl-1", "class-1", "subj-1", "teacher-1", "09:00", "10:30", "MO,WE", "7A", "Math", "Ms Smith", now, now)
}

func TestLessonRepositoryTemplatesInScope(t *testing.T) {
	db, mock, cleanup := newLessonMock(t)
	defer cleanup()
	repo := NewLessonRepository(db)

	mock.ExpectQuery("(?s)SELECT rl.id, .* FROM recurring_lessons rl .* WHERE rl.class_id = ANY\\(\\$1\\)").
		WithArgs(pq.Array([]string{"class-1"})).
		WillReturnRows(templateRows())

	templates, err := repo.TemplatesInScope(context.Background(), []string{"class-1"})
	require.NoError(t, err)
	require.Len(t, templates, 1)
	assert.Equal(t, "MO,WE", templates[0].Weekdays)
	require.NotNil(t, templates[0].ClassName)
	assert.Equal(t, "7A", *templates[0].ClassName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLessonRepositoryTemplatesInScopeUnrestricted(t *testing.T) {
	db, mock, cleanup := newLessonMock(t)
	defer cleanup()
	repo := NewLessonRepository(db)

	mock.ExpectQuery("(?s)SELECT rl.id, .* FROM recurring_lessons rl .* WHERE 1=1").
		WillReturnRows(templateRows())

	templates, err := repo.TemplatesInScope(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, templates, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLessonRepositoryStandaloneInRange(t *testing.T) {
	db, mock, cleanup := newLessonMock(t)
	defer cleanup()
	repo := NewLessonRepository(db)

	from := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 6)
	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "class_id", "subject_id", "teacher_id", "date", "start_time", "end_time", "class_name", "subject_name", "teacher_name", "created_at", "updated_at"}).
		AddRow("les-1", "class-1", "subj-1", "teacher-1", from, "08:00", "09:00", "7A", "Math", "Ms Smith", now, now)
	mock.ExpectQuery("(?s)SELECT sl.id, .* FROM standalone_lessons sl").
		WithArgs(from, to, pq.Array([]string{"class-1"})).
		WillReturnRows(rows)

	lessons, err := repo.StandaloneInRange(context.Background(), []string{"class-1"}, from, to)
	require.NoError(t, err)
	require.Len(t, lessons, 1)
	assert.Equal(t, "les-1", lessons[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLessonRepositoryFindTemplateByIDNotFound(t *testing.T) {
	db, mock, cleanup := newLessonMock(t)
	defer cleanup()
	repo := NewLessonRepository(db)

	mock.ExpectQuery("(?s)SELECT rl.id, .* WHERE rl.id = \\$1").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindTemplateByID(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLessonRepositoryReschedule(t *testing.T) {
	db, mock, cleanup := newLessonMock(t)
	defer cleanup()
	repo := NewLessonRepository(db)

	mock.ExpectExec("UPDATE recurring_lessons SET start_time").
		WithArgs("tpl-1", "10:00", "11:30", "WE,FR", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Reschedule(context.Background(), "tpl-1", "10:00", "11:30", "WE,FR"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLessonRepositoryRescheduleUnknownTemplate(t *testing.T) {
	db, mock, cleanup := newLessonMock(t)
	defer cleanup()
	repo := NewLessonRepository(db)

	mock.ExpectExec("UPDATE recurring_lessons SET start_time").
		WithArgs("missing", "10:00", "11:30", "WE,FR", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Reschedule(context.Background(), "missing", "10:00", "11:30", "WE,FR")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no such template")
}

func TestLessonRepositoryFindTeacherOverlaps(t *testing.T) {
	db, mock, cleanup := newLessonMock(t)
	defer cleanup()
	repo := NewLessonRepository(db)

	mock.ExpectQuery("(?s)SELECT rl.id, .* string_to_array\\(rl.weekdays, ','\\)").
		WithArgs("teacher-1", "tpl-1", pq.Array([]string{"MO"}), "11:00", "10:00").
		WillReturnRows(templateRows())

	overlaps, err := repo.FindTeacherOverlaps(context.Background(), "teacher-1", []string{"MO"}, "10:00", "11:00", "tpl-1")
	require.NoError(t, err)
	assert.Len(t, overlaps, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLessonRepositoryTeacherClassIDs(t *testing.T) {
	db, mock, cleanup := newLessonMock(t)
	defer cleanup()
	repo := NewLessonRepository(db)

	rows := sqlmock.NewRows([]string{"class_id"}).AddRow("class-1").AddRow("class-2")
	mock.ExpectQuery("SELECT DISTINCT class_id FROM").
		WithArgs("teacher-1").
		WillReturnRows(rows)

	classIDs, err := repo.TeacherClassIDs(context.Background(), "teacher-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"class-1", "class-2"}, classIDs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLessonRepositoryList(t *testing.T) {
	db, mock, cleanup := newLessonMock(t)
	defer cleanup()
	repo := NewLessonRepository(db)

	mock.ExpectQuery("(?s)SELECT rl.id, .* LIMIT 50 OFFSET 0").
		WithArgs("class-1").
		WillReturnRows(templateRows())
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM recurring_lessons rl").
		WithArgs("class-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	templates, total, err := repo.List(context.Background(), models.LessonFilter{ClassID: "class-1"})
	require.NoError(t, err)
	assert.Len(t, templates, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}
