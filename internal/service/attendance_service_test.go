package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edupoint-id/portal-api/internal/models"
	appErrors "github.com/edupoint-id/portal-api/pkg/errors"
)

type attendanceRepoStub struct {
	upserted    []*models.AttendanceRecord
	upsertErrs  []error
	deleted     int64
	deleteCalls int
	listRows    []models.AttendanceRecordDetail
	listFilter  models.AttendanceFilter
	summary     *models.AttendanceSummary
}

func (s *attendanceRepoStub) Upsert(ctx context.Context, record *models.AttendanceRecord) (*models.AttendanceRecord, error) {
	if len(s.upsertErrs) > 0 {
		err := s.upsertErrs[0]
		s.upsertErrs = s.upsertErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	stored := *record
	stored.ID = "rec-1"
	s.upserted = append(s.upserted, &stored)
	return &stored, nil
}

func (s *attendanceRepoStub) DeleteMatching(ctx context.Context, studentID string, date time.Time, key models.OccurrenceKey) (int64, error) {
	s.deleteCalls++
	return s.deleted, nil
}

func (s *attendanceRepoStub) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecordDetail, int, error) {
	s.listFilter = filter
	return s.listRows, len(s.listRows), nil
}

func (s *attendanceRepoStub) Summary(ctx context.Context, studentID string, from, to *time.Time) (*models.AttendanceSummary, error) {
	return s.summary, nil
}

type scopeResolverStub struct {
	scope models.VisibilityScope
	err   error
}

func (s scopeResolverStub) ResolveScope(ctx context.Context, userID string, role models.UserRole) (models.VisibilityScope, error) {
	if s.err != nil {
		return models.VisibilityScope{}, s.err
	}
	return s.scope, nil
}

type enrollmentLinkStub struct {
	children         map[string][]string
	classesByStudent map[string][]string
}

func (s enrollmentLinkStub) StudentIDsForParent(ctx context.Context, parentID string) ([]string, error) {
	return s.children[parentID], nil
}

func (s enrollmentLinkStub) ClassIDsForStudent(ctx context.Context, studentID string) ([]string, error) {
	return s.classesByStudent[studentID], nil
}

func markRequest() MarkAttendanceRequest {
	lessonID := "les-1"
	return MarkAttendanceRequest{
		StudentID: "stu-1",
		Date:      "2026-03-02",
		LessonID:  &lessonID,
		Status:    "present",
	}
}

func TestAttendanceMark(t *testing.T) {
	repo := &attendanceRepoStub{}
	svc := NewAttendanceService(repo, scopeResolverStub{}, enrollmentLinkStub{}, nil, nil)

	record, err := svc.Mark(context.Background(), markRequest())
	require.NoError(t, err)
	assert.Equal(t, models.OccurrenceKey("lesson:les-1"), record.OccurrenceKey)
	assert.Equal(t, models.AttendanceStatusPresent, record.Status)
	assert.True(t, record.Present)
	assert.Equal(t, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), record.Date)
}

func TestAttendanceMarkDerivesPresent(t *testing.T) {
	repo := &attendanceRepoStub{}
	svc := NewAttendanceService(repo, scopeResolverStub{}, enrollmentLinkStub{}, nil, nil)

	cases := map[string]bool{
		"present":   true,
		"makeup":    true,
		"trial":     true,
		"absent":    false,
		"cancelled": false,
	}
	for status, present := range cases {
		req := markRequest()
		req.Status = status
		record, err := svc.Mark(context.Background(), req)
		require.NoError(t, err, status)
		assert.Equal(t, present, record.Present, status)
	}
}

func TestAttendanceMarkRejectsUnknownStatus(t *testing.T) {
	svc := NewAttendanceService(&attendanceRepoStub{}, scopeResolverStub{}, enrollmentLinkStub{}, nil, nil)

	req := markRequest()
	req.Status = "sick"
	_, err := svc.Mark(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	req.Status = "Present"
	_, err = svc.Mark(context.Background(), req)
	require.Error(t, err)
}

func TestAttendanceMarkRequiresExactlyOneLessonRef(t *testing.T) {
	svc := NewAttendanceService(&attendanceRepoStub{}, scopeResolverStub{}, enrollmentLinkStub{}, nil, nil)

	req := markRequest()
	req.LessonID = nil
	_, err := svc.Mark(context.Background(), req)
	require.Error(t, err)

	recurringID := "tpl-1"
	req = markRequest()
	req.RecurringLessonID = &recurringID
	_, err = svc.Mark(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAttendanceMarkRetriesConflictOnce(t *testing.T) {
	repo := &attendanceRepoStub{upsertErrs: []error{&pq.Error{Code: "40001"}}}
	svc := NewAttendanceService(repo, scopeResolverStub{}, enrollmentLinkStub{}, nil, nil)

	record, err := svc.Mark(context.Background(), markRequest())
	require.NoError(t, err)
	assert.NotNil(t, record)
	assert.Len(t, repo.upserted, 1)
}

func TestAttendanceMarkSurfacesRepeatedConflict(t *testing.T) {
	repo := &attendanceRepoStub{upsertErrs: []error{&pq.Error{Code: "23505"}, &pq.Error{Code: "23505"}}}
	svc := NewAttendanceService(repo, scopeResolverStub{}, enrollmentLinkStub{}, nil, nil)

	_, err := svc.Mark(context.Background(), markRequest())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestAttendanceMarkDoesNotRetryOtherErrors(t *testing.T) {
	repo := &attendanceRepoStub{upsertErrs: []error{errors.New("connection reset")}}
	svc := NewAttendanceService(repo, scopeResolverStub{}, enrollmentLinkStub{}, nil, nil)

	_, err := svc.Mark(context.Background(), markRequest())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.upserted)
}

func TestAttendanceClearIsIdempotent(t *testing.T) {
	repo := &attendanceRepoStub{deleted: 0}
	svc := NewAttendanceService(repo, scopeResolverStub{}, enrollmentLinkStub{}, nil, nil)

	req := markRequest()
	req.Clear = true
	require.NoError(t, svc.Clear(context.Background(), req))
	require.NoError(t, svc.Clear(context.Background(), req))
	assert.Equal(t, 2, repo.deleteCalls)
}

func TestAttendanceListStudentForcedToSelf(t *testing.T) {
	repo := &attendanceRepoStub{}
	scope := models.NewVisibilityScope("stu-1", models.RoleStudent)
	svc := NewAttendanceService(repo, scopeResolverStub{scope: scope}, enrollmentLinkStub{}, nil, nil)

	_, _, err := svc.List(context.Background(), "stu-1", models.RoleStudent, AttendanceListRequest{})
	require.NoError(t, err)
	assert.Equal(t, "stu-1", repo.listFilter.StudentID)

	_, _, err = svc.List(context.Background(), "stu-1", models.RoleStudent, AttendanceListRequest{StudentID: "stu-2"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestAttendanceListTeacherScopeChecks(t *testing.T) {
	repo := &attendanceRepoStub{}
	scope := models.NewVisibilityScope("teacher-1", models.RoleTeacher)
	scope.ClassIDs["class-1"] = struct{}{}
	svc := NewAttendanceService(repo, scopeResolverStub{scope: scope}, enrollmentLinkStub{}, nil, nil)

	_, _, err := svc.List(context.Background(), "teacher-1", models.RoleTeacher, AttendanceListRequest{ClassID: "class-1"})
	require.NoError(t, err)

	_, _, err = svc.List(context.Background(), "teacher-1", models.RoleTeacher, AttendanceListRequest{ClassID: "class-9"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, _, err = svc.List(context.Background(), "teacher-1", models.RoleTeacher, AttendanceListRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAttendanceListTeacherStudentMustBeEnrolled(t *testing.T) {
	repo := &attendanceRepoStub{}
	scope := models.NewVisibilityScope("teacher-1", models.RoleTeacher)
	scope.ClassIDs["class-1"] = struct{}{}
	enrollments := enrollmentLinkStub{classesByStudent: map[string][]string{
		"stu-1": {"class-1"},
		"stu-9": {"class-9"},
	}}
	svc := NewAttendanceService(repo, scopeResolverStub{scope: scope}, enrollments, nil, nil)

	_, _, err := svc.List(context.Background(), "teacher-1", models.RoleTeacher, AttendanceListRequest{StudentID: "stu-1"})
	require.NoError(t, err)

	_, _, err = svc.List(context.Background(), "teacher-1", models.RoleTeacher, AttendanceListRequest{StudentID: "stu-9"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestAttendanceListParentMustNameChild(t *testing.T) {
	repo := &attendanceRepoStub{}
	scope := models.NewVisibilityScope("parent-1", models.RoleParent)
	svc := NewAttendanceService(repo, scopeResolverStub{scope: scope}, enrollmentLinkStub{children: map[string][]string{"parent-1": {"stu-1"}}}, nil, nil)

	_, _, err := svc.List(context.Background(), "parent-1", models.RoleParent, AttendanceListRequest{StudentID: "stu-1"})
	require.NoError(t, err)

	_, _, err = svc.List(context.Background(), "parent-1", models.RoleParent, AttendanceListRequest{StudentID: "stu-9"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, _, err = svc.List(context.Background(), "parent-1", models.RoleParent, AttendanceListRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAttendanceSummaryRequiresStudent(t *testing.T) {
	rate := 66.67
	repo := &attendanceRepoStub{summary: &models.AttendanceSummary{Present: 2, Absent: 1, Counted: 3, Rate: &rate}}
	scope := models.VisibilityScope{UserID: "admin-1", Role: models.RoleAdmin, GlobalAdmin: true}
	svc := NewAttendanceService(repo, scopeResolverStub{scope: scope}, enrollmentLinkStub{}, nil, nil)

	summary, err := svc.Summary(context.Background(), "admin-1", models.RoleAdmin, "stu-1", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Counted)

	_, err = svc.Summary(context.Background(), "admin-1", models.RoleAdmin, "", nil, nil)
	require.Error(t, err)
}
