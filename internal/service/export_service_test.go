package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edupoint-id/portal-api/internal/models"
	appErrors "github.com/edupoint-id/portal-api/pkg/errors"
)

type rosterReaderStub struct {
	entries []models.RosterEntry
}

func (s *rosterReaderStub) Roster(_ context.Context, _ string) ([]models.RosterEntry, error) {
	return s.entries, nil
}

type attendanceListReaderStub struct {
	records []models.AttendanceRecordDetail
	summary *models.AttendanceSummary
}

func (s *attendanceListReaderStub) List(_ context.Context, _ models.AttendanceFilter) ([]models.AttendanceRecordDetail, int, error) {
	return s.records, len(s.records), nil
}

func (s *attendanceListReaderStub) Summary(_ context.Context, _ string, _, _ *time.Time) (*models.AttendanceSummary, error) {
	return s.summary, nil
}

func adminScope() scopeResolverStub {
	return scopeResolverStub{scope: models.VisibilityScope{UserID: "admin-1", Role: models.RoleAdmin, GlobalAdmin: true}}
}

func teacherScope(classIDs ...string) scopeResolverStub {
	scope := models.NewVisibilityScope("teacher-1", models.RoleTeacher)
	for _, id := range classIDs {
		scope.ClassIDs[id] = struct{}{}
	}
	return scopeResolverStub{scope: scope}
}

func TestClassAttendanceSheetCSV(t *testing.T) {
	roster := &rosterReaderStub{entries: []models.RosterEntry{
		{StudentID: "stu-1", StudentName: "Ana"},
		{StudentID: "stu-2", StudentName: "Budi"},
		{StudentID: "stu-3", StudentName: "Citra"},
	}}
	marked := models.AttendanceRecordDetail{StudentName: "Ana"}
	marked.StudentID = "stu-1"
	marked.Status = models.AttendanceStatusPresent
	attendance := &attendanceListReaderStub{records: []models.AttendanceRecordDetail{marked}}
	svc := NewExportService(roster, attendance, adminScope(), enrollmentLinkStub{}, nil, nil, nil)

	result, err := svc.ClassAttendanceSheet(context.Background(), "admin-1", models.RoleAdmin, "class-1", time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), ExportFormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "text/csv", result.ContentType)
	assert.True(t, strings.HasSuffix(result.Filename, ".csv"))

	body := string(result.Content)
	assert.Contains(t, body, "Ana,present,true")
	// Unmarked students still get a row, with empty status cells.
	assert.Contains(t, body, "Budi,,")
	assert.Contains(t, body, "3 students,1 marked")
}

func TestClassAttendanceSheetRequiresClassID(t *testing.T) {
	svc := NewExportService(&rosterReaderStub{}, &attendanceListReaderStub{}, adminScope(), enrollmentLinkStub{}, nil, nil, nil)
	_, err := svc.ClassAttendanceSheet(context.Background(), "admin-1", models.RoleAdmin, "", time.Now(), ExportFormatCSV)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestClassAttendanceSheetTeacherScope(t *testing.T) {
	roster := &rosterReaderStub{entries: []models.RosterEntry{{StudentID: "stu-9", StudentName: "Dewi"}}}
	svc := NewExportService(roster, &attendanceListReaderStub{}, teacherScope("class-1"), enrollmentLinkStub{}, nil, nil, nil)

	_, err := svc.ClassAttendanceSheet(context.Background(), "teacher-1", models.RoleTeacher, "class-9", time.Now(), ExportFormatCSV)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	result, err := svc.ClassAttendanceSheet(context.Background(), "teacher-1", models.RoleTeacher, "class-1", time.Now(), ExportFormatCSV)
	require.NoError(t, err)
	assert.Contains(t, string(result.Content), "Dewi")
}

func TestStudentSummarySheetTeacherScope(t *testing.T) {
	attendance := &attendanceListReaderStub{summary: &models.AttendanceSummary{}}
	enrollments := enrollmentLinkStub{classesByStudent: map[string][]string{
		"stu-1": {"class-1"},
		"stu-9": {"class-9"},
	}}
	svc := NewExportService(&rosterReaderStub{}, attendance, teacherScope("class-1"), enrollments, nil, nil, nil)

	_, err := svc.StudentSummarySheet(context.Background(), "teacher-1", models.RoleTeacher, "stu-9", nil, nil, ExportFormatCSV)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = svc.StudentSummarySheet(context.Background(), "teacher-1", models.RoleTeacher, "stu-1", nil, nil, ExportFormatCSV)
	require.NoError(t, err)
}

func TestStudentSummarySheetRendersRate(t *testing.T) {
	rate := 66.67
	attendance := &attendanceListReaderStub{summary: &models.AttendanceSummary{
		Present: 2,
		Absent:  1,
		Counted: 3,
		Rate:    &rate,
	}}
	svc := NewExportService(&rosterReaderStub{}, attendance, adminScope(), enrollmentLinkStub{}, nil, nil, nil)

	result, err := svc.StudentSummarySheet(context.Background(), "admin-1", models.RoleAdmin, "stu-1", nil, nil, ExportFormatCSV)
	require.NoError(t, err)
	assert.Contains(t, string(result.Content), "66.67%")
}

func TestRenderRejectsUnknownFormat(t *testing.T) {
	svc := NewExportService(&rosterReaderStub{}, &attendanceListReaderStub{summary: &models.AttendanceSummary{}}, adminScope(), enrollmentLinkStub{}, nil, nil, nil)
	_, err := svc.StudentSummarySheet(context.Background(), "admin-1", models.RoleAdmin, "stu-1", nil, nil, ExportFormat("xlsx"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestStudentSummarySheetPDF(t *testing.T) {
	attendance := &attendanceListReaderStub{summary: &models.AttendanceSummary{}}
	svc := NewExportService(&rosterReaderStub{}, attendance, adminScope(), enrollmentLinkStub{}, nil, nil, nil)

	result, err := svc.StudentSummarySheet(context.Background(), "admin-1", models.RoleAdmin, "stu-1", nil, nil, ExportFormatPDF)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", result.ContentType)
	assert.True(t, strings.HasPrefix(string(result.Content), "%PDF"))
}
