package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/edupoint-id/portal-api/internal/models"
	appErrors "github.com/edupoint-id/portal-api/pkg/errors"
	"github.com/edupoint-id/portal-api/pkg/export"
)

type rosterReader interface {
	Roster(ctx context.Context, classID string) ([]models.RosterEntry, error)
}

type classMembershipReader interface {
	ClassIDsForStudent(ctx context.Context, studentID string) ([]string, error)
}

type attendanceListReader interface {
	List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecordDetail, int, error)
	Summary(ctx context.Context, studentID string, from, to *time.Time) (*models.AttendanceSummary, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportFormat selects the rendered output type.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

// ExportResult carries rendered bytes and their content type.
type ExportResult struct {
	Content     []byte
	ContentType string
	Filename    string
}

// ExportService renders attendance sheets for download. Reads go through the
// same visibility scope as the JSON attendance endpoints.
type ExportService struct {
	roster      rosterReader
	attendance  attendanceListReader
	visibility  scopeResolver
	memberships classMembershipReader
	csv         csvRenderer
	pdf         pdfRenderer
	logger      *zap.Logger
}

// NewExportService constructs the service.
func NewExportService(roster rosterReader, attendance attendanceListReader, visibility scopeResolver, memberships classMembershipReader, csv csvRenderer, pdf pdfRenderer, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{roster: roster, attendance: attendance, visibility: visibility, memberships: memberships, csv: csv, pdf: pdf, logger: logger}
}

// ClassAttendanceSheet renders one class's attendance for one day. Students
// with no record yet appear with an empty status cell.
func (s *ExportService) ClassAttendanceSheet(ctx context.Context, userID string, role models.UserRole, classID string, date time.Time, format ExportFormat) (*ExportResult, error) {
	if classID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "class_id is required")
	}
	if err := s.authorizeClass(ctx, userID, role, classID); err != nil {
		return nil, err
	}
	day := models.NormalizeAttendanceDate(date)

	roster, err := s.roster.Roster(ctx, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class roster")
	}
	records, _, err := s.attendance.List(ctx, models.AttendanceFilter{
		ClassID:  classID,
		DateFrom: &day,
		DateTo:   &day,
		PageSize: 200,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance")
	}

	statusByStudent := make(map[string]models.AttendanceStatus, len(records))
	for _, rec := range records {
		statusByStudent[rec.StudentID] = rec.Status
	}

	data := export.Dataset{Headers: []string{"Student", "Status", "Present"}}
	marked := 0
	for _, entry := range roster {
		row := map[string]string{"Student": entry.StudentName, "Status": "", "Present": ""}
		if status, ok := statusByStudent[entry.StudentID]; ok {
			row["Status"] = string(status)
			row["Present"] = fmt.Sprintf("%t", status.CountsAsPresent())
			marked++
		}
		data.Rows = append(data.Rows, row)
	}
	data.Footer = map[string]string{
		"Student": fmt.Sprintf("%d students", len(roster)),
		"Status":  fmt.Sprintf("%d marked", marked),
	}

	title := fmt.Sprintf("Attendance %s %s", classID, day.Format("2006-01-02"))
	return s.render(data, title, format)
}

// StudentSummarySheet renders one student's aggregate attendance.
func (s *ExportService) StudentSummarySheet(ctx context.Context, userID string, role models.UserRole, studentID string, from, to *time.Time, format ExportFormat) (*ExportResult, error) {
	if studentID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student_id is required")
	}
	if err := s.authorizeStudent(ctx, userID, role, studentID); err != nil {
		return nil, err
	}
	summary, err := s.attendance.Summary(ctx, studentID, from, to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to summarise attendance")
	}
	data := export.Dataset{
		Headers: []string{"Present", "Absent", "Trial", "Makeup", "Cancelled", "Rate"},
		Rows: []map[string]string{{
			"Present":   fmt.Sprintf("%d", summary.Present),
			"Absent":    fmt.Sprintf("%d", summary.Absent),
			"Trial":     fmt.Sprintf("%d", summary.Trial),
			"Makeup":    fmt.Sprintf("%d", summary.Makeup),
			"Cancelled": fmt.Sprintf("%d", summary.Cancelled),
			"Rate":      summary.RateDisplay(),
		}},
	}
	return s.render(data, fmt.Sprintf("Attendance summary %s", studentID), format)
}

func (s *ExportService) authorizeClass(ctx context.Context, userID string, role models.UserRole, classID string) error {
	scope, err := s.visibility.ResolveScope(ctx, userID, role)
	if err != nil {
		return err
	}
	if scope.GlobalAdmin {
		return nil
	}
	if !scope.HasClass(classID) {
		return appErrors.Clone(appErrors.ErrForbidden, "class outside caller scope")
	}
	return nil
}

func (s *ExportService) authorizeStudent(ctx context.Context, userID string, role models.UserRole, studentID string) error {
	scope, err := s.visibility.ResolveScope(ctx, userID, role)
	if err != nil {
		return err
	}
	if scope.GlobalAdmin {
		return nil
	}
	classIDs, err := s.memberships.ClassIDsForStudent(ctx, studentID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve student enrollment")
	}
	for _, id := range classIDs {
		if scope.HasClass(id) {
			return nil
		}
	}
	return appErrors.Clone(appErrors.ErrForbidden, "student outside caller scope")
}

func (s *ExportService) render(data export.Dataset, title string, format ExportFormat) (*ExportResult, error) {
	name := strings.ToLower(strings.ReplaceAll(title, " ", "_"))
	switch format {
	case ExportFormatCSV, "":
		content, err := s.csv.Render(data)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return &ExportResult{Content: content, ContentType: "text/csv", Filename: name + ".csv"}, nil
	case ExportFormatPDF:
		content, err := s.pdf.Render(data, title)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return &ExportResult{Content: content, ContentType: "application/pdf", Filename: name + ".pdf"}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
}
