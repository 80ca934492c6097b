package service

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/edupoint-id/portal-api/internal/models"
	appErrors "github.com/edupoint-id/portal-api/pkg/errors"
)

type attendanceRepository interface {
	Upsert(ctx context.Context, record *models.AttendanceRecord) (*models.AttendanceRecord, error)
	DeleteMatching(ctx context.Context, studentID string, date time.Time, key models.OccurrenceKey) (int64, error)
	List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecordDetail, int, error)
	Summary(ctx context.Context, studentID string, from, to *time.Time) (*models.AttendanceSummary, error)
}

type scopeResolver interface {
	ResolveScope(ctx context.Context, userID string, role models.UserRole) (models.VisibilityScope, error)
}

type enrollmentLinkReader interface {
	StudentIDsForParent(ctx context.Context, parentID string) ([]string, error)
	ClassIDsForStudent(ctx context.Context, studentID string) ([]string, error)
}

// AttendanceService coordinates attendance marking, clearing and reads.
type AttendanceService struct {
	repo        attendanceRepository
	visibility  scopeResolver
	enrollments enrollmentLinkReader
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewAttendanceService constructs the attendance service.
func NewAttendanceService(repo attendanceRepository, visibility scopeResolver, enrollments enrollmentLinkReader, validate *validator.Validate, logger *zap.Logger) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &AttendanceService{repo: repo, visibility: visibility, enrollments: enrollments, validator: validate, logger: logger}
	svc.validator.RegisterValidation("attendance_status", func(fl validator.FieldLevel) bool {
		return models.AttendanceStatus(fl.Field().String()).Valid()
	})
	return svc
}

// MarkAttendanceRequest is the attendance mutation payload. Exactly one of
// LessonID / RecurringLessonID must be set. With Clear set, Status is ignored
// and the matching record is deleted.
type MarkAttendanceRequest struct {
	StudentID         string  `json:"student_id" validate:"required"`
	Date              string  `json:"date" validate:"required"`
	LessonID          *string `json:"lesson_id"`
	RecurringLessonID *string `json:"recurring_lesson_id"`
	Status            string  `json:"status"`
	Clear             bool    `json:"clear"`
}

// Mark creates or updates the single attendance record for the request's
// (student, date, occurrence) identity. Re-marking updates in place, never
// duplicates.
func (s *AttendanceService) Mark(ctx context.Context, req MarkAttendanceRequest) (*models.AttendanceRecord, error) {
	date, ref, err := s.validateMutation(req)
	if err != nil {
		return nil, err
	}
	status := models.AttendanceStatus(req.Status)
	if !status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unrecognised attendance status")
	}

	record := &models.AttendanceRecord{
		StudentID:         req.StudentID,
		Date:              date,
		OccurrenceKey:     ref.Key(),
		LessonID:          ref.LessonID,
		RecurringLessonID: ref.RecurringLessonID,
		Status:            status,
		Present:           status.CountsAsPresent(),
	}

	stored, err := s.repo.Upsert(ctx, record)
	if err != nil {
		// The unique index makes duplicate rows impossible, but two
		// simultaneous upserts for the same key can still lose the race
		// inside the database. Retry the single mutation once before
		// surfacing a conflict.
		if !isRetryableConflict(err) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark attendance")
		}
		s.logger.Warn("attendance upsert conflicted, retrying once",
			zap.String("student_id", req.StudentID), zap.String("occurrence_key", string(ref.Key())))
		stored, err = s.repo.Upsert(ctx, record)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "concurrent attendance update")
		}
	}
	return stored, nil
}

// Clear deletes the matching record. Deleting a non-existent record is a
// no-op success, not an error, so clear can be retried freely.
func (s *AttendanceService) Clear(ctx context.Context, req MarkAttendanceRequest) error {
	date, ref, err := s.validateMutation(req)
	if err != nil {
		return err
	}
	if _, err := s.repo.DeleteMatching(ctx, req.StudentID, date, ref.Key()); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clear attendance")
	}
	return nil
}

// AttendanceListRequest scopes attendance reads.
type AttendanceListRequest struct {
	StudentID string     `json:"student_id"`
	ClassID   string     `json:"class_id"`
	Status    *string    `json:"status" validate:"omitempty,attendance_status"`
	DateFrom  *time.Time `json:"date_from"`
	DateTo    *time.Time `json:"date_to"`
	Page      int        `json:"page"`
	PageSize  int        `json:"page_size"`
	SortBy    string     `json:"sort_by"`
	SortOrder string     `json:"sort_order"`
}

// List returns attendance records the caller is allowed to see.
func (s *AttendanceService) List(ctx context.Context, userID string, role models.UserRole, req AttendanceListRequest) ([]models.AttendanceRecordDetail, *models.Pagination, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance filter")
	}
	filter := models.AttendanceFilter{
		StudentID: req.StudentID,
		ClassID:   req.ClassID,
		DateFrom:  req.DateFrom,
		DateTo:    req.DateTo,
		Page:      req.Page,
		PageSize:  req.PageSize,
		SortBy:    req.SortBy,
		SortOrder: req.SortOrder,
	}
	if req.Status != nil {
		status := models.AttendanceStatus(*req.Status)
		filter.Status = &status
	}
	if err := s.restrictFilter(ctx, userID, role, &filter); err != nil {
		return nil, nil, err
	}
	rows, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendance")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 50
	}
	return rows, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Summary returns the aggregate attendance rate for one student. The caller
// must be allowed to see that student.
func (s *AttendanceService) Summary(ctx context.Context, userID string, role models.UserRole, studentID string, from, to *time.Time) (*models.AttendanceSummary, error) {
	if studentID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student_id is required")
	}
	filter := models.AttendanceFilter{StudentID: studentID}
	if err := s.restrictFilter(ctx, userID, role, &filter); err != nil {
		return nil, err
	}
	summary, err := s.repo.Summary(ctx, studentID, from, to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to summarise attendance")
	}
	return summary, nil
}

func (s *AttendanceService) validateMutation(req MarkAttendanceRequest) (time.Time, models.OccurrenceRef, error) {
	ref := models.OccurrenceRef{LessonID: req.LessonID, RecurringLessonID: req.RecurringLessonID}
	if req.StudentID == "" {
		return time.Time{}, ref, appErrors.Clone(appErrors.ErrValidation, "student_id is required")
	}
	if err := ref.Validate(); err != nil {
		return time.Time{}, ref, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	parsed, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return time.Time{}, ref, appErrors.Clone(appErrors.ErrValidation, "date must be an ISO calendar date (YYYY-MM-DD)")
	}
	return models.NormalizeAttendanceDate(parsed), ref, nil
}

// restrictFilter narrows a read filter to what the caller's scope allows.
func (s *AttendanceService) restrictFilter(ctx context.Context, userID string, role models.UserRole, filter *models.AttendanceFilter) error {
	scope, err := s.visibility.ResolveScope(ctx, userID, role)
	if err != nil {
		return err
	}
	if scope.GlobalAdmin {
		return nil
	}
	switch role {
	case models.RoleTeacher:
		if filter.ClassID != "" && !scope.HasClass(filter.ClassID) {
			return appErrors.Clone(appErrors.ErrForbidden, "class outside teacher scope")
		}
		if filter.ClassID == "" && filter.StudentID == "" {
			return appErrors.Clone(appErrors.ErrValidation, "class_id or student_id is required")
		}
		if filter.StudentID != "" {
			classIDs, err := s.enrollments.ClassIDsForStudent(ctx, filter.StudentID)
			if err != nil {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve student enrollment")
			}
			enrolled := false
			for _, id := range classIDs {
				if scope.HasClass(id) {
					enrolled = true
					break
				}
			}
			if !enrolled {
				return appErrors.Clone(appErrors.ErrForbidden, "student outside teacher scope")
			}
		}
	case models.RoleStudent:
		if filter.StudentID != "" && filter.StudentID != userID {
			return appErrors.Clone(appErrors.ErrForbidden, "students may only read their own attendance")
		}
		filter.StudentID = userID
	case models.RoleParent:
		if filter.StudentID == "" {
			return appErrors.Clone(appErrors.ErrValidation, "student_id is required")
		}
		children, err := s.childIDs(ctx, userID)
		if err != nil {
			return err
		}
		if _, ok := children[filter.StudentID]; !ok {
			return appErrors.Clone(appErrors.ErrForbidden, "student is not a registered child")
		}
	default:
		return appErrors.Clone(appErrors.ErrForbidden, "forbidden")
	}
	return nil
}

func (s *AttendanceService) childIDs(ctx context.Context, parentID string) (map[string]struct{}, error) {
	ids, err := s.enrollments.StudentIDsForParent(ctx, parentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve guardianship")
	}
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}

// isRetryableConflict reports whether the error is a transient write conflict
// (unique violation or serialization failure) worth one retry.
func isRetryableConflict(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505" || pqErr.Code == "40001"
	}
	return false
}
