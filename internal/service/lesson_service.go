package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/edupoint-id/portal-api/internal/models"
	appErrors "github.com/edupoint-id/portal-api/pkg/errors"
)

type lessonRepository interface {
	List(ctx context.Context, filter models.LessonFilter) ([]models.RecurringLessonTemplate, int, error)
	FindTemplateByID(ctx context.Context, id string) (*models.RecurringLessonTemplate, error)
	Reschedule(ctx context.Context, id, startTime, endTime, weekdays string) error
	FindTeacherOverlaps(ctx context.Context, teacherID string, weekdays []string, startTime, endTime, excludeID string) ([]models.RecurringLessonTemplate, error)
}

// LessonService serves lesson template reads and reschedules.
type LessonService struct {
	repo      lessonRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewLessonService constructs the service.
func NewLessonService(repo lessonRepository, validate *validator.Validate, logger *zap.Logger) *LessonService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &LessonService{repo: repo, validator: validate, logger: logger}
	svc.validator.RegisterValidation("weekday_set", func(fl validator.FieldLevel) bool {
		rule, err := models.ParseRecurrenceRule(fl.Field().String())
		return err == nil && !rule.IsEmpty()
	})
	return svc
}

// List returns templates with pagination.
func (s *LessonService) List(ctx context.Context, filter models.LessonFilter) ([]models.RecurringLessonTemplate, *models.Pagination, error) {
	templates, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list lessons")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 50
	}
	return templates, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// RescheduleLessonRequest updates a template's time-of-day and weekday set.
type RescheduleLessonRequest struct {
	StartTime string `json:"start_time" validate:"required,datetime=15:04"`
	EndTime   string `json:"end_time" validate:"required,datetime=15:04"`
	Weekdays  string `json:"weekdays" validate:"required,weekday_set"`
}

// Reschedule changes a template after checking the teacher is not
// double-booked on the new weekday/time window.
func (s *LessonService) Reschedule(ctx context.Context, id string, req RescheduleLessonRequest) (*models.RecurringLessonTemplate, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reschedule payload")
	}
	if req.EndTime <= req.StartTime {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end_time must be after start_time")
	}
	rule, err := models.ParseRecurrenceRule(req.Weekdays)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid weekday set")
	}

	template, err := s.repo.FindTemplateByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "lesson template not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lesson template")
	}

	weekdays := make([]string, 0, len(rule.Days))
	for code := range rule.Days {
		weekdays = append(weekdays, string(code))
	}
	overlaps, err := s.repo.FindTeacherOverlaps(ctx, template.TeacherID, weekdays, req.StartTime, req.EndTime, template.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check teacher availability")
	}
	if len(overlaps) > 0 {
		return nil, appErrors.Clone(appErrors.ErrConflict, "teacher already has a lesson in that slot")
	}

	canonical := rule.String()
	if err := s.repo.Reschedule(ctx, template.ID, req.StartTime, req.EndTime, canonical); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reschedule lesson")
	}
	template.StartTime = req.StartTime
	template.EndTime = req.EndTime
	template.Weekdays = canonical
	return template, nil
}
