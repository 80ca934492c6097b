package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/edupoint-id/portal-api/internal/models"
	appErrors "github.com/edupoint-id/portal-api/pkg/errors"
)

type lessonReader interface {
	TemplatesInScope(ctx context.Context, classIDs []string) ([]models.RecurringLessonTemplate, error)
	StandaloneInRange(ctx context.Context, classIDs []string, from, to time.Time) ([]models.StandaloneLesson, error)
}

type attendanceRangeReader interface {
	ListForStudentRange(ctx context.Context, studentID string, from, to time.Time) ([]models.AttendanceRecord, error)
}

type guardianReader interface {
	StudentIDsForParent(ctx context.Context, parentID string) ([]string, error)
}

// ScheduleServiceConfig tunes schedule query behaviour.
type ScheduleServiceConfig struct {
	CacheTTL     time.Duration
	MaxRangeDays int
}

// ScheduleService answers "what does this user see on these dates" by
// composing scope resolution, occurrence expansion and attendance state.
type ScheduleService struct {
	lessons    lessonReader
	attendance attendanceRangeReader
	visibility scopeResolver
	guardians  guardianReader
	resolver   *OccurrenceResolver
	cache      *redis.Client
	config     ScheduleServiceConfig
	metrics    *MetricsService
	logger     *zap.Logger
}

// SetMetrics attaches Prometheus instrumentation. Safe to skip; all metric
// calls tolerate a nil service.
func (s *ScheduleService) SetMetrics(m *MetricsService) {
	s.metrics = m
}

// NewScheduleService constructs the service. cache may be nil, in which case
// every query hits the database.
func NewScheduleService(lessons lessonReader, attendance attendanceRangeReader, visibility scopeResolver, guardians guardianReader, resolver *OccurrenceResolver, cache *redis.Client, cfg ScheduleServiceConfig, logger *zap.Logger) *ScheduleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxRangeDays <= 0 {
		cfg.MaxRangeDays = 31
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Minute
	}
	return &ScheduleService{
		lessons:    lessons,
		attendance: attendance,
		visibility: visibility,
		guardians:  guardians,
		resolver:   resolver,
		cache:      cache,
		config:     cfg,
		logger:     logger,
	}
}

// ScheduleRequest scopes a schedule query. StudentID selects whose attendance
// state is joined in; students always get their own, parents must name one of
// their children, staff may name anyone or leave it empty.
type ScheduleRequest struct {
	From      time.Time
	To        time.Time
	StudentID string
}

// GetSchedule resolves the caller's scope, expands occurrences in range and
// left-joins attendance state. An occurrence without a row comes back with
// nil attendance, meaning "not yet marked".
func (s *ScheduleService) GetSchedule(ctx context.Context, userID string, role models.UserRole, req ScheduleRequest) (*models.ScheduleView, error) {
	from := models.NormalizeAttendanceDate(req.From)
	to := models.NormalizeAttendanceDate(req.To)
	if to.Before(from) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date range end precedes start")
	}
	if int(to.Sub(from).Hours()/24)+1 > s.config.MaxRangeDays {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("date range exceeds %d days", s.config.MaxRangeDays))
	}

	scope, err := s.visibility.ResolveScope(ctx, userID, role)
	if err != nil {
		return nil, err
	}

	attendanceStudent, err := s.resolveAttendanceStudent(ctx, userID, role, req.StudentID)
	if err != nil {
		return nil, err
	}

	cacheKey := s.cacheKey(userID, role, attendanceStudent, from, to)
	if view, ok := s.fromCache(ctx, cacheKey); ok {
		s.metrics.RecordCacheOperation(true)
		return view, nil
	}
	if s.cache != nil {
		s.metrics.RecordCacheOperation(false)
	}

	var classIDs []string
	if !scope.GlobalAdmin {
		classIDs = scope.ClassIDList()
		if len(classIDs) == 0 {
			// Nothing in scope: an empty schedule, not an error.
			return &models.ScheduleView{Entries: []models.ScheduleEntry{}}, nil
		}
	}

	// Occurrence resolution and attendance lookup are independent reads; both
	// must complete before the merge starts.
	var (
		wg            sync.WaitGroup
		templates     []models.RecurringLessonTemplate
		standalone    []models.StandaloneLesson
		records       []models.AttendanceRecord
		lessonErr     error
		attendanceErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		templates, lessonErr = s.lessons.TemplatesInScope(ctx, classIDs)
		if lessonErr != nil {
			return
		}
		standalone, lessonErr = s.lessons.StandaloneInRange(ctx, classIDs, from, to)
	}()
	go func() {
		defer wg.Done()
		if attendanceStudent == "" {
			return
		}
		records, attendanceErr = s.attendance.ListForStudentRange(ctx, attendanceStudent, from, to)
	}()
	wg.Wait()
	if lessonErr != nil {
		return nil, appErrors.Wrap(lessonErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lessons")
	}
	if attendanceErr != nil {
		return nil, appErrors.Wrap(attendanceErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance")
	}

	occurrences, warnings := s.resolver.Resolve(templates, standalone, from, to)
	s.metrics.RecordResolutionWarnings(len(warnings))

	byKey := make(map[string]*models.AttendanceRecord, len(records))
	for i := range records {
		rec := &records[i]
		byKey[attendanceJoinKey(rec.OccurrenceKey, rec.Date)] = rec
	}

	entries := make([]models.ScheduleEntry, 0, len(occurrences))
	for _, occ := range occurrences {
		entry := models.ScheduleEntry{Occurrence: occ}
		if rec, ok := byKey[attendanceJoinKey(occ.Key, occ.Date)]; ok {
			entry.Attendance = rec
		}
		entries = append(entries, entry)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i].Occurrence, entries[j].Occurrence
		if !a.StartAt.Equal(b.StartAt) {
			return a.StartAt.Before(b.StartAt)
		}
		if a.ClassName != b.ClassName {
			return a.ClassName < b.ClassName
		}
		return a.TeacherName < b.TeacherName
	})

	view := &models.ScheduleView{Entries: entries, Warnings: warnings}
	s.toCache(ctx, cacheKey, view)
	return view, nil
}

// InvalidateStudent drops cached schedule views that joined the student's
// attendance. Called after every attendance mutation.
func (s *ScheduleService) InvalidateStudent(ctx context.Context, studentID string) {
	if s.cache == nil || studentID == "" {
		return
	}
	pattern := fmt.Sprintf("schedule:*:%s:*", studentID)
	iter := s.cache.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		if err := s.cache.Del(ctx, iter.Val()).Err(); err != nil {
			s.logger.Warn("failed to invalidate schedule cache", zap.String("key", iter.Val()), zap.Error(err))
		}
	}
	if err := iter.Err(); err != nil {
		s.logger.Warn("schedule cache scan failed", zap.Error(err))
	}
}

func (s *ScheduleService) resolveAttendanceStudent(ctx context.Context, userID string, role models.UserRole, requested string) (string, error) {
	switch role {
	case models.RoleStudent:
		if requested != "" && requested != userID {
			return "", appErrors.Clone(appErrors.ErrForbidden, "students may only view their own attendance")
		}
		return userID, nil
	case models.RoleParent:
		if requested == "" {
			return "", nil
		}
		children, err := s.guardians.StudentIDsForParent(ctx, userID)
		if err != nil {
			return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve guardianship")
		}
		for _, id := range children {
			if id == requested {
				return requested, nil
			}
		}
		return "", appErrors.Clone(appErrors.ErrForbidden, "student is not a registered child")
	default:
		return requested, nil
	}
}

func (s *ScheduleService) cacheKey(userID string, role models.UserRole, studentID string, from, to time.Time) string {
	return fmt.Sprintf("schedule:%s:%s:%s:%s:%s", userID, role, studentID, from.Format("2006-01-02"), to.Format("2006-01-02"))
}

func (s *ScheduleService) fromCache(ctx context.Context, key string) (*models.ScheduleView, bool) {
	if s.cache == nil {
		return nil, false
	}
	raw, err := s.cache.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			s.logger.Warn("schedule cache read failed", zap.Error(err))
		}
		return nil, false
	}
	var view models.ScheduleView
	if err := json.Unmarshal(raw, &view); err != nil {
		s.logger.Warn("schedule cache payload corrupt", zap.Error(err))
		return nil, false
	}
	view.FromCache = true
	return &view, true
}

func (s *ScheduleService) toCache(ctx context.Context, key string, view *models.ScheduleView) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(view)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, raw, s.config.CacheTTL).Err(); err != nil {
		s.logger.Warn("schedule cache write failed", zap.Error(err))
	}
}

func attendanceJoinKey(key models.OccurrenceKey, date time.Time) string {
	return string(key) + "@" + date.Format("2006-01-02")
}
