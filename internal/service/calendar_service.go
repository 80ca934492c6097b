package service

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/edupoint-id/portal-api/internal/models"
	appErrors "github.com/edupoint-id/portal-api/pkg/errors"
)

type calendarRepository interface {
	EventsInRange(ctx context.Context, filter models.CalendarFilter) ([]models.Event, error)
	AnnouncementsInRange(ctx context.Context, filter models.CalendarFilter) ([]models.Announcement, error)
}

type itemVisibility interface {
	ResolveScope(ctx context.Context, userID string, role models.UserRole) (models.VisibilityScope, error)
	IsVisible(target models.CalendarTarget, scope models.VisibilityScope) bool
}

// CalendarService assembles the visibility-filtered feed of events and
// announcements for one user.
type CalendarService struct {
	repo       calendarRepository
	visibility itemVisibility
	logger     *zap.Logger
}

// NewCalendarService constructs the service.
func NewCalendarService(repo calendarRepository, visibility itemVisibility, logger *zap.Logger) *CalendarService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CalendarService{repo: repo, visibility: visibility, logger: logger}
}

// VisibleItems returns the events and announcements the user may see in
// [from, to], merged and ordered by start time. One broken item never fails
// the whole feed.
func (s *CalendarService) VisibleItems(ctx context.Context, userID string, role models.UserRole, from, to time.Time) ([]models.CalendarItem, error) {
	if to.Before(from) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date range end precedes start")
	}
	scope, err := s.visibility.ResolveScope(ctx, userID, role)
	if err != nil {
		return nil, err
	}
	filter := models.CalendarFilter{From: from, To: to}

	items := make([]models.CalendarItem, 0)

	events, err := s.repo.EventsInRange(ctx, filter)
	if err != nil {
		// Partial-failure isolation: log and keep going so announcements can
		// still be served.
		s.logger.Error("failed to load events", zap.Error(err))
	} else {
		for _, event := range events {
			if !s.visibility.IsVisible(event.Target(), scope) {
				continue
			}
			endAt := event.EndAt
			items = append(items, models.CalendarItem{
				Kind:    models.CalendarItemEvent,
				ID:      event.ID,
				Title:   event.Title,
				Body:    event.Description,
				StartAt: event.StartAt,
				EndAt:   &endAt,
				Target:  event.Target(),
			})
		}
	}

	announcements, err := s.repo.AnnouncementsInRange(ctx, filter)
	if err != nil {
		s.logger.Error("failed to load announcements", zap.Error(err))
	} else {
		for _, a := range announcements {
			if !s.visibility.IsVisible(a.Target(), scope) {
				continue
			}
			items = append(items, models.CalendarItem{
				Kind:    models.CalendarItemAnnouncement,
				ID:      a.ID,
				Title:   a.Title,
				Body:    a.Content,
				StartAt: a.PublishedAt,
				EndAt:   a.ExpiresAt,
				Target:  a.Target(),
			})
		}
	}

	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].StartAt.Equal(items[j].StartAt) {
			return items[i].StartAt.Before(items[j].StartAt)
		}
		return items[i].ID < items[j].ID
	})
	return items, nil
}
