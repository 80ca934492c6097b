package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/edupoint-id/portal-api/internal/models"
)

// CalendarRepository reads events and announcements. Visibility is not
// applied here: every read path goes through the visibility service so the
// OR-chain lives in exactly one place.
type CalendarRepository struct {
	db *sqlx.DB
}

// NewCalendarRepository constructs the repository.
func NewCalendarRepository(db *sqlx.DB) *CalendarRepository {
	return &CalendarRepository{db: db}
}

// EventsInRange returns events overlapping [from, to].
func (r *CalendarRepository) EventsInRange(ctx context.Context, filter models.CalendarFilter) ([]models.Event, error) {
	const query = `SELECT id, title, description, start_at, end_at, target_class_id, target_grade_id, target_user_ids, created_by, created_at, updated_at
FROM events
WHERE end_at >= $1 AND start_at <= $2
ORDER BY start_at ASC, id ASC`
	var events []models.Event
	if err := r.db.SelectContext(ctx, &events, query, filter.From, filter.To); err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}

// AnnouncementsInRange returns announcements published before the window end
// and not expired before the window start.
func (r *CalendarRepository) AnnouncementsInRange(ctx context.Context, filter models.CalendarFilter) ([]models.Announcement, error) {
	const query = `SELECT id, title, content, published_at, expires_at, target_class_id, target_grade_id, target_user_ids, created_by, created_at, updated_at
FROM announcements
WHERE published_at <= $2 AND (expires_at IS NULL OR expires_at >= $1)
ORDER BY published_at DESC, id ASC`
	var announcements []models.Announcement
	if err := r.db.SelectContext(ctx, &announcements, query, filter.From, filter.To); err != nil {
		return nil, fmt.Errorf("list announcements: %w", err)
	}
	return announcements, nil
}
