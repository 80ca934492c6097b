package models

import (
	"time"

	"github.com/lib/pq"
)

// CalendarItemKind discriminates entries in a merged calendar feed.
type CalendarItemKind string

const (
	CalendarItemEvent        CalendarItemKind = "EVENT"
	CalendarItemAnnouncement CalendarItemKind = "ANNOUNCEMENT"
)

// CalendarTarget captures who an item is aimed at. All fields empty means the
// item is global and visible to everyone.
type CalendarTarget struct {
	ClassID *string  `json:"class_id,omitempty"`
	GradeID *string  `json:"grade_id,omitempty"`
	UserIDs []string `json:"user_ids,omitempty"`
}

// IsGlobal returns true when no targeting is set.
func (t CalendarTarget) IsGlobal() bool {
	return (t.ClassID == nil || *t.ClassID == "") &&
		(t.GradeID == nil || *t.GradeID == "") &&
		len(t.UserIDs) == 0
}

// Event is a one-off calendar event with optional class/grade/user targeting.
type Event struct {
	ID            string         `db:"id" json:"id"`
	Title         string         `db:"title" json:"title"`
	Description   string         `db:"description" json:"description"`
	StartAt       time.Time      `db:"start_at" json:"start_at"`
	EndAt         time.Time      `db:"end_at" json:"end_at"`
	TargetClassID *string        `db:"target_class_id" json:"target_class_id,omitempty"`
	TargetGradeID *string        `db:"target_grade_id" json:"target_grade_id,omitempty"`
	TargetUserIDs pq.StringArray `db:"target_user_ids" json:"target_user_ids,omitempty"`
	CreatedBy     string         `db:"created_by" json:"created_by"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at" json:"updated_at"`
}

// Target returns the event's visibility targeting.
func (e Event) Target() CalendarTarget {
	return CalendarTarget{ClassID: e.TargetClassID, GradeID: e.TargetGradeID, UserIDs: e.TargetUserIDs}
}

// Announcement is a published notice with the same targeting shape as events.
type Announcement struct {
	ID            string         `db:"id" json:"id"`
	Title         string         `db:"title" json:"title"`
	Content       string         `db:"content" json:"content"`
	PublishedAt   time.Time      `db:"published_at" json:"published_at"`
	ExpiresAt     *time.Time     `db:"expires_at" json:"expires_at,omitempty"`
	TargetClassID *string        `db:"target_class_id" json:"target_class_id,omitempty"`
	TargetGradeID *string        `db:"target_grade_id" json:"target_grade_id,omitempty"`
	TargetUserIDs pq.StringArray `db:"target_user_ids" json:"target_user_ids,omitempty"`
	CreatedBy     string         `db:"created_by" json:"created_by"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at" json:"updated_at"`
}

// Target returns the announcement's visibility targeting.
func (a Announcement) Target() CalendarTarget {
	return CalendarTarget{ClassID: a.TargetClassID, GradeID: a.TargetGradeID, UserIDs: a.TargetUserIDs}
}

// CalendarItem is one entry of a merged, visibility-filtered calendar feed.
type CalendarItem struct {
	Kind         CalendarItemKind `json:"kind"`
	ID           string           `json:"id"`
	Title        string           `json:"title"`
	Body         string           `json:"body,omitempty"`
	StartAt      time.Time        `json:"start_at"`
	EndAt        *time.Time       `json:"end_at,omitempty"`
	Target       CalendarTarget   `json:"target"`
}

// CalendarFilter narrows calendar feed queries.
type CalendarFilter struct {
	From time.Time
	To   time.Time
}
