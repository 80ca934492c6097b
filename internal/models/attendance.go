package models

import (
	"fmt"
	"strings"
	"time"
)

// AttendanceStatus is the wire-level status for attendance records.
// Values are case-sensitive lowercase.
type AttendanceStatus string

const (
	AttendanceStatusPresent   AttendanceStatus = "present"
	AttendanceStatusAbsent    AttendanceStatus = "absent"
	AttendanceStatusTrial     AttendanceStatus = "trial"
	AttendanceStatusMakeup    AttendanceStatus = "makeup"
	AttendanceStatusCancelled AttendanceStatus = "cancelled"
)

// Valid returns true when the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendanceStatusPresent, AttendanceStatusAbsent, AttendanceStatusTrial, AttendanceStatusMakeup, AttendanceStatusCancelled:
		return true
	default:
		return false
	}
}

// CountsAsPresent reports whether the status counts toward presence.
// Present is always derived from status, never stored independently.
func (s AttendanceStatus) CountsAsPresent() bool {
	switch s {
	case AttendanceStatusPresent, AttendanceStatusMakeup, AttendanceStatusTrial:
		return true
	default:
		return false
	}
}

// OccurrenceKey identifies the lesson side of an attendance record,
// disambiguating template-based occurrences from standalone lessons.
// Format: "lesson:<id>" or "recurring:<id>". The key is date-independent;
// the attendance identity carries the calendar date separately.
type OccurrenceKey string

// OccurrenceRef points at exactly one of a standalone lesson or a recurring
// lesson template. Both set, or neither, is invalid.
type OccurrenceRef struct {
	LessonID          *string `json:"lesson_id,omitempty"`
	RecurringLessonID *string `json:"recurring_lesson_id,omitempty"`
}

// Validate enforces the exactly-one rule.
func (r OccurrenceRef) Validate() error {
	hasLesson := r.LessonID != nil && *r.LessonID != ""
	hasRecurring := r.RecurringLessonID != nil && *r.RecurringLessonID != ""
	if hasLesson == hasRecurring {
		return fmt.Errorf("exactly one of lesson_id or recurring_lesson_id must be set")
	}
	return nil
}

// Key builds the stable occurrence key for the reference.
func (r OccurrenceRef) Key() OccurrenceKey {
	if r.LessonID != nil && *r.LessonID != "" {
		return OccurrenceKey("lesson:" + *r.LessonID)
	}
	if r.RecurringLessonID != nil && *r.RecurringLessonID != "" {
		return OccurrenceKey("recurring:" + *r.RecurringLessonID)
	}
	return ""
}

// StandaloneOccurrenceKey builds the key for a one-off lesson.
func StandaloneOccurrenceKey(lessonID string) OccurrenceKey {
	return OccurrenceKey("lesson:" + lessonID)
}

// RecurringOccurrenceKey builds the key for a template occurrence.
func RecurringOccurrenceKey(templateID string) OccurrenceKey {
	return OccurrenceKey("recurring:" + templateID)
}

// IsRecurring reports whether the key refers to a template occurrence.
func (k OccurrenceKey) IsRecurring() bool {
	return strings.HasPrefix(string(k), "recurring:")
}

// AttendanceRecord is the authoritative state for one student's attendance at
// one lesson occurrence on one calendar date. Identity is
// (student_id, date, occurrence_key); the date is stored at midnight.
type AttendanceRecord struct {
	ID                string           `db:"id" json:"id"`
	StudentID         string           `db:"student_id" json:"student_id"`
	Date              time.Time        `db:"date" json:"date"`
	OccurrenceKey     OccurrenceKey    `db:"occurrence_key" json:"occurrence_key"`
	LessonID          *string          `db:"lesson_id" json:"lesson_id,omitempty"`
	RecurringLessonID *string          `db:"recurring_lesson_id" json:"recurring_lesson_id,omitempty"`
	Status            AttendanceStatus `db:"status" json:"status"`
	Present           bool             `db:"present" json:"present"`
	CreatedAt         time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time        `db:"updated_at" json:"updated_at"`
}

// AttendanceRecordDetail enriches a record with student metadata.
type AttendanceRecordDetail struct {
	AttendanceRecord
	StudentName string  `db:"student_name" json:"student_name"`
	ClassID     *string `db:"class_id" json:"class_id,omitempty"`
}

// AttendanceFilter scopes attendance listings. Zero values mean
// "no constraint"; every recognised filter key is an explicit field.
type AttendanceFilter struct {
	StudentID string
	ClassID   string
	Status    *AttendanceStatus
	DateFrom  *time.Time
	DateTo    *time.Time
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// AttendanceSummary aggregates a student's records over a period.
// Cancelled lessons are excluded from the rate entirely.
type AttendanceSummary struct {
	Present   int      `json:"present"`
	Absent    int      `json:"absent"`
	Trial     int      `json:"trial"`
	Makeup    int      `json:"makeup"`
	Cancelled int      `json:"cancelled"`
	Counted   int      `json:"counted"`
	Rate      *float64 `json:"rate,omitempty"`
}

// RateDisplay renders the rate as a percentage, or "-" when no countable
// records exist.
func (s AttendanceSummary) RateDisplay() string {
	if s.Rate == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f%%", *s.Rate)
}

// NormalizeAttendanceDate truncates a timestamp to midnight UTC; attendance
// identity is calendar-day granular, lesson time-of-day is irrelevant to it.
func NormalizeAttendanceDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
