package models

import "time"

// RecurringLessonTemplate defines a weekly repeating lesson for a class.
// Weekdays holds the raw rule text (e.g. "MO,WE"); it is parsed at resolution
// time so one bad row cannot poison a whole schedule query.
type RecurringLessonTemplate struct {
	ID          string    `db:"id" json:"id"`
	ClassID     string    `db:"class_id" json:"class_id"`
	SubjectID   string    `db:"subject_id" json:"subject_id"`
	TeacherID   string    `db:"teacher_id" json:"teacher_id"`
	StartTime   string    `db:"start_time" json:"start_time"`
	EndTime     string    `db:"end_time" json:"end_time"`
	Weekdays    string    `db:"weekdays" json:"weekdays"`
	ClassName   *string   `db:"class_name" json:"class_name,omitempty"`
	SubjectName *string   `db:"subject_name" json:"subject_name,omitempty"`
	TeacherName *string   `db:"teacher_name" json:"teacher_name,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// StandaloneLesson is a one-off lesson with its own concrete date, independent
// of any recurring template.
type StandaloneLesson struct {
	ID          string    `db:"id" json:"id"`
	ClassID     string    `db:"class_id" json:"class_id"`
	SubjectID   string    `db:"subject_id" json:"subject_id"`
	TeacherID   string    `db:"teacher_id" json:"teacher_id"`
	Date        time.Time `db:"date" json:"date"`
	StartTime   string    `db:"start_time" json:"start_time"`
	EndTime     string    `db:"end_time" json:"end_time"`
	ClassName   *string   `db:"class_name" json:"class_name,omitempty"`
	SubjectName *string   `db:"subject_name" json:"subject_name,omitempty"`
	TeacherName *string   `db:"teacher_name" json:"teacher_name,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// LessonOccurrence is a concrete date-stamped lesson instance, synthesised
// from a template or lifted from a standalone lesson. It is never persisted.
type LessonOccurrence struct {
	Key         OccurrenceKey `json:"occurrence_key"`
	Date        time.Time     `json:"date"`
	StartAt     time.Time     `json:"start_at"`
	EndAt       time.Time     `json:"end_at"`
	ClassID     string        `json:"class_id"`
	SubjectID   string        `json:"subject_id"`
	TeacherID   string        `json:"teacher_id"`
	ClassName   string        `json:"class_name,omitempty"`
	SubjectName string        `json:"subject_name,omitempty"`
	TeacherName string        `json:"teacher_name,omitempty"`
}

// LessonFilter narrows template / standalone lesson listings.
type LessonFilter struct {
	ClassID   string
	TeacherID string
	SubjectID string
	Page      int
	PageSize  int
}

// ResolutionWarning records a template skipped during occurrence resolution
// because of bad rule data. It is reported alongside results, never thrown.
type ResolutionWarning struct {
	TemplateID string `json:"template_id"`
	Reason     string `json:"reason"`
}
