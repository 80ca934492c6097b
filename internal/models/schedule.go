package models

// ScheduleEntry pairs a lesson occurrence with its attendance state for one
// student. A nil Attendance means "not yet marked", which is distinct from
// every explicit status.
type ScheduleEntry struct {
	Occurrence LessonOccurrence  `json:"occurrence"`
	Attendance *AttendanceRecord `json:"attendance,omitempty"`
}

// ScheduleView is the answer to "what does this user see on these dates".
// FromCache marks views served out of the cache; it is never persisted.
type ScheduleView struct {
	Entries   []ScheduleEntry     `json:"entries"`
	Warnings  []ResolutionWarning `json:"warnings,omitempty"`
	FromCache bool                `json:"-"`
}
