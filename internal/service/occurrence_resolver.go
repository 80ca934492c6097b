package service

import (
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/edupoint-id/portal-api/internal/models"
)

// OccurrenceResolver expands recurring lesson templates over a date range and
// merges the result with standalone lessons. It is a pure function of its
// inputs: "today" is always an explicit argument, never read from the clock.
type OccurrenceResolver struct {
	logger *zap.Logger
}

// NewOccurrenceResolver constructs the resolver.
func NewOccurrenceResolver(logger *zap.Logger) *OccurrenceResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OccurrenceResolver{logger: logger}
}

// Resolve produces the concrete lesson occurrences for [from, to], ordered by
// start time with class ID then teacher ID as tie-break. A template with a
// malformed rule is skipped and reported as a warning; it never aborts the
// whole resolution.
func (r *OccurrenceResolver) Resolve(templates []models.RecurringLessonTemplate, standalone []models.StandaloneLesson, from, to time.Time) ([]models.LessonOccurrence, []models.ResolutionWarning) {
	from = models.NormalizeAttendanceDate(from)
	to = models.NormalizeAttendanceDate(to)

	occurrences := make([]models.LessonOccurrence, 0, len(templates)+len(standalone))
	warnings := make([]models.ResolutionWarning, 0)
	seen := make(map[string]struct{})

	for _, tpl := range templates {
		rule, err := models.ParseRecurrenceRule(tpl.Weekdays)
		if err != nil {
			r.logger.Warn("skipping template with malformed recurrence rule",
				zap.String("template_id", tpl.ID), zap.Error(err))
			warnings = append(warnings, models.ResolutionWarning{TemplateID: tpl.ID, Reason: err.Error()})
			continue
		}
		// An empty day-set never occurs; nothing to expand and nothing to warn
		// about beyond the rule text itself.
		if rule.IsEmpty() {
			continue
		}
		startOfDay, endOfDay, err := parseTimeOfDayRange(tpl.StartTime, tpl.EndTime)
		if err != nil {
			r.logger.Warn("skipping template with malformed time of day",
				zap.String("template_id", tpl.ID), zap.Error(err))
			warnings = append(warnings, models.ResolutionWarning{TemplateID: tpl.ID, Reason: err.Error()})
			continue
		}
		for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
			if !rule.OccursOn(day) {
				continue
			}
			dedupeKey := tpl.ID + "@" + day.Format("2006-01-02")
			if _, dup := seen[dedupeKey]; dup {
				continue
			}
			seen[dedupeKey] = struct{}{}
			occurrences = append(occurrences, models.LessonOccurrence{
				Key:         models.RecurringOccurrenceKey(tpl.ID),
				Date:        day,
				StartAt:     day.Add(startOfDay),
				EndAt:       day.Add(endOfDay),
				ClassID:     tpl.ClassID,
				SubjectID:   tpl.SubjectID,
				TeacherID:   tpl.TeacherID,
				ClassName:   deref(tpl.ClassName),
				SubjectName: deref(tpl.SubjectName),
				TeacherName: deref(tpl.TeacherName),
			})
		}
	}

	for _, lesson := range standalone {
		day := models.NormalizeAttendanceDate(lesson.Date)
		if day.Before(from) || day.After(to) {
			continue
		}
		startOfDay, endOfDay, err := parseTimeOfDayRange(lesson.StartTime, lesson.EndTime)
		if err != nil {
			r.logger.Warn("skipping standalone lesson with malformed time of day",
				zap.String("lesson_id", lesson.ID), zap.Error(err))
			warnings = append(warnings, models.ResolutionWarning{TemplateID: lesson.ID, Reason: err.Error()})
			continue
		}
		occurrences = append(occurrences, models.LessonOccurrence{
			Key:         models.StandaloneOccurrenceKey(lesson.ID),
			Date:        day,
			StartAt:     day.Add(startOfDay),
			EndAt:       day.Add(endOfDay),
			ClassID:     lesson.ClassID,
			SubjectID:   lesson.SubjectID,
			TeacherID:   lesson.TeacherID,
			ClassName:   deref(lesson.ClassName),
			SubjectName: deref(lesson.SubjectName),
			TeacherName: deref(lesson.TeacherName),
		})
	}

	sort.SliceStable(occurrences, func(i, j int) bool {
		if !occurrences[i].StartAt.Equal(occurrences[j].StartAt) {
			return occurrences[i].StartAt.Before(occurrences[j].StartAt)
		}
		if occurrences[i].ClassID != occurrences[j].ClassID {
			return occurrences[i].ClassID < occurrences[j].ClassID
		}
		return occurrences[i].TeacherID < occurrences[j].TeacherID
	})

	return occurrences, warnings
}

// parseTimeOfDayRange parses "HH:MM" start/end times into day offsets.
func parseTimeOfDayRange(start, end string) (time.Duration, time.Duration, error) {
	startOffset, err := parseTimeOfDay(start)
	if err != nil {
		return 0, 0, fmt.Errorf("start time %q: %w", start, err)
	}
	endOffset, err := parseTimeOfDay(end)
	if err != nil {
		return 0, 0, fmt.Errorf("end time %q: %w", end, err)
	}
	if endOffset <= startOffset {
		return 0, 0, fmt.Errorf("end time %q is not after start time %q", end, start)
	}
	return startOffset, endOffset, nil
}

func parseTimeOfDay(value string) (time.Duration, error) {
	parsed, err := time.Parse("15:04", value)
	if err != nil {
		return 0, err
	}
	return time.Duration(parsed.Hour())*time.Hour + time.Duration(parsed.Minute())*time.Minute, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
