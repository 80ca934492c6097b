package models

import (
	"fmt"
	"strings"
	"time"
)

// WeekdayCode is a two-letter weekday abbreviation used in recurrence rules.
type WeekdayCode string

const (
	WeekdayMonday    WeekdayCode = "MO"
	WeekdayTuesday   WeekdayCode = "TU"
	WeekdayWednesday WeekdayCode = "WE"
	WeekdayThursday  WeekdayCode = "TH"
	WeekdayFriday    WeekdayCode = "FR"
	WeekdaySaturday  WeekdayCode = "SA"
	WeekdaySunday    WeekdayCode = "SU"
)

var weekdayCodes = map[time.Weekday]WeekdayCode{
	time.Monday:    WeekdayMonday,
	time.Tuesday:   WeekdayTuesday,
	time.Wednesday: WeekdayWednesday,
	time.Thursday:  WeekdayThursday,
	time.Friday:    WeekdayFriday,
	time.Saturday:  WeekdaySaturday,
	time.Sunday:    WeekdaySunday,
}

// Valid returns true when the code is a recognised weekday abbreviation.
func (c WeekdayCode) Valid() bool {
	switch c {
	case WeekdayMonday, WeekdayTuesday, WeekdayWednesday, WeekdayThursday, WeekdayFriday, WeekdaySaturday, WeekdaySunday:
		return true
	default:
		return false
	}
}

// WeekdayCodeFor maps a calendar weekday to its two-letter code.
func WeekdayCodeFor(d time.Weekday) WeekdayCode {
	return weekdayCodes[d]
}

// RecurrenceRule is a weekly day-of-week pattern. Cadence is implicitly
// "every week"; biweekly or monthly patterns are not supported.
type RecurrenceRule struct {
	Days map[WeekdayCode]struct{}
}

// ParseRecurrenceRule parses a comma-separated weekday list such as "MO,WE,FR".
// An empty string yields an empty (never-occurring) rule without error; an
// unrecognised token is an error so callers can report the bad data.
func ParseRecurrenceRule(raw string) (RecurrenceRule, error) {
	rule := RecurrenceRule{Days: make(map[WeekdayCode]struct{})}
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return rule, nil
	}
	for _, part := range strings.Split(trimmed, ",") {
		code := WeekdayCode(strings.ToUpper(strings.TrimSpace(part)))
		if !code.Valid() {
			return RecurrenceRule{}, fmt.Errorf("unrecognised weekday code %q in rule %q", part, raw)
		}
		rule.Days[code] = struct{}{}
	}
	return rule, nil
}

// OccursOn reports whether the rule fires on the given calendar date.
// An empty day-set never occurs.
func (r RecurrenceRule) OccursOn(date time.Time) bool {
	if len(r.Days) == 0 {
		return false
	}
	_, ok := r.Days[WeekdayCodeFor(date.Weekday())]
	return ok
}

// IsEmpty returns true when the rule has no days and can never fire.
func (r RecurrenceRule) IsEmpty() bool {
	return len(r.Days) == 0
}

// String renders the rule in canonical MO..SU order.
func (r RecurrenceRule) String() string {
	ordered := []WeekdayCode{WeekdayMonday, WeekdayTuesday, WeekdayWednesday, WeekdayThursday, WeekdayFriday, WeekdaySaturday, WeekdaySunday}
	parts := make([]string, 0, len(r.Days))
	for _, code := range ordered {
		if _, ok := r.Days[code]; ok {
			parts = append(parts, string(code))
		}
	}
	return strings.Join(parts, ",")
}
