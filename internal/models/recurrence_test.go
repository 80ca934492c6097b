package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRecurrenceRule(t *testing.T) {
	rule, err := ParseRecurrenceRule("MO,WE,FR")
	require.NoError(t, err)
	assert.Len(t, rule.Days, 3)
	assert.Equal(t, "MO,WE,FR", rule.String())

	rule, err = ParseRecurrenceRule(" fr , mo ")
	require.NoError(t, err)
	assert.Equal(t, "MO,FR", rule.String())

	rule, err = ParseRecurrenceRule("")
	require.NoError(t, err)
	assert.True(t, rule.IsEmpty())

	_, err = ParseRecurrenceRule("MO,XX")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "XX")
}

func TestRecurrenceRuleOccursOn(t *testing.T) {
	rule, err := ParseRecurrenceRule("MO,WE")
	require.NoError(t, err)

	monday := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	assert.True(t, rule.OccursOn(monday))
	assert.False(t, rule.OccursOn(monday.AddDate(0, 0, 1)))
	assert.True(t, rule.OccursOn(monday.AddDate(0, 0, 2)))
	assert.False(t, rule.OccursOn(monday.AddDate(0, 0, 6)))
}

func TestEmptyRuleNeverOccurs(t *testing.T) {
	rule, err := ParseRecurrenceRule("")
	require.NoError(t, err)

	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 7; i++ {
		assert.False(t, rule.OccursOn(day.AddDate(0, 0, i)))
	}
}

func TestWeekdayCodeFor(t *testing.T) {
	assert.Equal(t, WeekdayMonday, WeekdayCodeFor(time.Monday))
	assert.Equal(t, WeekdaySunday, WeekdayCodeFor(time.Sunday))
}
