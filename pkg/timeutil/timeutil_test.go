package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStartOfDay(t *testing.T) {
	got := StartOfDay(time.Date(2026, 8, 10, 17, 45, 30, 999, time.UTC))
	assert.Equal(t, time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC), got)
}

func TestStartOfDay_ConvertsToUTC(t *testing.T) {
	// 23:00 in UTC+5 is 18:00 UTC the same day.
	loc := time.FixedZone("UTC+5", 5*3600)
	got := StartOfDay(time.Date(2026, 8, 10, 23, 0, 0, 0, loc))
	assert.Equal(t, time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC), got)

	// 02:00 in UTC+5 is still the previous UTC day.
	got = StartOfDay(time.Date(2026, 8, 10, 2, 0, 0, 0, loc))
	assert.Equal(t, time.Date(2026, 8, 9, 0, 0, 0, 0, time.UTC), got)
}

func TestDaysBetween(t *testing.T) {
	a := time.Date(2026, 8, 10, 23, 59, 0, 0, time.UTC)
	b := time.Date(2026, 8, 11, 0, 1, 0, 0, time.UTC)

	// Two minutes apart, but across a day boundary.
	assert.Equal(t, 1, DaysBetween(a, b))
	assert.Equal(t, -1, DaysBetween(b, a))
	assert.Equal(t, 0, DaysBetween(a, a))

	assert.Equal(t, 31, DaysBetween(
		time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC),
	))
}

func TestDaysBetween_AcrossLeapDay(t *testing.T) {
	a := time.Date(2028, 2, 28, 12, 0, 0, 0, time.UTC)
	b := time.Date(2028, 3, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, 2, DaysBetween(a, b))
}

func TestSameDay(t *testing.T) {
	assert.True(t, SameDay(
		time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 8, 10, 23, 59, 59, 0, time.UTC),
	))
	assert.False(t, SameDay(
		time.Date(2026, 8, 10, 23, 59, 59, 0, time.UTC),
		time.Date(2026, 8, 11, 0, 0, 0, 0, time.UTC),
	))
}

func TestWeekKey(t *testing.T) {
	// 2026-08-10 is a Monday in ISO week 33.
	assert.Equal(t, "2026-W33", WeekKey(time.Date(2026, 8, 10, 12, 0, 0, 0, time.UTC)))
	// Jan 1 2027 is a Friday, so it belongs to ISO week 53 of 2026.
	assert.Equal(t, "2026-W53", WeekKey(time.Date(2027, 1, 1, 12, 0, 0, 0, time.UTC)))
}

func TestMonthKey(t *testing.T) {
	assert.Equal(t, "2026-08", MonthKey(time.Date(2026, 8, 10, 12, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2026-01", MonthKey(time.Date(2026, 1, 31, 23, 59, 0, 0, time.UTC)))
}

func TestDayKey(t *testing.T) {
	assert.Equal(t, "2026-08-10", DayKey(time.Date(2026, 8, 10, 12, 0, 0, 0, time.UTC)))
}

func TestNextMidnight(t *testing.T) {
	got := NextMidnight(time.Date(2026, 8, 10, 17, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2026, 8, 11, 0, 0, 0, 0, time.UTC), got)

	// Already at midnight: still the next day.
	got = NextMidnight(time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2026, 8, 11, 0, 0, 0, 0, time.UTC), got)
}

func TestEndOfDay(t *testing.T) {
	got := EndOfDay(time.Date(2026, 8, 10, 3, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2026, 8, 10, 23, 59, 59, 999999999, time.UTC), got)
}
