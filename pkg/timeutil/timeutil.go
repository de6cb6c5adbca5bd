// Package timeutil provides calendar arithmetic for streaks and activity
// buckets. Streak rules are defined over calendar days in UTC, so every
// date comparison in the engine goes through this package instead of raw
// time.Sub math. No external dependencies - uses only standard library.
package timeutil

import (
	"fmt"
	"time"
)

// StartOfDay truncates a time to midnight UTC of the same calendar day.
func StartOfDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// EndOfDay returns 23:59:59.999999999 UTC of the same calendar day.
func EndOfDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 23, 59, 59, 999999999, time.UTC)
}

// DaysBetween returns the number of calendar-day boundaries between a and b.
// Positive when b is after a, negative when b is before a, zero for the same
// calendar day. Uses AddDate rather than hour arithmetic so DST and leap
// seconds cannot skew the count.
func DaysBetween(a, b time.Time) int {
	da := StartOfDay(a)
	db := StartOfDay(b)

	if da.Equal(db) {
		return 0
	}

	sign := 1
	if db.Before(da) {
		da, db = db, da
		sign = -1
	}

	days := int(db.Sub(da).Hours() / 24)
	// Correct for any fractional drift (UTC has none, but stay exact).
	for da.AddDate(0, 0, days).Before(db) {
		days++
	}
	for da.AddDate(0, 0, days).After(db) {
		days--
	}
	return sign * days
}

// SameDay checks whether two times fall on the same UTC calendar day.
func SameDay(a, b time.Time) bool {
	return StartOfDay(a).Equal(StartOfDay(b))
}

// DayKey formats a time as a "2006-01-02" UTC date key.
func DayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// WeekKey formats a time as an ISO week key, e.g. "2026-W35".
// Used for the ledger's weekly activity buckets.
func WeekKey(t time.Time) string {
	year, week := t.UTC().ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

// MonthKey formats a time as a "2006-01" UTC month key.
// Used for the ledger's monthly activity buckets.
func MonthKey(t time.Time) string {
	return t.UTC().Format("2006-01")
}

// NextMidnight returns the first instant of the next UTC calendar day.
// The day-boundary rollover job wakes at this instant.
func NextMidnight(t time.Time) time.Time {
	return StartOfDay(t).AddDate(0, 0, 1)
}
