// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package calendar computes poll windows and the date keys and labels
// shown for them. All functions are pure; callers pass the location.
package calendar

import (
	"errors"
	"fmt"
	"regexp"
	"time"
)

const (
	dayLayout = "2006-01-02"
	keyLayout = "2006-01-02 (Mon)"
)

var (
	ErrMalformedDate = errors.New("malformed date")
	ErrWeekdayLabel  = errors.New("weekday label does not match date")
)

var dateKeyPattern = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2}) \(([A-Z][a-z]{2})\)$`)

// WindowStart returns the Sunday 00:00 at or before now, advanced by
// weeksAhead whole weeks. The result is in now's location.
func WindowStart(now time.Time, weeksAhead int) time.Time {
	sinceSunday := int(now.Weekday())
	sunday := time.Date(now.Year(), now.Month(), now.Day()-sinceSunday, 0, 0, 0, 0, now.Location())
	return sunday.AddDate(0, 0, 7*weeksAhead)
}

// WeekDates returns the seven consecutive dates starting at start.
func WeekDates(start time.Time) [7]time.Time {
	var week [7]time.Time
	for i := range week {
		week[i] = start.AddDate(0, 0, i)
	}
	return week
}

// WeekLabel names the week containing date, e.g. "12 month, week 1".
// Weeks are counted in 7-day buckets from the first Sunday on or after the
// 1st of the month, so dates before that Sunday land in week 0.
func WeekLabel(date time.Time) string {
	day := midnight(date)
	first := time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, day.Location())
	firstSunday := first.AddDate(0, 0, (7-int(first.Weekday()))%7)

	days := daysBetween(firstSunday, day)
	week := floorDiv(days, 7) + 1
	return fmt.Sprintf("%d month, week %d", int(day.Month()), week)
}

// DateKey renders the subject key for a date, e.g. "2025-12-07 (Sun)".
func DateKey(date time.Time) string {
	return date.Format(keyLayout)
}

// ParseDay parses an ISO calendar date in loc.
func ParseDay(value string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(dayLayout, value, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrMalformedDate, value)
	}
	return t, nil
}

// ParseDateKey parses a key produced by DateKey. The weekday label must
// agree with the date.
func ParseDateKey(key string, loc *time.Location) (time.Time, error) {
	m := dateKeyPattern.FindStringSubmatch(key)
	if m == nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrMalformedDate, key)
	}
	t, err := ParseDay(m[1], loc)
	if err != nil {
		return time.Time{}, err
	}
	if t.Format("Mon") != m[2] {
		return time.Time{}, fmt.Errorf("%w: %q", ErrWeekdayLabel, key)
	}
	return t, nil
}

// NextWeekly returns the first instant strictly after now that falls on
// weekday at hour:minute in now's location.
func NextWeekly(now time.Time, weekday time.Weekday, hour, minute int) time.Time {
	ahead := (int(weekday) - int(now.Weekday()) + 7) % 7
	next := time.Date(now.Year(), now.Month(), now.Day()+ahead, hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 7)
	}
	return next
}

// AtClock returns day's calendar date at hour:minute.
func AtClock(day time.Time, hour, minute int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, day.Location())
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// daysBetween counts calendar days, ignoring DST shifts in the location.
func daysBetween(from, to time.Time) int {
	a := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	b := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
