// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package calendar

import (
	"errors"
	"testing"
	"time"
)

func mustLoad(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	if err != nil {
		t.Skipf("timezone %s unavailable: %v", name, err)
	}
	return loc
}

func TestWindowStart(t *testing.T) {
	tokyo := mustLoad(t, "Asia/Tokyo")

	tests := []struct {
		name       string
		now        time.Time
		weeksAhead int
		expected   string
	}{
		{"wednesday three weeks ahead", time.Date(2025, 11, 19, 15, 4, 0, 0, tokyo), 3, "2025-12-07"},
		{"sunday itself", time.Date(2025, 11, 16, 10, 0, 0, 0, tokyo), 0, "2025-11-16"},
		{"saturday night", time.Date(2025, 11, 22, 23, 59, 0, 0, tokyo), 0, "2025-11-16"},
		{"across month boundary", time.Date(2025, 12, 2, 8, 0, 0, 0, tokyo), 1, "2025-12-07"},
		{"across year boundary", time.Date(2025, 12, 31, 8, 0, 0, 0, tokyo), 1, "2026-01-04"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := WindowStart(tt.now, tt.weeksAhead)
			if got.Format(dayLayout) != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, got.Format(dayLayout))
			}
			if got.Weekday() != time.Sunday {
				t.Errorf("Expected Sunday, got %s", got.Weekday())
			}
			if got.Hour() != 0 || got.Minute() != 0 {
				t.Errorf("Expected midnight, got %s", got.Format(time.Kitchen))
			}
			if got.Location() != tokyo {
				t.Errorf("Expected location to be preserved, got %s", got.Location())
			}
		})
	}
}

func TestWindowStartDeterministic(t *testing.T) {
	now := time.Date(2025, 11, 19, 12, 0, 0, 0, time.UTC)
	first := WindowStart(now, 3)
	for i := 0; i < 5; i++ {
		if got := WindowStart(now, 3); !got.Equal(first) {
			t.Fatalf("Expected %s on every call, got %s", first, got)
		}
	}
}

func TestWindowStartAcrossDST(t *testing.T) {
	ny := mustLoad(t, "America/New_York")

	// DST ended on 2025-11-02 in New York.
	got := WindowStart(time.Date(2025, 11, 5, 12, 0, 0, 0, ny), 0)
	if got.Format("2006-01-02 15:04") != "2025-11-02 00:00" {
		t.Errorf("Expected 2025-11-02 00:00, got %s", got.Format("2006-01-02 15:04"))
	}
}

func TestWeekDates(t *testing.T) {
	start := WindowStart(time.Date(2025, 11, 19, 9, 0, 0, 0, time.UTC), 3)
	week := WeekDates(start)

	expected := []string{
		"2025-12-07", "2025-12-08", "2025-12-09", "2025-12-10",
		"2025-12-11", "2025-12-12", "2025-12-13",
	}
	for i, day := range week {
		if day.Format(dayLayout) != expected[i] {
			t.Errorf("day %d: expected %s, got %s", i, expected[i], day.Format(dayLayout))
		}
	}
	if week[0].Weekday() != time.Sunday {
		t.Errorf("Expected week to start on Sunday, got %s", week[0].Weekday())
	}
}

func TestWeekLabel(t *testing.T) {
	tests := []struct {
		date     time.Time
		expected string
	}{
		{time.Date(2025, 12, 7, 0, 0, 0, 0, time.UTC), "12 month, week 1"},
		{time.Date(2025, 12, 13, 0, 0, 0, 0, time.UTC), "12 month, week 1"},
		{time.Date(2025, 12, 14, 0, 0, 0, 0, time.UTC), "12 month, week 2"},
		{time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC), "12 month, week 0"},
		{time.Date(2025, 11, 30, 0, 0, 0, 0, time.UTC), "11 month, week 5"},
		// June 2025 starts on a Sunday.
		{time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), "6 month, week 1"},
		{time.Date(2025, 6, 8, 18, 30, 0, 0, time.UTC), "6 month, week 2"},
	}

	for _, tt := range tests {
		t.Run(tt.date.Format(dayLayout), func(t *testing.T) {
			if got := WeekLabel(tt.date); got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestDateKeyRoundTrip(t *testing.T) {
	day := time.Date(2025, 12, 7, 0, 0, 0, 0, time.UTC)
	key := DateKey(day)
	if key != "2025-12-07 (Sun)" {
		t.Fatalf("Expected 2025-12-07 (Sun), got %q", key)
	}

	parsed, err := ParseDateKey(key, time.UTC)
	if err != nil {
		t.Fatalf("ParseDateKey: %v", err)
	}
	if !parsed.Equal(day) {
		t.Errorf("Expected %s, got %s", day, parsed)
	}
}

func TestParseDateKeyErrors(t *testing.T) {
	tests := []struct {
		key      string
		expected error
	}{
		{"2025-12-07 (Mon)", ErrWeekdayLabel},
		{"2025-12-07", ErrMalformedDate},
		{"2025-13-01 (Mon)", ErrMalformedDate},
		{"", ErrMalformedDate},
		{"next sunday", ErrMalformedDate},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			_, err := ParseDateKey(tt.key, time.UTC)
			if !errors.Is(err, tt.expected) {
				t.Errorf("Expected %v, got %v", tt.expected, err)
			}
		})
	}
}

func TestParseDay(t *testing.T) {
	if _, err := ParseDay("2025-12-07", time.UTC); err != nil {
		t.Errorf("Expected valid day, got %v", err)
	}
	if _, err := ParseDay("07/12/2025", time.UTC); !errors.Is(err, ErrMalformedDate) {
		t.Errorf("Expected ErrMalformedDate, got %v", err)
	}
}

func TestNextWeekly(t *testing.T) {
	tests := []struct {
		name     string
		now      time.Time
		expected string
	}{
		{"midweek", time.Date(2025, 11, 19, 10, 0, 0, 0, time.UTC), "2025-11-23 09:00"},
		{"same day before", time.Date(2025, 11, 23, 8, 0, 0, 0, time.UTC), "2025-11-23 09:00"},
		{"same instant", time.Date(2025, 11, 23, 9, 0, 0, 0, time.UTC), "2025-11-30 09:00"},
		{"same day after", time.Date(2025, 11, 23, 12, 0, 0, 0, time.UTC), "2025-11-30 09:00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NextWeekly(tt.now, time.Sunday, 9, 0)
			if got.Format("2006-01-02 15:04") != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, got.Format("2006-01-02 15:04"))
			}
		})
	}
}
