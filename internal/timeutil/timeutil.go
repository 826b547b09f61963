// Package timeutil holds the minute-of-day and calendar-date helpers shared by
// the scheduling code. Nothing here touches storage or the clock except Today.
package timeutil

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

const (
	MinutesPerDay = 24 * 60
	DateLayout    = "2006-01-02"
)

var ErrInvalidFormat = errors.New("invalid format")

// ParseTime parses a strict 24-hour "HH:MM" string into minutes since midnight.
func ParseTime(s string) (int, error) {
	if len(s) != 5 || s[2] != ':' {
		return 0, fmt.Errorf("%w: time %q must be HH:MM", ErrInvalidFormat, s)
	}
	hour, err := strconv.Atoi(s[:2])
	if err != nil || !isDigits(s[:2]) {
		return 0, fmt.Errorf("%w: invalid hour in %q", ErrInvalidFormat, s)
	}
	minute, err := strconv.Atoi(s[3:])
	if err != nil || !isDigits(s[3:]) {
		return 0, fmt.Errorf("%w: invalid minute in %q", ErrInvalidFormat, s)
	}
	if hour > 23 || minute > 59 {
		return 0, fmt.Errorf("%w: time %q out of range", ErrInvalidFormat, s)
	}
	return hour*60 + minute, nil
}

// ParseEndTime is ParseTime that also accepts "24:00" as the end of the day.
func ParseEndTime(s string) (int, error) {
	if s == "24:00" {
		return MinutesPerDay, nil
	}
	return ParseTime(s)
}

// FormatTime renders minutes since midnight as "HH:MM". 1440 renders as "24:00".
func FormatTime(m int) string {
	if m < 0 {
		m = 0
	}
	if m > MinutesPerDay {
		m = MinutesPerDay
	}
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

// FormatRange renders a half-open interval as "HH:MM-HH:MM".
func FormatRange(start, end int) string {
	return FormatTime(start) + "-" + FormatTime(end)
}

// Overlaps reports whether [aStart,aEnd) and [bStart,bEnd) intersect.
// Touching endpoints do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd int) bool {
	return aStart < bEnd && bStart < aEnd
}

// Contains reports whether [outerStart,outerEnd) fully covers [start,end).
func Contains(outerStart, outerEnd, start, end int) bool {
	return outerStart <= start && end <= outerEnd
}

// ValidRange checks 0 <= start < end <= 1440.
func ValidRange(start, end int) error {
	if start < 0 || end > MinutesPerDay {
		return fmt.Errorf("%w: range %s outside of the day", ErrInvalidFormat, FormatRange(start, end))
	}
	if start >= end {
		return fmt.Errorf("%w: start %s must be before end %s", ErrInvalidFormat, FormatTime(start), FormatTime(end))
	}
	return nil
}

// ParseDate parses "YYYY-MM-DD" into a UTC midnight.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q must be YYYY-MM-DD", ErrInvalidFormat, s)
	}
	return d, nil
}

func FormatDate(d time.Time) string {
	return d.Format(DateLayout)
}

// DateOf truncates t to its calendar date in t's own location, returned as UTC midnight.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// AddDays moves a date by n calendar days, rolling over months and years.
func AddDays(date time.Time, n int) time.Time {
	return DateOf(date).AddDate(0, 0, n)
}

// Today returns the current calendar date as observed in loc.
func Today(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return DateOf(time.Now().In(loc))
}

// At combines a calendar date and a minute offset into a wall-clock instant in loc.
func At(date time.Time, minute int, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := date.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc).Add(time.Duration(minute) * time.Minute)
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
