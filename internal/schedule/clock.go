package schedule

import (
	"fmt"
	"time"

	"hvacbook/internal/models"
)

// ParseDate parses a strict YYYY-MM-DD date.
func ParseDate(raw string) (time.Time, error) {
	if len(raw) != len(models.DateLayout) {
		return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", raw)
	}
	date, err := time.Parse(models.DateLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", raw, err)
	}
	return date, nil
}

// ParseClock parses a strict 24h HH:MM value.
func ParseClock(raw string) (hour, minute int, err error) {
	if len(raw) != len(models.ClockLayout) {
		return 0, 0, fmt.Errorf("invalid time %q: expected HH:MM", raw)
	}
	t, err := time.Parse(models.ClockLayout, raw)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid time %q: %w", raw, err)
	}
	return t.Hour(), t.Minute(), nil
}

// StartTime combines a date and a slot value in loc.
func StartTime(date, clock string, loc *time.Location) (time.Time, error) {
	d, err := ParseDate(date)
	if err != nil {
		return time.Time{}, err
	}
	hour, minute, err := ParseClock(clock)
	if err != nil {
		return time.Time{}, err
	}
	if loc == nil {
		loc = time.Local
	}
	return time.Date(d.Year(), d.Month(), d.Day(), hour, minute, 0, 0, loc), nil
}

// Label renders a slot value the way customers read it, e.g. "2:00 PM".
func Label(value string) string {
	t, err := time.Parse(models.ClockLayout, value)
	if err != nil {
		return value
	}
	return t.Format("3:04 PM")
}
