package dateutil

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DayKey is the canonical YYYY-MM-DD form used for map keys and SQL params.
const DayKey = "2006-01-02"

// Truncate drops the time-of-day component, keeping the date in UTC.
func Truncate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Key formats a date as YYYY-MM-DD.
func Key(t time.Time) string {
	return Truncate(t).Format(DayKey)
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DayKey, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return t, nil
}

// Range returns every date from start to end inclusive, truncated to days.
func Range(start, end time.Time) []time.Time {
	start, end = Truncate(start), Truncate(end)
	if end.Before(start) {
		return nil
	}
	var out []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		out = append(out, d)
	}
	return out
}

// WeekdayName returns the uppercase weekday token stored in class_slots
// (SUNDAY..SATURDAY).
func WeekdayName(t time.Time) string {
	return strings.ToUpper(t.Weekday().String())
}

// MinuteOfDay is a wall-clock time expressed as minutes since midnight.
type MinuteOfDay int

// MinuteOf converts a time.Time's clock reading.
func MinuteOf(t time.Time) MinuteOfDay {
	return MinuteOfDay(t.Hour()*60 + t.Minute())
}

// ParseMinute parses "HH:MM" or "HH:MM:SS".
func ParseMinute(s string) (MinuteOfDay, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid time %q: expected HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	return MinuteOfDay(h*60 + m), nil
}

// String renders HH:MM.
func (m MinuteOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(m)/60, int(m)%60)
}
