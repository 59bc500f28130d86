package calendar

import (
	"time"

	"attendance/internal/dateutil"
)

// EventType classifies calendar override events.
type EventType string

const (
	TypeClass          EventType = "CLASS"
	TypeHoliday        EventType = "HOLIDAY"
	TypeExam           EventType = "EXAM"
	TypeSpecial        EventType = "SPECIAL"
	TypeCancelledClass EventType = "CANCELLED_CLASS"
)

// Valid returns true when the type is a supported value.
func (t EventType) Valid() bool {
	switch t {
	case TypeClass, TypeHoliday, TypeExam, TypeSpecial, TypeCancelledClass:
		return true
	default:
		return false
	}
}

// Event is a dated override layered over the recurring timetable. A HOLIDAY
// with IsAllDay suppresses every slot on its dates; a CANCELLED_CLASS scoped
// to a subject suppresses only that subject's slots.
type Event struct {
	ID                 int64      `json:"id"`
	Title              string     `json:"title"`
	EventType          EventType  `json:"event_type"`
	StartDate          time.Time  `json:"start_date"`
	EndDate            *time.Time `json:"end_date,omitempty"`
	IsAllDay           bool       `json:"is_all_day"`
	SubjectID          *int64     `json:"subject_id,omitempty"`
	AttendanceRequired bool       `json:"attendance_required"`
	IsActive           bool       `json:"is_active"`
}

// Covers reports whether the event's date span includes d (dates compared at
// day granularity; a nil EndDate means a single-day event).
func (e Event) Covers(d time.Time) bool {
	day := dateutil.Truncate(d)
	start := dateutil.Truncate(e.StartDate)
	end := start
	if e.EndDate != nil {
		end = dateutil.Truncate(*e.EndDate)
	}
	return !day.Before(start) && !day.After(end)
}
