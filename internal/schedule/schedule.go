package schedule

import (
	"time"

	"attendance/internal/dateutil"
)

// Weekday tokens as stored in class_slots.day_of_week.
const (
	Sunday    = "SUNDAY"
	Monday    = "MONDAY"
	Tuesday   = "TUESDAY"
	Wednesday = "WEDNESDAY"
	Thursday  = "THURSDAY"
	Friday    = "FRIDAY"
	Saturday  = "SATURDAY"
)

// ClassSlot is one recurring weekly class occurrence. Slots are authored by
// the scheduling CRUD service; this engine only reads them.
type ClassSlot struct {
	ID           int64                `json:"id"`
	FacultyID    int64                `json:"faculty_id"`
	SubjectID    int64                `json:"subject_id"`
	DayOfWeek    string               `json:"day_of_week"`
	StartTime    dateutil.MinuteOfDay `json:"start_time"`
	EndTime      dateutil.MinuteOfDay `json:"end_time"`
	Semester     int                  `json:"semester"`
	AcademicYear int                  `json:"academic_year"`
	Classroom    string               `json:"classroom"`
	Active       bool                 `json:"active"`
}

// EndedBy reports whether the slot's scheduled window has fully elapsed at
// the given wall-clock instant. The end of the window is a hard cutoff.
func (s ClassSlot) EndedBy(now time.Time) bool {
	return s.EndTime <= dateutil.MinuteOf(now)
}

// Filter narrows slot queries. Zero values mean "any".
type Filter struct {
	DayOfWeek    string
	Semester     int
	AcademicYear int
	SubjectID    int64
	FacultyID    int64
}
