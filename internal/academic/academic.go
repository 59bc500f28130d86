// Package academic derives planned class-session metrics from the recurring
// timetable and its calendar overrides, and compares them with what the
// attendance log says actually happened.
package academic

import (
	"context"
	"errors"
	"time"

	"attendance/internal/schedule"
)

// ErrInvalidRange rejects queries where the start date is not strictly
// before the end date. Callers see this verbatim; it is never retried.
var ErrInvalidRange = errors.New("start date must be before end date")

// Query bounds a metrics or deviation calculation. Semester, AcademicYear,
// SubjectID and StudentID are optional filters; zero means "any".
type Query struct {
	Start        time.Time
	End          time.Time
	Semester     int
	AcademicYear int
	SubjectID    int64
	StudentID    int64
}

// Validate applies the input-error taxonomy before any store call.
func (q Query) Validate() error {
	if q.Start.IsZero() || q.End.IsZero() {
		return errors.New("start and end dates are required")
	}
	if !q.Start.Before(q.End) {
		return ErrInvalidRange
	}
	if q.Semester < 0 || q.Semester > 8 {
		return errors.New("semester must be between 1 and 8")
	}
	return nil
}

func (q Query) slotFilter() schedule.Filter {
	return schedule.Filter{
		Semester:     q.Semester,
		AcademicYear: q.AcademicYear,
		SubjectID:    q.SubjectID,
	}
}

// DayBreakdown is one academic day inside a Metrics result.
type DayBreakdown struct {
	Date         string `json:"date"`
	DayOfWeek    string `json:"day_of_week"`
	PeriodsCount int    `json:"periods_count"`
}

// Metrics is the planned side of the ledger for a date range.
type Metrics struct {
	AcademicDays int            `json:"academic_days"`
	TotalPeriods int            `json:"total_periods"`
	Breakdown    []DayBreakdown `json:"breakdown"`
}

// ScheduleStore is the slice of the schedule repository the calculator needs.
type ScheduleStore interface {
	ListActive(ctx context.Context, f schedule.Filter) ([]schedule.ClassSlot, error)
	WeekdaysWithSlots(ctx context.Context, f schedule.Filter) (map[string]bool, error)
}

// CalendarStore is the slice of the calendar repository the calculator needs.
type CalendarStore interface {
	HolidayDays(ctx context.Context, start, end time.Time) (map[string]bool, error)
	CancelledByDay(ctx context.Context, start, end time.Time) (map[string]map[int64]bool, error)
	ClassDays(ctx context.Context, start, end time.Time, subjectID int64) (map[string]bool, error)
	HasClassEvents(ctx context.Context, start, end time.Time) (bool, error)
}

// AttendanceReader is the slice of the attendance log the analyzer needs.
type AttendanceReader interface {
	ConductedDays(ctx context.Context, start, end time.Time, subjectID, studentID int64) (int, error)
	ConductedPeriods(ctx context.Context, start, end time.Time, subjectID, studentID int64) (int, error)
}
