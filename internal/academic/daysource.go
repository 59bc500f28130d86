package academic

import (
	"context"

	"attendance/internal/dateutil"
)

// DaySource answers which dates in a query's range count as class days,
// before holiday and cancellation overrides are applied. Deployments model
// class days either as explicit per-day CLASS calendar events or purely as
// weekly recurrence; both shapes hide behind this interface.
type DaySource interface {
	AcademicDates(ctx context.Context, q Query) (map[string]bool, error)
}

// calendarDaySource reads explicit attendance-required CLASS events.
type calendarDaySource struct {
	calendar CalendarStore
}

func (s calendarDaySource) AcademicDates(ctx context.Context, q Query) (map[string]bool, error) {
	return s.calendar.ClassDays(ctx, q.Start, q.End, q.SubjectID)
}

// recurrenceDaySource treats any date whose weekday carries at least one
// active matching slot as a class day.
type recurrenceDaySource struct {
	schedules ScheduleStore
}

func (s recurrenceDaySource) AcademicDates(ctx context.Context, q Query) (map[string]bool, error) {
	weekdays, err := s.schedules.WeekdaysWithSlots(ctx, q.slotFilter())
	if err != nil {
		return nil, err
	}
	dates := make(map[string]bool)
	for _, d := range dateutil.Range(q.Start, q.End) {
		if weekdays[dateutil.WeekdayName(d)] {
			dates[dateutil.Key(d)] = true
		}
	}
	return dates, nil
}
