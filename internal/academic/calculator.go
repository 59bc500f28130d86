package academic

import (
	"context"
	"fmt"
	"time"

	"attendance/internal/dateutil"
	"attendance/internal/schedule"
	"attendance/internal/store"
)

// Calculator computes planned academic days and periods for a date range by
// intersecting the recurring timetable with calendar overrides. It is a pure
// function of store state; the optional redis cache is a read-through
// optimization with a short TTL, never a correctness dependency.
type Calculator struct {
	schedules ScheduleStore
	calendar  CalendarStore
	cache     *store.Redis
	cacheTTL  time.Duration
}

// NewCalculator creates a calculator. cache may be nil; a non-positive
// cacheTTL also runs without caching.
func NewCalculator(schedules ScheduleStore, calendar CalendarStore, cache *store.Redis, cacheTTL time.Duration) *Calculator {
	return &Calculator{schedules: schedules, calendar: calendar, cache: cache, cacheTTL: cacheTTL}
}

// CalculateMetrics returns planned metrics for the query range. Empty
// schedule or calendar data yields zero-valued metrics, not an error.
// Transient store failures are retried once before surfacing.
func (c *Calculator) CalculateMetrics(ctx context.Context, q Query) (Metrics, error) {
	if err := q.Validate(); err != nil {
		return Metrics{}, err
	}

	key := cacheKey(q)
	if c.cacheEnabled() {
		var cached Metrics
		if c.cache.GetJSON(ctx, key, &cached) {
			return cached, nil
		}
	}

	m, err := c.calculate(ctx, q)
	if err != nil && store.IsTransient(err) {
		m, err = c.calculate(ctx, q)
	}
	if err != nil {
		return Metrics{}, err
	}

	if c.cacheEnabled() {
		c.cache.SetJSON(ctx, key, m, c.cacheTTL)
	}
	return m, nil
}

// cacheEnabled reports whether results should go through redis. A
// non-positive TTL disables caching; keys must never be stored without
// an expiry.
func (c *Calculator) cacheEnabled() bool {
	return c.cache != nil && c.cacheTTL > 0
}

func (c *Calculator) calculate(ctx context.Context, q Query) (Metrics, error) {
	slots, err := c.schedules.ListActive(ctx, q.slotFilter())
	if err != nil {
		return Metrics{}, err
	}
	slotsByDay := make(map[string][]schedule.ClassSlot)
	for _, s := range slots {
		slotsByDay[s.DayOfWeek] = append(slotsByDay[s.DayOfWeek], s)
	}

	source, err := c.daySource(ctx, q)
	if err != nil {
		return Metrics{}, err
	}
	classDates, err := source.AcademicDates(ctx, q)
	if err != nil {
		return Metrics{}, err
	}

	holidays, err := c.calendar.HolidayDays(ctx, q.Start, q.End)
	if err != nil {
		return Metrics{}, err
	}
	cancelled, err := c.calendar.CancelledByDay(ctx, q.Start, q.End)
	if err != nil {
		return Metrics{}, err
	}

	m := Metrics{Breakdown: []DayBreakdown{}}
	for _, d := range dateutil.Range(q.Start, q.End) {
		key := dateutil.Key(d)
		if holidays[key] || !classDates[key] {
			continue
		}
		periods := 0
		for _, s := range slotsByDay[dateutil.WeekdayName(d)] {
			if cancelled[key][s.SubjectID] {
				continue
			}
			periods++
		}
		// A day whose periods were all cancelled is not an academic day.
		if periods == 0 {
			continue
		}
		m.AcademicDays++
		m.TotalPeriods += periods
		m.Breakdown = append(m.Breakdown, DayBreakdown{
			Date:         key,
			DayOfWeek:    dateutil.WeekdayName(d),
			PeriodsCount: periods,
		})
	}
	return m, nil
}

// daySource picks the representation the stored data actually uses: explicit
// CLASS events win when any exist in range, otherwise weekly recurrence.
func (c *Calculator) daySource(ctx context.Context, q Query) (DaySource, error) {
	hasEvents, err := c.calendar.HasClassEvents(ctx, q.Start, q.End)
	if err != nil {
		return nil, err
	}
	if hasEvents {
		return calendarDaySource{calendar: c.calendar}, nil
	}
	return recurrenceDaySource{schedules: c.schedules}, nil
}

func cacheKey(q Query) string {
	return fmt.Sprintf("academic:metrics:%s:%s:%d:%d:%d",
		dateutil.Key(q.Start), dateutil.Key(q.End), q.Semester, q.AcademicYear, q.SubjectID)
}
