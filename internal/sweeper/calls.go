package sweeper

import (
	"context"
	"time"

	"attendance/internal/attendance"
	"attendance/internal/dateutil"
	"attendance/internal/schedule"
	"attendance/internal/store"
)

// Every store call gets its own short deadline and one retry on transient
// failure. A second failure surfaces to the caller, which decides whether
// the sweep continues (pair-level) or stops (selection-level).

func (s *Service) holidayCovers(ctx context.Context, date time.Time) (bool, error) {
	return retryOnce(ctx, s.cfg.StoreTimeout, func(ctx context.Context) (bool, error) {
		return s.calendar.HolidayCovers(ctx, date)
	})
}

func (s *Service) cancelledSubjects(ctx context.Context, date time.Time) (map[int64]bool, error) {
	return retryOnce(ctx, s.cfg.StoreTimeout, func(ctx context.Context) (map[int64]bool, error) {
		return s.calendar.CancelledSubjects(ctx, date)
	})
}

func (s *Service) listSlots(ctx context.Context, date time.Time) ([]schedule.ClassSlot, error) {
	return retryOnce(ctx, s.cfg.StoreTimeout, func(ctx context.Context) ([]schedule.ClassSlot, error) {
		return s.schedules.ListActive(ctx, schedule.Filter{DayOfWeek: dateutil.WeekdayName(date)})
	})
}

func (s *Service) eligibleStudents(ctx context.Context, slot schedule.ClassSlot) ([]attendance.Student, error) {
	return retryOnce(ctx, s.cfg.StoreTimeout, func(ctx context.Context) ([]attendance.Student, error) {
		return s.log.EligibleStudents(ctx, slot.FacultyID, slot.Semester)
	})
}

func (s *Service) exists(ctx context.Context, studentID, subjectID int64, date time.Time) (bool, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()
	return s.log.Exists(callCtx, studentID, subjectID, date)
}

func (s *Service) insertAbsence(ctx context.Context, studentID, subjectID int64, date time.Time) (bool, error) {
	return retryOnce(ctx, s.cfg.StoreTimeout, func(ctx context.Context) (bool, error) {
		return s.log.InsertAbsence(ctx, studentID, subjectID, date, s.cfg.MarkedBy)
	})
}

func retryOnce[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	run := func() (T, error) {
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return fn(callCtx)
	}
	out, err := run()
	if err != nil && ctx.Err() == nil && store.IsTransient(err) {
		out, err = run()
	}
	return out, err
}
