package calendar

import (
	"context"
	"database/sql"
	"time"

	"attendance/internal/dateutil"
)

// Repository reads calendar override events from Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const eventColumns = `id, title, event_type, start_date, end_date, is_all_day,
	subject_id, attendance_required, is_active`

// HolidayCovers reports whether an active all-day HOLIDAY spans the date.
func (r *Repository) HolidayCovers(ctx context.Context, date time.Time) (bool, error) {
	day := dateutil.Truncate(date)
	var covered bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM calendar_events
			WHERE event_type = 'HOLIDAY'
			  AND is_all_day = TRUE
			  AND is_active = TRUE
			  AND start_date <= $1
			  AND COALESCE(end_date, start_date) >= $1
		)
	`, day).Scan(&covered)
	return covered, err
}

// CancelledSubjects returns the subject ids with an active CANCELLED_CLASS
// event covering the date. A row without a subject scope cancels nothing
// here; all-day suppression is the holiday path.
func (r *Repository) CancelledSubjects(ctx context.Context, date time.Time) (map[int64]bool, error) {
	day := dateutil.Truncate(date)
	rows, err := r.db.QueryContext(ctx, `
		SELECT subject_id FROM calendar_events
		WHERE event_type = 'CANCELLED_CLASS'
		  AND is_active = TRUE
		  AND subject_id IS NOT NULL
		  AND start_date <= $1
		  AND COALESCE(end_date, start_date) >= $1
	`, day)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cancelled := make(map[int64]bool)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		cancelled[id] = true
	}
	return cancelled, rows.Err()
}

// HolidayDays returns the date keys inside [start, end] covered by an
// active all-day HOLIDAY.
func (r *Repository) HolidayDays(ctx context.Context, start, end time.Time) (map[string]bool, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT start_date, COALESCE(end_date, start_date) FROM calendar_events
		WHERE event_type = 'HOLIDAY'
		  AND is_all_day = TRUE
		  AND is_active = TRUE
		  AND start_date <= $2
		  AND COALESCE(end_date, start_date) >= $1
	`, dateutil.Truncate(start), dateutil.Truncate(end))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	days := make(map[string]bool)
	lo, hi := dateutil.Truncate(start), dateutil.Truncate(end)
	for rows.Next() {
		var from, to time.Time
		if err := rows.Scan(&from, &to); err != nil {
			return nil, err
		}
		for _, d := range dateutil.Range(from, to) {
			if !d.Before(lo) && !d.After(hi) {
				days[dateutil.Key(d)] = true
			}
		}
	}
	return days, rows.Err()
}

// CancelledByDay returns, per date key in [start, end], the subject ids with
// an active CANCELLED_CLASS event that day.
func (r *Repository) CancelledByDay(ctx context.Context, start, end time.Time) (map[string]map[int64]bool, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT subject_id, start_date, COALESCE(end_date, start_date) FROM calendar_events
		WHERE event_type = 'CANCELLED_CLASS'
		  AND is_active = TRUE
		  AND subject_id IS NOT NULL
		  AND start_date <= $2
		  AND COALESCE(end_date, start_date) >= $1
	`, dateutil.Truncate(start), dateutil.Truncate(end))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cancelled := make(map[string]map[int64]bool)
	lo, hi := dateutil.Truncate(start), dateutil.Truncate(end)
	for rows.Next() {
		var id int64
		var from, to time.Time
		if err := rows.Scan(&id, &from, &to); err != nil {
			return nil, err
		}
		for _, d := range dateutil.Range(from, to) {
			if d.Before(lo) || d.After(hi) {
				continue
			}
			key := dateutil.Key(d)
			if cancelled[key] == nil {
				cancelled[key] = make(map[int64]bool)
			}
			cancelled[key][id] = true
		}
	}
	return cancelled, rows.Err()
}

// ClassDays returns the date keys inside [start, end] marked by an active,
// attendance-required CLASS event. Multi-day events are expanded. A zero
// subjectID means any subject scope, including unscoped events.
func (r *Repository) ClassDays(ctx context.Context, start, end time.Time, subjectID int64) (map[string]bool, error) {
	query := `
		SELECT start_date, COALESCE(end_date, start_date) FROM calendar_events
		WHERE event_type = 'CLASS'
		  AND is_active = TRUE
		  AND attendance_required = TRUE
		  AND start_date <= $2
		  AND COALESCE(end_date, start_date) >= $1`
	args := []any{dateutil.Truncate(start), dateutil.Truncate(end)}
	if subjectID > 0 {
		query += ` AND (subject_id IS NULL OR subject_id = $3)`
		args = append(args, subjectID)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	days := make(map[string]bool)
	lo, hi := dateutil.Truncate(start), dateutil.Truncate(end)
	for rows.Next() {
		var from, to time.Time
		if err := rows.Scan(&from, &to); err != nil {
			return nil, err
		}
		for _, d := range dateutil.Range(from, to) {
			if !d.Before(lo) && !d.After(hi) {
				days[dateutil.Key(d)] = true
			}
		}
	}
	return days, rows.Err()
}

// HasClassEvents reports whether any active CLASS event touches the range.
// It selects between the explicit per-day and the recurrence representation
// of academic days.
func (r *Repository) HasClassEvents(ctx context.Context, start, end time.Time) (bool, error) {
	var found bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM calendar_events
			WHERE event_type = 'CLASS'
			  AND is_active = TRUE
			  AND start_date <= $2
			  AND COALESCE(end_date, start_date) >= $1
		)
	`, dateutil.Truncate(start), dateutil.Truncate(end)).Scan(&found)
	return found, err
}

// EventsInRange lists active events overlapping [start, end], for the read
// API.
func (r *Repository) EventsInRange(ctx context.Context, start, end time.Time) ([]Event, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+eventColumns+` FROM calendar_events
		WHERE is_active = TRUE
		  AND start_date <= $2
		  AND COALESCE(end_date, start_date) >= $1
		ORDER BY start_date, id
	`, dateutil.Truncate(start), dateutil.Truncate(end))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.Title, &e.EventType, &e.StartDate, &e.EndDate,
			&e.IsAllDay, &e.SubjectID, &e.AttendanceRequired, &e.IsActive); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
