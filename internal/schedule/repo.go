package schedule

import (
	"context"
	"database/sql"
	"fmt"
)

// Repository reads recurring class slots from Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const slotColumns = `id, faculty_id, subject_id, day_of_week,
	EXTRACT(HOUR FROM start_time)::int * 60 + EXTRACT(MINUTE FROM start_time)::int,
	EXTRACT(HOUR FROM end_time)::int * 60 + EXTRACT(MINUTE FROM end_time)::int,
	semester, academic_year, classroom, is_active`

// ListActive returns active slots matching the filter.
func (r *Repository) ListActive(ctx context.Context, f Filter) ([]ClassSlot, error) {
	query := `SELECT ` + slotColumns + ` FROM class_slots WHERE is_active = TRUE`
	args := []any{}
	if f.DayOfWeek != "" {
		args = append(args, f.DayOfWeek)
		query += fmt.Sprintf(" AND day_of_week = $%d", len(args))
	}
	if f.Semester > 0 {
		args = append(args, f.Semester)
		query += fmt.Sprintf(" AND semester = $%d", len(args))
	}
	if f.AcademicYear > 0 {
		args = append(args, f.AcademicYear)
		query += fmt.Sprintf(" AND academic_year = $%d", len(args))
	}
	if f.SubjectID > 0 {
		args = append(args, f.SubjectID)
		query += fmt.Sprintf(" AND subject_id = $%d", len(args))
	}
	if f.FacultyID > 0 {
		args = append(args, f.FacultyID)
		query += fmt.Sprintf(" AND faculty_id = $%d", len(args))
	}
	query += " ORDER BY day_of_week, start_time, id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var slots []ClassSlot
	for rows.Next() {
		var s ClassSlot
		if err := rows.Scan(&s.ID, &s.FacultyID, &s.SubjectID, &s.DayOfWeek,
			&s.StartTime, &s.EndTime, &s.Semester, &s.AcademicYear, &s.Classroom, &s.Active); err != nil {
			return nil, err
		}
		slots = append(slots, s)
	}
	return slots, rows.Err()
}

// WeekdaysWithSlots returns the set of weekday tokens that have at least one
// active slot under the filter. Used by the recurrence-based academic-day
// source.
func (r *Repository) WeekdaysWithSlots(ctx context.Context, f Filter) (map[string]bool, error) {
	query := `SELECT DISTINCT day_of_week FROM class_slots WHERE is_active = TRUE`
	args := []any{}
	if f.Semester > 0 {
		args = append(args, f.Semester)
		query += fmt.Sprintf(" AND semester = $%d", len(args))
	}
	if f.AcademicYear > 0 {
		args = append(args, f.AcademicYear)
		query += fmt.Sprintf(" AND academic_year = $%d", len(args))
	}
	if f.SubjectID > 0 {
		args = append(args, f.SubjectID)
		query += fmt.Sprintf(" AND subject_id = $%d", len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	days := make(map[string]bool)
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		days[d] = true
	}
	return days, rows.Err()
}
