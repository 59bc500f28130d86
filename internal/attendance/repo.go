package attendance

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"attendance/internal/dateutil"
)

// Repository persists attendance data in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const eventColumns = `id, student_id, subject_id, date, time_in, status, source,
	confidence, marked_by, created_at`

// Exists reports whether any event is recorded for the triple. The sweeper
// uses this as a cheap pre-check; the unique index remains the authority.
func (r *Repository) Exists(ctx context.Context, studentID, subjectID int64, date time.Time) (bool, error) {
	var found bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM attendance_events
			WHERE student_id = $1 AND subject_id = $2 AND date = $3
		)
	`, studentID, subjectID, dateutil.Truncate(date)).Scan(&found)
	return found, err
}

// InsertAbsence writes a system-marked absence. created is false when the
// row already existed; ON CONFLICT makes concurrent writers safe without
// application-level locking.
func (r *Repository) InsertAbsence(ctx context.Context, studentID, subjectID int64, date time.Time, markedBy string) (created bool, err error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO attendance_events (id, student_id, subject_id, date, status, source, marked_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (student_id, subject_id, date) DO NOTHING
	`, uuid.NewString(), studentID, subjectID, dateutil.Truncate(date),
		StatusAbsent, SourceSystem, markedBy)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ConductedDays counts distinct dates in [start, end] carrying at least one
// event under the optional filters.
func (r *Repository) ConductedDays(ctx context.Context, start, end time.Time, subjectID, studentID int64) (int, error) {
	query := `SELECT COUNT(DISTINCT date) FROM attendance_events WHERE date >= $1 AND date <= $2`
	args := []any{dateutil.Truncate(start), dateutil.Truncate(end)}
	if subjectID > 0 {
		args = append(args, subjectID)
		query += fmt.Sprintf(" AND subject_id = $%d", len(args))
	}
	if studentID > 0 {
		args = append(args, studentID)
		query += fmt.Sprintf(" AND student_id = $%d", len(args))
	}
	var n int
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&n)
	return n, err
}

// ConductedPeriods counts distinct (date, subject_id) pairs in [start, end]
// under the optional filters.
func (r *Repository) ConductedPeriods(ctx context.Context, start, end time.Time, subjectID, studentID int64) (int, error) {
	query := `SELECT COUNT(*) FROM (
		SELECT DISTINCT date, subject_id FROM attendance_events WHERE date >= $1 AND date <= $2`
	args := []any{dateutil.Truncate(start), dateutil.Truncate(end)}
	if subjectID > 0 {
		args = append(args, subjectID)
		query += fmt.Sprintf(" AND subject_id = $%d", len(args))
	}
	if studentID > 0 {
		args = append(args, studentID)
		query += fmt.Sprintf(" AND student_id = $%d", len(args))
	}
	query += `) conducted`
	var n int
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&n)
	return n, err
}

// EligibleStudents resolves the roster for a slot: students in the slot's
// faculty and semester.
func (r *Repository) EligibleStudents(ctx context.Context, facultyID int64, semester int) ([]Student, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, faculty_id, semester FROM students
		WHERE faculty_id = $1 AND semester = $2
		ORDER BY id
	`, facultyID, semester)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var students []Student
	for rows.Next() {
		var s Student
		if err := rows.Scan(&s.ID, &s.FacultyID, &s.Semester); err != nil {
			return nil, err
		}
		students = append(students, s)
	}
	return students, rows.Err()
}

// ListEvents returns events with basic filters, newest first.
func (r *Repository) ListEvents(ctx context.Context, f EventFilter, limit, offset int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	query := `SELECT ` + eventColumns + ` FROM attendance_events`
	args := []any{}
	clauses := []string{}
	if f.StudentID > 0 {
		args = append(args, f.StudentID)
		clauses = append(clauses, fmt.Sprintf("student_id = $%d", len(args)))
	}
	if f.SubjectID > 0 {
		args = append(args, f.SubjectID)
		clauses = append(clauses, fmt.Sprintf("subject_id = $%d", len(args)))
	}
	if !f.From.IsZero() {
		args = append(args, dateutil.Truncate(f.From))
		clauses = append(clauses, fmt.Sprintf("date >= $%d", len(args)))
	}
	if !f.To.IsZero() {
		args = append(args, dateutil.Truncate(f.To))
		clauses = append(clauses, fmt.Sprintf("date <= $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		clauses = append(clauses, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.Source != "" {
		args = append(args, f.Source)
		clauses = append(clauses, fmt.Sprintf("source = $%d", len(args)))
	}
	for i, c := range clauses {
		if i == 0 {
			query += " WHERE " + c
		} else {
			query += " AND " + c
		}
	}
	query += fmt.Sprintf(" ORDER BY date DESC, created_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.StudentID, &e.SubjectID, &e.Date, &e.TimeIn,
			&e.Status, &e.Source, &e.Confidence, &e.MarkedBy, &e.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
