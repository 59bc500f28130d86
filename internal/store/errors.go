package store

import (
	"context"
	"errors"
	"net"

	"github.com/jackc/pgx/v5/pgconn"
)

// IsUniqueViolation reports whether err is a Postgres duplicate-key error.
// The sweeper relies on the unique index over (student_id, subject_id, date)
// as the real idempotency guarantee; this classifies its rejection.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// IsTransient reports whether err looks like a temporary store failure worth
// a single retry: timeouts, cancelled deadlines, connection-class errors.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// Class 08 covers connection exceptions, 57 operator intervention
		// (admin shutdown, crash recovery).
		cls := pgErr.Code
		if len(cls) >= 2 && (cls[:2] == "08" || cls[:2] == "57") {
			return true
		}
	}
	return pgconn.SafeToRetry(err)
}
