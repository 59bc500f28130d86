// Package sweeper reconciles ended class sessions against the attendance
// log, inserting a system absence for every eligible student who has no
// record. Re-running a sweep for the same date is always safe: the unique
// index over (student_id, subject_id, date) is the idempotency guarantee.
package sweeper

import (
	"context"
	"log/slog"
	"time"

	"attendance/internal/attendance"
	"attendance/internal/dateutil"
	"attendance/internal/schedule"
	"attendance/internal/store"
)

// ScheduleStore is the slice of the schedule repository the sweeper needs.
type ScheduleStore interface {
	ListActive(ctx context.Context, f schedule.Filter) ([]schedule.ClassSlot, error)
}

// CalendarStore answers the holiday and cancellation guards for one date.
type CalendarStore interface {
	HolidayCovers(ctx context.Context, date time.Time) (bool, error)
	CancelledSubjects(ctx context.Context, date time.Time) (map[int64]bool, error)
}

// AttendanceStore is the read-check-insert surface of the attendance log.
type AttendanceStore interface {
	Exists(ctx context.Context, studentID, subjectID int64, date time.Time) (bool, error)
	InsertAbsence(ctx context.Context, studentID, subjectID int64, date time.Time, markedBy string) (bool, error)
	EligibleStudents(ctx context.Context, facultyID int64, semester int) ([]attendance.Student, error)
}

// Publisher receives sweep summaries for downstream reporting. Best effort.
type Publisher interface {
	Publish(ctx context.Context, payload any) error
}

// Summary is the result of one sweep invocation. Error is set when the
// sweep could not even select work (guard or slot reads failed after
// retry); pair-level trouble shows up in UnresolvedPairs instead.
type Summary struct {
	TargetDate              string `json:"target_date"`
	Holiday                 bool   `json:"holiday"`
	ExpiredClassesProcessed int    `json:"expired_classes_processed"`
	StudentsAlreadyMarked   int    `json:"students_already_marked"`
	NewRecordsCreated       int    `json:"new_records_created"`
	UnresolvedPairs         int    `json:"unresolved_pairs"`
	Error                   string `json:"error,omitempty"`
}

// Status reports sweeper readiness without mutating anything.
type Status struct {
	Enabled                      bool `json:"enabled"`
	InWindow                     bool `json:"in_window"`
	ExpiredClassesReadyToProcess int  `json:"expired_classes_ready_to_process"`
}

// Config carries the externally configured sweeper knobs.
type Config struct {
	Enabled      bool
	WindowStart  dateutil.MinuteOfDay
	WindowEnd    dateutil.MinuteOfDay
	MarkedBy     string
	StoreTimeout time.Duration
}

// Service runs the auto-absence reconciliation.
type Service struct {
	schedules ScheduleStore
	calendar  CalendarStore
	log       AttendanceStore
	publisher Publisher
	cfg       Config
	now       func() time.Time
	logger    *slog.Logger
}

// NewService creates a sweeper. publisher may be nil; clock overrides the
// wall clock and is meant for tests (nil means time.Now).
func NewService(schedules ScheduleStore, calendar CalendarStore, log AttendanceStore, publisher Publisher, cfg Config, clock func() time.Time) *Service {
	if clock == nil {
		clock = time.Now
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = 5 * time.Second
	}
	if cfg.MarkedBy == "" {
		cfg.MarkedBy = "auto-absence-sweeper"
	}
	return &Service{
		schedules: schedules,
		calendar:  calendar,
		log:       log,
		publisher: publisher,
		cfg:       cfg,
		now:       clock,
		logger:    slog.Default().With("component", "sweeper"),
	}
}

// InWindow reports whether the instant falls inside the operating window.
// Only timer-driven sweeps honor it; manual triggers bypass.
func (s *Service) InWindow(t time.Time) bool {
	m := dateutil.MinuteOf(t)
	return m >= s.cfg.WindowStart && m <= s.cfg.WindowEnd
}

// Enabled reports the configured on/off switch.
func (s *Service) Enabled() bool {
	return s.cfg.Enabled
}

// Run executes one sweep for the target date. A fully holiday-covered date
// short-circuits to an all-zero summary. Individual pair failures are
// retried once and then counted, never fatal.
func (s *Service) Run(ctx context.Context, target time.Time) (Summary, error) {
	target = dateutil.Truncate(target)
	summary := Summary{TargetDate: dateutil.Key(target)}
	sweepsTotal.Inc()

	expired, holiday, err := s.selectExpired(ctx, target)
	if err != nil {
		return summary, err
	}
	if holiday {
		summary.Holiday = true
		s.logger.Info("sweep skipped, holiday", "date", summary.TargetDate)
		s.publish(ctx, summary)
		return summary, nil
	}

	for _, slot := range expired {
		summary.ExpiredClassesProcessed++

		students, err := s.eligibleStudents(ctx, slot)
		if err != nil {
			// The whole roster read failed twice; every pair of this slot
			// is unresolved.
			s.logger.Warn("roster lookup failed", "slot", slot.ID, "err", err)
			summary.UnresolvedPairs++
			pairFailuresTotal.Inc()
			continue
		}

		for _, student := range students {
			switch s.reconcilePair(ctx, student.ID, slot.SubjectID, target) {
			case pairCreated:
				summary.NewRecordsCreated++
				recordsCreatedTotal.Inc()
			case pairAlreadyMarked:
				summary.StudentsAlreadyMarked++
				alreadyMarkedTotal.Inc()
			case pairFailed:
				summary.UnresolvedPairs++
				pairFailuresTotal.Inc()
			}
		}
	}

	s.logger.Info("sweep finished",
		"date", summary.TargetDate,
		"expired_classes", summary.ExpiredClassesProcessed,
		"created", summary.NewRecordsCreated,
		"already_marked", summary.StudentsAlreadyMarked,
		"unresolved", summary.UnresolvedPairs)
	s.publish(ctx, summary)
	return summary, nil
}

// Status previews what a sweep would touch right now, without writing.
func (s *Service) Status(ctx context.Context) (Status, error) {
	st := Status{Enabled: s.cfg.Enabled, InWindow: s.InWindow(s.now())}
	expired, holiday, err := s.selectExpired(ctx, dateutil.Truncate(s.now()))
	if err != nil {
		return st, err
	}
	if !holiday {
		st.ExpiredClassesReadyToProcess = len(expired)
	}
	return st, nil
}

// selectExpired applies the holiday guard, then picks active slots on the
// target weekday whose window has elapsed and whose subject is not
// cancelled that date. end_time is a hard cutoff with no grace period.
func (s *Service) selectExpired(ctx context.Context, target time.Time) ([]schedule.ClassSlot, bool, error) {
	holiday, err := s.holidayCovers(ctx, target)
	if err != nil {
		return nil, false, err
	}
	if holiday {
		return nil, true, nil
	}

	now := s.now()
	today := dateutil.Truncate(now)
	if target.After(today) {
		// No session on a future date can have ended yet.
		return nil, false, nil
	}

	slots, err := s.listSlots(ctx, target)
	if err != nil {
		return nil, false, err
	}
	cancelled, err := s.cancelledSubjects(ctx, target)
	if err != nil {
		return nil, false, err
	}

	var expired []schedule.ClassSlot
	for _, slot := range slots {
		if target.Equal(today) && !slot.EndedBy(now) {
			continue
		}
		if cancelled[slot.SubjectID] {
			continue
		}
		expired = append(expired, slot)
	}
	return expired, false, nil
}

type pairOutcome int

const (
	pairCreated pairOutcome = iota
	pairAlreadyMarked
	pairFailed
)

// reconcilePair checks and inserts one (student, subject, date) absence.
// The existence check only avoids pointless writes; a duplicate-key
// rejection from a concurrent writer is counted as already marked.
func (s *Service) reconcilePair(ctx context.Context, studentID, subjectID int64, target time.Time) pairOutcome {
	exists, err := s.exists(ctx, studentID, subjectID, target)
	if err == nil && exists {
		return pairAlreadyMarked
	}
	// On a failed existence check fall through to the insert; the unique
	// index decides.

	created, err := s.insertAbsence(ctx, studentID, subjectID, target)
	if err != nil {
		if store.IsUniqueViolation(err) {
			return pairAlreadyMarked
		}
		s.logger.Warn("absence insert failed",
			"student", studentID, "subject", subjectID, "date", dateutil.Key(target), "err", err)
		return pairFailed
	}
	if !created {
		return pairAlreadyMarked
	}
	return pairCreated
}

func (s *Service) publish(ctx context.Context, summary Summary) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, summary); err != nil {
		s.logger.Warn("summary publish failed", "err", err)
	}
}
