package sweeper

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attendance/internal/attendance"
	"attendance/internal/dateutil"
	"attendance/internal/schedule"
)

type fakeScheduleStore struct {
	slots []schedule.ClassSlot
}

func (f *fakeScheduleStore) ListActive(_ context.Context, fl schedule.Filter) ([]schedule.ClassSlot, error) {
	var out []schedule.ClassSlot
	for _, s := range f.slots {
		if fl.DayOfWeek != "" && s.DayOfWeek != fl.DayOfWeek {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

type fakeCalendarStore struct {
	holidays  map[string]bool
	cancelled map[string]map[int64]bool
}

func (f *fakeCalendarStore) HolidayCovers(_ context.Context, date time.Time) (bool, error) {
	return f.holidays[dateutil.Key(date)], nil
}

func (f *fakeCalendarStore) CancelledSubjects(_ context.Context, date time.Time) (map[int64]bool, error) {
	return f.cancelled[dateutil.Key(date)], nil
}

type fakeLog struct {
	mu          sync.Mutex
	students    []attendance.Student
	events      map[string]bool
	insertFails map[string]int
	failWith    error
	inserts     int
}

func newFakeLog(students ...attendance.Student) *fakeLog {
	return &fakeLog{
		students:    students,
		events:      make(map[string]bool),
		insertFails: make(map[string]int),
	}
}

func tripleKey(studentID, subjectID int64, date time.Time) string {
	return fmt.Sprintf("%d:%d:%s", studentID, subjectID, dateutil.Key(date))
}

func (f *fakeLog) Exists(_ context.Context, studentID, subjectID int64, date time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.events[tripleKey(studentID, subjectID, date)], nil
}

func (f *fakeLog) InsertAbsence(_ context.Context, studentID, subjectID int64, date time.Time, _ string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inserts++
	key := tripleKey(studentID, subjectID, date)
	if f.insertFails[key] > 0 {
		f.insertFails[key]--
		return false, f.failWith
	}
	if f.events[key] {
		return false, nil
	}
	f.events[key] = true
	return true, nil
}

func (f *fakeLog) EligibleStudents(_ context.Context, facultyID int64, semester int) ([]attendance.Student, error) {
	var out []attendance.Student
	for _, s := range f.students {
		if s.FacultyID == facultyID && s.Semester == semester {
			out = append(out, s)
		}
	}
	return out, nil
}

// monday is 2025-09-01; clock reads 09:35, after the 08:00-09:30 slot.
var monday = time.Date(2025, 9, 1, 9, 35, 0, 0, time.UTC)

func mondaySlot(subjectID int64) schedule.ClassSlot {
	return schedule.ClassSlot{
		ID:           subjectID,
		FacultyID:    1,
		SubjectID:    subjectID,
		DayOfWeek:    schedule.Monday,
		StartTime:    8 * 60,
		EndTime:      9*60 + 30,
		Semester:     3,
		AcademicYear: 2025,
		Active:       true,
	}
}

func testConfig() Config {
	start, _ := dateutil.ParseMinute("07:00")
	end, _ := dateutil.ParseMinute("20:00")
	return Config{
		Enabled:     true,
		WindowStart: start,
		WindowEnd:   end,
		MarkedBy:    "test-sweeper",
	}
}

func newTestService(slots []schedule.ClassSlot, cal *fakeCalendarStore, log *fakeLog, at time.Time) *Service {
	return NewService(&fakeScheduleStore{slots: slots}, cal, log, nil, testConfig(), func() time.Time { return at })
}

func TestRunMarksAbsentAndIsIdempotent(t *testing.T) {
	log := newFakeLog(
		attendance.Student{ID: 1, FacultyID: 1, Semester: 3},
		attendance.Student{ID: 2, FacultyID: 1, Semester: 3},
	)
	svc := newTestService([]schedule.ClassSlot{mondaySlot(1)}, &fakeCalendarStore{}, log, monday)

	first, err := svc.Run(context.Background(), monday)
	require.NoError(t, err)
	assert.Equal(t, 1, first.ExpiredClassesProcessed)
	assert.Equal(t, 2, first.NewRecordsCreated)
	assert.Equal(t, 0, first.StudentsAlreadyMarked)

	second, err := svc.Run(context.Background(), monday)
	require.NoError(t, err)
	assert.Equal(t, 1, second.ExpiredClassesProcessed)
	assert.Equal(t, 0, second.NewRecordsCreated)
	assert.Equal(t, 2, second.StudentsAlreadyMarked)
}

func TestRunHolidayGuardShortCircuits(t *testing.T) {
	log := newFakeLog(attendance.Student{ID: 1, FacultyID: 1, Semester: 3})
	cal := &fakeCalendarStore{holidays: map[string]bool{"2025-09-01": true}}
	svc := newTestService([]schedule.ClassSlot{mondaySlot(1)}, cal, log, monday)

	summary, err := svc.Run(context.Background(), monday)
	require.NoError(t, err)
	assert.True(t, summary.Holiday)
	assert.Zero(t, summary.ExpiredClassesProcessed)
	assert.Zero(t, summary.NewRecordsCreated)
	assert.Zero(t, log.inserts)
}

func TestRunSkipsCancelledSubject(t *testing.T) {
	log := newFakeLog(attendance.Student{ID: 1, FacultyID: 1, Semester: 3})
	cal := &fakeCalendarStore{cancelled: map[string]map[int64]bool{
		"2025-09-01": {1: true},
	}}
	svc := newTestService([]schedule.ClassSlot{mondaySlot(1), mondaySlot(2)}, cal, log, monday)

	summary, err := svc.Run(context.Background(), monday)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.ExpiredClassesProcessed)
	assert.Equal(t, 1, summary.NewRecordsCreated)
	assert.False(t, log.events[tripleKey(1, 1, monday)], "cancelled subject must not be marked")
	assert.True(t, log.events[tripleKey(1, 2, monday)])
}

func TestRunNeverMarksBeforeSlotEnds(t *testing.T) {
	log := newFakeLog(attendance.Student{ID: 1, FacultyID: 1, Semester: 3})
	late := mondaySlot(2)
	late.StartTime, _ = dateutil.ParseMinute("10:00")
	late.EndTime, _ = dateutil.ParseMinute("11:30")
	svc := newTestService([]schedule.ClassSlot{mondaySlot(1), late}, &fakeCalendarStore{}, log, monday)

	summary, err := svc.Run(context.Background(), monday)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.ExpiredClassesProcessed)
	assert.False(t, log.events[tripleKey(1, 2, monday)], "slot still in progress")
}

func TestRunPastDateTreatsAllSlotsEnded(t *testing.T) {
	log := newFakeLog(attendance.Student{ID: 1, FacultyID: 1, Semester: 3})
	late := mondaySlot(1)
	late.StartTime, _ = dateutil.ParseMinute("10:00")
	late.EndTime, _ = dateutil.ParseMinute("11:30")
	// Sweep last Monday from a Tuesday morning before 11:30.
	tuesday := time.Date(2025, 9, 9, 8, 0, 0, 0, time.UTC)
	svc := newTestService([]schedule.ClassSlot{late}, &fakeCalendarStore{}, log, tuesday)

	summary, err := svc.Run(context.Background(), time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 1, summary.ExpiredClassesProcessed)
	assert.Equal(t, 1, summary.NewRecordsCreated)
}

func TestRunFutureDateTouchesNothing(t *testing.T) {
	log := newFakeLog(attendance.Student{ID: 1, FacultyID: 1, Semester: 3})
	svc := newTestService([]schedule.ClassSlot{mondaySlot(1)}, &fakeCalendarStore{}, log, monday)

	summary, err := svc.Run(context.Background(), monday.AddDate(0, 0, 7))
	require.NoError(t, err)
	assert.Zero(t, summary.ExpiredClassesProcessed)
	assert.Zero(t, log.inserts)
}

func TestRunCountsExistingRecordsAsAlreadyMarked(t *testing.T) {
	log := newFakeLog(
		attendance.Student{ID: 1, FacultyID: 1, Semester: 3},
		attendance.Student{ID: 2, FacultyID: 1, Semester: 3},
	)
	log.events[tripleKey(1, 1, monday)] = true // present since morning
	svc := newTestService([]schedule.ClassSlot{mondaySlot(1)}, &fakeCalendarStore{}, log, monday)

	summary, err := svc.Run(context.Background(), monday)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.StudentsAlreadyMarked)
	assert.Equal(t, 1, summary.NewRecordsCreated)
}

func TestRunTreatsUniqueViolationAsAlreadyMarked(t *testing.T) {
	log := newFakeLog(attendance.Student{ID: 1, FacultyID: 1, Semester: 3})
	log.insertFails[tripleKey(1, 1, monday)] = 1
	log.failWith = &pgconn.PgError{Code: "23505"}
	svc := newTestService([]schedule.ClassSlot{mondaySlot(1)}, &fakeCalendarStore{}, log, monday)

	summary, err := svc.Run(context.Background(), monday)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.StudentsAlreadyMarked)
	assert.Zero(t, summary.NewRecordsCreated)
	assert.Zero(t, summary.UnresolvedPairs)
}

func TestRunRetriesTransientInsertOnce(t *testing.T) {
	log := newFakeLog(attendance.Student{ID: 1, FacultyID: 1, Semester: 3})
	log.insertFails[tripleKey(1, 1, monday)] = 1
	log.failWith = context.DeadlineExceeded
	svc := newTestService([]schedule.ClassSlot{mondaySlot(1)}, &fakeCalendarStore{}, log, monday)

	summary, err := svc.Run(context.Background(), monday)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.NewRecordsCreated)
	assert.Zero(t, summary.UnresolvedPairs)
	assert.Equal(t, 2, log.inserts)
}

func TestRunGivesUpAfterRetryAndContinues(t *testing.T) {
	log := newFakeLog(
		attendance.Student{ID: 1, FacultyID: 1, Semester: 3},
		attendance.Student{ID: 2, FacultyID: 1, Semester: 3},
	)
	log.insertFails[tripleKey(1, 1, monday)] = 2
	log.failWith = context.DeadlineExceeded
	svc := newTestService([]schedule.ClassSlot{mondaySlot(1)}, &fakeCalendarStore{}, log, monday)

	summary, err := svc.Run(context.Background(), monday)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.UnresolvedPairs)
	assert.Equal(t, 1, summary.NewRecordsCreated, "other pairs keep going")
}

func TestRunNonTransientFailureNotRetried(t *testing.T) {
	log := newFakeLog(attendance.Student{ID: 1, FacultyID: 1, Semester: 3})
	log.insertFails[tripleKey(1, 1, monday)] = 1
	log.failWith = errors.New("column does not exist")
	svc := newTestService([]schedule.ClassSlot{mondaySlot(1)}, &fakeCalendarStore{}, log, monday)

	summary, err := svc.Run(context.Background(), monday)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.UnresolvedPairs)
	assert.Equal(t, 1, log.inserts)
}

func TestRunIgnoresStudentsFromOtherSemesters(t *testing.T) {
	log := newFakeLog(
		attendance.Student{ID: 1, FacultyID: 1, Semester: 3},
		attendance.Student{ID: 2, FacultyID: 1, Semester: 5},
		attendance.Student{ID: 3, FacultyID: 2, Semester: 3},
	)
	svc := newTestService([]schedule.ClassSlot{mondaySlot(1)}, &fakeCalendarStore{}, log, monday)

	summary, err := svc.Run(context.Background(), monday)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.NewRecordsCreated)
	assert.True(t, log.events[tripleKey(1, 1, monday)])
}

func TestInWindow(t *testing.T) {
	svc := newTestService(nil, &fakeCalendarStore{}, newFakeLog(), monday)

	at := func(hhmm string) time.Time {
		m, err := dateutil.ParseMinute(hhmm)
		require.NoError(t, err)
		return time.Date(2025, 9, 1, int(m)/60, int(m)%60, 0, 0, time.UTC)
	}
	assert.False(t, svc.InWindow(at("06:59")))
	assert.True(t, svc.InWindow(at("07:00")))
	assert.True(t, svc.InWindow(at("13:30")))
	assert.True(t, svc.InWindow(at("20:00")))
	assert.False(t, svc.InWindow(at("20:01")))
}

func TestStatusPreviewsWithoutWriting(t *testing.T) {
	log := newFakeLog(attendance.Student{ID: 1, FacultyID: 1, Semester: 3})
	late := mondaySlot(2)
	late.StartTime, _ = dateutil.ParseMinute("10:00")
	late.EndTime, _ = dateutil.ParseMinute("11:30")
	svc := newTestService([]schedule.ClassSlot{mondaySlot(1), late}, &fakeCalendarStore{}, log, monday)

	st, err := svc.Status(context.Background())
	require.NoError(t, err)
	assert.True(t, st.Enabled)
	assert.True(t, st.InWindow)
	assert.Equal(t, 1, st.ExpiredClassesReadyToProcess)
	assert.Zero(t, log.inserts)
}

func TestStatusOnHoliday(t *testing.T) {
	cal := &fakeCalendarStore{holidays: map[string]bool{"2025-09-01": true}}
	svc := newTestService([]schedule.ClassSlot{mondaySlot(1)}, cal, newFakeLog(), monday)

	st, err := svc.Status(context.Background())
	require.NoError(t, err)
	assert.Zero(t, st.ExpiredClassesReadyToProcess)
}
