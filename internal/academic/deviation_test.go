package academic

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attendance/internal/dateutil"
	"attendance/internal/schedule"
)

type fakeAttendance struct {
	days    int
	periods int
	err     error
	calls   int
}

func (f *fakeAttendance) ConductedDays(context.Context, time.Time, time.Time, int64, int64) (int, error) {
	f.calls++
	if f.err != nil {
		return 0, f.err
	}
	return f.days, nil
}

func (f *fakeAttendance) ConductedPeriods(context.Context, time.Time, time.Time, int64, int64) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.periods, nil
}

// semesterFixture returns a calculator planning exactly 113 academic days
// with 5 periods each: explicit CLASS events for the first 113 dates from
// Aug 1, five slots on every weekday.
func semesterFixture(t *testing.T) *Calculator {
	t.Helper()
	classDays := make(map[string]bool)
	for i, d := range dateutil.Range(date("2025-08-01"), date("2025-12-15")) {
		if i >= 113 {
			break
		}
		classDays[dateutil.Key(d)] = true
	}
	require.Len(t, classDays, 113)

	var slots []schedule.ClassSlot
	id := int64(1)
	for _, day := range []string{
		schedule.Sunday, schedule.Monday, schedule.Tuesday, schedule.Wednesday,
		schedule.Thursday, schedule.Friday, schedule.Saturday,
	} {
		for i := 0; i < 5; i++ {
			slots = append(slots, slot(id, day))
			id++
		}
	}
	return NewCalculator(&fakeSchedules{slots: slots}, &fakeCalendar{classDays: classDays}, nil, 0)
}

func TestAnalyzeDeviationSemesterScenario(t *testing.T) {
	calc := semesterFixture(t)
	analyzer := NewAnalyzer(calc, &fakeAttendance{days: 108, periods: 540}, DefaultThresholds())

	report, err := analyzer.AnalyzeDeviation(context.Background(), Query{
		Start: date("2025-08-01"),
		End:   date("2025-12-15"),
	})
	require.NoError(t, err)

	assert.Equal(t, 113, report.Planned.AcademicDays)
	assert.Equal(t, 565, report.Planned.TotalPeriods)
	assert.Equal(t, 108, report.Actual.ConductedDays)
	assert.Equal(t, -5, report.Deviation.Count)
	assert.InDelta(t, -4.42, report.Deviation.Percentage, 0.01)
	assert.Equal(t, SeverityModerate, report.Deviation.Severity)
	assert.Equal(t, MethodHybrid, report.RecommendedMethod)
	assert.Contains(t, report.Deviation.LikelyCauses, "classes cancelled but not removed from calendar")
}

func TestAnalyzeDeviationExactMatchIsMinimal(t *testing.T) {
	calc := semesterFixture(t)
	analyzer := NewAnalyzer(calc, &fakeAttendance{days: 113, periods: 565}, DefaultThresholds())

	report, err := analyzer.AnalyzeDeviation(context.Background(), Query{
		Start: date("2025-08-01"),
		End:   date("2025-12-15"),
	})
	require.NoError(t, err)

	assert.Equal(t, 0, report.Deviation.Count)
	assert.Zero(t, report.Deviation.Percentage)
	assert.Equal(t, SeverityMinimal, report.Deviation.Severity)
	assert.Equal(t, MethodPlanned, report.RecommendedMethod)
	assert.Empty(t, report.Deviation.LikelyCauses)
}

func TestAnalyzeDeviationZeroPlannedDays(t *testing.T) {
	calc := NewCalculator(&fakeSchedules{}, &fakeCalendar{}, nil, 0)
	analyzer := NewAnalyzer(calc, &fakeAttendance{days: 4, periods: 8}, DefaultThresholds())

	report, err := analyzer.AnalyzeDeviation(context.Background(), Query{
		Start: date("2025-09-01"),
		End:   date("2025-09-14"),
	})
	require.NoError(t, err)

	assert.Equal(t, 4, report.Deviation.Count)
	assert.Zero(t, report.Deviation.Percentage)
	assert.Equal(t, SeverityUndefined, report.Deviation.Severity)
	assert.Equal(t, MethodPlanned, report.RecommendedMethod)
}

func TestAnalyzeDeviationPositiveSignificantRecommendsActual(t *testing.T) {
	// Planned: 2 Mondays. Actual: 10 conducted days, a +400% gap.
	calc := NewCalculator(
		&fakeSchedules{slots: []schedule.ClassSlot{slot(1, schedule.Monday)}},
		&fakeCalendar{},
		nil, 0,
	)
	analyzer := NewAnalyzer(calc, &fakeAttendance{days: 10, periods: 10}, DefaultThresholds())

	report, err := analyzer.AnalyzeDeviation(context.Background(), Query{
		Start: date("2025-09-01"),
		End:   date("2025-09-14"),
	})
	require.NoError(t, err)

	assert.Equal(t, 8, report.Deviation.Count)
	assert.Equal(t, SeveritySignificant, report.Deviation.Severity)
	assert.Equal(t, MethodActual, report.RecommendedMethod)
	assert.Contains(t, report.Deviation.LikelyCauses, "extra/makeup sessions conducted")
}

func TestAnalyzeDeviationRetriesTransientOnce(t *testing.T) {
	calc := NewCalculator(
		&fakeSchedules{slots: []schedule.ClassSlot{slot(1, schedule.Monday)}},
		&fakeCalendar{},
		nil, 0,
	)
	att := &fakeAttendance{err: context.DeadlineExceeded}
	analyzer := NewAnalyzer(calc, att, DefaultThresholds())

	_, err := analyzer.AnalyzeDeviation(context.Background(), Query{
		Start: date("2025-09-01"),
		End:   date("2025-09-14"),
	})
	require.Error(t, err)
	assert.Equal(t, 2, att.calls)
}

func TestThresholdsClassify(t *testing.T) {
	th := DefaultThresholds()
	assert.Equal(t, SeverityMinimal, th.Classify(0))
	assert.Equal(t, SeverityMinimal, th.Classify(-4.9))
	assert.Equal(t, SeverityModerate, th.Classify(5))
	assert.Equal(t, SeverityModerate, th.Classify(-15))
	assert.Equal(t, SeveritySignificant, th.Classify(15.1))
}
