package academic

import (
	"context"
	"math"

	"attendance/internal/store"
)

// Severity classifies a planned-vs-actual gap.
type Severity string

const (
	SeverityMinimal     Severity = "minimal"
	SeverityModerate    Severity = "moderate"
	SeveritySignificant Severity = "significant"
	// SeverityUndefined is reported when no academic days were planned, so
	// a percentage gap has no denominator.
	SeverityUndefined Severity = "undefined"
)

// Method names a calculation basis recommendation for downstream reports.
type Method string

const (
	MethodPlanned Method = "planned"
	MethodHybrid  Method = "hybrid"
	MethodActual  Method = "actual"
)

// Thresholds are the absolute-percentage severity bounds. Values are
// configuration, not constants.
type Thresholds struct {
	MinimalPct  float64
	ModeratePct float64
}

// DefaultThresholds mirror the shipped configuration defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{MinimalPct: 5, ModeratePct: 15}
}

// Classify maps an absolute percentage gap to a severity.
func (t Thresholds) Classify(pct float64) Severity {
	abs := math.Abs(pct)
	switch {
	case abs < t.MinimalPct:
		return SeverityMinimal
	case abs <= t.ModeratePct:
		return SeverityModerate
	default:
		return SeveritySignificant
	}
}

// Actual is what the attendance log says happened in a range.
type Actual struct {
	ConductedDays    int `json:"conducted_days"`
	ConductedPeriods int `json:"conducted_periods"`
}

// Deviation is the gap between planned and actual.
type Deviation struct {
	Count        int      `json:"count"`
	Percentage   float64  `json:"percentage"`
	Severity     Severity `json:"severity"`
	LikelyCauses []string `json:"likely_causes"`
}

// Report is the full deviation analysis payload.
type Report struct {
	Planned           Metrics   `json:"planned"`
	Actual            Actual    `json:"actual"`
	Deviation         Deviation `json:"deviation"`
	RecommendedMethod Method    `json:"recommended_method"`
}

// Analyzer joins planned metrics with the attendance log. Read-only.
type Analyzer struct {
	calc       *Calculator
	attendance AttendanceReader
	thresholds Thresholds
}

// NewAnalyzer creates an analyzer.
func NewAnalyzer(calc *Calculator, attendance AttendanceReader, thresholds Thresholds) *Analyzer {
	if thresholds.MinimalPct <= 0 || thresholds.ModeratePct <= thresholds.MinimalPct {
		thresholds = DefaultThresholds()
	}
	return &Analyzer{calc: calc, attendance: attendance, thresholds: thresholds}
}

// AnalyzeDeviation compares planned metrics against conducted sessions and
// recommends a calculation basis. Transient attendance-log failures are
// retried once; there is no meaningful partial result to return.
func (a *Analyzer) AnalyzeDeviation(ctx context.Context, q Query) (Report, error) {
	if err := q.Validate(); err != nil {
		return Report{}, err
	}

	planned, err := a.calc.CalculateMetrics(ctx, q)
	if err != nil {
		return Report{}, err
	}

	actual, err := a.readActual(ctx, q)
	if err != nil && store.IsTransient(err) {
		actual, err = a.readActual(ctx, q)
	}
	if err != nil {
		return Report{}, err
	}

	dev := a.classify(planned, actual)
	return Report{
		Planned:           planned,
		Actual:            actual,
		Deviation:         dev,
		RecommendedMethod: recommend(dev),
	}, nil
}

func (a *Analyzer) readActual(ctx context.Context, q Query) (Actual, error) {
	days, err := a.attendance.ConductedDays(ctx, q.Start, q.End, q.SubjectID, q.StudentID)
	if err != nil {
		return Actual{}, err
	}
	periods, err := a.attendance.ConductedPeriods(ctx, q.Start, q.End, q.SubjectID, q.StudentID)
	if err != nil {
		return Actual{}, err
	}
	return Actual{ConductedDays: days, ConductedPeriods: periods}, nil
}

func (a *Analyzer) classify(planned Metrics, actual Actual) Deviation {
	dev := Deviation{
		Count:        actual.ConductedDays - planned.AcademicDays,
		LikelyCauses: []string{},
	}
	if planned.AcademicDays == 0 {
		dev.Severity = SeverityUndefined
		return dev
	}
	dev.Percentage = round2(float64(dev.Count) / float64(planned.AcademicDays) * 100)

	// A long range dilutes a multi-day gap in percentage terms, so the raw
	// day count is classified on the same bounds and the stronger class
	// wins.
	dev.Severity = maxSeverity(
		a.thresholds.Classify(dev.Percentage),
		a.thresholds.Classify(float64(dev.Count)),
	)

	// Heuristic labels, not computed facts.
	if dev.Count < 0 && dev.Severity != SeverityMinimal {
		dev.LikelyCauses = append(dev.LikelyCauses, "classes cancelled but not removed from calendar")
	}
	if dev.Count > 0 {
		dev.LikelyCauses = append(dev.LikelyCauses, "extra/makeup sessions conducted")
	}
	return dev
}

// recommend picks the calculation basis: planned metrics are stable when the
// gap is small, a hybrid hedges moderate gaps, and the actual log wins when
// significantly more sessions ran than were scheduled.
func recommend(dev Deviation) Method {
	switch dev.Severity {
	case SeverityModerate:
		return MethodHybrid
	case SeveritySignificant:
		if dev.Count > 0 {
			return MethodActual
		}
		return MethodHybrid
	default:
		return MethodPlanned
	}
}

var severityRank = map[Severity]int{
	SeverityMinimal:     0,
	SeverityModerate:    1,
	SeveritySignificant: 2,
}

func maxSeverity(a, b Severity) Severity {
	if severityRank[b] > severityRank[a] {
		return b
	}
	return a
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
