package main

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"attendance/internal/academic"
	"attendance/internal/attendance"
	"attendance/internal/auth"
	"attendance/internal/calendar"
	"attendance/internal/config"
	"attendance/internal/dateutil"
	"attendance/internal/sweeper"
)

type handlers struct {
	calc     *academic.Calculator
	analyzer *academic.Analyzer
	sweep    *sweeper.Service
	log      *attendance.Repository
	calendar *calendar.Repository
	cfg      config.App
}

func newHandlers(calc *academic.Calculator, analyzer *academic.Analyzer, sweep *sweeper.Service,
	log *attendance.Repository, cal *calendar.Repository, cfg config.App) *handlers {
	return &handlers{calc: calc, analyzer: analyzer, sweep: sweep, log: log, calendar: cal, cfg: cfg}
}

// issueToken exchanges a service name + shared secret for a bearer token
// accepted on the sweep trigger route.
func (h *handlers) issueToken(c *gin.Context) {
	var req struct {
		Service string `json:"service" binding:"required"`
		Secret  string `json:"secret" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Secret != h.cfg.JWTSigningKey {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	token, exp, err := auth.Issue(req.Service, "service", h.cfg.JWTIssuer, h.cfg.JWTSigningKey, h.cfg.AccessTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"access_token": token, "expires_at": exp.Unix()})
}

func (h *handlers) academicMetrics(c *gin.Context) {
	q, err := parseQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	m, err := h.calc.CalculateMetrics(c.Request.Context(), q)
	if err != nil {
		respondQueryError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func (h *handlers) deviation(c *gin.Context) {
	q, err := parseQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	report, err := h.analyzer.AnalyzeDeviation(c.Request.Context(), q)
	if err != nil {
		respondQueryError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *handlers) listEvents(c *gin.Context) {
	var f attendance.EventFilter
	var err error
	if f.StudentID, err = int64Query(c, "student_id"); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if f.SubjectID, err = int64Query(c, "subject_id"); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	f.Status = attendance.Status(c.Query("status"))
	f.Source = attendance.Source(c.Query("source"))
	if v := c.Query("start"); v != "" {
		d, err := dateutil.ParseDate(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		f.From = d
	}
	if v := c.Query("end"); v != "" {
		d, err := dateutil.ParseDate(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		f.To = d
	}
	if f.Status != "" && !f.Status.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status filter"})
		return
	}
	switch f.Source {
	case "", attendance.SourceBiometric, attendance.SourceManual, attendance.SourceSystem:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid source filter"})
		return
	}
	limit, err := intQuery(c, "limit", 50)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	offset, err := intQuery(c, "offset", 0)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	events, err := h.log.ListEvents(c.Request.Context(), f, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

func (h *handlers) calendarEvents(c *gin.Context) {
	start, err := dateutil.ParseDate(c.Query("start"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	end, err := dateutil.ParseDate(c.Query("end"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	events, err := h.calendar.EventsInRange(c.Request.Context(), start, end)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

func (h *handlers) sweepStatus(c *gin.Context) {
	st, err := h.sweep.Status(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, st)
}

// runSweep triggers a reconciliation for the given date (default today).
// The response is always the summary: pair failures show up in its
// counters and a selection failure in its error field, never in the
// status code.
func (h *handlers) runSweep(c *gin.Context) {
	target := time.Now()
	if v := c.Query("date"); v != "" {
		d, err := dateutil.ParseDate(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		target = d
	}
	summary, err := h.sweep.Run(c.Request.Context(), target)
	if err != nil {
		summary.Error = err.Error()
	}
	c.JSON(http.StatusOK, summary)
}

func parseQuery(c *gin.Context) (academic.Query, error) {
	start, err := dateutil.ParseDate(c.Query("start"))
	if err != nil {
		return academic.Query{}, err
	}
	end, err := dateutil.ParseDate(c.Query("end"))
	if err != nil {
		return academic.Query{}, err
	}
	q := academic.Query{Start: start, End: end}
	if q.Semester, err = intQuery(c, "semester", 0); err != nil {
		return academic.Query{}, err
	}
	if q.AcademicYear, err = intQuery(c, "academic_year", 0); err != nil {
		return academic.Query{}, err
	}
	if q.SubjectID, err = int64Query(c, "subject_id"); err != nil {
		return academic.Query{}, err
	}
	if q.StudentID, err = int64Query(c, "student_id"); err != nil {
		return academic.Query{}, err
	}
	return q, q.Validate()
}

// respondQueryError maps the error taxonomy to HTTP: input errors are the
// caller's fault, anything else is a store problem surfaced verbatim.
func respondQueryError(c *gin.Context, err error) {
	if errors.Is(err, academic.ErrInvalidRange) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
}

// Malformed filters are input errors: a value that does not parse must be
// rejected, never coerced to "any".
func intQuery(c *gin.Context, key string, fallback int) (int, error) {
	v := c.Query(key)
	if v == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: expected integer", key, v)
	}
	return parsed, nil
}

func int64Query(c *gin.Context, key string) (int64, error) {
	v := c.Query(key)
	if v == "" {
		return 0, nil
	}
	parsed, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: expected integer id", key, v)
	}
	return parsed, nil
}
