package sweeper

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sweepsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "attendance_sweeps_total",
		Help: "Sweep invocations, including holiday short-circuits.",
	})
	recordsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "attendance_sweep_records_created_total",
		Help: "System absence records inserted by sweeps.",
	})
	alreadyMarkedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "attendance_sweep_already_marked_total",
		Help: "Pairs skipped because an attendance event already existed.",
	})
	pairFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "attendance_sweep_pair_failures_total",
		Help: "Pairs left unresolved after the per-pair retry.",
	})
)
