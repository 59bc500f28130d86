package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"attendance/internal/attendance"
	"attendance/internal/calendar"
	"attendance/internal/config"
	"attendance/internal/queue"
	"attendance/internal/schedule"
	"attendance/internal/store"
	"attendance/internal/sweeper"
)

// Worker runs the auto-absence sweep on a fixed cadence inside the
// operating window. Manual triggers go through the API; both paths share
// the same sweeper service and the same store-level idempotency.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("shutdown signal received")
		cancel()
	}()

	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)
	feed := queue.NewRedisList(redisClient.Client, "attendance:sweeps")

	sweep := sweeper.NewService(
		schedule.NewRepository(db.Client),
		calendar.NewRepository(db.Client),
		attendance.NewRepository(db.Client),
		feed,
		sweeper.Config{
			Enabled:      cfg.SweeperEnabled,
			WindowStart:  cfg.WindowStart,
			WindowEnd:    cfg.WindowEnd,
			MarkedBy:     cfg.SystemMarker,
			StoreTimeout: cfg.StoreTimeout,
		},
		nil,
	)

	c := cron.New()
	spec := fmt.Sprintf("@every %s", cfg.SweepCadence)
	_, err = c.AddFunc(spec, func() {
		tick(ctx, sweep)
	})
	if err != nil {
		log.Fatalf("cron schedule failed: %v", err)
	}

	slog.Info("sweeper worker started",
		"cadence", cfg.SweepCadence.String(),
		"window", fmt.Sprintf("%s-%s", cfg.WindowStart, cfg.WindowEnd),
		"enabled", cfg.SweeperEnabled)

	c.Start()
	<-ctx.Done()

	stopCtx := c.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(30 * time.Second):
		slog.Warn("cron jobs still running at shutdown deadline")
	}
	slog.Info("sweeper worker stopped")
}

// tick runs one scheduled sweep for today, honoring the enabled flag and
// the operating window; nighttime ticks are no-ops.
func tick(ctx context.Context, sweep *sweeper.Service) {
	now := time.Now()
	if !sweep.Enabled() {
		return
	}
	if !sweep.InWindow(now) {
		slog.Debug("tick outside operating window", "at", now.Format("15:04"))
		return
	}
	if _, err := sweep.Run(ctx, now); err != nil {
		slog.Error("scheduled sweep failed", "err", err)
	}
}
