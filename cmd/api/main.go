package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"attendance/internal/academic"
	"attendance/internal/attendance"
	"attendance/internal/auth"
	"attendance/internal/calendar"
	"attendance/internal/config"
	"attendance/internal/httpmiddleware"
	"attendance/internal/queue"
	"attendance/internal/schedule"
	"attendance/internal/store"
	"attendance/internal/sweeper"
)

func main() {
	cfg := config.Load()

	// Set Gin mode based on environment
	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App) error {
	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)

	scheduleRepo := schedule.NewRepository(db.Client)
	calendarRepo := calendar.NewRepository(db.Client)
	attendanceRepo := attendance.NewRepository(db.Client)

	calc := academic.NewCalculator(scheduleRepo, calendarRepo, redisClient, cfg.MetricsCacheTTL)
	analyzer := academic.NewAnalyzer(calc, attendanceRepo, academic.Thresholds{
		MinimalPct:  cfg.MinimalPct,
		ModeratePct: cfg.ModeratePct,
	})

	feed := queue.NewRedisList(redisClient.Client, "attendance:sweeps")
	sweep := sweeper.NewService(scheduleRepo, calendarRepo, attendanceRepo, feed, sweeper.Config{
		Enabled:      cfg.SweeperEnabled,
		WindowStart:  cfg.WindowStart,
		WindowEnd:    cfg.WindowEnd,
		MarkedBy:     cfg.SystemMarker,
		StoreTimeout: cfg.StoreTimeout,
	}, nil)

	h := newHandlers(calc, analyzer, sweep, attendanceRepo, calendarRepo, cfg)

	r := gin.New()

	// Recovery middleware
	r.Use(gin.Recovery())

	// Custom logger
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))

	// CORS middleware
	r.Use(corsMiddleware())

	// Security headers
	r.Use(securityHeaders())

	// Rate limiting
	r.Use(httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin,
		"/healthz", "/metrics").GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		redisHealthy := redisClient.Healthy(c.Request.Context())
		dbHealthy := db != nil
		status := http.StatusOK
		if !redisHealthy || !dbHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "redis": redisHealthy, "db": dbHealthy})
	})

	r.POST("/v1/auth/token", h.issueToken)

	v1 := r.Group("/v1")
	v1.GET("/academic/metrics", h.academicMetrics)
	v1.GET("/academic/deviation", h.deviation)
	v1.GET("/attendance/events", h.listEvents)
	v1.GET("/calendar/events", h.calendarEvents)
	v1.GET("/sweep/status", h.sweepStatus)

	// The manual trigger bypasses the operating window but still honors
	// the holiday guard and idempotent inserts, so it is safe to expose
	// behind service auth.
	v1.POST("/sweep/run", auth.RequireService(cfg.JWTSigningKey, cfg.JWTIssuer), h.runSweep)

	// Graceful shutdown
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}

// CORS middleware for browser requests
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// Security headers middleware
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		// Only add HSTS in production
		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
