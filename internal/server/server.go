package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/eaglebraz48/zolarus-proxy-sub000/internal/config"
	"github.com/eaglebraz48/zolarus-proxy-sub000/internal/metrics"
	"github.com/eaglebraz48/zolarus-proxy-sub000/internal/sweep"
)

// SweepRunner is what the trigger route needs from the sweep job.
type SweepRunner interface {
	Run(ctx context.Context) (sweep.Summary, error)
}

// HealthStatus is the health check response body.
type HealthStatus struct {
	Status         string `json:"status"`
	InstanceID     string `json:"instance_id"`
	Uptime         string `json:"uptime"`
	SweepRuns      int64  `json:"sweep_runs"`
	SweepFailures  int64  `json:"sweep_failures"`
	EmailsSent     int64  `json:"emails_sent"`
	SendErrors     int64  `json:"send_errors"`
	SkippedNoEmail int64  `json:"skipped_no_email"`
	StoreErrors    int64  `json:"store_errors"`
}

// Server exposes the sweep trigger and health endpoints.
type Server struct {
	runner  SweepRunner
	metrics *metrics.Metrics
	cfg     *config.Config
	log     *slog.Logger
	redis   *redis.Client // nil disables trigger rate limiting
}

func New(runner SweepRunner, m *metrics.Metrics, cfg *config.Config, log *slog.Logger, redisClient *redis.Client) *Server {
	return &Server{
		runner:  runner,
		metrics: m,
		cfg:     cfg,
		log:     log,
		redis:   redisClient,
	}
}

// Router builds the gin engine with all routes attached.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.Default())

	jobs := router.Group("/jobs")
	jobs.Use(s.requireTriggerToken())
	if s.redis != nil {
		jobs.Use(s.rateLimiter())
	}
	jobs.POST("/reminder-sweep", s.handleReminderSweep)

	router.GET("/health", s.handleHealth)
	router.GET("/healthz", s.handleHealth) // Alternative endpoint for k8s

	return router
}

// handleReminderSweep runs one sweep pass. Partial per-reminder failures
// still answer 200 with the summary; only a failed selection query is a
// failed invocation.
func (s *Server) handleReminderSweep(c *gin.Context) {
	summary, err := s.runner.Run(c.Request.Context())
	if err != nil {
		s.log.Error("sweep invocation failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthStatus{
		Status:         "healthy",
		InstanceID:     s.cfg.InstanceID,
		Uptime:         time.Since(s.metrics.StartTime).String(),
		SweepRuns:      s.metrics.SweepRuns.Load(),
		SweepFailures:  s.metrics.SweepFailures.Load(),
		EmailsSent:     s.metrics.EmailsSent.Load(),
		SendErrors:     s.metrics.SendErrors.Load(),
		SkippedNoEmail: s.metrics.SkippedNoEmail.Load(),
		StoreErrors:    s.metrics.StoreErrors.Load(),
	})
}

// requireTriggerToken rejects trigger calls without the configured shared
// secret. A blank TriggerToken disables the check.
func (s *Server) requireTriggerToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.cfg.TriggerToken == "" {
			c.Next()
			return
		}
		if c.GetHeader("Authorization") != "Bearer "+s.cfg.TriggerToken {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid trigger token"})
			return
		}
		c.Next()
	}
}
