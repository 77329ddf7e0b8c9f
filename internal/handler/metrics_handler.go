package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/vidyahq/fees-api/internal/scheduler"
	"github.com/vidyahq/fees-api/internal/service"
)

// OpsHandler exposes observability and readiness endpoints.
type OpsHandler struct {
	metrics *service.MetricsService
	db      *sqlx.DB
	cache   *redis.Client
	sched   *scheduler.Scheduler
}

// NewOpsHandler constructs an ops handler. db, cache and sched may be nil in tests.
func NewOpsHandler(metrics *service.MetricsService, db *sqlx.DB, cache *redis.Client, sched *scheduler.Scheduler) *OpsHandler {
	return &OpsHandler{metrics: metrics, db: db, cache: cache, sched: sched}
}

// Prometheus serves the Prometheus metrics endpoint.
func (h *OpsHandler) Prometheus(c *gin.Context) {
	if h.metrics == nil {
		c.Status(http.StatusServiceUnavailable)
		return
	}
	h.metrics.Handler().ServeHTTP(c.Writer, c.Request)
}

// Health responds with liveness info only; it never touches dependencies.
func (h *OpsHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready pings the database and cache and reports per-dependency status.
func (h *OpsHandler) Ready(c *gin.Context) {
	checkCtx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	deps := gin.H{}

	if h.db != nil {
		if err := h.db.PingContext(checkCtx); err != nil {
			deps["database"] = "down"
			status = http.StatusServiceUnavailable
		} else {
			deps["database"] = "up"
		}
	}
	if h.cache != nil {
		if err := h.cache.Ping(checkCtx).Err(); err != nil {
			deps["cache"] = "down"
			status = http.StatusServiceUnavailable
		} else {
			deps["cache"] = "up"
		}
	}

	c.JSON(status, gin.H{"status": httpStatusLabel(status), "dependencies": deps})
}

// Jobs reports the last outcome of every scheduled job.
func (h *OpsHandler) Jobs(c *gin.Context) {
	if h.sched == nil {
		c.JSON(http.StatusOK, gin.H{"jobs": []scheduler.JobRun{}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": h.sched.Status(), "next_runs": h.sched.NextRuns()})
}

func httpStatusLabel(status int) string {
	if status == http.StatusOK {
		return "ready"
	}
	return "degraded"
}
