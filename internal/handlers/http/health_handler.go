package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"camrelay/internal/infrastructure/monitoring"
)

// ReadinessChecker is satisfied by monitoring.HealthChecker.
type ReadinessChecker interface {
	CheckAll(ctx context.Context) monitoring.HealthStatus
}

type HealthHandler struct {
	checker   ReadinessChecker
	startedAt time.Time
	timeout   time.Duration
}

func NewHealthHandler(checker ReadinessChecker, startedAt time.Time) *HealthHandler {
	return &HealthHandler{
		checker:   checker,
		startedAt: startedAt,
		timeout:   5 * time.Second,
	}
}

func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    monitoring.StatusHealthy,
		"timestamp": time.Now(),
		"uptime":    time.Since(h.startedAt).String(),
	})
}

func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	status := h.checker.CheckAll(ctx)
	code := http.StatusOK
	if status.Status != monitoring.StatusHealthy {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, status)
}
