package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"
)

// HealthCheck 依赖项探活.
type HealthCheck struct {
	Name string
	Ping func(ctx context.Context) error
}

// HealthHandler handles GET /healthz.
type HealthHandler struct {
	checks  []HealthCheck
	timeout time.Duration
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(timeout time.Duration, checks ...HealthCheck) *HealthHandler {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &HealthHandler{checks: checks, timeout: timeout}
}

// Healthz reports ok only when every dependency answers.
func (h *HealthHandler) Healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	status := http.StatusOK
	result := make(map[string]string, len(h.checks))
	for _, check := range h.checks {
		if err := check.Ping(ctx); err != nil {
			logger.Warnw("health check failed", "component", check.Name, "error", err.Error())
			result[check.Name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		result[check.Name] = "ok"
	}

	c.JSON(status, gin.H{
		"status":     http.StatusText(status),
		"components": result,
	})
}
