package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const readinessTimeout = 3 * time.Second

type checkResult struct {
	Status    string `json:"status"`
	LatencyMS int64  `json:"latencyMs"`
	Error     string `json:"error,omitempty"`
}

func (h *httpHandler) handleLive(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleReady runs every readiness check and answers 503 when any is down.
func (h *httpHandler) handleReady(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
	defer cancel()

	overall := "healthy"
	results := make(map[string]checkResult, len(h.checks))
	for _, check := range h.checks {
		start := time.Now()
		err := check.Check(ctx)
		result := checkResult{Status: "up", LatencyMS: time.Since(start).Milliseconds()}
		if err != nil {
			result.Status = "down"
			result.Error = err.Error()
			overall = "degraded"
		}
		results[check.Name] = result
	}

	status := http.StatusOK
	if overall != "healthy" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"status": overall, "checks": results})
}
