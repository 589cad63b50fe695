package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"raccolta/internal/domain"
)

const readinessKey = "readiness_probe"

// StatusReporter exposes sync state for /health/info.
type StatusReporter interface {
	IsOnline() bool
	IsSyncing() bool
}

// HealthHandler provides health check endpoints.
type HealthHandler struct {
	store   domain.Store
	status  StatusReporter
	version string
}

// NewHealthHandler creates a new health handler. status may be nil.
func NewHealthHandler(store domain.Store, status StatusReporter, version string) *HealthHandler {
	return &HealthHandler{store: store, status: status, version: version}
}

// Live handles the liveness probe.
// GET /health/live
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready checks that the store answers a read.
// GET /health/ready
func (h *HealthHandler) Ready(c *gin.Context) {
	_, err := h.store.Get(c.Request.Context(), domain.CollectionMeta, readinessKey)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "error",
			"backend": h.store.Backend(),
			"checks": map[string]string{
				"storage": "unhealthy: " + err.Error(),
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"backend": h.store.Backend(),
		"checks": map[string]string{
			"storage": "healthy",
		},
	})
}

// Info returns application information.
// GET /health/info
func (h *HealthHandler) Info(c *gin.Context) {
	info := gin.H{
		"app":     "raccolta",
		"version": h.version,
		"backend": h.store.Backend(),
	}
	if h.status != nil {
		info["online"] = h.status.IsOnline()
		info["syncing"] = h.status.IsSyncing()
	}
	c.JSON(http.StatusOK, info)
}
