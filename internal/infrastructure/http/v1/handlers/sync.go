package handlers

import (
	"io"

	"github.com/gin-gonic/gin"

	"raccolta/internal/domain/syncer"
)

// SyncHandler exposes the sync manager.
type SyncHandler struct {
	*BaseHandler
	sync *syncer.Manager
}

// NewSyncHandler creates a sync handler.
func NewSyncHandler(base *BaseHandler, sync *syncer.Manager) *SyncHandler {
	return &SyncHandler{BaseHandler: base, sync: sync}
}

// RegisterRoutes registers sync routes on rg.
func (h *SyncHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/stats", h.Stats)
	rg.POST("/now", h.SyncNow)
	rg.POST("/force", h.Force)
	rg.POST("/retry-failed", h.RetryFailed)
	rg.GET("/events", h.Events)
}

// Stats returns the sync dashboard.
// GET /api/v1/sync/stats
func (h *SyncHandler) Stats(c *gin.Context) {
	st, err := h.sync.GetSyncStats(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, st)
}

// SyncNow retries the queue, then pushes pending documents.
// POST /api/v1/sync/now
func (h *SyncHandler) SyncNow(c *gin.Context) {
	res, err := h.sync.SyncNow(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, res)
}

// Force drops retry bookkeeping and runs a full pass.
// POST /api/v1/sync/force
func (h *SyncHandler) Force(c *gin.Context) {
	res, err := h.sync.ForceSyncAll(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, res)
}

// RetryFailed puts errored documents back to pending.
// POST /api/v1/sync/retry-failed
func (h *SyncHandler) RetryFailed(c *gin.Context) {
	n, err := h.sync.RetryFailed(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, gin.H{"reset": n})
}

// Events streams sync events as server-sent events until the client leaves.
// GET /api/v1/sync/events
func (h *SyncHandler) Events(c *gin.Context) {
	events, unsubscribe := h.sync.Subscribe()
	defer unsubscribe()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Stream(func(io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case e, ok := <-events:
			if !ok {
				return false
			}
			c.SSEvent(string(e.Type), e)
			return true
		}
	})
}
