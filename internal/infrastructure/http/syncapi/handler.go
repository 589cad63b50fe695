// Package syncapi serves the endpoints agents push their documents and
// counters to.
package syncapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"raccolta/internal/core/entity"
	"raccolta/internal/domain/counter"
	"raccolta/internal/domain/syncer"
	"raccolta/internal/infrastructure/http/v1/middleware"
	"raccolta/internal/infrastructure/remote"
	"raccolta/internal/infrastructure/storage/postgres"
	"raccolta/pkg/logger"
)

// Repository persists what agents send.
type Repository interface {
	UpsertDocument(ctx context.Context, d postgres.SyncedDocument) (int64, error)
	ListDocuments(ctx context.Context, f postgres.DocumentFilter) ([]postgres.SyncedDocument, error)
	MergeCounters(ctx context.Context, agentID int64, incoming map[string]int64) ([]postgres.CounterRow, error)
}

// documentRequest covers the three document bodies; exactly one data
// field is set depending on the endpoint.
type documentRequest struct {
	LocalID     string          `json:"local_id"`
	OrderData   json.RawMessage `json:"order_data"`
	PickingData json.RawMessage `json:"picking_data"`
	DdtData     json.RawMessage `json:"ddt_data"`
}

// documentHeader is the part of a payload the server indexes.
type documentHeader struct {
	LocalID string `json:"local_id"`
	AgentID int64  `json:"agent_id"`
	Name    string `json:"name"`
}

// Handler implements the sync endpoints.
type Handler struct {
	repo Repository
	log  *logger.Logger
}

// NewHandler creates a handler.
func NewHandler(repo Repository, log *logger.Logger) *Handler {
	return &Handler{repo: repo, log: log.WithComponent("syncapi")}
}

// NewRouter builds the sync server engine.
func NewRouter(repo Repository, log *logger.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(log, nil))
	router.Use(middleware.ErrorHandler())

	NewHandler(repo, log).RegisterRoutes(router)
	return router
}

// RegisterRoutes registers the endpoints on r.
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.HEAD(remote.PathPing, h.Ping)
	r.GET(remote.PathPing, h.Ping)

	g := r.Group("", middleware.Decompress())
	g.POST(remote.PathSyncOrder, h.document(entity.DocTypeSaleOrder, func(r documentRequest) json.RawMessage { return r.OrderData }))
	g.POST(remote.PathSyncPicking, h.document(entity.DocTypeStockPicking, func(r documentRequest) json.RawMessage { return r.PickingData }))
	g.POST(remote.PathSyncDdt, h.document(entity.DocTypeDeliveryNote, func(r documentRequest) json.RawMessage { return r.DdtData }))
	g.POST(remote.PathSyncCounters, h.SyncCounters)
	g.GET("/raccolta/documents", h.ListDocuments)
}

// Ping answers the agents' connectivity probe.
func (h *Handler) Ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) document(docType string, data func(documentRequest) json.RawMessage) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		var req documentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			h.reject(c, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
		payload := data(req)
		if len(payload) == 0 || string(payload) == "null" {
			h.reject(c, http.StatusBadRequest, "missing document data")
			return
		}
		var hdr documentHeader
		if err := json.Unmarshal(payload, &hdr); err != nil {
			h.reject(c, http.StatusBadRequest, "invalid document data: "+err.Error())
			return
		}
		localID := req.LocalID
		if localID == "" {
			localID = hdr.LocalID
		}
		if localID == "" {
			h.reject(c, http.StatusBadRequest, "missing local_id")
			return
		}

		id, err := h.repo.UpsertDocument(ctx, postgres.SyncedDocument{
			DocType: docType,
			LocalID: localID,
			AgentID: hdr.AgentID,
			Name:    hdr.Name,
			Payload: payload,
		})
		if err != nil {
			h.log.WithContext(ctx).Errorw("store document failed", "doc_type", docType, "local_id", localID, "error", err)
			h.reject(c, http.StatusInternalServerError, "storage failure")
			return
		}

		h.log.WithContext(ctx).Infow("document received",
			"doc_type", docType,
			"local_id", localID,
			"agent_id", hdr.AgentID,
			"server_id", id,
		)
		c.JSON(http.StatusOK, syncer.DocumentResponse{Success: true, OdooID: id})
	}
}

// SyncCounters merges an agent's counters and returns the server view.
func (h *Handler) SyncCounters(c *gin.Context) {
	ctx := c.Request.Context()

	var req counter.SyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.reject(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.AgentID <= 0 {
		h.reject(c, http.StatusBadRequest, "missing agent_id")
		return
	}

	incoming := make(map[string]int64, len(req.Counters))
	for key, p := range req.Counters {
		incoming[key] = p.Value
	}
	rows, err := h.repo.MergeCounters(ctx, req.AgentID, incoming)
	if err != nil {
		h.log.WithContext(ctx).Errorw("merge counters failed", "agent_id", req.AgentID, "error", err)
		h.reject(c, http.StatusInternalServerError, "storage failure")
		return
	}

	out := counter.SyncResponse{Success: true, ServerCounters: make(map[string]counter.ServerCounter, len(rows))}
	for _, r := range rows {
		out.ServerCounters[r.Key] = counter.ServerCounter{Value: r.Value}
	}
	h.log.WithContext(ctx).Infow("counters merged", "agent_id", req.AgentID, "received", len(incoming), "stored", len(rows))
	c.JSON(http.StatusOK, out)
}

type listQuery struct {
	DocType string `form:"doc_type"`
	AgentID int64  `form:"agent_id" binding:"gte=0"`
	Limit   uint64 `form:"limit" binding:"lte=500"`
}

// ListDocuments lets an operator inspect what was received.
func (h *Handler) ListDocuments(c *gin.Context) {
	var q listQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.reject(c, http.StatusBadRequest, "invalid query: "+err.Error())
		return
	}
	if q.Limit == 0 {
		q.Limit = 100
	}
	docs, err := h.repo.ListDocuments(c.Request.Context(), postgres.DocumentFilter{
		DocType: q.DocType,
		AgentID: q.AgentID,
		Limit:   q.Limit,
	})
	if err != nil {
		h.log.WithContext(c.Request.Context()).Errorw("list documents failed", "error", err)
		h.reject(c, http.StatusInternalServerError, "storage failure")
		return
	}
	if docs == nil {
		docs = []postgres.SyncedDocument{}
	}
	c.JSON(http.StatusOK, gin.H{"items": docs, "totalCount": len(docs)})
}

func (h *Handler) reject(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "error": msg})
}
