package handlers

import (
	"github.com/gin-gonic/gin"

	"raccolta/internal/core/apperror"
	"raccolta/internal/core/numerator"
	"raccolta/internal/domain/counter"
	"raccolta/internal/infrastructure/http/v1/dto"
)

// CounterHandler exposes numbering state.
type CounterHandler struct {
	*BaseHandler
	counters  *counter.Manager
	numbering numerator.Strategy
}

// NewCounterHandler creates a counter handler. Reservations are only served
// when documents draw from them.
func NewCounterHandler(base *BaseHandler, counters *counter.Manager, numbering numerator.Strategy) *CounterHandler {
	return &CounterHandler{BaseHandler: base, counters: counters, numbering: numbering}
}

// RegisterRoutes registers counter routes on rg.
func (h *CounterHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.POST("/:docType/reserve", h.Reserve)
}

// List returns counter state per document type.
// GET /api/v1/counters
func (h *CounterHandler) List(c *gin.Context) {
	stats, err := h.counters.Stats(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.CountersResponse{
		AgentID:   h.counters.AgentID(),
		AgentCode: h.counters.AgentCode(),
		Counters:  stats,
	})
}

// Reserve pre-allocates a block of numbers for offline use.
// POST /api/v1/counters/:docType/reserve
func (h *CounterHandler) Reserve(c *gin.Context) {
	if h.numbering != numerator.StrategyReserved {
		h.Error(c, apperror.NewBusinessRule(apperror.CodeReserveOff,
			"numbers can only be reserved with reserved numbering").
			WithDetail("doc_type", c.Param("docType")))
		return
	}
	var req dto.ReserveRequest
	if c.Request.ContentLength != 0 && !h.BindJSON(c, &req) {
		return
	}
	docType := c.Param("docType")
	r, err := h.counters.ReserveNumbers(c.Request.Context(), docType, req.Count)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.NewReserveResponse(docType, r, h.counters.FormatDocumentName))
}
