package handlers

import (
	"github.com/gin-gonic/gin"

	"raccolta/internal/domain/documents"
	"raccolta/internal/infrastructure/http/v1/dto"
)

// OrderHandler serves the order chain endpoints.
type OrderHandler struct {
	*BaseHandler
	creator *documents.Creator
}

// NewOrderHandler creates an order handler.
func NewOrderHandler(base *BaseHandler, creator *documents.Creator) *OrderHandler {
	return &OrderHandler{BaseHandler: base, creator: creator}
}

// RegisterRoutes registers order routes on rg.
func (h *OrderHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.Create)
	rg.POST("/validate", h.Validate)
	rg.GET("", h.List)
	rg.GET("/:id", h.Get)
	rg.PATCH("/:id", h.Update)
	rg.DELETE("/:id", h.Delete)
	rg.POST("/:id/confirm", h.Confirm)
	rg.POST("/:id/duplicate", h.Duplicate)
	rg.GET("/:id/pickings", h.Pickings)
}

// Create builds the order, picking and delivery note in one call.
// POST /api/v1/orders
func (h *OrderHandler) Create(c *gin.Context) {
	var in documents.OrderInput
	if !h.BindJSON(c, &in) {
		return
	}
	co, err := h.creator.CreateCompleteOrder(c.Request.Context(), in)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.ChainResponse{CompleteOrder: co, Success: true})
}

// Validate checks a payload without creating anything.
// POST /api/v1/orders/validate
func (h *OrderHandler) Validate(c *gin.Context) {
	var in documents.OrderInput
	if !h.BindJSON(c, &in) {
		return
	}
	h.OK(c, h.creator.ValidateOrderData(in))
}

// List returns the agent's orders, optionally filtered by sync status.
// GET /api/v1/orders?status=pending
func (h *OrderHandler) List(c *gin.Context) {
	var q dto.ListOrdersQuery
	if !h.BindQuery(c, &q) {
		return
	}
	orders, err := h.creator.ListOrders(c.Request.Context(), q.SyncStatus())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListResponse(orders))
}

// Get returns one order.
// GET /api/v1/orders/:id
func (h *OrderHandler) Get(c *gin.Context) {
	o, err := h.creator.GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, o)
}

// Update merges fields into an order.
// PATCH /api/v1/orders/:id
func (h *OrderHandler) Update(c *gin.Context) {
	var u documents.OrderUpdate
	if !h.BindJSON(c, &u) {
		return
	}
	o, err := h.creator.UpdateOrder(c.Request.Context(), c.Param("id"), u)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, o)
}

// Delete removes an unsynced order with its picking and delivery note.
// DELETE /api/v1/orders/:id
func (h *OrderHandler) Delete(c *gin.Context) {
	if err := h.creator.DeleteCompleteOrder(c.Request.Context(), c.Param("id")); err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}

// Confirm moves an order to confirmed.
// POST /api/v1/orders/:id/confirm
func (h *OrderHandler) Confirm(c *gin.Context) {
	o, err := h.creator.ConfirmOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, o)
}

// Duplicate creates a new chain from an existing order.
// POST /api/v1/orders/:id/duplicate
func (h *OrderHandler) Duplicate(c *gin.Context) {
	co, err := h.creator.DuplicateOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.ChainResponse{CompleteOrder: co, Success: true})
}

// Pickings lists the pickings of an order.
// GET /api/v1/orders/:id/pickings
func (h *OrderHandler) Pickings(c *gin.Context) {
	list, err := h.creator.PickingsByOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListResponse(list))
}
