package handlers

import (
	"github.com/gin-gonic/gin"

	"raccolta/internal/domain/documents"
	"raccolta/internal/domain/documents/delivery_note"
)

// DeliveryNoteHandler serves delivery note endpoints.
type DeliveryNoteHandler struct {
	*BaseHandler
	creator *documents.Creator
}

// NewDeliveryNoteHandler creates a delivery note handler.
func NewDeliveryNoteHandler(base *BaseHandler, creator *documents.Creator) *DeliveryNoteHandler {
	return &DeliveryNoteHandler{BaseHandler: base, creator: creator}
}

// RegisterRoutes registers delivery note routes on rg.
func (h *DeliveryNoteHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/:id", h.Get)
	rg.PATCH("/:id", h.Update)
	rg.POST("/:id/validate", h.Validate)
}

// Get returns one delivery note.
func (h *DeliveryNoteHandler) Get(c *gin.Context) {
	d, err := h.creator.GetDeliveryNote(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, d)
}

// Update overlays transport fields.
func (h *DeliveryNoteHandler) Update(c *gin.Context) {
	var t delivery_note.Transport
	if !h.BindJSON(c, &t) {
		return
	}
	d, err := h.creator.UpdateDdt(c.Request.Context(), c.Param("id"), t)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, d)
}

// Validate moves a delivery note to done.
func (h *DeliveryNoteHandler) Validate(c *gin.Context) {
	d, err := h.creator.ValidateDdt(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, d)
}
