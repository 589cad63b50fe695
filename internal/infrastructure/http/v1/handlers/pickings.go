package handlers

import (
	"github.com/gin-gonic/gin"

	"raccolta/internal/domain/documents"
	"raccolta/internal/infrastructure/http/v1/dto"
)

// PickingHandler serves picking endpoints.
type PickingHandler struct {
	*BaseHandler
	creator *documents.Creator
}

// NewPickingHandler creates a picking handler.
func NewPickingHandler(base *BaseHandler, creator *documents.Creator) *PickingHandler {
	return &PickingHandler{BaseHandler: base, creator: creator}
}

// RegisterRoutes registers picking routes on rg.
func (h *PickingHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/:id", h.Get)
	rg.PATCH("/:id", h.Update)
	rg.POST("/:id/confirm", h.Confirm)
	rg.GET("/:id/ddts", h.DeliveryNotes)
}

// Get returns one picking.
func (h *PickingHandler) Get(c *gin.Context) {
	p, err := h.creator.GetPicking(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, p)
}

// Update changes the schedule or note of a picking.
func (h *PickingHandler) Update(c *gin.Context) {
	var u documents.PickingUpdate
	if !h.BindJSON(c, &u) {
		return
	}
	p, err := h.creator.UpdatePicking(c.Request.Context(), c.Param("id"), u)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, p)
}

// Confirm marks every move fully done.
func (h *PickingHandler) Confirm(c *gin.Context) {
	p, err := h.creator.ConfirmPicking(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, p)
}

// DeliveryNotes lists the delivery notes of a picking.
func (h *PickingHandler) DeliveryNotes(c *gin.Context) {
	list, err := h.creator.DeliveryNotesByPicking(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListResponse(list))
}
