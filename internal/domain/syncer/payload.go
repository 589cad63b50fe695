package syncer

import (
	"context"

	"raccolta/internal/domain/documents/delivery_note"
	"raccolta/internal/domain/documents/sale_order"
	"raccolta/internal/domain/documents/stock_picking"
)

// Remote is the document side of the sync endpoint.
type Remote interface {
	SyncOrder(ctx context.Context, req OrderRequest) (DocumentResponse, error)
	SyncPicking(ctx context.Context, req PickingRequest) (DocumentResponse, error)
	SyncDeliveryNote(ctx context.Context, req DeliveryNoteRequest) (DocumentResponse, error)
}

// OrderPayload is an order as sent to the server.
type OrderPayload struct {
	*sale_order.Order
	CreatedOffline bool `json:"created_offline"`
}

// OrderRequest is the body of an order sync call.
type OrderRequest struct {
	OrderData OrderPayload `json:"order_data"`
	LocalID   string       `json:"local_id"`
}

// PickingPayload is a picking as sent to the server.
type PickingPayload struct {
	*stock_picking.Picking
	CreatedOffline bool `json:"created_offline"`
}

// PickingRequest is the body of a picking sync call.
type PickingRequest struct {
	PickingData PickingPayload `json:"picking_data"`
	LocalID     string         `json:"local_id"`
}

// DeliveryNotePayload is a delivery note as sent to the server.
type DeliveryNotePayload struct {
	*delivery_note.DeliveryNote
	CreatedOffline bool `json:"created_offline"`
}

// DeliveryNoteRequest is the body of a delivery note sync call.
type DeliveryNoteRequest struct {
	DdtData DeliveryNotePayload `json:"ddt_data"`
	LocalID string              `json:"local_id"`
}

// DocumentResponse is the server answer to a document sync call.
// Older servers report the identifier as odoo_id.
type DocumentResponse struct {
	Success  bool   `json:"success"`
	ServerID int64  `json:"server_id,omitempty"`
	OdooID   int64  `json:"odoo_id,omitempty"`
	Error    string `json:"error,omitempty"`
}

// ID returns the server identifier from whichever field carries it.
func (r DocumentResponse) ID() int64 {
	if r.ServerID != 0 {
		return r.ServerID
	}
	return r.OdooID
}

func newOrderRequest(o *sale_order.Order) OrderRequest {
	return OrderRequest{OrderData: OrderPayload{Order: o, CreatedOffline: true}, LocalID: o.LocalID}
}

func newPickingRequest(p *stock_picking.Picking) PickingRequest {
	return PickingRequest{PickingData: PickingPayload{Picking: p, CreatedOffline: true}, LocalID: p.LocalID}
}

func newDeliveryNoteRequest(d *delivery_note.DeliveryNote) DeliveryNoteRequest {
	return DeliveryNoteRequest{DdtData: DeliveryNotePayload{DeliveryNote: d, CreatedOffline: true}, LocalID: d.LocalID}
}
