// Package sale_order provides the sales order document collected by the agent.
package sale_order

import (
	"context"
	"strconv"
	"time"

	"raccolta/internal/core/apperror"
	"raccolta/internal/core/entity"
	"raccolta/internal/core/id"
	"raccolta/internal/core/types"
	"raccolta/internal/domain"
)

// Order states.
const (
	StateDraft     = "draft"
	StateConfirmed = "confirmed"
)

// Order is a sales order created offline.
type Order struct {
	entity.Document

	PartnerID         int64  `json:"partner_id"`
	PartnerName       string `json:"partner_name,omitempty"`
	PartnerEmail      string `json:"partner_email,omitempty"`
	PartnerPhone      string `json:"partner_phone,omitempty"`
	PartnerShippingID *int64 `json:"partner_shipping_id,omitempty"`

	State        string    `json:"state"`
	DateOrder    time.Time `json:"date_order"`
	ValidityDate time.Time `json:"validity_date"`

	Lines []Line `json:"order_line"`

	AmountUntaxed types.Money `json:"amount_untaxed"`
	AmountTax     types.Money `json:"amount_tax"`
	AmountTotal   types.Money `json:"amount_total"`

	Note                 string `json:"note,omitempty"`
	GeneralNotes         string `json:"general_notes,omitempty"`
	InternalNotes        string `json:"internal_notes,omitempty"`
	DeliveryInstructions string `json:"delivery_instructions,omitempty"`

	AgentName        string `json:"agent_name,omitempty"`
	SessionID        string `json:"session_id,omitempty"`
	RequireSignature bool   `json:"require_signature"`
	PrintReceipt     bool   `json:"print_receipt"`
}

// Line is one ordered product.
type Line struct {
	LocalID      string         `json:"local_id"`
	Sequence     int            `json:"sequence"`
	ProductID    int64          `json:"product_id"`
	Name         string         `json:"name"`
	ProductCode  string         `json:"product_code,omitempty"`
	Quantity     types.Quantity `json:"product_uom_qty"`
	QtyDelivered types.Quantity `json:"qty_delivered"`
	PriceUnit    types.Money    `json:"price_unit"`
	Discount     types.Money    `json:"discount"`
	TaxID        *int64         `json:"tax_id,omitempty"`
	Note         string         `json:"note,omitempty"`
	Subtotal     types.Money    `json:"price_subtotal"`
}

// NewOrder creates a draft order for partnerID.
func NewOrder(agentID int64, agentCode string, partnerID int64) *Order {
	doc := entity.NewDocument(entity.DocTypeSaleOrder, id.PrefixOrder, agentID, agentCode)
	return &Order{
		Document:     doc,
		PartnerID:    partnerID,
		State:        StateDraft,
		DateOrder:    doc.CreatedAt,
		PrintReceipt: true,
		Lines:        make([]Line, 0),
	}
}

// AddLine appends a line; totals are not touched until RecalculateTotals.
func (o *Order) AddLine(l Line) {
	l.Sequence = len(o.Lines) + 1
	if l.LocalID == "" {
		l.LocalID = id.NewLocal(id.PrefixLine)
	}
	o.Lines = append(o.Lines, l)
}

// RecalculateTotals recomputes line subtotals, tax and total.
// Tax is a flat rate on the untaxed amount.
func (o *Order) RecalculateTotals(taxRate types.Money) {
	untaxed := types.Zero()
	for i := range o.Lines {
		l := &o.Lines[i]
		l.Subtotal = types.RoundMoney(types.LineSubtotal(l.Quantity, l.PriceUnit, l.Discount))
		untaxed = untaxed.Add(l.Subtotal)
	}
	o.AmountUntaxed = untaxed
	o.AmountTax = types.RoundMoney(untaxed.Mul(taxRate))
	o.AmountTotal = o.AmountUntaxed.Add(o.AmountTax)
}

// Validate implements entity.Validatable.
func (o *Order) Validate(ctx context.Context) error {
	if o.PartnerID <= 0 {
		return apperror.NewValidation("customer is required").WithDetail("field", "partner_id")
	}
	if len(o.Lines) == 0 {
		return apperror.NewValidation("at least one line is required").WithDetail("field", "order_line")
	}
	for i, l := range o.Lines {
		if !l.Quantity.IsPositive() {
			return apperror.NewValidation("quantity must be positive").
				WithDetail("field", "order_line").
				WithDetail("sequence", i+1)
		}
	}
	return nil
}

// Confirm moves a draft order to confirmed.
func (o *Order) Confirm() error {
	if err := o.CanModify(); err != nil {
		return err
	}
	if o.State != StateDraft {
		return apperror.NewInvalidState(o.DocType, o.State, StateConfirmed)
	}
	o.State = StateConfirmed
	o.Touch()
	return nil
}

// StoreKey implements domain.Storable.
func (o *Order) StoreKey() string { return o.LocalID }

// StoreIndexes implements domain.Storable.
func (o *Order) StoreIndexes() map[string]string {
	return map[string]string{
		domain.IndexSyncStatus: string(o.SyncStatus),
		domain.IndexAgentID:    strconv.FormatInt(o.AgentID, 10),
	}
}

var _ entity.Validatable = (*Order)(nil)
