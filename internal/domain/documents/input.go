package documents

import (
	"fmt"
	"time"

	"raccolta/internal/core/types"
	"raccolta/internal/domain/documents/delivery_note"
)

// OrderInput is the order payload produced by the order-entry form.
type OrderInput struct {
	PartnerID         int64  `json:"partner_id"`
	PartnerName       string `json:"partner_name,omitempty"`
	PartnerEmail      string `json:"partner_email,omitempty"`
	PartnerPhone      string `json:"partner_phone,omitempty"`
	PartnerShippingID *int64 `json:"partner_shipping_id,omitempty"`

	Products []ProductInput `json:"products"`

	Note                 string `json:"note,omitempty"`
	GeneralNotes         string `json:"general_notes,omitempty"`
	InternalNotes        string `json:"internal_notes,omitempty"`
	DeliveryInstructions string `json:"delivery_instructions,omitempty"`

	RequireSignature bool  `json:"require_signature,omitempty"`
	PrintReceipt     *bool `json:"print_receipt,omitempty"`

	ScheduledDate *time.Time              `json:"scheduled_date,omitempty"`
	Transport     delivery_note.Transport `json:"transport"`
}

// ProductInput is one requested product.
type ProductInput struct {
	ID        int64          `json:"id"`
	Name      string         `json:"name,omitempty"`
	Code      string         `json:"code,omitempty"`
	Quantity  types.Quantity `json:"quantity"`
	PriceUnit types.Money    `json:"price_unit"`
	Discount  types.Money    `json:"discount"`
	TaxID     *int64         `json:"tax_id,omitempty"`
	Note      string         `json:"note,omitempty"`
}

// ValidationResult lists every problem found in an order payload.
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

// ValidateOrderData checks an order payload before any number is drawn.
func ValidateOrderData(in OrderInput) ValidationResult {
	errs := make([]string, 0)
	if len(in.Products) == 0 {
		errs = append(errs, "Almeno un prodotto obbligatorio")
	}
	if in.PartnerID <= 0 {
		errs = append(errs, "Cliente obbligatorio")
	}
	for i, p := range in.Products {
		if p.ID <= 0 {
			errs = append(errs, fmt.Sprintf("Prodotto %d: ID mancante", i+1))
		}
		if !p.Quantity.IsPositive() {
			errs = append(errs, fmt.Sprintf("Prodotto %d: Quantità non valida", i+1))
		}
	}
	return ValidationResult{Valid: len(errs) == 0, Errors: errs}
}

// OrderUpdate carries the order fields a caller wants to change.
// Nil fields are left untouched; Products replaces every line.
type OrderUpdate struct {
	PartnerName          *string         `json:"partner_name,omitempty"`
	PartnerEmail         *string         `json:"partner_email,omitempty"`
	PartnerPhone         *string         `json:"partner_phone,omitempty"`
	PartnerShippingID    *int64          `json:"partner_shipping_id,omitempty"`
	Note                 *string         `json:"note,omitempty"`
	GeneralNotes         *string         `json:"general_notes,omitempty"`
	InternalNotes        *string         `json:"internal_notes,omitempty"`
	DeliveryInstructions *string         `json:"delivery_instructions,omitempty"`
	RequireSignature     *bool           `json:"require_signature,omitempty"`
	PrintReceipt         *bool           `json:"print_receipt,omitempty"`
	Products             *[]ProductInput `json:"products,omitempty"`
}

// PickingUpdate carries the picking fields a caller may change.
type PickingUpdate struct {
	ScheduledDate *time.Time `json:"scheduled_date,omitempty"`
	Note          *string    `json:"note,omitempty"`
}
