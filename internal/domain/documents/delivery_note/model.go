// Package delivery_note provides the transport document (DDT) that travels
// with the goods of a picking.
package delivery_note

import (
	"strconv"
	"time"

	"raccolta/internal/core/apperror"
	"raccolta/internal/core/entity"
	"raccolta/internal/core/id"
	"raccolta/internal/core/types"
	"raccolta/internal/domain"
)

// Delivery note states.
const (
	StateDraft = "draft"
	StateDone  = "done"
)

// Transport holds the shipment metadata of a delivery note.
// Empty fields are filled from configured defaults.
type Transport struct {
	Reason      string      `json:"transport_reason,omitempty"`
	Appearance  string      `json:"goods_appearance,omitempty"`
	Condition   string      `json:"transport_condition,omitempty"`
	Method      string      `json:"transport_method,omitempty"`
	Packages    string      `json:"packages,omitempty"`
	GrossWeight types.Money `json:"gross_weight"`
	NetWeight   types.Money `json:"net_weight"`
	Volume      types.Money `json:"volume"`
	CarrierID   *int64      `json:"carrier_id,omitempty"`
	CarrierName string      `json:"carrier_name,omitempty"`
	CarrierVAT  string      `json:"carrier_vat,omitempty"`
	StartDate   *time.Time  `json:"transport_start_date,omitempty"`
	StartTime   string      `json:"transport_start_time,omitempty"`
	Note        string      `json:"note,omitempty"`
}

// Merge overlays the non-empty fields of o onto t.
func (t Transport) Merge(o Transport) Transport {
	if o.Reason != "" {
		t.Reason = o.Reason
	}
	if o.Appearance != "" {
		t.Appearance = o.Appearance
	}
	if o.Condition != "" {
		t.Condition = o.Condition
	}
	if o.Method != "" {
		t.Method = o.Method
	}
	if o.Packages != "" {
		t.Packages = o.Packages
	}
	if !o.GrossWeight.IsZero() {
		t.GrossWeight = o.GrossWeight
	}
	if !o.NetWeight.IsZero() {
		t.NetWeight = o.NetWeight
	}
	if !o.Volume.IsZero() {
		t.Volume = o.Volume
	}
	if o.CarrierID != nil {
		t.CarrierID = o.CarrierID
	}
	if o.CarrierName != "" {
		t.CarrierName = o.CarrierName
	}
	if o.CarrierVAT != "" {
		t.CarrierVAT = o.CarrierVAT
	}
	if o.StartDate != nil {
		t.StartDate = o.StartDate
	}
	if o.StartTime != "" {
		t.StartTime = o.StartTime
	}
	if o.Note != "" {
		t.Note = o.Note
	}
	return t
}

// DeliveryNote is the transport document of one picking.
type DeliveryNote struct {
	entity.Document
	Transport

	PickingLocalID    string `json:"picking_local_id"`
	OrderLocalID      string `json:"order_local_id"`
	PartnerID         int64  `json:"partner_id"`
	PartnerShippingID *int64 `json:"partner_shipping_id,omitempty"`
	PartnerSenderID   int64  `json:"partner_sender_id"`
	State             string `json:"state"`

	ValidationDate *time.Time `json:"validation_date,omitempty"`
}

// NewDeliveryNote creates a draft delivery note for a picking.
func NewDeliveryNote(agentID int64, agentCode, pickingLocalID, orderLocalID string, partnerID int64) *DeliveryNote {
	return &DeliveryNote{
		Document:       entity.NewDocument(entity.DocTypeDeliveryNote, id.PrefixDDT, agentID, agentCode),
		PickingLocalID: pickingLocalID,
		OrderLocalID:   orderLocalID,
		PartnerID:      partnerID,
		State:          StateDraft,
	}
}

// Validate moves the note to done and stamps the validation date.
func (d *DeliveryNote) Validate() error {
	if err := d.CanModify(); err != nil {
		return err
	}
	if d.State == StateDone {
		return apperror.NewInvalidState(d.DocType, d.State, StateDone)
	}
	now := time.Now().UTC()
	d.State = StateDone
	d.ValidationDate = &now
	d.Touch()
	return nil
}

// StoreKey implements domain.Storable.
func (d *DeliveryNote) StoreKey() string { return d.LocalID }

// StoreIndexes implements domain.Storable.
func (d *DeliveryNote) StoreIndexes() map[string]string {
	return map[string]string{
		domain.IndexSyncStatus:     string(d.SyncStatus),
		domain.IndexPickingLocalID: d.PickingLocalID,
		domain.IndexAgentID:        strconv.FormatInt(d.AgentID, 10),
	}
}
