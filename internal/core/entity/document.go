package entity

import (
	"slices"
	"time"

	"raccolta/internal/core/apperror"
	"raccolta/internal/core/id"
)

// Document types handled by the agent.
const (
	DocTypeSaleOrder    = "sale_order"
	DocTypeStockPicking = "stock_picking"
	DocTypeDeliveryNote = "stock_delivery_note"
)

// SyncStatus is the replication state of a locally created document.
type SyncStatus string

const (
	SyncPending SyncStatus = "pending"
	SyncSynced  SyncStatus = "synced"
	SyncError   SyncStatus = "error"
)

// Document is the base of Order, Picking and DeliveryNote.
// It is created pending by the document creator and only the sync manager
// moves it to synced or error.
type Document struct {
	BaseDocument

	LocalID  string `json:"local_id"`
	ServerID *int64 `json:"server_id,omitempty"`
	DocType  string `json:"doc_type"`

	// Number is the counter draw; Name is its formatted rendering.
	Number int64  `json:"number"`
	Name   string `json:"name"`

	AgentID   int64  `json:"agent_id"`
	AgentCode string `json:"agent_code"`

	SyncStatus SyncStatus `json:"sync_status"`
	SyncError  string     `json:"sync_error,omitempty"`
	SyncedAt   *time.Time `json:"synced_at,omitempty"`

	// Links holds local IDs of causally dependent documents.
	Links []string `json:"links,omitempty"`
}

// NewDocument creates a pending document with a fresh local ID.
func NewDocument(docType, idPrefix string, agentID int64, agentCode string) Document {
	return Document{
		BaseDocument: NewBaseDocument(),
		LocalID:      id.NewLocal(idPrefix),
		DocType:      docType,
		AgentID:      agentID,
		AgentCode:    agentCode,
		SyncStatus:   SyncPending,
	}
}

// Base returns the embedded document; lets generic code reach common fields.
func (d *Document) Base() *Document {
	return d
}

// IsSynced reports whether the server already owns the document.
func (d *Document) IsSynced() bool {
	return d.SyncStatus == SyncSynced
}

// CanModify rejects changes to synced documents.
func (d *Document) CanModify() error {
	if d.IsSynced() {
		return apperror.NewDocumentSynced(d.DocType, d.LocalID)
	}
	return nil
}

// Link records a dependent document, ignoring duplicates.
func (d *Document) Link(localID string) {
	if localID == "" || slices.Contains(d.Links, localID) {
		return
	}
	d.Links = append(d.Links, localID)
}

// MarkSynced stores the server identifier and clears any previous error.
func (d *Document) MarkSynced(serverID int64, at time.Time) {
	d.ServerID = &serverID
	d.SyncStatus = SyncSynced
	d.SyncError = ""
	at = at.UTC()
	d.SyncedAt = &at
	d.UpdatedAt = at
}

// MarkSyncError escalates the document to the terminal error state.
func (d *Document) MarkSyncError(message string) {
	d.SyncStatus = SyncError
	d.SyncError = message
	d.UpdatedAt = time.Now().UTC()
}

// ResetSync puts an errored document back to pending for a manual retry.
func (d *Document) ResetSync() {
	if d.SyncStatus != SyncError {
		return
	}
	d.SyncStatus = SyncPending
	d.SyncError = ""
	d.UpdatedAt = time.Now().UTC()
}
