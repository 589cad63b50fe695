package syncer

import (
	"cmp"
	"slices"
	"time"

	"raccolta/internal/core/entity"
	"raccolta/internal/domain"
	"raccolta/internal/domain/documents/delivery_note"
	"raccolta/internal/domain/documents/sale_order"
	"raccolta/internal/domain/documents/stock_picking"
)

// Priority orders retry work; orders drain before their dependants.
type Priority string

const (
	PriorityHigh   Priority = sale_order.SyncPriority
	PriorityNormal Priority = stock_picking.SyncPriority
	PriorityLow    Priority = delivery_note.SyncPriority
)

func (p Priority) rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityNormal:
		return 1
	default:
		return 2
	}
}

// PriorityOf maps a document type to its queue priority.
func PriorityOf(docType string) Priority {
	switch docType {
	case entity.DocTypeSaleOrder:
		return PriorityHigh
	case entity.DocTypeStockPicking:
		return PriorityNormal
	default:
		return PriorityLow
	}
}

// QueueItem tracks retries of one document. The document itself is the
// payload; it is re-read by local ID on every attempt so retries always
// send its latest state.
type QueueItem struct {
	LocalID     string    `json:"local_id"`
	DocType     string    `json:"doc_type"`
	Priority    Priority  `json:"priority"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Attempts    int       `json:"attempts"`
	MaxAttempts int       `json:"max_attempts"`
	LastError   string    `json:"last_error,omitempty"`
}

// StoreKey implements domain.Storable.
func (q *QueueItem) StoreKey() string { return q.LocalID }

// StoreIndexes implements domain.Storable.
func (q *QueueItem) StoreIndexes() map[string]string {
	return map[string]string{
		domain.IndexPriority: string(q.Priority),
		domain.IndexDocType:  q.DocType,
	}
}

// Exhausted reports whether no automatic attempt is left.
func (q *QueueItem) Exhausted() bool {
	return q.Attempts >= q.MaxAttempts
}

func sortQueue(items []*QueueItem) {
	slices.SortStableFunc(items, func(a, b *QueueItem) int {
		if c := cmp.Compare(a.Priority.rank(), b.Priority.rank()); c != 0 {
			return c
		}
		return a.CreatedAt.Compare(b.CreatedAt)
	})
}
