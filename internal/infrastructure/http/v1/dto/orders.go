package dto

import (
	"raccolta/internal/core/entity"
	"raccolta/internal/domain/documents"
)

// ListOrdersQuery filters GET /orders. An empty status lists every order
// of the agent.
type ListOrdersQuery struct {
	Status string `form:"status" binding:"omitempty,oneof=pending synced error"`
}

// SyncStatus returns the filter as a domain value.
func (q ListOrdersQuery) SyncStatus() entity.SyncStatus {
	return entity.SyncStatus(q.Status)
}

// ChainResponse is the result of create and duplicate.
type ChainResponse struct {
	*documents.CompleteOrder
	Success bool `json:"success"`
}
