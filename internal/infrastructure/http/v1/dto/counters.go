package dto

import (
	"raccolta/internal/core/numerator"
	"raccolta/internal/domain/counter"
)

// ReserveRequest asks for a block of numbers; zero means the default size.
type ReserveRequest struct {
	Count int64 `json:"count" binding:"gte=0,lte=1000"`
}

// ReserveResponse describes a reserved block.
type ReserveResponse struct {
	DocType string `json:"doc_type"`
	Start   int64  `json:"start"`
	End     int64  `json:"end"`
	First   string `json:"first"`
	Last    string `json:"last"`
}

// NewReserveResponse renders the bounds of r as document names.
func NewReserveResponse(docType string, r numerator.ReservedRange, format func(string, int64) string) ReserveResponse {
	return ReserveResponse{
		DocType: docType,
		Start:   r.Start,
		End:     r.End,
		First:   format(docType, r.Start),
		Last:    format(docType, r.End),
	}
}

// CountersResponse lists counter state per document type.
type CountersResponse struct {
	AgentID   int64                   `json:"agent_id"`
	AgentCode string                  `json:"agent_code"`
	Counters  map[string]counter.Stat `json:"counters"`
}
