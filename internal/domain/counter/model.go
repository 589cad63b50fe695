package counter

import (
	"strconv"
	"time"

	"raccolta/internal/domain"
)

// Counter is the persisted state of one (docType, agent) sequence.
// Value is the last issued number and never decreases.
type Counter struct {
	Key           string    `json:"key"`
	DocType       string    `json:"doc_type"`
	AgentID       int64     `json:"agent_id"`
	Value         int64     `json:"value"`
	ReservedUntil int64     `json:"reserved_until"`
	LastUpdate    time.Time `json:"last_update"`
}

// StoreKey implements domain.Storable.
func (c *Counter) StoreKey() string { return c.Key }

// StoreIndexes implements domain.Storable.
func (c *Counter) StoreIndexes() map[string]string {
	return map[string]string{domain.IndexAgentID: strconv.FormatInt(c.AgentID, 10)}
}

// Merge folds a remote value into the counter: both fields take the maximum.
// Merge is idempotent and never lowers Value.
func (c Counter) Merge(remote ServerCounter) Counter {
	c.Value = max(c.Value, remote.Value)
	c.ReservedUntil = max(c.ReservedUntil, remote.ReservedUntil)
	return c
}

// Stat describes one counter for operators.
type Stat struct {
	DocType       string    `json:"doc_type"`
	Value         int64     `json:"value"`
	ReservedUntil int64     `json:"reserved_until"`
	LastUpdate    time.Time `json:"last_update"`
	HasReserved   bool      `json:"has_reserved"`
	Remaining     int64     `json:"reserved_remaining"`
}

// Validation is the outcome of a number sanity check.
type Validation struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

// Backup is an exported snapshot of one agent's counters.
type Backup struct {
	AgentID    int64     `json:"agent_id"`
	AgentCode  string    `json:"agent_code"`
	ExportedAt time.Time `json:"exported_at"`
	Counters   []Counter `json:"counters"`
}

// --- wire shapes of the counter sync endpoint ---

// CounterPayload is one counter as sent to the server.
type CounterPayload struct {
	Value      int64     `json:"value"`
	AgentID    int64     `json:"agent_id"`
	LastUpdate time.Time `json:"last_update"`
}

// SyncRequest is the outbound counter sync body.
type SyncRequest struct {
	Counters map[string]CounterPayload `json:"counters"`
	AgentID  int64                     `json:"agent_id"`
}

// ServerCounter is the server view of one counter.
type ServerCounter struct {
	Value         int64 `json:"value"`
	ReservedUntil int64 `json:"reserved_until,omitempty"`
}

// SyncResponse is the inbound counter sync body.
type SyncResponse struct {
	Success        bool                     `json:"success"`
	ServerCounters map[string]ServerCounter `json:"server_counters"`
	Error          string                   `json:"error,omitempty"`
}
