package documents

import (
	"raccolta/internal/core/numerator"
	"raccolta/internal/core/types"
	"raccolta/internal/domain/documents/delivery_note"
	"raccolta/internal/domain/documents/stock_picking"
)

// Config holds the document creation defaults.
type Config struct {
	AgentID   int64
	AgentCode string
	AgentName string
	SessionID string

	TaxRate      types.Money
	ValidityDays int

	Location     string
	LocationDest string

	// CompanyPartnerID is the sender of every delivery note.
	CompanyPartnerID int64
	Transport        delivery_note.Transport

	Numbering numerator.Strategy
}

// DefaultConfig returns the defaults of a new agent installation.
func DefaultConfig(agentID int64) Config {
	return Config{
		AgentID:          agentID,
		TaxRate:          types.MustMoney("0.22"),
		ValidityDays:     30,
		Location:         stock_picking.DefaultLocation,
		LocationDest:     stock_picking.DefaultLocationDest,
		CompanyPartnerID: 1,
		Transport:        delivery_note.DefaultTransport(),
		Numbering:        numerator.StrategyStrict,
	}
}
