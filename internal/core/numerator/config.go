// Package numerator provides domain contracts for document auto-numbering.
package numerator

import (
	"fmt"
	"strings"
)

// Strategy defines how a number is drawn.
type Strategy int

const (
	// StrategyStrict persists the counter on every draw.
	// No gaps, no reuse, one storage write per number.
	StrategyStrict Strategy = iota

	// StrategyReserved draws from an in-memory range persisted up front.
	// Unused headroom is lost on crash, leaving a gap.
	StrategyReserved
)

// DefaultPadWidth is the minimum width of the numeric part.
const DefaultPadWidth = 3

// DefaultReserveCount is used when a reservation asks for zero numbers.
const DefaultReserveCount = 10

// MaxReserveCount caps a single reservation.
const MaxReserveCount = 1000

var prefixes = map[string]string{
	"sale_order":          "RO",
	"stock_picking":       "PICK",
	"stock_delivery_note": "DDT",
	"purchase_order":      "PO",
	"account_move":        "INV",
}

// Prefix returns the name prefix of a document type.
// Unmapped types use the upper-cased type name.
func Prefix(docType string) string {
	if p, ok := prefixes[docType]; ok {
		return p
	}
	return strings.ToUpper(docType)
}

// FormatName renders "PREFIX/AGENTCODE/NNN". Numbers wider than three
// digits widen the field, they are never truncated.
func FormatName(docType, agentCode string, number int64) string {
	return fmt.Sprintf("%s/%s/%0*d", Prefix(docType), agentCode, DefaultPadWidth, number)
}

// CounterKey builds the storage key of a (docType, agent) counter.
func CounterKey(docType string, agentID int64) string {
	return fmt.Sprintf("%s_%d", docType, agentID)
}
