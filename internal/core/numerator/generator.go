package numerator

import (
	"context"
)

// Number is one counter draw.
type Number struct {
	Value      int64  `json:"number"`
	Formatted  string `json:"formatted_name"`
	CounterKey string `json:"counter_key"`
}

// Generator issues sequential document numbers for the bound agent.
// Implementations must serialize read-increment-write per counter key.
type Generator interface {
	// GetNextNumber persists value+1 and returns it.
	GetNextNumber(ctx context.Context, docType string) (Number, error)

	// ReserveNumbers advances the counter by count and keeps the block in memory.
	ReserveNumbers(ctx context.Context, docType string, count int64) (ReservedRange, error)

	// GetNextReservedNumber draws from the active reservation.
	// ok is false when no reservation exists or it is exhausted.
	GetNextReservedNumber(ctx context.Context, docType string) (n Number, ok bool)
}

// Draw takes a number with the given strategy. The reserved strategy falls
// back to a persisted draw once the reservation runs out.
func Draw(ctx context.Context, g Generator, docType string, strategy Strategy) (Number, error) {
	if strategy == StrategyReserved {
		if n, ok := g.GetNextReservedNumber(ctx, docType); ok {
			return n, nil
		}
	}
	return g.GetNextNumber(ctx, docType)
}

// ParseStrategy maps a config value to a Strategy; unknown values are strict.
func ParseStrategy(s string) Strategy {
	if s == "reserved" {
		return StrategyReserved
	}
	return StrategyStrict
}
