package entity

import (
	"context"
	"time"
)

// Validatable is implemented by entities that support self-validation.
// Validation checks internal invariants (without storage access).
type Validatable interface {
	// Validate checks entity invariants.
	// Returns nil if valid, AppError with details otherwise.
	Validate(ctx context.Context) error
}

// BaseDocument carries audit fields shared by every stored document.
type BaseDocument struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Version is incremented on every local modification.
	Version int `json:"version"`
}

// NewBaseDocument creates a BaseDocument stamped with the current time.
func NewBaseDocument() BaseDocument {
	now := time.Now().UTC()
	return BaseDocument{
		CreatedAt: now,
		UpdatedAt: now,
		Version:   1,
	}
}

// Touch updates the UpdatedAt timestamp and increments version.
func (b *BaseDocument) Touch() {
	b.UpdatedAt = time.Now().UTC()
	b.Version++
}
