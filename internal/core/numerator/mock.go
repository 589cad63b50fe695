package numerator

import (
	"context"
	"sync"
)

// MockGenerator is a test implementation of Generator.
// Without overrides it hands out 1, 2, 3... per document type.
type MockGenerator struct {
	AgentCode string

	GetNextNumberFunc func(ctx context.Context, docType string) (Number, error)

	mu   sync.Mutex
	next map[string]int64
}

// GetNextNumber implements Generator.
func (m *MockGenerator) GetNextNumber(ctx context.Context, docType string) (Number, error) {
	if m.GetNextNumberFunc != nil {
		return m.GetNextNumberFunc(ctx, docType)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.next == nil {
		m.next = make(map[string]int64)
	}
	m.next[docType]++
	v := m.next[docType]
	return Number{Value: v, Formatted: FormatName(docType, m.AgentCode, v), CounterKey: docType}, nil
}

// ReserveNumbers implements Generator. Mock reservations are empty.
func (m *MockGenerator) ReserveNumbers(ctx context.Context, docType string, count int64) (ReservedRange, error) {
	return ReservedRange{Start: 1, End: 0, Current: 1}, nil
}

// GetNextReservedNumber implements Generator.
func (m *MockGenerator) GetNextReservedNumber(ctx context.Context, docType string) (Number, bool) {
	return Number{}, false
}

// Ensure compile-time interface compliance.
var _ Generator = (*MockGenerator)(nil)
