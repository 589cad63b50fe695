package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"raccolta/internal/core/apperror"
	"raccolta/internal/domain"
	"raccolta/internal/infrastructure/storage/badgerkv"
)

// ErrInjected is the cause of failures produced by Faulty.
var ErrInjected = errors.New("injected storage failure")

// NewMemory opens an in-memory Badger store closed at test end.
func NewMemory(t *testing.T) domain.Store {
	t.Helper()
	s, err := badgerkv.Open(badgerkv.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// Faulty wraps a store and fails saves to selected collections.
type Faulty struct {
	domain.Store

	mu       sync.Mutex
	failSave map[string]bool
}

// NewFaulty wraps inner.
func NewFaulty(inner domain.Store) *Faulty {
	return &Faulty{Store: inner, failSave: make(map[string]bool)}
}

// FailSaves toggles save failures for a collection.
func (f *Faulty) FailSaves(collection string, fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failSave[collection] = fail
}

// Save implements domain.Store.
func (f *Faulty) Save(ctx context.Context, collection string, rec domain.Record) error {
	f.mu.Lock()
	fail := f.failSave[collection]
	f.mu.Unlock()
	if fail {
		return apperror.NewStorage("save", collection, ErrInjected)
	}
	return f.Store.Save(ctx, collection, rec)
}
