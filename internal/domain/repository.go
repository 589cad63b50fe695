// Package domain provides the storage contract shared by the agent components.
package domain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"raccolta/internal/core/apperror"
)

// Collections of the local store.
const (
	CollectionOrders    = "orders"
	CollectionPickings  = "pickings"
	CollectionDDTs      = "ddts"
	CollectionCounters  = "counters"
	CollectionSyncQueue = "sync_queue"
	CollectionMeta      = "meta"
)

// Secondary index fields.
const (
	IndexSyncStatus     = "sync_status"
	IndexAgentID        = "agent_id"
	IndexOrderLocalID   = "order_local_id"
	IndexPickingLocalID = "picking_local_id"
	IndexPriority       = "priority"
	IndexDocType        = "doc_type"
)

// ErrNotFound is wrapped by every backend when a key is absent.
var ErrNotFound = errors.New("record not found")

// NotFound builds the error returned by Store.Get for a missing key.
func NotFound(collection, key string) error {
	return apperror.NewNotFound(collection, key).WithCause(ErrNotFound)
}

// Record is one stored value. Data is opaque to the backend; Indexes are
// the secondary lookup fields maintained alongside it.
type Record struct {
	Key       string
	Indexes   map[string]string
	Data      []byte
	UpdatedAt time.Time
}

// Store is the persistent key/value + indexed lookup contract.
// Each Save replaces the whole record atomically, indexes included.
// GetAll and FindByIndex return records ordered by key.
type Store interface {
	Save(ctx context.Context, collection string, rec Record) error
	Get(ctx context.Context, collection, key string) (Record, error)
	GetAll(ctx context.Context, collection string) ([]Record, error)
	FindByIndex(ctx context.Context, collection, field, value string) ([]Record, error)
	Delete(ctx context.Context, collection, key string) error
	Clear(ctx context.Context, collection string) error

	// Backend names the active implementation ("sqlite", "badger").
	Backend() string
	Close() error
}

// Storable is implemented by values kept in a Collection.
type Storable interface {
	StoreKey() string
	StoreIndexes() map[string]string
}

// Collection gives typed JSON access to one store collection.
type Collection[T Storable] struct {
	store Store
	name  string
}

// NewCollection binds a typed view to a collection name.
func NewCollection[T Storable](store Store, name string) *Collection[T] {
	return &Collection[T]{store: store, name: name}
}

// Name returns the collection name.
func (c *Collection[T]) Name() string {
	return c.name
}

// Save encodes v and stores it under v.StoreKey().
func (c *Collection[T]) Save(ctx context.Context, v T) error {
	data, err := json.Marshal(v)
	if err != nil {
		return apperror.NewInternal(fmt.Errorf("encode %s: %w", c.name, err))
	}
	return c.store.Save(ctx, c.name, Record{
		Key:       v.StoreKey(),
		Indexes:   v.StoreIndexes(),
		Data:      data,
		UpdatedAt: time.Now().UTC(),
	})
}

// Get loads one value; a missing key yields an error matching ErrNotFound.
func (c *Collection[T]) Get(ctx context.Context, key string) (T, error) {
	var zero T
	rec, err := c.store.Get(ctx, c.name, key)
	if err != nil {
		return zero, err
	}
	return c.decode(rec)
}

// All returns every value of the collection.
func (c *Collection[T]) All(ctx context.Context) ([]T, error) {
	recs, err := c.store.GetAll(ctx, c.name)
	if err != nil {
		return nil, err
	}
	return c.decodeAll(recs)
}

// FindBy returns values whose index field equals value.
func (c *Collection[T]) FindBy(ctx context.Context, field, value string) ([]T, error) {
	recs, err := c.store.FindByIndex(ctx, c.name, field, value)
	if err != nil {
		return nil, err
	}
	return c.decodeAll(recs)
}

// Delete removes a key; deleting a missing key is not an error.
func (c *Collection[T]) Delete(ctx context.Context, key string) error {
	return c.store.Delete(ctx, c.name, key)
}

// Clear removes every value of the collection.
func (c *Collection[T]) Clear(ctx context.Context) error {
	return c.store.Clear(ctx, c.name)
}

func (c *Collection[T]) decode(rec Record) (T, error) {
	var v T
	if err := json.Unmarshal(rec.Data, &v); err != nil {
		return v, apperror.NewInternal(fmt.Errorf("decode %s/%s: %w", c.name, rec.Key, err))
	}
	return v, nil
}

func (c *Collection[T]) decodeAll(recs []Record) ([]T, error) {
	out := make([]T, 0, len(recs))
	for _, rec := range recs {
		v, err := c.decode(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
