package stock_picking

import (
	"context"

	"raccolta/internal/core/entity"
	"raccolta/internal/domain"
)

// Repository persists pickings in the local store.
type Repository struct {
	*domain.Collection[*Picking]
}

// NewRepository binds the pickings collection.
func NewRepository(store domain.Store) *Repository {
	return &Repository{Collection: domain.NewCollection[*Picking](store, domain.CollectionPickings)}
}

// ListByStatus returns pickings in the given sync state.
func (r *Repository) ListByStatus(ctx context.Context, status entity.SyncStatus) ([]*Picking, error) {
	return r.FindBy(ctx, domain.IndexSyncStatus, string(status))
}

// ListByOrder returns the pickings generated for an order.
func (r *Repository) ListByOrder(ctx context.Context, orderLocalID string) ([]*Picking, error) {
	return r.FindBy(ctx, domain.IndexOrderLocalID, orderLocalID)
}
