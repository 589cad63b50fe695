package delivery_note

import (
	"context"

	"raccolta/internal/core/entity"
	"raccolta/internal/domain"
)

// Repository persists delivery notes in the local store.
type Repository struct {
	*domain.Collection[*DeliveryNote]
}

// NewRepository binds the ddts collection.
func NewRepository(store domain.Store) *Repository {
	return &Repository{Collection: domain.NewCollection[*DeliveryNote](store, domain.CollectionDDTs)}
}

// ListByStatus returns delivery notes in the given sync state.
func (r *Repository) ListByStatus(ctx context.Context, status entity.SyncStatus) ([]*DeliveryNote, error) {
	return r.FindBy(ctx, domain.IndexSyncStatus, string(status))
}

// ListByPicking returns the delivery notes of a picking.
func (r *Repository) ListByPicking(ctx context.Context, pickingLocalID string) ([]*DeliveryNote, error) {
	return r.FindBy(ctx, domain.IndexPickingLocalID, pickingLocalID)
}
