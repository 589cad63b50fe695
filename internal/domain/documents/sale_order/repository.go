package sale_order

import (
	"context"
	"strconv"

	"raccolta/internal/core/entity"
	"raccolta/internal/domain"
)

// Repository persists orders in the local store.
type Repository struct {
	*domain.Collection[*Order]
}

// NewRepository binds the orders collection.
func NewRepository(store domain.Store) *Repository {
	return &Repository{Collection: domain.NewCollection[*Order](store, domain.CollectionOrders)}
}

// ListByStatus returns orders in the given sync state.
func (r *Repository) ListByStatus(ctx context.Context, status entity.SyncStatus) ([]*Order, error) {
	return r.FindBy(ctx, domain.IndexSyncStatus, string(status))
}

// ListByAgent returns every order of an agent.
func (r *Repository) ListByAgent(ctx context.Context, agentID int64) ([]*Order, error) {
	return r.FindBy(ctx, domain.IndexAgentID, strconv.FormatInt(agentID, 10))
}
