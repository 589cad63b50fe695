// Package tx declares the transaction contract the sync server storage
// depends on.
package tx

import "context"

// Manager runs fn in a transaction carried by ctx: committed when fn
// returns nil, rolled back otherwise. A call made inside fn joins the
// outer transaction.
type Manager interface {
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// ReadOnlyManager adds read-only transactions for listing queries.
type ReadOnlyManager interface {
	Manager
	ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error
}
