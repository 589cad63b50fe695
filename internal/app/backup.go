package app

import (
	"context"
	"time"

	"raccolta/internal/infrastructure/backup"
)

// ExportSnapshot collects the counters and every document of the agent.
func (a *App) ExportSnapshot(ctx context.Context) (backup.Snapshot, error) {
	counters, err := a.Counters.Export(ctx)
	if err != nil {
		return backup.Snapshot{}, err
	}
	s := backup.Snapshot{
		Format:     backup.FormatVersion,
		ExportedAt: time.Now().UTC(),
		Counters:   counters,
	}

	orders, err := a.Creator.ListOrders(ctx, "")
	if err != nil {
		return s, err
	}
	s.Orders = orders
	for _, o := range orders {
		pickings, err := a.Creator.PickingsByOrder(ctx, o.LocalID)
		if err != nil {
			return s, err
		}
		s.Pickings = append(s.Pickings, pickings...)
		for _, p := range pickings {
			ddts, err := a.Creator.DeliveryNotesByPicking(ctx, p.LocalID)
			if err != nil {
				return s, err
			}
			s.DeliveryNotes = append(s.DeliveryNotes, ddts...)
		}
	}
	return s, nil
}

// ImportSnapshot restores the counters of s and returns how many changed.
// Documents in s are not restored.
func (a *App) ImportSnapshot(ctx context.Context, s backup.Snapshot) (int, error) {
	n, err := a.Counters.Import(ctx, s.Counters)
	if err != nil {
		return n, err
	}
	a.log.WithContext(ctx).Infow("counters restored", "updated", n, "exported_at", s.ExportedAt)
	return n, nil
}
