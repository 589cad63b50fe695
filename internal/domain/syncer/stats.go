package syncer

import (
	"context"
	"errors"
	"math"
	"time"

	"raccolta/internal/core/entity"
	"raccolta/internal/domain"
)

const metaLastSync = "last_sync"

type metaEntry struct {
	Key  string    `json:"key"`
	Time time.Time `json:"time"`
}

func (e *metaEntry) StoreKey() string                { return e.Key }
func (e *metaEntry) StoreIndexes() map[string]string { return nil }

func (m *Manager) setLastSync(ctx context.Context, at time.Time) error {
	return m.meta.Save(ctx, &metaEntry{Key: metaLastSync, Time: at.UTC()})
}

// LastSync returns the end of the last completed pending pass, if any.
func (m *Manager) LastSync(ctx context.Context) (*time.Time, error) {
	e, err := m.meta.Get(ctx, metaLastSync)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e.Time, nil
}

// TypeStats counts documents of one type by sync state.
type TypeStats struct {
	Total   int `json:"total"`
	Pending int `json:"pending"`
	Synced  int `json:"synced"`
	Errors  int `json:"errors"`
}

func (s *TypeStats) count(status entity.SyncStatus) {
	s.Total++
	switch status {
	case entity.SyncPending:
		s.Pending++
	case entity.SyncSynced:
		s.Synced++
	case entity.SyncError:
		s.Errors++
	}
}

// Stats is the sync dashboard. The order-level totals mirror Orders and
// SyncPercentage is the rounded share of synced orders.
type Stats struct {
	TotalOrders    int        `json:"total_orders"`
	PendingSync    int        `json:"pending_sync"`
	Synced         int        `json:"synced"`
	Errors         int        `json:"errors"`
	SyncPercentage int        `json:"sync_percentage"`
	Orders         TypeStats  `json:"orders"`
	Pickings       TypeStats  `json:"pickings"`
	DeliveryNotes  TypeStats  `json:"ddts"`
	QueueLength    int        `json:"queue_length"`
	LastSync       *time.Time `json:"last_sync,omitempty"`
	IsSyncing      bool       `json:"is_syncing"`
	IsOnline       bool       `json:"is_online"`
}

// GetSyncStats reads counts from the store.
func (m *Manager) GetSyncStats(ctx context.Context) (Stats, error) {
	st := Stats{IsSyncing: m.IsSyncing(), IsOnline: m.IsOnline()}

	orders, err := m.orders.All(ctx)
	if err != nil {
		return st, err
	}
	for _, o := range orders {
		st.Orders.count(o.SyncStatus)
	}
	pickings, err := m.pickings.All(ctx)
	if err != nil {
		return st, err
	}
	for _, p := range pickings {
		st.Pickings.count(p.SyncStatus)
	}
	ddts, err := m.ddts.All(ctx)
	if err != nil {
		return st, err
	}
	for _, d := range ddts {
		st.DeliveryNotes.count(d.SyncStatus)
	}

	st.TotalOrders = st.Orders.Total
	st.PendingSync = st.Orders.Pending
	st.Synced = st.Orders.Synced
	st.Errors = st.Orders.Errors
	if st.TotalOrders > 0 {
		st.SyncPercentage = int(math.Round(float64(st.Synced) / float64(st.TotalOrders) * 100))
	}

	if st.QueueLength, err = m.queueLength(ctx); err != nil {
		return st, err
	}
	if st.LastSync, err = m.LastSync(ctx); err != nil {
		return st, err
	}
	return st, nil
}

// RetryFailed puts every errored document back to pending so the next
// pass picks it up again. Returns how many were reset.
func (m *Manager) RetryFailed(ctx context.Context) (int, error) {
	reset := 0

	orders, err := m.orders.ListByStatus(ctx, entity.SyncError)
	if err != nil {
		return reset, err
	}
	for _, o := range orders {
		o.ResetSync()
		if err := m.orders.Save(ctx, o); err != nil {
			return reset, err
		}
		reset++
	}

	pickings, err := m.pickings.ListByStatus(ctx, entity.SyncError)
	if err != nil {
		return reset, err
	}
	for _, p := range pickings {
		p.ResetSync()
		if err := m.pickings.Save(ctx, p); err != nil {
			return reset, err
		}
		reset++
	}

	ddts, err := m.ddts.ListByStatus(ctx, entity.SyncError)
	if err != nil {
		return reset, err
	}
	for _, d := range ddts {
		d.ResetSync()
		if err := m.ddts.Save(ctx, d); err != nil {
			return reset, err
		}
		reset++
	}

	if reset > 0 {
		m.log.WithContext(ctx).Infow("failed documents reset to pending", "count", reset)
	}
	return reset, nil
}

// CleanupSyncData drops queue items whose document is gone or no longer
// pending, then deletes documents synced more than days ago.
func (m *Manager) CleanupSyncData(ctx context.Context, days int) (int, error) {
	items, err := m.queue.All(ctx)
	if err != nil {
		return 0, err
	}
	for _, item := range items {
		var getErr error
		var doc syncable
		switch item.DocType {
		case entity.DocTypeSaleOrder:
			doc, getErr = m.orders.Get(ctx, item.LocalID)
		case entity.DocTypeStockPicking:
			doc, getErr = m.pickings.Get(ctx, item.LocalID)
		case entity.DocTypeDeliveryNote:
			doc, getErr = m.ddts.Get(ctx, item.LocalID)
		default:
			getErr = domain.ErrNotFound
		}
		if _, err := m.stale(ctx, item, getErr, doc); err != nil {
			return 0, err
		}
	}

	if m.cleaner == nil {
		return 0, nil
	}
	cutoff := m.now().AddDate(0, 0, -days)
	return m.cleaner.CleanupSynced(ctx, cutoff)
}
