package syncer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"raccolta/internal/core/apperror"
	"raccolta/internal/core/entity"
	"raccolta/internal/core/numerator"
	"raccolta/internal/core/types"
	"raccolta/internal/domain"
	"raccolta/internal/domain/documents"
	"raccolta/internal/domain/documents/delivery_note"
	"raccolta/internal/domain/documents/sale_order"
	"raccolta/internal/domain/documents/stock_picking"
	"raccolta/internal/infrastructure/storage/storetest"
	"raccolta/pkg/logger"
)

type fakeRemote struct {
	mu      sync.Mutex
	calls   map[string]int
	failFor map[string]int
	nextID  int64
	reject  bool

	entered chan struct{}
	release chan struct{}
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{calls: make(map[string]int), failFor: make(map[string]int)}
}

func (f *fakeRemote) failFirst(localID string, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failFor[localID] = n
}

func (f *fakeRemote) callsFor(localID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[localID]
}

func (f *fakeRemote) respond(localID string) (DocumentResponse, error) {
	if f.entered != nil {
		select {
		case f.entered <- struct{}{}:
		default:
		}
		<-f.release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[localID]++
	if f.calls[localID] <= f.failFor[localID] {
		return DocumentResponse{}, errors.New("connection refused")
	}
	if f.reject {
		return DocumentResponse{Success: false, Error: "partner missing"}, nil
	}
	f.nextID++
	return DocumentResponse{Success: true, OdooID: f.nextID}, nil
}

func (f *fakeRemote) SyncOrder(_ context.Context, req OrderRequest) (DocumentResponse, error) {
	return f.respond(req.LocalID)
}

func (f *fakeRemote) SyncPicking(_ context.Context, req PickingRequest) (DocumentResponse, error) {
	return f.respond(req.LocalID)
}

func (f *fakeRemote) SyncDeliveryNote(_ context.Context, req DeliveryNoteRequest) (DocumentResponse, error) {
	return f.respond(req.LocalID)
}

type fakeCounters struct {
	calls int
	err   error
}

func (f *fakeCounters) SyncWithServer(context.Context) (int, error) {
	f.calls++
	return 0, f.err
}

type fixture struct {
	store    domain.Store
	remote   *fakeRemote
	counters *fakeCounters
	creator  *documents.Creator
	manager  *Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWith(t, Config{MaxAttempts: 3})
}

func newFixtureWith(t *testing.T, cfg Config) *fixture {
	t.Helper()
	store := storetest.NewMemory(t)
	orders := sale_order.NewRepository(store)
	pickings := stock_picking.NewRepository(store)
	ddts := delivery_note.NewRepository(store)
	creator := documents.NewCreator(&numerator.MockGenerator{AgentCode: "AG007"}, orders, pickings, ddts, documents.DefaultConfig(7))

	f := &fixture{store: store, remote: newFakeRemote(), counters: &fakeCounters{}, creator: creator}
	f.manager = NewManager(store, orders, pickings, ddts, f.remote, cfg,
		WithCounters(f.counters),
		WithCleaner(creator),
		WithLogger(logger.NewNop()),
	)
	return f
}

func (f *fixture) createOrder(t *testing.T) *documents.CompleteOrder {
	t.Helper()
	co, err := f.creator.CreateCompleteOrder(testContext(), documents.OrderInput{
		PartnerID: 42,
		Products: []documents.ProductInput{
			{ID: 1, Quantity: types.NewQuantityFromInt(2), PriceUnit: types.MustMoney("10")},
		},
	})
	require.NoError(t, err)
	return co
}

func (f *fixture) queueItem(t *testing.T, localID string) (*QueueItem, bool) {
	t.Helper()
	item, err := f.manager.queue.Get(testContext(), localID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, false
	}
	require.NoError(t, err)
	return item, true
}

func testContext() context.Context {
	return logger.WithLogger(context.Background(), logger.NewNop())
}

func TestSyncPendingDataSyncsWholeChain(t *testing.T) {
	f := newFixture(t)
	co := f.createOrder(t)
	ctx := testContext()

	res, err := f.manager.SyncPendingData(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Synced)
	assert.Zero(t, res.Errors)
	assert.Equal(t, CategoryResult{Synced: 1}, res.Details[CategoryOrders])
	assert.Equal(t, CategoryResult{Synced: 1}, res.Details[CategoryPickings])
	assert.Equal(t, CategoryResult{Synced: 1}, res.Details[CategoryDeliveryNotes])
	assert.Equal(t, CategoryResult{Synced: 1}, res.Details[CategoryCounters])

	o, err := f.creator.GetOrder(ctx, co.Order.LocalID)
	require.NoError(t, err)
	assert.Equal(t, entity.SyncSynced, o.SyncStatus)
	require.NotNil(t, o.ServerID)
	assert.Equal(t, int64(1), *o.ServerID)
	assert.NotNil(t, o.SyncedAt)

	p, err := f.creator.GetPicking(ctx, co.Picking.LocalID)
	require.NoError(t, err)
	assert.Equal(t, entity.SyncSynced, p.SyncStatus)

	d, err := f.creator.GetDeliveryNote(ctx, co.DeliveryNote.LocalID)
	require.NoError(t, err)
	assert.Equal(t, entity.SyncSynced, d.SyncStatus)

	last, err := f.manager.LastSync(ctx)
	require.NoError(t, err)
	assert.NotNil(t, last)

	// Nothing left to send.
	res, err = f.manager.SyncPendingData(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Synced)
	assert.Equal(t, 1, f.remote.callsFor(co.Order.LocalID))
}

func TestFailureEscalatesAfterMaxAttempts(t *testing.T) {
	f := newFixture(t)
	co := f.createOrder(t)
	id := co.Order.LocalID
	f.remote.failFirst(id, 100)
	ctx := testContext()

	res, err := f.manager.SyncPendingData(ctx)
	require.NoError(t, err)
	assert.Equal(t, CategoryResult{Errors: 1}, res.Details[CategoryOrders])
	assert.Equal(t, CategoryResult{Synced: 1}, res.Details[CategoryPickings])

	item, ok := f.queueItem(t, id)
	require.True(t, ok)
	assert.Equal(t, 1, item.Attempts)
	assert.Equal(t, PriorityHigh, item.Priority)

	_, err = f.manager.ProcessRetryQueue(ctx)
	require.NoError(t, err)
	item, ok = f.queueItem(t, id)
	require.True(t, ok)
	assert.Equal(t, 2, item.Attempts)

	o, err := f.creator.GetOrder(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, entity.SyncPending, o.SyncStatus)

	_, err = f.manager.ProcessRetryQueue(ctx)
	require.NoError(t, err)
	_, ok = f.queueItem(t, id)
	assert.False(t, ok)

	o, err = f.creator.GetOrder(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, entity.SyncError, o.SyncStatus)
	assert.Equal(t, "connection refused", o.SyncError)
	assert.Equal(t, 3, f.remote.callsFor(id))

	// Terminal: no further automatic attempts.
	_, err = f.manager.ProcessRetryQueue(ctx)
	require.NoError(t, err)
	_, err = f.manager.SyncPendingData(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, f.remote.callsFor(id))
}

func TestRecoveryBeforeMaxAttempts(t *testing.T) {
	f := newFixture(t)
	co := f.createOrder(t)
	id := co.Order.LocalID
	f.remote.failFirst(id, 2)
	ctx := testContext()

	_, err := f.manager.SyncPendingData(ctx)
	require.NoError(t, err)
	_, err = f.manager.ProcessRetryQueue(ctx)
	require.NoError(t, err)

	res, err := f.manager.ProcessRetryQueue(ctx)
	require.NoError(t, err)
	assert.Equal(t, CategoryResult{Synced: 1}, res.Details[CategoryOrders])

	o, err := f.creator.GetOrder(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, entity.SyncSynced, o.SyncStatus)
	assert.Empty(t, o.SyncError)
	_, ok := f.queueItem(t, id)
	assert.False(t, ok)
}

func TestSyncPendingSkipsQueuedDocuments(t *testing.T) {
	f := newFixture(t)
	co := f.createOrder(t)
	id := co.Order.LocalID
	f.remote.failFirst(id, 1)
	ctx := testContext()

	_, err := f.manager.SyncPendingData(ctx)
	require.NoError(t, err)
	_, err = f.manager.SyncPendingData(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, f.remote.callsFor(id))
	item, ok := f.queueItem(t, id)
	require.True(t, ok)
	assert.Equal(t, 1, item.Attempts)
}

func TestSyncNowRetriesQueuedThenPushesPending(t *testing.T) {
	f := newFixture(t)
	first := f.createOrder(t)
	f.remote.failFirst(first.Order.LocalID, 1)
	ctx := testContext()

	_, err := f.manager.SyncPendingData(ctx)
	require.NoError(t, err)
	_, queued := f.queueItem(t, first.Order.LocalID)
	require.True(t, queued)

	second := f.createOrder(t)
	res, err := f.manager.SyncNow(ctx)
	require.NoError(t, err)
	assert.Equal(t, CategoryResult{Synced: 2}, res.Details[CategoryOrders])
	assert.Equal(t, CategoryResult{Synced: 1}, res.Details[CategoryPickings])
	assert.Equal(t, CategoryResult{Synced: 1}, res.Details[CategoryDeliveryNotes])
	assert.Equal(t, CategoryResult{Synced: 1}, res.Details[CategoryCounters])
	assert.Equal(t, 5, res.Synced)

	for _, id := range []string{first.Order.LocalID, second.Order.LocalID} {
		o, err := f.creator.GetOrder(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, entity.SyncSynced, o.SyncStatus)
	}
	assert.Equal(t, 2, f.remote.callsFor(first.Order.LocalID))
	_, queued = f.queueItem(t, first.Order.LocalID)
	assert.False(t, queued)
}

func TestSyncNowRefusedWhileOffline(t *testing.T) {
	f := newFixture(t)
	f.createOrder(t)
	f.manager.HandleNetworkChange(false)

	_, err := f.manager.SyncNow(testContext())
	assert.True(t, apperror.HasCode(err, apperror.CodeOffline), "%v", err)
}

func TestTimerRetriesUntilErrorAndStopsWhenOffline(t *testing.T) {
	f := newFixtureWith(t, Config{MaxAttempts: 3, Interval: 20 * time.Millisecond})
	failing := f.createOrder(t)
	id := failing.Order.LocalID
	f.remote.failFirst(id, 100)

	ctx, cancel := context.WithCancel(testContext())
	defer cancel()
	f.manager.Start(ctx)
	defer f.manager.Stop()

	require.Eventually(t, func() bool {
		o, err := f.creator.GetOrder(testContext(), id)
		return err == nil && o.SyncStatus == entity.SyncError
	}, 5*time.Second, 10*time.Millisecond)

	// Several more intervals: the errored document is not retried.
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, 3, f.remote.callsFor(id))

	f.manager.HandleNetworkChange(false)
	require.Eventually(t, func() bool { return !f.manager.IsSyncing() }, time.Second, 5*time.Millisecond)

	later := f.createOrder(t)
	time.Sleep(150 * time.Millisecond)
	assert.Zero(t, f.remote.callsFor(later.Order.LocalID))

	o, err := f.creator.GetOrder(testContext(), later.Order.LocalID)
	require.NoError(t, err)
	assert.Equal(t, entity.SyncPending, o.SyncStatus)
}

func TestStopRacesReconnectTrigger(t *testing.T) {
	for i := 0; i < 20; i++ {
		f := newFixture(t)
		ctx, cancel := context.WithCancel(testContext())
		f.manager.Start(ctx)
		f.manager.HandleNetworkChange(false)

		done := make(chan struct{})
		go func() {
			f.manager.HandleNetworkChange(true)
			close(done)
		}()
		f.manager.Stop()
		<-done
		// Either Stop waited for the triggered pass or the trigger saw no context.
		assert.False(t, f.manager.IsSyncing())
		cancel()
	}
}

func TestRejectedResponseCountsAsFailure(t *testing.T) {
	f := newFixture(t)
	co := f.createOrder(t)
	f.remote.reject = true

	res, err := f.manager.SyncPendingData(testContext())
	require.NoError(t, err)
	assert.Equal(t, 3, res.Details[CategoryOrders].Errors+res.Details[CategoryPickings].Errors+res.Details[CategoryDeliveryNotes].Errors)

	item, ok := f.queueItem(t, co.DeliveryNote.LocalID)
	require.True(t, ok)
	assert.Equal(t, "partner missing", item.LastError)
	assert.Equal(t, PriorityLow, item.Priority)
}

func TestSingleFlight(t *testing.T) {
	f := newFixture(t)
	f.createOrder(t)
	f.remote.entered = make(chan struct{}, 1)
	f.remote.release = make(chan struct{})
	ctx := testContext()

	done := make(chan error, 1)
	go func() {
		_, err := f.manager.SyncPendingData(ctx)
		done <- err
	}()

	select {
	case <-f.remote.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("sync pass did not reach the remote")
	}
	assert.True(t, f.manager.IsSyncing())

	_, err := f.manager.SyncPendingData(ctx)
	assert.True(t, apperror.HasCode(err, apperror.CodeSyncRunning))
	_, err = f.manager.ProcessRetryQueue(ctx)
	assert.True(t, apperror.HasCode(err, apperror.CodeSyncRunning))

	close(f.remote.release)
	require.NoError(t, <-done)
	assert.False(t, f.manager.IsSyncing())
}

func TestForceSyncAllClearsQueue(t *testing.T) {
	f := newFixture(t)
	co := f.createOrder(t)
	id := co.Order.LocalID
	f.remote.failFirst(id, 1)
	ctx := testContext()

	_, err := f.manager.SyncPendingData(ctx)
	require.NoError(t, err)
	_, ok := f.queueItem(t, id)
	require.True(t, ok)

	res, err := f.manager.ForceSyncAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, CategoryResult{Synced: 1}, res.Details[CategoryOrders])
	_, ok = f.queueItem(t, id)
	assert.False(t, ok)
}

func TestOfflineRefusesSync(t *testing.T) {
	f := newFixture(t)
	f.createOrder(t)
	events, unsubscribe := f.manager.Subscribe()
	defer unsubscribe()

	f.manager.HandleNetworkChange(false)
	assert.False(t, f.manager.IsOnline())
	assert.Equal(t, EventOffline, (<-events).Type)

	_, err := f.manager.SyncPendingData(testContext())
	assert.True(t, apperror.HasCode(err, apperror.CodeOffline))
}

func TestRetryFailedResetsErroredDocuments(t *testing.T) {
	f := newFixture(t)
	co := f.createOrder(t)
	id := co.Order.LocalID
	f.remote.failFirst(id, 3)
	ctx := testContext()

	_, err := f.manager.SyncPendingData(ctx)
	require.NoError(t, err)
	for range 2 {
		_, err = f.manager.ProcessRetryQueue(ctx)
		require.NoError(t, err)
	}

	n, err := f.manager.RetryFailed(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = f.manager.SyncPendingData(ctx)
	require.NoError(t, err)
	o, err := f.creator.GetOrder(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, entity.SyncSynced, o.SyncStatus)
	assert.Equal(t, 4, f.remote.callsFor(id))
}

func TestGetSyncStats(t *testing.T) {
	f := newFixture(t)
	first := f.createOrder(t)
	f.createOrder(t)
	f.remote.failFirst(first.Order.LocalID, 1)
	ctx := testContext()

	st, err := f.manager.GetSyncStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, st.TotalOrders)
	assert.Equal(t, 2, st.PendingSync)
	assert.Zero(t, st.SyncPercentage)
	assert.Nil(t, st.LastSync)
	assert.True(t, st.IsOnline)

	_, err = f.manager.SyncPendingData(ctx)
	require.NoError(t, err)

	st, err = f.manager.GetSyncStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Synced)
	assert.Equal(t, 1, st.PendingSync)
	assert.Equal(t, 50, st.SyncPercentage)
	assert.Equal(t, 1, st.QueueLength)
	assert.Equal(t, TypeStats{Total: 2, Synced: 2}, st.Pickings)
	assert.NotNil(t, st.LastSync)
}

func TestEventsReportProgressAndCompletion(t *testing.T) {
	f := newFixture(t)
	f.createOrder(t)
	events, unsubscribe := f.manager.Subscribe()
	defer unsubscribe()

	_, err := f.manager.SyncPendingData(testContext())
	require.NoError(t, err)

	var got []Event
	for range 5 {
		got = append(got, <-events)
	}
	for i := range 4 {
		assert.Equal(t, EventProgress, got[i].Type)
		assert.Equal(t, i+1, got[i].Current)
		assert.Equal(t, 4, got[i].Total)
	}
	assert.Equal(t, EventCompleted, got[4].Type)
	assert.Equal(t, 4, got[4].Synced)
	assert.Len(t, got[4].Details, 4)
}

func TestCounterFailureIsCounted(t *testing.T) {
	f := newFixture(t)
	f.counters.err = apperror.NewOffline()

	res, err := f.manager.SyncPendingData(testContext())
	require.NoError(t, err)
	assert.Equal(t, CategoryResult{Errors: 1}, res.Details[CategoryCounters])
	assert.Equal(t, 1, f.counters.calls)
}

func TestCleanupSyncDataDropsStaleItems(t *testing.T) {
	f := newFixture(t)
	co := f.createOrder(t)
	f.remote.reject = true
	ctx := testContext()

	_, err := f.manager.SyncPendingData(ctx)
	require.NoError(t, err)
	require.NoError(t, f.creator.DeleteCompleteOrder(ctx, co.Order.LocalID))

	removed, err := f.manager.CleanupSyncData(ctx, 7)
	require.NoError(t, err)
	assert.Zero(t, removed)

	items, err := f.manager.queue.All(ctx)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestBackOnlineTriggersPass(t *testing.T) {
	f := newFixture(t)
	f.createOrder(t)
	events, unsubscribe := f.manager.Subscribe()
	defer unsubscribe()

	ctx, cancel := context.WithCancel(testContext())
	defer cancel()
	f.manager.Start(ctx)
	defer f.manager.Stop()

	f.manager.HandleNetworkChange(false)
	f.manager.HandleNetworkChange(true)

	timeout := time.After(5 * time.Second)
	for {
		select {
		case e := <-events:
			if e.Type == EventCompleted && e.Details[CategoryOrders].Synced == 1 {
				return
			}
		case <-timeout:
			t.Fatal("no sync pass after reconnect")
		}
	}
}

func TestSortQueue(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	items := []*QueueItem{
		{LocalID: "ddt", Priority: PriorityLow, CreatedAt: t0},
		{LocalID: "order-late", Priority: PriorityHigh, CreatedAt: t0.Add(time.Minute)},
		{LocalID: "picking", Priority: PriorityNormal, CreatedAt: t0},
		{LocalID: "order-early", Priority: PriorityHigh, CreatedAt: t0},
	}
	sortQueue(items)

	var ids []string
	for _, it := range items {
		ids = append(ids, it.LocalID)
	}
	assert.Equal(t, []string{"order-early", "order-late", "picking", "ddt"}, ids)
}

func TestDocumentResponseID(t *testing.T) {
	assert.Equal(t, int64(5), DocumentResponse{ServerID: 5, OdooID: 9}.ID())
	assert.Equal(t, int64(9), DocumentResponse{OdooID: 9}.ID())
}
