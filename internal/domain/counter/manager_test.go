package counter

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"raccolta/internal/core/apperror"
	"raccolta/internal/core/numerator"
	"raccolta/internal/domain"
	"raccolta/internal/infrastructure/storage/storetest"
	"raccolta/pkg/logger"
)

type fakeRemote struct {
	got  SyncRequest
	resp SyncResponse
	err  error
}

func (f *fakeRemote) SyncCounters(ctx context.Context, req SyncRequest) (SyncResponse, error) {
	f.got = req
	return f.resp, f.err
}

func newManager(t *testing.T, store domain.Store, opts ...Option) *Manager {
	t.Helper()
	if store == nil {
		store = storetest.NewMemory(t)
	}
	opts = append([]Option{WithLogger(logger.NewNop())}, opts...)
	return NewManager(store, Config{AgentID: 7}, opts...)
}

func TestGetNextNumberFormatsAndPersists(t *testing.T) {
	store := storetest.NewMemory(t)
	m := newManager(t, store)
	ctx := t.Context()

	first, err := m.GetNextNumber(ctx, "sale_order")
	require.NoError(t, err)
	assert.Equal(t, "RO/AG007/001", first.Formatted)
	assert.Equal(t, "sale_order_7", first.CounterKey)

	second, err := m.GetNextNumber(ctx, "sale_order")
	require.NoError(t, err)
	assert.Equal(t, "RO/AG007/002", second.Formatted)

	// A fresh manager over the same store continues the sequence.
	again := newManager(t, store)
	require.NoError(t, again.Load(ctx))
	third, err := again.GetNextNumber(ctx, "sale_order")
	require.NoError(t, err)
	assert.Equal(t, int64(3), third.Value)
}

func TestConfiguredAgentCode(t *testing.T) {
	m := NewManager(storetest.NewMemory(t), Config{AgentID: 7, AgentCode: "MR"}, WithLogger(logger.NewNop()))
	n, err := m.GetNextNumber(t.Context(), "stock_picking")
	require.NoError(t, err)
	assert.Equal(t, "PICK/MR/001", n.Formatted)
}

func TestConcurrentDrawsAreContiguous(t *testing.T) {
	m := newManager(t, nil)
	ctx := t.Context()

	const workers, perWorker = 8, 25
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[int64]bool)
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				n, err := m.GetNextNumber(ctx, "sale_order")
				if !assert.NoError(t, err) {
					return
				}
				mu.Lock()
				assert.False(t, seen[n.Value], "duplicate %d", n.Value)
				seen[n.Value] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Len(t, seen, workers*perWorker)
	for v := int64(1); v <= workers*perWorker; v++ {
		assert.True(t, seen[v], "missing %d", v)
	}
}

func TestFailedPersistDoesNotAdvance(t *testing.T) {
	faulty := storetest.NewFaulty(storetest.NewMemory(t))
	m := newManager(t, faulty)
	ctx := t.Context()

	_, err := m.GetNextNumber(ctx, "sale_order")
	require.NoError(t, err)

	faulty.FailSaves(domain.CollectionCounters, true)
	_, err = m.GetNextNumber(ctx, "sale_order")
	require.Error(t, err)
	assert.True(t, errors.Is(err, storetest.ErrInjected))
	assert.True(t, apperror.HasCode(err, apperror.CodeStorage))

	faulty.FailSaves(domain.CollectionCounters, false)
	n, err := m.GetNextNumber(ctx, "sale_order")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n.Value)
}

func TestReservedRange(t *testing.T) {
	m := newManager(t, nil)
	ctx := t.Context()

	_, err := m.GetNextNumber(ctx, "stock_delivery_note")
	require.NoError(t, err)

	r, err := m.ReserveNumbers(ctx, "stock_delivery_note", 3)
	require.NoError(t, err)
	assert.Equal(t, int64(2), r.Start)
	assert.Equal(t, int64(4), r.End)
	assert.True(t, m.HasReservedNumbers("stock_delivery_note"))

	var got []int64
	for i := 0; i < 3; i++ {
		n, ok := m.GetNextReservedNumber(ctx, "stock_delivery_note")
		require.True(t, ok)
		got = append(got, n.Value)
	}
	assert.Equal(t, []int64{2, 3, 4}, got)

	_, ok := m.GetNextReservedNumber(ctx, "stock_delivery_note")
	assert.False(t, ok)
	assert.False(t, m.HasReservedNumbers("stock_delivery_note"))

	// Persisted draws continue after the reserved block.
	n, err := numerator.Draw(ctx, m, "stock_delivery_note", numerator.StrategyReserved)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n.Value)

	stats, err := m.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), stats["stock_delivery_note"].Value)
	assert.Equal(t, int64(4), stats["stock_delivery_note"].ReservedUntil)
}

func TestReserveDefaultCount(t *testing.T) {
	m := newManager(t, nil)
	r, err := m.ReserveNumbers(t.Context(), "sale_order", 0)
	require.NoError(t, err)
	assert.Equal(t, int64(numerator.DefaultReserveCount), r.End-r.Start+1)
}

func TestReserveRejectsOversizedAndOverflowingCounts(t *testing.T) {
	m := newManager(t, nil)
	ctx := t.Context()

	first, err := m.GetNextNumber(ctx, "sale_order")
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.Value)

	for _, count := range []int64{numerator.MaxReserveCount + 1, math.MaxInt64} {
		_, err = m.ReserveNumbers(ctx, "sale_order", count)
		require.Error(t, err)
		assert.True(t, apperror.IsValidation(err), "%v", err)
	}
	assert.False(t, m.HasReservedNumbers("sale_order"))

	next, err := m.GetNextNumber(ctx, "sale_order")
	require.NoError(t, err)
	assert.Equal(t, "RO/AG007/002", next.Formatted)
}

func TestCounterNeverWrapsAround(t *testing.T) {
	m := newManager(t, nil)
	ctx := t.Context()

	_, err := m.MergeServerCounters(ctx, map[string]ServerCounter{
		"sale_order_7": {Value: math.MaxInt64 - 2},
	})
	require.NoError(t, err)

	_, err = m.ReserveNumbers(ctx, "sale_order", 5)
	require.Error(t, err)
	assert.True(t, apperror.IsValidation(err))

	for _, want := range []int64{math.MaxInt64 - 1, math.MaxInt64} {
		n, err := m.GetNextNumber(ctx, "sale_order")
		require.NoError(t, err)
		assert.Equal(t, want, n.Value)
	}
	_, err = m.GetNextNumber(ctx, "sale_order")
	require.Error(t, err)
	assert.True(t, apperror.IsValidation(err))

	stats, err := m.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64), stats["sale_order"].Value)
}

func TestGetNextReservedWithoutReservation(t *testing.T) {
	m := newManager(t, nil)
	_, ok := m.GetNextReservedNumber(t.Context(), "sale_order")
	assert.False(t, ok)
}

func TestValidateDocumentNumber(t *testing.T) {
	m := newManager(t, nil)
	ctx := t.Context()

	v, err := m.ValidateDocumentNumber(ctx, "sale_order", 1)
	require.NoError(t, err)
	assert.Equal(t, Validation{Reason: "Contatore non inizializzato"}, v)

	for i := 0; i < 5; i++ {
		_, err := m.GetNextNumber(ctx, "sale_order")
		require.NoError(t, err)
	}

	tests := []struct {
		n     int64
		valid bool
	}{
		{0, false},
		{-3, false},
		{1, true},
		{105, true},
		{106, false},
	}
	for _, tt := range tests {
		v, err := m.ValidateDocumentNumber(ctx, "sale_order", tt.n)
		require.NoError(t, err)
		assert.Equal(t, tt.valid, v.Valid, "number %d", tt.n)
	}
}

func TestMergeIsMaxIdempotentMonotone(t *testing.T) {
	local := Counter{Value: 5}
	assert.Equal(t, int64(5), local.Merge(ServerCounter{Value: 3}).Value)
	assert.Equal(t, int64(9), local.Merge(ServerCounter{Value: 9}).Value)
	assert.Equal(t, local, local.Merge(ServerCounter{Value: local.Value}))

	for _, pair := range [][2]int64{{0, 0}, {1, 4}, {8, 2}, {100, 100}} {
		merged := Counter{Value: pair[0]}.Merge(ServerCounter{Value: pair[1]})
		assert.GreaterOrEqual(t, merged.Value, pair[0])
		assert.GreaterOrEqual(t, merged.Value, pair[1])
	}
}

func TestSyncWithServer(t *testing.T) {
	remote := &fakeRemote{}
	m := newManager(t, nil, WithRemote(remote))
	ctx := t.Context()

	for i := 0; i < 5; i++ {
		_, err := m.GetNextNumber(ctx, "sale_order")
		require.NoError(t, err)
	}
	_, err := m.GetNextNumber(ctx, "stock_picking")
	require.NoError(t, err)

	remote.resp = SyncResponse{Success: true, ServerCounters: map[string]ServerCounter{
		"sale_order_7":          {Value: 3},
		"stock_picking_7":       {Value: 9, ReservedUntil: 12},
		"stock_delivery_note_7": {Value: 4},
		"sale_order_8":          {Value: 99},
	}}

	updated, err := m.SyncWithServer(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, updated)
	assert.Equal(t, int64(7), remote.got.AgentID)
	assert.Equal(t, int64(5), remote.got.Counters["sale_order_7"].Value)

	stats, err := m.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), stats["sale_order"].Value)
	assert.Equal(t, int64(9), stats["stock_picking"].Value)
	assert.Equal(t, int64(12), stats["stock_picking"].ReservedUntil)
	assert.Equal(t, int64(4), stats["stock_delivery_note"].Value)
	assert.Len(t, stats, 3)

	n, err := m.GetNextNumber(ctx, "stock_picking")
	require.NoError(t, err)
	assert.Equal(t, int64(10), n.Value)
}

func TestSyncWithServerFailures(t *testing.T) {
	_, err := newManager(t, nil).SyncWithServer(t.Context())
	assert.True(t, apperror.HasCode(err, apperror.CodeOffline))

	remote := &fakeRemote{resp: SyncResponse{Success: false, Error: "db locked"}}
	_, err = newManager(t, nil, WithRemote(remote)).SyncWithServer(t.Context())
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeSync))
	assert.Contains(t, err.Error(), "db locked")
}

func TestExportImport(t *testing.T) {
	src := newManager(t, nil)
	ctx := t.Context()
	for i := 0; i < 4; i++ {
		_, err := src.GetNextNumber(ctx, "sale_order")
		require.NoError(t, err)
	}
	backup, err := src.Export(ctx)
	require.NoError(t, err)
	require.Len(t, backup.Counters, 1)

	dst := newManager(t, nil)
	for i := 0; i < 6; i++ {
		_, err := dst.GetNextNumber(ctx, "sale_order")
		require.NoError(t, err)
	}
	_, err = dst.Import(ctx, backup)
	require.NoError(t, err)
	stats, err := dst.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(6), stats["sale_order"].Value, "import never regresses")

	backup.AgentID = 8
	_, err = dst.Import(ctx, backup)
	assert.True(t, apperror.HasCode(err, apperror.CodeAgentMismatch))
}

func TestResetCounter(t *testing.T) {
	m := newManager(t, nil)
	ctx := t.Context()
	_, err := m.GetNextNumber(ctx, "sale_order")
	require.NoError(t, err)
	_, err = m.ReserveNumbers(ctx, "sale_order", 2)
	require.NoError(t, err)

	require.NoError(t, m.ResetCounter(ctx, "sale_order"))
	assert.False(t, m.HasReservedNumbers("sale_order"))

	n, err := m.GetNextNumber(ctx, "sale_order")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n.Value)
}
