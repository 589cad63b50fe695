// Package storetest holds the behaviour every domain.Store backend must share.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"raccolta/internal/core/apperror"
	"raccolta/internal/domain"
)

// Run exercises a fresh store produced by open for each subtest.
func Run(t *testing.T, open func(t *testing.T) domain.Store) {
	t.Helper()

	t.Run("save and get", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		require.NoError(t, s.Save(ctx, "orders", rec("order_1", `{"n":1}`, map[string]string{"sync_status": "pending"})))
		got, err := s.Get(ctx, "orders", "order_1")
		require.NoError(t, err)
		assert.Equal(t, "order_1", got.Key)
		assert.JSONEq(t, `{"n":1}`, string(got.Data))
		assert.Equal(t, "pending", got.Indexes["sync_status"])
		assert.False(t, got.UpdatedAt.IsZero())
	})

	t.Run("missing key", func(t *testing.T) {
		s := open(t)
		_, err := s.Get(context.Background(), "orders", "nope")
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrNotFound))
		assert.True(t, apperror.IsNotFound(err))
	})

	t.Run("overwrite replaces indexes", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		require.NoError(t, s.Save(ctx, "orders", rec("order_1", `{}`, map[string]string{"sync_status": "pending", "agent_id": "7"})))
		require.NoError(t, s.Save(ctx, "orders", rec("order_1", `{"v":2}`, map[string]string{"sync_status": "synced"})))

		pending, err := s.FindByIndex(ctx, "orders", "sync_status", "pending")
		require.NoError(t, err)
		assert.Empty(t, pending)

		byAgent, err := s.FindByIndex(ctx, "orders", "agent_id", "7")
		require.NoError(t, err)
		assert.Empty(t, byAgent)

		synced, err := s.FindByIndex(ctx, "orders", "sync_status", "synced")
		require.NoError(t, err)
		require.Len(t, synced, 1)
		assert.JSONEq(t, `{"v":2}`, string(synced[0].Data))
	})

	t.Run("collections are isolated and ordered", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		for _, k := range []string{"c", "a", "b"} {
			require.NoError(t, s.Save(ctx, "orders", rec(k, `{}`, nil)))
		}
		require.NoError(t, s.Save(ctx, "pickings", rec("a", `{}`, nil)))

		all, err := s.GetAll(ctx, "orders")
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, []string{"a", "b", "c"}, keys(all))

		require.NoError(t, s.Clear(ctx, "orders"))
		all, err = s.GetAll(ctx, "orders")
		require.NoError(t, err)
		assert.Empty(t, all)

		_, err = s.Get(ctx, "pickings", "a")
		assert.NoError(t, err)
	})

	t.Run("delete", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		require.NoError(t, s.Save(ctx, "ddts", rec("ddt_1", `{}`, map[string]string{"picking_local_id": "p1"})))
		require.NoError(t, s.Delete(ctx, "ddts", "ddt_1"))
		require.NoError(t, s.Delete(ctx, "ddts", "ddt_1"))

		found, err := s.FindByIndex(ctx, "ddts", "picking_local_id", "p1")
		require.NoError(t, err)
		assert.Empty(t, found)
	})

	t.Run("concurrent saves", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				assert.NoError(t, s.Save(ctx, "orders", rec(fmt.Sprintf("k%02d", i), `{}`, map[string]string{"agent_id": "1"})))
			}(i)
		}
		wg.Wait()

		found, err := s.FindByIndex(ctx, "orders", "agent_id", "1")
		require.NoError(t, err)
		assert.Len(t, found, 20)
	})
}

func rec(key, data string, idx map[string]string) domain.Record {
	return domain.Record{Key: key, Data: []byte(data), Indexes: idx}
}

func keys(recs []domain.Record) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.Key
	}
	return out
}
