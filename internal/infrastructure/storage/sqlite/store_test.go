package sqlite

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"raccolta/internal/domain"
	"raccolta/internal/infrastructure/storage/storetest"
)

func TestStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) domain.Store {
		s, err := Open(filepath.Join(t.TempDir(), "raccolta.db"))
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		return s
	})
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raccolta.db")
	ctx := t.Context()

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, "counters", domain.Record{Key: "sale_order_7", Data: []byte(`{"value":3}`)}))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Get(ctx, "counters", "sale_order_7")
	require.NoError(t, err)
	require.JSONEq(t, `{"value":3}`, string(got.Data))
}
