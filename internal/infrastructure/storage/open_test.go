package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"raccolta/pkg/logger"
)

func TestOpenAutoPrefersSQLite(t *testing.T) {
	s, err := Open(t.Context(), Config{
		Backend:    BackendAuto,
		SQLitePath: filepath.Join(t.TempDir(), "data", "raccolta.db"),
	}, logger.NewNop())
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, BackendSQLite, s.Backend())
}

func TestOpenAutoFallsBackToBadger(t *testing.T) {
	// A regular file where the data directory should be makes SQLite fail.
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

	s, err := Open(t.Context(), Config{
		Backend:    BackendAuto,
		SQLitePath: filepath.Join(blocker, "raccolta.db"),
	}, logger.NewNop())
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, BackendBadger, s.Backend())

	_, err = s.GetAll(t.Context(), "orders")
	assert.NoError(t, err)
}

func TestOpenUnknownBackend(t *testing.T) {
	_, err := Open(t.Context(), Config{Backend: "leveldb"}, logger.NewNop())
	assert.Error(t, err)
}
