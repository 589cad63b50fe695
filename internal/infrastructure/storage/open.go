// Package storage selects the local store backend once, at startup.
package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"raccolta/internal/domain"
	"raccolta/internal/infrastructure/storage/badgerkv"
	"raccolta/internal/infrastructure/storage/sqlite"
	"raccolta/pkg/logger"
)

// Backend choices.
const (
	BackendAuto   = "auto"
	BackendSQLite = sqlite.BackendName
	BackendBadger = badgerkv.BackendName
)

// Config selects and locates the backend.
type Config struct {
	Backend    string
	SQLitePath string
	// BadgerPath empty keeps the fallback in memory.
	BadgerPath string
}

// Open returns the store for cfg.Backend. In auto mode a SQLite failure
// degrades silently to Badger; callers only learn about it via Backend().
func Open(ctx context.Context, cfg Config, log *logger.Logger) (domain.Store, error) {
	if log == nil {
		log = logger.Default()
	}
	log = log.WithComponent("storage")

	switch cfg.Backend {
	case BackendSQLite:
		return openSQLite(cfg.SQLitePath)
	case BackendBadger:
		return openBadger(cfg.BadgerPath, log)
	case BackendAuto, "":
		s, err := openSQLite(cfg.SQLitePath)
		if err == nil {
			log.Infow("local store ready", "backend", s.Backend(), "path", cfg.SQLitePath)
			return s, nil
		}
		log.Warnw("indexed store unavailable, using key/value fallback", "error", err)
		kv, kvErr := openBadger(cfg.BadgerPath, log)
		if kvErr != nil {
			return nil, fmt.Errorf("open fallback store: %w (indexed store: %v)", kvErr, err)
		}
		log.Infow("local store ready", "backend", kv.Backend(), "path", cfg.BadgerPath)
		return kv, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

func openSQLite(path string) (domain.Store, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is empty")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}
	return sqlite.Open(path)
}

func openBadger(dir string, log *logger.Logger) (domain.Store, error) {
	return badgerkv.Open(badgerkv.Options{Dir: dir, Logger: log})
}
