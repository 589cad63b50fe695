// Package badgerkv is the flat key/value fallback of the local store.
//
// Badger has no secondary indexes, so FindByIndex scans the collection
// prefix and filters on the index map kept inside each value.
package badgerkv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	"raccolta/internal/core/apperror"
	"raccolta/internal/domain"
	"raccolta/pkg/logger"
)

// BackendName is reported by Store.Backend.
const BackendName = "badger"

const conflictRetries = 3

// envelope is the stored value: record payload plus its index fields.
type envelope struct {
	Indexes   map[string]string `json:"indexes,omitempty"`
	Data      []byte            `json:"data"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Store implements domain.Store on Badger.
type Store struct {
	db *badger.DB
}

var _ domain.Store = (*Store)(nil)

// Options configures Open.
type Options struct {
	// Dir is the data directory; empty means in-memory.
	Dir    string
	Logger *logger.Logger
}

// Open opens (or creates) the Badger database.
func Open(opts Options) (*Store, error) {
	bopts := badger.DefaultOptions(opts.Dir)
	if opts.Dir == "" {
		bopts = bopts.WithInMemory(true)
	}
	if opts.Logger != nil {
		bopts = bopts.WithLogger(badgerLogger{opts.Logger.WithComponent("badger")})
	} else {
		bopts = bopts.WithLogger(nil)
	}

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &Store{db: db}, nil
}

// Backend implements domain.Store.
func (s *Store) Backend() string { return BackendName }

// Close implements domain.Store.
func (s *Store) Close() error {
	return s.db.Close()
}

func recordKey(collection, key string) []byte {
	return []byte("rec/" + collection + "/" + key)
}

func collectionPrefix(collection string) []byte {
	return []byte("rec/" + collection + "/")
}

// Save implements domain.Store. One Badger transaction per record.
func (s *Store) Save(ctx context.Context, collection string, rec domain.Record) error {
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now().UTC()
	}
	val, err := json.Marshal(envelope{Indexes: rec.Indexes, Data: rec.Data, UpdatedAt: rec.UpdatedAt})
	if err != nil {
		return apperror.NewStorage("save", collection, err)
	}

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return apperror.NewStorage("save", collection, err)
		}
		err = s.db.Update(func(txn *badger.Txn) error {
			return txn.Set(recordKey(collection, rec.Key), val)
		})
		if errors.Is(err, badger.ErrConflict) && attempt < conflictRetries {
			continue
		}
		if err != nil {
			return apperror.NewStorage("save", collection, err)
		}
		return nil
	}
}

// Get implements domain.Store.
func (s *Store) Get(ctx context.Context, collection, key string) (domain.Record, error) {
	var rec domain.Record
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(recordKey(collection, key))
		if err != nil {
			return err
		}
		rec, err = decodeItem(item, key)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.Record{}, domain.NotFound(collection, key)
	}
	if err != nil {
		return domain.Record{}, apperror.NewStorage("get", collection, err)
	}
	return rec, nil
}

// GetAll implements domain.Store. Badger iterates keys in byte order.
func (s *Store) GetAll(ctx context.Context, collection string) ([]domain.Record, error) {
	out, err := s.scan(ctx, collection, func(domain.Record) bool { return true })
	if err != nil {
		return nil, apperror.NewStorage("get_all", collection, err)
	}
	return out, nil
}

// FindByIndex implements domain.Store by linear scan.
func (s *Store) FindByIndex(ctx context.Context, collection, field, value string) ([]domain.Record, error) {
	out, err := s.scan(ctx, collection, func(r domain.Record) bool {
		v, ok := r.Indexes[field]
		return ok && v == value
	})
	if err != nil {
		return nil, apperror.NewStorage("find_by_index", collection, err)
	}
	return out, nil
}

// Delete implements domain.Store.
func (s *Store) Delete(ctx context.Context, collection, key string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(recordKey(collection, key))
	})
	if err != nil {
		return apperror.NewStorage("delete", collection, err)
	}
	return nil
}

// Clear implements domain.Store.
func (s *Store) Clear(ctx context.Context, collection string) error {
	if err := s.db.DropPrefix(collectionPrefix(collection)); err != nil {
		return apperror.NewStorage("clear", collection, err)
	}
	return nil
}

func (s *Store) scan(ctx context.Context, collection string, keep func(domain.Record) bool) ([]domain.Record, error) {
	prefix := collectionPrefix(collection)
	out := []domain.Record{}

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			key := strings.TrimPrefix(string(item.Key()), string(prefix))
			rec, err := decodeItem(item, key)
			if err != nil {
				return err
			}
			if keep(rec) {
				out = append(out, rec)
			}
		}
		return nil
	})
	return out, err
}

func decodeItem(item *badger.Item, key string) (domain.Record, error) {
	var env envelope
	err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &env)
	})
	if err != nil {
		return domain.Record{}, fmt.Errorf("decode %s: %w", key, err)
	}
	return domain.Record{Key: key, Indexes: env.Indexes, Data: env.Data, UpdatedAt: env.UpdatedAt}, nil
}

// badgerLogger routes Badger's internal logging through zap.
type badgerLogger struct {
	*logger.Logger
}

func (l badgerLogger) Warningf(format string, args ...any) {
	l.Warnf(format, args...)
}
