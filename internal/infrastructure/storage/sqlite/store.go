// Package sqlite is the transactional indexed backend of the local store.
//
// Records live in one table keyed by (collection, key); secondary index
// values live in record_indexes and are rewritten in the same transaction
// as the record, so a reader never sees a record with stale indexes.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"raccolta/internal/core/apperror"
	"raccolta/internal/domain"
)

//go:embed schema.sql
var schemaSQL string

// BackendName is reported by Store.Backend.
const BackendName = "sqlite"

var tracer = otel.Tracer("raccolta/storage/sqlite")

// Store implements domain.Store on SQLite.
type Store struct {
	db *sql.DB
}

var _ domain.Store = (*Store)(nil)

// Open creates or opens the database file at path and applies the schema.
// Use ":memory:" for a throwaway database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect sqlite: %w", err)
	}

	// SQLite allows one writer; a single connection also keeps ":memory:"
	// databases alive across calls.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %q: %w", pragma, err)
		}
	}
	return nil
}

// Backend implements domain.Store.
func (s *Store) Backend() string { return BackendName }

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Save replaces the record and its index rows in one transaction.
func (s *Store) Save(ctx context.Context, collection string, rec domain.Record) (err error) {
	ctx, span := tracer.Start(ctx, "sqlite.Save")
	span.SetAttributes(attribute.String("collection", collection))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperror.NewStorage("save", collection, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO records (collection, key, data, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (collection, key) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		collection, rec.Key, rec.Data, rec.UpdatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return apperror.NewStorage("save", collection, err)
	}

	if _, err = tx.ExecContext(ctx,
		`DELETE FROM record_indexes WHERE collection = ? AND key = ?`, collection, rec.Key); err != nil {
		return apperror.NewStorage("save", collection, err)
	}
	for field, value := range rec.Indexes {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO record_indexes (collection, key, field, value) VALUES (?, ?, ?, ?)`,
			collection, rec.Key, field, value); err != nil {
			return apperror.NewStorage("save", collection, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return apperror.NewStorage("save", collection, err)
	}
	return nil
}

// Get implements domain.Store.
func (s *Store) Get(ctx context.Context, collection, key string) (domain.Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT key, data, updated_at FROM records WHERE collection = ? AND key = ?`, collection, key)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Record{}, domain.NotFound(collection, key)
	}
	if err != nil {
		return domain.Record{}, apperror.NewStorage("get", collection, err)
	}

	rec.Indexes, err = s.loadIndexes(ctx, collection, key)
	if err != nil {
		return domain.Record{}, err
	}
	return rec, nil
}

// GetAll implements domain.Store.
func (s *Store) GetAll(ctx context.Context, collection string) ([]domain.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, data, updated_at FROM records WHERE collection = ? ORDER BY key`, collection)
	if err != nil {
		return nil, apperror.NewStorage("get_all", collection, err)
	}
	return s.collect(ctx, collection, "get_all", rows)
}

// FindByIndex uses idx_record_indexes_lookup.
func (s *Store) FindByIndex(ctx context.Context, collection, field, value string) ([]domain.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.key, r.data, r.updated_at
		FROM record_indexes i
		JOIN records r ON r.collection = i.collection AND r.key = i.key
		WHERE i.collection = ? AND i.field = ? AND i.value = ?
		ORDER BY r.key`, collection, field, value)
	if err != nil {
		return nil, apperror.NewStorage("find_by_index", collection, err)
	}
	return s.collect(ctx, collection, "find_by_index", rows)
}

// Delete implements domain.Store. Index rows go with the record (cascade).
func (s *Store) Delete(ctx context.Context, collection, key string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM records WHERE collection = ? AND key = ?`, collection, key); err != nil {
		return apperror.NewStorage("delete", collection, err)
	}
	return nil
}

// Clear implements domain.Store.
func (s *Store) Clear(ctx context.Context, collection string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE collection = ?`, collection); err != nil {
		return apperror.NewStorage("clear", collection, err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (domain.Record, error) {
	var (
		rec     domain.Record
		updated string
	)
	if err := row.Scan(&rec.Key, &rec.Data, &updated); err != nil {
		return domain.Record{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, updated)
	if err != nil {
		return domain.Record{}, fmt.Errorf("parse updated_at: %w", err)
	}
	rec.UpdatedAt = t
	return rec, nil
}

// collect drains rows first; the single connection is busy until rows close.
func (s *Store) collect(ctx context.Context, collection, op string, rows *sql.Rows) ([]domain.Record, error) {
	var out []domain.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			rows.Close()
			return nil, apperror.NewStorage(op, collection, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, apperror.NewStorage(op, collection, err)
	}
	rows.Close()

	if len(out) == 0 {
		return out, nil
	}
	all, err := s.indexesOf(ctx, collection)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Indexes = all[out[i].Key]
	}
	return out, nil
}

func (s *Store) loadIndexes(ctx context.Context, collection, key string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT field, value FROM record_indexes WHERE collection = ? AND key = ?`, collection, key)
	if err != nil {
		return nil, apperror.NewStorage("get", collection, err)
	}
	defer rows.Close()

	idx := make(map[string]string)
	for rows.Next() {
		var field, value string
		if err := rows.Scan(&field, &value); err != nil {
			return nil, apperror.NewStorage("get", collection, err)
		}
		idx[field] = value
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.NewStorage("get", collection, err)
	}
	return idx, nil
}

func (s *Store) indexesOf(ctx context.Context, collection string) (map[string]map[string]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, field, value FROM record_indexes WHERE collection = ?`, collection)
	if err != nil {
		return nil, apperror.NewStorage("indexes", collection, err)
	}
	defer rows.Close()

	out := make(map[string]map[string]string)
	for rows.Next() {
		var key, field, value string
		if err := rows.Scan(&key, &field, &value); err != nil {
			return nil, apperror.NewStorage("indexes", collection, err)
		}
		if out[key] == nil {
			out[key] = make(map[string]string)
		}
		out[key][field] = value
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.NewStorage("indexes", collection, err)
	}
	return out, nil
}
