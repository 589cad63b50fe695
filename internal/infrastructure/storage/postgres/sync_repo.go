package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"raccolta/internal/core/tx"
)

// SyncedDocument is one document received from an agent.
type SyncedDocument struct {
	ID         int64           `db:"id" json:"id"`
	DocType    string          `db:"doc_type" json:"doc_type"`
	LocalID    string          `db:"local_id" json:"local_id"`
	AgentID    int64           `db:"agent_id" json:"agent_id"`
	Name       string          `db:"name" json:"name"`
	Payload    json.RawMessage `db:"payload" json:"payload"`
	ReceivedAt time.Time       `db:"received_at" json:"received_at"`
	UpdatedAt  time.Time       `db:"updated_at" json:"updated_at"`
}

// CounterRow is the server copy of one agent counter.
type CounterRow struct {
	Key       string    `db:"counter_key" json:"counter_key"`
	AgentID   int64     `db:"agent_id" json:"agent_id"`
	DocType   string    `db:"doc_type" json:"doc_type"`
	Value     int64     `db:"value" json:"value"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// DocumentFilter narrows ListDocuments. Zero fields match everything.
type DocumentFilter struct {
	DocType string
	AgentID int64
	Limit   uint64
}

var (
	documentColumns = ExtractDBColumns[SyncedDocument]()
	counterColumns  = ExtractDBColumns[CounterRow]()
)

// Transactor is what SyncRepo needs from the transaction layer.
// *TxManager implements it.
type Transactor interface {
	tx.ReadOnlyManager
	GetQuerier(ctx context.Context) Querier
}

// SyncRepo stores what agents push to the sync endpoints.
type SyncRepo struct {
	txm Transactor
}

// NewSyncRepo creates a repository.
func NewSyncRepo(txm Transactor) *SyncRepo {
	return &SyncRepo{txm: txm}
}

func builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// UpsertDocument stores d keyed by (doc_type, local_id) and returns the
// server id. Delivering the same document again returns the same id.
func (r *SyncRepo) UpsertDocument(ctx context.Context, d SyncedDocument) (int64, error) {
	sql, args, err := upsertDocumentQuery(d).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build upsert: %w", err)
	}
	var id int64
	if err := r.txm.GetQuerier(ctx).QueryRow(ctx, sql, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("upsert %s %s: %w", d.DocType, d.LocalID, err)
	}
	return id, nil
}

func upsertDocumentQuery(d SyncedDocument) squirrel.InsertBuilder {
	return builder().
		Insert(tableDocuments).
		Columns("doc_type", "local_id", "agent_id", "name", "payload").
		Values(d.DocType, d.LocalID, d.AgentID, d.Name, []byte(d.Payload)).
		Suffix("ON CONFLICT (doc_type, local_id) DO UPDATE SET " +
			"agent_id = EXCLUDED.agent_id, name = EXCLUDED.name, payload = EXCLUDED.payload, updated_at = NOW() " +
			"RETURNING id")
}

// ListDocuments returns received documents, newest first.
func (r *SyncRepo) ListDocuments(ctx context.Context, f DocumentFilter) ([]SyncedDocument, error) {
	sql, args, err := listDocumentsQuery(f).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}
	var out []SyncedDocument
	err = r.txm.ReadOnly(ctx, func(ctx context.Context) error {
		return pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &out, sql, args...)
	})
	if err != nil {
		return nil, fmt.Errorf("select documents: %w", err)
	}
	return out, nil
}

func listDocumentsQuery(f DocumentFilter) squirrel.SelectBuilder {
	q := builder().Select(documentColumns...).From(tableDocuments)
	if f.DocType != "" {
		q = q.Where(squirrel.Eq{"doc_type": f.DocType})
	}
	if f.AgentID != 0 {
		q = q.Where(squirrel.Eq{"agent_id": f.AgentID})
	}
	q = q.OrderBy("updated_at DESC", "id DESC")
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	return q
}

// MergeCounters raises each stored counter to max(stored, incoming) and
// returns every counter of the agent. Counters keyed for another agent are
// ignored.
func (r *SyncRepo) MergeCounters(ctx context.Context, agentID int64, incoming map[string]int64) ([]CounterRow, error) {
	var out []CounterRow
	err := r.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		q := r.txm.GetQuerier(ctx)

		// Sorted keys keep the row lock order stable across agents.
		keys := make([]string, 0, len(incoming))
		for k := range incoming {
			keys = append(keys, k)
		}
		slices.Sort(keys)

		for _, key := range keys {
			docType, ok := DocTypeOfKey(key, agentID)
			if !ok {
				continue
			}
			sql, args, err := mergeCounterQuery(CounterRow{Key: key, AgentID: agentID, DocType: docType, Value: incoming[key]}).ToSql()
			if err != nil {
				return fmt.Errorf("build counter merge: %w", err)
			}
			if _, err := q.Exec(ctx, sql, args...); err != nil {
				return fmt.Errorf("merge counter %s: %w", key, err)
			}
		}

		sql, args, err := listCountersQuery(agentID).ToSql()
		if err != nil {
			return fmt.Errorf("build select: %w", err)
		}
		return pgxscan.Select(ctx, q, &out, sql, args...)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func mergeCounterQuery(c CounterRow) squirrel.InsertBuilder {
	return builder().
		Insert(tableCounters).
		Columns("counter_key", "agent_id", "doc_type", "value").
		Values(c.Key, c.AgentID, c.DocType, c.Value).
		Suffix("ON CONFLICT (counter_key) DO UPDATE SET " +
			"value = GREATEST(agent_counters.value, EXCLUDED.value), updated_at = NOW()")
}

func listCountersQuery(agentID int64) squirrel.SelectBuilder {
	return builder().
		Select(counterColumns...).
		From(tableCounters).
		Where(squirrel.Eq{"agent_id": agentID}).
		OrderBy("counter_key")
}

// DocTypeOfKey splits a "<docType>_<agentID>" counter key.
func DocTypeOfKey(key string, agentID int64) (string, bool) {
	docType, ok := strings.CutSuffix(key, "_"+strconv.FormatInt(agentID, 10))
	if !ok || docType == "" {
		return "", false
	}
	return docType, true
}
