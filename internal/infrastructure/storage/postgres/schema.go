package postgres

import (
	"context"
	"fmt"
)

const (
	tableDocuments = "synced_documents"
	tableCounters  = "agent_counters"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS synced_documents (
		id          BIGSERIAL PRIMARY KEY,
		doc_type    TEXT        NOT NULL,
		local_id    TEXT        NOT NULL,
		agent_id    BIGINT      NOT NULL,
		name        TEXT        NOT NULL DEFAULT '',
		payload     JSONB       NOT NULL,
		received_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (doc_type, local_id)
	)`,
	`CREATE INDEX IF NOT EXISTS synced_documents_agent_idx ON synced_documents (agent_id, doc_type)`,
	`CREATE TABLE IF NOT EXISTS agent_counters (
		counter_key TEXT        PRIMARY KEY,
		agent_id    BIGINT      NOT NULL,
		doc_type    TEXT        NOT NULL,
		value       BIGINT      NOT NULL DEFAULT 0,
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS agent_counters_agent_idx ON agent_counters (agent_id)`,
}

// Migrate creates the sync server tables when missing.
func Migrate(ctx context.Context, txm *TxManager) error {
	return txm.RunInTransaction(ctx, func(ctx context.Context) error {
		q := txm.GetQuerier(ctx)
		for _, stmt := range schema {
			if _, err := q.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
		}
		return nil
	})
}
