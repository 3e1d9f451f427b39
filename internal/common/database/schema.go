package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schemaStatements only add what the reconciler and telemetry need on top of
// the booking platform's existing tables. Every statement is idempotent.
var schemaStatements = []string{
	`ALTER TABLE conversation_history ADD COLUMN IF NOT EXISTS conversation_outcome TEXT`,
	`CREATE INDEX IF NOT EXISTS idx_conversation_history_session_created
		ON conversation_history (session_id_uuid, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_conversation_history_pending_outcome
		ON conversation_history (tenant_id, created_at)
		WHERE conversation_outcome IS NULL`,
	`CREATE TABLE IF NOT EXISTS intent_outcome_telemetry (
		id BIGSERIAL PRIMARY KEY,
		tenant_id UUID NOT NULL,
		session_id_uuid UUID NOT NULL,
		user_phone TEXT,
		user_id UUID,
		conversation_id UUID,
		intent_detected TEXT NOT NULL,
		intent_timestamp TIMESTAMPTZ NOT NULL,
		outcome_finalized TEXT,
		outcome_timestamp TIMESTAMPTZ,
		conversion_time_seconds INTEGER,
		abandoned BOOLEAN NOT NULL DEFAULT FALSE,
		abandonment_stage TEXT,
		conversation_duration_seconds INTEGER,
		source TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_intent_outcome_telemetry_tenant
		ON intent_outcome_telemetry (tenant_id, created_at)`,
}

// Migrate runs the schema statements in order inside one transaction.
func Migrate(ctx context.Context, db *sql.DB) error {
	return InTx(ctx, db, func(tx *sql.Tx) error {
		for i, stmt := range schemaStatements {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("migration statement %d failed: %w", i, err)
			}
		}
		return nil
	})
}
