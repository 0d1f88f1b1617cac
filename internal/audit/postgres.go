package audit

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"alibi/internal/domain"
)

// PostgresMirror writes every audit event to a durable Postgres table in
// addition to the JSONL log, for deployments that want queryable audit
// history instead of scanning the log store. It is optional: the JSONL
// store is the source of truth per the log store's append-only design, and
// a mirror failure never blocks Service.Emit from persisting there first.
type PostgresMirror struct {
	pool *pgxpool.Pool
}

// NewPostgresMirror wraps an already-connected pool. Pass nil to disable
// the mirror; Append becomes a no-op.
func NewPostgresMirror(pool *pgxpool.Pool) *PostgresMirror {
	return &PostgresMirror{pool: pool}
}

const createAuditTable = `
CREATE TABLE IF NOT EXISTS audit_events (
	id BIGSERIAL PRIMARY KEY,
	ts TIMESTAMPTZ NOT NULL,
	actor_username TEXT NOT NULL,
	action TEXT NOT NULL,
	target_id TEXT,
	detail TEXT
)`

// EnsureSchema creates the audit_events table if it doesn't exist yet.
func (m *PostgresMirror) EnsureSchema(ctx context.Context) error {
	if m == nil || m.pool == nil {
		return nil
	}
	_, err := m.pool.Exec(ctx, createAuditTable)
	if err != nil {
		return fmt.Errorf("ensure audit_events schema: %w", err)
	}
	return nil
}

// Append inserts one audit row. A nil receiver or unconfigured pool is a
// deliberate no-op so callers can wire it unconditionally.
func (m *PostgresMirror) Append(ctx context.Context, evt domain.AuditEvent) error {
	if m == nil || m.pool == nil {
		return nil
	}
	_, err := m.pool.Exec(ctx,
		`INSERT INTO audit_events (ts, actor_username, action, target_id, detail) VALUES ($1, $2, $3, $4, $5)`,
		evt.Timestamp, evt.ActorUsername, evt.Action, evt.TargetID, evt.Detail,
	)
	if err != nil {
		return fmt.Errorf("insert audit_events row: %w", err)
	}
	return nil
}
