// Package postgres implements the PostgreSQL persistence layer for the
// progress engine.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/elzatona/progress-engine/internal/application/gateway"
)

// ══════════════════════════════════════════════════════════════════════════════
// AUDIT TRAIL
// ══════════════════════════════════════════════════════════════════════════════

// AuditRepository implements gateway.AuditEmitter against the append-only
// audit_trail table. Delivery is best-effort by contract; failures bubble
// up to the gateway, which logs and moves on.
type AuditRepository struct {
	conn *Connection
}

// NewAuditRepository creates a new AuditRepository.
func NewAuditRepository(conn *Connection) *AuditRepository {
	return &AuditRepository{conn: conn}
}

// Emit appends one audit record.
func (r *AuditRepository) Emit(ctx context.Context, record gateway.AuditRecord) error {
	var detailJSON []byte
	if record.Detail != nil {
		var err error
		detailJSON, err = json.Marshal(record.Detail)
		if err != nil {
			return fmt.Errorf("failed to marshal audit detail: %w", err)
		}
	}

	_, err := r.conn.Exec(ctx, `
		INSERT INTO audit_trail (action, learner_id, event_id, instance_id, detail, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		record.Action,
		record.LearnerID.String(),
		record.EventID.String(),
		record.InstanceID,
		detailJSON,
		record.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append audit record: %w", err)
	}
	return nil
}
