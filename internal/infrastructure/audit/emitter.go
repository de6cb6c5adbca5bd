// Package audit provides implementations of the gateway's audit emitter
// port. The audit trail is best-effort by contract: emitters report
// failures, the gateway logs them and never fails the mutation.
package audit

import (
	"context"
	"log/slog"

	"github.com/elzatona/progress-engine/internal/application/gateway"
	"github.com/elzatona/progress-engine/pkg/circuitbreaker"
)

// ══════════════════════════════════════════════════════════════════════════════
// LOG EMITTER
// ══════════════════════════════════════════════════════════════════════════════

// LogEmitter writes audit records to the structured log. The default for
// deployments without a durable audit sink.
type LogEmitter struct {
	logger *slog.Logger
}

// NewLogEmitter creates a LogEmitter.
func NewLogEmitter(logger *slog.Logger) *LogEmitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogEmitter{logger: logger.With("component", "audit")}
}

// Emit implements gateway.AuditEmitter.
func (e *LogEmitter) Emit(_ context.Context, record gateway.AuditRecord) error {
	e.logger.Info("audit",
		"action", record.Action,
		"learner_id", record.LearnerID,
		"event_id", record.EventID,
		"instance_id", record.InstanceID,
		"occurred_at", record.OccurredAt,
	)
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// BREAKER EMITTER
// ══════════════════════════════════════════════════════════════════════════════

// BreakerEmitter wraps another emitter with a circuit breaker. When the
// downstream sink runs into consecutive failures the breaker opens and
// records are dropped fast instead of stalling mutation acknowledgements
// on a dead endpoint.
type BreakerEmitter struct {
	inner   gateway.AuditEmitter
	breaker *circuitbreaker.Breaker
	logger  *slog.Logger
}

// NewBreakerEmitter wraps inner with a breaker using cfg.
func NewBreakerEmitter(inner gateway.AuditEmitter, cfg circuitbreaker.Config, logger *slog.Logger) *BreakerEmitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &BreakerEmitter{
		inner:   inner,
		breaker: circuitbreaker.New(cfg),
		logger:  logger.With("component", "audit_breaker"),
	}
}

// Emit implements gateway.AuditEmitter.
func (e *BreakerEmitter) Emit(ctx context.Context, record gateway.AuditRecord) error {
	err := e.breaker.Do(func() error {
		return e.inner.Emit(ctx, record)
	})
	if err == circuitbreaker.ErrOpen {
		e.logger.Debug("audit record dropped, breaker open", "action", record.Action)
	}
	return err
}

// State exposes the breaker state for health reporting.
func (e *BreakerEmitter) State() circuitbreaker.State {
	return e.breaker.State()
}
