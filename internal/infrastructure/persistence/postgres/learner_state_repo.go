// Package postgres implements the PostgreSQL persistence layer for the
// progress engine.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/elzatona/progress-engine/internal/domain/plan"
	"github.com/elzatona/progress-engine/internal/domain/progress"
	"github.com/elzatona/progress-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEARNER STATE REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// LearnerStateRepository implements progress.StateRepository for PostgreSQL.
// Saves are atomic per learner: the ledger document and every plan instance
// row commit in one transaction.
type LearnerStateRepository struct {
	conn *Connection
}

// NewLearnerStateRepository creates a new LearnerStateRepository.
func NewLearnerStateRepository(conn *Connection) *LearnerStateRepository {
	return &LearnerStateRepository{conn: conn}
}

// SaveLearnerState writes the learner's ledger and instances atomically.
func (r *LearnerStateRepository) SaveLearnerState(ctx context.Context, state *progress.LearnerState) error {
	ledgerJSON, err := json.Marshal(state.Ledger)
	if err != nil {
		return fmt.Errorf("failed to marshal ledger: %w", err)
	}

	return r.conn.WithTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO learner_states (learner_id, ledger, created_at, updated_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (learner_id)
			DO UPDATE SET ledger = EXCLUDED.ledger, updated_at = EXCLUDED.updated_at
		`, state.LearnerID.String(), ledgerJSON, state.Ledger.CreatedAt, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("failed to upsert ledger: %w", err)
		}

		for _, inst := range state.Instances {
			if err := upsertInstance(ctx, tx, inst); err != nil {
				return err
			}
		}
		return nil
	})
}

func upsertInstance(ctx context.Context, tx pgx.Tx, inst *plan.Instance) error {
	goalsJSON, err := json.Marshal(inst.DailyGoals)
	if err != nil {
		return fmt.Errorf("failed to marshal daily goals: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO plan_instances (
			id, learner_id, template_id, status, started_at,
			current_day, questions_completed, daily_goals, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id)
		DO UPDATE SET
			status = EXCLUDED.status,
			current_day = EXCLUDED.current_day,
			questions_completed = EXCLUDED.questions_completed,
			daily_goals = EXCLUDED.daily_goals,
			updated_at = EXCLUDED.updated_at
	`,
		inst.ID.String(),
		inst.LearnerID.String(),
		inst.TemplateID.String(),
		string(inst.Status),
		inst.StartedAt,
		inst.CurrentDay,
		inst.QuestionsCompleted,
		goalsJSON,
		inst.CreatedAt,
		inst.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert plan instance %s: %w", inst.ID, err)
	}
	return nil
}

// LoadLearnerState returns the learner's state, or an error wrapping
// shared.ErrNotFound when no record exists.
func (r *LearnerStateRepository) LoadLearnerState(ctx context.Context, learnerID shared.LearnerID) (*progress.LearnerState, error) {
	var ledgerJSON []byte
	err := r.conn.QueryRow(ctx, `
		SELECT ledger FROM learner_states WHERE learner_id = $1
	`, learnerID.String()).Scan(&ledgerJSON)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrLearnerNotFound
		}
		return nil, fmt.Errorf("failed to load ledger: %w", err)
	}

	ledger := &progress.Ledger{}
	if err := json.Unmarshal(ledgerJSON, ledger); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ledger: %w", err)
	}
	normalizeLedger(ledger)

	instances, err := r.loadInstances(ctx, learnerID)
	if err != nil {
		return nil, err
	}

	return &progress.LearnerState{
		LearnerID: learnerID,
		Ledger:    ledger,
		Instances: instances,
	}, nil
}

// normalizeLedger restores the map fields a round-trip through JSON can
// leave nil.
func normalizeLedger(l *progress.Ledger) {
	if l.WeeklyBuckets == nil {
		l.WeeklyBuckets = make(map[string]int)
	}
	if l.MonthlyBuckets == nil {
		l.MonthlyBuckets = make(map[string]int)
	}
	if l.SectionStats == nil {
		l.SectionStats = make(map[shared.SectionID]progress.SectionStat)
	}
	if l.AppliedEvents == nil {
		l.AppliedEvents = make(map[shared.EventID]struct{})
	}
}

func (r *LearnerStateRepository) loadInstances(ctx context.Context, learnerID shared.LearnerID) ([]*plan.Instance, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT id, template_id, status, started_at, current_day,
			   questions_completed, daily_goals, created_at, updated_at
		FROM plan_instances
		WHERE learner_id = $1
		ORDER BY created_at
	`, learnerID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query plan instances: %w", err)
	}
	defer rows.Close()

	var instances []*plan.Instance
	for rows.Next() {
		var (
			inst      plan.Instance
			id        string
			template  string
			status    string
			goalsJSON []byte
		)
		if err := rows.Scan(
			&id, &template, &status, &inst.StartedAt, &inst.CurrentDay,
			&inst.QuestionsCompleted, &goalsJSON, &inst.CreatedAt, &inst.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan plan instance: %w", err)
		}

		inst.ID = shared.InstanceID(id)
		inst.TemplateID = shared.TemplateID(template)
		inst.LearnerID = learnerID
		inst.Status = plan.Status(status)

		if err := json.Unmarshal(goalsJSON, &inst.DailyGoals); err != nil {
			return nil, fmt.Errorf("failed to unmarshal daily goals: %w", err)
		}

		instances = append(instances, &inst)
	}
	return instances, rows.Err()
}

// FindLearnerByInstance resolves the learner owning a plan instance.
// Used by the gateway to route instance-addressed commands onto the right
// lane when the learner is not resident in memory.
func (r *LearnerStateRepository) FindLearnerByInstance(ctx context.Context, instanceID shared.InstanceID) (shared.LearnerID, error) {
	var learnerID string
	err := r.conn.QueryRow(ctx, `
		SELECT learner_id FROM plan_instances WHERE id = $1
	`, instanceID.String()).Scan(&learnerID)
	if err != nil {
		if IsNoRows(err) {
			return "", shared.ErrInstanceNotFound
		}
		return "", fmt.Errorf("failed to resolve instance owner: %w", err)
	}
	return shared.LearnerID(learnerID), nil
}
