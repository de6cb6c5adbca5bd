// Package postgres implements the PostgreSQL persistence layer for the
// progress engine.
package postgres

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: LEARNER STATE
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- Migration: Create learner state tables
-- Version: 001

-- The ledger travels as one JSONB document: it is only ever read and
-- written whole, by the learner's owning lane.
CREATE TABLE IF NOT EXISTS learner_states (
    learner_id VARCHAR(64) PRIMARY KEY,
    ledger JSONB NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

-- Plan instances get their own rows so lifecycle state and the current day
-- are queryable without unpacking JSON.
CREATE TABLE IF NOT EXISTS plan_instances (
    id UUID PRIMARY KEY,
    learner_id VARCHAR(64) NOT NULL REFERENCES learner_states(learner_id) ON DELETE CASCADE,
    template_id VARCHAR(64) NOT NULL,
    status VARCHAR(20) NOT NULL,
    started_at TIMESTAMP WITH TIME ZONE NOT NULL,
    current_day INTEGER NOT NULL DEFAULT 1,
    questions_completed INTEGER NOT NULL DEFAULT 0,
    daily_goals JSONB NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_status CHECK (status IN ('active', 'paused', 'completed', 'cancelled')),
    CONSTRAINT valid_current_day CHECK (current_day >= 1)
);

CREATE INDEX IF NOT EXISTS idx_plan_instances_learner_id ON plan_instances(learner_id);
CREATE INDEX IF NOT EXISTS idx_plan_instances_status ON plan_instances(status) WHERE status IN ('active', 'paused');
`


// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: PLAN TEMPLATES
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
-- Migration: Create plan templates
-- Version: 002

CREATE TABLE IF NOT EXISTS plan_templates (
    id VARCHAR(64) PRIMARY KEY,
    name VARCHAR(200) NOT NULL,
    duration_days INTEGER NOT NULL,
    total_questions INTEGER NOT NULL,
    sections JSONB NOT NULL,
    difficulty_profile VARCHAR(20) NOT NULL DEFAULT 'medium',
    published BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_duration CHECK (duration_days >= 1),
    CONSTRAINT valid_quota CHECK (total_questions >= 1),
    CONSTRAINT valid_difficulty CHECK (difficulty_profile IN ('easy', 'medium', 'hard'))
);

CREATE INDEX IF NOT EXISTS idx_plan_templates_published ON plan_templates(published) WHERE published;
`


// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: AUDIT TRAIL
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
-- Migration: Create audit trail
-- Version: 003

-- Append-only. Rows are written best-effort after each acknowledged
-- mutation and never updated.
CREATE TABLE IF NOT EXISTS audit_trail (
    id BIGSERIAL PRIMARY KEY,
    action VARCHAR(50) NOT NULL,
    learner_id VARCHAR(64) NOT NULL,
    event_id VARCHAR(128),
    instance_id VARCHAR(64),
    detail JSONB,
    occurred_at TIMESTAMP WITH TIME ZONE NOT NULL,
    recorded_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_audit_trail_learner_id ON audit_trail(learner_id, occurred_at DESC);
CREATE INDEX IF NOT EXISTS idx_audit_trail_action ON audit_trail(action);
`


// GetMigrations returns all embedded migrations.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_learner_state",
			UpSQL:   migration001Up,
		},
		{
			Version: 2,
			Name:    "create_plan_templates",
			UpSQL:   migration002Up,
		},
		{
			Version: 3,
			Name:    "create_audit_trail",
			UpSQL:   migration003Up,
		},
	}
}
