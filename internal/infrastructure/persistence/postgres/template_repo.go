// Package postgres implements the PostgreSQL persistence layer for the
// progress engine.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/elzatona/progress-engine/internal/domain/plan"
	"github.com/elzatona/progress-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// TEMPLATE REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// sectionWeightRow is the JSONB shape of one weighted section.
type sectionWeightRow struct {
	ID     string `json:"id"`
	Weight int    `json:"weight"`
}

// TemplateRepository implements plan.TemplateSource for PostgreSQL.
// Only published templates are handed out; drafts stay invisible to the
// engine.
type TemplateRepository struct {
	conn *Connection
}

// NewTemplateRepository creates a new TemplateRepository.
func NewTemplateRepository(conn *Connection) *TemplateRepository {
	return &TemplateRepository{conn: conn}
}

// FetchTemplate returns the published template with the given id, or an
// error wrapping shared.ErrNotFound.
func (r *TemplateRepository) FetchTemplate(ctx context.Context, id shared.TemplateID) (plan.Template, error) {
	var (
		t            plan.Template
		templateID   string
		difficulty   string
		sectionsJSON []byte
	)

	err := r.conn.QueryRow(ctx, `
		SELECT id, name, duration_days, total_questions, sections, difficulty_profile
		FROM plan_templates
		WHERE id = $1 AND published
	`, id.String()).Scan(
		&templateID, &t.Name, &t.DurationDays, &t.TotalQuestions, &sectionsJSON, &difficulty,
	)
	if err != nil {
		if IsNoRows(err) {
			return plan.Template{}, shared.ErrTemplateNotFound
		}
		return plan.Template{}, fmt.Errorf("failed to fetch template: %w", err)
	}

	var rows []sectionWeightRow
	if err := json.Unmarshal(sectionsJSON, &rows); err != nil {
		return plan.Template{}, fmt.Errorf("failed to unmarshal template sections: %w", err)
	}

	t.ID = shared.TemplateID(templateID)
	t.DifficultyProfile = shared.Difficulty(difficulty)
	t.Sections = make([]plan.SectionWeight, len(rows))
	for i, row := range rows {
		t.Sections[i] = plan.SectionWeight{
			ID:     shared.SectionID(row.ID),
			Weight: row.Weight,
		}
	}
	return t, nil
}

// SaveTemplate inserts or updates a template. Used by seeding and admin
// tooling; the engine itself only reads.
func (r *TemplateRepository) SaveTemplate(ctx context.Context, t plan.Template, published bool) error {
	rows := make([]sectionWeightRow, len(t.Sections))
	for i, s := range t.Sections {
		rows[i] = sectionWeightRow{ID: s.ID.String(), Weight: s.Weight}
	}
	sectionsJSON, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("failed to marshal template sections: %w", err)
	}

	_, err = r.conn.Exec(ctx, `
		INSERT INTO plan_templates (
			id, name, duration_days, total_questions, sections, difficulty_profile, published
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id)
		DO UPDATE SET
			name = EXCLUDED.name,
			duration_days = EXCLUDED.duration_days,
			total_questions = EXCLUDED.total_questions,
			sections = EXCLUDED.sections,
			difficulty_profile = EXCLUDED.difficulty_profile,
			published = EXCLUDED.published,
			updated_at = NOW()
	`, t.ID.String(), t.Name, t.DurationDays, t.TotalQuestions, sectionsJSON,
		t.DifficultyProfile.String(), published)
	if err != nil {
		return fmt.Errorf("failed to save template: %w", err)
	}
	return nil
}
