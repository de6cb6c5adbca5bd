// Package plan contains the scheduling side of the engine: plan templates,
// deterministic schedule generation, and the per-learner plan instance with
// its lifecycle state machine. This package has no external dependencies.
package plan

import (
	"sort"

	"github.com/elzatona/progress-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// TEMPLATE
// ══════════════════════════════════════════════════════════════════════════════

// SectionWeight is one weighted topic section of a template. Weights across a
// template's sections sum to 100.
type SectionWeight struct {
	// ID identifies the topic section (e.g. "javascript", "system-design").
	ID shared.SectionID

	// Weight is the section's share of every day's quota, in percent.
	// A weight of 0 is allowed and yields 0 questions every day.
	Weight int
}

// Template is the author-defined blueprint for a multi-day study plan.
// Templates are immutable once published; the engine only reads them.
type Template struct {
	// ID is the template slug.
	ID shared.TemplateID

	// Name is the display name (informational only).
	Name string

	// DurationDays is the plan length in calendar days. Must be >= 1.
	DurationDays int

	// TotalQuestions is the question quota for the whole plan. Must be >= 1.
	TotalQuestions int

	// Sections are the weighted topic sections. Weights must sum to 100.
	Sections []SectionWeight

	// DifficultyProfile is the template's difficulty label. Informational;
	// it does not alter allocation.
	DifficultyProfile shared.Difficulty
}

// NormalizedTemplate is the canonical, validated form of a Template.
// Sections are sorted by ascending id, which fixes the remainder tie order
// used by the schedule generator. Only ResolveTemplate produces values of
// this type.
type NormalizedTemplate struct {
	ID                shared.TemplateID
	Name              string
	DurationDays      int
	TotalQuestions    int
	Sections          []SectionWeight
	DifficultyProfile shared.Difficulty
}

// ══════════════════════════════════════════════════════════════════════════════
// TEMPLATE RESOLVER
// ══════════════════════════════════════════════════════════════════════════════

// ResolveTemplate validates a template and normalizes it into canonical form.
// Pure, no side effects. On violation it returns a validation error naming
// the violated field; a template that fails here never produces a schedule.
func ResolveTemplate(t Template) (NormalizedTemplate, error) {
	if !t.ID.IsValid() {
		return NormalizedTemplate{}, shared.InvalidTemplate("id", "must be a non-empty slug")
	}

	if t.DurationDays < 1 {
		return NormalizedTemplate{}, shared.InvalidTemplate("durationDays", "must be at least 1")
	}

	if t.TotalQuestions < 1 {
		return NormalizedTemplate{}, shared.InvalidTemplate("totalQuestions", "must be at least 1")
	}

	if len(t.Sections) == 0 {
		return NormalizedTemplate{}, shared.InvalidTemplate("sections", "at least one section is required")
	}

	weightSum := 0
	seen := make(map[shared.SectionID]bool, len(t.Sections))
	for _, s := range t.Sections {
		if !s.ID.IsValid() {
			return NormalizedTemplate{}, shared.InvalidTemplate("sections", "section id must be non-empty")
		}
		if seen[s.ID] {
			return NormalizedTemplate{}, shared.InvalidTemplate("sections", "duplicate section id: "+s.ID.String())
		}
		seen[s.ID] = true

		if s.Weight < 0 {
			return NormalizedTemplate{}, shared.InvalidTemplate("sections", "section weight cannot be negative: "+s.ID.String())
		}
		weightSum += s.Weight
	}

	if weightSum != 100 {
		return NormalizedTemplate{}, shared.InvalidTemplate("sections", "section weights must sum to 100")
	}

	if t.DifficultyProfile != "" && !t.DifficultyProfile.IsValid() {
		return NormalizedTemplate{}, shared.InvalidTemplate("difficultyProfile", "unknown difficulty: "+t.DifficultyProfile.String())
	}

	// Canonical section order: ascending id. The schedule generator relies
	// on this order for deterministic remainder tie-breaking.
	sections := make([]SectionWeight, len(t.Sections))
	copy(sections, t.Sections)
	sort.Slice(sections, func(i, j int) bool {
		return sections[i].ID < sections[j].ID
	})

	return NormalizedTemplate{
		ID:                t.ID,
		Name:              t.Name,
		DurationDays:      t.DurationDays,
		TotalQuestions:    t.TotalQuestions,
		Sections:          sections,
		DifficultyProfile: t.DifficultyProfile,
	}, nil
}
