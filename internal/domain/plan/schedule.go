package plan

import (
	"sort"

	"github.com/elzatona/progress-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// DAILY GOAL
// ══════════════════════════════════════════════════════════════════════════════

// SectionTarget is one section's share of a day's quota.
type SectionTarget struct {
	SectionID shared.SectionID `json:"section_id"`
	Count     int              `json:"count"`
}

// DailyGoal is one day's question quota, broken down by topic section.
// Targets are fixed at generation time; CompletedQuestions accumulates as
// practice events arrive.
type DailyGoal struct {
	// Day is 1-based.
	Day int `json:"day"`

	// TargetQuestions is the day's quota. May be 0 when the template quota
	// is smaller than its duration; such days are complete from the start.
	TargetQuestions int `json:"target_questions"`

	// PerSectionTargets sum to TargetQuestions.
	PerSectionTargets []SectionTarget `json:"per_section_targets"`

	// CompletedQuestions may exceed TargetQuestions; over-completion is
	// recorded but never reduces other days' targets.
	CompletedQuestions int `json:"completed_questions"`
}

// Completed reports whether the day's goal is satisfied. Derived, never
// stored: a zero-target day is trivially complete.
func (g DailyGoal) Completed() bool {
	return g.CompletedQuestions >= g.TargetQuestions
}

// Schedule is the derived, ordered sequence of daily goals for a template.
// It is a pure function of the normalized template and is never persisted:
// after a crash it is regenerated rather than reloaded.
type Schedule struct {
	TemplateID shared.TemplateID
	Days       []DailyGoal
}

// TotalQuestions returns the sum of all daily targets. Always equals the
// template's quota.
func (s Schedule) TotalQuestions() int {
	total := 0
	for _, d := range s.Days {
		total += d.TargetQuestions
	}
	return total
}

// ══════════════════════════════════════════════════════════════════════════════
// SCHEDULE GENERATOR
// ══════════════════════════════════════════════════════════════════════════════

// GenerateSchedule produces the day-by-day schedule for a normalized
// template. Deterministic and pure: the same template always yields the same
// schedule, so schedules are reproducible without storage.
//
// Allocation is two nested largest-remainder passes: the plan quota across
// days (the first totalQuestions%durationDays days get one extra), then each
// day's quota across sections against their weights, remainder ties broken
// by ascending section id.
func GenerateSchedule(t NormalizedTemplate) Schedule {
	base := t.TotalQuestions / t.DurationDays
	extra := t.TotalQuestions % t.DurationDays

	days := make([]DailyGoal, t.DurationDays)
	for i := range days {
		target := base
		if i < extra {
			target++
		}

		days[i] = DailyGoal{
			Day:               i + 1,
			TargetQuestions:   target,
			PerSectionTargets: allocateSections(target, t.Sections),
		}
	}

	return Schedule{TemplateID: t.ID, Days: days}
}

// allocateSections splits a day's quota across sections by largest remainder.
// Sections arrive sorted by ascending id (normalized form), so a stable sort
// by descending remainder leaves equal remainders in id order.
func allocateSections(target int, sections []SectionWeight) []SectionTarget {
	targets := make([]SectionTarget, len(sections))
	remainders := make([]int, len(sections))

	allocated := 0
	for i, s := range sections {
		share := target * s.Weight
		targets[i] = SectionTarget{SectionID: s.ID, Count: share / 100}
		remainders[i] = share % 100
		allocated += share / 100
	}

	// Distribute the leftover units to the largest remainders.
	order := make([]int, len(sections))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return remainders[order[a]] > remainders[order[b]]
	})

	for leftover := target - allocated; leftover > 0; leftover-- {
		targets[order[0]].Count++
		order = order[1:]
	}

	return targets
}
