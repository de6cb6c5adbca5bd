package progress

import (
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// BADGES & MILESTONES
// ══════════════════════════════════════════════════════════════════════════════

// BadgeType identifies a badge.
type BadgeType string

const (
	// BadgeFirstQuestion - first question ever answered.
	BadgeFirstQuestion BadgeType = "first_question"
	// BadgeStreak7 - reached a 7-day streak.
	BadgeStreak7 BadgeType = "streak_7"
	// BadgeStreak30 - reached a 30-day streak.
	BadgeStreak30 BadgeType = "streak_30"
	// BadgeCentury - 100 questions answered.
	BadgeCentury BadgeType = "questions_100"
	// BadgeGrinder - 500 questions answered.
	BadgeGrinder BadgeType = "questions_500"
	// BadgeSectionCenturion - 100 correct answers in one section.
	BadgeSectionCenturion BadgeType = "section_centurion"
	// BadgeSectionExpert - expert mastery in any section.
	BadgeSectionExpert BadgeType = "section_expert"
	// BadgeChallenger - 10 challenges completed.
	BadgeChallenger BadgeType = "challenger_10"
	// BadgePlanFinisher - completed a full study plan.
	BadgePlanFinisher BadgeType = "plan_finisher"
)

// Badge is one earned badge.
type Badge struct {
	Type     BadgeType `json:"type"`
	EarnedAt time.Time `json:"earned_at"`
}

// Milestone is a points threshold the learner has crossed.
type Milestone struct {
	Points   int       `json:"points"`
	EarnedAt time.Time `json:"earned_at"`
}

// milestoneThresholds are the points milestones, ascending.
var milestoneThresholds = []int{100, 500, 1000, 5000}

// BadgeRule is a threshold predicate over a ledger snapshot.
type BadgeRule struct {
	Type        BadgeType
	Description string
	Earned      func(l *Ledger) bool
}

// BadgeRules returns the full rule set. Evaluation is O(len(rules)) per
// ledger mutation, which keeps full recomputation cheap.
func BadgeRules() []BadgeRule {
	return []BadgeRule{
		{BadgeFirstQuestion, "Answered the first question", func(l *Ledger) bool {
			return l.TotalQuestions >= 1
		}},
		{BadgeStreak7, "7 days in a row", func(l *Ledger) bool {
			return l.LongestStreakDays >= 7
		}},
		{BadgeStreak30, "30 days in a row", func(l *Ledger) bool {
			return l.LongestStreakDays >= 30
		}},
		{BadgeCentury, "100 questions answered", func(l *Ledger) bool {
			return l.TotalQuestions >= 100
		}},
		{BadgeGrinder, "500 questions answered", func(l *Ledger) bool {
			return l.TotalQuestions >= 500
		}},
		{BadgeSectionCenturion, "100 correct in one section", func(l *Ledger) bool {
			for _, s := range l.SectionStats {
				if s.Correct >= 100 {
					return true
				}
			}
			return false
		}},
		{BadgeSectionExpert, "Expert mastery in a section", func(l *Ledger) bool {
			for _, s := range l.SectionStats {
				if s.MasteryLevel == MasteryExpert {
					return true
				}
			}
			return false
		}},
		{BadgeChallenger, "10 challenges completed", func(l *Ledger) bool {
			return l.TotalChallenges >= 10
		}},
		{BadgePlanFinisher, "Completed a study plan", func(l *Ledger) bool {
			return l.PlansCompleted >= 1
		}},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENT STATE
// ══════════════════════════════════════════════════════════════════════════════

// AchievementState is derived from a ledger snapshot. It is a cache, not a
// source of truth: safe to discard and recompute at any time, and it is
// recomputed in full on every ledger mutation to avoid divergence.
type AchievementState struct {
	Points     int         `json:"points"`
	Level      int         `json:"level"`
	Badges     []Badge     `json:"badges"`
	Milestones []Milestone `json:"milestones"`
}

// HasBadge checks whether a badge is present.
func (a AchievementState) HasBadge(t BadgeType) bool {
	for _, b := range a.Badges {
		if b.Type == t {
			return true
		}
	}
	return false
}

// Evaluate recomputes the full achievement state from a ledger snapshot.
// Pure: same ledger, same result (badge timestamps aside, which record when
// the evaluation first saw them — the caller diffs against the previous
// state to detect newly earned items).
func Evaluate(l *Ledger, rules Rules) AchievementState {
	now := time.Now().UTC()

	state := AchievementState{
		Points: l.TotalPoints,
		Level:  rules.Level(l.TotalPoints),
	}

	for _, rule := range BadgeRules() {
		if rule.Earned(l) {
			state.Badges = append(state.Badges, Badge{Type: rule.Type, EarnedAt: now})
		}
	}

	for _, threshold := range milestoneThresholds {
		if l.TotalPoints >= threshold {
			state.Milestones = append(state.Milestones, Milestone{Points: threshold, EarnedAt: now})
		}
	}

	return state
}

// AchievementDiff lists what a new evaluation earned over the previous one.
type AchievementDiff struct {
	NewBadges     []Badge
	NewMilestones []Milestone
	LeveledUp     bool
	NewLevel      int
}

// IsEmpty reports whether nothing new was earned.
func (d AchievementDiff) IsEmpty() bool {
	return len(d.NewBadges) == 0 && len(d.NewMilestones) == 0 && !d.LeveledUp
}

// Diff compares two achievement states and returns newly earned items.
// The engine publishes one event per new item so callers get notified
// exactly once.
func Diff(prev, next AchievementState) AchievementDiff {
	diff := AchievementDiff{NewLevel: next.Level}

	for _, b := range next.Badges {
		if !prev.HasBadge(b.Type) {
			diff.NewBadges = append(diff.NewBadges, b)
		}
	}

	prevMilestones := make(map[int]bool, len(prev.Milestones))
	for _, m := range prev.Milestones {
		prevMilestones[m.Points] = true
	}
	for _, m := range next.Milestones {
		if !prevMilestones[m.Points] {
			diff.NewMilestones = append(diff.NewMilestones, m)
		}
	}

	diff.LeveledUp = next.Level > prev.Level

	return diff
}

// ══════════════════════════════════════════════════════════════════════════════
// LEARNER STATE
// ══════════════════════════════════════════════════════════════════════════════

// Snapshot is the read model returned by GetProgressSnapshot: the ledger
// plus its derived achievement state, deep-copied out of the owning lane.
type Snapshot struct {
	Ledger       *Ledger
	Achievements AchievementState
}
