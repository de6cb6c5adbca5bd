package progress

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvaluate_EmptyLedger(t *testing.T) {
	l := NewLedger("learner-1")

	state := Evaluate(l, DefaultRules())

	assert.Equal(t, 0, state.Points)
	assert.Equal(t, 1, state.Level)
	assert.Empty(t, state.Badges)
	assert.Empty(t, state.Milestones)
}

func TestEvaluate_FirstQuestionBadge(t *testing.T) {
	l := NewLedger("learner-1")
	l.TotalQuestions = 1

	state := Evaluate(l, DefaultRules())

	assert.True(t, state.HasBadge(BadgeFirstQuestion))
	assert.False(t, state.HasBadge(BadgeCentury))
}

func TestEvaluate_StreakBadgesUseLongestStreak(t *testing.T) {
	l := NewLedger("learner-1")
	l.LongestStreakDays = 12
	l.CurrentStreakDays = 1 // broken since, but the badge stays earned

	state := Evaluate(l, DefaultRules())

	assert.True(t, state.HasBadge(BadgeStreak7))
	assert.False(t, state.HasBadge(BadgeStreak30))
}

func TestEvaluate_SectionBadges(t *testing.T) {
	l := NewLedger("learner-1")
	l.SectionStats["algorithms"] = SectionStat{Attempts: 120, Correct: 105, MasteryLevel: MasteryAdvanced}
	l.SectionStats["system-design"] = SectionStat{Attempts: 20, Correct: 19, MasteryLevel: MasteryExpert}

	state := Evaluate(l, DefaultRules())

	assert.True(t, state.HasBadge(BadgeSectionCenturion))
	assert.True(t, state.HasBadge(BadgeSectionExpert))
}

func TestEvaluate_Milestones(t *testing.T) {
	l := NewLedger("learner-1")
	l.TotalPoints = 1200

	state := Evaluate(l, DefaultRules())

	points := make([]int, 0, len(state.Milestones))
	for _, m := range state.Milestones {
		points = append(points, m.Points)
	}
	assert.Equal(t, []int{100, 500, 1000}, points)
	assert.Equal(t, 13, state.Level)
}

func TestDiff_OnlyNewItems(t *testing.T) {
	l := NewLedger("learner-1")
	l.TotalQuestions = 1
	l.TotalPoints = 90
	prev := Evaluate(l, DefaultRules())

	l.TotalQuestions = 100
	l.TotalPoints = 520
	next := Evaluate(l, DefaultRules())

	diff := Diff(prev, next)

	badgeTypes := make([]BadgeType, 0, len(diff.NewBadges))
	for _, b := range diff.NewBadges {
		badgeTypes = append(badgeTypes, b.Type)
	}
	assert.Equal(t, []BadgeType{BadgeCentury}, badgeTypes)

	milestones := make([]int, 0, len(diff.NewMilestones))
	for _, m := range diff.NewMilestones {
		milestones = append(milestones, m.Points)
	}
	assert.Equal(t, []int{100, 500}, milestones)

	assert.True(t, diff.LeveledUp)
	assert.Equal(t, 6, diff.NewLevel)
	assert.False(t, diff.IsEmpty())
}

func TestDiff_NoChanges(t *testing.T) {
	l := NewLedger("learner-1")
	l.TotalQuestions = 5
	l.TotalPoints = 50

	state := Evaluate(l, DefaultRules())
	diff := Diff(state, state)

	assert.True(t, diff.IsEmpty())
	assert.False(t, diff.LeveledUp)
}

func TestDiff_NeverReAnnouncesEarnedBadges(t *testing.T) {
	l := NewLedger("learner-1")
	l.TotalQuestions = 100
	prev := Evaluate(l, DefaultRules())

	l.TotalQuestions = 101
	next := Evaluate(l, DefaultRules())

	diff := Diff(prev, next)

	assert.Empty(t, diff.NewBadges)
	assert.True(t, diff.IsEmpty())
}
