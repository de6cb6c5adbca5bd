package progress

import (
	"math"

	"github.com/elzatona/progress-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SCORING RULES
// ══════════════════════════════════════════════════════════════════════════════

// Rules holds the configurable scoring and mastery parameters. A single
// value is built from config at startup and shared read-only across lanes.
type Rules struct {
	// BasePoints maps difficulty to the points a correct first-attempt
	// answer earns.
	BasePoints map[shared.Difficulty]int

	// AttemptPenalty is subtracted per extra attempt, floored at 1 point.
	AttemptPenalty int

	// ChallengeMaxPoints is the ceiling for a perfect challenge score.
	ChallengeMaxPoints int

	// MinMasterySample is how many section attempts are required before the
	// mastery band is applied.
	MinMasterySample int

	// LevelStep is how many points one level spans.
	LevelStep int
}

// DefaultRules returns the production scoring table: easy 5, medium 10,
// hard 20, penalty 2 per extra attempt, challenges worth up to 50.
func DefaultRules() Rules {
	return Rules{
		BasePoints: map[shared.Difficulty]int{
			shared.DifficultyEasy:   5,
			shared.DifficultyMedium: 10,
			shared.DifficultyHard:   20,
		},
		AttemptPenalty:     2,
		ChallengeMaxPoints: 50,
		MinMasterySample:   10,
		LevelStep:          100,
	}
}

// Points returns how many points a practice event earns. Incorrect question
// answers earn nothing; correct ones earn the difficulty's base minus the
// attempt penalty, never less than 1. Challenges earn their score share of
// ChallengeMaxPoints.
func (r Rules) Points(ev PracticeEvent) int {
	switch ev.Kind {
	case KindChallenge:
		if !ev.IsCorrect || ev.MaxScore <= 0 {
			return 0
		}
		share := float64(ev.Score) / float64(ev.MaxScore)
		if share > 1 {
			share = 1
		}
		return int(math.Round(share * float64(r.ChallengeMaxPoints)))

	case KindQuestion:
		if !ev.IsCorrect {
			return 0
		}
		base, ok := r.BasePoints[ev.Difficulty]
		if !ok {
			base = r.BasePoints[shared.DifficultyEasy]
		}
		penalty := 0
		if ev.Attempts > 1 {
			penalty = (ev.Attempts - 1) * r.AttemptPenalty
		}
		points := base - penalty
		if points < 1 {
			points = 1
		}
		return points
	}

	return 0
}

// PlanCompletionBonus is the one-off bonus granted when a plan completes,
// proportional to the learner's overall accuracy.
func (r Rules) PlanCompletionBonus(accuracyPct float64) int {
	if accuracyPct < 0 {
		return 0
	}
	return int(math.Round(accuracyPct * 2))
}

// Level derives the level from total points: one level per LevelStep,
// starting at level 1.
func (r Rules) Level(points int) int {
	if points < 0 || r.LevelStep <= 0 {
		return 1
	}
	return points/r.LevelStep + 1
}
