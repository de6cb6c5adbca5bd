// Package progress contains the accounting side of the engine: the
// per-learner progress ledger, the scoring rules, and the achievement
// evaluator. The ledger is the source of truth; accuracy, mastery and
// achievements are always recomputed from it, never patched incrementally.
package progress

import (
	"sort"
	"time"

	"github.com/elzatona/progress-engine/internal/domain/shared"
	"github.com/elzatona/progress-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// PRACTICE EVENT
// ══════════════════════════════════════════════════════════════════════════════

// EventKind distinguishes the two practice event shapes.
type EventKind string

const (
	// KindQuestion - a single question attempt.
	KindQuestion EventKind = "question"
	// KindChallenge - a coding-challenge completion with a proportional score.
	KindChallenge EventKind = "challenge"
)

// IsValid checks that the kind is known.
func (k EventKind) IsValid() bool {
	return k == KindQuestion || k == KindChallenge
}

// PracticeEvent is one practice action by a learner. Events are inputs; the
// engine never persists them, only their effect on the ledger. EventID is
// the idempotency key that makes re-delivery safe.
type PracticeEvent struct {
	EventID        shared.EventID
	LearnerID      shared.LearnerID
	PlanInstanceID shared.InstanceID // empty for free practice
	SectionID      shared.SectionID
	Kind           EventKind
	Difficulty     shared.Difficulty
	IsCorrect      bool

	// Attempts is how many tries this answer took (>= 1). Extra attempts
	// reduce the points earned.
	Attempts int

	// Score/MaxScore carry the proportional result of a challenge.
	// Ignored for question events.
	Score    int
	MaxScore int

	TimeSpentSeconds int
	OccurredAt       time.Time
}

// Validate checks the event's required fields.
func (e PracticeEvent) Validate() error {
	if !e.EventID.IsValid() {
		return shared.NewDomainError("progress", "Validate", shared.ErrInvalidID, "event id is required")
	}
	if !e.LearnerID.IsValid() {
		return shared.NewDomainError("progress", "Validate", shared.ErrInvalidID, "learner id is required")
	}
	if !e.SectionID.IsValid() {
		return shared.NewDomainError("progress", "Validate", shared.ErrInvalidID, "section id is required")
	}
	if e.Kind == "" {
		return shared.NewDomainError("progress", "Validate", shared.ErrEmptyValue, "event kind is required")
	}
	if !e.Kind.IsValid() {
		return shared.NewDomainError("progress", "Validate", shared.ErrInvalidInput, "unknown event kind: "+string(e.Kind))
	}
	if e.Kind == KindQuestion && !e.Difficulty.IsValid() {
		return shared.NewDomainError("progress", "Validate", shared.ErrInvalidInput, "unknown difficulty: "+e.Difficulty.String())
	}
	if e.Kind == KindChallenge && e.MaxScore <= 0 {
		return shared.NewDomainError("progress", "Validate", shared.ErrInvalidInput, "challenge max score must be positive")
	}
	if e.TimeSpentSeconds < 0 {
		return shared.NewDomainError("progress", "Validate", shared.ErrNegativeValue, "time spent cannot be negative")
	}
	if e.OccurredAt.IsZero() {
		return shared.NewDomainError("progress", "Validate", shared.ErrEmptyValue, "occurredAt is required")
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// MASTERY
// ══════════════════════════════════════════════════════════════════════════════

// MasteryLevel is the banded skill label per topic section.
type MasteryLevel string

const (
	MasteryBeginner     MasteryLevel = "beginner"
	MasteryIntermediate MasteryLevel = "intermediate"
	MasteryAdvanced     MasteryLevel = "advanced"
	MasteryExpert       MasteryLevel = "expert"
)

// masteryBand maps a rolling accuracy percentage to a level.
// Bands: <60 beginner, 60-79 intermediate, 80-94 advanced, >=95 expert.
func masteryBand(accuracyPct float64) MasteryLevel {
	switch {
	case accuracyPct >= 95:
		return MasteryExpert
	case accuracyPct >= 80:
		return MasteryAdvanced
	case accuracyPct >= 60:
		return MasteryIntermediate
	default:
		return MasteryBeginner
	}
}

// SectionStat is the per-section accumulator behind mastery.
type SectionStat struct {
	Attempts     int          `json:"attempts"`
	Correct      int          `json:"correct"`
	MasteryLevel MasteryLevel `json:"mastery_level"`
}

// Accuracy returns the section's rolling accuracy in percent.
func (s SectionStat) Accuracy() float64 {
	if s.Attempts == 0 {
		return 0
	}
	return float64(s.Correct) / float64(s.Attempts) * 100
}

// ══════════════════════════════════════════════════════════════════════════════
// LEDGER
// ══════════════════════════════════════════════════════════════════════════════

// Ledger is one learner's rolling practice statistics. It exists
// independently of any plan instance: free practice feeds it too. It is
// created lazily on the learner's first event and mutated only through
// Apply, under the owning lane's single-writer discipline.
type Ledger struct {
	LearnerID shared.LearnerID `json:"learner_id"`

	TotalQuestions   int `json:"total_questions"`
	CorrectAnswers   int `json:"correct_answers"`
	TotalChallenges  int `json:"total_challenges"`
	TimeSpentSeconds int `json:"time_spent_seconds"`
	TotalPoints      int `json:"total_points"`
	PlansCompleted   int `json:"plans_completed"`

	CurrentStreakDays int `json:"current_streak_days"`
	LongestStreakDays int `json:"longest_streak_days"`

	// LastActivityDate is midnight UTC of the most recent activity day.
	LastActivityDate time.Time `json:"last_activity_date"`

	// WeeklyBuckets / MonthlyBuckets count events per ISO week / month key.
	WeeklyBuckets  map[string]int `json:"weekly_buckets"`
	MonthlyBuckets map[string]int `json:"monthly_buckets"`

	SectionStats map[shared.SectionID]SectionStat `json:"section_stats"`

	// AppliedEvents records every applied idempotency key. Duplicates are
	// detected here authoritatively; the redis index is only a fast path.
	AppliedEvents map[shared.EventID]struct{} `json:"applied_events"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewLedger creates an empty ledger for a learner.
func NewLedger(learnerID shared.LearnerID) *Ledger {
	now := time.Now().UTC()
	return &Ledger{
		LearnerID:      learnerID,
		WeeklyBuckets:  make(map[string]int),
		MonthlyBuckets: make(map[string]int),
		SectionStats:   make(map[shared.SectionID]SectionStat),
		AppliedEvents:  make(map[shared.EventID]struct{}),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Accuracy returns overall accuracy in percent, recomputed from the
// counters so it can never drift.
func (l *Ledger) Accuracy() float64 {
	if l.TotalQuestions == 0 {
		return 0
	}
	return float64(l.CorrectAnswers) / float64(l.TotalQuestions) * 100
}

// SectionIDs returns the ids of all tracked sections in ascending order,
// so views iterate deterministically.
func (l *Ledger) SectionIDs() []shared.SectionID {
	ids := make([]shared.SectionID, 0, len(l.SectionStats))
	for id := range l.SectionStats {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Seen reports whether an event id was already applied.
func (l *Ledger) Seen(id shared.EventID) bool {
	_, ok := l.AppliedEvents[id]
	return ok
}

// Delta describes the effect one event had on the ledger.
type Delta struct {
	EventID      shared.EventID
	PointsEarned int

	StreakChanged  bool
	StreakBroken   bool
	PreviousStreak int
	CurrentStreak  int

	MasteryChanged   bool
	Section          shared.SectionID
	SectionMastery   MasteryLevel
	QuestionsApplied int
}

// Apply folds one practice event into the ledger. Idempotent per event id:
// a replay returns shared.ErrDuplicateEvent and changes nothing. Events may
// arrive with out-of-order timestamps; counters always apply, but the streak
// never moves backward.
func (l *Ledger) Apply(ev PracticeEvent, rules Rules) (Delta, error) {
	if err := ev.Validate(); err != nil {
		return Delta{}, err
	}
	if l.Seen(ev.EventID) {
		return Delta{}, shared.ErrDuplicateEvent
	}

	delta := Delta{EventID: ev.EventID, Section: ev.SectionID}

	// Counters.
	switch ev.Kind {
	case KindQuestion:
		l.TotalQuestions++
		delta.QuestionsApplied = 1
		if ev.IsCorrect {
			l.CorrectAnswers++
		}
	case KindChallenge:
		l.TotalChallenges++
	}
	l.TimeSpentSeconds += ev.TimeSpentSeconds

	// Points.
	delta.PointsEarned = rules.Points(ev)
	l.TotalPoints += delta.PointsEarned

	// Activity buckets.
	l.WeeklyBuckets[timeutil.WeekKey(ev.OccurredAt)]++
	l.MonthlyBuckets[timeutil.MonthKey(ev.OccurredAt)]++

	// Section stats and mastery.
	stat := l.SectionStats[ev.SectionID]
	if stat.MasteryLevel == "" {
		stat.MasteryLevel = MasteryBeginner
	}
	stat.Attempts++
	if ev.IsCorrect {
		stat.Correct++
	}
	// The band is applied only once the sample is big enough; below the
	// minimum the current level stands.
	if stat.Attempts >= rules.MinMasterySample {
		next := masteryBand(stat.Accuracy())
		if next != stat.MasteryLevel {
			stat.MasteryLevel = next
			delta.MasteryChanged = true
			delta.SectionMastery = next
		}
	}
	l.SectionStats[ev.SectionID] = stat

	// Streak.
	l.applyStreak(ev.OccurredAt, &delta)

	l.AppliedEvents[ev.EventID] = struct{}{}
	l.UpdatedAt = time.Now().UTC()

	delta.CurrentStreak = l.CurrentStreakDays
	return delta, nil
}

// applyStreak implements the calendar-day streak rules, including the
// guard against out-of-order delivery: an event dated before the last
// activity day updates counters but never moves the streak backward.
func (l *Ledger) applyStreak(occurredAt time.Time, delta *Delta) {
	day := timeutil.StartOfDay(occurredAt)

	if l.LastActivityDate.IsZero() {
		l.CurrentStreakDays = 1
		if l.LongestStreakDays < 1 {
			l.LongestStreakDays = 1
		}
		l.LastActivityDate = day
		delta.StreakChanged = true
		return
	}

	gap := timeutil.DaysBetween(l.LastActivityDate, day)
	switch {
	case gap <= 0:
		// Same day, or a late event from the past: no streak movement.
		return
	case gap == 1:
		l.CurrentStreakDays++
		if l.CurrentStreakDays > l.LongestStreakDays {
			l.LongestStreakDays = l.CurrentStreakDays
		}
		delta.StreakChanged = true
	default:
		// Missed at least one day: the streak restarts at 1 today.
		delta.StreakBroken = true
		delta.PreviousStreak = l.CurrentStreakDays
		l.CurrentStreakDays = 1
		delta.StreakChanged = true
	}

	l.LastActivityDate = day
}

// RecordPlanCompleted bumps the plans-completed counter and grants the
// completion bonus derived from overall accuracy.
func (l *Ledger) RecordPlanCompleted(rules Rules) int {
	l.PlansCompleted++
	bonus := rules.PlanCompletionBonus(l.Accuracy())
	l.TotalPoints += bonus
	l.UpdatedAt = time.Now().UTC()
	return bonus
}

// Clone returns a deep copy for read snapshots that escape the owning lane.
func (l *Ledger) Clone() *Ledger {
	if l == nil {
		return nil
	}

	clone := *l

	clone.WeeklyBuckets = make(map[string]int, len(l.WeeklyBuckets))
	for k, v := range l.WeeklyBuckets {
		clone.WeeklyBuckets[k] = v
	}
	clone.MonthlyBuckets = make(map[string]int, len(l.MonthlyBuckets))
	for k, v := range l.MonthlyBuckets {
		clone.MonthlyBuckets[k] = v
	}
	clone.SectionStats = make(map[shared.SectionID]SectionStat, len(l.SectionStats))
	for k, v := range l.SectionStats {
		clone.SectionStats[k] = v
	}
	clone.AppliedEvents = make(map[shared.EventID]struct{}, len(l.AppliedEvents))
	for k := range l.AppliedEvents {
		clone.AppliedEvents[k] = struct{}{}
	}

	return &clone
}
