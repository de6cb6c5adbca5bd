package plan

import (
	"time"

	"github.com/elzatona/progress-engine/internal/domain/shared"
	"github.com/elzatona/progress-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// STATUS
// ══════════════════════════════════════════════════════════════════════════════

// Status is the lifecycle state of a plan instance.
type Status string

const (
	// StatusActive - the learner is working through the plan.
	StatusActive Status = "active"
	// StatusPaused - the learner paused the plan; it can be resumed.
	StatusPaused Status = "paused"
	// StatusCompleted - every daily goal was met or the last day passed. Terminal.
	StatusCompleted Status = "completed"
	// StatusCancelled - the learner cancelled or reset the plan. Terminal.
	StatusCancelled Status = "cancelled"
)

// IsValid checks that the status is one of the known states.
func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusPaused, StatusCompleted, StatusCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the status rejects further mutation.
// A new instance must be created to run the plan again.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// ══════════════════════════════════════════════════════════════════════════════
// PLAN INSTANCE
// ══════════════════════════════════════════════════════════════════════════════

// Instance is one learner's concrete run through a template. It owns a
// mutable copy of the generated daily goals; the schedule itself stays
// immutable and shared.
//
// Invariants: CurrentDay never exceeds DurationDays()+1; terminal statuses
// never mutate further; QuestionsCompleted equals the sum of the daily
// completions.
type Instance struct {
	ID         shared.InstanceID
	TemplateID shared.TemplateID
	LearnerID  shared.LearnerID
	Status     Status
	StartedAt  time.Time
	CurrentDay int
	DailyGoals []DailyGoal

	// QuestionsCompleted is the sum of daily CompletedQuestions.
	QuestionsCompleted int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// StartInstance instantiates a schedule for one learner. The schedule's
// goals are copied so the shared schedule stays immutable.
func StartInstance(id shared.InstanceID, learnerID shared.LearnerID, schedule Schedule, startedAt time.Time) *Instance {
	goals := make([]DailyGoal, len(schedule.Days))
	copy(goals, schedule.Days)
	for i := range goals {
		targets := make([]SectionTarget, len(schedule.Days[i].PerSectionTargets))
		copy(targets, schedule.Days[i].PerSectionTargets)
		goals[i].PerSectionTargets = targets
	}

	now := time.Now().UTC()

	return &Instance{
		ID:         id,
		TemplateID: schedule.TemplateID,
		LearnerID:  learnerID,
		Status:     StatusActive,
		StartedAt:  startedAt.UTC(),
		CurrentDay: 1,
		DailyGoals: goals,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// DurationDays returns the plan length.
func (p *Instance) DurationDays() int {
	return len(p.DailyGoals)
}

// Goal returns the daily goal for a 1-based day, or nil when out of range.
func (p *Instance) Goal(day int) *DailyGoal {
	if day < 1 || day > len(p.DailyGoals) {
		return nil
	}
	return &p.DailyGoals[day-1]
}

// AllGoalsCompleted reports whether every daily goal is satisfied.
func (p *Instance) AllGoalsCompleted() bool {
	for _, g := range p.DailyGoals {
		if !g.Completed() {
			return false
		}
	}
	return true
}

// ─────────────────────────────────────────────────────────────────────────────
// Lifecycle transitions
// ─────────────────────────────────────────────────────────────────────────────

// Pause transitions active -> paused.
func (p *Instance) Pause() error {
	if p.Status.IsTerminal() {
		return shared.ErrInstanceTerminated
	}
	if p.Status != StatusActive {
		return shared.NewDomainError("plan", "Pause", shared.ErrStateTransition, "can only pause an active plan")
	}

	p.Status = StatusPaused
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// Resume transitions paused -> active.
func (p *Instance) Resume() error {
	if p.Status.IsTerminal() {
		return shared.ErrInstanceTerminated
	}
	if p.Status != StatusPaused {
		return shared.NewDomainError("plan", "Resume", shared.ErrStateTransition, "can only resume a paused plan")
	}

	p.Status = StatusActive
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// Cancel transitions active/paused -> cancelled. Terminal.
func (p *Instance) Cancel() error {
	if p.Status.IsTerminal() {
		return shared.ErrInstanceTerminated
	}

	p.Status = StatusCancelled
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Progress mutation
// ─────────────────────────────────────────────────────────────────────────────

// RecordCompletion adds completed questions to a day's goal. Over-completion
// is allowed and recorded. When the recording satisfies the final goal the
// instance completes immediately, without waiting for a day-boundary event.
func (p *Instance) RecordCompletion(day int, sectionID shared.SectionID, count int) error {
	if p.Status.IsTerminal() {
		return shared.ErrInstanceTerminated
	}
	if count <= 0 {
		return shared.NewDomainError("plan", "RecordCompletion", shared.ErrInvalidInput, "count must be positive")
	}

	goal := p.Goal(day)
	if goal == nil {
		return shared.NewDomainError("plan", "RecordCompletion", shared.ErrValueOutOfRange, "day out of schedule range")
	}

	goal.CompletedQuestions += count
	p.QuestionsCompleted += count
	p.UpdatedAt = time.Now().UTC()

	if p.AllGoalsCompleted() {
		p.complete()
	}

	return nil
}

// AdvanceDay moves the current-day pointer to the calendar day implied by
// asOf. Idempotent: the pointer is derived from StartedAt, so calling it
// twice within the same day cannot double-increment. A day passing with an
// unmet goal counts against nothing but the learner's streak; the plan keeps
// going until its last day passes.
func (p *Instance) AdvanceDay(asOf time.Time) error {
	if p.Status.IsTerminal() {
		return shared.ErrInstanceTerminated
	}
	// A paused plan's clock is frozen; only active plans roll over.
	if p.Status != StatusActive {
		return nil
	}

	day := timeutil.DaysBetween(p.StartedAt, asOf) + 1
	if day <= p.CurrentDay {
		return nil
	}

	// currentDay never exceeds durationDays+1.
	if day > p.DurationDays()+1 {
		day = p.DurationDays() + 1
	}

	p.CurrentDay = day
	p.UpdatedAt = time.Now().UTC()

	if p.CurrentDay > p.DurationDays() || p.AllGoalsCompleted() {
		p.complete()
	}

	return nil
}

func (p *Instance) complete() {
	if p.Status.IsTerminal() {
		return
	}
	p.Status = StatusCompleted
	p.UpdatedAt = time.Now().UTC()
}

// Clone returns a deep copy, used for read snapshots that escape the
// owning lane.
func (p *Instance) Clone() *Instance {
	if p == nil {
		return nil
	}

	clone := *p
	clone.DailyGoals = make([]DailyGoal, len(p.DailyGoals))
	copy(clone.DailyGoals, p.DailyGoals)
	for i := range clone.DailyGoals {
		targets := make([]SectionTarget, len(p.DailyGoals[i].PerSectionTargets))
		copy(targets, p.DailyGoals[i].PerSectionTargets)
		clone.DailyGoals[i].PerSectionTargets = targets
	}
	return &clone
}
