package command

import (
	"github.com/elzatona/progress-engine/internal/domain/plan"
	"github.com/elzatona/progress-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PLAN LIFECYCLE COMMANDS
// Pause, resume and cancel are synchronous commands, not events: they run
// immediately while the caller holds the learner's lane and are never
// partially applied. Terminal instances reject every transition.
// ══════════════════════════════════════════════════════════════════════════════

// LifecycleAction names a lifecycle transition.
type LifecycleAction string

const (
	// ActionPause - active -> paused.
	ActionPause LifecycleAction = "pause"
	// ActionResume - paused -> active.
	ActionResume LifecycleAction = "resume"
	// ActionCancel - active/paused -> cancelled (terminal).
	ActionCancel LifecycleAction = "cancel"
)

// LifecycleCommand is a single lifecycle transition on one instance.
type LifecycleCommand struct {
	InstanceID shared.InstanceID
	Action     LifecycleAction
}

// Validate validates the command.
func (c LifecycleCommand) Validate() error {
	if c.InstanceID.IsEmpty() {
		return shared.NewDomainError("command", "Lifecycle", shared.ErrInvalidID, "instance id is required")
	}
	switch c.Action {
	case ActionPause, ActionResume, ActionCancel:
		return nil
	default:
		return shared.NewDomainError("command", "Lifecycle", shared.ErrInvalidInput, "unknown lifecycle action: "+string(c.Action))
	}
}

// eventTypeFor maps an action to the domain event emitted on success.
func (c LifecycleCommand) eventTypeFor() shared.EventType {
	switch c.Action {
	case ActionPause:
		return shared.EventPlanPaused
	case ActionResume:
		return shared.EventPlanResumed
	default:
		return shared.EventPlanCancelled
	}
}

// ApplyLifecycle applies the transition to an instance and returns the
// domain event describing it. The instance must belong to the learner whose
// lane the caller holds.
func ApplyLifecycle(inst *plan.Instance, cmd LifecycleCommand) (shared.Event, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	var err error
	switch cmd.Action {
	case ActionPause:
		err = inst.Pause()
	case ActionResume:
		err = inst.Resume()
	case ActionCancel:
		err = inst.Cancel()
	}
	if err != nil {
		return nil, err
	}

	return shared.NewPlanLifecycleEvent(
		cmd.eventTypeFor(),
		inst.ID.String(),
		inst.LearnerID.String(),
		inst.TemplateID.String(),
		string(inst.Status),
		inst.CurrentDay,
	), nil
}
