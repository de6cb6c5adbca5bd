// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/elzatona/progress-engine/internal/domain/plan"
	"github.com/elzatona/progress-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// START PLAN COMMAND
// Resolves a template, generates its schedule and instantiates it for one
// learner. A bad template is rejected here, before any state exists - it can
// never produce a partially-valid schedule.
// ══════════════════════════════════════════════════════════════════════════════

// StartPlanCommand contains the data to start a plan.
type StartPlanCommand struct {
	// LearnerID is the learner starting the plan.
	LearnerID shared.LearnerID

	// TemplateID is the published template to instantiate.
	TemplateID shared.TemplateID

	// StartedAt is when the plan clock starts (defaults to now if zero).
	StartedAt time.Time
}

// Validate validates the command.
func (c StartPlanCommand) Validate() error {
	if !c.LearnerID.IsValid() {
		return shared.NewDomainError("command", "StartPlan", shared.ErrInvalidID, "learner id is required")
	}
	if !c.TemplateID.IsValid() {
		return shared.NewDomainError("command", "StartPlan", shared.ErrInvalidID, "template id is required")
	}
	return nil
}

// StartPlanHandler handles the StartPlanCommand.
type StartPlanHandler struct {
	templates plan.TemplateSource

	// newID generates instance ids; replaceable in tests.
	newID func() shared.InstanceID

	// now is the clock; replaceable in tests.
	now func() time.Time
}

// NewStartPlanHandler creates a new StartPlanHandler.
func NewStartPlanHandler(templates plan.TemplateSource) *StartPlanHandler {
	return &StartPlanHandler{
		templates: templates,
		newID:     func() shared.InstanceID { return shared.InstanceID(uuid.NewString()) },
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Handle executes the start plan command and returns the new instance.
// The caller (the gateway, holding the learner's lane) attaches the
// instance to the learner state and persists it.
func (h *StartPlanHandler) Handle(ctx context.Context, cmd StartPlanCommand) (*plan.Instance, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	tmpl, err := h.templates.FetchTemplate(ctx, cmd.TemplateID)
	if err != nil {
		return nil, fmt.Errorf("start_plan: fetch template %s: %w", cmd.TemplateID, err)
	}

	normalized, err := plan.ResolveTemplate(tmpl)
	if err != nil {
		return nil, err
	}

	schedule := plan.GenerateSchedule(normalized)

	startedAt := cmd.StartedAt
	if startedAt.IsZero() {
		startedAt = h.now()
	}

	return plan.StartInstance(h.newID(), cmd.LearnerID, schedule, startedAt), nil
}
