package eventhandler

import (
	"context"
	"log/slog"

	"github.com/elzatona/progress-engine/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON PLAN LIFECYCLE HANDLER
// Keeps derived read-side artifacts in step with plan transitions: cached
// progress views are invalidated whenever a plan changes shape, so stale
// snapshots never outlive the mutation that obsoleted them.
// ═══════════════════════════════════════════════════════════════════════════

// ViewInvalidator drops cached read views for a learner.
type ViewInvalidator interface {
	Invalidate(ctx context.Context, learnerID string) error
}

// OnPlanLifecycleHandler reacts to plan lifecycle events.
type OnPlanLifecycleHandler struct {
	views  ViewInvalidator
	logger *slog.Logger
}

// NewOnPlanLifecycleHandler creates the handler. views may be nil when no
// read-side cache is configured.
func NewOnPlanLifecycleHandler(views ViewInvalidator, logger *slog.Logger) *OnPlanLifecycleHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &OnPlanLifecycleHandler{
		views:  views,
		logger: logger.With("handler", "on_plan_lifecycle"),
	}
}

// Handle implements shared.EventHandler.
func (h *OnPlanLifecycleHandler) Handle(event shared.Event) error {
	payload := event.Payload()
	learnerID, _ := payload["learner_id"].(string)
	instanceID, _ := payload["instance_id"].(string)

	if event.EventType() == shared.EventPlanCompleted {
		h.logger.Info("plan completed",
			"learner_id", learnerID,
			"instance_id", instanceID,
			"template_id", payload["template_id"],
		)
	}

	if h.views == nil || learnerID == "" {
		return nil
	}
	if err := h.views.Invalidate(context.Background(), learnerID); err != nil {
		// The cache carries a TTL; a failed invalidation heals itself.
		h.logger.Warn("view invalidation failed", "learner_id", learnerID, "error", err)
	}
	return nil
}

// Register subscribes the handler to every plan lifecycle event type.
func (h *OnPlanLifecycleHandler) Register(subscribe func(shared.EventType, shared.EventHandler) error) error {
	for _, t := range []shared.EventType{
		shared.EventPlanStarted,
		shared.EventPlanPaused,
		shared.EventPlanResumed,
		shared.EventPlanCancelled,
		shared.EventPlanCompleted,
		shared.EventDayAdvanced,
		shared.EventDailyGoalMet,
	} {
		if err := subscribe(t, h.Handle); err != nil {
			return err
		}
	}
	return nil
}
