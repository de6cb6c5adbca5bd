// Package eventhandler contains subscribers for domain events.
package eventhandler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/elzatona/progress-engine/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON ACHIEVEMENT HANDLER
// Reacts to badge, milestone and level-up events. Achievements are derived
// facts; this handler only announces them downstream, it never writes back
// into learner state.
// ═══════════════════════════════════════════════════════════════════════════

// Notifier delivers achievement announcements to an external channel.
type Notifier interface {
	Notify(ctx context.Context, learnerID, message string) error
}

// AchievementConfig tunes the handler.
type AchievementConfig struct {
	// AnnounceBadges controls whether badge events produce notifications.
	AnnounceBadges bool

	// AnnounceLevelUps controls whether level-up events produce notifications.
	AnnounceLevelUps bool
}

// DefaultAchievementConfig returns the default configuration.
func DefaultAchievementConfig() AchievementConfig {
	return AchievementConfig{
		AnnounceBadges:   true,
		AnnounceLevelUps: true,
	}
}

// OnAchievementHandler announces newly earned achievements.
type OnAchievementHandler struct {
	notifier Notifier
	logger   *slog.Logger
	config   AchievementConfig
}

// NewOnAchievementHandler creates the handler. notifier may be nil, in which
// case announcements are log-only.
func NewOnAchievementHandler(notifier Notifier, logger *slog.Logger, config AchievementConfig) *OnAchievementHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &OnAchievementHandler{
		notifier: notifier,
		logger:   logger.With("handler", "on_achievement"),
		config:   config,
	}
}

// Handle implements shared.EventHandler.
func (h *OnAchievementHandler) Handle(event shared.Event) error {
	payload := event.Payload()
	learnerID, _ := payload["learner_id"].(string)
	item, _ := payload["item"].(string)

	var message string
	switch event.EventType() {
	case shared.EventBadgeEarned:
		if !h.config.AnnounceBadges {
			return nil
		}
		message = fmt.Sprintf("Badge earned: %s", item)
	case shared.EventMilestoneReached:
		if !h.config.AnnounceBadges {
			return nil
		}
		message = fmt.Sprintf("Milestone reached: %v points", payload["points"])
	case shared.EventLevelUp:
		if !h.config.AnnounceLevelUps {
			return nil
		}
		message = fmt.Sprintf("Level up! Now level %v", payload["points"])
	default:
		return nil
	}

	h.logger.Info("achievement",
		"learner_id", learnerID,
		"event_type", event.EventType(),
		"item", item,
	)

	if h.notifier == nil {
		return nil
	}
	if err := h.notifier.Notify(context.Background(), learnerID, message); err != nil {
		// Announcements are best-effort; the achievement itself is already
		// durable in the ledger.
		h.logger.Warn("achievement notification failed", "learner_id", learnerID, "error", err)
	}
	return nil
}

// Register subscribes the handler to its event types.
func (h *OnAchievementHandler) Register(subscribe func(shared.EventType, shared.EventHandler) error) error {
	for _, t := range []shared.EventType{
		shared.EventBadgeEarned,
		shared.EventMilestoneReached,
		shared.EventLevelUp,
	} {
		if err := subscribe(t, h.Handle); err != nil {
			return err
		}
	}
	return nil
}
