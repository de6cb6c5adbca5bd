// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types - these drive the event-driven architecture.
// Each event represents something significant that happened in the domain.
const (
	// Plan lifecycle events
	EventPlanStarted   EventType = "plan.started"
	EventPlanPaused    EventType = "plan.paused"
	EventPlanResumed   EventType = "plan.resumed"
	EventPlanCancelled EventType = "plan.cancelled"
	EventPlanCompleted EventType = "plan.completed"
	EventDayAdvanced   EventType = "plan.day_advanced"
	EventDailyGoalMet  EventType = "plan.daily_goal_met"

	// Progress events
	EventPracticeApplied EventType = "progress.practice_applied"
	EventStreakUpdated   EventType = "progress.streak_updated"
	EventStreakBroken    EventType = "progress.streak_broken"
	EventMasteryChanged  EventType = "progress.mastery_changed"

	// Achievement events
	EventBadgeEarned      EventType = "achievement.badge_earned"
	EventMilestoneReached EventType = "achievement.milestone_reached"
	EventLevelUp          EventType = "achievement.level_up"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// EventHandler processes a published domain event.
type EventHandler func(event Event) error

// EventPublisher publishes domain events to interested subscribers.
type EventPublisher interface {
	Publish(event Event) error
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type        EventType `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
	AggregateId string    `json:"aggregate_id"`
	Version     int       `json:"version"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now().UTC(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Plan Events
// ═══════════════════════════════════════════════════════════════════════════

// PlanLifecycleEvent is emitted for every plan instance state transition.
type PlanLifecycleEvent struct {
	BaseEvent
	InstanceID string `json:"instance_id"`
	LearnerID  string `json:"learner_id"`
	TemplateID string `json:"template_id"`
	Status     string `json:"status"`
	CurrentDay int    `json:"current_day"`
}

// Payload implements Event interface.
func (e PlanLifecycleEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"instance_id": e.InstanceID,
		"learner_id":  e.LearnerID,
		"template_id": e.TemplateID,
		"status":      e.Status,
		"current_day": e.CurrentDay,
	}
}

// NewPlanLifecycleEvent creates a lifecycle event of the given type.
func NewPlanLifecycleEvent(eventType EventType, instanceID, learnerID, templateID, status string, currentDay int) PlanLifecycleEvent {
	return PlanLifecycleEvent{
		BaseEvent:  NewBaseEvent(eventType, instanceID),
		InstanceID: instanceID,
		LearnerID:  learnerID,
		TemplateID: templateID,
		Status:     status,
		CurrentDay: currentDay,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Progress Events
// ═══════════════════════════════════════════════════════════════════════════

// PracticeAppliedEvent is emitted after a practice event mutates the ledger.
type PracticeAppliedEvent struct {
	BaseEvent
	LearnerID     string `json:"learner_id"`
	PracticeID    string `json:"practice_id"`
	SectionID     string `json:"section_id"`
	IsCorrect     bool   `json:"is_correct"`
	PointsEarned  int    `json:"points_earned"`
	TotalAnswered int    `json:"total_answered"`
}

// Payload implements Event interface.
func (e PracticeAppliedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"learner_id":     e.LearnerID,
		"practice_id":    e.PracticeID,
		"section_id":     e.SectionID,
		"is_correct":     e.IsCorrect,
		"points_earned":  e.PointsEarned,
		"total_answered": e.TotalAnswered,
	}
}

// NewPracticeAppliedEvent creates a new PracticeAppliedEvent.
func NewPracticeAppliedEvent(learnerID, practiceID, sectionID string, isCorrect bool, points, total int) PracticeAppliedEvent {
	return PracticeAppliedEvent{
		BaseEvent:     NewBaseEvent(EventPracticeApplied, learnerID),
		LearnerID:     learnerID,
		PracticeID:    practiceID,
		SectionID:     sectionID,
		IsCorrect:     isCorrect,
		PointsEarned:  points,
		TotalAnswered: total,
	}
}

// StreakEvent is emitted when a learner's daily streak changes.
type StreakEvent struct {
	BaseEvent
	LearnerID      string `json:"learner_id"`
	CurrentStreak  int    `json:"current_streak"`
	LongestStreak  int    `json:"longest_streak"`
	PreviousStreak int    `json:"previous_streak,omitempty"`
}

// Payload implements Event interface.
func (e StreakEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"learner_id":      e.LearnerID,
		"current_streak":  e.CurrentStreak,
		"longest_streak":  e.LongestStreak,
		"previous_streak": e.PreviousStreak,
	}
}

// NewStreakEvent creates a streak update or streak broken event.
func NewStreakEvent(eventType EventType, learnerID string, current, longest, previous int) StreakEvent {
	return StreakEvent{
		BaseEvent:      NewBaseEvent(eventType, learnerID),
		LearnerID:      learnerID,
		CurrentStreak:  current,
		LongestStreak:  longest,
		PreviousStreak: previous,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Achievement Events
// ═══════════════════════════════════════════════════════════════════════════

// AchievementEvent is emitted when a badge, milestone or level is newly earned.
type AchievementEvent struct {
	BaseEvent
	LearnerID string `json:"learner_id"`
	Item      string `json:"item"`  // badge/milestone id, or level number as string
	Points    int    `json:"points"`
}

// Payload implements Event interface.
func (e AchievementEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"learner_id": e.LearnerID,
		"item":       e.Item,
		"points":     e.Points,
	}
}

// NewAchievementEvent creates a new AchievementEvent.
func NewAchievementEvent(eventType EventType, learnerID, item string, points int) AchievementEvent {
	return AchievementEvent{
		BaseEvent: NewBaseEvent(eventType, learnerID),
		LearnerID: learnerID,
		Item:      item,
		Points:    points,
	}
}
