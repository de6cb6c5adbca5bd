// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"regexp"
	"strings"
)

// ═══════════════════════════════════════════════════════════════════════════
// ID Value Objects
// ═══════════════════════════════════════════════════════════════════════════

// LearnerID identifies one learner. All mutable state in the engine is
// partitioned by this value.
type LearnerID string

// IsValid checks if the learner ID is usable as a partition key.
func (l LearnerID) IsValid() bool {
	s := string(l)
	return len(s) >= 1 && len(s) <= 128 && !strings.ContainsAny(s, " \t\n\r")
}

// String returns the string representation.
func (l LearnerID) String() string {
	return string(l)
}

// IsEmpty checks if the ID is empty.
func (l LearnerID) IsEmpty() bool {
	return l == ""
}

// NewLearnerID creates a LearnerID with validation.
func NewLearnerID(id string) (LearnerID, error) {
	lid := LearnerID(strings.TrimSpace(id))
	if !lid.IsValid() {
		return "", NewDomainError("shared", "NewLearnerID", ErrInvalidID, "invalid learner ID")
	}
	return lid, nil
}

// TemplateID identifies a published plan template (slug format, e.g.
// "one-week-intensive").
type TemplateID string

var templateIDRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{1,63}$`)

// IsValid checks if the template ID matches the slug format.
func (t TemplateID) IsValid() bool {
	return templateIDRegex.MatchString(string(t))
}

// String returns the string representation.
func (t TemplateID) String() string {
	return string(t)
}

// InstanceID identifies one learner's run through a template (UUID format).
type InstanceID string

var uuidRegex = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// IsValid checks if the instance ID is a valid UUID.
func (i InstanceID) IsValid() bool {
	return uuidRegex.MatchString(string(i))
}

// String returns the string representation.
func (i InstanceID) String() string {
	return string(i)
}

// IsEmpty checks if the ID is empty.
func (i InstanceID) IsEmpty() bool {
	return i == ""
}

// EventID is the idempotency key carried by every practice event. Re-delivery
// of the same EventID is a safe no-op.
type EventID string

// IsValid checks if the event ID is non-empty and bounded.
func (e EventID) IsValid() bool {
	return len(e) >= 1 && len(e) <= 128
}

// String returns the string representation.
func (e EventID) String() string {
	return string(e)
}

// SectionID identifies a weighted topic section inside a template.
type SectionID string

// IsValid checks if the section ID is non-empty.
func (s SectionID) IsValid() bool {
	return len(s) >= 1 && len(s) <= 64
}

// String returns the string representation.
func (s SectionID) String() string {
	return string(s)
}

// ═══════════════════════════════════════════════════════════════════════════
// Difficulty
// ═══════════════════════════════════════════════════════════════════════════

// Difficulty is the difficulty label on questions and templates.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// IsValid checks that the difficulty is one of the known labels.
func (d Difficulty) IsValid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (d Difficulty) String() string {
	return string(d)
}
