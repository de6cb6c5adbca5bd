// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"
	"time"

	"github.com/elzatona/progress-engine/internal/domain/plan"
	"github.com/elzatona/progress-engine/internal/domain/progress"
	"github.com/elzatona/progress-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SNAPSHOT QUERIES
// Consistent read views over learner progress and plan instances. Snapshots
// are assembled from deep copies taken inside the learner's serialization
// lane, so a view never observes a half-applied practice event.
// ══════════════════════════════════════════════════════════════════════════════

// SnapshotSource provides consistent snapshots of in-flight learner state.
// Implemented by the ingestion gateway.
type SnapshotSource interface {
	ProgressSnapshot(ctx context.Context, learnerID shared.LearnerID) (progress.Snapshot, error)
	PlanSnapshot(ctx context.Context, instanceID shared.InstanceID) (*plan.Instance, error)
}

// ─────────────────────────────────────────────────────────────────────────────
// GET PROGRESS SNAPSHOT
// ─────────────────────────────────────────────────────────────────────────────

// GetProgressSnapshotQuery identifies the learner to read.
type GetProgressSnapshotQuery struct {
	LearnerID shared.LearnerID
}

// Validate checks the query parameters.
func (q *GetProgressSnapshotQuery) Validate() error {
	if !q.LearnerID.IsValid() {
		return shared.NewDomainError("query", "GetProgressSnapshot", shared.ErrInvalidID, "learner id is required")
	}
	return nil
}

// SectionStatDTO is the per-section slice of a progress view.
type SectionStatDTO struct {
	SectionID    string  `json:"section_id"`
	Attempts     int     `json:"attempts"`
	Correct      int     `json:"correct"`
	AccuracyPct  float64 `json:"accuracy_pct"`
	MasteryLevel string  `json:"mastery_level"`
}

// ProgressDTO is the aggregated progress view returned to callers.
type ProgressDTO struct {
	LearnerID         string           `json:"learner_id"`
	TotalQuestions    int              `json:"total_questions"`
	CorrectAnswers    int              `json:"correct_answers"`
	AccuracyPct       float64          `json:"accuracy_pct"`
	TotalChallenges   int              `json:"total_challenges"`
	TimeSpentSeconds  int              `json:"time_spent_seconds"`
	TotalPoints       int              `json:"total_points"`
	Level             int              `json:"level"`
	PlansCompleted    int              `json:"plans_completed"`
	CurrentStreakDays int              `json:"current_streak_days"`
	LongestStreakDays int              `json:"longest_streak_days"`
	LastActivityDate  string           `json:"last_activity_date,omitempty"`
	WeeklyBuckets     map[string]int   `json:"weekly_buckets,omitempty"`
	MonthlyBuckets    map[string]int   `json:"monthly_buckets,omitempty"`
	Sections          []SectionStatDTO `json:"sections,omitempty"`
	Badges            []string         `json:"badges,omitempty"`
	Milestones        []int            `json:"milestones,omitempty"`
}

// GetProgressSnapshotHandler reads a learner's aggregated progress.
type GetProgressSnapshotHandler struct {
	source SnapshotSource
}

// NewGetProgressSnapshotHandler creates the handler.
func NewGetProgressSnapshotHandler(source SnapshotSource) *GetProgressSnapshotHandler {
	return &GetProgressSnapshotHandler{source: source}
}

// Handle returns the progress view for a learner. Unknown learners yield
// shared.ErrLearnerNotFound rather than an empty view, so callers can tell
// "never seen" apart from "seen but idle".
func (h *GetProgressSnapshotHandler) Handle(ctx context.Context, q GetProgressSnapshotQuery) (*ProgressDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	snap, err := h.source.ProgressSnapshot(ctx, q.LearnerID)
	if err != nil {
		return nil, err
	}
	return buildProgressDTO(q.LearnerID, snap), nil
}

func buildProgressDTO(learnerID shared.LearnerID, snap progress.Snapshot) *ProgressDTO {
	l := snap.Ledger
	dto := &ProgressDTO{
		LearnerID:         learnerID.String(),
		TotalQuestions:    l.TotalQuestions,
		CorrectAnswers:    l.CorrectAnswers,
		AccuracyPct:       l.Accuracy(),
		TotalChallenges:   l.TotalChallenges,
		TimeSpentSeconds:  l.TimeSpentSeconds,
		TotalPoints:       l.TotalPoints,
		Level:             snap.Achievements.Level,
		PlansCompleted:    l.PlansCompleted,
		CurrentStreakDays: l.CurrentStreakDays,
		LongestStreakDays: l.LongestStreakDays,
		WeeklyBuckets:     l.WeeklyBuckets,
		MonthlyBuckets:    l.MonthlyBuckets,
	}
	if !l.LastActivityDate.IsZero() {
		dto.LastActivityDate = l.LastActivityDate.Format(time.DateOnly)
	}
	for _, b := range snap.Achievements.Badges {
		dto.Badges = append(dto.Badges, string(b.Type))
	}
	for _, m := range snap.Achievements.Milestones {
		dto.Milestones = append(dto.Milestones, m.Points)
	}

	dto.Sections = make([]SectionStatDTO, 0, len(l.SectionStats))
	for _, id := range l.SectionIDs() {
		stat := l.SectionStats[id]
		dto.Sections = append(dto.Sections, SectionStatDTO{
			SectionID:    id.String(),
			Attempts:     stat.Attempts,
			Correct:      stat.Correct,
			AccuracyPct:  stat.Accuracy(),
			MasteryLevel: string(stat.MasteryLevel),
		})
	}
	return dto
}

// ─────────────────────────────────────────────────────────────────────────────
// GET PLAN SNAPSHOT
// ─────────────────────────────────────────────────────────────────────────────

// GetPlanSnapshotQuery identifies the plan instance to read.
type GetPlanSnapshotQuery struct {
	InstanceID shared.InstanceID
}

// Validate checks the query parameters.
func (q *GetPlanSnapshotQuery) Validate() error {
	if !q.InstanceID.IsValid() {
		return shared.NewDomainError("query", "GetPlanSnapshot", shared.ErrInvalidID, "instance id is required")
	}
	return nil
}

// DailyGoalDTO is a single day's quota within a plan view.
type DailyGoalDTO struct {
	Day                int            `json:"day"`
	TargetQuestions    int            `json:"target_questions"`
	CompletedQuestions int            `json:"completed_questions"`
	PerSectionTargets  map[string]int `json:"per_section_targets,omitempty"`
	Completed          bool           `json:"completed"`
}

// PlanDTO is the plan instance view returned to callers.
type PlanDTO struct {
	InstanceID   string         `json:"instance_id"`
	LearnerID    string         `json:"learner_id"`
	TemplateID   string         `json:"template_id"`
	Status       string         `json:"status"`
	CurrentDay   int            `json:"current_day"`
	DurationDays int            `json:"duration_days"`
	StartedAt    time.Time      `json:"started_at"`
	Goals        []DailyGoalDTO `json:"goals"`
}

// GetPlanSnapshotHandler reads a single plan instance with its schedule.
type GetPlanSnapshotHandler struct {
	source SnapshotSource
}

// NewGetPlanSnapshotHandler creates the handler.
func NewGetPlanSnapshotHandler(source SnapshotSource) *GetPlanSnapshotHandler {
	return &GetPlanSnapshotHandler{source: source}
}

// Handle returns the plan view, or shared.ErrInstanceNotFound.
func (h *GetPlanSnapshotHandler) Handle(ctx context.Context, q GetPlanSnapshotQuery) (*PlanDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	inst, err := h.source.PlanSnapshot(ctx, q.InstanceID)
	if err != nil {
		return nil, err
	}
	return buildPlanDTO(inst), nil
}

func buildPlanDTO(inst *plan.Instance) *PlanDTO {
	dto := &PlanDTO{
		InstanceID:   inst.ID.String(),
		LearnerID:    inst.LearnerID.String(),
		TemplateID:   inst.TemplateID.String(),
		Status:       string(inst.Status),
		CurrentDay:   inst.CurrentDay,
		DurationDays: inst.DurationDays(),
		StartedAt:    inst.StartedAt,
		Goals:        make([]DailyGoalDTO, 0, len(inst.DailyGoals)),
	}
	for _, g := range inst.DailyGoals {
		gd := DailyGoalDTO{
			Day:                g.Day,
			TargetQuestions:    g.TargetQuestions,
			CompletedQuestions: g.CompletedQuestions,
			Completed:          g.Completed(),
		}
		if len(g.PerSectionTargets) > 0 {
			gd.PerSectionTargets = make(map[string]int, len(g.PerSectionTargets))
			for _, st := range g.PerSectionTargets {
				gd.PerSectionTargets[st.SectionID.String()] = st.Count
			}
		}
		dto.Goals = append(dto.Goals, gd)
	}
	return dto
}
