// Package gateway is the single entry point for everything that mutates
// learner state: practice event ingestion, plan lifecycle commands and the
// day rollover. It owns the authoritative in-memory state per learner and
// serializes all work for one learner on that learner's lane, so domain
// code below it never needs locks. Durability is write-through: every
// successful mutation is persisted before it is acknowledged.
package gateway

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/elzatona/progress-engine/internal/application/command"
	"github.com/elzatona/progress-engine/internal/domain/plan"
	"github.com/elzatona/progress-engine/internal/domain/progress"
	"github.com/elzatona/progress-engine/internal/domain/shared"
	"github.com/elzatona/progress-engine/pkg/logger"
	"github.com/elzatona/progress-engine/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// COLLABORATOR PORTS
// ══════════════════════════════════════════════════════════════════════════════

// DedupeIndex is a fast-path duplicate filter over recent event ids. It is
// an optimization only: the ledger's applied-event set stays authoritative,
// so a lost or expired index entry costs one wasted lane trip, never a
// double count.
type DedupeIndex interface {
	// Seen reports whether the event id was recently acknowledged.
	Seen(ctx context.Context, id shared.EventID) (bool, error)

	// Mark records an acknowledged event id.
	Mark(ctx context.Context, id shared.EventID) error
}

// AuditRecord is one line of the append-only audit trail.
type AuditRecord struct {
	Action     string           `json:"action"`
	LearnerID  shared.LearnerID `json:"learner_id"`
	EventID    shared.EventID   `json:"event_id,omitempty"`
	InstanceID string           `json:"instance_id,omitempty"`
	Detail     map[string]any   `json:"detail,omitempty"`
	OccurredAt time.Time        `json:"occurred_at"`
}

// AuditEmitter delivers audit records. Best-effort by contract: the gateway
// logs a failed emit and moves on, it never fails the mutation.
type AuditEmitter interface {
	Emit(ctx context.Context, record AuditRecord) error
}

// ══════════════════════════════════════════════════════════════════════════════
// GATEWAY
// ══════════════════════════════════════════════════════════════════════════════

// Ack is the acknowledgement returned for an ingested practice event.
type Ack struct {
	EventID shared.EventID `json:"event_id"`

	// Duplicate is true when the event id was already applied; the original
	// outcome stands and nothing changed.
	Duplicate bool `json:"duplicate"`

	PointsEarned  int `json:"points_earned"`
	TotalPoints   int `json:"total_points"`
	CurrentStreak int `json:"current_streak"`
}

// Config tunes the gateway.
type Config struct {
	// Lanes is the number of serialization lanes. Learners hash onto lanes.
	Lanes int

	// LaneQueueSize bounds each lane's backlog; a full lane applies
	// backpressure to Submit until the caller's context expires.
	LaneQueueSize int

	// Retry governs write-through persistence attempts.
	Retry retry.Config
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		Lanes:         32,
		LaneQueueSize: 256,
		Retry:         retry.DefaultConfig(),
	}
}

// learnerEntry pairs a learner's authoritative state with the achievement
// state derived from its last evaluation. Only the owning lane touches an
// entry's contents; the map itself is guarded by Gateway.mu.
type learnerEntry struct {
	state *progress.LearnerState
	ach   progress.AchievementState
}

// Gateway ingests practice events and plan commands.
type Gateway struct {
	cfg   Config
	rules progress.Rules
	lanes *lanes

	startPlan *command.StartPlanHandler
	repo      progress.StateRepository
	dedupe    DedupeIndex
	publisher shared.EventPublisher
	audit     AuditEmitter
	log       *logger.Logger

	mu        sync.RWMutex
	entries   map[shared.LearnerID]*learnerEntry
	instances map[shared.InstanceID]shared.LearnerID

	now func() time.Time
}

// New creates a Gateway. dedupe and audit may be nil; the corresponding
// concerns are then skipped.
func New(
	cfg Config,
	rules progress.Rules,
	templates plan.TemplateSource,
	repo progress.StateRepository,
	dedupe DedupeIndex,
	publisher shared.EventPublisher,
	audit AuditEmitter,
	log *logger.Logger,
) *Gateway {
	if log == nil {
		log = logger.Default()
	}
	return &Gateway{
		cfg:       cfg,
		rules:     rules,
		lanes:     newLanes(cfg.Lanes, cfg.LaneQueueSize),
		startPlan: command.NewStartPlanHandler(templates),
		repo:      repo,
		dedupe:    dedupe,
		publisher: publisher,
		audit:     audit,
		log:       log.With(logger.Component("gateway")),
		entries:   make(map[shared.LearnerID]*learnerEntry),
		instances: make(map[shared.InstanceID]shared.LearnerID),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Close stops accepting work and drains accepted tasks.
func (g *Gateway) Close() {
	g.lanes.close()
}

// ─────────────────────────────────────────────────────────────────────────────
// Practice event ingestion
// ─────────────────────────────────────────────────────────────────────────────

// Submit ingests one practice event. Safe to call concurrently for any mix
// of learners; events for the same learner apply in submission order.
// Replays of an acknowledged event id return Duplicate=true and change
// nothing. A timeout while the lane is backed up returns
// shared.ErrSubmitTimeout; the caller retries with the same event id.
func (g *Gateway) Submit(ctx context.Context, ev progress.PracticeEvent) (Ack, error) {
	if err := ev.Validate(); err != nil {
		return Ack{}, err
	}

	// Fast-path duplicate filter. Index errors are ignored: the ledger's
	// applied set is authoritative and will catch the replay on the lane.
	if g.dedupe != nil {
		if seen, err := g.dedupe.Seen(ctx, ev.EventID); err == nil && seen {
			return Ack{EventID: ev.EventID, Duplicate: true}, nil
		}
	}

	var (
		ack    Ack
		apperr error
	)
	if err := g.lanes.runSync(ctx, ev.LearnerID, func() {
		ack, apperr = g.applyPractice(ctx, ev)
	}); err != nil {
		return Ack{}, err
	}
	return ack, apperr
}

// applyPractice runs on the learner's lane.
func (g *Gateway) applyPractice(ctx context.Context, ev progress.PracticeEvent) (Ack, error) {
	entry, err := g.entryFor(ctx, ev.LearnerID, true)
	if err != nil {
		return Ack{}, err
	}

	ledger := entry.state.Ledger

	delta, err := ledger.Apply(ev, g.rules)
	if shared.IsDuplicate(err) {
		// The first submission may have failed its write-through; persist
		// again so a retry after a transient storage error still lands.
		if perr := g.persist(ctx, entry.state); perr != nil {
			return Ack{}, perr
		}
		return Ack{EventID: ev.EventID, Duplicate: true, TotalPoints: ledger.TotalPoints, CurrentStreak: ledger.CurrentStreakDays}, nil
	}
	if err != nil {
		return Ack{}, err
	}

	events := []shared.Event{shared.NewPracticeAppliedEvent(
		ev.LearnerID.String(), ev.EventID.String(), ev.SectionID.String(),
		ev.IsCorrect, delta.PointsEarned, ledger.TotalPoints,
	)}
	events = append(events, streakEvents(ev.LearnerID, delta, ledger.LongestStreakDays)...)
	if delta.MasteryChanged {
		events = append(events, shared.NewAchievementEvent(
			shared.EventMasteryChanged, ev.LearnerID.String(),
			delta.Section.String()+":"+string(delta.SectionMastery), ledger.TotalPoints,
		))
	}

	// Count the event toward the referenced plan's current day. Only
	// question attempts move quotas; an unknown, paused or terminal
	// instance keeps the ledger side of the event without plan credit.
	if !ev.PlanInstanceID.IsEmpty() && ev.Kind == progress.KindQuestion {
		events = append(events, g.creditPlan(entry, ev)...)
	}

	if err := g.persist(ctx, entry.state); err != nil {
		return Ack{}, err
	}

	if g.dedupe != nil {
		if err := g.dedupe.Mark(ctx, ev.EventID); err != nil {
			g.log.Warn("dedupe index mark failed", logger.EventID(ev.EventID.String()), logger.Err(err))
		}
	}

	// Recompute achievements in full and publish only what is new.
	next := progress.Evaluate(ledger, g.rules)
	events = append(events, achievementEvents(ev.LearnerID, entry.ach, next)...)
	entry.ach = next

	g.publish(events...)
	g.emitAudit(ctx, AuditRecord{
		Action:     "practice_applied",
		LearnerID:  ev.LearnerID,
		EventID:    ev.EventID,
		InstanceID: ev.PlanInstanceID.String(),
		Detail: map[string]any{
			"kind":           string(ev.Kind),
			"points":         delta.PointsEarned,
			"current_streak": ledger.CurrentStreakDays,
		},
		OccurredAt: g.now(),
	})

	return Ack{
		EventID:       ev.EventID,
		PointsEarned:  delta.PointsEarned,
		TotalPoints:   ledger.TotalPoints,
		CurrentStreak: ledger.CurrentStreakDays,
	}, nil
}

// creditPlan applies one question toward the instance's current day and
// handles day-goal and plan completion. Runs on the learner's lane.
func (g *Gateway) creditPlan(entry *learnerEntry, ev progress.PracticeEvent) []shared.Event {
	inst := entry.state.Instance(ev.PlanInstanceID)
	if inst == nil || inst.Status != plan.StatusActive {
		return nil
	}

	goal := inst.Goal(inst.CurrentDay)
	wasMet := goal != nil && goal.Completed()

	if err := inst.RecordCompletion(inst.CurrentDay, ev.SectionID, 1); err != nil {
		g.log.Warn("plan credit skipped",
			logger.InstanceID(inst.ID.String()), logger.Err(err))
		return nil
	}

	var events []shared.Event
	if goal != nil && !wasMet && goal.Completed() {
		events = append(events, shared.NewPlanLifecycleEvent(
			shared.EventDailyGoalMet, inst.ID.String(), inst.LearnerID.String(),
			inst.TemplateID.String(), string(inst.Status), inst.CurrentDay,
		))
	}
	if inst.Status == plan.StatusCompleted {
		events = append(events, g.finishPlan(entry, inst))
	}
	return events
}

// finishPlan books the completion bonus and returns the completion event.
func (g *Gateway) finishPlan(entry *learnerEntry, inst *plan.Instance) shared.Event {
	bonus := entry.state.Ledger.RecordPlanCompleted(g.rules)
	g.log.Info("plan completed",
		logger.LearnerID(inst.LearnerID.String()),
		logger.InstanceID(inst.ID.String()),
		logger.Points(bonus))
	return shared.NewPlanLifecycleEvent(
		shared.EventPlanCompleted, inst.ID.String(), inst.LearnerID.String(),
		inst.TemplateID.String(), string(inst.Status), inst.CurrentDay,
	)
}

// ─────────────────────────────────────────────────────────────────────────────
// Plan commands
// ─────────────────────────────────────────────────────────────────────────────

// StartPlan resolves the template, generates the schedule and starts a new
// instance for the learner. Returns a deep copy of the instance.
func (g *Gateway) StartPlan(ctx context.Context, cmd command.StartPlanCommand) (*plan.Instance, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	var (
		started *plan.Instance
		apperr  error
	)
	if err := g.lanes.runSync(ctx, cmd.LearnerID, func() {
		started, apperr = g.startPlanOnLane(ctx, cmd)
	}); err != nil {
		return nil, err
	}
	if apperr != nil {
		return nil, apperr
	}
	return started.Clone(), nil
}

func (g *Gateway) startPlanOnLane(ctx context.Context, cmd command.StartPlanCommand) (*plan.Instance, error) {
	entry, err := g.entryFor(ctx, cmd.LearnerID, true)
	if err != nil {
		return nil, err
	}

	inst, err := g.startPlan.Handle(ctx, cmd)
	if err != nil {
		return nil, err
	}

	entry.state.Instances = append(entry.state.Instances, inst)
	if err := g.persist(ctx, entry.state); err != nil {
		// Roll back the attachment; the instance was never acknowledged.
		entry.state.Instances = entry.state.Instances[:len(entry.state.Instances)-1]
		return nil, err
	}

	g.mu.Lock()
	g.instances[inst.ID] = cmd.LearnerID
	g.mu.Unlock()

	g.publish(shared.NewPlanLifecycleEvent(
		shared.EventPlanStarted, inst.ID.String(), inst.LearnerID.String(),
		inst.TemplateID.String(), string(inst.Status), inst.CurrentDay,
	))
	g.emitAudit(ctx, AuditRecord{
		Action:     "plan_started",
		LearnerID:  cmd.LearnerID,
		InstanceID: inst.ID.String(),
		Detail:     map[string]any{"template_id": cmd.TemplateID.String()},
		OccurredAt: g.now(),
	})

	return inst, nil
}

// PausePlan pauses an active instance.
func (g *Gateway) PausePlan(ctx context.Context, instanceID shared.InstanceID) error {
	return g.lifecycle(ctx, command.LifecycleCommand{InstanceID: instanceID, Action: command.ActionPause})
}

// ResumePlan resumes a paused instance.
func (g *Gateway) ResumePlan(ctx context.Context, instanceID shared.InstanceID) error {
	return g.lifecycle(ctx, command.LifecycleCommand{InstanceID: instanceID, Action: command.ActionResume})
}

// CancelPlan cancels an instance. Terminal, the instance cannot be revived.
func (g *Gateway) CancelPlan(ctx context.Context, instanceID shared.InstanceID) error {
	return g.lifecycle(ctx, command.LifecycleCommand{InstanceID: instanceID, Action: command.ActionCancel})
}

func (g *Gateway) lifecycle(ctx context.Context, cmd command.LifecycleCommand) error {
	if err := cmd.Validate(); err != nil {
		return err
	}

	learnerID, err := g.learnerForInstance(ctx, cmd.InstanceID)
	if err != nil {
		return err
	}

	var apperr error
	if err := g.lanes.runSync(ctx, learnerID, func() {
		apperr = g.lifecycleOnLane(ctx, learnerID, cmd)
	}); err != nil {
		return err
	}
	return apperr
}

func (g *Gateway) lifecycleOnLane(ctx context.Context, learnerID shared.LearnerID, cmd command.LifecycleCommand) error {
	entry, err := g.entryFor(ctx, learnerID, false)
	if err != nil {
		return err
	}

	inst := entry.state.Instance(cmd.InstanceID)
	if inst == nil {
		return shared.ErrInstanceNotFound
	}

	before := inst.Status
	event, err := command.ApplyLifecycle(inst, cmd)
	if err != nil {
		return err
	}

	if err := g.persist(ctx, entry.state); err != nil {
		inst.Status = before
		return err
	}

	g.publish(event)
	g.emitAudit(ctx, AuditRecord{
		Action:     "plan_" + string(cmd.Action),
		LearnerID:  learnerID,
		InstanceID: cmd.InstanceID.String(),
		OccurredAt: g.now(),
	})
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Day rollover
// ─────────────────────────────────────────────────────────────────────────────

// RollOverDay advances the current-day pointer of every loaded active
// instance to the day implied by asOf. Idempotent: the pointer is derived
// from the start date, so repeated or late calls converge on the same day.
// Learners not resident in memory catch up when they are next loaded.
func (g *Gateway) RollOverDay(ctx context.Context, asOf time.Time) error {
	g.mu.RLock()
	learners := make([]shared.LearnerID, 0, len(g.entries))
	for id := range g.entries {
		learners = append(learners, id)
	}
	g.mu.RUnlock()

	var firstErr error
	for _, learnerID := range learners {
		id := learnerID
		err := g.lanes.runSync(ctx, id, func() {
			if err := g.rollOverLearner(ctx, id, asOf); err != nil && firstErr == nil {
				firstErr = err
			}
		})
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (g *Gateway) rollOverLearner(ctx context.Context, learnerID shared.LearnerID, asOf time.Time) error {
	g.mu.RLock()
	entry := g.entries[learnerID]
	g.mu.RUnlock()
	if entry == nil {
		return nil
	}

	var events []shared.Event
	changed := false
	for _, inst := range entry.state.ActiveInstances() {
		dayBefore := inst.CurrentDay
		if err := inst.AdvanceDay(asOf); err != nil {
			g.log.Warn("day rollover skipped", logger.InstanceID(inst.ID.String()), logger.Err(err))
			continue
		}
		if inst.CurrentDay == dayBefore && inst.Status != plan.StatusCompleted {
			continue
		}
		changed = true

		if inst.Status == plan.StatusCompleted {
			events = append(events, g.finishPlan(entry, inst))
			continue
		}
		events = append(events, shared.NewPlanLifecycleEvent(
			shared.EventDayAdvanced, inst.ID.String(), inst.LearnerID.String(),
			inst.TemplateID.String(), string(inst.Status), inst.CurrentDay,
		))
	}

	if !changed {
		return nil
	}
	if err := g.persist(ctx, entry.state); err != nil {
		return err
	}

	next := progress.Evaluate(entry.state.Ledger, g.rules)
	events = append(events, achievementEvents(learnerID, entry.ach, next)...)
	entry.ach = next

	g.publish(events...)
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Snapshots (query.SnapshotSource)
// ─────────────────────────────────────────────────────────────────────────────

// ProgressSnapshot returns a deep copy of the learner's ledger with its
// derived achievement state. Unknown learners yield shared.ErrLearnerNotFound.
func (g *Gateway) ProgressSnapshot(ctx context.Context, learnerID shared.LearnerID) (progress.Snapshot, error) {
	var (
		snap   progress.Snapshot
		apperr error
	)
	if err := g.lanes.runSync(ctx, learnerID, func() {
		entry, err := g.entryFor(ctx, learnerID, false)
		if err != nil {
			apperr = err
			return
		}
		snap = progress.Snapshot{
			Ledger:       entry.state.Ledger.Clone(),
			Achievements: entry.ach,
		}
	}); err != nil {
		return progress.Snapshot{}, err
	}
	if apperr != nil {
		if shared.IsNotFound(apperr) {
			return progress.Snapshot{}, shared.ErrLearnerNotFound
		}
		return progress.Snapshot{}, apperr
	}
	return snap, nil
}

// PlanSnapshot returns a deep copy of one plan instance.
func (g *Gateway) PlanSnapshot(ctx context.Context, instanceID shared.InstanceID) (*plan.Instance, error) {
	learnerID, err := g.learnerForInstance(ctx, instanceID)
	if err != nil {
		return nil, err
	}

	var (
		inst   *plan.Instance
		apperr error
	)
	if err := g.lanes.runSync(ctx, learnerID, func() {
		entry, err := g.entryFor(ctx, learnerID, false)
		if err != nil {
			apperr = err
			return
		}
		if found := entry.state.Instance(instanceID); found != nil {
			inst = found.Clone()
		}
	}); err != nil {
		return nil, err
	}
	if apperr != nil {
		return nil, apperr
	}
	if inst == nil {
		return nil, shared.ErrInstanceNotFound
	}
	return inst, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// State residency
// ─────────────────────────────────────────────────────────────────────────────

// entryFor returns the learner's resident entry, loading it from the
// repository on first touch. With create=true an unknown learner gets fresh
// state; with create=false the repository's not-found error is surfaced.
// Must run on the learner's lane.
func (g *Gateway) entryFor(ctx context.Context, learnerID shared.LearnerID, create bool) (*learnerEntry, error) {
	g.mu.RLock()
	entry := g.entries[learnerID]
	g.mu.RUnlock()
	if entry != nil {
		return entry, nil
	}

	state, err := g.repo.LoadLearnerState(ctx, learnerID)
	switch {
	case err == nil:
		// Plans catch up with calendar days missed while not resident.
		for _, inst := range state.ActiveInstances() {
			if aerr := inst.AdvanceDay(g.now()); aerr != nil {
				g.log.Warn("day catch-up skipped", logger.InstanceID(inst.ID.String()), logger.Err(aerr))
			}
		}
	case shared.IsNotFound(err) && create:
		state = progress.NewLearnerState(learnerID)
	default:
		return nil, err
	}

	entry = &learnerEntry{
		state: state,
		ach:   progress.Evaluate(state.Ledger, g.rules),
	}

	g.mu.Lock()
	g.entries[learnerID] = entry
	for _, inst := range state.Instances {
		g.instances[inst.ID] = learnerID
	}
	g.mu.Unlock()

	return entry, nil
}

// learnerForInstance resolves which learner owns an instance. Falls back to
// the repository index when the instance is not resident.
func (g *Gateway) learnerForInstance(ctx context.Context, instanceID shared.InstanceID) (shared.LearnerID, error) {
	g.mu.RLock()
	learnerID, ok := g.instances[instanceID]
	g.mu.RUnlock()
	if ok {
		return learnerID, nil
	}

	if finder, ok := g.repo.(interface {
		FindLearnerByInstance(ctx context.Context, instanceID shared.InstanceID) (shared.LearnerID, error)
	}); ok {
		learnerID, err := finder.FindLearnerByInstance(ctx, instanceID)
		if err == nil {
			return learnerID, nil
		}
		if !shared.IsNotFound(err) {
			return "", err
		}
	}
	return "", shared.ErrInstanceNotFound
}

// persist writes the learner's state through to the repository with
// retries. Exhausted retries surface as shared.ErrTransientStorage; the
// in-memory mutation stands and the next successful write for the learner
// carries it.
func (g *Gateway) persist(ctx context.Context, state *progress.LearnerState) error {
	err := retry.Do(ctx, g.cfg.Retry, func() error {
		return g.repo.SaveLearnerState(ctx, state)
	})
	if err != nil {
		g.log.Error("state write-through failed",
			logger.LearnerID(state.LearnerID.String()), logger.Err(err))
		return errors.Join(shared.ErrTransientStorage, err)
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Outbound
// ─────────────────────────────────────────────────────────────────────────────

func (g *Gateway) publish(events ...shared.Event) {
	if g.publisher == nil {
		return
	}
	for _, ev := range events {
		if err := g.publisher.Publish(ev); err != nil {
			g.log.Warn("event publish failed",
				logger.String("event_type", string(ev.EventType())), logger.Err(err))
		}
	}
}

// emitAudit delivers one audit record, best-effort.
func (g *Gateway) emitAudit(ctx context.Context, record AuditRecord) {
	if g.audit == nil {
		return
	}
	if err := g.audit.Emit(ctx, record); err != nil {
		g.log.Warn("audit emit failed",
			logger.LearnerID(record.LearnerID.String()),
			logger.String("action", record.Action),
			logger.Err(err))
	}
}

// streakEvents converts a ledger delta into streak domain events.
func streakEvents(learnerID shared.LearnerID, delta progress.Delta, longest int) []shared.Event {
	if !delta.StreakChanged {
		return nil
	}
	eventType := shared.EventStreakUpdated
	if delta.StreakBroken {
		eventType = shared.EventStreakBroken
	}
	return []shared.Event{shared.NewStreakEvent(
		eventType, learnerID.String(),
		delta.CurrentStreak, longest, delta.PreviousStreak,
	)}
}

// achievementEvents diffs two achievement states into newly-earned events.
func achievementEvents(learnerID shared.LearnerID, prev, next progress.AchievementState) []shared.Event {
	diff := progress.Diff(prev, next)
	if diff.IsEmpty() {
		return nil
	}

	var events []shared.Event
	for _, b := range diff.NewBadges {
		events = append(events, shared.NewAchievementEvent(
			shared.EventBadgeEarned, learnerID.String(), string(b.Type), next.Points,
		))
	}
	for _, m := range diff.NewMilestones {
		events = append(events, shared.NewAchievementEvent(
			shared.EventMilestoneReached, learnerID.String(), "points_milestone", m.Points,
		))
	}
	if diff.LeveledUp {
		events = append(events, shared.NewAchievementEvent(
			shared.EventLevelUp, learnerID.String(), "level", diff.NewLevel,
		))
	}
	return events
}
