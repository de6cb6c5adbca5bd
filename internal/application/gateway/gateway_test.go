package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elzatona/progress-engine/internal/application/command"
	"github.com/elzatona/progress-engine/internal/domain/plan"
	"github.com/elzatona/progress-engine/internal/domain/progress"
	"github.com/elzatona/progress-engine/internal/domain/shared"
	"github.com/elzatona/progress-engine/pkg/retry"
)

// ─────────────────────────────────────────────────────────────────────────────
// Fakes
// ─────────────────────────────────────────────────────────────────────────────

type memRepo struct {
	mu        sync.Mutex
	states    map[shared.LearnerID]*progress.LearnerState
	saves     int
	failSaves int
}

func newMemRepo() *memRepo {
	return &memRepo{states: make(map[shared.LearnerID]*progress.LearnerState)}
}

func (r *memRepo) SaveLearnerState(_ context.Context, state *progress.LearnerState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saves++
	if r.failSaves > 0 {
		r.failSaves--
		return errors.New("storage unavailable")
	}
	r.states[state.LearnerID] = state.Clone()
	return nil
}

func (r *memRepo) LoadLearnerState(_ context.Context, learnerID shared.LearnerID) (*progress.LearnerState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	state, ok := r.states[learnerID]
	if !ok {
		return nil, shared.ErrLearnerNotFound
	}
	return state.Clone(), nil
}

func (r *memRepo) FindLearnerByInstance(_ context.Context, instanceID shared.InstanceID) (shared.LearnerID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, state := range r.states {
		if state.Instance(instanceID) != nil {
			return state.LearnerID, nil
		}
	}
	return "", shared.ErrInstanceNotFound
}

func (r *memRepo) saved(learnerID shared.LearnerID) *progress.LearnerState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.states[learnerID].Clone()
}

type memDedupe struct {
	mu   sync.Mutex
	seen map[shared.EventID]bool
}

func newMemDedupe() *memDedupe {
	return &memDedupe{seen: make(map[shared.EventID]bool)}
}

func (d *memDedupe) Seen(_ context.Context, id shared.EventID) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.seen[id], nil
}

func (d *memDedupe) Mark(_ context.Context, id shared.EventID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seen[id] = true
	return nil
}

type capturingBus struct {
	mu     sync.Mutex
	events []shared.Event
}

func (b *capturingBus) Publish(event shared.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
	return nil
}

func (b *capturingBus) types() []shared.EventType {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]shared.EventType, 0, len(b.events))
	for _, ev := range b.events {
		out = append(out, ev.EventType())
	}
	return out
}

func (b *capturingBus) count(t shared.EventType) int {
	n := 0
	for _, et := range b.types() {
		if et == t {
			n++
		}
	}
	return n
}

type capturingAudit struct {
	mu      sync.Mutex
	records []AuditRecord
	failErr error
}

func (a *capturingAudit) Emit(_ context.Context, record AuditRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.failErr != nil {
		return a.failErr
	}
	a.records = append(a.records, record)
	return nil
}

func (a *capturingAudit) actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.records))
	for _, r := range a.records {
		out = append(out, r.Action)
	}
	return out
}

type memTemplates struct {
	templates map[shared.TemplateID]plan.Template
}

func (s *memTemplates) FetchTemplate(_ context.Context, id shared.TemplateID) (plan.Template, error) {
	tmpl, ok := s.templates[id]
	if !ok {
		return plan.Template{}, shared.ErrTemplateNotFound
	}
	return tmpl, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Harness
// ─────────────────────────────────────────────────────────────────────────────

type harness struct {
	gw     *Gateway
	repo   *memRepo
	dedupe *memDedupe
	bus    *capturingBus
	audit  *capturingAudit
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		repo:   newMemRepo(),
		dedupe: newMemDedupe(),
		bus:    &capturingBus{},
		audit:  &capturingAudit{},
	}

	templates := &memTemplates{templates: map[shared.TemplateID]plan.Template{
		"prep-3d": {
			ID:             "prep-3d",
			Name:           "3-Day Prep",
			DurationDays:   3,
			TotalQuestions: 10,
			Sections: []plan.SectionWeight{
				{ID: "algorithms", Weight: 40},
				{ID: "system-design", Weight: 60},
			},
		},
		"sprint-1d": {
			ID:             "sprint-1d",
			Name:           "One-Day Sprint",
			DurationDays:   1,
			TotalQuestions: 1,
			Sections:       []plan.SectionWeight{{ID: "algorithms", Weight: 100}},
		},
	}}

	h.gw = New(
		Config{
			Lanes:         4,
			LaneQueueSize: 16,
			Retry:         retry.Config{MaxAttempts: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond},
		},
		progress.DefaultRules(),
		templates,
		h.repo,
		h.dedupe,
		h.bus,
		h.audit,
		nil,
	)
	t.Cleanup(h.gw.Close)
	return h
}

func practiceEvent(id, learner string) progress.PracticeEvent {
	return progress.PracticeEvent{
		EventID:          shared.EventID(id),
		LearnerID:        shared.LearnerID(learner),
		SectionID:        "algorithms",
		Kind:             progress.KindQuestion,
		Difficulty:       shared.DifficultyMedium,
		IsCorrect:        true,
		Attempts:         1,
		TimeSpentSeconds: 60,
		OccurredAt:       time.Date(2026, 8, 10, 12, 0, 0, 0, time.UTC),
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Practice ingestion
// ─────────────────────────────────────────────────────────────────────────────

func TestGateway_SubmitAppliesEvent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	ack, err := h.gw.Submit(ctx, practiceEvent("ev-1", "learner-1"))

	require.NoError(t, err)
	assert.False(t, ack.Duplicate)
	assert.Equal(t, 10, ack.PointsEarned)
	assert.Equal(t, 10, ack.TotalPoints)
	assert.Equal(t, 1, ack.CurrentStreak)

	// Write-through landed before the ack.
	saved := h.repo.saved("learner-1")
	require.NotNil(t, saved)
	assert.Equal(t, 1, saved.Ledger.TotalQuestions)
	assert.Equal(t, 10, saved.Ledger.TotalPoints)

	// Dedupe index marked, audit trailed, events out.
	seen, _ := h.dedupe.Seen(ctx, "ev-1")
	assert.True(t, seen)
	assert.Contains(t, h.audit.actions(), "practice_applied")
	assert.Equal(t, 1, h.bus.count(shared.EventPracticeApplied))
	assert.Equal(t, 1, h.bus.count(shared.EventStreakUpdated))
}

func TestGateway_SubmitFirstEventEarnsFirstQuestionBadge(t *testing.T) {
	h := newHarness(t)

	_, err := h.gw.Submit(context.Background(), practiceEvent("ev-1", "learner-1"))

	require.NoError(t, err)
	assert.Equal(t, 1, h.bus.count(shared.EventBadgeEarned))
}

func TestGateway_SubmitDuplicateViaLedger(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first, err := h.gw.Submit(ctx, practiceEvent("ev-1", "learner-1"))
	require.NoError(t, err)

	// Clear the fast path so the replay reaches the lane.
	h.dedupe.mu.Lock()
	delete(h.dedupe.seen, "ev-1")
	h.dedupe.mu.Unlock()

	second, err := h.gw.Submit(ctx, practiceEvent("ev-1", "learner-1"))

	require.NoError(t, err)
	assert.True(t, second.Duplicate)
	assert.Equal(t, first.TotalPoints, second.TotalPoints)
	assert.Equal(t, 1, h.repo.saved("learner-1").Ledger.TotalQuestions)
	assert.Equal(t, 1, h.bus.count(shared.EventPracticeApplied))
}

func TestGateway_SubmitDuplicateViaFastPath(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.gw.Submit(ctx, practiceEvent("ev-1", "learner-1"))
	require.NoError(t, err)

	ack, err := h.gw.Submit(ctx, practiceEvent("ev-1", "learner-1"))

	require.NoError(t, err)
	assert.True(t, ack.Duplicate)
}

func TestGateway_SubmitRejectsInvalidEvent(t *testing.T) {
	h := newHarness(t)

	ev := practiceEvent("ev-1", "learner-1")
	ev.SectionID = ""

	_, err := h.gw.Submit(context.Background(), ev)

	assert.Error(t, err)
	assert.Equal(t, 0, h.repo.saves)
}

func TestGateway_SubmitSurfacesTransientStorageError(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.repo.failSaves = 10 // outlast the retry budget

	_, err := h.gw.Submit(ctx, practiceEvent("ev-1", "learner-1"))

	assert.ErrorIs(t, err, shared.ErrTransientStorage)

	// The in-memory mutation stands: the caller's retry with the same
	// event id lands as a duplicate and persists durably this time.
	h.repo.mu.Lock()
	h.repo.failSaves = 0
	h.repo.mu.Unlock()

	ack, err := h.gw.Submit(ctx, practiceEvent("ev-1", "learner-1"))
	require.NoError(t, err)
	assert.True(t, ack.Duplicate)
	assert.Equal(t, 10, ack.TotalPoints)
	assert.Equal(t, 1, h.repo.saved("learner-1").Ledger.TotalQuestions)
}

func TestGateway_AuditFailureDoesNotFailSubmit(t *testing.T) {
	h := newHarness(t)
	h.audit.failErr = errors.New("audit sink down")

	ack, err := h.gw.Submit(context.Background(), practiceEvent("ev-1", "learner-1"))

	require.NoError(t, err)
	assert.False(t, ack.Duplicate)
}

func TestGateway_SubmitPerLearnerOrdering(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	const n = 40
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := h.gw.Submit(ctx, practiceEvent(fmt.Sprintf("ev-%d", i), "learner-1"))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	snap, err := h.gw.ProgressSnapshot(ctx, "learner-1")
	require.NoError(t, err)
	assert.Equal(t, n, snap.Ledger.TotalQuestions)
	assert.Equal(t, n*10, snap.Ledger.TotalPoints)
}

func TestGateway_SubmitAfterCloseFails(t *testing.T) {
	h := newHarness(t)
	h.gw.Close()

	_, err := h.gw.Submit(context.Background(), practiceEvent("ev-1", "learner-1"))

	assert.ErrorIs(t, err, shared.ErrGatewayClosed)
}

// ─────────────────────────────────────────────────────────────────────────────
// Plan lifecycle
// ─────────────────────────────────────────────────────────────────────────────

func TestGateway_StartPlan(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	inst, err := h.gw.StartPlan(ctx, command.StartPlanCommand{LearnerID: "learner-1", TemplateID: "prep-3d"})

	require.NoError(t, err)
	assert.Equal(t, plan.StatusActive, inst.Status)
	assert.Equal(t, 3, inst.DurationDays())
	assert.Equal(t, 4, inst.Goal(1).TargetQuestions)

	saved := h.repo.saved("learner-1")
	require.Len(t, saved.Instances, 1)
	assert.Equal(t, 1, h.bus.count(shared.EventPlanStarted))
	assert.Contains(t, h.audit.actions(), "plan_started")
}

func TestGateway_StartPlanUnknownTemplate(t *testing.T) {
	h := newHarness(t)

	_, err := h.gw.StartPlan(context.Background(), command.StartPlanCommand{LearnerID: "learner-1", TemplateID: "ghost"})

	assert.Error(t, err)
	assert.True(t, shared.IsNotFound(err))
}

func TestGateway_StartPlanPersistFailureRollsBack(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.repo.failSaves = 10

	_, err := h.gw.StartPlan(ctx, command.StartPlanCommand{LearnerID: "learner-1", TemplateID: "prep-3d"})
	assert.ErrorIs(t, err, shared.ErrTransientStorage)

	h.repo.mu.Lock()
	h.repo.failSaves = 0
	h.repo.mu.Unlock()

	// The failed start left nothing behind.
	snap, err := h.gw.ProgressSnapshot(ctx, "learner-1")
	require.NoError(t, err)
	assert.Equal(t, 0, snap.Ledger.TotalQuestions)
	inst, err := h.gw.StartPlan(ctx, command.StartPlanCommand{LearnerID: "learner-1", TemplateID: "prep-3d"})
	require.NoError(t, err)
	assert.Len(t, h.repo.saved("learner-1").Instances, 1)
	assert.NotNil(t, inst)
}

func TestGateway_PauseResumeCancel(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	inst, err := h.gw.StartPlan(ctx, command.StartPlanCommand{LearnerID: "learner-1", TemplateID: "prep-3d"})
	require.NoError(t, err)

	require.NoError(t, h.gw.PausePlan(ctx, inst.ID))
	snap, err := h.gw.PlanSnapshot(ctx, inst.ID)
	require.NoError(t, err)
	assert.Equal(t, plan.StatusPaused, snap.Status)

	require.NoError(t, h.gw.ResumePlan(ctx, inst.ID))
	require.NoError(t, h.gw.CancelPlan(ctx, inst.ID))

	snap, err = h.gw.PlanSnapshot(ctx, inst.ID)
	require.NoError(t, err)
	assert.Equal(t, plan.StatusCancelled, snap.Status)

	// Terminal instances reject further commands.
	assert.ErrorIs(t, h.gw.PausePlan(ctx, inst.ID), shared.ErrInstanceTerminated)

	assert.Equal(t, 1, h.bus.count(shared.EventPlanPaused))
	assert.Equal(t, 1, h.bus.count(shared.EventPlanResumed))
	assert.Equal(t, 1, h.bus.count(shared.EventPlanCancelled))
}

func TestGateway_LifecycleUnknownInstance(t *testing.T) {
	h := newHarness(t)

	err := h.gw.PausePlan(context.Background(), "00000000-0000-0000-0000-000000000000")

	assert.ErrorIs(t, err, shared.ErrInstanceNotFound)
}

// ─────────────────────────────────────────────────────────────────────────────
// Plan credit
// ─────────────────────────────────────────────────────────────────────────────

func TestGateway_SubmitCreditsPlanDay(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	inst, err := h.gw.StartPlan(ctx, command.StartPlanCommand{LearnerID: "learner-1", TemplateID: "prep-3d"})
	require.NoError(t, err)

	ev := practiceEvent("ev-1", "learner-1")
	ev.PlanInstanceID = inst.ID
	_, err = h.gw.Submit(ctx, ev)
	require.NoError(t, err)

	snap, err := h.gw.PlanSnapshot(ctx, inst.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Goal(1).CompletedQuestions)
	assert.Equal(t, 1, snap.QuestionsCompleted)
}

func TestGateway_DailyGoalMetAndPlanCompletion(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	inst, err := h.gw.StartPlan(ctx, command.StartPlanCommand{LearnerID: "learner-1", TemplateID: "sprint-1d"})
	require.NoError(t, err)

	ev := practiceEvent("ev-1", "learner-1")
	ev.PlanInstanceID = inst.ID
	ack, err := h.gw.Submit(ctx, ev)
	require.NoError(t, err)

	assert.Equal(t, 1, h.bus.count(shared.EventDailyGoalMet))
	assert.Equal(t, 1, h.bus.count(shared.EventPlanCompleted))

	snap, err := h.gw.PlanSnapshot(ctx, inst.ID)
	require.NoError(t, err)
	assert.Equal(t, plan.StatusCompleted, snap.Status)

	// 10 base points + completion bonus (100% accuracy * 2).
	progressSnap, err := h.gw.ProgressSnapshot(ctx, "learner-1")
	require.NoError(t, err)
	assert.Equal(t, 1, progressSnap.Ledger.PlansCompleted)
	assert.Greater(t, progressSnap.Ledger.TotalPoints, ack.PointsEarned)
}

func TestGateway_FreePracticeDoesNotTouchPlans(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	inst, err := h.gw.StartPlan(ctx, command.StartPlanCommand{LearnerID: "learner-1", TemplateID: "prep-3d"})
	require.NoError(t, err)

	// No PlanInstanceID: pure free practice.
	_, err = h.gw.Submit(ctx, practiceEvent("ev-1", "learner-1"))
	require.NoError(t, err)

	snap, err := h.gw.PlanSnapshot(ctx, inst.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, snap.QuestionsCompleted)
}

func TestGateway_PausedPlanKeepsLedgerDropsCredit(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	inst, err := h.gw.StartPlan(ctx, command.StartPlanCommand{LearnerID: "learner-1", TemplateID: "prep-3d"})
	require.NoError(t, err)
	require.NoError(t, h.gw.PausePlan(ctx, inst.ID))

	ev := practiceEvent("ev-1", "learner-1")
	ev.PlanInstanceID = inst.ID
	ack, err := h.gw.Submit(ctx, ev)
	require.NoError(t, err)

	// Ledger moved, plan did not.
	assert.Equal(t, 10, ack.PointsEarned)
	snap, err := h.gw.PlanSnapshot(ctx, inst.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, snap.QuestionsCompleted)
}

func TestGateway_ChallengeNeverCreditsPlanQuota(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	inst, err := h.gw.StartPlan(ctx, command.StartPlanCommand{LearnerID: "learner-1", TemplateID: "prep-3d"})
	require.NoError(t, err)

	ev := practiceEvent("ev-1", "learner-1")
	ev.PlanInstanceID = inst.ID
	ev.Kind = progress.KindChallenge
	ev.Score, ev.MaxScore = 10, 10
	_, err = h.gw.Submit(ctx, ev)
	require.NoError(t, err)

	snap, err := h.gw.PlanSnapshot(ctx, inst.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, snap.QuestionsCompleted)
}

// ─────────────────────────────────────────────────────────────────────────────
// Day rollover
// ─────────────────────────────────────────────────────────────────────────────

func TestGateway_RollOverDay(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	startedAt := time.Now().UTC()
	inst, err := h.gw.StartPlan(ctx, command.StartPlanCommand{
		LearnerID: "learner-1", TemplateID: "prep-3d", StartedAt: startedAt,
	})
	require.NoError(t, err)

	require.NoError(t, h.gw.RollOverDay(ctx, startedAt.AddDate(0, 0, 1)))

	snap, err := h.gw.PlanSnapshot(ctx, inst.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, snap.CurrentDay)
	assert.Equal(t, 1, h.bus.count(shared.EventDayAdvanced))

	// Idempotent within the same day.
	require.NoError(t, h.gw.RollOverDay(ctx, startedAt.AddDate(0, 0, 1)))
	assert.Equal(t, 1, h.bus.count(shared.EventDayAdvanced))
}

func TestGateway_RollOverDayCompletesExpiredPlan(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	startedAt := time.Now().UTC()
	inst, err := h.gw.StartPlan(ctx, command.StartPlanCommand{
		LearnerID: "learner-1", TemplateID: "sprint-1d", StartedAt: startedAt,
	})
	require.NoError(t, err)

	require.NoError(t, h.gw.RollOverDay(ctx, startedAt.AddDate(0, 0, 1)))

	snap, err := h.gw.PlanSnapshot(ctx, inst.ID)
	require.NoError(t, err)
	assert.Equal(t, plan.StatusCompleted, snap.Status)
	assert.Equal(t, 1, h.bus.count(shared.EventPlanCompleted))
}

// ─────────────────────────────────────────────────────────────────────────────
// Snapshots and residency
// ─────────────────────────────────────────────────────────────────────────────

func TestGateway_ProgressSnapshotUnknownLearner(t *testing.T) {
	h := newHarness(t)

	_, err := h.gw.ProgressSnapshot(context.Background(), "nobody")

	assert.ErrorIs(t, err, shared.ErrLearnerNotFound)
}

func TestGateway_SnapshotIsolation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.gw.Submit(ctx, practiceEvent("ev-1", "learner-1"))
	require.NoError(t, err)

	snap, err := h.gw.ProgressSnapshot(ctx, "learner-1")
	require.NoError(t, err)
	snap.Ledger.TotalPoints = 9999

	again, err := h.gw.ProgressSnapshot(ctx, "learner-1")
	require.NoError(t, err)
	assert.Equal(t, 10, again.Ledger.TotalPoints)
}

func TestGateway_LoadsStateFromRepository(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	// Seed the repository directly; the learner is not resident.
	seeded := progress.NewLearnerState("learner-9")
	seeded.Ledger.TotalQuestions = 42
	seeded.Ledger.TotalPoints = 420
	require.NoError(t, h.repo.SaveLearnerState(ctx, seeded))

	snap, err := h.gw.ProgressSnapshot(ctx, "learner-9")

	require.NoError(t, err)
	assert.Equal(t, 42, snap.Ledger.TotalQuestions)
	assert.Equal(t, 5, snap.Achievements.Level)
}

func TestGateway_LifecycleResolvesInstanceViaRepository(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	inst, err := h.gw.StartPlan(ctx, command.StartPlanCommand{LearnerID: "learner-1", TemplateID: "prep-3d"})
	require.NoError(t, err)

	// Fresh gateway over the same repository: nothing resident.
	cold := New(
		Config{Lanes: 2, LaneQueueSize: 8, Retry: retry.Config{MaxAttempts: 1, InitialDelay: time.Millisecond}},
		progress.DefaultRules(), &memTemplates{}, h.repo, nil, nil, nil, nil,
	)
	defer cold.Close()

	require.NoError(t, cold.PausePlan(ctx, inst.ID))

	snap, err := cold.PlanSnapshot(ctx, inst.ID)
	require.NoError(t, err)
	assert.Equal(t, plan.StatusPaused, snap.Status)
}
