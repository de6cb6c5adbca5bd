package progress

import (
	"context"

	"github.com/elzatona/progress-engine/internal/domain/plan"
	"github.com/elzatona/progress-engine/internal/domain/shared"
)

// LearnerState is the durable unit of one learner: their ledger and every
// plan instance they have started. It is the granularity at which the
// persistence collaborator must write atomically, and the granularity at
// which the gateway partitions ownership.
type LearnerState struct {
	LearnerID shared.LearnerID
	Ledger    *Ledger
	Instances []*plan.Instance
}

// NewLearnerState creates state for a learner seen for the first time.
func NewLearnerState(learnerID shared.LearnerID) *LearnerState {
	return &LearnerState{
		LearnerID: learnerID,
		Ledger:    NewLedger(learnerID),
	}
}

// Instance returns the instance with the given id, or nil.
func (s *LearnerState) Instance(id shared.InstanceID) *plan.Instance {
	for _, inst := range s.Instances {
		if inst.ID == id {
			return inst
		}
	}
	return nil
}

// ActiveInstances returns the instances still in a non-terminal state.
func (s *LearnerState) ActiveInstances() []*plan.Instance {
	var out []*plan.Instance
	for _, inst := range s.Instances {
		if !inst.Status.IsTerminal() {
			out = append(out, inst)
		}
	}
	return out
}

// Clone deep-copies the state for reads that escape the owning lane.
func (s *LearnerState) Clone() *LearnerState {
	if s == nil {
		return nil
	}

	clone := &LearnerState{
		LearnerID: s.LearnerID,
		Ledger:    s.Ledger.Clone(),
		Instances: make([]*plan.Instance, len(s.Instances)),
	}
	for i, inst := range s.Instances {
		clone.Instances[i] = inst.Clone()
	}
	return clone
}

// StateRepository is the persistence collaborator. Any durable store works
// as long as SaveLearnerState is atomic per learner. The engine treats the
// in-memory state as authoritative and writes through after every mutation;
// a failed save is surfaced as a retryable transient error.
type StateRepository interface {
	// SaveLearnerState writes the learner's ledger and instances atomically.
	SaveLearnerState(ctx context.Context, state *LearnerState) error

	// LoadLearnerState returns the learner's state, or an error wrapping
	// shared.ErrNotFound for a learner with no prior record.
	LoadLearnerState(ctx context.Context, learnerID shared.LearnerID) (*LearnerState, error)
}
