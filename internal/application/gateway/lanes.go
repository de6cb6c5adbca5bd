package gateway

import (
	"context"
	"hash/fnv"
	"sync"

	"github.com/elzatona/progress-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SERIALIZATION LANES
// Every mutation for a learner runs on the one lane that owns that learner,
// so per-learner work is strictly FIFO and needs no locks around the state
// it touches. Learners are hashed onto a fixed set of lanes; two learners
// sharing a lane serialize against each other, which is acceptable - the
// guarantee is "never concurrent per learner", not "always parallel across
// learners".
// ══════════════════════════════════════════════════════════════════════════════

type laneTask func()

type lanes struct {
	queues []chan laneTask

	closeOnce sync.Once
	closed    chan struct{}
	wg        sync.WaitGroup
}

// newLanes starts count worker goroutines, each draining its own bounded
// queue in submission order.
func newLanes(count, queueSize int) *lanes {
	if count <= 0 {
		count = 16
	}
	if queueSize <= 0 {
		queueSize = 256
	}

	l := &lanes{
		queues: make([]chan laneTask, count),
		closed: make(chan struct{}),
	}
	for i := range l.queues {
		l.queues[i] = make(chan laneTask, queueSize)
	}

	l.wg.Add(count)
	for i := range l.queues {
		go l.drain(l.queues[i])
	}
	return l
}

func (l *lanes) drain(queue chan laneTask) {
	defer l.wg.Done()
	for {
		select {
		case task := <-queue:
			task()
		case <-l.closed:
			// Finish what was already accepted before stopping.
			for {
				select {
				case task := <-queue:
					task()
				default:
					return
				}
			}
		}
	}
}

// laneFor maps a learner onto its owning queue. Stable for the lifetime of
// the process, so a learner's tasks always serialize.
func (l *lanes) laneFor(learnerID shared.LearnerID) chan laneTask {
	h := fnv.New32a()
	h.Write([]byte(learnerID))
	return l.queues[h.Sum32()%uint32(len(l.queues))]
}

// enqueue places a task on the learner's lane. Blocks while the lane's
// queue is full; gives up when the context expires or the lanes are closed.
func (l *lanes) enqueue(ctx context.Context, learnerID shared.LearnerID, task laneTask) error {
	select {
	case <-l.closed:
		return shared.ErrGatewayClosed
	default:
	}

	select {
	case l.laneFor(learnerID) <- task:
		return nil
	case <-ctx.Done():
		return shared.ErrSubmitTimeout
	case <-l.closed:
		return shared.ErrGatewayClosed
	}
}

// runSync enqueues fn on the learner's lane and waits for it to finish.
// The wait itself is not bounded by ctx once the task is accepted: an
// accepted task always runs, so state never half-applies.
func (l *lanes) runSync(ctx context.Context, learnerID shared.LearnerID, fn func()) error {
	done := make(chan struct{})
	err := l.enqueue(ctx, learnerID, func() {
		defer close(done)
		fn()
	})
	if err != nil {
		return err
	}
	<-done
	return nil
}

// close stops accepting new tasks and waits for accepted ones to drain.
func (l *lanes) close() {
	l.closeOnce.Do(func() {
		close(l.closed)
	})
	l.wg.Wait()
}
