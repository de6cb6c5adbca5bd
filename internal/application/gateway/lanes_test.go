package gateway

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elzatona/progress-engine/internal/domain/shared"
)

func TestLanes_SameLearnerRunsInOrder(t *testing.T) {
	l := newLanes(8, 32)
	defer l.close()

	const n = 100
	var mu sync.Mutex
	var order []int

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		i := i
		go func() {
			defer wg.Done()
			err := l.runSync(context.Background(), "learner-1", func() {
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
				time.Sleep(time.Microsecond)
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Len(t, order, n)
}

func TestLanes_SequentialSubmissionIsFIFO(t *testing.T) {
	l := newLanes(4, 64)
	defer l.close()

	var mu sync.Mutex
	var order []int
	done := make([]chan struct{}, 50)

	for i := 0; i < 50; i++ {
		i := i
		done[i] = make(chan struct{})
		err := l.enqueue(context.Background(), "learner-1", func() {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			close(done[i])
		})
		require.NoError(t, err)
	}
	for _, ch := range done {
		<-ch
	}

	for i := 0; i < 50; i++ {
		assert.Equal(t, i, order[i])
	}
}

func TestLanes_SameLearnerSameLane(t *testing.T) {
	l := newLanes(8, 8)
	defer l.close()

	first := l.laneFor("learner-1")
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, l.laneFor("learner-1"))
	}
}

func TestLanes_RunSyncWaitsForResult(t *testing.T) {
	l := newLanes(2, 8)
	defer l.close()

	value := 0
	err := l.runSync(context.Background(), "learner-1", func() {
		value = 42
	})

	require.NoError(t, err)
	assert.Equal(t, 42, value)
}

func TestLanes_EnqueueAfterClose(t *testing.T) {
	l := newLanes(2, 8)
	l.close()

	err := l.enqueue(context.Background(), "learner-1", func() {})

	assert.ErrorIs(t, err, shared.ErrGatewayClosed)
}

func TestLanes_FullLaneTimesOut(t *testing.T) {
	l := newLanes(1, 1)
	defer l.close()

	block := make(chan struct{})
	// Occupy the worker, then fill the one queue slot.
	require.NoError(t, l.enqueue(context.Background(), "learner-1", func() { <-block }))
	require.NoError(t, l.enqueue(context.Background(), "learner-1", func() {}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := l.enqueue(ctx, "learner-1", func() {})

	assert.ErrorIs(t, err, shared.ErrSubmitTimeout)
	close(block)
}

func TestLanes_CloseDrainsAcceptedTasks(t *testing.T) {
	l := newLanes(1, 16)

	var mu sync.Mutex
	ran := 0
	for i := 0; i < 10; i++ {
		require.NoError(t, l.enqueue(context.Background(), "learner-1", func() {
			mu.Lock()
			ran++
			mu.Unlock()
		}))
	}

	l.close()

	assert.Equal(t, 10, ran)
}
