package messaging

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elzatona/progress-engine/internal/domain/shared"
)

func syncBus() *InMemoryEventBus {
	return NewInMemoryEventBus(Config{AsyncMode: false, EnableMetrics: true})
}

func TestEventBus_PublishToSubscriber(t *testing.T) {
	bus := syncBus()
	defer bus.Close()

	var received []shared.Event
	err := bus.Subscribe(shared.EventBadgeEarned, func(event shared.Event) error {
		received = append(received, event)
		return nil
	})
	require.NoError(t, err)

	ev := shared.NewAchievementEvent(shared.EventBadgeEarned, "learner-1", "streak_7", 100)
	require.NoError(t, bus.Publish(ev))

	require.Len(t, received, 1)
	assert.Equal(t, shared.EventBadgeEarned, received[0].EventType())
}

func TestEventBus_TypeFiltering(t *testing.T) {
	bus := syncBus()
	defer bus.Close()

	badgeCount, levelCount := 0, 0
	require.NoError(t, bus.Subscribe(shared.EventBadgeEarned, func(shared.Event) error {
		badgeCount++
		return nil
	}))
	require.NoError(t, bus.Subscribe(shared.EventLevelUp, func(shared.Event) error {
		levelCount++
		return nil
	}))

	require.NoError(t, bus.Publish(shared.NewAchievementEvent(shared.EventBadgeEarned, "learner-1", "streak_7", 0)))
	require.NoError(t, bus.Publish(shared.NewAchievementEvent(shared.EventBadgeEarned, "learner-1", "streak_30", 0)))

	assert.Equal(t, 2, badgeCount)
	assert.Equal(t, 0, levelCount)
}

func TestEventBus_SubscribeAllSeesEverything(t *testing.T) {
	bus := syncBus()
	defer bus.Close()

	count := 0
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error {
		count++
		return nil
	}))

	require.NoError(t, bus.Publish(shared.NewAchievementEvent(shared.EventBadgeEarned, "learner-1", "x", 0)))
	require.NoError(t, bus.Publish(shared.NewStreakEvent(shared.EventStreakUpdated, "learner-1", 2, 2, 0)))

	assert.Equal(t, 2, count)
}

func TestEventBus_HandlerErrorDoesNotStopOthers(t *testing.T) {
	bus := syncBus()
	defer bus.Close()

	secondRan := false
	require.NoError(t, bus.Subscribe(shared.EventLevelUp, func(shared.Event) error {
		return errors.New("handler boom")
	}))
	require.NoError(t, bus.Subscribe(shared.EventLevelUp, func(shared.Event) error {
		secondRan = true
		return nil
	}))

	err := bus.Publish(shared.NewAchievementEvent(shared.EventLevelUp, "learner-1", "level", 2))

	assert.NoError(t, err)
	assert.True(t, secondRan)
	assert.Equal(t, int64(1), bus.Metrics().HandlerFailures(shared.EventLevelUp))
}

func TestEventBus_AsyncDelivery(t *testing.T) {
	bus := NewInMemoryEventBus(Config{AsyncMode: true, WorkerPoolSize: 4})

	var wg sync.WaitGroup
	wg.Add(3)
	require.NoError(t, bus.Subscribe(shared.EventStreakUpdated, func(shared.Event) error {
		wg.Done()
		return nil
	}))

	for i := 0; i < 3; i++ {
		require.NoError(t, bus.Publish(shared.NewStreakEvent(shared.EventStreakUpdated, "learner-1", i+1, i+1, 0)))
	}

	wg.Wait() // handlers all ran
	require.NoError(t, bus.Close())
}

func TestEventBus_ClosedRejectsOperations(t *testing.T) {
	bus := syncBus()
	require.NoError(t, bus.Close())

	assert.ErrorIs(t, bus.Publish(shared.NewStreakEvent(shared.EventStreakUpdated, "learner-1", 1, 1, 0)), ErrEventBusClosed)
	assert.ErrorIs(t, bus.Subscribe(shared.EventLevelUp, func(shared.Event) error { return nil }), ErrEventBusClosed)

	// Closing twice is a no-op.
	assert.NoError(t, bus.Close())
}

func TestEventBus_NilHandlerRejected(t *testing.T) {
	bus := syncBus()
	defer bus.Close()

	assert.Error(t, bus.Subscribe(shared.EventLevelUp, nil))
	assert.Error(t, bus.SubscribeAll(nil))
}

func TestEventBus_MetricsCountPublishes(t *testing.T) {
	bus := syncBus()
	defer bus.Close()

	require.NoError(t, bus.Subscribe(shared.EventBadgeEarned, func(shared.Event) error { return nil }))
	require.NoError(t, bus.Publish(shared.NewAchievementEvent(shared.EventBadgeEarned, "learner-1", "x", 0)))
	require.NoError(t, bus.Publish(shared.NewAchievementEvent(shared.EventBadgeEarned, "learner-1", "y", 0)))

	assert.Equal(t, int64(2), bus.Metrics().Published(shared.EventBadgeEarned))
}
