package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingJob struct {
	name string
	runs atomic.Int64
	err  error
}

func (j *countingJob) Name() string        { return j.name }
func (j *countingJob) Description() string { return "test job" }
func (j *countingJob) Run(context.Context) error {
	j.runs.Add(1)
	return j.err
}

func TestScheduler_RegisterValidation(t *testing.T) {
	s := NewScheduler(SchedulerConfig{})

	assert.ErrorIs(t, s.Register(nil, NewIntervalSchedule(time.Second)), ErrNilJob)
	assert.ErrorIs(t, s.Register(&countingJob{name: "a"}, nil), ErrNilSchedule)

	require.NoError(t, s.Register(&countingJob{name: "a"}, NewIntervalSchedule(time.Second)))
	assert.ErrorIs(t, s.Register(&countingJob{name: "a"}, NewIntervalSchedule(time.Second)), ErrJobAlreadyExists)
}

func TestScheduler_StartStop(t *testing.T) {
	s := NewScheduler(SchedulerConfig{})
	require.NoError(t, s.Register(&countingJob{name: "noop"}, NewIntervalSchedule(time.Hour)))

	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.IsRunning())
	assert.ErrorIs(t, s.Start(context.Background()), ErrAlreadyRunning)

	require.NoError(t, s.Stop())
	assert.False(t, s.IsRunning())
	assert.ErrorIs(t, s.Stop(), ErrNotRunning)
}

func TestScheduler_RunsDueJob(t *testing.T) {
	s := NewScheduler(SchedulerConfig{})
	job := &countingJob{name: "fast"}
	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Millisecond)))

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	// The loop ticks once per second; wait for at least one pass.
	assert.Eventually(t, func() bool {
		return job.runs.Load() >= 1
	}, 3*time.Second, 50*time.Millisecond)
}

func TestScheduler_DisabledJobDoesNotRun(t *testing.T) {
	s := NewScheduler(SchedulerConfig{})
	job := &countingJob{name: "off"}
	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Millisecond)))
	require.NoError(t, s.DisableJob("off"))

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	time.Sleep(1500 * time.Millisecond)
	assert.Equal(t, int64(0), job.runs.Load())
}

func TestIntervalSchedule_Next(t *testing.T) {
	sched := NewIntervalSchedule(30 * time.Minute)
	base := time.Date(2026, 8, 10, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, base.Add(30*time.Minute), sched.Next(base))
	assert.Equal(t, "@every 30m0s", sched.String())
}

func TestDailySchedule_Next(t *testing.T) {
	sched := NewDailySchedule(5 * time.Minute)

	next := sched.Next(time.Date(2026, 8, 10, 17, 30, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2026, 8, 11, 0, 5, 0, 0, time.UTC), next)

	// Right at the boundary the next run is tomorrow, never "now".
	next = sched.Next(time.Date(2026, 8, 11, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2026, 8, 12, 0, 5, 0, 0, time.UTC), next)
}

func TestDailySchedule_NegativeGraceClamped(t *testing.T) {
	sched := NewDailySchedule(-time.Hour)
	assert.Equal(t, time.Duration(0), sched.Grace)
}
