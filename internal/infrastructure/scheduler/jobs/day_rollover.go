// Package jobs contains the engine's scheduled jobs.
package jobs

import (
	"context"
	"time"
)

// DayRoller advances plan day pointers. Implemented by the gateway.
type DayRoller interface {
	RollOverDay(ctx context.Context, asOf time.Time) error
}

// DayRollover runs just after UTC midnight and moves every loaded active
// plan onto the new calendar day. Missing a run is harmless: the day
// pointer is derived from the start date, so the next run or the next
// learner load converges on the right day.
type DayRollover struct {
	roller DayRoller
}

// NewDayRollover creates the job.
func NewDayRollover(roller DayRoller) *DayRollover {
	return &DayRollover{roller: roller}
}

// Name implements scheduler.Job.
func (j *DayRollover) Name() string {
	return "day_rollover"
}

// Description implements scheduler.Job.
func (j *DayRollover) Description() string {
	return "advances active plan instances across the UTC day boundary"
}

// Run implements scheduler.Job.
func (j *DayRollover) Run(ctx context.Context) error {
	return j.roller.RollOverDay(ctx, time.Now().UTC())
}
