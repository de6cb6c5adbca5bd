package scheduler

import (
	"fmt"
	"time"

	"github.com/elzatona/progress-engine/pkg/timeutil"
)

// IntervalSchedule schedules a job to run at a fixed interval.
type IntervalSchedule struct {
	Interval time.Duration
}

// NewIntervalSchedule creates a new IntervalSchedule.
func NewIntervalSchedule(interval time.Duration) *IntervalSchedule {
	return &IntervalSchedule{Interval: interval}
}

// Next returns the next scheduled time.
func (s *IntervalSchedule) Next(t time.Time) time.Time {
	return t.Add(s.Interval)
}

// String returns the string representation of the schedule.
func (s *IntervalSchedule) String() string {
	return fmt.Sprintf("@every %s", s.Interval.String())
}

// DailySchedule runs a job once per day just after the UTC day boundary.
// The grace offset keeps the run clear of clock skew right at midnight.
type DailySchedule struct {
	Grace time.Duration
}

// NewDailySchedule creates a DailySchedule with the given grace offset.
func NewDailySchedule(grace time.Duration) *DailySchedule {
	if grace < 0 {
		grace = 0
	}
	return &DailySchedule{Grace: grace}
}

// Next returns the next UTC midnight plus the grace offset.
func (s *DailySchedule) Next(t time.Time) time.Time {
	return timeutil.NextMidnight(t).Add(s.Grace)
}

// String returns the string representation of the schedule.
func (s *DailySchedule) String() string {
	return fmt.Sprintf("@daily utc+%s", s.Grace.String())
}
