package scheduler

import (
	"fmt"
	"time"
)

// IntervalSchedule runs a job every Interval. With Aligned set, runs land on
// multiples of Interval since the Unix epoch instead of drifting with start time.
type IntervalSchedule struct {
	Interval time.Duration
	Aligned  bool
}

// NewIntervalSchedule creates a new IntervalSchedule.
func NewIntervalSchedule(interval time.Duration) *IntervalSchedule {
	return &IntervalSchedule{Interval: interval}
}

// Next returns the next scheduled time.
func (s *IntervalSchedule) Next(t time.Time) time.Time {
	if s.Interval <= 0 {
		return time.Time{}
	}
	if s.Aligned {
		return t.Truncate(s.Interval).Add(s.Interval)
	}
	return t.Add(s.Interval)
}

// String returns the string representation of the schedule.
func (s *IntervalSchedule) String() string {
	return fmt.Sprintf("@every %s", s.Interval)
}
