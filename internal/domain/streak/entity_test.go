package streak

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/progress-engine/pkg/timeutil"
)

func day(d int, hour int) time.Time {
	return time.Date(2026, time.October, d, hour, 0, 0, 0, timeutil.AlmatyTZ)
}

func TestMarkActivity_Scenario(t *testing.T) {
	s := NewState("u-1")

	assert.Equal(t, ChangeStarted, s.MarkActivity(day(1, 9)))
	assert.Equal(t, 1, s.CurrentStreak)

	assert.Equal(t, ChangeExtended, s.MarkActivity(day(2, 23)))
	assert.Equal(t, 2, s.CurrentStreak)

	// day 3 skipped
	assert.Equal(t, ChangeRestarted, s.MarkActivity(day(4, 0)))
	assert.Equal(t, 1, s.CurrentStreak)
	assert.Equal(t, 2, s.LongestStreak)
}

func TestMarkActivity_SameDayIsIdempotent(t *testing.T) {
	s := NewState("u-1")
	s.MarkActivity(day(5, 8))
	before := s.Clone()

	assert.Equal(t, ChangeNone, s.MarkActivity(day(5, 22)))
	assert.Equal(t, before, s)
}

func TestMarkActivity_LateEventIgnored(t *testing.T) {
	s := NewState("u-1")
	s.MarkActivity(day(5, 8))
	s.MarkActivity(day(6, 8))

	assert.Equal(t, ChangeNone, s.MarkActivity(day(4, 8)))
	assert.Equal(t, 2, s.CurrentStreak)
	require.NotNil(t, s.LastActiveDate)
	assert.Equal(t, day(6, 0), *s.LastActiveDate)
}

func TestIsStale(t *testing.T) {
	s := NewState("u-1")
	s.MarkActivity(day(10, 12))

	assert.False(t, s.IsStale(StaleCutoff(day(11, 12))))
	assert.True(t, s.IsStale(StaleCutoff(day(12, 0))))
	assert.True(t, s.IsStale(StaleCutoff(day(12, 12))))
	assert.Equal(t, 0, s.Effective(day(12, 12)))
	assert.Equal(t, 1, s.Effective(day(11, 12)))

	assert.True(t, s.Reset(day(12, 12)))
	assert.False(t, s.Reset(day(12, 12)))
	assert.False(t, s.IsStale(StaleCutoff(day(12, 12))))
}
