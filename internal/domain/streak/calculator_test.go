package streak_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/progress-engine/internal/domain/shared"
	"github.com/alem-hub/progress-engine/internal/domain/streak"
	"github.com/alem-hub/progress-engine/internal/infrastructure/persistence/memory"
	"github.com/alem-hub/progress-engine/pkg/timeutil"
)

func at(day, hour int) time.Time {
	return time.Date(2026, time.October, day, hour, 0, 0, 0, timeutil.AlmatyTZ)
}

func TestCalculator_MarkActivity(t *testing.T) {
	clock := timeutil.NewManualClock(at(1, 9))
	calc := streak.NewCalculator(memory.NewStreakRepository(), clock, nil)
	ctx := context.Background()

	state, change, err := calc.MarkActivity(ctx, "u-1", at(1, 9))
	require.NoError(t, err)
	assert.Equal(t, streak.ChangeStarted, change)
	assert.Equal(t, 1, state.CurrentStreak)

	_, change, err = calc.MarkActivity(ctx, "u-1", at(1, 20))
	require.NoError(t, err)
	assert.Equal(t, streak.ChangeNone, change)

	state, change, err = calc.MarkActivity(ctx, "u-1", at(2, 8))
	require.NoError(t, err)
	assert.Equal(t, streak.ChangeExtended, change)
	assert.Equal(t, 2, state.CurrentStreak)
	assert.Equal(t, 2, state.LongestStreak)

	// Нулевое время - "сейчас" по часам.
	clock.Set(at(4, 12))
	state, change, err = calc.MarkActivity(ctx, "u-1", time.Time{})
	require.NoError(t, err)
	assert.Equal(t, streak.ChangeRestarted, change)
	assert.Equal(t, 1, state.CurrentStreak)
	assert.Equal(t, 2, state.LongestStreak)
}

func TestCalculator_GetMissingIsEmpty(t *testing.T) {
	calc := streak.NewCalculator(memory.NewStreakRepository(), timeutil.NewManualClock(at(1, 9)), nil)

	state, err := calc.Get(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Equal(t, 0, state.CurrentStreak)
	assert.Nil(t, state.LastActiveDate)
}

func TestCalculator_EmptyUser(t *testing.T) {
	calc := streak.NewCalculator(memory.NewStreakRepository(), timeutil.NewManualClock(at(1, 9)), nil)
	_, _, err := calc.MarkActivity(context.Background(), "", at(1, 9))
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestCalculator_ResetStaleStreaks(t *testing.T) {
	clock := timeutil.NewManualClock(at(10, 9))
	repo := memory.NewStreakRepository()
	calc := streak.NewCalculator(repo, clock, nil)
	ctx := context.Background()

	// 7 пользователей активны 10-го, двое из них ещё и 11-го.
	for i := 0; i < 7; i++ {
		_, _, err := calc.MarkActivity(ctx, shared.UserID(fmt.Sprintf("u-%d", i)), at(10, 9))
		require.NoError(t, err)
	}
	for _, u := range []shared.UserID{"u-0", "u-1"} {
		_, _, err := calc.MarkActivity(ctx, u, at(11, 9))
		require.NoError(t, err)
	}

	// 11-го все ещё могут продолжить серию.
	clock.Set(at(11, 23))
	stats, err := calc.ResetStaleStreaks(ctx, 3)
	require.NoError(t, err)
	assert.Zero(t, stats.Reset)

	// 12-го серии с последним днём 10-го устарели.
	clock.Set(at(12, 1))
	stats, err = calc.ResetStaleStreaks(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, 5, stats.Scanned)
	assert.Equal(t, 5, stats.Reset)
	assert.Zero(t, stats.Failed)

	s, err := repo.Get(ctx, "u-2")
	require.NoError(t, err)
	assert.Equal(t, 0, s.CurrentStreak)
	assert.Equal(t, 1, s.LongestStreak)

	s, err = repo.Get(ctx, "u-0")
	require.NoError(t, err)
	assert.Equal(t, 2, s.CurrentStreak)

	// Повтор идемпотентен.
	stats, err = calc.ResetStaleStreaks(ctx, 3)
	require.NoError(t, err)
	assert.Zero(t, stats.Scanned)
}
