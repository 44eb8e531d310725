package challenge_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/progress-engine/internal/domain/challenge"
	"github.com/alem-hub/progress-engine/internal/domain/ledger"
	"github.com/alem-hub/progress-engine/internal/domain/quest"
	"github.com/alem-hub/progress-engine/internal/domain/reward"
	"github.com/alem-hub/progress-engine/internal/domain/shared"
	"github.com/alem-hub/progress-engine/internal/infrastructure/persistence/memory"
	"github.com/alem-hub/progress-engine/pkg/timeutil"
)

type fixture struct {
	clock      *timeutil.ManualClock
	quests     *memory.QuestRepository
	challenges *memory.ChallengeRepository
	agg        *challenge.Aggregator
}

func newFixture(template challenge.Template) *fixture {
	clock := timeutil.NewManualClock(time.Date(2026, time.October, 19, 10, 0, 0, 0, timeutil.AlmatyTZ))
	f := &fixture{
		clock:      clock,
		quests:     memory.NewQuestRepository(),
		challenges: memory.NewChallengeRepository(),
	}
	f.agg = challenge.NewAggregator(f.challenges, f.quests, clock, nil, template)
	return f
}

// seedDay сохраняет набор квестов дня с заданными статусами.
func (f *fixture) seedDay(t *testing.T, user shared.UserID, day int, statuses ...quest.Status) {
	t.Helper()
	date := time.Date(2026, time.October, day, 0, 0, 0, 0, timeutil.AlmatyTZ)
	if day <= 0 {
		date = time.Date(2026, time.September, 30+day, 0, 0, 0, 0, timeutil.AlmatyTZ)
	}
	batch := make([]*quest.Instance, 0, len(statuses))
	for i, st := range statuses {
		d := quest.FallbackDefinitions()[i%3]
		inst := quest.NewInstance(fmt.Sprintf("%s-%s-%d", user, timeutil.FormatDate(date), i), user, d, date, timeutil.NextMidnight(date), date)
		inst.Status = st
		if st.CountsAsCompleted() {
			inst.Progress = inst.Target
		}
		inst.Claimed = st == quest.StatusClaimed
		batch = append(batch, inst)
	}
	_, created, err := f.quests.CreateDaily(context.Background(), user, date, batch)
	require.NoError(t, err)
	require.True(t, created)
}

func TestCurrent_CountsCompletedQuestsAcrossDays(t *testing.T) {
	f := newFixture(challenge.DefaultTemplate())
	f.seedDay(t, "u-1", 0, quest.StatusCompleted, quest.StatusCompleted) // 30 сентября
	f.seedDay(t, "u-1", 3, quest.StatusCompleted, quest.StatusCompleted, quest.StatusInProgress)
	f.seedDay(t, "u-1", 10, quest.StatusCompleted, quest.StatusClaimed, quest.StatusExpired)
	f.seedDay(t, "u-1", 18, quest.StatusCompleted)
	f.seedDay(t, "u-2", 18, quest.StatusCompleted, quest.StatusCompleted)

	view, err := f.agg.Current(context.Background(), "u-1")
	require.NoError(t, err)

	assert.Equal(t, 5, view.CompletedCount)
	assert.Equal(t, 17, view.Percentage)
	assert.Equal(t, challenge.StatusInProgress, view.Status)
	assert.False(t, view.Claimed)
	assert.Equal(t, 12, view.DaysLeft)
	assert.Equal(t, challenge.MonthKey{Year: 2026, Month: time.October}, view.Definition.Key)
	assert.Equal(t, "Испытание: Октябрь 2026", view.Definition.BadgeName)
	assert.Equal(t, 30, view.Definition.TotalQuestsRequired)
}

func TestCurrent_LazyCreationIsStable(t *testing.T) {
	f := newFixture(challenge.DefaultTemplate())
	ctx := context.Background()

	first, err := f.agg.Current(ctx, "u-1")
	require.NoError(t, err)
	second, err := f.agg.Current(ctx, "u-1")
	require.NoError(t, err)
	other, err := f.agg.Current(ctx, "u-2")
	require.NoError(t, err)

	assert.Equal(t, first.Definition.ID, second.Definition.ID)
	assert.Equal(t, first.ProgressID, second.ProgressID)
	assert.Equal(t, first.Definition.ID, other.Definition.ID)
	assert.NotEqual(t, first.ProgressID, other.ProgressID)
	assert.Equal(t, 0, first.CompletedCount)
	assert.Equal(t, 0, first.Percentage)
}

func TestCurrent_CompletedThenClaimed(t *testing.T) {
	f := newFixture(challenge.Template{TotalQuestsRequired: 3, Reward: shared.Reward{XP: 100, Gems: 10}})
	ctx := context.Background()
	f.seedDay(t, "u-1", 5, quest.StatusCompleted, quest.StatusCompleted, quest.StatusCompleted)

	view, err := f.agg.Current(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, 100, view.Percentage)
	assert.Equal(t, challenge.StatusCompleted, view.Status)
	assert.NoError(t, view.CheckClaimable("u-1", "u-1", f.clock.Now()))
	assert.ErrorIs(t, view.CheckClaimable("u-1", "u-2", f.clock.Now()), shared.ErrUnauthorized)

	claims := memory.NewClaimStore(f.quests, f.challenges, memory.NewLedgerRepository(), memory.NewBalanceRepository())
	now := f.clock.Now()
	grant := reward.Grant{UserID: "u-1", Reward: view.Definition.Reward, Week: ledger.WeekOf(now), At: now}

	commit, err := claims.ClaimChallenge(ctx, view.ProgressID, grant)
	require.NoError(t, err)
	assert.True(t, commit.Swapped)
	assert.Equal(t, 100, commit.Balance.Points)

	commit, err = claims.ClaimChallenge(ctx, view.ProgressID, grant)
	require.NoError(t, err)
	assert.False(t, commit.Swapped)

	view, err = f.agg.Current(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, challenge.StatusClaimed, view.Status)
	assert.ErrorIs(t, view.CheckClaimable("u-1", "u-1", f.clock.Now()), shared.ErrAlreadyClaimed)
}

func TestCurrent_UnclaimedQuestExpiringLowersCount(t *testing.T) {
	f := newFixture(challenge.Template{TotalQuestsRequired: 2})
	ctx := context.Background()
	f.seedDay(t, "u-1", 19, quest.StatusClaimed, quest.StatusCompleted)

	view, err := f.agg.Current(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, 2, view.CompletedCount)
	assert.Equal(t, challenge.StatusCompleted, view.Status)

	f.clock.AdvanceDays(1)
	expired, err := f.quests.Expire(ctx, "u-1-2026-10-19-1", f.clock.Now())
	require.NoError(t, err)
	require.True(t, expired)

	view, err = f.agg.Current(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, 1, view.CompletedCount)
	assert.NotEqual(t, challenge.StatusCompleted, view.Status)
}

func TestForProgress_ExpiresAfterMonthEnd(t *testing.T) {
	f := newFixture(challenge.Template{TotalQuestsRequired: 1})
	ctx := context.Background()
	f.seedDay(t, "u-1", 20, quest.StatusCompleted)

	current, err := f.agg.Current(ctx, "u-1")
	require.NoError(t, err)

	f.clock.Set(time.Date(2026, time.November, 1, 0, 0, 0, 0, timeutil.AlmatyTZ))
	view, progress, err := f.agg.ForProgress(ctx, current.ProgressID)
	require.NoError(t, err)
	assert.Equal(t, challenge.StatusCompleted, view.Status)
	assert.Equal(t, 0, view.DaysLeft)
	assert.ErrorIs(t, view.CheckClaimable(progress.UserID, "u-1", f.clock.Now()), shared.ErrExpired)

	// Новый месяц - новое испытание.
	next, err := f.agg.Current(ctx, "u-1")
	require.NoError(t, err)
	assert.NotEqual(t, current.Definition.ID, next.Definition.ID)
	assert.Equal(t, 0, next.CompletedCount)
}

func TestForProgress_Unknown(t *testing.T) {
	f := newFixture(challenge.DefaultTemplate())
	_, _, err := f.agg.ForProgress(context.Background(), "nope")
	assert.True(t, shared.IsNotFound(err))
}

func TestCurrent_EmptyUser(t *testing.T) {
	f := newFixture(challenge.DefaultTemplate())
	_, err := f.agg.Current(context.Background(), "")
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}
