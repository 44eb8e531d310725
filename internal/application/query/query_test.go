package query_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/progress-engine/internal/application/query"
	"github.com/alem-hub/progress-engine/internal/domain/challenge"
	"github.com/alem-hub/progress-engine/internal/domain/leaderboard"
	"github.com/alem-hub/progress-engine/internal/domain/ledger"
	"github.com/alem-hub/progress-engine/internal/domain/quest"
	"github.com/alem-hub/progress-engine/internal/domain/shared"
	"github.com/alem-hub/progress-engine/internal/domain/streak"
	"github.com/alem-hub/progress-engine/internal/infrastructure/persistence/memory"
	"github.com/alem-hub/progress-engine/pkg/timeutil"
)

type fixture struct {
	clock      *timeutil.ManualClock
	store      *memory.Store
	ledger     *ledger.Ledger
	engine     *leaderboard.Engine
	tracker    *quest.Tracker
	challenges *challenge.Aggregator
	streaks    *streak.Calculator

	leaderboardQ *query.GetLeaderboardHandler
	statsQ       *query.GetMyStatsHandler
	historyQ     *query.GetHistoryHandler
	dailyQ       *query.GetDailyQuestsHandler
	monthlyQ     *query.GetMonthlyChallengeHandler
	dashboardQ   *query.GetQuestDashboardHandler
}

func newFixture() *fixture {
	clock := timeutil.NewManualClock(time.Date(2026, time.October, 19, 10, 0, 0, 0, timeutil.AlmatyTZ))
	store := memory.NewStore()
	f := &fixture{clock: clock, store: store}

	f.ledger = ledger.NewLedger(store.Ledger, clock, nil)
	f.engine = leaderboard.NewEngine(store.Ledger, f.ledger, clock)
	f.tracker = quest.NewTracker(store.Quests, store.Definitions, clock, nil, nil, quest.TrackerConfig{})
	f.challenges = challenge.NewAggregator(store.Challenges, store.Quests, clock, nil, challenge.DefaultTemplate())
	f.streaks = streak.NewCalculator(store.Streaks, clock, nil)

	f.leaderboardQ = query.NewGetLeaderboardHandler(f.engine, clock, 0)
	f.statsQ = query.NewGetMyStatsHandler(f.engine, f.streaks, store.Balances, clock)
	f.historyQ = query.NewGetHistoryHandler(f.engine)
	f.dailyQ = query.NewGetDailyQuestsHandler(f.tracker, clock)
	f.monthlyQ = query.NewGetMonthlyChallengeHandler(f.challenges)
	f.dashboardQ = query.NewGetQuestDashboardHandler(f.dailyQ, f.monthlyQ, f.statsQ)
	return f
}

func (f *fixture) xp(t *testing.T, user shared.UserID, amount int) {
	t.Helper()
	_, err := f.ledger.RecordXP(context.Background(), user, amount, time.Time{})
	require.NoError(t, err)
}

// ──────────────────────────────────────────────────────────────────────────────
// Leaderboard
// ──────────────────────────────────────────────────────────────────────────────

func TestGetLeaderboard_TopAndMe(t *testing.T) {
	f := newFixture()
	f.xp(t, "alice", 120)
	f.xp(t, "bob", 120)
	f.xp(t, "carol", 50)

	res, err := f.leaderboardQ.Handle(context.Background(), query.GetLeaderboardQuery{Limit: 2, UserID: "dave"})
	require.NoError(t, err)

	assert.Equal(t, "2026-W43", res.Week)
	require.Len(t, res.Entries, 2)
	assert.Equal(t, "alice", res.Entries[0].UserID)
	assert.Equal(t, 1, res.Entries[0].Rank)
	assert.Equal(t, "bob", res.Entries[1].UserID)
	assert.Equal(t, 1, res.Entries[1].Rank)
	assert.Equal(t, 2, res.Entries[1].Position)

	require.NotNil(t, res.Me)
	assert.Equal(t, "dave", res.Me.UserID)
	assert.Equal(t, 4, res.Me.Rank)
	assert.Equal(t, ledger.TierBronze, res.Me.Tier)
	assert.Equal(t, 4, res.TotalCount)
	assert.True(t, f.clock.Now().Equal(res.GeneratedAt))
}

func TestGetLeaderboard_DefaultLimitAndPastWeek(t *testing.T) {
	f := newFixture()
	for _, u := range []shared.UserID{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k", "l"} {
		f.xp(t, u, 10)
	}

	res, err := f.leaderboardQ.Handle(context.Background(), query.GetLeaderboardQuery{})
	require.NoError(t, err)
	assert.Len(t, res.Entries, query.DefaultLeaderboardLimit)
	assert.Equal(t, 12, res.TotalCount)

	past, err := f.leaderboardQ.Handle(context.Background(), query.GetLeaderboardQuery{Year: 2026, Week: 42, UserID: "a"})
	require.NoError(t, err)
	assert.Empty(t, past.Entries)
	assert.Nil(t, past.Me, "past weeks are read-only")
	assert.Zero(t, past.TotalCount)
}

func TestGetLeaderboard_InvalidInput(t *testing.T) {
	f := newFixture()
	for _, q := range []query.GetLeaderboardQuery{
		{Limit: -1},
		{Limit: 501},
		{Year: 2026, Week: 54},
		{UserID: "   "},
	} {
		_, err := f.leaderboardQ.Handle(context.Background(), q)
		assert.ErrorIs(t, err, shared.ErrInvalidInput, "%+v", q)
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Stats / History
// ──────────────────────────────────────────────────────────────────────────────

func TestGetMyStats(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.xp(t, "bob", 400)
	f.xp(t, "alice", 120)
	_, _, err := f.streaks.MarkActivity(ctx, "alice", time.Time{})
	require.NoError(t, err)
	_, err = f.store.Balances.Add(ctx, "alice", 30, 7, f.clock.Now())
	require.NoError(t, err)

	stats, err := f.statsQ.Handle(ctx, query.GetMyStatsQuery{UserID: "alice"})
	require.NoError(t, err)
	assert.Equal(t, 120, stats.WeeklyXP)
	assert.Equal(t, ledger.TierSilver, stats.Tier)
	assert.Equal(t, ledger.TierGold, stats.NextTier)
	assert.Equal(t, 180, stats.XPToNextTier)
	assert.Equal(t, 2, stats.Rank)
	assert.Equal(t, 2, stats.Of)
	assert.Equal(t, 1, stats.Streak.Current)
	require.NotNil(t, stats.Streak.LastActiveDate)
	assert.Equal(t, "2026-10-19", *stats.Streak.LastActiveDate)
	assert.Equal(t, 30, stats.Points)
	assert.Equal(t, 7, stats.Gems)
}

func TestGetMyStats_NewUser(t *testing.T) {
	f := newFixture()
	stats, err := f.statsQ.Handle(context.Background(), query.GetMyStatsQuery{UserID: "newbie"})
	require.NoError(t, err)
	assert.Zero(t, stats.WeeklyXP)
	assert.Equal(t, 1, stats.Rank)
	assert.Equal(t, 1, stats.Of)
	assert.Zero(t, stats.Streak.Current)
	assert.Nil(t, stats.Streak.LastActiveDate)
	assert.Zero(t, stats.Points)
}

func TestGetHistory(t *testing.T) {
	f := newFixture()
	f.xp(t, "alice", 40)
	f.clock.AdvanceDays(7)
	f.xp(t, "alice", 310)

	res, err := f.historyQ.Handle(context.Background(), query.GetHistoryQuery{UserID: "alice"})
	require.NoError(t, err)
	require.Len(t, res.Weeks, 2)
	assert.Equal(t, "2026-W44", res.Weeks[0].Week.String())
	assert.Equal(t, ledger.TierGold, res.Weeks[0].Tier)
	assert.Equal(t, "2026-W43", res.Weeks[1].Week.String())
	assert.Equal(t, leaderboard.Rank(1), res.Weeks[1].Rank)

	_, err = f.historyQ.Handle(context.Background(), query.GetHistoryQuery{UserID: "alice", Limit: -1})
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

// ──────────────────────────────────────────────────────────────────────────────
// Quests
// ──────────────────────────────────────────────────────────────────────────────

func TestGetDailyQuests(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	_, err := f.tracker.OnXPEarned(ctx, "alice", 50)
	require.NoError(t, err)

	res, err := f.dailyQ.Handle(ctx, query.GetDailyQuestsQuery{UserID: "alice"})
	require.NoError(t, err)
	assert.Equal(t, "2026-10-19", res.Date)
	require.Len(t, res.Quests, quest.DailyQuestCount)
	assert.Equal(t, 1, res.Completed)
	assert.Equal(t, 1, res.Claimable)
	assert.Equal(t, time.Date(2026, time.October, 20, 0, 0, 0, 0, timeutil.AlmatyTZ), res.ResetsAt)

	for _, q := range res.Quests {
		if q.Type == quest.TypeEarnXP {
			assert.Equal(t, 100, q.Percentage)
			assert.True(t, q.Claimable)
		} else {
			assert.Zero(t, q.Percentage)
			assert.False(t, q.Claimable)
		}
	}
}

func TestGetMonthlyChallenge(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	_, err := f.tracker.OnXPEarned(ctx, "alice", 50)
	require.NoError(t, err)

	res, err := f.monthlyQ.Handle(ctx, query.GetMonthlyChallengeQuery{UserID: "alice"})
	require.NoError(t, err)
	assert.Equal(t, challenge.DefaultQuestsRequired, res.TotalQuestsRequired)
	assert.Equal(t, 1, res.CompletedCount)
	assert.Equal(t, 3, res.Percentage)
	assert.Equal(t, challenge.StatusInProgress, res.Status)
	assert.NotEmpty(t, res.ProgressID)
}

func TestGetQuestDashboard(t *testing.T) {
	f := newFixture()
	res, err := f.dashboardQ.Handle(context.Background(), query.GetQuestDashboardQuery{UserID: "alice"})
	require.NoError(t, err)
	require.NotNil(t, res.Daily)
	require.NotNil(t, res.Monthly)
	require.NotNil(t, res.Stats)
	assert.Len(t, res.Daily.Quests, quest.DailyQuestCount)
	assert.Zero(t, res.Monthly.CompletedCount)
	assert.Equal(t, 1, res.Stats.Rank)

	_, err = f.dashboardQ.Handle(context.Background(), query.GetQuestDashboardQuery{})
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}
