package leaderboard_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/progress-engine/internal/domain/leaderboard"
	"github.com/alem-hub/progress-engine/internal/domain/ledger"
	"github.com/alem-hub/progress-engine/internal/domain/shared"
	"github.com/alem-hub/progress-engine/internal/infrastructure/persistence/memory"
	"github.com/alem-hub/progress-engine/pkg/timeutil"
)

type fixture struct {
	clock  *timeutil.ManualClock
	ledger *ledger.Ledger
	engine *leaderboard.Engine
}

func newFixture() *fixture {
	// Понедельник, 43-я ISO-неделя.
	clock := timeutil.NewManualClock(time.Date(2026, time.October, 19, 10, 0, 0, 0, timeutil.AlmatyTZ))
	repo := memory.NewLedgerRepository()
	l := ledger.NewLedger(repo, clock, nil)
	return &fixture{clock: clock, ledger: l, engine: leaderboard.NewEngine(repo, l, clock)}
}

func (f *fixture) record(t *testing.T, user shared.UserID, xp int) {
	t.Helper()
	_, err := f.ledger.RecordXP(context.Background(), user, xp, f.clock.Now())
	require.NoError(t, err)
}

func TestTopN_CompetitionRankingWithStableTieBreak(t *testing.T) {
	f := newFixture()
	f.record(t, "alice", 120)
	f.record(t, "bob", 80)
	f.record(t, "carol", 120)

	top, err := f.engine.TopN(context.Background(), f.engine.CurrentWeek(), 10)
	require.NoError(t, err)
	require.Len(t, top, 3)

	assert.Equal(t, shared.UserID("alice"), top[0].UserID)
	assert.Equal(t, leaderboard.Rank(1), top[0].Rank)
	assert.Equal(t, shared.UserID("carol"), top[1].UserID)
	assert.Equal(t, leaderboard.Rank(1), top[1].Rank)
	assert.Equal(t, 2, top[1].Position)
	assert.Equal(t, shared.UserID("bob"), top[2].UserID)
	assert.Equal(t, leaderboard.Rank(3), top[2].Rank)
	assert.Equal(t, ledger.TierSilver, top[0].Tier)

	// Повторный запрос даёт тот же порядок.
	again, err := f.engine.TopN(context.Background(), f.engine.CurrentWeek(), 10)
	require.NoError(t, err)
	assert.Equal(t, top, again)
}

func TestTopN_InvalidLimit(t *testing.T) {
	f := newFixture()
	_, err := f.engine.TopN(context.Background(), f.engine.CurrentWeek(), 0)
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestTopN_EmptyWeek(t *testing.T) {
	f := newFixture()
	top, err := f.engine.TopN(context.Background(), f.engine.CurrentWeek(), 5)
	require.NoError(t, err)
	assert.Empty(t, top)
}

func TestRankOf_LazilyCreatesZeroEntry(t *testing.T) {
	f := newFixture()
	f.record(t, "alice", 50)
	f.record(t, "bob", 10)

	entry, total, err := f.engine.RankOf(context.Background(), "newbie", f.engine.CurrentWeek())
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Equal(t, leaderboard.Rank(3), entry.Rank)
	assert.Equal(t, 0, entry.XP)
	assert.Equal(t, ledger.TierBronze, entry.Tier)

	// Повторный вызов не создаёт дубликат.
	_, total, err = f.engine.RankOf(context.Background(), "newbie", f.engine.CurrentWeek())
	require.NoError(t, err)
	assert.Equal(t, 3, total)
}

func TestRankOf_NewUserSharesRankWithOtherZeroEntries(t *testing.T) {
	f := newFixture()
	f.record(t, "alice", 50)
	f.record(t, "idle", 0)

	entry, total, err := f.engine.RankOf(context.Background(), "newbie", f.engine.CurrentWeek())
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Equal(t, leaderboard.Rank(2), entry.Rank)
	assert.Equal(t, 3, entry.Position)
}

func TestHistory_NewestFirst(t *testing.T) {
	f := newFixture()
	f.clock.AdvanceDays(-7)
	f.record(t, "alice", 320)
	f.record(t, "bob", 400)
	f.clock.AdvanceDays(7)
	f.record(t, "alice", 40)

	history, err := f.engine.History(context.Background(), "alice", 5)
	require.NoError(t, err)
	require.Len(t, history, 2)

	assert.Equal(t, ledger.WeekKey{Year: 2026, Week: 43}, history[0].Week)
	assert.Equal(t, 40, history[0].XP)
	assert.Equal(t, leaderboard.Rank(1), history[0].Rank)
	assert.Equal(t, 1, history[0].Of)

	assert.Equal(t, ledger.WeekKey{Year: 2026, Week: 42}, history[1].Week)
	assert.Equal(t, ledger.TierGold, history[1].Tier)
	assert.Equal(t, leaderboard.Rank(2), history[1].Rank)
	assert.Equal(t, 2, history[1].Of)
}
