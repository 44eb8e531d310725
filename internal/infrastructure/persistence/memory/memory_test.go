package memory_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/progress-engine/internal/domain/ledger"
	"github.com/alem-hub/progress-engine/internal/domain/quest"
	"github.com/alem-hub/progress-engine/internal/domain/reward"
	"github.com/alem-hub/progress-engine/internal/domain/shared"
	"github.com/alem-hub/progress-engine/internal/domain/streak"
	"github.com/alem-hub/progress-engine/internal/infrastructure/persistence/memory"
)

var (
	day    = time.Date(2026, time.October, 19, 0, 0, 0, 0, time.UTC)
	now    = day.Add(10 * time.Hour)
	week43 = ledger.WeekKey{Year: 2026, Week: 43}
)

func seedQuest(t *testing.T, store *memory.Store, id string, user shared.UserID) *quest.Instance {
	t.Helper()
	def := quest.FallbackDefinitions()[0]
	inst := quest.NewInstance(id, user, def, day, day.Add(24*time.Hour), day)
	_, created, err := store.Quests.CreateDaily(context.Background(), user, day, []*quest.Instance{inst})
	require.NoError(t, err)
	require.True(t, created)
	return inst
}

// ──────────────────────────────────────────────────────────────────────────────
// Ledger
// ──────────────────────────────────────────────────────────────────────────────

func TestLedger_ConcurrentIncrementLosesNothing(t *testing.T) {
	repo := memory.NewLedgerRepository()
	ctx := context.Background()

	const workers = 200
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.Increment(ctx, "alice", week43, 3, now)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	entry, err := repo.Get(ctx, "alice", week43)
	require.NoError(t, err)
	assert.Equal(t, workers*3, entry.XP)

	rows, err := repo.ListWeek(ctx, week43)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestLedger_EnsureKeepsFirstSeq(t *testing.T) {
	repo := memory.NewLedgerRepository()
	ctx := context.Background()

	first, err := repo.Ensure(ctx, "bob", week43, now)
	require.NoError(t, err)
	_, err = repo.Increment(ctx, "alice", week43, 10, now)
	require.NoError(t, err)
	again, err := repo.Ensure(ctx, "bob", week43, now.Add(time.Hour))
	require.NoError(t, err)

	assert.Equal(t, first.Seq, again.Seq)
	assert.Equal(t, 0, again.XP)
}

// ──────────────────────────────────────────────────────────────────────────────
// Quests
// ──────────────────────────────────────────────────────────────────────────────

func TestQuests_CreateDailyIsIdempotent(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	seedQuest(t, store, "q-1", "alice")

	retry := quest.NewInstance("q-other", "alice", quest.FallbackDefinitions()[1], day, day.Add(24*time.Hour), day)
	got, created, err := store.Quests.CreateDaily(ctx, "alice", day, []*quest.Instance{retry})
	require.NoError(t, err)
	assert.False(t, created)
	require.Len(t, got, 1)
	assert.Equal(t, "q-1", got[0].ID)

	_, err = store.Quests.Get(ctx, "q-other")
	assert.ErrorIs(t, err, shared.ErrQuestNotFound)
}

func TestQuests_ConcurrentAddProgressClamps(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	inst := seedQuest(t, store, "q-1", "alice")

	var completions atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, completed, err := store.Quests.AddProgress(ctx, inst.ID, 7, now)
			assert.NoError(t, err)
			if completed {
				completions.Add(1)
			}
		}()
	}
	wg.Wait()

	got, err := store.Quests.Get(ctx, inst.ID)
	require.NoError(t, err)
	assert.Equal(t, got.Target, got.Progress)
	assert.Equal(t, quest.StatusCompleted, got.Status)
	assert.Equal(t, int32(1), completions.Load())
}

func TestQuests_GetReturnsCopy(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	seedQuest(t, store, "q-1", "alice")

	got, err := store.Quests.Get(ctx, "q-1")
	require.NoError(t, err)
	got.Progress = 999

	again, err := store.Quests.Get(ctx, "q-1")
	require.NoError(t, err)
	assert.Equal(t, 0, again.Progress)
}

// ──────────────────────────────────────────────────────────────────────────────
// Claims
// ──────────────────────────────────────────────────────────────────────────────

func TestClaims_ConcurrentClaimGrantsOnce(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	inst := seedQuest(t, store, "q-1", "alice")
	_, _, err := store.Quests.AddProgress(ctx, inst.ID, inst.Target, now)
	require.NoError(t, err)

	grant := reward.Grant{UserID: "alice", Reward: shared.Reward{XP: 10, Gems: 5}, Week: week43, At: now}

	var swaps atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			commit, err := store.Claims.ClaimQuest(ctx, inst.ID, grant)
			assert.NoError(t, err)
			if commit != nil && commit.Swapped {
				swaps.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), swaps.Load())

	entry, err := store.Ledger.Get(ctx, "alice", week43)
	require.NoError(t, err)
	assert.Equal(t, 10, entry.XP)

	balance, err := store.Balances.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 10, balance.Points)
	assert.Equal(t, 5, balance.Gems)

	got, err := store.Quests.Get(ctx, inst.ID)
	require.NoError(t, err)
	assert.Equal(t, quest.StatusClaimed, got.Status)
	assert.True(t, got.Claimed)
}

func TestClaims_QuestNotClaimable(t *testing.T) {
	grant := reward.Grant{UserID: "alice", Reward: shared.Reward{XP: 10}, Week: week43, At: now}

	tests := []struct {
		name   string
		user   shared.UserID
		status quest.Status
	}{
		{"in progress", "alice", quest.StatusInProgress},
		{"someone else's", "bob", quest.StatusCompleted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := memory.NewStore()
			ctx := context.Background()
			inst := seedQuest(t, store, "q-1", tt.user)
			if tt.status == quest.StatusCompleted {
				_, _, err := store.Quests.AddProgress(ctx, inst.ID, inst.Target, now)
				require.NoError(t, err)
			}

			commit, err := store.Claims.ClaimQuest(ctx, inst.ID, grant)
			require.NoError(t, err)
			assert.False(t, commit.Swapped)
			require.NotNil(t, commit.Quest)
			assert.Equal(t, tt.status, commit.Quest.Status)

			_, err = store.Balances.Get(ctx, "alice")
			assert.True(t, shared.IsNotFound(err))
		})
	}
}

func TestClaims_UnknownObjective(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	grant := reward.Grant{UserID: "alice", Week: week43, At: now}

	_, err := store.Claims.ClaimQuest(ctx, "missing", grant)
	assert.ErrorIs(t, err, shared.ErrQuestNotFound)
	_, err = store.Claims.ClaimChallenge(ctx, "missing", grant)
	assert.ErrorIs(t, err, shared.ErrChallengeNotFound)
}

// ──────────────────────────────────────────────────────────────────────────────
// Streaks
// ──────────────────────────────────────────────────────────────────────────────

func seedStreak(t *testing.T, repo *memory.StreakRepository, user shared.UserID, current int, lastActive time.Time) {
	t.Helper()
	_, err := repo.Update(context.Background(), user, func(s *streak.State) bool {
		s.CurrentStreak = current
		s.LongestStreak = current
		s.LastActiveDate = &lastActive
		return true
	})
	require.NoError(t, err)
}

func TestStreaks_ListAndResetStale(t *testing.T) {
	repo := memory.NewStreakRepository()
	ctx := context.Background()
	cutoff := day.AddDate(0, 0, -1)

	for i := 0; i < 3; i++ {
		seedStreak(t, repo, shared.UserID(fmt.Sprintf("stale-%d", i)), 4, day.AddDate(0, 0, -3))
	}
	seedStreak(t, repo, "fresh", 2, day)
	seedStreak(t, repo, "broken", 0, day.AddDate(0, 0, -5))

	stale, err := repo.ListStale(ctx, cutoff, 2)
	require.NoError(t, err)
	require.Len(t, stale, 2)
	assert.Equal(t, shared.UserID("stale-0"), stale[0].UserID)

	reset, err := repo.ResetIfStale(ctx, "stale-0", cutoff, now)
	require.NoError(t, err)
	assert.True(t, reset)

	reset, err = repo.ResetIfStale(ctx, "stale-0", cutoff, now)
	require.NoError(t, err)
	assert.False(t, reset)

	reset, err = repo.ResetIfStale(ctx, "fresh", cutoff, now)
	require.NoError(t, err)
	assert.False(t, reset)

	got, err := repo.Get(ctx, "stale-0")
	require.NoError(t, err)
	assert.Equal(t, 0, got.CurrentStreak)
	assert.Equal(t, 4, got.LongestStreak)

	stale, err = repo.ListStale(ctx, cutoff, 0)
	require.NoError(t, err)
	assert.Len(t, stale, 2)

	_, err = repo.ResetIfStale(ctx, "nobody", cutoff, now)
	assert.ErrorIs(t, err, shared.ErrStreakNotFound)
}
