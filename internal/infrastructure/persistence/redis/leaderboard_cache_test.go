package redis_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/progress-engine/internal/domain/ledger"
	"github.com/alem-hub/progress-engine/internal/domain/quest"
	"github.com/alem-hub/progress-engine/internal/domain/reward"
	"github.com/alem-hub/progress-engine/internal/domain/shared"
	"github.com/alem-hub/progress-engine/internal/infrastructure/persistence/memory"
	"github.com/alem-hub/progress-engine/internal/infrastructure/persistence/redis"
	"github.com/alem-hub/progress-engine/pkg/circuitbreaker"
)

type fakeSnapshots struct {
	mu      sync.Mutex
	data    map[string][]byte
	gets    int
	fail    error
	deletes []string
}

func newFakeSnapshots() *fakeSnapshots {
	return &fakeSnapshots{data: make(map[string][]byte)}
}

func (f *fakeSnapshots) Get(_ context.Context, key string, dest interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	if f.fail != nil {
		return f.fail
	}
	raw, ok := f.data[key]
	if !ok {
		return redis.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (f *fakeSnapshots) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	f.data[key] = raw
	return nil
}

func (f *fakeSnapshots) Delete(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	for _, k := range keys {
		delete(f.data, k)
		f.deletes = append(f.deletes, k)
	}
	return nil
}

func (f *fakeSnapshots) has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.data[key]
	return ok
}

var (
	week43 = ledger.WeekKey{Year: 2026, Week: 43}
	week44 = ledger.WeekKey{Year: 2026, Week: 44}
	at     = time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)
)

func TestLeaderboardKey(t *testing.T) {
	assert.Equal(t, "leaderboard:2026-W05", redis.LeaderboardKey(2026, 5))
	assert.Equal(t, "lock:sweep_stale_streaks", redis.LockKey("sweep_stale_streaks"))
}

func TestCachedLedger_ReadThroughAndInvalidate(t *testing.T) {
	ctx := context.Background()
	inner := memory.NewLedgerRepository()
	snaps := newFakeSnapshots()
	repo := redis.NewCachedLedgerRepository(inner, snaps)
	key := redis.LeaderboardKey(2026, 43)

	_, err := repo.Increment(ctx, "alice", week43, 50, at)
	require.NoError(t, err)
	_, err = repo.Increment(ctx, "bob", week43, 70, at)
	require.NoError(t, err)

	rows, err := repo.ListWeek(ctx, week43)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, shared.UserID("bob"), rows[0].UserID)
	assert.True(t, snaps.has(key), "miss fills the snapshot")

	// Served from the snapshot even if the inner store changes behind our back.
	_, err = inner.Increment(ctx, "alice", week43, 100, at)
	require.NoError(t, err)
	rows, err = repo.ListWeek(ctx, week43)
	require.NoError(t, err)
	assert.Equal(t, shared.UserID("bob"), rows[0].UserID)

	// A write through the decorator drops the snapshot.
	_, err = repo.Increment(ctx, "carol", week43, 1, at)
	require.NoError(t, err)
	assert.False(t, snaps.has(key))

	rows, err = repo.ListWeek(ctx, week43)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, shared.UserID("alice"), rows[0].UserID)
	assert.Equal(t, 150, rows[0].XP)
}

func TestCachedLedger_EnsureInvalidatesOnlyOnCreate(t *testing.T) {
	ctx := context.Background()
	snaps := newFakeSnapshots()
	repo := redis.NewCachedLedgerRepository(memory.NewLedgerRepository(), snaps)

	_, err := repo.Ensure(ctx, "alice", week43, at)
	require.NoError(t, err)
	require.Len(t, snaps.deletes, 1)

	_, err = repo.Ensure(ctx, "alice", week43, at.Add(time.Minute))
	require.NoError(t, err)
	assert.Len(t, snaps.deletes, 1)
}

func TestCachedLedger_SeedWeekInvalidatesTarget(t *testing.T) {
	ctx := context.Background()
	snaps := newFakeSnapshots()
	repo := redis.NewCachedLedgerRepository(memory.NewLedgerRepository(), snaps)

	_, err := repo.Increment(ctx, "alice", week43, 10, at)
	require.NoError(t, err)
	snaps.deletes = nil

	n, err := repo.SeedWeek(ctx, week43, week44, at)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{redis.LeaderboardKey(2026, 44)}, snaps.deletes)

	n, err = repo.SeedWeek(ctx, week43, week44, at)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Len(t, snaps.deletes, 1)
}

func TestCachedLedger_DegradesWhenCacheFails(t *testing.T) {
	ctx := context.Background()
	snaps := newFakeSnapshots()
	snaps.fail = errors.New("connection refused")
	cb := circuitbreaker.New("test", circuitbreaker.WithFailureThreshold(2), circuitbreaker.WithCoolDown(time.Hour))
	repo := redis.NewCachedLedgerRepository(memory.NewLedgerRepository(), snaps, redis.WithBreaker(cb))

	_, err := repo.Increment(ctx, "alice", week43, 10, at)
	require.NoError(t, err, "cache failure never fails a write")

	for i := 0; i < 3; i++ {
		rows, err := repo.ListWeek(ctx, week43)
		require.NoError(t, err)
		require.Len(t, rows, 1)
	}

	assert.Equal(t, circuitbreaker.StateOpen, cb.State())
	gets := snaps.gets
	_, err = repo.ListWeek(ctx, week43)
	require.NoError(t, err)
	assert.Equal(t, gets, snaps.gets, "open breaker skips the cache")
}

func TestCachedLedger_WrapClaimsInvalidatesOnCommit(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	snaps := newFakeSnapshots()
	repo := redis.NewCachedLedgerRepository(store.Ledger, snaps)
	claims := repo.WrapClaims(store.Claims)

	day := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)
	inst := quest.NewInstance("q-1", "alice", quest.FallbackDefinitions()[0], day, day.AddDate(0, 0, 1), day)
	inst.Progress, inst.Status = inst.Target, quest.StatusCompleted
	_, _, err := store.Quests.CreateDaily(ctx, "alice", day, []*quest.Instance{inst})
	require.NoError(t, err)

	_, err = repo.ListWeek(ctx, week43)
	require.NoError(t, err)
	_, err = repo.Increment(ctx, "bob", week43, 5, at)
	require.NoError(t, err)
	snaps.deletes = nil

	g := reward.Grant{UserID: "alice", Reward: shared.Reward{XP: 10, Gems: 5}, Week: week43, At: at}
	commit, err := claims.ClaimQuest(ctx, "q-1", g)
	require.NoError(t, err)
	require.True(t, commit.Swapped)
	assert.Equal(t, []string{redis.LeaderboardKey(2026, 43)}, snaps.deletes)

	commit, err = claims.ClaimQuest(ctx, "q-1", g)
	require.NoError(t, err)
	assert.False(t, commit.Swapped)
	assert.Len(t, snaps.deletes, 1, "a lost CAS writes nothing")
}
