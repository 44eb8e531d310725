package ledger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/progress-engine/internal/domain/shared"
	"github.com/alem-hub/progress-engine/pkg/retry"
	"github.com/alem-hub/progress-engine/pkg/timeutil"
)

// fakeRepo - минимальная реализация Repository для тестов сервиса.
type fakeRepo struct {
	mu        sync.Mutex
	entries   map[string]*WeeklyXPEntry
	seq       int64
	conflicts int
	calls     int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{entries: make(map[string]*WeeklyXPEntry)}
}

func key(u shared.UserID, k WeekKey) string { return u.String() + "|" + k.String() }

func (r *fakeRepo) Increment(_ context.Context, u shared.UserID, k WeekKey, amount int, at time.Time) (*WeeklyXPEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.conflicts > 0 {
		r.conflicts--
		return nil, shared.Conflict("Increment", nil)
	}
	e, ok := r.entries[key(u, k)]
	if !ok {
		r.seq++
		e = &WeeklyXPEntry{UserID: u, Key: k, Seq: r.seq, CreatedAt: at}
		r.entries[key(u, k)] = e
	}
	e.XP += amount
	e.UpdatedAt = at
	cp := *e
	return &cp, nil
}

func (r *fakeRepo) Ensure(ctx context.Context, u shared.UserID, k WeekKey, at time.Time) (*WeeklyXPEntry, error) {
	return r.Increment(ctx, u, k, 0, at)
}

func (r *fakeRepo) SeedWeek(_ context.Context, from, to WeekKey, at time.Time) (int, error) {
	return 0, nil
}

func (r *fakeRepo) Get(_ context.Context, u shared.UserID, k WeekKey) (*WeeklyXPEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[key(u, k)]; ok {
		cp := *e
		return &cp, nil
	}
	return nil, shared.ErrNotFound
}

func (r *fakeRepo) ListWeek(context.Context, WeekKey) ([]*WeeklyXPEntry, error) { return nil, nil }
func (r *fakeRepo) ListUser(context.Context, shared.UserID, int) ([]*WeeklyXPEntry, error) {
	return nil, nil
}

func TestTierOf_Boundaries(t *testing.T) {
	tests := []struct {
		xp   int
		want Tier
	}{
		{0, TierBronze},
		{99, TierBronze},
		{100, TierSilver},
		{299, TierSilver},
		{300, TierGold},
		{499, TierGold},
		{500, TierDiamond},
		{10_000, TierDiamond},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TierOf(tt.xp), "xp=%d", tt.xp)
	}
}

func TestXPToNextTier(t *testing.T) {
	assert.Equal(t, 1, XPToNextTier(99))
	assert.Equal(t, 200, XPToNextTier(100))
	assert.Equal(t, 0, XPToNextTier(500))
}

func TestWeekKey(t *testing.T) {
	at := time.Date(2026, time.October, 19, 8, 0, 0, 0, timeutil.AlmatyTZ)
	k := WeekOf(at)
	assert.Equal(t, WeekKey{Year: 2026, Week: 43}, k)
	assert.Equal(t, "2026-W43", k.String())
	assert.Equal(t, WeekKey{Year: 2026, Week: 44}, k.Next(timeutil.AlmatyTZ))
	assert.True(t, k.Before(k.Next(timeutil.AlmatyTZ)))
	assert.Error(t, WeekKey{Year: 2026, Week: 54}.Validate())
}

func TestLedger_RecordXP(t *testing.T) {
	clock := timeutil.NewManualClock(time.Date(2026, time.October, 19, 10, 0, 0, 0, timeutil.AlmatyTZ))
	repo := newFakeRepo()
	l := NewLedger(repo, clock, nil)
	ctx := context.Background()

	e, err := l.RecordXP(ctx, "u-1", 60, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 60, e.XP)
	assert.Equal(t, WeekKey{Year: 2026, Week: 43}, e.Key)

	e, err = l.RecordXP(ctx, "u-1", 50, clock.Now())
	require.NoError(t, err)
	assert.Equal(t, 110, e.XP)
	assert.Equal(t, TierSilver, e.Tier())
}

func TestLedger_RecordXP_RejectsInvalidInput(t *testing.T) {
	clock := timeutil.NewManualClock(time.Date(2026, time.October, 19, 10, 0, 0, 0, time.UTC))
	repo := newFakeRepo()
	l := NewLedger(repo, clock, nil)

	_, err := l.RecordXP(context.Background(), "u-1", -1, clock.Now())
	assert.ErrorIs(t, err, shared.ErrNegativeValue)

	_, err = l.RecordXP(context.Background(), "", 10, clock.Now())
	assert.ErrorIs(t, err, shared.ErrInvalidInput)

	_, err = l.RecordXP(context.Background(), "u-1", MaxXPPerEvent+1, clock.Now())
	assert.True(t, shared.IsValidation(err))

	assert.Zero(t, repo.calls)
}

func TestLedger_RecordXP_RetriesStorageConflict(t *testing.T) {
	clock := timeutil.NewManualClock(time.Date(2026, time.October, 19, 10, 0, 0, 0, time.UTC))
	repo := newFakeRepo()
	repo.conflicts = 2
	l := NewLedger(repo, clock, retry.StorageRetrier(shared.IsStorageConflict, retry.WithInitialDelay(0)))

	e, err := l.RecordXP(context.Background(), "u-1", 10, clock.Now())
	require.NoError(t, err)
	assert.Equal(t, 10, e.XP)
	assert.Equal(t, 3, repo.calls)
}

func TestLedger_RecordXP_SurfacesExhaustedConflict(t *testing.T) {
	clock := timeutil.NewManualClock(time.Date(2026, time.October, 19, 10, 0, 0, 0, time.UTC))
	repo := newFakeRepo()
	repo.conflicts = 10
	l := NewLedger(repo, clock, retry.StorageRetrier(shared.IsStorageConflict, retry.WithInitialDelay(0)))

	_, err := l.RecordXP(context.Background(), "u-1", 10, clock.Now())
	assert.True(t, shared.IsStorageConflict(err))
	assert.Equal(t, 3, repo.calls)
}
