package quest_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/progress-engine/internal/domain/quest"
	"github.com/alem-hub/progress-engine/internal/domain/shared"
	"github.com/alem-hub/progress-engine/internal/infrastructure/persistence/memory"
	"github.com/alem-hub/progress-engine/pkg/timeutil"
)

// recorder - публикатор, запоминающий события.
type recorder struct {
	mu     sync.Mutex
	events []shared.Event
}

func (r *recorder) Publish(_ context.Context, e shared.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) count(t shared.EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.EventType() == t {
			n++
		}
	}
	return n
}

type fixture struct {
	clock   *timeutil.ManualClock
	repo    *memory.QuestRepository
	defs    *memory.DefinitionRepository
	events  *recorder
	tracker *quest.Tracker
}

func newFixture(catalog ...quest.Definition) *fixture {
	clock := timeutil.NewManualClock(time.Date(2026, time.October, 19, 10, 0, 0, 0, timeutil.AlmatyTZ))
	f := &fixture{
		clock:  clock,
		repo:   memory.NewQuestRepository(),
		defs:   memory.NewDefinitionRepository(catalog),
		events: &recorder{},
	}
	var seq atomic.Int64
	f.tracker = quest.NewTracker(f.repo, f.defs, clock, nil, f.events, quest.TrackerConfig{
		// Без перемешивания: порядок каталога сохраняется.
		Shuffle: func(int, func(i, j int)) {},
		NewID:   func() string { return fmt.Sprintf("q-%d", seq.Add(1)) },
	})
	return f
}

func def(id string, typ quest.Type, target int) quest.Definition {
	return quest.Definition{
		ID:          id,
		Type:        typ,
		Title:       id,
		TargetValue: target,
		Reward:      shared.Reward{XP: 10, Gems: 1},
		Active:      true,
	}
}

func byType(instances []*quest.Instance, typ quest.Type) *quest.Instance {
	for _, inst := range instances {
		if inst.Type == typ {
			return inst
		}
	}
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Генерация
// ──────────────────────────────────────────────────────────────────────────────

func TestEnsureDaily_FallbackWhenCatalogEmpty(t *testing.T) {
	f := newFixture()

	daily, err := f.tracker.EnsureDaily(context.Background(), "u-1")
	require.NoError(t, err)
	require.Len(t, daily, quest.DailyQuestCount)

	types := []quest.Type{daily[0].Type, daily[1].Type, daily[2].Type}
	assert.ElementsMatch(t, []quest.Type{quest.TypeEarnXP, quest.TypeCompleteLesson, quest.TypeComboXP}, types)

	for _, inst := range daily {
		assert.Equal(t, quest.StatusInProgress, inst.Status)
		assert.Equal(t, 0, inst.Progress)
		assert.Equal(t, time.Date(2026, time.October, 20, 0, 0, 0, 0, timeutil.AlmatyTZ), inst.ExpiresAt)
	}
}

func TestEnsureDaily_IsIdempotent(t *testing.T) {
	f := newFixture(
		def("a", quest.TypeEarnXP, 50),
		def("b", quest.TypeComboXP, 20),
		def("c", quest.TypeStreakDays, 1),
		def("d", quest.TypeTimeSpent, 30),
	)
	ctx := context.Background()

	first, err := f.tracker.EnsureDaily(ctx, "u-1")
	require.NoError(t, err)
	require.Len(t, first, 3)

	second, err := f.tracker.EnsureDaily(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, ids(first), ids(second))
}

func TestEnsureDaily_ConcurrentFirstCallsCreateOneSet(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make([][]string, 10)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			daily, err := f.tracker.EnsureDaily(ctx, "u-1")
			if assert.NoError(t, err) {
				results[i] = ids(daily)
			}
		}(i)
	}
	wg.Wait()

	for _, r := range results[1:] {
		assert.Equal(t, results[0], r)
	}
	stored, err := f.repo.ListByUserDate(ctx, "u-1", f.tracker.Today())
	require.NoError(t, err)
	assert.Len(t, stored, 3)
}

func TestEnsureDaily_NewDayNewSet(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	today, err := f.tracker.EnsureDaily(ctx, "u-1")
	require.NoError(t, err)

	f.clock.AdvanceDays(1)
	tomorrow, err := f.tracker.EnsureDaily(ctx, "u-1")
	require.NoError(t, err)

	assert.Len(t, tomorrow, 3)
	assert.NotEqual(t, ids(today), ids(tomorrow))
}

func TestEnsureDaily_EmptyUser(t *testing.T) {
	f := newFixture()
	_, err := f.tracker.EnsureDaily(context.Background(), "")
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

// ──────────────────────────────────────────────────────────────────────────────
// Прогресс
// ──────────────────────────────────────────────────────────────────────────────

func TestAddProgress_ClampsAndCompletesOnce(t *testing.T) {
	f := newFixture(def("xp", quest.TypeEarnXP, 10))
	ctx := context.Background()

	daily, err := f.tracker.EnsureDaily(ctx, "u-1")
	require.NoError(t, err)
	id := daily[0].ID

	inst, completed, err := f.tracker.AddProgress(ctx, id, 4)
	require.NoError(t, err)
	assert.False(t, completed)
	assert.Equal(t, 4, inst.Progress)

	inst, completed, err = f.tracker.AddProgress(ctx, id, 8)
	require.NoError(t, err)
	assert.True(t, completed)
	assert.Equal(t, 10, inst.Progress)
	assert.Equal(t, quest.StatusCompleted, inst.Status)
	require.NotNil(t, inst.CompletedAt)

	inst, completed, err = f.tracker.AddProgress(ctx, id, 5)
	require.NoError(t, err)
	assert.False(t, completed)
	assert.Equal(t, 10, inst.Progress)

	assert.Equal(t, 1, f.events.count(shared.EventQuestCompleted))
}

func TestAddProgress_ConcurrentExactlyOneCompletion(t *testing.T) {
	for run := 0; run < 20; run++ {
		f := newFixture(def("xp", quest.TypeEarnXP, 8))
		ctx := context.Background()

		daily, err := f.tracker.EnsureDaily(ctx, "u-1")
		require.NoError(t, err)
		id := daily[0].ID

		var completions atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, completed, err := f.tracker.AddProgress(ctx, id, 5)
				if assert.NoError(t, err) && completed {
					completions.Add(1)
				}
			}()
		}
		wg.Wait()

		inst, err := f.repo.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, int32(1), completions.Load())
		assert.Equal(t, 8, inst.Progress)
		assert.Equal(t, quest.StatusCompleted, inst.Status)
		assert.Equal(t, 1, f.events.count(shared.EventQuestCompleted))
	}
}

func TestAddProgress_NegativeRejected(t *testing.T) {
	f := newFixture()
	_, _, err := f.tracker.AddProgress(context.Background(), "missing", -1)
	assert.ErrorIs(t, err, shared.ErrNegativeValue)
}

func TestAddProgress_UnknownInstance(t *testing.T) {
	f := newFixture()
	_, _, err := f.tracker.AddProgress(context.Background(), "missing", 1)
	assert.True(t, shared.IsNotFound(err))
}

// ──────────────────────────────────────────────────────────────────────────────
// Маршрутизация событий
// ──────────────────────────────────────────────────────────────────────────────

func TestApply_RoutesLessonEvents(t *testing.T) {
	perfect := def("perfect", quest.TypePerfectLessons, 2)
	lessons := def("lessons", quest.TypeCompleteLesson, 3)
	lessons.MinAccuracy = 70
	minutes := def("minutes", quest.TypeTimeSpent, 30)

	f := newFixture(perfect, lessons, minutes)
	ctx := context.Background()

	// 60% - не засчитывается урокам с порогом 70, но время идёт.
	_, err := f.tracker.OnLessonCompleted(ctx, "u-1", 60, 12)
	require.NoError(t, err)
	res, err := f.tracker.OnLessonCompleted(ctx, "u-1", 100, 20)
	require.NoError(t, err)
	require.Len(t, res.Completed, 1)
	assert.Equal(t, quest.TypeTimeSpent, res.Completed[0].Type)

	daily, err := f.tracker.DailyQuests(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, 1, byType(daily, quest.TypePerfectLessons).Progress)
	assert.Equal(t, 1, byType(daily, quest.TypeCompleteLesson).Progress)
	assert.Equal(t, 30, byType(daily, quest.TypeTimeSpent).Progress)
}

func TestApply_RoutesXPComboStreakAndChallenge(t *testing.T) {
	ch := def("algo", quest.TypeChallengeType, 1)
	ch.ChallengeType = "algorithms"

	f := newFixture(def("xp", quest.TypeEarnXP, 50), def("combo", quest.TypeComboXP, 20), ch)
	ctx := context.Background()

	_, err := f.tracker.OnXPEarned(ctx, "u-1", 30)
	require.NoError(t, err)
	_, err = f.tracker.OnComboXPEarned(ctx, "u-1", 25)
	require.NoError(t, err)
	_, err = f.tracker.OnChallengeCompleted(ctx, "u-1", "sql", 100)
	require.NoError(t, err)
	_, err = f.tracker.OnStreakDay(ctx, "u-1")
	require.NoError(t, err)

	daily, err := f.tracker.DailyQuests(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, 30, byType(daily, quest.TypeEarnXP).Progress)
	assert.Equal(t, quest.StatusCompleted, byType(daily, quest.TypeComboXP).Status)
	assert.Equal(t, 0, byType(daily, quest.TypeChallengeType).Progress)

	res, err := f.tracker.OnChallengeCompleted(ctx, "u-1", "Algorithms", 90)
	require.NoError(t, err)
	require.Len(t, res.Completed, 1)
	assert.Equal(t, quest.TypeChallengeType, res.Completed[0].Type)
}

func TestApply_InvalidAccuracy(t *testing.T) {
	f := newFixture()
	_, err := f.tracker.OnLessonCompleted(context.Background(), "u-1", 101, 5)
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

// ──────────────────────────────────────────────────────────────────────────────
// Истечение
// ──────────────────────────────────────────────────────────────────────────────

func TestExpireOverdue(t *testing.T) {
	f := newFixture(def("xp", quest.TypeEarnXP, 10), def("combo", quest.TypeComboXP, 5), def("streak", quest.TypeStreakDays, 1))
	ctx := context.Background()

	daily, err := f.tracker.EnsureDaily(ctx, "u-1")
	require.NoError(t, err)
	_, err = f.tracker.OnStreakDay(ctx, "u-1")
	require.NoError(t, err)

	// До полуночи ничего не истекает.
	stats, err := f.tracker.ExpireOverdue(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Expired)

	f.clock.Set(time.Date(2026, time.October, 20, 0, 0, 1, 0, timeutil.AlmatyTZ))
	stats, err = f.tracker.ExpireOverdue(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Scanned)
	assert.Equal(t, 3, stats.Expired)
	assert.Zero(t, stats.Failed)

	for _, old := range daily {
		inst, err := f.repo.Get(ctx, old.ID)
		require.NoError(t, err)
		assert.Equal(t, quest.StatusExpired, inst.Status)
	}

	// Повторный проход ничего не делает; EXPIRED не продвигается.
	stats, err = f.tracker.ExpireOverdue(ctx, 2)
	require.NoError(t, err)
	assert.Zero(t, stats.Scanned)

	inst, completed, err := f.tracker.AddProgress(ctx, byType(daily, quest.TypeEarnXP).ID, 10)
	require.NoError(t, err)
	assert.False(t, completed)
	assert.Equal(t, quest.StatusExpired, inst.Status)
}

func ids(instances []*quest.Instance) []string {
	out := make([]string, len(instances))
	for i, inst := range instances {
		out[i] = inst.ID
	}
	return out
}
