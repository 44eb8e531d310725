package quest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/alem-hub/progress-engine/internal/domain/shared"
	"github.com/alem-hub/progress-engine/pkg/retry"
	"github.com/alem-hub/progress-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// TRACKER
// Генерирует квесты дня, накапливает прогресс из событий, истекает просрочку.
// ══════════════════════════════════════════════════════════════════════════════

// TrackerConfig - настройки трекера.
type TrackerConfig struct {
	DailyCount int
	Shuffle    Shuffler
	// NewID генерирует ID экземпляров; nil - uuid.NewString.
	NewID func() string
}

// Tracker - трекер прогресса квестов.
type Tracker struct {
	repo      Repository
	defs      DefinitionRepository
	clock     timeutil.Clock
	retrier   *retry.Retrier
	publisher shared.EventPublisher
	config    TrackerConfig

	generation singleflight.Group
}

// NewTracker создаёт трекер.
func NewTracker(
	repo Repository,
	defs DefinitionRepository,
	clock timeutil.Clock,
	retrier *retry.Retrier,
	publisher shared.EventPublisher,
	config TrackerConfig,
) *Tracker {
	if config.DailyCount <= 0 {
		config.DailyCount = DailyQuestCount
	}
	if config.Shuffle == nil {
		config.Shuffle = DefaultShuffler
	}
	if config.NewID == nil {
		config.NewID = uuid.NewString
	}
	if retrier == nil {
		retrier = retry.StorageRetrier(shared.IsStorageConflict)
	}
	if publisher == nil {
		publisher = shared.NopPublisher{}
	}
	return &Tracker{
		repo:      repo,
		defs:      defs,
		clock:     clock,
		retrier:   retrier,
		publisher: publisher,
		config:    config,
	}
}

// Today возвращает полночь текущего дня по часам трекера.
func (t *Tracker) Today() time.Time {
	return timeutil.StartOfDay(t.clock.Now())
}

// ──────────────────────────────────────────────────────────────────────────────
// Генерация
// ──────────────────────────────────────────────────────────────────────────────

// EnsureDaily возвращает квесты пользователя на сегодня, создавая их при первом
// обращении. Параллельные первые обращения одного пользователя схлопываются.
func (t *Tracker) EnsureDaily(ctx context.Context, userID shared.UserID) ([]*Instance, error) {
	if !userID.IsValid() {
		return nil, shared.ErrEmptyUserID
	}
	date := t.Today()

	existing, err := t.repo.ListByUserDate(ctx, userID, date)
	if err != nil {
		return nil, fmt.Errorf("quest: list daily: %w", err)
	}
	if len(existing) > 0 {
		return existing, nil
	}

	key := userID.String() + "|" + timeutil.FormatDate(date)
	v, err, _ := t.generation.Do(key, func() (interface{}, error) {
		return t.generate(ctx, userID, date)
	})
	if err != nil {
		return nil, err
	}

	// Каждый вызывающий получает свои копии.
	generated := v.([]*Instance)
	out := make([]*Instance, len(generated))
	for i, inst := range generated {
		out[i] = inst.Clone()
	}
	return out, nil
}

func (t *Tracker) generate(ctx context.Context, userID shared.UserID, date time.Time) ([]*Instance, error) {
	catalog, err := t.defs.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("quest: list catalog: %w", err)
	}

	now := t.clock.Now()
	expiresAt := timeutil.NextMidnight(date)
	selected := SelectDaily(catalog, t.config.DailyCount, t.config.Shuffle)

	batch := make([]*Instance, 0, len(selected))
	for _, def := range selected {
		batch = append(batch, NewInstance(t.config.NewID(), userID, def, date, expiresAt, now))
	}

	return retry.Value(ctx, t.retrier, func(ctx context.Context) ([]*Instance, error) {
		instances, _, err := t.repo.CreateDaily(ctx, userID, date, batch)
		return instances, err
	})
}

// DailyQuests возвращает квесты на сегодня (с ленивой генерацией).
func (t *Tracker) DailyQuests(ctx context.Context, userID shared.UserID) ([]*Instance, error) {
	return t.EnsureDaily(ctx, userID)
}

// ──────────────────────────────────────────────────────────────────────────────
// Прогресс
// ──────────────────────────────────────────────────────────────────────────────

// ApplyResult - итог маршрутизации одного события.
type ApplyResult struct {
	Advanced  []*Instance
	Completed []*Instance
}

// Apply маршрутизирует активность по квестам пользователя на текущий день.
// Неподходящие события молча игнорируются. Ошибка одного экземпляра не мешает
// остальным; ошибки объединяются.
func (t *Tracker) Apply(ctx context.Context, userID shared.UserID, activity Activity) (*ApplyResult, error) {
	if activity.Amount < 0 || activity.Minutes < 0 {
		return nil, shared.ErrNegativeProgress
	}
	if !activity.Accuracy.IsValid() {
		return nil, shared.ErrInvalidAccuracy
	}

	instances, err := t.EnsureDaily(ctx, userID)
	if err != nil {
		return nil, err
	}

	result := &ApplyResult{}
	var errs []error

	for _, inst := range instances {
		if inst.Status != StatusInProgress {
			continue
		}
		amount := inst.ProgressFor(activity)
		if amount <= 0 {
			continue
		}

		updated, completed, err := t.AddProgress(ctx, inst.ID, amount)
		if err != nil {
			errs = append(errs, fmt.Errorf("quest %s: %w", inst.ID, err))
			continue
		}
		result.Advanced = append(result.Advanced, updated)
		if completed {
			result.Completed = append(result.Completed, updated)
		}
	}

	return result, errors.Join(errs...)
}

// AddProgress продвигает экземпляр на amount. При переходе в COMPLETED
// публикуется QuestCompletedEvent - ровно один раз на экземпляр.
func (t *Tracker) AddProgress(ctx context.Context, id string, amount int) (*Instance, bool, error) {
	if amount < 0 {
		return nil, false, shared.ErrNegativeProgress
	}

	type outcome struct {
		inst      *Instance
		completed bool
	}
	res, err := retry.Value(ctx, t.retrier, func(ctx context.Context) (outcome, error) {
		inst, completed, err := t.repo.AddProgress(ctx, id, amount, t.clock.Now())
		return outcome{inst, completed}, err
	})
	if err != nil {
		return nil, false, err
	}

	if res.completed {
		event := NewCompletedEvent(res.inst, t.clock.Now())
		if err := t.publisher.Publish(ctx, event); err != nil {
			// Переход уже зафиксирован; событие - побочный эффект.
			return res.inst, true, fmt.Errorf("quest: publish completion: %w", err)
		}
	}
	return res.inst, res.completed, nil
}

// OnXPEarned продвигает EARN_XP.
func (t *Tracker) OnXPEarned(ctx context.Context, userID shared.UserID, amount int) (*ApplyResult, error) {
	return t.Apply(ctx, userID, Activity{Kind: ActivityXPEarned, Amount: amount})
}

// OnLessonCompleted продвигает COMPLETE_LESSONS, PERFECT_LESSONS и TIME_SPENT.
func (t *Tracker) OnLessonCompleted(ctx context.Context, userID shared.UserID, accuracy shared.Accuracy, minutes int) (*ApplyResult, error) {
	return t.Apply(ctx, userID, Activity{Kind: ActivityLessonCompleted, Accuracy: accuracy, Minutes: minutes})
}

// OnComboXPEarned продвигает COMBO_XP.
func (t *Tracker) OnComboXPEarned(ctx context.Context, userID shared.UserID, amount int) (*ApplyResult, error) {
	return t.Apply(ctx, userID, Activity{Kind: ActivityComboXPEarned, Amount: amount})
}

// OnChallengeCompleted продвигает CHALLENGE_TYPE.
func (t *Tracker) OnChallengeCompleted(ctx context.Context, userID shared.UserID, challengeType string, accuracy shared.Accuracy) (*ApplyResult, error) {
	return t.Apply(ctx, userID, Activity{Kind: ActivityChallengeCompleted, ChallengeType: challengeType, Accuracy: accuracy})
}

// OnStreakDay продвигает STREAK_DAYS.
func (t *Tracker) OnStreakDay(ctx context.Context, userID shared.UserID) (*ApplyResult, error) {
	return t.Apply(ctx, userID, Activity{Kind: ActivityStreakDay})
}

// NewCompletedEvent строит событие завершения квеста.
func NewCompletedEvent(inst *Instance, at time.Time) shared.QuestCompletedEvent {
	return shared.NewQuestCompletedEvent(inst.UserID, inst.ID, string(inst.Type), timeutil.FormatDate(inst.Date), at)
}

// ──────────────────────────────────────────────────────────────────────────────
// Истечение
// ──────────────────────────────────────────────────────────────────────────────

// ExpireStats - статистика прохода истечения.
type ExpireStats struct {
	Scanned int
	Expired int
	Failed  int
	Errors  []error
}

// ExpireOverdue переводит просроченные экземпляры в EXPIRED пачками по batch.
// Ошибка одного экземпляра не прерывает проход. Идемпотентна.
func (t *Tracker) ExpireOverdue(ctx context.Context, batch int) (*ExpireStats, error) {
	if batch <= 0 {
		batch = 500
	}
	stats := &ExpireStats{}
	now := t.clock.Now()
	seen := make(map[string]struct{})

	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		overdue, err := t.repo.ListOverdue(ctx, now, batch)
		if err != nil {
			return stats, fmt.Errorf("quest: list overdue: %w", err)
		}

		fresh := 0
		for _, inst := range overdue {
			if _, ok := seen[inst.ID]; ok {
				continue
			}
			seen[inst.ID] = struct{}{}
			fresh++
			stats.Scanned++

			expired, err := retry.Value(ctx, t.retrier, func(ctx context.Context) (bool, error) {
				return t.repo.Expire(ctx, inst.ID, now)
			})
			if err != nil {
				stats.Failed++
				stats.Errors = append(stats.Errors, fmt.Errorf("quest %s: %w", inst.ID, err))
				continue
			}
			if expired {
				stats.Expired++
			}
		}

		// Последняя страница или только уже виденные (сбойные) записи.
		if len(overdue) < batch || fresh == 0 {
			return stats, nil
		}
	}
}
