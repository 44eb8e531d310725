package streak

import (
	"context"
	"fmt"
	"time"

	"github.com/alem-hub/progress-engine/internal/domain/shared"
	"github.com/alem-hub/progress-engine/pkg/retry"
	"github.com/alem-hub/progress-engine/pkg/timeutil"
)

// Calculator - калькулятор серий.
type Calculator struct {
	repo    Repository
	clock   timeutil.Clock
	retrier *retry.Retrier
}

// NewCalculator создаёт калькулятор.
func NewCalculator(repo Repository, clock timeutil.Clock, retrier *retry.Retrier) *Calculator {
	if retrier == nil {
		retrier = retry.StorageRetrier(shared.IsStorageConflict)
	}
	return &Calculator{repo: repo, clock: clock, retrier: retrier}
}

// MarkActivity отмечает активность пользователя в момент at.
func (c *Calculator) MarkActivity(ctx context.Context, userID shared.UserID, at time.Time) (*State, Change, error) {
	if !userID.IsValid() {
		return nil, ChangeNone, shared.ErrEmptyUserID
	}
	if at.IsZero() {
		at = c.clock.Now()
	}
	at = at.In(c.clock.Location())

	var change Change
	state, err := retry.Value(ctx, c.retrier, func(ctx context.Context) (*State, error) {
		return c.repo.Update(ctx, userID, func(s *State) bool {
			change = s.MarkActivity(at)
			return change != ChangeNone
		})
	})
	if err != nil {
		return nil, ChangeNone, fmt.Errorf("streak: mark activity: %w", err)
	}
	return state, change, nil
}

// Get возвращает серию пользователя; отсутствие серии - пустое состояние.
func (c *Calculator) Get(ctx context.Context, userID shared.UserID) (*State, error) {
	state, err := c.repo.Get(ctx, userID)
	if shared.IsNotFound(err) {
		return NewState(userID), nil
	}
	if err != nil {
		return nil, err
	}
	return state, nil
}

// SweepStats - статистика прохода сброса.
type SweepStats struct {
	Scanned int
	Reset   int
	Failed  int
	Errors  []error
}

// ResetStaleStreaks обнуляет серии пользователей, пропустивших больше дня.
// Только выставляет 0; ошибки отдельных записей собираются, проход продолжается.
func (c *Calculator) ResetStaleStreaks(ctx context.Context, batch int) (*SweepStats, error) {
	if batch <= 0 {
		batch = 500
	}
	now := c.clock.Now()
	cutoff := StaleCutoff(now)
	stats := &SweepStats{}
	failed := make(map[shared.UserID]struct{})

	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		stale, err := c.repo.ListStale(ctx, cutoff, batch)
		if err != nil {
			return stats, fmt.Errorf("streak: list stale: %w", err)
		}

		fresh := 0
		for _, s := range stale {
			if _, ok := failed[s.UserID]; ok {
				continue
			}
			fresh++
			stats.Scanned++

			reset, err := retry.Value(ctx, c.retrier, func(ctx context.Context) (bool, error) {
				return c.repo.ResetIfStale(ctx, s.UserID, cutoff, now)
			})
			if err != nil {
				failed[s.UserID] = struct{}{}
				stats.Failed++
				stats.Errors = append(stats.Errors, fmt.Errorf("streak %s: %w", s.UserID, err))
				continue
			}
			if reset {
				stats.Reset++
			}
		}

		if len(stale) < batch || fresh == 0 {
			return stats, nil
		}
	}
}
