package ledger

import (
	"context"
	"time"

	"github.com/alem-hub/progress-engine/internal/domain/shared"
	"github.com/alem-hub/progress-engine/pkg/retry"
	"github.com/alem-hub/progress-engine/pkg/timeutil"
)

// Ledger - доменный сервис начисления XP.
// Единственный, кто изменяет WeeklyXPEntry.
type Ledger struct {
	repo    Repository
	clock   timeutil.Clock
	retrier *retry.Retrier
}

// NewLedger создаёт Ledger. retrier == nil означает стандартный StorageRetrier.
func NewLedger(repo Repository, clock timeutil.Clock, retrier *retry.Retrier) *Ledger {
	if retrier == nil {
		retrier = retry.StorageRetrier(shared.IsStorageConflict)
	}
	return &Ledger{repo: repo, clock: clock, retrier: retrier}
}

// RecordXP начисляет amount XP в окно недели, к которой относится at.
// Нулевое начисление допустимо и просто гарантирует наличие записи.
func (l *Ledger) RecordXP(ctx context.Context, userID shared.UserID, amount int, at time.Time) (*WeeklyXPEntry, error) {
	if !userID.IsValid() {
		return nil, shared.ErrEmptyUserID
	}
	if err := ValidateAmount(amount); err != nil {
		return nil, err
	}
	if at.IsZero() {
		at = l.clock.Now()
	}
	at = at.In(l.clock.Location())
	key := WeekOf(at)

	return retry.Value(ctx, l.retrier, func(ctx context.Context) (*WeeklyXPEntry, error) {
		return l.repo.Increment(ctx, userID, key, amount, at)
	})
}

// CurrentWeek возвращает ключ текущей недели по часам.
func (l *Ledger) CurrentWeek() WeekKey {
	return WeekOf(l.clock.Now())
}

// Entry возвращает запись пользователя за неделю, лениво создавая пустую.
func (l *Ledger) Entry(ctx context.Context, userID shared.UserID, key WeekKey) (*WeeklyXPEntry, error) {
	if !userID.IsValid() {
		return nil, shared.ErrEmptyUserID
	}
	if err := key.Validate(); err != nil {
		return nil, err
	}
	return retry.Value(ctx, l.retrier, func(ctx context.Context) (*WeeklyXPEntry, error) {
		return l.repo.Ensure(ctx, userID, key, l.clock.Now())
	})
}

// PrepareNextWeek засевает следующую неделю нулевыми записями для всех
// пользователей текущей недели. Повторный вызов ничего не создаёт.
func (l *Ledger) PrepareNextWeek(ctx context.Context) (from, to WeekKey, created int, err error) {
	now := l.clock.Now()
	from = WeekOf(now)
	to = from.Next(l.clock.Location())

	created, err = retry.Value(ctx, l.retrier, func(ctx context.Context) (int, error) {
		return l.repo.SeedWeek(ctx, from, to, now)
	})
	return from, to, created, err
}
