// Package reward содержит координатор получения наград.
// Только он переводит выполненную цель в "забрано" и начисляет XP и гемы,
// ровно один раз на цель даже при параллельных запросах.
package reward

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alem-hub/progress-engine/internal/domain/shared"
)

// Kind - вид цели, за которую выдаётся награда.
type Kind string

const (
	KindQuest            Kind = "QUEST"
	KindMonthlyChallenge Kind = "MONTHLY_CHALLENGE"
)

// Outcome - исход попытки получения награды.
type Outcome string

const (
	OutcomeClaimed        Outcome = "CLAIMED"
	OutcomeNotCompleted   Outcome = "NOT_COMPLETED"
	OutcomeAlreadyClaimed Outcome = "ALREADY_CLAIMED"
	OutcomeExpired        Outcome = "EXPIRED"
	OutcomeUnauthorized   Outcome = "UNAUTHORIZED"
)

// OutcomeOf переводит ожидаемую доменную ошибку в исход.
func OutcomeOf(err error) (Outcome, bool) {
	switch {
	case err == nil:
		return OutcomeClaimed, true
	case errors.Is(err, shared.ErrUnauthorized):
		return OutcomeUnauthorized, true
	case errors.Is(err, shared.ErrAlreadyClaimed):
		return OutcomeAlreadyClaimed, true
	case errors.Is(err, shared.ErrExpired):
		return OutcomeExpired, true
	case errors.Is(err, shared.ErrNotCompleted):
		return OutcomeNotCompleted, true
	}
	return "", false
}

// Balance - накопительный счёт пользователя.
type Balance struct {
	UserID    shared.UserID `json:"user_id"`
	Points    int           `json:"points"`
	Gems      int           `json:"gems"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// BalanceRepository - хранилище счетов. Add атомарен.
type BalanceRepository interface {
	// Add атомарно прибавляет очки и гемы, создавая счёт при необходимости.
	Add(ctx context.Context, userID shared.UserID, points, gems int, at time.Time) (*Balance, error)

	// Get возвращает счёт или shared.ErrNotFound.
	Get(ctx context.Context, userID shared.UserID) (*Balance, error)
}

// StreakSnapshot - серия на момент получения награды.
type StreakSnapshot struct {
	Current int `json:"current"`
	Longest int `json:"longest"`
}

// ClaimResult - структурированный результат получения награды.
// Ожидаемые исходы (не выполнено, уже забрано, истекло, чужое) приходят здесь,
// а не ошибкой.
type ClaimResult struct {
	Outcome  Outcome        `json:"outcome"`
	Kind     Kind           `json:"kind"`
	ObjectID string         `json:"object_id"`
	Granted  shared.Reward  `json:"granted"`
	Balance  Balance        `json:"balance"`
	Streak   StreakSnapshot `json:"streak"`
	WeeklyXP int            `json:"weekly_xp"`
	Message  string         `json:"message"`
}

// Succeeded возвращает true, если награда выдана этим вызовом.
func (r *ClaimResult) Succeeded() bool {
	return r.Outcome == OutcomeClaimed
}

// ClaimAllResult - итог массового получения наград.
type ClaimAllResult struct {
	Claimed   int            `json:"claimed"`
	TotalXP   int            `json:"total_xp"`
	TotalGems int            `json:"total_gems"`
	Skipped   int            `json:"skipped"`
	Failed    int            `json:"failed"`
	Results   []*ClaimResult `json:"results"`
	Summary   string         `json:"summary"`
}

func (r *ClaimAllResult) add(res *ClaimResult) {
	r.Results = append(r.Results, res)
	if res.Succeeded() {
		r.Claimed++
		r.TotalXP += res.Granted.XP
		r.TotalGems += res.Granted.Gems
		return
	}
	r.Skipped++
}

func (r *ClaimAllResult) summarize() {
	if r.Claimed == 0 {
		r.Summary = "Нет наград для получения"
		return
	}
	r.Summary = fmt.Sprintf("Получено наград: %d (+%d XP, +%d гемов)", r.Claimed, r.TotalXP, r.TotalGems)
}

func messageFor(outcome Outcome, reward shared.Reward) string {
	switch outcome {
	case OutcomeClaimed:
		return fmt.Sprintf("Награда получена: +%d XP, +%d гемов", reward.XP, reward.Gems)
	case OutcomeAlreadyClaimed:
		return "Награда уже получена"
	case OutcomeExpired:
		return "Срок получения награды истёк"
	case OutcomeNotCompleted:
		return "Цель ещё не выполнена"
	case OutcomeUnauthorized:
		return "Эта цель принадлежит другому пользователю"
	}
	return ""
}
