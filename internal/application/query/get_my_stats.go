package query

import (
	"context"
	"fmt"

	"github.com/alem-hub/progress-engine/internal/application/validation"
	"github.com/alem-hub/progress-engine/internal/domain/leaderboard"
	"github.com/alem-hub/progress-engine/internal/domain/ledger"
	"github.com/alem-hub/progress-engine/internal/domain/reward"
	"github.com/alem-hub/progress-engine/internal/domain/shared"
	"github.com/alem-hub/progress-engine/internal/domain/streak"
	"github.com/alem-hub/progress-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET MY STATS QUERY
// Сводка пользователя за текущую неделю: XP, тир, место, серия, счёт.
// ══════════════════════════════════════════════════════════════════════════════

// GetMyStatsQuery - запрос сводки.
type GetMyStatsQuery struct {
	UserID string `validate:"user_id"`
}

// MyStatsDTO - сводка пользователя.
type MyStatsDTO struct {
	UserID       string      `json:"user_id"`
	Week         string      `json:"week"`
	WeeklyXP     int         `json:"weekly_xp"`
	Tier         ledger.Tier `json:"tier"`
	NextTier     ledger.Tier `json:"next_tier,omitempty"`
	XPToNextTier int         `json:"xp_to_next_tier"`
	Rank         int         `json:"rank"`
	Of           int         `json:"of"`
	Streak       StreakDTO   `json:"streak"`
	Points       int         `json:"points"`
	Gems         int         `json:"gems"`
}

// GetMyStatsHandler обрабатывает GetMyStatsQuery.
type GetMyStatsHandler struct {
	engine   *leaderboard.Engine
	streaks  *streak.Calculator
	balances reward.BalanceRepository
	clock    timeutil.Clock
}

// NewGetMyStatsHandler создаёт обработчик.
func NewGetMyStatsHandler(engine *leaderboard.Engine, streaks *streak.Calculator, balances reward.BalanceRepository, clock timeutil.Clock) *GetMyStatsHandler {
	return &GetMyStatsHandler{engine: engine, streaks: streaks, balances: balances, clock: clock}
}

// Handle выполняет запрос. Запись текущей недели создаётся лениво.
func (h *GetMyStatsHandler) Handle(ctx context.Context, q GetMyStatsQuery) (*MyStatsDTO, error) {
	if err := validation.Struct("GetMyStats", q); err != nil {
		return nil, err
	}
	userID := shared.UserID(q.UserID)
	week := h.engine.CurrentWeek()

	entry, total, err := h.engine.RankOf(ctx, userID, week)
	if err != nil {
		return nil, err
	}

	stats := &MyStatsDTO{
		UserID:       q.UserID,
		Week:         week.String(),
		WeeklyXP:     entry.XP,
		Tier:         entry.Tier,
		XPToNextTier: ledger.XPToNextTier(entry.XP),
		Rank:         int(entry.Rank),
		Of:           total,
	}
	if next, _, ok := entry.Tier.Next(); ok {
		stats.NextTier = next
	}

	state, err := h.streaks.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get streak: %w", err)
	}
	stats.Streak = toStreakDTO(state, h.clock)

	balance, err := h.balances.Get(ctx, userID)
	switch {
	case err == nil:
		stats.Points, stats.Gems = balance.Points, balance.Gems
	case !shared.IsNotFound(err):
		return nil, fmt.Errorf("get balance: %w", err)
	}
	return stats, nil
}

func toStreakDTO(state *streak.State, clock timeutil.Clock) StreakDTO {
	dto := StreakDTO{
		Current: state.Effective(clock.Now()),
		Longest: state.LongestStreak,
	}
	if state.LastActiveDate != nil {
		d := timeutil.FormatDate(*state.LastActiveDate)
		dto.LastActiveDate = &d
	}
	return dto
}
