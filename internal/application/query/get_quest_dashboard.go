package query

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/alem-hub/progress-engine/internal/application/validation"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET QUEST DASHBOARD QUERY
// Квесты дня, месячное испытание и сводка одним запросом. Части читаются
// параллельно; ошибка любой из них отменяет остальные.
// ══════════════════════════════════════════════════════════════════════════════

// GetQuestDashboardQuery - запрос панели квестов.
type GetQuestDashboardQuery struct {
	UserID string `validate:"user_id"`
}

// QuestDashboardDTO - панель квестов.
type QuestDashboardDTO struct {
	Daily   *DailyQuestsDTO      `json:"daily"`
	Monthly *MonthlyChallengeDTO `json:"monthly"`
	Stats   *MyStatsDTO          `json:"stats"`
}

// GetQuestDashboardHandler собирает панель из других запросов.
type GetQuestDashboardHandler struct {
	daily   *GetDailyQuestsHandler
	monthly *GetMonthlyChallengeHandler
	stats   *GetMyStatsHandler
}

// NewGetQuestDashboardHandler создаёт обработчик.
func NewGetQuestDashboardHandler(daily *GetDailyQuestsHandler, monthly *GetMonthlyChallengeHandler, stats *GetMyStatsHandler) *GetQuestDashboardHandler {
	return &GetQuestDashboardHandler{daily: daily, monthly: monthly, stats: stats}
}

// Handle выполняет запрос.
func (h *GetQuestDashboardHandler) Handle(ctx context.Context, q GetQuestDashboardQuery) (*QuestDashboardDTO, error) {
	if err := validation.Struct("GetQuestDashboard", q); err != nil {
		return nil, err
	}

	// Квесты дня генерируются первыми: месячный счётчик должен их видеть.
	daily, err := h.daily.Handle(ctx, GetDailyQuestsQuery{UserID: q.UserID})
	if err != nil {
		return nil, err
	}

	out := &QuestDashboardDTO{Daily: daily}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		m, err := h.monthly.Handle(gctx, GetMonthlyChallengeQuery{UserID: q.UserID})
		out.Monthly = m
		return err
	})
	g.Go(func() error {
		s, err := h.stats.Handle(gctx, GetMyStatsQuery{UserID: q.UserID})
		out.Stats = s
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
