package query

import (
	"context"

	"github.com/alem-hub/progress-engine/internal/application/validation"
	"github.com/alem-hub/progress-engine/internal/domain/leaderboard"
	"github.com/alem-hub/progress-engine/internal/domain/shared"
)

// DefaultHistoryLimit - сколько недель показывать по умолчанию.
const DefaultHistoryLimit = 8

// GetHistoryQuery - запрос истории недель пользователя.
type GetHistoryQuery struct {
	UserID string `validate:"user_id"`
	Limit  int    `validate:"gte=0,lte=104"`
}

// GetHistoryResult - недели от новой к старой.
type GetHistoryResult struct {
	UserID string                     `json:"user_id"`
	Weeks  []leaderboard.HistoryEntry `json:"weeks"`
}

// GetHistoryHandler обрабатывает GetHistoryQuery.
type GetHistoryHandler struct {
	engine *leaderboard.Engine
}

// NewGetHistoryHandler создаёт обработчик.
func NewGetHistoryHandler(engine *leaderboard.Engine) *GetHistoryHandler {
	return &GetHistoryHandler{engine: engine}
}

// Handle выполняет запрос.
func (h *GetHistoryHandler) Handle(ctx context.Context, q GetHistoryQuery) (*GetHistoryResult, error) {
	if err := validation.Struct("GetHistory", q); err != nil {
		return nil, err
	}
	limit := q.Limit
	if limit == 0 {
		limit = DefaultHistoryLimit
	}

	weeks, err := h.engine.History(ctx, shared.UserID(q.UserID), limit)
	if err != nil {
		return nil, err
	}
	return &GetHistoryResult{UserID: q.UserID, Weeks: weeks}, nil
}
