package query

import (
	"context"

	"github.com/alem-hub/progress-engine/internal/application/validation"
	"github.com/alem-hub/progress-engine/internal/domain/challenge"
	"github.com/alem-hub/progress-engine/internal/domain/shared"
)

// GetMonthlyChallengeQuery - запрос испытания текущего месяца.
type GetMonthlyChallengeQuery struct {
	UserID string `validate:"user_id"`
}

// GetMonthlyChallengeHandler обрабатывает GetMonthlyChallengeQuery.
type GetMonthlyChallengeHandler struct {
	aggregator *challenge.Aggregator
}

// NewGetMonthlyChallengeHandler создаёт обработчик.
func NewGetMonthlyChallengeHandler(a *challenge.Aggregator) *GetMonthlyChallengeHandler {
	return &GetMonthlyChallengeHandler{aggregator: a}
}

// Handle выполняет запрос. Испытание и участие создаются лениво.
func (h *GetMonthlyChallengeHandler) Handle(ctx context.Context, q GetMonthlyChallengeQuery) (*MonthlyChallengeDTO, error) {
	if err := validation.Struct("GetMonthlyChallenge", q); err != nil {
		return nil, err
	}
	view, err := h.aggregator.Current(ctx, shared.UserID(q.UserID))
	if err != nil {
		return nil, err
	}
	dto := toMonthlyDTO(view)
	return &dto, nil
}
