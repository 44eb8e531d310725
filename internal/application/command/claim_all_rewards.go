package command

import (
	"context"

	"github.com/alem-hub/progress-engine/internal/application/validation"
	"github.com/alem-hub/progress-engine/internal/domain/reward"
	"github.com/alem-hub/progress-engine/internal/domain/shared"
	"github.com/alem-hub/progress-engine/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// CLAIM ALL REWARDS COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// ClaimAllRewardsCommand забирает все доступные награды пользователя.
type ClaimAllRewardsCommand struct {
	UserID string `validate:"user_id"`
}

// ClaimAllRewardsHandler обрабатывает ClaimAllRewardsCommand.
type ClaimAllRewardsHandler struct {
	coordinator *reward.Coordinator
	recorder    ClaimRecorder
	log         *logger.Logger
}

// NewClaimAllRewardsHandler создаёт обработчик.
func NewClaimAllRewardsHandler(c *reward.Coordinator, recorder ClaimRecorder, log *logger.Logger) *ClaimAllRewardsHandler {
	if log == nil {
		log = logger.NewNop()
	}
	return &ClaimAllRewardsHandler{coordinator: c, recorder: recorder, log: log.Named("claim_all_rewards")}
}

// Handle выполняет массовое получение. Частичный успех не является ошибкой.
func (h *ClaimAllRewardsHandler) Handle(ctx context.Context, cmd ClaimAllRewardsCommand) (*reward.ClaimAllResult, error) {
	if err := validation.Struct("ClaimAllRewards", cmd); err != nil {
		return nil, err
	}

	result, err := h.coordinator.ClaimAll(ctx, shared.UserID(cmd.UserID))
	if result != nil && h.recorder != nil {
		for _, res := range result.Results {
			h.recorder.Claim(string(res.Kind), string(res.Outcome))
		}
	}
	if err != nil {
		h.log.Error("claim all failed", logger.UserID(cmd.UserID), logger.Err(err))
		return result, err
	}

	h.log.Info("claim all processed",
		logger.UserID(cmd.UserID),
		logger.Int("claimed", result.Claimed),
		logger.Int("skipped", result.Skipped),
		logger.Int("failed", result.Failed),
		logger.Int("total_xp", result.TotalXP),
	)
	return result, nil
}
