package command

import (
	"context"

	"github.com/alem-hub/progress-engine/internal/application/validation"
	"github.com/alem-hub/progress-engine/internal/domain/reward"
	"github.com/alem-hub/progress-engine/internal/domain/shared"
	"github.com/alem-hub/progress-engine/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// CLAIM REWARD COMMAND
// Забирает награду за квест или месячное испытание. Ожидаемые исходы
// (не выполнено, уже забрано, истекло, чужое) возвращаются в результате.
// ══════════════════════════════════════════════════════════════════════════════

// ClaimRewardCommand - запрос на получение награды.
type ClaimRewardCommand struct {
	UserID string `validate:"user_id"`

	// ObjectID - ID экземпляра квеста или строки участия в месячном испытании.
	ObjectID string `validate:"required,max=64"`
}

// ClaimRecorder получает метрику исхода получения награды.
type ClaimRecorder interface {
	Claim(kind, outcome string)
}

// ClaimRewardHandler обрабатывает ClaimRewardCommand.
type ClaimRewardHandler struct {
	coordinator *reward.Coordinator
	recorder    ClaimRecorder
	log         *logger.Logger
}

// NewClaimRewardHandler создаёт обработчик.
func NewClaimRewardHandler(c *reward.Coordinator, recorder ClaimRecorder, log *logger.Logger) *ClaimRewardHandler {
	if log == nil {
		log = logger.NewNop()
	}
	return &ClaimRewardHandler{coordinator: c, recorder: recorder, log: log.Named("claim_reward")}
}

// Handle выполняет получение награды.
func (h *ClaimRewardHandler) Handle(ctx context.Context, cmd ClaimRewardCommand) (*reward.ClaimResult, error) {
	if err := validation.Struct("ClaimReward", cmd); err != nil {
		return nil, err
	}

	result, err := h.coordinator.Claim(ctx, shared.UserID(cmd.UserID), cmd.ObjectID)
	if err != nil {
		if !shared.IsNotFound(err) {
			h.log.Error("claim failed",
				logger.UserID(cmd.UserID),
				logger.String("object_id", cmd.ObjectID),
				logger.Err(err),
			)
		}
		return result, err
	}

	h.record(result)
	h.log.Info("claim processed",
		logger.UserID(cmd.UserID),
		logger.String("object_id", cmd.ObjectID),
		logger.String("kind", string(result.Kind)),
		logger.String("outcome", string(result.Outcome)),
	)
	return result, nil
}

func (h *ClaimRewardHandler) record(res *reward.ClaimResult) {
	if h.recorder != nil && res != nil {
		h.recorder.Claim(string(res.Kind), string(res.Outcome))
	}
}
