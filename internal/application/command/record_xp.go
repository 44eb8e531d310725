// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"time"

	"github.com/alem-hub/progress-engine/internal/application/validation"
	"github.com/alem-hub/progress-engine/internal/domain/ledger"
	"github.com/alem-hub/progress-engine/internal/domain/shared"
	"github.com/alem-hub/progress-engine/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECORD XP COMMAND
// Начисляет XP в недельное окно. Используется обработчиком события
// XpEarned и административными корректировками.
// ══════════════════════════════════════════════════════════════════════════════

// RecordXPCommand содержит данные начисления.
type RecordXPCommand struct {
	UserID string `validate:"user_id"`
	Amount int    `validate:"gte=0,lte=100000"`

	// At - момент начисления; нулевое значение означает "сейчас".
	At time.Time

	Source string `validate:"max=64"`
}

// RecordXPResult - состояние недельной записи после начисления.
type RecordXPResult struct {
	UserID       string      `json:"user_id"`
	Week         string      `json:"week"`
	WeeklyXP     int         `json:"weekly_xp"`
	Tier         ledger.Tier `json:"tier"`
	XPToNextTier int         `json:"xp_to_next_tier"`
}

// XPRecorder получает метрику начисленного XP.
type XPRecorder interface {
	AddXP(amount int)
}

// RecordXPHandler обрабатывает RecordXPCommand.
type RecordXPHandler struct {
	ledger   *ledger.Ledger
	recorder XPRecorder
	log      *logger.Logger
}

// NewRecordXPHandler создаёт обработчик. recorder может быть nil.
func NewRecordXPHandler(l *ledger.Ledger, recorder XPRecorder, log *logger.Logger) *RecordXPHandler {
	if log == nil {
		log = logger.NewNop()
	}
	return &RecordXPHandler{ledger: l, recorder: recorder, log: log.Named("record_xp")}
}

// Handle выполняет начисление.
func (h *RecordXPHandler) Handle(ctx context.Context, cmd RecordXPCommand) (*RecordXPResult, error) {
	if err := validation.Struct("RecordXP", cmd); err != nil {
		return nil, err
	}

	entry, err := h.ledger.RecordXP(ctx, shared.UserID(cmd.UserID), cmd.Amount, cmd.At)
	if err != nil {
		return nil, err
	}

	if h.recorder != nil {
		h.recorder.AddXP(cmd.Amount)
	}
	h.log.Debug("xp recorded",
		logger.UserID(cmd.UserID),
		logger.XPAmount(cmd.Amount),
		logger.String("week", entry.Key.String()),
		logger.Int("weekly_xp", entry.XP),
	)

	return &RecordXPResult{
		UserID:       entry.UserID.String(),
		Week:         entry.Key.String(),
		WeeklyXP:     entry.XP,
		Tier:         entry.Tier(),
		XPToNextTier: ledger.XPToNextTier(entry.XP),
	}, nil
}
