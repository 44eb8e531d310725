package query

import (
	"context"
	"time"

	"github.com/alem-hub/progress-engine/internal/application/validation"
	"github.com/alem-hub/progress-engine/internal/domain/quest"
	"github.com/alem-hub/progress-engine/internal/domain/shared"
	"github.com/alem-hub/progress-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET DAILY QUESTS QUERY
// Квесты пользователя на сегодня. Первый запрос дня генерирует набор.
// ══════════════════════════════════════════════════════════════════════════════

// GetDailyQuestsQuery - запрос квестов дня.
type GetDailyQuestsQuery struct {
	UserID string `validate:"user_id"`
}

// DailyQuestsDTO - квесты дня и сводка по ним.
type DailyQuestsDTO struct {
	Date      string     `json:"date"`
	Quests    []QuestDTO `json:"quests"`
	Completed int        `json:"completed"`
	Claimable int        `json:"claimable"`
	ResetsAt  time.Time  `json:"resets_at"`
}

// GetDailyQuestsHandler обрабатывает GetDailyQuestsQuery.
type GetDailyQuestsHandler struct {
	tracker *quest.Tracker
	clock   timeutil.Clock
}

// NewGetDailyQuestsHandler создаёт обработчик.
func NewGetDailyQuestsHandler(tracker *quest.Tracker, clock timeutil.Clock) *GetDailyQuestsHandler {
	return &GetDailyQuestsHandler{tracker: tracker, clock: clock}
}

// Handle выполняет запрос.
func (h *GetDailyQuestsHandler) Handle(ctx context.Context, q GetDailyQuestsQuery) (*DailyQuestsDTO, error) {
	if err := validation.Struct("GetDailyQuests", q); err != nil {
		return nil, err
	}

	instances, err := h.tracker.DailyQuests(ctx, shared.UserID(q.UserID))
	if err != nil {
		return nil, err
	}

	now := h.clock.Now()
	today := h.tracker.Today()
	dto := &DailyQuestsDTO{
		Date:     timeutil.FormatDate(today),
		Quests:   make([]QuestDTO, 0, len(instances)),
		ResetsAt: timeutil.NextMidnight(today),
	}
	for _, inst := range instances {
		item := toQuestDTO(inst, now)
		if inst.Status.CountsAsCompleted() {
			dto.Completed++
		}
		if item.Claimable {
			dto.Claimable++
		}
		dto.Quests = append(dto.Quests, item)
	}
	return dto, nil
}
