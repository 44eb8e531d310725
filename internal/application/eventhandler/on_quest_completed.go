package eventhandler

import (
	"context"

	"github.com/alem-hub/progress-engine/internal/domain/shared"
	"github.com/alem-hub/progress-engine/pkg/logger"
)

// QuestRecorder получает метрику выполненных квестов.
type QuestRecorder interface {
	QuestCompleted()
}

// QuestCompletedHandler учитывает выполненные квесты. Событие приходит ровно
// один раз на экземпляр, поэтому счётчик не завышается.
type QuestCompletedHandler struct {
	recorder QuestRecorder
	log      *logger.Logger
}

// NewQuestCompletedHandler создаёт обработчик. recorder может быть nil.
func NewQuestCompletedHandler(recorder QuestRecorder, log *logger.Logger) *QuestCompletedHandler {
	if log == nil {
		log = logger.NewNop()
	}
	return &QuestCompletedHandler{recorder: recorder, log: log.Named("on_quest_completed")}
}

// OnQuestCompleted обрабатывает QuestCompleted.
func (h *QuestCompletedHandler) OnQuestCompleted(_ context.Context, event shared.Event) error {
	e, ok := event.(shared.QuestCompletedEvent)
	if !ok {
		return nil
	}
	if h.recorder != nil {
		h.recorder.QuestCompleted()
	}
	h.log.Info("quest completed",
		logger.UserID(e.UserID.String()),
		logger.QuestID(e.InstanceID),
		logger.String("quest_type", e.QuestType),
		logger.String("date", e.Date),
	)
	return nil
}
