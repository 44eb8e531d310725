package eventhandler

import (
	"context"

	"github.com/alem-hub/progress-engine/internal/domain/quest"
	"github.com/alem-hub/progress-engine/internal/domain/shared"
	"github.com/alem-hub/progress-engine/pkg/logger"
)

// StreakHandler продвигает квесты STREAK_DAYS на каждый новый день серии.
type StreakHandler struct {
	tracker *quest.Tracker
	log     *logger.Logger
}

// NewStreakHandler создаёт обработчик.
func NewStreakHandler(tracker *quest.Tracker, log *logger.Logger) *StreakHandler {
	if log == nil {
		log = logger.NewNop()
	}
	return &StreakHandler{tracker: tracker, log: log.Named("on_streak_updated")}
}

// OnStreakUpdated обрабатывает StreakUpdated.
func (h *StreakHandler) OnStreakUpdated(ctx context.Context, event shared.Event) error {
	e, ok := event.(shared.StreakUpdatedEvent)
	if !ok {
		h.log.Warn("unexpected event", logger.String("event_type", string(event.EventType())))
		return nil
	}
	if err := checkUser(e.UserID); err != nil {
		return err
	}
	_, err := h.tracker.OnStreakDay(ctx, e.UserID)
	return wrap("route streak day", err)
}
