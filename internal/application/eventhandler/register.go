package eventhandler

import (
	"fmt"

	"github.com/alem-hub/progress-engine/internal/domain/shared"
)

// Handlers - все подписчики движка.
type Handlers struct {
	Activity       *ActivityHandler
	Streak         *StreakHandler
	QuestCompleted *QuestCompletedHandler
}

// Wrapper оборачивает обработчик (логирование, восстановление, DLQ).
// name - имя подписки для логов.
type Wrapper func(name string, h shared.EventHandler) shared.EventHandler

// Register подписывает обработчики на шину. wrap может быть nil.
func Register(sub shared.EventSubscriber, h Handlers, wrap Wrapper) error {
	if wrap == nil {
		wrap = func(_ string, fn shared.EventHandler) shared.EventHandler { return fn }
	}

	type binding struct {
		event shared.EventType
		name  string
		fn    shared.EventHandler
	}
	var bindings []binding
	if h.Activity != nil {
		bindings = append(bindings,
			binding{shared.EventXPEarned, "on_xp_earned", h.Activity.OnXPEarned},
			binding{shared.EventLessonCompleted, "on_lesson_completed", h.Activity.OnLessonCompleted},
			binding{shared.EventChallengeCompleted, "on_challenge_completed", h.Activity.OnChallengeCompleted},
			binding{shared.EventComboXPEarned, "on_combo_xp_earned", h.Activity.OnComboXPEarned},
		)
	}
	if h.Streak != nil {
		bindings = append(bindings, binding{shared.EventStreakUpdated, "on_streak_updated", h.Streak.OnStreakUpdated})
	}
	if h.QuestCompleted != nil {
		bindings = append(bindings, binding{shared.EventQuestCompleted, "on_quest_completed", h.QuestCompleted.OnQuestCompleted})
	}

	for _, b := range bindings {
		if err := sub.Subscribe(b.event, wrap(b.name, b.fn)); err != nil {
			return fmt.Errorf("subscribe %s: %w", b.name, err)
		}
	}
	return nil
}
