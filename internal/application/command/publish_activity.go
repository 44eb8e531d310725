package command

import (
	"context"
	"fmt"
	"time"

	"github.com/alem-hub/progress-engine/internal/application/validation"
	"github.com/alem-hub/progress-engine/internal/domain/shared"
	"github.com/alem-hub/progress-engine/pkg/logger"
	"github.com/alem-hub/progress-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// PUBLISH ACTIVITY COMMAND
// Точка входа ленты активности: проверяет событие обучающего приложения и
// публикует его на шину, где его разбирают подписчики (журнал XP, серии,
// квесты).
// ══════════════════════════════════════════════════════════════════════════════

// ActivityKind - вид входящей активности.
type ActivityKind string

const (
	ActivityXPEarned           ActivityKind = "xp_earned"
	ActivityLessonCompleted    ActivityKind = "lesson_completed"
	ActivityChallengeCompleted ActivityKind = "challenge_completed"
	ActivityComboXPEarned      ActivityKind = "combo_xp_earned"
)

// PublishActivityCommand - одно событие активности.
type PublishActivityCommand struct {
	Kind   ActivityKind `validate:"required,oneof=xp_earned lesson_completed challenge_completed combo_xp_earned"`
	UserID string       `validate:"user_id"`

	// Amount - XP для xp_earned и combo_xp_earned.
	Amount int `validate:"gte=0,lte=100000"`

	// Accuracy - точность урока или испытания, 0..100.
	Accuracy int `validate:"accuracy"`

	DurationMinutes int    `validate:"gte=0,lte=1440"`
	ChallengeType   string `validate:"required_if=Kind challenge_completed,max=64"`
	Source          string `validate:"max=64"`

	// OccurredAt - момент активности; нулевое значение означает "сейчас".
	OccurredAt    time.Time
	CorrelationID string `validate:"max=128"`
}

// PublishActivityHandler обрабатывает PublishActivityCommand.
type PublishActivityHandler struct {
	publisher shared.EventPublisher
	clock     timeutil.Clock
	log       *logger.Logger
}

// NewPublishActivityHandler создаёт обработчик.
func NewPublishActivityHandler(publisher shared.EventPublisher, clock timeutil.Clock, log *logger.Logger) *PublishActivityHandler {
	if log == nil {
		log = logger.NewNop()
	}
	return &PublishActivityHandler{publisher: publisher, clock: clock, log: log.Named("publish_activity")}
}

// Handle проверяет команду и публикует событие. Возвращает опубликованное событие.
func (h *PublishActivityHandler) Handle(ctx context.Context, cmd PublishActivityCommand) (shared.Event, error) {
	if err := validation.Struct("PublishActivity", cmd); err != nil {
		return nil, err
	}

	event := h.build(cmd)
	if err := h.publisher.Publish(ctx, event); err != nil {
		return nil, fmt.Errorf("publish %s: %w", event.EventType(), err)
	}

	h.log.Debug("activity published",
		logger.UserID(cmd.UserID),
		logger.String("kind", string(cmd.Kind)),
		logger.String("correlation_id", cmd.CorrelationID),
	)
	return event, nil
}

func (h *PublishActivityHandler) build(cmd PublishActivityCommand) shared.Event {
	at := cmd.OccurredAt
	if at.IsZero() {
		at = h.clock.Now()
	}
	user := shared.UserID(cmd.UserID)
	accuracy := shared.Accuracy(cmd.Accuracy)

	switch cmd.Kind {
	case ActivityXPEarned:
		e := shared.NewXPEarnedEvent(user, cmd.Amount, cmd.Source, at)
		e.BaseEvent = e.WithCorrelationID(cmd.CorrelationID)
		return e
	case ActivityLessonCompleted:
		e := shared.NewLessonCompletedEvent(user, accuracy, cmd.DurationMinutes, at)
		e.BaseEvent = e.WithCorrelationID(cmd.CorrelationID)
		return e
	case ActivityChallengeCompleted:
		e := shared.NewChallengeCompletedEvent(user, cmd.ChallengeType, accuracy, at)
		e.BaseEvent = e.WithCorrelationID(cmd.CorrelationID)
		return e
	default:
		e := shared.NewComboXPEarnedEvent(user, cmd.Amount, at)
		e.BaseEvent = e.WithCorrelationID(cmd.CorrelationID)
		return e
	}
}
