// Package eventhandler содержит обработчики доменных событий.
package eventhandler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alem-hub/progress-engine/internal/application/command"
	"github.com/alem-hub/progress-engine/internal/domain/quest"
	"github.com/alem-hub/progress-engine/internal/domain/shared"
	"github.com/alem-hub/progress-engine/internal/domain/streak"
	"github.com/alem-hub/progress-engine/pkg/logger"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON ACTIVITY HANDLER
// Разбирает ленту активности обучающего приложения:
//
//	XpEarned            → журнал XP, серия, EARN_XP
//	LessonCompleted     → серия, COMPLETE_LESSONS / PERFECT_LESSONS / TIME_SPENT
//	ChallengeCompleted  → серия, CHALLENGE_TYPE
//	ComboXpEarned       → COMBO_XP
//
// Новый активный день серии публикует StreakUpdated, который продвигает
// STREAK_DAYS. Сбой одного шага не отменяет остальные; ошибки объединяются.
// ═══════════════════════════════════════════════════════════════════════════

// ActivityHandler обрабатывает события активности.
type ActivityHandler struct {
	recordXP  *command.RecordXPHandler
	streaks   *streak.Calculator
	tracker   *quest.Tracker
	publisher shared.EventPublisher
	log       *logger.Logger
}

// NewActivityHandler создаёт обработчик.
func NewActivityHandler(
	recordXP *command.RecordXPHandler,
	streaks *streak.Calculator,
	tracker *quest.Tracker,
	publisher shared.EventPublisher,
	log *logger.Logger,
) *ActivityHandler {
	if log == nil {
		log = logger.NewNop()
	}
	if publisher == nil {
		publisher = shared.NopPublisher{}
	}
	return &ActivityHandler{
		recordXP:  recordXP,
		streaks:   streaks,
		tracker:   tracker,
		publisher: publisher,
		log:       log.Named("on_activity"),
	}
}

// OnXPEarned обрабатывает XpEarned.
func (h *ActivityHandler) OnXPEarned(ctx context.Context, event shared.Event) error {
	e, ok := event.(shared.XPEarnedEvent)
	if !ok {
		return h.unexpected(event)
	}

	_, err := h.recordXP.Handle(ctx, command.RecordXPCommand{
		UserID: e.UserID.String(),
		Amount: e.Amount,
		At:     e.OccurredAt(),
		Source: e.Source,
	})
	if shared.IsValidation(err) {
		// Мусорное событие не должно двигать серию и квесты.
		return err
	}

	errs := []error{wrap("record xp", err)}
	errs = append(errs, h.markActivity(ctx, e.UserID, e.OccurredAt()))
	_, qerr := h.tracker.OnXPEarned(ctx, e.UserID, e.Amount)
	errs = append(errs, wrap("route quests", qerr))
	return errors.Join(errs...)
}

// OnLessonCompleted обрабатывает LessonCompleted.
func (h *ActivityHandler) OnLessonCompleted(ctx context.Context, event shared.Event) error {
	e, ok := event.(shared.LessonCompletedEvent)
	if !ok {
		return h.unexpected(event)
	}
	if err := checkUser(e.UserID); err != nil {
		return err
	}

	serr := h.markActivity(ctx, e.UserID, e.OccurredAt())
	_, qerr := h.tracker.OnLessonCompleted(ctx, e.UserID, e.Accuracy, e.DurationMinutes)
	return errors.Join(serr, wrap("route quests", qerr))
}

// OnChallengeCompleted обрабатывает ChallengeCompleted.
func (h *ActivityHandler) OnChallengeCompleted(ctx context.Context, event shared.Event) error {
	e, ok := event.(shared.ChallengeCompletedEvent)
	if !ok {
		return h.unexpected(event)
	}
	if err := checkUser(e.UserID); err != nil {
		return err
	}

	serr := h.markActivity(ctx, e.UserID, e.OccurredAt())
	_, qerr := h.tracker.OnChallengeCompleted(ctx, e.UserID, e.ChallengeType, e.Accuracy)
	return errors.Join(serr, wrap("route quests", qerr))
}

// OnComboXPEarned обрабатывает ComboXpEarned. Само комбо XP приходит
// отдельным XpEarned, поэтому здесь только квесты.
func (h *ActivityHandler) OnComboXPEarned(ctx context.Context, event shared.Event) error {
	e, ok := event.(shared.ComboXPEarnedEvent)
	if !ok {
		return h.unexpected(event)
	}
	if err := checkUser(e.UserID); err != nil {
		return err
	}

	_, err := h.tracker.OnComboXPEarned(ctx, e.UserID, e.Amount)
	return wrap("route quests", err)
}

// markActivity отмечает день серии и публикует StreakUpdated, если день новый.
func (h *ActivityHandler) markActivity(ctx context.Context, userID shared.UserID, at time.Time) error {
	state, change, err := h.streaks.MarkActivity(ctx, userID, at)
	if err != nil {
		return wrap("mark activity", err)
	}
	if change == streak.ChangeNone {
		return nil
	}

	h.log.Debug("streak changed",
		logger.UserID(userID.String()),
		logger.String("change", string(change)),
		logger.Int("current", state.CurrentStreak),
	)

	event := shared.NewStreakUpdatedEvent(userID, state.CurrentStreak, state.LongestStreak, at)
	if err := h.publisher.Publish(ctx, event); err != nil {
		return wrap("publish streak update", err)
	}
	return nil
}

func (h *ActivityHandler) unexpected(event shared.Event) error {
	h.log.Warn("unexpected event", logger.String("event_type", string(event.EventType())))
	return nil
}

func checkUser(userID shared.UserID) error {
	if !userID.IsValid() {
		return shared.ErrEmptyUserID
	}
	return nil
}

func wrap(step string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", step, err)
}
