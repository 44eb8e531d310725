// Package challenge содержит доменную модель месячного испытания.
// Испытание месяца засчитывает все выполненные экземпляры квестов за
// календарный месяц против фиксированной цели и выдаёт бейдж.
package challenge

import (
	"fmt"
	"time"

	"github.com/alem-hub/progress-engine/internal/domain/shared"
	"github.com/alem-hub/progress-engine/pkg/timeutil"
)

// DefaultQuestsRequired - цель месяца по умолчанию.
const DefaultQuestsRequired = 30

// MonthKey - ключ календарного месяца.
type MonthKey struct {
	Year  int        `json:"year"`
	Month time.Month `json:"month"`
}

// MonthOf возвращает месяц момента t (в зоне t).
func MonthOf(t time.Time) MonthKey {
	return MonthKey{Year: t.Year(), Month: t.Month()}
}

// Bounds возвращает [начало, начало следующего) месяца в loc.
func (k MonthKey) Bounds(loc *time.Location) (from, to time.Time) {
	from = time.Date(k.Year, k.Month, 1, 0, 0, 0, 0, loc)
	return from, timeutil.StartOfNextMonth(from)
}

// String возвращает месяц в формате 2026-10.
func (k MonthKey) String() string {
	return fmt.Sprintf("%04d-%02d", k.Year, int(k.Month))
}

// Status - статус прохождения испытания.
type Status string

const (
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusClaimed    Status = "CLAIMED"
)

// Definition - испытание месяца. Создаётся лениво при первом обращении к месяцу.
type Definition struct {
	ID                  string        `json:"id"`
	Key                 MonthKey      `json:"key"`
	TotalQuestsRequired int           `json:"total_quests_required"`
	BadgeName           string        `json:"badge_name"`
	BadgeIcon           string        `json:"badge_icon"`
	Reward              shared.Reward `json:"reward"`
	CreatedAt           time.Time     `json:"created_at"`
}

// Template - параметры, с которыми лениво создаются новые месяцы.
type Template struct {
	TotalQuestsRequired int
	BadgeIcon           string
	Reward              shared.Reward
}

// DefaultTemplate возвращает шаблон по умолчанию.
func DefaultTemplate() Template {
	return Template{
		TotalQuestsRequired: DefaultQuestsRequired,
		BadgeIcon:           "🏆",
		Reward:              shared.Reward{XP: 500, Gems: 100},
	}
}

// Build создаёт определение месяца по шаблону.
func (t Template) Build(id string, key MonthKey, now time.Time) *Definition {
	required := t.TotalQuestsRequired
	if required <= 0 {
		required = DefaultQuestsRequired
	}
	return &Definition{
		ID:                  id,
		Key:                 key,
		TotalQuestsRequired: required,
		BadgeName:           fmt.Sprintf("Испытание: %s %d", timeutil.MonthNameRu(key.Month), key.Year),
		BadgeIcon:           t.BadgeIcon,
		Reward:              t.Reward,
		CreatedAt:           now,
	}
}

// Progress - строка участия пользователя; нужна только для учёта получения
// награды. Количество выполненных квестов не хранится, а вычисляется.
type Progress struct {
	ID          string        `json:"id"`
	UserID      shared.UserID `json:"user_id"`
	ChallengeID string        `json:"challenge_id"`
	Claimed     bool          `json:"claimed"`
	ClaimedAt   *time.Time    `json:"claimed_at,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
}

// Percentage возвращает процент выполнения с округлением до ближайшего
// целого, не больше 100. Пока цель не достигнута, результат не больше 99.
func Percentage(completed, required int) int {
	if required <= 0 || completed <= 0 {
		return 0
	}
	if completed >= required {
		return 100
	}
	pct := (completed*100 + required/2) / required
	return min(pct, 99)
}

// StatusFor вычисляет статус по счётчику и флагу получения.
func StatusFor(completed, required int, claimed bool) Status {
	switch {
	case claimed:
		return StatusClaimed
	case completed >= required:
		return StatusCompleted
	default:
		return StatusInProgress
	}
}

// View - представление прогресса месяца.
type View struct {
	Definition     Definition `json:"definition"`
	ProgressID     string     `json:"progress_id"`
	CompletedCount int        `json:"completed_count"`
	Percentage     int        `json:"progress_percentage"`
	Status         Status     `json:"status"`
	Claimed        bool       `json:"claimed"`
	DaysLeft       int        `json:"days_left"`
}

// CheckClaimable проверяет, можно ли забрать награду месяца.
func (v *View) CheckClaimable(owner, caller shared.UserID, now time.Time) error {
	_, end := v.Definition.Key.Bounds(now.Location())
	switch {
	case owner != caller:
		return shared.ErrChallengeNotOwned
	case v.Claimed:
		return shared.ErrChallengeAlreadyClaimed
	case !now.Before(end):
		return shared.ErrChallengeExpired
	case v.Status != StatusCompleted:
		return shared.ErrChallengeNotCompleted
	}
	return nil
}
