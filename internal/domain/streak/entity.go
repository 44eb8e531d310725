// Package streak содержит доменную модель серии активных дней.
package streak

import (
	"time"

	"github.com/alem-hub/progress-engine/internal/domain/shared"
	"github.com/alem-hub/progress-engine/pkg/timeutil"
)

// Change описывает, что сделала отметка активности.
type Change string

const (
	ChangeStarted   Change = "started"   // первая активность
	ChangeExtended  Change = "extended"  // следующий день подряд
	ChangeRestarted Change = "restarted" // после пропуска
	ChangeNone      Change = "none"      // тот же день или запоздалое событие
)

// State - серия пользователя.
type State struct {
	UserID        shared.UserID `json:"user_id"`
	CurrentStreak int           `json:"current_streak"`
	LongestStreak int           `json:"longest_streak"`

	// LastActiveDate - полночь последнего активного дня; nil, если активности не было.
	LastActiveDate *time.Time `json:"last_active_date,omitempty"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// NewState создаёт пустую серию.
func NewState(userID shared.UserID) *State {
	return &State{UserID: userID}
}

// Clone возвращает независимую копию.
func (s *State) Clone() *State {
	cp := *s
	if s.LastActiveDate != nil {
		d := *s.LastActiveDate
		cp.LastActiveDate = &d
	}
	return &cp
}

// MarkActivity отмечает активность в момент at (в зоне at).
func (s *State) MarkActivity(at time.Time) Change {
	today := timeutil.StartOfDay(at)

	// Если это первая активность
	if s.LastActiveDate == nil {
		s.CurrentStreak = 1
		s.LongestStreak = max(s.LongestStreak, 1)
		s.LastActiveDate = &today
		s.UpdatedAt = at
		return ChangeStarted
	}

	change := ChangeNone
	switch daysDiff := timeutil.DaysBetween(*s.LastActiveDate, today); {
	case daysDiff <= 0:
		// Тот же день или событие за прошедший день - ничего не меняем
		return ChangeNone
	case daysDiff == 1:
		s.CurrentStreak++
		change = ChangeExtended
	default:
		// Пропущены дни - серия начинается заново
		s.CurrentStreak = 1
		change = ChangeRestarted
	}

	s.LongestStreak = max(s.LongestStreak, s.CurrentStreak)
	s.LastActiveDate = &today
	s.UpdatedAt = at
	return change
}

// StaleCutoff возвращает границу: серия устарела, если последний активный
// день раньше вчерашнего.
func StaleCutoff(now time.Time) time.Time {
	return timeutil.StartOfDay(now).AddDate(0, 0, -1)
}

// IsStale - есть ненулевая серия, а последний активный день раньше cutoff.
func (s *State) IsStale(cutoff time.Time) bool {
	return s.CurrentStreak > 0 && s.LastActiveDate != nil && s.LastActiveDate.Before(cutoff)
}

// Reset обнуляет текущую серию. Никогда не увеличивает её.
func (s *State) Reset(now time.Time) bool {
	if s.CurrentStreak == 0 {
		return false
	}
	s.CurrentStreak = 0
	s.UpdatedAt = now
	return true
}

// Effective возвращает серию, какой её видит пользователь сейчас: устаревшая
// серия показывается как 0 ещё до прохода сброса.
func (s *State) Effective(now time.Time) int {
	if s.IsStale(StaleCutoff(now)) {
		return 0
	}
	return s.CurrentStreak
}
