// Package leaderboard содержит доменную модель недельного рейтинга.
// Рейтинг строится по записям журнала XP одной ISO-недели и использует
// стандартное соревновательное ранжирование ("1224"): равный XP делит ранг,
// следующий XP получает ранг = число записей строго выше + 1.
package leaderboard

import (
	"fmt"
	"sort"

	"github.com/alem-hub/progress-engine/internal/domain/ledger"
	"github.com/alem-hub/progress-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// Rank представляет позицию пользователя в рейтинге.
// Rank начинается с 1 (первое место).
type Rank int

// IsValid проверяет, что ранг положительный.
func (r Rank) IsValid() bool {
	return r > 0
}

// IsTop10 возвращает true, если пользователь в топ-10.
func (r Rank) IsTop10() bool {
	return r >= 1 && r <= 10
}

// String возвращает строковое представление ранга.
func (r Rank) String() string {
	return fmt.Sprintf("#%d", r)
}

// ══════════════════════════════════════════════════════════════════════════════
// RANKED ENTRY
// ══════════════════════════════════════════════════════════════════════════════

// RankedEntry - строка рейтинга.
type RankedEntry struct {
	// Rank - соревновательный ранг (делится при равном XP).
	Rank Rank `json:"rank"`

	// Position - порядковый номер в упорядоченном списке (1..N), всегда уникален.
	Position int `json:"position"`

	UserID shared.UserID  `json:"user_id"`
	XP     int            `json:"xp"`
	Tier   ledger.Tier    `json:"tier"`
	Week   ledger.WeekKey `json:"week"`
}

// ══════════════════════════════════════════════════════════════════════════════
// RANKING
// ══════════════════════════════════════════════════════════════════════════════

// Ranking - упорядоченный рейтинг одной недели.
type Ranking struct {
	week    ledger.WeekKey
	entries []RankedEntry
	byID    map[shared.UserID]int
}

// NewRanking строит рейтинг из записей журнала. Входной срез не изменяется.
func NewRanking(week ledger.WeekKey, rows []*ledger.WeeklyXPEntry) *Ranking {
	sorted := make([]*ledger.WeeklyXPEntry, len(rows))
	copy(sorted, rows)
	sortForRanking(sorted)

	r := &Ranking{
		week:    week,
		entries: make([]RankedEntry, len(sorted)),
		byID:    make(map[shared.UserID]int, len(sorted)),
	}

	// Присваиваем ранги с учётом "shared rank" (одинаковый XP = одинаковый ранг)
	currentRank := Rank(1)
	for i, row := range sorted {
		rank := currentRank
		if i > 0 && row.XP == sorted[i-1].XP {
			rank = r.entries[i-1].Rank
		}
		r.entries[i] = RankedEntry{
			Rank:     rank,
			Position: i + 1,
			UserID:   row.UserID,
			XP:       row.XP,
			Tier:     row.Tier(),
			Week:     week,
		}
		r.byID[row.UserID] = i
		currentRank = Rank(i + 2) // Следующий "реальный" ранг
	}

	return r
}

// sortForRanking: XP по убыванию; при равном XP - порядок создания записи,
// затем ID пользователя, чтобы повторные запросы давали тот же порядок.
func sortForRanking(rows []*ledger.WeeklyXPEntry) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.XP != b.XP {
			return a.XP > b.XP
		}
		if a.Seq != b.Seq {
			return a.Seq < b.Seq
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.UserID < b.UserID
	})
}

// Week возвращает неделю рейтинга.
func (r *Ranking) Week() ledger.WeekKey {
	return r.week
}

// Len возвращает число участников.
func (r *Ranking) Len() int {
	return len(r.entries)
}

// Top возвращает топ-N записей.
func (r *Ranking) Top(n int) []RankedEntry {
	if n <= 0 {
		return nil
	}
	if n > len(r.entries) {
		n = len(r.entries)
	}
	out := make([]RankedEntry, n)
	copy(out, r.entries[:n])
	return out
}

// Get возвращает запись пользователя.
func (r *Ranking) Get(userID shared.UserID) (RankedEntry, bool) {
	i, ok := r.byID[userID]
	if !ok {
		return RankedEntry{}, false
	}
	return r.entries[i], true
}
