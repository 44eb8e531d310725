package leaderboard

import (
	"context"
	"fmt"

	"github.com/alem-hub/progress-engine/internal/domain/ledger"
	"github.com/alem-hub/progress-engine/internal/domain/shared"
	"github.com/alem-hub/progress-engine/pkg/timeutil"
)

// MaxTopN ограничивает размер одного запроса рейтинга.
const MaxTopN = 500

// HistoryEntry - итог одной прошлой недели пользователя.
type HistoryEntry struct {
	Week ledger.WeekKey `json:"week"`
	XP   int            `json:"xp"`
	Tier ledger.Tier    `json:"tier"`
	Rank Rank           `json:"rank"`
	Of   int            `json:"of"`
}

// Engine - движок рейтинга. Читает журнал XP по требованию, своего состояния
// не хранит.
type Engine struct {
	entries ledger.Repository
	ledger  *ledger.Ledger
	clock   timeutil.Clock
}

// NewEngine создаёт Engine.
func NewEngine(entries ledger.Repository, l *ledger.Ledger, clock timeutil.Clock) *Engine {
	return &Engine{entries: entries, ledger: l, clock: clock}
}

// Ranking строит полный рейтинг недели.
func (e *Engine) Ranking(ctx context.Context, week ledger.WeekKey) (*Ranking, error) {
	if err := week.Validate(); err != nil {
		return nil, err
	}
	rows, err := e.entries.ListWeek(ctx, week)
	if err != nil {
		return nil, fmt.Errorf("leaderboard: list week %s: %w", week, err)
	}
	return NewRanking(week, rows), nil
}

// TopN возвращает первые n строк рейтинга недели.
func (e *Engine) TopN(ctx context.Context, week ledger.WeekKey, n int) ([]RankedEntry, error) {
	if n <= 0 {
		return nil, shared.ErrInvalidLimit
	}
	if n > MaxTopN {
		n = MaxTopN
	}
	ranking, err := e.Ranking(ctx, week)
	if err != nil {
		return nil, err
	}
	return ranking.Top(n), nil
}

// RankOf возвращает позицию пользователя. Если записи нет, она лениво
// создаётся с XP = 0, так что новый пользователь оказывается последним.
func (e *Engine) RankOf(ctx context.Context, userID shared.UserID, week ledger.WeekKey) (RankedEntry, int, error) {
	if _, err := e.ledger.Entry(ctx, userID, week); err != nil {
		return RankedEntry{}, 0, err
	}

	ranking, err := e.Ranking(ctx, week)
	if err != nil {
		return RankedEntry{}, 0, err
	}

	entry, ok := ranking.Get(userID)
	if !ok {
		// Запись создана, но чтение её ещё не видит (например, устаревший кэш).
		return RankedEntry{}, 0, fmt.Errorf("leaderboard: entry for %s missing after ensure: %w", userID, shared.ErrStorageConflict)
	}
	return entry, ranking.Len(), nil
}

// CurrentWeek возвращает ключ текущей недели.
func (e *Engine) CurrentWeek() ledger.WeekKey {
	return ledger.WeekOf(e.clock.Now())
}

// History возвращает итоги последних limit недель пользователя.
func (e *Engine) History(ctx context.Context, userID shared.UserID, limit int) ([]HistoryEntry, error) {
	if !userID.IsValid() {
		return nil, shared.ErrEmptyUserID
	}
	if limit <= 0 {
		return nil, shared.ErrInvalidLimit
	}

	rows, err := e.entries.ListUser(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("leaderboard: list history: %w", err)
	}

	history := make([]HistoryEntry, 0, len(rows))
	for _, row := range rows {
		ranking, err := e.Ranking(ctx, row.Key)
		if err != nil {
			return nil, err
		}
		item := HistoryEntry{Week: row.Key, XP: row.XP, Tier: row.Tier(), Of: ranking.Len()}
		if ranked, ok := ranking.Get(userID); ok {
			item.Rank = ranked.Rank
		}
		history = append(history, item)
	}
	return history, nil
}
