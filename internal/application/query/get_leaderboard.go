package query

import (
	"context"
	"time"

	"github.com/alem-hub/progress-engine/internal/application/validation"
	"github.com/alem-hub/progress-engine/internal/domain/leaderboard"
	"github.com/alem-hub/progress-engine/internal/domain/ledger"
	"github.com/alem-hub/progress-engine/internal/domain/shared"
	"github.com/alem-hub/progress-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET LEADERBOARD QUERY
// Топ-N недельного рейтинга и, если передан пользователь, его собственная
// строка (даже если он вне топа).
// ══════════════════════════════════════════════════════════════════════════════

// DefaultLeaderboardLimit - размер топа по умолчанию.
const DefaultLeaderboardLimit = 10

// GetLeaderboardQuery содержит параметры запроса лидерборда.
type GetLeaderboardQuery struct {
	// Limit - количество строк (0 = по умолчанию).
	Limit int `validate:"gte=0,lte=500"`

	// Year, Week - неделя; нули означают текущую.
	Year int `validate:"omitempty,gte=1970,lte=9999"`
	Week int `validate:"omitempty,gte=1,lte=53"`

	// UserID - необязательный "я" для строки пользователя.
	UserID string `validate:"omitempty,user_id"`
}

// GetLeaderboardResult содержит результат запроса лидерборда.
type GetLeaderboardResult struct {
	Week        string                `json:"week"`
	Entries     []LeaderboardEntryDTO `json:"entries"`
	Me          *LeaderboardEntryDTO  `json:"me,omitempty"`
	TotalCount  int                   `json:"total_count"`
	GeneratedAt time.Time             `json:"generated_at"`
}

// GetLeaderboardHandler обрабатывает запросы на получение лидерборда.
type GetLeaderboardHandler struct {
	engine       *leaderboard.Engine
	clock        timeutil.Clock
	defaultLimit int
}

// NewGetLeaderboardHandler создаёт обработчик. defaultLimit <= 0 означает 10.
func NewGetLeaderboardHandler(engine *leaderboard.Engine, clock timeutil.Clock, defaultLimit int) *GetLeaderboardHandler {
	if defaultLimit <= 0 {
		defaultLimit = DefaultLeaderboardLimit
	}
	return &GetLeaderboardHandler{engine: engine, clock: clock, defaultLimit: defaultLimit}
}

// Handle выполняет запрос.
func (h *GetLeaderboardHandler) Handle(ctx context.Context, q GetLeaderboardQuery) (*GetLeaderboardResult, error) {
	if err := validation.Struct("GetLeaderboard", q); err != nil {
		return nil, err
	}

	limit := q.Limit
	if limit == 0 {
		limit = h.defaultLimit
	}

	week := h.engine.CurrentWeek()
	if q.Year != 0 || q.Week != 0 {
		week = ledger.WeekKey{Year: q.Year, Week: q.Week}
		if err := week.Validate(); err != nil {
			return nil, err
		}
	}

	result := &GetLeaderboardResult{Week: week.String(), GeneratedAt: h.clock.Now()}

	// RankOf лениво создаёт запись текущей недели, поэтому выполняется до
	// построения топа. Прошлые недели только читаются.
	current := week == h.engine.CurrentWeek()
	if q.UserID != "" && current {
		me, _, err := h.engine.RankOf(ctx, shared.UserID(q.UserID), week)
		if err != nil {
			return nil, err
		}
		dto := toLeaderboardEntry(me)
		result.Me = &dto
	}

	ranking, err := h.engine.Ranking(ctx, week)
	if err != nil {
		return nil, err
	}
	if q.UserID != "" && !current {
		if me, ok := ranking.Get(shared.UserID(q.UserID)); ok {
			dto := toLeaderboardEntry(me)
			result.Me = &dto
		}
	}

	top := ranking.Top(limit)
	result.Entries = make([]LeaderboardEntryDTO, 0, len(top))
	for _, e := range top {
		result.Entries = append(result.Entries, toLeaderboardEntry(e))
	}
	result.TotalCount = ranking.Len()
	return result, nil
}
