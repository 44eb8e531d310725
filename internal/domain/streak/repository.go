package streak

import (
	"context"
	"time"

	"github.com/alem-hub/progress-engine/internal/domain/shared"
)

// Repository - хранилище серий.
type Repository interface {
	// Get возвращает серию или shared.ErrNotFound.
	Get(ctx context.Context, userID shared.UserID) (*State, error)

	// Update атомарно читает серию (создавая пустую при отсутствии), применяет
	// fn и сохраняет результат, если fn вернула true.
	Update(ctx context.Context, userID shared.UserID, fn func(s *State) bool) (*State, error)

	// ListStale возвращает до limit серий с CurrentStreak > 0 и
	// LastActiveDate < cutoff.
	ListStale(ctx context.Context, cutoff time.Time, limit int) ([]*State, error)

	// ResetIfStale обнуляет серию только если она всё ещё устаревшая
	// относительно cutoff (compare-and-set).
	ResetIfStale(ctx context.Context, userID shared.UserID, cutoff, now time.Time) (bool, error)
}
