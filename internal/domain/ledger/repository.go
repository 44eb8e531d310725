package ledger

import (
	"context"
	"time"

	"github.com/alem-hub/progress-engine/internal/domain/shared"
)

// Repository - порт хранилища недельных записей XP.
// Реализации обязаны выполнять Increment атомарно для ключа (user, year, week):
// параллельные начисления не должны теряться.
type Repository interface {
	// ──────────────────────────────────────────────────────────────────────────
	// Запись
	// ──────────────────────────────────────────────────────────────────────────

	// Increment атомарно создаёт запись или прибавляет amount к XP.
	Increment(ctx context.Context, userID shared.UserID, key WeekKey, amount int, at time.Time) (*WeeklyXPEntry, error)

	// Ensure создаёт запись с XP = 0, если её ещё нет, и возвращает актуальную.
	Ensure(ctx context.Context, userID shared.UserID, key WeekKey, at time.Time) (*WeeklyXPEntry, error)

	// SeedWeek создаёт пустые записи в неделе to для всех пользователей,
	// у которых есть запись в неделе from. Возвращает число созданных записей.
	SeedWeek(ctx context.Context, from, to WeekKey, at time.Time) (int, error)

	// ──────────────────────────────────────────────────────────────────────────
	// Чтение
	// ──────────────────────────────────────────────────────────────────────────

	// Get возвращает запись или shared.ErrNotFound.
	Get(ctx context.Context, userID shared.UserID, key WeekKey) (*WeeklyXPEntry, error)

	// ListWeek возвращает все записи недели в порядке ранжирования:
	// XP по убыванию, затем Seq по возрастанию.
	ListWeek(ctx context.Context, key WeekKey) ([]*WeeklyXPEntry, error)

	// ListUser возвращает записи пользователя, новые недели первыми.
	ListUser(ctx context.Context, userID shared.UserID, limit int) ([]*WeeklyXPEntry, error)
}
