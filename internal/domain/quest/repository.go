package quest

import (
	"context"
	"time"

	"github.com/alem-hub/progress-engine/internal/domain/shared"
)

// DefinitionRepository - каталог квестов (только чтение).
type DefinitionRepository interface {
	// ListActive возвращает активные определения.
	ListActive(ctx context.Context) ([]Definition, error)

	// GetDefinition возвращает определение или shared.ErrNotFound.
	GetDefinition(ctx context.Context, id string) (*Definition, error)
}

// Repository - хранилище экземпляров квестов.
// Все изменяющие методы атомарны по отношению к одному экземпляру.
type Repository interface {
	// ──────────────────────────────────────────────────────────────────────────
	// Генерация
	// ──────────────────────────────────────────────────────────────────────────

	// CreateDaily сохраняет набор квестов дня, только если у пользователя ещё
	// нет квестов на date. Возвращает фактический набор дня и признак создания.
	CreateDaily(ctx context.Context, userID shared.UserID, date time.Time, batch []*Instance) ([]*Instance, bool, error)

	// ──────────────────────────────────────────────────────────────────────────
	// Чтение
	// ──────────────────────────────────────────────────────────────────────────

	// Get возвращает экземпляр или shared.ErrNotFound.
	Get(ctx context.Context, id string) (*Instance, error)

	// ListByUserDate возвращает квесты пользователя на день.
	ListByUserDate(ctx context.Context, userID shared.UserID, date time.Time) ([]*Instance, error)

	// ListClaimable возвращает COMPLETED и незабранные экземпляры со сроком после now.
	ListClaimable(ctx context.Context, userID shared.UserID, now time.Time) ([]*Instance, error)

	// ListOverdue возвращает до limit просроченных экземпляров не в терминальном состоянии.
	ListOverdue(ctx context.Context, now time.Time, limit int) ([]*Instance, error)

	// CountCompleted считает экземпляры в COMPLETED/CLAIMED с датой в [from, to).
	CountCompleted(ctx context.Context, userID shared.UserID, from, to time.Time) (int, error)

	// ──────────────────────────────────────────────────────────────────────────
	// Переходы состояний
	// ──────────────────────────────────────────────────────────────────────────

	// AddProgress атомарно прибавляет amount с ограничением по таргету.
	// completed == true ровно у одного вызова - того, что перевёл квест в COMPLETED.
	AddProgress(ctx context.Context, id string, amount int, now time.Time) (inst *Instance, completed bool, err error)

	// Переход в CLAIMED выполняет только reward.ClaimStore вместе с начислением.

	// Expire - compare-and-set просроченного нетерминального экземпляра в EXPIRED.
	Expire(ctx context.Context, id string, now time.Time) (bool, error)
}
