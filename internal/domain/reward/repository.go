package reward

import (
	"context"
	"time"

	"github.com/alem-hub/progress-engine/internal/domain/ledger"
	"github.com/alem-hub/progress-engine/internal/domain/quest"
	"github.com/alem-hub/progress-engine/internal/domain/shared"
)

// Grant - то, что начисляется вместе с переводом цели в "забрано".
type Grant struct {
	UserID shared.UserID
	Reward shared.Reward
	Week   ledger.WeekKey
	At     time.Time
}

// Commit - результат атомарного получения награды.
type Commit struct {
	// Swapped == false: условие CAS не выполнилось, ничего не начислено.
	Swapped bool

	// Quest - состояние экземпляра после операции (только для квестов).
	Quest *quest.Instance

	// Entry и Balance заполнены, только если Swapped.
	Entry   *ledger.WeeklyXPEntry
	Balance *Balance
}

// ClaimStore - единица работы получения награды: CAS цели, начисление XP в
// недельную запись и пополнение счёта происходят вместе или не происходят вовсе.
// Сбой на любом шаге оставляет цель незабранной.
type ClaimStore interface {
	// ClaimQuest - CAS COMPLETED/незабран/не просрочен → CLAIMED плюс начисление.
	// При Swapped == false Quest - текущее состояние экземпляра.
	ClaimQuest(ctx context.Context, instanceID string, g Grant) (*Commit, error)

	// ClaimChallenge - CAS claimed=false → true для строки участия плюс начисление.
	ClaimChallenge(ctx context.Context, progressID string, g Grant) (*Commit, error)
}
