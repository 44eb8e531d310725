package memory

import (
	"context"
	"sync"
	"time"

	"github.com/alem-hub/progress-engine/internal/domain/reward"
	"github.com/alem-hub/progress-engine/internal/domain/shared"
)

// BalanceRepository implements reward.BalanceRepository.
type BalanceRepository struct {
	mu       sync.RWMutex
	balances map[shared.UserID]*reward.Balance
}

// NewBalanceRepository creates an empty repository.
func NewBalanceRepository() *BalanceRepository {
	return &BalanceRepository{balances: make(map[shared.UserID]*reward.Balance)}
}

// Add implements reward.BalanceRepository.
func (r *BalanceRepository) Add(ctx context.Context, userID shared.UserID, points, gems int, at time.Time) (*reward.Balance, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.addLocked(userID, points, gems, at), nil
}

func (r *BalanceRepository) addLocked(userID shared.UserID, points, gems int, at time.Time) *reward.Balance {
	b, ok := r.balances[userID]
	if !ok {
		b = &reward.Balance{UserID: userID}
		r.balances[userID] = b
	}
	b.Points += points
	b.Gems += gems
	b.UpdatedAt = at
	cp := *b
	return &cp
}

// Get implements reward.BalanceRepository.
func (r *BalanceRepository) Get(ctx context.Context, userID shared.UserID) (*reward.Balance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.balances[userID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *b
	return &cp, nil
}
