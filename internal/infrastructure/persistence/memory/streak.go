package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/alem-hub/progress-engine/internal/domain/shared"
	"github.com/alem-hub/progress-engine/internal/domain/streak"
)

// StreakRepository implements streak.Repository.
type StreakRepository struct {
	mu     sync.RWMutex
	states map[shared.UserID]*streak.State
}

// NewStreakRepository creates an empty repository.
func NewStreakRepository() *StreakRepository {
	return &StreakRepository{states: make(map[shared.UserID]*streak.State)}
}

// Get implements streak.Repository.
func (r *StreakRepository) Get(ctx context.Context, userID shared.UserID) (*streak.State, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.states[userID]
	if !ok {
		return nil, shared.ErrStreakNotFound
	}
	return s.Clone(), nil
}

// Update implements streak.Repository.
func (r *StreakRepository) Update(ctx context.Context, userID shared.UserID, fn func(s *streak.State) bool) (*streak.State, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.states[userID]
	if !ok {
		current = streak.NewState(userID)
	}
	next := current.Clone()
	if fn(next) || !ok {
		r.states[userID] = next
	}
	return next.Clone(), nil
}

// ListStale implements streak.Repository.
func (r *StreakRepository) ListStale(ctx context.Context, cutoff time.Time, limit int) ([]*streak.State, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*streak.State, 0)
	for _, s := range r.states {
		if s.IsStale(cutoff) {
			out = append(out, s.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ResetIfStale implements streak.Repository.
func (r *StreakRepository) ResetIfStale(ctx context.Context, userID shared.UserID, cutoff, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.states[userID]
	if !ok {
		return false, shared.ErrStreakNotFound
	}
	if !s.IsStale(cutoff) {
		return false, nil
	}
	return s.Reset(now), nil
}
