package memory

import (
	"context"
	"sync"
	"time"

	"github.com/alem-hub/progress-engine/internal/domain/challenge"
	"github.com/alem-hub/progress-engine/internal/domain/shared"
)

type participationKey struct {
	user        shared.UserID
	challengeID string
}

// ChallengeRepository implements challenge.Repository.
type ChallengeRepository struct {
	mu          sync.RWMutex
	definitions map[string]*challenge.Definition
	byMonth     map[challenge.MonthKey]string
	progress    map[string]*challenge.Progress
	byUser      map[participationKey]string
}

// NewChallengeRepository creates an empty repository.
func NewChallengeRepository() *ChallengeRepository {
	return &ChallengeRepository{
		definitions: make(map[string]*challenge.Definition),
		byMonth:     make(map[challenge.MonthKey]string),
		progress:    make(map[string]*challenge.Progress),
		byUser:      make(map[participationKey]string),
	}
}

// GetOrCreateDefinition implements challenge.Repository.
func (r *ChallengeRepository) GetOrCreateDefinition(ctx context.Context, candidate *challenge.Definition) (*challenge.Definition, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.byMonth[candidate.Key]; ok {
		d := *r.definitions[id]
		return &d, nil
	}
	d := *candidate
	r.definitions[d.ID] = &d
	r.byMonth[d.Key] = d.ID
	cp := d
	return &cp, nil
}

// GetDefinition implements challenge.Repository.
func (r *ChallengeRepository) GetDefinition(ctx context.Context, id string) (*challenge.Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.definitions[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

// EnsureProgress implements challenge.Repository.
func (r *ChallengeRepository) EnsureProgress(ctx context.Context, candidate *challenge.Progress) (*challenge.Progress, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	key := participationKey{candidate.UserID, candidate.ChallengeID}
	if id, ok := r.byUser[key]; ok {
		return cloneProgress(r.progress[id]), nil
	}
	p := cloneProgress(candidate)
	r.progress[p.ID] = p
	r.byUser[key] = p.ID
	return cloneProgress(p), nil
}

// GetProgress implements challenge.Repository.
func (r *ChallengeRepository) GetProgress(ctx context.Context, id string) (*challenge.Progress, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.progress[id]
	if !ok {
		return nil, shared.ErrChallengeNotFound
	}
	return cloneProgress(p), nil
}

// markClaimedLocked flips claimed once; the caller holds r.mu.
func (r *ChallengeRepository) markClaimedLocked(progressID string, now time.Time) (bool, error) {
	p, ok := r.progress[progressID]
	if !ok {
		return false, shared.ErrChallengeNotFound
	}
	if p.Claimed {
		return false, nil
	}
	p.Claimed = true
	claimedAt := now
	p.ClaimedAt = &claimedAt
	return true, nil
}

func cloneProgress(p *challenge.Progress) *challenge.Progress {
	cp := *p
	if p.ClaimedAt != nil {
		t := *p.ClaimedAt
		cp.ClaimedAt = &t
	}
	return &cp
}
