package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/alem-hub/progress-engine/internal/domain/quest"
	"github.com/alem-hub/progress-engine/internal/domain/shared"
)

type dailyKey struct {
	user shared.UserID
	date time.Time
}

// QuestRepository implements quest.Repository.
type QuestRepository struct {
	mu        sync.RWMutex
	instances map[string]*quest.Instance
	daily     map[dailyKey][]string
}

// NewQuestRepository creates an empty repository.
func NewQuestRepository() *QuestRepository {
	return &QuestRepository{
		instances: make(map[string]*quest.Instance),
		daily:     make(map[dailyKey][]string),
	}
}

func dayKey(userID shared.UserID, date time.Time) dailyKey {
	// Normalise the monotonic reading and location so equal instants compare equal.
	return dailyKey{user: userID, date: date.UTC().Round(0)}
}

// CreateDaily implements quest.Repository.
func (r *QuestRepository) CreateDaily(ctx context.Context, userID shared.UserID, date time.Time, batch []*quest.Instance) ([]*quest.Instance, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	key := dayKey(userID, date)
	if ids, ok := r.daily[key]; ok {
		return r.collectLocked(ids), false, nil
	}

	ids := make([]string, 0, len(batch))
	for _, inst := range batch {
		if _, exists := r.instances[inst.ID]; exists {
			return nil, false, shared.ErrAlreadyExists
		}
	}
	for _, inst := range batch {
		r.instances[inst.ID] = inst.Clone()
		ids = append(ids, inst.ID)
	}
	r.daily[key] = ids
	return r.collectLocked(ids), true, nil
}

func (r *QuestRepository) collectLocked(ids []string) []*quest.Instance {
	out := make([]*quest.Instance, 0, len(ids))
	for _, id := range ids {
		if inst, ok := r.instances[id]; ok {
			out = append(out, inst.Clone())
		}
	}
	return out
}

// Get implements quest.Repository.
func (r *QuestRepository) Get(ctx context.Context, id string) (*quest.Instance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	inst, ok := r.instances[id]
	if !ok {
		return nil, shared.ErrQuestNotFound
	}
	return inst.Clone(), nil
}

// ListByUserDate implements quest.Repository.
func (r *QuestRepository) ListByUserDate(ctx context.Context, userID shared.UserID, date time.Time) ([]*quest.Instance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.collectLocked(r.daily[dayKey(userID, date)]), nil
}

// ListClaimable implements quest.Repository.
func (r *QuestRepository) ListClaimable(ctx context.Context, userID shared.UserID, now time.Time) ([]*quest.Instance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*quest.Instance, 0)
	for _, inst := range r.instances {
		if inst.UserID == userID && inst.Status == quest.StatusCompleted && !inst.Claimed && !inst.IsOverdue(now) {
			out = append(out, inst.Clone())
		}
	}
	sortInstances(out)
	return out, nil
}

// ListOverdue implements quest.Repository.
func (r *QuestRepository) ListOverdue(ctx context.Context, now time.Time, limit int) ([]*quest.Instance, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*quest.Instance, 0)
	for _, inst := range r.instances {
		if !inst.Status.IsTerminal() && inst.IsOverdue(now) {
			out = append(out, inst.Clone())
		}
	}
	sortInstances(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// CountCompleted implements quest.Repository.
func (r *QuestRepository) CountCompleted(ctx context.Context, userID shared.UserID, from, to time.Time) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, inst := range r.instances {
		if inst.UserID != userID || !inst.Status.CountsAsCompleted() {
			continue
		}
		if !inst.Date.Before(from) && inst.Date.Before(to) {
			n++
		}
	}
	return n, nil
}

// AddProgress implements quest.Repository.
func (r *QuestRepository) AddProgress(ctx context.Context, id string, amount int, now time.Time) (*quest.Instance, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	inst, ok := r.instances[id]
	if !ok {
		return nil, false, shared.ErrQuestNotFound
	}
	completed, err := inst.AddProgress(amount, now)
	if err != nil {
		return nil, false, err
	}
	return inst.Clone(), completed, nil
}

// Expire implements quest.Repository.
func (r *QuestRepository) Expire(ctx context.Context, id string, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	inst, ok := r.instances[id]
	if !ok {
		return false, shared.ErrQuestNotFound
	}
	return inst.Expire(now), nil
}

func sortInstances(out []*quest.Instance) {
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].ID < out[j].ID
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// DEFINITIONS
// ══════════════════════════════════════════════════════════════════════════════

// DefinitionRepository implements quest.DefinitionRepository over a fixed
// catalog. An empty catalog makes the tracker fall back to the built-in set.
type DefinitionRepository struct {
	mu    sync.RWMutex
	order []string
	defs  map[string]quest.Definition
}

// NewDefinitionRepository creates a catalog from defs.
func NewDefinitionRepository(defs []quest.Definition) *DefinitionRepository {
	r := &DefinitionRepository{defs: make(map[string]quest.Definition, len(defs))}
	r.Replace(defs)
	return r
}

// Replace swaps the whole catalog.
func (r *DefinitionRepository) Replace(defs []quest.Definition) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.order = r.order[:0]
	r.defs = make(map[string]quest.Definition, len(defs))
	for _, d := range defs {
		if _, dup := r.defs[d.ID]; !dup {
			r.order = append(r.order, d.ID)
		}
		r.defs[d.ID] = d
	}
}

// ListActive implements quest.DefinitionRepository.
func (r *DefinitionRepository) ListActive(ctx context.Context) ([]quest.Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]quest.Definition, 0, len(r.order))
	for _, id := range r.order {
		if d := r.defs[id]; d.Active {
			out = append(out, d)
		}
	}
	return out, nil
}

// GetDefinition implements quest.DefinitionRepository.
func (r *DefinitionRepository) GetDefinition(ctx context.Context, id string) (*quest.Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.defs[id]
	if !ok {
		return nil, shared.ErrQuestDefinitionNotFound
	}
	return &d, nil
}
