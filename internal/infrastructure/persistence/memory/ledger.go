package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/alem-hub/progress-engine/internal/domain/ledger"
	"github.com/alem-hub/progress-engine/internal/domain/shared"
)

type ledgerKey struct {
	user shared.UserID
	week ledger.WeekKey
}

// LedgerRepository implements ledger.Repository.
type LedgerRepository struct {
	mu      sync.RWMutex
	entries map[ledgerKey]*ledger.WeeklyXPEntry
	seq     int64
}

// NewLedgerRepository creates an empty repository.
func NewLedgerRepository() *LedgerRepository {
	return &LedgerRepository{entries: make(map[ledgerKey]*ledger.WeeklyXPEntry)}
}

func (r *LedgerRepository) upsertLocked(userID shared.UserID, key ledger.WeekKey, at time.Time) (*ledger.WeeklyXPEntry, bool) {
	k := ledgerKey{userID, key}
	if e, ok := r.entries[k]; ok {
		return e, false
	}
	r.seq++
	e := &ledger.WeeklyXPEntry{
		UserID:    userID,
		Key:       key,
		Seq:       r.seq,
		CreatedAt: at,
		UpdatedAt: at,
	}
	r.entries[k] = e
	return e, true
}

// Increment implements ledger.Repository.
func (r *LedgerRepository) Increment(ctx context.Context, userID shared.UserID, key ledger.WeekKey, amount int, at time.Time) (*ledger.WeeklyXPEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.incrementLocked(userID, key, amount, at), nil
}

func (r *LedgerRepository) incrementLocked(userID shared.UserID, key ledger.WeekKey, amount int, at time.Time) *ledger.WeeklyXPEntry {
	e, _ := r.upsertLocked(userID, key, at)
	e.XP += amount
	e.UpdatedAt = at
	cp := *e
	return &cp
}

// Ensure implements ledger.Repository.
func (r *LedgerRepository) Ensure(ctx context.Context, userID shared.UserID, key ledger.WeekKey, at time.Time) (*ledger.WeeklyXPEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	e, _ := r.upsertLocked(userID, key, at)
	cp := *e
	return &cp, nil
}

// SeedWeek implements ledger.Repository.
func (r *LedgerRepository) SeedWeek(ctx context.Context, from, to ledger.WeekKey, at time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	// Deterministic creation order: by the source week's ranking order.
	source := make([]*ledger.WeeklyXPEntry, 0)
	for k, e := range r.entries {
		if k.week == from {
			source = append(source, e)
		}
	}
	sortRanking(source)

	created := 0
	for _, e := range source {
		if _, ok := r.upsertLocked(e.UserID, to, at); ok {
			created++
		}
	}
	return created, nil
}

// Get implements ledger.Repository.
func (r *LedgerRepository) Get(ctx context.Context, userID shared.UserID, key ledger.WeekKey) (*ledger.WeeklyXPEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[ledgerKey{userID, key}]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

// ListWeek implements ledger.Repository.
func (r *LedgerRepository) ListWeek(ctx context.Context, key ledger.WeekKey) ([]*ledger.WeeklyXPEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*ledger.WeeklyXPEntry, 0)
	for k, e := range r.entries {
		if k.week == key {
			cp := *e
			out = append(out, &cp)
		}
	}
	sortRanking(out)
	return out, nil
}

// ListUser implements ledger.Repository.
func (r *LedgerRepository) ListUser(ctx context.Context, userID shared.UserID, limit int) ([]*ledger.WeeklyXPEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*ledger.WeeklyXPEntry, 0)
	for k, e := range r.entries {
		if k.user == userID {
			cp := *e
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[j].Key.Before(out[i].Key) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func sortRanking(rows []*ledger.WeeklyXPEntry) {
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].XP != rows[j].XP {
			return rows[i].XP > rows[j].XP
		}
		return rows[i].Seq < rows[j].Seq
	})
}
