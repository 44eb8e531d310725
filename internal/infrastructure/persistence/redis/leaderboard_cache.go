package redis

import (
	"context"
	"errors"
	"time"

	"github.com/alem-hub/progress-engine/internal/domain/ledger"
	"github.com/alem-hub/progress-engine/internal/domain/reward"
	"github.com/alem-hub/progress-engine/internal/domain/shared"
	"github.com/alem-hub/progress-engine/pkg/circuitbreaker"
	"github.com/alem-hub/progress-engine/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// SNAPSHOT STORE
// ══════════════════════════════════════════════════════════════════════════════

// SnapshotStore is the subset of Cache used by the leaderboard decorator.
type SnapshotStore interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

var _ SnapshotStore = (*Cache)(nil)

// ══════════════════════════════════════════════════════════════════════════════
// CACHED LEDGER REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// CachedLedgerRepository decorates a ledger.Repository with a read-through
// cache of whole-week rankings. Writes go to the inner repository first and
// then drop the affected week's snapshot, so a reader never sees a snapshot
// older than the last acknowledged write plus the TTL.
//
// All cache calls run through a circuit breaker; when Redis misbehaves the
// decorator degrades to the inner repository.
type CachedLedgerRepository struct {
	inner   ledger.Repository
	store   SnapshotStore
	breaker *circuitbreaker.CircuitBreaker
	ttl     time.Duration
	prefix  string
	log     *logger.Logger
}

var _ ledger.Repository = (*CachedLedgerRepository)(nil)

// CachedLedgerOption configures CachedLedgerRepository.
type CachedLedgerOption func(*CachedLedgerRepository)

// WithSnapshotTTL overrides TTLLeaderboardSnapshot.
func WithSnapshotTTL(ttl time.Duration) CachedLedgerOption {
	return func(r *CachedLedgerRepository) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// WithBreaker replaces the default circuit breaker.
func WithBreaker(cb *circuitbreaker.CircuitBreaker) CachedLedgerOption {
	return func(r *CachedLedgerRepository) {
		if cb != nil {
			r.breaker = cb
		}
	}
}

// WithKeyPrefix namespaces snapshot keys.
func WithKeyPrefix(prefix string) CachedLedgerOption {
	return func(r *CachedLedgerRepository) {
		r.prefix = prefix
	}
}

// WithCacheLogger sets the logger.
func WithCacheLogger(l *logger.Logger) CachedLedgerOption {
	return func(r *CachedLedgerRepository) {
		if l != nil {
			r.log = l
		}
	}
}

// NewCachedLedgerRepository wraps inner with a snapshot cache.
func NewCachedLedgerRepository(inner ledger.Repository, store SnapshotStore, opts ...CachedLedgerOption) *CachedLedgerRepository {
	r := &CachedLedgerRepository{
		inner: inner,
		store: store,
		ttl:   TTLLeaderboardSnapshot,
		log:   logger.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.breaker == nil {
		r.breaker = circuitbreaker.New("leaderboard-cache",
			circuitbreaker.WithFailureThreshold(5),
			circuitbreaker.WithCoolDown(30*time.Second),
			circuitbreaker.WithIsFailure(func(err error) bool {
				return !errors.Is(err, ErrCacheMiss)
			}),
		)
	}
	return r
}

func (r *CachedLedgerRepository) key(k ledger.WeekKey) string {
	return r.prefix + LeaderboardKey(k.Year, k.Week)
}

// invalidate drops a week snapshot; failures are logged and the TTL bounds staleness.
func (r *CachedLedgerRepository) invalidate(ctx context.Context, k ledger.WeekKey) {
	err := r.breaker.Execute(ctx, func(ctx context.Context) error {
		return r.store.Delete(ctx, r.key(k))
	})
	if err != nil {
		r.log.Warn("leaderboard snapshot invalidation failed",
			logger.Week(k.Year, k.Week), logger.Err(err))
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Writes
// ──────────────────────────────────────────────────────────────────────────────

// Increment implements ledger.Repository.
func (r *CachedLedgerRepository) Increment(ctx context.Context, userID shared.UserID, key ledger.WeekKey, amount int, at time.Time) (*ledger.WeeklyXPEntry, error) {
	entry, err := r.inner.Increment(ctx, userID, key, amount, at)
	if err != nil {
		return nil, err
	}
	r.invalidate(ctx, key)
	return entry, nil
}

// Ensure implements ledger.Repository. The snapshot is dropped only when the
// call created the entry.
func (r *CachedLedgerRepository) Ensure(ctx context.Context, userID shared.UserID, key ledger.WeekKey, at time.Time) (*ledger.WeeklyXPEntry, error) {
	entry, err := r.inner.Ensure(ctx, userID, key, at)
	if err != nil {
		return nil, err
	}
	if entry.CreatedAt.Equal(at) {
		r.invalidate(ctx, key)
	}
	return entry, nil
}

// SeedWeek implements ledger.Repository.
func (r *CachedLedgerRepository) SeedWeek(ctx context.Context, from, to ledger.WeekKey, at time.Time) (int, error) {
	n, err := r.inner.SeedWeek(ctx, from, to, at)
	if err != nil {
		return n, err
	}
	if n > 0 {
		r.invalidate(ctx, to)
	}
	return n, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Reads
// ──────────────────────────────────────────────────────────────────────────────

// Get implements ledger.Repository.
func (r *CachedLedgerRepository) Get(ctx context.Context, userID shared.UserID, key ledger.WeekKey) (*ledger.WeeklyXPEntry, error) {
	return r.inner.Get(ctx, userID, key)
}

// ListUser implements ledger.Repository.
func (r *CachedLedgerRepository) ListUser(ctx context.Context, userID shared.UserID, limit int) ([]*ledger.WeeklyXPEntry, error) {
	return r.inner.ListUser(ctx, userID, limit)
}

// ListWeek serves the week from the snapshot when present and fills it on a miss.
func (r *CachedLedgerRepository) ListWeek(ctx context.Context, key ledger.WeekKey) ([]*ledger.WeeklyXPEntry, error) {
	var cached []*ledger.WeeklyXPEntry
	err := r.breaker.Execute(ctx, func(ctx context.Context) error {
		return r.store.Get(ctx, r.key(key), &cached)
	})
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		r.log.Debug("leaderboard snapshot read skipped",
			logger.Week(key.Year, key.Week), logger.Err(err))
	}

	entries, err := r.inner.ListWeek(ctx, key)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return entries, nil
	}

	err = r.breaker.Execute(ctx, func(ctx context.Context) error {
		return r.store.Set(ctx, r.key(key), entries, r.ttl)
	})
	if err != nil {
		r.log.Debug("leaderboard snapshot write skipped",
			logger.Week(key.Year, key.Week), logger.Err(err))
	}
	return entries, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// CLAIMS
// ══════════════════════════════════════════════════════════════════════════════

// WrapClaims returns a reward.ClaimStore that drops the week snapshot after
// every committed claim, since claims credit XP without going through Increment.
func (r *CachedLedgerRepository) WrapClaims(inner reward.ClaimStore) reward.ClaimStore {
	return &cachedClaims{inner: inner, ledger: r}
}

type cachedClaims struct {
	inner  reward.ClaimStore
	ledger *CachedLedgerRepository
}

func (c *cachedClaims) ClaimQuest(ctx context.Context, instanceID string, g reward.Grant) (*reward.Commit, error) {
	commit, err := c.inner.ClaimQuest(ctx, instanceID, g)
	c.afterCommit(ctx, commit, err, g)
	return commit, err
}

func (c *cachedClaims) ClaimChallenge(ctx context.Context, progressID string, g reward.Grant) (*reward.Commit, error) {
	commit, err := c.inner.ClaimChallenge(ctx, progressID, g)
	c.afterCommit(ctx, commit, err, g)
	return commit, err
}

func (c *cachedClaims) afterCommit(ctx context.Context, commit *reward.Commit, err error, g reward.Grant) {
	if err == nil && commit != nil && commit.Swapped {
		c.ledger.invalidate(ctx, g.Week)
	}
}
