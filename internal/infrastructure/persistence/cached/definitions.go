// Package cached provides in-process LRU decorators for read-mostly
// repositories: the quest catalog and monthly challenge definitions.
package cached

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"

	"github.com/alem-hub/progress-engine/internal/domain/challenge"
	"github.com/alem-hub/progress-engine/internal/domain/quest"
)

// DefaultSize is the LRU capacity used when a non-positive size is given.
const DefaultSize = 256

// ══════════════════════════════════════════════════════════════════════════════
// QUEST CATALOG
// ══════════════════════════════════════════════════════════════════════════════

// QuestDefinitions caches quest.DefinitionRepository lookups.
// The active list is held for ttl; single definitions stay until evicted or purged.
type QuestDefinitions struct {
	inner quest.DefinitionRepository
	byID  *lru.Cache
	ttl   time.Duration
	now   func() time.Time

	mu       sync.Mutex
	active   []quest.Definition
	loadedAt time.Time
}

var _ quest.DefinitionRepository = (*QuestDefinitions)(nil)

// NewQuestDefinitions wraps inner. ttl <= 0 caches the active list until Purge.
func NewQuestDefinitions(inner quest.DefinitionRepository, size int, ttl time.Duration) *QuestDefinitions {
	if size <= 0 {
		size = DefaultSize
	}
	cache, _ := lru.New(size)
	return &QuestDefinitions{inner: inner, byID: cache, ttl: ttl, now: time.Now}
}

// ListActive implements quest.DefinitionRepository.
func (c *QuestDefinitions) ListActive(ctx context.Context) ([]quest.Definition, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active != nil && (c.ttl <= 0 || c.now().Sub(c.loadedAt) < c.ttl) {
		return append([]quest.Definition(nil), c.active...), nil
	}

	defs, err := c.inner.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	c.active = append([]quest.Definition{}, defs...)
	c.loadedAt = c.now()
	for i := range defs {
		d := defs[i]
		c.byID.Add(d.ID, d)
	}
	return defs, nil
}

// GetDefinition implements quest.DefinitionRepository.
func (c *QuestDefinitions) GetDefinition(ctx context.Context, id string) (*quest.Definition, error) {
	if v, ok := c.byID.Get(id); ok {
		d := v.(quest.Definition)
		return &d, nil
	}
	d, err := c.inner.GetDefinition(ctx, id)
	if err != nil {
		return nil, err
	}
	c.byID.Add(id, *d)
	return d, nil
}

// Purge drops everything; called after the catalog is reloaded.
func (c *QuestDefinitions) Purge() {
	c.mu.Lock()
	c.active = nil
	c.mu.Unlock()
	c.byID.Purge()
}

// ══════════════════════════════════════════════════════════════════════════════
// MONTHLY CHALLENGES
// ══════════════════════════════════════════════════════════════════════════════

// Challenges caches monthly challenge definitions, which never change once
// created. Participation rows pass straight through.
type Challenges struct {
	challenge.Repository

	byMonth *lru.Cache
	byID    *lru.Cache
}

var _ challenge.Repository = (*Challenges)(nil)

// NewChallenges wraps inner.
func NewChallenges(inner challenge.Repository, size int) *Challenges {
	if size <= 0 {
		size = DefaultSize
	}
	byMonth, _ := lru.New(size)
	byID, _ := lru.New(size)
	return &Challenges{Repository: inner, byMonth: byMonth, byID: byID}
}

func (c *Challenges) remember(d *challenge.Definition) {
	c.byMonth.Add(d.Key, *d)
	c.byID.Add(d.ID, *d)
}

// GetOrCreateDefinition implements challenge.Repository.
func (c *Challenges) GetOrCreateDefinition(ctx context.Context, candidate *challenge.Definition) (*challenge.Definition, error) {
	if v, ok := c.byMonth.Get(candidate.Key); ok {
		d := v.(challenge.Definition)
		return &d, nil
	}
	d, err := c.Repository.GetOrCreateDefinition(ctx, candidate)
	if err != nil {
		return nil, err
	}
	c.remember(d)
	return d, nil
}

// GetDefinition implements challenge.Repository.
func (c *Challenges) GetDefinition(ctx context.Context, id string) (*challenge.Definition, error) {
	if v, ok := c.byID.Get(id); ok {
		d := v.(challenge.Definition)
		return &d, nil
	}
	d, err := c.Repository.GetDefinition(ctx, id)
	if err != nil {
		return nil, err
	}
	c.remember(d)
	return d, nil
}
