package main

import (
	"context"
	"fmt"
	"time"

	"github.com/alem-hub/progress-engine/config"
	"github.com/alem-hub/progress-engine/internal/domain/challenge"
	"github.com/alem-hub/progress-engine/internal/domain/ledger"
	"github.com/alem-hub/progress-engine/internal/domain/quest"
	"github.com/alem-hub/progress-engine/internal/domain/reward"
	"github.com/alem-hub/progress-engine/internal/domain/streak"
	"github.com/alem-hub/progress-engine/internal/infrastructure/catalog"
	"github.com/alem-hub/progress-engine/internal/infrastructure/metrics"
	"github.com/alem-hub/progress-engine/internal/infrastructure/persistence/cached"
	"github.com/alem-hub/progress-engine/internal/infrastructure/persistence/memory"
	"github.com/alem-hub/progress-engine/internal/infrastructure/persistence/postgres"
	redisstore "github.com/alem-hub/progress-engine/internal/infrastructure/persistence/redis"
	"github.com/alem-hub/progress-engine/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// STORAGE
// ══════════════════════════════════════════════════════════════════════════════

// storage is the set of repositories the engine runs on, whatever the driver.
type storage struct {
	driver string

	ledger      ledger.Repository
	quests      quest.Repository
	definitions quest.DefinitionRepository
	challenges  challenge.Repository
	streaks     streak.Repository
	balances    reward.BalanceRepository
	claims      reward.ClaimStore

	// catalogSink stores a parsed quest catalog in the underlying driver.
	catalogSink catalog.SinkFunc

	// purgeCatalog drops the in-process catalog cache after a reload.
	purgeCatalog func()

	ping  func(ctx context.Context) error
	close func()

	// poolStats is nil for the memory driver.
	poolStats func() postgres.PoolStats
}

func openStorage(ctx context.Context, cfg *config.Config, log *logger.Logger) (*storage, error) {
	var s *storage

	switch cfg.Database.Driver {
	case config.StoragePostgres:
		pgCfg := postgres.DefaultConfig()
		pgCfg.URL = cfg.Database.URL
		pgCfg.MaxConns = int32(cfg.Database.MaxConns)
		pgCfg.MinConns = int32(cfg.Database.MinConns)
		pgCfg.MaxConnLifetime = cfg.Database.ConnMaxLifetime
		pgCfg.MaxConnIdleTime = cfg.Database.ConnMaxIdleTime
		pgCfg.ConnectTimeout = cfg.Database.ConnectTimeout

		connectCtx, cancel := context.WithTimeout(ctx, cfg.Database.ConnectTimeout+30*time.Second)
		defer cancel()

		log.Info("connecting to postgres and applying migrations")
		pg, err := postgres.NewStore(connectCtx, pgCfg, cfg.Engine.Location)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		s = &storage{
			driver:      config.StoragePostgres,
			ledger:      pg.Ledger,
			quests:      pg.Quests,
			definitions: pg.Definitions,
			challenges:  pg.Challenges,
			streaks:     pg.Streaks,
			balances:    pg.Balances,
			claims:      pg.Claims,
			catalogSink: pg.Definitions.Upsert,
			ping:        pg.Ping,
			close:       pg.Close,
			poolStats:   pg.Connection().Stats,
		}

	default:
		log.Warn("using in-memory storage, state is lost on restart")
		mem := memory.NewStore()
		s = &storage{
			driver:      config.StorageMemory,
			ledger:      mem.Ledger,
			quests:      mem.Quests,
			definitions: mem.Definitions,
			challenges:  mem.Challenges,
			streaks:     mem.Streaks,
			balances:    mem.Balances,
			claims:      mem.Claims,
			catalogSink: func(_ context.Context, defs []quest.Definition) error {
				mem.Definitions.Replace(defs)
				return nil
			},
			ping:  mem.Ping,
			close: mem.Close,
		}
	}

	// Catalog and monthly definitions are read on every event; keep them in process.
	defs := cached.NewQuestDefinitions(s.definitions, cfg.Engine.CatalogCacheSize, cfg.Engine.CatalogCacheTTL)
	s.definitions = defs
	s.purgeCatalog = defs.Purge
	s.challenges = cached.NewChallenges(s.challenges, cfg.Engine.CatalogCacheSize)

	return s, nil
}

// withLeaderboardCache puts the Redis snapshot cache in front of the ledger.
func (s *storage) withLeaderboardCache(cache *redisstore.Cache, cfg config.RedisConfig, log *logger.Logger) {
	lb := redisstore.NewCachedLedgerRepository(s.ledger, cache,
		redisstore.WithSnapshotTTL(cfg.LeaderboardTTL),
		redisstore.WithKeyPrefix(cfg.KeyPrefix),
		redisstore.WithCacheLogger(log.Named("leaderboard_cache")),
	)
	s.ledger = lb
	s.claims = lb.WrapClaims(s.claims)
}

// reportPoolStats publishes connection pool gauges until ctx is done.
func (s *storage) reportPoolStats(ctx context.Context, m *metrics.Metrics, every time.Duration) {
	if s.poolStats == nil || m == nil {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		st := s.poolStats()
		m.SetPoolStats(st.TotalConns, st.IdleConns, st.AcquiredConns, st.MaxConns)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func openRedis(cfg config.RedisConfig) (*redisstore.Cache, error) {
	rc := redisstore.DefaultConfig()
	rc.Addr = cfg.Addr
	rc.Password = cfg.Password
	rc.DB = cfg.DB
	rc.PoolSize = cfg.PoolSize
	rc.MinIdleConns = cfg.MinIdleConns
	rc.DialTimeout = cfg.DialTimeout
	rc.ReadTimeout = cfg.ReadTimeout
	rc.WriteTimeout = cfg.WriteTimeout
	rc.KeyPrefix = cfg.KeyPrefix
	return redisstore.NewCache(rc)
}
