// Package main is the progress engine worker.
//
// The worker consumes learning-activity events, keeps the XP ledger, quests,
// monthly challenges and streaks up to date, and runs the maintenance jobs
// (weekly window seeding, stale streak sweep, overdue quest expiry). It serves
// /healthz, /readyz and /metrics on the ops address.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alem-hub/progress-engine/config"
	"github.com/alem-hub/progress-engine/internal/application/eventhandler"
	"github.com/alem-hub/progress-engine/internal/domain/shared"
	"github.com/alem-hub/progress-engine/internal/infrastructure/catalog"
	"github.com/alem-hub/progress-engine/internal/infrastructure/messaging"
	"github.com/alem-hub/progress-engine/internal/infrastructure/metrics"
	redisstore "github.com/alem-hub/progress-engine/internal/infrastructure/persistence/redis"
	"github.com/alem-hub/progress-engine/internal/infrastructure/scheduler"
	"github.com/alem-hub/progress-engine/internal/infrastructure/scheduler/jobs"
	opshttp "github.com/alem-hub/progress-engine/internal/interface/http"
	"github.com/alem-hub/progress-engine/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

// eventBus is what the worker needs from either bus implementation.
type eventBus interface {
	shared.EventBus
	Close() error
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. Configuration and logging
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.New(logger.Options{
		Output:      os.Stdout,
		Level:       logger.ParseLevel(cfg.Observability.LogLevel),
		Development: cfg.Observability.LogFormat == "console",
		AddCaller:   true,
	}).Named("worker")
	defer func() { _ = log.Sync() }()

	log.Info("starting progress engine worker",
		logger.String("env", string(cfg.App.Environment)),
		logger.String("version", cfg.App.Version),
		logger.String("storage", cfg.Database.Driver),
		logger.String("timezone", cfg.Engine.Location.String()),
	)

	m := metrics.New()

	// ─────────────────────────────────────────────────────────────────────────
	// 2. Storage
	// ─────────────────────────────────────────────────────────────────────────
	store, err := openStorage(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("closing storage")
		store.close()
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 3. Redis (optional): leaderboard cache, job locks, distributed events
	// ─────────────────────────────────────────────────────────────────────────
	var cache *redisstore.Cache
	if cfg.Redis.Enabled {
		cache, err = openRedis(cfg.Redis)
		switch {
		case err != nil && cfg.Events.Distributed:
			return fmt.Errorf("connect redis: %w", err)
		case err != nil:
			log.Warn("redis unavailable, running without cache and job locks", logger.Err(err))
			cache = nil
		default:
			defer func() { _ = cache.Close() }()
			store.withLeaderboardCache(cache, cfg.Redis, log)
			log.Info("redis connection established", logger.String("addr", cfg.Redis.Addr))
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. Event bus
	// ─────────────────────────────────────────────────────────────────────────
	busConfig := messaging.InMemoryEventBusConfig{
		AsyncMode:      cfg.Events.Async,
		WorkerPoolSize: cfg.Events.WorkerPoolSize,
		Logger:         log,
		Recorder:       m,
	}
	var bus eventBus
	if cfg.Events.Distributed && cache != nil {
		bus, err = messaging.NewRedisEventBus(messaging.RedisEventBusConfig{
			Client:         messaging.NewRedisPubSub(cache),
			ChannelPrefix:  cfg.Redis.KeyPrefix + redisstore.PrefixPubSub,
			LocalBusConfig: busConfig,
			Logger:         log,
		})
		if err != nil {
			return fmt.Errorf("start redis event bus: %w", err)
		}
	} else {
		bus = messaging.NewInMemoryEventBus(busConfig)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. Engine services and subscribers
	// ─────────────────────────────────────────────────────────────────────────
	app := newApplication(cfg, store, bus, m, log)

	deadLetters := messaging.NewDeadLetterQueue(cfg.Events.DeadLetterSize)
	wrap := func(name string, h shared.EventHandler) shared.EventHandler {
		return messaging.Chain(h,
			messaging.RecoveryMiddleware(log),
			messaging.LoggingMiddleware(log, name),
			messaging.DeadLetterMiddleware(deadLetters, name, app.clock.Now),
			messaging.TimeoutMiddleware(cfg.Events.HandlerTimeout),
		)
	}
	if err := eventhandler.Register(bus, app.handlers, wrap); err != nil {
		return fmt.Errorf("register event handlers: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. Quest catalog
	// ─────────────────────────────────────────────────────────────────────────
	loader := catalog.NewLoader(cfg.Engine.QuestCatalogPath, store.catalogSink, log.Named("catalog"), store.purgeCatalog)
	if _, err := loader.Reload(ctx); err != nil {
		return fmt.Errorf("load quest catalog: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 7. Scheduler
	// ─────────────────────────────────────────────────────────────────────────
	sched, err := newScheduler(cfg, app, cache, m, log)
	if err != nil {
		return err
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 8. Ops HTTP
	// ─────────────────────────────────────────────────────────────────────────
	health := opshttp.NewHealthChecker(cfg.App.Version)
	health.AddCheck("storage", store.ping)
	if cache != nil {
		health.AddCheck("redis", cache.Ping)
	}

	opsDeps := opshttp.Dependencies{Logger: log, Health: health}
	if cfg.Observability.MetricsEnabled {
		opsDeps.Metrics = m.Handler()
	}
	opsCfg := opshttp.DefaultConfig()
	opsCfg.Addr = cfg.Observability.OpsAddr
	ops := opshttp.NewServer(opsCfg, opsDeps)

	opsErr, err := ops.StartAsync()
	if err != nil {
		return fmt.Errorf("start ops http: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 9. Run
	// ─────────────────────────────────────────────────────────────────────────
	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	go store.reportPoolStats(runCtx, m, 15*time.Second)

	if cfg.Scheduler.Enabled {
		if err := sched.Start(runCtx); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
	} else {
		log.Info("scheduler disabled")
	}

	log.Info("progress engine worker is running", logger.String("ops_addr", ops.Address()))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigCh)

	var runErr error
wait:
	for {
		select {
		case sig := <-sigCh:
			if sig == syscall.SIGHUP {
				if _, err := loader.Reload(runCtx); err != nil {
					log.Error("quest catalog reload failed", logger.Err(err))
				}
				continue
			}
			log.Info("received shutdown signal", logger.String("signal", sig.String()))
			break wait
		case err, ok := <-opsErr:
			if ok && err != nil {
				runErr = fmt.Errorf("ops http: %w", err)
			}
			break wait
		case <-ctx.Done():
			break wait
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 10. Graceful shutdown
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("starting graceful shutdown", logger.Duration("timeout", cfg.App.ShutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if sched.IsRunning() {
		if err := sched.Stop(); err != nil && !errors.Is(err, scheduler.ErrSchedulerNotRunning) {
			log.Warn("scheduler stop", logger.Err(err))
		}
	}
	stop()

	if err := ops.Shutdown(shutdownCtx); err != nil {
		log.Warn("ops http shutdown", logger.Err(err))
	}

	// Close drains in-flight handlers before storage goes away.
	if err := bus.Close(); err != nil {
		log.Warn("event bus close", logger.Err(err))
	}
	if n := deadLetters.Size(); n > 0 {
		log.Warn("dead letters left at shutdown", logger.Int("count", n))
		for _, e := range deadLetters.Entries() {
			log.Warn("dead letter",
				logger.String("handler", e.HandlerName),
				logger.String("event_type", string(e.Event.EventType())),
				logger.String("aggregate_id", e.Event.AggregateID()),
				logger.Err(e.Error),
			)
		}
	}

	log.Info("shutdown completed")
	return runErr
}

// newScheduler registers the maintenance jobs on their cron schedules.
func newScheduler(cfg *config.Config, app *application, cache *redisstore.Cache, m *metrics.Metrics, log *logger.Logger) (*scheduler.Scheduler, error) {
	sc := scheduler.DefaultSchedulerConfig()
	sc.Logger = log
	sc.Clock = app.clock
	sc.Observer = m
	sc.LockTTL = cfg.Scheduler.LockTTL
	if cache != nil {
		sc.Locker = redisstore.NewLocker(cache)
	}
	sched := scheduler.NewScheduler(sc)

	batch := jobs.BatchConfig{
		BatchSize: cfg.Scheduler.BatchSize,
		Timeout:   cfg.Scheduler.JobTimeout,
	}
	entries := []struct {
		job  scheduler.Job
		cron string
	}{
		{jobs.NewResetWeeklyWindowJob(app.ledger, log, batch), cfg.Scheduler.WeeklyResetCron},
		{jobs.NewSweepStaleStreaksJob(app.streaks, m, log, batch), cfg.Scheduler.StreakSweepCron},
		{jobs.NewExpireOverdueQuestsJob(app.tracker, m, log, batch), cfg.Scheduler.QuestExpiryCron},
	}
	for _, e := range entries {
		schedule, err := scheduler.ParseSchedule(e.cron)
		if err != nil {
			return nil, fmt.Errorf("schedule %s: %w", e.job.Name(), err)
		}
		if err := sched.Register(e.job, schedule); err != nil {
			return nil, fmt.Errorf("register %s: %w", e.job.Name(), err)
		}
	}
	return sched, nil
}
