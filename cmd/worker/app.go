package main

import (
	"github.com/alem-hub/progress-engine/config"
	"github.com/alem-hub/progress-engine/internal/application/command"
	"github.com/alem-hub/progress-engine/internal/application/eventhandler"
	"github.com/alem-hub/progress-engine/internal/application/query"
	"github.com/alem-hub/progress-engine/internal/domain/challenge"
	"github.com/alem-hub/progress-engine/internal/domain/leaderboard"
	"github.com/alem-hub/progress-engine/internal/domain/ledger"
	"github.com/alem-hub/progress-engine/internal/domain/quest"
	"github.com/alem-hub/progress-engine/internal/domain/reward"
	"github.com/alem-hub/progress-engine/internal/domain/shared"
	"github.com/alem-hub/progress-engine/internal/domain/streak"
	"github.com/alem-hub/progress-engine/internal/infrastructure/metrics"
	"github.com/alem-hub/progress-engine/pkg/logger"
	"github.com/alem-hub/progress-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// APPLICATION
// ══════════════════════════════════════════════════════════════════════════════

// application holds the engine services and the command/query surface
// exposed to in-process callers.
type application struct {
	clock timeutil.Clock

	ledger      *ledger.Ledger
	engine      *leaderboard.Engine
	tracker     *quest.Tracker
	aggregator  *challenge.Aggregator
	streaks     *streak.Calculator
	coordinator *reward.Coordinator

	commands struct {
		recordXP        *command.RecordXPHandler
		claimReward     *command.ClaimRewardHandler
		claimAllRewards *command.ClaimAllRewardsHandler
		publishActivity *command.PublishActivityHandler
	}

	queries struct {
		leaderboard *query.GetLeaderboardHandler
		myStats     *query.GetMyStatsHandler
		history     *query.GetHistoryHandler
		daily       *query.GetDailyQuestsHandler
		monthly     *query.GetMonthlyChallengeHandler
		dashboard   *query.GetQuestDashboardHandler
	}

	handlers eventhandler.Handlers
}

func newApplication(cfg *config.Config, store *storage, bus shared.EventPublisher, m *metrics.Metrics, log *logger.Logger) *application {
	clock := timeutil.NewSystemClock(cfg.Engine.Location)
	app := &application{clock: clock}

	app.ledger = ledger.NewLedger(store.ledger, clock, nil)
	app.engine = leaderboard.NewEngine(store.ledger, app.ledger, clock)
	app.tracker = quest.NewTracker(store.quests, store.definitions, clock, nil, bus, quest.TrackerConfig{
		DailyCount: cfg.Engine.DailyQuestCount,
	})
	app.aggregator = challenge.NewAggregator(store.challenges, store.quests, clock, nil, challenge.Template{
		TotalQuestsRequired: cfg.Engine.MonthlyQuestsRequired,
		BadgeIcon:           challenge.DefaultTemplate().BadgeIcon,
		Reward:              shared.Reward{XP: cfg.Engine.MonthlyRewardXP, Gems: cfg.Engine.MonthlyRewardGems},
	})
	app.streaks = streak.NewCalculator(store.streaks, clock, nil)
	app.coordinator = reward.NewCoordinator(reward.Dependencies{
		Quests:      store.quests,
		Definitions: store.definitions,
		Challenges:  app.aggregator,
		Claims:      store.claims,
		Streaks:     app.streaks,
		Publisher:   bus,
		Clock:       clock,
	})

	app.commands.recordXP = command.NewRecordXPHandler(app.ledger, m, log)
	app.commands.claimReward = command.NewClaimRewardHandler(app.coordinator, m, log)
	app.commands.claimAllRewards = command.NewClaimAllRewardsHandler(app.coordinator, m, log)
	app.commands.publishActivity = command.NewPublishActivityHandler(bus, clock, log)

	app.queries.leaderboard = query.NewGetLeaderboardHandler(app.engine, clock, cfg.Engine.LeaderboardDefaultSize)
	app.queries.myStats = query.NewGetMyStatsHandler(app.engine, app.streaks, store.balances, clock)
	app.queries.history = query.NewGetHistoryHandler(app.engine)
	app.queries.daily = query.NewGetDailyQuestsHandler(app.tracker, clock)
	app.queries.monthly = query.NewGetMonthlyChallengeHandler(app.aggregator)
	app.queries.dashboard = query.NewGetQuestDashboardHandler(app.queries.daily, app.queries.monthly, app.queries.myStats)

	app.handlers = eventhandler.Handlers{
		Activity:       eventhandler.NewActivityHandler(app.commands.recordXP, app.streaks, app.tracker, bus, log),
		Streak:         eventhandler.NewStreakHandler(app.tracker, log),
		QuestCompleted: eventhandler.NewQuestCompletedHandler(m, log),
	}
	return app
}
