package jobs

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/alem-hub/progress-engine/internal/domain/ledger"
	"github.com/alem-hub/progress-engine/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// RESET WEEKLY WINDOW JOB
// ══════════════════════════════════════════════════════════════════════════════

// ResetWeeklyWindowJob seeds zero-XP entries of the following ISO week for
// every user active in the current one, so the new week's leaderboard is
// populated before the first XP event of that week arrives.
//
// The job prepares the week after the one containing "now". Triggered on
// Monday 00:00 it therefore seeds a week that starts seven days later; the
// week that has just begun is filled lazily by RecordXP instead. This is the
// long-standing rollover behaviour and is kept as is; every run logs the
// window pair so the trigger can be re-specified with full information.
type ResetWeeklyWindowJob struct {
	ledger WeekPreparer
	log    *logger.Logger
	config BatchConfig

	lastStats atomic.Pointer[WeeklyResetStats]
}

// WeeklyResetStats describes one run.
type WeeklyResetStats struct {
	StartedAt time.Time
	Duration  time.Duration
	From      ledger.WeekKey
	To        ledger.WeekKey
	Seeded    int
}

// NewResetWeeklyWindowJob creates the job.
func NewResetWeeklyWindowJob(l WeekPreparer, log *logger.Logger, config BatchConfig) *ResetWeeklyWindowJob {
	if log == nil {
		log = logger.NewNop()
	}
	return &ResetWeeklyWindowJob{
		ledger: l,
		log:    log.Named("job.reset_weekly_window"),
		config: config.withDefaults(),
	}
}

// Name returns the job name.
func (j *ResetWeeklyWindowJob) Name() string {
	return "reset_weekly_window"
}

// Description returns a human-readable description.
func (j *ResetWeeklyWindowJob) Description() string {
	return "Seeds zero-XP weekly entries for the next ISO week"
}

// Run executes the job.
func (j *ResetWeeklyWindowJob) Run(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	stats := &WeeklyResetStats{StartedAt: time.Now()}
	from, to, created, err := j.ledger.PrepareNextWeek(ctx)
	stats.Duration = time.Since(stats.StartedAt)
	stats.From, stats.To, stats.Seeded = from, to, created
	j.lastStats.Store(stats)

	if err != nil {
		return fmt.Errorf("prepare week %s: %w", to, err)
	}

	j.log.Info("weekly window prepared",
		logger.String("from_week", from.String()),
		logger.String("to_week", to.String()),
		logger.Int("seeded", created),
		logger.Duration("duration", stats.Duration),
		logger.String("note", "seeds the week after the current one; see job docs"),
	)
	return nil
}

// LastStats returns statistics of the most recent run, or nil.
func (j *ResetWeeklyWindowJob) LastStats() *WeeklyResetStats {
	return j.lastStats.Load()
}
