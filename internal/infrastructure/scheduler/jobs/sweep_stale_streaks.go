package jobs

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/alem-hub/progress-engine/internal/domain/streak"
	"github.com/alem-hub/progress-engine/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// SWEEP STALE STREAKS JOB
// ══════════════════════════════════════════════════════════════════════════════

// SweepStaleStreaksJob zeroes the current streak of users whose last active
// day is older than yesterday. A failing record is logged and skipped.
type SweepStaleStreaksJob struct {
	streaks StreakSweeper
	counter RecordCounter
	log     *logger.Logger
	config  BatchConfig

	lastStats atomic.Pointer[streak.SweepStats]
}

// NewSweepStaleStreaksJob creates the job.
func NewSweepStaleStreaksJob(s StreakSweeper, counter RecordCounter, log *logger.Logger, config BatchConfig) *SweepStaleStreaksJob {
	if log == nil {
		log = logger.NewNop()
	}
	return &SweepStaleStreaksJob{
		streaks: s,
		counter: counterOrNop(counter),
		log:     log.Named("job.sweep_stale_streaks"),
		config:  config.withDefaults(),
	}
}

// Name returns the job name.
func (j *SweepStaleStreaksJob) Name() string {
	return "sweep_stale_streaks"
}

// Description returns a human-readable description.
func (j *SweepStaleStreaksJob) Description() string {
	return "Resets streaks of users who missed a calendar day"
}

// Run executes the job.
func (j *SweepStaleStreaksJob) Run(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	start := time.Now()
	stats, err := j.streaks.ResetStaleStreaks(ctx, j.config.BatchSize)
	if stats == nil {
		stats = &streak.SweepStats{}
	}
	j.lastStats.Store(stats)
	j.counter.JobRecordsProcessed(j.Name(), stats.Reset, stats.Failed)

	logErrors(j.log, stats.Errors, j.config.MaxLoggedErrors)
	j.log.Info("stale streaks swept",
		logger.Int("scanned", stats.Scanned),
		logger.Int("reset", stats.Reset),
		logger.Int("failed", stats.Failed),
		logger.Duration("duration", time.Since(start)),
	)
	return err
}

// LastStats returns statistics of the most recent run, or nil.
func (j *SweepStaleStreaksJob) LastStats() *streak.SweepStats {
	return j.lastStats.Load()
}

func logErrors(log *logger.Logger, errs []error, max int) {
	for i, err := range errs {
		if i == max {
			log.Warn("more record errors suppressed", logger.Int("suppressed", len(errs)-max))
			return
		}
		log.Warn("record failed", logger.Err(err))
	}
}
