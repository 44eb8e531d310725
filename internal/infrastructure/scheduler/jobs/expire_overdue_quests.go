package jobs

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/alem-hub/progress-engine/internal/domain/quest"
	"github.com/alem-hub/progress-engine/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// EXPIRE OVERDUE QUESTS JOB
// ══════════════════════════════════════════════════════════════════════════════

// ExpireOverdueQuestsJob moves unfinished quest instances past their expiry
// to EXPIRED. Completed but unclaimed instances stay claimable until expiry
// and are expired by the same pass afterwards.
type ExpireOverdueQuestsJob struct {
	tracker QuestExpirer
	counter RecordCounter
	log     *logger.Logger
	config  BatchConfig

	lastStats atomic.Pointer[quest.ExpireStats]
}

// NewExpireOverdueQuestsJob creates the job.
func NewExpireOverdueQuestsJob(t QuestExpirer, counter RecordCounter, log *logger.Logger, config BatchConfig) *ExpireOverdueQuestsJob {
	if log == nil {
		log = logger.NewNop()
	}
	return &ExpireOverdueQuestsJob{
		tracker: t,
		counter: counterOrNop(counter),
		log:     log.Named("job.expire_overdue_quests"),
		config:  config.withDefaults(),
	}
}

// Name returns the job name.
func (j *ExpireOverdueQuestsJob) Name() string {
	return "expire_overdue_quests"
}

// Description returns a human-readable description.
func (j *ExpireOverdueQuestsJob) Description() string {
	return "Expires quest instances whose deadline has passed"
}

// Run executes the job.
func (j *ExpireOverdueQuestsJob) Run(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	start := time.Now()
	stats, err := j.tracker.ExpireOverdue(ctx, j.config.BatchSize)
	if stats == nil {
		stats = &quest.ExpireStats{}
	}
	j.lastStats.Store(stats)
	j.counter.JobRecordsProcessed(j.Name(), stats.Expired, stats.Failed)

	logErrors(j.log, stats.Errors, j.config.MaxLoggedErrors)
	j.log.Info("overdue quests expired",
		logger.Int("scanned", stats.Scanned),
		logger.Int("expired", stats.Expired),
		logger.Int("failed", stats.Failed),
		logger.Duration("duration", time.Since(start)),
	)
	return err
}

// LastStats returns statistics of the most recent run, or nil.
func (j *ExpireOverdueQuestsJob) LastStats() *quest.ExpireStats {
	return j.lastStats.Load()
}
