// Package jobs contains the periodic maintenance jobs of the progress engine.
// Every job is idempotent: running it twice, or late, converges to the same state.
package jobs

import (
	"context"
	"time"

	"github.com/alem-hub/progress-engine/internal/domain/ledger"
	"github.com/alem-hub/progress-engine/internal/domain/quest"
	"github.com/alem-hub/progress-engine/internal/domain/streak"
)

// ══════════════════════════════════════════════════════════════════════════════
// PORTS
// ══════════════════════════════════════════════════════════════════════════════

// WeekPreparer seeds the next weekly window. Implemented by *ledger.Ledger.
type WeekPreparer interface {
	PrepareNextWeek(ctx context.Context) (from, to ledger.WeekKey, created int, err error)
}

// StreakSweeper resets stale streaks. Implemented by *streak.Calculator.
type StreakSweeper interface {
	ResetStaleStreaks(ctx context.Context, batch int) (*streak.SweepStats, error)
}

// QuestExpirer expires overdue quest instances. Implemented by *quest.Tracker.
type QuestExpirer interface {
	ExpireOverdue(ctx context.Context, batch int) (*quest.ExpireStats, error)
}

// RecordCounter receives per-record outcomes of a batch job.
type RecordCounter interface {
	JobRecordsProcessed(job string, ok, failed int)
}

type nopCounter struct{}

func (nopCounter) JobRecordsProcessed(string, int, int) {}

// BatchConfig is shared by the sweep jobs.
type BatchConfig struct {
	// BatchSize is how many records are read per page.
	BatchSize int

	// Timeout bounds a single run.
	Timeout time.Duration

	// MaxLoggedErrors caps per-record error lines per run.
	MaxLoggedErrors int
}

// DefaultBatchConfig returns sensible defaults.
func DefaultBatchConfig() BatchConfig {
	return BatchConfig{
		BatchSize:       500,
		Timeout:         5 * time.Minute,
		MaxLoggedErrors: 20,
	}
}

func (c BatchConfig) withDefaults() BatchConfig {
	d := DefaultBatchConfig()
	if c.BatchSize <= 0 {
		c.BatchSize = d.BatchSize
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	if c.MaxLoggedErrors <= 0 {
		c.MaxLoggedErrors = d.MaxLoggedErrors
	}
	return c
}

func counterOrNop(c RecordCounter) RecordCounter {
	if c == nil {
		return nopCounter{}
	}
	return c
}
