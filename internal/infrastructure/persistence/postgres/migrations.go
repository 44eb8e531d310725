package postgres

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: WEEKLY XP LEDGER
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- Migration: Weekly XP ledger
-- Version: 001

CREATE TABLE IF NOT EXISTS weekly_xp (
    user_id VARCHAR(100) NOT NULL,
    iso_year INTEGER NOT NULL,
    iso_week INTEGER NOT NULL,
    xp INTEGER NOT NULL DEFAULT 0,
    -- Creation order; stable tie-break for equal XP.
    seq BIGSERIAL NOT NULL UNIQUE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    PRIMARY KEY (user_id, iso_year, iso_week),
    CONSTRAINT valid_week CHECK (iso_week BETWEEN 1 AND 53),
    CONSTRAINT valid_xp CHECK (xp >= 0)
);

-- Ranking order of one window
CREATE INDEX IF NOT EXISTS idx_weekly_xp_ranking ON weekly_xp(iso_year, iso_week, xp DESC, seq);
CREATE INDEX IF NOT EXISTS idx_weekly_xp_user ON weekly_xp(user_id, iso_year DESC, iso_week DESC);
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: QUESTS
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
-- Migration: Quest catalog and daily instances
-- Version: 002

CREATE TABLE IF NOT EXISTS quest_definitions (
    id VARCHAR(100) PRIMARY KEY,
    type VARCHAR(30) NOT NULL,
    title VARCHAR(255) NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    target_value INTEGER NOT NULL,
    reward_xp INTEGER NOT NULL DEFAULT 0,
    reward_gems INTEGER NOT NULL DEFAULT 0,
    min_accuracy INTEGER NOT NULL DEFAULT 0,
    challenge_type VARCHAR(50) NOT NULL DEFAULT '',
    active BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_quest_type CHECK (type IN (
        'EARN_XP', 'COMPLETE_LESSONS', 'COMBO_XP', 'STREAK_DAYS',
        'PERFECT_LESSONS', 'CHALLENGE_TYPE', 'TIME_SPENT'
    )),
    CONSTRAINT valid_target CHECK (target_value > 0),
    CONSTRAINT valid_min_accuracy CHECK (min_accuracy BETWEEN 0 AND 100)
);

CREATE TABLE IF NOT EXISTS quest_instances (
    id VARCHAR(100) PRIMARY KEY,
    user_id VARCHAR(100) NOT NULL,
    definition_id VARCHAR(100) NOT NULL,
    slot SMALLINT NOT NULL DEFAULT 0,
    type VARCHAR(30) NOT NULL,
    title VARCHAR(255) NOT NULL,
    -- Local midnight of the quest day.
    day_start TIMESTAMP WITH TIME ZONE NOT NULL,
    target INTEGER NOT NULL,
    progress INTEGER NOT NULL DEFAULT 0,
    status VARCHAR(20) NOT NULL DEFAULT 'IN_PROGRESS',
    min_accuracy INTEGER NOT NULL DEFAULT 0,
    challenge_type VARCHAR(50) NOT NULL DEFAULT '',
    reward_xp INTEGER NOT NULL DEFAULT 0,
    reward_gems INTEGER NOT NULL DEFAULT 0,
    completed_at TIMESTAMP WITH TIME ZONE,
    claimed BOOLEAN NOT NULL DEFAULT FALSE,
    claimed_at TIMESTAMP WITH TIME ZONE,
    expires_at TIMESTAMP WITH TIME ZONE NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    UNIQUE(user_id, definition_id, day_start),
    CONSTRAINT valid_status CHECK (status IN ('IN_PROGRESS', 'COMPLETED', 'EXPIRED', 'CLAIMED')),
    CONSTRAINT valid_progress CHECK (progress >= 0 AND progress <= target),
    CONSTRAINT claimed_consistent CHECK (claimed = (status = 'CLAIMED'))
);

CREATE INDEX IF NOT EXISTS idx_quest_instances_user_day ON quest_instances(user_id, day_start);
CREATE INDEX IF NOT EXISTS idx_quest_instances_open ON quest_instances(expires_at)
    WHERE status IN ('IN_PROGRESS', 'COMPLETED');
CREATE INDEX IF NOT EXISTS idx_quest_instances_done ON quest_instances(user_id, day_start)
    WHERE status IN ('COMPLETED', 'CLAIMED');
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: CHALLENGES, STREAKS, BALANCES
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
-- Migration: Monthly challenges, streaks and reward balances
-- Version: 003

CREATE TABLE IF NOT EXISTS monthly_challenges (
    id VARCHAR(100) PRIMARY KEY,
    year INTEGER NOT NULL,
    month INTEGER NOT NULL,
    total_quests_required INTEGER NOT NULL,
    badge_name VARCHAR(100) NOT NULL,
    badge_icon VARCHAR(20) NOT NULL DEFAULT '',
    reward_xp INTEGER NOT NULL DEFAULT 0,
    reward_gems INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    UNIQUE(year, month),
    CONSTRAINT valid_month CHECK (month BETWEEN 1 AND 12),
    CONSTRAINT valid_required CHECK (total_quests_required > 0)
);

CREATE TABLE IF NOT EXISTS monthly_challenge_progress (
    id VARCHAR(100) PRIMARY KEY,
    user_id VARCHAR(100) NOT NULL,
    challenge_id VARCHAR(100) NOT NULL REFERENCES monthly_challenges(id) ON DELETE CASCADE,
    claimed BOOLEAN NOT NULL DEFAULT FALSE,
    claimed_at TIMESTAMP WITH TIME ZONE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    UNIQUE(user_id, challenge_id)
);

CREATE TABLE IF NOT EXISTS streaks (
    user_id VARCHAR(100) PRIMARY KEY,
    current_streak INTEGER NOT NULL DEFAULT 0,
    longest_streak INTEGER NOT NULL DEFAULT 0,
    -- Local midnight of the last active day.
    last_active_date TIMESTAMP WITH TIME ZONE,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_streak CHECK (current_streak >= 0 AND longest_streak >= current_streak)
);

CREATE INDEX IF NOT EXISTS idx_streaks_stale ON streaks(last_active_date) WHERE current_streak > 0;

CREATE TABLE IF NOT EXISTS reward_balances (
    user_id VARCHAR(100) PRIMARY KEY,
    points INTEGER NOT NULL DEFAULT 0,
    gems INTEGER NOT NULL DEFAULT 0,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);
`

