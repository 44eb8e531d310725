package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/alem-hub/progress-engine/internal/domain/challenge"
	"github.com/alem-hub/progress-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// MONTHLY CHALLENGE REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// ChallengeRepository implements challenge.Repository for PostgreSQL.
type ChallengeRepository struct {
	conn *Connection
}

// NewChallengeRepository creates a new ChallengeRepository.
func NewChallengeRepository(conn *Connection) *ChallengeRepository {
	return &ChallengeRepository{conn: conn}
}

const challengeColumns = `id, year, month, total_quests_required, badge_name, badge_icon,
	reward_xp, reward_gems, created_at`

func scanChallenge(row pgx.Row) (*challenge.Definition, error) {
	var d challenge.Definition
	var month int
	err := row.Scan(&d.ID, &d.Key.Year, &month, &d.TotalQuestsRequired, &d.BadgeName,
		&d.BadgeIcon, &d.Reward.XP, &d.Reward.Gems, &d.CreatedAt)
	if err != nil {
		return nil, err
	}
	d.Key.Month = time.Month(month)
	return &d, nil
}

const progressColumns = `id, user_id, challenge_id, claimed, claimed_at, created_at`

func scanProgress(row pgx.Row) (*challenge.Progress, error) {
	var p challenge.Progress
	var userID string
	if err := row.Scan(&p.ID, &userID, &p.ChallengeID, &p.Claimed, &p.ClaimedAt, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.UserID = shared.UserID(userID)
	return &p, nil
}

// GetOrCreateDefinition inserts candidate unless the month already exists,
// then returns whichever row won.
func (r *ChallengeRepository) GetOrCreateDefinition(ctx context.Context, candidate *challenge.Definition) (*challenge.Definition, error) {
	_, err := r.conn.Exec(ctx, `
		INSERT INTO monthly_challenges
		(id, year, month, total_quests_required, badge_name, badge_icon, reward_xp, reward_gems, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (year, month) DO NOTHING
	`, candidate.ID, candidate.Key.Year, int(candidate.Key.Month), candidate.TotalQuestsRequired,
		candidate.BadgeName, candidate.BadgeIcon, candidate.Reward.XP, candidate.Reward.Gems, candidate.CreatedAt)
	if err != nil {
		return nil, mapError("CreateChallenge", err, nil)
	}

	row := r.conn.QueryRow(ctx, `
		SELECT `+challengeColumns+` FROM monthly_challenges WHERE year = $1 AND month = $2
	`, candidate.Key.Year, int(candidate.Key.Month))
	d, err := scanChallenge(row)
	// Inserted or found a moment ago; absence means a concurrent delete.
	return d, mapError("GetChallengeByMonth", err, shared.Conflict("GetChallengeByMonth", err))
}

// GetDefinition returns a challenge by ID.
func (r *ChallengeRepository) GetDefinition(ctx context.Context, id string) (*challenge.Definition, error) {
	row := r.conn.QueryRow(ctx, `SELECT `+challengeColumns+` FROM monthly_challenges WHERE id = $1`, id)
	d, err := scanChallenge(row)
	return d, mapError("GetChallenge", err, shared.ErrNotFound)
}

// EnsureProgress returns the participation row, creating it if needed.
func (r *ChallengeRepository) EnsureProgress(ctx context.Context, candidate *challenge.Progress) (*challenge.Progress, error) {
	row := r.conn.QueryRow(ctx, `
		INSERT INTO monthly_challenge_progress (id, user_id, challenge_id, claimed, created_at)
		VALUES ($1, $2, $3, FALSE, $4)
		ON CONFLICT (user_id, challenge_id) DO UPDATE SET claimed = monthly_challenge_progress.claimed
		RETURNING `+progressColumns,
		candidate.ID, candidate.UserID.String(), candidate.ChallengeID, candidate.CreatedAt,
	)
	p, err := scanProgress(row)
	return p, mapError("EnsureChallengeProgress", err, nil)
}

// GetProgress returns a participation row by ID.
func (r *ChallengeRepository) GetProgress(ctx context.Context, id string) (*challenge.Progress, error) {
	row := r.conn.QueryRow(ctx, `SELECT `+progressColumns+` FROM monthly_challenge_progress WHERE id = $1`, id)
	p, err := scanProgress(row)
	return p, mapError("GetChallengeProgress", err, shared.ErrChallengeNotFound)
}

