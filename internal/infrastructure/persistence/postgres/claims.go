package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/alem-hub/progress-engine/internal/domain/reward"
	"github.com/alem-hub/progress-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CLAIM UNIT OF WORK
// ══════════════════════════════════════════════════════════════════════════════

// ClaimStore implements reward.ClaimStore. The claim compare-and-set, the
// weekly_xp upsert and the reward_balances upsert run in one transaction, so
// a failed grant rolls the claim back and the objective stays claimable.
type ClaimStore struct {
	conn   *Connection
	quests *QuestRepository
}

var _ reward.ClaimStore = (*ClaimStore)(nil)

// NewClaimStore creates a new ClaimStore.
func NewClaimStore(conn *Connection, quests *QuestRepository) *ClaimStore {
	return &ClaimStore{conn: conn, quests: quests}
}

// ClaimQuest implements reward.ClaimStore.
func (s *ClaimStore) ClaimQuest(ctx context.Context, instanceID string, g reward.Grant) (*reward.Commit, error) {
	commit := &reward.Commit{}
	err := s.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			UPDATE quest_instances
			SET status = 'CLAIMED', claimed = TRUE, claimed_at = $3
			WHERE id = $1 AND user_id = $2 AND status = 'COMPLETED' AND NOT claimed AND expires_at >= $3
			RETURNING `+questColumns,
			instanceID, g.UserID.String(), g.At,
		)
		inst, err := s.quests.scan(row)
		if IsNoRows(err) {
			return nil
		}
		if err != nil {
			return err
		}
		commit.Quest = inst
		return s.grant(ctx, tx, g, commit)
	})
	if err != nil {
		return nil, mapError("ClaimQuest", err, nil)
	}
	if !commit.Swapped {
		inst, err := s.quests.Get(ctx, instanceID)
		if err != nil {
			return nil, err
		}
		commit.Quest = inst
	}
	return commit, nil
}

// ClaimChallenge implements reward.ClaimStore.
func (s *ClaimStore) ClaimChallenge(ctx context.Context, progressID string, g reward.Grant) (*reward.Commit, error) {
	commit := &reward.Commit{}
	var found bool
	err := s.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		var owner string
		var claimed bool
		err := tx.QueryRow(ctx, `
			SELECT user_id, claimed FROM monthly_challenge_progress WHERE id = $1 FOR UPDATE
		`, progressID).Scan(&owner, &claimed)
		if IsNoRows(err) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		if claimed || owner != g.UserID.String() {
			return nil
		}

		if _, err := tx.Exec(ctx, `
			UPDATE monthly_challenge_progress SET claimed = TRUE, claimed_at = $2 WHERE id = $1
		`, progressID, g.At); err != nil {
			return err
		}
		return s.grant(ctx, tx, g, commit)
	})
	if err != nil {
		return nil, mapError("ClaimChallenge", err, nil)
	}
	if !found {
		return nil, shared.ErrChallengeNotFound
	}
	return commit, nil
}

// grant credits XP and the balance inside tx and marks the commit swapped.
func (s *ClaimStore) grant(ctx context.Context, tx pgx.Tx, g reward.Grant, commit *reward.Commit) error {
	entry, err := incrementWeeklyXP(ctx, tx, g.UserID, g.Week, g.Reward.XP, g.At)
	if err != nil {
		return err
	}
	balance, err := addBalance(ctx, tx, g.UserID, g.Reward.XP, g.Reward.Gems, g.At)
	if err != nil {
		return err
	}
	commit.Swapped = true
	commit.Entry = entry
	commit.Balance = balance
	return nil
}
