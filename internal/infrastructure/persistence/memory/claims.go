package memory

import (
	"context"

	"github.com/alem-hub/progress-engine/internal/domain/reward"
	"github.com/alem-hub/progress-engine/internal/domain/shared"
)

// ClaimStore implements reward.ClaimStore. It holds the objective's lock, the
// ledger lock and the balance lock for the whole claim, so the CAS and both
// grants become visible together. Lock order is quests, challenges, ledger,
// balances; no other method takes more than one of them.
type ClaimStore struct {
	quests     *QuestRepository
	challenges *ChallengeRepository
	ledger     *LedgerRepository
	balances   *BalanceRepository
}

var _ reward.ClaimStore = (*ClaimStore)(nil)

// NewClaimStore binds the repositories a claim touches.
func NewClaimStore(quests *QuestRepository, challenges *ChallengeRepository, ledger *LedgerRepository, balances *BalanceRepository) *ClaimStore {
	return &ClaimStore{quests: quests, challenges: challenges, ledger: ledger, balances: balances}
}

// ClaimQuest implements reward.ClaimStore.
func (s *ClaimStore) ClaimQuest(ctx context.Context, instanceID string, g reward.Grant) (*reward.Commit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.quests.mu.Lock()
	defer s.quests.mu.Unlock()

	inst, ok := s.quests.instances[instanceID]
	if !ok {
		return nil, shared.ErrQuestNotFound
	}
	claimed := inst.Clone()
	if err := claimed.MarkClaimed(g.UserID, g.At); err != nil {
		return &reward.Commit{Quest: inst.Clone()}, nil
	}

	commit := s.grantLocked(g)
	s.quests.instances[instanceID] = claimed
	commit.Quest = claimed.Clone()
	return commit, nil
}

// ClaimChallenge implements reward.ClaimStore.
func (s *ClaimStore) ClaimChallenge(ctx context.Context, progressID string, g reward.Grant) (*reward.Commit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.challenges.mu.Lock()
	defer s.challenges.mu.Unlock()

	p, ok := s.challenges.progress[progressID]
	if !ok {
		return nil, shared.ErrChallengeNotFound
	}
	if p.UserID != g.UserID {
		return &reward.Commit{}, nil
	}
	swapped, err := s.challenges.markClaimedLocked(progressID, g.At)
	if err != nil || !swapped {
		return &reward.Commit{}, err
	}
	return s.grantLocked(g), nil
}

func (s *ClaimStore) grantLocked(g reward.Grant) *reward.Commit {
	s.ledger.mu.Lock()
	defer s.ledger.mu.Unlock()
	s.balances.mu.Lock()
	defer s.balances.mu.Unlock()

	return &reward.Commit{
		Swapped: true,
		Entry:   s.ledger.incrementLocked(g.UserID, g.Week, g.Reward.XP, g.At),
		Balance: s.balances.addLocked(g.UserID, g.Reward.XP, g.Reward.Gems, g.At),
	}
}
