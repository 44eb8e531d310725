package reward

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/alem-hub/progress-engine/internal/domain/challenge"
	"github.com/alem-hub/progress-engine/internal/domain/ledger"
	"github.com/alem-hub/progress-engine/internal/domain/quest"
	"github.com/alem-hub/progress-engine/internal/domain/shared"
	"github.com/alem-hub/progress-engine/internal/domain/streak"
	"github.com/alem-hub/progress-engine/pkg/retry"
	"github.com/alem-hub/progress-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// COORDINATOR
// ══════════════════════════════════════════════════════════════════════════════

// Dependencies - зависимости координатора.
type Dependencies struct {
	Quests      quest.Repository
	Definitions quest.DefinitionRepository
	Challenges  *challenge.Aggregator
	Claims      ClaimStore
	Streaks     *streak.Calculator
	Publisher   shared.EventPublisher
	Clock       timeutil.Clock
	Retrier     *retry.Retrier
}

// Coordinator - координатор получения наград.
type Coordinator struct {
	deps Dependencies
}

// NewCoordinator создаёт координатор.
func NewCoordinator(deps Dependencies) *Coordinator {
	if deps.Retrier == nil {
		deps.Retrier = retry.StorageRetrier(shared.IsStorageConflict)
	}
	if deps.Publisher == nil {
		deps.Publisher = shared.NopPublisher{}
	}
	return &Coordinator{deps: deps}
}

// Claim забирает награду за экземпляр квеста или за месячное испытание
// (objectID - ID экземпляра или ID строки участия). Ожидаемые исходы
// возвращаются в ClaimResult; ошибка означает сбой или несуществующую цель.
func (c *Coordinator) Claim(ctx context.Context, userID shared.UserID, objectID string) (*ClaimResult, error) {
	if !userID.IsValid() {
		return nil, shared.ErrEmptyUserID
	}
	objectID = strings.TrimSpace(objectID)
	if objectID == "" {
		return nil, shared.NewDomainError("reward", "Claim", shared.ErrInvalidInput, "object id is required")
	}

	inst, err := c.deps.Quests.Get(ctx, objectID)
	switch {
	case err == nil:
		return c.claimQuest(ctx, userID, inst)
	case !shared.IsNotFound(err):
		return nil, fmt.Errorf("reward: load quest %s: %w", objectID, err)
	}

	view, progress, err := c.deps.Challenges.ForProgress(ctx, objectID)
	if err != nil {
		if shared.IsNotFound(err) {
			return nil, shared.WrapError("reward", "Claim", shared.ErrNotFound, "objective not found", err)
		}
		return nil, fmt.Errorf("reward: load challenge progress %s: %w", objectID, err)
	}
	return c.claimChallenge(ctx, userID, view, progress)
}

func (c *Coordinator) claimQuest(ctx context.Context, userID shared.UserID, inst *quest.Instance) (*ClaimResult, error) {
	now := c.deps.Clock.Now()

	if err := inst.CheckClaimable(userID, now); err != nil {
		outcome, ok := OutcomeOf(err)
		if !ok {
			return nil, err
		}
		if outcome == OutcomeExpired && inst.Status != quest.StatusExpired {
			// Ленивая проверка истечения при чтении; фоновый проход сделает то же.
			_, _ = c.deps.Quests.Expire(ctx, inst.ID, now)
		}
		return c.rejected(KindQuest, inst.ID, outcome), nil
	}

	reward, err := c.questReward(ctx, inst)
	if err != nil {
		return nil, err
	}
	grant, err := c.grantFor(userID, reward, now)
	if err != nil {
		return nil, err
	}

	commit, err := retry.Value(ctx, c.deps.Retrier, func(ctx context.Context) (*Commit, error) {
		return c.deps.Claims.ClaimQuest(ctx, inst.ID, grant)
	})
	if err != nil {
		return nil, fmt.Errorf("reward: claim quest %s: %w", inst.ID, err)
	}
	if !commit.Swapped {
		// Кто-то успел раньше (или экземпляр истёк между чтением и CAS).
		outcome := OutcomeAlreadyClaimed
		if commit.Quest != nil {
			if o, ok := OutcomeOf(commit.Quest.CheckClaimable(userID, now)); ok && o != OutcomeClaimed {
				outcome = o
			}
		}
		return c.rejected(KindQuest, inst.ID, outcome), nil
	}
	return c.granted(ctx, KindQuest, inst.ID, grant, commit), nil
}

// questReward читает награду из определения-владельца; запасные определения
// и снимок экземпляра служат на случай, если каталог её уже не содержит.
func (c *Coordinator) questReward(ctx context.Context, inst *quest.Instance) (shared.Reward, error) {
	if c.deps.Definitions != nil {
		def, err := c.deps.Definitions.GetDefinition(ctx, inst.DefinitionID)
		switch {
		case err == nil:
			return def.Reward, nil
		case !shared.IsNotFound(err):
			return shared.Reward{}, fmt.Errorf("reward: load definition %s: %w", inst.DefinitionID, err)
		}
	}
	if def, ok := quest.FallbackDefinition(inst.DefinitionID); ok {
		return def.Reward, nil
	}
	return inst.Reward, nil
}

func (c *Coordinator) claimChallenge(ctx context.Context, userID shared.UserID, view *challenge.View, progress *challenge.Progress) (*ClaimResult, error) {
	now := c.deps.Clock.Now()

	if err := view.CheckClaimable(progress.UserID, userID, now); err != nil {
		outcome, ok := OutcomeOf(err)
		if !ok {
			return nil, err
		}
		return c.rejected(KindMonthlyChallenge, progress.ID, outcome), nil
	}

	grant, err := c.grantFor(userID, view.Definition.Reward, now)
	if err != nil {
		return nil, err
	}

	commit, err := retry.Value(ctx, c.deps.Retrier, func(ctx context.Context) (*Commit, error) {
		return c.deps.Claims.ClaimChallenge(ctx, progress.ID, grant)
	})
	if err != nil {
		return nil, fmt.Errorf("reward: claim challenge %s: %w", progress.ID, err)
	}
	if !commit.Swapped {
		return c.rejected(KindMonthlyChallenge, progress.ID, OutcomeAlreadyClaimed), nil
	}
	return c.granted(ctx, KindMonthlyChallenge, progress.ID, grant, commit), nil
}

// grantFor проверяет награду до CAS: некорректная награда не должна
// оставить цель забранной без начисления.
func (c *Coordinator) grantFor(userID shared.UserID, reward shared.Reward, now time.Time) (Grant, error) {
	if err := ledger.ValidateAmount(reward.XP); err != nil {
		return Grant{}, err
	}
	if reward.Gems < 0 {
		return Grant{}, shared.NewDomainError("reward", "Claim", shared.ErrInvalidInput, "gem reward must not be negative")
	}
	now = now.In(c.deps.Clock.Location())
	return Grant{UserID: userID, Reward: reward, Week: ledger.WeekOf(now), At: now}, nil
}

// granted собирает результат уже зафиксированного получения.
func (c *Coordinator) granted(ctx context.Context, kind Kind, objectID string, g Grant, commit *Commit) *ClaimResult {
	result := &ClaimResult{
		Outcome:  OutcomeClaimed,
		Kind:     kind,
		ObjectID: objectID,
		Granted:  g.Reward,
		Message:  messageFor(OutcomeClaimed, g.Reward),
	}
	if commit.Entry != nil {
		result.WeeklyXP = commit.Entry.XP
	}
	if commit.Balance != nil {
		result.Balance = *commit.Balance
	}
	if c.deps.Streaks != nil {
		if state, err := c.deps.Streaks.Get(ctx, g.UserID); err == nil {
			result.Streak = StreakSnapshot{Current: state.Effective(g.At), Longest: state.LongestStreak}
		}
	}

	// Публикация - best effort: награда уже выдана.
	_ = c.deps.Publisher.Publish(ctx, shared.NewRewardClaimedEvent(g.UserID, string(kind), objectID, g.Reward, g.At))
	return result
}

func (c *Coordinator) rejected(kind Kind, objectID string, outcome Outcome) *ClaimResult {
	return &ClaimResult{
		Outcome:  outcome,
		Kind:     kind,
		ObjectID: objectID,
		Message:  messageFor(outcome, shared.Reward{}),
	}
}

// ClaimAll забирает все выполненные незабранные квесты пользователя и, если
// оно выполнено, месячное испытание. Сбой одной цели не останавливает остальные.
func (c *Coordinator) ClaimAll(ctx context.Context, userID shared.UserID) (*ClaimAllResult, error) {
	if !userID.IsValid() {
		return nil, shared.ErrEmptyUserID
	}
	now := c.deps.Clock.Now()

	claimable, err := c.deps.Quests.ListClaimable(ctx, userID, now)
	if err != nil {
		return nil, fmt.Errorf("reward: list claimable quests: %w", err)
	}

	result := &ClaimAllResult{Results: make([]*ClaimResult, 0, len(claimable)+1)}
	var errs []error

	for _, inst := range claimable {
		res, err := c.claimQuest(ctx, userID, inst)
		if err != nil {
			result.Failed++
			errs = append(errs, err)
			continue
		}
		result.add(res)
	}

	view, err := c.deps.Challenges.Current(ctx, userID)
	switch {
	case err != nil:
		result.Failed++
		errs = append(errs, err)
	case view.Status == challenge.StatusCompleted && !view.Claimed:
		progress := &challenge.Progress{ID: view.ProgressID, UserID: userID, ChallengeID: view.Definition.ID}
		res, err := c.claimChallenge(ctx, userID, view, progress)
		if err != nil {
			result.Failed++
			errs = append(errs, err)
		} else {
			result.add(res)
		}
	}

	result.summarize()

	if result.Claimed == 0 && len(errs) > 0 {
		return result, fmt.Errorf("reward: claim all failed: %w", errs[0])
	}
	return result, nil
}
