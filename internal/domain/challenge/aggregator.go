package challenge

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/alem-hub/progress-engine/internal/domain/shared"
	"github.com/alem-hub/progress-engine/pkg/retry"
	"github.com/alem-hub/progress-engine/pkg/timeutil"
)

// Aggregator - агрегатор месячного испытания.
type Aggregator struct {
	repo     Repository
	counter  QuestCounter
	clock    timeutil.Clock
	retrier  *retry.Retrier
	template Template
	newID    func() string

	creation singleflight.Group
}

// NewAggregator создаёт агрегатор.
func NewAggregator(repo Repository, counter QuestCounter, clock timeutil.Clock, retrier *retry.Retrier, template Template) *Aggregator {
	if retrier == nil {
		retrier = retry.StorageRetrier(shared.IsStorageConflict)
	}
	return &Aggregator{
		repo:     repo,
		counter:  counter,
		clock:    clock,
		retrier:  retrier,
		template: template,
		newID:    uuid.NewString,
	}
}

// Definition возвращает испытание месяца, лениво создавая его.
func (a *Aggregator) Definition(ctx context.Context, key MonthKey) (*Definition, error) {
	v, err, _ := a.creation.Do(key.String(), func() (interface{}, error) {
		candidate := a.template.Build(a.newID(), key, a.clock.Now())
		return retry.Value(ctx, a.retrier, func(ctx context.Context) (*Definition, error) {
			return a.repo.GetOrCreateDefinition(ctx, candidate)
		})
	})
	if err != nil {
		return nil, fmt.Errorf("challenge: resolve %s: %w", key, err)
	}
	def := *v.(*Definition)
	return &def, nil
}

// Current возвращает прогресс пользователя в испытании текущего месяца.
func (a *Aggregator) Current(ctx context.Context, userID shared.UserID) (*View, error) {
	if !userID.IsValid() {
		return nil, shared.ErrEmptyUserID
	}

	def, err := a.Definition(ctx, MonthOf(a.clock.Now()))
	if err != nil {
		return nil, err
	}

	progress, err := a.ensureProgress(ctx, userID, def.ID)
	if err != nil {
		return nil, err
	}

	return a.view(ctx, def, progress)
}

// ForProgress возвращает представление для строки участия (используется при получении награды).
func (a *Aggregator) ForProgress(ctx context.Context, progressID string) (*View, *Progress, error) {
	progress, err := a.repo.GetProgress(ctx, progressID)
	if err != nil {
		return nil, nil, err
	}
	def, err := a.repo.GetDefinition(ctx, progress.ChallengeID)
	if err != nil {
		return nil, nil, fmt.Errorf("challenge: definition of progress %s: %w", progressID, err)
	}
	view, err := a.view(ctx, def, progress)
	if err != nil {
		return nil, nil, err
	}
	return view, progress, nil
}

func (a *Aggregator) ensureProgress(ctx context.Context, userID shared.UserID, challengeID string) (*Progress, error) {
	candidate := &Progress{
		ID:          a.newID(),
		UserID:      userID,
		ChallengeID: challengeID,
		CreatedAt:   a.clock.Now(),
	}
	return retry.Value(ctx, a.retrier, func(ctx context.Context) (*Progress, error) {
		return a.repo.EnsureProgress(ctx, candidate)
	})
}

func (a *Aggregator) view(ctx context.Context, def *Definition, progress *Progress) (*View, error) {
	loc := a.clock.Location()
	from, to := def.Key.Bounds(loc)

	count, err := a.counter.CountCompleted(ctx, progress.UserID, from, to)
	if err != nil {
		return nil, fmt.Errorf("challenge: count completed quests: %w", err)
	}

	now := a.clock.Now()
	daysLeft := 0
	if now.Before(to) {
		daysLeft = timeutil.DaysBetween(now, to.Add(-time.Nanosecond))
	}

	return &View{
		Definition:     *def,
		ProgressID:     progress.ID,
		CompletedCount: count,
		Percentage:     Percentage(count, def.TotalQuestsRequired),
		Status:         StatusFor(count, def.TotalQuestsRequired, progress.Claimed),
		Claimed:        progress.Claimed,
		DaysLeft:       daysLeft,
	}, nil
}
