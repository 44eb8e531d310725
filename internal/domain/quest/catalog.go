package quest

import (
	"math/rand"

	"github.com/google/uuid"

	"github.com/alem-hub/progress-engine/internal/domain/shared"
)

// DailyQuestCount - сколько квестов выдаётся пользователю в день.
const DailyQuestCount = 3

// fallbackNamespace даёт детерминированные ID запасным определениям.
var fallbackNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("progress-engine/quest-fallback"))

// FallbackDefinitions - минимальный набор на случай пустого каталога:
// по одному EARN_XP, COMPLETE_LESSONS и COMBO_XP.
func FallbackDefinitions() []Definition {
	return []Definition{
		{
			ID:          uuid.NewSHA1(fallbackNamespace, []byte(TypeEarnXP)).String(),
			Type:        TypeEarnXP,
			Title:       "Заработай 50 XP",
			TargetValue: 50,
			Reward:      shared.Reward{XP: 10, Gems: 5},
			Active:      true,
		},
		{
			ID:          uuid.NewSHA1(fallbackNamespace, []byte(TypeCompleteLesson)).String(),
			Type:        TypeCompleteLesson,
			Title:       "Пройди 2 урока",
			TargetValue: 2,
			Reward:      shared.Reward{XP: 15, Gems: 5},
			Active:      true,
		},
		{
			ID:          uuid.NewSHA1(fallbackNamespace, []byte(TypeComboXP)).String(),
			Type:        TypeComboXP,
			Title:       "Набери 20 XP комбо",
			TargetValue: 20,
			Reward:      shared.Reward{XP: 20, Gems: 10},
			Active:      true,
		},
	}
}

// FallbackDefinition ищет запасное определение по ID.
func FallbackDefinition(id string) (Definition, bool) {
	for _, d := range FallbackDefinitions() {
		if d.ID == id {
			return d, true
		}
	}
	return Definition{}, false
}

// Shuffler перемешивает n элементов через swap. Подменяется в тестах.
type Shuffler func(n int, swap func(i, j int))

// DefaultShuffler использует math/rand/v2.
func DefaultShuffler(n int, swap func(i, j int)) {
	rand.Shuffle(n, swap)
}

// SelectDaily выбирает до count активных валидных определений случайной
// выборкой. Пустой каталог даёт FallbackDefinitions.
func SelectDaily(catalog []Definition, count int, shuffle Shuffler) []Definition {
	active := make([]Definition, 0, len(catalog))
	for _, d := range catalog {
		if d.Active && d.Validate() == nil {
			active = append(active, d)
		}
	}

	if len(active) == 0 {
		fallback := FallbackDefinitions()
		if count < len(fallback) {
			fallback = fallback[:count]
		}
		return fallback
	}

	if shuffle == nil {
		shuffle = DefaultShuffler
	}
	shuffle(len(active), func(i, j int) { active[i], active[j] = active[j], active[i] })

	if count < len(active) {
		active = active[:count]
	}
	return active
}
