// Package quest содержит доменную модель ежедневных квестов.
// Квест - ограниченная по времени (сутки) цель с числовым таргетом и наградой.
// Экземпляр квеста проходит машину состояний
// IN_PROGRESS → COMPLETED → CLAIMED, а просроченный незабранный экземпляр
// переходит в терминальное EXPIRED.
package quest

import (
	"strings"
	"time"

	"github.com/alem-hub/progress-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// QUEST TYPE
// ══════════════════════════════════════════════════════════════════════════════

// Type определяет, какое событие продвигает квест.
type Type string

const (
	TypeEarnXP         Type = "EARN_XP"
	TypeCompleteLesson Type = "COMPLETE_LESSONS"
	TypeComboXP        Type = "COMBO_XP"
	TypeStreakDays     Type = "STREAK_DAYS"
	TypePerfectLessons Type = "PERFECT_LESSONS"
	TypeChallengeType  Type = "CHALLENGE_TYPE"
	TypeTimeSpent      Type = "TIME_SPENT"
)

// IsValid проверяет, что тип известен.
func (t Type) IsValid() bool {
	switch t {
	case TypeEarnXP, TypeCompleteLesson, TypeComboXP, TypeStreakDays,
		TypePerfectLessons, TypeChallengeType, TypeTimeSpent:
		return true
	}
	return false
}

// ══════════════════════════════════════════════════════════════════════════════
// STATUS
// ══════════════════════════════════════════════════════════════════════════════

// Status - состояние экземпляра квеста.
type Status string

const (
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusExpired    Status = "EXPIRED"
	StatusClaimed    Status = "CLAIMED"
)

// IsTerminal возвращает true для состояний, из которых нет переходов.
func (s Status) IsTerminal() bool {
	return s == StatusExpired || s == StatusClaimed
}

// CountsAsCompleted - учитывается ли экземпляр месячным испытанием.
func (s Status) CountsAsCompleted() bool {
	return s == StatusCompleted || s == StatusClaimed
}

// ══════════════════════════════════════════════════════════════════════════════
// DEFINITION
// ══════════════════════════════════════════════════════════════════════════════

// Definition - запись каталога квестов. Неизменяема для движка.
type Definition struct {
	ID          string        `json:"id" yaml:"id"`
	Type        Type          `json:"type" yaml:"type"`
	Title       string        `json:"title" yaml:"title"`
	Description string        `json:"description,omitempty" yaml:"description"`
	TargetValue int           `json:"target_value" yaml:"target"`
	Reward      shared.Reward `json:"reward" yaml:"reward"`

	// MinAccuracy - минимальная точность урока/испытания (0 = без фильтра).
	MinAccuracy shared.Accuracy `json:"min_accuracy,omitempty" yaml:"min_accuracy"`

	// ChallengeType - требуемый тип испытания для CHALLENGE_TYPE ("" = любой).
	ChallengeType string `json:"challenge_type,omitempty" yaml:"challenge_type"`

	Active bool `json:"active" yaml:"active"`
}

// Validate проверяет определение.
func (d Definition) Validate() error {
	if d.ID == "" {
		return shared.NewDomainError("quest", "ValidateDefinition", shared.ErrInvalidInput, "definition id is required")
	}
	if !d.Type.IsValid() {
		return shared.ErrInvalidQuestType
	}
	if d.TargetValue <= 0 {
		return shared.ErrInvalidTarget
	}
	if !d.MinAccuracy.IsValid() {
		return shared.ErrInvalidAccuracy
	}
	if d.Reward.XP < 0 || d.Reward.Gems < 0 {
		return shared.NewDomainError("quest", "ValidateDefinition", shared.ErrNegativeValue, "reward cannot be negative")
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// INSTANCE
// ══════════════════════════════════════════════════════════════════════════════

// Instance - квест конкретного пользователя на конкретный день.
// Ключ уникальности: (UserID, DefinitionID, Date).
type Instance struct {
	ID           string        `json:"id"`
	UserID       shared.UserID `json:"user_id"`
	DefinitionID string        `json:"definition_id"`
	Type         Type          `json:"type"`
	Title        string        `json:"title"`

	// Date - полночь дня, на который выдан квест.
	Date     time.Time `json:"date"`
	Target   int       `json:"target"`
	Progress int       `json:"progress"`
	Status   Status    `json:"status"`

	// Снимок фильтров и награды определения на момент генерации.
	MinAccuracy   shared.Accuracy `json:"min_accuracy,omitempty"`
	ChallengeType string          `json:"challenge_type,omitempty"`
	Reward        shared.Reward   `json:"reward"`

	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Claimed     bool       `json:"claimed"`
	ClaimedAt   *time.Time `json:"claimed_at,omitempty"`
	ExpiresAt   time.Time  `json:"expires_at"`
	CreatedAt   time.Time  `json:"created_at"`
}

// NewInstance создаёт экземпляр из определения.
func NewInstance(id string, userID shared.UserID, def Definition, date, expiresAt, now time.Time) *Instance {
	return &Instance{
		ID:            id,
		UserID:        userID,
		DefinitionID:  def.ID,
		Type:          def.Type,
		Title:         def.Title,
		Date:          date,
		Target:        def.TargetValue,
		Status:        StatusInProgress,
		MinAccuracy:   def.MinAccuracy,
		ChallengeType: def.ChallengeType,
		Reward:        def.Reward,
		ExpiresAt:     expiresAt,
		CreatedAt:     now,
	}
}

// Clone возвращает независимую копию.
func (i *Instance) Clone() *Instance {
	cp := *i
	if i.CompletedAt != nil {
		t := *i.CompletedAt
		cp.CompletedAt = &t
	}
	if i.ClaimedAt != nil {
		t := *i.ClaimedAt
		cp.ClaimedAt = &t
	}
	return &cp
}

// IsOverdue - срок истёк, а награда не забрана.
func (i *Instance) IsOverdue(now time.Time) bool {
	return now.After(i.ExpiresAt) && i.Status != StatusClaimed
}

// AddProgress прибавляет amount с ограничением по таргету.
// Возвращает true только для вызова, который перевёл квест в COMPLETED.
// Вне IN_PROGRESS или после истечения срока вызов ничего не меняет.
func (i *Instance) AddProgress(amount int, now time.Time) (bool, error) {
	if amount < 0 {
		return false, shared.ErrNegativeProgress
	}
	if i.Status != StatusInProgress || i.IsOverdue(now) || amount == 0 {
		return false, nil
	}

	i.Progress = min(i.Progress+amount, i.Target)
	if i.Progress >= i.Target {
		i.Status = StatusCompleted
		completedAt := now
		i.CompletedAt = &completedAt
		return true, nil
	}
	return false, nil
}

// Expire переводит просроченный незабранный квест в EXPIRED.
func (i *Instance) Expire(now time.Time) bool {
	if i.Status.IsTerminal() || !i.IsOverdue(now) {
		return false
	}
	i.Status = StatusExpired
	return true
}

// CheckClaimable возвращает nil, если награду можно забрать, иначе ожидаемый
// исход: чужой квест, уже забран, истёк, ещё не выполнен.
func (i *Instance) CheckClaimable(userID shared.UserID, now time.Time) error {
	switch {
	case i.UserID != userID:
		return shared.ErrQuestNotOwned
	case i.Claimed || i.Status == StatusClaimed:
		return shared.ErrQuestAlreadyClaimed
	case i.Status == StatusExpired || i.IsOverdue(now):
		return shared.ErrQuestExpired
	case i.Status != StatusCompleted:
		return shared.ErrQuestNotCompleted
	}
	return nil
}

// MarkClaimed выполняет переход COMPLETED → CLAIMED.
func (i *Instance) MarkClaimed(userID shared.UserID, now time.Time) error {
	if err := i.CheckClaimable(userID, now); err != nil {
		return err
	}
	i.Status = StatusClaimed
	i.Claimed = true
	claimedAt := now
	i.ClaimedAt = &claimedAt
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ACTIVITY MATCHING
// ══════════════════════════════════════════════════════════════════════════════

// ActivityKind - вид входящего события активности.
type ActivityKind string

const (
	ActivityXPEarned           ActivityKind = "xp_earned"
	ActivityLessonCompleted    ActivityKind = "lesson_completed"
	ActivityChallengeCompleted ActivityKind = "challenge_completed"
	ActivityComboXPEarned      ActivityKind = "combo_xp_earned"
	ActivityStreakDay          ActivityKind = "streak_day"
)

// Activity - нормализованное событие для маршрутизации по квестам.
type Activity struct {
	Kind          ActivityKind
	Amount        int
	Accuracy      shared.Accuracy
	ChallengeType string
	Minutes       int
}

// ProgressFor возвращает, на сколько activity продвигает экземпляр (0 = не подходит).
func (i *Instance) ProgressFor(a Activity) int {
	switch a.Kind {
	case ActivityXPEarned:
		if i.Type == TypeEarnXP {
			return a.Amount
		}
	case ActivityComboXPEarned:
		if i.Type == TypeComboXP {
			return a.Amount
		}
	case ActivityLessonCompleted:
		switch i.Type {
		case TypeCompleteLesson:
			if a.Accuracy >= i.MinAccuracy {
				return 1
			}
		case TypePerfectLessons:
			if a.Accuracy.IsPerfect() {
				return 1
			}
		case TypeTimeSpent:
			return a.Minutes
		}
	case ActivityChallengeCompleted:
		if i.Type == TypeChallengeType && a.Accuracy >= i.MinAccuracy &&
			(i.ChallengeType == "" || strings.EqualFold(i.ChallengeType, a.ChallengeType)) {
			return 1
		}
	case ActivityStreakDay:
		if i.Type == TypeStreakDays {
			return 1
		}
	}
	return 0
}
