// Package ledger содержит доменную модель недельного журнала XP.
// Каждый пользователь имеет ровно одну запись на ISO-неделю; запись создаётся
// при первом начислении XP и никогда не удаляется, поэтому прошлые недели
// остаются доступны для истории.
package ledger

import (
	"fmt"
	"time"

	"github.com/alem-hub/progress-engine/internal/domain/shared"
	"github.com/alem-hub/progress-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// TIER
// ══════════════════════════════════════════════════════════════════════════════

// Tier - грубая категория пользователя по недельному XP.
type Tier string

const (
	TierBronze  Tier = "BRONZE"
	TierSilver  Tier = "SILVER"
	TierGold    Tier = "GOLD"
	TierDiamond Tier = "DIAMOND"
)

// Пороги тиров (нижняя граница включительно).
const (
	SilverThreshold  = 100
	GoldThreshold    = 300
	DiamondThreshold = 500
)

// TierOf возвращает тир для количества XP. Чистая функция.
func TierOf(xp int) Tier {
	switch {
	case xp >= DiamondThreshold:
		return TierDiamond
	case xp >= GoldThreshold:
		return TierGold
	case xp >= SilverThreshold:
		return TierSilver
	default:
		return TierBronze
	}
}

// Next возвращает следующий тир и его порог. Для DIAMOND ok == false.
func (t Tier) Next() (next Tier, threshold int, ok bool) {
	switch t {
	case TierBronze:
		return TierSilver, SilverThreshold, true
	case TierSilver:
		return TierGold, GoldThreshold, true
	case TierGold:
		return TierDiamond, DiamondThreshold, true
	default:
		return "", 0, false
	}
}

// XPToNextTier возвращает, сколько XP не хватает до следующего тира (0 для DIAMOND).
func XPToNextTier(xp int) int {
	_, threshold, ok := TierOf(xp).Next()
	if !ok {
		return 0
	}
	return threshold - xp
}

// ══════════════════════════════════════════════════════════════════════════════
// WEEK KEY
// ══════════════════════════════════════════════════════════════════════════════

// WeekKey - ключ окна агрегации: ISO-год и ISO-неделя.
type WeekKey struct {
	Year int `json:"year"`
	Week int `json:"week"`
}

// WeekOf возвращает ISO-неделю момента t (в зоне t).
func WeekOf(t time.Time) WeekKey {
	y, w := timeutil.ISOWeek(t)
	return WeekKey{Year: y, Week: w}
}

// Validate проверяет диапазон недели.
func (k WeekKey) Validate() error {
	if k.Week < 1 || k.Week > 53 || k.Year < 1970 {
		return shared.ErrInvalidWeek
	}
	return nil
}

// Next возвращает следующую ISO-неделю.
func (k WeekKey) Next(loc *time.Location) WeekKey {
	y, w := timeutil.NextISOWeek(k.Year, k.Week, loc)
	return WeekKey{Year: y, Week: w}
}

// Start возвращает понедельник 00:00 этой недели.
func (k WeekKey) Start(loc *time.Location) time.Time {
	return timeutil.StartOfISOWeek(k.Year, k.Week, loc)
}

// Before сравнивает ключи хронологически.
func (k WeekKey) Before(other WeekKey) bool {
	if k.Year != other.Year {
		return k.Year < other.Year
	}
	return k.Week < other.Week
}

// String возвращает ключ в формате 2026-W43.
func (k WeekKey) String() string {
	return fmt.Sprintf("%d-W%02d", k.Year, k.Week)
}

// ══════════════════════════════════════════════════════════════════════════════
// WEEKLY XP ENTRY
// ══════════════════════════════════════════════════════════════════════════════

// MaxXPPerEvent - верхняя граница одного начисления. Всё, что больше, считается
// мусором на входе.
const MaxXPPerEvent = 100_000

// WeeklyXPEntry - XP пользователя за одну ISO-неделю.
// XP внутри окна только растёт.
type WeeklyXPEntry struct {
	UserID shared.UserID `json:"user_id"`
	Key    WeekKey       `json:"key"`
	XP     int           `json:"xp"`

	// Seq - порядковый номер создания записи; используется как стабильный
	// tie-break при равном XP.
	Seq       int64     `json:"seq"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Tier возвращает тир записи.
func (e *WeeklyXPEntry) Tier() Tier {
	return TierOf(e.XP)
}

// ValidateAmount проверяет сумму начисления.
func ValidateAmount(amount int) error {
	if amount < 0 {
		return shared.ErrNegativeXP
	}
	if amount > MaxXPPerEvent {
		return shared.ErrXPTooLarge
	}
	return nil
}
