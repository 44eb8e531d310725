package shared

import (
	"fmt"
	"strings"
)

// ══════════════════════════════════════════════════════════════════════════════
// USER ID
// ══════════════════════════════════════════════════════════════════════════════

// UserID is the stable user identifier produced by the external identity resolver.
type UserID string

// MaxUserIDLength bounds identifiers accepted from the outside.
const MaxUserIDLength = 128

// IsValid checks if the user id is non-empty and reasonably sized.
func (u UserID) IsValid() bool {
	s := strings.TrimSpace(string(u))
	return s != "" && len(s) <= MaxUserIDLength
}

// String returns the string representation.
func (u UserID) String() string {
	return string(u)
}

// NewUserID creates a validated UserID.
func NewUserID(id string) (UserID, error) {
	u := UserID(strings.TrimSpace(id))
	if !u.IsValid() {
		return "", ErrEmptyUserID
	}
	return u, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ACCURACY
// ══════════════════════════════════════════════════════════════════════════════

// Accuracy is a lesson/challenge accuracy percentage in [0, 100].
type Accuracy int

// PerfectAccuracy is a lesson without mistakes.
const PerfectAccuracy Accuracy = 100

// IsValid checks the range.
func (a Accuracy) IsValid() bool {
	return a >= 0 && a <= 100
}

// IsPerfect reports a 100% result.
func (a Accuracy) IsPerfect() bool {
	return a == PerfectAccuracy
}

// String returns "NN%".
func (a Accuracy) String() string {
	return fmt.Sprintf("%d%%", int(a))
}

// NewAccuracy creates a validated Accuracy.
func NewAccuracy(v int) (Accuracy, error) {
	a := Accuracy(v)
	if !a.IsValid() {
		return 0, ErrInvalidAccuracy
	}
	return a, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// REWARD
// ══════════════════════════════════════════════════════════════════════════════

// Reward is the XP/gem pair granted when an objective is claimed.
type Reward struct {
	XP   int `json:"xp" yaml:"xp"`
	Gems int `json:"gems" yaml:"gems"`
}

// IsZero reports an empty reward.
func (r Reward) IsZero() bool {
	return r.XP == 0 && r.Gems == 0
}

// Add sums two rewards.
func (r Reward) Add(other Reward) Reward {
	return Reward{XP: r.XP + other.XP, Gems: r.Gems + other.Gems}
}
