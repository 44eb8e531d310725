// Package query contains read operations following CQRS pattern.
// Queries never change business state; the only writes they trigger are the
// lazy creations the domain performs on first read (daily quests, weekly
// entries, monthly participation).
package query

import (
	"time"

	"github.com/alem-hub/progress-engine/internal/domain/challenge"
	"github.com/alem-hub/progress-engine/internal/domain/leaderboard"
	"github.com/alem-hub/progress-engine/internal/domain/ledger"
	"github.com/alem-hub/progress-engine/internal/domain/quest"
	"github.com/alem-hub/progress-engine/internal/domain/shared"
	"github.com/alem-hub/progress-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// DTO
// ══════════════════════════════════════════════════════════════════════════════

// LeaderboardEntryDTO - строка рейтинга.
type LeaderboardEntryDTO struct {
	Rank     int         `json:"rank"`
	Position int         `json:"position"`
	UserID   string      `json:"user_id"`
	XP       int         `json:"xp"`
	Tier     ledger.Tier `json:"tier"`
}

func toLeaderboardEntry(e leaderboard.RankedEntry) LeaderboardEntryDTO {
	return LeaderboardEntryDTO{
		Rank:     int(e.Rank),
		Position: e.Position,
		UserID:   e.UserID.String(),
		XP:       e.XP,
		Tier:     e.Tier,
	}
}

// QuestDTO - квест дня для отображения.
type QuestDTO struct {
	ID         string        `json:"id"`
	Type       quest.Type    `json:"type"`
	Title      string        `json:"title"`
	Target     int           `json:"target"`
	Progress   int           `json:"progress"`
	Percentage int           `json:"percentage"`
	Status     quest.Status  `json:"status"`
	Claimed    bool          `json:"claimed"`
	Claimable  bool          `json:"claimable"`
	Reward     shared.Reward `json:"reward"`
	Date       string        `json:"date"`
	ExpiresAt  time.Time     `json:"expires_at"`
}

func toQuestDTO(inst *quest.Instance, now time.Time) QuestDTO {
	return QuestDTO{
		ID:         inst.ID,
		Type:       inst.Type,
		Title:      inst.Title,
		Target:     inst.Target,
		Progress:   inst.Progress,
		Percentage: challenge.Percentage(inst.Progress, inst.Target),
		Status:     inst.Status,
		Claimed:    inst.Claimed,
		Claimable:  inst.CheckClaimable(inst.UserID, now) == nil,
		Reward:     inst.Reward,
		Date:       timeutil.FormatDate(inst.Date),
		ExpiresAt:  inst.ExpiresAt,
	}
}

// MonthlyChallengeDTO - прогресс месячного испытания.
type MonthlyChallengeDTO struct {
	ID                  string           `json:"id"`
	ProgressID          string           `json:"progress_id"`
	Month               string           `json:"month"`
	BadgeName           string           `json:"badge_name"`
	BadgeIcon           string           `json:"badge_icon"`
	TotalQuestsRequired int              `json:"total_quests_required"`
	CompletedCount      int              `json:"completed_count"`
	Percentage          int              `json:"progress_percentage"`
	Status              challenge.Status `json:"status"`
	Claimed             bool             `json:"claimed"`
	Reward              shared.Reward    `json:"reward"`
	DaysLeft            int              `json:"days_left"`
}

func toMonthlyDTO(v *challenge.View) MonthlyChallengeDTO {
	return MonthlyChallengeDTO{
		ID:                  v.Definition.ID,
		ProgressID:          v.ProgressID,
		Month:               v.Definition.Key.String(),
		BadgeName:           v.Definition.BadgeName,
		BadgeIcon:           v.Definition.BadgeIcon,
		TotalQuestsRequired: v.Definition.TotalQuestsRequired,
		CompletedCount:      v.CompletedCount,
		Percentage:          v.Percentage,
		Status:              v.Status,
		Claimed:             v.Claimed,
		Reward:              v.Definition.Reward,
		DaysLeft:            v.DaysLeft,
	}
}

// StreakDTO - серия пользователя.
type StreakDTO struct {
	Current        int     `json:"current"`
	Longest        int     `json:"longest"`
	LastActiveDate *string `json:"last_active_date,omitempty"`
}
