package domain

import (
	"time"
)

type UserProgress struct {
	UserID            string    `json:"user_id" db:"user_id"`
	DisplayName       string    `json:"display_name" db:"display_name"`
	TotalXP           int       `json:"total_xp" db:"total_xp"`
	Level             int       `json:"level" db:"level"`
	CurrentStreakDays int       `json:"current_streak" db:"current_streak"`
	LongestStreakDays int       `json:"longest_streak" db:"longest_streak"`
	LastActiveDate    time.Time `json:"last_active_date" db:"last_active_date"` // zero until the first activity
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time `json:"updated_at" db:"updated_at"`
}

// HasActivity reports whether the user has ever recorded a day of activity.
func (p *UserProgress) HasActivity() bool {
	return !p.LastActiveDate.IsZero()
}

// CampaignStanding is one leaderboard row: a user's progress plus the XP
// they earned since the current campaign started.
type CampaignStanding struct {
	Progress   UserProgress `json:"progress"`
	CampaignXP int          `json:"campaign_xp"`
}
