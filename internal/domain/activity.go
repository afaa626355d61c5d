package domain

import "time"

// DailyActivity is the per-day snapshot the bot keeps for quest progress:
// the highest step count reported and the number of challenges sent.
type DailyActivity struct {
	UserID         string    `json:"user_id" db:"user_id"`
	ActivityDate   time.Time `json:"activity_date" db:"activity_date"`
	Steps          int       `json:"steps" db:"steps"`
	ChallengesSent int       `json:"challenges_sent" db:"challenges_sent"`
}
