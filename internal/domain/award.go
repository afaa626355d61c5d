package domain

import (
	"fmt"
	"time"
)

type SourceType string

const (
	SourceQuest       SourceType = "quest"
	SourceChallenge   SourceType = "challenge"
	SourceStreakBonus SourceType = "streak-bonus"
	SourceDailySteps  SourceType = "daily-steps"
	SourceOther       SourceType = "other"
)

func (s SourceType) Valid() bool {
	switch s {
	case SourceQuest, SourceChallenge, SourceStreakBonus, SourceDailySteps, SourceOther:
		return true
	}
	return false
}

func ParseSourceType(s string) (SourceType, error) {
	t := SourceType(s)
	if !t.Valid() {
		return "", fmt.Errorf("%w: unknown source type %q", ErrInvalidInput, s)
	}
	return t, nil
}

// XPAward is an append-only ledger entry. (UserID, SourceType, SourceID) is unique.
type XPAward struct {
	ID         string     `json:"id" db:"id"`
	UserID     string     `json:"user_id" db:"user_id"`
	Amount     int        `json:"amount" db:"amount"`
	SourceType SourceType `json:"source_type" db:"source_type"`
	SourceID   string     `json:"source_id" db:"source_id"`
	Reason     string     `json:"reason" db:"reason"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
}
