package domain

import (
	"fmt"
	"time"
)

type QuestType string

const (
	QuestSteps  QuestType = "steps"
	QuestSocial QuestType = "social"
)

func (t QuestType) Valid() bool {
	return t == QuestSteps || t == QuestSocial
}

func ParseQuestType(s string) (QuestType, error) {
	t := QuestType(s)
	if !t.Valid() {
		return "", fmt.Errorf("%w: unknown quest type %q", ErrInvalidInput, s)
	}
	return t, nil
}

type DailyQuest struct {
	ID              string     `json:"id" db:"id"`
	UserID          string     `json:"user_id" db:"user_id"`
	QuestDate       time.Time  `json:"quest_date" db:"quest_date"`
	QuestType       QuestType  `json:"quest_type" db:"quest_type"`
	TargetValue     int        `json:"target_value" db:"target_value"`
	CurrentProgress int        `json:"current_progress" db:"current_progress"`
	XPReward        int        `json:"xp_reward" db:"xp_reward"`
	Completed       bool       `json:"completed" db:"completed"`
	Claimed         bool       `json:"claimed" db:"claimed"`
	CompletedAt     *time.Time `json:"completed_at,omitempty" db:"completed_at"`
	ClaimedAt       *time.Time `json:"claimed_at,omitempty" db:"claimed_at"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
}

// QuestStatus is a quest's position in its lifecycle:
// generated -> in-progress -> completed -> claimed.
type QuestStatus string

const (
	QuestGenerated  QuestStatus = "generated"
	QuestInProgress QuestStatus = "in-progress"
	QuestCompleted  QuestStatus = "completed"
	QuestClaimed    QuestStatus = "claimed"
)

func (q *DailyQuest) Status() QuestStatus {
	switch {
	case q.Claimed:
		return QuestClaimed
	case q.Completed:
		return QuestCompleted
	case q.CurrentProgress > 0:
		return QuestInProgress
	default:
		return QuestGenerated
	}
}

// Remaining is how much progress is still missing before the quest completes.
func (q *DailyQuest) Remaining() int {
	if q.CurrentProgress >= q.TargetValue {
		return 0
	}
	return q.TargetValue - q.CurrentProgress
}
