package domain

import (
	"context"
	"time"
)

// ProgressStore is the persistence contract of the progression engine.
// Getters return (nil, nil) when the row does not exist.
type ProgressStore interface {
	GetUserProgress(ctx context.Context, userID string) (*UserProgress, error)
	// EnsureUserProgress creates a level 1, zero XP row if none exists.
	EnsureUserProgress(ctx context.Context, userID string) error
	UpdateStreak(ctx context.Context, userID string, current, longest int, lastActive time.Time) error
	UpdateDisplayName(ctx context.Context, userID, name string) error
	// CompareAndSwapXP writes total and level only if total_xp still equals oldTotal.
	CompareAndSwapXP(ctx context.Context, userID string, oldTotal, newTotal, newLevel int) (bool, error)

	GetQuest(ctx context.Context, questID string) (*DailyQuest, error)
	GetQuestForDate(ctx context.Context, userID string, date time.Time) (*DailyQuest, error)
	// InsertQuest inserts unless a quest exists for (user, date).
	InsertQuest(ctx context.Context, quest *DailyQuest) (bool, error)
	// RaiseQuestProgress sets progress to max(current, progress) on an unclaimed
	// quest and recomputes completion. Returns the quest after the update.
	RaiseQuestProgress(ctx context.Context, questID string, progress int, at time.Time) (*DailyQuest, error)
	// MarkQuestClaimed claims a completed, unclaimed quest. False means the
	// quest was not in a claimable state.
	MarkQuestClaimed(ctx context.Context, questID string, at time.Time) (bool, error)

	// TryInsertXPAward inserts the award unless one exists for the same
	// (user, source type, source id); in that case the existing row is returned.
	TryInsertXPAward(ctx context.Context, award *XPAward) (bool, *XPAward, error)
	// ListAwards returns a user's ledger, newest first.
	ListAwards(ctx context.Context, userID string) ([]*XPAward, error)
	CampaignStandings(ctx context.Context, since time.Time, limit int) ([]*CampaignStanding, error)

	// WithinTx runs fn against a transactional view of the store. An error
	// from fn rolls the transaction back.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx ProgressStore) error) error
}

// ActivityStore records the daily snapshots used to drive quest progress.
type ActivityStore interface {
	GetDailyActivity(ctx context.Context, userID string, date time.Time) (*DailyActivity, error)
	RecordSteps(ctx context.Context, userID string, date time.Time, steps int) (*DailyActivity, error)
	IncrementChallengesSent(ctx context.Context, userID string, date time.Time) (*DailyActivity, error)
}

type Store interface {
	ProgressStore
	ActivityStore
	Close() error
}
