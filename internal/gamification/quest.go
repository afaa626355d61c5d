package gamification

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fardannozami/stepquest/internal/domain"
)

// ClaimResult is returned by a successful claim.
type ClaimResult struct {
	Quest    *domain.DailyQuest `json:"quest"`
	XPEarned int                `json:"xp_earned"`
	// AlreadyClaimed marks a repeated claim that credited nothing.
	AlreadyClaimed bool         `json:"already_claimed"`
	Award          *AwardResult `json:"award,omitempty"`
}

// QuestEngine drives the daily quest lifecycle:
// generated -> in-progress -> completed -> claimed.
type QuestEngine struct {
	store    domain.ProgressStore
	ledger   *Ledger
	rules    Rules
	rng      domain.RandomSource
	clock    domain.Clock
	observer Observer
}

func NewQuestEngine(store domain.ProgressStore, ledger *Ledger, rules Rules, rng domain.RandomSource, clock domain.Clock, observer Observer) *QuestEngine {
	if observer == nil {
		observer = nopObserver{}
	}
	return &QuestEngine{
		store:    store,
		ledger:   ledger,
		rules:    rules,
		rng:      &lockedRandom{src: rng},
		clock:    clock,
		observer: observer,
	}
}

// Generate returns the user's quest for date, creating one if none exists.
func (e *QuestEngine) Generate(ctx context.Context, userID string, date time.Time) (*domain.DailyQuest, error) {
	if userID == "" {
		return nil, invalid("quest without user id")
	}

	existing, err := e.store.GetQuestForDate(ctx, userID, date)
	if err != nil {
		return nil, persistErr("get quest", err)
	}
	if existing != nil {
		return existing, nil
	}

	questType, target, reward := e.pick()
	quest := &domain.DailyQuest{
		ID:          uuid.NewString(),
		UserID:      userID,
		QuestDate:   date,
		QuestType:   questType,
		TargetValue: target,
		XPReward:    reward,
		CreatedAt:   e.clock.Now().UTC(),
	}

	inserted, err := e.store.InsertQuest(ctx, quest)
	if err != nil {
		return nil, persistErr("insert quest", err)
	}
	if inserted {
		e.observer.QuestGenerated(questType)
		return quest, nil
	}

	// Another caller generated today's quest first.
	winner, err := e.store.GetQuestForDate(ctx, userID, date)
	if err != nil {
		return nil, persistErr("get quest", err)
	}
	if winner == nil {
		return nil, fmt.Errorf("generate quest: %w: quest for %s on %s not visible after conflict",
			domain.ErrPersistence, userID, domain.FormatDate(date))
	}
	return winner, nil
}

func (e *QuestEngine) pick() (domain.QuestType, int, int) {
	if e.rng.IntN(2) == 0 {
		tier := e.rules.StepQuests[e.rng.IntN(len(e.rules.StepQuests))]
		return domain.QuestSteps, e.rules.StepTarget(tier), tier.XPReward
	}
	tier := e.rules.SocialQuests[e.rng.IntN(len(e.rules.SocialQuests))]
	return domain.QuestSocial, tier.Target, tier.XPReward
}

// UpdateProgress raises the quest's progress to at least progress. Lower or
// repeated values and updates to claimed quests change nothing.
func (e *QuestEngine) UpdateProgress(ctx context.Context, questID string, progress int) (*domain.DailyQuest, error) {
	if questID == "" {
		return nil, invalid("progress update without quest id")
	}
	if progress < 0 {
		return nil, invalid("negative quest progress %d", progress)
	}

	quest, err := e.store.RaiseQuestProgress(ctx, questID, progress, e.clock.Now().UTC())
	if err != nil {
		return nil, persistErr("update quest progress", err)
	}
	if quest == nil {
		return nil, fmt.Errorf("quest %s: %w", questID, domain.ErrNotFound)
	}
	return quest, nil
}

// Claim pays out a completed quest once. The award is written before the
// quest is marked claimed; a retry after a failure in between finds the
// award already present and only finishes the claim. XPEarned is non-zero
// only for the call whose award credited the reward.
func (e *QuestEngine) Claim(ctx context.Context, userID, questID string) (*ClaimResult, error) {
	if userID == "" || questID == "" {
		return nil, invalid("claim needs user id and quest id")
	}

	quest, err := e.store.GetQuest(ctx, questID)
	if err != nil {
		return nil, persistErr("get quest", err)
	}
	if quest == nil || quest.UserID != userID {
		return nil, fmt.Errorf("quest %s: %w", questID, domain.ErrNotFound)
	}
	if quest.Claimed {
		return nil, fmt.Errorf("quest %s: %w", questID, domain.ErrAlreadyClaimed)
	}
	if !quest.Completed {
		return nil, fmt.Errorf("quest %s at %d/%d: %w", questID, quest.CurrentProgress, quest.TargetValue, domain.ErrNotCompleted)
	}

	award, err := e.ledger.Award(ctx, AwardRequest{
		UserID:     userID,
		Amount:     quest.XPReward,
		SourceType: domain.SourceQuest,
		SourceID:   quest.ID,
		Reason:     fmt.Sprintf("daily %s quest %s", quest.QuestType, domain.FormatDate(quest.QuestDate)),
	})
	if err != nil {
		return nil, err
	}
	earned := 0
	if !award.Duplicate {
		earned = quest.XPReward
	}

	now := e.clock.Now().UTC()
	ok, err := e.store.MarkQuestClaimed(ctx, quest.ID, now)
	if err != nil {
		return nil, persistErr("mark quest claimed", err)
	}
	if !ok {
		if earned == 0 {
			return nil, fmt.Errorf("quest %s: %w", questID, domain.ErrAlreadyClaimed)
		}
		// A concurrent claim marked the quest, but this call's award paid.
		current, err := e.store.GetQuest(ctx, quest.ID)
		if err != nil {
			return nil, persistErr("get quest", err)
		}
		return &ClaimResult{Quest: current, XPEarned: earned, Award: award}, nil
	}

	quest.Claimed = true
	quest.ClaimedAt = &now
	e.observer.QuestClaimed(quest.QuestType)

	return &ClaimResult{Quest: quest, XPEarned: earned, AlreadyClaimed: earned == 0, Award: award}, nil
}

// lockedRandom serializes access to a random source; *rand.Rand is not safe
// for concurrent use.
type lockedRandom struct {
	mu  sync.Mutex
	src domain.RandomSource
}

func (r *lockedRandom) IntN(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.src.IntN(n)
}
