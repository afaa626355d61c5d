package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/fardannozami/stepquest/internal/domain"
	"github.com/fardannozami/stepquest/internal/gamification"
)

type QuestUsecase struct {
	svc *gamification.Service
}

func NewQuestUsecase(svc *gamification.Service) *QuestUsecase {
	return &QuestUsecase{svc: svc}
}

// Show returns today's quest, generating it on first request.
func (uc *QuestUsecase) Show(ctx context.Context, userID string) (string, error) {
	quest, err := uc.svc.GetTodayQuest(ctx, userID)
	if err != nil {
		return "", err
	}
	return questLine(quest), nil
}

// Claim claims today's quest reward.
func (uc *QuestUsecase) Claim(ctx context.Context, userID string) (string, error) {
	quest, err := uc.svc.GetTodayQuest(ctx, userID)
	if err != nil {
		return "", err
	}

	res, err := uc.svc.ClaimQuestReward(ctx, userID, quest.ID)
	switch {
	case errors.Is(err, domain.ErrNotCompleted):
		return fmt.Sprintf("Quest belum selesai, kurang %s lagi 💪", thousands(quest.Remaining())), nil
	case err != nil:
		return "", err
	case res.AlreadyClaimed:
		return "Hadiah quest hari ini sudah diklaim ✅", nil
	}

	msg := fmt.Sprintf("🎉 Quest selesai! +%d XP (total %d XP, level %d)", res.XPEarned, res.Award.NewTotalXP, res.Award.NewLevel)
	if res.Award.LeveledUp {
		msg += fmt.Sprintf("\n⭐ Naik ke level %d!", res.Award.NewLevel)
	}
	return msg, nil
}
