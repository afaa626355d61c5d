package usecase

import (
	"context"
	"fmt"

	"github.com/fardannozami/stepquest/internal/domain"
	"github.com/fardannozami/stepquest/internal/gamification"
)

// SendChallengeUsecase counts a challenge sent to the group and feeds the
// count into today's social quest.
type SendChallengeUsecase struct {
	svc      *gamification.Service
	activity domain.ActivityStore
}

func NewSendChallengeUsecase(svc *gamification.Service, activity domain.ActivityStore) *SendChallengeUsecase {
	return &SendChallengeUsecase{svc: svc, activity: activity}
}

func (uc *SendChallengeUsecase) Execute(ctx context.Context, userID, name string) (string, error) {
	if err := uc.svc.SetDisplayName(ctx, userID, name); err != nil {
		return "", err
	}

	act, err := uc.activity.IncrementChallengesSent(ctx, userID, uc.svc.Today())
	if err != nil {
		return "", err
	}

	quest, err := uc.svc.GetTodayQuest(ctx, userID)
	if err != nil {
		return "", err
	}
	if quest.QuestType == domain.QuestSocial && !quest.Claimed {
		quest, err = uc.svc.UpdateQuestProgress(ctx, quest.ID, act.ChallengesSent)
		if err != nil {
			return "", err
		}
	}

	return fmt.Sprintf("💪 %s mengirim tantangan ke grup (%d hari ini)\n%s", name, act.ChallengesSent, questLine(quest)), nil
}
