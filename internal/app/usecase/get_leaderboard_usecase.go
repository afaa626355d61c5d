package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/fardannozami/stepquest/internal/domain"
	"github.com/fardannozami/stepquest/internal/gamification"
)

type GetLeaderboardUsecase struct {
	svc   *gamification.Service
	limit int
}

func NewGetLeaderboardUsecase(svc *gamification.Service, limit int) *GetLeaderboardUsecase {
	return &GetLeaderboardUsecase{svc: svc, limit: limit}
}

func (uc *GetLeaderboardUsecase) Execute(ctx context.Context) (string, error) {
	board, err := uc.svc.Leaderboard(ctx, uc.limit)
	if err != nil {
		return "", err
	}

	// Keep streak: active today or yesterday. Lose streak: anything older.
	var keepStreak, loseStreak []*gamification.LeaderboardEntry
	for _, e := range board.Entries {
		if e.StreakActive {
			keepStreak = append(keepStreak, e)
		} else {
			loseStreak = append(loseStreak, e)
		}
	}

	c := board.Campaign
	today := uc.svc.Today()
	day := domain.DaysBetween(c.Start, today) + 1

	sb := strings.Builder{}
	sb.WriteString(fmt.Sprintf("30 Days of Sweat Challenge #%d – Day %d (%s)\n\n", c.Number, day, today.Format("02-01-2006")))

	sb.WriteString(fmt.Sprintf("Recap day %d:\n", day))
	sb.WriteString(fmt.Sprintf("%d peoples keep the streak 🔥\n", len(keepStreak)))
	sb.WriteString(fmt.Sprintf("%d lose the streak 💔\n", len(loseStreak)))
	sb.WriteString("\nUpdate klasemen sementara:\n")

	rank := 1
	for _, e := range keepStreak {
		sb.WriteString(fmt.Sprintf("%d. %s - %s XP (Lv %d) · %d days streak 🔥\n", rank, displayName(e.DisplayName, e.UserID), thousands(e.CampaignXP), e.Level, e.CurrentStreak))
		rank++
	}
	for _, e := range loseStreak {
		sb.WriteString(fmt.Sprintf("%d. %s - %s XP (Lv %d) 💔\n", rank, displayName(e.DisplayName, e.UserID), thousands(e.CampaignXP), e.Level))
		rank++
	}

	sb.WriteString(fmt.Sprintf("\nSisa %d hari lagi. Yang udah keringetan langsung #lapor aja nanti dimasukkin klasemen 💪\n\nSemangat🔥", c.DaysRemaining))

	return sb.String(), nil
}
