package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fardannozami/stepquest/internal/domain"
	"github.com/fardannozami/stepquest/internal/gamification"
)

type GetStatsUsecase struct {
	svc *gamification.Service
}

func NewGetStatsUsecase(svc *gamification.Service) *GetStatsUsecase {
	return &GetStatsUsecase{svc: svc}
}

func (uc *GetStatsUsecase) Execute(ctx context.Context, userID, name string) (string, error) {
	stats, err := uc.svc.GetUserGamificationStats(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Sprintf("%s belum punya progres, kirim #lapor dulu ya 👟", name), nil
	}
	if err != nil {
		return "", err
	}

	p := stats.Progress
	sb := strings.Builder{}
	sb.WriteString(fmt.Sprintf("📊 Statistik %s\n", displayName(p.DisplayName, name)))
	sb.WriteString(fmt.Sprintf("Level %d – %s XP (%d%% ke level berikutnya, kurang %s XP)\n",
		p.Level, thousands(p.TotalXP), int(stats.LevelProgress*100), thousands(stats.XPToNextLevel)))

	switch {
	case !p.HasActivity():
		sb.WriteString("Streak: belum mulai, kirim #lapor 👟\n")
	case stats.StreakActive:
		sb.WriteString(fmt.Sprintf("Streak: %d hari 🔥 (terpanjang %d)\n", p.CurrentStreakDays, p.LongestStreakDays))
	default:
		sb.WriteString(fmt.Sprintf("Streak: %d hari 💔 (terpanjang %d)\n", p.CurrentStreakDays, p.LongestStreakDays))
	}
	if m := stats.NextMilestone; m != nil {
		sb.WriteString(fmt.Sprintf("Bonus berikutnya: streak %d hari (+%d XP)\n", m.Days, m.BonusXP))
	}
	sb.WriteString(questLine(stats.TodayQuest))

	return sb.String(), nil
}
