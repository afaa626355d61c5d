package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/fardannozami/stepquest/internal/domain"
	"github.com/fardannozami/stepquest/internal/gamification"
)

type ReportActivityUsecase struct {
	svc      *gamification.Service
	activity domain.ActivityStore
}

func NewReportActivityUsecase(svc *gamification.Service, activity domain.ActivityStore) *ReportActivityUsecase {
	return &ReportActivityUsecase{svc: svc, activity: activity}
}

// Execute records today's report. steps is the step count the user typed,
// 0 when they only checked in. Reported steps only ever go up within a day.
func (uc *ReportActivityUsecase) Execute(ctx context.Context, userID, name string, steps int) (string, error) {
	if steps < 0 {
		steps = 0
	}

	if err := uc.svc.SetDisplayName(ctx, userID, name); err != nil {
		return "", err
	}

	today := uc.svc.Today()
	prev, err := uc.activity.GetDailyActivity(ctx, userID, today)
	if err != nil {
		return "", err
	}
	prevSteps := 0
	if prev != nil {
		prevSteps = prev.Steps
	}

	act, err := uc.activity.RecordSteps(ctx, userID, today, steps)
	if err != nil {
		return "", err
	}

	snap, err := uc.svc.RecordActivitySnapshot(ctx, userID, act.Steps, act.ChallengesSent)
	if err != nil {
		return "", err
	}

	sync, err := uc.svc.SyncDailySteps(ctx, userID, act.Steps)
	if err != nil {
		return "", err
	}

	streak := snap.Streak
	if !streak.Changed && act.Steps <= prevSteps {
		return fmt.Sprintf("%s sudah laporan hari ini, ayo jangan curang! 😉", name), nil
	}

	var sb strings.Builder
	if streak.Changed {
		sb.WriteString(fmt.Sprintf("Laporan diterima, %s sudah berkeringat %d hari berturut-turut. Lanjutkan 🔥\n", name, streak.Current))
	} else {
		sb.WriteString(fmt.Sprintf("Update diterima, %s sekarang %s langkah hari ini 👟\n", name, thousands(act.Steps)))
	}

	if sync.AwardedXP > 0 {
		sb.WriteString(fmt.Sprintf("👟 +%d XP dari %s langkah\n", sync.AwardedXP, thousands(act.Steps)))
	}
	if streak.BonusXP > 0 {
		sb.WriteString(fmt.Sprintf("🏅 Bonus streak %d hari: +%d XP\n", streak.Milestone, streak.BonusXP))
	}
	sb.WriteString(questLine(snap.Quest))

	// Steps are synced after the streak bonus, so sync.Level is current.
	if sync.LeveledUp || (streak.Award != nil && streak.Award.LeveledUp) {
		sb.WriteString(fmt.Sprintf("\n⭐ Naik ke level %d!", sync.Level))
	}

	return sb.String(), nil
}
