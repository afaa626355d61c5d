package gamification_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fardannozami/stepquest/internal/domain"
	"github.com/fardannozami/stepquest/internal/gamification"
	"github.com/fardannozami/stepquest/internal/infra/memory"
)

// =============================================================================
// STREAKS AND MILESTONES
// =============================================================================

func TestUpdateUserStreak_MilestonePaidOnce(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	var res *gamification.StreakResult
	for d := 1; d <= 3; d++ {
		var err error
		res, err = f.svc.UpdateUserStreak(ctx, "u1")
		if err != nil {
			t.Fatalf("day %d: %v", d, err)
		}
		if res.Current != d {
			t.Errorf("day %d: streak %d", d, res.Current)
		}
		if d < 3 {
			if res.BonusXP != 0 {
				t.Errorf("day %d: unexpected bonus %d", d, res.BonusXP)
			}
			f.clock.AddDays(1)
		}
	}
	if res.Milestone != 3 || res.BonusXP != 50 {
		t.Errorf("day 3: expected the 50 XP milestone, got %+v", res)
	}

	again, err := f.svc.UpdateUserStreak(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if again.Changed || again.BonusXP != 0 || again.Current != 3 {
		t.Errorf("same day repeat should change nothing, got %+v", again)
	}

	if p := f.progress(t, "u1"); p.TotalXP != 50 {
		t.Errorf("total %d, want 50", p.TotalXP)
	}
	if len(f.observer.milestones) != 1 {
		t.Errorf("expected one milestone observed, got %v", f.observer.milestones)
	}
}

func TestUpdateUserStreak_BrokenStreakKeepsLongest(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	for d := 0; d < 4; d++ {
		if _, err := f.svc.UpdateUserStreak(ctx, "u1"); err != nil {
			t.Fatal(err)
		}
		f.clock.AddDays(1)
	}
	f.clock.AddDays(1)

	res, err := f.svc.UpdateUserStreak(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if res.Current != 1 || res.Longest != 4 {
		t.Errorf("expected 1/4 after a gap, got %d/%d", res.Current, res.Longest)
	}
}

func TestUpdateUserStreak_RequiresUser(t *testing.T) {
	f := newFixture(t, nil)
	if _, err := f.svc.UpdateUserStreak(context.Background(), ""); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestGetNextStreakMilestone(t *testing.T) {
	f := newFixture(t, nil)

	if m, ok := f.svc.GetNextStreakMilestone(3); !ok || m.Days != 7 || m.BonusXP != 150 {
		t.Errorf("after 3 days expected 7 day milestone, got %+v %v", m, ok)
	}
	if _, ok := f.svc.GetNextStreakMilestone(150); ok {
		t.Error("no milestone after the last one")
	}
}

// =============================================================================
// ACTIVITY SNAPSHOTS AND STEP XP
// =============================================================================

func TestRecordActivitySnapshot_FeedsMatchingQuest(t *testing.T) {
	f := newFixture(t, &scriptedRandom{vals: []int{1, 1}}) // social, 2 challenges
	ctx := context.Background()

	res, err := f.svc.RecordActivitySnapshot(ctx, "u1", 12000, 1)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if res.Quest.QuestType != domain.QuestSocial || res.Quest.CurrentProgress != 1 || res.Quest.Completed {
		t.Errorf("social quest should count challenges, got %+v", res.Quest)
	}
	if res.Streak.Current != 1 {
		t.Errorf("snapshot should advance the streak, got %+v", res.Streak)
	}

	res, err = f.svc.RecordActivitySnapshot(ctx, "u1", 12000, 2)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Quest.Completed {
		t.Errorf("2 challenges should complete the quest, got %+v", res.Quest)
	}

	if _, err := f.svc.RecordActivitySnapshot(ctx, "u1", -1, 0); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for negative steps, got %v", err)
	}
}

func TestSyncDailySteps(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	res, err := f.svc.SyncDailySteps(ctx, "u1", 4500)
	if err != nil {
		t.Fatal(err)
	}
	if res.EligibleXP != 4 || res.AwardedXP != 4 || res.TotalXP != 4 {
		t.Errorf("4500 steps: %+v", res)
	}

	// Syncing the same or a lower count pays nothing.
	for _, steps := range []int{4500, 3000} {
		res, err = f.svc.SyncDailySteps(ctx, "u1", steps)
		if err != nil {
			t.Fatal(err)
		}
		if res.AwardedXP != 0 || res.TotalXP != 4 {
			t.Errorf("%d steps again: %+v", steps, res)
		}
	}

	// Capped at 30 XP a day.
	res, err = f.svc.SyncDailySteps(ctx, "u1", 90000)
	if err != nil {
		t.Fatal(err)
	}
	if res.EligibleXP != 30 || res.AwardedXP != 26 || res.TotalXP != 30 {
		t.Errorf("90000 steps: %+v", res)
	}

	// A new day starts over.
	f.clock.AddDays(1)
	res, err = f.svc.SyncDailySteps(ctx, "u1", 1000)
	if err != nil {
		t.Fatal(err)
	}
	if res.AwardedXP != 1 || res.TotalXP != 31 {
		t.Errorf("next day: %+v", res)
	}

	if res, err := f.svc.SyncDailySteps(ctx, "u2", 999); err != nil || res.AwardedXP != 0 || res.Level != 1 {
		t.Errorf("under one unit: %+v %v", res, err)
	}
}

// =============================================================================
// STATS, CAMPAIGNS AND LEADERBOARD
// =============================================================================

func TestGetUserGamificationStats(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	if _, err := f.svc.GetUserGamificationStats(ctx, "u1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("unknown user: expected ErrNotFound, got %v", err)
	}

	if _, err := f.svc.AddXPToUser(ctx, gamification.AwardRequest{
		UserID: "u1", Amount: 150, SourceType: domain.SourceOther, SourceID: "seed",
	}); err != nil {
		t.Fatal(err)
	}

	stats, err := f.svc.GetUserGamificationStats(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if stats.Progress.Level != 2 || stats.XPToNextLevel != 100 {
		t.Errorf("unexpected stats %+v", stats)
	}
	if stats.LevelProgress < 0.33 || stats.LevelProgress > 0.34 {
		t.Errorf("level progress %f, want 0.333", stats.LevelProgress)
	}
	if stats.TodayQuest != nil {
		t.Error("stats must not generate a quest")
	}
	if stats.StreakActive {
		t.Error("no activity yet, streak should not be active")
	}
	if stats.NextMilestone == nil || stats.NextMilestone.Days != 3 {
		t.Errorf("next milestone should be 3 days, got %+v", stats.NextMilestone)
	}
}

func TestCurrentCampaign(t *testing.T) {
	f := newFixture(t, nil) // campaigns start 2026-01-01, today is 2026-02-10

	c := f.svc.CurrentCampaign()
	if c.Number != 2 {
		t.Errorf("campaign number %d, want 2", c.Number)
	}
	if !c.Start.Equal(time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("campaign start %s", c.Start)
	}
	if c.DaysRemaining != 20 {
		t.Errorf("days remaining %d, want 20", c.DaysRemaining)
	}
}

func TestCurrentCampaign_WestOfUTC(t *testing.T) {
	ny := time.FixedZone("EST", -5*60*60)
	svc := gamification.NewService(gamification.Options{
		Store:         memory.NewStore(),
		Clock:         &testClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, ny)},
		Location:      ny,
		CampaignStart: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	})

	c := svc.CurrentCampaign()
	if !c.Start.Equal(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("campaign start %s, want 2026-01-01", domain.FormatDate(c.Start))
	}
	if c.Number != 1 || c.DaysRemaining != 30 {
		t.Errorf("campaign #%d with %d days left, want #1 with 30", c.Number, c.DaysRemaining)
	}
}

func TestLeaderboard_RanksByCampaignXP(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	add := func(user, source string, amount int) {
		t.Helper()
		if _, err := f.svc.AddXPToUser(ctx, gamification.AwardRequest{
			UserID: user, Amount: amount, SourceType: domain.SourceOther, SourceID: source,
		}); err != nil {
			t.Fatal(err)
		}
	}

	// Earned in the previous campaign: counts for total XP only.
	f.clock.AddDays(-20)
	add("veteran", "old", 1000)
	f.clock.AddDays(20)

	add("veteran", "new", 10)
	add("rookie", "new", 40)
	if err := f.svc.SetDisplayName(ctx, "rookie", "Rookie"); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.UpdateUserStreak(ctx, "rookie"); err != nil {
		t.Fatal(err)
	}

	board, err := f.svc.Leaderboard(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(board.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(board.Entries))
	}

	first, second := board.Entries[0], board.Entries[1]
	if first.UserID != "rookie" || first.Rank != 1 || first.CampaignXP != 40 || first.DisplayName != "Rookie" {
		t.Errorf("unexpected first entry %+v", first)
	}
	if !first.StreakActive || first.CurrentStreak != 1 {
		t.Errorf("rookie streak should be active, got %+v", first)
	}
	if second.UserID != "veteran" || second.CampaignXP != 10 || second.TotalXP != 1010 {
		t.Errorf("unexpected second entry %+v", second)
	}
}
