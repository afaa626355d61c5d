package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/fardannozami/stepquest/internal/domain"
)

func TestObserver_CountsEvents(t *testing.T) {
	reg := prometheus.NewRegistry()
	o := NewObserver(reg)

	o.XPAwarded(domain.SourceQuest, 50)
	o.XPAwarded(domain.SourceQuest, 75)
	o.DuplicateAward(domain.SourceQuest)
	o.LeveledUp(3)
	o.QuestClaimed(domain.QuestSteps)
	o.StreakMilestone(7)

	if got := testutil.ToFloat64(o.xpAwarded.WithLabelValues("quest")); got != 125 {
		t.Errorf("expected 125 quest xp, got %v", got)
	}
	if got := testutil.ToFloat64(o.awards.WithLabelValues("quest")); got != 2 {
		t.Errorf("expected 2 quest awards, got %v", got)
	}
	if got := testutil.ToFloat64(o.duplicateAwards.WithLabelValues("quest")); got != 1 {
		t.Errorf("expected 1 duplicate, got %v", got)
	}
	if got := testutil.ToFloat64(o.levelUps.WithLabelValues("3")); got != 1 {
		t.Errorf("expected 1 level up to 3, got %v", got)
	}
	if got := testutil.ToFloat64(o.questsClaimed.WithLabelValues("steps")); got != 1 {
		t.Errorf("expected 1 steps claim, got %v", got)
	}
	if got := testutil.ToFloat64(o.milestones.WithLabelValues("7")); got != 1 {
		t.Errorf("expected 1 milestone at 7 days, got %v", got)
	}
}
