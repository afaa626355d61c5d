package gamification

import "github.com/fardannozami/stepquest/internal/domain"

// Observer receives engine events after they are persisted.
type Observer interface {
	XPAwarded(source domain.SourceType, amount int)
	DuplicateAward(source domain.SourceType)
	LeveledUp(level int)
	QuestGenerated(questType domain.QuestType)
	QuestClaimed(questType domain.QuestType)
	StreakMilestone(days int)
}

type nopObserver struct{}

func (nopObserver) XPAwarded(domain.SourceType, int) {}
func (nopObserver) DuplicateAward(domain.SourceType) {}
func (nopObserver) LeveledUp(int)                    {}
func (nopObserver) QuestGenerated(domain.QuestType)  {}
func (nopObserver) QuestClaimed(domain.QuestType)    {}
func (nopObserver) StreakMilestone(int)              {}
