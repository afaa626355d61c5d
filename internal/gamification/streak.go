package gamification

import (
	"time"

	"github.com/fardannozami/stepquest/internal/domain"
)

// StreakState is the streak portion of a user's progress.
type StreakState struct {
	Current    int
	Longest    int
	LastActive time.Time // calendar date, zero if never active
}

// AdvanceStreak applies one day of activity on today (a calendar date from
// domain.DateOf). It returns the new state and whether anything changed.
//
// Same day, or a day before the last recorded one, is a no-op. The next day
// extends the streak; any longer gap starts a new streak of one.
func AdvanceStreak(s StreakState, today time.Time) (StreakState, bool) {
	if !s.LastActive.IsZero() {
		switch gap := domain.DaysBetween(s.LastActive, today); {
		case gap <= 0:
			return s, false
		case gap == 1:
			s.Current++
		default:
			s.Current = 1
		}
	} else {
		s.Current = 1
	}

	s.Longest = max(s.Longest, s.Current)
	s.LastActive = today
	return s, true
}

// StreakTracker advances streaks against the injected clock and maps streak
// lengths to milestone bonuses.
type StreakTracker struct {
	rules Rules
	clock domain.Clock
	loc   *time.Location
}

func NewStreakTracker(rules Rules, clock domain.Clock, loc *time.Location) *StreakTracker {
	return &StreakTracker{rules: rules, clock: clock, loc: loc}
}

func (t *StreakTracker) Today() time.Time {
	return domain.DateOf(t.clock.Now(), t.loc)
}

// Record advances the streak for today.
func (t *StreakTracker) Record(s StreakState) (StreakState, bool) {
	return AdvanceStreak(s, t.Today())
}

// Milestone returns the milestone whose day count equals current.
func (t *StreakTracker) Milestone(current int) (Milestone, bool) {
	return t.rules.MilestoneFor(current)
}

func (t *StreakTracker) NextMilestone(current int) (Milestone, bool) {
	return t.rules.NextMilestone(current)
}

// Active reports whether a streak ending on lastActive can still continue
// today: the user was active today or yesterday.
func (t *StreakTracker) Active(lastActive time.Time) bool {
	if lastActive.IsZero() {
		return false
	}
	gap := domain.DaysBetween(lastActive, t.Today())
	return gap == 0 || gap == 1
}
