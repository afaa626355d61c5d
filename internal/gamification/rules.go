package gamification

import (
	"errors"
	"fmt"
	"math"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// Milestone is a streak length that pays a one-time bonus.
type Milestone struct {
	Days    int `yaml:"days" json:"days"`
	BonusXP int `yaml:"bonus_xp" json:"bonus_xp"`
}

// QuestTier is one row of the quest difficulty table. Step tiers use
// GoalFactor (a multiple of the daily step goal) unless Target is set.
type QuestTier struct {
	GoalFactor float64 `yaml:"goal_factor,omitempty"`
	Target     int     `yaml:"target,omitempty"`
	XPReward   int     `yaml:"xp_reward"`
}

// Rules is the product configuration of the engine.
type Rules struct {
	DailyStepGoal  int         `yaml:"daily_step_goal"`
	StepsPerXP     int         `yaml:"steps_per_xp"`
	MaxDailyStepXP int         `yaml:"max_daily_step_xp"`
	CampaignDays   int         `yaml:"campaign_days"`
	Milestones     []Milestone `yaml:"streak_milestones"`
	StepQuests     []QuestTier `yaml:"step_quests"`
	SocialQuests   []QuestTier `yaml:"social_quests"`
}

func DefaultRules() Rules {
	return Rules{
		DailyStepGoal:  10000,
		StepsPerXP:     1000,
		MaxDailyStepXP: 30,
		CampaignDays:   30,
		Milestones: []Milestone{
			{Days: 3, BonusXP: 50},
			{Days: 7, BonusXP: 150},
			{Days: 14, BonusXP: 300},
			{Days: 30, BonusXP: 1000},
			{Days: 60, BonusXP: 2000},
			{Days: 100, BonusXP: 5000},
		},
		StepQuests: []QuestTier{
			{GoalFactor: 0.6, XPReward: 30},
			{GoalFactor: 0.8, XPReward: 40},
			{GoalFactor: 1.0, XPReward: 50},
			{GoalFactor: 1.2, XPReward: 75},
		},
		SocialQuests: []QuestTier{
			{Target: 1, XPReward: 75},
			{Target: 2, XPReward: 100},
			{Target: 3, XPReward: 125},
		},
	}
}

// LoadRules reads a YAML rules file over the defaults. An empty path returns
// the defaults. Lists in the file replace the default lists entirely.
func LoadRules(path string) (Rules, error) {
	rules := DefaultRules()
	if path == "" {
		return rules, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, fmt.Errorf("read rules: %w", err)
	}
	if err := yaml.Unmarshal(raw, &rules); err != nil {
		return Rules{}, fmt.Errorf("parse rules %s: %w", path, err)
	}
	if err := rules.Validate(); err != nil {
		return Rules{}, fmt.Errorf("rules %s: %w", path, err)
	}
	return rules, nil
}

func (r Rules) Validate() error {
	var errs []error
	if r.DailyStepGoal <= 0 {
		errs = append(errs, errors.New("daily_step_goal must be positive"))
	}
	if r.StepsPerXP <= 0 {
		errs = append(errs, errors.New("steps_per_xp must be positive"))
	}
	if r.MaxDailyStepXP < 0 {
		errs = append(errs, errors.New("max_daily_step_xp must not be negative"))
	}
	if r.CampaignDays <= 0 {
		errs = append(errs, errors.New("campaign_days must be positive"))
	}

	last := 0
	for _, m := range r.Milestones {
		if m.Days <= last {
			errs = append(errs, fmt.Errorf("streak milestone %d is not ascending", m.Days))
		}
		if m.BonusXP <= 0 {
			errs = append(errs, fmt.Errorf("streak milestone %d has no bonus", m.Days))
		}
		last = m.Days
	}

	if len(r.StepQuests) == 0 {
		errs = append(errs, errors.New("step_quests is empty"))
	}
	if len(r.SocialQuests) == 0 {
		errs = append(errs, errors.New("social_quests is empty"))
	}
	for i, t := range r.StepQuests {
		if t.XPReward <= 0 || (t.Target <= 0 && t.GoalFactor <= 0) {
			errs = append(errs, fmt.Errorf("step_quests[%d] needs a target and a reward", i))
		}
	}
	for i, t := range r.SocialQuests {
		if t.XPReward <= 0 || t.Target <= 0 {
			errs = append(errs, fmt.Errorf("social_quests[%d] needs a target and a reward", i))
		}
	}
	return errors.Join(errs...)
}

// StepTarget resolves a step tier to a step count, rounded to the nearest 100.
func (r Rules) StepTarget(t QuestTier) int {
	if t.Target > 0 {
		return t.Target
	}
	target := int(math.Round(t.GoalFactor*float64(r.DailyStepGoal)/100)) * 100
	return max(target, 100)
}

// MilestoneFor returns the milestone reached at exactly days.
func (r Rules) MilestoneFor(days int) (Milestone, bool) {
	i, found := slices.BinarySearchFunc(r.Milestones, days, func(m Milestone, d int) int {
		return m.Days - d
	})
	if !found {
		return Milestone{}, false
	}
	return r.Milestones[i], true
}

// NextMilestone returns the smallest milestone strictly above current.
func (r Rules) NextMilestone(current int) (Milestone, bool) {
	for _, m := range r.Milestones {
		if m.Days > current {
			return m, true
		}
	}
	return Milestone{}, false
}
