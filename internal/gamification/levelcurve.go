package gamification

import (
	"fmt"
	"math"

	"github.com/fardannozami/stepquest/internal/domain"
)

// MaxLevel is the level cap. Progress at the cap is always reported as full.
const MaxLevel = 50

// XPForLevel returns the total XP needed to reach level.
// Level 1 starts at zero; each further level costs 1.5x the previous step.
func XPForLevel(level int) int {
	if level <= 1 {
		return 0
	}
	return int(math.Floor(100 * (math.Pow(1.5, float64(level-1)) - 1) / 0.5))
}

// LevelForXP returns the highest level whose threshold is covered by totalXP,
// capped at MaxLevel.
func LevelForXP(totalXP int) (int, error) {
	if totalXP < 0 {
		return 0, fmt.Errorf("%w: negative xp %d", domain.ErrInvalidInput, totalXP)
	}
	return levelFor(totalXP), nil
}

func levelFor(totalXP int) int {
	level := 1
	for level < MaxLevel && XPForLevel(level+1) <= totalXP {
		level++
	}
	return level
}

// ProgressWithinLevel returns how far totalXP is between level and level+1,
// as a fraction in [0, 1].
func ProgressWithinLevel(totalXP, level int) (float64, error) {
	if totalXP < 0 {
		return 0, fmt.Errorf("%w: negative xp %d", domain.ErrInvalidInput, totalXP)
	}
	if level >= MaxLevel {
		return 1, nil
	}
	if level < 1 {
		level = 1
	}

	floor := XPForLevel(level)
	span := XPForLevel(level+1) - floor
	p := float64(totalXP-floor) / float64(span)
	return math.Min(1, math.Max(0, p)), nil
}

// XPToNextLevel returns the XP still missing to reach level+1, or 0 at the cap.
func XPToNextLevel(totalXP, level int) int {
	if level >= MaxLevel {
		return 0
	}
	return max(0, XPForLevel(level+1)-totalXP)
}
