package services

import (
	"math"
	"sort"
)

// Economy constants. These are the tunable knobs of the XP system; everything
// else derives from them.
const (
	// BaseCompletionXP is granted for every habit completion.
	BaseCompletionXP int64 = 10

	// PerfectDayXP is granted when a completion finishes every habit
	// scheduled for that date.
	PerfectDayXP int64 = 25

	// BaseXPPerLevel anchors the level curve.
	BaseXPPerLevel int64 = 100
)

// StreakMilestones maps streak length to the one-time bonus granted when a
// habit's streak reaches it.
var StreakMilestones = map[int]int64{
	7:   50,
	30:  200,
	100: 1000,
}

// MilestonesCrossed returns, in ascending order, every milestone the streak
// passed moving from prev to current. A backdated log that fills a gap can
// jump the streak across a milestone without ever landing on it exactly.
func MilestonesCrossed(prev, current int) []int {
	var crossed []int
	for m := range StreakMilestones {
		if prev < m && m <= current {
			crossed = append(crossed, m)
		}
	}
	sort.Ints(crossed)
	return crossed
}

// XPForLevel returns the cumulative XP required to reach the given level.
// Level 1 costs nothing; the curve is quadratic so each level costs more
// than the last: xp(n) = BaseXPPerLevel * (n-1)^2.
func XPForLevel(level int) int64 {
	if level <= 1 {
		return 0
	}
	n := int64(level - 1)
	return BaseXPPerLevel * n * n
}

// LevelForXP is the inverse of XPForLevel: the highest level whose cumulative
// requirement totalXP meets.
func LevelForXP(totalXP int64) int {
	if totalXP <= 0 {
		return 1
	}
	// level-1 = floor(sqrt(totalXP / BaseXPPerLevel))
	level := 1 + int(math.Sqrt(float64(totalXP)/float64(BaseXPPerLevel)))
	// float rounding guard near exact boundaries
	for XPForLevel(level+1) <= totalXP {
		level++
	}
	for level > 1 && XPForLevel(level) > totalXP {
		level--
	}
	return level
}

// LevelProgress describes where totalXP sits on the level curve.
type LevelProgress struct {
	Level                int   `json:"level"`
	XPForCurrentLevel    int64 `json:"xp_for_current_level"`
	XPForNextLevel       int64 `json:"xp_for_next_level"`
	XPInCurrentLevel     int64 `json:"xp_in_current_level"`
	XPNeededForNextLevel int64 `json:"xp_needed_for_next_level"`
	ProgressPercent      int   `json:"progress_percent"`
}

// ComputeLevelProgress derives the full progress view for a total.
func ComputeLevelProgress(totalXP int64) LevelProgress {
	if totalXP < 0 {
		totalXP = 0
	}
	level := LevelForXP(totalXP)
	cur := XPForLevel(level)
	next := XPForLevel(level + 1)
	in := totalXP - cur
	needed := next - cur

	pct := 0
	if needed > 0 {
		pct = int(100 * in / needed)
	}
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}

	return LevelProgress{
		Level:                level,
		XPForCurrentLevel:    cur,
		XPForNextLevel:       next,
		XPInCurrentLevel:     in,
		XPNeededForNextLevel: needed,
		ProgressPercent:      pct,
	}
}
