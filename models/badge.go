package models

import "time"

// BadgeTier orders badges for display. Ordering is cosmetic only — every
// badge is evaluated independently of its tier.
type BadgeTier string

const (
	TierBronze   BadgeTier = "bronze"
	TierSilver   BadgeTier = "silver"
	TierGold     BadgeTier = "gold"
	TierPlatinum BadgeTier = "platinum"
)

// Rank returns the sort position of a tier (bronze < silver < gold < platinum).
func (t BadgeTier) Rank() int {
	switch t {
	case TierBronze:
		return 1
	case TierSilver:
		return 2
	case TierGold:
		return 3
	case TierPlatinum:
		return 4
	}
	return 0
}

// Color is the display color keyed by tier, exhaustive over known tiers.
func (t BadgeTier) Color() string {
	switch t {
	case TierBronze:
		return "#cd7f32"
	case TierSilver:
		return "#c0c0c0"
	case TierGold:
		return "#ffd700"
	case TierPlatinum:
		return "#e5e4e2"
	}
	return "#9e9e9e"
}

// BadgeMetric is the event category a badge listens to.
type BadgeMetric string

const (
	MetricCurrentStreak    BadgeMetric = "current_streak"
	MetricTotalCompletions BadgeMetric = "total_completions"
	MetricTotalXP          BadgeMetric = "total_xp"
)

// Badge: static config. The catalog below is the single source of badge
// definitions; per-user state lives in BadgeProgress.
type Badge struct {
	Code        string      `json:"code"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Category    string      `json:"category"`
	Tier        BadgeTier   `json:"tier"`
	Metric      BadgeMetric `json:"metric"`
	Threshold   int64       `json:"threshold"`
	XPReward    int64       `json:"xp_reward"`
}

// BadgeProgressState: locked → earned is one-way.
type BadgeProgressState string

const (
	BadgeStateLocked BadgeProgressState = "locked"
	BadgeStateEarned BadgeProgressState = "earned"
)

// BadgeProgress tracks one user's monotonic progress toward one badge.
// Created lazily on first evaluation.
type BadgeProgress struct {
	ID             string             `gorm:"primaryKey;type:uuid" json:"id"`
	ExternalUserID string             `gorm:"not null;uniqueIndex:idx_user_badge" json:"external_user_id"`
	BadgeCode      string             `gorm:"not null;uniqueIndex:idx_user_badge" json:"badge_code"`
	Progress       int64              `gorm:"default:0" json:"progress"`
	State          BadgeProgressState `gorm:"type:varchar(16);default:'locked'" json:"state"`
	EarnedAt       *time.Time         `json:"earned_at,omitempty"`

	Timestamps
}

// BadgeCatalog is the fixed badge set, grouped by metric and tiered by
// threshold.
var BadgeCatalog = []Badge{
	{
		Code:        "STREAK_7",
		Name:        "One Week Strong",
		Description: "Reach a 7-day streak on any habit",
		Category:    "streak",
		Tier:        TierBronze,
		Metric:      MetricCurrentStreak,
		Threshold:   7,
		XPReward:    50,
	},
	{
		Code:        "STREAK_30",
		Name:        "Monthly Machine",
		Description: "Reach a 30-day streak on any habit",
		Category:    "streak",
		Tier:        TierSilver,
		Metric:      MetricCurrentStreak,
		Threshold:   30,
		XPReward:    200,
	},
	{
		Code:        "STREAK_100",
		Name:        "Century Club",
		Description: "Reach a 100-day streak on any habit",
		Category:    "streak",
		Tier:        TierGold,
		Metric:      MetricCurrentStreak,
		Threshold:   100,
		XPReward:    1000,
	},
	{
		Code:        "STREAK_365",
		Name:        "Year of Fire",
		Description: "Reach a 365-day streak on any habit",
		Category:    "streak",
		Tier:        TierPlatinum,
		Metric:      MetricCurrentStreak,
		Threshold:   365,
		XPReward:    5000,
	},
	{
		Code:        "COMPLETE_1",
		Name:        "First Step",
		Description: "Complete your first habit",
		Category:    "completions",
		Tier:        TierBronze,
		Metric:      MetricTotalCompletions,
		Threshold:   1,
		XPReward:    10,
	},
	{
		Code:        "COMPLETE_100",
		Name:        "Centurion",
		Description: "Log 100 habit completions",
		Category:    "completions",
		Tier:        TierSilver,
		Metric:      MetricTotalCompletions,
		Threshold:   100,
		XPReward:    250,
	},
	{
		Code:        "COMPLETE_500",
		Name:        "Relentless",
		Description: "Log 500 habit completions",
		Category:    "completions",
		Tier:        TierGold,
		Metric:      MetricTotalCompletions,
		Threshold:   500,
		XPReward:    1000,
	},
	{
		Code:        "COMPLETE_2000",
		Name:        "Force of Habit",
		Description: "Log 2000 habit completions",
		Category:    "completions",
		Tier:        TierPlatinum,
		Metric:      MetricTotalCompletions,
		Threshold:   2000,
		XPReward:    4000,
	},
	{
		Code:        "XP_1000",
		Name:        "Rising Star",
		Description: "Earn 1,000 total XP",
		Category:    "xp",
		Tier:        TierBronze,
		Metric:      MetricTotalXP,
		Threshold:   1000,
		XPReward:    100,
	},
	{
		Code:        "XP_10000",
		Name:        "Powerhouse",
		Description: "Earn 10,000 total XP",
		Category:    "xp",
		Tier:        TierSilver,
		Metric:      MetricTotalXP,
		Threshold:   10000,
		XPReward:    500,
	},
	{
		Code:        "XP_50000",
		Name:        "Legend",
		Description: "Earn 50,000 total XP",
		Category:    "xp",
		Tier:        TierGold,
		Metric:      MetricTotalXP,
		Threshold:   50000,
		XPReward:    2500,
	},
}

// BadgeByCode looks a badge up in the catalog.
func BadgeByCode(code string) (Badge, bool) {
	for _, b := range BadgeCatalog {
		if b.Code == code {
			return b, true
		}
	}
	return Badge{}, false
}

// BadgesForMetric returns the catalog entries listening to the given metric.
func BadgesForMetric(metric BadgeMetric) []Badge {
	var out []Badge
	for _, b := range BadgeCatalog {
		if b.Metric == metric {
			out = append(out, b)
		}
	}
	return out
}
