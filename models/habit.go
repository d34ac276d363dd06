package models

import "time"

// DateLayout is the calendar-date format used for habit logs. Logs are keyed
// by date, not timestamp — the caller normalizes to the user's start-of-day
// before anything reaches the engine.
const DateLayout = "2006-01-02"

// HabitFrequency controls which days a habit is scheduled on.
type HabitFrequency string

const (
	FrequencyDaily  HabitFrequency = "daily"
	FrequencyCustom HabitFrequency = "custom" // explicit weekday set in ScheduleDays
)

// Habit is owned by exactly one user and mutated only through log/undo events.
type Habit struct {
	ID             string         `gorm:"primaryKey;type:uuid" json:"id"`
	ExternalUserID string         `gorm:"index;not null" json:"external_user_id"`
	Name           string         `gorm:"not null" json:"name"`
	Frequency      HabitFrequency `gorm:"type:varchar(16);default:'daily'" json:"frequency"`

	// ScheduleDays holds 0=Sunday..6=Saturday; only meaningful when
	// Frequency is custom.
	ScheduleDays []int `gorm:"type:jsonb;serializer:json" json:"schedule_days,omitempty"`

	CurrentStreak int `gorm:"default:0" json:"current_streak"`
	LongestStreak int `gorm:"default:0" json:"longest_streak"`
	DailyGoal     int `gorm:"default:1" json:"daily_goal"`

	Timestamps
}

// ScheduledOn reports whether the habit is scheduled on the given calendar day.
func (h *Habit) ScheduledOn(day time.Time) bool {
	if h.Frequency == FrequencyDaily {
		return true
	}
	wd := int(day.Weekday())
	for _, d := range h.ScheduleDays {
		if d == wd {
			return true
		}
	}
	return false
}

// HabitLog records one completion of a habit on one calendar day.
// The unique index on (habit_id, log_date) is the hard invariant the whole
// engine leans on: at most one completion per habit per day.
type HabitLog struct {
	ID             string `gorm:"primaryKey;type:uuid" json:"id"`
	HabitID        string `gorm:"not null;index;uniqueIndex:idx_habit_log_day" json:"habit_id"`
	ExternalUserID string `gorm:"index;not null" json:"external_user_id"`
	LogDate        string `gorm:"type:varchar(10);not null;uniqueIndex:idx_habit_log_day" json:"log_date"` // YYYY-MM-DD
	Completed      bool   `gorm:"default:true" json:"completed"`

	Timestamps
}
