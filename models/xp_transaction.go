package models

import "time"

// XPSource attributes an XP change to the event that caused it.
type XPSource string

const (
	SourceHabitComplete     XPSource = "habit_complete"
	SourceStreakBonus       XPSource = "streak_bonus"
	SourcePerfectDay        XPSource = "perfect_day"
	SourceBadgeUnlock       XPSource = "badge_unlock"
	SourceChallengeComplete XPSource = "challenge_complete"
)

// XPSources lists every valid source, in display order.
var XPSources = []XPSource{
	SourceHabitComplete,
	SourceStreakBonus,
	SourcePerfectDay,
	SourceBadgeUnlock,
	SourceChallengeComplete,
}

// Label returns the human-readable name for a source. Unknown sources are a
// construction bug, so this is exhaustive.
func (s XPSource) Label() string {
	switch s {
	case SourceHabitComplete:
		return "Habit completed"
	case SourceStreakBonus:
		return "Streak milestone"
	case SourcePerfectDay:
		return "Perfect day"
	case SourceBadgeUnlock:
		return "Badge unlocked"
	case SourceChallengeComplete:
		return "Challenge completed"
	}
	return string(s)
}

// Valid reports whether s is a known source.
func (s XPSource) Valid() bool {
	for _, known := range XPSources {
		if s == known {
			return true
		}
	}
	return false
}

// XPTransaction is an append-only ledger row. Rows are never mutated:
// reversals are new negative-amount rows pointing at the original through
// ReversalOf. The unique index on reversal_of makes reversal idempotent at
// the storage level — a second reversal of the same original cannot commit.
type XPTransaction struct {
	ID             string   `gorm:"primaryKey;type:uuid" json:"id"`
	ExternalUserID string   `gorm:"index;not null" json:"external_user_id"`
	Amount         int64    `gorm:"not null" json:"amount"` // positive = grant, negative = reversal
	Source         XPSource `gorm:"type:varchar(32);not null" json:"source"`
	SourceID       string   `gorm:"index" json:"source_id"` // habit/badge/challenge id that caused it

	// CorrelationID groups every grant produced by one completion event
	// (habitID + ":" + date) so undo can reverse exactly that set.
	CorrelationID string `gorm:"index" json:"correlation_id,omitempty"`

	// ReversalOf points at the original transaction this row reverses.
	ReversalOf *string `gorm:"uniqueIndex" json:"reversal_of,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}
