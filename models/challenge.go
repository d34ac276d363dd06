package models

import "time"

// ChallengeTargetType selects how participant progress is measured.
type ChallengeTargetType string

const (
	TargetDailyCompletions ChallengeTargetType = "daily_completions" // distinct days with ≥1 completion since join
	TargetStreakDays       ChallengeTargetType = "streak_days"       // habit streak at event time, capped at target
	TargetTotalCompletions ChallengeTargetType = "total_completions" // completions since join
	TargetXPGain           ChallengeTargetType = "xp_gain"           // XP granted since join
)

// Valid reports whether t is a known target type.
func (t ChallengeTargetType) Valid() bool {
	switch t {
	case TargetDailyCompletions, TargetStreakDays, TargetTotalCompletions, TargetXPGain:
		return true
	}
	return false
}

// ChallengeDifficulty fixes the XP reward for completing a challenge.
type ChallengeDifficulty string

const (
	DifficultyEasy    ChallengeDifficulty = "easy"
	DifficultyMedium  ChallengeDifficulty = "medium"
	DifficultyHard    ChallengeDifficulty = "hard"
	DifficultyExtreme ChallengeDifficulty = "extreme"
)

// XPReward is the fixed payout per difficulty, exhaustive over known values.
func (d ChallengeDifficulty) XPReward() int64 {
	switch d {
	case DifficultyEasy:
		return 100
	case DifficultyMedium:
		return 250
	case DifficultyHard:
		return 500
	case DifficultyExtreme:
		return 1000
	}
	return 0
}

// ChallengeStatus is the challenge lifecycle; the expiry scheduler flips
// active → ended once EndDate passes.
type ChallengeStatus string

const (
	ChallengeActive ChallengeStatus = "active"
	ChallengeEnded  ChallengeStatus = "ended"
)

// Challenge is a shared, time-boxed target many users can join.
type Challenge struct {
	ID          string              `gorm:"primaryKey;type:uuid" json:"id"`
	Title       string              `gorm:"not null" json:"title"`
	Slug        string              `gorm:"uniqueIndex" json:"slug"`
	Description string              `gorm:"type:text" json:"description"`
	TargetType  ChallengeTargetType `gorm:"type:varchar(32);not null" json:"target_type"`
	TargetValue int64               `gorm:"not null" json:"target_value"`
	Difficulty  ChallengeDifficulty `gorm:"type:varchar(16);not null" json:"difficulty"`
	StartDate   time.Time           `gorm:"not null" json:"start_date"`
	EndDate     time.Time           `gorm:"not null;index" json:"end_date"`
	Status      ChallengeStatus     `gorm:"type:varchar(16);default:'active'" json:"status"`

	Timestamps

	// Calculated, not stored
	ParticipantCount int64 `json:"participant_count,omitempty" gorm:"-"`
}

// ParticipantState: joined → completed is one-way.
type ParticipantState string

const (
	ParticipantJoined    ParticipantState = "joined"
	ParticipantCompleted ParticipantState = "completed"
)

// ChallengeParticipant is one user's progress record in one challenge.
// Progress counts only events after JoinedAt and before the challenge's end.
type ChallengeParticipant struct {
	ID             string           `gorm:"primaryKey;type:uuid" json:"id"`
	ChallengeID    string           `gorm:"not null;uniqueIndex:idx_challenge_user" json:"challenge_id"`
	ExternalUserID string           `gorm:"not null;uniqueIndex:idx_challenge_user" json:"external_user_id"`
	JoinedAt       time.Time        `gorm:"not null" json:"joined_at"`
	Progress       int64            `gorm:"default:0" json:"progress"`
	State          ParticipantState `gorm:"type:varchar(16);default:'joined'" json:"state"`
	CompletedAt    *time.Time       `json:"completed_at,omitempty"`

	Timestamps

	Challenge Challenge `json:"challenge,omitempty" gorm:"foreignKey:ChallengeID"`
}
