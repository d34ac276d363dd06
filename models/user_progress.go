package models

import (
	"time"

	"gorm.io/gorm"
)

// UserProgress caches per-user gamification totals (denormalized for reads).
// TotalXP must always equal the sum of the user's xp_transactions; the ledger
// maintains it in the same transaction as every grant/reversal, and the
// reconciler worker repairs any drift it finds.
type UserProgress struct {
	ID             string `gorm:"primaryKey;type:uuid" json:"id"`
	ExternalUserID string `gorm:"uniqueIndex;not null" json:"external_user_id"`

	TotalXP int64 `json:"total_xp" gorm:"default:0"`
	Level   int   `json:"level" gorm:"default:1"`

	TotalCompletions int64 `json:"total_completions" gorm:"default:0"`
	PerfectDays      int64 `json:"perfect_days" gorm:"default:0"`

	LastLevelUpAt *time.Time `json:"last_level_up_at,omitempty"`

	Timestamps
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}
