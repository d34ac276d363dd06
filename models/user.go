package models

import (
	"time"

	"gorm.io/gorm"
)

// HabitUser is a local snapshot of user data needed by the engine.
// Owned solely by this service; populated via sync worker from the profile
// service. Used for existence checks before applying gamification events.
type HabitUser struct {
	ID                string     `gorm:"primaryKey;type:uuid" json:"id"`
	ExternalUserID    string     `gorm:"uniqueIndex;not null" json:"external_user_id"`
	Username          string     `gorm:"index;not null" json:"username"`
	Email             string     `json:"email,omitempty"`
	ProfilePictureURL *string    `json:"profile_picture_url,omitempty"`
	Timezone          string     `gorm:"default:'UTC'" json:"timezone"`
	CreatedAt         time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt         time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
	LastSeen          *time.Time `json:"last_seen,omitempty"`

	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}
