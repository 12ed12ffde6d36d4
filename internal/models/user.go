package models

import (
	"time"
)

// User is a chat account linked to backend credentials. The primary key is the
// Telegram user id, so rows are upserted rather than auto-numbered.
type User struct {
	ID        int64     `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Username  string    `gorm:"type:varchar(255);not null;index" json:"username"`
	Password  string    `gorm:"type:text;not null" json:"-"`
	Push      bool      `gorm:"not null" json:"push"`
	TierMap   TierMap   `gorm:"type:text" json:"tier_map"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
