package model

import "time"

// Account represents a player login account.
type Account struct {
	ID           string     `gorm:"primaryKey;size:36" json:"id"`
	Username     string     `gorm:"uniqueIndex;size:32;not null" json:"username"`
	PasswordHash string     `gorm:"size:64;not null" json:"-"`
	AccessToken  string     `gorm:"size:64" json:"-"`
	Gold         int64      `gorm:"default:0" json:"gold"`
	Cash         int64      `gorm:"default:0" json:"cash"`
	UserLevel    uint8      `gorm:"default:0" json:"user_level"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	LastLoginAt  *time.Time `json:"last_login_at"`
}
