package model

import "time"

// Friendship is a one-directional friend list entry.
type Friendship struct {
	CharID    string    `gorm:"primaryKey;size:36" json:"char_id"`
	FriendID  string    `gorm:"primaryKey;size:36" json:"friend_id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}
