package model

import (
	"time"

	"gorm.io/datatypes"

	"github.com/kasuganosora/mmocache/entity"
)

// Guild represents a player guild. Members are the characters whose
// guild_id points at it.
type Guild struct {
	ID          int                                   `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string                                `gorm:"uniqueIndex;size:32;not null" json:"name"`
	LeaderID    string                                `gorm:"size:36;not null" json:"leader_id"`
	Message     string                                `gorm:"type:text" json:"message"`
	Gold        int64                                 `gorm:"default:0" json:"gold"`
	Level       int                                   `gorm:"default:1" json:"level"`
	Exp         int64                                 `gorm:"default:0" json:"exp"`
	SkillPoints int                                   `gorm:"default:0" json:"skill_points"`
	Roles       datatypes.JSONSlice[entity.GuildRole] `json:"roles"`
	Skills      datatypes.JSONType[map[int]int]       `json:"skills"`
	CreatedAt   time.Time                             `gorm:"autoCreateTime" json:"created_at"`
}

// Party represents a player party. Members are the characters whose
// party_id points at it.
type Party struct {
	ID        int       `gorm:"primaryKey;autoIncrement" json:"id"`
	ShareExp  bool      `gorm:"default:false" json:"share_exp"`
	ShareItem bool      `gorm:"default:false" json:"share_item"`
	LeaderID  string    `gorm:"size:36;not null" json:"leader_id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}
