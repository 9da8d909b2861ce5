package model

import (
	"time"

	"gorm.io/datatypes"

	"github.com/kasuganosora/mmocache/game/item"
)

// Character represents a player's in-game character. The inventory is kept
// as one JSON column since it is always read and written as a whole.
type Character struct {
	ID         string                         `gorm:"primaryKey;size:36" json:"id"`
	AccountID  string                         `gorm:"index:idx_account;size:36;not null" json:"account_id"`
	Name       string                         `gorm:"uniqueIndex;size:32;not null" json:"name"`
	DataID     int                            `gorm:"not null" json:"data_id"`
	EntityID   int                            `gorm:"default:0" json:"entity_id"`
	Level      int                            `gorm:"default:1" json:"level"`
	Exp        int64                          `gorm:"default:0" json:"exp"`
	CurrentHP  int                            `gorm:"default:0" json:"current_hp"`
	CurrentMP  int                            `gorm:"default:0" json:"current_mp"`
	StatPoint  float32                        `gorm:"default:0" json:"stat_point"`
	SkillPoint float32                        `gorm:"default:0" json:"skill_point"`
	Gold       int64                          `gorm:"default:0" json:"gold"`
	PartyID    int                            `gorm:"index:idx_char_party;default:0" json:"party_id"`
	GuildID    int                            `gorm:"index:idx_char_guild;default:0" json:"guild_id"`
	GuildRole  uint8                          `gorm:"default:0" json:"guild_role"`
	MapName    string                         `gorm:"size:64" json:"map_name"`
	PosX       float32                        `json:"pos_x"`
	PosY       float32                        `json:"pos_y"`
	PosZ       float32                        `json:"pos_z"`
	RespawnMap string                         `gorm:"size:64" json:"respawn_map"`
	Items      datatypes.JSONSlice[item.Slot] `json:"items"`
	CreatedAt  time.Time                      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time                      `gorm:"autoUpdateTime" json:"updated_at"`
}
