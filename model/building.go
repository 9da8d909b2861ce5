package model

import (
	"time"

	"gorm.io/datatypes"

	"github.com/kasuganosora/mmocache/entity"
	"github.com/kasuganosora/mmocache/game/item"
)

// Building is a structure placed on a map.
type Building struct {
	ID           string                             `gorm:"primaryKey;size:36" json:"id"`
	MapName      string                             `gorm:"index:idx_building_map;size:64;not null" json:"map_name"`
	ParentID     string                             `gorm:"size:36" json:"parent_id"`
	EntityID     int                                `gorm:"not null" json:"entity_id"`
	CreatorID    string                             `gorm:"size:36" json:"creator_id"`
	CreatorName  string                             `gorm:"size:32" json:"creator_name"`
	Position     datatypes.JSONType[entity.Vector3] `json:"position"`
	Rotation     datatypes.JSONType[entity.Vector3] `json:"rotation"`
	CurrentHP    int                                `json:"current_hp"`
	IsLocked     bool                               `json:"is_locked"`
	LockPassword string                             `gorm:"size:32" json:"-"`
	ExtraData    string                             `gorm:"type:text" json:"extra_data"`
	UpdatedAt    time.Time                          `gorm:"autoUpdateTime" json:"updated_at"`
}

// StorageItems holds the slot list of one storage container.
type StorageItems struct {
	StorageType uint8                          `gorm:"primaryKey" json:"storage_type"`
	OwnerID     string                         `gorm:"primaryKey;size:36" json:"owner_id"`
	Items       datatypes.JSONSlice[item.Slot] `json:"items"`
	UpdatedAt   time.Time                      `gorm:"autoUpdateTime" json:"updated_at"`
}
