package entity

import (
	"fmt"

	"github.com/kasuganosora/mmocache/game/item"
)

// StorageType selects who owns a storage container.
type StorageType uint8

const (
	StoragePlayer StorageType = iota
	StorageGuild
	StorageBuilding
)

func (t StorageType) String() string {
	switch t {
	case StoragePlayer:
		return "player"
	case StorageGuild:
		return "guild"
	case StorageBuilding:
		return "building"
	default:
		return fmt.Sprintf("storage_type(%d)", uint8(t))
	}
}

// Valid reports whether t is a known storage type.
func (t StorageType) Valid() bool {
	return t <= StorageBuilding
}

// StorageID identifies a storage container. For player storages the owner
// is the account id, for guild storages the guild id and for building
// storages the building id.
type StorageID struct {
	Type    StorageType `json:"type"`
	OwnerID string      `json:"owner_id"`
}

func (id StorageID) String() string {
	return fmt.Sprintf("%d:%s", id.Type, id.OwnerID)
}

// Storage holds the capacity of a storage container. It is derived from
// configuration or the live building, never persisted.
type Storage = item.Limits
