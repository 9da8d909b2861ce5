package facade

import (
	"context"

	"github.com/kasuganosora/mmocache/entity"
	"github.com/kasuganosora/mmocache/game/building"
)

// CapacityProvider resolves the limits of a storage container. ok=false
// means the storage does not exist right now, e.g. its building is not
// loaded by any game server.
type CapacityProvider interface {
	Storage(ctx context.Context, id entity.StorageID) (entity.Storage, bool, error)
}

// StaticCapacity serves player and guild storages from configuration and
// building storages from a live-building registry.
type StaticCapacity struct {
	Player    entity.Storage
	Guild     entity.Storage
	Buildings building.Registry
}

func (c StaticCapacity) Storage(ctx context.Context, id entity.StorageID) (entity.Storage, bool, error) {
	switch id.Type {
	case entity.StoragePlayer:
		return c.Player, true, nil
	case entity.StorageGuild:
		return c.Guild, true, nil
	case entity.StorageBuilding:
		if c.Buildings == nil {
			return entity.Storage{}, false, nil
		}
		b, ok, err := c.Buildings.Get(ctx, id.OwnerID)
		if err != nil || !ok {
			return entity.Storage{}, false, err
		}
		return b.Storage, true, nil
	default:
		return entity.Storage{}, false, nil
	}
}
