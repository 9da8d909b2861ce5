// Package storage tracks which storage container each player connection has
// open on a game server, mirrors the item lists of those containers and
// relays storage mutations to the cache service.
package storage

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"github.com/kasuganosora/mmocache/entity"
	"github.com/kasuganosora/mmocache/facade"
	"github.com/kasuganosora/mmocache/game/building"
	"github.com/kasuganosora/mmocache/game/item"
	"go.uber.org/zap"
)

// Client is the remote cache service as seen by a game server.
// *facade.Service and the rpc client both satisfy it.
type Client interface {
	ReadStorageItems(ctx context.Context, id entity.StorageID) (item.List, bool, error)
	IncreaseStorageItems(ctx context.Context, req facade.IncreaseStorageItemsRequest) (facade.StorageItemsResponse, error)
	DecreaseStorageItems(ctx context.Context, req facade.DecreaseStorageItemsRequest) (facade.DecreaseStorageItemsResponse, error)
	MoveItemToStorage(ctx context.Context, req facade.MoveItemToStorageRequest) (facade.MoveItemResponse, error)
	MoveItemFromStorage(ctx context.Context, req facade.MoveItemFromStorageRequest) (facade.MoveItemResponse, error)
	SwapOrMergeStorageItem(ctx context.Context, req facade.SwapOrMergeStorageItemRequest) (facade.StorageItemsResponse, error)
}

// Opened describes a storage that was just opened for a connection.
type Opened struct {
	Type        entity.StorageType `json:"type"`
	OwnerID     string             `json:"owner_id"`
	ObjectID    uint32             `json:"object_id"`
	WeightLimit int                `json:"weight_limit"`
	SlotLimit   int                `json:"slot_limit"`
}

// Notifier pushes storage state to player connections.
type Notifier interface {
	NotifyStorageOpened(connID int64, opened Opened)
	NotifyStorageClosed(connID int64)
	NotifyStorageItems(connIDs []int64, items item.List)
	NotifyCannotAccess(connID int64)
}

// GuildRegistry reports guilds loaded on this game server.
type GuildRegistry interface {
	ContainsGuild(id int) bool
}

// Config holds the collaborators of a Tracker.
type Config struct {
	Client    Client
	Notifier  Notifier
	Guilds    GuildRegistry
	Buildings building.Registry
	Player    entity.Storage
	Guild     entity.Storage
	Logger    *zap.Logger
}

// Tracker is safe for concurrent use by many connections.
type Tracker struct {
	client    Client
	notifier  Notifier
	guilds    GuildRegistry
	buildings building.Registry
	player    entity.Storage
	guild     entity.Storage
	logger    *zap.Logger

	mu      sync.RWMutex
	items   map[entity.StorageID]item.List
	viewers map[entity.StorageID]map[int64]struct{}
	opened  map[int64]entity.StorageID
	// versions counts mirror writes per storage; it survives Clear.
	versions map[entity.StorageID]uint64
}

// New creates a Tracker. Client and Notifier are required.
func New(cfg Config) (*Tracker, error) {
	if cfg.Client == nil {
		return nil, errors.New("storage: client is required")
	}
	if cfg.Notifier == nil {
		return nil, errors.New("storage: notifier is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Tracker{
		client:    cfg.Client,
		notifier:  cfg.Notifier,
		guilds:    cfg.Guilds,
		buildings: cfg.Buildings,
		player:    cfg.Player,
		guild:     cfg.Guild,
		logger:    cfg.Logger,
		items:     make(map[entity.StorageID]item.List),
		viewers:   make(map[entity.StorageID]map[int64]struct{}),
		opened:    make(map[int64]entity.StorageID),
		versions:  make(map[entity.StorageID]uint64),
	}, nil
}

// storage resolves the limits of id and, for buildings, the object id of
// the building in the world.
func (t *Tracker) storage(ctx context.Context, id entity.StorageID) (entity.Storage, uint32, bool, error) {
	switch id.Type {
	case entity.StoragePlayer:
		return t.player, 0, true, nil
	case entity.StorageGuild:
		return t.guild, 0, true, nil
	case entity.StorageBuilding:
		if t.buildings == nil {
			return entity.Storage{}, 0, false, nil
		}
		b, ok, err := t.buildings.Get(ctx, id.OwnerID)
		if err != nil || !ok {
			return entity.Storage{}, 0, false, err
		}
		return b.Storage, b.ObjectID, true, nil
	}
	return entity.Storage{}, 0, false, nil
}

// CanAccess applies the access rules of the storage type to c.
func (t *Tracker) CanAccess(ctx context.Context, c entity.SocialCharacter, id entity.StorageID) (bool, error) {
	switch id.Type {
	case entity.StoragePlayer:
		return c.AccountID == id.OwnerID, nil
	case entity.StorageGuild:
		if t.guilds == nil || !t.guilds.ContainsGuild(c.GuildID) {
			return false, nil
		}
		return strconv.Itoa(c.GuildID) == id.OwnerID, nil
	case entity.StorageBuilding:
		if t.buildings == nil {
			return false, nil
		}
		b, ok, err := t.buildings.Get(ctx, id.OwnerID)
		if err != nil || !ok {
			return false, err
		}
		return b.CanAccess(c.ID), nil
	}
	return false, nil
}

// OpenStorage opens id for the connection. A rejected request only sends a
// cannot-access notification and reports false.
func (t *Tracker) OpenStorage(ctx context.Context, connID int64, c entity.SocialCharacter, id entity.StorageID) (bool, error) {
	ok, err := t.CanAccess(ctx, c, id)
	if err != nil {
		return false, err
	}
	if !ok {
		t.notifier.NotifyCannotAccess(connID)
		return false, nil
	}
	lim, objectID, ok, err := t.storage(ctx, id)
	if err != nil {
		return false, err
	}
	t.mu.RLock()
	seen := t.versions[id]
	t.mu.RUnlock()
	items, found, err := t.client.ReadStorageItems(ctx, id)
	if err != nil {
		return false, err
	}
	if !ok || !found {
		t.notifier.NotifyCannotAccess(connID)
		return false, nil
	}

	t.mu.Lock()
	t.closeLocked(connID)
	t.opened[connID] = id
	set := t.viewers[id]
	if set == nil {
		set = make(map[int64]struct{})
		t.viewers[id] = set
	}
	set[connID] = struct{}{}
	// An update that landed during the read is newer than the snapshot.
	if newer, ok := t.items[id]; ok && t.versions[id] != seen {
		items = newer.Clone()
	} else {
		t.setLocked(id, items)
	}
	t.mu.Unlock()

	t.logger.Debug("storage opened",
		zap.Int64("conn_id", connID),
		zap.String("character_id", c.ID),
		zap.Stringer("storage", id))
	t.notifier.NotifyStorageOpened(connID, Opened{
		Type:        id.Type,
		OwnerID:     id.OwnerID,
		ObjectID:    objectID,
		WeightLimit: lim.WeightLimit,
		SlotLimit:   lim.SlotLimit,
	})
	items.FillEmptySlots(lim)
	t.notifier.NotifyStorageItems([]int64{connID}, items)
	return true, nil
}

// CloseStorage closes whatever storage the connection has open. It reports
// false, and sends nothing, when none was open.
func (t *Tracker) CloseStorage(connID int64) bool {
	t.mu.Lock()
	closed := t.closeLocked(connID)
	t.mu.Unlock()
	if closed {
		t.notifier.NotifyStorageClosed(connID)
	}
	return closed
}

func (t *Tracker) closeLocked(connID int64) bool {
	id, ok := t.opened[connID]
	if !ok {
		return false
	}
	delete(t.opened, connID)
	if set := t.viewers[id]; set != nil {
		delete(set, connID)
		if len(set) == 0 {
			delete(t.viewers, id)
		}
	}
	return true
}

// TryGetOpenedStorageID returns the storage the connection has open.
func (t *Tracker) TryGetOpenedStorageID(connID int64) (entity.StorageID, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	id, ok := t.opened[connID]
	return id, ok
}

// GetStorageItems returns a copy of the mirrored list, empty when the
// storage is not mirrored.
func (t *Tracker) GetStorageItems(id entity.StorageID) item.List {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.items[id].Clone()
}

// SetStorageItems replaces the mirrored list.
func (t *Tracker) SetStorageItems(id entity.StorageID, items item.List) {
	t.mu.Lock()
	t.setLocked(id, items)
	t.mu.Unlock()
}

func (t *Tracker) setLocked(id entity.StorageID, items item.List) {
	t.items[id] = items.Clone()
	t.versions[id]++
}

// IsBuildingStorageOpen reports whether any connection has the storage of
// the building open.
func (t *Tracker) IsBuildingStorageOpen(buildingID string) bool {
	id := entity.StorageID{Type: entity.StorageBuilding, OwnerID: buildingID}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.viewers[id]) > 0
}

// GetBuildingStorageItems returns the mirrored list of a building storage.
func (t *Tracker) GetBuildingStorageItems(buildingID string) item.List {
	return t.GetStorageItems(entity.StorageID{Type: entity.StorageBuilding, OwnerID: buildingID})
}

// AllStorageItems returns a snapshot of every mirrored list.
func (t *Tracker) AllStorageItems() map[entity.StorageID]item.List {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[entity.StorageID]item.List, len(t.items))
	for id, items := range t.items {
		out[id] = items.Clone()
	}
	return out
}

// Clear drops every session and mirrored list without notifying anyone.
func (t *Tracker) Clear() {
	t.mu.Lock()
	t.items = make(map[entity.StorageID]item.List)
	t.viewers = make(map[entity.StorageID]map[int64]struct{})
	t.opened = make(map[int64]entity.StorageID)
	t.mu.Unlock()
}

// update stores the authoritative list and pushes it to every connection
// that has the storage open.
func (t *Tracker) update(ctx context.Context, id entity.StorageID, items item.List) {
	t.mu.Lock()
	t.setLocked(id, items)
	conns := make([]int64, 0, len(t.viewers[id]))
	for connID := range t.viewers[id] {
		conns = append(conns, connID)
	}
	t.mu.Unlock()
	if len(conns) == 0 {
		return
	}
	if lim, _, ok, err := t.storage(ctx, id); err == nil && ok {
		items = items.Clone()
		items.FillEmptySlots(lim)
	}
	t.notifier.NotifyStorageItems(conns, items)
}
