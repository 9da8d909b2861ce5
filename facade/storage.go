package facade

import (
	"context"
	"time"

	"github.com/kasuganosora/mmocache/audit"
	"github.com/kasuganosora/mmocache/entity"
	"github.com/kasuganosora/mmocache/game/item"
	"go.uber.org/zap"
)

// StorageError is the in-band result of a storage operation.
type StorageError uint8

const (
	StorageErrorNone StorageError = iota
	StorageErrorInvalidStorage
	StorageErrorInvalidCharacter
	StorageErrorInvalidInventoryIndex
	StorageErrorInvalidStorageIndex
	StorageErrorStorageWillOverwhelm
	StorageErrorInventoryWillOverwhelm
	StorageErrorDecreaseItemNotEnough
)

var storageErrorNames = [...]string{
	"none",
	"invalid_storage",
	"invalid_character",
	"invalid_inventory_index",
	"invalid_storage_index",
	"storage_will_overwhelm",
	"inventory_will_overwhelm",
	"decrease_item_not_enough",
}

func (e StorageError) String() string {
	if int(e) < len(storageErrorNames) {
		return storageErrorNames[e]
	}
	return "unknown"
}

type MoveItemToStorageRequest struct {
	CharacterID     string           `json:"character_id"`
	Storage         entity.StorageID `json:"storage"`
	MapName         string           `json:"map_name"`
	InventoryIndex  int              `json:"inventory_index"`
	InventoryAmount int              `json:"inventory_amount"`
	// StorageIndex -1 places the stack anywhere in the storage.
	StorageIndex int `json:"storage_index"`
}

type MoveItemFromStorageRequest struct {
	CharacterID   string           `json:"character_id"`
	Storage       entity.StorageID `json:"storage"`
	MapName       string           `json:"map_name"`
	StorageIndex  int              `json:"storage_index"`
	StorageAmount int              `json:"storage_amount"`
	// InventoryIndex -1 places the stack anywhere in the inventory.
	InventoryIndex int `json:"inventory_index"`
}

// MoveItemResponse carries both lists after a move.
type MoveItemResponse struct {
	Error          StorageError `json:"error"`
	InventoryItems item.List    `json:"inventory_items"`
	StorageItems   item.List    `json:"storage_items"`
}

type SwapOrMergeStorageItemRequest struct {
	CharacterID string           `json:"character_id"`
	Storage     entity.StorageID `json:"storage"`
	MapName     string           `json:"map_name"`
	FromIndex   int              `json:"from_index"`
	ToIndex     int              `json:"to_index"`
}

// IncreaseStorageItemsRequest adds one stack. Limits is the caller's own
// view of the storage capacity; the service applies its configured limits
// and only reports a mismatch.
type IncreaseStorageItemsRequest struct {
	CharacterID string           `json:"character_id"`
	Storage     entity.StorageID `json:"storage"`
	MapName     string           `json:"map_name"`
	Item        item.Slot        `json:"item"`
	Limits      *item.Limits     `json:"limits,omitempty"`
}

type DecreaseStorageItemsRequest struct {
	CharacterID string           `json:"character_id"`
	Storage     entity.StorageID `json:"storage"`
	MapName     string           `json:"map_name"`
	DataID      int              `json:"data_id"`
	Amount      int              `json:"amount"`
	Limits      *item.Limits     `json:"limits,omitempty"`
}

// StorageItemsResponse carries the storage list after an operation.
type StorageItemsResponse struct {
	Error        StorageError `json:"error"`
	StorageItems item.List    `json:"storage_items"`
}

type DecreaseStorageItemsResponse struct {
	Error        StorageError `json:"error"`
	StorageItems item.List    `json:"storage_items"`
	// DecreasedItems maps slot index to the amount taken from it.
	DecreasedItems map[int]int `json:"decreased_items"`
}

// ReadStorageItems returns the storage list, loading and caching it on
// first use. It reports false when the storage does not exist.
func (svc *Service) ReadStorageItems(ctx context.Context, id entity.StorageID) (item.List, bool, error) {
	lim, ok, err := svc.capacity.Storage(ctx, id)
	if err != nil || !ok {
		return nil, false, err
	}
	unlock := svc.storages.lock(id)
	defer unlock()
	items, _, err := svc.fetchStorage(ctx, id)
	if err != nil {
		return nil, false, err
	}
	items.FillEmptySlots(lim)
	return items, true, nil
}

func (svc *Service) fetchStorage(ctx context.Context, id entity.StorageID) (item.List, bool, error) {
	return svc.storages.fetch(ctx, id, func(ctx context.Context) (item.List, error) {
		return svc.store.ReadStorageItems(ctx, id)
	})
}

// MoveItemToStorage moves an inventory stack into the storage. A
// destination that is empty, holds the same item or is -1 receives a merge;
// any other destination swaps whole slots.
func (svc *Service) MoveItemToStorage(ctx context.Context, req MoveItemToStorageRequest) (MoveItemResponse, error) {
	start := time.Now()
	resp, err := svc.moveItem(ctx, req.CharacterID, req.Storage, true, func(inv, sto *item.List, lim item.Limits) StorageError {
		switch item.MoveBetween(svc.catalog, inv, req.InventoryIndex, req.InventoryAmount, sto, req.StorageIndex, lim) {
		case item.MoveInvalidSource:
			return StorageErrorInvalidInventoryIndex
		case item.MoveInvalidDestination:
			return StorageErrorInvalidStorageIndex
		case item.MoveDestinationOverwhelm:
			return StorageErrorStorageWillOverwhelm
		}
		return StorageErrorNone
	})
	svc.audit(ctx, OpMoveItemToStorage, req.Storage, req.CharacterID, req, resp.Error, err, start)
	return resp, err
}

// MoveItemFromStorage moves a storage stack into the character inventory
// with the same merge-or-swap rules as MoveItemToStorage.
func (svc *Service) MoveItemFromStorage(ctx context.Context, req MoveItemFromStorageRequest) (MoveItemResponse, error) {
	start := time.Now()
	resp, err := svc.moveItem(ctx, req.CharacterID, req.Storage, false, func(inv, sto *item.List, lim item.Limits) StorageError {
		switch item.MoveBetween(svc.catalog, sto, req.StorageIndex, req.StorageAmount, inv, req.InventoryIndex, svc.inventory) {
		case item.MoveInvalidSource:
			return StorageErrorInvalidStorageIndex
		case item.MoveInvalidDestination:
			return StorageErrorInvalidInventoryIndex
		case item.MoveDestinationOverwhelm:
			return StorageErrorInventoryWillOverwhelm
		}
		return StorageErrorNone
	})
	svc.audit(ctx, OpMoveItemFromStorage, req.Storage, req.CharacterID, req, resp.Error, err, start)
	return resp, err
}

// moveItem locks character then storage, runs move on copies of both lists
// and writes both through. When the character write fails the storage write
// is reverted.
func (svc *Service) moveItem(
	ctx context.Context,
	characterID string,
	id entity.StorageID,
	toStorage bool,
	move func(inv, sto *item.List, lim item.Limits) StorageError,
) (MoveItemResponse, error) {
	lim, ok, err := svc.capacity.Storage(ctx, id)
	if err != nil {
		return MoveItemResponse{}, err
	}
	if !ok {
		return MoveItemResponse{Error: StorageErrorInvalidStorage}, nil
	}

	unlockChar := svc.characters.lock(characterID)
	defer unlockChar()
	c, ok, err := svc.fetchCharacter(ctx, characterID)
	if err != nil {
		return MoveItemResponse{}, err
	}
	if !ok {
		return MoveItemResponse{Error: StorageErrorInvalidCharacter}, nil
	}

	unlock := svc.storages.lock(id)
	defer unlock()
	before, _, err := svc.fetchStorage(ctx, id)
	if err != nil {
		return MoveItemResponse{}, err
	}
	sto := before.Clone()
	sto.FillEmptySlots(lim)
	inv := c.NonEquipItems.Clone()
	inv.FillEmptySlots(svc.inventory)
	if code := move(&inv, &sto, lim); code != StorageErrorNone {
		return MoveItemResponse{Error: code}, nil
	}
	sto.FillEmptySlots(lim)
	inv.FillEmptySlots(svc.inventory)
	if err := svc.storages.put(id, sto, func() error {
		return svc.store.UpdateStorageItems(ctx, id, sto)
	}); err != nil {
		return MoveItemResponse{}, err
	}
	c.NonEquipItems = inv
	if err := svc.characters.put(characterID, c, func() error {
		return svc.store.UpdateCharacter(ctx, c)
	}); err != nil {
		revert := svc.storages.put(id, before, func() error {
			return svc.store.UpdateStorageItems(ctx, id, before)
		})
		svc.logger.Error("character write failed after storage move",
			zap.String("character_id", characterID),
			zap.Stringer("storage", id),
			zap.Bool("to_storage", toStorage),
			zap.NamedError("revert_error", revert),
			zap.Error(err))
		return MoveItemResponse{}, err
	}
	svc.publish(ctx, id, sto)
	return MoveItemResponse{InventoryItems: inv.Clone(), StorageItems: sto.Clone()}, nil
}

// SwapOrMergeStorageItem rearranges two slots of one storage.
func (svc *Service) SwapOrMergeStorageItem(ctx context.Context, req SwapOrMergeStorageItemRequest) (StorageItemsResponse, error) {
	start := time.Now()
	resp, err := svc.modifyStorage(ctx, req.Storage, func(sto *item.List, _ item.Limits) StorageError {
		if !sto.SwapOrMerge(svc.catalog, req.FromIndex, req.ToIndex) {
			return StorageErrorInvalidStorageIndex
		}
		return StorageErrorNone
	})
	svc.audit(ctx, OpSwapOrMergeStorageItem, req.Storage, req.CharacterID, req, resp.Error, err, start)
	return resp, err
}

// IncreaseStorageItems adds req.Item to the storage. Nothing changes when
// the storage would overwhelm.
func (svc *Service) IncreaseStorageItems(ctx context.Context, req IncreaseStorageItemsRequest) (StorageItemsResponse, error) {
	start := time.Now()
	in := req.Item
	if in.ID == "" {
		in.ID = item.NewSlotID()
	}
	resp, err := svc.modifyStorage(ctx, req.Storage, func(sto *item.List, lim item.Limits) StorageError {
		svc.checkLimitsHint(req.Storage, req.Limits, lim)
		if sto.WillOverwhelm(svc.catalog, in.DataID, in.Amount, lim) || !sto.Increase(svc.catalog, in) {
			return StorageErrorStorageWillOverwhelm
		}
		return StorageErrorNone
	})
	svc.audit(ctx, OpIncreaseStorageItems, req.Storage, req.CharacterID, req, resp.Error, err, start)
	return resp, err
}

// DecreaseStorageItems takes amount of dataID from the storage, lowest
// index first.
func (svc *Service) DecreaseStorageItems(ctx context.Context, req DecreaseStorageItemsRequest) (DecreaseStorageItemsResponse, error) {
	start := time.Now()
	var decreased map[int]int
	resp, err := svc.modifyStorage(ctx, req.Storage, func(sto *item.List, lim item.Limits) StorageError {
		svc.checkLimitsHint(req.Storage, req.Limits, lim)
		d, ok := sto.Decrease(req.DataID, req.Amount)
		if !ok {
			return StorageErrorDecreaseItemNotEnough
		}
		decreased = d
		return StorageErrorNone
	})
	svc.audit(ctx, OpDecreaseStorageItems, req.Storage, req.CharacterID, req, resp.Error, err, start)
	out := DecreaseStorageItemsResponse{Error: resp.Error, StorageItems: resp.StorageItems}
	if resp.Error == StorageErrorNone && err == nil {
		out.DecreasedItems = decreased
	}
	return out, err
}

// checkLimitsHint warns when a caller's capacity view disagrees with the
// configured one, which usually means a stale game server config.
func (svc *Service) checkLimitsHint(id entity.StorageID, hint *item.Limits, lim item.Limits) {
	if hint == nil || *hint == lim {
		return
	}
	svc.logger.Warn("storage capacity hint differs",
		zap.Stringer("storage", id),
		zap.Int("hint_slot_limit", hint.SlotLimit),
		zap.Int("hint_weight_limit", hint.WeightLimit),
		zap.Int("slot_limit", lim.SlotLimit),
		zap.Int("weight_limit", lim.WeightLimit))
}

// modifyStorage runs fn on a copy of the storage list under the storage
// lock and writes the result through when fn succeeds.
func (svc *Service) modifyStorage(ctx context.Context, id entity.StorageID, fn func(*item.List, item.Limits) StorageError) (StorageItemsResponse, error) {
	lim, ok, err := svc.capacity.Storage(ctx, id)
	if err != nil {
		return StorageItemsResponse{}, err
	}
	if !ok {
		return StorageItemsResponse{Error: StorageErrorInvalidStorage}, nil
	}
	unlock := svc.storages.lock(id)
	defer unlock()
	items, _, err := svc.fetchStorage(ctx, id)
	if err != nil {
		return StorageItemsResponse{}, err
	}
	items.FillEmptySlots(lim)
	if code := fn(&items, lim); code != StorageErrorNone {
		return StorageItemsResponse{Error: code}, nil
	}
	items.FillEmptySlots(lim)
	if err := svc.storages.put(id, items, func() error {
		return svc.store.UpdateStorageItems(ctx, id, items)
	}); err != nil {
		svc.logger.Error("storage write failed", zap.Stringer("storage", id), zap.Error(err))
		return StorageItemsResponse{}, err
	}
	svc.publish(ctx, id, items)
	return StorageItemsResponse{StorageItems: items.Clone()}, nil
}

func (svc *Service) audit(ctx context.Context, op OpCode, id entity.StorageID, characterID string, req interface{}, code StorageError, err error, start time.Time) {
	if svc.auditor == nil {
		return
	}
	entry := audit.Entry{
		TraceID:     TraceID(ctx),
		Action:      op.String(),
		Storage:     id,
		CharacterID: characterID,
		Request:     req,
		Result:      code.String(),
		Duration:    time.Since(start),
	}
	if err != nil {
		entry.Result = "error"
		entry.Error = err.Error()
	}
	svc.auditor.Log(entry)
}
