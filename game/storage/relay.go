package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/kasuganosora/mmocache/cache"
	"github.com/kasuganosora/mmocache/entity"
	"github.com/kasuganosora/mmocache/facade"
	"github.com/kasuganosora/mmocache/game/item"
	"go.uber.org/zap"
)

// DecreaseResult is the outcome of DecreaseStorageItems.
type DecreaseResult struct {
	Success bool
	// DecreasedItems maps slot index to the amount taken from it.
	DecreasedItems map[int]int
}

// limitsHint is this server's view of the storage capacity, sent along so
// the cache service can flag configs that drifted apart.
func (t *Tracker) limitsHint(ctx context.Context, id entity.StorageID) *item.Limits {
	lim, _, ok, err := t.storage(ctx, id)
	if err != nil || !ok {
		return nil
	}
	return &lim
}

// IncreaseStorageItems adds in to the storage. False means nothing was
// stored and the caller keeps the items, e.g. leaves them on the ground.
func (t *Tracker) IncreaseStorageItems(ctx context.Context, id entity.StorageID, in item.Slot) (bool, error) {
	resp, err := t.client.IncreaseStorageItems(ctx, facade.IncreaseStorageItemsRequest{
		Storage: id,
		Item:    in,
		Limits:  t.limitsHint(ctx, id),
	})
	if err != nil {
		return false, err
	}
	if resp.Error != facade.StorageErrorNone {
		t.logger.Debug("increase storage items rejected",
			zap.Stringer("storage", id), zap.Stringer("error", resp.Error))
		return false, nil
	}
	t.update(ctx, id, resp.StorageItems)
	return true, nil
}

// DecreaseStorageItems takes amount of dataID out of the storage.
func (t *Tracker) DecreaseStorageItems(ctx context.Context, id entity.StorageID, dataID, amount int) (DecreaseResult, error) {
	resp, err := t.client.DecreaseStorageItems(ctx, facade.DecreaseStorageItemsRequest{
		Storage: id,
		DataID:  dataID,
		Amount:  amount,
		Limits:  t.limitsHint(ctx, id),
	})
	if err != nil {
		return DecreaseResult{}, err
	}
	if resp.Error != facade.StorageErrorNone {
		return DecreaseResult{}, nil
	}
	t.update(ctx, id, resp.StorageItems)
	return DecreaseResult{Success: true, DecreasedItems: resp.DecreasedItems}, nil
}

// MoveItemToStorage moves an inventory stack of the character into the
// storage the connection has open.
func (t *Tracker) MoveItemToStorage(ctx context.Context, connID int64, c entity.SocialCharacter, inventoryIndex, amount, storageIndex int) (facade.MoveItemResponse, error) {
	id, ok := t.TryGetOpenedStorageID(connID)
	if !ok {
		return facade.MoveItemResponse{Error: facade.StorageErrorInvalidStorage}, nil
	}
	resp, err := t.client.MoveItemToStorage(ctx, facade.MoveItemToStorageRequest{
		CharacterID:     c.ID,
		Storage:         id,
		InventoryIndex:  inventoryIndex,
		InventoryAmount: amount,
		StorageIndex:    storageIndex,
	})
	return t.afterMove(ctx, id, resp, err)
}

// MoveItemFromStorage moves a stack of the open storage into the inventory.
func (t *Tracker) MoveItemFromStorage(ctx context.Context, connID int64, c entity.SocialCharacter, storageIndex, amount, inventoryIndex int) (facade.MoveItemResponse, error) {
	id, ok := t.TryGetOpenedStorageID(connID)
	if !ok {
		return facade.MoveItemResponse{Error: facade.StorageErrorInvalidStorage}, nil
	}
	resp, err := t.client.MoveItemFromStorage(ctx, facade.MoveItemFromStorageRequest{
		CharacterID:    c.ID,
		Storage:        id,
		StorageIndex:   storageIndex,
		StorageAmount:  amount,
		InventoryIndex: inventoryIndex,
	})
	return t.afterMove(ctx, id, resp, err)
}

func (t *Tracker) afterMove(ctx context.Context, id entity.StorageID, resp facade.MoveItemResponse, err error) (facade.MoveItemResponse, error) {
	if err != nil || resp.Error != facade.StorageErrorNone {
		return resp, err
	}
	t.update(ctx, id, resp.StorageItems)
	return resp, nil
}

// SwapOrMergeStorageItem rearranges two slots of the open storage.
func (t *Tracker) SwapOrMergeStorageItem(ctx context.Context, connID int64, c entity.SocialCharacter, from, to int) (facade.StorageItemsResponse, error) {
	id, ok := t.TryGetOpenedStorageID(connID)
	if !ok {
		return facade.StorageItemsResponse{Error: facade.StorageErrorInvalidStorage}, nil
	}
	resp, err := t.client.SwapOrMergeStorageItem(ctx, facade.SwapOrMergeStorageItemRequest{
		CharacterID: c.ID,
		Storage:     id,
		FromIndex:   from,
		ToIndex:     to,
	})
	if err != nil || resp.Error != facade.StorageErrorNone {
		return resp, err
	}
	t.update(ctx, id, resp.StorageItems)
	return resp, nil
}

// Listen applies storage updates published by the cache service to the
// mirrored lists until ctx is done. Updates for storages this server does
// not mirror are ignored.
func (t *Tracker) Listen(ctx context.Context, ps cache.PubSub, channel string) error {
	msgs, cancel, err := ps.Subscribe(ctx, channel)
	if err != nil {
		return fmt.Errorf("storage: subscribe %s: %w", channel, err)
	}
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-msgs:
			if !ok {
				return errors.New("storage: update subscription closed")
			}
			u, err := facade.DecodeStorageUpdate(m.Payload)
			if err != nil {
				t.logger.Warn("bad storage update", zap.Error(err))
				continue
			}
			id := u.ID()
			t.mu.RLock()
			_, mirrored := t.items[id]
			t.mu.RUnlock()
			if mirrored {
				t.update(ctx, id, u.Items)
			}
		}
	}
}
