package ws

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kasuganosora/mmocache/entity"
	"github.com/kasuganosora/mmocache/facade"
	"github.com/kasuganosora/mmocache/game/item"
	"github.com/kasuganosora/mmocache/game/player"
	"github.com/kasuganosora/mmocache/plugin/hook"
)

// Storage packet types sent by players.
const (
	PacketOpenStorage            = "open_storage"
	PacketCloseStorage           = "close_storage"
	PacketMoveItemToStorage      = "move_item_to_storage"
	PacketMoveItemFromStorage    = "move_item_from_storage"
	PacketSwapOrMergeStorageItem = "swap_or_merge_storage_item"
)

// PacketStorageResult answers a move or swap request.
const PacketStorageResult = "storage_result"

// ErrorRejected is the StorageResult error of a request a hook interrupted.
const ErrorRejected = "rejected"

type openStorageRequest struct {
	Type    entity.StorageType `json:"type"`
	OwnerID string             `json:"owner_id"`
}

type moveToStorageRequest struct {
	InventoryIndex int `json:"inventory_index"`
	Amount         int `json:"amount"`
	StorageIndex   int `json:"storage_index"`
}

type moveFromStorageRequest struct {
	StorageIndex   int `json:"storage_index"`
	Amount         int `json:"amount"`
	InventoryIndex int `json:"inventory_index"`
}

type swapStorageRequest struct {
	FromIndex int `json:"from_index"`
	ToIndex   int `json:"to_index"`
}

// StorageResult is the payload of PacketStorageResult. InventoryItems is
// set after a successful move.
type StorageResult struct {
	Request        string    `json:"request"`
	Error          string    `json:"error,omitempty"`
	InventoryItems item.List `json:"inventory_items,omitempty"`
}

func (h *Handler) registerStorageHandlers() {
	h.router.OnLimited(PacketOpenStorage, h.openStorage)
	h.router.On(PacketCloseStorage, h.closeStorage)
	h.router.OnLimited(PacketMoveItemToStorage, h.moveItemToStorage)
	h.router.OnLimited(PacketMoveItemFromStorage, h.moveItemFromStorage)
	h.router.OnLimited(PacketSwapOrMergeStorageItem, h.swapOrMergeStorageItem)
}

func decode(payload json.RawMessage, v any) error {
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}

// character returns the social view of the session's character. Guild
// membership is read fresh so a recent guild change is honoured.
func (h *Handler) character(ctx context.Context, s *player.Session) (entity.SocialCharacter, error) {
	ch, found, err := h.accounts.ReadCharacter(ctx, s.CharacterID)
	if err != nil {
		return entity.SocialCharacter{}, err
	}
	if !found {
		return entity.SocialCharacter{ID: s.CharacterID, AccountID: s.AccountID}, nil
	}
	return ch.Social(), nil
}

func (h *Handler) openStorage(ctx context.Context, s *player.Session, payload json.RawMessage) error {
	var req openStorageRequest
	if err := decode(payload, &req); err != nil {
		return err
	}
	id := entity.StorageID{Type: req.Type, OwnerID: req.OwnerID}
	if h.hooks.Interrupted(ctx, hook.BeforeStorageOpen, storageEvent(s, id, PacketOpenStorage)) {
		h.sm.NotifyCannotAccess(s.ConnID)
		return nil
	}
	c, err := h.character(ctx, s)
	if err != nil {
		return err
	}
	_, err = h.tracker.OpenStorage(ctx, s.ConnID, c, id)
	return err
}

func (h *Handler) closeStorage(_ context.Context, s *player.Session, _ json.RawMessage) error {
	h.tracker.CloseStorage(s.ConnID)
	return nil
}

func (h *Handler) moveItemToStorage(ctx context.Context, s *player.Session, payload json.RawMessage) error {
	var req moveToStorageRequest
	if err := decode(payload, &req); err != nil {
		return err
	}
	if h.vetoMove(ctx, s, PacketMoveItemToStorage) {
		return nil
	}
	resp, err := h.tracker.MoveItemToStorage(ctx, s.ConnID, social(s), req.InventoryIndex, req.Amount, req.StorageIndex)
	if err != nil {
		return err
	}
	sendResult(s, PacketMoveItemToStorage, resp.Error, resp.InventoryItems)
	return nil
}

func (h *Handler) moveItemFromStorage(ctx context.Context, s *player.Session, payload json.RawMessage) error {
	var req moveFromStorageRequest
	if err := decode(payload, &req); err != nil {
		return err
	}
	if h.vetoMove(ctx, s, PacketMoveItemFromStorage) {
		return nil
	}
	resp, err := h.tracker.MoveItemFromStorage(ctx, s.ConnID, social(s), req.StorageIndex, req.Amount, req.InventoryIndex)
	if err != nil {
		return err
	}
	sendResult(s, PacketMoveItemFromStorage, resp.Error, resp.InventoryItems)
	return nil
}

func (h *Handler) swapOrMergeStorageItem(ctx context.Context, s *player.Session, payload json.RawMessage) error {
	var req swapStorageRequest
	if err := decode(payload, &req); err != nil {
		return err
	}
	if h.vetoMove(ctx, s, PacketSwapOrMergeStorageItem) {
		return nil
	}
	resp, err := h.tracker.SwapOrMergeStorageItem(ctx, s.ConnID, social(s), req.FromIndex, req.ToIndex)
	if err != nil {
		return err
	}
	sendResult(s, PacketSwapOrMergeStorageItem, resp.Error, nil)
	return nil
}

func storageEvent(s *player.Session, id entity.StorageID, request string) hook.StorageEvent {
	return hook.StorageEvent{PlayerEvent: playerEvent(s), Storage: id, Request: request}
}

// vetoMove asks the BeforeStorageMove hooks about a request on the open
// storage and answers an interrupted request itself. Requests without an
// open storage are left to the tracker.
func (h *Handler) vetoMove(ctx context.Context, s *player.Session, request string) bool {
	id, ok := h.tracker.TryGetOpenedStorageID(s.ConnID)
	if !ok || !h.hooks.Interrupted(ctx, hook.BeforeStorageMove, storageEvent(s, id, request)) {
		return false
	}
	pushResult(s, StorageResult{Request: request, Error: ErrorRejected})
	return true
}

func social(s *player.Session) entity.SocialCharacter {
	return entity.SocialCharacter{ID: s.CharacterID, AccountID: s.AccountID}
}

func sendResult(s *player.Session, request string, code facade.StorageError, inventory item.List) {
	res := StorageResult{Request: request}
	if code != facade.StorageErrorNone {
		res.Error = code.String()
	} else {
		res.InventoryItems = inventory
	}
	pushResult(s, res)
}

func pushResult(s *player.Session, res StorageResult) {
	payload, err := json.Marshal(res)
	if err != nil {
		return
	}
	s.Send(&player.Packet{Type: PacketStorageResult, Payload: payload})
}
