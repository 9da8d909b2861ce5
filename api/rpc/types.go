// Package rpc carries facade operations over HTTP: a gin server that
// dispatches numbered operations to a *facade.Service, and a client that
// game servers use as their remote peer.
package rpc

import (
	"github.com/kasuganosora/mmocache/entity"
	"github.com/kasuganosora/mmocache/facade"
	"github.com/kasuganosora/mmocache/game/item"
)

// Request is the body of POST /rpc/:op. Each operation reads the fields it
// needs and ignores the rest. Characters travel codec-encoded in
// CharacterData.
type Request struct {
	AccountID   string `json:"account_id,omitempty"`
	Username    string `json:"username,omitempty"`
	Password    string `json:"password,omitempty"`
	AccessToken string `json:"access_token,omitempty"`
	CharacterID string `json:"character_id,omitempty"`
	FriendID    string `json:"friend_id,omitempty"`
	MemberID    string `json:"member_id,omitempty"`
	LeaderID    string `json:"leader_id,omitempty"`
	Name        string `json:"name,omitempty"`
	MapName     string `json:"map_name,omitempty"`
	Message     string `json:"message,omitempty"`
	BuildingID  string `json:"building_id,omitempty"`

	Delta     int64 `json:"delta,omitempty"`
	Exp       int64 `json:"exp,omitempty"`
	PartyID   int   `json:"party_id,omitempty"`
	GuildID   int   `json:"guild_id,omitempty"`
	SkillID   int   `json:"skill_id,omitempty"`
	ShareExp  bool  `json:"share_exp,omitempty"`
	ShareItem bool  `json:"share_item,omitempty"`
	RoleIndex uint8 `json:"role_index,omitempty"`
	Role      uint8 `json:"role,omitempty"`

	GuildRole     *entity.GuildRole       `json:"guild_role,omitempty"`
	Member        *entity.SocialCharacter `json:"member,omitempty"`
	Building      *entity.Building        `json:"building,omitempty"`
	CharacterData []byte                  `json:"character_data,omitempty"`

	Storage         entity.StorageID `json:"storage"`
	InventoryIndex  int              `json:"inventory_index"`
	InventoryAmount int              `json:"inventory_amount"`
	StorageIndex    int              `json:"storage_index"`
	StorageAmount   int              `json:"storage_amount"`
	FromIndex       int              `json:"from_index"`
	ToIndex         int              `json:"to_index"`
	Item            *item.Slot       `json:"item,omitempty"`
	DataID          int              `json:"data_id,omitempty"`
	Amount          int              `json:"amount,omitempty"`
	Limits          *item.Limits     `json:"limits,omitempty"`

	CustomType int32  `json:"custom_type,omitempty"`
	Payload    []byte `json:"payload,omitempty"`
}

// Response is the body of every reply. Error and Code are set on non-2xx
// replies only.
type Response struct {
	Found     bool   `json:"found"`
	ID        string `json:"id,omitempty"`
	Valid     bool   `json:"valid,omitempty"`
	UserLevel uint8  `json:"user_level,omitempty"`
	Amount    int64  `json:"amount,omitempty"`
	Count     int64  `json:"count,omitempty"`

	CharacterData  []byte                   `json:"character_data,omitempty"`
	CharactersData [][]byte                 `json:"characters_data,omitempty"`
	Characters     []entity.SocialCharacter `json:"characters,omitempty"`
	Buildings      []entity.Building        `json:"buildings,omitempty"`
	Building       *entity.Building         `json:"building,omitempty"`
	Party          *entity.Party            `json:"party,omitempty"`
	Guild          *entity.Guild            `json:"guild,omitempty"`

	StorageError   facade.StorageError `json:"storage_error"`
	InventoryItems item.List           `json:"inventory_items,omitempty"`
	StorageItems   item.List           `json:"storage_items,omitempty"`
	DecreasedItems map[int]int         `json:"decreased_items,omitempty"`

	Payload []byte `json:"payload,omitempty"`

	Error string `json:"error,omitempty"`
	Code  string `json:"code,omitempty"`
}

// Error codes carried in Response.Code.
const (
	CodeBadRequest          = "bad_request"
	CodeUnknownOp           = "unknown_op"
	CodeInsufficientBalance = "insufficient_balance"
	CodeNoCustomHandler     = "no_custom_handler"
	CodeInternal            = "internal"
)
