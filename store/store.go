// Package store defines the persistent store behind the caching facade and
// its gorm implementation.
//
// Readers of a single entity return ErrNotFound when it does not exist.
// Every other error is an infrastructure failure.
package store

import (
	"context"
	"errors"

	"github.com/kasuganosora/mmocache/entity"
	"github.com/kasuganosora/mmocache/game/item"
)

var (
	ErrNotFound  = errors.New("store: not found")
	ErrDuplicate = errors.New("store: duplicate")
)

type AccountStore interface {
	// ValidateUserLogin returns the account id, or "" for bad credentials.
	ValidateUserLogin(ctx context.Context, username, password string) (string, error)
	ValidateAccessToken(ctx context.Context, accountID, token string) (bool, error)
	GetUserLevel(ctx context.Context, accountID string) (uint8, error)
	GetGold(ctx context.Context, accountID string) (int64, error)
	UpdateGold(ctx context.Context, accountID string, gold int64) error
	GetCash(ctx context.Context, accountID string) (int64, error)
	UpdateCash(ctx context.Context, accountID string, cash int64) error
	UpdateAccessToken(ctx context.Context, accountID, token string) error
	CreateUserLogin(ctx context.Context, username, password string) (string, error)
	FindUsername(ctx context.Context, username string) (int64, error)
}

type CharacterStore interface {
	CreateCharacter(ctx context.Context, accountID string, c *entity.Character) error
	ReadCharacter(ctx context.Context, id string) (*entity.Character, error)
	ReadCharacters(ctx context.Context, accountID string) ([]*entity.Character, error)
	UpdateCharacter(ctx context.Context, c *entity.Character) error
	DeleteCharacter(ctx context.Context, accountID, id string) error
	FindCharacterName(ctx context.Context, name string) (int64, error)
	// FindCharacters returns characters whose name contains name.
	FindCharacters(ctx context.Context, name string) ([]entity.SocialCharacter, error)
	GetIDByCharacterName(ctx context.Context, name string) (string, error)
	GetAccountIDByCharacterName(ctx context.Context, name string) (string, error)
}

type FriendStore interface {
	CreateFriend(ctx context.Context, characterID, friendID string) error
	DeleteFriend(ctx context.Context, characterID, friendID string) error
	ReadFriends(ctx context.Context, characterID string) ([]entity.SocialCharacter, error)
}

type BuildingStore interface {
	CreateBuilding(ctx context.Context, mapName string, b entity.Building) error
	UpdateBuilding(ctx context.Context, mapName string, b entity.Building) error
	DeleteBuilding(ctx context.Context, mapName, id string) error
	ReadBuildings(ctx context.Context, mapName string) ([]entity.Building, error)
}

type PartyStore interface {
	CreateParty(ctx context.Context, shareExp, shareItem bool, leaderID string) (int, error)
	ReadParty(ctx context.Context, id int) (*entity.Party, error)
	UpdateParty(ctx context.Context, id int, shareExp, shareItem bool) error
	UpdatePartyLeader(ctx context.Context, id int, leaderID string) error
	DeleteParty(ctx context.Context, id int) error
	UpdateCharacterParty(ctx context.Context, characterID string, partyID int) error
}

type GuildStore interface {
	CreateGuild(ctx context.Context, name, leaderID string, roles []entity.GuildRole) (int, error)
	ReadGuild(ctx context.Context, id int) (*entity.Guild, error)
	UpdateGuildLeader(ctx context.Context, id int, leaderID string) error
	UpdateGuildMessage(ctx context.Context, id int, message string) error
	UpdateGuildRole(ctx context.Context, id int, index uint8, role entity.GuildRole) error
	UpdateGuildMemberRole(ctx context.Context, characterID string, role uint8) error
	UpdateGuildLevel(ctx context.Context, id, level int, exp int64, skillPoints int) error
	UpdateGuildSkillLevel(ctx context.Context, id, skillID, level, skillPoints int) error
	UpdateGuildGold(ctx context.Context, id int, gold int64) error
	DeleteGuild(ctx context.Context, id int) error
	UpdateCharacterGuild(ctx context.Context, characterID string, guildID int, role uint8) error
	FindGuildName(ctx context.Context, name string) (int64, error)
}

type StorageStore interface {
	// ReadStorageItems returns an empty list for a storage never written.
	ReadStorageItems(ctx context.Context, id entity.StorageID) (item.List, error)
	UpdateStorageItems(ctx context.Context, id entity.StorageID, items item.List) error
}

// Store is the full persistent store contract.
type Store interface {
	AccountStore
	CharacterStore
	FriendStore
	BuildingStore
	PartyStore
	GuildStore
	StorageStore
}
