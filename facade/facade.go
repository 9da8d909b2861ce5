// Package facade is the authoritative caching service in front of the
// persistent store. Game servers never talk to the store directly; every
// read goes through the in-memory tables and every write updates the table
// and the store before the call returns.
//
// Reads of a missing entity return ok=false with a nil error. Store failures
// are returned unchanged and never leave a failed write in the cache.
package facade

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/kasuganosora/mmocache/audit"
	"github.com/kasuganosora/mmocache/entity"
	"github.com/kasuganosora/mmocache/game/guild"
	"github.com/kasuganosora/mmocache/game/item"
	"github.com/kasuganosora/mmocache/store"
	"go.uber.org/zap"
)

var (
	ErrInsufficientBalance = errors.New("facade: insufficient balance")
	ErrNoCustomHandler     = errors.New("facade: no custom handler")
)

// BalancePolicy decides what a delta that drives a balance below zero does.
type BalancePolicy string

const (
	BalanceAllow  BalancePolicy = "allow"
	BalanceReject BalancePolicy = "reject"
	BalanceClamp  BalancePolicy = "clamp"
)

// ParseBalancePolicy validates s. An empty string means BalanceAllow.
func ParseBalancePolicy(s string) (BalancePolicy, error) {
	switch p := BalancePolicy(s); p {
	case "":
		return BalanceAllow, nil
	case BalanceAllow, BalanceReject, BalanceClamp:
		return p, nil
	default:
		return "", fmt.Errorf("facade: unknown balance policy %q", s)
	}
}

func (p BalancePolicy) apply(current, delta int64) (int64, error) {
	next := current + delta
	if next >= 0 {
		return next, nil
	}
	switch p {
	case BalanceReject:
		return current, ErrInsufficientBalance
	case BalanceClamp:
		return 0, nil
	default:
		return next, nil
	}
}

// Publisher fans storage updates out to other processes.
type Publisher interface {
	Publish(ctx context.Context, channel, message string) error
}

// Auditor records storage transactions.
type Auditor interface {
	Log(entry audit.Entry)
}

// Options configures a Service. Store, Catalog and Capacity are required.
type Options struct {
	Store    store.Store
	Catalog  item.Catalog
	Capacity CapacityProvider
	// Inventory limits every character's NonEquipItems.
	Inventory     item.Limits
	GuildRules    guild.Rules
	GuildRoles    []entity.GuildRole
	BalancePolicy BalancePolicy
	Publisher     Publisher
	// Channel is the pub/sub channel for storage updates.
	Channel string
	Auditor Auditor
	Logger  *zap.Logger
}

// DefaultChannel carries StorageUpdate events.
const DefaultChannel = "storage_updates"

// Service is the caching facade.
type Service struct {
	store     store.Store
	catalog   item.Catalog
	capacity  CapacityProvider
	inventory item.Limits
	rules     guild.Rules
	roles     []entity.GuildRole
	policy    BalancePolicy
	publisher Publisher
	channel   string
	auditor   Auditor
	logger    *zap.Logger

	usernames      *table[string, struct{}]
	characterNames *table[string, struct{}]
	guildNames     *table[string, struct{}]
	accessTokens   *table[string, string]
	gold           *table[string, int64]
	cash           *table[string, int64]
	characters     *table[string, *entity.Character]
	socials        *table[string, entity.SocialCharacter]
	friends        *table[string, []entity.SocialCharacter]
	buildings      *table[string, map[string]entity.Building]
	parties        *table[int, *entity.Party]
	guilds         *table[int, *entity.Guild]
	storages       *table[entity.StorageID, item.List]

	customMu sync.RWMutex
	custom   map[int32]CustomHandler
}

// New creates a Service.
func New(opts Options) (*Service, error) {
	if opts.Store == nil || opts.Catalog == nil || opts.Capacity == nil {
		return nil, errors.New("facade: store, catalog and capacity are required")
	}
	policy, err := ParseBalancePolicy(string(opts.BalancePolicy))
	if err != nil {
		return nil, err
	}
	if opts.GuildRules == nil {
		opts.GuildRules = guild.NewTableRules(guild.Config{})
	}
	if opts.Channel == "" {
		opts.Channel = DefaultChannel
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Service{
		store:     opts.Store,
		catalog:   opts.Catalog,
		capacity:  opts.Capacity,
		inventory: opts.Inventory,
		rules:     opts.GuildRules,
		roles:     append([]entity.GuildRole(nil), opts.GuildRoles...),
		policy:    policy,
		publisher: opts.Publisher,
		channel:   opts.Channel,
		auditor:   opts.Auditor,
		logger:    opts.Logger,

		usernames:      newTable[string, struct{}](nil),
		characterNames: newTable[string, struct{}](nil),
		guildNames:     newTable[string, struct{}](nil),
		accessTokens:   newTable[string, string](nil),
		gold:           newTable[string, int64](nil),
		cash:           newTable[string, int64](nil),
		characters:     newTable[string](func(c *entity.Character) *entity.Character { return c.Clone() }),
		socials:        newTable[string, entity.SocialCharacter](nil),
		friends:        newTable[string](entity.CloneSocial),
		buildings:      newTable[string](cloneBuildingMap),
		parties:        newTable[int](func(p *entity.Party) *entity.Party { return p.Clone() }),
		guilds:         newTable[int](func(g *entity.Guild) *entity.Guild { return g.Clone() }),
		storages:       newTable[entity.StorageID](func(l item.List) item.List { return l.Clone() }),

		custom: make(map[int32]CustomHandler),
	}, nil
}

// Stats counts cached entries per table.
type Stats struct {
	Usernames      int `json:"usernames"`
	CharacterNames int `json:"character_names"`
	GuildNames     int `json:"guild_names"`
	AccessTokens   int `json:"access_tokens"`
	Gold           int `json:"gold"`
	Cash           int `json:"cash"`
	Characters     int `json:"characters"`
	Socials        int `json:"socials"`
	Friends        int `json:"friends"`
	BuildingMaps   int `json:"building_maps"`
	Parties        int `json:"parties"`
	Guilds         int `json:"guilds"`
	Storages       int `json:"storages"`
}

// Total sums every table.
func (s Stats) Total() int {
	return s.Usernames + s.CharacterNames + s.GuildNames + s.AccessTokens +
		s.Gold + s.Cash + s.Characters + s.Socials + s.Friends +
		s.BuildingMaps + s.Parties + s.Guilds + s.Storages
}

func (svc *Service) Stats() Stats {
	return Stats{
		Usernames:      svc.usernames.len(),
		CharacterNames: svc.characterNames.len(),
		GuildNames:     svc.guildNames.len(),
		AccessTokens:   svc.accessTokens.len(),
		Gold:           svc.gold.len(),
		Cash:           svc.cash.len(),
		Characters:     svc.characters.len(),
		Socials:        svc.socials.len(),
		Friends:        svc.friends.len(),
		BuildingMaps:   svc.buildings.len(),
		Parties:        svc.parties.len(),
		Guilds:         svc.guilds.len(),
		Storages:       svc.storages.len(),
	}
}

func cloneBuildingMap(m map[string]entity.Building) map[string]entity.Building {
	out := make(map[string]entity.Building, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
