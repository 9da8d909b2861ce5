package facade

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/kasuganosora/mmocache/audit"
	"github.com/kasuganosora/mmocache/entity"
	"github.com/kasuganosora/mmocache/game/building"
	"github.com/kasuganosora/mmocache/game/guild"
	"github.com/kasuganosora/mmocache/game/item"
	"github.com/kasuganosora/mmocache/store"
	"github.com/kasuganosora/mmocache/testutil"
	"github.com/stretchr/testify/require"
)

var errStoreDown = errors.New("store down")

// countingStore wraps the gorm store, counts reads and can be told to fail
// reads or writes.
type countingStore struct {
	store.Store

	mu    sync.Mutex
	calls map[string]int

	failReads           atomic.Bool
	failWrites          atomic.Bool
	failCharacterWrites atomic.Bool

	// When storageGate is set, storage writes signal storageWriting and
	// wait for the gate to close.
	storageGate    chan struct{}
	storageWriting chan struct{}
}

// holdStorageWrites makes the next storage writes wait until the returned
// func is called. The returned channel fires when the first one arrives.
func (s *countingStore) holdStorageWrites() (<-chan struct{}, func()) {
	s.storageGate = make(chan struct{})
	s.storageWriting = make(chan struct{}, 1)
	return s.storageWriting, func() { close(s.storageGate) }
}

func (s *countingStore) count(op string) {
	s.mu.Lock()
	s.calls[op]++
	s.mu.Unlock()
}

func (s *countingStore) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

func (s *countingStore) read(op string) error {
	s.count(op)
	if s.failReads.Load() {
		return errStoreDown
	}
	return nil
}

func (s *countingStore) write(op string) error {
	s.count(op)
	if s.failWrites.Load() {
		return errStoreDown
	}
	return nil
}

func (s *countingStore) ReadCharacter(ctx context.Context, id string) (*entity.Character, error) {
	if err := s.read("ReadCharacter"); err != nil {
		return nil, err
	}
	return s.Store.ReadCharacter(ctx, id)
}

func (s *countingStore) GetGold(ctx context.Context, accountID string) (int64, error) {
	if err := s.read("GetGold"); err != nil {
		return 0, err
	}
	return s.Store.GetGold(ctx, accountID)
}

func (s *countingStore) ReadGuild(ctx context.Context, id int) (*entity.Guild, error) {
	if err := s.read("ReadGuild"); err != nil {
		return nil, err
	}
	return s.Store.ReadGuild(ctx, id)
}

func (s *countingStore) ReadParty(ctx context.Context, id int) (*entity.Party, error) {
	if err := s.read("ReadParty"); err != nil {
		return nil, err
	}
	return s.Store.ReadParty(ctx, id)
}

func (s *countingStore) ReadStorageItems(ctx context.Context, id entity.StorageID) (item.List, error) {
	if err := s.read("ReadStorageItems"); err != nil {
		return nil, err
	}
	return s.Store.ReadStorageItems(ctx, id)
}

func (s *countingStore) UpdateCharacter(ctx context.Context, c *entity.Character) error {
	if err := s.write("UpdateCharacter"); err != nil {
		return err
	}
	if s.failCharacterWrites.Load() {
		return errStoreDown
	}
	return s.Store.UpdateCharacter(ctx, c)
}

func (s *countingStore) UpdateGold(ctx context.Context, accountID string, gold int64) error {
	if err := s.write("UpdateGold"); err != nil {
		return err
	}
	return s.Store.UpdateGold(ctx, accountID, gold)
}

func (s *countingStore) UpdateStorageItems(ctx context.Context, id entity.StorageID, items item.List) error {
	if err := s.write("UpdateStorageItems"); err != nil {
		return err
	}
	if s.storageGate != nil {
		select {
		case s.storageWriting <- struct{}{}:
		default:
		}
		<-s.storageGate
	}
	return s.Store.UpdateStorageItems(ctx, id, items)
}

type recordingAuditor struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (a *recordingAuditor) Log(e audit.Entry) {
	a.mu.Lock()
	a.entries = append(a.entries, e)
	a.mu.Unlock()
}

func (a *recordingAuditor) Entries() []audit.Entry {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]audit.Entry(nil), a.entries...)
}

const (
	potion = 100 // max stack 10, weight 1
	sword  = 200 // max stack 1, weight 5
)

type fixture struct {
	svc       *Service
	store     *countingStore
	buildings *building.LocalRegistry
	auditor   *recordingAuditor
}

func newFixture(t *testing.T, mutate ...func(*Options)) *fixture {
	t.Helper()
	cs := &countingStore{
		Store: store.NewGormStore(testutil.SetupTestDB(t)),
		calls: make(map[string]int),
	}
	reg := building.NewLocalRegistry()
	aud := &recordingAuditor{}
	opts := Options{
		Store: cs,
		Catalog: item.NewStaticCatalog(
			item.Definition{DataID: potion, MaxStack: 10, Weight: 1},
			item.Definition{DataID: sword, MaxStack: 1, Weight: 5},
		),
		Capacity: StaticCapacity{
			Player:    entity.Storage{SlotLimit: 4},
			Guild:     entity.Storage{SlotLimit: 8, WeightLimit: 100},
			Buildings: reg,
		},
		Inventory: item.Limits{SlotLimit: 6},
		GuildRules: guild.NewTableRules(guild.Config{
			ExpTable:            []int64{100, 200},
			SkillPointsPerLevel: 1,
			MaxSkillLevel:       2,
		}),
		GuildRoles: []entity.GuildRole{{Name: "Master"}, {Name: "Officer"}, {Name: "Member"}},
		Auditor:    aud,
		Logger:     testutil.Logger(t),
	}
	for _, m := range mutate {
		m(&opts)
	}
	svc, err := New(opts)
	require.NoError(t, err)
	return &fixture{svc: svc, store: cs, buildings: reg, auditor: aud}
}

// seedAccount creates an account directly in the store.
func (f *fixture) seedAccount(t *testing.T, username string) string {
	t.Helper()
	id, err := f.store.Store.CreateUserLogin(context.Background(), username, "pw")
	require.NoError(t, err)
	return id
}

// seedCharacter creates a character directly in the store.
func (f *fixture) seedCharacter(t *testing.T, accountID, name string, items item.List) *entity.Character {
	t.Helper()
	c := &entity.Character{Name: name, DataID: 1, Level: 1, NonEquipItems: items}
	require.NoError(t, f.store.Store.CreateCharacter(context.Background(), accountID, c))
	return c
}
