package storage

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/kasuganosora/mmocache/cache"
	"github.com/kasuganosora/mmocache/entity"
	"github.com/kasuganosora/mmocache/facade"
	"github.com/kasuganosora/mmocache/game/building"
	"github.com/kasuganosora/mmocache/game/item"
	"github.com/kasuganosora/mmocache/store"
	"github.com/kasuganosora/mmocache/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	potion = 100
	sword  = 200
)

type itemsPush struct {
	conns []int64
	items item.List
}

type recordingNotifier struct {
	mu     sync.Mutex
	opened map[int64]Opened
	closed []int64
	denied []int64
	pushes []itemsPush
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{opened: make(map[int64]Opened)}
}

func (n *recordingNotifier) NotifyStorageOpened(connID int64, o Opened) {
	n.mu.Lock()
	n.opened[connID] = o
	n.mu.Unlock()
}

func (n *recordingNotifier) NotifyStorageClosed(connID int64) {
	n.mu.Lock()
	n.closed = append(n.closed, connID)
	n.mu.Unlock()
}

func (n *recordingNotifier) NotifyStorageItems(connIDs []int64, items item.List) {
	n.mu.Lock()
	n.pushes = append(n.pushes, itemsPush{conns: append([]int64(nil), connIDs...), items: items})
	n.mu.Unlock()
}

func (n *recordingNotifier) NotifyCannotAccess(connID int64) {
	n.mu.Lock()
	n.denied = append(n.denied, connID)
	n.mu.Unlock()
}

func (n *recordingNotifier) lastPush() itemsPush {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.pushes) == 0 {
		return itemsPush{}
	}
	return n.pushes[len(n.pushes)-1]
}

type guildSet map[int]bool

func (g guildSet) ContainsGuild(id int) bool { return g[id] }

type fixture struct {
	svc       *facade.Service
	tracker   *Tracker
	notifier  *recordingNotifier
	buildings *building.LocalRegistry
}

func newFixture(t *testing.T, ps cache.PubSub) *fixture {
	t.Helper()
	reg := building.NewLocalRegistry()
	player := entity.Storage{SlotLimit: 4}
	guild := entity.Storage{SlotLimit: 6}
	opts := facade.Options{
		Store: store.NewGormStore(testutil.SetupTestDB(t)),
		Catalog: item.NewStaticCatalog(
			item.Definition{DataID: potion, MaxStack: 10, Weight: 1},
			item.Definition{DataID: sword, MaxStack: 1, Weight: 5},
		),
		Capacity:  facade.StaticCapacity{Player: player, Guild: guild, Buildings: reg},
		Inventory: item.Limits{SlotLimit: 6},
		Logger:    testutil.Logger(t),
	}
	if ps != nil {
		opts.Publisher = ps
	}
	svc, err := facade.New(opts)
	require.NoError(t, err)

	n := newRecordingNotifier()
	tr, err := New(Config{
		Client:    svc,
		Notifier:  n,
		Guilds:    guildSet{7: true},
		Buildings: reg,
		Player:    player,
		Guild:     guild,
		Logger:    testutil.Logger(t),
	})
	require.NoError(t, err)
	return &fixture{svc: svc, tracker: tr, notifier: n, buildings: reg}
}

func hero() entity.SocialCharacter {
	return entity.SocialCharacter{ID: "char-1", AccountID: "acc-1", Name: "Hero", GuildID: 7}
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(Config{Notifier: newRecordingNotifier()})
	assert.Error(t, err)
	_, err = New(Config{Client: &facade.Service{}})
	assert.Error(t, err)
}

func TestOpenStorage_Player(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	ok, err := f.tracker.OpenStorage(ctx, 1, hero(), entity.StorageID{Type: entity.StoragePlayer, OwnerID: "acc-2"})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, []int64{1}, f.notifier.denied)
	_, opened := f.tracker.TryGetOpenedStorageID(1)
	assert.False(t, opened)

	id := entity.StorageID{Type: entity.StoragePlayer, OwnerID: "acc-1"}
	ok, err = f.tracker.OpenStorage(ctx, 1, hero(), id)
	require.NoError(t, err)
	require.True(t, ok)
	got, opened := f.tracker.TryGetOpenedStorageID(1)
	require.True(t, opened)
	assert.Equal(t, id, got)
	assert.Equal(t, Opened{Type: entity.StoragePlayer, OwnerID: "acc-1", SlotLimit: 4}, f.notifier.opened[1])
	push := f.notifier.lastPush()
	assert.Equal(t, []int64{1}, push.conns)
	assert.Len(t, push.items, 4)
}

// racingClient runs during after the storage read returns, before the
// tracker installs what it read.
type racingClient struct {
	Client
	during func()
}

func (c racingClient) ReadStorageItems(ctx context.Context, id entity.StorageID) (item.List, bool, error) {
	items, found, err := c.Client.ReadStorageItems(ctx, id)
	c.during()
	return items, found, err
}

func TestOpenStorage_KeepsUpdateFromDuringRead(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	id := entity.StorageID{Type: entity.StoragePlayer, OwnerID: "acc-1"}
	newer := item.List{item.NewSlot(potion, 5)}

	var tr *Tracker
	n := newRecordingNotifier()
	tr, err := New(Config{
		Client:   racingClient{Client: f.svc, during: func() { tr.SetStorageItems(id, newer) }},
		Notifier: n,
		Player:   entity.Storage{SlotLimit: 4},
		Logger:   testutil.Logger(t),
	})
	require.NoError(t, err)

	ok, err := tr.OpenStorage(ctx, 1, hero(), id)
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, 5, tr.GetStorageItems(id).CountItem(potion), "mirror keeps the newer list")
	push := n.lastPush()
	assert.Equal(t, []int64{1}, push.conns)
	assert.Len(t, push.items, 4)
	assert.Equal(t, 5, push.items.CountItem(potion), "opener sees the newer list")
}

// hintClient keeps the capacity hints sent with storage edits.
type hintClient struct {
	Client
	mu    sync.Mutex
	hints []*item.Limits
}

func (c *hintClient) IncreaseStorageItems(ctx context.Context, req facade.IncreaseStorageItemsRequest) (facade.StorageItemsResponse, error) {
	c.mu.Lock()
	c.hints = append(c.hints, req.Limits)
	c.mu.Unlock()
	return c.Client.IncreaseStorageItems(ctx, req)
}

func (c *hintClient) DecreaseStorageItems(ctx context.Context, req facade.DecreaseStorageItemsRequest) (facade.DecreaseStorageItemsResponse, error) {
	c.mu.Lock()
	c.hints = append(c.hints, req.Limits)
	c.mu.Unlock()
	return c.Client.DecreaseStorageItems(ctx, req)
}

func TestStorageEdits_SendLimitsHint(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	id := entity.StorageID{Type: entity.StoragePlayer, OwnerID: "acc-1"}
	hc := &hintClient{Client: f.svc}
	tr, err := New(Config{
		Client:   hc,
		Notifier: newRecordingNotifier(),
		Player:   entity.Storage{SlotLimit: 4},
		Logger:   testutil.Logger(t),
	})
	require.NoError(t, err)

	ok, err := tr.IncreaseStorageItems(ctx, id, item.NewSlot(potion, 3))
	require.NoError(t, err)
	require.True(t, ok)
	res, err := tr.DecreaseStorageItems(ctx, id, potion, 1)
	require.NoError(t, err)
	require.True(t, res.Success)
	_, err = tr.IncreaseStorageItems(ctx, entity.StorageID{Type: entity.StorageBuilding, OwnerID: "nowhere"}, item.NewSlot(potion, 1))
	require.NoError(t, err)

	hc.mu.Lock()
	defer hc.mu.Unlock()
	require.Len(t, hc.hints, 3)
	assert.Equal(t, &item.Limits{SlotLimit: 4}, hc.hints[0])
	assert.Equal(t, &item.Limits{SlotLimit: 4}, hc.hints[1])
	assert.Nil(t, hc.hints[2], "unknown capacity sends no hint")
}

func TestOpenStorage_Guild(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	ok, err := f.tracker.OpenStorage(ctx, 1, hero(), entity.StorageID{Type: entity.StorageGuild, OwnerID: "8"})
	require.NoError(t, err)
	assert.False(t, ok, "not the character's guild")

	outsider := hero()
	outsider.GuildID = 9
	ok, err = f.tracker.OpenStorage(ctx, 2, outsider, entity.StorageID{Type: entity.StorageGuild, OwnerID: "9"})
	require.NoError(t, err)
	assert.False(t, ok, "guild not loaded on this server")

	ok, err = f.tracker.OpenStorage(ctx, 1, hero(), entity.StorageID{Type: entity.StorageGuild, OwnerID: "7"})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 6, f.notifier.opened[1].SlotLimit)
}

func TestOpenStorage_BuildingAccess(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	id := entity.StorageID{Type: entity.StorageBuilding, OwnerID: "chest-1"}

	ok, err := f.tracker.OpenStorage(ctx, 1, hero(), id)
	require.NoError(t, err)
	assert.False(t, ok, "building not loaded")

	require.NoError(t, f.buildings.Register(ctx, building.LiveBuilding{
		ID: "chest-1", ObjectID: 42, CreatorID: "char-9", Storage: item.Limits{SlotLimit: 2},
	}))
	ok, err = f.tracker.OpenStorage(ctx, 1, hero(), id)
	require.NoError(t, err)
	assert.False(t, ok)
	_, opened := f.tracker.TryGetOpenedStorageID(1)
	assert.False(t, opened)
	assert.False(t, f.tracker.IsBuildingStorageOpen("chest-1"))
	assert.Len(t, f.notifier.denied, 2)

	require.NoError(t, f.buildings.Register(ctx, building.LiveBuilding{
		ID: "chest-1", ObjectID: 42, CreatorID: "char-9", CanUseByEveryone: true, Storage: item.Limits{SlotLimit: 2},
	}))
	ok, err = f.tracker.OpenStorage(ctx, 1, hero(), id)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, f.tracker.IsBuildingStorageOpen("chest-1"))
	assert.Equal(t, uint32(42), f.notifier.opened[1].ObjectID)
	assert.NotNil(t, f.tracker.GetBuildingStorageItems("chest-1"))
}

func TestCloseStorage(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	id := entity.StorageID{Type: entity.StoragePlayer, OwnerID: "acc-1"}
	_, err := f.tracker.OpenStorage(ctx, 1, hero(), id)
	require.NoError(t, err)

	assert.True(t, f.tracker.CloseStorage(1))
	assert.False(t, f.tracker.CloseStorage(1))
	assert.Equal(t, []int64{1}, f.notifier.closed)
	_, opened := f.tracker.TryGetOpenedStorageID(1)
	assert.False(t, opened)
}

func TestOpenStorage_SwitchingLeavesPreviousViewers(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	chest := entity.StorageID{Type: entity.StorageBuilding, OwnerID: "chest-1"}
	require.NoError(t, f.buildings.Register(ctx, building.LiveBuilding{ID: "chest-1", CanUseByEveryone: true}))

	_, err := f.tracker.OpenStorage(ctx, 1, hero(), chest)
	require.NoError(t, err)
	_, err = f.tracker.OpenStorage(ctx, 1, hero(), entity.StorageID{Type: entity.StoragePlayer, OwnerID: "acc-1"})
	require.NoError(t, err)
	assert.False(t, f.tracker.IsBuildingStorageOpen("chest-1"))
}

func TestIncreaseStorageItems_BroadcastsToViewers(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	id := entity.StorageID{Type: entity.StorageGuild, OwnerID: "7"}
	member := hero()
	member.ID = "char-2"
	_, err := f.tracker.OpenStorage(ctx, 1, hero(), id)
	require.NoError(t, err)
	_, err = f.tracker.OpenStorage(ctx, 2, member, id)
	require.NoError(t, err)

	ok, err := f.tracker.IncreaseStorageItems(ctx, id, item.NewSlot(potion, 13))
	require.NoError(t, err)
	require.True(t, ok)

	push := f.notifier.lastPush()
	assert.ElementsMatch(t, []int64{1, 2}, push.conns)
	assert.Len(t, push.items, 6)
	assert.Equal(t, 13, push.items.CountItem(potion))
	assert.Equal(t, 13, f.tracker.GetStorageItems(id).CountItem(potion))
}

func TestIncreaseStorageItems_OverwhelmKeepsMirror(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	id := entity.StorageID{Type: entity.StoragePlayer, OwnerID: "acc-1"}
	for i := 0; i < 4; i++ {
		ok, err := f.tracker.IncreaseStorageItems(ctx, id, item.NewSlot(sword, 1))
		require.NoError(t, err)
		require.True(t, ok)
	}
	before := f.tracker.GetStorageItems(id)

	ok, err := f.tracker.IncreaseStorageItems(ctx, id, item.NewSlot(sword, 1))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, before, f.tracker.GetStorageItems(id))
}

func TestDecreaseStorageItems(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	id := entity.StorageID{Type: entity.StoragePlayer, OwnerID: "acc-1"}
	_, err := f.tracker.IncreaseStorageItems(ctx, id, item.NewSlot(potion, 12))
	require.NoError(t, err)

	res, err := f.tracker.DecreaseStorageItems(ctx, id, potion, 20)
	require.NoError(t, err)
	assert.False(t, res.Success)

	res, err = f.tracker.DecreaseStorageItems(ctx, id, potion, 11)
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Equal(t, map[int]int{0: 10, 1: 1}, res.DecreasedItems)
	assert.Equal(t, 1, f.tracker.GetStorageItems(id).CountItem(potion))
}

func TestMoveRelays(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	c, err := f.svc.CreateCharacter(ctx, "acc-1", &entity.Character{
		Name: "Hero", DataID: 1, Level: 1, NonEquipItems: item.List{item.NewSlot(potion, 5)},
	})
	require.NoError(t, err)
	social := c.Social()
	id := entity.StorageID{Type: entity.StoragePlayer, OwnerID: "acc-1"}

	resp, err := f.tracker.MoveItemToStorage(ctx, 1, social, 0, 5, 0)
	require.NoError(t, err)
	assert.Equal(t, facade.StorageErrorInvalidStorage, resp.Error, "no storage open")

	_, err = f.tracker.OpenStorage(ctx, 1, social, id)
	require.NoError(t, err)
	resp, err = f.tracker.MoveItemToStorage(ctx, 1, social, 0, 5, 2)
	require.NoError(t, err)
	require.Equal(t, facade.StorageErrorNone, resp.Error)
	assert.Equal(t, 5, f.tracker.GetStorageItems(id)[2].Amount)
	assert.True(t, resp.InventoryItems[0].IsEmpty())

	swap, err := f.tracker.SwapOrMergeStorageItem(ctx, 1, social, 2, 0)
	require.NoError(t, err)
	require.Equal(t, facade.StorageErrorNone, swap.Error)
	assert.Equal(t, 5, f.tracker.GetStorageItems(id)[0].Amount)

	resp, err = f.tracker.MoveItemFromStorage(ctx, 1, social, 0, 5, item.AnySlot)
	require.NoError(t, err)
	require.Equal(t, facade.StorageErrorNone, resp.Error)
	assert.Equal(t, 5, resp.InventoryItems.CountItem(potion))
	assert.Zero(t, f.tracker.GetStorageItems(id).CountItem(potion))
}

func TestAllStorageItemsAndClear(t *testing.T) {
	f := newFixture(t, nil)
	id := entity.StorageID{Type: entity.StoragePlayer, OwnerID: "acc-1"}
	f.tracker.SetStorageItems(id, item.List{item.NewSlot(potion, 1)})

	all := f.tracker.AllStorageItems()
	require.Len(t, all, 1)
	all[id][0].Amount = 9
	assert.Equal(t, 1, f.tracker.GetStorageItems(id)[0].Amount, "snapshot is a copy")

	f.tracker.Clear()
	assert.Empty(t, f.tracker.AllStorageItems())
	assert.Empty(t, f.tracker.GetStorageItems(id))
}

func TestListen_AppliesRemoteUpdates(t *testing.T) {
	_, ps := testutil.SetupTestCache(t)
	f := newFixture(t, ps)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	id := entity.StorageID{Type: entity.StoragePlayer, OwnerID: "acc-1"}
	_, err := f.tracker.OpenStorage(ctx, 1, hero(), id)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- f.tracker.Listen(ctx, ps, facade.DefaultChannel) }()
	// The subscription is set up asynchronously; keep publishing until it lands.
	require.Eventually(t, func() bool {
		if _, err := f.svc.IncreaseStorageItems(ctx, facade.IncreaseStorageItemsRequest{Storage: id, Item: item.NewSlot(potion, 1)}); err != nil {
			return false
		}
		return f.tracker.GetStorageItems(id).CountItem(potion) > 0
	}, 2*time.Second, 20*time.Millisecond)

	assert.Equal(t, []int64{1}, f.notifier.lastPush().conns)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Listen did not return after cancel")
	}
}
