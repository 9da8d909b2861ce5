package rpc

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/mmocache/codec"
	"github.com/kasuganosora/mmocache/config"
	"github.com/kasuganosora/mmocache/entity"
	"github.com/kasuganosora/mmocache/facade"
	"github.com/kasuganosora/mmocache/game/building"
	"github.com/kasuganosora/mmocache/game/item"
	mw "github.com/kasuganosora/mmocache/middleware"
	"github.com/kasuganosora/mmocache/store"
	"github.com/kasuganosora/mmocache/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	secret = "test-secret"
	potion = 100
)

type fixture struct {
	svc    *facade.Service
	store  store.Store
	server *httptest.Server
	client *Client
}

func newFixture(t *testing.T, policy facade.BalancePolicy) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	st := store.NewGormStore(testutil.SetupTestDB(t))
	svc, err := facade.New(facade.Options{
		Store:         st,
		Catalog:       item.NewStaticCatalog(item.Definition{DataID: potion, MaxStack: 10, Weight: 1}),
		Capacity:      facade.StaticCapacity{Player: entity.Storage{SlotLimit: 4}, Buildings: building.NewLocalRegistry()},
		Inventory:     item.Limits{SlotLimit: 6},
		BalancePolicy: policy,
		Logger:        testutil.Logger(t),
	})
	require.NoError(t, err)

	c, _ := testutil.SetupTestCache(t)
	r := gin.New()
	r.Use(mw.TraceID(), mw.Recovery(testutil.Logger(t)), mw.ServiceAuth(config.SecurityConfig{ServiceSecret: secret}, c))
	NewServer(svc, codec.Msgpack[*entity.Character]{}, testutil.Logger(t)).Register(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	client, err := NewClient(ClientConfig{BaseURL: srv.URL, Service: "game-1", Secret: secret, TTL: time.Minute})
	require.NoError(t, err)
	return &fixture{svc: svc, store: st, server: srv, client: client}
}

func (f *fixture) seed(t *testing.T) (string, *entity.Character) {
	t.Helper()
	ctx := context.Background()
	accountID, err := f.store.CreateUserLogin(ctx, "alice", "pw")
	require.NoError(t, err)
	ch := &entity.Character{Name: "Alice", DataID: 1, Level: 1}
	require.NoError(t, f.store.CreateCharacter(ctx, accountID, ch))
	return accountID, ch
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(ClientConfig{})
	assert.Error(t, err)
	_, err = NewClient(ClientConfig{BaseURL: "http://x", Secret: "s"})
	assert.Error(t, err)
}

func TestClient_CharacterRoundTrip(t *testing.T) {
	f := newFixture(t, facade.BalanceAllow)
	ctx := context.Background()
	_, seeded := f.seed(t)

	_, found, err := f.client.ReadCharacter(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)

	ch, found, err := f.client.ReadCharacter(ctx, seeded.ID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "Alice", ch.Name)

	ch.Level = 9
	updated, err := f.client.UpdateCharacter(ctx, ch)
	require.NoError(t, err)
	assert.Equal(t, 9, updated.Level)

	cached, _, err := f.svc.ReadCharacter(ctx, seeded.ID)
	require.NoError(t, err)
	assert.Equal(t, 9, cached.Level)
}

func TestClient_ValidateAccessToken(t *testing.T) {
	f := newFixture(t, facade.BalanceAllow)
	ctx := context.Background()
	accountID, _ := f.seed(t)
	require.NoError(t, f.svc.UpdateAccessToken(ctx, accountID, "tok"))

	ok, err := f.client.ValidateAccessToken(ctx, accountID, "tok")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = f.client.ValidateAccessToken(ctx, accountID, "nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestClient_ChangeGold(t *testing.T) {
	f := newFixture(t, facade.BalanceReject)
	ctx := context.Background()
	accountID, _ := f.seed(t)

	gold, found, err := f.client.ChangeGold(ctx, accountID, 50)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, int64(50), gold)

	gold, found, err = f.client.ChangeGold(ctx, accountID, -80)
	assert.ErrorIs(t, err, facade.ErrInsufficientBalance)
	assert.True(t, found)
	assert.Equal(t, int64(50), gold)
}

func TestClient_StorageOps(t *testing.T) {
	f := newFixture(t, facade.BalanceAllow)
	ctx := context.Background()
	id := entity.StorageID{Type: entity.StoragePlayer, OwnerID: "acc-1"}

	resp, err := f.client.IncreaseStorageItems(ctx, facade.IncreaseStorageItemsRequest{
		Storage: id,
		Item:    item.Slot{DataID: potion, Amount: 13},
	})
	require.NoError(t, err)
	assert.Equal(t, facade.StorageErrorNone, resp.Error)

	items, found, err := f.client.ReadStorageItems(ctx, id)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 13, items.CountItem(potion))

	dec, err := f.client.DecreaseStorageItems(ctx, facade.DecreaseStorageItemsRequest{Storage: id, DataID: potion, Amount: 20})
	require.NoError(t, err)
	assert.Equal(t, facade.StorageErrorDecreaseItemNotEnough, dec.Error)

	dec, err = f.client.DecreaseStorageItems(ctx, facade.DecreaseStorageItemsRequest{Storage: id, DataID: potion, Amount: 11})
	require.NoError(t, err)
	assert.Equal(t, facade.StorageErrorNone, dec.Error)
	assert.Equal(t, map[int]int{0: 10, 1: 1}, dec.DecreasedItems)

	swap, err := f.client.SwapOrMergeStorageItem(ctx, facade.SwapOrMergeStorageItemRequest{Storage: id, FromIndex: 0, ToIndex: 9})
	require.NoError(t, err)
	assert.Equal(t, facade.StorageErrorInvalidStorageIndex, swap.Error)

	move, err := f.client.MoveItemFromStorage(ctx, facade.MoveItemFromStorageRequest{
		CharacterID: "ghost", Storage: id, StorageIndex: 0, StorageAmount: 1, InventoryIndex: -1,
	})
	require.NoError(t, err)
	assert.Equal(t, facade.StorageErrorInvalidCharacter, move.Error)
}

func TestClient_CustomAndTraceID(t *testing.T) {
	f := newFixture(t, facade.BalanceAllow)
	f.svc.RegisterCustomHandler(7, func(ctx context.Context, payload []byte) ([]byte, error) {
		return append([]byte(facade.TraceID(ctx)+":"), payload...), nil
	})

	out, err := f.client.Custom(facade.WithTraceID(context.Background(), "trace-9"), 7, []byte("ping"))
	require.NoError(t, err)
	assert.Equal(t, "trace-9:ping", string(out))

	_, err = f.client.Custom(context.Background(), 8, nil)
	assert.ErrorIs(t, err, facade.ErrNoCustomHandler)
}

func TestClient_WrongSecretIsRejected(t *testing.T) {
	f := newFixture(t, facade.BalanceAllow)
	c, err := NewClient(ClientConfig{BaseURL: f.server.URL, Service: "game-1", Secret: "other"})
	require.NoError(t, err)

	_, _, err = c.ReadCharacter(context.Background(), "x")
	assert.True(t, errors.Is(err, ErrRemote))
}

func TestServer_RejectsBadRequests(t *testing.T) {
	f := newFixture(t, facade.BalanceAllow)
	token, err := mw.GenerateToken("game-1", secret, time.Minute)
	require.NoError(t, err)

	post := func(path, body string) int {
		req, err := http.NewRequest(http.MethodPost, f.server.URL+path, bytes.NewBufferString(body))
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		return resp.StatusCode
	}

	assert.Equal(t, http.StatusNotFound, post("/rpc/99", "{}"))
	assert.Equal(t, http.StatusBadRequest, post("/rpc/abc", "{}"))
	assert.Equal(t, http.StatusBadRequest, post("/rpc/12", "{not json"))
	assert.Equal(t, http.StatusBadRequest, post("/rpc/14", "{}"))
}
