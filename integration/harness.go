package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/kasuganosora/mmocache/api/rpc"
	"github.com/kasuganosora/mmocache/api/sse"
	apows "github.com/kasuganosora/mmocache/api/ws"
	"github.com/kasuganosora/mmocache/cache"
	"github.com/kasuganosora/mmocache/codec"
	"github.com/kasuganosora/mmocache/config"
	"github.com/kasuganosora/mmocache/entity"
	"github.com/kasuganosora/mmocache/facade"
	"github.com/kasuganosora/mmocache/game/building"
	"github.com/kasuganosora/mmocache/game/guild"
	"github.com/kasuganosora/mmocache/game/item"
	"github.com/kasuganosora/mmocache/game/player"
	"github.com/kasuganosora/mmocache/game/storage"
	mw "github.com/kasuganosora/mmocache/middleware"
	"github.com/kasuganosora/mmocache/store"
	"github.com/kasuganosora/mmocache/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	Potion  = 100
	Ore     = 200
	channel = "storage_updates"
)

var (
	playerLimits    = entity.Storage{SlotLimit: 4}
	guildLimits     = entity.Storage{SlotLimit: 6}
	inventoryLimits = item.Limits{SlotLimit: 6}
)

// Cluster is one cache service and any number of game server gateways
// sharing a cache and pubsub, wired the way main.go wires the two modes.
type Cluster struct {
	Store     *store.GormStore
	Service   *facade.Service
	Cache     cache.Cache
	PubSub    cache.PubSub
	Buildings *building.SharedRegistry
	URL       string
	Security  config.SecurityConfig
	logger    *zap.Logger
}

// NewCluster starts the cache service.
func NewCluster(t *testing.T) *Cluster {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.SetupTestDB(t)
	c, ps := testutil.SetupTestCache(t)
	logger := zap.NewNop()
	sec := config.SecurityConfig{
		ServiceSecret: "integration-secret",
		ServiceTTL:    time.Hour,
	}

	st := store.NewGormStore(db)
	reg := building.NewSharedRegistry(c, "", logger)
	svc, err := facade.New(facade.Options{
		Store: st,
		Catalog: item.NewStaticCatalog(
			item.Definition{DataID: Potion, MaxStack: 10, Weight: 1},
			item.Definition{DataID: Ore, MaxStack: 50, Weight: 2},
		),
		Capacity:      facade.StaticCapacity{Player: playerLimits, Guild: guildLimits, Buildings: reg},
		Inventory:     inventoryLimits,
		BalancePolicy: facade.BalanceReject,
		Publisher:     ps,
		Channel:       channel,
		Logger:        logger,
	})
	require.NoError(t, err)

	r := gin.New()
	r.Use(mw.TraceID(), mw.Recovery(logger))
	api := r.Group("/", mw.ServiceAuth(sec, c))
	rpc.NewServer(svc, codec.Msgpack[*entity.Character]{}, logger).Register(api)
	api.GET("/events/storage", sse.NewHandler(ps, channel, logger).ServeSSE)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return &Cluster{
		Store:     st,
		Service:   svc,
		Cache:     c,
		PubSub:    ps,
		Buildings: reg,
		URL:       srv.URL,
		Security:  sec,
		logger:    logger,
	}
}

// Player is an account with one character and a valid access token.
type Player struct {
	AccountID string
	Token     string
	Character *entity.Character
}

// CreatePlayer registers an account and a character carrying items.
func (cl *Cluster) CreatePlayer(t *testing.T, name string, guildID int, items ...item.Slot) *Player {
	t.Helper()
	ctx := context.Background()
	accountID, err := cl.Store.CreateUserLogin(ctx, strings.ToLower(name), "pw")
	require.NoError(t, err)
	ch := &entity.Character{Name: name, DataID: 1, Level: 1, GuildID: guildID, NonEquipItems: item.List(items)}
	require.NoError(t, cl.Store.CreateCharacter(ctx, accountID, ch))
	token := UniqueID("tok")
	require.NoError(t, cl.Service.UpdateAccessToken(ctx, accountID, token))
	return &Player{AccountID: accountID, Token: token, Character: ch}
}

// PlaceBuilding registers a live building with its own storage.
func (cl *Cluster) PlaceBuilding(t *testing.T, b building.LiveBuilding) {
	t.Helper()
	require.NoError(t, cl.Buildings.Register(context.Background(), b))
}

// Gateway is a game server that reaches the cache service over rpc.
type Gateway struct {
	Name    string
	WSURL   string
	Client  *rpc.Client
	SM      *player.SessionManager
	Guilds  *guild.Online
	Tracker *storage.Tracker
}

// AddGateway starts a game server. It returns once the gateway is
// subscribed to storage updates.
func (cl *Cluster) AddGateway(t *testing.T, name string) *Gateway {
	t.Helper()
	client, err := rpc.NewClient(rpc.ClientConfig{
		BaseURL: cl.URL,
		Service: name,
		Secret:  cl.Security.ServiceSecret,
		TTL:     cl.Security.ServiceTTL,
	})
	require.NoError(t, err)

	sm := player.NewSessionManager(cl.logger)
	online := guild.NewOnline()
	tracker, err := storage.New(storage.Config{
		Client:    client,
		Notifier:  sm,
		Guilds:    online,
		Buildings: cl.Buildings,
		Player:    playerLimits,
		Guild:     guildLimits,
		Logger:    cl.logger,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	ps := &readyPubSub{PubSub: cl.PubSub, ready: make(chan struct{})}
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = tracker.Listen(ctx, ps, channel)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		sm.CloseAllSessions()
	})
	select {
	case <-ps.ready:
	case <-time.After(2 * time.Second):
		t.Fatalf("gateway %s did not subscribe", name)
	}

	r := gin.New()
	r.Use(mw.TraceID(), mw.Recovery(cl.logger))
	r.GET("/ws", apows.NewHandler(client, sm, tracker, online, nil, cl.logger).ServeWS)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return &Gateway{
		Name:    name,
		WSURL:   "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws",
		Client:  client,
		SM:      sm,
		Guilds:  online,
		Tracker: tracker,
	}
}

// readyPubSub closes ready once the first subscription is in place.
type readyPubSub struct {
	cache.PubSub
	ready chan struct{}
}

func (p *readyPubSub) Subscribe(ctx context.Context, channels ...string) (<-chan *cache.Message, func(), error) {
	ch, cancel, err := p.PubSub.Subscribe(ctx, channels...)
	if err == nil {
		close(p.ready)
	}
	return ch, cancel, err
}

// --- WebSocket client ---

// WSClient wraps a gorilla/websocket connection for integration testing.
// A background readLoop feeds readCh so a receive timeout never poisons the
// connection.
type WSClient struct {
	Conn   *websocket.Conn
	t      *testing.T
	seq    uint64
	readCh chan readResult
}

type readResult struct {
	pkt player.Packet
	err error
}

// Connect opens a player connection on the gateway.
func (g *Gateway) Connect(t *testing.T, p *Player) *WSClient {
	t.Helper()
	q := url.Values{}
	q.Set("account_id", p.AccountID)
	q.Set("token", p.Token)
	q.Set("character_id", p.Character.ID)
	conn, resp, err := websocket.DefaultDialer.Dial(g.WSURL+"?"+q.Encode(), nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	require.NoError(t, err, "WS dial failed")
	wc := &WSClient{Conn: conn, t: t, readCh: make(chan readResult, 256)}
	go wc.readLoop()
	t.Cleanup(wc.Close)
	return wc
}

func (wc *WSClient) readLoop() {
	for {
		_, data, err := wc.Conn.ReadMessage()
		var res readResult
		if err == nil {
			res.err = json.Unmarshal(data, &res.pkt)
		} else {
			res.err = err
		}
		wc.readCh <- res
		if err != nil {
			return
		}
	}
}

// Send writes one packet with the next sequence number.
func (wc *WSClient) Send(msgType string, payload interface{}) {
	wc.t.Helper()
	seq := atomic.AddUint64(&wc.seq, 1)
	raw, err := json.Marshal(payload)
	require.NoError(wc.t, err)
	data, err := json.Marshal(map[string]interface{}{
		"seq":     seq,
		"type":    msgType,
		"payload": json.RawMessage(raw),
	})
	require.NoError(wc.t, err)
	require.NoError(wc.t, wc.Conn.WriteMessage(websocket.TextMessage, data))
}

// RecvType reads packets until one of msgType arrives and decodes its
// payload into v when v is not nil.
func (wc *WSClient) RecvType(msgType string, v interface{}, timeout time.Duration) {
	wc.t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case res := <-wc.readCh:
			require.NoError(wc.t, res.err, "WS recv failed while waiting for %q", msgType)
			if res.pkt.Type != msgType {
				continue
			}
			if v != nil {
				require.NoError(wc.t, json.Unmarshal(res.pkt.Payload, v))
			}
			return
		case <-deadline:
			wc.t.Fatalf("timed out waiting for message type %q", msgType)
		}
	}
}

// Close closes the WebSocket connection.
func (wc *WSClient) Close() {
	_ = wc.Conn.Close()
}

var testCounter uint64

// UniqueID returns a short unique string.
func UniqueID(prefix string) string {
	n := atomic.AddUint64(&testCounter, 1)
	return fmt.Sprintf("%s_%d_%d", prefix, time.Now().UnixNano()%100000, n)
}
