package rest_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/kasuganosora/mmocache/api/rest"
	"github.com/kasuganosora/mmocache/audit"
	"github.com/kasuganosora/mmocache/config"
	"github.com/kasuganosora/mmocache/facade"
	"github.com/kasuganosora/mmocache/game/player"
	mw "github.com/kasuganosora/mmocache/middleware"
	"github.com/kasuganosora/mmocache/scheduler"
	"github.com/kasuganosora/mmocache/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const adminKey = "test-key"

type fixedStats facade.Stats

func (f fixedStats) Stats() facade.Stats { return facade.Stats(f) }

type fixedAudit audit.Stats

func (f fixedAudit) Stats() audit.Stats { return audit.Stats(f) }

func newScheduler(t *testing.T) *scheduler.Scheduler {
	t.Helper()
	sched := scheduler.New(context.Background(), zap.NewNop())
	t.Cleanup(sched.Stop)
	sched.AddTicker("cache_stats", time.Hour, func(context.Context) {})
	return sched
}

func adminDo(r http.Handler, method, path, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if key != "" {
		req.Header.Set("X-Admin-Key", key)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func newCacheAdminRouter(t *testing.T, key string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	c, _ := testutil.SetupTestCache(t)
	sec := config.SecurityConfig{ServiceSecret: "s3cret", ServiceTTL: time.Hour}
	h := rest.NewCacheAdmin(fixedStats{Characters: 4, Storages: 2}, c, sec.ServiceTTL, newScheduler(t), zap.NewNop()).
		WithAudit(fixedAudit{Written: 12, Dropped: 1})

	r := gin.New()
	h.Register(r.Group("/", rest.AdminAuth(key)))
	r.GET("/rpc/stats", mw.ServiceAuth(sec, c), func(ctx *gin.Context) { ctx.Status(http.StatusOK) })
	return r
}

// ---- AdminAuth ----

func TestAdminAuth(t *testing.T) {
	r := newCacheAdminRouter(t, "")
	assert.Equal(t, http.StatusServiceUnavailable, adminDo(r, http.MethodGet, "/admin/metrics", "").Code)

	r = newCacheAdminRouter(t, adminKey)
	assert.Equal(t, http.StatusUnauthorized, adminDo(r, http.MethodGet, "/admin/metrics", "wrong").Code)
	assert.Equal(t, http.StatusOK, adminDo(r, http.MethodGet, "/admin/metrics", adminKey).Code)
}

// ---- cache mode ----

func TestCacheAdmin_Metrics(t *testing.T) {
	r := newCacheAdminRouter(t, adminKey)
	w := adminDo(r, http.MethodGet, "/admin/metrics", adminKey)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decodeBody(t, w)
	stats, ok := resp["cache"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(4), stats["characters"])
	assert.Equal(t, map[string]interface{}{"written": float64(12), "failed": float64(0), "dropped": float64(1), "queued": float64(0)}, resp["audit"])
	assert.Equal(t, []interface{}{"cache_stats"}, resp["scheduler_tasks"])
	assert.NotContains(t, resp, "online_players")

	w = adminDo(r, http.MethodGet, "/admin/scheduler", adminKey)
	assert.Equal(t, []interface{}{"cache_stats"}, decodeBody(t, w)["tasks"])

	assert.Equal(t, http.StatusNotFound, adminDo(r, http.MethodGet, "/admin/players", adminKey).Code)
}

func TestCacheAdmin_RevokeAndRestore(t *testing.T) {
	r := newCacheAdminRouter(t, adminKey)
	tok, err := mw.GenerateToken("game-1", "s3cret", time.Hour)
	require.NoError(t, err)
	call := func() int {
		req := httptest.NewRequest(http.MethodGet, "/rpc/stats", nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}
	require.Equal(t, http.StatusOK, call())

	assert.Equal(t, http.StatusOK, adminDo(r, http.MethodPost, "/admin/services/game-1/revoke", adminKey).Code)
	assert.Equal(t, http.StatusUnauthorized, call())

	assert.Equal(t, http.StatusOK, adminDo(r, http.MethodDelete, "/admin/services/game-1/revoke", adminKey).Code)
	assert.Equal(t, http.StatusOK, call())

	// Restoring a service that was never revoked is fine.
	assert.Equal(t, http.StatusOK, adminDo(r, http.MethodDelete, "/admin/services/game-2/revoke", adminKey).Code)
}

// ---- gateway mode ----

func newGatewayAdminRouter(t *testing.T) (*gin.Engine, *player.SessionManager) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	sm := player.NewSessionManager(zap.NewNop())
	h := rest.NewGatewayAdmin(sm, newScheduler(t), zap.NewNop())
	r := gin.New()
	h.Register(r.Group("/", rest.AdminAuth(adminKey)))
	return r, sm
}

// connect registers a live session as connID.
func connect(t *testing.T, sm *player.SessionManager, connID int64) *websocket.Conn {
	t.Helper()
	upgrader := websocket.Upgrader{}
	registered := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		sm.Register(player.NewSession(connID, "acc-1", "char-1", conn, zap.NewNop()))
		close(registered)
	}))
	t.Cleanup(srv.Close)

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	select {
	case <-registered:
	case <-time.After(time.Second):
		t.Fatal("session not registered")
	}
	return client
}

func TestGatewayAdmin_Players(t *testing.T) {
	r, sm := newGatewayAdminRouter(t)
	w := adminDo(r, http.MethodGet, "/admin/players", adminKey)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(0), decodeBody(t, w)["count"])

	connect(t, sm, 5)
	w = adminDo(r, http.MethodGet, "/admin/players", adminKey)
	resp := decodeBody(t, w)
	assert.Equal(t, float64(1), resp["count"])
	players := resp["players"].([]interface{})
	assert.Equal(t, "char-1", players[0].(map[string]interface{})["character_id"])

	w = adminDo(r, http.MethodGet, "/admin/metrics", adminKey)
	assert.Equal(t, float64(1), decodeBody(t, w)["online_players"])

	assert.Equal(t, http.StatusNotFound, adminDo(r, http.MethodPost, "/admin/services/x/revoke", adminKey).Code)
}

func TestGatewayAdmin_Kick(t *testing.T) {
	r, sm := newGatewayAdminRouter(t)
	assert.Equal(t, http.StatusBadRequest, adminDo(r, http.MethodPost, "/admin/kick/abc", adminKey).Code)
	assert.Equal(t, http.StatusNotFound, adminDo(r, http.MethodPost, "/admin/kick/999", adminKey).Code)

	client := connect(t, sm, 9)
	assert.Equal(t, http.StatusOK, adminDo(r, http.MethodPost, "/admin/kick/9", adminKey).Code)
	assert.True(t, sm.Get(9).IsClosed())

	require.NoError(t, client.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := client.ReadMessage()
	var closeErr *websocket.CloseError
	require.ErrorAs(t, err, &closeErr)
	assert.Equal(t, websocket.ClosePolicyViolation, closeErr.Code)
	assert.Equal(t, "kicked by admin", closeErr.Text)
}
