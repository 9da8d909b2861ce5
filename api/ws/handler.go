// Package ws is the player-facing WebSocket endpoint of a game server. It
// authenticates players against the cache service and routes their storage
// packets to the storage tracker.
package ws

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/kasuganosora/mmocache/entity"
	"github.com/kasuganosora/mmocache/game/guild"
	"github.com/kasuganosora/mmocache/game/player"
	"github.com/kasuganosora/mmocache/game/storage"
	"github.com/kasuganosora/mmocache/plugin/hook"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Accounts authenticates players. *facade.Service and the rpc client both
// satisfy it.
type Accounts interface {
	ValidateAccessToken(ctx context.Context, accountID, token string) (bool, error)
	ReadCharacter(ctx context.Context, id string) (*entity.Character, bool, error)
}

// Handler is the Gin handler for GET /ws.
type Handler struct {
	accounts Accounts
	sm       *player.SessionManager
	tracker  *storage.Tracker
	guilds   *guild.Online
	router   *Router
	hooks    *hook.Center
	logger   *zap.Logger
	upgrader websocket.Upgrader
	nextConn atomic.Int64
}

// NewHandler creates a new WebSocket Handler and registers the storage
// packet handlers on its router. An empty allowedOrigins permits all
// origins.
func NewHandler(
	accounts Accounts,
	sm *player.SessionManager,
	tracker *storage.Tracker,
	guilds *guild.Online,
	allowedOrigins []string,
	logger *zap.Logger,
) *Handler {
	h := &Handler{
		accounts: accounts,
		sm:       sm,
		tracker:  tracker,
		guilds:   guilds,
		router:   NewRouter(logger),
		logger:   logger,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, o := range allowedOrigins {
				if o == origin {
					return true
				}
			}
			return false
		},
	}
	h.registerStorageHandlers()
	return h
}

// SetHooks installs the hook center consulted on login, logout and storage
// requests. It must be called before ServeWS is in use.
func (h *Handler) SetHooks(hc *hook.Center) {
	h.hooks = hc
}

// SetPacketLimit caps how many storage requests per second one connection
// may send to the cache service.
func (h *Handler) SetPacketLimit(perSecond float64, burst int) {
	if perSecond <= 0 {
		h.router.SetLimit(rate.Inf, 0)
		return
	}
	h.router.SetLimit(rate.Limit(perSecond), burst)
}

func playerEvent(s *player.Session) hook.PlayerEvent {
	return hook.PlayerEvent{ConnID: s.ConnID, AccountID: s.AccountID, CharacterID: s.CharacterID}
}

var errCharacterNotOwned = errors.New("character does not belong to account")

// authenticate checks the access token and loads the character.
func (h *Handler) authenticate(ctx context.Context, accountID, token, characterID string) (*entity.Character, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	ok, err := h.accounts.ValidateAccessToken(ctx, accountID, token)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.New("invalid access token")
	}
	ch, found, err := h.accounts.ReadCharacter(ctx, characterID)
	if err != nil {
		return nil, err
	}
	if !found || ch.AccountID != accountID {
		return nil, errCharacterNotOwned
	}
	return ch, nil
}

// ServeWS handles GET /ws?account_id=&token=&character_id=.
func (h *Handler) ServeWS(c *gin.Context) {
	accountID, token, characterID := c.Query("account_id"), c.Query("token"), c.Query("character_id")
	if accountID == "" || token == "" || characterID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing credentials"})
		return
	}
	ch, err := h.authenticate(c.Request.Context(), accountID, token, characterID)
	if err != nil {
		h.logger.Info("ws auth rejected", zap.String("account_id", accountID), zap.Error(err))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("ws upgrade failed", zap.Error(err))
		return
	}

	sess := player.NewSession(h.nextConn.Add(1), accountID, characterID, conn, h.logger)
	h.sm.Register(sess)
	h.guilds.Join(ch.GuildID)
	defer h.handleDisconnect(sess, ch.GuildID)
	h.trigger(hook.OnPlayerLogin, playerEvent(sess))
	h.readPump(context.Background(), sess)
}

// readPump reads messages from the WebSocket connection and dispatches them.
func (h *Handler) readPump(ctx context.Context, s *player.Session) {
	s.SetReadDeadline()
	s.Conn.SetPongHandler(func(string) error {
		s.SetReadDeadline()
		return nil
	})

	for {
		_, raw, err := s.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseNormalClosure,
				websocket.CloseNoStatusReceived) {
				h.logger.Warn("ws unexpected close",
					zap.Int64("conn_id", s.ConnID),
					zap.Error(err))
			}
			return
		}
		s.SetReadDeadline()
		h.router.Dispatch(ctx, s, raw)
	}
}

// handleDisconnect releases the storage session and the guild slot of the
// connection.
func (h *Handler) handleDisconnect(s *player.Session, guildID int) {
	s.Close()
	h.sm.Unregister(s.ConnID)
	h.tracker.CloseStorage(s.ConnID)
	h.router.Forget(s.ConnID)
	h.guilds.Leave(guildID)
	h.trigger(hook.OnPlayerLogout, playerEvent(s))
	h.logger.Info("player disconnected",
		zap.Int64("conn_id", s.ConnID),
		zap.String("account_id", s.AccountID),
		zap.String("character_id", s.CharacterID))
}

// trigger runs observer hooks. Their errors are logged and never stop the
// connection.
func (h *Handler) trigger(event string, data interface{}) {
	if h.hooks == nil {
		return
	}
	if _, err := h.hooks.Trigger(context.Background(), event, data); err != nil && !errors.Is(err, hook.ErrInterrupt) {
		h.logger.Warn("hook failed", zap.String("event", event), zap.Error(err))
	}
}
