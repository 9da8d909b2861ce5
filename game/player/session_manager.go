package player

import (
	"encoding/json"
	"sort"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/kasuganosora/mmocache/game/item"
	"github.com/kasuganosora/mmocache/game/storage"
	"go.uber.org/zap"
)

// Packet types pushed by the storage notifications.
const (
	PacketStorageOpened = "storage_opened"
	PacketStorageClosed = "storage_closed"
	PacketStorageItems  = "storage_items"
	PacketGameMessage   = "game_message"
)

// MessageCannotAccessStorage is the game message sent when a storage open
// request is rejected.
const MessageCannotAccessStorage = "UI_ERROR_CANNOT_ACCESS_STORAGE"

// SessionManager maintains the registry of connected sessions and delivers
// storage notifications to them. It implements storage.Notifier.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[int64]*Session // connID → session
	logger   *zap.Logger
}

var _ storage.Notifier = (*SessionManager)(nil)

// NewSessionManager creates a new SessionManager.
func NewSessionManager(logger *zap.Logger) *SessionManager {
	return &SessionManager{
		sessions: make(map[int64]*Session),
		logger:   logger,
	}
}

// Register adds a session. A previous session on the same connID is closed
// first.
func (sm *SessionManager) Register(s *Session) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if old, ok := sm.sessions[s.ConnID]; ok {
		old.Close()
		sm.logger.Info("duplicate session displaced", zap.Int64("conn_id", s.ConnID))
	}
	sm.sessions[s.ConnID] = s
	sm.logger.Info("player session registered",
		zap.Int64("conn_id", s.ConnID),
		zap.String("character_id", s.CharacterID))
}

// Unregister removes the session for a connID.
func (sm *SessionManager) Unregister(connID int64) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	delete(sm.sessions, connID)
	sm.logger.Info("player session unregistered", zap.Int64("conn_id", connID))
}

// Get returns the session for a connID, or nil if not found.
func (sm *SessionManager) Get(connID int64) *Session {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.sessions[connID]
}

// Count returns the number of currently connected sessions.
func (sm *SessionManager) Count() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.sessions)
}

// All returns a snapshot of the connected sessions ordered by connID.
func (sm *SessionManager) All() []*Session {
	sm.mu.RLock()
	out := make([]*Session, 0, len(sm.sessions))
	for _, s := range sm.sessions {
		out = append(out, s)
	}
	sm.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ConnID < out[j].ConnID })
	return out
}

// send delivers a typed packet to one connection. Unknown connections are
// ignored; they may have disconnected while a storage call was in flight.
func (sm *SessionManager) send(connID int64, typ string, payload interface{}) {
	s := sm.Get(connID)
	if s == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		sm.logger.Error("failed to marshal packet", zap.String("type", typ), zap.Error(err))
		return
	}
	s.Send(&Packet{Type: typ, Payload: data})
}

// Broadcast sends a raw pre-encoded packet to the listed connections.
// Uses non-blocking send to prevent slow connections from blocking the broadcast.
func (sm *SessionManager) Broadcast(connIDs []int64, data []byte) {
	sm.mu.RLock()
	sessions := make([]*Session, 0, len(connIDs))
	for _, id := range connIDs {
		if s, ok := sm.sessions[id]; ok {
			sessions = append(sessions, s)
		}
	}
	sm.mu.RUnlock()

	for _, s := range sessions {
		s.SendRaw(data)
	}
}

func (sm *SessionManager) NotifyStorageOpened(connID int64, opened storage.Opened) {
	sm.send(connID, PacketStorageOpened, opened)
}

func (sm *SessionManager) NotifyStorageClosed(connID int64) {
	sm.send(connID, PacketStorageClosed, struct{}{})
}

// NotifyStorageItems encodes the list once and fans it out.
func (sm *SessionManager) NotifyStorageItems(connIDs []int64, items item.List) {
	payload, err := json.Marshal(struct {
		Items item.List `json:"items"`
	}{items})
	if err != nil {
		sm.logger.Error("failed to marshal storage items", zap.Error(err))
		return
	}
	data, err := json.Marshal(&Packet{Type: PacketStorageItems, Payload: payload})
	if err != nil {
		return
	}
	sm.Broadcast(connIDs, data)
}

func (sm *SessionManager) NotifyCannotAccess(connID int64) {
	sm.send(connID, PacketGameMessage, struct {
		Message string `json:"message"`
	}{MessageCannotAccessStorage})
}

// CloseAllSessions gracefully closes all connected sessions.
func (sm *SessionManager) CloseAllSessions() {
	sm.mu.Lock()
	sessions := make([]*Session, 0, len(sm.sessions))
	for _, s := range sm.sessions {
		sessions = append(sessions, s)
	}
	sm.sessions = make(map[int64]*Session)
	sm.mu.Unlock()

	sm.logger.Info("closing all sessions", zap.Int("count", len(sessions)))
	for _, s := range sessions {
		s.CloseWith(websocket.CloseGoingAway, "server shutting down")
	}
}
