package player

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	sendChanBuf   = 256
	writeDeadline = 10 * time.Second
	readDeadline  = 60 * time.Second
	pingInterval  = 30 * time.Second // server-side WS ping
)

// Packet is the unified WS message envelope.
type Packet struct {
	Seq     uint64          `json:"seq"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Session is a connected player's WebSocket session on a game server.
type Session struct {
	ConnID      int64
	AccountID   string
	CharacterID string
	TraceID     string
	// LastSeq is the highest packet seq dispatched so far. Only the read
	// loop of the connection touches it.
	LastSeq uint64

	Conn     *websocket.Conn
	SendChan chan []byte
	Done     chan struct{}

	closeOnce   sync.Once
	closeCode   int
	closeReason string

	logger *zap.Logger
}

// NewSession creates a Session and starts its write goroutine. A pong from
// the client extends the read deadline like any other message.
func NewSession(connID int64, accountID, characterID string, conn *websocket.Conn, logger *zap.Logger) *Session {
	s := &Session{
		ConnID:      connID,
		AccountID:   accountID,
		CharacterID: characterID,
		Conn:        conn,
		SendChan:    make(chan []byte, sendChanBuf),
		Done:        make(chan struct{}),
		logger:      logger,
	}
	conn.SetPongHandler(func(string) error {
		s.SetReadDeadline()
		return nil
	})
	go s.writePump()
	return s
}

// writePump writes queued packets and pings. Once the session is closed it
// flushes what is still queued, so a final storage_closed or result reaches
// the client, then sends the close frame.
func (s *Session) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	defer s.Conn.Close()
	for {
		select {
		case data := <-s.SendChan:
			if !s.write(websocket.TextMessage, data) {
				return
			}
		case <-ticker.C:
			if !s.write(websocket.PingMessage, nil) {
				return
			}
		case <-s.Done:
			for {
				select {
				case data := <-s.SendChan:
					if !s.write(websocket.TextMessage, data) {
						return
					}
				default:
					s.write(websocket.CloseMessage, websocket.FormatCloseMessage(s.closeCode, s.closeReason))
					return
				}
			}
		}
	}
}

func (s *Session) write(messageType int, data []byte) bool {
	_ = s.Conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	if err := s.Conn.WriteMessage(messageType, data); err != nil {
		if messageType == websocket.TextMessage {
			s.logger.Warn("ws write error", zap.Int64("conn_id", s.ConnID), zap.Error(err))
		}
		return false
	}
	return true
}

// Send encodes pkt and sends it non-blocking. Drops if channel full or closed.
func (s *Session) Send(pkt *Packet) {
	if s.IsClosed() {
		return
	}
	data, err := json.Marshal(pkt)
	if err != nil {
		return
	}
	s.SendRaw(data)
}

// SendRaw sends raw bytes non-blocking. Drops if channel full or closed.
func (s *Session) SendRaw(data []byte) {
	if s.IsClosed() {
		return
	}
	select {
	case s.SendChan <- data:
	case <-s.Done:
	default:
		if !s.IsClosed() {
			s.logger.Warn("send channel full, dropping packet",
				zap.Int64("conn_id", s.ConnID))
		}
	}
}

// Close ends the session with a normal closure.
func (s *Session) Close() {
	s.CloseWith(websocket.CloseNormalClosure, "")
}

// Kick ends the session with a policy-violation close frame carrying reason.
func (s *Session) Kick(reason string) {
	s.CloseWith(websocket.ClosePolicyViolation, reason)
}

// CloseWith ends the session with the given close code. Only the first
// close of a session takes effect.
func (s *Session) CloseWith(code int, reason string) {
	s.closeOnce.Do(func() {
		s.closeCode, s.closeReason = code, reason
		close(s.Done)
	})
}

// IsClosed returns true if the session has been closed.
func (s *Session) IsClosed() bool {
	select {
	case <-s.Done:
		return true
	default:
		return false
	}
}

// SetReadDeadline resets the WebSocket read deadline to 60 s from now.
func (s *Session) SetReadDeadline() {
	_ = s.Conn.SetReadDeadline(time.Now().Add(readDeadline))
}
