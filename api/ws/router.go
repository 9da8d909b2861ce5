package ws

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/kasuganosora/mmocache/facade"
	"github.com/kasuganosora/mmocache/game/player"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// PacketRateLimited tells the client a request was dropped unprocessed.
const PacketRateLimited = "rate_limited"

// HandlerFunc processes a decoded WS message payload.
type HandlerFunc func(ctx context.Context, session *player.Session, payload json.RawMessage) error

type route struct {
	fn      HandlerFunc
	limited bool
}

// Router dispatches incoming WS packets to registered handlers. Handlers
// registered with OnLimited share one token bucket per connection.
type Router struct {
	routes map[string]route
	logger *zap.Logger

	limit rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[int64]*rate.Limiter
}

// NewRouter creates a Router without a packet limit.
func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		routes:   make(map[string]route),
		logger:   logger,
		limit:    rate.Inf,
		limiters: make(map[int64]*rate.Limiter),
	}
}

// SetLimit sets the per-connection rate of limited packets. It applies to
// connections seen after the call.
func (r *Router) SetLimit(limit rate.Limit, burst int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.limit, r.burst = limit, burst
}

// On registers fn for msgType.
func (r *Router) On(msgType string, fn HandlerFunc) {
	r.routes[msgType] = route{fn: fn}
}

// OnLimited registers fn for msgType and counts it against the
// connection's packet limit.
func (r *Router) OnLimited(msgType string, fn HandlerFunc) {
	r.routes[msgType] = route{fn: fn, limited: true}
}

// Forget drops the limiter of a closed connection.
func (r *Router) Forget(connID int64) {
	r.mu.Lock()
	delete(r.limiters, connID)
	r.mu.Unlock()
}

func (r *Router) allow(connID int64) bool {
	r.mu.Lock()
	if r.limit == rate.Inf {
		r.mu.Unlock()
		return true
	}
	l, ok := r.limiters[connID]
	if !ok {
		l = rate.NewLimiter(r.limit, r.burst)
		r.limiters[connID] = l
	}
	r.mu.Unlock()
	return l.Allow()
}

// Dispatch decodes one packet and runs its handler. Packets whose seq is not
// above the last dispatched one are dropped; seq 0 opts out of ordering.
// Each handler runs with a fresh trace id that is forwarded to the cache
// service.
func (r *Router) Dispatch(ctx context.Context, s *player.Session, raw []byte) {
	var pkt player.Packet
	if err := json.Unmarshal(raw, &pkt); err != nil {
		r.logger.Warn("malformed packet", zap.Int64("conn_id", s.ConnID), zap.Error(err))
		return
	}
	if pkt.Seq != 0 {
		if pkt.Seq <= s.LastSeq {
			r.logger.Warn("replayed or out-of-order packet",
				zap.Int64("conn_id", s.ConnID),
				zap.Uint64("seq", pkt.Seq),
				zap.Uint64("last_seq", s.LastSeq))
			return
		}
		s.LastSeq = pkt.Seq
	}

	rt, ok := r.routes[pkt.Type]
	if !ok {
		r.logger.Debug("unhandled message type", zap.String("type", pkt.Type), zap.Int64("conn_id", s.ConnID))
		return
	}
	if rt.limited && !r.allow(s.ConnID) {
		r.logger.Debug("packet rate limited", zap.String("type", pkt.Type), zap.Int64("conn_id", s.ConnID))
		payload, _ := json.Marshal(struct {
			Type string `json:"type"`
		}{pkt.Type})
		s.Send(&player.Packet{Seq: pkt.Seq, Type: PacketRateLimited, Payload: payload})
		return
	}

	s.TraceID = uuid.NewString()
	ctx = facade.WithTraceID(ctx, s.TraceID)
	if err := rt.fn(ctx, s, pkt.Payload); err != nil {
		r.logger.Error("handler error",
			zap.String("type", pkt.Type),
			zap.Int64("conn_id", s.ConnID),
			zap.String("trace_id", s.TraceID),
			zap.Error(err))
	}
}
