// Package sse streams storage updates to services that do not subscribe to
// the pubsub backend themselves.
package sse

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/mmocache/cache"
	"github.com/kasuganosora/mmocache/entity"
	"github.com/kasuganosora/mmocache/facade"
	"go.uber.org/zap"
)

const defaultKeepAlive = 30 * time.Second

// Handler handles the storage event endpoint.
type Handler struct {
	pubsub    cache.PubSub
	channel   string
	keepAlive time.Duration
	logger    *zap.Logger
}

// NewHandler creates a Handler relaying updates published on channel.
func NewHandler(pubsub cache.PubSub, channel string, logger *zap.Logger) *Handler {
	return &Handler{pubsub: pubsub, channel: channel, keepAlive: defaultKeepAlive, logger: logger}
}

type filter struct {
	typ     *entity.StorageType
	ownerID string
}

func (f filter) match(u facade.StorageUpdate) bool {
	if f.typ != nil && *f.typ != u.Type {
		return false
	}
	return f.ownerID == "" || f.ownerID == u.OwnerID
}

func parseFilter(c *gin.Context) (filter, error) {
	f := filter{ownerID: c.Query("owner_id")}
	if raw := c.Query("type"); raw != "" {
		n, err := strconv.ParseUint(raw, 10, 8)
		if err != nil || !entity.StorageType(n).Valid() {
			return f, fmt.Errorf("invalid storage type %q", raw)
		}
		t := entity.StorageType(n)
		f.typ = &t
	}
	return f, nil
}

// ServeSSE handles GET /events/storage?type=&owner_id=.
// Both query parameters are optional filters.
func (h *Handler) ServeSSE(c *gin.Context) {
	f, err := parseFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	subCtx, subCancel := context.WithCancel(c.Request.Context())
	defer subCancel()

	msgCh, unsub, err := h.pubsub.Subscribe(subCtx, h.channel)
	if err != nil {
		h.logger.Error("sse subscribe failed", zap.Error(err))
		c.Status(http.StatusInternalServerError)
		return
	}
	defer unsub()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	fmt.Fprintf(c.Writer, "event: connected\ndata: {}\n\n")
	c.Writer.Flush()

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-msgCh:
			if !ok {
				return
			}
			u, err := facade.DecodeStorageUpdate(msg.Payload)
			if err != nil {
				h.logger.Warn("sse: bad storage update", zap.Error(err))
				continue
			}
			if !f.match(u) {
				continue
			}
			fmt.Fprintf(c.Writer, "event: storage\ndata: %s\n\n", msg.Payload)
			c.Writer.Flush()

		case <-ticker.C:
			// Keepalive comment to prevent proxy timeouts.
			fmt.Fprintf(c.Writer, ": keepalive\n\n")
			c.Writer.Flush()

		case <-c.Request.Context().Done():
			return
		}
	}
}
