// Package rest holds the operator endpoints of both server modes.
package rest

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/mmocache/audit"
	"github.com/kasuganosora/mmocache/cache"
	"github.com/kasuganosora/mmocache/game/player"
	mw "github.com/kasuganosora/mmocache/middleware"
	"github.com/kasuganosora/mmocache/scheduler"
	"go.uber.org/zap"
)

// AdminHandler handles admin-only REST endpoints.
// Routes should be protected by AdminAuth middleware.
type AdminHandler struct {
	sched  *scheduler.Scheduler
	logger *zap.Logger

	// cache mode
	stats     scheduler.StatsSource
	audit     AuditStats
	cache     cache.Cache
	revokeTTL time.Duration

	// gateway mode
	sm *player.SessionManager
}

// NewCacheAdmin creates the admin endpoints of the cache service. A revoked
// service stays blocked for revokeTTL, which should be at least the
// lifetime of a service token.
func NewCacheAdmin(
	stats scheduler.StatsSource,
	c cache.Cache,
	revokeTTL time.Duration,
	sched *scheduler.Scheduler,
	logger *zap.Logger,
) *AdminHandler {
	return &AdminHandler{stats: stats, cache: c, revokeTTL: revokeTTL, sched: sched, logger: logger}
}

// AuditStats reports the audit writer's counters.
type AuditStats interface {
	Stats() audit.Stats
}

// WithAudit adds the audit writer's counters to /admin/metrics.
func (h *AdminHandler) WithAudit(a AuditStats) *AdminHandler {
	h.audit = a
	return h
}

// NewGatewayAdmin creates the admin endpoints of a game server gateway.
func NewGatewayAdmin(sm *player.SessionManager, sched *scheduler.Scheduler, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{sm: sm, sched: sched, logger: logger}
}

// Register mounts the routes this handler was built for.
func (h *AdminHandler) Register(r gin.IRoutes) {
	r.GET("/admin/metrics", h.Metrics)
	r.GET("/admin/scheduler", h.ListSchedulerTasks)
	if h.cache != nil {
		r.POST("/admin/services/:name/revoke", h.RevokeService)
		r.DELETE("/admin/services/:name/revoke", h.RestoreService)
	}
	if h.sm != nil {
		r.GET("/admin/players", h.ListPlayers)
		r.POST("/admin/kick/:id", h.KickPlayer)
	}
}

// Metrics returns server health metrics.
// GET /admin/metrics
func (h *AdminHandler) Metrics(c *gin.Context) {
	out := gin.H{"scheduler_tasks": h.sched.ListTickers()}
	if h.stats != nil {
		out["cache"] = h.stats.Stats()
	}
	if h.audit != nil {
		out["audit"] = h.audit.Stats()
	}
	if h.sm != nil {
		out["online_players"] = h.sm.Count()
	}
	c.JSON(http.StatusOK, out)
}

// ListSchedulerTasks returns names of all registered ticker tasks.
// GET /admin/scheduler
func (h *AdminHandler) ListSchedulerTasks(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tasks": h.sched.ListTickers()})
}

// RevokeService blocks every token issued to a game server.
// POST /admin/services/:name/revoke
func (h *AdminHandler) RevokeService(c *gin.Context) {
	name := c.Param("name")
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := h.cache.Set(ctx, mw.RevokedServiceKey(name), "1", h.revokeTTL); err != nil {
		h.logger.Error("revoke service", zap.String("service", name), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cache error"})
		return
	}
	h.logger.Info("admin revoked service", zap.String("service", name))
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// RestoreService lifts a revocation.
// DELETE /admin/services/:name/revoke
func (h *AdminHandler) RestoreService(c *gin.Context) {
	name := c.Param("name")
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := h.cache.Del(ctx, mw.RevokedServiceKey(name)); err != nil && !cache.IsNotFound(err) {
		h.logger.Error("restore service", zap.String("service", name), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cache error"})
		return
	}
	h.logger.Info("admin restored service", zap.String("service", name))
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type playerInfo struct {
	ConnID      int64  `json:"conn_id"`
	AccountID   string `json:"account_id"`
	CharacterID string `json:"character_id"`
}

// ListPlayers returns a snapshot of all online players.
// GET /admin/players
func (h *AdminHandler) ListPlayers(c *gin.Context) {
	sessions := h.sm.All()
	result := make([]playerInfo, 0, len(sessions))
	for _, s := range sessions {
		result = append(result, playerInfo{
			ConnID:      s.ConnID,
			AccountID:   s.AccountID,
			CharacterID: s.CharacterID,
		})
	}
	c.JSON(http.StatusOK, gin.H{"players": result, "count": len(result)})
}

// KickPlayer forcibly disconnects a connection. Its storage session is
// released by the WebSocket handler.
// POST /admin/kick/:id
func (h *AdminHandler) KickPlayer(c *gin.Context) {
	connID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	s := h.sm.Get(connID)
	if s == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "player not online"})
		return
	}
	s.Kick("kicked by admin")
	h.logger.Info("admin kicked player", zap.Int64("conn_id", connID))
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// AdminAuth returns a middleware that checks the X-Admin-Key header.
// If adminKey is empty all admin endpoints answer 503 so the server cannot
// be deployed without protection by accident.
func AdminAuth(adminKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if adminKey == "" {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable,
				gin.H{"error": "admin endpoints disabled: set server.admin_key in config"})
			return
		}
		if c.GetHeader("X-Admin-Key") != adminKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}
