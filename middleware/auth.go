package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/mmocache/cache"
	"github.com/kasuganosora/mmocache/config"
)

const ServiceKey = "service"

// RevokedServiceKey is the cache key that, when present, blocks a service
// from calling in even with an unexpired token.
func RevokedServiceKey(service string) string {
	return "revoked_service:" + service
}

// ServiceAuth validates the Bearer JWT a game server signs with the shared
// service secret. An empty secret disables the check. c may be nil, in
// which case revocation is not consulted.
func ServiceAuth(sec config.SecurityConfig, c cache.Cache) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if sec.ServiceSecret == "" {
			ctx.Next()
			return
		}
		header := ctx.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}
		tokenStr := strings.TrimPrefix(header, "Bearer ")

		claims, err := ParseToken(tokenStr, sec.ServiceSecret)
		if err != nil {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		if c != nil {
			cacheCtx, cancel := context.WithTimeout(ctx.Request.Context(), 2*time.Second)
			defer cancel()
			revoked, err := c.Exists(cacheCtx, RevokedServiceKey(claims.Service))
			switch {
			case err != nil:
				ctx.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "auth unavailable"})
				return
			case revoked:
				ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "service revoked"})
				return
			}
		}

		ctx.Set(ServiceKey, claims.Service)
		ctx.Next()
	}
}

// GetService retrieves the authenticated service name from the Gin context.
func GetService(c *gin.Context) string {
	if v, exists := c.Get(ServiceKey); exists {
		return v.(string)
	}
	return ""
}
