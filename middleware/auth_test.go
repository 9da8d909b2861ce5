package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/mmocache/cache"
	"github.com/kasuganosora/mmocache/config"
	"github.com/kasuganosora/mmocache/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProtectedRouter(sec config.SecurityConfig, c cache.Cache) *gin.Engine {
	r := gin.New()
	r.Use(ServiceAuth(sec, c))
	r.GET("/protected", func(ctx *gin.Context) {
		ctx.String(http.StatusOK, GetService(ctx))
	})
	return r
}

func callProtected(r *gin.Engine, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestServiceAuth_Rejections(t *testing.T) {
	sec := config.SecurityConfig{ServiceSecret: testSecret}
	r := newProtectedRouter(sec, nil)

	assert.Equal(t, http.StatusUnauthorized, callProtected(r, "").Code)
	assert.Equal(t, http.StatusUnauthorized, callProtected(r, "Token abc123").Code)
	assert.Equal(t, http.StatusUnauthorized, callProtected(r, "Bearer notavalidtoken").Code)

	other, err := GenerateToken("map-1", "other-secret", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, callProtected(r, "Bearer "+other).Code)
}

func TestServiceAuth_ValidToken(t *testing.T) {
	sec := config.SecurityConfig{ServiceSecret: testSecret}
	c, _ := testutil.SetupTestCache(t)
	r := newProtectedRouter(sec, c)

	tok, err := GenerateToken("map-1", testSecret, time.Hour)
	require.NoError(t, err)
	w := callProtected(r, "Bearer "+tok)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "map-1", w.Body.String())
}

func TestServiceAuth_Revoked(t *testing.T) {
	sec := config.SecurityConfig{ServiceSecret: testSecret}
	c, _ := testutil.SetupTestCache(t)
	r := newProtectedRouter(sec, c)
	tok, err := GenerateToken("map-1", testSecret, time.Hour)
	require.NoError(t, err)

	require.NoError(t, c.Set(context.Background(), RevokedServiceKey("map-1"), "1", time.Hour))
	assert.Equal(t, http.StatusUnauthorized, callProtected(r, "Bearer "+tok).Code)
}

// downCache fails every revocation lookup.
type downCache struct{ cache.Cache }

func (downCache) Exists(context.Context, string) (bool, error) {
	return false, errors.New("connection refused")
}

func TestServiceAuth_CacheDown(t *testing.T) {
	sec := config.SecurityConfig{ServiceSecret: testSecret}
	r := newProtectedRouter(sec, downCache{})
	tok, err := GenerateToken("map-1", testSecret, time.Hour)
	require.NoError(t, err)

	w := callProtected(r, "Bearer "+tok)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "auth unavailable")
}

func TestServiceAuth_DisabledWithoutSecret(t *testing.T) {
	r := newProtectedRouter(config.SecurityConfig{}, nil)
	w := callProtected(r, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestGetService_Missing(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Equal(t, "", GetService(c))
}
