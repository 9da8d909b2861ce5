package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func whitelistStatus(t *testing.T, entries []string, remote string) int {
	t.Helper()
	h, err := IPWhitelist(entries)
	require.NoError(t, err)
	r := gin.New()
	r.Use(h)
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.RemoteAddr = remote
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Code
}

func TestIPWhitelist(t *testing.T) {
	servers := []string{"192.168.1.1", " 10.0.0.0/8 ", "2001:db8::/32", ""}
	tests := []struct {
		name    string
		entries []string
		remote  string
		want    int
	}{
		{"empty list", nil, "1.2.3.4:1234", http.StatusOK},
		{"blank entries only", []string{"", " "}, "1.2.3.4:1234", http.StatusOK},
		{"exact match", servers, "192.168.1.1:5000", http.StatusOK},
		{"neighbour", servers, "192.168.1.2:5000", http.StatusForbidden},
		{"in prefix", servers, "10.20.30.40:5000", http.StatusOK},
		{"ipv6 prefix", servers, "[2001:db8::7]:5000", http.StatusOK},
		{"ipv6 outside", servers, "[2001:db9::7]:5000", http.StatusForbidden},
		{"v4 mapped in v6", servers, "[::ffff:10.1.1.1]:5000", http.StatusOK},
		{"unparseable remote", servers, "garbage", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, whitelistStatus(t, tt.entries, tt.remote))
		})
	}
}

func TestIPWhitelist_Malformed(t *testing.T) {
	for _, e := range []string{"192.168.1", "10.0.0.0/33", "host.internal"} {
		_, err := IPWhitelist([]string{"10.0.0.1", e})
		assert.Error(t, err, e)
	}
}
