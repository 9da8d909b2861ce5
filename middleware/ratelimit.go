package middleware

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const (
	limiterSweep = 5 * time.Minute
	limiterIdle  = 10 * time.Minute
)

type bucket struct {
	*rate.Limiter
	seen time.Time
}

// buckets holds one token bucket per caller key.
type buckets struct {
	r rate.Limit
	b int

	mu sync.Mutex
	m  map[string]*bucket
}

func (s *buckets) allow(key string, now time.Time) bool {
	s.mu.Lock()
	bk, ok := s.m[key]
	if !ok {
		bk = &bucket{Limiter: rate.NewLimiter(s.r, s.b)}
		s.m[key] = bk
	}
	bk.seen = now
	s.mu.Unlock()
	return bk.AllowN(now, 1)
}

func (s *buckets) sweep(before time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, bk := range s.m {
		if bk.seen.Before(before) {
			delete(s.m, k)
		}
	}
}

// retryAfter is the whole number of seconds until one token refills.
func (s *buckets) retryAfter() string {
	if s.r <= 0 || s.r == rate.Inf {
		return "1"
	}
	return strconv.Itoa(int(math.Ceil(1 / float64(s.r))))
}

// callerKey is the authenticated service, or the client IP before ServiceAuth.
func callerKey(c *gin.Context) string {
	if svc := GetService(c); svc != "" {
		return "svc:" + svc
	}
	return "ip:" + c.ClientIP()
}

// RateLimit is a token bucket per caller: r requests per second with burst b.
// Rejected requests get 429 and a Retry-After header. Idle buckets are
// dropped until ctx is done.
func RateLimit(ctx context.Context, r rate.Limit, b int) gin.HandlerFunc {
	set := &buckets{r: r, b: b, m: make(map[string]*bucket)}
	go func() {
		ticker := time.NewTicker(limiterSweep)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				set.sweep(now.Add(-limiterIdle))
			}
		}
	}()

	return func(c *gin.Context) {
		if set.allow(callerKey(c), time.Now()) {
			c.Next()
			return
		}
		c.Header("Retry-After", set.retryAfter())
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
	}
}
