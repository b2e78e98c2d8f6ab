package middleware

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/ttt-platform/trash2treasure/utils"
)

type rateLimiter struct {
	limiter *rate.Limiter
	expires time.Time
	mu      sync.Mutex
}

// limiterSet is one token bucket per client IP; idle buckets expire after five minutes.
type limiterSet struct {
	mu    sync.Mutex
	limit rate.Limit
	burst int
	items map[string]*rateLimiter
}

// RateLimit allows perMinute requests per client IP with a burst of half that.
// Each call gets its own buckets so the auth group can be stricter than the API.
func RateLimit(perMinute int) gin.HandlerFunc {
	if perMinute < 1 {
		perMinute = 1
	}
	set := &limiterSet{
		limit: rate.Every(time.Minute / time.Duration(perMinute)),
		burst: maxInt(perMinute/2, 1),
		items: map[string]*rateLimiter{},
	}

	return func(ctx *gin.Context) {
		limiter := set.get(ctx.ClientIP())

		limiter.mu.Lock()
		allowed := limiter.limiter.Allow()
		limiter.mu.Unlock()

		if !allowed {
			utils.Error(ctx, 429, 42901, "rate limit exceeded")
			ctx.Abort()
			return
		}

		ctx.Next()
	}
}

func (s *limiterSet) get(key string) *rateLimiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for k, l := range s.items {
		if now.After(l.expires) {
			delete(s.items, k)
		}
	}

	if limiter, ok := s.items[key]; ok {
		limiter.expires = now.Add(5 * time.Minute)
		return limiter
	}

	limiter := &rateLimiter{
		limiter: rate.NewLimiter(s.limit, s.burst),
		expires: now.Add(5 * time.Minute),
	}
	s.items[key] = limiter
	return limiter
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
