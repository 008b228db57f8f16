package middleware

import (
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nulzo/atlas-api/pkg/api"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// idleAfter is how long a bucket may go unused before it is dropped.
const idleAfter = 10 * time.Minute

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per caller. Callers presenting a known
// bearer token share a bucket per key; everyone else is bucketed by IP.
type RateLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*bucket
	lastSweep time.Time

	rps    rate.Limit
	burst  int
	logger *zap.Logger
	now    func() time.Time
}

func NewRateLimiter(rps float64, burst int, logger *zap.Logger) *RateLimiter {
	return &RateLimiter{
		buckets: make(map[string]*bucket),
		rps:     rate.Limit(rps),
		burst:   burst,
		logger:  logger,
		now:     time.Now,
	}
}

// callerKey runs before authentication, so only tokens in keys earn their
// own bucket. Unknown tokens fall back to the client IP.
func callerKey(c *gin.Context, keys keySet) string {
	if token, ok := bearer(c); ok && keys.contains(token) {
		return KeyID(token)
	}
	return "ip:" + c.ClientIP()
}

func (rl *RateLimiter) bucketFor(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if now.Sub(rl.lastSweep) > idleAfter {
		for k, b := range rl.buckets {
			if now.Sub(b.lastSeen) > idleAfter {
				delete(rl.buckets, k)
			}
		}
		rl.lastSweep = now
	}

	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rl.rps, rl.burst)}
		rl.buckets[key] = b
	}
	b.lastSeen = now
	return b.limiter
}

// Len reports how many buckets are live.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.buckets)
}

// Middleware limits a route group. keys are the tokens that group accepts.
func (rl *RateLimiter) Middleware(keys ...string) gin.HandlerFunc {
	known := newKeySet(keys)

	return func(c *gin.Context) {
		key := callerKey(c, known)
		res := rl.bucketFor(key).ReserveN(rl.now(), 1)

		if delay := res.DelayFrom(rl.now()); !res.OK() || delay > 0 {
			res.Cancel()
			wait := int(math.Ceil(delay.Seconds()))
			if wait < 1 {
				wait = 1
			}

			rl.logger.Warn("rate limit exceeded",
				zap.String("caller", key),
				zap.String("path", c.Request.URL.Path),
				zap.Int("retry_after", wait),
			)
			c.Header("Retry-After", strconv.Itoa(wait))
			_ = c.Error(api.RateLimitError("Too many requests, slow down"))
			c.Abort()
			return
		}

		c.Next()
	}
}
