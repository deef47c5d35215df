package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// keyFunc maps a request to the identity that owns a rate-limit bucket.
// Returned keys must be stable for the lifetime of the request.
type keyFunc func(*gin.Context) string

// KeyByUserOrIP keys buckets by the authenticated user id when Auth has run,
// falling back to the client IP for anonymous traffic. Keys carry a prefix
// ("user:42", "ip:203.0.113.7") so the two namespaces cannot collide.
func KeyByUserOrIP() keyFunc {
	return func(c *gin.Context) string {
		if uid := UserIDFrom(c); uid != 0 {
			return "user:" + strconv.FormatUint(uint64(uid), 10)
		}
		return "ip:" + c.ClientIP()
	}
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter enforces per-identity token buckets in process memory.
//
// Buckets are created lazily and swept when idle past bucketTTL, so memory
// stays proportional to the active client set. The limiter is process-local;
// running multiple replicas multiplies the effective limit accordingly.
// Safe for concurrent use.
type RateLimiter struct {
	rps   rate.Limit
	burst int
	keyFn keyFunc

	mu        sync.Mutex
	buckets   map[string]*bucket
	nextSweep time.Time
}

const (
	bucketTTL     = 10 * time.Minute
	sweepInterval = time.Minute
)

// NewRateLimiter builds a limiter replenishing rps tokens per second with the
// given burst capacity. A burst below 1 is coerced to 1 so every key can make
// at least one request.
func NewRateLimiter(rps float64, burst int, keyFn keyFunc) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		rps:     rate.Limit(rps),
		burst:   burst,
		keyFn:   keyFn,
		buckets: make(map[string]*bucket),
	}
}

// take reports whether key may proceed, creating its bucket on first contact.
func (rl *RateLimiter) take(key string) bool {
	now := time.Now()

	rl.mu.Lock()
	// Sweep stale buckets first so an expired entry for this very key is
	// rebuilt fresh rather than refreshed.
	if now.After(rl.nextSweep) {
		for k, b := range rl.buckets {
			if now.Sub(b.lastSeen) >= bucketTTL {
				delete(rl.buckets, k)
			}
		}
		rl.nextSweep = now.Add(sweepInterval)
	}

	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rl.rps, rl.burst)}
		rl.buckets[key] = b
	}
	b.lastSeen = now
	lim := b.limiter
	rl.mu.Unlock()

	return lim.Allow()
}

// IsRateBypass reports whether IdempotencyValidator flagged this request as a
// replay of an already-completed submission. Replays are served from the
// ledger and never consume tokens.
func IsRateBypass(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyRateBypass)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// Handler returns the enforcement middleware. Rejected requests get a 429
// with a Retry-After hint and the standard error envelope fields.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if IsRateBypass(c) {
			c.Next()
			return
		}

		if rl.take(rl.keyFn(c)) {
			c.Next()
			return
		}

		c.Header("Retry-After", "1")
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"request_id": c.Writer.Header().Get("X-Request-ID"),
			"code":       "rate_limited",
			"message":    "rate limit exceeded",
		})
	}
}
