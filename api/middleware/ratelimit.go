package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/use-agent/cookiediff/config"
	"github.com/use-agent/cookiediff/models"
)

// idleLimiter is how long an unused limiter is kept.
const idleLimiter = time.Hour

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// limiters holds one token bucket per caller identity.
type limiters struct {
	mu      sync.Mutex
	entries map[string]*limiterEntry
	limit   rate.Limit
	burst   int
}

func (l *limiters) get(identity string, now time.Time) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[identity]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.entries[identity] = e
	}
	e.lastSeen = now
	return e.limiter
}

func (l *limiters) evict(cutoff time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for id, e := range l.entries {
		if e.lastSeen.Before(cutoff) {
			delete(l.entries, id)
		}
	}
}

// RateLimit returns per-identity (API key or IP) token-bucket rate limiting
// middleware powered by golang.org/x/time/rate. A non-positive rate
// disables limiting.
//
// Entries unused for an hour are evicted every 5 minutes.
func RateLimit(cfg config.RateLimitConfig) gin.HandlerFunc {
	if cfg.RequestsPerSecond <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	l := &limiters{
		entries: make(map[string]*limiterEntry),
		limit:   rate.Limit(cfg.RequestsPerSecond),
		burst:   max(cfg.Burst, 1),
	}

	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for now := range ticker.C {
			l.evict(now.Add(-idleLimiter))
		}
	}()

	return func(c *gin.Context) {
		// Prefer API key as identity (set by auth middleware); fall back to IP.
		identity := c.GetString(identityKey)
		if identity == "" {
			identity = c.ClientIP()
		}

		if !l.get(identity, time.Now()).Allow() {
			abort(c, http.StatusTooManyRequests, models.ErrCodeRateLimited, "rate limit exceeded, please slow down")
			return
		}
		c.Next()
	}
}
