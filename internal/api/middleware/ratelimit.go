package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/maumercado/jobrunner-go/internal/logger"
)

// tokenBucket is a simple refilling bucket, one per client.
type tokenBucket struct {
	mu         sync.Mutex
	tokens     float64
	maxTokens  float64
	refillRate float64 // tokens per second
	lastRefill time.Time
	lastSeen   time.Time
}

func newTokenBucket(rps int) *tokenBucket {
	if rps <= 0 {
		rps = 1000
	}
	now := time.Now()
	return &tokenBucket{
		tokens:     float64(rps),
		maxTokens:  float64(rps),
		refillRate: float64(rps),
		lastRefill: now,
		lastSeen:   now,
	}
}

func (b *tokenBucket) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(b.lastRefill).Seconds()
	b.tokens += elapsed * b.refillRate
	if b.tokens > b.maxTokens {
		b.tokens = b.maxTokens
	}
	b.lastRefill = now
	b.lastSeen = now

	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}

// ClientRateLimiter keeps one bucket per client and evicts buckets idle
// longer than the cleanup interval.
type ClientRateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*tokenBucket
	rps     int
	maxIdle time.Duration
}

func NewClientRateLimiter(rps int) *ClientRateLimiter {
	crl := &ClientRateLimiter{
		buckets: make(map[string]*tokenBucket),
		rps:     rps,
		maxIdle: 5 * time.Minute,
	}
	go crl.cleanupLoop()
	return crl
}

func (crl *ClientRateLimiter) cleanupLoop() {
	ticker := time.NewTicker(crl.maxIdle)
	defer ticker.Stop()
	for range ticker.C {
		cutoff := time.Now().Add(-crl.maxIdle)
		crl.mu.Lock()
		for id, b := range crl.buckets {
			b.mu.Lock()
			stale := b.lastSeen.Before(cutoff)
			b.mu.Unlock()
			if stale {
				delete(crl.buckets, id)
			}
		}
		crl.mu.Unlock()
	}
}

// Allow checks the bucket for the given client, creating it on first sight.
func (crl *ClientRateLimiter) Allow(clientID string) bool {
	crl.mu.Lock()
	b, ok := crl.buckets[clientID]
	if !ok {
		b = newTokenBucket(crl.rps)
		crl.buckets[clientID] = b
	}
	crl.mu.Unlock()
	return b.allow()
}

// ClientRateLimit returns a middleware enforcing a per-client request rate.
// Clients are identified by X-Forwarded-For when present, else RemoteAddr.
func ClientRateLimit(rps int) func(next http.Handler) http.Handler {
	limiter := NewClientRateLimiter(rps)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientID := r.Header.Get("X-Forwarded-For")
			if clientID == "" {
				clientID = r.RemoteAddr
			}

			if !limiter.Allow(clientID) {
				logger.Warn().
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Str("client", clientID).
					Msg("client rate limit exceeded")

				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "1")
				w.WriteHeader(http.StatusTooManyRequests)
				w.Write([]byte(`{"error":"Too Many Requests","message":"rate limit exceeded"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
