package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/netip"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
)

// RateLimiter is a per-client token bucket. Clients are identified by IP.
type RateLimiter struct {
	mu              sync.Mutex
	requestsPerMin  int
	clients         map[string]*clientBucket
	cleanupInterval time.Duration
	lockoutDuration time.Duration // optional lockout after violations
	maxViolations   int           // number of violations before lockout
	trustedProxies  []netip.Prefix
	log             *zap.Logger
	now             func() time.Time
}

// clientBucket tracks tokens and violations for a single client (IP)
type clientBucket struct {
	mu          sync.Mutex
	tokens      int
	lastRefill  time.Time
	violations  int
	lockedUntil time.Time
}

// RateLimitConfig holds configuration for rate limiting
type RateLimitConfig struct {
	RequestsPerMinute int
	CleanupInterval   time.Duration
	LockoutDuration   time.Duration
	MaxViolations     int
	// TrustedProxies are the only peers whose forwarding headers are honored.
	TrustedProxies []netip.Prefix
	Logger         *zap.Logger
}

// NewRateLimiter creates a limiter. Stale buckets are swept until ctx is done.
func NewRateLimiter(ctx context.Context, config RateLimitConfig) *RateLimiter {
	if config.CleanupInterval == 0 {
		config.CleanupInterval = 5 * time.Minute
	}
	if config.MaxViolations == 0 {
		config.MaxViolations = 10
	}
	log := config.Logger
	if log == nil {
		log = zap.NewNop()
	}

	rl := &RateLimiter{
		requestsPerMin:  config.RequestsPerMinute,
		clients:         make(map[string]*clientBucket),
		cleanupInterval: config.CleanupInterval,
		lockoutDuration: config.LockoutDuration,
		maxViolations:   config.MaxViolations,
		trustedProxies:  config.TrustedProxies,
		log:             log.Named("ratelimit"),
		now:             func() time.Time { return time.Now().UTC() },
	}

	go rl.cleanupLoop(ctx)

	return rl
}

// Middleware rejects requests over the limit with 429 and a JSON body.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientIP := ClientIP(r, rl.trustedProxies)

		allowed, remaining, resetTime := rl.Allow(clientIP)

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.requestsPerMin))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetTime.Unix(), 10))

		if !allowed {
			retryAfter := int(resetTime.Sub(rl.now()).Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			rl.log.Warn("rate limit exceeded", zap.String("client_ip", clientIP), zap.String("path", r.URL.Path))
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "too many requests, try again later"})
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Allow checks if a request from the given client IP is allowed
// Returns: (allowed bool, remaining tokens, reset time)
func (rl *RateLimiter) Allow(clientIP string) (bool, int, time.Time) {
	now := rl.now()

	rl.mu.Lock()
	bucket, exists := rl.clients[clientIP]
	if !exists {
		bucket = &clientBucket{
			tokens:     rl.requestsPerMin,
			lastRefill: now,
		}
		rl.clients[clientIP] = bucket
	}
	rl.mu.Unlock()

	bucket.mu.Lock()
	defer bucket.mu.Unlock()

	if !bucket.lockedUntil.IsZero() {
		if now.Before(bucket.lockedUntil) {
			return false, 0, bucket.lockedUntil
		}
		bucket.lockedUntil = time.Time{}
		bucket.violations = 0
	}

	// Full refill every minute, proportional in between.
	elapsed := now.Sub(bucket.lastRefill)
	if elapsed >= time.Minute {
		bucket.tokens = rl.requestsPerMin
		bucket.lastRefill = now
	} else if tokensToAdd := int(float64(rl.requestsPerMin) * (elapsed.Seconds() / 60.0)); tokensToAdd > 0 {
		bucket.tokens = min(bucket.tokens+tokensToAdd, rl.requestsPerMin)
		bucket.lastRefill = now
	}

	if bucket.tokens > 0 {
		bucket.tokens--
		return true, bucket.tokens, bucket.lastRefill.Add(time.Minute)
	}

	bucket.violations++
	if rl.lockoutDuration > 0 && bucket.violations >= rl.maxViolations {
		bucket.lockedUntil = now.Add(rl.lockoutDuration)
		rl.log.Warn("client locked out",
			zap.String("client_ip", clientIP),
			zap.Time("until", bucket.lockedUntil),
			zap.Int("violations", bucket.violations))
		return false, 0, bucket.lockedUntil
	}

	return false, 0, bucket.lastRefill.Add(time.Minute)
}

func (rl *RateLimiter) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(rl.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-ctx.Done():
			return
		}
	}
}

// cleanup removes client buckets that haven't been used recently
func (rl *RateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	staleThreshold := 10 * time.Minute

	for ip, bucket := range rl.clients {
		bucket.mu.Lock()
		lastActivity := bucket.lastRefill
		isLocked := !bucket.lockedUntil.IsZero() && now.Before(bucket.lockedUntil)
		bucket.mu.Unlock()

		if !isLocked && now.Sub(lastActivity) > staleThreshold {
			delete(rl.clients, ip)
		}
	}
}
