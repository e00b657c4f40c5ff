package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiterConfig configures a keyed limiter.
type RateLimiterConfig struct {
	RequestsPerSecond float64
	BurstSize         int

	// IdleTimeout drops a key's limiter after it has been unused this long.
	IdleTimeout time.Duration

	// KeyFunc extracts the limit key. Defaults to the client address.
	KeyFunc func(r *http.Request) string
}

// CheckoutRateLimiterConfig limits checkout originations per partner.
func CheckoutRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		RequestsPerSecond: 1,
		BurstSize:         5,
		IdleTimeout:       10 * time.Minute,
		KeyFunc:           partnerOrIP,
	}
}

// InboundRateLimiterConfig limits unauthenticated processor callbacks
// (returns and webhooks) per client address.
func InboundRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		RequestsPerSecond: 10,
		BurstSize:         30,
		IdleTimeout:       10 * time.Minute,
		KeyFunc:           GetClientIP,
	}
}

func partnerOrIP(r *http.Request) string {
	if id := GetPartnerID(r.Context()); id != 0 {
		return "partner:" + strconv.FormatInt(id, 10)
	}
	return "ip:" + GetClientIP(r)
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one rate.Limiter per key and sweeps idle keys in the
// background until Stop is called.
type RateLimiter struct {
	config RateLimiterConfig

	mu       sync.Mutex
	visitors map[string]*visitor

	stop     chan struct{}
	stopOnce sync.Once
}

// NewRateLimiter creates a limiter and starts its sweeper.
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	if config.KeyFunc == nil {
		config.KeyFunc = GetClientIP
	}
	if config.IdleTimeout <= 0 {
		config.IdleTimeout = 10 * time.Minute
	}
	if config.BurstSize <= 0 {
		config.BurstSize = 1
	}

	rl := &RateLimiter{
		config:   config,
		visitors: make(map[string]*visitor),
		stop:     make(chan struct{}),
	}
	go rl.sweep()
	return rl
}

// Allow consumes one token for key.
func (rl *RateLimiter) Allow(key string) bool {
	return rl.limiterFor(key, time.Now()).Allow()
}

func (rl *RateLimiter) limiterFor(key string, now time.Time) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, ok := rl.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rate.Limit(rl.config.RequestsPerSecond), rl.config.BurstSize)}
		rl.visitors[key] = v
	}
	v.lastSeen = now
	return v.limiter
}

func (rl *RateLimiter) sweep() {
	ticker := time.NewTicker(rl.config.IdleTimeout)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			rl.mu.Lock()
			for key, v := range rl.visitors {
				if now.Sub(v.lastSeen) > rl.config.IdleTimeout {
					delete(rl.visitors, key)
				}
			}
			rl.mu.Unlock()
		case <-rl.stop:
			return
		}
	}
}

// Stop ends the sweeper. It is safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

// retryAfter is the whole number of seconds until one token refills.
func (rl *RateLimiter) retryAfter() string {
	if rl.config.RequestsPerSecond <= 0 {
		return "60"
	}
	return strconv.Itoa(int(math.Ceil(1 / rl.config.RequestsPerSecond)))
}

// Middleware answers 429 once the request's key runs out of tokens.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := rl.config.KeyFunc(r)

		if !rl.Allow(key) {
			GetLogger(r.Context()).Warn("Rate limit exceeded", "key", key, "path", r.URL.Path)
			w.Header().Set("Retry-After", rl.retryAfter())
			respondTooManyRequests(w, r)
			return
		}

		next.ServeHTTP(w, r)
	})
}
