package httpx

import (
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/arkestra/identity/pkg/slogx"
	"golang.org/x/time/rate"
)

// RateLimitConfig describes a token-bucket profile: RequestsPerWindow tokens
// refill over Window, with Burst available immediately.
type RateLimitConfig struct {
	RequestsPerWindow int
	Window            time.Duration
	Burst             int
}

// Profiles by endpoint sensitivity. Each can be tuned at startup with
// RATELIMIT_{STRICT,MODERATE,LENIENT}_{REQUESTS,WINDOW_SEC,BURST}.
var (
	// StrictLimit guards credential endpoints against brute forcing.
	StrictLimit = RateLimitConfig{RequestsPerWindow: 5, Window: time.Minute, Burst: 5}

	// ModerateLimit covers authenticated mutations.
	ModerateLimit = RateLimitConfig{RequestsPerWindow: 20, Window: time.Minute, Burst: 20}

	// LenientLimit covers cheap reads.
	LenientLimit = RateLimitConfig{RequestsPerWindow: 100, Window: time.Minute, Burst: 100}
)

func init() {
	StrictLimit = ParseRateLimitFromEnv("STRICT", StrictLimit)
	ModerateLimit = ParseRateLimitFromEnv("MODERATE", ModerateLimit)
	LenientLimit = ParseRateLimitFromEnv("LENIENT", LenientLimit)
}

// ParseRateLimitFromEnv overlays fallback with any RATELIMIT_{prefix}_*
// environment overrides. Unparseable or non-positive values keep the
// fallback field.
func ParseRateLimitFromEnv(prefix string, fallback RateLimitConfig) RateLimitConfig {
	cfg := fallback

	if n, ok := envPositiveInt("RATELIMIT_" + prefix + "_REQUESTS"); ok {
		cfg.RequestsPerWindow = n
	}
	if n, ok := envPositiveInt("RATELIMIT_" + prefix + "_WINDOW_SEC"); ok {
		cfg.Window = time.Duration(n) * time.Second
	}
	if n, ok := envPositiveInt("RATELIMIT_" + prefix + "_BURST"); ok {
		cfg.Burst = n
	}

	return cfg
}

func envPositiveInt(key string) (int, bool) {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// KeyExtractor derives the bucket key for a request. An empty key means the
// request cannot be attributed and is let through.
type KeyExtractor func(*http.Request) string

// IPKeyExtractor returns the client IP, preferring proxy headers
// (X-Forwarded-For first hop, then X-Real-IP) over RemoteAddr.
func IPKeyExtractor(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// UserIDKeyExtractor returns the authenticated user's ID, or "" when the
// request carries no verified identity.
func UserIDKeyExtractor(r *http.Request) string {
	userID, _ := r.Context().Value(CtxKeyUserID).(string)
	return userID
}

// CompositeKeyExtractor joins the non-empty results of extractors with sep.
func CompositeKeyExtractor(sep string, extractors ...KeyExtractor) KeyExtractor {
	return func(r *http.Request) string {
		parts := make([]string, 0, len(extractors))
		for _, extract := range extractors {
			if key := extract(r); key != "" {
				parts = append(parts, key)
			}
		}
		return strings.Join(parts, sep)
	}
}

const limiterSweepInterval = 5 * time.Minute

// keyedLimiters holds one token bucket per key and sweeps idle buckets so
// one-off clients do not pin memory forever.
type keyedLimiters struct {
	buckets sync.Map // key -> *rate.Limiter
	rate    rate.Limit
	burst   int

	sweepMu   sync.Mutex
	lastSweep time.Time
}

func (kl *keyedLimiters) get(key string) *rate.Limiter {
	if b, ok := kl.buckets.Load(key); ok {
		return b.(*rate.Limiter)
	}

	b, loaded := kl.buckets.LoadOrStore(key, rate.NewLimiter(kl.rate, kl.burst))
	if !loaded {
		kl.sweep()
	}
	return b.(*rate.Limiter)
}

// sweep drops buckets that have fully refilled. A full bucket means the key
// has been idle for at least one window.
func (kl *keyedLimiters) sweep() {
	kl.sweepMu.Lock()
	defer kl.sweepMu.Unlock()

	if time.Since(kl.lastSweep) < limiterSweepInterval {
		return
	}
	kl.lastSweep = time.Now()

	kl.buckets.Range(func(key, value any) bool {
		if value.(*rate.Limiter).Tokens() >= float64(kl.burst) {
			kl.buckets.Delete(key)
		}
		return true
	})
}

// RateLimitMiddleware enforces config per key. Rejections get a 429 with
// Retry-After and X-RateLimit-* headers.
func RateLimitMiddleware(config RateLimitConfig, keyExtractor KeyExtractor) Middleware {
	kl := &keyedLimiters{
		rate:      rate.Limit(float64(config.RequestsPerWindow) / config.Window.Seconds()),
		burst:     config.Burst,
		lastSweep: time.Now(),
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log := slogx.FromContext(r.Context())

			key := keyExtractor(r)
			if key == "" {
				log.Warn("rate limit key unavailable, allowing request", "path", r.URL.Path)
				next.ServeHTTP(w, r)
				return
			}

			limiter := kl.get(key)
			if limiter.Allow() {
				next.ServeHTTP(w, r)
				return
			}

			// Peek at the next token's availability without consuming it.
			res := limiter.Reserve()
			delay := res.Delay()
			res.Cancel()

			retryAfter := max(int(delay.Seconds()), 1)
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(config.RequestsPerWindow))
			w.Header().Set("X-RateLimit-Window", config.Window.String())

			log.Warn("rate limit exceeded",
				"key", key,
				"endpoint", r.URL.Path,
				"retry_after", retryAfter,
			)

			WriteError(w, http.StatusTooManyRequests,
				"rate_limit_exceeded", "Too many requests. Please try again later.")
		})
	}
}

// RateLimitByIP buckets requests by client IP.
func RateLimitByIP(config RateLimitConfig) Middleware {
	return RateLimitMiddleware(config, IPKeyExtractor)
}

// RateLimitByUser buckets by authenticated user ID, falling back to IP for
// anonymous requests.
func RateLimitByUser(config RateLimitConfig) Middleware {
	return RateLimitMiddleware(config, CompositeKeyExtractor(":",
		UserIDKeyExtractor,
		IPKeyExtractor,
	))
}
