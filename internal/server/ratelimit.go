package server

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	apperrors "skillwizard/internal/errors"

	"golang.org/x/time/rate"
)

// MsgRateLimited is shown when a visitor submits forms faster than allowed
const MsgRateLimited = "Too many requests. Please wait a moment and try again."

// visitor is the token bucket of one client and when it last posted
type visitor struct {
	limiter  *rate.Limiter
	lastPost time.Time
}

// RateLimiter throttles form posts per visitor key. Visitors that stay idle
// for longer than the eviction interval are forgotten.
type RateLimiter struct {
	mu         sync.Mutex
	visitors   map[string]*visitor
	perSecond  rate.Limit
	burst      int
	evictAfter time.Duration
	stop       chan struct{}
	stopOnce   sync.Once
	logger     *apperrors.Logger
}

// NewRateLimiter allows requestsPerMin posts per minute with bursts of
// burstCapacity. A non-positive evictAfter defaults to ten minutes.
func NewRateLimiter(requestsPerMin, burstCapacity int, evictAfter time.Duration, logger *apperrors.Logger) *RateLimiter {
	if evictAfter <= 0 {
		evictAfter = 10 * time.Minute
	}

	rl := &RateLimiter{
		visitors:   make(map[string]*visitor),
		perSecond:  rate.Limit(float64(requestsPerMin) / 60.0),
		burst:      burstCapacity,
		evictAfter: evictAfter,
		stop:       make(chan struct{}),
		logger:     logger,
	}
	go rl.evictLoop()
	return rl
}

func (rl *RateLimiter) visitorFor(key string) *visitor {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, ok := rl.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.perSecond, rl.burst)}
		rl.visitors[key] = v
	}
	v.lastPost = time.Now()
	return v
}

// Allow reports whether key may post now
func (rl *RateLimiter) Allow(key string) bool {
	return rl.Wait(key) == 0
}

// Wait takes a token for key and returns zero, or returns how long the
// visitor has to wait for the next one without consuming anything.
func (rl *RateLimiter) Wait(key string) time.Duration {
	res := rl.visitorFor(key).limiter.Reserve()
	if !res.OK() {
		return time.Minute
	}
	if delay := res.Delay(); delay > 0 {
		res.Cancel()
		return delay
	}
	return 0
}

// GetStats describes the limiter for the stats endpoint
func (rl *RateLimiter) GetStats() map[string]any {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	return map[string]any{
		"active_visitors": len(rl.visitors),
		"rate_per_minute": float64(rl.perSecond) * 60.0,
		"burst_capacity":  rl.burst,
		"evict_after":     rl.evictAfter.String(),
	}
}

func (rl *RateLimiter) evictLoop() {
	ticker := time.NewTicker(rl.evictAfter)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			rl.evictIdle(now)
		case <-rl.stop:
			return
		}
	}
}

func (rl *RateLimiter) evictIdle(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	evicted := 0
	for key, v := range rl.visitors {
		if now.Sub(v.lastPost) > rl.evictAfter {
			delete(rl.visitors, key)
			evicted++
		}
	}
	if rl.logger != nil && evicted > 0 {
		rl.logger.Debug("Evicted idle visitors", "evicted", evicted, "remaining", len(rl.visitors))
	}
}

// Close stops the eviction loop. Safe to call more than once.
func (rl *RateLimiter) Close() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

func (s *Server) trustProxy() bool {
	return s.RateLimit != nil && s.RateLimit.TrustProxy
}

// rateLimitMiddleware throttles form submissions per client IP
func (s *Server) rateLimitMiddleware() func(http.HandlerFunc) http.HandlerFunc {
	if s.RateLimit == nil || !s.RateLimit.Enabled || s.RateLimiter == nil {
		return func(next http.HandlerFunc) http.HandlerFunc { return next }
	}

	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			clientIP := getClientIP(r, s.trustProxy())
			if wait := s.RateLimiter.Wait("ip:" + clientIP); wait > 0 {
				s.Metrics.RecordRateLimitHit(r.Context(), r.URL.Path)
				s.Logger.Info("Form post throttled",
					"path", r.URL.Path,
					"client_ip", clientIP,
					"retry_after", wait.String(),
					"request_id", RequestID(r.Context()))
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
				http.Error(w, MsgRateLimited, http.StatusTooManyRequests)
				return
			}

			next(w, r)
		}
	}
}

// getClientIP extracts the client IP address from the request. Forwarding
// headers are only honoured behind a trusted proxy.
func getClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			if ip := parseFirstIP(xff); ip != "" {
				return ip
			}
		}

		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			if ip := net.ParseIP(xri); ip != nil {
				return xri
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// parseFirstIP parses the first valid IP from a comma-separated list
func parseFirstIP(ips string) string {
	for ip := range strings.SplitSeq(ips, ",") {
		ip = strings.TrimSpace(ip)
		if parsed := net.ParseIP(ip); parsed != nil {
			return ip
		}
	}
	return ""
}
