package middleware

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ThrottleRecorder counts rejected requests.
type ThrottleRecorder interface {
	LoginThrottled()
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter throttles requests per client IP with a token bucket.
type RateLimiter struct {
	mu       sync.Mutex
	clients  map[string]*clientLimiter
	limit    rate.Limit
	burst    int
	logger   *slog.Logger
	recorder ThrottleRecorder
	now      func() time.Time
}

// NewRateLimiter allows perMinute requests per client, with bursts of the
// same size. recorder may be nil.
func NewRateLimiter(perMinute int, logger *slog.Logger, recorder ThrottleRecorder) *RateLimiter {
	if perMinute < 1 {
		perMinute = 1
	}
	return &RateLimiter{
		clients:  make(map[string]*clientLimiter),
		limit:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    perMinute,
		logger:   logger,
		recorder: recorder,
		now:      time.Now,
	}
}

// Allow reports whether key may proceed now.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	c, ok := rl.clients[key]
	if !ok {
		c = &clientLimiter{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.clients[key] = c
	}
	now := rl.now()
	c.lastSeen = now
	rl.mu.Unlock()

	return c.limiter.AllowN(now, 1)
}

// Handler rejects requests over the limit with 429.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := clientIP(r)
		if !rl.Allow(key) {
			rl.logger.WarnContext(r.Context(), "rate limit exceeded",
				slog.String("client", key),
				slog.String("path", r.URL.Path),
			)
			if rl.recorder != nil {
				rl.recorder.LoginThrottled()
			}
			w.Header().Set("Retry-After", strconv.Itoa(int(time.Minute.Seconds())))
			http.Error(w, "Too many attempts. Please wait and try again.", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Sweep drops clients idle for longer than idle and returns how many
// were removed.
func (rl *RateLimiter) Sweep(idle time.Duration) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-idle)
	removed := 0
	for k, c := range rl.clients {
		if c.lastSeen.Before(cutoff) {
			delete(rl.clients, k)
			removed++
		}
	}
	return removed
}

// RunSweeper sweeps idle clients every interval until ctx is done.
func (rl *RateLimiter) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.Sweep(interval)
		}
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
