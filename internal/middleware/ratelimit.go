package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter limits admin API calls per client IP with a Redis sorted-set
// sliding window.
type RateLimiter struct {
	client  redis.Cmdable
	prefix  string
	maxReqs int
	window  time.Duration
}

// NewRateLimiter allows maxReqs per window for each IP. Keys are stored
// under prefix. maxReqs <= 0 disables limiting.
func NewRateLimiter(client redis.Cmdable, prefix string, maxReqs int, window time.Duration) *RateLimiter {
	return &RateLimiter{client: client, prefix: prefix, maxReqs: maxReqs, window: window}
}

// Middleware enforces the limit. It fails open when Redis is unreachable.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rl.maxReqs <= 0 {
			next.ServeHTTP(w, r)
			return
		}

		ip := clientIP(r)
		used, err := rl.hit(r.Context(), rl.prefix+ip)
		if err != nil {
			slog.Warn("rate limiter: redis error, failing open", "error", err, "ip", ip)
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.maxReqs))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(max(0, rl.maxReqs-used)))

		if used > rl.maxReqs {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", strconv.Itoa(int(rl.window.Seconds())))
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"too many requests"}` + "\n"))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// hit records a request and returns how many fall inside the window,
// this one included.
func (rl *RateLimiter) hit(ctx context.Context, key string) (int, error) {
	now := time.Now()
	cutoff := now.Add(-rl.window).UnixMilli()

	pipe := rl.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(cutoff, 10))
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(now.UnixMilli()), Member: fmt.Sprintf("%d", now.UnixNano())})
	count := pipe.ZCard(ctx, key)
	pipe.Expire(ctx, key, rl.window+time.Second)

	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return int(count.Val()), nil
}

func clientIP(r *http.Request) string {
	// First hop of X-Forwarded-For, as set by the reverse proxy.
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
