package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRateLimiter(t *testing.T, maxReqs int) (http.Handler, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	rl := NewRateLimiter(client, "ratelimit:admin:", maxReqs, time.Minute)
	return rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})), mr
}

func call(h http.Handler, remote string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil)
	req.RemoteAddr = remote
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRateLimiter_UnderAndOverLimit(t *testing.T) {
	h, _ := setupRateLimiter(t, 3)

	for i := 0; i < 3; i++ {
		rec := call(h, "10.0.0.1:12345")
		require.Equal(t, http.StatusOK, rec.Code, "request %d", i+1)
		assert.Equal(t, "3", rec.Header().Get("X-RateLimit-Limit"))
	}

	rec := call(h, "10.0.0.1:12345")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.JSONEq(t, `{"error":"too many requests"}`, rec.Body.String())
}

func TestRateLimiter_DifferentIPsIndependent(t *testing.T) {
	h, _ := setupRateLimiter(t, 1)

	assert.Equal(t, http.StatusOK, call(h, "1.1.1.1:1").Code)
	assert.Equal(t, http.StatusTooManyRequests, call(h, "1.1.1.1:1").Code)
	assert.Equal(t, http.StatusOK, call(h, "2.2.2.2:1").Code)
}

func TestRateLimiter_KeysUsePrefix(t *testing.T) {
	h, mr := setupRateLimiter(t, 5)
	call(h, "4.4.4.4:1")
	assert.True(t, mr.Exists("ratelimit:admin:4.4.4.4"))
}

func TestRateLimiter_Disabled(t *testing.T) {
	h, mr := setupRateLimiter(t, 0)
	for i := 0; i < 10; i++ {
		assert.Equal(t, http.StatusOK, call(h, "5.5.5.5:1").Code)
	}
	assert.Empty(t, mr.Keys())
}

func TestRateLimiter_FailsOpen(t *testing.T) {
	h, mr := setupRateLimiter(t, 1)
	mr.Close()
	assert.Equal(t, http.StatusOK, call(h, "3.3.3.3:1").Code)
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded first hop", map[string]string{"X-Forwarded-For": "9.9.9.9, 10.0.0.1"}, "127.0.0.1:1", "9.9.9.9"},
		{"real ip", map[string]string{"X-Real-IP": "8.8.8.8"}, "127.0.0.1:1", "8.8.8.8"},
		{"remote addr", nil, "7.7.7.7:4444", "7.7.7.7"},
		{"remote without port", nil, "7.7.7.7", "7.7.7.7"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, clientIP(req))
		})
	}
}
