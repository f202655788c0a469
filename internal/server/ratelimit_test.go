package server

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"skillwizard/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiterAllowsBurstPerKey(t *testing.T) {
	limiter := NewRateLimiter(1, 2, 0, nil)
	defer limiter.Close()

	assert.True(t, limiter.Allow("ip:1.1.1.1"))
	assert.True(t, limiter.Allow("ip:1.1.1.1"))
	assert.False(t, limiter.Allow("ip:1.1.1.1"))
	assert.True(t, limiter.Allow("ip:2.2.2.2"))

	wait := limiter.Wait("ip:1.1.1.1")
	assert.Greater(t, wait, 59*time.Second)
	assert.LessOrEqual(t, wait, time.Minute)

	stats := limiter.GetStats()
	assert.Equal(t, 2, stats["active_visitors"])
	assert.Equal(t, 2, stats["burst_capacity"])
	assert.InDelta(t, 1.0, stats["rate_per_minute"], 0.0001)

	limiter.Close()
}

func TestRateLimiterEvictsIdleVisitors(t *testing.T) {
	limiter := NewRateLimiter(60, 1, time.Minute, nil)
	defer limiter.Close()

	limiter.Allow("ip:1.1.1.1")
	limiter.evictIdle(time.Now())
	assert.Equal(t, 1, limiter.GetStats()["active_visitors"])

	limiter.evictIdle(time.Now().Add(2 * time.Minute))
	assert.Equal(t, 0, limiter.GetStats()["active_visitors"])
}

func TestRateLimitMiddlewareThrottlesPosts(t *testing.T) {
	ts := newTestServer(t, func(cfg *config.Config) {
		cfg.Server.RateLimit = config.RateLimitConfig{Enabled: true, RequestsPerMin: 1, BurstCapacity: 1}
	})
	require.NotNil(t, ts.RateLimiter)

	first := ts.post(t, "/jobs", url.Values{})
	assert.Equal(t, http.StatusOK, first.Code)

	second := ts.post(t, "/jobs", url.Values{})
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "60", second.Header().Get("Retry-After"))
	assert.Contains(t, second.Body.String(), MsgRateLimited)

	// page loads are not throttled
	assert.Equal(t, http.StatusOK, ts.get(t, "/").Code)
	assert.Equal(t, http.StatusOK, ts.get(t, "/").Code)
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		trustProxy bool
		want       string
	}{
		{
			name:       "remote address",
			remoteAddr: "10.0.0.1:5555",
			want:       "10.0.0.1",
		},
		{
			name:       "forwarded header ignored without trusted proxy",
			remoteAddr: "10.0.0.1:5555",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.7"},
			want:       "10.0.0.1",
		},
		{
			name:       "first valid forwarded address",
			remoteAddr: "10.0.0.1:5555",
			headers:    map[string]string{"X-Forwarded-For": "garbage, 203.0.113.7, 198.51.100.2"},
			trustProxy: true,
			want:       "203.0.113.7",
		},
		{
			name:       "real ip header",
			remoteAddr: "10.0.0.1:5555",
			headers:    map[string]string{"X-Real-IP": "198.51.100.9"},
			trustProxy: true,
			want:       "198.51.100.9",
		},
		{
			name:       "remote address without port",
			remoteAddr: "10.0.0.2",
			want:       "10.0.0.2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, getClientIP(req, tt.trustProxy))
		})
	}
}
