package server

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newClockedLimiter(perMinute, perHour, perDay int, dataPerDay int64) (*RateLimiter, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)}
	rl := NewRateLimiter(perMinute, perHour, perDay, dataPerDay)
	rl.now = clock.now
	return rl, clock
}

func TestRateLimiter_PerMinute(t *testing.T) {
	rl, clock := newClockedLimiter(2, 0, 0, 0)

	require.NoError(t, rl.CheckRateLimit("a", 0))
	require.NoError(t, rl.CheckRateLimit("a", 0))

	clock.advance(20 * time.Second)
	err := rl.CheckRateLimit("a", 0)
	var rateErr *RateLimitError
	require.True(t, errors.As(err, &rateErr))
	assert.Equal(t, "minute", rateErr.Window)
	assert.Equal(t, 40*time.Second, rateErr.RetryAfter)

	// other clients have their own windows
	require.NoError(t, rl.CheckRateLimit("b", 0))

	clock.advance(40 * time.Second)
	assert.NoError(t, rl.CheckRateLimit("a", 0))
}

func TestRateLimiter_PerHour(t *testing.T) {
	rl, clock := newClockedLimiter(0, 3, 0, 0)
	for i := 0; i < 3; i++ {
		require.NoError(t, rl.CheckRateLimit("a", 0))
		clock.advance(time.Minute)
	}
	var rateErr *RateLimitError
	require.ErrorAs(t, rl.CheckRateLimit("a", 0), &rateErr)
	assert.Equal(t, "hour", rateErr.Window)
	assert.Equal(t, 57*time.Minute, rateErr.RetryAfter)
}

func TestRateLimiter_DailyQuotas(t *testing.T) {
	rl, clock := newClockedLimiter(0, 0, 0, 100)

	require.NoError(t, rl.CheckRateLimit("a", 60))
	var quotaErr *QuotaExceededError
	require.ErrorAs(t, rl.CheckRateLimit("a", 50), &quotaErr)
	assert.Equal(t, "data", quotaErr.Quota)
	assert.Equal(t, int64(60), quotaErr.Used)
	assert.Equal(t, time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC), quotaErr.Resets)

	requests, data := rl.Usage("a")
	assert.Equal(t, 1, requests)
	assert.Equal(t, int64(60), data)

	clock.advance(14 * time.Hour)
	assert.NoError(t, rl.CheckRateLimit("a", 50))

	rl, _ = newClockedLimiter(0, 0, 1, 0)
	require.NoError(t, rl.CheckRateLimit("a", 0))
	require.ErrorAs(t, rl.CheckRateLimit("a", 0), &quotaErr)
	assert.Equal(t, "requests", quotaErr.Quota)
}

func TestRateLimitMiddleware(t *testing.T) {
	s := NewServer(newFakeDetector(), Config{RateLimit: RateLimitConfig{Enabled: true, RequestsPerMinute: 1}})
	calls := 0
	h := s.rateLimitMiddleware(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodPost, "/v1/detect", nil)
	rec := httptest.NewRecorder()
	h(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	h(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "minute", rec.Header().Get("X-RateLimit-Type"))
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Limit"))
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, 1, calls)
}

func TestHandleRateLimitError_Quota(t *testing.T) {
	s := NewServer(newFakeDetector(), Config{})
	rec := httptest.NewRecorder()
	s.handleRateLimitError(rec, &QuotaExceededError{Quota: "data", Limit: 10, Used: 8, Resets: time.Now()})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "8", rec.Header().Get("X-Quota-Used"))

	rec = httptest.NewRecorder()
	s.handleRateLimitError(rec, errors.New("boom"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name   string
		header map[string]string
		remote string
		want   string
	}{
		{"forwarded chain", map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1"}, "10.0.0.2:1234", "203.0.113.7"},
		{"real ip", map[string]string{"X-Real-IP": " 198.51.100.4 "}, "10.0.0.2:1234", "198.51.100.4"},
		{"remote addr", nil, "192.0.2.1:5555", "192.0.2.1"},
		{"remote without port", nil, "192.0.2.1", "192.0.2.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.header {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, getClientIP(r))
		})
	}
}
