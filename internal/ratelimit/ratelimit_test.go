package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/recipe-app/apiserver/config"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T, capacity int) (*Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	limiter := NewLimiter(rdb, config.RateLimitConfig{
		Enabled:        true,
		Prefix:         "rl",
		Capacity:       capacity,
		RefillTokens:   1,
		RefillInterval: time.Second,
		TTL:            time.Minute,
	})
	return limiter, mr
}

func TestAllowConsumesAndRefills(t *testing.T) {
	limiter, _ := newTestLimiter(t, 2)
	now := time.Unix(1_700_000_000, 0)
	limiter.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		res, err := limiter.Allow(ctx, "client")
		require.NoError(t, err)
		assert.True(t, res.Allowed)
	}

	res, err := limiter.Allow(ctx, "client")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, time.Second, res.RetryAfter)

	res, err = limiter.Allow(ctx, "other")
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	now = now.Add(time.Second)
	res, err = limiter.Allow(ctx, "client")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, int64(0), res.Remaining)
}

func TestMiddlewareRejectsWhenExhausted(t *testing.T) {
	limiter, _ := newTestLimiter(t, 1)
	log, _ := test.NewNullLogger()
	handler := Middleware(limiter, log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/user/token", nil)
	req.RemoteAddr = "10.0.0.1:5555"

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Limit"))

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestMiddlewareFailsOpen(t *testing.T) {
	limiter, mr := newTestLimiter(t, 1)
	mr.Close()
	log, _ := test.NewNullLogger()

	handler := Middleware(limiter, log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/user/token", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestMiddlewareDisabled(t *testing.T) {
	log, _ := test.NewNullLogger()
	called := false
	handler := Middleware(nil, log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.True(t, called)
}

func TestNewClientWithoutAddress(t *testing.T) {
	client, err := NewClient(context.Background(), config.RedisConfig{})
	require.NoError(t, err)
	assert.Nil(t, client)
}
