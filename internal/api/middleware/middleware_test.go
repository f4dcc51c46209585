package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apiContext "replayhub/internal/api/context"
	"replayhub/internal/platform/auth"
	"replayhub/internal/platform/config"
)

func ok(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func TestAuthMiddleware(t *testing.T) {
	tokens := auth.NewTokenService(config.JWTConfig{Secret: "s3cret", AccessTokenTTL: time.Minute, RefreshTokenTTL: time.Hour})
	token, err := tokens.GenerateAccessToken(2, 1, "admin", "admin@acme.test")
	require.NoError(t, err)
	refresh, err := tokens.GenerateRefreshToken(2)
	require.NoError(t, err)

	m := NewAuthMiddleware(tokens)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"valid", "Bearer " + token, http.StatusOK},
		{"lowercase scheme", "bearer " + token, http.StatusOK},
		{"extra spaces", "Bearer   " + token + " ", http.StatusOK},
		{"missing", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + token, http.StatusUnauthorized},
		{"too many parts", "Bearer " + token + " extra", http.StatusUnauthorized},
		{"bad token", "Bearer nope", http.StatusUnauthorized},
		{"refresh token", "Bearer " + refresh, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()

			m.Handle(func(w http.ResponseWriter, r *http.Request) {
				claims := r.Context().Value(apiContext.Claims).(*auth.Claims)
				assert.Equal(t, int64(2), claims.UserID)
				ok(w, r)
			})(rr, req)

			assert.Equal(t, tt.want, rr.Code)
			if tt.want == http.StatusUnauthorized {
				assert.Contains(t, rr.Header().Get("WWW-Authenticate"), "Bearer")
			}
		})
	}
}

func TestMemoryLimiter(t *testing.T) {
	rl := NewMemoryLimiter()
	defer rl.Close()

	now := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, err := rl.Allow(ctx, "k", 3)
		require.NoError(t, err)
		assert.True(t, allowed, "request %d", i)
	}
	allowed, _ := rl.Allow(ctx, "k", 3)
	assert.False(t, allowed)

	// other keys have their own bucket
	allowed, _ = rl.Allow(ctx, "other", 3)
	assert.True(t, allowed)

	// 3 per minute refills one token every 20s
	now = now.Add(20 * time.Second)
	allowed, _ = rl.Allow(ctx, "k", 3)
	assert.True(t, allowed)
	allowed, _ = rl.Allow(ctx, "k", 3)
	assert.False(t, allowed)

	now = now.Add(time.Hour)
	rl.evict(10 * time.Minute)
	_, found := rl.store.Load("k")
	assert.False(t, found)
}

func TestRateLimiter_Limit(t *testing.T) {
	rl := NewMemoryLimiter()
	defer rl.Close()

	limiter := NewRateLimiter(rl, config.RateLimitConfig{APIReadPerMinute: 100, APIWritePerMinute: 1})
	handler := limiter.Limit(LimitWrite)(ok)

	send := func(tenantID int64) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req = req.WithContext(context.WithValue(req.Context(), apiContext.Tenant, &TenantContext{TenantID: tenantID}))
		rr := httptest.NewRecorder()
		handler(rr, req)
		return rr
	}

	assert.Equal(t, http.StatusOK, send(1).Code)

	rr := send(1)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "60", rr.Header().Get("Retry-After"))
	assert.Equal(t, "1", rr.Header().Get("X-RateLimit-Limit"))

	assert.Equal(t, http.StatusOK, send(2).Code)
}

func TestRateLimiter_FailsOpen(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	limiter := NewRateLimiter(NewRedisLimiter(client), config.RateLimitConfig{APIReadPerMinute: 1})
	handler := limiter.Limit(LimitRead)(ok)

	for i := 0; i < 3; i++ {
		rr := httptest.NewRecorder()
		handler(rr, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, rr.Code)
	}
}

func TestLoggerAndRecovery(t *testing.T) {
	handler := Logger(Recovery(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "req-1", r.Context().Value(apiContext.RequestID))
		panic("boom")
	})))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-1")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "req-1", rr.Header().Get("X-Request-ID"))
	assert.Contains(t, rr.Body.String(), "INTERNAL_ERROR")
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.1.2.3:5555"
	assert.Equal(t, "10.1.2.3", clientIP(req))

	req.RemoteAddr = "pipe"
	assert.Equal(t, "pipe", clientIP(req))
}

// memoryRedis answers INCR, TTL and EXPIRE in process so the limiter can run
// without a server. Commands never reach the network.
type memoryRedis struct {
	counts  map[string]int64
	ttls    map[string]time.Duration
	expires int
}

func (m *memoryRedis) DialHook(next redis.DialHook) redis.DialHook { return next }

func (m *memoryRedis) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		m.apply(cmd)
		return nil
	}
}

func (m *memoryRedis) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		for _, cmd := range cmds {
			m.apply(cmd)
		}
		return nil
	}
}

func (m *memoryRedis) apply(cmd redis.Cmder) {
	args := cmd.Args()
	if len(args) < 2 {
		return
	}
	key, _ := args[1].(string)
	switch c := cmd.(type) {
	case *redis.IntCmd:
		m.counts[key]++
		c.SetVal(m.counts[key])
	case *redis.DurationCmd:
		if ttl, ok := m.ttls[key]; ok {
			c.SetVal(ttl)
		} else {
			c.SetVal(-1)
		}
	case *redis.BoolCmd:
		m.expires++
		m.ttls[key] = time.Minute
		c.SetVal(true)
	}
}

func TestRedisLimiter_SetsWindowOnce(t *testing.T) {
	fake := &memoryRedis{counts: map[string]int64{}, ttls: map[string]time.Duration{}}
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	client.AddHook(fake)
	defer client.Close()

	rl := NewRedisLimiter(client)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		allowed, err := rl.Allow(ctx, "tenant:1:api_read", 2)
		require.NoError(t, err)
		assert.True(t, allowed, "request %d", i)
	}
	allowed, err := rl.Allow(ctx, "tenant:1:api_read", 2)
	require.NoError(t, err)
	assert.False(t, allowed)

	assert.Equal(t, 1, fake.expires)
	assert.Equal(t, int64(3), fake.counts["ratelimit:tenant:1:api_read"])

	// a counter that lost its expiry gets a new window
	delete(fake.ttls, "ratelimit:tenant:1:api_read")
	_, err = rl.Allow(ctx, "tenant:1:api_read", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, fake.expires)
}
