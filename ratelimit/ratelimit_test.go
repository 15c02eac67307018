package ratelimit_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-authflow/ratelimit"
)

func TestKeyEmail(t *testing.T) {
	assert.Equal(t, "email:new@test.com", ratelimit.KeyEmail("  New@Test.COM "))
	assert.Empty(t, ratelimit.KeyEmail("   "))
}

func TestMemoryFixedWindow(t *testing.T) {
	now := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	limiter := ratelimit.NewMemory(
		ratelimit.Rule{Limit: 2, Window: time.Minute},
		ratelimit.WithClock(func() time.Time { return now }),
	)
	ctx := context.Background()
	key := ratelimit.KeyEmail("new@test.com")

	for i := 0; i < 2; i++ {
		ok, err := limiter.Allow(ctx, key)
		require.NoError(t, err)
		assert.True(t, ok, "request %d", i)
	}

	ok, err := limiter.Allow(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	// other keys have their own counter
	ok, _ = limiter.Allow(ctx, ratelimit.KeyEmail("other@test.com"))
	assert.True(t, ok)

	now = now.Add(time.Minute)
	ok, _ = limiter.Allow(ctx, key)
	assert.True(t, ok)
}

func TestMemoryReset(t *testing.T) {
	limiter := ratelimit.NewMemory(ratelimit.Rule{Limit: 1, Window: time.Hour})
	ctx := context.Background()

	ok, _ := limiter.Allow(ctx, "k")
	require.True(t, ok)
	ok, _ = limiter.Allow(ctx, "k")
	require.False(t, ok)

	limiter.Reset("k")
	ok, _ = limiter.Allow(ctx, "k")
	assert.True(t, ok)
}

func TestMemoryNeverLimitsEmptyKeysOrInvalidRules(t *testing.T) {
	ctx := context.Background()

	limiter := ratelimit.NewMemory(ratelimit.Rule{Limit: 1, Window: time.Hour})
	for i := 0; i < 3; i++ {
		ok, _ := limiter.Allow(ctx, "")
		assert.True(t, ok)
	}

	open := ratelimit.NewMemory(ratelimit.Rule{})
	for i := 0; i < 3; i++ {
		ok, _ := open.Allow(ctx, "k")
		assert.True(t, ok)
	}

	ok, err := ratelimit.Unlimited.Allow(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLimiter(t *testing.T) {
	uri := os.Getenv("REDIS_URL")
	if uri == "" {
		t.Skip("REDIS_URL not set")
	}

	ctx := context.Background()
	client, err := ratelimit.NewRedisClient(ctx, uri)
	require.NoError(t, err)
	defer client.Close()

	limiter := ratelimit.NewRedis(client,
		ratelimit.Rule{Limit: 1, Window: time.Minute},
		ratelimit.WithPrefix("authflow:test:"+uuid.NewString()+":"),
	)

	ok, err := limiter.Allow(ctx, "email:new@test.com")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = limiter.Allow(ctx, "email:new@test.com")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNewRedisClientRejectsBadURL(t *testing.T) {
	_, err := ratelimit.NewRedisClient(context.Background(), "not a url")
	assert.Error(t, err)
}
