// Copyright (C) 2025 Podium Labs, Inc.
// See LICENSE for copying information.

package ratelimit_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/podiumhq/podium/console"
	"github.com/podiumhq/podium/gateway/ratelimit"
)

func newLimiter(t *testing.T, config ratelimit.Config) (*ratelimit.Limiter, *miniredis.Miniredis, *redis.Client) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return ratelimit.NewLimiter(zaptest.NewLogger(t), client, config), mr, client
}

func TestAllow_BurstThenDeny(t *testing.T) {
	ctx := context.Background()
	limiter, _, _ := newLimiter(t, ratelimit.DefaultConfig())

	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	limiter.SetNowFunc(func() time.Time { return clock })

	tenantID := uuid.New()
	bucket := ratelimit.BucketFor(console.PlanFree)
	require.Equal(t, float64(10), bucket.Capacity)

	// The full burst passes.
	for i := 0; i < int(bucket.Capacity); i++ {
		result, err := limiter.Allow(ctx, tenantID, console.PlanFree)
		require.NoError(t, err)
		assert.True(t, result.Allowed, "request %d within burst", i)
		assert.Equal(t, int64(10), result.Limit)
		assert.Equal(t, int64(bucket.Capacity)-int64(i)-1, result.Remaining)
	}

	// The next request is denied with a retry hint.
	result, err := limiter.Allow(ctx, tenantID, console.PlanFree)
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Equal(t, int64(0), result.Remaining)
	assert.Equal(t, time.Second, result.RetryAfter)
	assert.Greater(t, result.ResetAt, clock.Unix())
}

func TestAllow_Refill(t *testing.T) {
	ctx := context.Background()
	limiter, _, _ := newLimiter(t, ratelimit.DefaultConfig())

	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	limiter.SetNowFunc(func() time.Time { return clock })

	tenantID := uuid.New()
	for i := 0; i < 10; i++ {
		result, err := limiter.Allow(ctx, tenantID, console.PlanFree)
		require.NoError(t, err)
		require.True(t, result.Allowed)
	}
	result, err := limiter.Allow(ctx, tenantID, console.PlanFree)
	require.NoError(t, err)
	require.False(t, result.Allowed)

	// Three seconds of refill at 1 token/s admits three more requests.
	clock = clock.Add(3 * time.Second)
	for i := 0; i < 3; i++ {
		result, err := limiter.Allow(ctx, tenantID, console.PlanFree)
		require.NoError(t, err)
		assert.True(t, result.Allowed, "request %d after refill", i)
	}
	result, err = limiter.Allow(ctx, tenantID, console.PlanFree)
	require.NoError(t, err)
	assert.False(t, result.Allowed)

	// Refill clamps at capacity: a long idle period never overfills.
	clock = clock.Add(time.Hour)
	allowed := 0
	for i := 0; i < 15; i++ {
		result, err := limiter.Allow(ctx, tenantID, console.PlanFree)
		require.NoError(t, err)
		if result.Allowed {
			allowed++
		}
	}
	assert.Equal(t, 10, allowed)
}

func TestAllow_TenantsIsolatedByPlan(t *testing.T) {
	ctx := context.Background()
	limiter, mr, _ := newLimiter(t, ratelimit.DefaultConfig())

	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	limiter.SetNowFunc(func() time.Time { return clock })

	free := uuid.New()
	pro := uuid.New()

	for i := 0; i < 10; i++ {
		result, err := limiter.Allow(ctx, free, console.PlanFree)
		require.NoError(t, err)
		require.True(t, result.Allowed)
	}
	result, err := limiter.Allow(ctx, free, console.PlanFree)
	require.NoError(t, err)
	assert.False(t, result.Allowed, "free tenant exhausted")

	// The pro tenant has its own, larger bucket.
	result, err = limiter.Allow(ctx, pro, console.PlanPro)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.Equal(t, int64(100), result.Limit)

	// Bucket keys expire so idle tenants cost nothing.
	assert.Equal(t, 60*time.Second, mr.TTL("rl:"+free.String()))
}

func TestAllow_Disabled(t *testing.T) {
	ctx := context.Background()
	limiter, _, _ := newLimiter(t, ratelimit.Config{Enabled: false})

	for i := 0; i < 100; i++ {
		result, err := limiter.Allow(ctx, uuid.New(), console.PlanFree)
		require.NoError(t, err)
		assert.True(t, result.Allowed)
	}
}

func TestAllow_CacheUnreachable(t *testing.T) {
	ctx := context.Background()

	t.Run("fails open by default", func(t *testing.T) {
		limiter, mr, _ := newLimiter(t, ratelimit.DefaultConfig())
		mr.Close()

		result, err := limiter.Allow(ctx, uuid.New(), console.PlanFree)
		require.NoError(t, err)
		assert.True(t, result.Allowed)
		assert.True(t, result.FailedOpen)
	})

	t.Run("fails closed behind the flag", func(t *testing.T) {
		config := ratelimit.DefaultConfig()
		config.FailClosed = true
		limiter, mr, _ := newLimiter(t, config)
		mr.Close()

		_, err := limiter.Allow(ctx, uuid.New(), console.PlanFree)
		assert.Error(t, err)
	})
}
