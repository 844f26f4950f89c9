// Copyright (C) 2025 Podium Labs, Inc.
// See LICENSE for copying information.

package gateway_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/podiumhq/podium/console"
	"github.com/podiumhq/podium/gateway"
)

func TestAuthCache(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cache := gateway.NewAuthCache(client, time.Minute)

	validation := console.Validation{
		Valid:     true,
		KeyID:     uuid.New(),
		TenantID:  uuid.New(),
		ProjectID: uuid.New(),
		PlanType:  console.PlanPro,
	}
	fingerprint := console.KeyFingerprint("ak_test")

	t.Run("miss then hit", func(t *testing.T) {
		got, err := cache.Get(ctx, fingerprint)
		require.NoError(t, err)
		assert.Nil(t, got)

		require.NoError(t, cache.Put(ctx, fingerprint, validation))

		got, err = cache.Get(ctx, fingerprint)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, validation, *got)
	})

	t.Run("entries expire with the ttl", func(t *testing.T) {
		mr.FastForward(2 * time.Minute)
		got, err := cache.Get(ctx, fingerprint)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("negative validations are never stored", func(t *testing.T) {
		fp := console.KeyFingerprint("ak_invalid")
		require.NoError(t, cache.Put(ctx, fp, console.Validation{Valid: false}))

		got, err := cache.Get(ctx, fp)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("invalidate drops the entry", func(t *testing.T) {
		require.NoError(t, cache.Put(ctx, fingerprint, validation))
		require.NoError(t, cache.Invalidate(ctx, fingerprint))

		got, err := cache.Get(ctx, fingerprint)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("corrupt entries behave like a miss", func(t *testing.T) {
		require.NoError(t, mr.Set("auth:"+fingerprint, "not json"))

		got, err := cache.Get(ctx, fingerprint)
		require.NoError(t, err)
		assert.Nil(t, got)
		assert.False(t, mr.Exists("auth:"+fingerprint))
	})
}

func TestAuthCache_TTLClamp(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	// An hour-long TTL clamps to five minutes so revocation latency stays
	// bounded.
	cache := gateway.NewAuthCache(client, time.Hour)
	fingerprint := console.KeyFingerprint("ak_clamped")
	require.NoError(t, cache.Put(ctx, fingerprint, console.Validation{Valid: true, KeyID: uuid.New()}))
	assert.Equal(t, 5*time.Minute, mr.TTL("auth:"+fingerprint))
}
