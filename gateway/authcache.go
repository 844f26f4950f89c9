// Copyright (C) 2025 Podium Labs, Inc.
// See LICENSE for copying information.

package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/podiumhq/podium/console"
)

// AuthCache memoizes positive key validations in the shared cache. Negative
// results are never cached so revocation takes effect within the TTL.
type AuthCache struct {
	cache *redis.Client
	ttl   time.Duration
}

// ensures AuthCache satisfies the console invalidation hook.
var _ console.AuthCache = (*AuthCache)(nil)

// NewAuthCache creates the cache with a bounded TTL; anything above five
// minutes is clamped to keep revocation latency acceptable.
func NewAuthCache(cache *redis.Client, ttl time.Duration) *AuthCache {
	if ttl <= 0 || ttl > 5*time.Minute {
		ttl = 5 * time.Minute
	}
	return &AuthCache{cache: cache, ttl: ttl}
}

func authKey(fingerprint string) string { return "auth:" + fingerprint }

// Get returns the cached validation or nil on miss.
func (ac *AuthCache) Get(ctx context.Context, fingerprint string) (*console.Validation, error) {
	raw, err := ac.cache.Get(ctx, authKey(fingerprint)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, Error.Wrap(err)
	}

	var validation console.Validation
	if err := json.Unmarshal(raw, &validation); err != nil {
		// A corrupt entry behaves like a miss.
		_ = ac.cache.Del(ctx, authKey(fingerprint)).Err()
		return nil, nil
	}
	return &validation, nil
}

// Put stores a positive validation for the TTL.
func (ac *AuthCache) Put(ctx context.Context, fingerprint string, validation console.Validation) error {
	if !validation.Valid {
		return nil
	}
	raw, err := json.Marshal(validation)
	if err != nil {
		return Error.Wrap(err)
	}
	return Error.Wrap(ac.cache.Set(ctx, authKey(fingerprint), raw, ac.ttl).Err())
}

// Invalidate implements console.AuthCache.
func (ac *AuthCache) Invalidate(ctx context.Context, fingerprint string) error {
	return Error.Wrap(ac.cache.Del(ctx, authKey(fingerprint)).Err())
}
